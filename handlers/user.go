package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/config"
	"github.com/phishers-marketplace/marketplace-api/internal/sessions"
	"github.com/phishers-marketplace/marketplace-api/internal/tokens"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

// RegisterRequest is the body of POST /user/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserHandler serves account registration and token issuance.
type UserHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
}

// NewUserHandler wires the handler; s may be nil, in which case no refresh
// tokens are issued.
func NewUserHandler(cfg *config.Config, u *users.Service, s *sessions.Service) *UserHandler {
	return &UserHandler{cfg: cfg, usersSvc: u, sessionsSvc: s}
}

// Register routes under /user; auth is the chain protecting /user/me.
func (h *UserHandler) Register(rg *gin.RouterGroup, auth ...gin.HandlerFunc) {
	u := rg.Group("/user")
	u.POST("/register", h.RegisterUser)
	u.POST("/token", h.Token)
	u.POST("/refresh", h.Refresh)
	u.POST("/logout", h.Logout)
	u.GET("/me", append(auth, h.Me)...)
}

func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Token implements the OAuth2 password form: username is the email.
func (h *UserHandler) Token(c *gin.Context) {
	var form tokenForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), form.Username, form.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.Header("WWW-Authenticate", "Bearer")
		respondError(c, err)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.Security.AccessTokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"access_token": access, "token_type": "bearer"}
	if h.sessionsSvc != nil {
		rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID, h.cfg.Security.RefreshTokenTTL)
		if err != nil {
			logger.Errorf("failed to create session for %s: %v", u.ID, err)
		} else {
			resp["refresh_token"] = rft
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.UserFrom(c))
}

// Refresh exchanges a refresh token for a new access token.
func (h *UserHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if h.sessionsSvc == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	sess, err := h.sessionsSvc.ValidateRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	u, err := h.usersSvc.GetByID(c.Request.Context(), sess.UserID)
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if u.IsSuspended {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account suspended."})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.Security.AccessTokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "token_type": "bearer"})
}

// Logout removes the refresh session and, when a valid bearer token is
// presented, blacklists it until it expires.
func (h *UserHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if at := bearerToken(c); at != "" {
		if claims, err := tokens.Parse(h.cfg.Security.JWTSecret, at); err == nil && claims.ExpiresAt != nil {
			if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
				if err := sessions.BlacklistAccessToken(c.Request.Context(), at, ttl); err != nil {
					logger.Errorf("failed to blacklist access token: %v", err)
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to blacklist access token"})
					return
				}
			}
		}
	}
	if h.sessionsSvc != nil {
		if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
