package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/sessions"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
)

const (
	CredentialsError = "Could not validate credentials"
	AdminError       = "Not enough permissions. Admin access required."

	ctxClaims = "claims"
	ctxToken  = "token"
	ctxUser   = "user"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": CredentialsError})
}

func bearer(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			unauthorized(c)
			return
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debugf("auth: token rejected: %v", err)
			unauthorized(c)
			return
		}

		if black, err := sessions.IsAccessTokenBlacklisted(c.Request.Context(), token); err != nil {
			logger.Warnf("auth: blacklist lookup failed: %v", err)
		} else if black {
			unauthorized(c)
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			unauthorized(c)
			return
		}

		c.Set(ctxClaims, claims)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// TokenFromQuery copies ?<param>= into the Authorization header when the
// header is absent; browsers cannot set headers on websocket upgrades.
func TokenFromQuery(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if t := c.Query(param); t != "" {
				c.Request.Header.Set("Authorization", "Bearer "+t)
			}
		}
		c.Next()
	}
}

// UserLoader resolves the subject of a token (the user's email).
type UserLoader interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// CurrentUser loads the account named by the token subject and rejects
// suspended accounts. Must run after AuthMiddleware.
func CurrentUser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := c.Get(ctxClaims)
		cm, _ := claims.(map[string]interface{})
		sub, _ := cm["sub"].(string)
		if sub == "" {
			unauthorized(c)
			return
		}
		u, err := users.GetByEmail(c.Request.Context(), sub)
		if err != nil || u == nil {
			unauthorized(c)
			return
		}
		if u.IsSuspended {
			msg := "Account suspended."
			if u.SuspensionReason != nil && *u.SuspensionReason != "" {
				msg = "Account suspended. Reason: " + *u.SuspensionReason
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg})
			return
		}
		c.Set(ctxUser, u)
		c.Next()
	}
}

// RequireAdmin must run after CurrentUser.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := UserFrom(c)
		if u == nil || !u.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": AdminError})
			return
		}
		c.Next()
	}
}

// UserFrom returns the user stored by CurrentUser, nil when absent.
func UserFrom(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// TokenFrom returns the raw bearer token stored by AuthMiddleware.
func TokenFrom(c *gin.Context) string {
	return c.GetString(ctxToken)
}
