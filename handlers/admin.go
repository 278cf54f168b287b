package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/sessions"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

type suspendRequest struct {
	SuspensionReason string `json:"suspension_reason" binding:"required"`
}

// AdminHandler exposes account management to administrators. Suspending
// a user also ends their refresh sessions when sessions are configured.
type AdminHandler struct {
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
}

func NewAdminHandler(u *users.Service, s *sessions.Service) *AdminHandler {
	return &AdminHandler{usersSvc: u, sessionsSvc: s}
}

func (h *AdminHandler) Register(rg *gin.RouterGroup, auth ...gin.HandlerFunc) {
	chain := append(append([]gin.HandlerFunc{}, auth...), middleware.RequireAdmin())
	a := rg.Group("/admin/users", chain...)
	a.GET("", h.List)
	a.GET("/:id", h.Get)
	a.PATCH("/:id", h.Update)
	a.POST("/:id/suspend", h.Suspend)
	a.POST("/:id/unsuspend", h.Unsuspend)
}

func (h *AdminHandler) List(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.usersSvc.List(c.Request.Context(), q.Page, q.Limit, q.Search)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandler) Get(c *gin.Context) {
	u, err := h.usersSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) Update(c *gin.Context) {
	var in users.AdminUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.usersSvc.AdminUpdate(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	if in.IsSuspended != nil && u.IsSuspended {
		h.revoke(c, u.ID)
	}
	c.JSON(http.StatusOK, u)
}

// revoke ends the user's refresh sessions; refresh already rejects
// suspended users, so a failure only leaves storage behind.
func (h *AdminHandler) revoke(c *gin.Context, userID string) {
	if h.sessionsSvc == nil {
		return
	}
	if err := h.sessionsSvc.RevokeUser(c.Request.Context(), userID); err != nil {
		logger.Warnf("revoke sessions of %s: %v", userID, err)
	}
}

func (h *AdminHandler) Suspend(c *gin.Context) {
	var req suspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.usersSvc.Suspend(c.Request.Context(), c.Param("id"), req.SuspensionReason)
	if err != nil {
		respondError(c, err)
		return
	}
	h.revoke(c, u.ID)
	c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) Unsuspend(c *gin.Context) {
	u, err := h.usersSvc.Unsuspend(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
