package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/groups"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

type GroupsHandler struct {
	groupsSvc *groups.Service
}

func NewGroupsHandler(s *groups.Service) *GroupsHandler {
	return &GroupsHandler{groupsSvc: s}
}

func (h *GroupsHandler) Register(rg *gin.RouterGroup, auth ...gin.HandlerFunc) {
	g := rg.Group("/groups", auth...)
	g.GET("/", h.List)
	g.POST("/", h.Create)
	g.GET("/:id", h.Get)
	g.GET("/:id/members", h.Members)
	g.POST("/:id/members", h.AddMember)
	g.DELETE("/:id/members/:user_id", h.RemoveMember)
	g.POST("/:id/messages", h.SendMessage)
	g.GET("/:id/messages", h.Messages)
}

func (h *GroupsHandler) List(c *gin.Context) {
	list, err := h.groupsSvc.ListForUser(c.Request.Context(), middleware.UserFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*models.Group{}
	}
	c.JSON(http.StatusOK, gin.H{"groups_list": list})
}

func (h *GroupsHandler) Create(c *gin.Context) {
	var in groups.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	g, err := h.groupsSvc.Create(c.Request.Context(), middleware.UserFrom(c).ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *GroupsHandler) Get(c *gin.Context) {
	g, err := h.groupsSvc.Get(c.Request.Context(), c.Param("id"), middleware.UserFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GroupsHandler) Members(c *gin.Context) {
	list, err := h.groupsSvc.Members(c.Request.Context(), c.Param("id"), middleware.UserFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": list})
}

func (h *GroupsHandler) AddMember(c *gin.Context) {
	var in groups.AddMemberInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.groupsSvc.AddMember(c.Request.Context(), c.Param("id"), middleware.UserFrom(c).ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *GroupsHandler) RemoveMember(c *gin.Context) {
	err := h.groupsSvc.RemoveMember(c.Request.Context(), c.Param("id"), middleware.UserFrom(c).ID, c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GroupsHandler) SendMessage(c *gin.Context) {
	var in groups.MessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.groupsSvc.SendMessage(c.Request.Context(), c.Param("id"), middleware.UserFrom(c).ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *GroupsHandler) Messages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.groupsSvc.Messages(c.Request.Context(), c.Param("id"), middleware.UserFrom(c).ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*models.GroupMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
