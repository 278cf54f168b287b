package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/friends"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

type pageQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Search string `form:"search"`
}

type FriendsHandler struct {
	friendsSvc *friends.Service
	usersSvc   *users.Service
}

func NewFriendsHandler(f *friends.Service, u *users.Service) *FriendsHandler {
	return &FriendsHandler{friendsSvc: f, usersSvc: u}
}

func (h *FriendsHandler) Register(rg *gin.RouterGroup, auth ...gin.HandlerFunc) {
	f := rg.Group("/friends", auth...)
	f.GET("", h.List)
	f.POST("/add_friend/:friend_id", h.Add)
	f.GET("/add_friend/users", h.Users)
	f.DELETE("/:friend_id", h.Remove)
}

func (h *FriendsHandler) Add(c *gin.Context) {
	u := middleware.UserFrom(c)
	f, err := h.friendsSvc.AddFriend(c.Request.Context(), u.ID, c.Param("friend_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// Users lists accounts a caller can befriend, newest first.
func (h *FriendsHandler) Users(c *gin.Context) {
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

func (h *FriendsHandler) List(c *gin.Context) {
	list, err := h.friendsSvc.Friends(c.Request.Context(), middleware.UserFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": list, "total": len(list)})
}

func (h *FriendsHandler) Remove(c *gin.Context) {
	if err := h.friendsSvc.RemoveFriend(c.Request.Context(), middleware.UserFrom(c).ID, c.Param("friend_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
