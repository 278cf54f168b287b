package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/chat"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

// contact is the public view of a chat partner.
type contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type keysRequest struct {
	EncryptedKey     []byte `json:"encrypted_key" binding:"required"`
	PeerEncryptedKey []byte `json:"peer_encrypted_key" binding:"required"`
}

type ChatHandler struct {
	chatSvc *chat.Service
	hub     *chat.Hub
}

// NewChatHandler wires the handler; hub may be nil, which disables /chat/ws.
func NewChatHandler(s *chat.Service, hub *chat.Hub) *ChatHandler {
	return &ChatHandler{chatSvc: s, hub: hub}
}

func (h *ChatHandler) Register(rg *gin.RouterGroup, auth ...gin.HandlerFunc) {
	g := rg.Group("/chat")
	if h.hub != nil {
		ws := append([]gin.HandlerFunc{middleware.TokenFromQuery("token")}, auth...)
		g.GET("/ws", append(ws, h.WS)...)
	}
	g.Use(auth...)
	g.GET("", h.Contacts)
	g.POST("/send", h.Send)
	g.PUT("/keys/:peer_id", h.PutKeys)
	g.GET("/keys/:peer_id", h.GetKeys)
	g.GET("/:receiver_id", h.History)
}

func (h *ChatHandler) Contacts(c *gin.Context) {
	list, err := h.chatSvc.Contacts(c.Request.Context(), middleware.UserFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]contact, 0, len(list))
	for _, u := range list {
		out = append(out, contact{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	c.JSON(http.StatusOK, gin.H{"contacts": out, "total": len(out), "limit": len(out)})
}

func (h *ChatHandler) Send(c *gin.Context) {
	var in chat.SendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.chatSvc.Send(c.Request.Context(), middleware.UserFrom(c).ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *ChatHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.chatSvc.History(c.Request.Context(), middleware.UserFrom(c).ID, c.Param("receiver_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *ChatHandler) PutKeys(c *gin.Context) {
	var req keysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kp, err := h.chatSvc.PutKeys(c.Request.Context(), middleware.UserFrom(c).ID, c.Param("peer_id"), req.EncryptedKey, req.PeerEncryptedKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, kp)
}

func (h *ChatHandler) GetKeys(c *gin.Context) {
	kp, err := h.chatSvc.GetKeys(c.Request.Context(), middleware.UserFrom(c).ID, c.Param("peer_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, kp)
}

// WS upgrades to a websocket that receives message events for the caller.
func (h *ChatHandler) WS(c *gin.Context) {
	u := middleware.UserFrom(c)
	if err := h.hub.ServeWS(c.Writer, c.Request, u.ID); err != nil {
		// the upgrader has already written the error response
		logger.Warnf("chat ws upgrade for %s failed: %v", u.ID, err)
	}
}
