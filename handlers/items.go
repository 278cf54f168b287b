package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/items"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/transactions"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

// maxUploadBytes bounds the whole multipart body of an image upload.
const maxUploadBytes = items.MaxImageBytes + 1<<20

type ItemsHandler struct {
	itemsSvc *items.Service
	txSvc    *transactions.Service
}

func NewItemsHandler(i *items.Service, t *transactions.Service) *ItemsHandler {
	return &ItemsHandler{itemsSvc: i, txSvc: t}
}

func (h *ItemsHandler) Register(rg *gin.RouterGroup, auth ...gin.HandlerFunc) {
	m := rg.Group("/marketplace", auth...)
	m.GET("/items", h.List)
	m.POST("/items", h.Create)
	m.GET("/items/:id", h.Get)
	m.PATCH("/items/:id", h.Update)
	m.DELETE("/items/:id", h.Remove)
	m.POST("/items/:id/publish", h.Publish)
	m.POST("/items/:id/images", h.UploadImage)
	m.GET("/items/:id/images/:index", h.Image)
	m.POST("/items/:id/purchase", h.Purchase)
	m.GET("/transactions", h.Transactions)
	m.GET("/transactions/:id", h.Transaction)
	m.POST("/transactions/:id/status", h.UpdateStatus)
}

func actor(c *gin.Context) items.Actor {
	u := middleware.UserFrom(c)
	return items.Actor{UserID: u.ID, IsAdmin: u.IsAdmin}
}

func (h *ItemsHandler) List(c *gin.Context) {
	var q items.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.itemsSvc.List(c.Request.Context(), q, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ItemsHandler) Create(c *gin.Context) {
	var in items.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.itemsSvc.Create(c.Request.Context(), middleware.UserFrom(c).ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (h *ItemsHandler) Get(c *gin.Context) {
	it, err := h.itemsSvc.Get(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *ItemsHandler) Update(c *gin.Context) {
	var in items.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.itemsSvc.Update(c.Request.Context(), c.Param("id"), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *ItemsHandler) Publish(c *gin.Context) {
	it, err := h.itemsSvc.Publish(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *ItemsHandler) Remove(c *gin.Context) {
	if err := h.itemsSvc.Remove(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage accepts multipart/form-data with the image in field "file".
func (h *ItemsHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()
	it, err := h.itemsSvc.AddImage(c.Request.Context(), c.Param("id"), actor(c), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

// Image redirects to a short-lived download URL.
func (h *ItemsHandler) Image(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, items.ErrNotFound)
		return
	}
	url, err := h.itemsSvc.ImageURL(c.Request.Context(), c.Param("id"), idx, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}
