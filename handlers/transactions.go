package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/transactions"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

type txQuery struct {
	Role   transactions.Role        `form:"role"`
	Status models.TransactionStatus `form:"status"`
}

func (h *ItemsHandler) Purchase(c *gin.Context) {
	var in transactions.PurchaseInput
	// the body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
	}
	tx, err := h.txSvc.Purchase(c.Request.Context(), middleware.UserFrom(c).ID, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (h *ItemsHandler) Transactions(c *gin.Context) {
	var q txQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	list, err := h.txSvc.List(c.Request.Context(), middleware.UserFrom(c).ID, q.Role, q.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list, "total": len(list)})
}

func (h *ItemsHandler) Transaction(c *gin.Context) {
	u := middleware.UserFrom(c)
	tx, err := h.txSvc.Get(c.Request.Context(), c.Param("id"), u.ID, u.IsAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *ItemsHandler) UpdateStatus(c *gin.Context) {
	var in transactions.StatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	tx, err := h.txSvc.UpdateStatus(c.Request.Context(), c.Param("id"), middleware.UserFrom(c).ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
