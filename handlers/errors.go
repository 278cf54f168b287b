package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/chat"
	"github.com/phishers-marketplace/marketplace-api/internal/friends"
	"github.com/phishers-marketplace/marketplace-api/internal/groups"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/items"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/transactions"
	"github.com/phishers-marketplace/marketplace-api/internal/storage"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
)

// statusFor maps domain sentinels to HTTP status codes. Order matters only
// for readability; sentinels are distinct values.
var statusFor = []struct {
	err    error
	status int
}{
	{users.ErrEmailTaken, http.StatusBadRequest},
	{users.ErrInvalidInput, http.StatusBadRequest},
	{users.ErrInvalidCredentials, http.StatusUnauthorized},
	{users.ErrNotFound, http.StatusNotFound},

	{friends.ErrSelf, http.StatusBadRequest},
	{friends.ErrAlreadyFriends, http.StatusBadRequest},
	{friends.ErrUserNotFound, http.StatusNotFound},
	{friends.ErrNotFriends, http.StatusNotFound},

	{chat.ErrSelfMessage, http.StatusBadRequest},
	{chat.ErrEmptyMessage, http.StatusBadRequest},
	{chat.ErrReceiverNotFound, http.StatusNotFound},
	{chat.ErrKeysNotFound, http.StatusNotFound},

	{groups.ErrInvalidInput, http.StatusBadRequest},
	{groups.ErrInvalidRole, http.StatusBadRequest},
	{groups.ErrAlreadyMember, http.StatusBadRequest},
	{groups.ErrOwnerLeave, http.StatusBadRequest},
	{groups.ErrNotMember, http.StatusForbidden},
	{groups.ErrForbidden, http.StatusForbidden},
	{groups.ErrNotFound, http.StatusNotFound},
	{groups.ErrUserNotFound, http.StatusNotFound},

	{items.ErrInvalidInput, http.StatusBadRequest},
	{items.ErrInvalidImage, http.StatusBadRequest},
	{items.ErrTooManyImages, http.StatusBadRequest},
	{items.ErrForbidden, http.StatusForbidden},
	{items.ErrNotFound, http.StatusNotFound},
	{items.ErrImmutable, http.StatusConflict},
	{items.ErrStorageUnavailable, http.StatusServiceUnavailable},
	{storage.ErrNotFound, http.StatusNotFound},

	{transactions.ErrInvalidInput, http.StatusBadRequest},
	{transactions.ErrOwnItem, http.StatusBadRequest},
	{transactions.ErrItemUnavailable, http.StatusBadRequest},
	{transactions.ErrInvalidTransition, http.StatusBadRequest},
	{transactions.ErrForbidden, http.StatusForbidden},
	{transactions.ErrNotFound, http.StatusNotFound},
	{transactions.ErrItemNotFound, http.StatusNotFound},
	{transactions.ErrPendingPurchase, http.StatusConflict},
	{transactions.ErrConflict, http.StatusConflict},
}

// respondError writes {"error": msg} for err. Unknown errors are logged and
// reported as 500 without their details.
func respondError(c *gin.Context, err error) {
	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.err.Error()})
			return
		}
	}
	logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
