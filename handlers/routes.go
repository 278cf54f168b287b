package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/chat"
	"github.com/phishers-marketplace/marketplace-api/internal/config"
	"github.com/phishers-marketplace/marketplace-api/internal/friends"
	"github.com/phishers-marketplace/marketplace-api/internal/groups"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/items"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/transactions"
	"github.com/phishers-marketplace/marketplace-api/internal/sessions"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/middleware"
)

// Services is everything the HTTP layer needs. Sessions, Hub and UserLimit
// are optional; UserLimit runs after the caller is loaded.
type Services struct {
	Config       *config.Config
	Verifier     middleware.Verifier
	Users        *users.Service
	Sessions     *sessions.Service
	Friends      *friends.Service
	Chat         *chat.Service
	Hub          *chat.Hub
	Groups       *groups.Service
	Items        *items.Service
	Transactions *transactions.Service
	UserLimit    gin.HandlerFunc
}

// Mount registers every API route on r.
func Mount(r *gin.Engine, s Services) {
	auth := []gin.HandlerFunc{
		middleware.AuthMiddleware(s.Verifier),
		middleware.CurrentUser(s.Users),
	}
	if s.UserLimit != nil {
		auth = append(auth, s.UserLimit)
	}
	root := r.Group("/")

	NewUserHandler(s.Config, s.Users, s.Sessions).Register(root, auth...)
	NewFriendsHandler(s.Friends, s.Users).Register(root, auth...)
	NewChatHandler(s.Chat, s.Hub).Register(root, auth...)
	NewGroupsHandler(s.Groups).Register(root, auth...)
	NewItemsHandler(s.Items, s.Transactions).Register(root, auth...)
	NewAdminHandler(s.Users, s.Sessions).Register(root, auth...)
	RegisterSwagger(r)
}
