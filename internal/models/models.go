// Package models holds the MongoDB document types shared by the services,
// the bootstrap command and the schema generator.
package models

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewID returns a 32 character hex identifier (a UUIDv4 without dashes).
func NewID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Now is the clock used for document timestamps; tests may replace it.
var Now = func() time.Time { return time.Now().UTC() }

// Collection names.
const (
	CollectionUsers            = "users"
	CollectionMessages         = "message"
	CollectionChatKeys         = "chat_keys"
	CollectionGroupMessages    = "group_message"
	CollectionFriendships      = "friendships"
	CollectionGroups           = "groups"
	CollectionGroupMemberships = "group_memberships"
	CollectionItems            = "marketplace_items"
	CollectionTransactions     = "marketplace_transactions"
	CollectionSessions         = "sessions"
)

// BootstrapCollections are created empty by the provisioning command.
var BootstrapCollections = []string{CollectionUsers, CollectionMessages}
