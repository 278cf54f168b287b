package models

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship links the user who initiated it to the one who received it.
type Friendship struct {
	ID          string           `bson:"_id" json:"id"`
	RequesterID string           `bson:"requester_id" json:"requester_id"`
	RecipientID string           `bson:"recipient_id" json:"recipient_id"`
	Status      FriendshipStatus `bson:"status" json:"status"`
	CreatedAt   time.Time        `bson:"created_at" json:"created_at"`
}

// Other returns the participant that is not userID.
func (f *Friendship) Other(userID string) string {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}
