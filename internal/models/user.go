package models

import "time"

// User is a registered marketplace account.
type User struct {
	ID               string    `bson:"_id" json:"id"`
	Name             string    `bson:"name" json:"name"`
	Email            string    `bson:"email" json:"email"`
	PasswordHash     string    `bson:"password_hash" json:"-"`
	IsAdmin          bool      `bson:"is_admin" json:"is_admin"`
	IsSuspended      bool      `bson:"is_suspended" json:"is_suspended"`
	SuspensionReason *string   `bson:"suspension_reason" json:"suspension_reason"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
}

func (u *User) String() string {
	return "User(id=" + u.ID + ", name=" + u.Name + ", email=" + u.Email + ")"
}
