package models

import "time"

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// CanManage reports whether the role may add or remove other members.
func (r MemberRole) CanManage() bool { return r == RoleOwner || r == RoleAdmin }

type Group struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	CreatedBy   string    `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type GroupMembership struct {
	ID        string     `bson:"_id" json:"id"`
	GroupID   string     `bson:"group_id" json:"group_id"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Role      MemberRole `bson:"role" json:"role"`
	JoinedAt  time.Time  `bson:"joined_at" json:"joined_at"`
	InvitedBy *string    `bson:"invited_by" json:"invited_by"`
}
