// Package groups manages group chats: groups, their memberships and
// messages.
package groups

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/phishers-marketplace/marketplace-api/internal/chat"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/metrics"
)

var (
	ErrNotFound      = errors.New("Group not found")
	ErrNotMember     = errors.New("You are not a member of this group")
	ErrForbidden     = errors.New("Only the group owner or an admin can do this")
	ErrAlreadyMember = errors.New("User is already a member of this group")
	ErrUserNotFound  = errors.New("User not found")
	ErrOwnerLeave    = errors.New("The group owner cannot leave the group")
	ErrInvalidRole   = errors.New("Role must be admin or member")
	ErrInvalidInput  = errors.New("invalid group input")
)

const DefaultMessageLimit = 500

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}

type Service struct {
	repo     Repository
	users    UserLookup
	notifier chat.Notifier
}

func NewService(r Repository, u UserLookup, n chat.Notifier) *Service {
	if n == nil {
		n = chat.NopNotifier{}
	}
	return &Service{repo: r, users: u, notifier: n}
}

type CreateInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create makes a group owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	now := models.Now()
	g := &models.Group{
		ID:          models.NewID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   userID,
		CreatedAt:   now,
	}
	if err := s.repo.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	owner := &models.GroupMembership{
		ID:       models.NewID(),
		GroupID:  g.ID,
		UserID:   userID,
		Role:     models.RoleOwner,
		JoinedAt: now,
	}
	if err := s.repo.AddMembership(ctx, owner); err != nil {
		return nil, err
	}
	return g, nil
}

// ListForUser returns the groups userID belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.Group, error) {
	ms, err := s.repo.MembershipsOfUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.GroupID)
	}
	return s.repo.GetGroups(ctx, ids)
}

// membership loads the group and the caller's membership in it.
func (s *Service) membership(ctx context.Context, groupID, userID string) (*models.Group, *models.GroupMembership, error) {
	g, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if g == nil {
		return nil, nil, ErrNotFound
	}
	m, err := s.repo.Membership(ctx, groupID, userID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, ErrNotMember
	}
	return g, m, nil
}

func (s *Service) Get(ctx context.Context, groupID, userID string) (*models.Group, error) {
	g, _, err := s.membership(ctx, groupID, userID)
	return g, err
}

// Member is a membership joined with the member's profile.
type Member struct {
	UserID    string            `json:"user_id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Role      models.MemberRole `json:"role"`
	JoinedAt  time.Time         `json:"joined_at"`
	InvitedBy *string           `json:"invited_by"`
}

func (s *Service) Members(ctx context.Context, groupID, userID string) ([]Member, error) {
	if _, _, err := s.membership(ctx, groupID, userID); err != nil {
		return nil, err
	}
	ms, err := s.repo.MembershipsOfGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.UserID)
	}
	us, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(us))
	for _, u := range us {
		byID[u.ID] = u
	}
	out := make([]Member, 0, len(ms))
	for _, m := range ms {
		mem := Member{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt, InvitedBy: m.InvitedBy}
		if u := byID[m.UserID]; u != nil {
			mem.Name, mem.Email = u.Name, u.Email
		}
		out = append(out, mem)
	}
	return out, nil
}

type AddMemberInput struct {
	UserID string            `json:"user_id" binding:"required"`
	Role   models.MemberRole `json:"role"`
}

// AddMember lets an owner or admin add a user as admin or member.
func (s *Service) AddMember(ctx context.Context, groupID, actorID string, in AddMemberInput) (*models.GroupMembership, error) {
	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, ErrInvalidRole
	}
	_, actor, err := s.membership(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanManage() {
		return nil, ErrForbidden
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	inviter := actorID
	m := &models.GroupMembership{
		ID:        models.NewID(),
		GroupID:   groupID,
		UserID:    in.UserID,
		Role:      role,
		JoinedAt:  models.Now(),
		InvitedBy: &inviter,
	}
	if err := s.repo.AddMembership(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveMember removes targetID. Members may remove themselves; owners and
// admins may remove others. The owner can neither leave nor be removed.
func (s *Service) RemoveMember(ctx context.Context, groupID, actorID, targetID string) error {
	_, actor, err := s.membership(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	target := actor
	if targetID != actorID {
		if !actor.Role.CanManage() {
			return ErrForbidden
		}
		target, err = s.repo.Membership(ctx, groupID, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrNotMember
		}
		if target.Role == models.RoleOwner || (target.Role == models.RoleAdmin && actor.Role != models.RoleOwner) {
			return ErrForbidden
		}
	}
	if target.Role == models.RoleOwner {
		return ErrOwnerLeave
	}
	return s.repo.DeleteMembership(ctx, target.ID)
}

type MessageInput struct {
	MessageSenderEncrypted   string `json:"message_sender_encrypted" binding:"required"`
	MessageReceiverEncrypted string `json:"message_receiver_encrypted"`
	MessageType              string `json:"message_type"`
	AttachmentURL            string `json:"attachment_url"`
}

// SendMessage stores a message from a member and pushes it to all members.
func (s *Service) SendMessage(ctx context.Context, groupID, senderID string, in MessageInput) (*models.GroupMessage, error) {
	if strings.TrimSpace(in.MessageSenderEncrypted) == "" {
		return nil, chat.ErrEmptyMessage
	}
	if _, _, err := s.membership(ctx, groupID, senderID); err != nil {
		return nil, err
	}
	mt := in.MessageType
	if mt == "" {
		mt = models.MessageTypeText
	}
	recv := in.MessageReceiverEncrypted
	if recv == "" {
		recv = in.MessageSenderEncrypted
	}
	gm := &models.GroupMessage{
		ID:      models.NewID(),
		GroupID: groupID,
		Message: models.Message{
			ID:                       models.NewID(),
			SenderID:                 senderID,
			MessageType:              mt,
			MessageSenderEncrypted:   in.MessageSenderEncrypted,
			MessageReceiverEncrypted: recv,
			AttachmentURL:            in.AttachmentURL,
			CreatedAt:                models.Now(),
		},
	}
	if err := s.repo.CreateMessage(ctx, gm); err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues("group").Inc()

	ms, err := s.repo.MembershipsOfGroup(ctx, groupID)
	if err == nil {
		ids := make([]string, 0, len(ms))
		for _, m := range ms {
			ids = append(ids, m.UserID)
		}
		s.notifier.Notify(ctx, ids, chat.Event{Type: chat.EventGroupMessage, Data: gm})
	}
	return gm, nil
}

func (s *Service) Messages(ctx context.Context, groupID, userID string, limit int) ([]*models.GroupMessage, error) {
	if _, _, err := s.membership(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	return s.repo.Messages(ctx, groupID, int64(limit))
}
