// Package chat implements end-to-end encrypted direct messaging. Message
// bodies and conversation keys arrive encrypted; the server only stores and
// relays them.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/metrics"
)

var (
	ErrReceiverNotFound = errors.New("Receiver not found")
	ErrSelfMessage      = errors.New("You cannot send a message to yourself")
	ErrEmptyMessage     = errors.New("Message content is required")
	ErrKeysNotFound     = errors.New("Chat keys not found")
)

// DefaultHistoryLimit bounds History when the caller passes no limit.
const DefaultHistoryLimit = 500

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type Contacts interface {
	Friends(ctx context.Context, userID string) ([]*models.User, error)
}

// Notifier pushes live events to connected users.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, ev Event)
}

type Service struct {
	repo     Repository
	users    UserLookup
	contacts Contacts
	notifier Notifier
}

func NewService(r Repository, u UserLookup, c Contacts, n Notifier) *Service {
	if n == nil {
		n = NopNotifier{}
	}
	return &Service{repo: r, users: u, contacts: c, notifier: n}
}

// Contacts lists the users the caller can chat with.
func (s *Service) Contacts(ctx context.Context, userID string) ([]*models.User, error) {
	return s.contacts.Friends(ctx, userID)
}

// SendInput is the body of a direct message.
type SendInput struct {
	ReceiverID               string `json:"receiver_id" binding:"required"`
	MessageSenderEncrypted   string `json:"message_sender_encrypted" binding:"required"`
	MessageReceiverEncrypted string `json:"message_receiver_encrypted" binding:"required"`
	MessageType              string `json:"message_type"`
	AttachmentURL            string `json:"attachment_url"`
}

func (s *Service) Send(ctx context.Context, senderID string, in SendInput) (*models.Message, error) {
	if in.ReceiverID == senderID {
		return nil, ErrSelfMessage
	}
	if strings.TrimSpace(in.MessageSenderEncrypted) == "" || strings.TrimSpace(in.MessageReceiverEncrypted) == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.requireUser(ctx, in.ReceiverID); err != nil {
		return nil, err
	}
	mt := in.MessageType
	if mt == "" {
		mt = models.MessageTypeText
	}
	m := &models.Message{
		ID:                       models.NewID(),
		SenderID:                 senderID,
		ReceiverID:               in.ReceiverID,
		MessageType:              mt,
		MessageSenderEncrypted:   in.MessageSenderEncrypted,
		MessageReceiverEncrypted: in.MessageReceiverEncrypted,
		AttachmentURL:            in.AttachmentURL,
		CreatedAt:                models.Now(),
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues("direct").Inc()
	s.notifier.Notify(ctx, []string{m.ReceiverID, m.SenderID}, Event{Type: EventMessage, Data: m})
	return m, nil
}

func (s *Service) requireUser(ctx context.Context, id string) error {
	_, err := s.users.GetByID(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return ErrReceiverNotFound
	}
	return err
}

// History returns the conversation between userID and otherID, oldest first.
func (s *Service) History(ctx context.Context, userID, otherID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.repo.Conversation(ctx, userID, otherID, int64(limit))
}

// KeyPair is the caller's view of a conversation key: Mine is encrypted for
// the caller, Peer for the other participant.
type KeyPair struct {
	PeerID string `json:"peer_id"`
	Mine   []byte `json:"encrypted_key"`
	Peer   []byte `json:"peer_encrypted_key"`
}

// PutKeys stores the conversation key of userID and peerID, replacing any
// previous one.
func (s *Service) PutKeys(ctx context.Context, userID, peerID string, mine, peer []byte) (*KeyPair, error) {
	if userID == peerID {
		return nil, ErrSelfMessage
	}
	if len(mine) == 0 || len(peer) == 0 {
		return nil, ErrEmptyMessage
	}
	if err := s.requireUser(ctx, peerID); err != nil {
		return nil, err
	}
	ids, pair := models.ChatPair(userID, peerID)
	k := &models.ChatKey{ID: models.NewID(), PairID: pair, UserIDs: ids}
	if ids[0] == userID {
		k.EncryptedAESKey1, k.EncryptedAESKey2 = mine, peer
	} else {
		k.EncryptedAESKey1, k.EncryptedAESKey2 = peer, mine
	}
	if err := s.repo.PutKey(ctx, k); err != nil {
		return nil, err
	}
	return &KeyPair{PeerID: peerID, Mine: mine, Peer: peer}, nil
}

func (s *Service) GetKeys(ctx context.Context, userID, peerID string) (*KeyPair, error) {
	ids, pair := models.ChatPair(userID, peerID)
	k, err := s.repo.GetKey(ctx, pair)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, ErrKeysNotFound
	}
	kp := &KeyPair{PeerID: peerID}
	if ids[0] == userID {
		kp.Mine, kp.Peer = k.EncryptedAESKey1, k.EncryptedAESKey2
	} else {
		kp.Mine, kp.Peer = k.EncryptedAESKey2, k.EncryptedAESKey1
	}
	return kp, nil
}
