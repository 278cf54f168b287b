package friends

import (
	"context"
	"errors"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
)

// UserLookup is the part of the user service friends depends on.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}

type Service struct {
	repo  Repository
	users UserLookup
}

func NewService(r Repository, u UserLookup) *Service {
	return &Service{repo: r, users: u}
}

// AddFriend records an accepted friendship between userID and friendID.
func (s *Service) AddFriend(ctx context.Context, userID, friendID string) (*models.Friendship, error) {
	if userID == friendID {
		return nil, ErrSelf
	}
	if _, err := s.users.GetByID(ctx, friendID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	existing, err := s.repo.Between(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyFriends
	}
	f := &models.Friendship{
		ID:          models.NewID(),
		RequesterID: userID,
		RecipientID: friendID,
		Status:      models.FriendshipAccepted,
		CreatedAt:   models.Now(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	logger.Infof("friendship %s: %s <-> %s", f.ID, userID, friendID)
	return f, nil
}

// FriendIDs returns the ids of users with an accepted friendship with userID.
func (s *Service) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	list, err := s.repo.ForUser(ctx, userID, models.FriendshipAccepted)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, f := range list {
		ids = append(ids, f.Other(userID))
	}
	return ids, nil
}

func (s *Service) Friends(ctx context.Context, userID string) ([]*models.User, error) {
	ids, err := s.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.GetByIDs(ctx, ids)
}

// AreFriends reports whether an accepted friendship links a and b.
func (s *Service) AreFriends(ctx context.Context, a, b string) (bool, error) {
	f, err := s.repo.Between(ctx, a, b)
	if err != nil {
		return false, err
	}
	return f != nil && f.Status == models.FriendshipAccepted, nil
}

func (s *Service) RemoveFriend(ctx context.Context, userID, friendID string) error {
	f, err := s.repo.Between(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if f == nil {
		return ErrNotFriends
	}
	return s.repo.Delete(ctx, f.ID)
}
