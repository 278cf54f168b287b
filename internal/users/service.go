package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/passwords"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/phishers-marketplace/marketplace-api/pkg/metrics"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	a, err := mail.ParseAddress(email)
	return err == nil && a.Address == email
}

// Register creates a regular account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" || password == "" || !validEmail(email) {
		return nil, ErrInvalidInput
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	return s.create(ctx, name, email, password, false)
}

func (s *Service) create(ctx context.Context, name, email, password string, admin bool) (*models.User, error) {
	hash, err := passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		ID:           models.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      admin,
		CreatedAt:    models.Now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	metrics.UsersRegistered.Inc()
	logger.Infof("user registered: %s", u)
	return u, nil
}

// Authenticate returns the user when email and password match.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if u == nil {
		logger.Warnf("authentication failed: unknown user %s", email)
		return nil, ErrInvalidCredentials
	}
	if !passwords.Verify(password, u.PasswordHash) {
		logger.Warnf("authentication failed: bad password for %s", email)
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetByEmail returns the user or ErrNotFound.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// GetByID returns the user or ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	return s.repo.GetByIDs(ctx, ids)
}

// Page is one page of a user listing.
type Page struct {
	Users []*models.User `json:"users"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ClampPage applies listing defaults: page starts at 1, limit defaults to
// DefaultPageSize and is capped at MaxPageSize.
func ClampPage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	if page < 1 || limit < 1 || limit > MaxPageSize {
		return 0, 0, ErrInvalidInput
	}
	return page, limit, nil
}

// List returns users newest first, optionally filtered by search.
func (s *Service) List(ctx context.Context, page, limit int, search string) (*Page, error) {
	page, limit, err := ClampPage(page, limit)
	if err != nil {
		return nil, err
	}
	list, total, err := s.repo.List(ctx, ListFilter{
		Search: strings.TrimSpace(search),
		Skip:   int64((page - 1) * limit),
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, err
	}
	return &Page{Users: list, Total: total, Page: page, Limit: limit}, nil
}

// AdminUpdate carries optional fields; nil means unchanged.
type AdminUpdate struct {
	Name             *string `json:"name"`
	Email            *string `json:"email"`
	IsAdmin          *bool   `json:"is_admin"`
	IsSuspended      *bool   `json:"is_suspended"`
	SuspensionReason *string `json:"suspension_reason"`
}

func (s *Service) AdminUpdate(ctx context.Context, id string, in AdminUpdate) (*models.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		if n == "" {
			return nil, ErrInvalidInput
		}
		u.Name = n
	}
	if in.Email != nil {
		e := NormalizeEmail(*in.Email)
		if !validEmail(e) {
			return nil, ErrInvalidInput
		}
		u.Email = e
	}
	if in.IsAdmin != nil {
		u.IsAdmin = *in.IsAdmin
	}
	if in.IsSuspended != nil {
		u.IsSuspended = *in.IsSuspended
		if !u.IsSuspended {
			u.SuspensionReason = nil
		}
	}
	if in.SuspensionReason != nil && u.IsSuspended {
		r := *in.SuspensionReason
		u.SuspensionReason = &r
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Suspend blocks the account; reason is required.
func (s *Service) Suspend(ctx context.Context, id, reason string) (*models.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrInvalidInput
	}
	t := true
	u, err := s.AdminUpdate(ctx, id, AdminUpdate{IsSuspended: &t, SuspensionReason: &reason})
	if err == nil {
		logger.Warnf("user suspended: %s reason=%q", u, reason)
	}
	return u, err
}

func (s *Service) Unsuspend(ctx context.Context, id string) (*models.User, error) {
	f := false
	return s.AdminUpdate(ctx, id, AdminUpdate{IsSuspended: &f})
}

// AdminOutcome reports what EnsureAdmin did.
type AdminOutcome string

const (
	AdminExists   AdminOutcome = "exists"
	AdminPromoted AdminOutcome = "promoted"
	AdminCreated  AdminOutcome = "created"
)

// EnsureAdmin makes email an administrator, creating the account when it
// does not exist yet (name and password are then required).
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (*models.User, AdminOutcome, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return nil, "", ErrInvalidInput
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if u != nil {
		if u.IsAdmin {
			return u, AdminExists, nil
		}
		u.IsAdmin = true
		if err := s.repo.Update(ctx, u); err != nil {
			return nil, "", err
		}
		return u, AdminPromoted, nil
	}
	if password == "" || strings.TrimSpace(name) == "" {
		return nil, "", ErrMissingAdminDetails
	}
	u, err = s.create(ctx, strings.TrimSpace(name), email, password, true)
	if err != nil {
		return nil, "", err
	}
	return u, AdminCreated, nil
}
