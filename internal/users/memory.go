package users

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
)

// MemoryUserRepository is an in-process UserRepository for tests and the
// DB_MEMORY_FALLBACK mode.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	byID  map[string]models.User
	order []string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[string]models.User{}}
}

func (r *MemoryUserRepository) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.byID {
		if x.Email == u.Email {
			return ErrEmailTaken
		}
	}
	r.byID[u.ID] = *u
	r.order = append(r.order, u.ID)
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.User{}
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			u := u
			out = append(out, &u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryUserRepository) List(ctx context.Context, f ListFilter) ([]*models.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(f.Search)
	var matched []*models.User
	// newest first; insertion order breaks ties
	for i := len(r.order) - 1; i >= 0; i-- {
		u := r.byID[r.order[i]]
		if needle != "" && !strings.Contains(strings.ToLower(u.Name), needle) && !strings.Contains(strings.ToLower(u.Email), needle) {
			continue
		}
		matched = append(matched, &u)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	out := []*models.User{}
	for i := f.Skip; i < total && (f.Limit <= 0 || i < f.Skip+f.Limit); i++ {
		out = append(out, matched[i])
	}
	return out, total, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return ErrNotFound
	}
	for id, x := range r.byID {
		if id != u.ID && x.Email == u.Email {
			return ErrEmailTaken
		}
	}
	r.byID[u.ID] = *u
	return nil
}
