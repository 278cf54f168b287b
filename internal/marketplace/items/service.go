// Package items manages marketplace listings and their images.
package items

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phishers-marketplace/marketplace-api/internal/events"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/storage"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/phishers-marketplace/marketplace-api/pkg/metrics"
)

var (
	ErrNotFound           = errors.New("Item not found")
	ErrForbidden          = errors.New("Only the seller can modify this item")
	ErrImmutable          = errors.New("Sold or removed items cannot be modified")
	ErrInvalidInput       = errors.New("invalid item input")
	ErrInvalidImage       = errors.New("Only image uploads are accepted")
	ErrTooManyImages      = errors.New("Image limit reached")
	ErrStorageUnavailable = errors.New("Image storage is not configured")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxImages       = 10
	MaxImageBytes   = 10 << 20
	ImageURLExpiry  = 15 * time.Minute
)

var categories = map[models.ItemCategory]bool{
	models.CategoryElectronics: true,
	models.CategoryClothing:    true,
	models.CategoryHome:        true,
	models.CategoryBooks:       true,
	models.CategorySports:      true,
	models.CategoryToys:        true,
	models.CategoryVehicles:    true,
	models.CategoryOther:       true,
}

var statuses = map[models.ItemStatus]bool{
	models.ItemDraft:   true,
	models.ItemActive:  true,
	models.ItemSold:    true,
	models.ItemRemoved: true,
}

// Actor is the authenticated caller.
type Actor struct {
	UserID  string
	IsAdmin bool
}

type Service struct {
	repo   Repository
	store  storage.ObjectStore
	events events.Publisher
}

// NewService wires the item service; store may be nil when image storage is
// not configured.
func NewService(r Repository, store storage.ObjectStore, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{repo: r, store: store, events: pub}
}

func (s *Service) publish(ctx context.Context, eventType string, it *models.Item) {
	env, err := events.NewEnvelope(eventType, it)
	if err != nil {
		logger.Errorf("items: envelope %s: %v", eventType, err)
		return
	}
	// event delivery never fails the request
	_ = s.events.Publish(ctx, it.ID, env)
}

type CreateInput struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	Price       float64             `json:"price" binding:"required"`
	Category    models.ItemCategory `json:"category"`
	Location    *string             `json:"location"`
	Publish     bool                `json:"publish"`
}

func (s *Service) Create(ctx context.Context, sellerID string, in CreateInput) (*models.Item, error) {
	title := strings.TrimSpace(in.Title)
	cat := in.Category
	if cat == "" {
		cat = models.CategoryOther
	}
	if title == "" || in.Price <= 0 || !categories[cat] {
		return nil, ErrInvalidInput
	}
	status := models.ItemDraft
	if in.Publish {
		status = models.ItemActive
	}
	now := models.Now()
	it := &models.Item{
		ID:          models.NewID(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		SellerID:    sellerID,
		Category:    cat,
		Status:      status,
		Location:    in.Location,
		Images:      []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, err
	}
	metrics.ItemsCreated.Inc()
	s.publish(ctx, "item.created", it)
	return it, nil
}

// visible reports whether a can see it: active and sold listings are public,
// drafts and removed listings only to their seller and admins.
func visible(it *models.Item, a Actor) bool {
	if it.Status == models.ItemActive || it.Status == models.ItemSold {
		return true
	}
	return a.IsAdmin || it.SellerID == a.UserID
}

func (s *Service) Get(ctx context.Context, id string, a Actor) (*models.Item, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it == nil || !visible(it, a) {
		return nil, ErrNotFound
	}
	return it, nil
}

type ListQuery struct {
	Category models.ItemCategory `form:"category"`
	Status   models.ItemStatus   `form:"status"`
	SellerID string              `form:"seller_id"`
	MinPrice *float64            `form:"min_price"`
	MaxPrice *float64            `form:"max_price"`
	Search   string              `form:"search"`
	Page     int                 `form:"page"`
	Limit    int                 `form:"limit"`
}

type Page struct {
	Items []*models.Item `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// List returns listings newest first. Without a status it lists active ones;
// drafts and removed listings are limited to the caller's own unless admin.
func (s *Service) List(ctx context.Context, q ListQuery, a Actor) (*Page, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	if q.Page < 1 || q.Limit < 1 || q.Limit > MaxPageSize {
		return nil, ErrInvalidInput
	}
	if q.Status == "" {
		q.Status = models.ItemActive
	}
	if !statuses[q.Status] || (q.Category != "" && !categories[q.Category]) {
		return nil, ErrInvalidInput
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, ErrInvalidInput
	}
	f := Filter{
		Category: q.Category,
		Status:   q.Status,
		SellerID: q.SellerID,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Search:   strings.TrimSpace(q.Search),
		Skip:     int64((q.Page - 1) * q.Limit),
		Limit:    int64(q.Limit),
	}
	if (q.Status == models.ItemDraft || q.Status == models.ItemRemoved) && !a.IsAdmin {
		f.SellerID = a.UserID
	}
	list, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page{Items: list, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// owned loads a listing the actor may modify.
func (s *Service) owned(ctx context.Context, id string, a Actor) (*models.Item, error) {
	it, err := s.Get(ctx, id, a)
	if err != nil {
		return nil, err
	}
	if it.SellerID != a.UserID {
		return nil, ErrForbidden
	}
	if it.Status == models.ItemSold || it.Status == models.ItemRemoved {
		return nil, ErrImmutable
	}
	return it, nil
}

type UpdateInput struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Price       *float64             `json:"price"`
	Category    *models.ItemCategory `json:"category"`
	Location    *string              `json:"location"`
}

func (s *Service) Update(ctx context.Context, id string, a Actor, in UpdateInput) (*models.Item, error) {
	it, err := s.owned(ctx, id, a)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return nil, ErrInvalidInput
		}
		it.Title = t
	}
	if in.Description != nil {
		it.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, ErrInvalidInput
		}
		it.Price = *in.Price
	}
	if in.Category != nil {
		if !categories[*in.Category] {
			return nil, ErrInvalidInput
		}
		it.Category = *in.Category
	}
	if in.Location != nil {
		loc := strings.TrimSpace(*in.Location)
		if loc == "" {
			it.Location = nil
		} else {
			it.Location = &loc
		}
	}
	it.UpdatedAt = models.Now()
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, err
	}
	s.publish(ctx, "item.updated", it)
	return it, nil
}

// Publish makes a draft visible to buyers. Publishing an active listing is a no-op.
func (s *Service) Publish(ctx context.Context, id string, a Actor) (*models.Item, error) {
	it, err := s.owned(ctx, id, a)
	if err != nil {
		return nil, err
	}
	if it.Status == models.ItemActive {
		return it, nil
	}
	ok, err := s.repo.SetStatus(ctx, id, []models.ItemStatus{models.ItemDraft}, models.ItemActive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrImmutable
	}
	it.Status = models.ItemActive
	s.publish(ctx, "item.published", it)
	return it, nil
}

// Remove withdraws a listing; the seller or an admin may do it.
func (s *Service) Remove(ctx context.Context, id string, a Actor) error {
	it, err := s.Get(ctx, id, a)
	if err != nil {
		return err
	}
	if it.SellerID != a.UserID && !a.IsAdmin {
		return ErrForbidden
	}
	ok, err := s.repo.SetStatus(ctx, id, []models.ItemStatus{models.ItemDraft, models.ItemActive}, models.ItemRemoved)
	if err != nil {
		return err
	}
	if !ok {
		return ErrImmutable
	}
	it.Status = models.ItemRemoved
	s.publish(ctx, "item.removed", it)
	return nil
}

// AddImage stores an image for the listing under items/<id>/<uuid><ext>.
func (s *Service) AddImage(ctx context.Context, id string, a Actor, filename, contentType string, size int64, r io.Reader) (*models.Item, error) {
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}
	if !strings.HasPrefix(contentType, "image/") || size <= 0 || size > MaxImageBytes {
		return nil, ErrInvalidImage
	}
	it, err := s.owned(ctx, id, a)
	if err != nil {
		return nil, err
	}
	if len(it.Images) >= MaxImages {
		return nil, ErrTooManyImages
	}
	key := fmt.Sprintf("items/%s/%s%s", it.ID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	if err := s.store.Upload(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	it.Images = append(it.Images, key)
	it.UpdatedAt = models.Now()
	if err := s.repo.Update(ctx, it); err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}
	return it, nil
}

// ImageURL returns a short-lived download URL for image index of the listing.
func (s *Service) ImageURL(ctx context.Context, id string, index int, a Actor) (string, error) {
	if s.store == nil {
		return "", ErrStorageUnavailable
	}
	it, err := s.Get(ctx, id, a)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(it.Images) {
		return "", ErrNotFound
	}
	return s.store.PresignedURL(ctx, it.Images[index], ImageURLExpiry)
}

// Lookup returns a listing regardless of visibility.
func (s *Service) Lookup(ctx context.Context, id string) (*models.Item, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, ErrNotFound
	}
	return it, nil
}

// MarkSold moves an active listing to sold.
func (s *Service) MarkSold(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.ItemActive, models.ItemSold, "item.sold")
}

// Relist moves a sold listing back to active.
func (s *Service) Relist(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.ItemSold, models.ItemActive, "item.relisted")
}

func (s *Service) transition(ctx context.Context, id string, from, to models.ItemStatus, eventType string) error {
	ok, err := s.repo.SetStatus(ctx, id, []models.ItemStatus{from}, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: item %s is not %s", ErrImmutable, id, from)
	}
	if it, err := s.repo.Get(ctx, id); err == nil && it != nil {
		s.publish(ctx, eventType, it)
	}
	return nil
}
