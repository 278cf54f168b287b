package items

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Filter selects listings. Zero values do not filter.
type Filter struct {
	Category models.ItemCategory
	Status   models.ItemStatus
	SellerID string
	MinPrice *float64
	MaxPrice *float64
	Search   string
	Skip     int64
	Limit    int64
}

type Repository interface {
	Create(ctx context.Context, it *models.Item) error
	Get(ctx context.Context, id string) (*models.Item, error)
	List(ctx context.Context, f Filter) ([]*models.Item, int64, error)
	// Update writes the editable fields and images of a draft or active
	// listing; any other status yields ErrImmutable.
	Update(ctx context.Context, it *models.Item) error
	// SetStatus changes the status only when the current one is in from.
	SetStatus(ctx context.Context, id string, from []models.ItemStatus, to models.ItemStatus) (bool, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, it *models.Item) error {
	_, err := r.col.InsertOne(ctx, it)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&it); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

func mongoFilter(f Filter) bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.SellerID != "" {
		q["seller_id"] = f.SellerID
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		q["price"] = price
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{bson.M{"title": re}, bson.M{"description": re}}
	}
	return q
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]*models.Item, int64, error) {
	q := mongoFilter(f)
	total, err := r.col.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetSkip(f.Skip)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	out := []*models.Item{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

var editable = []models.ItemStatus{models.ItemDraft, models.ItemActive}

func (r *MongoRepository) Update(ctx context.Context, it *models.Item) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": it.ID, "status": bson.M{"$in": editable}},
		bson.M{"$set": bson.M{
			"title":       it.Title,
			"description": it.Description,
			"price":       it.Price,
			"category":    it.Category,
			"location":    it.Location,
			"images":      it.Images,
			"updated_at":  it.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": it.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrImmutable
}

func (r *MongoRepository) SetStatus(ctx context.Context, id string, from []models.ItemStatus, to models.ItemStatus) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to, "updated_at": models.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]models.Item
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]models.Item{}}
}

func (r *MemoryRepository) Create(ctx context.Context, it *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[it.ID] = clone(it)
	return nil
}

func clone(it *models.Item) models.Item {
	c := *it
	c.Images = append([]string(nil), it.Images...)
	return c
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	c := clone(&it)
	return &c, nil
}

func matches(it models.Item, f Filter) bool {
	switch {
	case f.Category != "" && it.Category != f.Category,
		f.Status != "" && it.Status != f.Status,
		f.SellerID != "" && it.SellerID != f.SellerID,
		f.MinPrice != nil && it.Price < *f.MinPrice,
		f.MaxPrice != nil && it.Price > *f.MaxPrice:
		return false
	}
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		return strings.Contains(strings.ToLower(it.Title), s) || strings.Contains(strings.ToLower(it.Description), s)
	}
	return true
}

func (r *MemoryRepository) List(ctx context.Context, f Filter) ([]*models.Item, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.Item
	for _, it := range r.items {
		if matches(it, f) {
			c := clone(&it)
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	out := []*models.Item{}
	for i := f.Skip; i < total && (f.Limit <= 0 || i < f.Skip+f.Limit); i++ {
		out = append(out, all[i])
	}
	return out, total, nil
}

func (r *MemoryRepository) Update(ctx context.Context, it *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[it.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != models.ItemDraft && cur.Status != models.ItemActive {
		return ErrImmutable
	}
	next := clone(it)
	next.Status = cur.Status
	next.SellerID = cur.SellerID
	next.CreatedAt = cur.CreatedAt
	r.items[it.ID] = next
	return nil
}

func (r *MemoryRepository) SetStatus(ctx context.Context, id string, from []models.ItemStatus, to models.ItemStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if it.Status == s {
			it.Status = to
			it.UpdatedAt = models.Now()
			r.items[id] = it
			return true, nil
		}
	}
	return false, nil
}
