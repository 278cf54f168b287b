// Package friends manages friendships between users.
package friends

import (
	"context"
	"errors"
	"sync"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrSelf           = errors.New("You cannot add yourself as a friend")
	ErrUserNotFound   = errors.New("User not found")
	ErrAlreadyFriends = errors.New("Friendship already exists")
	ErrNotFriends     = errors.New("Friendship not found")
)

type Repository interface {
	Create(ctx context.Context, f *models.Friendship) error
	// Between returns the friendship linking a and b in either direction.
	Between(ctx context.Context, a, b string) (*models.Friendship, error)
	// ForUser lists friendships of userID with the given status.
	ForUser(ctx context.Context, userID string, status models.FriendshipStatus) ([]*models.Friendship, error)
	Delete(ctx context.Context, id string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, f *models.Friendship) error {
	_, err := r.col.InsertOne(ctx, f)
	return err
}

func (r *MongoRepository) Between(ctx context.Context, a, b string) (*models.Friendship, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"requester_id": a, "recipient_id": b},
		bson.M{"requester_id": b, "recipient_id": a},
	}}
	var f models.Friendship
	if err := r.col.FindOne(ctx, filter).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *MongoRepository) ForUser(ctx context.Context, userID string, status models.FriendshipStatus) ([]*models.Friendship, error) {
	filter := bson.M{
		"status": status,
		"$or":    bson.A{bson.M{"requester_id": userID}, bson.M{"recipient_id": userID}},
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []*models.Friendship{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

type MemoryRepository struct {
	mu   sync.Mutex
	list []models.Friendship
}

func NewMemoryRepository() *MemoryRepository { return &MemoryRepository{} }

func (r *MemoryRepository) Create(ctx context.Context, f *models.Friendship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, *f)
	return nil
}

func (r *MemoryRepository) Between(ctx context.Context, a, b string) (*models.Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.list {
		if (f.RequesterID == a && f.RecipientID == b) || (f.RequesterID == b && f.RecipientID == a) {
			f := f
			return &f, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ForUser(ctx context.Context, userID string, status models.FriendshipStatus) ([]*models.Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Friendship{}
	for _, f := range r.list {
		if f.Status == status && (f.RequesterID == userID || f.RecipientID == userID) {
			f := f
			out = append(out, &f)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.list {
		if f.ID == id {
			r.list = append(r.list[:i], r.list[i+1:]...)
			return nil
		}
	}
	return nil
}
