package chat

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository stores direct messages and per-conversation keys.
type Repository interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	// Conversation returns messages exchanged between a and b, oldest first.
	Conversation(ctx context.Context, a, b string, limit int64) ([]*models.Message, error)
	PutKey(ctx context.Context, k *models.ChatKey) error
	GetKey(ctx context.Context, pairID string) (*models.ChatKey, error)
}

type MongoRepository struct {
	messages *mongo.Collection
	keys     *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		messages: db.Collection(models.CollectionMessages),
		keys:     db.Collection(models.CollectionChatKeys),
	}
}

func (r *MongoRepository) CreateMessage(ctx context.Context, m *models.Message) error {
	_, err := r.messages.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) Conversation(ctx context.Context, a, b string, limit int64) ([]*models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "receiver_id": b},
		bson.M{"sender_id": b, "receiver_id": a},
	}}
	// newest N, reversed below
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []*models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *MongoRepository) PutKey(ctx context.Context, k *models.ChatKey) error {
	filter := bson.M{"pair_id": k.PairID}
	update := bson.M{
		"$set": bson.M{
			"encrypted_aes_key_1": k.EncryptedAESKey1,
			"encrypted_aes_key_2": k.EncryptedAESKey2,
		},
		"$setOnInsert": bson.M{"_id": k.ID, "user_ids": k.UserIDs},
	}
	_, err := r.keys.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (r *MongoRepository) GetKey(ctx context.Context, pairID string) (*models.ChatKey, error) {
	var k models.ChatKey
	if err := r.keys.FindOne(ctx, bson.M{"pair_id": pairID}).Decode(&k); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &k, nil
}

type MemoryRepository struct {
	mu       sync.Mutex
	messages []models.Message
	keys     map[string]models.ChatKey
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{keys: map[string]models.ChatKey{}}
}

func (r *MemoryRepository) CreateMessage(ctx context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *MemoryRepository) Conversation(ctx context.Context, a, b string, limit int64) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Message{}
	for _, m := range r.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			m := m
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (r *MemoryRepository) PutKey(ctx context.Context, k *models.ChatKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.keys[k.PairID]; ok {
		k.ID = old.ID
	}
	r.keys[k.PairID] = *k
	return nil
}

func (r *MemoryRepository) GetKey(ctx context.Context, pairID string) (*models.ChatKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[pairID]
	if !ok {
		return nil, nil
	}
	return &k, nil
}
