package groups

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

type Repository interface {
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	GetGroups(ctx context.Context, ids []string) ([]*models.Group, error)

	AddMembership(ctx context.Context, m *models.GroupMembership) error
	Membership(ctx context.Context, groupID, userID string) (*models.GroupMembership, error)
	MembershipsOfGroup(ctx context.Context, groupID string) ([]*models.GroupMembership, error)
	MembershipsOfUser(ctx context.Context, userID string) ([]*models.GroupMembership, error)
	DeleteMembership(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, m *models.GroupMessage) error
	Messages(ctx context.Context, groupID string, limit int64) ([]*models.GroupMessage, error)
}

type MongoRepository struct {
	groups      *mongo.Collection
	memberships *mongo.Collection
	messages    *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		groups:      db.Collection(models.CollectionGroups),
		memberships: db.Collection(models.CollectionGroupMemberships),
		messages:    db.Collection(models.CollectionGroupMessages),
	}
}

func (r *MongoRepository) CreateGroup(ctx context.Context, g *models.Group) error {
	_, err := r.groups.InsertOne(ctx, g)
	return err
}

func (r *MongoRepository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := r.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *MongoRepository) GetGroups(ctx context.Context, ids []string) ([]*models.Group, error) {
	out := []*models.Group{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.groups.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) AddMembership(ctx context.Context, m *models.GroupMembership) error {
	if _, err := r.memberships.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyMember
		}
		return err
	}
	return nil
}

func (r *MongoRepository) Membership(ctx context.Context, groupID, userID string) (*models.GroupMembership, error) {
	var m models.GroupMembership
	if err := r.memberships.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) findMemberships(ctx context.Context, filter bson.M) ([]*models.GroupMembership, error) {
	cur, err := r.memberships.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []*models.GroupMembership{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) MembershipsOfGroup(ctx context.Context, groupID string) ([]*models.GroupMembership, error) {
	return r.findMemberships(ctx, bson.M{"group_id": groupID})
}

func (r *MongoRepository) MembershipsOfUser(ctx context.Context, userID string) ([]*models.GroupMembership, error) {
	return r.findMemberships(ctx, bson.M{"user_id": userID})
}

func (r *MongoRepository) DeleteMembership(ctx context.Context, id string) error {
	_, err := r.memberships.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) CreateMessage(ctx context.Context, m *models.GroupMessage) error {
	_, err := r.messages.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) Messages(ctx context.Context, groupID string, limit int64) ([]*models.GroupMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "message.created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.messages.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, err
	}
	out := []*models.GroupMessage{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

type MemoryRepository struct {
	mu          sync.Mutex
	groups      map[string]models.Group
	memberships []models.GroupMembership
	messages    []models.GroupMessage
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{groups: map[string]models.Group{}}
}

func (r *MemoryRepository) CreateGroup(ctx context.Context, g *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = *g
	return nil
}

func (r *MemoryRepository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *MemoryRepository) GetGroups(ctx context.Context, ids []string) ([]*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Group{}
	for _, id := range ids {
		if g, ok := r.groups[id]; ok {
			g := g
			out = append(out, &g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) AddMembership(ctx context.Context, m *models.GroupMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.memberships {
		if x.GroupID == m.GroupID && x.UserID == m.UserID {
			return ErrAlreadyMember
		}
	}
	r.memberships = append(r.memberships, *m)
	return nil
}

func (r *MemoryRepository) Membership(ctx context.Context, groupID, userID string) (*models.GroupMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.memberships {
		if x.GroupID == groupID && x.UserID == userID {
			x := x
			return &x, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) filter(keep func(models.GroupMembership) bool) []*models.GroupMembership {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.GroupMembership{}
	for _, x := range r.memberships {
		if keep(x) {
			x := x
			out = append(out, &x)
		}
	}
	return out
}

func (r *MemoryRepository) MembershipsOfGroup(ctx context.Context, groupID string) ([]*models.GroupMembership, error) {
	return r.filter(func(m models.GroupMembership) bool { return m.GroupID == groupID }), nil
}

func (r *MemoryRepository) MembershipsOfUser(ctx context.Context, userID string) ([]*models.GroupMembership, error) {
	return r.filter(func(m models.GroupMembership) bool { return m.UserID == userID }), nil
}

func (r *MemoryRepository) DeleteMembership(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.memberships {
		if x.ID == id {
			r.memberships = append(r.memberships[:i], r.memberships[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepository) CreateMessage(ctx context.Context, m *models.GroupMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *MemoryRepository) Messages(ctx context.Context, groupID string, limit int64) ([]*models.GroupMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.GroupMessage{}
	for _, m := range r.messages {
		if m.GroupID == groupID {
			m := m
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Message.CreatedAt.Before(out[j].Message.CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}
