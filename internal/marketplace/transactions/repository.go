package transactions

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

type Role string

const (
	RoleAny    Role = ""
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

type Filter struct {
	UserID string
	Role   Role
	Status models.TransactionStatus
}

type Repository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	Get(ctx context.Context, id string) (*models.Transaction, error)
	List(ctx context.Context, f Filter) ([]*models.Transaction, error)
	// OpenForItem returns the item's transaction that is not yet finished.
	OpenForItem(ctx context.Context, itemID string) (*models.Transaction, error)
	// Replace stores tx when the stored status still equals from.
	Replace(ctx context.Context, tx *models.Transaction, from models.TransactionStatus) (bool, error)
}

var openStatuses = []models.TransactionStatus{models.TxPending, models.TxPaid, models.TxShipped, models.TxDelivered}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, tx *models.Transaction) error {
	_, err := r.col.InsertOne(ctx, tx)
	return err
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.col.FindOne(ctx, filter).Decode(&tx); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) OpenForItem(ctx context.Context, itemID string) (*models.Transaction, error) {
	return r.findOne(ctx, bson.M{"item_id": itemID, "status": bson.M{"$in": openStatuses}})
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]*models.Transaction, error) {
	q := bson.M{}
	switch f.Role {
	case RoleBuyer:
		q["buyer_id"] = f.UserID
	case RoleSeller:
		q["seller_id"] = f.UserID
	default:
		q["$or"] = bson.A{bson.M{"buyer_id": f.UserID}, bson.M{"seller_id": f.UserID}}
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := []*models.Transaction{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Replace(ctx context.Context, tx *models.Transaction, from models.TransactionStatus) (bool, error) {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": tx.ID, "status": from}, tx)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

type MemoryRepository struct {
	mu  sync.Mutex
	txs map[string]models.Transaction
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{txs: map[string]models.Transaction{}}
}

func (r *MemoryRepository) Create(ctx context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs[tx.ID] = *tx
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (r *MemoryRepository) OpenForItem(ctx context.Context, itemID string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.ItemID == itemID && tx.Status.Open() {
			tx := tx
			return &tx, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) List(ctx context.Context, f Filter) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Transaction{}
	for _, tx := range r.txs {
		switch f.Role {
		case RoleBuyer:
			if tx.BuyerID != f.UserID {
				continue
			}
		case RoleSeller:
			if tx.SellerID != f.UserID {
				continue
			}
		default:
			if tx.BuyerID != f.UserID && tx.SellerID != f.UserID {
				continue
			}
		}
		if f.Status != "" && tx.Status != f.Status {
			continue
		}
		tx := tx
		out = append(out, &tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Replace(ctx context.Context, tx *models.Transaction, from models.TransactionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.txs[tx.ID]
	if !ok || cur.Status != from {
		return false, nil
	}
	r.txs[tx.ID] = *tx
	return true, nil
}
