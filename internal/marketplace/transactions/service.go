// Package transactions runs purchases of marketplace listings through their
// payment and delivery states.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/phishers-marketplace/marketplace-api/internal/events"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/items"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
	"github.com/phishers-marketplace/marketplace-api/pkg/metrics"
)

var (
	ErrNotFound          = errors.New("Transaction not found")
	ErrItemNotFound      = errors.New("Item not found")
	ErrItemUnavailable   = errors.New("Item is not available for purchase")
	ErrOwnItem           = errors.New("You cannot buy your own item")
	ErrPendingPurchase   = errors.New("Item already has an open transaction")
	ErrInvalidTransition = errors.New("Invalid status transition")
	ErrForbidden         = errors.New("You are not allowed to perform this transition")
	ErrConflict          = errors.New("Transaction was modified concurrently")
	ErrInvalidInput      = errors.New("invalid transaction input")
)

// Items is what the service needs from the listing side. Lookup reports a
// missing listing as items.ErrNotFound.
type Items interface {
	Lookup(ctx context.Context, id string) (*models.Item, error)
	MarkSold(ctx context.Context, id string) error
	Relist(ctx context.Context, id string) error
}

type party int

const (
	buyer party = 1 << iota
	seller
)

// transitions lists, per current status, the reachable statuses and who may
// move there.
var transitions = map[models.TransactionStatus]map[models.TransactionStatus]party{
	models.TxPending: {
		models.TxPaid:      buyer,
		models.TxCancelled: buyer | seller,
	},
	models.TxPaid: {
		models.TxShipped:  seller,
		models.TxRefunded: seller,
	},
	models.TxShipped: {
		models.TxDelivered: buyer | seller,
	},
	models.TxDelivered: {
		models.TxCompleted: buyer,
		models.TxRefunded:  seller,
	},
}

// Allowed reports whether actor may move a transaction from one status to another.
func Allowed(from, to models.TransactionStatus, isBuyer, isSeller bool) (valid, permitted bool) {
	who, ok := transitions[from][to]
	if !ok {
		return false, false
	}
	return true, (isBuyer && who&buyer != 0) || (isSeller && who&seller != 0)
}

var paymentMethods = map[models.PaymentMethod]bool{
	models.PaymentCreditCard:   true,
	models.PaymentDebitCard:    true,
	models.PaymentPaypal:       true,
	models.PaymentBankTransfer: true,
	models.PaymentCash:         true,
	models.PaymentOther:        true,
}

type Service struct {
	repo   Repository
	items  Items
	events events.Publisher

	// serialises purchases of the same process
	purchaseMu sync.Mutex
}

func NewService(r Repository, listings Items, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{repo: r, items: listings, events: pub}
}

func (s *Service) publish(ctx context.Context, tx *models.Transaction) {
	metrics.TransactionTransitions.WithLabelValues(string(tx.Status)).Inc()
	env, err := events.NewEnvelope("transaction."+string(tx.Status), tx)
	if err != nil {
		logger.Errorf("transactions: envelope: %v", err)
		return
	}
	_ = s.events.Publish(ctx, tx.ItemID, env)
}

type PurchaseInput struct {
	PaymentMethod   *models.PaymentMethod `json:"payment_method"`
	ShippingAddress *string               `json:"shipping_address"`
	Notes           *string               `json:"notes"`
}

// Purchase opens a pending transaction for an active listing at its current price.
func (s *Service) Purchase(ctx context.Context, buyerID, itemID string, in PurchaseInput) (*models.Transaction, error) {
	if in.PaymentMethod != nil && !paymentMethods[*in.PaymentMethod] {
		return nil, ErrInvalidInput
	}
	s.purchaseMu.Lock()
	defer s.purchaseMu.Unlock()

	it, err := s.items.Lookup(ctx, itemID)
	if errors.Is(err, items.ErrNotFound) || (err == nil && it == nil) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if it.SellerID == buyerID {
		return nil, ErrOwnItem
	}
	if it.Status != models.ItemActive {
		return nil, ErrItemUnavailable
	}
	open, err := s.repo.OpenForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrPendingPurchase
	}
	now := models.Now()
	tx := &models.Transaction{
		ID:              models.NewID(),
		ItemID:          it.ID,
		BuyerID:         buyerID,
		SellerID:        it.SellerID,
		Price:           it.Price,
		Status:          models.TxPending,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: in.ShippingAddress,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}
	logger.Infof("transaction %s opened: item=%s buyer=%s price=%.2f", tx.ID, it.ID, buyerID, it.Price)
	s.publish(ctx, tx)
	return tx, nil
}

// Get returns a transaction visible to its buyer, its seller and admins.
func (s *Service) Get(ctx context.Context, id, userID string, isAdmin bool) (*models.Transaction, error) {
	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil || (!isAdmin && tx.BuyerID != userID && tx.SellerID != userID) {
		return nil, ErrNotFound
	}
	return tx, nil
}

func (s *Service) List(ctx context.Context, userID string, role Role, status models.TransactionStatus) ([]*models.Transaction, error) {
	if role != RoleAny && role != RoleBuyer && role != RoleSeller {
		return nil, ErrInvalidInput
	}
	if status != "" && !knownStatus(status) {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, Filter{UserID: userID, Role: role, Status: status})
}

type StatusInput struct {
	Status         models.TransactionStatus `json:"status" binding:"required"`
	PaymentID      *string                  `json:"payment_id"`
	TrackingNumber *string                  `json:"tracking_number"`
	Notes          *string                  `json:"notes"`
}

// UpdateStatus applies one step of the state machine and its side effects on
// the listing: paid marks it sold, a refund puts it back on sale.
func (s *Service) UpdateStatus(ctx context.Context, id, userID string, in StatusInput) (*models.Transaction, error) {
	tx, err := s.Get(ctx, id, userID, false)
	if err != nil {
		return nil, err
	}
	from := tx.Status
	valid, permitted := Allowed(from, in.Status, tx.BuyerID == userID, tx.SellerID == userID)
	if !valid {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, in.Status)
	}
	if !permitted {
		return nil, ErrForbidden
	}

	// paid reserves the listing before the transaction moves; a failed
	// write hands it back
	if in.Status == models.TxPaid {
		if err := s.items.MarkSold(ctx, tx.ItemID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrItemUnavailable, err)
		}
	}

	now := models.Now()
	tx.Status = in.Status
	tx.UpdatedAt = now
	if in.PaymentID != nil {
		tx.PaymentID = trimmed(in.PaymentID)
	}
	if in.TrackingNumber != nil {
		tx.TrackingNumber = trimmed(in.TrackingNumber)
	}
	if in.Notes != nil {
		tx.Notes = trimmed(in.Notes)
	}
	if in.Status == models.TxCompleted {
		tx.CompletedAt = &now
	}
	ok, err := s.repo.Replace(ctx, tx, from)
	if err != nil || !ok {
		if in.Status == models.TxPaid {
			s.relist(context.WithoutCancel(ctx), tx)
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	if in.Status == models.TxRefunded {
		s.relist(ctx, tx)
	}
	logger.Infof("transaction %s: %s -> %s by %s", tx.ID, from, tx.Status, userID)
	s.publish(ctx, tx)
	return tx, nil
}

func (s *Service) relist(ctx context.Context, tx *models.Transaction) {
	if err := s.items.Relist(ctx, tx.ItemID); err != nil {
		logger.Warnf("transaction %s (%s): item %s not relisted: %v", tx.ID, tx.Status, tx.ItemID, err)
	}
}

func knownStatus(st models.TransactionStatus) bool {
	if _, ok := transitions[st]; ok {
		return true
	}
	return st == models.TxCompleted || st == models.TxCancelled || st == models.TxRefunded
}

func trimmed(p *string) *string {
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
