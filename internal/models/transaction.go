package models

import "time"

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxPaid      TransactionStatus = "paid"
	TxShipped   TransactionStatus = "shipped"
	TxDelivered TransactionStatus = "delivered"
	TxCompleted TransactionStatus = "completed"
	TxCancelled TransactionStatus = "cancelled"
	TxRefunded  TransactionStatus = "refunded"
)

// Open reports whether the transaction still holds its item.
func (s TransactionStatus) Open() bool {
	switch s {
	case TxPending, TxPaid, TxShipped, TxDelivered:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentDebitCard    PaymentMethod = "debit_card"
	PaymentPaypal       PaymentMethod = "paypal"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCash         PaymentMethod = "cash"
	PaymentOther        PaymentMethod = "other"
)

type Transaction struct {
	ID              string            `bson:"_id" json:"id"`
	ItemID          string            `bson:"item_id" json:"item_id"`
	BuyerID         string            `bson:"buyer_id" json:"buyer_id"`
	SellerID        string            `bson:"seller_id" json:"seller_id"`
	Price           float64           `bson:"price" json:"price"`
	Status          TransactionStatus `bson:"status" json:"status"`
	PaymentMethod   *PaymentMethod    `bson:"payment_method" json:"payment_method"`
	PaymentID       *string           `bson:"payment_id" json:"payment_id"`
	ShippingAddress *string           `bson:"shipping_address" json:"shipping_address"`
	TrackingNumber  *string           `bson:"tracking_number" json:"tracking_number"`
	Notes           *string           `bson:"notes" json:"notes"`
	CreatedAt       time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at" json:"updated_at"`
	CompletedAt     *time.Time        `bson:"completed_at" json:"completed_at"`
}
