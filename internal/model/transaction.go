package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
)

type PaymentMethod string

const (
	PayCash     PaymentMethod = "CASH"
	PayTransfer PaymentMethod = "TRANSFER"
	PayQRIS     PaymentMethod = "QRIS"
	PayCard     PaymentMethod = "CARD"
)

// Transaction is a customer order. Total is fixed when the order is created;
// the only mutation afterwards is the single PENDING -> COMPLETED transition.
type Transaction struct {
	TenantModel
	Number        string            `gorm:"type:varchar(40);not null;index" json:"number"`
	Status        TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Total         int64             `gorm:"not null" json:"total"`
	PaymentMethod PaymentMethod     `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentAmount int64             `gorm:"not null;default:0" json:"payment_amount"`
	ChangeAmount  int64             `gorm:"not null;default:0" json:"change_amount"`
	CompletedAt   *time.Time        `json:"completed_at"`
	Note          string            `json:"note"`

	CashierID uuid.UUID         `gorm:"type:uuid;not null;index" json:"cashier_id"`
	Cashier   *User             `gorm:"foreignKey:CashierID" json:"cashier,omitempty"`
	Items     []TransactionItem `gorm:"foreignKey:TransactionID" json:"items"`
}

// IsCompleted reports whether the payment step already happened.
func (t *Transaction) IsCompleted() bool {
	return t.Status == TxCompleted
}

// TransactionItem is one order line with price and name snapshots taken at
// order time.
type TransactionItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName   string    `gorm:"type:varchar(255);not null" json:"product_name"`
	SKU           string    `gorm:"type:varchar(50);not null" json:"sku"`
	UnitPrice     int64     `gorm:"not null" json:"unit_price"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	Subtotal      int64     `gorm:"not null" json:"subtotal"`
}

// BeforeCreate assigns the line id.
func (i *TransactionItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
