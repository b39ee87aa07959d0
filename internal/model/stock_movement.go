package model

import "github.com/google/uuid"

type StockOperation string

const (
	StockSet      StockOperation = "set"
	StockAdd      StockOperation = "add"
	StockSubtract StockOperation = "subtract"
)

// StockMovement is the append-only ledger of stock adjustments.
type StockMovement struct {
	TenantModel
	ProductID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"product_id"`
	Product    *Product       `json:"product,omitempty"`
	Operation  StockOperation `gorm:"type:varchar(10);not null" json:"operation"`
	Quantity   int            `gorm:"not null" json:"quantity"`
	StockAfter int            `gorm:"not null" json:"stock_after"`
	Note       string         `json:"note,omitempty"`
}
