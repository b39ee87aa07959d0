// Package receipt turns completed transactions into printable artifacts.
package receipt

import (
	"context"
	"errors"
	"time"

	"go-pos-api/internal/model"

	"github.com/google/uuid"
)

// ErrNotCompleted is returned when a receipt is requested for an order that
// has not been paid.
var ErrNotCompleted = errors.New("receipt: transaction is not completed")

type Line struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unitPrice"`
	Subtotal  int64     `json:"subtotal"`
}

// Data is the receipt-ready view of a completed transaction.
type Data struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Number        string    `json:"number"`
	StoreName     string    `json:"storeName"`
	StoreAddress  string    `json:"storeAddress,omitempty"`
	StorePhone    string    `json:"storePhone,omitempty"`
	Cashier       string    `json:"cashier"`
	Items         []Line    `json:"items"`
	Total         int64     `json:"total"`
	PaymentMethod string    `json:"paymentMethod"`
	PaymentAmount int64     `json:"paymentAmount"`
	ChangeAmount  int64     `json:"changeAmount"`
	CompletedAt   time.Time `json:"completedAt"`
	Note          string    `json:"note,omitempty"`
}

// Artifact is a rendered receipt. Its content is opaque to the caller.
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Renderer produces an Artifact in one output format.
type Renderer interface {
	Format() string
	Render(ctx context.Context, data *Data) (*Artifact, error)
}

// FromTransaction builds receipt data. tenant may be nil; the cashier name
// is taken from txn.Cashier when it was preloaded.
func FromTransaction(tenant *model.Tenant, txn *model.Transaction) (*Data, error) {
	if txn == nil || !txn.IsCompleted() || txn.CompletedAt == nil {
		return nil, ErrNotCompleted
	}

	data := &Data{
		TransactionID: txn.ID,
		Number:        txn.Number,
		Items:         make([]Line, 0, len(txn.Items)),
		Total:         txn.Total,
		PaymentMethod: string(txn.PaymentMethod),
		PaymentAmount: txn.PaymentAmount,
		ChangeAmount:  txn.ChangeAmount,
		CompletedAt:   *txn.CompletedAt,
		Note:          txn.Note,
	}
	if tenant != nil {
		data.StoreName = tenant.Name
		data.StoreAddress = tenant.Address
		data.StorePhone = tenant.Phone
	}
	if txn.Cashier != nil {
		data.Cashier = txn.Cashier.FullName
	}
	for _, it := range txn.Items {
		data.Items = append(data.Items, Line{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return data, nil
}
