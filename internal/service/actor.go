package service

import (
	"go-pos-api/internal/model"

	"github.com/google/uuid"
)

// Event types pushed to WebSocket clients.
const (
	EventProductCreated       = "product_created"
	EventProductUpdated       = "product_updated"
	EventProductDeleted       = "product_deleted"
	EventProductsBulkChanged  = "products_bulk_changed"
	EventStockUpdate          = "stock_update"
	EventTransactionCreated   = "transaction_created"
	EventTransactionCompleted = "transaction_completed"
	EventUserStatus           = "user_status_update"
)

// EventPublisher delivers tenant events; *ws.Hub implements it.
type EventPublisher interface {
	Publish(tenantID uuid.UUID, eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(uuid.UUID, string, interface{}) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID     uuid.UUID
	TenantID   uuid.UUID
	Name       string
	Email      string
	Privileges []string
}

// Can reports whether the actor holds privilege code.
func (a Actor) Can(code string) bool {
	for _, p := range a.Privileges {
		if p == code {
			return true
		}
	}
	return false
}

// By is the value written to audit columns.
func (a Actor) By() string {
	return a.UserID.String()
}

// cashierScope limits transaction access to the actor's own orders unless
// they may manage every order of the tenant.
func (a Actor) cashierScope() *uuid.UUID {
	if a.Can(model.PrivTransactionManage) {
		return nil
	}
	id := a.UserID
	return &id
}

func (a Actor) eventUser() map[string]interface{} {
	return map[string]interface{}{
		"id":    a.UserID,
		"name":  a.Name,
		"email": a.Email,
	}
}
