package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go-pos-api/internal/model"
	"go-pos-api/internal/receipt"
	"go-pos-api/internal/repository"
	"go-pos-api/pkg/apperror"
	"go-pos-api/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProductNotSellable = &apperror.DomainError{Code: "product_not_sellable", Message: "product is not available for sale"}
	ErrReceiptNotReady    = &apperror.ConflictError{Message: "receipt is only available for completed transactions"}
	ErrUnknownReceiptType = apperror.Validation("format", "unsupported receipt format")
	ErrOrderTooLarge      = &apperror.DomainError{Code: "order_total_too_large", Message: "order total exceeds the supported amount"}
)

// MaxLineQuantity caps one product's quantity in an order, after merging.
const MaxLineQuantity = 100000

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
	Quantity  int       `json:"quantity" validate:"gt=0,lte=100000"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,max=200,dive"`
	Note  string             `json:"note" validate:"max=500"`
}

type CompletePaymentRequest struct {
	PaymentAmount int64  `json:"paymentAmount" validate:"gte=0"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=CASH TRANSFER QRIS CARD"`
}

// PaymentResult is the completion response body.
type PaymentResult struct {
	ID            uuid.UUID               `json:"id"`
	Number        string                  `json:"number"`
	Status        model.TransactionStatus `json:"status"`
	Total         int64                   `json:"total"`
	PaymentMethod model.PaymentMethod     `json:"paymentMethod"`
	PaymentAmount int64                   `json:"paymentAmount"`
	ChangeAmount  int64                   `json:"changeAmount"`
	CompletedAt   *time.Time              `json:"completedAt"`
	Items         []model.TransactionItem `json:"items"`
}

// PaymentRecorder counts payment outcomes.
type PaymentRecorder interface {
	PaymentOutcome(outcome string)
}

type TransactionService interface {
	CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*model.Transaction, error)
	GetTransaction(ctx context.Context, actor Actor, id uuid.UUID) (*model.Transaction, error)
	ListTransactions(ctx context.Context, actor Actor, filter repository.TransactionFilter, page repository.Pagination) (*repository.TransactionPage, error)
	CompletePayment(ctx context.Context, actor Actor, id uuid.UUID, req CompletePaymentRequest) (*PaymentResult, error)
	GetReceipt(ctx context.Context, actor Actor, id uuid.UUID) (*receipt.Data, error)
	RenderReceipt(ctx context.Context, actor Actor, id uuid.UUID, format string) (*receipt.Artifact, error)
}

type transactionService struct {
	txRepo      repository.TransactionRepository
	productRepo repository.ProductRepository
	tenantRepo  repository.TenantRepository
	renderers   map[string]receipt.Renderer
	events      EventPublisher
	recorder    PaymentRecorder
	log         *zap.Logger
	now         func() time.Time
}

func NewTransactionService(
	txRepo repository.TransactionRepository,
	productRepo repository.ProductRepository,
	tenantRepo repository.TenantRepository,
	events EventPublisher,
	recorder PaymentRecorder,
	log *zap.Logger,
	renderers ...receipt.Renderer,
) TransactionService {
	if log == nil {
		log = zap.NewNop()
	}
	byFormat := make(map[string]receipt.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}
	return &transactionService{
		txRepo:      txRepo,
		productRepo: productRepo,
		tenantRepo:  tenantRepo,
		renderers:   byFormat,
		events:      publisherOrNop(events),
		recorder:    recorder,
		log:         log.Named("transaction"),
		now:         time.Now,
	}
}

// CreateOrder snapshots names and prices of live, sellable products. Lines
// for the same product are merged. Stock is not reserved here.
func (s *transactionService) CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*model.Transaction, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	order := make([]uuid.UUID, 0, len(req.Items))
	quantities := make(map[uuid.UUID]int, len(req.Items))
	for _, it := range req.Items {
		if _, seen := quantities[it.ProductID]; !seen {
			order = append(order, it.ProductID)
		}
		quantities[it.ProductID] += it.Quantity
		if quantities[it.ProductID] > MaxLineQuantity {
			return nil, apperror.Validation("items", fmt.Sprintf("quantity per product must be at most %d", MaxLineQuantity))
		}
	}

	products, err := s.productRepo.FindByIDs(ctx, actor.TenantID, order)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := s.now()
	txn := &model.Transaction{
		Number:    orderNumber(now),
		Status:    model.TxPending,
		Note:      req.Note,
		CashierID: actor.UserID,
		Items:     make([]model.TransactionItem, 0, len(order)),
	}
	txn.TenantID = actor.TenantID
	txn.CreatedBy = actor.By()
	txn.UpdatedBy = actor.By()

	for _, id := range order {
		p, ok := byID[id]
		if !ok {
			return nil, apperror.NotFound("product")
		}
		if !p.IsActive || !p.IsSellable {
			return nil, &apperror.DomainError{
				Code:    ErrProductNotSellable.Code,
				Message: fmt.Sprintf("product '%s' is not available for sale", p.Name),
			}
		}
		qty := quantities[id]
		subtotal, ok := mulAmount(p.Price, int64(qty))
		if !ok {
			return nil, ErrOrderTooLarge
		}
		if txn.Total, ok = addAmount(txn.Total, subtotal); !ok {
			return nil, ErrOrderTooLarge
		}
		txn.Items = append(txn.Items, model.TransactionItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			SKU:         p.SKU,
			UnitPrice:   p.Price,
			Quantity:    qty,
			Subtotal:    subtotal,
		})
	}

	if err := s.txRepo.Create(ctx, txn); err != nil {
		return nil, err
	}

	s.events.Publish(actor.TenantID, EventTransactionCreated, map[string]interface{}{
		"transaction_id": txn.ID,
		"number":         txn.Number,
		"total":          txn.Total,
		"user":           actor.eventUser(),
	})
	return txn, nil
}

// mulAmount and addAmount work on non-negative amounts and report false
// when the result would not fit in an int64.
func mulAmount(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, false
	}
	return a * b, true
}

func addAmount(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

func orderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("TRX-%s-%s", now.Format("20060102"), suffix)
}

func (s *transactionService) GetTransaction(ctx context.Context, actor Actor, id uuid.UUID) (*model.Transaction, error) {
	return s.txRepo.FindByID(ctx, id, actor.TenantID, actor.cashierScope())
}

func (s *transactionService) ListTransactions(ctx context.Context, actor Actor, filter repository.TransactionFilter, page repository.Pagination) (*repository.TransactionPage, error) {
	filter.TenantID = actor.TenantID
	if scope := actor.cashierScope(); scope != nil {
		filter.CashierID = scope
	}
	if filter.Status != "" && filter.Status != model.TxPending && filter.Status != model.TxCompleted {
		return nil, apperror.Validation("status", "must be one of: PENDING, COMPLETED")
	}
	return s.txRepo.FindAll(ctx, filter, page)
}

// CompletePayment moves a PENDING order to COMPLETED. The checks here give
// precise errors; the conditional update in MarkCompleted repeats them so a
// concurrent payment can never complete the order twice. On any failure the
// order is left untouched.
func (s *transactionService) CompletePayment(ctx context.Context, actor Actor, id uuid.UUID, req CompletePaymentRequest) (*PaymentResult, error) {
	result, err := s.completePayment(ctx, actor, id, req)
	s.record(err)
	return result, err
}

func (s *transactionService) completePayment(ctx context.Context, actor Actor, id uuid.UUID, req CompletePaymentRequest) (*PaymentResult, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	txn, err := s.txRepo.FindByID(ctx, id, actor.TenantID, actor.cashierScope())
	if err != nil {
		return nil, err
	}
	if txn.IsCompleted() {
		return nil, repository.ErrAlreadyCompleted
	}
	if req.PaymentAmount < txn.Total {
		return nil, &apperror.InsufficientPaymentError{MinimumRequired: txn.Total, Provided: req.PaymentAmount}
	}

	method := model.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = model.PayCash
	}
	err = s.txRepo.MarkCompleted(ctx, repository.Completion{
		ID:            id,
		TenantID:      actor.TenantID,
		PaymentAmount: req.PaymentAmount,
		ChangeAmount:  req.PaymentAmount - txn.Total,
		PaymentMethod: method,
		CompletedAt:   s.now(),
		CompletedBy:   actor.By(),
	})
	if err != nil {
		return nil, err
	}

	completed, err := s.txRepo.FindByID(ctx, id, actor.TenantID, nil)
	if err != nil {
		return nil, err
	}

	s.log.Info("payment completed",
		zap.Stringer("transaction_id", id),
		zap.Stringer("tenant_id", actor.TenantID),
		zap.Int64("total", completed.Total),
		zap.Int64("change", completed.ChangeAmount),
	)
	s.events.Publish(actor.TenantID, EventTransactionCompleted, map[string]interface{}{
		"transaction_id": completed.ID,
		"number":         completed.Number,
		"total":          completed.Total,
		"user":           actor.eventUser(),
	})
	return toPaymentResult(completed), nil
}

func toPaymentResult(t *model.Transaction) *PaymentResult {
	return &PaymentResult{
		ID:            t.ID,
		Number:        t.Number,
		Status:        t.Status,
		Total:         t.Total,
		PaymentMethod: t.PaymentMethod,
		PaymentAmount: t.PaymentAmount,
		ChangeAmount:  t.ChangeAmount,
		CompletedAt:   t.CompletedAt,
		Items:         t.Items,
	}
}

func (s *transactionService) record(err error) {
	if s.recorder == nil {
		return
	}
	var insufficient *apperror.InsufficientPaymentError
	switch {
	case err == nil:
		s.recorder.PaymentOutcome("completed")
	case errors.As(err, &insufficient):
		s.recorder.PaymentOutcome("insufficient")
	case errors.Is(err, repository.ErrAlreadyCompleted):
		s.recorder.PaymentOutcome("already_completed")
	default:
		s.recorder.PaymentOutcome("error")
	}
}

func (s *transactionService) GetReceipt(ctx context.Context, actor Actor, id uuid.UUID) (*receipt.Data, error) {
	txn, err := s.txRepo.FindByID(ctx, id, actor.TenantID, actor.cashierScope())
	if err != nil {
		return nil, err
	}
	if !txn.IsCompleted() {
		return nil, ErrReceiptNotReady
	}
	tenant, err := s.tenantRepo.FindByID(actor.TenantID)
	if err != nil {
		s.log.Warn("receipt without store header", zap.Stringer("tenant_id", actor.TenantID), zap.Error(err))
		tenant = nil
	}
	return receipt.FromTransaction(tenant, txn)
}

func (s *transactionService) RenderReceipt(ctx context.Context, actor Actor, id uuid.UUID, format string) (*receipt.Artifact, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, ErrUnknownReceiptType
	}
	data, err := s.GetReceipt(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return renderer.Render(ctx, data)
}
