package repository

import (
	"context"
	"errors"
	"time"

	"go-pos-api/internal/model"
	"go-pos-api/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrAlreadyCompleted is returned for any attempt to pay a transaction twice.
var ErrAlreadyCompleted = &apperror.ConflictError{Message: "transaction already completed"}

// TransactionFilter narrows transaction listings. CashierID limits the
// result to one cashier's orders.
type TransactionFilter struct {
	TenantID  uuid.UUID
	CashierID *uuid.UUID
	Status    model.TransactionStatus
	From      *time.Time
	To        *time.Time
}

// TransactionPage is one page of a transaction listing.
type TransactionPage struct {
	Transactions []model.Transaction `json:"transactions"`
	TotalCount   int64               `json:"totalCount"`
	CurrentPage  int                 `json:"currentPage"`
	TotalPages   int                 `json:"totalPages"`
}

// Completion is the payment data written by MarkCompleted.
type Completion struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	PaymentAmount int64
	ChangeAmount  int64
	PaymentMethod model.PaymentMethod
	CompletedAt   time.Time
	CompletedBy   string
}

// StockMovementData untuk chart data
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// DashboardStats untuk overview stats
type DashboardStats struct {
	TotalProducts   int64 `json:"total_products"`
	LowStockCount   int64 `json:"low_stock_count"`
	TotalValuation  int64 `json:"total_valuation"`
	PendingOrders   int64 `json:"pending_orders"`
	CompletedOrders int64 `json:"completed_orders"`
	Revenue         int64 `json:"revenue"`
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) error
	FindByID(ctx context.Context, id, tenantID uuid.UUID, cashierID *uuid.UUID) (*model.Transaction, error)
	FindAll(ctx context.Context, filter TransactionFilter, page Pagination) (*TransactionPage, error)
	MarkCompleted(ctx context.Context, c Completion) error
	GetDashboardStats(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*DashboardStats, error)
	GetStockMovement(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]StockMovementData, error)
}

type transactionRepo struct {
	db  *gorm.DB
	log opLogger
}

func NewTransactionRepo(db *gorm.DB, log *zap.Logger) TransactionRepository {
	return &transactionRepo{db: db, log: newOpLogger(log, "transaction_repo")}
}

func (r *transactionRepo) scoped(db *gorm.DB, tenantID uuid.UUID) *gorm.DB {
	return tenantScoped(db, &model.Transaction{}, tenantID)
}

// Create stores the order header and its lines in one transaction.
func (r *transactionRepo) Create(ctx context.Context, txn *model.Transaction) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Cashier").Create(txn).Error
	})
	return r.log.fail("create", err, zap.Stringer("tenant_id", txn.TenantID))
}

func (r *transactionRepo) FindByID(ctx context.Context, id, tenantID uuid.UUID, cashierID *uuid.UUID) (*model.Transaction, error) {
	q := r.scoped(r.db.WithContext(ctx), tenantID).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_name ASC, id ASC") }).
		Preload("Cashier").
		Where("id = ?", id)
	if cashierID != nil {
		q = q.Where("cashier_id = ?", *cashierID)
	}

	var txn model.Transaction
	if err := q.First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("transaction")
		}
		return nil, r.log.fail("find_by_id", err, zap.Stringer("transaction_id", id), zap.Stringer("tenant_id", tenantID))
	}
	return &txn, nil
}

func (r *transactionRepo) filtered(db *gorm.DB, f TransactionFilter) *gorm.DB {
	q := r.scoped(db, f.TenantID)
	if f.CashierID != nil {
		q = q.Where("cashier_id = ?", *f.CashierID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q
}

func (r *transactionRepo) FindAll(ctx context.Context, filter TransactionFilter, page Pagination) (*TransactionPage, error) {
	page = page.Normalize()
	db := r.db.WithContext(ctx)

	var total int64
	if err := r.filtered(db, filter).Count(&total).Error; err != nil {
		return nil, r.log.fail("find_all.count", err, zap.Stringer("tenant_id", filter.TenantID))
	}

	transactions := make([]model.Transaction, 0, page.Limit)
	err := r.filtered(db, filter).
		Preload("Items").
		Preload("Cashier").
		Order("created_at DESC, id ASC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&transactions).Error
	if err != nil {
		return nil, r.log.fail("find_all", err, zap.Stringer("tenant_id", filter.TenantID))
	}

	return &TransactionPage{
		Transactions: transactions,
		TotalCount:   total,
		CurrentPage:  page.Page,
		TotalPages:   int((total + int64(page.Limit) - 1) / int64(page.Limit)),
	}, nil
}

// MarkCompleted performs the PENDING -> COMPLETED transition as a single
// conditional UPDATE. The guard re-checks status and total, so of two racing
// callers exactly one succeeds and the loser observes ErrAlreadyCompleted.
func (r *transactionRepo) MarkCompleted(ctx context.Context, c Completion) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := r.scoped(tx, c.TenantID).
			Where("id = ? AND status = ? AND total <= ?", c.ID, model.TxPending, c.PaymentAmount).
			Updates(map[string]interface{}{
				"status":         model.TxCompleted,
				"payment_amount": c.PaymentAmount,
				"change_amount":  c.ChangeAmount,
				"payment_method": c.PaymentMethod,
				"completed_at":   c.CompletedAt,
				"updated_by":     c.CompletedBy,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}

		var current model.Transaction
		if err := r.scoped(tx, c.TenantID).Where("id = ?", c.ID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("transaction")
			}
			return err
		}
		if current.IsCompleted() {
			return ErrAlreadyCompleted
		}
		return &apperror.InsufficientPaymentError{MinimumRequired: current.Total, Provided: c.PaymentAmount}
	})
	return r.log.fail("mark_completed", err, zap.Stringer("transaction_id", c.ID), zap.Stringer("tenant_id", c.TenantID))
}

func (r *transactionRepo) GetDashboardStats(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*DashboardStats, error) {
	var stats DashboardStats
	db := r.db.WithContext(ctx)

	products := func() *gorm.DB { return tenantScoped(db, &model.Product{}, tenantID) }

	if err := products().Count(&stats.TotalProducts).Error; err != nil {
		return nil, r.log.fail("dashboard.total_products", err, zap.Stringer("tenant_id", tenantID))
	}
	if err := products().Where("stock <= min_stock AND is_track_stock = ?", true).Count(&stats.LowStockCount).Error; err != nil {
		return nil, r.log.fail("dashboard.low_stock", err, zap.Stringer("tenant_id", tenantID))
	}
	if err := products().Select("COALESCE(SUM(stock * price), 0)").Scan(&stats.TotalValuation).Error; err != nil {
		return nil, r.log.fail("dashboard.valuation", err, zap.Stringer("tenant_id", tenantID))
	}

	inRange := func() *gorm.DB {
		return r.scoped(db, tenantID).Where("created_at BETWEEN ? AND ?", from, to)
	}
	if err := inRange().Where("status = ?", model.TxPending).Count(&stats.PendingOrders).Error; err != nil {
		return nil, r.log.fail("dashboard.pending", err, zap.Stringer("tenant_id", tenantID))
	}
	if err := inRange().Where("status = ?", model.TxCompleted).Count(&stats.CompletedOrders).Error; err != nil {
		return nil, r.log.fail("dashboard.completed", err, zap.Stringer("tenant_id", tenantID))
	}
	if err := inRange().Where("status = ?", model.TxCompleted).
		Select("COALESCE(SUM(total), 0)").Scan(&stats.Revenue).Error; err != nil {
		return nil, r.log.fail("dashboard.revenue", err, zap.Stringer("tenant_id", tenantID))
	}

	return &stats, nil
}

func (r *transactionRepo) GetStockMovement(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]StockMovementData, error) {
	results := []StockMovementData{}

	// Query untuk aggregate stock movements per hari
	rows, err := tenantScoped(r.db.WithContext(ctx), &model.StockMovement{}, tenantID).
		Select(`
			DATE(created_at) as date,
			COALESCE(SUM(CASE WHEN operation = 'add' THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN operation = 'subtract' THEN quantity ELSE 0 END), 0) as outbound
		`).
		Where("created_at BETWEEN ? AND ?", from, to).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, r.log.fail("stock_movement", err, zap.Stringer("tenant_id", tenantID))
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Inbound, &data.Outbound); err != nil {
			return nil, r.log.fail("stock_movement.scan", err, zap.Stringer("tenant_id", tenantID))
		}
		results = append(results, data)
	}
	return results, r.log.fail("stock_movement.rows", rows.Err(), zap.Stringer("tenant_id", tenantID))
}
