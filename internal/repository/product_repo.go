package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pos-api/internal/model"
	"go-pos-api/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNegativeStock is returned when a stock mutation would leave a product
// with less than zero units.
var ErrNegativeStock = &apperror.DomainError{Code: "stock_negative", Message: "stock cannot be negative"}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	// MaxPage bounds the offset; pages beyond it are empty anyway.
	MaxPage = 1000000
)

// sortColumns is the allow-list of sortable product columns.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"name":       "name",
	"price":      "price",
	"stock":      "stock",
}

// ProductFilter narrows product listings and counts. TenantID is mandatory.
type ProductFilter struct {
	TenantID     uuid.UUID
	Search       string
	BrandID      *uuid.UUID
	CategoryID   *uuid.UUID
	IsActive     *bool
	IsSellable   *bool
	IsTrackStock *bool
	LowStock     bool
	SortBy       string
	SortOrder    string
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize applies defaults, the maximum page size and the page cap.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset is the row offset of a normalized page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products    []model.Product `json:"products"`
	TotalCount  int64           `json:"totalCount"`
	CurrentPage int             `json:"currentPage"`
	TotalPages  int             `json:"totalPages"`
}

// ProductPatch lists the editable product columns; nil fields are left as is.
// Stock is changed only through UpdateStock.
type ProductPatch struct {
	Name          *string
	SKU           *string
	Description   *string
	Unit          *string
	Price         *int64
	MinStock      *int
	IsActive      *bool
	IsSellable    *bool
	IsTrackStock  *bool
	BrandID       *uuid.UUID
	ClearBrand    bool
	CategoryID    *uuid.UUID
	ClearCategory bool
	UpdatedBy     string
}

// BulkPatch targets one product of a BulkUpdate.
type BulkPatch struct {
	ID    uuid.UUID
	Patch ProductPatch
}

type ProductRepository interface {
	FindByID(ctx context.Context, id, tenantID uuid.UUID, includeRelations bool) (*model.Product, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Product, error)
	FindByFilters(ctx context.Context, filter ProductFilter, page Pagination) (*ProductPage, error)
	CountProducts(ctx context.Context, filter ProductFilter) (int64, error)
	Create(ctx context.Context, product *model.Product) (*model.Product, error)
	Update(ctx context.Context, id, tenantID uuid.UUID, patch ProductPatch) (*model.Product, error)
	SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error
	BulkCreate(ctx context.Context, tenantID uuid.UUID, products []*model.Product) error
	BulkUpdate(ctx context.Context, tenantID uuid.UUID, patches []BulkPatch) ([]model.Product, error)
	BulkDelete(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, deletedBy string) error
	UpdateStock(ctx context.Context, id, tenantID uuid.UUID, quantity int, op model.StockOperation, updatedBy string) (*model.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log opLogger
}

func NewProductRepo(db *gorm.DB, log *zap.Logger) ProductRepository {
	return &productRepo{db: db, log: newOpLogger(log, "product_repo")}
}

func (r *productRepo) scoped(db *gorm.DB, tenantID uuid.UUID) *gorm.DB {
	return tenantScoped(db, &model.Product{}, tenantID)
}

func (r *productRepo) FindByID(ctx context.Context, id, tenantID uuid.UUID, includeRelations bool) (*model.Product, error) {
	product, err := r.findByID(r.db.WithContext(ctx), id, tenantID, includeRelations)
	return product, r.log.fail("find_by_id", err, zap.Stringer("product_id", id), zap.Stringer("tenant_id", tenantID))
}

func (r *productRepo) findByID(db *gorm.DB, id, tenantID uuid.UUID, includeRelations bool) (*model.Product, error) {
	q := r.scoped(db, tenantID).Where("id = ?", id)
	if includeRelations {
		q = q.Preload("Brand").Preload("Category")
	}
	var product model.Product
	if err := q.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.scoped(r.db.WithContext(ctx), tenantID).Where("id IN ?", ids).Find(&products).Error
	return products, r.log.fail("find_by_ids", err, zap.Stringer("tenant_id", tenantID))
}

// filtered builds a fresh query for filter; callers must not reuse the
// returned statement across finishers.
func (r *productRepo) filtered(db *gorm.DB, f ProductFilter) *gorm.DB {
	q := r.scoped(db, f.TenantID)
	if f.Search != "" {
		pattern := likePattern(f.Search)
		q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(sku) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern)
	}
	if f.BrandID != nil {
		q = q.Where("brand_id = ?", *f.BrandID)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.IsSellable != nil {
		q = q.Where("is_sellable = ?", *f.IsSellable)
	}
	if f.IsTrackStock != nil {
		q = q.Where("is_track_stock = ?", *f.IsTrackStock)
	}
	if f.LowStock {
		// both columns are read from the same row in one statement
		q = q.Where("stock <= min_stock AND is_track_stock = ?", true)
	}
	return q
}

func orderClause(sortBy, sortOrder string) (string, error) {
	column := "created_at"
	if sortBy != "" {
		c, ok := sortColumns[sortBy]
		if !ok {
			return "", apperror.Validation("sortBy", "must be one of: created_at, name, price, stock")
		}
		column = c
	}

	direction := "DESC"
	switch sortOrder {
	case "":
		if sortBy != "" && sortBy != "created_at" {
			direction = "ASC"
		}
	case "asc", "ASC":
		direction = "ASC"
	case "desc", "DESC":
		direction = "DESC"
	default:
		return "", apperror.Validation("sortOrder", "must be one of: asc, desc")
	}
	return fmt.Sprintf("%s %s, id ASC", column, direction), nil
}

func (r *productRepo) FindByFilters(ctx context.Context, filter ProductFilter, page Pagination) (*ProductPage, error) {
	order, err := orderClause(filter.SortBy, filter.SortOrder)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	db := r.db.WithContext(ctx)

	var total int64
	if err := r.filtered(db, filter).Count(&total).Error; err != nil {
		return nil, r.log.fail("find_by_filters.count", err, zap.Stringer("tenant_id", filter.TenantID))
	}

	products := make([]model.Product, 0, page.Limit)
	err = r.filtered(db, filter).
		Preload("Brand").
		Preload("Category").
		Order(order).
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&products).Error
	if err != nil {
		return nil, r.log.fail("find_by_filters", err, zap.Stringer("tenant_id", filter.TenantID))
	}

	totalPages := int((total + int64(page.Limit) - 1) / int64(page.Limit))
	return &ProductPage{
		Products:    products,
		TotalCount:  total,
		CurrentPage: page.Page,
		TotalPages:  totalPages,
	}, nil
}

func (r *productRepo) CountProducts(ctx context.Context, filter ProductFilter) (int64, error) {
	var total int64
	err := r.filtered(r.db.WithContext(ctx), filter).Count(&total).Error
	return total, r.log.fail("count_products", err, zap.Stringer("tenant_id", filter.TenantID))
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	var created *model.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.insert(tx, product); err != nil {
			return err
		}
		var err error
		created, err = r.findByID(tx, product.ID, product.TenantID, true)
		return err
	})
	if err != nil {
		return nil, r.log.fail("create", err, zap.Stringer("tenant_id", product.TenantID), zap.String("sku", product.SKU))
	}
	return created, nil
}

func (r *productRepo) insert(tx *gorm.DB, product *model.Product) error {
	if err := r.ensureSKUFree(tx, product.TenantID, product.SKU, uuid.Nil); err != nil {
		return err
	}
	if err := r.ensureRelations(tx, product.TenantID, product.BrandID, product.CategoryID); err != nil {
		return err
	}
	if err := tx.Omit("Brand", "Category").Create(product).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("SKU %q already exists", product.SKU)
		}
		return err
	}
	return nil
}

// ensureSKUFree fails with a ConflictError when another live product of the
// tenant already uses sku. The unique index remains the final guard.
func (r *productRepo) ensureSKUFree(tx *gorm.DB, tenantID uuid.UUID, sku string, exceptID uuid.UUID) error {
	q := r.scoped(tx, tenantID).Where("sku = ?", sku)
	if exceptID != uuid.Nil {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperror.Conflict("SKU %q already exists", sku)
	}
	return nil
}

func (r *productRepo) ensureRelations(tx *gorm.DB, tenantID uuid.UUID, brandID, categoryID *uuid.UUID) error {
	if brandID != nil {
		var n int64
		if err := tenantScoped(tx, &model.Brand{}, tenantID).Where("id = ?", *brandID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperror.Validation("brand_id", "does not exist")
		}
	}
	if categoryID != nil {
		var n int64
		if err := tenantScoped(tx, &model.Category{}, tenantID).Where("id = ?", *categoryID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperror.Validation("category_id", "does not exist")
		}
	}
	return nil
}

func (r *productRepo) Update(ctx context.Context, id, tenantID uuid.UUID, patch ProductPatch) (*model.Product, error) {
	var updated *model.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = r.update(tx, id, tenantID, patch)
		return err
	})
	if err != nil {
		return nil, r.log.fail("update", err, zap.Stringer("product_id", id), zap.Stringer("tenant_id", tenantID))
	}
	return updated, nil
}

func (r *productRepo) update(tx *gorm.DB, id, tenantID uuid.UUID, patch ProductPatch) (*model.Product, error) {
	if _, err := r.findByID(tx, id, tenantID, false); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_by": patch.UpdatedBy}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.SKU != nil {
		if err := r.ensureSKUFree(tx, tenantID, *patch.SKU, id); err != nil {
			return nil, err
		}
		updates["sku"] = *patch.SKU
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Unit != nil {
		updates["unit"] = *patch.Unit
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	if patch.MinStock != nil {
		updates["min_stock"] = *patch.MinStock
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if patch.IsSellable != nil {
		updates["is_sellable"] = *patch.IsSellable
	}
	if patch.IsTrackStock != nil {
		updates["is_track_stock"] = *patch.IsTrackStock
	}
	if err := r.ensureRelations(tx, tenantID, patch.BrandID, patch.CategoryID); err != nil {
		return nil, err
	}
	switch {
	case patch.ClearBrand:
		updates["brand_id"] = nil
	case patch.BrandID != nil:
		updates["brand_id"] = *patch.BrandID
	}
	switch {
	case patch.ClearCategory:
		updates["category_id"] = nil
	case patch.CategoryID != nil:
		updates["category_id"] = *patch.CategoryID
	}

	res := r.scoped(tx, tenantID).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, apperror.Conflict("SKU already exists")
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperror.NotFound("product")
	}
	return r.findByID(tx, id, tenantID, true)
}

func (r *productRepo) SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error {
	err := r.softDelete(r.db.WithContext(ctx), id, tenantID, deletedBy)
	return r.log.fail("soft_delete", err, zap.Stringer("product_id", id), zap.Stringer("tenant_id", tenantID))
}

// softDelete hides the product and switches off its flags in one statement.
func (r *productRepo) softDelete(tx *gorm.DB, id, tenantID uuid.UUID, deletedBy string) error {
	res := r.scoped(tx, tenantID).Where("id = ?", id).Updates(map[string]interface{}{
		"deleted_at":  time.Now(),
		"deleted_by":  deletedBy,
		"is_active":   false,
		"is_sellable": false,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("product")
	}
	return nil
}

func (r *productRepo) BulkCreate(ctx context.Context, tenantID uuid.UUID, products []*model.Product) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]int, len(products))
		for i, p := range products {
			if p.TenantID != tenantID {
				return apperror.Validation(fmt.Sprintf("products[%d].tenant_id", i), "must match the requesting tenant")
			}
			if j, dup := seen[p.SKU]; dup {
				return apperror.Conflict("SKU %q is repeated at positions %d and %d", p.SKU, j, i)
			}
			seen[p.SKU] = i
			if err := r.insert(tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	return r.log.fail("bulk_create", err, zap.Stringer("tenant_id", tenantID), zap.Int("count", len(products)))
}

func (r *productRepo) BulkUpdate(ctx context.Context, tenantID uuid.UUID, patches []BulkPatch) ([]model.Product, error) {
	updated := make([]model.Product, 0, len(patches))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, bp := range patches {
			p, err := r.update(tx, bp.ID, tenantID, bp.Patch)
			if err != nil {
				return err
			}
			updated = append(updated, *p)
		}
		return nil
	})
	if err != nil {
		return nil, r.log.fail("bulk_update", err, zap.Stringer("tenant_id", tenantID), zap.Int("count", len(patches)))
	}
	return updated, nil
}

func (r *productRepo) BulkDelete(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, deletedBy string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen := make(map[uuid.UUID]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if err := r.softDelete(tx, id, tenantID, deletedBy); err != nil {
				return err
			}
		}
		return nil
	})
	return r.log.fail("bulk_delete", err, zap.Stringer("tenant_id", tenantID), zap.Int("count", len(ids)))
}

// UpdateStock applies op as one conditional UPDATE so concurrent callers can
// never drive stock below zero, then appends the movement to the ledger in
// the same transaction.
func (r *productRepo) UpdateStock(ctx context.Context, id, tenantID uuid.UUID, quantity int, op model.StockOperation, updatedBy string) (*model.Product, error) {
	var product *model.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := r.scoped(tx, tenantID).Where("id = ?", id)

		var stock interface{}
		switch op {
		case model.StockSet:
			if quantity < 0 {
				return ErrNegativeStock
			}
			stock = quantity
		case model.StockAdd:
			stock = gorm.Expr("stock + ?", quantity)
			q = q.Where("stock + ? >= 0", quantity)
		case model.StockSubtract:
			stock = gorm.Expr("stock - ?", quantity)
			q = q.Where("stock - ? >= 0", quantity)
		default:
			return apperror.Validation("operation", "must be one of: set, add, subtract")
		}

		res := q.Updates(map[string]interface{}{"stock": stock, "updated_by": updatedBy})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// either the row is not visible to this tenant or the guard failed
			if _, err := r.findByID(tx, id, tenantID, false); err != nil {
				return err
			}
			return ErrNegativeStock
		}

		var err error
		product, err = r.findByID(tx, id, tenantID, true)
		if err != nil {
			return err
		}

		movement := &model.StockMovement{
			ProductID:  id,
			Operation:  op,
			Quantity:   quantity,
			StockAfter: product.Stock,
		}
		movement.TenantID = tenantID
		movement.CreatedBy = updatedBy
		movement.UpdatedBy = updatedBy
		return tx.Omit("Product").Create(movement).Error
	})
	if err != nil {
		return nil, r.log.fail("update_stock", err,
			zap.Stringer("product_id", id), zap.Stringer("tenant_id", tenantID), zap.String("operation", string(op)))
	}
	return product, nil
}
