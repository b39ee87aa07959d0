package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go-pos-api/internal/cache"
	"go-pos-api/internal/model"
	"go-pos-api/internal/repository"
	"go-pos-api/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateProductRequest struct {
	Name         string     `json:"name" validate:"required,max=255"`
	SKU          string     `json:"sku" validate:"required,max=50"`
	Description  string     `json:"description"`
	Unit         string     `json:"unit" validate:"max=20"`
	Price        int64      `json:"price" validate:"gte=0,lte=1000000000000"`
	Stock        int        `json:"stock" validate:"gte=0,lte=1000000000"`
	MinStock     int        `json:"min_stock" validate:"gte=0,lte=1000000000"`
	IsActive     *bool      `json:"is_active"`
	IsSellable   *bool      `json:"is_sellable"`
	IsTrackStock *bool      `json:"is_track_stock"`
	BrandID      *uuid.UUID `json:"brand_id"`
	CategoryID   *uuid.UUID `json:"category_id"`
}

// UpdateProductRequest changes only the fields that are present. Stock is
// adjusted through the stock endpoint.
type UpdateProductRequest struct {
	Name          *string    `json:"name" validate:"omitempty,min=1,max=255"`
	SKU           *string    `json:"sku" validate:"omitempty,min=1,max=50"`
	Description   *string    `json:"description"`
	Unit          *string    `json:"unit" validate:"omitempty,max=20"`
	Price         *int64     `json:"price" validate:"omitempty,gte=0,lte=1000000000000"`
	MinStock      *int       `json:"min_stock" validate:"omitempty,gte=0,lte=1000000000"`
	IsActive      *bool      `json:"is_active"`
	IsSellable    *bool      `json:"is_sellable"`
	IsTrackStock  *bool      `json:"is_track_stock"`
	BrandID       *uuid.UUID `json:"brand_id"`
	ClearBrand    bool       `json:"clear_brand"`
	CategoryID    *uuid.UUID `json:"category_id"`
	ClearCategory bool       `json:"clear_category"`
}

type BulkCreateRequest struct {
	Products []CreateProductRequest `json:"products" validate:"required,min=1,max=100,dive"`
}

type BulkUpdateItem struct {
	ID      uuid.UUID            `json:"id" validate:"uuid_required"`
	Changes UpdateProductRequest `json:"changes"`
}

type BulkUpdateRequest struct {
	Items []BulkUpdateItem `json:"items" validate:"required,min=1,max=100,dive"`
}

type BulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=100,dive,uuid_required"`
}

type StockRequest struct {
	Quantity  int    `json:"quantity" validate:"gte=0,lte=1000000000"`
	Operation string `json:"operation" validate:"required,oneof=set add subtract"`
}

type TaxonomyRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Description string `json:"description"`
}

type CatalogService interface {
	ListProducts(ctx context.Context, filter repository.ProductFilter, page repository.Pagination) (*repository.ProductPage, error)
	CountProducts(ctx context.Context, filter repository.ProductFilter) (int64, error)
	GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*model.Product, error)
	CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, actor Actor, id uuid.UUID, req UpdateProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, actor Actor, id uuid.UUID) error
	BulkCreate(ctx context.Context, actor Actor, req BulkCreateRequest) ([]model.Product, error)
	BulkUpdate(ctx context.Context, actor Actor, req BulkUpdateRequest) ([]model.Product, error)
	BulkDelete(ctx context.Context, actor Actor, req BulkDeleteRequest) error
	UpdateStock(ctx context.Context, actor Actor, id uuid.UUID, req StockRequest) (*model.Product, error)

	ListBrands(ctx context.Context, tenantID uuid.UUID, search string) ([]model.Brand, error)
	CreateBrand(ctx context.Context, actor Actor, req TaxonomyRequest) (*model.Brand, error)
	UpdateBrand(ctx context.Context, actor Actor, id uuid.UUID, req TaxonomyRequest) (*model.Brand, error)
	DeleteBrand(ctx context.Context, actor Actor, id uuid.UUID) error
	ListCategories(ctx context.Context, tenantID uuid.UUID, search string) ([]model.Category, error)
	CreateCategory(ctx context.Context, actor Actor, req TaxonomyRequest) (*model.Category, error)
	UpdateCategory(ctx context.Context, actor Actor, id uuid.UUID, req TaxonomyRequest) (*model.Category, error)
	DeleteCategory(ctx context.Context, actor Actor, id uuid.UUID) error
}

type catalogService struct {
	products   repository.ProductRepository
	brands     repository.BrandRepository
	categories repository.CategoryRepository
	cache      *cache.Cache
	events     EventPublisher
	log        *zap.Logger
}

// NewCatalogService wires the catalog. c may be nil to run without a cache.
func NewCatalogService(
	products repository.ProductRepository,
	brands repository.BrandRepository,
	categories repository.CategoryRepository,
	c *cache.Cache,
	events EventPublisher,
	log *zap.Logger,
) CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &catalogService{
		products:   products,
		brands:     brands,
		categories: categories,
		cache:      c,
		events:     publisherOrNop(events),
		log:        log.Named("catalog"),
	}
}

// filterValues is the canonical form of a product query used for cache keys.
func filterValues(f repository.ProductFilter, page *repository.Pagination) url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("search", strings.ToLower(f.Search))
	if f.BrandID != nil {
		set("brand_id", f.BrandID.String())
	}
	if f.CategoryID != nil {
		set("category_id", f.CategoryID.String())
	}
	if f.IsActive != nil {
		set("is_active", strconv.FormatBool(*f.IsActive))
	}
	if f.IsSellable != nil {
		set("is_sellable", strconv.FormatBool(*f.IsSellable))
	}
	if f.IsTrackStock != nil {
		set("is_track_stock", strconv.FormatBool(*f.IsTrackStock))
	}
	if f.LowStock {
		set("low_stock", "true")
	}
	if page != nil {
		set("sort_by", f.SortBy)
		set("sort_order", strings.ToLower(f.SortOrder))
		p := page.Normalize()
		set("page", strconv.Itoa(p.Page))
		set("limit", strconv.Itoa(p.Limit))
	}
	return v
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter, page repository.Pagination) (*repository.ProductPage, error) {
	key := cache.Key(cache.EntityProducts, filter.TenantID, filterValues(filter, &page))
	var out repository.ProductPage
	err := s.cache.FetchJSON(ctx, key, s.cache.ListTTL(), &out, func(ctx context.Context) (interface{}, error) {
		return s.products.FindByFilters(ctx, filter, page)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *catalogService) CountProducts(ctx context.Context, filter repository.ProductFilter) (int64, error) {
	key := cache.Key(cache.EntityProductCount, filter.TenantID, filterValues(filter, nil))
	var n int64
	err := s.cache.FetchJSON(ctx, key, s.cache.ListTTL(), &n, func(ctx context.Context) (interface{}, error) {
		return s.products.CountProducts(ctx, filter)
	})
	return n, err
}

func (s *catalogService) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (*model.Product, error) {
	var out model.Product
	err := s.cache.FetchJSON(ctx, cache.ProductKey(tenantID, id), s.cache.ProductTTL(), &out, func(ctx context.Context) (interface{}, error) {
		return s.products.FindByID(ctx, id, tenantID, true)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (req CreateProductRequest) toModel(actor Actor) *model.Product {
	p := &model.Product{
		TenantID:     actor.TenantID,
		SKU:          strings.TrimSpace(req.SKU),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Unit:         req.Unit,
		Price:        req.Price,
		Stock:        req.Stock,
		MinStock:     req.MinStock,
		IsActive:     boolOr(req.IsActive, true),
		IsSellable:   boolOr(req.IsSellable, true),
		IsTrackStock: boolOr(req.IsTrackStock, true),
		BrandID:      req.BrandID,
		CategoryID:   req.CategoryID,
	}
	p.CreatedBy = actor.By()
	p.UpdatedBy = actor.By()
	return p
}

func (req UpdateProductRequest) toPatch(actor Actor) repository.ProductPatch {
	patch := repository.ProductPatch{
		Name:          req.Name,
		SKU:           req.SKU,
		Description:   req.Description,
		Unit:          req.Unit,
		Price:         req.Price,
		MinStock:      req.MinStock,
		IsActive:      req.IsActive,
		IsSellable:    req.IsSellable,
		IsTrackStock:  req.IsTrackStock,
		BrandID:       req.BrandID,
		ClearBrand:    req.ClearBrand,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		UpdatedBy:     actor.By(),
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.SKU != nil {
		sku := strings.TrimSpace(*patch.SKU)
		patch.SKU = &sku
	}
	return patch
}

func (s *catalogService) CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*model.Product, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	product, err := s.products.Create(ctx, req.toModel(actor))
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, product.ID, actor.TenantID)
	s.publishProduct(actor, EventProductCreated, product, fmt.Sprintf("%s created product '%s'", actor.Name, product.Name))
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, actor Actor, id uuid.UUID, req UpdateProductRequest) (*model.Product, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	product, err := s.products.Update(ctx, id, actor.TenantID, req.toPatch(actor))
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id, actor.TenantID)
	s.publishProduct(actor, EventProductUpdated, product, fmt.Sprintf("%s updated product '%s'", actor.Name, product.Name))
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.products.SoftDelete(ctx, id, actor.TenantID, actor.By()); err != nil {
		return err
	}
	s.invalidate(ctx, id, actor.TenantID)
	s.events.Publish(actor.TenantID, EventProductDeleted, map[string]interface{}{
		"product_id": id,
		"user":       actor.eventUser(),
	})
	return nil
}

func (s *catalogService) BulkCreate(ctx context.Context, actor Actor, req BulkCreateRequest) ([]model.Product, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	products := make([]*model.Product, len(req.Products))
	ids := make([]uuid.UUID, len(req.Products))
	for i, r := range req.Products {
		products[i] = r.toModel(actor)
		products[i].ID = uuid.New()
		ids[i] = products[i].ID
	}
	if err := s.products.BulkCreate(ctx, actor.TenantID, products); err != nil {
		return nil, err
	}
	s.invalidateTenant(ctx, actor.TenantID)
	s.publishBulk(actor, "created", len(ids))
	return s.products.FindByIDs(ctx, actor.TenantID, ids)
}

func (s *catalogService) BulkUpdate(ctx context.Context, actor Actor, req BulkUpdateRequest) ([]model.Product, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	patches := make([]repository.BulkPatch, len(req.Items))
	for i, item := range req.Items {
		patches[i] = repository.BulkPatch{ID: item.ID, Patch: item.Changes.toPatch(actor)}
	}
	updated, err := s.products.BulkUpdate(ctx, actor.TenantID, patches)
	if err != nil {
		return nil, err
	}
	s.invalidateTenant(ctx, actor.TenantID)
	s.publishBulk(actor, "updated", len(updated))
	return updated, nil
}

func (s *catalogService) BulkDelete(ctx context.Context, actor Actor, req BulkDeleteRequest) error {
	if err := validator.Check(req); err != nil {
		return err
	}
	if err := s.products.BulkDelete(ctx, actor.TenantID, req.IDs, actor.By()); err != nil {
		return err
	}
	s.invalidateTenant(ctx, actor.TenantID)
	s.publishBulk(actor, "deleted", len(req.IDs))
	return nil
}

func (s *catalogService) UpdateStock(ctx context.Context, actor Actor, id uuid.UUID, req StockRequest) (*model.Product, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	product, err := s.products.UpdateStock(ctx, id, actor.TenantID, req.Quantity, model.StockOperation(req.Operation), actor.By())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id, actor.TenantID)
	s.events.Publish(actor.TenantID, EventStockUpdate, map[string]interface{}{
		"product": map[string]interface{}{
			"id":        product.ID,
			"sku":       product.SKU,
			"name":      product.Name,
			"stock":     product.Stock,
			"low_stock": product.IsLowStock(),
		},
		"operation": req.Operation,
		"quantity":  req.Quantity,
		"user":      actor.eventUser(),
	})
	return product, nil
}

func (s *catalogService) ListBrands(ctx context.Context, tenantID uuid.UUID, search string) ([]model.Brand, error) {
	key := cache.Key(cache.EntityBrands, tenantID, filterValues(repository.ProductFilter{Search: search}, nil))
	var out []model.Brand
	err := s.cache.FetchJSON(ctx, key, s.cache.ListTTL(), &out, func(ctx context.Context) (interface{}, error) {
		return s.brands.List(ctx, tenantID, search)
	})
	return out, err
}

func (s *catalogService) CreateBrand(ctx context.Context, actor Actor, req TaxonomyRequest) (*model.Brand, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	brand := &model.Brand{TenantID: actor.TenantID, Name: strings.TrimSpace(req.Name), Description: req.Description}
	brand.CreatedBy = actor.By()
	brand.UpdatedBy = actor.By()
	if err := s.brands.Create(ctx, brand); err != nil {
		return nil, err
	}
	s.invalidate(ctx, uuid.Nil, actor.TenantID)
	return brand, nil
}

func (s *catalogService) UpdateBrand(ctx context.Context, actor Actor, id uuid.UUID, req TaxonomyRequest) (*model.Brand, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	brand, err := s.brands.Update(ctx, id, actor.TenantID, strings.TrimSpace(req.Name), req.Description, actor.By())
	if err != nil {
		return nil, err
	}
	// products embed their brand, so every cached product of the tenant is stale
	s.invalidateTenant(ctx, actor.TenantID)
	return brand, nil
}

func (s *catalogService) DeleteBrand(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.brands.SoftDelete(ctx, id, actor.TenantID, actor.By()); err != nil {
		return err
	}
	s.invalidateTenant(ctx, actor.TenantID)
	return nil
}

func (s *catalogService) ListCategories(ctx context.Context, tenantID uuid.UUID, search string) ([]model.Category, error) {
	key := cache.Key(cache.EntityCategories, tenantID, filterValues(repository.ProductFilter{Search: search}, nil))
	var out []model.Category
	err := s.cache.FetchJSON(ctx, key, s.cache.ListTTL(), &out, func(ctx context.Context) (interface{}, error) {
		return s.categories.List(ctx, tenantID, search)
	})
	return out, err
}

func (s *catalogService) CreateCategory(ctx context.Context, actor Actor, req TaxonomyRequest) (*model.Category, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	category := &model.Category{TenantID: actor.TenantID, Name: strings.TrimSpace(req.Name), Description: req.Description}
	category.CreatedBy = actor.By()
	category.UpdatedBy = actor.By()
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	s.invalidate(ctx, uuid.Nil, actor.TenantID)
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, actor Actor, id uuid.UUID, req TaxonomyRequest) (*model.Category, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	category, err := s.categories.Update(ctx, id, actor.TenantID, strings.TrimSpace(req.Name), req.Description, actor.By())
	if err != nil {
		return nil, err
	}
	s.invalidateTenant(ctx, actor.TenantID)
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.categories.SoftDelete(ctx, id, actor.TenantID, actor.By()); err != nil {
		return err
	}
	s.invalidateTenant(ctx, actor.TenantID)
	return nil
}

// invalidate and invalidateTenant run after a committed write. The cache
// logs its own failures and the write result stands either way.
func (s *catalogService) invalidate(ctx context.Context, productID, tenantID uuid.UUID) {
	_ = s.cache.Invalidate(ctx, productID, tenantID)
}

func (s *catalogService) invalidateTenant(ctx context.Context, tenantID uuid.UUID) {
	_ = s.cache.InvalidateTenant(ctx, tenantID)
}

func (s *catalogService) publishProduct(actor Actor, event string, p *model.Product, msg string) {
	s.events.Publish(actor.TenantID, event, map[string]interface{}{
		"product": map[string]interface{}{
			"id":    p.ID,
			"sku":   p.SKU,
			"name":  p.Name,
			"stock": p.Stock,
			"price": p.Price,
		},
		"user":    actor.eventUser(),
		"message": msg,
	})
}

func (s *catalogService) publishBulk(actor Actor, action string, count int) {
	s.events.Publish(actor.TenantID, EventProductsBulkChanged, map[string]interface{}{
		"action": action,
		"count":  count,
		"user":   actor.eventUser(),
	})
}
