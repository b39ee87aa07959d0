package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go-pos-api/internal/cache"
	"go-pos-api/internal/model"
	"go-pos-api/internal/repository"
	"go-pos-api/internal/service"
	"go-pos-api/internal/testutil"
	"go-pos-api/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCatalog(db *gorm.DB, c *cache.Cache, events service.EventPublisher) service.CatalogService {
	return service.NewCatalogService(
		repository.NewProductRepo(db, nil),
		repository.NewBrandRepo(db, nil),
		repository.NewCategoryRepo(db, nil),
		c,
		events,
		nil,
	)
}

func boolPtr(b bool) *bool { return &b }

func TestCatalog_CacheIsTransparent(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "Toko A")
	admin := actorFor(testutil.CreateUser(t, db, tenant.ID, "admin@a.test", model.RoleAdmin))
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]*cache.Cache{
		"none":   nil,
		"memory": cache.New(cache.NewMemoryStore(time.Minute), cache.Options{}),
		"redis":  cache.New(cache.NewRedisStore(client, cache.KeyPrefix), cache.Options{}),
	}

	writer := newCatalog(db, nil, nil)
	brand, err := writer.CreateBrand(ctx, admin, service.TaxonomyRequest{Name: "Indofood"})
	require.NoError(t, err)
	for _, req := range []service.CreateProductRequest{
		{Name: "Indomie Goreng", SKU: "MIE-1", Price: 3500, Stock: 40, MinStock: 10, BrandID: &brand.ID},
		{Name: "Indomie Soto", SKU: "MIE-2", Price: 3500, Stock: 4, MinStock: 10, BrandID: &brand.ID},
		{Name: "Air Mineral", SKU: "AIR-1", Price: 4000, Stock: 12, IsSellable: boolPtr(false)},
	} {
		_, err := writer.CreateProduct(ctx, admin, req)
		require.NoError(t, err)
	}

	filter := repository.ProductFilter{TenantID: tenant.ID, Search: "indomie", SortBy: "name"}
	render := func(svc service.CatalogService) string {
		page, err := svc.ListProducts(ctx, filter, repository.Pagination{Limit: 10})
		require.NoError(t, err)
		n, err := svc.CountProducts(ctx, filter)
		require.NoError(t, err)
		low, err := svc.ListProducts(ctx, repository.ProductFilter{TenantID: tenant.ID, LowStock: true}, repository.Pagination{})
		require.NoError(t, err)
		product, err := svc.GetProduct(ctx, tenant.ID, page.Products[0].ID)
		require.NoError(t, err)
		out, err := json.Marshal(map[string]interface{}{"page": page, "count": n, "low": low, "product": product})
		require.NoError(t, err)
		return string(out)
	}

	want := render(newCatalog(db, nil, nil))
	for name, c := range stores {
		t.Run(name, func(t *testing.T) {
			svc := newCatalog(db, c, nil)
			assert.JSONEq(t, want, render(svc), "cold read")
			assert.JSONEq(t, want, render(svc), "warm read")
		})
	}
}

func TestCatalog_WritesInvalidateCachedReads(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "Toko A")
	admin := actorFor(testutil.CreateUser(t, db, tenant.ID, "admin@a.test", model.RoleAdmin))
	ctx := context.Background()

	c := cache.New(cache.NewMemoryStore(time.Minute), cache.Options{})
	events := &recordingPublisher{}
	svc := newCatalog(db, c, events)

	p, err := svc.CreateProduct(ctx, admin, service.CreateProductRequest{Name: "Teh Botol", SKU: "TEH-1", Price: 5000, Stock: 3, MinStock: 5})
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	assert.True(t, p.IsSellable)
	assert.True(t, p.IsTrackStock)

	listFilter := repository.ProductFilter{TenantID: tenant.ID}
	lowFilter := repository.ProductFilter{TenantID: tenant.ID, LowStock: true}

	page, err := svc.ListProducts(ctx, listFilter, repository.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	low, err := svc.CountProducts(ctx, lowFilter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), low)
	_, err = svc.GetProduct(ctx, tenant.ID, p.ID)
	require.NoError(t, err)

	// stock change refreshes the product, the listings and the counts
	_, err = svc.UpdateStock(ctx, admin, p.ID, service.StockRequest{Quantity: 10, Operation: "add"})
	require.NoError(t, err)

	got, err := svc.GetProduct(ctx, tenant.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, got.Stock)
	low, err = svc.CountProducts(ctx, lowFilter)
	require.NoError(t, err)
	assert.Zero(t, low)

	name := "Teh Botol Sosro"
	_, err = svc.UpdateProduct(ctx, admin, p.ID, service.UpdateProductRequest{Name: &name})
	require.NoError(t, err)
	page, err = svc.ListProducts(ctx, listFilter, repository.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, "Teh Botol Sosro", page.Products[0].Name)

	// a brand rename reaches the products embedding it
	brand, err := svc.CreateBrand(ctx, admin, service.TaxonomyRequest{Name: "Sosro"})
	require.NoError(t, err)
	_, err = svc.UpdateProduct(ctx, admin, p.ID, service.UpdateProductRequest{BrandID: &brand.ID})
	require.NoError(t, err)
	_, err = svc.GetProduct(ctx, tenant.ID, p.ID)
	require.NoError(t, err)
	_, err = svc.UpdateBrand(ctx, admin, brand.ID, service.TaxonomyRequest{Name: "Sinar Sosro"})
	require.NoError(t, err)
	got, err = svc.GetProduct(ctx, tenant.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Brand)
	assert.Equal(t, "Sinar Sosro", got.Brand.Name)

	require.NoError(t, svc.DeleteProduct(ctx, admin, p.ID))
	_, err = svc.GetProduct(ctx, tenant.ID, p.ID)
	assert.True(t, apperror.IsNotFound(err))
	page, err = svc.ListProducts(ctx, listFilter, repository.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, page.Products)

	assert.Equal(t, []string{
		service.EventProductCreated,
		service.EventStockUpdate,
		service.EventProductUpdated,
		service.EventProductUpdated,
		service.EventProductDeleted,
	}, events.types())
}

func TestCatalog_BulkInvalidatesTenant(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "Toko A")
	admin := actorFor(testutil.CreateUser(t, db, tenant.ID, "admin@a.test", model.RoleAdmin))
	ctx := context.Background()

	svc := newCatalog(db, cache.New(cache.NewMemoryStore(time.Minute), cache.Options{}), nil)
	filter := repository.ProductFilter{TenantID: tenant.ID}

	n, err := svc.CountProducts(ctx, filter)
	require.NoError(t, err)
	require.Zero(t, n)

	created, err := svc.BulkCreate(ctx, admin, service.BulkCreateRequest{Products: []service.CreateProductRequest{
		{Name: "Gula", SKU: "GULA-1", Price: 14000},
		{Name: "Garam", SKU: "GARAM-1", Price: 3000},
	}})
	require.NoError(t, err)
	require.Len(t, created, 2)

	n, err = svc.CountProducts(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	price := int64(15000)
	updated, err := svc.BulkUpdate(ctx, admin, service.BulkUpdateRequest{Items: []service.BulkUpdateItem{
		{ID: created[0].ID, Changes: service.UpdateProductRequest{Price: &price}},
	}})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, int64(15000), updated[0].Price)

	ids := []uuid.UUID{created[0].ID, created[1].ID}
	require.NoError(t, svc.BulkDelete(ctx, admin, service.BulkDeleteRequest{IDs: ids}))
	n, err = svc.CountProducts(ctx, filter)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = svc.BulkDelete(ctx, admin, service.BulkDeleteRequest{})
	assert.True(t, apperror.IsValidation(err))
}

func TestCatalog_StockValidation(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "Toko A")
	admin := actorFor(testutil.CreateUser(t, db, tenant.ID, "admin@a.test", model.RoleAdmin))
	ctx := context.Background()
	svc := newCatalog(db, nil, nil)

	p, err := svc.CreateProduct(ctx, admin, service.CreateProductRequest{Name: "Kecap", SKU: "KCP-1", Price: 9000, Stock: 2})
	require.NoError(t, err)

	_, err = svc.UpdateStock(ctx, admin, p.ID, service.StockRequest{Quantity: -1, Operation: "set"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.UpdateStock(ctx, admin, p.ID, service.StockRequest{Quantity: 1, Operation: "divide"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.UpdateStock(ctx, admin, p.ID, service.StockRequest{Quantity: 3, Operation: "subtract"})
	assert.ErrorIs(t, err, repository.ErrNegativeStock)

	_, err = svc.CreateProduct(ctx, admin, service.CreateProductRequest{Name: "", SKU: "X", Price: -5})
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "price")

	_, err = svc.CreateProduct(ctx, admin, service.CreateProductRequest{Name: "Emas", SKU: "EMS-1", Price: 1000000000001})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "price")

	tooMuch := int64(1000000000001)
	_, err = svc.UpdateProduct(ctx, admin, p.ID, service.UpdateProductRequest{Price: &tooMuch})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "price")

	_, err = svc.UpdateStock(ctx, admin, p.ID, service.StockRequest{Quantity: 1000000001, Operation: "add"})
	assert.True(t, apperror.IsValidation(err))
}
