package repository_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"go-pos-api/internal/model"
	"go-pos-api/internal/repository"
	"go-pos-api/internal/testutil"
	"go-pos-api/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProduct(tenantID uuid.UUID, sku, name string, price int64, stock, minStock int) *model.Product {
	return &model.Product{
		TenantID:     tenantID,
		SKU:          sku,
		Name:         name,
		Unit:         "pcs",
		Price:        price,
		Stock:        stock,
		MinStock:     minStock,
		IsActive:     true,
		IsSellable:   true,
		IsTrackStock: true,
	}
}

func TestProductRepo_CreateAndFind(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, zap.NewNop())
	ctx := context.Background()
	tenant := testutil.CreateTenant(t, db, "Warung Kopi")

	brand := &model.Brand{TenantID: tenant.ID, Name: "Kapal Api"}
	require.NoError(t, repository.NewBrandRepo(db, nil).Create(ctx, brand))

	p := newProduct(tenant.ID, "KOPI-01", "Kopi Hitam", 8000, 10, 2)
	p.BrandID = &brand.ID
	created, err := repo.Create(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, created.Brand)
	assert.Equal(t, "Kapal Api", created.Brand.Name)

	found, err := repo.FindByID(ctx, created.ID, tenant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "KOPI-01", found.SKU)
	assert.Equal(t, int64(8000), found.Price)
	assert.Nil(t, found.Brand)
}

func TestProductRepo_CreateRejectsUnknownBrand(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	tenant := testutil.CreateTenant(t, db, "Toko A")

	p := newProduct(tenant.ID, "SKU-1", "Teh", 5000, 1, 0)
	missing := uuid.New()
	p.BrandID = &missing

	_, err := repo.Create(context.Background(), p)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestProductRepo_DuplicateSKU(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenantA := testutil.CreateTenant(t, db, "Toko A")
	tenantB := testutil.CreateTenant(t, db, "Toko B")

	_, err := repo.Create(ctx, newProduct(tenantA.ID, "SKU-1", "Teh", 5000, 1, 0))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newProduct(tenantA.ID, "SKU-1", "Teh Manis", 6000, 1, 0))
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))

	// SKUs are unique per tenant only
	_, err = repo.Create(ctx, newProduct(tenantB.ID, "SKU-1", "Teh", 5000, 1, 0))
	require.NoError(t, err)
}

func TestProductRepo_SoftDeleteHidesProduct(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenant := testutil.CreateTenant(t, db, "Toko A")

	p, err := repo.Create(ctx, newProduct(tenant.ID, "SKU-1", "Teh", 5000, 1, 0))
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, p.ID, tenant.ID, "tester"))

	_, err = repo.FindByID(ctx, p.ID, tenant.ID, true)
	assert.True(t, apperror.IsNotFound(err))

	page, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID}, repository.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, page.Products)
	assert.Zero(t, page.TotalCount)

	n, err := repo.CountProducts(ctx, repository.ProductFilter{TenantID: tenant.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	// deleting twice reports the row as gone
	err = repo.SoftDelete(ctx, p.ID, tenant.ID, "tester")
	assert.True(t, apperror.IsNotFound(err))

	var raw model.Product
	require.NoError(t, db.Unscoped().Where("id = ?", p.ID).First(&raw).Error)
	assert.True(t, raw.DeletedAt.Valid)
	assert.Equal(t, "tester", raw.DeletedBy)
	assert.False(t, raw.IsActive)
	assert.False(t, raw.IsSellable)
}

func TestProductRepo_TenantIsolation(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenantA := testutil.CreateTenant(t, db, "Toko A")
	tenantB := testutil.CreateTenant(t, db, "Toko B")

	p, err := repo.Create(ctx, newProduct(tenantA.ID, "SKU-1", "Teh", 5000, 4, 0))
	require.NoError(t, err)

	_, err = repo.FindByID(ctx, p.ID, tenantB.ID, false)
	assert.True(t, apperror.IsNotFound(err))

	_, err = repo.UpdateStock(ctx, p.ID, tenantB.ID, 10, model.StockSet, "intruder")
	assert.True(t, apperror.IsNotFound(err))

	name := "Hijacked"
	_, err = repo.Update(ctx, p.ID, tenantB.ID, repository.ProductPatch{Name: &name})
	assert.True(t, apperror.IsNotFound(err))

	err = repo.SoftDelete(ctx, p.ID, tenantB.ID, "intruder")
	assert.True(t, apperror.IsNotFound(err))

	page, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenantB.ID}, repository.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, page.Products)

	got, err := repo.FindByID(ctx, p.ID, tenantA.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Teh", got.Name)
	assert.Equal(t, 4, got.Stock)
}

func TestProductRepo_Filters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenant := testutil.CreateTenant(t, db, "Toko A")

	for _, p := range []*model.Product{
		newProduct(tenant.ID, "KOPI-01", "Kopi Susu", 15000, 20, 5),
		newProduct(tenant.ID, "KOPI-02", "Kopi Hitam", 12000, 3, 5),
		newProduct(tenant.ID, "TEH-01", "Teh 100% Melati", 8000, 50, 5),
	} {
		_, err := repo.Create(ctx, p)
		require.NoError(t, err)
	}

	t.Run("search is case insensitive", func(t *testing.T) {
		page, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID, Search: "KOPI"}, repository.Pagination{})
		require.NoError(t, err)
		assert.Len(t, page.Products, 2)
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		page, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID, Search: "%"}, repository.Pagination{})
		require.NoError(t, err)
		require.Len(t, page.Products, 1)
		assert.Equal(t, "TEH-01", page.Products[0].SKU)
	})

	t.Run("low stock", func(t *testing.T) {
		page, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID, LowStock: true}, repository.Pagination{})
		require.NoError(t, err)
		require.Len(t, page.Products, 1)
		assert.Equal(t, "KOPI-02", page.Products[0].SKU)
	})

	t.Run("sort by price", func(t *testing.T) {
		page, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID, SortBy: "price", SortOrder: "desc"}, repository.Pagination{})
		require.NoError(t, err)
		require.Len(t, page.Products, 3)
		assert.Equal(t, "KOPI-01", page.Products[0].SKU)
		assert.Equal(t, "TEH-01", page.Products[2].SKU)
	})

	t.Run("unknown sort column", func(t *testing.T) {
		_, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID, SortBy: "password"}, repository.Pagination{})
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("unknown sort order", func(t *testing.T) {
		_, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID, SortBy: "name", SortOrder: "sideways"}, repository.Pagination{})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("count matches listing", func(t *testing.T) {
		n, err := repo.CountProducts(ctx, repository.ProductFilter{TenantID: tenant.ID, Search: "kopi"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestProductRepo_Pagination(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenant := testutil.CreateTenant(t, db, "Toko A")

	for i := 0; i < 25; i++ {
		_, err := repo.Create(ctx, newProduct(tenant.ID, fmt.Sprintf("SKU-%02d", i), fmt.Sprintf("Item %02d", i), 1000, 1, 0))
		require.NoError(t, err)
	}

	page, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID, SortBy: "name"}, repository.Pagination{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Products, 5)
	assert.Equal(t, int64(25), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.CurrentPage)
	assert.Equal(t, "Item 20", page.Products[0].Name)

	assert.Equal(t, repository.Pagination{Page: 1, Limit: repository.MaxPageLimit}, repository.Pagination{Page: -1, Limit: 1000}.Normalize())
	assert.Equal(t, repository.Pagination{Page: 2, Limit: repository.DefaultPageLimit}, repository.Pagination{Page: 2}.Normalize())

	huge := repository.Pagination{Page: math.MaxInt, Limit: repository.MaxPageLimit}.Normalize()
	assert.Equal(t, repository.MaxPage, huge.Page)
	assert.Equal(t, (repository.MaxPage-1)*repository.MaxPageLimit, huge.Offset())

	far, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID}, repository.Pagination{Page: math.MaxInt, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, far.Products)
	assert.Equal(t, int64(25), far.TotalCount)
}

func TestProductRepo_UpdateStock(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenant := testutil.CreateTenant(t, db, "Toko A")

	p, err := repo.Create(ctx, newProduct(tenant.ID, "SKU-1", "Teh", 5000, 3, 5))
	require.NoError(t, err)
	assert.True(t, p.IsLowStock())

	p, err = repo.UpdateStock(ctx, p.ID, tenant.ID, 10, model.StockAdd, "tester")
	require.NoError(t, err)
	assert.Equal(t, 13, p.Stock)
	assert.False(t, p.IsLowStock())

	page, err := repo.FindByFilters(ctx, repository.ProductFilter{TenantID: tenant.ID, LowStock: true}, repository.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, page.Products)

	p, err = repo.UpdateStock(ctx, p.ID, tenant.ID, 13, model.StockSubtract, "tester")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	_, err = repo.UpdateStock(ctx, p.ID, tenant.ID, 1, model.StockSubtract, "tester")
	assert.True(t, errors.Is(err, repository.ErrNegativeStock))

	p, err = repo.UpdateStock(ctx, p.ID, tenant.ID, 7, model.StockSet, "tester")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)

	_, err = repo.UpdateStock(ctx, p.ID, tenant.ID, 1, model.StockOperation("multiply"), "tester")
	assert.True(t, apperror.IsValidation(err))

	var movements []model.StockMovement
	require.NoError(t, db.Where("product_id = ?", p.ID).Order("created_at ASC").Find(&movements).Error)
	require.Len(t, movements, 3)
	assert.Equal(t, model.StockAdd, movements[0].Operation)
	assert.Equal(t, 13, movements[0].StockAfter)
	assert.Equal(t, 7, movements[2].StockAfter)
}

func TestProductRepo_ConcurrentSubtractNeverGoesNegative(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenant := testutil.CreateTenant(t, db, "Toko A")

	p, err := repo.Create(ctx, newProduct(tenant.ID, "SKU-1", "Teh", 5000, 10, 0))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateStock(ctx, p.ID, tenant.ID, 1, model.StockSubtract, "tester")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repository.ErrNegativeStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, rejected)

	got, err := repo.FindByID(ctx, p.ID, tenant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestProductRepo_UpdateKeepsStock(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenant := testutil.CreateTenant(t, db, "Toko A")

	p, err := repo.Create(ctx, newProduct(tenant.ID, "SKU-1", "Teh", 5000, 9, 0))
	require.NoError(t, err)
	other, err := repo.Create(ctx, newProduct(tenant.ID, "SKU-2", "Kopi", 7000, 1, 0))
	require.NoError(t, err)

	name, price, inactive := "Teh Tarik", int64(6500), false
	updated, err := repo.Update(ctx, p.ID, tenant.ID, repository.ProductPatch{Name: &name, Price: &price, IsActive: &inactive, UpdatedBy: "tester"})
	require.NoError(t, err)
	assert.Equal(t, "Teh Tarik", updated.Name)
	assert.Equal(t, int64(6500), updated.Price)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 9, updated.Stock)

	taken := other.SKU
	_, err = repo.Update(ctx, p.ID, tenant.ID, repository.ProductPatch{SKU: &taken})
	assert.True(t, apperror.IsConflict(err))
}

func TestProductRepo_BulkOperationsAreAtomic(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewProductRepo(db, nil)
	ctx := context.Background()
	tenant := testutil.CreateTenant(t, db, "Toko A")

	existing, err := repo.Create(ctx, newProduct(tenant.ID, "SKU-1", "Teh", 5000, 1, 0))
	require.NoError(t, err)

	t.Run("create rolls back on conflict", func(t *testing.T) {
		err := repo.BulkCreate(ctx, tenant.ID, []*model.Product{
			newProduct(tenant.ID, "NEW-1", "Roti", 3000, 1, 0),
			newProduct(tenant.ID, "SKU-1", "Teh Lagi", 5000, 1, 0),
		})
		require.Error(t, err)
		assert.True(t, apperror.IsConflict(err))

		n, err := repo.CountProducts(ctx, repository.ProductFilter{TenantID: tenant.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("create rejects repeated sku in batch", func(t *testing.T) {
		err := repo.BulkCreate(ctx, tenant.ID, []*model.Product{
			newProduct(tenant.ID, "NEW-2", "Roti", 3000, 1, 0),
			newProduct(tenant.ID, "NEW-2", "Roti Bakar", 3000, 1, 0),
		})
		assert.True(t, apperror.IsConflict(err))
	})

	t.Run("update rolls back on missing product", func(t *testing.T) {
		name, missingName := "Teh Baru", "Hantu"
		_, err := repo.BulkUpdate(ctx, tenant.ID, []repository.BulkPatch{
			{ID: existing.ID, Patch: repository.ProductPatch{Name: &name}},
			{ID: uuid.New(), Patch: repository.ProductPatch{Name: &missingName}},
		})
		assert.True(t, apperror.IsNotFound(err))

		got, err := repo.FindByID(ctx, existing.ID, tenant.ID, false)
		require.NoError(t, err)
		assert.Equal(t, "Teh", got.Name)
	})

	t.Run("delete rolls back on missing product", func(t *testing.T) {
		err := repo.BulkDelete(ctx, tenant.ID, []uuid.UUID{existing.ID, uuid.New()}, "tester")
		assert.True(t, apperror.IsNotFound(err))

		_, err = repo.FindByID(ctx, existing.ID, tenant.ID, false)
		assert.NoError(t, err)
	})

	t.Run("create succeeds", func(t *testing.T) {
		err := repo.BulkCreate(ctx, tenant.ID, []*model.Product{
			newProduct(tenant.ID, "NEW-3", "Roti", 3000, 1, 0),
			newProduct(tenant.ID, "NEW-4", "Susu", 9000, 1, 0),
		})
		require.NoError(t, err)

		n, err := repo.CountProducts(ctx, repository.ProductFilter{TenantID: tenant.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}
