// Package testutil provides an in-memory SQLite database with the full
// schema and a few fixtures for repository, service and handler tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"go-pos-api/internal/model"
	"go-pos-api/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a private shared-cache SQLite database, migrates it and seeds
// the default privileges and roles.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:pos_%d_%s?mode=memory&cache=shared", dbSeq.Add(1), uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps every statement on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.Migrate(db))
	require.NoError(t, repository.SeedAccessControl(db))
	return db
}

// CreateTenant stores an active tenant.
func CreateTenant(t *testing.T, db *gorm.DB, name string) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{Name: name, Code: repository.TenantCode(name) + "-" + uuid.NewString()[:8], IsActive: true}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

// CreateUser stores an active user of tenant with the given role and that
// role's default privileges.
func CreateUser(t *testing.T, db *gorm.DB, tenantID uuid.UUID, email, roleCode string) *model.User {
	t.Helper()

	var role model.Role
	require.NoError(t, db.Preload("Privileges").Where("code = ?", roleCode).First(&role).Error)

	user := &model.User{
		TenantID:     tenantID,
		Email:        email,
		FullName:     strings.Split(email, "@")[0],
		RoleID:       &role.ID,
		IsActive:     true,
		Privileges:   role.Privileges,
		TokenVersion: uuid.NewString(),
	}
	require.NoError(t, user.SetPassword("secret123"))
	require.NoError(t, db.Create(user).Error)
	user.Role = &role
	return user
}

// CreateProduct stores an active, sellable product of tenant.
func CreateProduct(t *testing.T, db *gorm.DB, tenantID uuid.UUID, sku string, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		TenantID:     tenantID,
		SKU:          sku,
		Name:         "Product " + sku,
		Unit:         "pcs",
		Price:        price,
		Stock:        stock,
		IsActive:     true,
		IsSellable:   true,
		IsTrackStock: true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
