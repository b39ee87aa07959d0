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

type BrandRepository interface {
	List(ctx context.Context, tenantID uuid.UUID, search string) ([]model.Brand, error)
	FindByID(ctx context.Context, id, tenantID uuid.UUID) (*model.Brand, error)
	Create(ctx context.Context, brand *model.Brand) error
	Update(ctx context.Context, id, tenantID uuid.UUID, name, description, updatedBy string) (*model.Brand, error)
	SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error
}

type CategoryRepository interface {
	List(ctx context.Context, tenantID uuid.UUID, search string) ([]model.Category, error)
	FindByID(ctx context.Context, id, tenantID uuid.UUID) (*model.Category, error)
	Create(ctx context.Context, category *model.Category) error
	Update(ctx context.Context, id, tenantID uuid.UUID, name, description, updatedBy string) (*model.Category, error)
	SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error
}

// taxonomyRepo serves the two name/description catalog tables.
type taxonomyRepo[T model.Brand | model.Category] struct {
	db       *gorm.DB
	log      opLogger
	resource string
}

func NewBrandRepo(db *gorm.DB, log *zap.Logger) BrandRepository {
	return &taxonomyRepo[model.Brand]{db: db, log: newOpLogger(log, "brand_repo"), resource: "brand"}
}

func NewCategoryRepo(db *gorm.DB, log *zap.Logger) CategoryRepository {
	return &taxonomyRepo[model.Category]{db: db, log: newOpLogger(log, "category_repo"), resource: "category"}
}

func (r *taxonomyRepo[T]) scoped(db *gorm.DB, tenantID uuid.UUID) *gorm.DB {
	return tenantScoped(db, new(T), tenantID)
}

func (r *taxonomyRepo[T]) List(ctx context.Context, tenantID uuid.UUID, search string) ([]T, error) {
	q := r.scoped(r.db.WithContext(ctx), tenantID)
	if search != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, likePattern(search))
	}
	items := []T{}
	err := q.Order("name ASC, id ASC").Find(&items).Error
	return items, r.log.fail("list", err, zap.Stringer("tenant_id", tenantID))
}

func (r *taxonomyRepo[T]) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*T, error) {
	item, err := r.findByID(r.db.WithContext(ctx), id, tenantID)
	return item, r.log.fail("find_by_id", err, zap.Stringer("id", id), zap.Stringer("tenant_id", tenantID))
}

func (r *taxonomyRepo[T]) findByID(db *gorm.DB, id, tenantID uuid.UUID) (*T, error) {
	var item T
	if err := r.scoped(db, tenantID).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(r.resource)
		}
		return nil, err
	}
	return &item, nil
}

func (r *taxonomyRepo[T]) ensureNameFree(tx *gorm.DB, tenantID uuid.UUID, name string, exceptID uuid.UUID) error {
	q := r.scoped(tx, tenantID).Where("name = ?", name)
	if exceptID != uuid.Nil {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperror.Conflict("%s %q already exists", r.resource, name)
	}
	return nil
}

func (r *taxonomyRepo[T]) Create(ctx context.Context, item *T) error {
	tenantID, name := taxonomyKey(item)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureNameFree(tx, tenantID, name, uuid.Nil); err != nil {
			return err
		}
		if err := tx.Create(item).Error; err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("%s %q already exists", r.resource, name)
			}
			return err
		}
		return nil
	})
	return r.log.fail("create", err, zap.Stringer("tenant_id", tenantID))
}

func (r *taxonomyRepo[T]) Update(ctx context.Context, id, tenantID uuid.UUID, name, description, updatedBy string) (*T, error) {
	var updated *T
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.findByID(tx, id, tenantID); err != nil {
			return err
		}
		if err := r.ensureNameFree(tx, tenantID, name, id); err != nil {
			return err
		}
		err := r.scoped(tx, tenantID).Where("id = ?", id).Updates(map[string]interface{}{
			"name":        name,
			"description": description,
			"updated_by":  updatedBy,
		}).Error
		if err != nil {
			return err
		}
		updated, err = r.findByID(tx, id, tenantID)
		return err
	})
	if err != nil {
		return nil, r.log.fail("update", err, zap.Stringer("id", id), zap.Stringer("tenant_id", tenantID))
	}
	return updated, nil
}

// SoftDelete hides the row; products keep their reference and preload it as null.
func (r *taxonomyRepo[T]) SoftDelete(ctx context.Context, id, tenantID uuid.UUID, deletedBy string) error {
	res := r.scoped(r.db.WithContext(ctx), tenantID).Where("id = ?", id).Updates(map[string]interface{}{
		"deleted_at": time.Now(),
		"deleted_by": deletedBy,
	})
	if res.Error != nil {
		return r.log.fail("soft_delete", res.Error, zap.Stringer("id", id), zap.Stringer("tenant_id", tenantID))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound(r.resource)
	}
	return nil
}

func taxonomyKey[T model.Brand | model.Category](item *T) (uuid.UUID, string) {
	switch v := any(item).(type) {
	case *model.Brand:
		return v.TenantID, v.Name
	case *model.Category:
		return v.TenantID, v.Name
	}
	return uuid.Nil, ""
}
