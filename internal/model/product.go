package model

import "github.com/google/uuid"

// Product is a sellable catalog item. SKU is unique per tenant among rows
// that are not soft deleted.
type Product struct {
	BaseModel
	TenantID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_products_tenant_sku,priority:1,where:deleted_at IS NULL" json:"tenant_id"`
	SKU          string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_products_tenant_sku,priority:2,where:deleted_at IS NULL" json:"sku"`
	Name         string     `gorm:"type:varchar(255);not null;index" json:"name"`
	Description  string     `gorm:"type:text" json:"description"`
	Unit         string     `gorm:"type:varchar(20)" json:"unit"`
	Price        int64      `gorm:"not null;default:0" json:"price"`
	Stock        int        `gorm:"not null;default:0" json:"stock"`
	MinStock     int        `gorm:"not null;default:0" json:"min_stock"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	IsSellable   bool       `gorm:"not null" json:"is_sellable"`
	IsTrackStock bool       `gorm:"not null" json:"is_track_stock"`
	BrandID      *uuid.UUID `gorm:"type:uuid;index" json:"brand_id"`
	Brand        *Brand     `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	CategoryID   *uuid.UUID `gorm:"type:uuid;index" json:"category_id"`
	Category     *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// IsLowStock mirrors the SQL low stock predicate used by product listings.
func (p *Product) IsLowStock() bool {
	return p.IsTrackStock && p.Stock <= p.MinStock
}
