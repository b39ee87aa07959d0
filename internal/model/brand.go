package model

import "github.com/google/uuid"

// Brand groups products by manufacturer or label.
type Brand struct {
	BaseModel
	TenantID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_brands_tenant_name,priority:1,where:deleted_at IS NULL" json:"tenant_id"`
	Name        string    `gorm:"type:varchar(150);not null;uniqueIndex:idx_brands_tenant_name,priority:2,where:deleted_at IS NULL" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
}

// Category groups products for browsing on the cashier screen.
type Category struct {
	BaseModel
	TenantID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_categories_tenant_name,priority:1,where:deleted_at IS NULL" json:"tenant_id"`
	Name        string    `gorm:"type:varchar(150);not null;uniqueIndex:idx_categories_tenant_name,priority:2,where:deleted_at IS NULL" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
}
