package model

// Tenant is an isolated business account. Every catalog, order and user row
// belongs to exactly one tenant.
type Tenant struct {
	BaseModel
	Name     string `gorm:"type:varchar(150);not null" json:"name"`
	Code     string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Address  string `gorm:"type:text" json:"address,omitempty"`
	Phone    string `gorm:"type:varchar(30)" json:"phone,omitempty"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}
