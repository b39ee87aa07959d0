package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "product:create"
	Name string `gorm:"type:varchar(100)" json:"name"`                     // e.g., "Create Product"
}

const (
	PrivUserView            = "user:view"
	PrivUserCreate          = "user:create"
	PrivUserUpdate          = "user:update"
	PrivUserDelete          = "user:delete"
	PrivUserUpdatePrivilege = "user:update_privilege"
	PrivProductView         = "product:view"
	PrivProductCreate       = "product:create"
	PrivProductUpdate       = "product:update"
	PrivProductDelete       = "product:delete"
	PrivStockUpdate         = "stock:update"
	PrivBrandManage         = "brand:manage"
	PrivCategoryManage      = "category:manage"
	PrivTransactionView     = "transaction:view"
	PrivTransactionCreate   = "transaction:create"
	PrivTransactionComplete = "transaction:complete"
	PrivTransactionManage   = "transaction:manage" // act on orders of other cashiers
	PrivDashboardView       = "dashboard:view"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// User management
	{Code: PrivUserView, Name: "View User"},
	{Code: PrivUserCreate, Name: "Create User"},
	{Code: PrivUserUpdate, Name: "Update User"},
	{Code: PrivUserDelete, Name: "Delete User"},
	{Code: PrivUserUpdatePrivilege, Name: "Update User Privileges"},
	// Catalog
	{Code: PrivProductView, Name: "View Product"},
	{Code: PrivProductCreate, Name: "Create Product"},
	{Code: PrivProductUpdate, Name: "Update Product"},
	{Code: PrivProductDelete, Name: "Delete Product"},
	{Code: PrivStockUpdate, Name: "Adjust Stock"},
	{Code: PrivBrandManage, Name: "Manage Brands"},
	{Code: PrivCategoryManage, Name: "Manage Categories"},
	// Transactions
	{Code: PrivTransactionView, Name: "View Transaction"},
	{Code: PrivTransactionCreate, Name: "Create Transaction"},
	{Code: PrivTransactionComplete, Name: "Complete Payment"},
	{Code: PrivTransactionManage, Name: "Manage All Transactions"},
	// Dashboard
	{Code: PrivDashboardView, Name: "View Dashboard"},
}

// CashierPrivileges is the privilege set granted to the CASHIER role.
var CashierPrivileges = []string{
	PrivProductView,
	PrivTransactionView,
	PrivTransactionCreate,
	PrivTransactionComplete,
}

// IsUserManagement reports whether code belongs to user administration,
// which only MASTER_ADMIN holds by default.
func IsUserManagement(code string) bool {
	switch code {
	case PrivUserCreate, PrivUserUpdate, PrivUserDelete, PrivUserUpdatePrivilege:
		return true
	}
	return false
}
