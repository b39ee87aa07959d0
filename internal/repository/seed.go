package repository

import (
	"errors"
	"strings"

	"go-pos-api/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedAccessControl makes sure default privileges and roles exist and that
// roles without privileges get their default set:
// MASTER_ADMIN everything, ADMIN everything except user management, CASHIER
// model.CashierPrivileges.
func SeedAccessControl(db *gorm.DB) error {
	privilegeRepo := NewPrivilegeRepo(db)
	roleRepo := NewRoleRepo(db)

	if err := privilegeRepo.SeedDefaults(); err != nil {
		return err
	}
	if err := roleRepo.SeedDefaults(); err != nil {
		return err
	}

	all, err := privilegeRepo.FindAll()
	if err != nil {
		return err
	}

	for _, code := range []string{model.RoleMasterAdmin, model.RoleAdmin, model.RoleCashier} {
		role, err := roleRepo.FindByCode(code)
		if err != nil {
			return err
		}
		if len(role.Privileges) > 0 {
			continue
		}
		if err := roleRepo.AssignPrivileges(role, DefaultRolePrivileges(code, all)); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRolePrivileges picks the default privilege subset of role code.
func DefaultRolePrivileges(code string, all []model.Privilege) []model.Privilege {
	picked := []model.Privilege{}
	for _, p := range all {
		switch code {
		case model.RoleMasterAdmin:
			picked = append(picked, p)
		case model.RoleAdmin:
			if !model.IsUserManagement(p.Code) {
				picked = append(picked, p)
			}
		case model.RoleCashier:
			for _, c := range model.CashierPrivileges {
				if p.Code == c {
					picked = append(picked, p)
				}
			}
		}
	}
	return picked
}

// TenantCode derives a stable tenant code from a display name.
func TenantCode(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// SeedOwner creates a tenant named tenantName with a MASTER_ADMIN user when
// no user with email exists yet. It reports whether anything was created.
func SeedOwner(db *gorm.DB, tenantName, email, password string) (bool, error) {
	users := NewUserRepo(db)
	if _, err := users.FindByEmail(email); err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	role, err := NewRoleRepo(db).FindByCode(model.RoleMasterAdmin)
	if err != nil {
		return false, err
	}

	tenants := NewTenantRepo(db)
	code := TenantCode(tenantName)
	tenant, err := tenants.FindByCode(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tenant = &model.Tenant{Name: tenantName, Code: code, IsActive: true}
	} else if err != nil {
		return false, err
	}

	owner := &model.User{
		Email:      email,
		FullName:   "Master Administrator",
		RoleID:     &role.ID,
		IsActive:   true,
		Privileges: role.Privileges,
	}
	owner.CreatedBy = "system"
	owner.UpdatedBy = "system"
	if err := owner.SetPassword(password); err != nil {
		return false, err
	}

	if tenant.ID != uuid.Nil {
		owner.TenantID = tenant.ID
		return true, users.Create(owner)
	}
	return true, tenants.CreateWithOwner(tenant, owner)
}
