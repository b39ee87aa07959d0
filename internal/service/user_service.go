package service

import (
	"errors"
	"strings"
	"time"

	"go-pos-api/internal/model"
	"go-pos-api/internal/repository"
	"go-pos-api/pkg/apperror"
	"go-pos-api/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrEmailExists  = &apperror.ConflictError{Message: "email already exists"}
	ErrRoleNotFound = apperror.Validation("role_id", "does not exist")
	ErrSelfDelete   = &apperror.DomainError{Code: "self_delete", Message: "you cannot delete your own account"}
)

type UserService interface {
	CreateUser(actor Actor, req *CreateUserRequest) (*model.User, error)
	UpdateUser(actor Actor, userID uuid.UUID, req *UpdateUserRequest) (*model.User, error)
	DeleteUser(actor Actor, userID uuid.UUID) error
	UpdateUserPrivileges(actor Actor, userID uuid.UUID, privilegeCodes []string) (*model.User, error)
	GetAllUsers(actor Actor) ([]model.StaffView, error)
	GetUserByID(actor Actor, id uuid.UUID) (*model.StaffView, error)
}

type CreateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=6"`
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number"`
	BirthDate   *string `json:"birth_date"` // Format: YYYY-MM-DD
	RoleID      uint    `json:"role_id" validate:"required"`
}

type UpdateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6"` // Optional
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number"`
	BirthDate   *string `json:"birth_date"` // Format: YYYY-MM-DD
	RoleID      uint    `json:"role_id" validate:"required"`
	IsActive    *bool   `json:"is_active"`
}

type UpdatePrivilegesRequest struct {
	PrivilegeCodes []string `json:"privilege_codes" validate:"required"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
}

func NewUserService(userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, roleRepo repository.RoleRepository) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
	}
}

func parseBirthDate(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *v)
	if err != nil {
		return nil, apperror.Validation("birth_date", "must use the YYYY-MM-DD format")
	}
	return &parsed, nil
}

// emailTaken treats any lookup failure other than "not found" as taken so
// a storage error never lets a duplicate through.
func (s *userService) emailTaken(email string, exceptID uuid.UUID) (bool, error) {
	existing, err := s.userRepo.FindByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	return existing.ID != exceptID, nil
}

func (s *userService) CreateUser(actor Actor, req *CreateUserRequest) (*model.User, error) {
	// 1. Validate request
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	// 2. Email is unique across tenants
	taken, err := s.emailTaken(req.Email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailExists
	}

	// 3. Validate role exists
	role, err := s.roleRepo.FindByID(req.RoleID)
	if err != nil {
		return nil, ErrRoleNotFound
	}

	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}

	// 4. Create user inside the caller's tenant with the role's privileges
	user := &model.User{
		TenantID:    actor.TenantID,
		Email:       req.Email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		BirthDate:   birthDate,
		RoleID:      &req.RoleID,
		IsActive:    true,
		Privileges:  role.Privileges,
	}
	user.CreatedBy = actor.By()
	user.UpdatedBy = actor.By()

	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return s.userRepo.FindByIDInTenant(user.ID, actor.TenantID)
}

func (s *userService) findInTenant(actor Actor, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByIDInTenant(userID, actor.TenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user")
	}
	return user, err
}

func (s *userService) UpdateUser(actor Actor, userID uuid.UUID, req *UpdateUserRequest) (*model.User, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.findInTenant(actor, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != user.Email {
		taken, err := s.emailTaken(req.Email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailExists
		}
	}

	role, err := s.roleRepo.FindByID(req.RoleID)
	if err != nil {
		return nil, ErrRoleNotFound
	}

	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}

	roleChanged := user.RoleID == nil || *user.RoleID != req.RoleID

	user.Email = req.Email
	user.FullName = req.FullName
	user.PhoneNumber = req.PhoneNumber
	user.BirthDate = birthDate
	user.RoleID = &req.RoleID
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = actor.By()

	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	// Role change resets privileges to the role defaults
	if roleChanged {
		if err := s.userRepo.UpdatePrivileges(user.ID, role.Privileges); err != nil {
			return nil, err
		}
	}

	return s.userRepo.FindByIDInTenant(userID, actor.TenantID)
}

func (s *userService) DeleteUser(actor Actor, userID uuid.UUID) error {
	if userID == actor.UserID {
		return ErrSelfDelete
	}
	err := s.userRepo.Delete(userID, actor.TenantID, actor.By())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("user")
	}
	return err
}

func (s *userService) UpdateUserPrivileges(actor Actor, userID uuid.UUID, privilegeCodes []string) (*model.User, error) {
	user, err := s.findInTenant(actor, userID)
	if err != nil {
		return nil, err
	}

	privileges, err := s.privilegeRepo.FindByCodes(privilegeCodes)
	if err != nil {
		return nil, err
	}
	if len(privileges) != len(uniqueStrings(privilegeCodes)) {
		return nil, apperror.Validation("privilege_codes", "contains unknown privilege codes")
	}

	if err := s.userRepo.UpdatePrivileges(user.ID, privileges); err != nil {
		return nil, err
	}

	user.UpdatedBy = actor.By()
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return s.userRepo.FindByIDInTenant(userID, actor.TenantID)
}

func (s *userService) GetAllUsers(actor Actor) ([]model.StaffView, error) {
	users, err := s.userRepo.FindAll(actor.TenantID)
	if err != nil {
		return nil, err
	}

	responses := make([]model.StaffView, len(users))
	for i, user := range users {
		responses[i] = user.View()
	}
	return responses, nil
}

func (s *userService) GetUserByID(actor Actor, id uuid.UUID) (*model.StaffView, error) {
	user, err := s.findInTenant(actor, id)
	if err != nil {
		return nil, err
	}
	response := user.View()
	return &response, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
