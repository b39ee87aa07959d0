package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-pos-api/internal/model"
	"go-pos-api/internal/repository"
	"go-pos-api/pkg/apperror"
	"go-pos-api/pkg/jwt"
	"go-pos-api/pkg/validator"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrTenantInactive     = errors.New("store account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSessionTimeout     = errors.New("session expired due to inactivity")
	ErrSessionReplaced    = errors.New("session expired (logged in on another device)")
)

type AuthService interface {
	Register(req *RegisterRequest) (*LoginResponse, error)
	Login(email, password string) (*LoginResponse, error)
	ResetPassword(email, oldPassword, newPassword string) error
	ValidateToken(tokenString string) (*TokenValidationResponse, error)
	Heartbeat(actor Actor) error
}

// RegisterRequest opens a new store with its first MASTER_ADMIN user.
type RegisterRequest struct {
	StoreName string `json:"store_name" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FullName  string `json:"full_name" validate:"required"`
	Phone     string `json:"phone"`
}

type LoginResponse struct {
	Token      string             `json:"token"`
	User       model.StaffView `json:"user"`
	Role       *model.Role        `json:"role"`       // Direct role object for Redux
	Privileges []string           `json:"privileges"` // Flat privileges array for easy checking
}

type TokenValidationResponse struct {
	User       model.StaffView `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
	Claims     *jwt.Claims        `json:"-"`
}

type authService struct {
	userRepo   repository.UserRepository
	tenantRepo repository.TenantRepository
	roleRepo   repository.RoleRepository
	tokens     *jwt.Manager
	events     EventPublisher
	idleLimit  time.Duration
	now        func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	tenantRepo repository.TenantRepository,
	roleRepo repository.RoleRepository,
	tokens *jwt.Manager,
	events EventPublisher,
	idleLimit time.Duration,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		tenantRepo: tenantRepo,
		roleRepo:   roleRepo,
		tokens:     tokens,
		events:     publisherOrNop(events),
		idleLimit:  idleLimit,
		now:        time.Now,
	}
}

func (s *authService) Register(req *RegisterRequest) (*LoginResponse, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role, err := s.roleRepo.FindByCode(model.RoleMasterAdmin)
	if err != nil {
		return nil, err
	}

	code := repository.TenantCode(req.StoreName)
	if code == "" {
		return nil, apperror.Validation("store_name", "must contain letters or digits")
	}
	if _, err := s.tenantRepo.FindByCode(code); err == nil {
		code = code + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}

	tenant := &model.Tenant{Name: strings.TrimSpace(req.StoreName), Code: code, Phone: req.Phone, IsActive: true}
	owner := &model.User{
		Email:      email,
		FullName:   req.FullName,
		RoleID:     &role.ID,
		IsActive:   true,
		Privileges: role.Privileges,
	}
	if err := owner.SetPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.CreateWithOwner(tenant, owner); err != nil {
		return nil, err
	}
	return s.Login(email, req.Password)
}

func (s *authService) Login(email, password string) (*LoginResponse, error) {
	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 2. Verify password before revealing account state
	if !user.PasswordMatches(password) {
		return nil, ErrInvalidCredentials
	}

	// 3. Check if user and store are active
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.Tenant != nil && !user.Tenant.IsActive {
		return nil, ErrTenantInactive
	}

	roleCode := ""
	if user.Role != nil {
		roleCode = user.Role.Code
	}

	// 4. Single Session: a new token version invalidates older tokens
	now := s.now()
	user.TokenVersion = uuid.New().String()
	user.LastSeenAt = &now
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(jwt.Subject{
		UserID:       user.ID,
		TenantID:     user.TenantID,
		Email:        user.Email,
		Name:         user.FullName,
		RoleCode:     roleCode,
		Privileges:   user.PrivilegeCodes(),
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token:      token,
		User:       user.View(),
		Role:       user.Role,
		Privileges: user.PrivilegeCodes(),
	}, nil
}

func (s *authService) ResetPassword(email, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return apperror.Validation("new_password", "must be at least 6 characters long")
	}
	user, err := s.userRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return ErrUserNotFound
	}
	if !user.PasswordMatches(oldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(user.ID, user.Password); err != nil {
		return err
	}
	// Existing sessions end with the old password
	return s.userRepo.UpdateTokenVersion(user.ID, uuid.New().String())
}

func (s *authService) ValidateToken(tokenString string) (*TokenValidationResponse, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.TenantID != claims.TenantID {
		return nil, jwt.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}

	// A session without a heartbeat for longer than the idle limit is over
	if s.idleLimit > 0 {
		if user.LastSeenAt == nil || s.now().Sub(*user.LastSeenAt) > s.idleLimit {
			return nil, ErrSessionTimeout
		}
	}

	return &TokenValidationResponse{
		User:       user.View(),
		Role:       user.Role,
		Privileges: user.PrivilegeCodes(),
		Claims:     claims,
	}, nil
}

func (s *authService) Heartbeat(actor Actor) error {
	if err := s.userRepo.UpdateLastSeen(actor.UserID); err != nil {
		return err
	}
	s.events.Publish(actor.TenantID, EventUserStatus, map[string]interface{}{
		"user_id":      actor.UserID.String(),
		"status":       "online",
		"last_seen_at": s.now(),
	})
	return nil
}
