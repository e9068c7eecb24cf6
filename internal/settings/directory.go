package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

var (
	// ErrInvalid is returned for user records that fail validation.
	ErrInvalid = errors.New("invalid user")
	// ErrConflict is returned when an email address is already registered.
	ErrConflict = errors.New("email already registered")
)

// Default department created on first run.
const (
	DefaultDepartmentID   = "dept-default-1"
	DefaultDepartmentName = "Field Operations"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s *Store) accounts(ctx context.Context) ([]model.Account, error) {
	list, err := kv.GetLenient(ctx, s.kv, kv.KeyUsers, []model.Account{}, s.log)
	if list == nil {
		list = []model.Account{}
	}
	return list, err
}

// Users returns the directory without credentials.
func (s *Store) Users(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, a.User)
	}
	return users, nil
}

// LookupUser returns the user with the given id, or nil.
func (s *Store) LookupUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ID == id {
			u := a.User
			return &u, nil
		}
	}
	return nil, nil
}

// CreateUser adds a user with the given password. An empty ID is generated
// and an empty status defaults to Active.
func (s *Store) CreateUser(ctx context.Context, u model.User, password string) (*model.User, error) {
	if u.ID == "" {
		u.ID = "user-" + uuid.NewString()
	}
	if u.Status == "" {
		u.Status = model.UserStatusActive
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := validate.Struct(u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Email == u.Email {
			return nil, ErrConflict
		}
		if a.ID == u.ID {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalid, u.ID)
		}
	}

	accounts = append(accounts, model.Account{User: u, PasswordHash: string(hash)})
	if err := kv.SetJSON(ctx, s.kv, kv.KeyUsers, accounts); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &u, nil
}

// Authenticate checks an email and password against the directory. It
// returns nil for unknown emails, wrong passwords and inactive users.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	s.mu.Lock()
	accounts, err := s.accounts(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range accounts {
		if a.Email != email {
			continue
		}
		if a.Status == model.UserStatusInactive {
			return nil, nil
		}
		if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
			return nil, nil
		}
		u := a.User
		return &u, nil
	}
	return nil, nil
}

// Seed prepares an empty directory: it stores the default department, the
// default role permissions and the given administrator. It does nothing and
// returns false when users already exist.
func (s *Store) Seed(ctx context.Context, admin model.User, password string) (bool, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}

	dept := model.Department{ID: DefaultDepartmentID, Name: DefaultDepartmentName}
	if err := s.SetDepartments(ctx, []model.Department{dept}); err != nil {
		return false, fmt.Errorf("seeding departments: %w", err)
	}
	if err := s.SetRolePermissions(ctx, DefaultRolePermissions()); err != nil {
		return false, fmt.Errorf("seeding role permissions: %w", err)
	}
	if err := s.SetFeaturePermissions(ctx, DefaultFeaturePermissions()); err != nil {
		return false, fmt.Errorf("seeding feature permissions: %w", err)
	}

	admin.Role = model.RoleAdmin
	if admin.DepartmentID == "" {
		admin.DepartmentID = dept.ID
	}
	if _, err := s.CreateUser(ctx, admin, password); err != nil {
		return false, fmt.Errorf("seeding admin user: %w", err)
	}
	return true, nil
}
