package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, u User, passwordHash string) (int64, error)
	SetCostVisibility(ctx context.Context, id int64, allowed bool) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users. Staff only.
func (s *Service) ListUsers(ctx context.Context, actor shared.Actor) ([]User, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: user listing is staff only", shared.ErrUnauthorized)
	}
	return s.repo.ListUsers(ctx)
}

// CreateUser provisions an account. Admin only.
func (s *Service) CreateUser(ctx context.Context, actor shared.Actor, in CreateUserRequest) (*User, error) {
	if actor.Role != shared.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins create accounts", shared.ErrUnauthorized)
	}
	role := shared.Role(in.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", shared.ErrInvalidArgument, in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		Email: in.Email,
		Name:  in.Name,
		Role:  role,
	}
	id, err := s.repo.CreateUser(ctx, u, string(hash))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.repo.GetUser(ctx, id)
}

// GrantCostVisibility sets the cost breakup flag on a sales account. Admin
// only; the flag is meaningless on other roles so they are refused.
func (s *Service) GrantCostVisibility(ctx context.Context, actor shared.Actor, userID int64, allowed bool) (*User, error) {
	if actor.Role != shared.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins grant cost visibility", shared.ErrUnauthorized)
	}
	target, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role != shared.RoleSales {
		return nil, fmt.Errorf("%w: cost visibility only applies to sales accounts", shared.ErrInvalidArgument)
	}

	if err := s.repo.SetCostVisibility(ctx, userID, allowed); err != nil {
		return nil, fmt.Errorf("grant cost visibility: %w", err)
	}
	return s.repo.GetUser(ctx, userID)
}

// Deactivate disables an account. Admin only.
func (s *Service) Deactivate(ctx context.Context, actor shared.Actor, userID int64) error {
	if actor.Role != shared.RoleAdmin {
		return fmt.Errorf("%w: only admins deactivate accounts", shared.ErrUnauthorized)
	}
	return s.repo.SetActive(ctx, userID, false)
}
