package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegisgate/aegisgate/internal/shared"
)

// CacheInvalidator flushes the authorization cache after committed mutations.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service handles user management business logic. Every account holds at most
// one role, assigned by name and always fully replaced on update.
type Service struct {
	repo     Repository
	cache    CacheInvalidator
	audit    *shared.AuditLogger
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo Repository, cache CacheInvalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		audit:    audit,
		logger:   logger,
		validate: shared.NewValidator(),
	}
}

// Search returns a page of users matching the query against name or email,
// newest first.
func (s *Service) Search(ctx context.Context, query string, page int) ([]User, shared.Pagination, error) {
	if page < 1 {
		page = 1
	}
	p := shared.Pagination{Page: page, PerPage: shared.DefaultPerPage}
	users, total, err := s.repo.Search(ctx, strings.TrimSpace(query), p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("search users: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, shared.NewPagination(page, shared.DefaultPerPage, total), nil
}

// Get fetches a single user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// Create registers a user with a hashed password and the named role.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Role = strings.TrimSpace(req.Role)
	if err := shared.CollectFieldErrors(s.validate.Struct(req)); err != nil {
		return User{}, err
	}
	existing, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return User{}, fmt.Errorf("check existing email: %w", err)
	}
	if existing != nil {
		return User{}, shared.DuplicateNameError("email", req.Email)
	}
	role, err := s.resolveRole(ctx, req.Role)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, req.Name, req.Email, string(hash), role.ID)
	if err != nil {
		return User{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "user.create", created.ID, map[string]any{"email": created.Email, "role": role.Name})
	return created, nil
}

// Update rewrites the user's profile and role assignment. An empty password
// leaves the stored hash unchanged.
func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest) (User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Role = strings.TrimSpace(req.Role)
	if err := shared.CollectFieldErrors(s.validate.Struct(req)); err != nil {
		return User{}, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return User{}, err
	}
	existing, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return User{}, fmt.Errorf("check existing email: %w", err)
	}
	if existing != nil && existing.ID != id {
		return User{}, shared.DuplicateNameError("email", req.Email)
	}
	role, err := s.resolveRole(ctx, req.Role)
	if err != nil {
		return User{}, err
	}

	var hash *string
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		h := string(hashed)
		hash = &h
	}

	if err := s.repo.Update(ctx, id, req.Name, req.Email, hash, role.ID); err != nil {
		return User{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "user.update", id, map[string]any{
		"email":            req.Email,
		"role":             role.Name,
		"password_changed": hash != nil,
	})
	return s.repo.GetByID(ctx, id)
}

// Delete removes the user. Accounts holding the protected role cannot be
// deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Role != nil && user.Role.Name == shared.ProtectedRoleName {
		return shared.ErrProtectedRole
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "user.delete", id, map[string]any{"email": user.Email})
	return nil
}

func (s *Service) resolveRole(ctx context.Context, name string) (*RoleRef, error) {
	role, err := s.repo.FindRoleByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	if role == nil {
		return nil, shared.UnknownReferenceError("role", name)
	}
	return role, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record audit log", slog.Any("error", err))
	}
}
