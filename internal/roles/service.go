package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aegisgate/aegisgate/internal/shared"
)

// CacheInvalidator flushes the authorization cache after committed mutations.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service handles role registry business logic. Permission assignments use
// full-replace semantics: the stored set always becomes exactly the
// requested set, compared as sets so reordering the same IDs is a no-op.
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

// List returns all roles with their permission sets.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Create inserts a role holding exactly the requested permission set.
func (s *Service) Create(ctx context.Context, req CreateRoleRequest) (Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := shared.CollectFieldErrors(s.validate.Struct(req)); err != nil {
		return Role{}, err
	}
	existing, err := s.repo.FindByName(ctx, req.Name)
	if err != nil {
		return Role{}, fmt.Errorf("check existing role: %w", err)
	}
	if existing != nil {
		return Role{}, shared.DuplicateNameError("name", req.Name)
	}
	desired, err := s.resolvePermissionSet(ctx, req.PermissionIDs)
	if err != nil {
		return Role{}, err
	}

	created, err := s.repo.Create(ctx, req.Name, shared.DefaultGuard, setToSlice(desired))
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "role.create", created.ID, map[string]any{"name": created.Name, "permissions": len(created.Permissions)})
	return created, nil
}

// Update renames the role and fully replaces its permission set. When the
// requested state equals the stored state the call is a no-op: no write, no
// cache invalidation.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRoleRequest) (Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := shared.CollectFieldErrors(s.validate.Struct(req)); err != nil {
		return Role{}, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Role{}, err
	}
	existing, err := s.repo.FindByName(ctx, req.Name)
	if err != nil {
		return Role{}, fmt.Errorf("check existing role: %w", err)
	}
	if existing != nil && existing.ID != id {
		return Role{}, shared.DuplicateNameError("name", req.Name)
	}
	desired, err := s.resolvePermissionSet(ctx, req.PermissionIDs)
	if err != nil {
		return Role{}, err
	}

	held := make(map[int64]struct{}, len(current.Permissions))
	for _, ref := range current.Permissions {
		held[ref.ID] = struct{}{}
	}
	var attach, detach []int64
	for permID := range desired {
		if _, ok := held[permID]; !ok {
			attach = append(attach, permID)
		}
	}
	for permID := range held {
		if _, ok := desired[permID]; !ok {
			detach = append(detach, permID)
		}
	}

	if req.Name == current.Name && len(attach) == 0 && len(detach) == 0 {
		return current, nil
	}

	if err := s.repo.Update(ctx, id, req.Name, attach, detach); err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "role.update", id, map[string]any{
		"name":     req.Name,
		"attached": len(attach),
		"detached": len(detach),
	})
	return s.repo.GetByID(ctx, id)
}

// Delete removes the role; assigned users transition to no role.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "role.delete", id, nil)
	return nil
}

// resolvePermissionSet deduplicates the requested IDs and rejects any that do
// not reference an existing permission.
func (s *Service) resolvePermissionSet(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	existing, err := s.repo.ExistingPermissionIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	for _, id := range unique {
		if _, ok := existing[id]; !ok {
			return nil, shared.UnknownReferenceError("permissions", strconv.FormatInt(id, 10))
		}
	}
	return seen, nil
}

func setToSlice(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
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
		Entity:   "role",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record audit log", slog.Any("error", err))
	}
}
