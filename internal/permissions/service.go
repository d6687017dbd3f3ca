package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/aegisgate/aegisgate/internal/shared"
)

// CacheInvalidator flushes the authorization cache after committed mutations.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service orchestrates the permission registry. Every committed mutation is
// followed by a cache invalidation; a failed mutation never invalidates.
type Service struct {
	repo     Repository
	cache    CacheInvalidator
	audit    *shared.AuditLogger
	logger   *slog.Logger
	validate *validator.Validate
	collator *collate.Collator
}

// NewService builds a Service instance.
func NewService(repo Repository, cache CacheInvalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		audit:    audit,
		logger:   logger,
		validate: shared.NewValidator(),
		collator: collate.New(language.English, collate.IgnoreCase),
	}
}

// Create validates and persists a new permission.
func (s *Service) Create(ctx context.Context, req CreatePermissionRequest) (Permission, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.GroupName = strings.TrimSpace(req.GroupName)
	req.GuardName = strings.TrimSpace(req.GuardName)
	if err := shared.CollectFieldErrors(s.validate.Struct(req)); err != nil {
		return Permission{}, err
	}
	existing, err := s.repo.FindByName(ctx, req.Name)
	if err != nil {
		return Permission{}, fmt.Errorf("check existing permission: %w", err)
	}
	if existing != nil {
		return Permission{}, shared.DuplicateNameError("name", req.Name)
	}

	created, err := s.repo.Create(ctx, Permission{
		Name:      req.Name,
		GroupName: req.GroupName,
		GuardName: req.GuardName,
	})
	if err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "permission.create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// Update validates and rewrites an existing permission. Name uniqueness
// excludes the record itself.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePermissionRequest) (Permission, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.GroupName = strings.TrimSpace(req.GroupName)
	req.GuardName = strings.TrimSpace(req.GuardName)
	if err := shared.CollectFieldErrors(s.validate.Struct(req)); err != nil {
		return Permission{}, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return Permission{}, err
	}
	existing, err := s.repo.FindByName(ctx, req.Name)
	if err != nil {
		return Permission{}, fmt.Errorf("check existing permission: %w", err)
	}
	if existing != nil && existing.ID != id {
		return Permission{}, shared.DuplicateNameError("name", req.Name)
	}

	updated, err := s.repo.Update(ctx, Permission{
		ID:        id,
		Name:      req.Name,
		GroupName: req.GroupName,
		GuardName: req.GuardName,
	})
	if err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "permission.update", id, map[string]any{"name": updated.Name})
	return updated, nil
}

// Delete removes the permission and its role memberships transactionally.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "permission.delete", id, nil)
	return nil
}

// List returns all permissions grouped by group_name. Group order is
// collation-alphabetical and therefore deterministic; permissions within a
// group are ordered by name.
func (s *Service) List(ctx context.Context) ([]Group, error) {
	perms, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[string][]Permission)
	for _, p := range perms {
		byGroup[p.GroupName] = append(byGroup[p.GroupName], p)
	}
	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return s.collator.CompareString(names[i], names[j]) < 0
	})
	groups := make([]Group, 0, len(names))
	for _, name := range names {
		groups = append(groups, Group{Name: name, Permissions: byGroup[name]})
	}
	return groups, nil
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
		Entity:   "permission",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record audit log", slog.Any("error", err))
	}
}
