package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegisgate/aegisgate/internal/shared"
)

// Service handles credential verification.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: shared.NewValidator()}
}

// Authenticate verifies the credentials and returns the matching account.
// Unknown emails and wrong passwords yield the same error.
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*Account, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := shared.CollectFieldErrors(s.validate.Struct(req)); err != nil {
		return nil, err
	}
	acc, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if acc == nil {
		return nil, shared.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return acc, nil
}
