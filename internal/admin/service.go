// Package admin manages administrator accounts and their recovery questions.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"rollbook/internal/apperr"
	"rollbook/internal/auth"
	"rollbook/internal/config"
)

const minPasswordLen = 8

// Store is the persistence the service needs.
type Store interface {
	Get(ctx context.Context, userID string) (Admin, error)
	CreateIfMissing(ctx context.Context, a Admin) (bool, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
}

// Service authenticates admins and runs password recovery.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService wires an admin service.
func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log}
}

// NormalizeUserID lower-cases and trims a user id.
func NormalizeUserID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func normalizeAnswer(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}

// Login checks credentials. Unknown users and wrong passwords look the same.
func (s *Service) Login(ctx context.Context, userID, password string) (Admin, error) {
	a, err := s.store.Get(ctx, NormalizeUserID(userID))
	if errors.Is(err, apperr.ErrNotFound) {
		return Admin{}, apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return Admin{}, err
	}
	if !auth.CheckSecret(a.PasswordHash, password) {
		return Admin{}, apperr.Unauthorized("Invalid credentials")
	}
	return a, nil
}

// VerifyAnswers checks both security answers. Matching ignores case and
// surrounding whitespace.
func (s *Service) VerifyAnswers(ctx context.Context, userID, answer1, answer2 string) error {
	a, err := s.store.Get(ctx, NormalizeUserID(userID))
	if err != nil {
		return err
	}
	ok1 := auth.CheckSecret(a.Answer1Hash, normalizeAnswer(answer1))
	ok2 := auth.CheckSecret(a.Answer2Hash, normalizeAnswer(answer2))
	if !ok1 || !ok2 {
		return apperr.Unauthorized("Wrong answers")
	}
	return nil
}

// ResetPassword sets a new password after re-checking the answers.
func (s *Service) ResetPassword(ctx context.Context, userID, answer1, answer2, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	if err := s.VerifyAnswers(ctx, userID, answer1, answer2); err != nil {
		return err
	}
	hash, err := auth.HashSecret(newPassword)
	if err != nil {
		return err
	}
	id := NormalizeUserID(userID)
	if err := s.store.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "admin password reset", "user_id", id)
	return nil
}

// EnsureSeed creates the configured admin when it does not exist yet.
// Nothing happens when no seed password is configured.
func (s *Service) EnsureSeed(ctx context.Context, seed config.AdminSeed) (bool, error) {
	if seed.Password == "" {
		return false, nil
	}
	id := NormalizeUserID(seed.UserID)
	if id == "" {
		return false, apperr.Validation("admin user id is empty")
	}
	a := Admin{UserID: id}
	var err error
	if a.PasswordHash, err = auth.HashSecret(seed.Password); err != nil {
		return false, err
	}
	if a.Answer1Hash, err = auth.HashSecret(normalizeAnswer(seed.Answer1)); err != nil {
		return false, err
	}
	if a.Answer2Hash, err = auth.HashSecret(normalizeAnswer(seed.Answer2)); err != nil {
		return false, err
	}
	created, err := s.store.CreateIfMissing(ctx, a)
	if err != nil {
		return false, err
	}
	if created {
		s.log.InfoContext(ctx, "admin seeded", "user_id", id)
	}
	return created, nil
}

// Resolve maps an admin token subject to a principal.
func (s *Service) Resolve(ctx context.Context, subject string) (auth.Principal, error) {
	a, err := s.store.Get(ctx, subject)
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.Principal{ID: a.UserID, Role: auth.RoleAdmin, Name: a.UserID}, nil
}
