// Package session tracks the single currently-authenticated user and
// keeps a minimal projection of it in a durable slot so the session
// survives a restart.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage"
)

// Session holds the active user, if any. The slot only ever stores the
// {id, name} projection; credential digests never reach it.
type Session struct {
	slot      storage.SessionSlot
	directory storage.UserDirectory // nil in the no-auth deployment
	current   *models.User
}

// New creates a session over the given slot. directory may be nil, in
// which case Restore skips the does-this-user-still-exist check.
func New(slot storage.SessionSlot, directory storage.UserDirectory) *Session {
	return &Session{slot: slot, directory: directory}
}

// Start makes user the active session and persists its projection.
func (s *Session) Start(ctx context.Context, user *models.User) error {
	if err := s.slot.SaveSession(ctx, user.ID, user.Name); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	s.current = &models.User{ID: user.ID, Name: user.Name}
	return nil
}

// Restore reads the persisted projection, if any, and makes it the
// active session without re-validating credentials. A slot pointing at a
// user the directory no longer recognizes is treated as corrupt: the
// slot is cleared and no session is reported. Returns (nil, nil) when
// there is no session to restore.
func (s *Session) Restore(ctx context.Context) (*models.User, error) {
	id, name, err := s.slot.LoadSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading session slot: %w", err)
	}
	if id == "" {
		return nil, nil
	}

	if s.directory != nil {
		known, err := s.directory.GetUser(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("validating restored session: %w", err)
		}
		if known == nil {
			slog.Warn("Session slot references unknown user, clearing", "user_id", id)
			if err := s.slot.ClearSession(ctx); err != nil {
				return nil, fmt.Errorf("clearing corrupt session slot: %w", err)
			}
			return nil, nil
		}
	}

	s.current = &models.User{ID: id, Name: name}
	return s.current, nil
}

// End clears the session after the confirm gate approves. Returns false
// without touching anything when the gate declines. The record cache is
// the sync controller's to clear; see syncer.Controller.Logout.
func (s *Session) End(ctx context.Context, confirm func() bool) (bool, error) {
	if confirm != nil && !confirm() {
		return false, nil
	}
	if err := s.slot.ClearSession(ctx); err != nil {
		return false, fmt.Errorf("clearing session slot: %w", err)
	}
	s.current = nil
	return true, nil
}

// Current returns the active user, or nil when logged out.
func (s *Session) Current() *models.User {
	return s.current
}
