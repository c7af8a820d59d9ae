// Package identity resolves registration and login requests against the
// user directory.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage"
)

var (
	// ErrDuplicateUser is returned when registering an id that already
	// exists (after normalization).
	ErrDuplicateUser = errors.New("student id already registered")

	// ErrUnknownUser is returned when no account matches the normalized id.
	ErrUnknownUser = errors.New("unknown student id")

	// ErrInvalidCredential is returned when a credential is required and
	// the checksum does not match the stored digest.
	ErrInvalidCredential = errors.New("invalid credential")
)

// MinCredentialLength is the minimum accepted credential length when
// credentials are enabled.
const MinCredentialLength = 4

// Store authenticates and registers users over a storage.UserDirectory.
// It owns id normalization and the credential checksum; the directory
// only ever sees normalized ids.
type Store struct {
	directory         storage.UserDirectory
	requireCredential bool
	now               func() time.Time
}

// New creates an identity store. requireCredential selects between the
// credential-checked deployments and the no-auth one.
func New(directory storage.UserDirectory, requireCredential bool) *Store {
	return &Store{
		directory:         directory,
		requireCredential: requireCredential,
		now:               time.Now,
	}
}

// Register creates a new account. The id is normalized and the name
// cleaned before anything is checked or stored. Fails with
// models.ErrInvalidInput on empty id/name or credential problems, and
// with ErrDuplicateUser when the normalized id is taken.
func (s *Store) Register(ctx context.Context, id, name, credential, confirm string) (*models.User, error) {
	normalized := NormalizeID(id)
	cleanName := NormalizeName(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: student id must not be empty", models.ErrInvalidInput)
	}
	if cleanName == "" {
		return nil, fmt.Errorf("%w: name must not be empty", models.ErrInvalidInput)
	}

	digest := ""
	if s.requireCredential {
		if len(credential) < MinCredentialLength {
			return nil, fmt.Errorf("%w: credential must be at least %d characters", models.ErrInvalidInput, MinCredentialLength)
		}
		if credential != confirm {
			return nil, fmt.Errorf("%w: credential confirmation does not match", models.ErrInvalidInput)
		}
		digest = Checksum(credential)
	}

	existing, err := s.directory.GetUser(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("checking for existing user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, normalized)
	}

	user := &models.User{
		ID:               normalized,
		Name:             cleanName,
		CredentialDigest: digest,
		RegisteredAt:     s.now().Unix(),
	}
	if err := s.directory.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return redacted(user), nil
}

// Authenticate resolves a login request to the stored account. Fails
// with ErrUnknownUser when the normalized id has no account and with
// ErrInvalidCredential when credentials are enabled and the checksum
// mismatches. The returned User never carries the credential digest.
func (s *Store) Authenticate(ctx context.Context, id, credential string) (*models.User, error) {
	normalized := NormalizeID(id)
	if normalized == "" {
		return nil, fmt.Errorf("%w: student id must not be empty", models.ErrInvalidInput)
	}

	user, err := s.directory.GetUser(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, normalized)
	}

	if s.requireCredential && user.CredentialDigest != Checksum(credential) {
		return nil, ErrInvalidCredential
	}

	return redacted(user), nil
}

// redacted copies the user without the credential digest, so callers can
// hold or persist the result freely.
func redacted(u *models.User) *models.User {
	copy := *u
	copy.CredentialDigest = ""
	return &copy
}
