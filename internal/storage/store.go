// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/okabe/studylog/internal/models"
)

// ErrPersistence marks an I/O failure on the backing medium. A failed
// write leaves the prior durable snapshot intact; a failed read degrades
// to an empty result at the caller's discretion, it never corrupts state.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError wraps err so it matches ErrPersistence while keeping
// the underlying cause in the chain.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// RecordStore owns the durable record collections, partitioned by owning
// user. The protocol is full-overwrite: ReplaceAll serializes the entire
// in-memory list every time. O(n) per mutation, acceptable for the
// tens-to-low-thousands records a single user accumulates.
//
// Implementations: sqlite (local multi-user database), badgerkv (local
// document store), remote (hosted document API).
type RecordStore interface {
	// LoadAll returns the records owned by userID in stored order
	// (newest first). Absent storage yields an empty list, not an error.
	LoadAll(ctx context.Context, userID string) ([]models.StudyRecord, error)

	// ReplaceAll atomically overwrites userID's full record set, leaving
	// every other user's records untouched. A failed write leaves the
	// prior durable snapshot in place.
	ReplaceAll(ctx context.Context, userID string, records []models.StudyRecord) error
}

// UserDirectory owns the registered user accounts. Lookups take the
// already-normalized id; normalization is the identity layer's job.
type UserDirectory interface {
	// CreateUser persists a new account. The caller has already checked
	// for duplicates; implementations may additionally reject them.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser returns the account with the given normalized id, or
	// (nil, nil) when no such account exists.
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// SessionSlot is the durable slot holding the logged-in user's identity
// projection, so a session survives a restart without re-authentication.
// Only the {id, name} projection is ever stored, never the credential
// digest.
type SessionSlot interface {
	// SaveSession overwrites the slot.
	SaveSession(ctx context.Context, id, name string) error

	// LoadSession reads the slot. An empty or absent slot returns
	// ("", "", nil).
	LoadSession(ctx context.Context) (id, name string, err error)

	// ClearSession empties the slot. Clearing an empty slot is a no-op.
	ClearSession(ctx context.Context) error
}

// Store bundles the three ports a full deployment needs plus resource
// cleanup. The sqlite and badgerkv backends implement all of it; the
// remote client implements everything but keeps the session slot local.
type Store interface {
	RecordStore
	UserDirectory
	SessionSlot

	// Close releases any resources held by the store.
	Close() error
}
