package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage"
)

// CreateUser inserts a new user. The id is expected to be normalized
// already (the identity layer owns normalization).
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, credential_digest, registered_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.CredentialDigest,
		user.RegisteredAt,
	)
	if err != nil {
		return storage.PersistenceError("create user", err)
	}

	return nil
}

// GetUser retrieves a user by normalized id. Returns (nil, nil) when no
// such user exists.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, credential_digest, registered_at
		FROM users
		WHERE id = ?
	`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.CredentialDigest,
		&user.RegisteredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.PersistenceError("get user", err)
	}

	return user, nil
}
