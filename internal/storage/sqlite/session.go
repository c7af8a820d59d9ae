package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/okabe/studylog/internal/storage"
)

// sessionKey is the fixed kv key holding the current session projection.
const sessionKey = "current_session"

// sessionValue is the persisted {id, name} projection. The credential
// digest never reaches this slot.
type sessionValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SaveSession overwrites the session slot.
func (s *SQLiteStore) SaveSession(ctx context.Context, id, name string) error {
	value, err := json.Marshal(sessionValue{ID: id, Name: name})
	if err != nil {
		return storage.PersistenceError("encode session", err)
	}

	query := `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.ExecContext(ctx, query, sessionKey, string(value)); err != nil {
		return storage.PersistenceError("save session", err)
	}
	return nil
}

// LoadSession reads the session slot. An absent slot yields ("", "", nil);
// an unreadable slot is treated as corrupt, cleared, and also reported as
// absent.
func (s *SQLiteStore) LoadSession(ctx context.Context) (string, string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", sessionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", storage.PersistenceError("load session", err)
	}

	var value sessionValue
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		if clearErr := s.ClearSession(ctx); clearErr != nil {
			return "", "", clearErr
		}
		return "", "", nil
	}
	return value.ID, value.Name, nil
}

// ClearSession empties the session slot. Clearing an empty slot is a
// no-op.
func (s *SQLiteStore) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", sessionKey); err != nil {
		return storage.PersistenceError("clear session", err)
	}
	return nil
}
