// Package badgerkv provides the local embedded document-store backend:
// one JSON document per user plus a fixed session slot, all in BadgerDB.
//
// This backend mirrors the hosted document layout exactly: key
// "records/<ID>" holds the same {studentId, studentName, records,
// lastUpdated} document the remote API serves, so the engine behaves
// identically against either.
package badgerkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage"
)

// Key layout. User ids are normalized before they reach this package,
// so key equality matches id equality.
const (
	userKeyPrefix   = "users/"
	recordKeyPrefix = "records/"
	sessionKey      = "session"
)

var _ storage.Store = (*Store)(nil)

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns the production configuration for the given data
// directory: durable synchronous writes, Badger logging disabled.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements storage.Store on BadgerDB.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// New opens (or creates) the store described by cfg.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", cfg.Path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser persists a new account document.
func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	value, err := json.Marshal(user)
	if err != nil {
		return storage.PersistenceError("encode user", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(userKeyPrefix+user.ID), value)
	})
	if err != nil {
		return storage.PersistenceError("create user", err)
	}
	return nil
}

// GetUser returns the account with the given id, or (nil, nil) when
// absent.
func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var u models.User
			if err := json.Unmarshal(val, &u); err != nil {
				return err
			}
			user = &u
			return nil
		})
	})
	if err != nil {
		return nil, storage.PersistenceError("get user", err)
	}
	return user, nil
}

// LoadAll reads the user's record document. An absent document yields an
// empty list, never an error.
func (s *Store) LoadAll(_ context.Context, userID string) ([]models.StudyRecord, error) {
	var doc models.RecordDocument
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, storage.PersistenceError("load records", err)
	}
	return doc.Records, nil
}

// ReplaceAll overwrites the user's record document in a single Badger
// transaction, so a failure leaves the prior document intact.
func (s *Store) ReplaceAll(ctx context.Context, userID string, records []models.StudyRecord) error {
	name := ""
	if user, err := s.GetUser(ctx, userID); err == nil && user != nil {
		name = user.Name
	} else if len(records) > 0 {
		name = records[0].OwnerName
	}

	doc := models.RecordDocument{
		StudentID:   userID,
		StudentName: name,
		Records:     records,
		LastUpdated: s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if doc.Records == nil {
		doc.Records = []models.StudyRecord{}
	}

	value, err := json.Marshal(doc)
	if err != nil {
		return storage.PersistenceError("encode records", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKeyPrefix+userID), value)
	})
	if err != nil {
		return storage.PersistenceError("replace records", err)
	}
	return nil
}

// sessionValue is the persisted {id, name} projection.
type sessionValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SaveSession overwrites the session slot.
func (s *Store) SaveSession(_ context.Context, id, name string) error {
	value, err := json.Marshal(sessionValue{ID: id, Name: name})
	if err != nil {
		return storage.PersistenceError("encode session", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKey), value)
	})
	if err != nil {
		return storage.PersistenceError("save session", err)
	}
	return nil
}

// LoadSession reads the session slot. Absent or unreadable contents are
// reported as no session; unreadable contents are cleared on the way out.
func (s *Store) LoadSession(ctx context.Context) (string, string, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return "", "", storage.PersistenceError("load session", err)
	}
	if len(raw) == 0 {
		return "", "", nil
	}

	var value sessionValue
	if err := json.Unmarshal(raw, &value); err != nil {
		if clearErr := s.ClearSession(ctx); clearErr != nil {
			return "", "", clearErr
		}
		return "", "", nil
	}
	return value.ID, value.Name, nil
}

// ClearSession empties the session slot; clearing an empty slot is a
// no-op.
func (s *Store) ClearSession(_ context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(sessionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return storage.PersistenceError("clear session", err)
	}
	return nil
}

// badgerLogger adapts slog to BadgerDB's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
