// Package syncer reconciles the in-memory record list against the
// persistent store and keeps derived views consistent after every
// mutation.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/session"
	"github.com/okabe/studylog/internal/stats"
	"github.com/okabe/studylog/internal/storage"
)

// ErrNoSession is returned for mutations attempted while logged out.
var ErrNoSession = errors.New("no active session")

// State is the controller's position in the sync lifecycle.
type State string

const (
	StateLoggedOut State = "logged_out"
	StateSyncing   State = "syncing" // pull in flight
	StateReady     State = "ready"   // memory mirrors the store
	StateSaving    State = "saving"  // push in flight
	StateError     State = "error"   // last push failed; memory and store may diverge
)

// Snapshot is the consistent view handed to the refresh listener: the
// record list plus the aggregates derived from it, all computed from the
// same state.
type Snapshot struct {
	User    models.User
	Records []models.StudyRecord
	Totals  stats.Summary
	Series  []stats.ChartPoint
}

// RefreshFunc receives a Snapshot on every transition into Ready. It
// runs with the controller serialized and must not call back into the
// controller.
type RefreshFunc func(Snapshot)

// Controller owns one user's record list for the duration of a session.
// It is created at login and discarded at logout; nothing about the
// session lives in package-level state.
//
// Mutations are optimistic: memory changes first, then the full list is
// pushed. A failed push keeps the mutation in memory and parks the
// controller in StateError until a retry or the next mutation pushes
// successfully. Pushes are serialized: a mutation arriving while a push
// is in flight waits for it, so the store always reflects mutations in
// the order they were applied.
type Controller struct {
	store   storage.RecordStore
	user    models.User
	alloc   *models.IDAllocator
	refresh RefreshFunc
	now     func() time.Time

	mu      sync.Mutex
	records []models.StudyRecord
	state   State
	lastErr error
}

// Start logs the controller in: it pulls the user's partition from the
// store, fires the first refresh and returns a Ready controller.
//
// A pull failure does not block login: the controller comes up Ready
// over an empty list and the error is returned alongside it for the
// caller to surface.
func Start(ctx context.Context, store storage.RecordStore, user *models.User, refresh RefreshFunc) (*Controller, error) {
	c := &Controller{
		store:   store,
		user:    *user,
		alloc:   &models.IDAllocator{},
		refresh: refresh,
		now:     time.Now,
		state:   StateSyncing,
	}

	records, err := store.LoadAll(ctx, user.ID)
	if err != nil {
		slog.Warn("Pull failed, starting with empty record list",
			"user_id", user.ID, "error", err)
		records = nil
		err = fmt.Errorf("pulling records: %w", err)
	}

	c.mu.Lock()
	c.records = records
	c.enterReady()
	c.mu.Unlock()

	slog.Info("Session sync started", "user_id", user.ID, "records", len(records))
	return c, err
}

// Add validates a submission, prepends the new record (newest first) and
// pushes. Validation failures return models.ErrInvalidInput before any
// state changes. A push failure still returns the created record: the
// optimistic mutation stays in memory and the controller enters
// StateError.
func (c *Controller) Add(ctx context.Context, field string, attempted, correct int) (models.StudyRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateLoggedOut {
		return models.StudyRecord{}, ErrNoSession
	}

	now := c.now()
	record, err := models.NewStudyRecord(c.alloc.Next(now), c.user, field, attempted, correct, now)
	if err != nil {
		return models.StudyRecord{}, err
	}

	c.records = append([]models.StudyRecord{record}, c.records...)
	if err := c.push(ctx); err != nil {
		return record, err
	}
	return record, nil
}

// Delete removes the record with the given id after the confirm gate
// approves. Removing an absent id is a no-op (reported via the bool, no
// error, no push). Returns whether a record was actually removed.
func (c *Controller) Delete(ctx context.Context, id int64, confirm func() bool) (bool, error) {
	if confirm != nil && !confirm() {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateLoggedOut {
		return false, ErrNoSession
	}

	idx := -1
	for i, r := range c.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	c.records = append(c.records[:idx:idx], c.records[idx+1:]...)
	if err := c.push(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Retry re-attempts the failed push with the current in-memory list.
// Only meaningful in StateError; a Ready controller returns nil
// immediately.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateLoggedOut:
		return ErrNoSession
	case StateError:
		return c.push(ctx)
	default:
		return nil
	}
}

// Logout ends the session after the confirm gate approves: the durable
// session slot is cleared and the record cache dropped. The controller
// is unusable afterwards; login creates a fresh one.
func (c *Controller) Logout(ctx context.Context, sess *session.Session, confirm func() bool) (bool, error) {
	ended, err := sess.End(ctx, confirm)
	if err != nil || !ended {
		return ended, err
	}

	c.mu.Lock()
	c.records = nil
	c.state = StateLoggedOut
	c.lastErr = nil
	c.mu.Unlock()

	slog.Info("Session sync ended", "user_id", c.user.ID)
	return true, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error from the last failed push, or nil outside
// StateError.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Records returns a copy of the in-memory list in stored order (newest
// first).
func (c *Controller) Records() []models.StudyRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyRecords()
}

// Snapshot builds the current view without mutating anything.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// push writes the full list for this user. Caller holds c.mu, which is
// what serializes pushes: a second mutation blocks on the mutex until
// the in-flight push settles.
func (c *Controller) push(ctx context.Context) error {
	c.state = StateSaving
	if err := c.store.ReplaceAll(ctx, c.user.ID, c.copyRecords()); err != nil {
		c.state = StateError
		c.lastErr = err
		slog.Warn("Push failed, memory and store diverge until retry",
			"user_id", c.user.ID, "records", len(c.records), "error", err)
		return fmt.Errorf("pushing records: %w", err)
	}
	c.enterReady()
	return nil
}

// enterReady transitions into Ready and notifies the view. Caller holds
// c.mu.
func (c *Controller) enterReady() {
	c.state = StateReady
	c.lastErr = nil
	if c.refresh != nil {
		c.refresh(c.snapshotLocked())
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	records := c.copyRecords()
	return Snapshot{
		User:    c.user,
		Records: records,
		Totals:  stats.Totals(records),
		Series:  stats.ChartSeries(records, stats.DefaultChartWindow),
	}
}

func (c *Controller) copyRecords() []models.StudyRecord {
	out := make([]models.StudyRecord, len(c.records))
	copy(out, c.records)
	return out
}
