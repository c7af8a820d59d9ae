package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// ErrInvalidInput marks malformed or out-of-range submission data.
// Always locally recoverable: the caller re-prompts, nothing is persisted.
var ErrInvalidInput = errors.New("invalid input")

// StudyRecord is a single practice-drill outcome. Records are immutable
// after creation: the owner's collection changes only by prepending new
// records (newest first) and deleting by id.
type StudyRecord struct {
	// ID is a collision-resistant creation id, unique and increasing
	// within the owner's collection. See IDAllocator.
	ID int64 `json:"id"`

	// OwnerID is the normalized id of the owning User. Every store
	// operation partitions by this field.
	OwnerID string `json:"ownerId"`

	// OwnerName is a denormalized copy of User.Name at creation time.
	OwnerName string `json:"ownerName"`

	// Field is the subject/category label. Non-empty; the selectable set
	// is owned by the caller.
	Field string `json:"field"`

	// Attempted and Correct are the drill counts, 0 <= Correct <= Attempted.
	Attempted int `json:"attempted"`
	Correct   int `json:"correct"`

	// Rate is the integer percentage round(Correct/Attempted*100), or 0
	// when Attempted is 0. Stored at creation, never recomputed on read.
	Rate int `json:"rate"`

	// Date and Time are display strings captured at creation. Never used
	// for ordering; Timestamp is the chronological key.
	Date string `json:"date"`
	Time string `json:"time"`

	// Timestamp is the canonical creation instant, ISO-8601 in UTC.
	Timestamp string `json:"timestamp"`
}

// RecordDocument is the per-user persistence unit: the full record
// collection serialized as one document keyed by the owner's id. Writes
// replace the whole document (last writer for a given user wins).
type RecordDocument struct {
	StudentID   string        `json:"studentId"`
	StudentName string        `json:"studentName"`
	Records     []StudyRecord `json:"records"`
	LastUpdated string        `json:"lastUpdated"`
}

// Rate returns the integer percentage of correct answers, rounded half
// away from zero. Zero attempts yield 0, not an error.
func Rate(attempted, correct int) int {
	if attempted <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(attempted) * 100))
}

// NewStudyRecord validates a submission and builds the record for it.
// Violations return ErrInvalidInput; nothing is clamped silently.
func NewStudyRecord(id int64, owner User, field string, attempted, correct int, now time.Time) (StudyRecord, error) {
	if strings.TrimSpace(field) == "" {
		return StudyRecord{}, fmt.Errorf("%w: field must not be empty", ErrInvalidInput)
	}
	if attempted < 0 || correct < 0 {
		return StudyRecord{}, fmt.Errorf("%w: counts must not be negative", ErrInvalidInput)
	}
	if correct > attempted {
		return StudyRecord{}, fmt.Errorf("%w: correct (%d) exceeds attempted (%d)", ErrInvalidInput, correct, attempted)
	}

	return StudyRecord{
		ID:        id,
		OwnerID:   owner.ID,
		OwnerName: owner.Name,
		Field:     field,
		Attempted: attempted,
		Correct:   correct,
		Rate:      Rate(attempted, correct),
		Date:      now.Format("2006/01/02"),
		Time:      now.Format("15:04:05"),
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}, nil
}

// Validate re-checks the stored invariants. Used by the server before
// accepting a pushed document.
func (r StudyRecord) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("%w: record %d has no owner", ErrInvalidInput, r.ID)
	}
	if strings.TrimSpace(r.Field) == "" {
		return fmt.Errorf("%w: record %d has no field", ErrInvalidInput, r.ID)
	}
	if r.Attempted < 0 || r.Correct < 0 || r.Correct > r.Attempted {
		return fmt.Errorf("%w: record %d counts out of range", ErrInvalidInput, r.ID)
	}
	return nil
}

// IDAllocator hands out record ids. An id embeds the creation time in
// milliseconds (times 1000) and a low sequence component, so two records
// created within the same millisecond still get distinct, strictly
// increasing ids. The timestamp-only scheme this replaces collided under
// rapid double-submits.
type IDAllocator struct {
	mu   sync.Mutex
	last int64
}

// Next returns the next id for a record created at now. Safe for
// concurrent use; ids are strictly increasing even if the clock stalls
// or steps backwards.
func (a *IDAllocator) Next(now time.Time) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := now.UnixMilli() * 1000
	if id <= a.last {
		id = a.last + 1
	}
	a.last = id
	return id
}
