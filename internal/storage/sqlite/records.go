package sqlite

import (
	"context"

	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage"
)

// LoadAll returns the records owned by userID in stored order (newest
// first). A user without rows yields an empty list.
func (s *SQLiteStore) LoadAll(ctx context.Context, userID string) ([]models.StudyRecord, error) {
	query := `
		SELECT id, owner_id, owner_name, field, attempted, correct, rate, date, time, timestamp
		FROM records
		WHERE owner_id = ?
		ORDER BY position
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storage.PersistenceError("load records", err)
	}
	defer rows.Close()

	var records []models.StudyRecord
	for rows.Next() {
		var r models.StudyRecord
		if err := rows.Scan(
			&r.ID, &r.OwnerID, &r.OwnerName, &r.Field,
			&r.Attempted, &r.Correct, &r.Rate,
			&r.Date, &r.Time, &r.Timestamp,
		); err != nil {
			return nil, storage.PersistenceError("scan record", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.PersistenceError("iterate records", err)
	}

	return records, nil
}

// ReplaceAll overwrites userID's full record set in one transaction:
// delete the partition, re-insert in list order. Other users' rows are
// untouched, and a failure rolls back to the prior snapshot.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, userID string, records []models.StudyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.PersistenceError("begin replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE owner_id = ?", userID); err != nil {
		return storage.PersistenceError("clear partition", err)
	}

	insert := `
		INSERT INTO records (id, owner_id, owner_name, field, attempted, correct, rate, date, time, timestamp, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for pos, r := range records {
		if _, err := tx.ExecContext(ctx, insert,
			r.ID, userID, r.OwnerName, r.Field,
			r.Attempted, r.Correct, r.Rate,
			r.Date, r.Time, r.Timestamp, pos,
		); err != nil {
			return storage.PersistenceError("insert record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.PersistenceError("commit replace", err)
	}

	return nil
}

// FieldAverages computes the cohort average rate per field across every
// user's partition: total correct over total attempted, as a percentage.
// Fields with zero attempts are skipped. Server-side only; clients never
// see other users' records.
func (s *SQLiteStore) FieldAverages(ctx context.Context) (map[string]float64, error) {
	query := `
		SELECT field, SUM(attempted), SUM(correct)
		FROM records
		GROUP BY field
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.PersistenceError("field averages", err)
	}
	defer rows.Close()

	averages := make(map[string]float64)
	for rows.Next() {
		var field string
		var attempted, correct int64
		if err := rows.Scan(&field, &attempted, &correct); err != nil {
			return nil, storage.PersistenceError("scan field average", err)
		}
		if attempted > 0 {
			averages[field] = float64(correct) / float64(attempted) * 100
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storage.PersistenceError("iterate field averages", err)
	}

	return averages, nil
}
