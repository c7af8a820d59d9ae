// Package models defines the core domain models for the study-log engine.
//
// # Models
//
//   - User: a registered student account, keyed by normalized student id
//   - StudyRecord: one practice-drill outcome (field, attempted, correct)
//   - RecordDocument: the per-user persistence unit holding the full
//     record collection
//
// # Design Principles
//
//  1. **Immutable records**: a StudyRecord is never updated after creation;
//     collections change only by prepend and delete-by-id.
//  2. **Owner partitioning**: every record carries OwnerID and every store
//     operation filters by it; nothing in this package or below ever reads
//     or writes across users.
//  3. **Derived-at-write**: Rate is computed once at creation and stored;
//     reads trust the stored value.
package models
