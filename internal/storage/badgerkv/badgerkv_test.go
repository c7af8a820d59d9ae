package badgerkv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe/studylog/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id int64, ownerID, field string, attempted, correct int) models.StudyRecord {
	return models.StudyRecord{
		ID:        id,
		OwnerID:   ownerID,
		OwnerName: "田中",
		Field:     field,
		Attempted: attempted,
		Correct:   correct,
		Rate:      models.Rate(attempted, correct),
		Date:      "2026/02/03",
		Time:      "09:00:00",
		Timestamp: "2026-02-03T00:00:00.000Z",
	}
}

func TestUserDocumentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetUser(ctx, "P22001")
	require.NoError(t, err)
	assert.Nil(t, got, "unknown user reads as nil")

	user := models.User{ID: "P22001", Name: "田中", CredentialDigest: "1abc", RegisteredAt: time.Now().Unix()}
	require.NoError(t, store.CreateUser(ctx, &user))

	got, err = store.GetUser(ctx, "P22001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user, *got)
}

func TestRecordDocumentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records, err := store.LoadAll(ctx, "P22001")
	require.NoError(t, err)
	assert.Empty(t, records, "absent document reads as empty list")

	want := []models.StudyRecord{
		testRecord(2, "P22001", "疾病", 10, 9),
		testRecord(1, "P22001", "人体", 7, 5),
	}
	require.NoError(t, store.ReplaceAll(ctx, "P22001", want))

	got, err := store.LoadAll(ctx, "P22001")
	require.NoError(t, err)
	assert.Equal(t, want, got, "stored order survives the round trip")

	// Overwrite wins wholesale.
	require.NoError(t, store.ReplaceAll(ctx, "P22001", want[:1]))
	got, err = store.LoadAll(ctx, "P22001")
	require.NoError(t, err)
	assert.Equal(t, want[:1], got)
}

func TestReplaceAllIsolatesUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tanaka := []models.StudyRecord{testRecord(1, "P22001", "人体", 10, 8)}
	suzuki := []models.StudyRecord{testRecord(2, "P22002", "疾病", 10, 4)}
	require.NoError(t, store.ReplaceAll(ctx, "P22001", tanaka))
	require.NoError(t, store.ReplaceAll(ctx, "P22002", suzuki))

	require.NoError(t, store.ReplaceAll(ctx, "P22001", nil))

	got, err := store.LoadAll(ctx, "P22002")
	require.NoError(t, err)
	assert.Equal(t, suzuki, got)
}

func TestSessionSlot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, name, err := store.LoadSession(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, name)

	require.NoError(t, store.SaveSession(ctx, "P22001", "田中"))
	id, name, err = store.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P22001", id)
	assert.Equal(t, "田中", name)

	require.NoError(t, store.ClearSession(ctx))
	require.NoError(t, store.ClearSession(ctx), "clearing an empty slot is fine")
	id, _, err = store.LoadSession(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}
