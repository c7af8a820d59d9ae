package server

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe/studylog/internal/auth"
	"github.com/okabe/studylog/internal/identity"
	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage/remote"
	"github.com/okabe/studylog/internal/storage/sqlite"
)

// setupTestServer starts the full API over a temp sqlite database and
// returns a remote client pointed at it plus a factory for additional
// clients (each client holds one session's token). This covers both
// sides of the wire in one pass.
func setupTestServer(t *testing.T) (*remote.Client, func() *remote.Client) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := New(store, auth.NewJWTManager("test-secret", time.Hour))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	newClient := func() *remote.Client { return remote.New(ts.URL, ts.Client()) }
	return newClient(), newClient
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestServer(t)

	user, err := client.Register(ctx, "p22001", "田中 太郎", "pass1234", "pass1234")
	require.NoError(t, err)
	assert.Equal(t, "P22001", user.ID, "id is normalized on the server")
	assert.Equal(t, "田中太郎", user.Name, "separator junk stripped from the name")
	assert.Empty(t, user.CredentialDigest, "digest never crosses the wire")

	t.Run("full-width id resolves to the same account", func(t *testing.T) {
		got, err := client.Login(ctx, "ｐ２２００１", "pass1234")
		require.NoError(t, err)
		assert.Equal(t, "P22001", got.ID)
	})

	t.Run("duplicate registration is rejected", func(t *testing.T) {
		_, err := client.Register(ctx, "P22001", "somebody", "pass1234", "pass1234")
		assert.ErrorIs(t, err, identity.ErrDuplicateUser)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := client.Login(ctx, "P22001", "wrong")
		assert.ErrorIs(t, err, identity.ErrInvalidCredential)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := client.Login(ctx, "P99999", "pass1234")
		assert.ErrorIs(t, err, identity.ErrUnknownUser)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := client.Register(ctx, "P22002", "鈴木", "abc", "abc")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		_, err := client.Register(ctx, "P22002", "鈴木", "pass1234", "pass5678")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func newRecord(id int64, owner, field string, attempted, correct int) models.StudyRecord {
	return models.StudyRecord{
		ID:        id,
		OwnerID:   owner,
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

func TestDocumentPushPull(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestServer(t)

	user, err := client.Register(ctx, "P22001", "田中", "pass1234", "pass1234")
	require.NoError(t, err)

	t.Run("registration initialized an empty document", func(t *testing.T) {
		records, err := client.LoadAll(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	want := []models.StudyRecord{
		newRecord(2, user.ID, "疾病", 10, 9),
		newRecord(1, user.ID, "人体", 7, 5),
	}

	t.Run("push then pull round-trips in order", func(t *testing.T) {
		require.NoError(t, client.ReplaceAll(ctx, user.ID, want))
		got, err := client.LoadAll(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("another student's partition is off limits", func(t *testing.T) {
		_, err := client.LoadAll(ctx, "P99999")
		assert.ErrorIs(t, err, remote.ErrForbidden)
		err = client.ReplaceAll(ctx, "P99999", nil)
		assert.ErrorIs(t, err, remote.ErrForbidden)
	})

	t.Run("foreign-owned record rejects the whole push", func(t *testing.T) {
		smuggled := append([]models.StudyRecord{newRecord(3, "P99999", "人体", 5, 5)}, want...)
		err := client.ReplaceAll(ctx, user.ID, smuggled)
		assert.ErrorIs(t, err, remote.ErrForbidden)

		got, err := client.LoadAll(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got, "prior document intact after rejected push")
	})

	t.Run("invalid counts reject the push", func(t *testing.T) {
		bad := []models.StudyRecord{newRecord(4, user.ID, "人体", 10, 12)}
		err := client.ReplaceAll(ctx, user.ID, bad)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("duplicate ids reject the push", func(t *testing.T) {
		dup := []models.StudyRecord{
			newRecord(5, user.ID, "人体", 10, 5),
			newRecord(5, user.ID, "疾病", 10, 6),
		}
		err := client.ReplaceAll(ctx, user.ID, dup)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestUnauthenticatedRequests(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestServer(t)

	_, err := client.LoadAll(ctx, "P22001")
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestFieldAverages(t *testing.T) {
	ctx := context.Background()
	client, newClient := setupTestServer(t)

	tanaka, err := client.Register(ctx, "P22001", "田中", "pass1234", "pass1234")
	require.NoError(t, err)
	require.NoError(t, client.ReplaceAll(ctx, tanaka.ID, []models.StudyRecord{
		newRecord(1, tanaka.ID, "人体", 10, 8),
	}))

	other := newClient()
	suzuki, err := other.Register(ctx, "P22002", "鈴木", "pass1234", "pass1234")
	require.NoError(t, err)
	require.NoError(t, other.ReplaceAll(ctx, suzuki.ID, []models.StudyRecord{
		newRecord(2, suzuki.ID, "人体", 10, 4),
		newRecord(3, suzuki.ID, "疾病", 10, 10),
	}))

	averages, err := client.FieldAverages(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, averages["人体"], 0.001, "12 of 20 across the cohort")
	assert.InDelta(t, 100.0, averages["疾病"], 0.001)
}
