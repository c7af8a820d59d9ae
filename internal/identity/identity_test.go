package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe/studylog/internal/models"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"p22001", "P22001"},
		{"P22001", "P22001"},
		{"Ｐ２２００１", "P22001"},
		{"ｐ２２００１", "P22001"},
		{"  p22001  ", "P22001"},
		{"ｐ22００1", "P22001"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeID(tt.in); got != tt.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"田中 太郎", "田中太郎"},
		{"田中　太郎", "田中太郎"},
		{"田中_太郎", "田中太郎"},
		{"田中＿太郎", "田中太郎"},
		{"  田中\t太郎  ", "田中太郎"},
		{"田中", "田中"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChecksum(t *testing.T) {
	if Checksum("pass1234") != Checksum("pass1234") {
		t.Error("checksum is not deterministic")
	}
	if Checksum("pass1234") == Checksum("pass1235") {
		t.Error("different inputs should not share a digest")
	}
	if Checksum("パスワード") == "" {
		t.Error("multibyte credentials must digest to something")
	}
}

// memDirectory is an in-memory UserDirectory.
type memDirectory struct {
	users map[string]models.User
}

func newMemDirectory() *memDirectory {
	return &memDirectory{users: make(map[string]models.User)}
}

func (d *memDirectory) CreateUser(_ context.Context, user *models.User) error {
	d.users[user.ID] = *user
	return nil
}

func (d *memDirectory) GetUser(_ context.Context, id string) (*models.User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the normalized id, cleaned name and digest", func(t *testing.T) {
		dir := newMemDirectory()
		store := New(dir, true)

		user, err := store.Register(ctx, " p22001 ", "田中 太郎", "pass1234", "pass1234")
		require.NoError(t, err)
		assert.Equal(t, "P22001", user.ID)
		assert.Equal(t, "田中太郎", user.Name)
		assert.Empty(t, user.CredentialDigest, "returned user is redacted")

		stored := dir.users["P22001"]
		assert.Equal(t, Checksum("pass1234"), stored.CredentialDigest)
		assert.NotZero(t, stored.RegisteredAt)
	})

	t.Run("rejects duplicates across normalization forms", func(t *testing.T) {
		dir := newMemDirectory()
		store := New(dir, true)

		_, err := store.Register(ctx, "p22001", "田中", "pass1234", "pass1234")
		require.NoError(t, err)

		_, err = store.Register(ctx, "Ｐ２２００１", "別人", "pass1234", "pass1234")
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("input validation", func(t *testing.T) {
		dir := newMemDirectory()
		store := New(dir, true)

		cases := []struct {
			name                          string
			id, display, cred, confirm    string
		}{
			{"empty id", "", "田中", "pass1234", "pass1234"},
			{"blank id", "   ", "田中", "pass1234", "pass1234"},
			{"empty name", "P22001", "", "pass1234", "pass1234"},
			{"short credential", "P22001", "田中", "abc", "abc"},
			{"confirmation mismatch", "P22001", "田中", "pass1234", "pass9999"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := store.Register(ctx, tc.id, tc.display, tc.cred, tc.confirm)
				assert.ErrorIs(t, err, models.ErrInvalidInput)
			})
		}
		assert.Empty(t, dir.users, "nothing persisted on rejection")
	})

	t.Run("no-auth mode skips credential checks", func(t *testing.T) {
		dir := newMemDirectory()
		store := New(dir, false)

		user, err := store.Register(ctx, "P22001", "田中", "", "")
		require.NoError(t, err)
		assert.Empty(t, dir.users[user.ID].CredentialDigest)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	dir := newMemDirectory()
	store := New(dir, true)
	_, err := store.Register(ctx, "p22001", "田中", "pass1234", "pass1234")
	require.NoError(t, err)

	t.Run("full-width id resolves to the same account", func(t *testing.T) {
		user, err := store.Authenticate(ctx, "Ｐ２２００１", "pass1234")
		require.NoError(t, err)
		assert.Equal(t, "P22001", user.ID)
		assert.Empty(t, user.CredentialDigest, "digest never reaches the caller")
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Authenticate(ctx, "P99999", "pass1234")
		assert.ErrorIs(t, err, ErrUnknownUser)
	})

	t.Run("wrong credential", func(t *testing.T) {
		_, err := store.Authenticate(ctx, "P22001", "nope1234")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("credential ignored in no-auth mode", func(t *testing.T) {
		open := New(dir, false)
		user, err := open.Authenticate(ctx, "P22001", "")
		require.NoError(t, err)
		assert.Equal(t, "P22001", user.ID)
	})
}
