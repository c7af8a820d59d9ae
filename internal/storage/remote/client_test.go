package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe/studylog/internal/identity"
	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage"
)

// The happy paths run against the real server in the server package
// tests; here we pin down the error translation and request shape.

func TestTransportFailureIsPersistenceError(t *testing.T) {
	client := New("http://127.0.0.1:1", nil) // nothing listens here

	_, err := client.LoadAll(context.Background(), "P22001")
	assert.ErrorIs(t, err, storage.ErrPersistence)

	err = client.ReplaceAll(context.Background(), "P22001", nil)
	assert.ErrorIs(t, err, storage.ErrPersistence)
}

func TestWireErrorTranslation(t *testing.T) {
	tests := []struct {
		code   string
		status int
		want   error
	}{
		{"invalid_input", http.StatusBadRequest, models.ErrInvalidInput},
		{"duplicate_user", http.StatusConflict, identity.ErrDuplicateUser},
		{"unknown_user", http.StatusUnauthorized, identity.ErrUnknownUser},
		{"invalid_credential", http.StatusUnauthorized, identity.ErrInvalidCredential},
		{"unauthenticated", http.StatusUnauthorized, identity.ErrInvalidCredential},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"internal", http.StatusInternalServerError, storage.ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"boom","code":"` + tt.code + `"}`))
			}))
			defer ts.Close()

			client := New(ts.URL, ts.Client())
			_, err := client.LoadAll(context.Background(), "P22001")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"studentId":"P22001","records":[]}`))
	}))
	defer ts.Close()

	client := New(ts.URL, ts.Client())
	client.SetToken("tok-123")

	records, err := client.LoadAll(context.Background(), "P22001")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}
