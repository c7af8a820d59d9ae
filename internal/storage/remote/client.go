// Package remote implements the record-store port against the hosted
// document API. Authentication happens over the wire; the client keeps
// the issued bearer token for the life of the session.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okabe/studylog/internal/identity"
	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage"
)

// ErrForbidden is returned when the server refuses access to another
// student's partition. Seeing it means a partitioning bug on the caller
// side, not a user-facing condition.
var ErrForbidden = errors.New("access to another student's records denied")

var _ storage.RecordStore = (*Client)(nil)

// Client talks JSON to the hosted document API.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the API at baseURL (no trailing slash).
// httpClient may be nil, in which case a 10-second-timeout client is
// used.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type registerRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Register creates the account server-side (which also initializes the
// empty record document) and adopts the issued token.
func (c *Client) Register(ctx context.Context, id, name, password, confirm string) (*models.User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/register",
		registerRequest{ID: id, Name: name, Password: password, Confirm: confirm}, &resp)
	if err != nil {
		return nil, err
	}
	c.setToken(resp.Token)
	return &resp.User, nil
}

// Login authenticates and adopts the issued token.
func (c *Client) Login(ctx context.Context, id, password string) (*models.User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/login",
		loginRequest{ID: id, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.setToken(resp.Token)
	return &resp.User, nil
}

// LoadAll pulls the user's record document.
func (c *Client) LoadAll(ctx context.Context, userID string) ([]models.StudyRecord, error) {
	var doc models.RecordDocument
	if err := c.do(ctx, http.MethodGet, "/api/v1/records/"+userID, nil, &doc); err != nil {
		return nil, err
	}
	return doc.Records, nil
}

// ReplaceAll pushes the full record list as the user's new document.
func (c *Client) ReplaceAll(ctx context.Context, userID string, records []models.StudyRecord) error {
	if records == nil {
		records = []models.StudyRecord{}
	}
	doc := models.RecordDocument{StudentID: userID, Records: records}
	return c.do(ctx, http.MethodPut, "/api/v1/records/"+userID, doc, nil)
}

// FieldAverages fetches the cohort per-field averages.
func (c *Client) FieldAverages(ctx context.Context) (map[string]float64, error) {
	var resp struct {
		Averages map[string]float64 `json:"averages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats/fields", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Averages, nil
}

// Token returns the bearer token issued at login, empty before any
// successful Register/Login.
func (c *Client) Token() string {
	return c.bearer()
}

// SetToken adopts a previously issued token, letting a new process
// resume an authenticated session without re-sending credentials.
func (c *Client) SetToken(token string) {
	c.setToken(token)
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do runs one JSON round trip. Transport failures and 5xx responses
// surface as storage.ErrPersistence; domain rejections are translated
// back into the sentinel errors the rest of the engine matches on.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return storage.PersistenceError(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return storage.PersistenceError("decode "+path, err)
		}
		return nil
	}

	var wire struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&wire)
	return wireError(resp.StatusCode, wire.Code, wire.Error)
}

func wireError(status int, code, message string) error {
	switch code {
	case "invalid_input":
		return fmt.Errorf("%w: %s", models.ErrInvalidInput, message)
	case "duplicate_user":
		return fmt.Errorf("%w: %s", identity.ErrDuplicateUser, message)
	case "unknown_user":
		return fmt.Errorf("%w: %s", identity.ErrUnknownUser, message)
	case "invalid_credential", "unauthenticated":
		return identity.ErrInvalidCredential
	case "forbidden":
		return fmt.Errorf("%w: %s", ErrForbidden, message)
	default:
		return storage.PersistenceError(fmt.Sprintf("server status %d", status), errors.New(message))
	}
}
