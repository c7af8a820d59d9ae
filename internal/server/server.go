// Package server implements the hosted document API: registration,
// login, and per-student record documents with owner-only access.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okabe/studylog/internal/auth"
	"github.com/okabe/studylog/internal/identity"
	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/storage"
)

// Backend is the persistence surface the API needs: the standard ports
// plus the cross-user field averages only the server may compute.
type Backend interface {
	storage.RecordStore
	storage.UserDirectory
	FieldAverages(ctx context.Context) (map[string]float64, error)
}

// Server holds the API's collaborators. Credentials are always required
// on the hosted deployment.
type Server struct {
	backend  Backend
	identity *identity.Store
	tokens   *auth.JWTManager
	metrics  *metrics
}

// New wires a Server over the given backend and token manager.
func New(backend Backend, tokens *auth.JWTManager) *Server {
	return &Server{
		backend:  backend,
		identity: identity.New(backend, true),
		tokens:   tokens,
		metrics:  newMetrics(),
	}
}

// Handler builds the full HTTP handler: API routes, health, metrics,
// wrapped in logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/login", s.handleLogin)
	mux.Handle("GET /api/v1/records/{studentId}", s.requireAuth(http.HandlerFunc(s.handlePull)))
	mux.Handle("PUT /api/v1/records/{studentId}", s.requireAuth(http.HandlerFunc(s.handlePush)))
	mux.Handle("GET /api/v1/stats/fields", s.requireAuth(http.HandlerFunc(s.handleFieldAverages)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	return requestLogging(cors(mux))
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

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	user, err := s.identity.Register(r.Context(), req.ID, req.Name, req.Password, req.Confirm)
	if err != nil {
		slog.Warn("Register rejected", "student_id", req.ID, "error", err)
		writeDomainError(w, err)
		return
	}

	// A fresh account gets an empty record document right away, so the
	// first pull finds a document rather than a hole.
	if err := s.backend.ReplaceAll(r.Context(), user.ID, nil); err != nil {
		slog.Error("Initializing record document failed", "student_id", user.ID, "error", err)
		writeDomainError(w, err)
		return
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		slog.Error("Token generation failed", "student_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not issue token")
		return
	}

	s.metrics.registrations.Inc()
	slog.Info("Student registered", "student_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: *user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	user, err := s.identity.Authenticate(r.Context(), req.ID, req.Password)
	if err != nil {
		slog.Warn("Login rejected", "student_id", req.ID, "error", err)
		writeDomainError(w, err)
		return
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		slog.Error("Token generation failed", "student_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not issue token")
		return
	}

	s.metrics.logins.Inc()
	slog.Info("Student logged in", "student_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: *user})
}

// handlePull serves the caller's record document. Owner-only: the path
// id must match the token's subject.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	studentID := identity.NormalizeID(r.PathValue("studentId"))
	claims := claimsFrom(r.Context())
	if claims == nil || claims.UserID != studentID {
		writeError(w, http.StatusForbidden, "forbidden", "records belong to another student")
		return
	}

	records, err := s.backend.LoadAll(r.Context(), studentID)
	if err != nil {
		slog.Error("Pull failed", "student_id", studentID, "error", err)
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []models.StudyRecord{}
	}

	doc := models.RecordDocument{
		StudentID:   studentID,
		StudentName: claims.Name,
		Records:     records,
	}
	if len(records) > 0 {
		doc.LastUpdated = records[0].Timestamp
	}

	s.metrics.pulls.Inc()
	writeJSON(w, http.StatusOK, doc)
}

// handlePush replaces the caller's record document wholesale. The body
// must hold only records owned by the caller, with valid counts and
// unique ids; violations reject the whole push.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	studentID := identity.NormalizeID(r.PathValue("studentId"))
	claims := claimsFrom(r.Context())
	if claims == nil || claims.UserID != studentID {
		writeError(w, http.StatusForbidden, "forbidden", "records belong to another student")
		return
	}

	var doc models.RecordDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	seen := make(map[int64]bool, len(doc.Records))
	for _, rec := range doc.Records {
		if err := rec.Validate(); err != nil {
			writeDomainError(w, err)
			return
		}
		if rec.OwnerID != studentID {
			writeError(w, http.StatusForbidden, "forbidden",
				fmt.Sprintf("record %d is owned by %s", rec.ID, rec.OwnerID))
			return
		}
		if seen[rec.ID] {
			writeError(w, http.StatusBadRequest, "invalid_input",
				fmt.Sprintf("duplicate record id %d", rec.ID))
			return
		}
		seen[rec.ID] = true
	}

	if err := s.backend.ReplaceAll(r.Context(), studentID, doc.Records); err != nil {
		slog.Error("Push failed", "student_id", studentID, "records", len(doc.Records), "error", err)
		writeDomainError(w, err)
		return
	}

	s.metrics.pushes.Inc()
	s.metrics.pushedRecords.Observe(float64(len(doc.Records)))
	slog.Info("Document replaced", "student_id", studentID, "records", len(doc.Records))
	writeJSON(w, http.StatusOK, map[string]any{
		"studentId": studentID,
		"count":     len(doc.Records),
	})
}

// handleFieldAverages serves cohort per-field averages. Any
// authenticated student may read them; the response carries no per-user
// data.
func (s *Server) handleFieldAverages(w http.ResponseWriter, r *http.Request) {
	averages, err := s.backend.FieldAverages(r.Context())
	if err != nil {
		slog.Error("Field averages failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"averages": averages})
}

// writeDomainError maps the error taxonomy onto HTTP statuses and wire
// codes the client can translate back into sentinel errors.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, identity.ErrDuplicateUser):
		writeError(w, http.StatusConflict, "duplicate_user", err.Error())
	case errors.Is(err, identity.ErrUnknownUser):
		writeError(w, http.StatusUnauthorized, "unknown_user", err.Error())
	case errors.Is(err, identity.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "invalid_credential", err.Error())
	case errors.Is(err, storage.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "persistence", "storage failure")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Encoding response failed", "error", err)
	}
}
