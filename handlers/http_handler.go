// Package handlers provides HTTP request handlers for the dashboard API: health data
// refresh and search, user sessions, dashboards, notifications and health checks.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/farmavigil/farmavigil-api/auth"
	"github.com/farmavigil/farmavigil-api/healthdata"
	"github.com/farmavigil/farmavigil-api/interfaces"
	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/store"
	"github.com/farmavigil/farmavigil-api/store/models"
)

// HealthDataView is the dashboard state the health data endpoints drive.
type HealthDataView interface {
	Refresh(ctx context.Context) (healthdata.Snapshot, error)
	Search(ctx context.Context, term string) (healthdata.Snapshot, error)
	SetSearchTerm(term string)
	State() healthdata.State
}

// HTTPHandlerImpl holds the dependencies shared by all handlers
type HTTPHandlerImpl struct {
	view      HealthDataView
	repo      interfaces.Repository
	validator interfaces.DataValidator
	health    interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(view HealthDataView, repo interfaces.Repository, validator interfaces.DataValidator, health interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		view:      view,
		repo:      repo,
		validator: validator,
		health:    health,
	}
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// decodeJSON reads a JSON request body into dst. An empty body is reported as such.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// currentUser resolves the authenticated caller. It writes the error response and
// returns false when the request has no identity or the user was never provisioned.
func (h *HTTPHandlerImpl) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	email, ok := auth.EmailFromContext(r.Context())
	if !ok {
		RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}

	user, err := h.repo.UserByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		RespondWithError(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	if err != nil {
		logging.Error("Failed to load user", "email", email, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to load user")
		return nil, false
	}
	return user, true
}
