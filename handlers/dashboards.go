package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/store"
	"github.com/farmavigil/farmavigil-api/store/models"
	"github.com/go-chi/chi/v5"
	"gorm.io/datatypes"
)

type createDashboardRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Config      json.RawMessage `json:"config"`
	IsDefault   bool            `json:"isDefault"`
}

type updateDashboardRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Config      json.RawMessage `json:"config"`
	IsDefault   *bool           `json:"isDefault"`
}

// ListDashboards returns the caller's dashboards, newest first
func (h *HTTPHandlerImpl) ListDashboards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			return
		}

		dashboards, err := h.repo.ListDashboards(r.Context(), user.ID)
		if err != nil {
			logging.Error("Failed to list dashboards", "user_id", user.ID, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to list dashboards")
			return
		}

		RespondWithJSON(w, http.StatusOK, dashboards)
	}
}

// CreateDashboard stores a new dashboard; marking it default clears the previous default
func (h *HTTPHandlerImpl) CreateDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			return
		}

		var req createDashboardRequest
		if err := decodeJSON(r, &req); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.validator.ValidateDashboard(&req.Name, &req.Description, req.Config); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		config := datatypes.JSON(req.Config)
		if len(config) == 0 {
			config = datatypes.JSON("{}")
		}

		dashboard := &models.Dashboard{
			UserID:      user.ID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Config:      config,
			IsDefault:   req.IsDefault,
		}
		if err := h.repo.CreateDashboard(r.Context(), dashboard); err != nil {
			logging.Error("Failed to create dashboard", "user_id", user.ID, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to create dashboard")
			return
		}

		RespondWithJSON(w, http.StatusCreated, dashboard)
	}
}

// UpdateDashboard applies a partial update to one of the caller's dashboards
func (h *HTTPHandlerImpl) UpdateDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			return
		}

		id, err := h.validator.ValidateID(chi.URLParam(r, "id"))
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		var req updateDashboardRequest
		if err := decodeJSON(r, &req); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.validator.ValidateDashboard(req.Name, req.Description, req.Config); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		patch := models.DashboardPatch{
			Description: req.Description,
			Config:      datatypes.JSON(req.Config),
			IsDefault:   req.IsDefault,
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			patch.Name = &name
		}

		dashboard, err := h.repo.UpdateDashboard(r.Context(), user.ID, id, patch)
		if errors.Is(err, store.ErrNotFound) {
			RespondWithError(w, http.StatusNotFound, "Dashboard not found")
			return
		}
		if err != nil {
			logging.Error("Failed to update dashboard", "user_id", user.ID, "dashboard_id", id, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to update dashboard")
			return
		}

		RespondWithJSON(w, http.StatusOK, dashboard)
	}
}
