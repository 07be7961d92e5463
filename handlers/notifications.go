package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/store/models"
	"gorm.io/datatypes"
)

type createNotificationRequest struct {
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

type markNotificationsRequest struct {
	IDs    []string `json:"ids"`
	IsRead *bool    `json:"isRead"`
}

// ListNotifications returns the caller's most recent notifications; ?unread=true keeps
// only unread ones
func (h *HTTPHandlerImpl) ListNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			return
		}

		unreadOnly := false
		if raw := r.URL.Query().Get("unread"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				RespondWithError(w, http.StatusBadRequest, "unread must be true or false")
				return
			}
			unreadOnly = parsed
		}

		notifications, err := h.repo.ListNotifications(r.Context(), user.ID, unreadOnly)
		if err != nil {
			logging.Error("Failed to list notifications", "user_id", user.ID, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to list notifications")
			return
		}

		RespondWithJSON(w, http.StatusOK, notifications)
	}
}

// CreateNotification stores a notification for the caller
func (h *HTTPHandlerImpl) CreateNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			return
		}

		var req createNotificationRequest
		if err := decodeJSON(r, &req); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.validator.ValidateNotification(req.Title, req.Message, req.Type); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.Data) > 0 && !json.Valid(req.Data) {
			RespondWithError(w, http.StatusBadRequest, "data must be valid JSON")
			return
		}

		notification := &models.Notification{
			UserID:  user.ID,
			Title:   req.Title,
			Message: req.Message,
			Type:    req.Type,
			Data:    datatypes.JSON(req.Data),
		}
		if err := h.repo.CreateNotification(r.Context(), notification); err != nil {
			logging.Error("Failed to create notification", "user_id", user.ID, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to create notification")
			return
		}

		RespondWithJSON(w, http.StatusCreated, notification)
	}
}

// MarkNotifications sets the read flag on a batch of the caller's notifications.
// Identifiers owned by other users are ignored.
func (h *HTTPHandlerImpl) MarkNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			return
		}

		var req markNotificationsRequest
		if err := decodeJSON(r, &req); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.IsRead == nil {
			RespondWithError(w, http.StatusBadRequest, "isRead is required")
			return
		}

		ids, err := h.validator.ValidateIDs(req.IDs)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		updated, err := h.repo.MarkNotifications(r.Context(), user.ID, ids, *req.IsRead)
		if err != nil {
			logging.Error("Failed to update notifications", "user_id", user.ID, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to update notifications")
			return
		}

		RespondWithJSON(w, http.StatusOK, map[string]any{"success": true, "updated": updated})
	}
}
