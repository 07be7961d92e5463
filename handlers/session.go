package handlers

import (
	"net/http"
	"strings"

	"github.com/farmavigil/farmavigil-api/auth"
	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/validation"
)

type sessionRequest struct {
	Name string `json:"name"`
}

// CreateSession provisions the authenticated user on sign-in. The body is optional and
// may carry the display name.
func (h *HTTPHandlerImpl) CreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := auth.EmailFromContext(r.Context())
		if !ok {
			RespondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		var req sessionRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				RespondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		name := strings.TrimSpace(req.Name)
		if len([]rune(name)) > validation.MaxNameLength {
			RespondWithError(w, http.StatusBadRequest, "name too long")
			return
		}

		user, err := h.repo.EnsureUser(r.Context(), email, name)
		if err != nil {
			logging.Error("Failed to provision user", "email", email, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to create session")
			return
		}

		RespondWithJSON(w, http.StatusOK, user)
	}
}
