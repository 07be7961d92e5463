package handlers

import (
	"net/http"
)

// HealthCheck reports service health; unhealthy answers 503
func (h *HTTPHandlerImpl) HealthCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, details, httpStatus := h.health.HealthCheck(r.Context())

		response := map[string]any{"status": status}
		for key, value := range details {
			response[key] = value
		}

		w.Header().Set("Cache-Control", "no-store")
		RespondWithJSON(w, httpStatus, response)
	}
}
