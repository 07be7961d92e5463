package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/farmavigil/farmavigil-api/healthdata"
	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/openfda/entities"
	"github.com/farmavigil/farmavigil-api/stats"
)

// HealthDataResponse is the dashboard payload. Raw events are only included on request.
type HealthDataResponse struct {
	Stats        stats.Summary          `json:"stats"`
	KPIs         stats.KPIs             `json:"kpis"`
	EventCount   int                    `json:"eventCount"`
	Events       []entities.Event       `json:"events,omitempty"`
	Enforcements []entities.Enforcement `json:"enforcements"`
	Source       healthdata.Source      `json:"source"`
	SearchTerm   string                 `json:"searchTerm,omitempty"`
	FetchedAt    time.Time              `json:"fetchedAt"`
	Error        string                 `json:"error,omitempty"`
}

// StateResponse is the published view state
type StateResponse struct {
	HealthDataResponse
	Loading     bool   `json:"loading"`
	SearchInput string `json:"searchInput"`
	HasData     bool   `json:"hasData"`
	Generation  uint64 `json:"generation"`
}

func newHealthDataResponse(snap healthdata.Snapshot, includeEvents bool) HealthDataResponse {
	enforcements := snap.Enforcements
	if enforcements == nil {
		enforcements = []entities.Enforcement{}
	}

	response := HealthDataResponse{
		Stats:        snap.Stats,
		KPIs:         snap.KPIs,
		EventCount:   len(snap.Events),
		Enforcements: enforcements,
		Source:       snap.Source,
		SearchTerm:   snap.SearchTerm,
		FetchedAt:    snap.FetchedAt,
	}
	if includeEvents {
		response.Events = snap.Events
	}
	return response
}

func includeEvents(r *http.Request) bool {
	for _, value := range strings.Split(r.URL.Query().Get("include"), ",") {
		if strings.TrimSpace(value) == "events" {
			return true
		}
	}
	return false
}

// GetHealthData runs a full refresh through the cache. When the enforcement fetch fails the
// quick batch is still returned with the error message set.
func (h *HTTPHandlerImpl) GetHealthData() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.view.Refresh(r.Context())
		if err != nil && r.Context().Err() != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Request cancelled")
			return
		}

		response := newHealthDataResponse(snap, includeEvents(r))
		if err != nil {
			logging.Warn("Health data refresh incomplete", "error", err)
			response.Error = err.Error()
		}
		RespondWithJSON(w, http.StatusOK, response)
	}
}

// SearchHealthData searches events by drug name or indication
func (h *HTTPHandlerImpl) SearchHealthData() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("q")
		if err := h.validator.ValidateSearchTerm(term); err != nil {
			logging.Warn("Unusual user input", "q", term, "error", err)
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		snap, err := h.view.Search(r.Context(), strings.TrimSpace(term))
		if err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Search could not be completed")
			return
		}

		RespondWithJSON(w, http.StatusOK, newHealthDataResponse(snap, includeEvents(r)))
	}
}

// GetHealthDataState returns what the dashboard currently shows
func (h *HTTPHandlerImpl) GetHealthDataState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := h.view.State()
		response := StateResponse{
			HealthDataResponse: newHealthDataResponse(state.Snapshot, includeEvents(r)),
			Loading:            state.Loading,
			SearchInput:        state.SearchInput,
			HasData:            state.HasData,
			Generation:         state.Generation,
		}
		response.Error = state.Error
		RespondWithJSON(w, http.StatusOK, response)
	}
}

type searchTermRequest struct {
	Term string `json:"term"`
}

// SetSearchTerm records the search input; the search itself runs after the debounce period.
// An empty term goes back to the full dataset.
func (h *HTTPHandlerImpl) SetSearchTerm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchTermRequest
		if err := decodeJSON(r, &req); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		term := strings.TrimSpace(req.Term)
		if term != "" {
			if err := h.validator.ValidateSearchTerm(term); err != nil {
				RespondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		h.view.SetSearchTerm(term)
		RespondWithJSON(w, http.StatusAccepted, map[string]string{"searchInput": term})
	}
}
