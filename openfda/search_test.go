package openfda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/farmavigil/farmavigil-api/openfda/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchRecorder struct {
	mu       sync.Mutex
	searches []string
}

func (s *searchRecorder) record(r *http.Request) string {
	search := r.URL.Query().Get("search")
	s.mu.Lock()
	s.searches = append(s.searches, search)
	s.mu.Unlock()
	return search
}

func TestSearchReturnsFirstNonEmptyStrategy(t *testing.T) {
	rec := &searchRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch rec.record(r) {
		case "patient.drug.medicinalproduct:aspirin":
			writeNotFound(w)
		case "patient.drug.medicinalproduct:aspirin*":
			writeResults(t, w, []entities.Event{})
		case "patient.drug.drugindication:aspirin":
			writeResults(t, w, []entities.Event{{SafetyReportID: "a"}, {SafetyReportID: "b"}})
		default:
			writeResults(t, w, []entities.Event{{SafetyReportID: "never"}})
		}
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).SearchEvents(context.Background(), "  Aspirin ", 200)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].SafetyReportID)
	assert.Equal(t, []string{
		"patient.drug.medicinalproduct:aspirin",
		"patient.drug.medicinalproduct:aspirin*",
		"patient.drug.drugindication:aspirin",
	}, rec.searches)
}

func TestSearchAllStrategiesEmpty(t *testing.T) {
	rec := &searchRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeNotFound(w)
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).SearchEvents(context.Background(), "nothing", 200)

	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Len(t, rec.searches, 4)
}

func TestSearchSkipsFailingStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") == "patient.drug.medicinalproduct:ibuprofen" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeResults(t, w, []entities.Event{{SafetyReportID: "wildcard"}})
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).SearchEvents(context.Background(), "ibuprofen", 200)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "wildcard", events[0].SafetyReportID)
}

func TestSearchEveryStrategyFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SearchEvents(context.Background(), "ibuprofen", 200)

	assert.Error(t, err)
}

func TestSearchBlankTermSkipsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL).SearchEvents(context.Background(), "   ", 200)

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNormalizeTerm(t *testing.T) {
	assert.Equal(t, "paracetamol", NormalizeTerm(" Paracétamol "))
	assert.Equal(t, "acido acetilsalicilico", NormalizeTerm("Ácido Acetilsalicílico"))
	assert.Equal(t, "", NormalizeTerm("  "))
}
