package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/farmavigil/farmavigil-api/auth"
	"github.com/farmavigil/farmavigil-api/healthdata"
	"github.com/farmavigil/farmavigil-api/openfda/entities"
	"github.com/farmavigil/farmavigil-api/stats"
	"github.com/farmavigil/farmavigil-api/store"
	"github.com/farmavigil/farmavigil-api/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "ana@example.org"

type fakeView struct {
	mu          sync.Mutex
	snapshot    healthdata.Snapshot
	refreshErr  error
	searchErr   error
	searchTerms []string
	setTerms    []string
	state       healthdata.State
}

func (v *fakeView) Refresh(ctx context.Context) (healthdata.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return healthdata.Snapshot{}, err
	}
	return v.snapshot, v.refreshErr
}

func (v *fakeView) Search(ctx context.Context, term string) (healthdata.Snapshot, error) {
	v.mu.Lock()
	v.searchTerms = append(v.searchTerms, term)
	v.mu.Unlock()
	if v.searchErr != nil {
		return healthdata.Snapshot{}, v.searchErr
	}
	snap := v.snapshot
	snap.Source = healthdata.SourceSearch
	snap.SearchTerm = term
	snap.Enforcements = nil
	return snap, nil
}

func (v *fakeView) SetSearchTerm(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setTerms = append(v.setTerms, term)
}

func (v *fakeView) State() healthdata.State {
	return v.state
}

type fakeHealthChecker struct {
	status     string
	details    map[string]any
	httpStatus int
}

func (f *fakeHealthChecker) HealthCheck(ctx context.Context) (string, map[string]any, int) {
	return f.status, f.details, f.httpStatus
}

func sampleSnapshot() healthdata.Snapshot {
	events := []entities.Event{
		{SafetyReportID: "1", Serious: "1", OccurCountry: "US", ReceiveDate: "20240115", Patient: entities.Patient{Sex: "1", AgeGroup: "5"}},
		{SafetyReportID: "2", Serious: "2", OccurCountry: "ES", ReceiveDate: "20240220", Patient: entities.Patient{Sex: "2"}},
		{SafetyReportID: "3", Serious: "1", ReceiveDate: "20240221"},
	}
	enforcements := []entities.Enforcement{{RecallNumber: "D-0001-2024"}}
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	summary := stats.Compute(events, now)
	return healthdata.Snapshot{
		Events:       events,
		Enforcements: enforcements,
		Stats:        summary,
		KPIs:         stats.DeriveKPIs(summary, len(enforcements)),
		Source:       healthdata.SourceFull,
		FetchedAt:    now,
	}
}

type testEnv struct {
	view   *fakeView
	store  *store.Store
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(store.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, st.AutoMigrate())
	t.Cleanup(func() { _ = st.Close() })

	view := &fakeView{snapshot: sampleSnapshot()}
	health := &fakeHealthChecker{status: "healthy", details: map[string]any{"events": 3}, httpStatus: http.StatusOK}
	h := NewHTTPHandler(view, st, validation.NewDataValidator(), health)

	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck())
	r.Group(func(r chi.Router) {
		r.Use(auth.Identity(auth.DefaultEmailHeader))
		r.Post("/api/auth/session", h.CreateSession())
		r.Get("/api/health-data", h.GetHealthData())
		r.Get("/api/health-data/search", h.SearchHealthData())
		r.Get("/api/health-data/state", h.GetHealthDataState())
		r.Put("/api/health-data/search-term", h.SetSearchTerm())
		r.Get("/api/dashboards", h.ListDashboards())
		r.Post("/api/dashboards", h.CreateDashboard())
		r.Patch("/api/dashboards/{id}", h.UpdateDashboard())
		r.Get("/api/notifications", h.ListNotifications())
		r.Post("/api/notifications", h.CreateNotification())
		r.Patch("/api/notifications", h.MarkNotifications())
	})

	return &testEnv{view: view, store: st, router: r}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	return e.doAs(testEmail, method, path, body)
}

func (e *testEnv) doAs(email, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if email != "" {
		req.Header.Set(auth.DefaultEmailHeader, email)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	rr := e.do("POST", "/api/auth/session", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertErrorBody(t *testing.T, rr *httptest.ResponseRecorder, code int) {
	t.Helper()
	assert.Equal(t, code, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, http.StatusText(code), body["error"])
	assert.Equal(t, float64(code), body["code"])
	assert.NotEmpty(t, body["message"])
}

func TestGetHealthData(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do("GET", "/api/health-data", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	body := decode[HealthDataResponse](t, rr)
	assert.Equal(t, 3, body.Stats.TotalEvents)
	assert.Equal(t, 2, body.Stats.SeriousEvents)
	assert.Equal(t, 3, body.EventCount)
	assert.Nil(t, body.Events)
	assert.Len(t, body.Enforcements, 1)
	assert.Equal(t, healthdata.SourceFull, body.Source)
	assert.Equal(t, 1, body.KPIs.RegulatoryActions)
	assert.Empty(t, body.Error)
}

func TestGetHealthDataIncludeEvents(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do("GET", "/api/health-data?include=kpis,events", "")
	body := decode[HealthDataResponse](t, rr)
	assert.Len(t, body.Events, 3)
}

func TestGetHealthDataPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.view.refreshErr = errors.New("failed to fetch enforcements: openFDA returned 500")

	rr := env.do("GET", "/api/health-data", "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[HealthDataResponse](t, rr)
	assert.Equal(t, 3, body.Stats.TotalEvents)
	assert.Contains(t, body.Error, "enforcements")
}

func TestGetHealthDataRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	for _, email := range []string{"", "not-an-email", "Ana <ana@example.org>"} {
		rr := env.doAs(email, "GET", "/api/health-data", "")
		assertErrorBody(t, rr, http.StatusUnauthorized)
	}
}

func TestSearchHealthData(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do("GET", "/api/health-data/search?q=%20aspirin%20", "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[HealthDataResponse](t, rr)
	assert.Equal(t, "aspirin", body.SearchTerm)
	assert.Equal(t, healthdata.SourceSearch, body.Source)
	assert.NotNil(t, body.Enforcements)
	assert.Empty(t, body.Enforcements)
	assert.Equal(t, []string{"aspirin"}, env.view.searchTerms)
}

func TestSearchHealthDataRejectsInvalidTerms(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"", "a", "aspirin%20OR%20ibuprofen", "brand%3Aname"} {
		rr := env.do("GET", "/api/health-data/search?q="+q, "")
		assertErrorBody(t, rr, http.StatusBadRequest)
	}
	assert.Empty(t, env.view.searchTerms)
}

func TestSearchHealthDataFailure(t *testing.T) {
	env := newTestEnv(t)
	env.view.searchErr = context.DeadlineExceeded

	rr := env.do("GET", "/api/health-data/search?q=aspirin", "")
	assertErrorBody(t, rr, http.StatusServiceUnavailable)
}

func TestGetHealthDataState(t *testing.T) {
	env := newTestEnv(t)
	env.view.state = healthdata.State{
		Snapshot:    sampleSnapshot(),
		Loading:     true,
		Error:       "enforcements unavailable",
		SearchInput: "asp",
		HasData:     true,
		Generation:  4,
	}

	rr := env.do("GET", "/api/health-data/state", "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[StateResponse](t, rr)
	assert.True(t, body.Loading)
	assert.True(t, body.HasData)
	assert.Equal(t, "asp", body.SearchInput)
	assert.Equal(t, uint64(4), body.Generation)
	assert.Equal(t, "enforcements unavailable", body.Error)
	assert.Equal(t, 3, body.Stats.TotalEvents)
}

func TestSetSearchTerm(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do("PUT", "/api/health-data/search-term", `{"term":" aspirin "}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "aspirin", decode[map[string]string](t, rr)["searchInput"])

	rr = env.do("PUT", "/api/health-data/search-term", `{"term":""}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = env.do("PUT", "/api/health-data/search-term", `{"term":"a"}`)
	assertErrorBody(t, rr, http.StatusBadRequest)

	rr = env.do("PUT", "/api/health-data/search-term", `{"term":`)
	assertErrorBody(t, rr, http.StatusBadRequest)

	assert.Equal(t, []string{"aspirin", ""}, env.view.setTerms)
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doAs("Ana@Example.org", "POST", "/api/auth/session", `{"name":"Ana"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	user := decode[map[string]any](t, rr)
	assert.Equal(t, testEmail, user["email"])
	assert.Equal(t, "Ana", user["name"])

	again := env.do("POST", "/api/auth/session", "")
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, user["id"], decode[map[string]any](t, again)["id"])
}

func TestUnknownUserIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	assertErrorBody(t, env.do("GET", "/api/dashboards", ""), http.StatusNotFound)
	assertErrorBody(t, env.do("GET", "/api/notifications", ""), http.StatusNotFound)
}

func TestDashboards(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	rr := env.do("GET", "/api/dashboards", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	rr = env.do("POST", "/api/dashboards", `{"name":"Overview","isDefault":true}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	first := decode[map[string]any](t, rr)
	assert.Equal(t, map[string]any{}, first["config"])
	assert.Equal(t, true, first["isDefault"])

	rr = env.do("POST", "/api/dashboards", `{"name":"Cardio","config":{"charts":["trend"]},"isDefault":true}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do("GET", "/api/dashboards", "")
	dashboards := decode[[]map[string]any](t, rr)
	require.Len(t, dashboards, 2)
	defaults := 0
	for _, d := range dashboards {
		if d["isDefault"] == true {
			defaults++
			assert.Equal(t, "Cardio", d["name"])
		}
	}
	assert.Equal(t, 1, defaults)

	rr = env.do("PATCH", "/api/dashboards/"+first["id"].(string), `{"name":"Renamed","isDefault":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[map[string]any](t, rr)
	assert.Equal(t, "Renamed", updated["name"])
	assert.Equal(t, true, updated["isDefault"])
}

func TestDashboardValidation(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	assertErrorBody(t, env.do("POST", "/api/dashboards", `{"name":""}`), http.StatusBadRequest)
	assertErrorBody(t, env.do("POST", "/api/dashboards", `{"name":"x","config":[1,2]}`), http.StatusBadRequest)
	assertErrorBody(t, env.do("POST", "/api/dashboards", ``), http.StatusBadRequest)
	assertErrorBody(t, env.do("PATCH", "/api/dashboards/not-a-uuid", `{"name":"x"}`), http.StatusBadRequest)
}

func TestUpdateDashboardNotOwned(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	rr := env.do("POST", "/api/dashboards", `{"name":"Mine"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[map[string]any](t, rr)["id"].(string)

	other := "bob@example.org"
	require.Equal(t, http.StatusOK, env.doAs(other, "POST", "/api/auth/session", "").Code)

	rr = env.doAs(other, "PATCH", "/api/dashboards/"+id, `{"name":"Stolen"}`)
	assertErrorBody(t, rr, http.StatusNotFound)

	rr = env.do("PATCH", "/api/dashboards/"+uuid.NewString(), `{"name":"Ghost"}`)
	assertErrorBody(t, rr, http.StatusNotFound)
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	rr := env.do("POST", "/api/notifications", `{"title":"New recall","message":"Class II recall issued","data":{"recall":"D-0001-2024"}}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	first := decode[map[string]any](t, rr)
	assert.Equal(t, "info", first["type"])
	assert.Equal(t, false, first["isRead"])

	rr = env.do("POST", "/api/notifications", `{"title":"Spike","message":"Serious events doubled","type":"warning"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	second := decode[map[string]any](t, rr)

	rr = env.do("PATCH", "/api/notifications", fmt.Sprintf(`{"ids":[%q],"isRead":true}`, first["id"]))
	require.Equal(t, http.StatusOK, rr.Code)
	result := decode[map[string]any](t, rr)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, float64(1), result["updated"])

	rr = env.do("GET", "/api/notifications?unread=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	unread := decode[[]map[string]any](t, rr)
	require.Len(t, unread, 1)
	assert.Equal(t, second["id"], unread[0]["id"])

	rr = env.do("GET", "/api/notifications", "")
	assert.Len(t, decode[[]map[string]any](t, rr), 2)
}

func TestNotificationValidation(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)

	assertErrorBody(t, env.do("POST", "/api/notifications", `{"title":"","message":"m"}`), http.StatusBadRequest)
	assertErrorBody(t, env.do("POST", "/api/notifications", `{"title":"t","message":"m","type":"urgent"}`), http.StatusBadRequest)
	assertErrorBody(t, env.do("GET", "/api/notifications?unread=maybe", ""), http.StatusBadRequest)
	assertErrorBody(t, env.do("PATCH", "/api/notifications", `{"ids":["x"],"isRead":true}`), http.StatusBadRequest)
	assertErrorBody(t, env.do("PATCH", "/api/notifications", fmt.Sprintf(`{"ids":[%q]}`, uuid.NewString())), http.StatusBadRequest)
}

func TestHealthCheckHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doAs("", "GET", "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	body := decode[map[string]any](t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(3), body["events"])
}

func TestRespondWithError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithError(rr, http.StatusNotFound, "Dashboard not found")

	assertErrorBody(t, rr, http.StatusNotFound)
	assert.Equal(t, "Dashboard not found", decode[map[string]any](t, rr)["message"])
}
