package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/audit"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.Entry
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.Entry, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

func newRouter(service *stubTimelineService) http.Handler {
	h := NewHandler(nil, service)
	h.now = func() time.Time { return time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(shared.RequireActor)
	h.MountRoutes(r)
	return r
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(shared.HeaderAccountID, "3")
	req.Header.Set(shared.HeaderActorID, "9")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestTimelineScopesToAccount(t *testing.T) {
	service := &stubTimelineService{result: audit.Result{
		Rows:   []audit.Entry{{AccountID: 3, Action: "quote.sent", Entity: "quote", EntityID: "1"}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20},
	}}
	rr := get(t, newRouter(service), "/audit?entity=quote&entity_id=1&page=1")
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, int64(3), service.lastFilters.AccountID)
	assert.Equal(t, "quote", service.lastFilters.Entity)
	assert.Equal(t, "1", service.lastFilters.EntityID)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), service.lastFilters.To)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), service.lastFilters.From)

	var body struct {
		Success bool         `json:"success"`
		Data    audit.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data.Rows, 1)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newRouter(&stubTimelineService{})
	for _, target := range []string{
		"/audit?from=yesterday",
		"/audit?from=2024-04-01&to=2024-03-01",
		"/audit?page=0",
		"/audit?actor_id=abc",
		"/audit?from=2020-01-01&to=2024-01-01",
	} {
		rr := get(t, router, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestTimelineRequiresActor(t *testing.T) {
	router := newRouter(&stubTimelineService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.Entry{{
		ActorID:  9,
		Action:   "quote.accepted",
		Entity:   "quote",
		EntityID: "4",
		At:       time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
	}}}
	rr := get(t, newRouter(service), "/audit/export.csv")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "2024-03-02T08:00:00Z,9,quote.accepted,quote,4,")
}

func TestExportIsRateLimitedPerAccount(t *testing.T) {
	router := newRouter(&stubTimelineService{})
	for i := 0; i < exportLimit; i++ {
		require.Equal(t, http.StatusOK, get(t, router, "/audit/export.csv").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(t, router, "/audit/export.csv").Code)
}
