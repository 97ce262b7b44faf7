package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/search"
	"github.com/ozemskikh/SearchEngine/internal/stats"
)

type fakeController struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	pageErr  error
	pages    []string
}

func (f *fakeController) Start(context.Context) error { return f.startErr }

func (f *fakeController) Stop(context.Context) error { return f.stopErr }

func (f *fakeController) IndexPage(_ context.Context, rawURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, rawURL)
	return f.pageErr
}

type fakeSearcher struct {
	last search.Query
	resp search.Response
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) (search.Response, error) {
	f.last = q
	return f.resp, f.err
}

type fakeReporter struct {
	report stats.Report
	err    error
}

func (f *fakeReporter) Report(context.Context) (stats.Report, error) {
	return f.report, f.err
}

type panicReporter struct{}

func (panicReporter) Report(context.Context) (stats.Report, error) {
	panic("boom")
}

func newTestServer(c Controller, s Searcher, r Reporter) *Server {
	return NewServer(c, s, r, zap.NewNop())
}

func do(t *testing.T, srv *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestStartIndexing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		result bool
		msg    string
	}{
		{name: "started", status: http.StatusOK, result: true},
		{name: "conflict", err: engine.ErrCampaignRunning, status: http.StatusConflict, msg: "indexing is already running"},
		{name: "internal", err: errors.New("db down"), status: http.StatusInternalServerError, msg: "db down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(&fakeController{startErr: tt.err}, &fakeSearcher{}, &fakeReporter{})
			rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/startIndexing", nil))
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.result, body["result"])
			if tt.msg == "" {
				require.NotContains(t, body, "error")
			} else {
				require.Equal(t, tt.msg, body["error"])
			}
			require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestStopIndexingNotRunning(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{stopErr: engine.ErrNotRunning}, &fakeSearcher{}, &fakeReporter{})
	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/stopIndexing", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, false, body["result"])
	require.Equal(t, "indexing is not running", body["error"])
}

func TestIndexPage(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	srv := newTestServer(ctrl, &fakeSearcher{}, &fakeReporter{})

	rec, body := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/indexPage?url=https://a.test/x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["result"])

	form := url.Values{"url": {"https://a.test/y"}}
	req := httptest.NewRequest(http.MethodPost, "/api/indexPage", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec, _ = do(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"https://a.test/x", "https://a.test/y"}, ctrl.pages)

	ctrl.pageErr = engine.NewValidationError("page is outside the sites listed in the configuration")
	rec, body = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/indexPage?url=https://z.test/", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "page is outside the sites listed in the configuration", body["error"])

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/indexPage?url=x", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	report := stats.Report{
		Total: stats.Total{Sites: 1, Pages: 4, Lemmas: 10, Indexing: true},
		Detailed: []stats.Detailed{
			{URL: "https://a.test", Name: "A", Status: "INDEXING", StatusTime: 1700000000000, Pages: 4, Lemmas: 10},
		},
	}
	srv := newTestServer(&fakeController{}, &fakeSearcher{}, &fakeReporter{report: report})
	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/statistics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["result"])

	st := body["statistics"].(map[string]any)
	total := st["total"].(map[string]any)
	require.Equal(t, float64(4), total["pages"])
	require.Equal(t, true, total["indexing"])
	detailed := st["detailed"].([]any)
	require.Len(t, detailed, 1)
	first := detailed[0].(map[string]any)
	require.Equal(t, float64(1700000000000), first["statusTime"])
	require.Equal(t, "INDEXING", first["status"])
}

func TestSearch(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{resp: search.Response{
		Count: 3,
		Results: []search.Result{
			{Site: "https://a.test", SiteName: "A", URI: "/x", Title: "X", Snippet: "<b>cat</b>", Relevance: 1},
		},
	}}
	srv := newTestServer(&fakeController{}, searcher, &fakeReporter{})

	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?query=cat&site=https://a.test&offset=2&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, search.Query{Text: "cat", Site: "https://a.test", Offset: 2, Limit: 1}, searcher.last)
	require.Equal(t, true, body["result"])
	require.Equal(t, float64(3), body["count"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	item := data[0].(map[string]any)
	require.Equal(t, "A", item["siteName"])
	require.Equal(t, "/x", item["uri"])
	require.Equal(t, "<b>cat</b>", item["snippet"])

	_, _ = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?query=cat&site=All+sites", nil))
	require.Empty(t, searcher.last.Site)
}

func TestSearchErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{}, &fakeSearcher{err: engine.NewValidationError("empty search query")}, &fakeReporter{})
	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?query=", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "empty search query", body["error"])

	rec, body = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?query=cat&limit=ten", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid limit", body["error"])

	rec, _ = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/search?query=cat&offset=-", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{}, &fakeSearcher{}, panicReporter{})
	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/statistics", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", body["error"])
}

func TestHealthzAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{}, &fakeSearcher{}, &fakeReporter{})
	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRequestIDPropagates(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeController{}, &fakeSearcher{}, &fakeReporter{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
