package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

func TestFetchReturnsBodyAndSendsHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotRef = r.Referer()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent", Referrer: "https://ref.test", Timeout: time.Second})
	resp, err := f.Fetch(context.Background(), engine.FetchRequest{URL: srv.URL + "/page"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "<title>ok</title>")
	require.Equal(t, "text/html", resp.ContentType)
	require.Equal(t, srv.URL+"/page", resp.URL)
	require.Equal(t, "test-agent", gotUA)
	require.Equal(t, "https://ref.test", gotRef)

	// A second visit of the same URL must not be deduplicated by colly.
	_, err = f.Fetch(context.Background(), engine.FetchRequest{URL: srv.URL + "/page"})
	require.NoError(t, err)
}

func TestFetchConcurrent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>" + r.URL.Path + "</p>"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second})
	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	bodies := make([]string, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.Fetch(context.Background(), engine.FetchRequest{URL: fmt.Sprintf("%s/p%d", srv.URL, i)})
			errs[i] = err
			bodies[i] = string(resp.Body)
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		require.Equal(t, fmt.Sprintf("<p>/p%d</p>", i), bodies[i])
	}
}

func TestFetchHTTPErrorKeepsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := New(Config{Timeout: time.Second}).Fetch(context.Background(), engine.FetchRequest{URL: srv.URL})
	var statusErr *engine.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := New(Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), engine.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, engine.ErrFetchTimeout)
}

func TestFetchNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}).Fetch(context.Background(), engine.FetchRequest{URL: addr})
	var netErr *engine.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, addr, netErr.URL)
}

func TestFetchCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Fetch(ctx, engine.FetchRequest{URL: "http://127.0.0.1:1"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Referrer: "https://ref.test"})
	start := time.Unix(0, 0)
	var result engine.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, start, &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "https://ref.test", collyReq.Headers.Get("Referer"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "https://example.com", result.URL)

	hooks.onError(&colly.Response{
		StatusCode: http.StatusInternalServerError,
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/x")},
	}, errors.New("Internal Server Error"))
	require.Equal(t, http.StatusInternalServerError, result.StatusCode)
	require.EqualError(t, fetchErr, "Internal Server Error")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
