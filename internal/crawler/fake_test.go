package crawler

import (
	"context"
	"net/http"
	"sync"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

type fakePage struct {
	code        int
	body        string
	contentType string
	err         error
}

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]fakePage
	calls   []string
	onFetch func(url string)
}

func (f *fakeFetcher) Fetch(_ context.Context, req engine.FetchRequest) (engine.FetchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	p, ok := f.pages[req.URL]
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(req.URL)
	}
	if !ok {
		return engine.FetchResponse{}, &engine.NetworkError{URL: req.URL, Err: context.DeadlineExceeded}
	}
	if p.err != nil {
		return engine.FetchResponse{}, p.err
	}
	code := p.code
	if code == 0 {
		code = http.StatusOK
	}
	contentType := p.contentType
	if contentType == "" {
		contentType = "text/html"
	}
	resp := engine.FetchResponse{URL: req.URL, StatusCode: code, Body: []byte(p.body), ContentType: contentType}
	if code >= http.StatusBadRequest {
		return resp, &engine.HTTPStatusError{URL: req.URL, Code: code}
	}
	return resp, nil
}

func (f *fakeFetcher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
