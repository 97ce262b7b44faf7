// Package collyfetcher implements engine.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

const defaultTimeout = 3 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Referrer  string
	Timeout   time.Duration
}

// Fetcher implements engine.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Responses with status >= 400 are returned
// together with an *engine.HTTPStatusError; timeouts wrap engine.ErrFetchTimeout
// and other transport failures are *engine.NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, request engine.FetchRequest) (engine.FetchResponse, error) {
	if ctx.Err() != nil {
		return engine.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", context.Cause(ctx))
	}
	var (
		result   engine.FetchResponse
		fetchErr error
	)
	collector := f.buildCollector(time.Now(), &result, &fetchErr)
	visitErr := f.runCollector(ctx, collector, request.URL)
	if ctx.Err() != nil {
		return engine.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", context.Cause(ctx))
	}
	if result.StatusCode >= http.StatusBadRequest {
		return result, &engine.HTTPStatusError{URL: request.URL, Code: result.StatusCode}
	}
	if result.StatusCode > 0 {
		return result, nil
	}
	err := visitErr
	if err == nil {
		err = fetchErr
	}
	if err == nil {
		err = errors.New("no response")
	}
	if isTimeout(err) {
		return engine.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, engine.ErrFetchTimeout)
	}
	return engine.FetchResponse{}, &engine.NetworkError{URL: request.URL, Err: err}
}

func (f *Fetcher) buildCollector(
	start time.Time,
	result *engine.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	f.configureCollectorHooks(collector, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *engine.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		if f.cfg.Referrer != "" {
			r.Headers.Set("Referer", f.cfg.Referrer)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = toFetchResponse(r, start)
	})

	// Colly reports every non-2xx response through OnError, with the
	// response attached when the server answered.
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			*result = toFetchResponse(r, start)
		}
		*fetchErr = err
	})
}

func toFetchResponse(r *colly.Response, start time.Time) engine.FetchResponse {
	resp := engine.FetchResponse{
		StatusCode: r.StatusCode,
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(start),
	}
	if r.Request != nil && r.Request.URL != nil {
		resp.URL = r.Request.URL.String()
	}
	if r.Headers != nil {
		resp.ContentType = r.Headers.Get("Content-Type")
	}
	return resp
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", context.Cause(ctx))
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
