// Package metrics exposes Prometheus collectors for the search engine.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchengine_crawl_pages_total",
			Help: "Total number of pages fetched while crawling, labeled by site and status class.",
		},
		[]string{"site", "status"},
	)

	crawlBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchengine_crawl_bytes_total",
			Help: "Total number of bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)

	indexedPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchengine_indexed_pages_total",
			Help: "Total number of pages indexed, labeled by site.",
		},
		[]string{"site"},
	)

	siteRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchengine_site_runs_total",
			Help: "Total number of site runs, labeled by terminal status.",
		},
		[]string{"status"},
	)

	siteRunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searchengine_site_run_duration_seconds",
			Help:    "Histogram of crawl and index durations per site.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	campaignActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "searchengine_campaign_active",
			Help: "1 while an indexing campaign is running.",
		},
	)

	searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchengine_search_requests_total",
			Help: "Total number of search requests, labeled by scope and outcome.",
		},
		[]string{"scope", "outcome"},
	)

	searchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searchengine_search_duration_seconds",
			Help:    "Histogram of search latencies.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// StatusClass buckets an HTTP status into 2xx/3xx/4xx/5xx, or "error" when
// no response was received.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawl records one fetch made by the crawler.
func ObserveCrawl(site string, status string, bytesFetched int) {
	sanitizedSite := SanitizeSite(site)
	crawlPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveIndexedPage records one page processed by the indexer.
func ObserveIndexedPage(site string) {
	indexedPagesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveSiteRun records a finished site run.
func ObserveSiteRun(status string, duration time.Duration) {
	siteRunsTotal.WithLabelValues(status).Inc()
	siteRunDurationSeconds.Observe(duration.Seconds())
}

// SetCampaignActive flips the campaign gauge.
func SetCampaignActive(active bool) {
	if active {
		campaignActive.Set(1)
		return
	}
	campaignActive.Set(0)
}

// ObserveSearch records a search request.
func ObserveSearch(scope, outcome string, duration time.Duration) {
	searchRequestsTotal.WithLabelValues(scope, outcome).Inc()
	searchDurationSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
