package engine

import "time"

// SiteStatus enumerates the lifecycle states of a site.
type SiteStatus string

const (
	// SiteStatusIndexing indicates a crawl or index run is in progress.
	SiteStatusIndexing SiteStatus = "INDEXING"
	// SiteStatusIndexed indicates the last run finished successfully.
	SiteStatusIndexed SiteStatus = "INDEXED"
	// SiteStatusFailed indicates the last run failed or was stopped.
	SiteStatusFailed SiteStatus = "FAILED"
)

// SiteConfig is one configured site definition.
type SiteConfig struct {
	URL  string `mapstructure:"url" json:"url"`
	Name string `mapstructure:"name" json:"name"`
}

// Site is the persisted state of a configured site.
type Site struct {
	ID         int64      `json:"id"`
	URL        string     `json:"url"`
	Name       string     `json:"name"`
	Status     SiteStatus `json:"status"`
	StatusTime time.Time  `json:"status_time"`
	LastError  string     `json:"last_error,omitempty"`
}

// Page is a fetched document addressed by its host-relative path.
type Page struct {
	ID      int64  `json:"id"`
	SiteID  int64  `json:"site_id"`
	Path    string `json:"path"`
	Code    int    `json:"code"`
	Content string `json:"-"`
}

// Lemma is a site-scoped base form with the number of pages containing it.
type Lemma struct {
	ID        int64  `json:"id"`
	SiteID    int64  `json:"site_id"`
	Lemma     string `json:"lemma"`
	Frequency int    `json:"frequency"`
}

// IndexEntry links a page to a lemma with the lemma's weighted rank on it.
type IndexEntry struct {
	ID      int64   `json:"id"`
	PageID  int64   `json:"page_id"`
	LemmaID int64   `json:"lemma_id"`
	Rank    float64 `json:"rank"`
}

// Field is a weighted page zone used for ranking.
type Field struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Selector string  `json:"selector"`
	Weight   float64 `json:"weight"`
}

// Field names.
const (
	FieldTitle = "title"
	FieldBody  = "body"
)

// DefaultFields returns the static zone weights.
func DefaultFields() []Field {
	return []Field{
		{Name: FieldTitle, Selector: "title", Weight: 1.0},
		{Name: FieldBody, Selector: "body", Weight: 0.8},
	}
}

// Weights is the resolved pair of ranking zones for one run.
type Weights struct {
	Title Field
	Body  Field
}

// FetchRequest describes a single page fetch.
type FetchRequest struct {
	URL string
}

// FetchResponse captures the outcome of a fetch.
type FetchResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// SiteEvent is published when a site reaches a terminal status.
type SiteEvent struct {
	SiteURL   string     `json:"site_url"`
	SiteName  string     `json:"site_name"`
	Status    SiteStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	Pages     int        `json:"pages"`
	Timestamp time.Time  `json:"timestamp"`
}
