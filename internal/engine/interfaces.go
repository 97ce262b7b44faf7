package engine

import (
	"context"
	"io"
	"time"
)

// SiteStore persists Site rows.
type SiteStore interface {
	UpsertSite(ctx context.Context, site Site) (Site, error)
	FindSiteByURL(ctx context.Context, url string) (Site, error)
	ListSites(ctx context.Context) ([]Site, error)
	ListSitesByStatus(ctx context.Context, status SiteStatus) ([]Site, error)
	UpdateSiteStatus(ctx context.Context, siteID int64, status SiteStatus, lastError string, at time.Time) error
	// DeleteSite removes the site with its pages, lemmas, and index rows.
	DeleteSite(ctx context.Context, siteID int64) error
}

// PageStore persists Page rows.
type PageStore interface {
	InsertPages(ctx context.Context, pages []Page) error
	// SavePage inserts or replaces the page identified by (SiteID, Path).
	SavePage(ctx context.Context, page Page) (Page, error)
	FindPage(ctx context.Context, siteID int64, path string) (Page, error)
	GetPage(ctx context.Context, pageID int64) (Page, error)
	ListPages(ctx context.Context, siteID int64) ([]Page, error)
	CountPages(ctx context.Context, siteID int64) (int, error)
	// DeletePages removes the site's pages and their index rows.
	DeletePages(ctx context.Context, siteID int64) error
}

// LemmaStore persists Lemma rows.
type LemmaStore interface {
	// UpsertLemma creates the lemma with frequency 1, or increments its
	// frequency by one while it is below frequencyCap. It is atomic per
	// (siteID, lemma).
	UpsertLemma(ctx context.Context, siteID int64, lemma string, frequencyCap int) (Lemma, error)
	FindLemma(ctx context.Context, siteID int64, lemma string) (Lemma, error)
	CountLemmas(ctx context.Context, siteID int64) (int, error)
	ListLemmas(ctx context.Context, siteID int64) ([]Lemma, error)
	DeleteLemmas(ctx context.Context, siteID int64) error
}

// IndexStore persists IndexEntry rows.
type IndexStore interface {
	InsertIndex(ctx context.Context, entry IndexEntry) error
	FindIndexByLemma(ctx context.Context, lemmaID int64) ([]IndexEntry, error)
	FindIndex(ctx context.Context, lemmaID, pageID int64) (IndexEntry, error)
	DeleteIndexByPage(ctx context.Context, pageID int64) error
	DeleteIndexByPages(ctx context.Context, pageIDs []int64) error
}

// FieldStore persists ranking zones.
type FieldStore interface {
	// EnsureFields inserts the fields that do not exist yet.
	EnsureFields(ctx context.Context, fields []Field) error
	FindField(ctx context.Context, name string) (Field, error)
}

// Store is the full persistence contract.
type Store interface {
	SiteStore
	PageStore
	LemmaStore
	IndexStore
	FieldStore
	Close()
}

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Limiter throttles fetches per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// BlobStore persists raw page snapshots.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher emits site status notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
