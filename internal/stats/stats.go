// Package stats summarizes indexing progress per site.
package stats

import (
	"context"
	"fmt"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

// Store is the persistence subset used by the report.
type Store interface {
	ListSites(ctx context.Context) ([]engine.Site, error)
	CountPages(ctx context.Context, siteID int64) (int, error)
	CountLemmas(ctx context.Context, siteID int64) (int, error)
}

// Total aggregates all sites.
type Total struct {
	Sites    int  `json:"sites"`
	Pages    int  `json:"pages"`
	Lemmas   int  `json:"lemmas"`
	Indexing bool `json:"indexing"`
}

// Detailed describes one site.
type Detailed struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	StatusTime int64  `json:"statusTime"`
	Error      string `json:"error,omitempty"`
	Pages      int    `json:"pages"`
	Lemmas     int    `json:"lemmas"`
}

// Report is the statistics payload.
type Report struct {
	Total    Total      `json:"total"`
	Detailed []Detailed `json:"detailed"`
}

// Service builds reports.
type Service struct {
	store   Store
	running func() bool
}

// New builds a Service. running reports whether a campaign is active and may
// be nil.
func New(store Store, running func() bool) *Service {
	return &Service{store: store, running: running}
}

// Report lists every persisted site with its page and lemma counts.
// Total.Indexing is true while a campaign runs or any site is INDEXING.
func (s *Service) Report(ctx context.Context) (Report, error) {
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list sites: %w", err)
	}
	report := Report{Detailed: make([]Detailed, 0, len(sites))}
	if s.running != nil {
		report.Total.Indexing = s.running()
	}
	for _, site := range sites {
		pages, err := s.store.CountPages(ctx, site.ID)
		if err != nil {
			return Report{}, fmt.Errorf("count pages for %s: %w", site.URL, err)
		}
		lemmas, err := s.store.CountLemmas(ctx, site.ID)
		if err != nil {
			return Report{}, fmt.Errorf("count lemmas for %s: %w", site.URL, err)
		}
		report.Total.Sites++
		report.Total.Pages += pages
		report.Total.Lemmas += lemmas
		if site.Status == engine.SiteStatusIndexing {
			report.Total.Indexing = true
		}
		report.Detailed = append(report.Detailed, Detailed{
			URL:        site.URL,
			Name:       site.Name,
			Status:     string(site.Status),
			StatusTime: site.StatusTime.UnixMilli(),
			Error:      site.LastError,
			Pages:      pages,
			Lemmas:     lemmas,
		})
	}
	return report, nil
}
