// Package search answers relevance-ranked queries over indexed sites.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/metrics"
	"github.com/ozemskikh/SearchEngine/internal/morphology"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxCoverage      = 0.8
	DefaultLimit            = 20
	DefaultSnippetFragments = 3
)

// Store is the persistence subset used by the searcher.
type Store interface {
	FindSiteByURL(ctx context.Context, url string) (engine.Site, error)
	ListSitesByStatus(ctx context.Context, status engine.SiteStatus) ([]engine.Site, error)
	CountPages(ctx context.Context, siteID int64) (int, error)
	GetPage(ctx context.Context, pageID int64) (engine.Page, error)
	FindLemma(ctx context.Context, siteID int64, lemma string) (engine.Lemma, error)
	FindIndexByLemma(ctx context.Context, lemmaID int64) ([]engine.IndexEntry, error)
}

// Config tunes ranking and presentation.
type Config struct {
	// MaxCoverage drops lemmas present on a larger share of the site's pages.
	MaxCoverage float64
	// DefaultLimit applies when a query has no positive limit.
	DefaultLimit int
	// SnippetFragments caps the fragments per snippet.
	SnippetFragments int
}

// Query is one search request. An empty Site searches every indexed site.
type Query struct {
	Text   string
	Site   string
	Offset int
	Limit  int
}

// Result is one matched page.
type Result struct {
	Site      string  `json:"site"`
	SiteName  string  `json:"siteName"`
	URI       string  `json:"uri"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// Response is a page of results with the unpaginated total.
type Response struct {
	Count   int      `json:"count"`
	Results []Result `json:"data"`
}

// Searcher ranks pages by the summed rank of the query lemmas they contain.
type Searcher struct {
	store    Store
	analyzer morphology.Analyzer
	cfg      Config
	cache    lastQueryCache
	logger   *zap.Logger
}

// New builds a Searcher.
func New(store Store, analyzer morphology.Analyzer, cfg Config, logger *zap.Logger) *Searcher {
	if cfg.MaxCoverage <= 0 {
		cfg.MaxCoverage = DefaultMaxCoverage
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.SnippetFragments <= 0 {
		cfg.SnippetFragments = DefaultSnippetFragments
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		store:    store,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Invalidate drops the cached last query.
func (s *Searcher) Invalidate() {
	s.cache.invalidate()
}

// Search runs q. Validation failures are *engine.ValidationError.
func (s *Searcher) Search(ctx context.Context, q Query) (Response, error) {
	start := time.Now()
	scope := "all"
	if q.Site != "" {
		scope = "site"
	}
	resp, outcome, err := s.search(ctx, q)
	metrics.ObserveSearch(scope, outcome, time.Since(start))
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (s *Searcher) search(ctx context.Context, q Query) (Response, string, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Response{}, "invalid", engine.NewValidationError("empty search query")
	}
	sites, err := s.scope(ctx, strings.TrimSpace(q.Site))
	if err != nil {
		if engine.IsValidation(err) {
			return Response{}, "invalid", err
		}
		return Response{}, "error", err
	}

	key := cacheKey{query: text, site: strings.TrimSpace(q.Site)}
	if results, ok := s.cache.get(key); ok {
		return paginate(results, q.Offset, q.Limit, s.cfg.DefaultLimit), "cached", nil
	}

	lemmas := s.queryLemmas(text)
	results, err := s.fanOut(ctx, sites, lemmas)
	if err != nil {
		return Response{}, "error", err
	}
	s.cache.put(key, results)
	s.logger.Debug("search completed",
		zap.String("query", text),
		zap.Int("sites", len(sites)),
		zap.Int("results", len(results)),
	)
	return paginate(results, q.Offset, q.Limit, s.cfg.DefaultLimit), "ok", nil
}

func (s *Searcher) scope(ctx context.Context, siteURL string) ([]engine.Site, error) {
	if siteURL != "" {
		site, err := s.findSite(ctx, siteURL)
		if err != nil {
			return nil, err
		}
		if site.Status != engine.SiteStatusIndexed {
			return nil, engine.NewValidationError("site is not indexed")
		}
		return []engine.Site{site}, nil
	}
	sites, err := s.store.ListSitesByStatus(ctx, engine.SiteStatusIndexed)
	if err != nil {
		return nil, fmt.Errorf("list indexed sites: %w", err)
	}
	if len(sites) == 0 {
		return nil, engine.NewValidationError("no indexed sites")
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].ID < sites[j].ID })
	return sites, nil
}

func (s *Searcher) findSite(ctx context.Context, siteURL string) (engine.Site, error) {
	candidates := []string{siteURL}
	if trimmed := strings.TrimSuffix(siteURL, "/"); trimmed != siteURL {
		candidates = append(candidates, trimmed)
	}
	for _, candidate := range candidates {
		site, err := s.store.FindSiteByURL(ctx, candidate)
		if err == nil {
			return site, nil
		}
		if !errors.Is(err, engine.ErrNotFound) {
			return engine.Site{}, fmt.Errorf("find site: %w", err)
		}
	}
	return engine.Site{}, engine.NewValidationError("site not found")
}

func (s *Searcher) queryLemmas(text string) map[string]struct{} {
	lemmas := make(map[string]struct{})
	for _, tok := range morphology.Tokenize(text) {
		if lemma, ok := morphology.Lemma(s.analyzer, tok); ok {
			lemmas[lemma] = struct{}{}
		}
	}
	return lemmas
}

// fanOut searches every site concurrently and concatenates the results in
// site order without re-ranking across sites.
func (s *Searcher) fanOut(ctx context.Context, sites []engine.Site, lemmas map[string]struct{}) ([]Result, error) {
	if len(lemmas) == 0 {
		return nil, nil
	}
	perSite := make([][]Result, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	for i, site := range sites {
		g.Go(func() error {
			results, err := s.searchSite(gctx, site, lemmas)
			if err != nil {
				return fmt.Errorf("search %s: %w", site.URL, err)
			}
			perSite[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Result
	for _, results := range perSite {
		out = append(out, results...)
	}
	return out, nil
}

type scored struct {
	pageID   int64
	absolute float64
}

func (s *Searcher) searchSite(ctx context.Context, site engine.Site, lemmas map[string]struct{}) ([]Result, error) {
	pageCount, err := s.store.CountPages(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	if pageCount == 0 {
		return nil, nil
	}

	rows, err := s.selectLemmas(ctx, site.ID, pageCount, lemmas)
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	absolute := make(map[int64]float64)
	for _, row := range rows {
		entries, err := s.store.FindIndexByLemma(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("index for %q: %w", row.Lemma, err)
		}
		for _, e := range entries {
			absolute[e.PageID] += e.Rank
		}
	}
	if len(absolute) == 0 {
		return nil, nil
	}

	ranked := make([]scored, 0, len(absolute))
	maxRank := 0.0
	for id, rank := range absolute {
		ranked = append(ranked, scored{pageID: id, absolute: rank})
		if rank > maxRank {
			maxRank = rank
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].absolute != ranked[j].absolute {
			return ranked[i].absolute > ranked[j].absolute
		}
		return ranked[i].pageID < ranked[j].pageID
	})

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		page, err := s.store.GetPage(ctx, r.pageID)
		if err != nil {
			return nil, fmt.Errorf("load page %d: %w", r.pageID, err)
		}
		snippet := buildSnippet(s.analyzer, page.Content, lemmas, s.cfg.SnippetFragments)
		if snippet == "" {
			continue
		}
		results = append(results, Result{
			Site:      site.URL,
			SiteName:  site.Name,
			URI:       page.Path,
			Title:     pageTitle(page.Content),
			Snippet:   snippet,
			Relevance: r.absolute / maxRank,
		})
	}
	return results, nil
}

// selectLemmas returns the site's rows for lemmas whose page coverage is at
// most MaxCoverage, ordered by ascending frequency.
func (s *Searcher) selectLemmas(
	ctx context.Context,
	siteID int64,
	pageCount int,
	lemmas map[string]struct{},
) ([]engine.Lemma, error) {
	rows := make([]engine.Lemma, 0, len(lemmas))
	for lemma := range lemmas {
		row, err := s.store.FindLemma(ctx, siteID, lemma)
		if errors.Is(err, engine.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("find lemma %q: %w", lemma, err)
		}
		if float64(row.Frequency)/float64(pageCount) > s.cfg.MaxCoverage {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Frequency != rows[j].Frequency {
			return rows[i].Frequency < rows[j].Frequency
		}
		return rows[i].Lemma < rows[j].Lemma
	})
	return rows, nil
}

func pageTitle(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func paginate(results []Result, offset, limit, defaultLimit int) Response {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	resp := Response{Count: len(results), Results: []Result{}}
	if offset >= len(results) {
		return resp
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	resp.Results = append(resp.Results, results[offset:end]...)
	return resp
}
