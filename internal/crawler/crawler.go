package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/metrics"
	"github.com/ozemskikh/SearchEngine/internal/taskpool"
)

// Config controls crawl pacing.
type Config struct {
	// Delay precedes every fetch.
	Delay time.Duration
}

// Crawler discovers site pages.
type Crawler struct {
	fetcher engine.Fetcher
	limiter engine.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New builds a Crawler. limiter may be nil.
func New(fetcher engine.Fetcher, limiter engine.Limiter, cfg Config, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		fetcher: fetcher,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

type run struct {
	*Crawler
	site   engine.Site
	pool   *taskpool.Pool
	scope  scope
	tree   *tree
	logger *zap.Logger
}

// Crawl traverses the site from its root and returns the deduplicated page
// set. Pages that timed out or failed to connect are absent; pages answered
// with an HTTP error are present with their status code.
func (c *Crawler) Crawl(ctx context.Context, site engine.Site, pool *taskpool.Pool) ([]engine.Page, error) {
	rootURL, err := NormalizeURL(site.URL)
	if err != nil {
		return nil, fmt.Errorf("site root: %w", err)
	}
	root, err := url.Parse(rootURL)
	if err != nil {
		return nil, fmt.Errorf("site root: %w", err)
	}
	r := &run{
		Crawler: c,
		site:    site,
		pool:    pool,
		scope:   newScope(root),
		tree:    newTree(rootURL, PagePath(root)),
		logger:  c.logger.With(zap.String("site", site.URL)),
	}
	start := time.Now()
	r.visit(ctx, 0)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrInterrupted, context.Cause(ctx))
	}
	if !r.tree.fetched(0) {
		return nil, fmt.Errorf("site root %s is unreachable", rootURL)
	}
	pages := r.tree.pages(site.ID)
	r.logger.Info("crawl finished",
		zap.Int("pages", len(pages)),
		zap.Int("discovered", r.tree.size()),
		zap.Duration("duration", time.Since(start)),
	)
	return pages, nil
}

// visit fetches node idx, forks one branch per new child, and joins them.
func (r *run) visit(ctx context.Context, idx int) {
	if ctx.Err() != nil {
		return
	}
	var links []link
	err := r.pool.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		links, fetchErr = r.fetch(ctx, idx)
		return fetchErr
	})
	if err != nil {
		return
	}

	var children []int
	for _, l := range links {
		if ctx.Err() != nil {
			return
		}
		if child, ok := r.tree.addChild(idx, l); ok {
			children = append(children, child)
		}
	}

	var wg sync.WaitGroup
	for _, child := range children {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(child int) {
			defer wg.Done()
			r.visit(ctx, child)
		}(child)
	}
	wg.Wait()
}

func (r *run) fetch(ctx context.Context, idx int) ([]link, error) {
	target := r.tree.url(idx)
	if err := pause(ctx, r.cfg.Delay); err != nil {
		return nil, err
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, target); err != nil {
			return nil, err
		}
	}

	resp, err := r.fetcher.Fetch(ctx, engine.FetchRequest{URL: target})
	metrics.ObserveCrawl(r.site.URL, metrics.StatusClass(resp.StatusCode), len(resp.Body))

	var statusErr *engine.HTTPStatusError
	switch {
	case err == nil:
	case errors.As(err, &statusErr):
		r.tree.record(idx, statusErr.Code, "")
		r.logger.Debug("http error", zap.String("url", target), zap.Int("code", statusErr.Code))
		return nil, err
	case ctx.Err() != nil:
		r.tree.drop(idx)
		return nil, err
	case errors.Is(err, engine.ErrFetchTimeout):
		r.tree.drop(idx)
		r.logger.Info("page dropped after timeout", zap.String("url", target))
		return nil, err
	default:
		r.tree.drop(idx)
		r.logger.Warn("page dropped", zap.String("url", target), zap.Error(err))
		return nil, err
	}

	if resp.ContentType != "" && !strings.Contains(resp.ContentType, "html") {
		r.tree.drop(idx)
		r.logger.Debug("non-html page skipped", zap.String("url", target), zap.String("content_type", resp.ContentType))
		return nil, nil
	}
	r.tree.record(idx, resp.StatusCode, string(resp.Body))
	base, err := url.Parse(target)
	if resp.URL != "" {
		base, err = url.Parse(resp.URL)
	}
	if err != nil {
		return nil, nil
	}
	return r.extractLinks(base, resp.Body), nil
}

func (r *run) extractLinks(base *url.URL, body []byte) []link {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		r.logger.Debug("parse html failed", zap.String("url", base.String()), zap.Error(err))
		return nil
	}
	var links []link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if l, ok := r.scope.accept(base, href); ok {
			links = append(links, l)
		}
	})
	return links
}
