// Package orchestrator runs the crawl, persist, and index pipeline for one
// site and drives its status from INDEXING to INDEXED or FAILED.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/indexer"
	"github.com/ozemskikh/SearchEngine/internal/metrics"
	"github.com/ozemskikh/SearchEngine/internal/taskpool"
)

// DefaultTopic receives site status events.
const DefaultTopic = "site-status"

const snapshotContentType = "text/html; charset=utf-8"

// Crawler discovers the pages of a site.
type Crawler interface {
	Crawl(ctx context.Context, site engine.Site, pool *taskpool.Pool) ([]engine.Page, error)
}

// Indexer writes lemma and index rows for persisted pages.
type Indexer interface {
	Index(ctx context.Context, site engine.Site, pages []engine.Page, weights engine.Weights, pool *taskpool.Pool) error
}

// Namer derives snapshot object names.
type Namer interface {
	ObjectName(host, pagePath string) string
}

// Config controls Orchestrator behavior.
type Config struct {
	// PoolSize bounds concurrent fetch and index leaf tasks per site.
	PoolSize int
	// Topic receives site status events. Empty uses DefaultTopic.
	Topic string
}

// Orchestrator runs one site at a time.
type Orchestrator struct {
	store     engine.Store
	crawler   Crawler
	indexer   Indexer
	archive   engine.BlobStore
	namer     Namer
	publisher engine.Publisher
	clock     engine.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator. archive, namer, and publisher may be nil.
func New(
	store engine.Store,
	crawler Crawler,
	indexer Indexer,
	archive engine.BlobStore,
	namer Namer,
	publisher engine.Publisher,
	clock engine.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Orchestrator{
		store:     store,
		crawler:   crawler,
		indexer:   indexer,
		archive:   archive,
		namer:     namer,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run rebuilds the site from scratch. The site ends INDEXED on success and
// FAILED otherwise; the returned error is the one recorded on the site.
func (o *Orchestrator) Run(ctx context.Context, sc engine.SiteConfig) error {
	start := time.Now()
	logger := o.logger.With(zap.String("site", sc.URL))

	site, err := o.store.UpsertSite(context.WithoutCancel(ctx), engine.Site{
		URL:        sc.URL,
		Name:       sc.Name,
		Status:     engine.SiteStatusIndexing,
		StatusTime: o.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("register site %s: %w", sc.URL, err)
	}
	logger.Info("site run started", zap.Int64("site_id", site.ID))

	pages, runErr := o.run(ctx, site, logger)
	if ctx.Err() != nil {
		runErr = interrupted(ctx)
	}
	o.finish(ctx, site, pages, runErr, logger)
	metrics.ObserveSiteRun(statusOf(runErr), time.Since(start))
	return runErr
}

func (o *Orchestrator) run(ctx context.Context, site engine.Site, logger *zap.Logger) (int, error) {
	if err := o.clear(ctx, site.ID); err != nil {
		return 0, err
	}

	pool, err := taskpool.New(o.cfg.PoolSize)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	crawled, err := o.crawler.Crawl(ctx, site, pool)
	if err != nil {
		return 0, fmt.Errorf("crawl: %w", err)
	}
	if ctx.Err() != nil {
		return 0, interrupted(ctx)
	}

	sort.Slice(crawled, func(i, j int) bool { return crawled[i].Path < crawled[j].Path })
	if err := o.store.InsertPages(ctx, crawled); err != nil {
		return 0, fmt.Errorf("persist pages: %w", err)
	}
	logger.Info("pages persisted", zap.Int("pages", len(crawled)))
	o.archivePages(ctx, site, crawled, logger)

	if ctx.Err() != nil {
		return len(crawled), interrupted(ctx)
	}
	weights, err := indexer.LoadWeights(ctx, o.store)
	if err != nil {
		return len(crawled), err
	}
	stored, err := o.store.ListPages(ctx, site.ID)
	if err != nil {
		return len(crawled), fmt.Errorf("list pages: %w", err)
	}
	if err := o.indexer.Index(ctx, site, stored, weights, pool); err != nil {
		return len(stored), fmt.Errorf("index: %w", err)
	}
	return len(stored), nil
}

// clear removes the site's previous index, lemmas, and pages.
func (o *Orchestrator) clear(ctx context.Context, siteID int64) error {
	pages, err := o.store.ListPages(ctx, siteID)
	if err != nil {
		return fmt.Errorf("list previous pages: %w", err)
	}
	ids := make([]int64, 0, len(pages))
	for _, p := range pages {
		ids = append(ids, p.ID)
	}
	if err := o.store.DeleteIndexByPages(ctx, ids); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if err := o.store.DeleteLemmas(ctx, siteID); err != nil {
		return fmt.Errorf("clear lemmas: %w", err)
	}
	if err := o.store.DeletePages(ctx, siteID); err != nil {
		return fmt.Errorf("clear pages: %w", err)
	}
	return nil
}

func (o *Orchestrator) archivePages(ctx context.Context, site engine.Site, pages []engine.Page, logger *zap.Logger) {
	if o.archive == nil || o.namer == nil {
		return
	}
	u, err := url.Parse(site.URL)
	if err != nil {
		return
	}
	stored := 0
	for _, page := range pages {
		if ctx.Err() != nil {
			return
		}
		if page.Code >= 400 || page.Content == "" {
			continue
		}
		name := o.namer.ObjectName(u.Host, page.Path)
		if _, err := o.archive.PutObject(ctx, name, snapshotContentType, bytes.NewBufferString(page.Content)); err != nil {
			logger.Warn("archive snapshot failed", zap.String("path", page.Path), zap.Error(err))
			continue
		}
		stored++
	}
	logger.Debug("snapshots archived", zap.Int("objects", stored))
}

func (o *Orchestrator) finish(ctx context.Context, site engine.Site, pages int, runErr error, logger *zap.Logger) {
	status := engine.SiteStatusIndexed
	lastError := ""
	if runErr != nil {
		status = engine.SiteStatusFailed
		lastError = runErr.Error()
	}
	now := o.clock.Now()
	writeCtx := context.WithoutCancel(ctx)
	if err := o.store.UpdateSiteStatus(writeCtx, site.ID, status, lastError, now); err != nil {
		logger.Error("final site status update failed", zap.Error(err))
	}
	if runErr != nil {
		logger.Warn("site run failed", zap.Error(runErr))
	} else {
		logger.Info("site indexed", zap.Int("pages", pages))
	}
	o.publish(writeCtx, engine.SiteEvent{
		SiteURL:   site.URL,
		SiteName:  site.Name,
		Status:    status,
		Error:     lastError,
		Pages:     pages,
		Timestamp: now,
	}, logger)
}

func (o *Orchestrator) publish(ctx context.Context, event engine.SiteEvent, logger *zap.Logger) {
	if o.publisher == nil {
		return
	}
	id, err := o.publisher.Publish(ctx, o.cfg.Topic, event)
	if err != nil {
		logger.Warn("publish site event failed", zap.Error(err))
		return
	}
	logger.Debug("site event published", zap.String("id", id), zap.String("status", string(event.Status)))
}

func interrupted(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, engine.ErrInterrupted) {
		return cause
	}
	return fmt.Errorf("%w: %w", engine.ErrInterrupted, cause)
}

func statusOf(err error) string {
	if err != nil {
		return string(engine.SiteStatusFailed)
	}
	return string(engine.SiteStatusIndexed)
}
