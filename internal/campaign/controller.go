// Package campaign coordinates indexing campaigns across all configured
// sites and single-page reindexing.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/metrics"
)

const (
	stoppedByUser      = "stopped by user"
	interruptedRestart = "interrupted by restart"
)

// Runner rebuilds one site.
type Runner interface {
	Run(ctx context.Context, site engine.SiteConfig) error
}

// PageIndexer writes the index rows of one page.
type PageIndexer interface {
	IndexPage(ctx context.Context, site engine.Site, page engine.Page, weights engine.Weights, pageCount int) error
}

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate()
}

// Controller runs at most one campaign at a time.
type Controller struct {
	store   engine.Store
	runner  Runner
	fetcher engine.Fetcher
	indexer PageIndexer
	cache   Invalidator
	clock   engine.Clock
	sites   []engine.SiteConfig
	pool    *ants.Pool
	logger  *zap.Logger

	mu         sync.Mutex
	cancel     context.CancelCauseFunc
	done       chan struct{}
	reindexing int
	pageMu     sync.Mutex
}

// New constructs a Controller for the configured sites. cache may be nil.
func New(
	store engine.Store,
	runner Runner,
	fetcher engine.Fetcher,
	indexer PageIndexer,
	cache Invalidator,
	clock engine.Clock,
	sites []engine.SiteConfig,
	logger *zap.Logger,
) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(1, ants.WithMaxBlockingTasks(1))
	if err != nil {
		return nil, fmt.Errorf("create campaign pool: %w", err)
	}
	return &Controller{
		store:   store,
		runner:  runner,
		fetcher: fetcher,
		indexer: indexer,
		cache:   cache,
		clock:   clock,
		sites:   append([]engine.SiteConfig(nil), sites...),
		pool:    pool,
		logger:  logger,
	}, nil
}

// Start reconciles the configured sites and launches a campaign in the
// background. It returns engine.ErrCampaignRunning when a campaign or page
// reindex is active or any site is still INDEXING.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil || c.reindexing > 0 {
		return engine.ErrCampaignRunning
	}
	indexing, err := c.store.ListSitesByStatus(ctx, engine.SiteStatusIndexing)
	if err != nil {
		return fmt.Errorf("list indexing sites: %w", err)
	}
	if len(indexing) > 0 {
		return engine.ErrCampaignRunning
	}

	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	done := make(chan struct{})
	gate := make(chan bool, 1)
	err = c.pool.Submit(func() {
		defer close(done)
		if !<-gate {
			return
		}
		c.run(runCtx)
	})
	if err != nil {
		cancel(nil)
		if errors.Is(err, ants.ErrPoolOverload) {
			return engine.ErrCampaignRunning
		}
		return fmt.Errorf("submit campaign: %w", err)
	}
	if err := c.reconcile(ctx); err != nil {
		gate <- false
		cancel(nil)
		return err
	}
	c.cancel = cancel
	c.done = done
	metrics.SetCampaignActive(true)
	gate <- true
	c.logger.Info("indexing campaign started", zap.Int("sites", len(c.sites)))
	return nil
}

// reconcile marks every configured site INDEXING and deletes persisted
// sites that are no longer configured.
func (c *Controller) reconcile(ctx context.Context) error {
	configured := make(map[string]struct{}, len(c.sites))
	now := c.clock.Now()
	for _, sc := range c.sites {
		configured[sc.URL] = struct{}{}
		_, err := c.store.UpsertSite(ctx, engine.Site{
			URL:        sc.URL,
			Name:       sc.Name,
			Status:     engine.SiteStatusIndexing,
			StatusTime: now,
		})
		if err != nil {
			return fmt.Errorf("register site %s: %w", sc.URL, err)
		}
	}
	persisted, err := c.store.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	for _, site := range persisted {
		if _, ok := configured[site.URL]; ok {
			continue
		}
		if err := c.store.DeleteSite(ctx, site.ID); err != nil {
			return fmt.Errorf("delete unconfigured site %s: %w", site.URL, err)
		}
		c.logger.Info("unconfigured site removed", zap.String("site", site.URL))
	}
	return nil
}

func (c *Controller) run(ctx context.Context) {
	defer c.finish()
	for i, sc := range c.sites {
		if ctx.Err() != nil {
			c.markStopped(ctx, c.sites[i:])
			return
		}
		if err := c.runner.Run(ctx, sc); err != nil {
			c.logger.Warn("site run failed", zap.String("site", sc.URL), zap.Error(err))
		}
	}
}

func (c *Controller) finish() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel(nil)
	}
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	metrics.SetCampaignActive(false)
	c.invalidate()
	c.logger.Info("indexing campaign finished")
}

// markStopped fails sites the campaign never reached.
func (c *Controller) markStopped(ctx context.Context, sites []engine.SiteConfig) {
	writeCtx := context.WithoutCancel(ctx)
	now := c.clock.Now()
	for _, sc := range sites {
		site, err := c.store.FindSiteByURL(writeCtx, sc.URL)
		if err != nil {
			c.logger.Warn("find stopped site failed", zap.String("site", sc.URL), zap.Error(err))
			continue
		}
		if err := c.store.UpdateSiteStatus(writeCtx, site.ID, engine.SiteStatusFailed, stoppedByUser, now); err != nil {
			c.logger.Warn("mark stopped site failed", zap.String("site", sc.URL), zap.Error(err))
		}
	}
}

// Stop cancels the active campaign. The campaign finishes in the background;
// use Wait to block until it has.
func (c *Controller) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return engine.ErrNotRunning
	}
	c.cancel(engine.ErrStoppedByUser)
	c.logger.Info("indexing campaign stop requested")
	return nil
}

// Wait blocks until the active campaign, if any, has finished.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for campaign: %w", ctx.Err())
	}
}

// Running reports whether a campaign is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// RecoverInterrupted fails sites left INDEXING by a previous process.
func (c *Controller) RecoverInterrupted(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	sites, err := c.store.ListSitesByStatus(ctx, engine.SiteStatusIndexing)
	if err != nil {
		return fmt.Errorf("list indexing sites: %w", err)
	}
	now := c.clock.Now()
	for _, site := range sites {
		if err := c.store.UpdateSiteStatus(ctx, site.ID, engine.SiteStatusFailed, interruptedRestart, now); err != nil {
			return fmt.Errorf("recover site %s: %w", site.URL, err)
		}
		c.logger.Warn("interrupted site marked failed", zap.String("site", site.URL))
	}
	return nil
}

// Close stops any campaign, waits for it, and releases the pool.
func (c *Controller) Close(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil && !errors.Is(err, engine.ErrNotRunning) {
		return err
	}
	err := c.Wait(ctx)
	c.pool.Release()
	return err
}

func (c *Controller) invalidate() {
	if c.cache != nil {
		c.cache.Invalidate()
	}
}
