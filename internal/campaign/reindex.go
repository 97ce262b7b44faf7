package campaign

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/crawler"
	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/indexer"
)

// IndexPage refetches one page of a configured site and replaces its index
// rows. The site's other pages and its lemma frequencies are left as they
// are. It is rejected while a campaign runs.
func (c *Controller) IndexPage(ctx context.Context, rawURL string) error {
	target, sc, err := c.resolve(rawURL)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return engine.ErrCampaignRunning
	}
	c.reindexing++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.reindexing--
		c.mu.Unlock()
	}()

	c.pageMu.Lock()
	defer c.pageMu.Unlock()

	if err := c.reindex(ctx, target, sc); err != nil {
		c.logger.Warn("page reindex failed", zap.String("url", target.String()), zap.Error(err))
		return err
	}
	c.invalidate()
	c.logger.Info("page reindexed", zap.String("url", target.String()))
	return nil
}

// resolve validates rawURL and finds the configured site it belongs to.
func (c *Controller) resolve(rawURL string) (*url.URL, engine.SiteConfig, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, engine.SiteConfig{}, engine.NewValidationError("page url is required")
	}
	normalized, err := crawler.NormalizeURL(raw)
	if err != nil {
		return nil, engine.SiteConfig{}, engine.NewValidationError("invalid page url %q", raw)
	}
	target, err := url.Parse(normalized)
	if err != nil || !target.IsAbs() || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, engine.SiteConfig{}, engine.NewValidationError("invalid page url %q", raw)
	}
	best, bestLen := -1, -1
	for i, sc := range c.sites {
		if n, ok := rootMatch(sc.URL, target); ok && n > bestLen {
			best, bestLen = i, n
		}
	}
	if best < 0 {
		return nil, engine.SiteConfig{}, engine.NewValidationError("page is outside the sites listed in the configuration")
	}
	return target, c.sites[best], nil
}

// rootMatch reports whether target lies under the site root and returns the
// length of the root path it matched, so deeper roots win on a shared host.
func rootMatch(rootURL string, target *url.URL) (int, bool) {
	root, err := url.Parse(rootURL)
	if err != nil || crawler.HostKey(root.Host) != crawler.HostKey(target.Host) {
		return 0, false
	}
	prefix := strings.TrimSuffix(root.EscapedPath(), "/")
	path := target.EscapedPath()
	if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/") {
		return len(prefix), true
	}
	return 0, false
}

func (c *Controller) reindex(ctx context.Context, target *url.URL, sc engine.SiteConfig) (err error) {
	site, created, err := c.findOrCreateSite(ctx, sc)
	if err != nil {
		return err
	}
	if created {
		// A site registered here must not stay INDEXING, or Start stays blocked.
		defer func() {
			if err == nil {
				return
			}
			writeCtx := context.WithoutCancel(ctx)
			if uerr := c.store.UpdateSiteStatus(writeCtx, site.ID, engine.SiteStatusFailed, err.Error(), c.clock.Now()); uerr != nil {
				c.logger.Warn("mark reindexed site failed", zap.String("site", site.URL), zap.Error(uerr))
			}
		}()
	}
	page := engine.Page{SiteID: site.ID, Path: crawler.PagePath(target)}
	if existing, err := c.store.FindPage(ctx, site.ID, page.Path); err == nil {
		page = existing
		if err := c.store.DeleteIndexByPage(ctx, existing.ID); err != nil {
			return fmt.Errorf("delete stale index: %w", err)
		}
	} else if !errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("find page: %w", err)
	}

	resp, err := c.fetcher.Fetch(ctx, engine.FetchRequest{URL: target.String()})
	var statusErr *engine.HTTPStatusError
	switch {
	case err == nil:
		page.Code = resp.StatusCode
		page.Content = string(resp.Body)
	case errors.As(err, &statusErr):
		page.Code = statusErr.Code
		page.Content = ""
	default:
		return fmt.Errorf("fetch page: %w", err)
	}

	saved, err := c.store.SavePage(ctx, page)
	if err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	pageCount, err := c.store.CountPages(ctx, site.ID)
	if err != nil {
		return fmt.Errorf("count pages: %w", err)
	}
	weights, err := indexer.LoadWeights(ctx, c.store)
	if err != nil {
		return err
	}
	if err := c.indexer.IndexPage(ctx, site, saved, weights, pageCount); err != nil {
		return fmt.Errorf("index page: %w", err)
	}
	if err := c.store.UpdateSiteStatus(ctx, site.ID, engine.SiteStatusIndexed, "", c.clock.Now()); err != nil {
		return fmt.Errorf("update site status: %w", err)
	}
	return nil
}

func (c *Controller) findOrCreateSite(ctx context.Context, sc engine.SiteConfig) (engine.Site, bool, error) {
	site, err := c.store.FindSiteByURL(ctx, sc.URL)
	if err == nil {
		return site, false, nil
	}
	if !errors.Is(err, engine.ErrNotFound) {
		return engine.Site{}, false, fmt.Errorf("find site: %w", err)
	}
	site, err = c.store.UpsertSite(ctx, engine.Site{
		URL:        sc.URL,
		Name:       sc.Name,
		Status:     engine.SiteStatusIndexing,
		StatusTime: c.clock.Now(),
	})
	if err != nil {
		return engine.Site{}, false, fmt.Errorf("register site: %w", err)
	}
	return site, true, nil
}
