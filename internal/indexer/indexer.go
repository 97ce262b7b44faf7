// Package indexer turns fetched pages into lemma and index rows.
package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/metrics"
	"github.com/ozemskikh/SearchEngine/internal/morphology"
	"github.com/ozemskikh/SearchEngine/internal/taskpool"
)

// Threshold is the largest page list processed as a single leaf task.
const Threshold = 20

// Store is the persistence subset used by the indexer.
type Store interface {
	UpsertLemma(ctx context.Context, siteID int64, lemma string, frequencyCap int) (engine.Lemma, error)
	InsertIndex(ctx context.Context, entry engine.IndexEntry) error
}

// Indexer computes lemma ranks per page.
type Indexer struct {
	store    Store
	analyzer morphology.Analyzer
	logger   *zap.Logger
}

// New builds an Indexer.
func New(store Store, analyzer morphology.Analyzer, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		store:    store,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Index processes every page of the site. Lists longer than Threshold are
// split in half and both halves run concurrently; leaf lists run
// sequentially as one pool task. The first error wins; cancellation yields
// engine.ErrInterrupted.
func (ix *Indexer) Index(
	ctx context.Context,
	site engine.Site,
	pages []engine.Page,
	weights engine.Weights,
	pool *taskpool.Pool,
) error {
	job := &indexJob{
		Indexer:   ix,
		site:      site,
		weights:   weights,
		pageCount: len(pages),
		pool:      pool,
	}
	job.split(ctx, pages)
	if err := job.err(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return interrupted(ctx)
	}
	return nil
}

type indexJob struct {
	*Indexer
	site      engine.Site
	weights   engine.Weights
	pageCount int
	pool      *taskpool.Pool

	mu       sync.Mutex
	firstErr error
}

func (j *indexJob) split(ctx context.Context, pages []engine.Page) {
	if ctx.Err() != nil || j.err() != nil {
		return
	}
	if len(pages) <= Threshold {
		err := j.pool.Do(ctx, func(ctx context.Context) error {
			return j.leaf(ctx, pages)
		})
		if err != nil && ctx.Err() == nil {
			j.fail(err)
		}
		return
	}

	mid := len(pages) / 2
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		j.split(ctx, pages[:mid])
	}()
	go func() {
		defer wg.Done()
		j.split(ctx, pages[mid:])
	}()
	wg.Wait()
}

func (j *indexJob) leaf(ctx context.Context, pages []engine.Page) error {
	for _, page := range pages {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		if err := j.IndexPage(ctx, j.site, page, j.weights, j.pageCount); err != nil {
			return err
		}
	}
	return nil
}

func (j *indexJob) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.firstErr == nil {
		j.firstErr = err
	}
}

func (j *indexJob) err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.firstErr
}

// IndexPage writes the lemma and index rows of one page. Pages answered with
// an HTTP error are skipped. pageCount caps each lemma's frequency.
func (ix *Indexer) IndexPage(
	ctx context.Context,
	site engine.Site,
	page engine.Page,
	weights engine.Weights,
	pageCount int,
) error {
	if page.Code >= 400 {
		return nil
	}
	ranks, err := ix.Ranks(page.Content, weights)
	if err != nil {
		return fmt.Errorf("page %s: %w", page.Path, err)
	}
	for lemma, rank := range ranks {
		row, err := ix.store.UpsertLemma(ctx, site.ID, lemma, pageCount)
		if err != nil {
			return fmt.Errorf("upsert lemma %q: %w", lemma, err)
		}
		entry := engine.IndexEntry{PageID: page.ID, LemmaID: row.ID, Rank: rank}
		if err := ix.store.InsertIndex(ctx, entry); err != nil {
			return fmt.Errorf("insert index %q on %s: %w", lemma, page.Path, err)
		}
	}
	metrics.ObserveIndexedPage(site.URL)
	ix.logger.Debug("page indexed",
		zap.String("site", site.URL),
		zap.String("path", page.Path),
		zap.Int("lemmas", len(ranks)),
	)
	return nil
}

// Ranks returns lemma to titleCount*titleWeight + bodyCount*bodyWeight.
func (ix *Indexer) Ranks(content string, weights engine.Weights) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	ranks := make(map[string]float64)
	for _, field := range []engine.Field{weights.Title, weights.Body} {
		if field.Selector == "" {
			continue
		}
		text := zoneText(doc, field.Selector)
		for lemma, count := range morphology.CountLemmas(ix.analyzer, text) {
			ranks[lemma] += float64(count) * field.Weight
		}
	}
	return ranks, nil
}

func zoneText(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector)
	sel.Find("script, style, noscript").Remove()
	return sel.Text()
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", engine.ErrInterrupted, context.Cause(ctx))
}
