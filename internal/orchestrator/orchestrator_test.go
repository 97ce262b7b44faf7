package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/hash/sha256"
	"github.com/ozemskikh/SearchEngine/internal/indexer"
	"github.com/ozemskikh/SearchEngine/internal/morphology"
	pubmemory "github.com/ozemskikh/SearchEngine/internal/publisher/memory"
	"github.com/ozemskikh/SearchEngine/internal/storage/memory"
	"github.com/ozemskikh/SearchEngine/internal/taskpool"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeCrawler struct {
	pages []engine.Page
	err   error
	calls int
}

func (f *fakeCrawler) Crawl(ctx context.Context, site engine.Site, _ *taskpool.Pool) ([]engine.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]engine.Page, len(f.pages))
	for i, p := range f.pages {
		p.SiteID = site.ID
		out[i] = p
	}
	return out, ctx.Err()
}

// cancelingStore cancels the run right after pages are persisted.
type cancelingStore struct {
	*memory.Store
	cancel context.CancelCauseFunc
}

func (s *cancelingStore) InsertPages(ctx context.Context, pages []engine.Page) error {
	if err := s.Store.InsertPages(ctx, pages); err != nil {
		return err
	}
	s.cancel(engine.ErrStoppedByUser)
	return nil
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func crawledPages() []engine.Page {
	return []engine.Page{
		{Path: "/b", Code: http.StatusOK, Content: "<html><head><title>Dogs run</title></head><body></body></html>"},
		{Path: "/", Code: http.StatusOK, Content: "<html><head><title>Cats run</title></head><body>Cats are fast</body></html>"},
		{Path: "/gone", Code: http.StatusNotFound},
	}
}

func newOrchestrator(store engine.Store, c Crawler, archive engine.BlobStore, pub engine.Publisher) *Orchestrator {
	ix := indexer.New(store, morphology.New(), zap.NewNop())
	return New(store, c, ix, archive, sha256.New("pages"), pub, fixedClock{now}, Config{PoolSize: 2}, zap.NewNop())
}

func TestRunIndexesSite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	archive := memory.NewBlobStore()
	pub := pubmemory.New(nil)
	o := newOrchestrator(store, &fakeCrawler{pages: crawledPages()}, archive, pub)

	err := o.Run(ctx, engine.SiteConfig{URL: "https://site.test", Name: "Site"})
	require.NoError(t, err)

	site, err := store.FindSiteByURL(ctx, "https://site.test")
	require.NoError(t, err)
	require.Equal(t, engine.SiteStatusIndexed, site.Status)
	require.Empty(t, site.LastError)
	require.Equal(t, now, site.StatusTime)

	pages, err := store.ListPages(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	run, err := store.FindLemma(ctx, site.ID, "run")
	require.NoError(t, err)
	require.Equal(t, 2, run.Frequency)

	require.ElementsMatch(t, []string{
		sha256.New("pages").ObjectName("site.test", "/"),
		sha256.New("pages").ObjectName("site.test", "/b"),
	}, archive.Paths())

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, DefaultTopic, msgs[0].Topic)
	event := msgs[0].Payload.(engine.SiteEvent)
	require.Equal(t, engine.SiteStatusIndexed, event.Status)
	require.Equal(t, 3, event.Pages)
}

func TestRunReplacesPreviousData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	crawler := &fakeCrawler{pages: crawledPages()}
	o := newOrchestrator(store, crawler, nil, nil)

	require.NoError(t, o.Run(ctx, engine.SiteConfig{URL: "https://site.test", Name: "Site"}))
	crawler.pages = []engine.Page{{Path: "/", Code: http.StatusOK, Content: "<html><body>Birds sing</body></html>"}}
	require.NoError(t, o.Run(ctx, engine.SiteConfig{URL: "https://site.test", Name: "Site"}))

	site, err := store.FindSiteByURL(ctx, "https://site.test")
	require.NoError(t, err)
	n, err := store.CountPages(ctx, site.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = store.FindLemma(ctx, site.ID, "run")
	require.ErrorIs(t, err, engine.ErrNotFound)
	bird, err := store.FindLemma(ctx, site.ID, "bird")
	require.NoError(t, err)
	require.Equal(t, 1, bird.Frequency)
}

func TestRunStoppedAfterCrawl(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	store := &cancelingStore{Store: memory.NewStore(), cancel: cancel}
	pub := pubmemory.New(nil)
	o := newOrchestrator(store, &fakeCrawler{pages: crawledPages()}, nil, pub)

	err := o.Run(ctx, engine.SiteConfig{URL: "https://site.test", Name: "Site"})
	require.ErrorIs(t, err, engine.ErrInterrupted)

	bg := context.Background()
	site, err := store.FindSiteByURL(bg, "https://site.test")
	require.NoError(t, err)
	require.Equal(t, engine.SiteStatusFailed, site.Status)
	require.Equal(t, "indexing interrupted: indexing stopped by user", site.LastError)

	pages, err := store.ListPages(bg, site.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for _, p := range pages {
		lemmas, err := store.ListLemmas(bg, site.ID)
		require.NoError(t, err)
		for _, l := range lemmas {
			_, err := store.FindIndex(bg, l.ID, p.ID)
			require.ErrorIs(t, err, engine.ErrNotFound)
		}
	}
	n, err := store.CountLemmas(bg, site.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	event := pub.Messages()[0].Payload.(engine.SiteEvent)
	require.Equal(t, engine.SiteStatusFailed, event.Status)
}

func TestRunCrawlFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	o := newOrchestrator(store, &fakeCrawler{err: errors.New("site root https://site.test is unreachable")}, nil, nil)

	err := o.Run(ctx, engine.SiteConfig{URL: "https://site.test", Name: "Site"})
	require.ErrorContains(t, err, "unreachable")

	site, err := store.FindSiteByURL(ctx, "https://site.test")
	require.NoError(t, err)
	require.Equal(t, engine.SiteStatusFailed, site.Status)
	require.Equal(t, "crawl: site root https://site.test is unreachable", site.LastError)
}

type failingBlobStore struct{}

func (failingBlobStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket gone")
}

func TestRunArchiveFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	o := newOrchestrator(store, &fakeCrawler{pages: crawledPages()}, failingBlobStore{}, nil)

	require.NoError(t, o.Run(ctx, engine.SiteConfig{URL: "https://site.test", Name: "Site"}))
	site, err := store.FindSiteByURL(ctx, "https://site.test")
	require.NoError(t, err)
	require.Equal(t, engine.SiteStatusIndexed, site.Status)
}
