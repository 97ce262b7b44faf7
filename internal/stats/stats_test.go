package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/storage/memory"
)

func TestReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a, err := store.UpsertSite(ctx, engine.Site{URL: "https://a.test", Name: "A", Status: engine.SiteStatusIndexed, StatusTime: at})
	require.NoError(t, err)
	_, err = store.UpsertSite(ctx, engine.Site{URL: "https://b.test", Name: "B", Status: engine.SiteStatusFailed, StatusTime: at, LastError: "crawl: boom"})
	require.NoError(t, err)
	require.NoError(t, store.InsertPages(ctx, []engine.Page{{SiteID: a.ID, Path: "/"}, {SiteID: a.ID, Path: "/x"}}))
	_, err = store.UpsertLemma(ctx, a.ID, "cat", 2)
	require.NoError(t, err)

	report, err := New(store, func() bool { return false }).Report(ctx)
	require.NoError(t, err)
	require.Equal(t, Total{Sites: 2, Pages: 2, Lemmas: 1}, report.Total)
	require.Len(t, report.Detailed, 2)

	byURL := map[string]Detailed{}
	for _, d := range report.Detailed {
		byURL[d.URL] = d
	}
	require.Equal(t, Detailed{URL: "https://a.test", Name: "A", Status: "INDEXED", StatusTime: at.UnixMilli(), Pages: 2, Lemmas: 1}, byURL["https://a.test"])
	require.Equal(t, "crawl: boom", byURL["https://b.test"].Error)
}

func TestReportIndexingFlag(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	report, err := New(store, func() bool { return true }).Report(ctx)
	require.NoError(t, err)
	require.True(t, report.Total.Indexing)
	require.NotNil(t, report.Detailed)

	_, err = store.UpsertSite(ctx, engine.Site{URL: "https://a.test", Status: engine.SiteStatusIndexing})
	require.NoError(t, err)
	report, err = New(store, nil).Report(ctx)
	require.NoError(t, err)
	require.True(t, report.Total.Indexing)
}

type brokenStore struct{ Store }

func (brokenStore) ListSites(context.Context) ([]engine.Site, error) {
	return nil, errors.New("connection reset")
}

func TestReportStoreError(t *testing.T) {
	t.Parallel()

	_, err := New(brokenStore{}, nil).Report(context.Background())
	require.ErrorContains(t, err, "connection reset")
}
