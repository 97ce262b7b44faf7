package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

func seedSite(t *testing.T, s *Store, url string) engine.Site {
	t.Helper()
	site, err := s.UpsertSite(context.Background(), engine.Site{URL: url, Name: url, Status: engine.SiteStatusIndexing})
	if err != nil {
		t.Fatalf("UpsertSite() error = %v", err)
	}
	return site
}

func TestUpsertSiteKeepsIDByURL(t *testing.T) {
	t.Parallel()

	s := NewStore()
	first := seedSite(t, s, "https://a.test")
	second, err := s.UpsertSite(context.Background(), engine.Site{URL: "https://a.test", Name: "renamed"})
	if err != nil {
		t.Fatalf("UpsertSite() error = %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same id, got %d and %d", first.ID, second.ID)
	}
	got, err := s.FindSiteByURL(context.Background(), "https://a.test")
	if err != nil || got.Name != "renamed" {
		t.Fatalf("FindSiteByURL() = %+v, %v", got, err)
	}
	if _, err := s.FindSiteByURL(context.Background(), "https://missing.test"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSiteStatusAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	a := seedSite(t, s, "https://a.test")
	seedSite(t, s, "https://b.test")
	at := time.Unix(100, 0)
	if err := s.UpdateSiteStatus(ctx, a.ID, engine.SiteStatusFailed, "boom", at); err != nil {
		t.Fatalf("UpdateSiteStatus() error = %v", err)
	}
	failed, _ := s.ListSitesByStatus(ctx, engine.SiteStatusFailed)
	if len(failed) != 1 || failed[0].LastError != "boom" || !failed[0].StatusTime.Equal(at) {
		t.Fatalf("unexpected failed sites %+v", failed)
	}
	indexing, _ := s.ListSitesByStatus(ctx, engine.SiteStatusIndexing)
	if len(indexing) != 1 || indexing[0].URL != "https://b.test" {
		t.Fatalf("unexpected indexing sites %+v", indexing)
	}
	if err := s.UpdateSiteStatus(ctx, 999, engine.SiteStatusFailed, "", at); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertLemmaCapsFrequency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	site := seedSite(t, s, "https://a.test")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.UpsertLemma(ctx, site.ID, "cat", 3); err != nil {
				t.Errorf("UpsertLemma() error = %v", err)
			}
		}()
	}
	wg.Wait()

	row, err := s.FindLemma(ctx, site.ID, "cat")
	if err != nil {
		t.Fatalf("FindLemma() error = %v", err)
	}
	if row.Frequency != 3 {
		t.Fatalf("expected frequency capped at 3, got %d", row.Frequency)
	}
}

func TestDeleteSiteCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	site := seedSite(t, s, "https://a.test")
	other := seedSite(t, s, "https://b.test")
	if err := s.InsertPages(ctx, []engine.Page{
		{SiteID: site.ID, Path: "/", Code: 200},
		{SiteID: other.ID, Path: "/", Code: 200},
	}); err != nil {
		t.Fatalf("InsertPages() error = %v", err)
	}
	page, _ := s.FindPage(ctx, site.ID, "/")
	lemma, _ := s.UpsertLemma(ctx, site.ID, "cat", 1)
	if err := s.InsertIndex(ctx, engine.IndexEntry{PageID: page.ID, LemmaID: lemma.ID, Rank: 1}); err != nil {
		t.Fatalf("InsertIndex() error = %v", err)
	}

	if err := s.DeleteSite(ctx, site.ID); err != nil {
		t.Fatalf("DeleteSite() error = %v", err)
	}
	if n, _ := s.CountPages(ctx, site.ID); n != 0 {
		t.Fatalf("expected pages deleted, got %d", n)
	}
	if n, _ := s.CountLemmas(ctx, site.ID); n != 0 {
		t.Fatalf("expected lemmas deleted, got %d", n)
	}
	if _, err := s.FindIndex(ctx, lemma.ID, page.ID); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected index row deleted, got %v", err)
	}
	if n, _ := s.CountPages(ctx, other.ID); n != 1 {
		t.Fatalf("expected other site untouched, got %d pages", n)
	}
}

func TestInsertPagesRejectsDuplicatePath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	site := seedSite(t, s, "https://a.test")
	if err := s.InsertPages(ctx, []engine.Page{{SiteID: site.ID, Path: "/a"}}); err != nil {
		t.Fatalf("InsertPages() error = %v", err)
	}
	if err := s.InsertPages(ctx, []engine.Page{{SiteID: site.ID, Path: "/a"}}); err == nil {
		t.Fatal("expected duplicate path error")
	}
}

func TestSavePageReplacesAndIndexDeletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	site := seedSite(t, s, "https://a.test")
	first, _ := s.SavePage(ctx, engine.Page{SiteID: site.ID, Path: "/a", Code: 200, Content: "old"})
	second, _ := s.SavePage(ctx, engine.Page{SiteID: site.ID, Path: "/a", Code: 404, Content: "new"})
	if first.ID != second.ID {
		t.Fatalf("expected SavePage to keep id, got %d and %d", first.ID, second.ID)
	}
	got, _ := s.GetPage(ctx, first.ID)
	if got.Code != 404 || got.Content != "new" {
		t.Fatalf("unexpected page %+v", got)
	}

	lemma, _ := s.UpsertLemma(ctx, site.ID, "cat", 1)
	if err := s.InsertIndex(ctx, engine.IndexEntry{PageID: got.ID, LemmaID: lemma.ID, Rank: 2}); err != nil {
		t.Fatalf("InsertIndex() error = %v", err)
	}
	entries, _ := s.FindIndexByLemma(ctx, lemma.ID)
	if len(entries) != 1 || entries[0].Rank != 2 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if err := s.DeleteIndexByPages(ctx, []int64{got.ID}); err != nil {
		t.Fatalf("DeleteIndexByPages() error = %v", err)
	}
	entries, _ = s.FindIndexByLemma(ctx, lemma.ID)
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}

func TestDeleteIndexByPageKeepsOtherPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	site := seedSite(t, s, "https://a.test")
	a, _ := s.SavePage(ctx, engine.Page{SiteID: site.ID, Path: "/a", Code: 200})
	b, _ := s.SavePage(ctx, engine.Page{SiteID: site.ID, Path: "/b", Code: 200})
	cat, _ := s.UpsertLemma(ctx, site.ID, "cat", 10)
	dog, _ := s.UpsertLemma(ctx, site.ID, "dog", 10)
	for _, entry := range []engine.IndexEntry{
		{PageID: a.ID, LemmaID: cat.ID, Rank: 1},
		{PageID: a.ID, LemmaID: dog.ID, Rank: 1},
		{PageID: b.ID, LemmaID: cat.ID, Rank: 3},
	} {
		if err := s.InsertIndex(ctx, entry); err != nil {
			t.Fatalf("InsertIndex() error = %v", err)
		}
	}

	if err := s.DeleteIndexByPage(ctx, a.ID); err != nil {
		t.Fatalf("DeleteIndexByPage() error = %v", err)
	}
	entries, _ := s.FindIndexByLemma(ctx, cat.ID)
	if len(entries) != 1 || entries[0].PageID != b.ID || entries[0].Rank != 3 {
		t.Fatalf("unexpected cat entries %+v", entries)
	}
	if entries, _ := s.FindIndexByLemma(ctx, dog.ID); len(entries) != 0 {
		t.Fatalf("expected no dog entries, got %+v", entries)
	}
	if _, ok := s.byPage[a.ID]; ok {
		t.Fatalf("expected page %d dropped from page lookup", a.ID)
	}
	if err := s.InsertIndex(ctx, engine.IndexEntry{PageID: a.ID, LemmaID: cat.ID, Rank: 5}); err != nil {
		t.Fatalf("InsertIndex() after delete error = %v", err)
	}
	if got, err := s.FindIndex(ctx, cat.ID, a.ID); err != nil || got.Rank != 5 {
		t.Fatalf("FindIndex() = %+v, %v", got, err)
	}

	if err := s.DeleteLemmas(ctx, site.ID); err != nil {
		t.Fatalf("DeleteLemmas() error = %v", err)
	}
	if len(s.byPage) != 0 || len(s.index) != 0 {
		t.Fatalf("expected empty index, got %d pages and %d rows", len(s.byPage), len(s.index))
	}
}

func TestInsertIndexRequiresRows(t *testing.T) {
	t.Parallel()

	s := NewStore()
	err := s.InsertIndex(context.Background(), engine.IndexEntry{PageID: 1, LemmaID: 2})
	var consistency *engine.ConsistencyError
	if !errors.As(err, &consistency) || consistency.Entity != "page" {
		t.Fatalf("expected page consistency error, got %v", err)
	}
}

func TestEnsureFieldsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	if err := s.EnsureFields(ctx, engine.DefaultFields()); err != nil {
		t.Fatalf("EnsureFields() error = %v", err)
	}
	title, _ := s.FindField(ctx, engine.FieldTitle)
	if err := s.EnsureFields(ctx, []engine.Field{{Name: engine.FieldTitle, Selector: "h1", Weight: 9}}); err != nil {
		t.Fatalf("EnsureFields() error = %v", err)
	}
	again, _ := s.FindField(ctx, engine.FieldTitle)
	if again != title || again.Weight != 1.0 {
		t.Fatalf("expected title field unchanged, got %+v", again)
	}
	if _, err := s.FindField(ctx, "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
