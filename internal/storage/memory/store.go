// Package memory provides in-memory storage for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

type lemmaKey struct {
	siteID int64
	lemma  string
}

type pageKey struct {
	siteID int64
	path   string
}

type indexKey struct {
	pageID  int64
	lemmaID int64
}

// Store implements engine.Store with mutex-guarded maps.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	sites   map[int64]engine.Site
	pages   map[int64]engine.Page
	lemmas  map[int64]engine.Lemma
	index   map[int64]engine.IndexEntry
	fields  map[string]engine.Field
	byURL   map[string]int64
	byPath  map[pageKey]int64
	byLemma map[lemmaKey]int64
	byPair  map[indexKey]int64
	byPage  map[int64]map[int64]struct{}
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		sites:   make(map[int64]engine.Site),
		pages:   make(map[int64]engine.Page),
		lemmas:  make(map[int64]engine.Lemma),
		index:   make(map[int64]engine.IndexEntry),
		fields:  make(map[string]engine.Field),
		byURL:   make(map[string]int64),
		byPath:  make(map[pageKey]int64),
		byLemma: make(map[lemmaKey]int64),
		byPair:  make(map[indexKey]int64),
		byPage:  make(map[int64]map[int64]struct{}),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// UpsertSite creates the site or overwrites the row with the same URL.
func (s *Store) UpsertSite(_ context.Context, site engine.Site) (engine.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byURL[site.URL]; ok {
		site.ID = id
	} else {
		site.ID = s.id()
		s.byURL[site.URL] = site.ID
	}
	s.sites[site.ID] = site
	return site, nil
}

// FindSiteByURL returns the site registered under url.
func (s *Store) FindSiteByURL(_ context.Context, url string) (engine.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[url]
	if !ok {
		return engine.Site{}, fmt.Errorf("site %s: %w", url, engine.ErrNotFound)
	}
	return s.sites[id], nil
}

// ListSites returns all sites ordered by id.
func (s *Store) ListSites(_ context.Context) ([]engine.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.Site, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, site)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListSitesByStatus returns sites with the given status ordered by id.
func (s *Store) ListSitesByStatus(ctx context.Context, status engine.SiteStatus) ([]engine.Site, error) {
	all, err := s.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, site := range all {
		if site.Status == status {
			out = append(out, site)
		}
	}
	return out, nil
}

// UpdateSiteStatus sets status, error, and status time.
func (s *Store) UpdateSiteStatus(
	_ context.Context,
	siteID int64,
	status engine.SiteStatus,
	lastError string,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[siteID]
	if !ok {
		return fmt.Errorf("site %d: %w", siteID, engine.ErrNotFound)
	}
	site.Status = status
	site.LastError = lastError
	site.StatusTime = at
	s.sites[siteID] = site
	return nil
}

// DeleteSite removes the site and everything it owns.
func (s *Store) DeleteSite(_ context.Context, siteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[siteID]
	if !ok {
		return nil
	}
	s.deletePagesLocked(siteID)
	s.deleteLemmasLocked(siteID)
	delete(s.byURL, site.URL)
	delete(s.sites, siteID)
	return nil
}

// InsertPages stores new pages and assigns their ids.
func (s *Store) InsertPages(_ context.Context, pages []engine.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, page := range pages {
		key := pageKey{siteID: page.SiteID, path: page.Path}
		if _, exists := s.byPath[key]; exists {
			return fmt.Errorf("page %s already exists for site %d", page.Path, page.SiteID)
		}
	}
	for _, page := range pages {
		page.ID = s.id()
		s.pages[page.ID] = page
		s.byPath[pageKey{siteID: page.SiteID, path: page.Path}] = page.ID
	}
	return nil
}

// SavePage inserts the page or replaces the row with the same site and path.
func (s *Store) SavePage(_ context.Context, page engine.Page) (engine.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageKey{siteID: page.SiteID, path: page.Path}
	if id, ok := s.byPath[key]; ok {
		page.ID = id
	} else {
		page.ID = s.id()
		s.byPath[key] = page.ID
	}
	s.pages[page.ID] = page
	return page, nil
}

// FindPage returns the page at path on the site.
func (s *Store) FindPage(_ context.Context, siteID int64, path string) (engine.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPath[pageKey{siteID: siteID, path: path}]
	if !ok {
		return engine.Page{}, fmt.Errorf("page %s: %w", path, engine.ErrNotFound)
	}
	return s.pages[id], nil
}

// GetPage returns the page by id.
func (s *Store) GetPage(_ context.Context, pageID int64) (engine.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[pageID]
	if !ok {
		return engine.Page{}, fmt.Errorf("page %d: %w", pageID, engine.ErrNotFound)
	}
	return page, nil
}

// ListPages returns the site's pages ordered by path.
func (s *Store) ListPages(_ context.Context, siteID int64) ([]engine.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.Page
	for _, page := range s.pages {
		if page.SiteID == siteID {
			out = append(out, page)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// CountPages returns the number of pages on the site.
func (s *Store) CountPages(_ context.Context, siteID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, page := range s.pages {
		if page.SiteID == siteID {
			n++
		}
	}
	return n, nil
}

// DeletePages removes the site's pages with their index rows.
func (s *Store) DeletePages(_ context.Context, siteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletePagesLocked(siteID)
	return nil
}

func (s *Store) deletePagesLocked(siteID int64) {
	for id, page := range s.pages {
		if page.SiteID != siteID {
			continue
		}
		s.deleteIndexByPageLocked(id)
		delete(s.byPath, pageKey{siteID: siteID, path: page.Path})
		delete(s.pages, id)
	}
}

// UpsertLemma creates the lemma or increments it while below frequencyCap.
func (s *Store) UpsertLemma(
	_ context.Context,
	siteID int64,
	lemma string,
	frequencyCap int,
) (engine.Lemma, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := lemmaKey{siteID: siteID, lemma: lemma}
	if id, ok := s.byLemma[key]; ok {
		row := s.lemmas[id]
		if row.Frequency < frequencyCap {
			row.Frequency++
			s.lemmas[id] = row
		}
		return row, nil
	}
	row := engine.Lemma{ID: s.id(), SiteID: siteID, Lemma: lemma, Frequency: 1}
	s.lemmas[row.ID] = row
	s.byLemma[key] = row.ID
	return row, nil
}

// FindLemma returns the site's lemma row.
func (s *Store) FindLemma(_ context.Context, siteID int64, lemma string) (engine.Lemma, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byLemma[lemmaKey{siteID: siteID, lemma: lemma}]
	if !ok {
		return engine.Lemma{}, fmt.Errorf("lemma %s: %w", lemma, engine.ErrNotFound)
	}
	return s.lemmas[id], nil
}

// CountLemmas returns the number of lemmas on the site.
func (s *Store) CountLemmas(ctx context.Context, siteID int64) (int, error) {
	rows, err := s.ListLemmas(ctx, siteID)
	return len(rows), err
}

// ListLemmas returns the site's lemmas ordered by text.
func (s *Store) ListLemmas(_ context.Context, siteID int64) ([]engine.Lemma, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.Lemma
	for _, row := range s.lemmas {
		if row.SiteID == siteID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lemma < out[j].Lemma })
	return out, nil
}

// DeleteLemmas removes the site's lemmas with their index rows.
func (s *Store) DeleteLemmas(_ context.Context, siteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLemmasLocked(siteID)
	return nil
}

func (s *Store) deleteLemmasLocked(siteID int64) {
	for id, row := range s.lemmas {
		if row.SiteID != siteID {
			continue
		}
		for entryID, entry := range s.index {
			if entry.LemmaID == id {
				s.deleteEntryLocked(entryID, entry)
			}
		}
		delete(s.byLemma, lemmaKey{siteID: siteID, lemma: row.Lemma})
		delete(s.lemmas, id)
	}
}

// InsertIndex stores a (page, lemma) rank row.
func (s *Store) InsertIndex(_ context.Context, entry engine.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[entry.PageID]; !ok {
		return &engine.ConsistencyError{Entity: "page", Key: strconv.FormatInt(entry.PageID, 10)}
	}
	if _, ok := s.lemmas[entry.LemmaID]; !ok {
		return &engine.ConsistencyError{Entity: "lemma", Key: strconv.FormatInt(entry.LemmaID, 10)}
	}
	key := indexKey{pageID: entry.PageID, lemmaID: entry.LemmaID}
	if _, exists := s.byPair[key]; exists {
		return fmt.Errorf("index row for page %d lemma %d already exists", entry.PageID, entry.LemmaID)
	}
	entry.ID = s.id()
	s.index[entry.ID] = entry
	s.byPair[key] = entry.ID
	ids, ok := s.byPage[entry.PageID]
	if !ok {
		ids = make(map[int64]struct{})
		s.byPage[entry.PageID] = ids
	}
	ids[entry.ID] = struct{}{}
	return nil
}

// FindIndexByLemma returns every index row of the lemma ordered by page id.
func (s *Store) FindIndexByLemma(_ context.Context, lemmaID int64) ([]engine.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.IndexEntry
	for _, entry := range s.index {
		if entry.LemmaID == lemmaID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageID < out[j].PageID })
	return out, nil
}

// FindIndex returns the row for the (lemma, page) pair.
func (s *Store) FindIndex(_ context.Context, lemmaID, pageID int64) (engine.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[indexKey{pageID: pageID, lemmaID: lemmaID}]
	if !ok {
		return engine.IndexEntry{}, fmt.Errorf("index %d/%d: %w", lemmaID, pageID, engine.ErrNotFound)
	}
	return s.index[id], nil
}

// DeleteIndexByPage removes the page's index rows.
func (s *Store) DeleteIndexByPage(_ context.Context, pageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteIndexByPageLocked(pageID)
	return nil
}

// DeleteIndexByPages removes the index rows of every listed page.
func (s *Store) DeleteIndexByPages(_ context.Context, pageIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range pageIDs {
		s.deleteIndexByPageLocked(id)
	}
	return nil
}

func (s *Store) deleteIndexByPageLocked(pageID int64) {
	for id := range s.byPage[pageID] {
		s.deleteEntryLocked(id, s.index[id])
	}
	delete(s.byPage, pageID)
}

func (s *Store) deleteEntryLocked(id int64, entry engine.IndexEntry) {
	delete(s.byPair, indexKey{pageID: entry.PageID, lemmaID: entry.LemmaID})
	delete(s.index, id)
	if ids, ok := s.byPage[entry.PageID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byPage, entry.PageID)
		}
	}
}

// EnsureFields inserts missing fields by name.
func (s *Store) EnsureFields(_ context.Context, fields []engine.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, field := range fields {
		if _, ok := s.fields[field.Name]; ok {
			continue
		}
		field.ID = s.id()
		s.fields[field.Name] = field
	}
	return nil
}

// FindField returns the field by name.
func (s *Store) FindField(_ context.Context, name string) (engine.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	field, ok := s.fields[name]
	if !ok {
		return engine.Field{}, fmt.Errorf("field %s: %w", name, engine.ErrNotFound)
	}
	return field, nil
}

// Close is a no-op.
func (s *Store) Close() {}
