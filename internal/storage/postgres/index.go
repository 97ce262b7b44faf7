package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

const indexColumns = "id, page_id, lemma_id, rank"

func scanIndex(row pgx.Row) (engine.IndexEntry, error) {
	var e engine.IndexEntry
	if err := row.Scan(&e.ID, &e.PageID, &e.LemmaID, &e.Rank); err != nil {
		return engine.IndexEntry{}, err
	}
	return e, nil
}

// InsertIndex stores a (page, lemma) rank row.
func (s *Store) InsertIndex(ctx context.Context, entry engine.IndexEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_index (page_id, lemma_id, rank) VALUES ($1, $2, $3)`,
		entry.PageID, entry.LemmaID, entry.Rank,
	)
	if err != nil {
		return fmt.Errorf("insert index page %d lemma %d: %w", entry.PageID, entry.LemmaID, err)
	}
	return nil
}

// FindIndexByLemma returns every index row of the lemma ordered by page id.
func (s *Store) FindIndexByLemma(ctx context.Context, lemmaID int64) ([]engine.IndexEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+indexColumns+` FROM search_index WHERE lemma_id = $1 ORDER BY page_id`, lemmaID)
	if err != nil {
		return nil, fmt.Errorf("find index by lemma: %w", err)
	}
	defer rows.Close()
	var out []engine.IndexEntry
	for rows.Next() {
		e, err := scanIndex(rows)
		if err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index: %w", err)
	}
	return out, nil
}

// FindIndex returns the row for the (lemma, page) pair.
func (s *Store) FindIndex(ctx context.Context, lemmaID, pageID int64) (engine.IndexEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+indexColumns+` FROM search_index WHERE lemma_id = $1 AND page_id = $2`, lemmaID, pageID)
	e, err := scanIndex(row)
	if err != nil {
		return engine.IndexEntry{}, notFound(err, "index %d/%d", lemmaID, pageID)
	}
	return e, nil
}

// DeleteIndexByPage removes the page's index rows.
func (s *Store) DeleteIndexByPage(ctx context.Context, pageID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM search_index WHERE page_id = $1`, pageID); err != nil {
		return fmt.Errorf("delete index for page %d: %w", pageID, err)
	}
	return nil
}

// DeleteIndexByPages removes the index rows of every listed page.
func (s *Store) DeleteIndexByPages(ctx context.Context, pageIDs []int64) error {
	if len(pageIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM search_index WHERE page_id = ANY($1)`, pageIDs); err != nil {
		return fmt.Errorf("delete index for %d pages: %w", len(pageIDs), err)
	}
	return nil
}
