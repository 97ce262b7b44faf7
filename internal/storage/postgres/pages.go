package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

const pageColumns = "id, site_id, path, code, content"

func scanPage(row pgx.Row) (engine.Page, error) {
	var page engine.Page
	if err := row.Scan(&page.ID, &page.SiteID, &page.Path, &page.Code, &page.Content); err != nil {
		return engine.Page{}, err
	}
	return page, nil
}

// InsertPages bulk-loads pages with COPY.
func (s *Store) InsertPages(ctx context.Context, pages []engine.Page) error {
	if len(pages) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"page"},
		[]string{"site_id", "path", "code", "content"},
		pgx.CopyFromSlice(len(pages), func(i int) ([]any, error) {
			p := pages[i]
			return []any{p.SiteID, p.Path, p.Code, p.Content}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy pages: %w", err)
	}
	return nil
}

// SavePage inserts the page or replaces the row with the same site and path.
func (s *Store) SavePage(ctx context.Context, page engine.Page) (engine.Page, error) {
	query := `
		INSERT INTO page (site_id, path, code, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site_id, path) DO UPDATE
		SET code = EXCLUDED.code, content = EXCLUDED.content
		RETURNING id`
	if err := s.pool.QueryRow(ctx, query, page.SiteID, page.Path, page.Code, page.Content).Scan(&page.ID); err != nil {
		return engine.Page{}, fmt.Errorf("save page %s: %w", page.Path, err)
	}
	return page, nil
}

// FindPage returns the page at path on the site.
func (s *Store) FindPage(ctx context.Context, siteID int64, path string) (engine.Page, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM page WHERE site_id = $1 AND path = $2`, siteID, path)
	page, err := scanPage(row)
	if err != nil {
		return engine.Page{}, notFound(err, "page %s", path)
	}
	return page, nil
}

// GetPage returns the page by id.
func (s *Store) GetPage(ctx context.Context, pageID int64) (engine.Page, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM page WHERE id = $1`, pageID)
	page, err := scanPage(row)
	if err != nil {
		return engine.Page{}, notFound(err, "page %d", pageID)
	}
	return page, nil
}

// ListPages returns the site's pages ordered by path.
func (s *Store) ListPages(ctx context.Context, siteID int64) ([]engine.Page, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pageColumns+` FROM page WHERE site_id = $1 ORDER BY path`, siteID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()
	var out []engine.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}

// CountPages returns the number of pages on the site.
func (s *Store) CountPages(ctx context.Context, siteID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM page WHERE site_id = $1`, siteID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// DeletePages removes the site's pages; index rows cascade.
func (s *Store) DeletePages(ctx context.Context, siteID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM page WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	return nil
}
