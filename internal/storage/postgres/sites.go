package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

const siteColumns = "id, url, name, status, status_time, last_error"

func scanSite(row pgx.Row) (engine.Site, error) {
	var (
		site   engine.Site
		status string
	)
	if err := row.Scan(&site.ID, &site.URL, &site.Name, &status, &site.StatusTime, &site.LastError); err != nil {
		return engine.Site{}, err
	}
	site.Status = engine.SiteStatus(status)
	return site, nil
}

// UpsertSite inserts the site or overwrites the row with the same URL.
func (s *Store) UpsertSite(ctx context.Context, site engine.Site) (engine.Site, error) {
	query := `
		INSERT INTO site (url, name, status, status_time, last_error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (url) DO UPDATE
		SET name = EXCLUDED.name, status = EXCLUDED.status,
			status_time = EXCLUDED.status_time, last_error = EXCLUDED.last_error
		RETURNING ` + siteColumns
	row := s.pool.QueryRow(ctx, query, site.URL, site.Name, string(site.Status), site.StatusTime, site.LastError)
	saved, err := scanSite(row)
	if err != nil {
		return engine.Site{}, fmt.Errorf("upsert site %s: %w", site.URL, err)
	}
	return saved, nil
}

// FindSiteByURL returns the site registered under url.
func (s *Store) FindSiteByURL(ctx context.Context, url string) (engine.Site, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+siteColumns+` FROM site WHERE url = $1`, url)
	site, err := scanSite(row)
	if err != nil {
		return engine.Site{}, notFound(err, "site %s", url)
	}
	return site, nil
}

// ListSites returns all sites ordered by id.
func (s *Store) ListSites(ctx context.Context) ([]engine.Site, error) {
	return s.querySites(ctx, `SELECT `+siteColumns+` FROM site ORDER BY id`)
}

// ListSitesByStatus returns sites with the given status ordered by id.
func (s *Store) ListSitesByStatus(ctx context.Context, status engine.SiteStatus) ([]engine.Site, error) {
	return s.querySites(ctx, `SELECT `+siteColumns+` FROM site WHERE status = $1 ORDER BY id`, string(status))
}

func (s *Store) querySites(ctx context.Context, query string, args ...any) ([]engine.Site, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()
	var out []engine.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return out, nil
}

// UpdateSiteStatus sets status, error, and status time.
func (s *Store) UpdateSiteStatus(
	ctx context.Context,
	siteID int64,
	status engine.SiteStatus,
	lastError string,
	at time.Time,
) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE site SET status = $1, last_error = $2, status_time = $3 WHERE id = $4`,
		string(status), lastError, at, siteID,
	)
	if err != nil {
		return fmt.Errorf("update site %d status: %w", siteID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("site %d: %w", siteID, engine.ErrNotFound)
	}
	return nil
}

// DeleteSite removes the site; pages, lemmas, and index rows cascade.
func (s *Store) DeleteSite(ctx context.Context, siteID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM site WHERE id = $1`, siteID); err != nil {
		return fmt.Errorf("delete site %d: %w", siteID, err)
	}
	return nil
}
