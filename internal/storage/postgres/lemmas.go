package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

const lemmaColumns = "id, site_id, lemma, frequency"

func scanLemma(row pgx.Row) (engine.Lemma, error) {
	var l engine.Lemma
	if err := row.Scan(&l.ID, &l.SiteID, &l.Lemma, &l.Frequency); err != nil {
		return engine.Lemma{}, err
	}
	return l, nil
}

// UpsertLemma creates the lemma or increments it while below frequencyCap.
// The conflicting row is locked by the upsert, so concurrent callers for the
// same (site, lemma) are serialized by Postgres.
func (s *Store) UpsertLemma(ctx context.Context, siteID int64, lemma string, frequencyCap int) (engine.Lemma, error) {
	query := `
		INSERT INTO lemma (site_id, lemma, frequency)
		VALUES ($1, $2, 1)
		ON CONFLICT (site_id, lemma) DO UPDATE
		SET frequency = lemma.frequency + 1
		WHERE lemma.frequency < $3
		RETURNING ` + lemmaColumns
	row, err := scanLemma(s.pool.QueryRow(ctx, query, siteID, lemma, frequencyCap))
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return engine.Lemma{}, fmt.Errorf("upsert lemma %s: %w", lemma, err)
	}
	// Cap reached: the row exists but was not updated.
	return s.FindLemma(ctx, siteID, lemma)
}

// FindLemma returns the site's lemma row.
func (s *Store) FindLemma(ctx context.Context, siteID int64, lemma string) (engine.Lemma, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+lemmaColumns+` FROM lemma WHERE site_id = $1 AND lemma = $2`, siteID, lemma)
	l, err := scanLemma(row)
	if err != nil {
		return engine.Lemma{}, notFound(err, "lemma %s", lemma)
	}
	return l, nil
}

// CountLemmas returns the number of lemmas on the site.
func (s *Store) CountLemmas(ctx context.Context, siteID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM lemma WHERE site_id = $1`, siteID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lemmas: %w", err)
	}
	return n, nil
}

// ListLemmas returns the site's lemmas ordered by text.
func (s *Store) ListLemmas(ctx context.Context, siteID int64) ([]engine.Lemma, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+lemmaColumns+` FROM lemma WHERE site_id = $1 ORDER BY lemma`, siteID)
	if err != nil {
		return nil, fmt.Errorf("list lemmas: %w", err)
	}
	defer rows.Close()
	var out []engine.Lemma
	for rows.Next() {
		l, err := scanLemma(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lemma: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lemmas: %w", err)
	}
	return out, nil
}

// DeleteLemmas removes the site's lemmas; index rows cascade.
func (s *Store) DeleteLemmas(ctx context.Context, siteID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM lemma WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("delete lemmas: %w", err)
	}
	return nil
}
