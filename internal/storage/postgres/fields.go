package postgres

import (
	"context"
	"fmt"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

// EnsureFields inserts missing fields by name.
func (s *Store) EnsureFields(ctx context.Context, fields []engine.Field) error {
	for _, f := range fields {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO field (name, selector, weight) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
			f.Name, f.Selector, f.Weight,
		)
		if err != nil {
			return fmt.Errorf("ensure field %s: %w", f.Name, err)
		}
	}
	return nil
}

// FindField returns the field by name.
func (s *Store) FindField(ctx context.Context, name string) (engine.Field, error) {
	var f engine.Field
	err := s.pool.QueryRow(ctx, `SELECT id, name, selector, weight FROM field WHERE name = $1`, name).
		Scan(&f.ID, &f.Name, &f.Selector, &f.Weight)
	if err != nil {
		return engine.Field{}, notFound(err, "field %s", name)
	}
	return f, nil
}
