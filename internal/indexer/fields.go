package indexer

import (
	"context"
	"fmt"

	"github.com/ozemskikh/SearchEngine/internal/engine"
)

// FieldStore is the persistence subset used to resolve ranking zones.
type FieldStore interface {
	EnsureFields(ctx context.Context, fields []engine.Field) error
	FindField(ctx context.Context, name string) (engine.Field, error)
}

// LoadWeights seeds the default zones when missing and returns the stored
// title and body fields.
func LoadWeights(ctx context.Context, store FieldStore) (engine.Weights, error) {
	if err := store.EnsureFields(ctx, engine.DefaultFields()); err != nil {
		return engine.Weights{}, fmt.Errorf("ensure fields: %w", err)
	}
	title, err := store.FindField(ctx, engine.FieldTitle)
	if err != nil {
		return engine.Weights{}, fmt.Errorf("find field %s: %w", engine.FieldTitle, err)
	}
	body, err := store.FindField(ctx, engine.FieldBody)
	if err != nil {
		return engine.Weights{}, fmt.Errorf("find field %s: %w", engine.FieldBody, err)
	}
	return engine.Weights{Title: title, Body: body}, nil
}
