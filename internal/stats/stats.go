// Package stats reads a user's recent glucose and meal history from the
// relational store.
package stats

import (
	"context"

	"github.com/efebarandurmaz/agni/internal/schema"
)

// Store returns a user's statistics for the last seven days.
type Store interface {
	RecentStats(ctx context.Context, userID string) (schema.Stats, error)
}

// None is a Store with no backing database. Every lookup reports the
// statistics as unavailable.
type None struct{}

func (None) RecentStats(context.Context, string) (schema.Stats, error) {
	return schema.Stats{}, nil
}
