package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/efebarandurmaz/agni/internal/schema"
)

// Window is the look-back period of RecentStats.
const Window = 7 * 24 * time.Hour

const glucoseQuery = `SELECT avg(glucose_value)::float8, max(glucose_value)::float8, min(glucose_value)::float8, count(*)
FROM glucose_readings
WHERE user_id = $1 AND "timestamp" >= $2`

const mealQuery = `SELECT count(*) FROM meal_logs WHERE user_id = $1 AND "timestamp" >= $2`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads the glucose_readings and meal_logs tables.
type Postgres struct {
	db   querier
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgres connects to dsn.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect stats db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping stats db: %w", err)
	}
	return &Postgres{db: pool, pool: pool, now: time.Now}, nil
}

func (p *Postgres) RecentStats(ctx context.Context, userID string) (schema.Stats, error) {
	cutoff := p.now().UTC().Add(-Window)
	s := schema.Stats{Available: true}

	var readings int64
	err := p.db.QueryRow(ctx, glucoseQuery, userID, cutoff).
		Scan(&s.AvgGlucose7d, &s.MaxGlucose7d, &s.MinGlucose7d, &readings)
	if err != nil {
		return schema.Stats{}, fmt.Errorf("glucose stats for %s: %w", userID, err)
	}
	s.GlucoseReadings7d = int(readings)

	var meals int64
	if err := p.db.QueryRow(ctx, mealQuery, userID, cutoff).Scan(&meals); err != nil {
		return schema.Stats{}, fmt.Errorf("meal count for %s: %w", userID, err)
	}
	s.MealCount7d = int(meals)
	return s, nil
}

// Close releases the connection pool.
// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	if p.pool == nil {
		return errors.New("stats database not connected")
	}
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
