// Package pgvector implements vector.Index on a Postgres table using the
// pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/efebarandurmaz/agni/internal/vector"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config selects the database and table.
type Config struct {
	DSN       string
	Table     string
	Dimension int
}

// Index stores one row per document. seq is a bigserial that records
// insertion order and breaks distance ties.
type Index struct {
	pool   *pgxpool.Pool
	table  string
	dim    int
	logger *slog.Logger

	mu sync.Mutex
}

// New ensures the extension and table exist.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Table == "" {
		cfg.Table = "knowledge_documents"
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("pgvector: invalid table name %q", cfg.Table)
	}

	// The vector type must exist before pool connections register it.
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector connect: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgvector create extension: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector parse dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector pool: %w", err)
	}

	idx := &Index{pool: pool, table: cfg.Table, dim: cfg.Dimension, logger: logger.With("component", "pgvector", "table", cfg.Table)}
	if err := idx.createTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

func (p *Index) createTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq       BIGSERIAL PRIMARY KEY,
		id        TEXT NOT NULL UNIQUE,
		document  TEXT NOT NULL,
		metadata  JSONB NOT NULL DEFAULT '{}'::jsonb,
		embedding vector(%d) NOT NULL
	)`, p.table, p.dim)
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgvector create table: %w", err)
	}
	return nil
}

func (p *Index) Dimension() int { return p.dim }

func (p *Index) Upsert(ctx context.Context, ids, texts []string, embeddings [][]float32, metadatas []map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := vector.CheckUpsert(p.dim, ids, texts, embeddings, metadatas, nil); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing string
	err = tx.QueryRow(ctx, fmt.Sprintf("SELECT id FROM %s WHERE id = ANY($1) LIMIT 1", p.table), ids).Scan(&existing)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q already indexed", vector.ErrDuplicateID, existing)
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("pgvector duplicate check: %w", err)
	}

	batch := &pgx.Batch{}
	insert := fmt.Sprintf("INSERT INTO %s (id, document, metadata, embedding) VALUES ($1, $2, $3, $4)", p.table)
	for i, id := range ids {
		meta, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("pgvector encode metadata: %w", err)
		}
		batch.Queue(insert, id, texts[i], meta, pgvector.NewVector(embeddings[i]))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("pgvector insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvector commit: %w", err)
	}
	return nil
}

func (p *Index) Query(ctx context.Context, embedding []float32, k int) ([]vector.SearchResult, error) {
	n, err := p.Count(ctx)
	if err != nil {
		return nil, err
	}
	if err := vector.CheckQuery(p.dim, n, embedding, k); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, document, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance, seq
		LIMIT $2`, p.table), pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}
	defer rows.Close()

	var out []vector.SearchResult
	for rows.Next() {
		var (
			r    vector.SearchResult
			meta []byte
			dist float64
		)
		if err := rows.Scan(&r.ID, &r.Document, &meta, &dist); err != nil {
			return nil, fmt.Errorf("pgvector scan: %w", err)
		}
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("pgvector decode metadata: %w", err)
		}
		// <=> yields NaN for zero vectors.
		if math.IsNaN(dist) {
			dist = 2
		}
		r.Distance = float32(dist)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count reads the table's row count, so rows written by other processes are
// seen.
func (p *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", p.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgvector count: %w", err)
	}
	return n, nil
}

func (p *Index) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY", p.table)); err != nil {
		return fmt.Errorf("pgvector truncate: %w", err)
	}
	return nil
}

func (p *Index) Close() error {
	p.pool.Close()
	return nil
}

var _ vector.Index = (*Index)(nil)
