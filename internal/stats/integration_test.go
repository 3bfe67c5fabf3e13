//go:build integration

package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const fixtureSQL = `
CREATE TABLE glucose_readings (user_id text, glucose_value double precision, "timestamp" timestamptz);
CREATE TABLE meal_logs (user_id text, meal_items text[], "timestamp" timestamptz);
INSERT INTO glucose_readings VALUES
  ('u1', 100, now() - interval '1 day'),
  ('u1', 130, now() - interval '2 days'),
  ('u1', 400, now() - interval '30 days'),
  ('u2', 90,  now());
INSERT INTO meal_logs VALUES
  ('u1', '{rice}', now() - interval '1 hour'),
  ('u1', '{dal}',  now() - interval '10 days');
`

func TestPostgres_Integration(t *testing.T) {
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "agni",
				"POSTGRES_PASSWORD": "agni",
				"POSTGRES_DB":       "agni",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432")
	dsn := fmt.Sprintf("postgres://agni:agni@%s:%s/agni?sslmode=disable", host, port.Port())

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := conn.Exec(ctx, fixtureSQL); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	_ = conn.Close(ctx)

	store, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer store.Close()

	s, err := store.RecentStats(ctx, "u1")
	if err != nil {
		t.Fatalf("RecentStats: %v", err)
	}
	if s.AvgGlucose7d == nil || *s.AvgGlucose7d != 115 {
		t.Errorf("avg = %v, want 115", s.AvgGlucose7d)
	}
	if *s.MaxGlucose7d != 130 || *s.MinGlucose7d != 100 || s.GlucoseReadings7d != 2 {
		t.Errorf("unexpected glucose stats: %+v", s)
	}
	if s.MealCount7d != 1 {
		t.Errorf("meals = %d, want 1", s.MealCount7d)
	}

	empty, err := store.RecentStats(ctx, "nobody")
	if err != nil {
		t.Fatalf("RecentStats: %v", err)
	}
	if empty.AvgGlucose7d != nil || empty.MealCount7d != 0 || !empty.Available {
		t.Errorf("unexpected stats for unknown user: %+v", empty)
	}
}
