//go:build integration

package pgvector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/efebarandurmaz/agni/internal/vector"
	"github.com/efebarandurmaz/agni/internal/vector/vectortest"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "agni",
				"POSTGRES_PASSWORD": "agni",
				"POSTGRES_DB":       "agni",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("postgres://agni:agni@%s:%s/agni?sslmode=disable", host, port.Port())
}

func TestIndexContract(t *testing.T) {
	dsn := startPostgres(t)
	n := 0
	vectortest.Run(t, func(t *testing.T) vector.Index {
		n++
		idx, err := New(context.Background(), Config{
			DSN:       dsn,
			Table:     fmt.Sprintf("contract_%d", n),
			Dimension: vectortest.Dim,
		}, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		t.Cleanup(func() { idx.Close() })
		return idx
	})
}

func TestIndexSharedTable(t *testing.T) {
	dsn := startPostgres(t)
	vectortest.RunShared(t, func(t *testing.T) vector.Index {
		idx, err := New(context.Background(), Config{
			DSN:       dsn,
			Table:     "shared",
			Dimension: vectortest.Dim,
		}, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		t.Cleanup(func() { idx.Close() })
		return idx
	})
}
