package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, s *HealthServer, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	if w.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
	}
	return w, resp
}

func TestNewHealthServer_Defaults(t *testing.T) {
	s := NewHealthServer(nil)
	if s.ready {
		t.Fatal("expected not ready initially")
	}

	s = NewHealthServer(&HealthConfig{Version: "0.3.0"})
	if s.version != "0.3.0" {
		t.Fatalf("expected version 0.3.0, got %s", s.version)
	}
}

func TestHealthServer_HandleHealth(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]HealthStatus
		code     int
		want     HealthStatus
	}{
		{"no checks", nil, http.StatusOK, HealthStatusHealthy},
		{"all healthy", map[string]HealthStatus{"index": HealthStatusHealthy, "temporal": HealthStatusHealthy}, http.StatusOK, HealthStatusHealthy},
		{"degraded still serves", map[string]HealthStatus{"index": HealthStatusHealthy, "stats": HealthStatusDegraded}, http.StatusOK, HealthStatusDegraded},
		{"one unhealthy", map[string]HealthStatus{"graph": HealthStatusDegraded, "index": HealthStatusUnhealthy}, http.StatusServiceUnavailable, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewHealthServer(&HealthConfig{Version: "1.0.0"})
			for name, status := range tt.statuses {
				s.RegisterCheck(name, func(ctx context.Context) HealthCheck {
					return HealthCheck{Status: status}
				})
			}

			w, resp := serve(t, s, "/health")
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
			if resp.Status != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, resp.Status)
			}
			if resp.Version != "1.0.0" {
				t.Fatalf("expected version 1.0.0, got %s", resp.Version)
			}
			if len(resp.Checks) != len(tt.statuses) {
				t.Fatalf("expected %d checks, got %d", len(tt.statuses), len(resp.Checks))
			}
		})
	}
}

func TestHealthServer_ChecksSortedByName(t *testing.T) {
	s := NewHealthServer(nil)
	for _, name := range []string{"temporal", "index", "llm"} {
		s.RegisterCheck(name, func(ctx context.Context) HealthCheck {
			return HealthCheck{Status: HealthStatusHealthy}
		})
	}

	_, resp := serve(t, s, "/health")
	want := []string{"index", "llm", "temporal"}
	for i, c := range resp.Checks {
		if c.Name != want[i] {
			t.Fatalf("check %d = %s, want %s", i, c.Name, want[i])
		}
	}
}

func TestHealthServer_Ready(t *testing.T) {
	count := 0
	var countErr error
	countFn := func(context.Context) (int, error) { return count, countErr }

	s := NewHealthServer(nil)
	s.SetReadinessProbe(IndexReadiness(countFn))

	if w, _ := serve(t, s, "/ready"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready: expected 503, got %d", w.Code)
	}

	s.SetReady(true)
	w, resp := serve(t, s, "/ready")
	if w.Code != http.StatusServiceUnavailable || resp.Message != "knowledge index is empty" {
		t.Fatalf("empty index: got %d %q", w.Code, resp.Message)
	}

	count = 36
	if w, _ := serve(t, s, "/readyz"); w.Code != http.StatusOK {
		t.Fatalf("loaded index: expected 200, got %d", w.Code)
	}

	countErr = errors.New("badger closed")
	if w, _ := serve(t, s, "/ready"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("count error: expected 503, got %d", w.Code)
	}
}

func TestHealthServer_Live(t *testing.T) {
	s := NewHealthServer(nil)
	for _, path := range []string{"/live", "/livez"} {
		if w, _ := serve(t, s, path); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestHealthServer_Handle(t *testing.T) {
	s := NewHealthServer(nil)
	s.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("agni_index_documents 36\n"))
	}))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.String() != "agni_index_documents 36\n" {
		t.Fatalf("unexpected /metrics response: %d %q", w.Code, w.Body.String())
	}
}

func TestHealthServer_ShutdownTwice(t *testing.T) {
	s := NewHealthServer(nil)
	s.Shutdown()
	s.Shutdown()
}

func TestIndexHealthChecker(t *testing.T) {
	tests := []struct {
		name  string
		count int
		err   error
		want  HealthStatus
	}{
		{"loaded", 36, nil, HealthStatusHealthy},
		{"empty", 0, nil, HealthStatusDegraded},
		{"error", 0, errors.New("connection refused"), HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := IndexHealthChecker("qdrant", func(context.Context) (int, error) {
				return tt.count, tt.err
			})
			result := checker(context.Background())
			if result.Status != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, result.Status)
			}
			if result.Details["backend"] != "qdrant" {
				t.Fatalf("expected backend detail, got %v", result.Details)
			}
			if tt.want == HealthStatusHealthy && result.Details["documents"] != "36" {
				t.Fatalf("expected documents=36, got %v", result.Details)
			}
		})
	}
}

func TestCheckers(t *testing.T) {
	fail := func(context.Context) error { return errors.New("connection timeout") }
	ok := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		checker HealthChecker
		want    HealthStatus
	}{
		{"temporal ok", TemporalHealthChecker(ok), HealthStatusHealthy},
		{"temporal down", TemporalHealthChecker(fail), HealthStatusUnhealthy},
		{"stats ok", DatabaseHealthChecker("stats", ok), HealthStatusHealthy},
		{"stats down degrades", DatabaseHealthChecker("stats", fail), HealthStatusDegraded},
		{"food graph down degrades", DatabaseHealthChecker("food-graph", fail), HealthStatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.checker(context.Background()).Status; got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
