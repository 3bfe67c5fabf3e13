package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// LoadReport collects statistics for one corpus load.
type LoadReport struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration_ms,omitempty"`
	Backend    string        `json:"backend"`
	Model      string        `json:"model"`
	Loaded     int           `json:"loaded"`
	Batches    int           `json:"batches"`
	Documents  int           `json:"documents"`
	Skipped    bool          `json:"skipped"`
}

func newLoadReport(backend, model string) *LoadReport {
	return &LoadReport{StartedAt: time.Now(), Backend: backend, Model: model}
}

func (r *LoadReport) finish(documents int) {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	r.Documents = documents
}

// PrintSummary writes a human-readable summary.
func (r *LoadReport) PrintSummary(w io.Writer) {
	status := "loaded"
	if r.Skipped {
		status = "skipped (already initialised)"
	}
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║         KNOWLEDGE BASE LOAD          ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Status:      %-24s║\n", truncate(status, 24))
	fmt.Fprintf(w, "║ Backend:     %-24s║\n", truncate(r.Backend, 24))
	fmt.Fprintf(w, "║ Model:       %-24s║\n", truncate(r.Model, 24))
	fmt.Fprintf(w, "║ Duration:    %-24s║\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Loaded:      %-24d║\n", r.Loaded)
	fmt.Fprintf(w, "║ Batches:     %-24d║\n", r.Batches)
	fmt.Fprintf(w, "║ Documents:   %-24d║\n", r.Documents)
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the report as formatted JSON.
func (r *LoadReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
