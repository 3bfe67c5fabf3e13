package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/agni/internal/app"
	"github.com/efebarandurmaz/agni/internal/corpus"
	"github.com/efebarandurmaz/agni/internal/vector"
)

// smokeQueries are run after a load so an operator can eyeball results.
var smokeQueries = []string{
	"foods for high blood glucose",
	"Vata dosha diet recommendations",
	"liver health support",
}

const (
	reinitPrompt  = "Do you want to reinitialize? This will clear existing data. (yes/no): "
	cancelledMsg  = "Initialization cancelled."
	previewLength = 150
	smokeTopK     = 2
)

func newBootstrapCmd(c *cli) *cobra.Command {
	var (
		yes        bool
		jsonReport bool
	)
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Load the Ayurvedic knowledge base into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runBootstrap(ctx, a, c.in, c.out, yes, jsonReport)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Rebuild without asking when the index is not empty")
	cmd.Flags().BoolVar(&jsonReport, "json", false, "Print the load report as JSON")
	return cmd
}

func runBootstrap(ctx context.Context, a *app.App, in io.Reader, out io.Writer, yes, jsonReport bool) error {
	fmt.Fprintln(out, banner("Ayurvedic Glucose Predictor - Knowledge Base Initialization"))
	fmt.Fprintln(out)

	count, err := a.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	fmt.Fprintf(out, "Current documents: %d\n", count)

	var report *corpus.LoadReport
	if count > 0 {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("Warning: the index already contains %d documents.", count)))
		if !yes && !confirm(in, out, reinitPrompt) {
			fmt.Fprintln(out, cancelledMsg)
			return nil
		}
		fmt.Fprintln(out, "Clearing existing collection...")
		report, err = a.Loader.Rebuild(ctx)
	} else {
		fmt.Fprintln(out, "\nLoading Ayurvedic knowledge corpus...")
		report, err = a.Loader.Load(ctx)
	}
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}

	if err := a.Graph.StoreFoods(ctx, a.Corpus.Foods); err != nil {
		return fmt.Errorf("storing food graph: %w", err)
	}

	if jsonReport {
		data, err := report.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		report.PrintSummary(out)
	}

	final, err := a.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	fmt.Fprintln(out, okStyle.Render("\nSuccessfully initialized the knowledge base!"))
	fmt.Fprintf(out, "Total documents: %d\n", final)
	fmt.Fprintf(out, "Foods in graph: %d\n", len(a.Corpus.Foods))

	fmt.Fprintln(out)
	fmt.Fprintln(out, banner("Testing Search Functionality"))
	for _, q := range smokeQueries {
		fmt.Fprintf(out, "\nQuery: '%s'\n", q)
		results, err := a.Searcher.Search(ctx, q, smokeTopK)
		if err != nil {
			return fmt.Errorf("smoke query %q: %w", q, err)
		}
		printResults(out, results)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, banner("Knowledge base initialization complete!"))
	fmt.Fprintln(out, mutedStyle.Render("\nStart the worker with: worker --config agni.yaml"))
	return nil
}

// confirm reads one line from in and reports whether it is "yes".
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

func printResults(out io.Writer, results []vector.SearchResult) {
	for i, r := range results {
		fmt.Fprintf(out, "\n  Result %d:\n", i+1)
		fmt.Fprintf(out, "  %s...\n", preview(r.Document, previewLength))
		if len(r.Metadata) > 0 {
			fmt.Fprintf(out, "  Metadata: %s\n", formatMetadata(r.Metadata))
		}
	}
}

// preview returns the first n runes of s.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func formatMetadata(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
