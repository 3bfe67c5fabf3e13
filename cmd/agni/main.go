package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/agni/internal/app"
	"github.com/efebarandurmaz/agni/internal/config"
	"github.com/efebarandurmaz/agni/internal/llm"
)

// cli carries what every command shares.
type cli struct {
	configPath string
	in         io.Reader
	out        io.Writer
	errOut     io.Writer

	// cfg overrides loading from configPath; tests set it.
	cfg *config.Config
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	return config.Load(c.configPath)
}

// open builds the pipeline. The caller closes it.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.NewLogger(c.errOut, cfg.Log))
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "agni",
		Short:         "Ayurvedic glucose prediction grounded in a retrieved knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file path (optional)")
	rootCmd.SetIn(c.in)
	rootCmd.SetOut(c.out)
	rootCmd.SetErr(c.errOut)

	rootCmd.AddCommand(
		newBootstrapCmd(c),
		newPredictCmd(c),
		newSearchCmd(c),
		newSuggestCmd(c),
		newProvidersCmd(c),
	)
	return rootCmd
}

func newProvidersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, len(llm.KnownProviders))
			for name := range llm.KnownProviders {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Fprintln(c.out, titleStyle.Render("Available LLM providers:"))
			fmt.Fprintln(c.out)
			for _, name := range names {
				fmt.Fprintf(c.out, "  %-14s %s\n", name, llm.KnownProviders[name])
			}
			fmt.Fprintln(c.out, "  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Fprintln(c.out, "  none           (retrieval only; predict is unavailable)")
			fmt.Fprintln(c.out)
			fmt.Fprintln(c.out, mutedStyle.Render("Configure in agni.yaml, .env or via environment:"))
			fmt.Fprintln(c.out, "  AGNI_LLM_PROVIDER=groq")
			fmt.Fprintln(c.out, "  AGNI_LLM_API_KEY=gsk_...")
			fmt.Fprintln(c.out, "  AGNI_EMBEDDING_PROVIDER=ollama")
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &cli{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
