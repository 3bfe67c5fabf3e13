package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/agni/internal/graph"
	"github.com/efebarandurmaz/agni/internal/retrieval"
)

func newSearchCmd(c *cli) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the knowledge index directly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			if err := ensureLoaded(ctx, a); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			results, err := a.Searcher.Search(ctx, query, k)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s %s\n", labelStyle.Render("Query:"), query)
			for i, r := range results {
				fmt.Fprintf(c.out, "\n%d. %s %s\n", i+1, mutedStyle.Render(fmt.Sprintf("distance=%.4f", r.Distance)), mutedStyle.Render(r.ID))
				fmt.Fprintf(c.out, "   %s\n", r.Document)
				if len(r.Metadata) > 0 {
					fmt.Fprintf(c.out, "   Metadata: %s\n", formatMetadata(r.Metadata))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 3, "Number of results")
	return cmd
}

func newSuggestCmd(c *cli) *cobra.Command {
	var condition, dosha string
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Recommend foods for a health condition",
		Long: "Recommend foods for a health condition. Known conditions: " +
			strings.Join(retrieval.Conditions(), ", ") + ". Other names are matched fuzzily.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			if err := ensureLoaded(ctx, a); err != nil {
				return err
			}

			recs, err := a.Recommender.FoodRecommendations(ctx, condition, dosha)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s %s\n", labelStyle.Render("Knowledge for:"), retrieval.ResolveCondition(condition))
			for _, r := range recs {
				fmt.Fprintf(c.out, "  %s %s...\n", okStyle.Render(fmt.Sprintf("%.2f", r.Relevance)), preview(r.Context, previewLength))
			}

			if err := a.Graph.StoreFoods(ctx, a.Corpus.Foods); err != nil {
				return fmt.Errorf("storing food graph: %w", err)
			}
			foods, err := a.Graph.FoodsForCondition(ctx, condition, dosha)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "\n%s %s\n", labelStyle.Render("Foods for"), graph.ConditionTerm(condition))
			if len(foods) == 0 {
				fmt.Fprintln(c.out, mutedStyle.Render("  no foods in the database support this condition"))
			}
			for _, f := range foods {
				var b strings.Builder
				fmt.Fprintf(&b, "%s (%s)\n", titleStyle.Render(f.Name), f.Sanskrit)
				fmt.Fprintf(&b, "Taste: %s\nQualities: %s\nDosha effects: %s\n", f.Taste, f.Qualities, f.DoshaEffects)
				fmt.Fprintf(&b, "Benefits: %s\nQuantity: %s\nPreparation: %s", f.Benefits, f.Quantity, f.Preparation)
				fmt.Fprintln(c.out, cardStyle.Render(b.String()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&condition, "condition", "", "Condition, e.g. glucose, cholesterol, liver")
	cmd.Flags().StringVar(&dosha, "dosha", "", "Restrict to foods that balance this dosha")
	_ = cmd.MarkFlagRequired("condition")
	return cmd
}
