package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/agni/internal/app"
	"github.com/efebarandurmaz/agni/internal/prediction"
	"github.com/efebarandurmaz/agni/internal/schema"
	"github.com/efebarandurmaz/agni/internal/temporal"
)

type predictFlags struct {
	meals            []string
	exerciseType     string
	exerciseDuration string
	lifestyle        string
	dosha            string
	user             string
	json             bool
	remote           bool
}

func (f predictFlags) request() schema.PredictionRequest {
	req := schema.PredictionRequest{
		MealItems:        f.meals,
		LifestyleFactors: f.lifestyle,
		Dosha:            f.dosha,
	}
	if f.exerciseType != "" {
		req.Exercise = &schema.Exercise{Type: f.exerciseType, Duration: f.exerciseDuration}
	}
	return req
}

func newPredictCmd(c *cli) *cobra.Command {
	var f predictFlags
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the glucose response to a meal",
		Example: `  agni predict --meal "white rice" --meal dal --dosha Kapha
  agni predict --meal oats --exercise-type walking --exercise-duration "30 minutes" --remote`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := f.request()
			if err := prediction.ValidateRequest(req); err != nil {
				return err
			}

			var (
				result *prediction.Result
				err    error
			)
			if f.remote {
				result, err = c.predictRemote(ctx, f.user, req)
			} else {
				result, err = c.predictLocal(ctx, f.user, req)
			}
			if err != nil {
				return err
			}

			if f.json {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			renderPrediction(c.out, result)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&f.meals, "meal", nil, "Meal item (repeatable)")
	cmd.Flags().StringVar(&f.exerciseType, "exercise-type", "", "Exercise type, e.g. walking")
	cmd.Flags().StringVar(&f.exerciseDuration, "exercise-duration", "", "Exercise duration, e.g. 30 minutes")
	cmd.Flags().StringVar(&f.lifestyle, "lifestyle", "", "Other factors such as sleep or stress")
	cmd.Flags().StringVar(&f.dosha, "dosha", "", "Primary dosha (default "+schema.DefaultDosha+")")
	cmd.Flags().StringVar(&f.user, "user", "", "User id for the 7-day stats lookup")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&f.remote, "remote", false, "Run through the Temporal worker")
	_ = cmd.MarkFlagRequired("meal")
	return cmd
}

func (c *cli) predictLocal(ctx context.Context, userID string, req schema.PredictionRequest) (*prediction.Result, error) {
	a, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer a.Close(context.Background())

	if err := ensureLoaded(ctx, a); err != nil {
		return nil, err
	}
	return a.Predict(ctx, userID, req)
}

func (c *cli) predictRemote(ctx context.Context, userID string, req schema.PredictionRequest) (*prediction.Result, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	tc, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client: %w", err)
	}
	defer tc.Close()

	out, err := temporal.Predict(ctx, tc, cfg.Temporal.TaskQueue, temporal.PredictionInput{
		UserID:  userID,
		Request: req,
	})
	if err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// ensureLoaded loads the corpus into an empty index. It never clears.
func ensureLoaded(ctx context.Context, a *app.App) error {
	report, err := a.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}
	if !report.Skipped {
		a.Logger.Info("knowledge base loaded on demand", "documents", report.Documents)
	}
	return nil
}

func renderPrediction(out io.Writer, r *prediction.Result) {
	resp := r.Response

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Predicted glucose:"), titleStyle.Render(resp.PredictedGlucose))
	fmt.Fprintf(&b, "%s\n%s\n", labelStyle.Render("Explanation"), resp.Explanation)

	if len(resp.Recommendations) > 0 {
		fmt.Fprintf(&b, "\n%s\n", labelStyle.Render("Recommendations"))
		for _, rec := range resp.Recommendations {
			fmt.Fprintf(&b, "  • %s\n", rec)
		}
	}
	for _, s := range resp.DietarySuggestions {
		fmt.Fprintf(&b, "\n%s\n", labelStyle.Render(s.Meal))
		if s.FoodsToFavor != "" {
			fmt.Fprintf(&b, "  Favor: %s\n", s.FoodsToFavor)
		}
		if s.FoodsToAvoid != "" {
			fmt.Fprintf(&b, "  Avoid: %s\n", s.FoodsToAvoid)
		}
		if s.Notes != "" {
			fmt.Fprintf(&b, "  %s\n", mutedStyle.Render(s.Notes))
		}
	}

	fmt.Fprintln(out, outcomeBadge(r.Outcome)+" "+mutedStyle.Render("request "+r.RequestID))
	fmt.Fprintln(out, cardStyle.Render(strings.TrimRight(b.String(), "\n")))
}
