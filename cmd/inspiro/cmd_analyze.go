package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"inspiro/internal/cmdlog"
	"inspiro/internal/model"
	"inspiro/internal/nn"
	"inspiro/internal/predict"
	"inspiro/internal/suggest"
)

var (
	analyzeJSON bool
	bestDay     string
	rewriteSeed int64
	polish      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <caption>",
	Short: "Predict authenticity, emotion and reach for a caption",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("analyze", func() error {
			caption := strings.Join(args, " ")
			ctx := cmd.Context()
			rt := &runtime{}
			defer rt.Close()
			pred := rt.predictor(ctx, cfg)
			if err := pred.Ready(); err != nil {
				return err
			}
			report := analyzeReport{
				Status:  pred.Status(ctx, caption),
				Emotion: pred.Emotion(ctx, caption),
				Reach:   pred.Reach(ctx, caption),
				Suggest: suggest.HeuristicSuggest(caption),
			}
			report.Authenticity = model.ClassifyAuthenticity(caption, report.Status.Label, report.Status.Score)
			if analyzeJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			report.print(cmd.OutOrStdout())
			return nil
		})
	},
}

type analyzeReport struct {
	Status       predict.StatusResult  `json:"status"`
	Authenticity model.Authenticity    `json:"fake_real"`
	Emotion      predict.EmotionResult `json:"emotion"`
	Reach        predict.ReachResult   `json:"reach"`
	Suggest      suggest.Suggestion    `json:"suggestions"`
}

func (r analyzeReport) print(w io.Writer) {
	a := r.Authenticity
	fmt.Fprintf(w, "Authenticity: %s (real %d%%, fake %d%%, spam %d%%)\n", a.Label, a.Real, a.Fake, a.Spam)
	fmt.Fprintf(w, "  %s\n", a.Reason)
	if r.Status.Error != "" {
		fmt.Fprintf(w, "  status error: %s\n", r.Status.Error)
	}
	fmt.Fprintf(w, "Emotion: %s (%d%%)", r.Emotion.Label, model.Percent(r.Emotion.Confidence))
	if r.Emotion.Note != "" {
		fmt.Fprintf(w, " [%s: %s]", r.Emotion.Status, r.Emotion.Note)
	}
	fmt.Fprintln(w)
	if r.Reach.Error != "" {
		fmt.Fprintf(w, "Reach: error: %s\n", r.Reach.Error)
	} else {
		fmt.Fprintf(w, "Reach: %s (p=%.2f)\n", r.Reach.Label, r.Reach.Probability)
	}
	if len(r.Suggest.Keywords) > 0 {
		fmt.Fprintf(w, "Keywords: %s\n", strings.Join(r.Suggest.Keywords, ", "))
	}
	if len(r.Suggest.Hashtags) > 0 {
		fmt.Fprintf(w, "Hashtags: %s\n", strings.Join(r.Suggest.Hashtags, " "))
	}
	fmt.Fprintf(w, "Engaging: %s\n", r.Suggest.Engaging)
	fmt.Fprintf(w, "Professional: %s\n", r.Suggest.Professional)
}

var bestTimeCmd = &cobra.Command{
	Use:   "besttime <caption>",
	Short: "Rank the hours of a day by predicted reach",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("besttime", func() error {
			caption := strings.Join(args, " ")
			ctx := cmd.Context()
			rt := &runtime{}
			defer rt.Close()
			pred := rt.predictor(ctx, cfg)
			if err := pred.Ready(); err != nil {
				return err
			}
			dow, err := resolveDay(pred, bestDay)
			if err != nil {
				return err
			}
			return printBestTimes(ctx, cmd.OutOrStdout(), pred, caption, dow)
		})
	},
}

func resolveDay(pred *predict.Service, day string) (int, error) {
	if day == "" {
		return nn.Weekday(pred.Now()), nil
	}
	return predict.ParseDay(day)
}

func printBestTimes(ctx context.Context, w io.Writer, pred *predict.Service, caption string, dow int) error {
	hours, err := pred.BestTimes(ctx, caption, dow)
	if err != nil {
		return err
	}
	top := predict.TopHours(hours, 3)
	fmt.Fprintf(w, "Best time on %s: %s (p=%.2f)\n", predict.DayName(dow), top[0].Display, top[0].Probability)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTIME\tPROBABILITY")
	for i, h := range top {
		fmt.Fprintf(tw, "%d\t%s\t%.3f\n", i+1, h.Display, h.Probability)
	}
	return tw.Flush()
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <caption>",
	Short: "Rewrite a caption to read as more authentic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("rewrite", func() error {
			caption := strings.Join(args, " ")
			var src rand.Source
			if cmd.Flags().Changed("seed") {
				src = rand.NewSource(rewriteSeed)
			}
			out := suggest.NewRewriter(src).Rewrite(caption)
			if polish {
				p := suggest.NewPolisher(cfg.LLM)
				if !p.Enabled() {
					return fmt.Errorf("llm provider %q cannot polish", cfg.LLM.Provider)
				}
				polished, err := p.Polish(cmd.Context(), caption, out)
				if err != nil {
					return err
				}
				out = polished
			}
			w := cmd.OutOrStdout()
			before, after := suggest.AnalyzeFakeness(caption), suggest.AnalyzeFakeness(out)
			fmt.Fprintln(w, out)
			fmt.Fprintf(w, "\nFakeness: %d issue(s) before, %d after\n", before.Count, after.Count)
			for _, issue := range after.Issues {
				fmt.Fprintf(w, "  - %s\n", issue)
			}
			return nil
		})
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full report as JSON")
	bestTimeCmd.Flags().StringVar(&bestDay, "day", "", "weekday to sweep (default today)")
	rewriteCmd.Flags().Int64Var(&rewriteSeed, "seed", 0, "seed for reproducible rewrites")
	rewriteCmd.Flags().BoolVar(&polish, "polish", false, "polish the rewrite with the configured LLM")
	rootCmd.AddCommand(analyzeCmd, bestTimeCmd, rewriteCmd)
}
