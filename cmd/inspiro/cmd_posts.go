package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"inspiro/internal/analytics"
	"inspiro/internal/cmdlog"
	"inspiro/internal/config"
	"inspiro/internal/fbclient"
	"inspiro/internal/jobs"
	"inspiro/internal/model"
	"inspiro/internal/schedule"
	"inspiro/internal/suggest"
	"inspiro/internal/theme"
)

var (
	initForce    bool
	schedDate    string
	schedTime    string
	pruneDays    int
	postsSummary bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("init", func() error {
			if _, err := os.Stat(cfgPath); err == nil && !initForce {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			if err := config.Save(cfgPath, config.Default()); err != nil {
				return err
			}
			theme.PrintBanner(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgPath)
			return nil
		})
	},
}

// withScheduler opens the configured store and publisher for one command.
func withScheduler(ctx context.Context, f func(*schedule.Service, *fbclient.Client) error) error {
	rt := &runtime{}
	defer rt.Close()
	sched, fb, err := rt.scheduler(ctx, cfg)
	if err != nil {
		return err
	}
	return f(sched, fb)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule <caption>",
	Short: "Schedule a caption for publishing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("schedule", func() error {
			if schedDate == "" || schedTime == "" {
				return errors.New("both --date and --time are required")
			}
			when, err := schedule.ParseDateTime(schedDate, schedTime, cfg.Models.Location())
			if err != nil {
				return err
			}
			return withScheduler(cmd.Context(), func(s *schedule.Service, _ *fbclient.Client) error {
				p, err := s.Schedule(cmd.Context(), args[0], when)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Scheduled %s for %s\n", p.ID, schedule.ReadableFormat(p.ScheduledAt))
				fmt.Fprintf(w, "Countdown: %s\n", schedule.CountdownTo(p.ScheduledAt, time.Now()))
				return nil
			})
		})
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Manage scheduled posts",
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("posts_list", func() error {
			return withScheduler(cmd.Context(), func(s *schedule.Service, _ *fbclient.Client) error {
				posts, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if err := printPosts(w, posts, time.Now()); err != nil {
					return err
				}
				if postsSummary {
					printSummary(w, analytics.Summarize(posts, cfg.Models.Location()))
				}
				return nil
			})
		})
	},
}

func printPosts(w io.Writer, posts []model.ScheduledPost, now time.Time) error {
	if len(posts) == 0 {
		fmt.Fprintln(w, "No scheduled posts.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSCHEDULED\tCOUNTDOWN\tCAPTION")
	for _, p := range posts {
		countdown := "-"
		if p.Status == model.StatusPending {
			countdown = schedule.CountdownTo(p.ScheduledAt, now).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Status,
			schedule.ReadableFormat(p.ScheduledAt), countdown, suggest.Preview(p.Caption, 40))
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s analytics.Summary) {
	fmt.Fprintf(w, "\n%d posts: %d pending, %d posted, %d failed (success rate %.0f%%)\n",
		s.Total, s.ByStatus[string(model.StatusPending)], s.ByStatus[string(model.StatusPosted)],
		s.ByStatus[string(model.StatusFailed)], s.SuccessRate*100)
	for _, h := range analytics.SortedHours(s.ByHour) {
		fmt.Fprintf(w, "  %02d:00  %d\n", h, s.ByHour[h])
	}
	if s.NextDue != nil {
		fmt.Fprintf(w, "Next due: %s (%s)\n", s.NextDue.ID, schedule.ReadableFormat(s.NextDue.ScheduledAt))
	}
}

var postsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a scheduled post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("posts_delete", func() error {
			return withScheduler(cmd.Context(), func(s *schedule.Service, _ *fbclient.Client) error {
				if err := s.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		})
	},
}

var postsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove finished posts older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("posts_prune", func() error {
			days := cfg.Scheduler.RetainDays
			if cmd.Flags().Changed("days") {
				days = pruneDays
			}
			if days < 0 {
				return fmt.Errorf("--days must not be negative, got %d", days)
			}
			cutoff := time.Now().AddDate(0, 0, -days)
			return withScheduler(cmd.Context(), func(s *schedule.Service, _ *fbclient.Client) error {
				n, err := s.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d post(s)\n", n)
				return nil
			})
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <caption>",
	Short: "Publish a caption to the Facebook Page immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("publish", func() error {
			caption, err := model.ValidateCaption(args[0])
			if err != nil {
				return err
			}
			fb := publisher(cfg)
			if fb == nil {
				return fbclient.ErrCredentials
			}
			id, err := fb.Publish(cmd.Context(), caption)
			if err != nil {
				_, msg := fbclient.Describe(err)
				return fmt.Errorf("%s: %w", msg, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n%s\n", id, fbclient.PostURL(id))
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Publish every due post once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("check", func() error {
			return withScheduler(cmd.Context(), func(s *schedule.Service, _ *fbclient.Client) error {
				changed, err := jobs.RunPublishOnce(cmd.Context(), s)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%d post(s) processed\n", len(changed))
				for _, p := range changed {
					if p.Status == model.StatusFailed {
						fmt.Fprintf(w, "  %s %s: %s\n", p.ID, p.Status, p.Error)
					} else {
						fmt.Fprintf(w, "  %s %s %s\n", p.ID, p.Status, p.ExternalID)
					}
				}
				return nil
			})
		})
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
	scheduleCmd.Flags().StringVar(&schedDate, "date", "", "date, e.g. 2024-12-15 or 15/12/2024")
	scheduleCmd.Flags().StringVar(&schedTime, "time", "", "time of day, e.g. 18:30 or 6:30 PM")
	postsListCmd.Flags().BoolVar(&postsSummary, "summary", false, "print outcome and hour totals")
	postsPruneCmd.Flags().IntVar(&pruneDays, "days", 0, "retention in days (default scheduler.retainDays)")
	postsCmd.AddCommand(postsListCmd, postsDeleteCmd, postsPruneCmd)
	rootCmd.AddCommand(initCmd, scheduleCmd, postsCmd, publishCmd, checkCmd)
}
