package main

import (
	"context"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inspiro/internal/api"
	"inspiro/internal/cmdlog"
	"inspiro/internal/jobs"
	"inspiro/internal/logging"
	"inspiro/internal/metrics"
	"inspiro/internal/monitoring"
	"inspiro/internal/suggest"
)

var (
	serveAddr   string
	noScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled-post publisher",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("serve", func() error {
			if serveAddr != "" {
				cfg.Server.Addr = serveAddr
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt := &runtime{}
			defer rt.Close()

			metrics.StartServer(cfg.Metrics.Addr)
			pred := rt.predictor(ctx, cfg)
			sched, fb, err := rt.scheduler(ctx, cfg)
			if err != nil {
				return err
			}

			deps := api.Deps{
				Predict:  pred,
				Schedule: sched,
				Rewriter: suggest.NewRewriter(nil),
				Polisher: suggest.NewPolisher(cfg.LLM),
			}
			bg := startWorkers(ctx)
			// Runs before rt.Close so no worker touches a closed store.
			defer bg.Stop()

			if fb != nil {
				deps.Publisher = fb
				healthy := &atomic.Bool{}
				deps.TokenHealthy = healthy
				bg.Go(func(ctx context.Context) {
					monitoring.MonitorToken(ctx, fb, cfg.Facebook.TokenCheckInterval, healthy)
				})
			} else {
				logging.Warn("facebook_not_configured", map[string]any{"hint": "set FACEBOOK_TOKEN and FACEBOOK_PAGE_ID"})
			}
			if !noScheduler {
				bg.Go(func(ctx context.Context) {
					if err := jobs.RunPublishLoop(ctx, sched, cfg.Scheduler.Interval); err != nil && ctx.Err() == nil {
						logging.Error("publish_loop_stopped", map[string]any{"error": err.Error()})
					}
				})
			}

			srv := api.New(cfg.Server, deps)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			bg.Stop()
			logging.Info("serve_stopped", nil)
			return err
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not publish due posts from this process")
	rootCmd.AddCommand(serveCmd)
}

// workers runs background loops under one cancelable context.
type workers struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startWorkers(parent context.Context) *workers {
	ctx, cancel := context.WithCancel(parent)
	return &workers{ctx: ctx, cancel: cancel}
}

func (w *workers) Go(f func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		f(w.ctx)
	}()
}

// Stop cancels every worker and waits for them to return. It is safe to call
// more than once.
func (w *workers) Stop() {
	w.cancel()
	w.wg.Wait()
}
