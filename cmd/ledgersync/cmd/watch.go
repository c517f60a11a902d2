package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ledgersync/internal/observability"
	"ledgersync/internal/status"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reconcile on a fixed interval and serve probes, metrics and run summaries",
	Long: `Runs both reconciliations immediately and then every watch.interval (default 24h).
A status server on watch.addr (default :6162) serves:

  GET /healthz     liveness
  GET /readyz      ledger database reachability
  GET /metrics     Prometheus metrics
  GET /runs/last   summary of the latest run per variant`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The meter provider must exist before the engine creates its instruments.
		metricsHandler, shutdownMetrics, err := observability.InitMetrics("ledgersync")
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		defer shutdownMetrics(context.Background())

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		board := status.NewBoard()
		srv := status.New(a.cfg.Watch.Addr, a.store, board, metricsHandler)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			a.log.Info("Status server starting", "addr", a.cfg.Watch.Addr)
			return srv.Run(ctx)
		})
		g.Go(func() error {
			every(ctx, a.cfg.Watch.Interval, func(ctx context.Context) {
				// Failures are logged and recorded on the board; the next tick retries.
				_ = a.reconcileAll(ctx, board)
			})
			return nil
		})

		err = g.Wait()
		a.log.Info("Watch stopped")
		return err
	},
}

// every calls fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
