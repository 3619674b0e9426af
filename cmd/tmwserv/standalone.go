package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmwgo/server/internal/config"
	"github.com/tmwgo/server/internal/link"
	"github.com/tmwgo/server/internal/metrics"
	"github.com/tmwgo/server/internal/persist"
)

// newStandaloneCmd runs both servers in one process. Authorizations still
// travel as messages, over an in-process channel instead of Redis.
func newStandaloneCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "standalone",
		Short: "Run the account and game servers in one process",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup(load)
			if err != nil {
				return err
			}
			defer log.Sync()
			printBanner(cfg.Server.Name, cfg.Server.ID, "standalone")

			db, err := openDB(cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			ch := link.NewChannel(persist.NewCharacterRepo(db), 256, log)

			game, err := newGameServer(cfg, db, ch, log)
			if err != nil {
				return err
			}
			acct, err := newAccountServer(cfg, db, ch, log)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(log)
			defer cancel()
			eg, ctx := errgroup.WithContext(ctx)

			printSection("伺服器就緒")
			acct.start(ctx, eg)
			game.start(ctx, eg)
			serveMetrics(ctx, eg, cfg.Metrics, log, game.metrics.WithRuntime(), acct.metrics)
			fmt.Println()

			return eg.Wait()
		},
	}
}

// serveMetrics exposes the registries on one endpoint when enabled.
func serveMetrics(ctx context.Context, eg *errgroup.Group, cfg config.MetricsConfig, log *zap.Logger, regs ...*metrics.Registry) {
	if !cfg.Enabled {
		return
	}
	gatherers := make(prometheus.Gatherers, 0, len(regs))
	for _, r := range regs {
		gatherers = append(gatherers, r.Gatherer())
	}
	eg.Go(func() error { return metrics.Serve(ctx, cfg.BindAddress, gatherers, log) })
	printReady(fmt.Sprintf("指標服務 http://%s/metrics", cfg.BindAddress))
}
