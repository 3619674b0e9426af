package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmwgo/server/internal/account"
	"github.com/tmwgo/server/internal/config"
	coresys "github.com/tmwgo/server/internal/core/system"
	"github.com/tmwgo/server/internal/link"
	"github.com/tmwgo/server/internal/metrics"
	gonet "github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/persist"
	"github.com/tmwgo/server/internal/system"
)

// accountServer is one account server process. It runs the same
// listener/loop stack as the game server with its own registry.
type accountServer struct {
	server   *gonet.Server
	service  *account.Service
	runner   *coresys.Runner
	input    *system.InputSystem
	metrics  *metrics.Registry
	tickRate time.Duration
	log      *zap.Logger
}

func newAccountServer(cfg *config.Config, db *persist.DB, pub link.Publisher, log *zap.Logger) (*accountServer, error) {
	srv, err := gonet.NewServer(cfg.Account.BindAddress, sessionOptions(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("account listener: %w", err)
	}

	svc := account.NewService(
		persist.NewAccountRepo(db, cfg.Account.BcryptCost),
		persist.NewCharacterRepo(db),
		pub,
		account.GameAddr{Host: cfg.Game.PublicHost, Port: cfg.Game.PublicPort},
		cfg.Account,
		log,
	)
	reg := packet.NewRegistry(log)
	svc.RegisterAll(reg)

	store := gonet.NewSessionStore()
	m := metrics.New("account")
	input := system.NewInputSystem(srv, reg, store, cfg.Network.MaxPacketsPerTick, system.AccountAuthenticated, log)
	input.OnDisconnect(svc.OnDisconnect)
	input.HoldWhile(svc.Busy)
	metricsSys := system.NewMetricsSystem(m, store, nil)
	metricsSys.Subscribe(nil, input)

	runner := coresys.NewRunner()
	runner.Register(input)
	runner.Register(system.NewCompletionSystem(svc))
	runner.Register(metricsSys)
	runner.Register(system.NewOutputSystem(store))

	return &accountServer{
		server:   srv,
		service:  svc,
		runner:   runner,
		input:    input,
		metrics:  m,
		tickRate: cfg.Account.TickRate,
		log:      log,
	}, nil
}

func (a *accountServer) start(ctx context.Context, eg *errgroup.Group) {
	eg.Go(a.server.AcceptLoop)
	eg.Go(func() error { return a.service.Run(ctx) })
	eg.Go(func() error {
		<-ctx.Done()
		a.server.Shutdown()
		return nil
	})
	eg.Go(func() error {
		err := a.runner.Run(ctx, a.tickRate)
		a.input.CloseAll()
		a.log.Info("帳號伺服器已停止")
		return err
	})

	printReady(fmt.Sprintf("帳號伺服器監聽 %s", a.server.Addr().String()))
}

func newAccountCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Run the account server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup(load)
			if err != nil {
				return err
			}
			defer log.Sync()
			printBanner(cfg.Server.Name, cfg.Server.ID, "account")

			db, err := openDB(cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := openRedis(cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()
			pub := link.NewRedisPublisher(client, link.Key(cfg.Redis.AuthorizeKey, cfg.Server.Name))

			acct, err := newAccountServer(cfg, db, pub, log)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(log)
			defer cancel()
			eg, ctx := errgroup.WithContext(ctx)

			printSection("伺服器就緒")
			acct.start(ctx, eg)
			serveMetrics(ctx, eg, cfg.Metrics, log, acct.metrics.WithRuntime())
			fmt.Println()

			return eg.Wait()
		},
	}
}
