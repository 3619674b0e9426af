package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmwgo/server/internal/config"
	"github.com/tmwgo/server/internal/core/event"
	coresys "github.com/tmwgo/server/internal/core/system"
	"github.com/tmwgo/server/internal/data"
	"github.com/tmwgo/server/internal/handler"
	"github.com/tmwgo/server/internal/link"
	"github.com/tmwgo/server/internal/login"
	"github.com/tmwgo/server/internal/metrics"
	gonet "github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/persist"
	"github.com/tmwgo/server/internal/scripting"
	"github.com/tmwgo/server/internal/system"
	"github.com/tmwgo/server/internal/world"
)

// gameServer is one game server process: listener, game loop and the
// goroutines feeding it.
type gameServer struct {
	server      *gonet.Server
	runner      *coresys.Runner
	persistence *system.PersistenceSystem
	writer      *persist.AsyncWriter
	subscriber  link.Subscriber
	scripts     *scripting.Engine
	metrics     *metrics.Registry
	tickRate    time.Duration
	log         *zap.Logger
}

func newGameServer(cfg *config.Config, db *persist.DB, sub link.Subscriber, log *zap.Logger) (*gameServer, error) {
	printSection("遊戲資料")
	items, err := data.LoadItemTable(cfg.Data.ItemsPath)
	if err != nil {
		return nil, fmt.Errorf("item table: %w", err)
	}
	printStat("物品", items.Count())

	scripts, err := scripting.NewEngine(cfg.Data.ScriptsDir, log)
	if err != nil {
		return nil, fmt.Errorf("lua engine: %w", err)
	}
	printOK("Lua 腳本載入完成")
	fmt.Println()

	srv, err := gonet.NewServer(cfg.Game.BindAddress, sessionOptions(cfg), log)
	if err != nil {
		scripts.Close()
		return nil, fmt.Errorf("game listener: %w", err)
	}

	deps := &handler.Deps{
		World:    world.NewState(),
		Sessions: gonet.NewSessionStore(),
		Items:    items,
		Scripts:  scripts,
		Bus:      event.NewBus(),
		Log:      log,
	}
	deps.Broker = login.NewBroker(handler.BindCharacter(deps), log)
	reg := packet.NewRegistry(log)
	handler.RegisterAll(reg, deps)

	writer := persist.NewAsyncWriter(persist.NewCharacterRepo(db), 1024, log)
	m := metrics.New("game")

	input := system.NewInputSystem(srv, reg, deps.Sessions, cfg.Network.MaxPacketsPerTick, system.GameAuthenticated, log)
	persistence := system.NewPersistenceSystem(deps.World, writer, log, cfg.Game.SaveIntervalTicks)
	input.OnDisconnect(system.GameDisconnect(deps.Broker, deps.World, persistence, deps.Bus, log))
	metricsSys := system.NewMetricsSystem(m, deps.Sessions, deps.Broker)
	metricsSys.Subscribe(deps.Bus, input)

	runner := coresys.NewRunner()
	runner.Register(system.NewEventSystem(deps.Bus)) // before input: last tick's events first
	runner.Register(input)
	runner.Register(system.NewAuthorizeSystem(sub.Grants(), deps.Broker))
	runner.Register(metricsSys)
	runner.Register(system.NewOutputSystem(deps.Sessions))
	runner.Register(persistence)
	runner.Register(system.NewLoginExpirySystem(deps.Broker, deps.Bus, log))

	return &gameServer{
		server:      srv,
		runner:      runner,
		persistence: persistence,
		writer:      writer,
		subscriber:  sub,
		scripts:     scripts,
		metrics:     m,
		tickRate:    cfg.Game.TickRate,
		log:         log,
	}, nil
}

// start launches the server's goroutines on eg. The game loop stops when
// ctx is cancelled, queues a final save of every online character and
// waits for the writer to drain.
func (g *gameServer) start(ctx context.Context, eg *errgroup.Group) {
	eg.Go(g.server.AcceptLoop)
	eg.Go(func() error {
		<-ctx.Done()
		g.server.Shutdown()
		return nil
	})
	eg.Go(func() error { return g.subscriber.Run(ctx) })
	eg.Go(func() error {
		g.writer.Run()
		return nil
	})
	eg.Go(func() error {
		err := g.runner.Run(ctx, g.tickRate)
		g.shutdown()
		return err
	})

	printReady(fmt.Sprintf("遊戲伺服器監聽 %s", g.server.Addr().String()))
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s)", g.tickRate))
}

func (g *gameServer) shutdown() {
	g.persistence.SaveAllPlayers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := g.writer.Close(ctx); err != nil {
		g.log.Error("存檔佇列未清空", zap.Error(err))
	}
	g.scripts.Close()
	g.log.Info("遊戲伺服器已停止", zap.Uint64("ticks", g.runner.Ticks()))
}

func newGameCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "game",
		Short: "Run the game server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup(load)
			if err != nil {
				return err
			}
			defer log.Sync()
			printBanner(cfg.Server.Name, cfg.Server.ID, "game")

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
			sub := link.NewRedisSubscriber(client, link.Key(cfg.Redis.AuthorizeKey, cfg.Server.Name),
				persist.NewCharacterRepo(db), 256, log)

			game, err := newGameServer(cfg, db, sub, log)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(log)
			defer cancel()
			eg, ctx := errgroup.WithContext(ctx)

			printSection("伺服器就緒")
			game.start(ctx, eg)
			serveMetrics(ctx, eg, cfg.Metrics, log, game.metrics.WithRuntime())
			fmt.Println()

			return eg.Wait()
		},
	}
}
