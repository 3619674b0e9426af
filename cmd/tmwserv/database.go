package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/config"
	"github.com/tmwgo/server/internal/link"
	"github.com/tmwgo/server/internal/persist"
)

// openDB connects to PostgreSQL and brings the schema up to date.
func openDB(cfg config.DatabaseConfig, log *zap.Logger) (*persist.DB, error) {
	printSection("資料庫")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	printOK("PostgreSQL 連線成功")

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	printOK("資料庫遷移完成")
	fmt.Println()
	return db, nil
}

// openRedis connects the authorization link.
func openRedis(cfg config.RedisConfig) (*redis.Client, error) {
	printSection("授權連結")

	client, err := link.NewRedisClient(cfg.URL, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	printOK("Redis 連線成功")
	fmt.Println()
	return client, nil
}

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup(load)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDB(cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			version, err := persist.MigrationVersion(ctx, db.Pool)
			if err != nil {
				return fmt.Errorf("migration version: %w", err)
			}
			printStat("資料庫版本", int(version))
			return nil
		},
	}
}
