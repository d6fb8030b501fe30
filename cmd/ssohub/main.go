package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/wikimesh/ssohub/config"
	"github.com/wikimesh/ssohub/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting ssohub",
		"sul2", cfg.SSO.SUL2Domain,
		"sul3", cfg.SSO.SUL3Domain,
		"autologin", cfg.SSO.AutologinDomain,
		"wikis", len(cfg.SSO.Wikis),
		"dev", cfg.IsDev,
	)

	pools, err := bootstrap.ConnectDB(cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pools.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()

	redisClient, err := connectRedisOrDev(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, pools.Primary, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		Pools:       pools,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	server := bootstrap.StartHTTPServer(&cfg, services, logger)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	return bootstrap.ShutdownHTTPServer(ctx, server, services, logger)
}

// connectRedisOrDev connects to redis, tolerating its absence only in dev
// mode, where the in-memory stores take over.
//
//nolint:ireturn // redis.UniversalClient keeps sentinel/cluster support flexible.
func connectRedisOrDev(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	client, err := bootstrap.ConnectRedis(cfg.Redis, logger)
	if err == nil {
		return client, nil
	}
	if cfg.IsDev {
		logger.WarnContext(ctx, "redis unavailable, falling back to in-memory stores", "error", err)
		return nil, nil
	}
	return nil, fmt.Errorf("connect redis: %w", err)
}
