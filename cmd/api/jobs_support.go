package main

import (
	"context"
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/sort-forge/internal/bus"
	"github.com/yourusername/sort-forge/internal/config"
	"github.com/yourusername/sort-forge/internal/jobs"
)

// setupJobs は状態ストアとイベント配信を組み立て、Manager を返します。
// 返される関数は接続を閉じます。
func setupJobs(ctx context.Context, cfg *config.Config, runner jobs.Runner, logger *slog.Logger) (*jobs.Manager, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, closeStore, err := setupStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeStore)

	var publisher jobs.EventPublisher = jobs.NopPublisher{}
	if cfg.NATSURL != "" {
		client, err := bus.Connect(cfg.NATSURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, client.Close)
		publisher = bus.NewStatusPublisher(client, cfg.StatusSubject)
		logger.Info("publishing job events", "subject", cfg.StatusSubject)
	}

	manager, err := jobs.NewManager(store, jobs.NewValidator(cfg.MaxConcurrency), runner, jobs.ManagerOptions{
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return manager, closeAll, nil
}

func setupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (jobs.Store, func(), error) {
	if cfg.StatusBackend != config.StatusBackendRedis {
		return jobs.NewMemoryStore(), func() {}, nil
	}

	opt, err := redis.ParseURL(cfg.StatusRedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("using redis status store", "addr", opt.Addr, "ttl", cfg.JobTTL())
	return jobs.NewRedisStore(redisClient, cfg.JobTTL()), func() { _ = redisClient.Close() }, nil
}
