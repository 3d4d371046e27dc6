package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/config"
	"github.com/PratikDhanave/portfolio-inbox/internal/logging"
	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
	"github.com/PratikDhanave/portfolio-inbox/internal/store"
)

// loadRuntime reads config and builds the logger every command needs.
func loadRuntime() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// openStore connects to the configured driver and applies the schema.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		st, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		st, err = store.NewPostgresStore(ctx, cfg.DBURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return st, nil
}

// openStats prefers Redis when configured. An unreachable Redis degrades to
// in-process counters rather than blocking startup.
func openStats(ctx context.Context, cfg config.StatsConfig, log *zap.Logger) (ratelimit.StatsStore, func()) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryStatsStore(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		log.Warn("redis unavailable, contact stats kept in memory",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return ratelimit.NewMemoryStatsStore(), func() {}
	}

	log.Info("contact stats backed by redis", zap.String("addr", cfg.RedisAddr))
	return ratelimit.NewRedisStatsStore(rdb,
		ratelimit.WithStatsPrefix(cfg.Prefix),
		ratelimit.WithStatsTTL(cfg.TTL),
	), func() { _ = rdb.Close() }
}
