package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/target/congregate-api/config"
	"github.com/target/congregate-api/internal/bootstrap"
)

var errRedisNotConfigured = errors.New("redis not configured")

type infraNeeds struct {
	db    bool
	redis bool
}

type infra struct {
	db    *sql.DB
	redis redis.UniversalClient
}

// connectInfra connects only what the command asked for.
func connectInfra(ctx *commandContext, needs infraNeeds) (*infra, error) {
	out := &infra{}
	if needs.db {
		db, err := bootstrap.ConnectDB(ctx.Ctx, bootstrap.DatabaseConfig{DBConfig: ctx.Config.Postgres, Logger: ctx.Logger})
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		out.db = db
	}
	if needs.redis {
		if !hasRedisConfig(&ctx.Config.Redis) {
			out.close(ctx)
			return nil, errRedisNotConfigured
		}
		client, err := bootstrap.ConnectRedis(ctx.Ctx, bootstrap.DatabaseConfig{RedisConfig: ctx.Config.Redis, Logger: ctx.Logger})
		if err != nil {
			out.close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		out.redis = client
	}
	return out, nil
}

func (i *infra) close(ctx *commandContext) {
	var closeErr error
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	if closeErr != nil {
		ctx.Logger.ErrorContext(ctx.Ctx, "close infrastructure", "error", closeErr)
	}
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseCluster {
		return len(cfg.ClusterNodes) > 0 || cfg.URI != ""
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}
