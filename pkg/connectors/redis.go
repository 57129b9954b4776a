// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package connectors

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/configs"
)

// RedisConnector exposes the shared Redis client used for client-side
// caches (identity resolution and friends).
type RedisConnector interface {
	Client() *redis.Client
	Ping(ctx context.Context) error
	Close() error
}

type redisConnector struct {
	client *redis.Client
	logger commons.Logger
}

func NewRedisConnector(cfg configs.RedisConfig, logger commons.Logger) RedisConnector {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	return &redisConnector{client: client, logger: logger}
}

func (r *redisConnector) Client() *redis.Client {
	return r.client
}

func (r *redisConnector) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *redisConnector) Close() error {
	return r.client.Close()
}
