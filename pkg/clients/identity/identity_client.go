// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package identity_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/rapidaai/demostudio/config"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/connectors"
)

// ErrUnconfigured means no identity service host is set; recordings are
// then stored unattributed.
var ErrUnconfigured = errors.New("identity service not configured")

const (
	identityCacheKey = "identity:account:%s"
	identityCacheTTL = 15 * time.Minute
)

// Identity is the resolved owner of a capture session.
type Identity struct {
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name,omitempty"`
}

type IdentityServiceClient interface {
	// ResolveUser maps an external account id to the internal identity,
	// reading through the Redis cache.
	ResolveUser(ctx context.Context, externalAccountID string) (*Identity, error)
	InvalidateUser(ctx context.Context, externalAccountID string) error
}

type identityServiceClient struct {
	cfg    *config.AppConfig
	logger commons.Logger
	redis  connectors.RedisConnector
	http   *resty.Client
	// Collapses concurrent lookups for the same account into one upstream
	// call; finalize bursts tend to repeat the same few accounts.
	group singleflight.Group
}

func NewIdentityServiceClient(cfg *config.AppConfig, logger commons.Logger, redis connectors.RedisConnector) IdentityServiceClient {
	client := resty.New().
		SetBaseURL(cfg.IdentityHost).
		SetTimeout(10 * time.Second)
	return &identityServiceClient{
		cfg:    cfg,
		logger: logger,
		redis:  redis,
		http:   client,
	}
}

func (c *identityServiceClient) ResolveUser(ctx context.Context, externalAccountID string) (*Identity, error) {
	if c.cfg.IdentityHost == "" {
		return nil, ErrUnconfigured
	}
	if externalAccountID == "" {
		return nil, fmt.Errorf("empty external account id")
	}

	key := fmt.Sprintf(identityCacheKey, externalAccountID)
	if cached, err := c.redis.Client().Get(ctx, key).Result(); err == nil {
		identity := &Identity{}
		if err := json.Unmarshal([]byte(cached), identity); err == nil {
			return identity, nil
		}
		// Poisoned entry: fall through to the source of truth.
		c.redis.Client().Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warnf("identity: cache read failed for %s: %v", externalAccountID, err)
	}

	resolved, err, _ := c.group.Do(externalAccountID, func() (interface{}, error) {
		identity := &Identity{}
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(identity).
			Get(fmt.Sprintf("/v1/account/%s", externalAccountID))
		if err != nil {
			return nil, fmt.Errorf("identity lookup failed for %s: %w", externalAccountID, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("identity lookup rejected for %s: %s", externalAccountID, resp.Status())
		}

		if raw, err := json.Marshal(identity); err == nil {
			if err := c.redis.Client().Set(ctx, key, raw, identityCacheTTL).Err(); err != nil {
				c.logger.Warnf("identity: cache write failed for %s: %v", externalAccountID, err)
			}
		}
		return identity, nil
	})
	if err != nil {
		return nil, err
	}
	return resolved.(*Identity), nil
}

func (c *identityServiceClient) InvalidateUser(ctx context.Context, externalAccountID string) error {
	key := fmt.Sprintf(identityCacheKey, externalAccountID)
	return c.redis.Client().Del(ctx, key).Err()
}
