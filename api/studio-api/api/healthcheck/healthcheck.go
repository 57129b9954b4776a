// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package studio_healthcheck_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/demostudio/config"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/connectors"
)

type HealthCheckApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	database connectors.DatabaseConnector
	redis    connectors.RedisConnector
}

func New(cfg *config.AppConfig, logger commons.Logger, database connectors.DatabaseConnector, redis connectors.RedisConnector) *HealthCheckApi {
	return &HealthCheckApi{cfg: cfg, logger: logger, database: database, redis: redis}
}

// Healthz reports process liveness only.
func (hApi *HealthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": hApi.cfg.Name,
		"version": hApi.cfg.Version,
		"status":  "ok",
	})
}

// Readiness additionally checks the backing connectors.
func (hApi *HealthCheckApi) Readiness(c *gin.Context) {
	sqlDB, err := hApi.database.DB(c.Request.Context()).DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		hApi.logger.Errorf("healthcheck: database not ready: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
		return
	}
	if hApi.redis != nil {
		if err := hApi.redis.Ping(c.Request.Context()); err != nil {
			hApi.logger.Errorf("healthcheck: redis not ready: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
