// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	routers "github.com/rapidaai/demostudio/api/routers"
	"github.com/rapidaai/demostudio/config"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/connectors"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Unable to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("Unable to load application config: %v", err)
	}

	logger, err := commons.NewApplicationLogger()
	if err != nil {
		log.Fatalf("Unable to initialize logger: %v", err)
	}
	defer logger.Sync()

	database, err := connectors.NewDatabaseConnector(cfg.DatabaseConfig, logger)
	if err != nil {
		logger.Fatalf("Unable to open metadata database: %v", err)
	}
	defer database.Close()

	redis := connectors.NewRedisConnector(cfg.RedisConfig, logger)
	defer redis.Close()
	if err := redis.Ping(context.Background()); err != nil {
		// Identity caching degrades gracefully without Redis.
		logger.Warnf("Redis unavailable, identity cache disabled: %v", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "x-external-account"},
		MaxAge:          12 * time.Hour,
	}))
	engine.MaxMultipartMemory = 64 << 20

	if err := routers.StudioApiRoute(cfg, engine, logger, database, redis); err != nil {
		logger.Fatalf("Unable to mount studio routes: %v", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	go func() {
		logger.Infof("%s %s listening on %s", cfg.Name, cfg.Version, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}
