// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package studio_web_routers

import (
	"github.com/gin-gonic/gin"

	studioRouters "github.com/rapidaai/demostudio/api/studio-api/router"
	"github.com/rapidaai/demostudio/config"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/connectors"
)

// StudioApiRoute mounts everything the studio service serves: chunk
// ingestion, finalize, the viewer websocket, and health probes.
func StudioApiRoute(
	Cfg *config.AppConfig,
	Engine *gin.Engine,
	Logger commons.Logger,
	Database connectors.DatabaseConnector,
	Redis connectors.RedisConnector,
) error {
	if err := studioRouters.RecordingApiRoute(Cfg, Engine, Logger, Database, Redis); err != nil {
		return err
	}
	studioRouters.HealthCheckRoutes(Cfg, Engine, Logger, Database, Redis)
	return nil
}
