// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package studio_routers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	studioRecordingApi "github.com/rapidaai/demostudio/api/studio-api/api/recording"
	studioViewerApi "github.com/rapidaai/demostudio/api/studio-api/api/viewer"
	internal_assembler "github.com/rapidaai/demostudio/api/studio-api/internal/assembler"
	internal_delivery "github.com/rapidaai/demostudio/api/studio-api/internal/delivery"
	internal_enrichment_gemini "github.com/rapidaai/demostudio/api/studio-api/internal/enrichment/gemini"
	internal_entity "github.com/rapidaai/demostudio/api/studio-api/internal/entity"
	internal_pipeline "github.com/rapidaai/demostudio/api/studio-api/internal/pipeline"
	internal_storage "github.com/rapidaai/demostudio/api/studio-api/internal/storage"
	internal_synthesizer_deepgram "github.com/rapidaai/demostudio/api/studio-api/internal/synthesizer/deepgram"
	internal_transcriber_deepgram "github.com/rapidaai/demostudio/api/studio-api/internal/transcriber/deepgram"
	"github.com/rapidaai/demostudio/config"
	identity_client "github.com/rapidaai/demostudio/pkg/clients/identity"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/connectors"
	"github.com/rapidaai/demostudio/pkg/utils"
)

// RecordingApiRoute builds the capture pipeline and mounts the recording
// and viewer endpoints.
func RecordingApiRoute(
	cfg *config.AppConfig,
	engine *gin.Engine,
	logger commons.Logger,
	database connectors.DatabaseConnector,
	redis connectors.RedisConnector,
) error {
	store, err := buildArtifactStore(cfg, logger)
	if err != nil {
		return err
	}
	metadata, err := internal_entity.NewStore(database, logger)
	if err != nil {
		return err
	}

	assembler := internal_assembler.NewAssembler(logger, cfg.TempStoragePath)
	channel := internal_delivery.NewChannel(logger)

	orchestrator := internal_pipeline.NewOrchestrator(
		logger,
		assembler,
		store,
		metadata,
		channel,
		internal_transcriber_deepgram.NewDeepgramTranscriber(logger, cfg.DeepgramApiKey, utils.Option{}),
		internal_enrichment_gemini.NewGeminiEnricher(logger, cfg.GeminiApiKey, utils.Option{}),
		internal_synthesizer_deepgram.NewDeepgramSynthesizer(logger, cfg.DeepgramApiKey, utils.Option{}),
		internal_pipeline.WithEnrichmentTimeout(time.Duration(cfg.EnrichmentTimeoutSeconds)*time.Second),
	)

	identity := identity_client.NewIdentityServiceClient(cfg, logger, redis)

	recordingApi := studioRecordingApi.NewRecordingApi(cfg, logger, assembler, orchestrator, identity)
	viewerApi := studioViewerApi.NewViewerApi(cfg, logger, channel)

	apiv1 := engine.Group("v1/recording")
	{
		apiv1.POST("/chunk", recordingApi.UploadChunk)
		apiv1.POST("/finalize", recordingApi.Finalize)
		apiv1.GET("/viewer", viewerApi.Connect)
	}
	return nil
}

func buildArtifactStore(cfg *config.AppConfig, logger commons.Logger) (internal_storage.ArtifactStore, error) {
	if cfg.AssetStoreConfig.Provider == "s3" {
		return internal_storage.NewS3Store(context.Background(), logger, cfg.AssetStoreConfig)
	}
	return internal_storage.NewLocalStore(logger, cfg.RecordingStoragePath)
}
