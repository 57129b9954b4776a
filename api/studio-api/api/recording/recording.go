// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package studio_recording_api

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	internal_assembler "github.com/rapidaai/demostudio/api/studio-api/internal/assembler"
	internal_pipeline "github.com/rapidaai/demostudio/api/studio-api/internal/pipeline"
	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
	"github.com/rapidaai/demostudio/config"
	identity_client "github.com/rapidaai/demostudio/pkg/clients/identity"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/utils"
)

const externalAccountHeader = "x-external-account"

type RecordingApi struct {
	cfg          *config.AppConfig
	logger       commons.Logger
	assembler    *internal_assembler.Assembler
	orchestrator *internal_pipeline.Orchestrator
	identity     identity_client.IdentityServiceClient
}

func NewRecordingApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	assembler *internal_assembler.Assembler,
	orchestrator *internal_pipeline.Orchestrator,
	identity identity_client.IdentityServiceClient,
) *RecordingApi {
	return &RecordingApi{
		cfg:          cfg,
		logger:       logger,
		assembler:    assembler,
		orchestrator: orchestrator,
		identity:     identity,
	}
}

// UploadChunk accepts one encoded media chunk while capture is running.
//
// @Router /v1/recording/chunk [post]
// @Param sessionId formData string true "capture session id"
// @Param kind formData string true "video or audio"
// @Param sequence formData int true "per-kind sequence number"
// @Param timestamp formData int true "capture time, unix milliseconds"
// @Param chunk formData file true "encoded media fragment"
func (rApi *RecordingApi) UploadChunk(c *gin.Context) {
	sessionID := c.PostForm("sessionId")
	kind := internal_type.ChunkKind(c.PostForm("kind"))
	if utils.IsEmpty(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}
	if kind != internal_type.ChunkVideo && kind != internal_type.ChunkAudio {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be video or audio"})
		return
	}
	sequence, err := strconv.Atoi(c.PostForm("sequence"))
	if err != nil || sequence < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sequence must be a non-negative integer"})
		return
	}

	// The agent stamps each chunk at encode time; a chunk without a usable
	// stamp still carries data worth keeping, so only reject garbage.
	var capturedAt time.Time
	if raw := c.PostForm("timestamp"); raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || millis < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be unix milliseconds"})
			return
		}
		capturedAt = time.UnixMilli(millis)
	}

	file, err := c.FormFile("chunk")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk file part is required"})
		return
	}
	data, err := readFormFile(file)
	if err != nil {
		rApi.logger.Errorf("recording: failed to read chunk %s/%s/%d: %v", sessionID, kind, sequence, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to read chunk"})
		return
	}

	chunk := internal_type.Chunk{
		SessionID:   sessionID,
		Kind:        kind,
		Sequence:    sequence,
		ByteSize:    len(data),
		CapturedAt:  capturedAt,
		ArrivalTime: time.Now(),
	}
	if err := rApi.assembler.Append(chunk, data); err != nil {
		rApi.logger.Errorf("recording: append failed for %s/%s/%d: %v", sessionID, kind, sequence, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to persist chunk"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
		"kind":      kind,
		"sequence":  sequence,
		"received":  len(data),
	})
}

// Finalize seals a capture session and runs the processing pipeline.
// It answers 200 even when processing degraded: the capture agent cannot
// retry a finished recording, so the response describes the terminal state
// rather than failing the request. Only malformed requests get a 4xx.
//
// @Router /v1/recording/finalize [post]
// @Param sessionId formData string true "capture session id"
// @Param events formData string false "captured interaction events, JSON array"
// @Param metadata formData string false "recording metadata, JSON object"
// @Param video formData file false "full video file when chunking was unavailable"
// @Param audio formData file false "full audio file when chunking was unavailable"
func (rApi *RecordingApi) Finalize(c *gin.Context) {
	sessionID := c.PostForm("sessionId")
	if utils.IsEmpty(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	events := rApi.parseEvents(sessionID, c.PostForm("events"))
	meta := rApi.parseMetadata(sessionID, c.PostForm("metadata"))
	meta.SessionID = sessionID
	rApi.attachIdentity(c, &meta)

	// Capture agents that could not stream (intermittent uploads, very
	// short sessions) may hand over the whole file at finalize instead.
	rApi.appendInlineFile(c, sessionID, "video", internal_type.ChunkVideo)
	rApi.appendInlineFile(c, sessionID, "audio", internal_type.ChunkAudio)

	result, err := rApi.orchestrator.Process(c.Request.Context(), sessionID, events, meta)
	if err != nil {
		// Unknown session with nothing to recover onto. Still 200: the
		// recording is over either way and the agent just reports this.
		rApi.logger.Errorf("recording: finalize failed for %s: %v", sessionID, err)
		c.JSON(http.StatusOK, gin.H{
			"sessionId": sessionID,
			"status":    "error",
			"degraded":  true,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (rApi *RecordingApi) parseEvents(sessionID, raw string) []internal_type.InteractionEvent {
	if utils.IsEmpty(raw) {
		return nil
	}
	var events []internal_type.InteractionEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		// Degrade to an empty event list rather than losing the recording.
		rApi.logger.Warnf("recording: session %s sent unparseable events, ignoring: %v", sessionID, err)
		return nil
	}
	return events
}

func (rApi *RecordingApi) parseMetadata(sessionID, raw string) internal_type.RecordingMetadata {
	meta := internal_type.RecordingMetadata{SessionID: sessionID}
	if utils.IsEmpty(raw) {
		return meta
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		rApi.logger.Warnf("recording: session %s sent unparseable metadata, ignoring: %v", sessionID, err)
	}
	return meta
}

func (rApi *RecordingApi) attachIdentity(c *gin.Context, meta *internal_type.RecordingMetadata) {
	account := c.GetHeader(externalAccountHeader)
	if utils.IsEmpty(account) || rApi.identity == nil {
		return
	}
	identity, err := rApi.identity.ResolveUser(c.Request.Context(), account)
	if err != nil {
		rApi.logger.Warnf("recording: identity resolution failed for %s: %v", account, err)
		return
	}
	meta.UserID = identity.UserID
}

func (rApi *RecordingApi) appendInlineFile(c *gin.Context, sessionID, field string, kind internal_type.ChunkKind) {
	file, err := c.FormFile(field)
	if err != nil {
		return
	}
	data, err := readFormFile(file)
	if err != nil {
		rApi.logger.Errorf("recording: failed to read inline %s for %s: %v", field, sessionID, err)
		return
	}
	chunk := internal_type.Chunk{
		SessionID:   sessionID,
		Kind:        kind,
		Sequence:    0,
		ByteSize:    len(data),
		ArrivalTime: time.Now(),
	}
	if err := rApi.assembler.Append(chunk, data); err != nil {
		rApi.logger.Errorf("recording: failed to append inline %s for %s: %v", field, sessionID, err)
	}
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
