package studio_recording_api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_assembler "github.com/rapidaai/demostudio/api/studio-api/internal/assembler"
	internal_delivery "github.com/rapidaai/demostudio/api/studio-api/internal/delivery"
	internal_enrichment "github.com/rapidaai/demostudio/api/studio-api/internal/enrichment"
	internal_pipeline "github.com/rapidaai/demostudio/api/studio-api/internal/pipeline"
	internal_storage "github.com/rapidaai/demostudio/api/studio-api/internal/storage"
	internal_transcriber "github.com/rapidaai/demostudio/api/studio-api/internal/transcriber"
	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
	"github.com/rapidaai/demostudio/pkg/capture"
	"github.com/rapidaai/demostudio/pkg/commons"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audioPath string) (*internal_type.TranscriptionResult, error) {
	return nil, internal_transcriber.ErrUnconfigured
}

type stubEnricher struct{}

func (stubEnricher) Enrich(ctx context.Context, req internal_enrichment.Request) (*internal_type.EnrichedNarration, error) {
	return nil, internal_enrichment.ErrUnconfigured
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *internal_assembler.Assembler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	store, err := internal_storage.NewLocalStore(logger, t.TempDir())
	require.NoError(t, err)
	assembler := internal_assembler.NewAssembler(logger, t.TempDir())

	orchestrator := internal_pipeline.NewOrchestrator(
		logger,
		assembler,
		store,
		nil,
		internal_delivery.NewChannel(logger),
		stubTranscriber{},
		stubEnricher{},
		stubSynthesizer{},
		internal_pipeline.WithTranscriptionRetry(1, time.Millisecond),
	)

	api := NewRecordingApi(nil, logger, assembler, orchestrator, nil)
	engine := gin.New()
	engine.POST("/v1/recording/chunk", api.UploadChunk)
	engine.POST("/v1/recording/finalize", api.Finalize)
	return engine, assembler
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, data := range files {
		part, err := w.CreateFormFile(name, name+".webm")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postMultipart(t *testing.T, engine *gin.Engine, path string, fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestUploadChunk_AppendsToSession(t *testing.T) {
	engine, assembler := newTestRouter(t)

	capturedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := postMultipart(t, engine, "/v1/recording/chunk",
		map[string]string{
			"sessionId": "s1",
			"kind":      "video",
			"sequence":  "0",
			"timestamp": strconv.FormatInt(capturedAt.UnixMilli(), 10),
		},
		map[string][]byte{"chunk": []byte("AAAA")})
	require.Equal(t, http.StatusOK, rec.Code)

	log := assembler.ChunkLog("s1", internal_type.ChunkVideo)
	require.Len(t, log, 1)
	assert.Equal(t, 4, log[0].Size)
	assert.True(t, log[0].CapturedAt.Equal(capturedAt))
}

func TestUploadChunk_RejectsBadInput(t *testing.T) {
	engine, _ := newTestRouter(t)

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][]byte
	}{
		{"missing session", map[string]string{"kind": "video", "sequence": "0"}, map[string][]byte{"chunk": []byte("x")}},
		{"bad kind", map[string]string{"sessionId": "s1", "kind": "screen", "sequence": "0"}, map[string][]byte{"chunk": []byte("x")}},
		{"bad sequence", map[string]string{"sessionId": "s1", "kind": "video", "sequence": "-1"}, map[string][]byte{"chunk": []byte("x")}},
		{"bad timestamp", map[string]string{"sessionId": "s1", "kind": "video", "sequence": "0", "timestamp": "yesterday"}, map[string][]byte{"chunk": []byte("x")}},
		{"missing file", map[string]string{"sessionId": "s1", "kind": "video", "sequence": "0"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMultipart(t, engine, "/v1/recording/chunk", tt.fields, tt.files)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestFinalize_DegradedStillAnswers200(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := postMultipart(t, engine, "/v1/recording/chunk",
		map[string]string{"sessionId": "s1", "kind": "audio", "sequence": "0"},
		map[string][]byte{"chunk": []byte("AUD")})
	require.Equal(t, http.StatusOK, rec.Code)

	events, _ := json.Marshal([]internal_type.InteractionEvent{{
		Timestamp: 100,
		Type:      "click",
		Target:    &internal_type.EventTarget{Tag: "button", Text: "Go", Selector: "#go"},
	}})
	rec = postMultipart(t, engine, "/v1/recording/finalize",
		map[string]string{
			"sessionId": "s1",
			"events":    string(events),
			"metadata":  `{"url":"https://example.com","viewport":{"width":800,"height":600}}`,
		}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result internal_pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, internal_type.SessionFallback, result.Status)
	assert.True(t, result.Degraded)
	assert.Equal(t, 1, result.EventsProcessed)
}

func TestFinalize_UnknownSessionAnswers200WithError(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := postMultipart(t, engine, "/v1/recording/finalize",
		map[string]string{"sessionId": "nowhere"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, true, body["degraded"])
	assert.NotEmpty(t, body["error"])
}

func TestFinalize_UnparseableEventsDegradeToEmpty(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := postMultipart(t, engine, "/v1/recording/chunk",
		map[string]string{"sessionId": "s1", "kind": "video", "sequence": "0"},
		map[string][]byte{"chunk": []byte("VID")})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postMultipart(t, engine, "/v1/recording/finalize",
		map[string]string{"sessionId": "s1", "events": "{not json"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result internal_pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Zero(t, result.EventsProcessed)
}

func TestFinalize_InlineFilesBecomeChunks(t *testing.T) {
	engine, _ := newTestRouter(t)

	// No streamed chunks at all: the whole recording arrives at finalize.
	rec := postMultipart(t, engine, "/v1/recording/finalize",
		map[string]string{"sessionId": "s1"},
		map[string][]byte{"video": []byte("FULLVIDEO"), "audio": []byte("FULLAUDIO")})
	require.Equal(t, http.StatusOK, rec.Code)

	var result internal_pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "s1", result.SessionID)
	assert.Len(t, result.Artifacts, 2)
}

// The capture agent and the finalize parser must agree on the metadata wire
// shape, nested viewport included; a drift here silently zeroes fields.
func TestFinalize_AgentMetadataShapeRoundTrips(t *testing.T) {
	raw, err := json.Marshal(capture.Metadata{
		SessionID: "s1",
		StartTime: 1000,
		EndTime:   2000,
		URL:       "https://example.com/checkout",
		Viewport:  capture.Viewport{Width: 1280, Height: 720},
	})
	require.NoError(t, err)

	var meta internal_type.RecordingMetadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "https://example.com/checkout", meta.URL)
	assert.Equal(t, int64(1000), meta.StartTime)
	assert.Equal(t, 1280, meta.Viewport.Width)
	assert.Equal(t, 720, meta.Viewport.Height)
}
