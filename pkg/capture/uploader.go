// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rapidaai/demostudio/pkg/commons"
)

// ChunkKind mirrors the server's chunk taxonomy on the wire.
type ChunkKind string

const (
	ChunkVideo ChunkKind = "video"
	ChunkAudio ChunkKind = "audio"
)

// Viewport is the captured browser viewport size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Metadata is the finalize-time session envelope. The field names and the
// nested viewport object are the shape the finalize endpoint parses; keep
// them in lockstep with the server.
type Metadata struct {
	SessionID string   `json:"sessionId"`
	StartTime int64    `json:"startTime"`
	EndTime   int64    `json:"endTime"`
	URL       string   `json:"url"`
	Viewport  Viewport `json:"viewport"`
}

// FinalizeResponse is the server's answer to finalize. Degraded sessions
// still answer 200: Status and Degraded carry the distinction.
type FinalizeResponse struct {
	SessionID       string `json:"sessionId"`
	Status          string `json:"status"`
	Filename        string `json:"filename,omitempty"`
	EventsProcessed int    `json:"eventsProcessed"`
	Degraded        bool   `json:"degraded"`
}

// Uploader ships chunks and the finalize request to the studio service.
// capturedAt is the client-side encode time of the chunk; the server keeps
// it alongside its own arrival time.
type Uploader interface {
	UploadChunk(ctx context.Context, sessionID string, kind ChunkKind, sequence int, capturedAt time.Time, data []byte) error
	Finalize(ctx context.Context, sessionID string, events json.RawMessage, meta Metadata) (*FinalizeResponse, error)
}

const (
	chunkPath    = "/v1/recording/chunk"
	finalizePath = "/v1/recording/finalize"
)

type restUploader struct {
	logger commons.Logger
	http   *resty.Client
}

// NewUploader builds the HTTP uploader against the studio service base URL.
func NewUploader(logger commons.Logger, baseURL string) Uploader {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &restUploader{logger: logger, http: client}
}

func (u *restUploader) UploadChunk(ctx context.Context, sessionID string, kind ChunkKind, sequence int, capturedAt time.Time, data []byte) error {
	resp, err := u.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"sessionId": sessionID,
			"kind":      string(kind),
			"sequence":  strconv.Itoa(sequence),
			"timestamp": strconv.FormatInt(capturedAt.UnixMilli(), 10),
		}).
		SetFileReader("chunk", fmt.Sprintf("%s_%d.webm", kind, sequence), bytes.NewReader(data)).
		Post(chunkPath)
	if err != nil {
		return fmt.Errorf("chunk upload failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("chunk upload rejected: %s", resp.Status())
	}
	return nil
}

func (u *restUploader) Finalize(ctx context.Context, sessionID string, events json.RawMessage, meta Metadata) (*FinalizeResponse, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode finalize metadata: %w", err)
	}
	if len(events) == 0 {
		events = json.RawMessage("[]")
	}

	out := &FinalizeResponse{}
	resp, err := u.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"sessionId": sessionID,
			"events":    string(events),
			"metadata":  string(metaJSON),
		}).
		SetResult(out).
		Post(finalizePath)
	if err != nil {
		return nil, fmt.Errorf("finalize request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("finalize rejected: %s", resp.Status())
	}
	return out, nil
}
