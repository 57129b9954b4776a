// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	internal_assembler "github.com/rapidaai/demostudio/api/studio-api/internal/assembler"
	internal_delivery "github.com/rapidaai/demostudio/api/studio-api/internal/delivery"
	internal_enrichment "github.com/rapidaai/demostudio/api/studio-api/internal/enrichment"
	internal_entity "github.com/rapidaai/demostudio/api/studio-api/internal/entity"
	internal_instruction "github.com/rapidaai/demostudio/api/studio-api/internal/instruction"
	internal_storage "github.com/rapidaai/demostudio/api/studio-api/internal/storage"
	internal_synthesizer "github.com/rapidaai/demostudio/api/studio-api/internal/synthesizer"
	internal_transcriber "github.com/rapidaai/demostudio/api/studio-api/internal/transcriber"
	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/utils"
)

// Result is what finalize reports back to the capture agent. The pipeline
// reports success even when it degraded; Degraded plus Status tell the
// caller which path was taken.
type Result struct {
	SessionID       string                       `json:"sessionId"`
	Status          string                       `json:"status"`
	Filename        string                       `json:"filename,omitempty"`
	EventsProcessed int                          `json:"eventsProcessed"`
	Artifacts       []internal_type.MediaArtifact `json:"artifacts"`
	Transcript      string                       `json:"transcription,omitempty"`
	Degraded        bool                         `json:"degraded"`
}

// Orchestrator runs the per-session finalize → deliver → transcribe →
// enrich → fall back sequence. Each session runs strictly sequentially
// through its states; different sessions are fully independent. There is no
// mid-pipeline cancellation: once finalize succeeds, the session always
// reaches a terminal enriched or fallback state.
type Orchestrator struct {
	logger      commons.Logger
	assembler   *internal_assembler.Assembler
	artifacts   internal_storage.ArtifactStore
	metadata    internal_entity.Store
	channel     *internal_delivery.Channel
	transcriber internal_transcriber.Transcriber
	enricher    internal_enrichment.Enricher
	synthesizer internal_synthesizer.Synthesizer

	transcriptionAttempts int
	transcriptionDelay    time.Duration
	enrichmentTimeout     time.Duration

	mu sync.Mutex
	// Raw instruction lists cached at S3, keyed by session id, consumed by
	// the fallback stage. Never expires on its own; Teardown clears it.
	fallbackCache map[string][]internal_type.Instruction
	// Idempotency guard: set when a session's instruction set has been
	// delivered, either by enrichment or by the fallback stage. Keeps the
	// fallback from firing twice when multiple error paths reach it.
	delivered map[string]bool
}

// Option tunes orchestrator timing. Production uses the defaults; tests
// shrink them.
type Option func(*Orchestrator)

func WithTranscriptionRetry(attempts int, delay time.Duration) Option {
	return func(o *Orchestrator) {
		o.transcriptionAttempts = attempts
		o.transcriptionDelay = delay
	}
}

func WithEnrichmentTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.enrichmentTimeout = d
	}
}

func NewOrchestrator(
	logger commons.Logger,
	assembler *internal_assembler.Assembler,
	artifacts internal_storage.ArtifactStore,
	metadata internal_entity.Store,
	channel *internal_delivery.Channel,
	transcriber internal_transcriber.Transcriber,
	enricher internal_enrichment.Enricher,
	synthesizer internal_synthesizer.Synthesizer,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		logger:      logger,
		assembler:   assembler,
		artifacts:   artifacts,
		metadata:    metadata,
		channel:     channel,
		transcriber: transcriber,
		enricher:    enricher,
		synthesizer: synthesizer,

		transcriptionAttempts: 3,
		transcriptionDelay:    2 * time.Second,
		// Long on purpose: speech synthesis retries are nested inside the
		// enrichment call.
		enrichmentTimeout: 5 * time.Minute,

		fallbackCache: make(map[string][]internal_type.Instruction),
		delivered:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the full pipeline for one finalize request. The returned
// error is only non-nil for non-recoverable input problems (an unknown
// session with nothing to recover to); every provider failure degrades into
// the fallback path and still yields a Result.
func (o *Orchestrator) Process(
	ctx context.Context,
	requestedSessionID string,
	events []internal_type.InteractionEvent,
	meta internal_type.RecordingMetadata,
) (*Result, error) {

	// ---- S0: finalize and persist metadata -------------------------------

	sealed, err := o.assembler.Finalize(requestedSessionID)
	if err != nil {
		return nil, err
	}
	sessionID := sealed.SessionID

	videoRef, videoLen := o.promote(ctx, sessionID, internal_type.ChunkVideo, "video.webm", sealed)
	audioRef, audioLen := o.promote(ctx, sessionID, internal_type.ChunkAudio, "audio.webm", sealed)

	result := &Result{
		SessionID:       sessionID,
		EventsProcessed: len(events),
	}
	if videoRef != "" {
		result.Artifacts = append(result.Artifacts, internal_type.MediaArtifact{
			Kind: internal_type.ChunkVideo, StorageRef: videoRef, ByteLength: videoLen,
		})
	}
	if audioRef != "" {
		result.Artifacts = append(result.Artifacts, internal_type.MediaArtifact{
			Kind: internal_type.ChunkAudio, StorageRef: audioRef, ByteLength: audioLen,
		})
	}

	// Metadata is persisted before anything can fail so the raw capture
	// survives every degradation below.
	o.persistMetadata(ctx, sessionID, events, meta, videoRef, audioRef)

	// ---- S1: fast video delivery ----------------------------------------

	if videoRef != "" {
		o.safePush(sessionID, internal_delivery.MessageVideo, map[string]interface{}{
			"sessionId":  sessionID,
			"storageRef": videoRef,
			"byteLength": videoLen,
		})
	}

	// ---- S2: transcription ----------------------------------------------

	transcript, transcriptionErr := o.transcribe(ctx, sessionID, audioRef)

	// ---- S3: fallback-instruction caching -------------------------------

	// Unconditional, whatever S2 did: the fallback stage must be able to
	// deliver the raw capture even when reached much later.
	rawInstructions := internal_instruction.FromEvents(events)
	o.mu.Lock()
	o.fallbackCache[sessionID] = rawInstructions
	o.mu.Unlock()

	audioPushed := false

	// ---- S4: AI enrichment ----------------------------------------------

	if transcriptionErr == nil && !utils.IsEmpty(transcript.Text) {
		result.Transcript = transcript.Text
		o.setTranscript(ctx, sessionID, transcript.Text)

		enriched, enrichErr := o.enrich(ctx, transcript, events, meta)
		switch {
		case enrichErr != nil:
			o.logger.Errorf("pipeline: session %s enrichment failed: %v", sessionID, enrichErr)
			o.pushErrorMarker(sessionID, "enrichment", enrichErr)

		case len(enriched.Instructions) == 0:
			o.logger.Warnf("pipeline: session %s enrichment returned no instructions, falling back", sessionID)
			o.pushErrorMarker(sessionID, "enrichment", fmt.Errorf("provider returned an empty instruction list"))

		default:
			o.mu.Lock()
			o.delivered[sessionID] = true
			o.mu.Unlock()

			for _, ins := range enriched.Instructions {
				o.safePush(sessionID, internal_delivery.MessageInstruction, ins)
			}

			narrationRef, filename := o.synthesizeNarration(ctx, sessionID, enriched.Script)
			if narrationRef != "" {
				result.Filename = filename
				o.safePush(sessionID, internal_delivery.MessageAudio, map[string]interface{}{
					"sessionId":  sessionID,
					"storageRef": narrationRef,
					"narrated":   true,
				})
			} else if audioRef != "" {
				o.safePush(sessionID, internal_delivery.MessageAudio, map[string]interface{}{
					"sessionId":  sessionID,
					"storageRef": audioRef,
					"narrated":   false,
				})
			}
			audioPushed = true

			result.Status = internal_type.SessionEnriched
			o.setStatus(ctx, sessionID, internal_type.SessionEnriched)
			return result, nil
		}
	} else if transcriptionErr != nil {
		o.logger.Warnf("pipeline: session %s transcription unavailable, falling back: %v", sessionID, transcriptionErr)
	} else {
		o.logger.Warnf("pipeline: session %s produced an empty transcript, skipping enrichment", sessionID)
	}

	// ---- S5: fallback instruction delivery ------------------------------

	if !audioPushed && audioRef != "" {
		o.safePush(sessionID, internal_delivery.MessageAudio, map[string]interface{}{
			"sessionId":  sessionID,
			"storageRef": audioRef,
			"narrated":   false,
		})
	}
	o.deliverFallback(sessionID)

	result.Status = internal_type.SessionFallback
	result.Degraded = true
	o.setStatus(ctx, sessionID, internal_type.SessionFallback)
	return result, nil
}

// transcribe calls the speech-to-text collaborator with bounded retry:
// fixed backoff on transient failures, immediate failure on non-recoverable
// input errors.
func (o *Orchestrator) transcribe(ctx context.Context, sessionID, audioRef string) (*internal_type.TranscriptionResult, error) {
	if audioRef != "" {
		// Local stores hand the path back unchanged; remote stores yield a
		// fetchable URL.
		if resolved, err := o.artifacts.SignedURL(ctx, audioRef); err == nil {
			audioRef = resolved
		} else {
			o.logger.Warnf("pipeline: session %s could not resolve audio ref %s: %v", sessionID, audioRef, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= o.transcriptionAttempts; attempt++ {
		transcript, err := o.transcriber.Transcribe(ctx, audioRef)
		if err == nil {
			return transcript, nil
		}
		lastErr = err

		if internal_transcriber.IsNonRetryable(err) {
			o.logger.Warnf("pipeline: session %s transcription not retryable: %v", sessionID, err)
			return nil, err
		}
		o.logger.Warnf("pipeline: session %s transcription attempt %d/%d failed: %v",
			sessionID, attempt, o.transcriptionAttempts, err)

		if attempt < o.transcriptionAttempts {
			select {
			case <-time.After(o.transcriptionDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("transcription exhausted %d attempts: %w", o.transcriptionAttempts, lastErr)
}

// enrich calls the enrichment collaborator under the long overall timeout.
func (o *Orchestrator) enrich(
	ctx context.Context,
	transcript *internal_type.TranscriptionResult,
	events []internal_type.InteractionEvent,
	meta internal_type.RecordingMetadata,
) (*internal_type.EnrichedNarration, error) {
	enrichCtx, cancel := context.WithTimeout(ctx, o.enrichmentTimeout)
	defer cancel()

	return o.enricher.Enrich(enrichCtx, internal_enrichment.Request{
		Transcript: transcript.Text,
		Events:     events,
		Utterances: transcript.Utterances,
		Metadata:   meta,
	})
}

// synthesizeNarration renders the narration script to speech and stores it.
// Failures degrade to the raw recording audio without failing enrichment.
func (o *Orchestrator) synthesizeNarration(ctx context.Context, sessionID, script string) (string, string) {
	if o.synthesizer == nil || utils.IsEmpty(script) {
		return "", ""
	}
	audio, err := o.synthesizer.Synthesize(ctx, script)
	if err != nil {
		o.logger.Warnf("pipeline: session %s narration synthesis failed, using raw audio: %v", sessionID, err)
		return "", ""
	}

	filename := fmt.Sprintf("processed_audio_%s_%d.mp3", sessionID, time.Now().UnixMilli())
	ref, err := o.artifacts.Put(ctx, sessionID, filename, audio)
	if err != nil {
		o.logger.Errorf("pipeline: session %s failed to store narration audio: %v", sessionID, err)
		return "", ""
	}
	return ref, filename
}

// deliverFallback pushes the cached raw instruction list item by item,
// unless this session's instructions were already delivered.
func (o *Orchestrator) deliverFallback(sessionID string) {
	o.mu.Lock()
	if o.delivered[sessionID] {
		o.mu.Unlock()
		o.logger.Infof("pipeline: session %s instructions already delivered, skipping fallback", sessionID)
		return
	}
	o.delivered[sessionID] = true
	cached := o.fallbackCache[sessionID]
	o.mu.Unlock()

	for _, ins := range cached {
		o.safePush(sessionID, internal_delivery.MessageInstruction, ins)
	}
	o.logger.Infof("pipeline: session %s delivered %d raw fallback instructions", sessionID, len(cached))
}

// Teardown clears per-session pipeline state. Called once a session has
// reached a terminal state and its viewer is gone; nothing calls it
// automatically on viewer disconnect.
func (o *Orchestrator) Teardown(sessionID string) {
	o.mu.Lock()
	delete(o.fallbackCache, sessionID)
	delete(o.delivered, sessionID)
	o.mu.Unlock()
	o.channel.Teardown(sessionID)
}

// safePush isolates delivery side effects: a failed push is logged and
// swallowed, never allowed to redirect the state machine.
func (o *Orchestrator) safePush(sessionID string, kind internal_delivery.MessageKind, payload interface{}) {
	if err := o.channel.Push(sessionID, kind, payload); err != nil {
		o.logger.Errorf("pipeline: session %s %s push failed: %v", sessionID, kind, err)
	}
}

func (o *Orchestrator) pushErrorMarker(sessionID, stage string, cause error) {
	o.safePush(sessionID, internal_delivery.MessageInstruction, internal_type.Instruction{
		Action:     "error",
		Value:      fmt.Sprintf("%s degraded, showing raw capture: %v", stage, cause),
		Confidence: 0,
	})
}

func (o *Orchestrator) promote(
	ctx context.Context,
	sessionID string,
	kind internal_type.ChunkKind,
	filename string,
	sealed *internal_assembler.FinalizeResult,
) (string, int64) {
	tempPath := sealed.TempPaths[kind]
	if tempPath == "" {
		return "", 0
	}
	ref, size, err := o.artifacts.Promote(ctx, sessionID, filename, tempPath)
	if err != nil {
		o.logger.Errorf("pipeline: session %s failed to promote %s artifact: %v", sessionID, kind, err)
		return "", 0
	}
	return ref, size
}

func (o *Orchestrator) persistMetadata(
	ctx context.Context,
	sessionID string,
	events []internal_type.InteractionEvent,
	meta internal_type.RecordingMetadata,
	videoRef, audioRef string,
) {
	if o.metadata == nil {
		return
	}
	rec := &internal_entity.Recording{
		SessionID: sessionID,
		UserID:    meta.UserID,
		Status:    internal_type.SessionFinalized,
		StartTime: meta.StartTime,
		EndTime:   meta.EndTime,
		SourceURL: meta.URL,
		ViewportW: meta.Viewport.Width,
		ViewportH: meta.Viewport.Height,
		VideoRef:  videoRef,
		AudioRef:  audioRef,
	}
	if err := rec.SetEvents(events); err != nil {
		o.logger.Errorf("pipeline: %v", err)
	}
	if err := o.metadata.Save(ctx, rec); err != nil {
		o.logger.Errorf("pipeline: session %s metadata persistence failed: %v", sessionID, err)
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, sessionID, status string) {
	if o.metadata == nil {
		return
	}
	if err := o.metadata.UpdateStatus(ctx, sessionID, status); err != nil {
		o.logger.Errorf("pipeline: session %s status update failed: %v", sessionID, err)
	}
}

func (o *Orchestrator) setTranscript(ctx context.Context, sessionID, text string) {
	if o.metadata == nil {
		return
	}
	if err := o.metadata.SetTranscript(ctx, sessionID, text); err != nil {
		o.logger.Errorf("pipeline: session %s transcript update failed: %v", sessionID, err)
	}
}
