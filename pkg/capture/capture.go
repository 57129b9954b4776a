// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package capture is the recording-side agent: it drives a screen encoder
// and a microphone encoder on independent timers and streams their chunks
// to the studio service while capture is still running.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rapidaai/demostudio/pkg/commons"
)

var (
	ErrAlreadyStarted = errors.New("capture already started")
	ErrNotStarted     = errors.New("capture not started")
)

// PermissionError reports which media input the platform refused to hand
// over. When it is returned nothing stays acquired.
type PermissionError struct {
	Input string
	Err   error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s capture permission denied: %v", e.Input, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Source is one encodable media input. Acquire obtains the underlying
// device, Encode drains whatever the encoder buffered since the previous
// call, Release frees the device. Encode after Release is undefined.
type Source interface {
	Acquire(ctx context.Context) error
	Encode() ([]byte, error)
	Release()
}

const (
	DefaultVideoInterval = 1 * time.Second
	DefaultAudioInterval = 3 * time.Second
	// Upper bound on how long Stop waits for in-flight chunk uploads.
	DefaultDrainTimeout = 10 * time.Second
)

// Summary is what a completed capture reports: local chunk accounting plus
// the server's finalize response.
type Summary struct {
	SessionID   string
	VideoChunks int
	AudioChunks int
	Uploaded    int64
	Failed      int64
	Drained     bool
	Finalize    *FinalizeResponse
}

// Agent owns one capture lifecycle: Start acquires inputs and begins the
// timer loops, Stop drains and finalizes. An Agent is reusable after Stop
// returns.
type Agent struct {
	logger   commons.Logger
	uploader Uploader
	screen   Source
	mic      Source

	videoInterval time.Duration
	audioInterval time.Duration
	drainTimeout  time.Duration

	mu        sync.Mutex
	started   bool
	stopping  bool
	sessionID string
	videoSeq  int
	audioSeq  int
	stopCh    chan struct{}
	loops     sync.WaitGroup

	inflight sync.WaitGroup
	uploaded atomic.Int64
	failed   atomic.Int64
}

type AgentOption func(*Agent)

func WithIntervals(video, audio time.Duration) AgentOption {
	return func(a *Agent) {
		a.videoInterval = video
		a.audioInterval = audio
	}
}

func WithDrainTimeout(d time.Duration) AgentOption {
	return func(a *Agent) { a.drainTimeout = d }
}

func NewAgent(logger commons.Logger, uploader Uploader, screen, mic Source, opts ...AgentOption) *Agent {
	a := &Agent{
		logger:        logger,
		uploader:      uploader,
		screen:        screen,
		mic:           mic,
		videoInterval: DefaultVideoInterval,
		audioInterval: DefaultAudioInterval,
		drainTimeout:  DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start acquires the microphone first, then the screen, and begins both
// encode loops. A second Start while running returns ErrAlreadyStarted.
// If the screen is refused after the microphone was granted, the
// microphone is released before returning: a failed Start holds nothing.
func (a *Agent) Start(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	// Claim the slot before acquisition so a concurrent Start cannot race
	// past the guard while we wait on permission prompts.
	a.started = true
	a.mu.Unlock()

	release := func() {
		a.mu.Lock()
		a.started = false
		a.mu.Unlock()
	}

	if err := a.mic.Acquire(ctx); err != nil {
		release()
		return &PermissionError{Input: "microphone", Err: err}
	}
	if err := a.screen.Acquire(ctx); err != nil {
		a.mic.Release()
		release()
		return &PermissionError{Input: "screen", Err: err}
	}

	a.mu.Lock()
	a.sessionID = sessionID
	a.stopping = false
	a.videoSeq = 0
	a.audioSeq = 0
	a.stopCh = make(chan struct{})
	a.mu.Unlock()
	a.uploaded.Store(0)
	a.failed.Store(0)

	a.loops.Add(2)
	go a.encodeLoop(ctx, a.screen, ChunkVideo, a.videoInterval)
	go a.encodeLoop(ctx, a.mic, ChunkAudio, a.audioInterval)

	a.logger.Infof("capture: session %s started (video %v, audio %v)",
		sessionID, a.videoInterval, a.audioInterval)
	return nil
}

func (a *Agent) encodeLoop(ctx context.Context, src Source, kind ChunkKind, interval time.Duration) {
	defer a.loops.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.emit(ctx, src, kind)
		}
	}
}

// emit takes one chunk from the encoder and uploads it without blocking the
// timer. Ticks that land after Stop set the stopping flag are dropped; the
// final flush owns the encoder from that point.
func (a *Agent) emit(ctx context.Context, src Source, kind ChunkKind) {
	a.mu.Lock()
	if a.stopping || !a.started {
		a.mu.Unlock()
		return
	}
	seq := a.nextSequenceLocked(kind)
	sessionID := a.sessionID
	a.mu.Unlock()

	data, err := src.Encode()
	if err != nil {
		a.logger.Warnf("capture: session %s %s encode failed at seq %d: %v", sessionID, kind, seq, err)
		return
	}
	if len(data) == 0 {
		return
	}
	capturedAt := time.Now()

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.upload(ctx, sessionID, kind, seq, capturedAt, data)
	}()
}

func (a *Agent) nextSequenceLocked(kind ChunkKind) int {
	if kind == ChunkVideo {
		seq := a.videoSeq
		a.videoSeq++
		return seq
	}
	seq := a.audioSeq
	a.audioSeq++
	return seq
}

func (a *Agent) upload(ctx context.Context, sessionID string, kind ChunkKind, seq int, capturedAt time.Time, data []byte) {
	if err := a.uploader.UploadChunk(ctx, sessionID, kind, seq, capturedAt, data); err != nil {
		a.failed.Add(1)
		a.logger.Errorf("capture: session %s %s chunk %d upload failed: %v", sessionID, kind, seq, err)
		return
	}
	a.uploaded.Add(1)
}

// Stop ends the capture in two phases. Phase one stops the timers, flips
// the stopping flag so late ticks are dropped, and flushes each encoder's
// final buffered chunk. Phase two waits for every in-flight upload, bounded
// by the drain timeout, then releases the devices and finalizes with the
// server. A timed-out drain still finalizes; the server tolerates missing
// chunks.
func (a *Agent) Stop(ctx context.Context, events json.RawMessage, meta Metadata) (*Summary, error) {
	a.mu.Lock()
	if !a.started || a.stopping {
		a.mu.Unlock()
		return nil, ErrNotStarted
	}
	a.stopping = true
	sessionID := a.sessionID
	a.mu.Unlock()

	close(a.stopCh)
	a.loops.Wait()

	// Final flush: the encoders' stop acknowledgement. Sequenced after the
	// stopping flag so no timer emission can interleave.
	a.flushFinal(ctx, sessionID, a.screen, ChunkVideo)
	a.flushFinal(ctx, sessionID, a.mic, ChunkAudio)

	drained := a.waitForUploads(ctx)
	if !drained {
		a.logger.Warnf("capture: session %s drain timed out after %v with uploads outstanding",
			sessionID, a.drainTimeout)
	}

	a.screen.Release()
	a.mic.Release()

	meta.SessionID = sessionID
	resp, err := a.uploader.Finalize(ctx, sessionID, events, meta)

	a.mu.Lock()
	summary := &Summary{
		SessionID:   sessionID,
		VideoChunks: a.videoSeq,
		AudioChunks: a.audioSeq,
		Uploaded:    a.uploaded.Load(),
		Failed:      a.failed.Load(),
		Drained:     drained,
	}
	a.started = false
	a.mu.Unlock()

	if err != nil {
		return summary, fmt.Errorf("finalize failed for session %s: %w", sessionID, err)
	}
	summary.Finalize = resp
	if resp.SessionID != sessionID {
		// The server recovered our request onto a different session id;
		// adopt it so the viewer handoff points at the right stream.
		a.logger.Warnf("capture: session %s was recovered as %s by the server", sessionID, resp.SessionID)
		summary.SessionID = resp.SessionID
	}
	a.logger.Infof("capture: session %s finished: %d video, %d audio chunks, %d uploaded, %d failed",
		summary.SessionID, summary.VideoChunks, summary.AudioChunks, summary.Uploaded, summary.Failed)
	return summary, nil
}

func (a *Agent) flushFinal(ctx context.Context, sessionID string, src Source, kind ChunkKind) {
	data, err := src.Encode()
	if err != nil {
		a.logger.Warnf("capture: session %s %s final flush failed: %v", sessionID, kind, err)
		return
	}
	if len(data) == 0 {
		return
	}
	a.mu.Lock()
	seq := a.nextSequenceLocked(kind)
	a.mu.Unlock()
	capturedAt := time.Now()

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.upload(ctx, sessionID, kind, seq, capturedAt, data)
	}()
}

func (a *Agent) waitForUploads(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(a.drainTimeout):
		return false
	case <-ctx.Done():
		return false
	}
}
