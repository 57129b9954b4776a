// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_assembler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
	"github.com/rapidaai/demostudio/pkg/commons"
)

var ErrSessionNotFound = errors.New("no open session for id")

// ChunkRecord is one chunk-log entry, kept for gap diagnostics at finalize.
type ChunkRecord struct {
	Sequence    int
	Size        int
	CapturedAt  time.Time
	ArrivalTime time.Time
}

type sessionRecord struct {
	sinks    map[internal_type.ChunkKind]*os.File
	paths    map[internal_type.ChunkKind]string
	bytes    map[internal_type.ChunkKind]int64
	chunkLog map[internal_type.ChunkKind][]ChunkRecord
	openedAt time.Time
}

// FinalizeResult reports the sealed temporary artifacts of one session.
// SessionID may differ from the requested id when the recovery heuristic
// retargeted the finalize (see Finalize).
type FinalizeResult struct {
	SessionID   string
	RequestedID string
	// TempPaths has an empty string for a kind that received zero chunks.
	TempPaths map[internal_type.ChunkKind]string
	Bytes     map[internal_type.ChunkKind]int64
	ChunkLog  map[internal_type.ChunkKind][]ChunkRecord
}

// Assembler multiplexes uploaded chunks into per-session append-only sinks
// in temporary storage. Chunks are appended in arrival order, never
// reordered by sequence number; the sequence is only recorded for gap
// diagnostics. One capture agent per session is assumed — a finalize racing
// a still-arriving chunk for the same session is not guarded.
type Assembler struct {
	logger  commons.Logger
	tempDir string

	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

func NewAssembler(logger commons.Logger, tempDir string) *Assembler {
	return &Assembler{
		logger:   logger,
		tempDir:  tempDir,
		sessions: make(map[string]*sessionRecord),
	}
}

// Append writes one chunk to the session's sink for its kind, opening the
// sink on the first chunk seen. The write lands at the current end of the
// sink regardless of the chunk's sequence number.
func (a *Assembler) Append(chunk internal_type.Chunk, data []byte) error {
	if chunk.SessionID == "" {
		return errors.New("chunk without session id")
	}

	a.mu.Lock()
	rec, ok := a.sessions[chunk.SessionID]
	if !ok {
		rec = &sessionRecord{
			sinks:    make(map[internal_type.ChunkKind]*os.File),
			paths:    make(map[internal_type.ChunkKind]string),
			bytes:    make(map[internal_type.ChunkKind]int64),
			chunkLog: make(map[internal_type.ChunkKind][]ChunkRecord),
			openedAt: time.Now(),
		}
		a.sessions[chunk.SessionID] = rec
		a.logger.Infof("assembler: opened session %s", chunk.SessionID)
	}

	sink, ok := rec.sinks[chunk.Kind]
	if !ok {
		path := filepath.Join(a.tempDir, fmt.Sprintf("%s.%s.part", chunk.SessionID, chunk.Kind))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			a.mu.Unlock()
			return fmt.Errorf("failed to open %s sink for session %s: %w", chunk.Kind, chunk.SessionID, err)
		}
		rec.sinks[chunk.Kind] = f
		rec.paths[chunk.Kind] = path
		sink = f
	}

	rec.bytes[chunk.Kind] += int64(len(data))
	rec.chunkLog[chunk.Kind] = append(rec.chunkLog[chunk.Kind], ChunkRecord{
		Sequence:    chunk.Sequence,
		Size:        len(data),
		CapturedAt:  chunk.CapturedAt,
		ArrivalTime: chunk.ArrivalTime,
	})
	a.mu.Unlock()

	if _, err := sink.Write(data); err != nil {
		return fmt.Errorf("failed to append %s chunk %d for session %s: %w", chunk.Kind, chunk.Sequence, chunk.SessionID, err)
	}
	return nil
}

// ChunkLog returns a copy of the recorded chunk log for a kind, or nil when
// the session is unknown.
func (a *Assembler) ChunkLog(sessionID string, kind internal_type.ChunkKind) []ChunkRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.sessions[sessionID]
	if !ok {
		return nil
	}
	log := rec.chunkLog[kind]
	out := make([]ChunkRecord, len(log))
	copy(out, log)
	return out
}

// OpenSessions returns the ids of sessions currently accepting chunks.
func (a *Assembler) OpenSessions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Finalize closes both sinks of the session, flushes them, logs any missing
// sequence numbers, drops the in-memory record and returns the temporary
// paths.
//
// Recovery heuristic: when the requested id has no open record but at least
// one other session is open, the most recently opened open session is
// treated as the intended target and the outgoing session id is rewritten
// to match. This papers over an upstream id-generation race where two code
// paths mint distinct ids for the same capture run; do not remove it
// without a replacing correlation-id handshake.
func (a *Assembler) Finalize(sessionID string) (*FinalizeResult, error) {
	a.mu.Lock()
	requested := sessionID
	rec, ok := a.sessions[sessionID]
	if !ok {
		var newestID string
		var newest *sessionRecord
		for id, r := range a.sessions {
			if newest == nil || r.openedAt.After(newest.openedAt) {
				newestID, newest = id, r
			}
		}
		if newest == nil {
			a.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		a.logger.Warnf(
			"assembler: finalize requested for unknown session %s; assuming most recently opened session %s is the intended target",
			requested, newestID)
		sessionID, rec = newestID, newest
	}
	delete(a.sessions, sessionID)
	a.mu.Unlock()

	result := &FinalizeResult{
		SessionID:   sessionID,
		RequestedID: requested,
		TempPaths:   make(map[internal_type.ChunkKind]string),
		Bytes:       make(map[internal_type.ChunkKind]int64),
		ChunkLog:    make(map[internal_type.ChunkKind][]ChunkRecord),
	}

	var closeErr error
	for _, kind := range []internal_type.ChunkKind{internal_type.ChunkVideo, internal_type.ChunkAudio} {
		sink, ok := rec.sinks[kind]
		if !ok {
			// Zero chunks of this kind is not an error; the artifact is
			// simply absent.
			result.TempPaths[kind] = ""
			continue
		}
		if err := sink.Sync(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("failed to flush %s sink for session %s: %w", kind, sessionID, err)
		}
		if err := sink.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("failed to close %s sink for session %s: %w", kind, sessionID, err)
		}
		result.TempPaths[kind] = rec.paths[kind]
		result.Bytes[kind] = rec.bytes[kind]
		result.ChunkLog[kind] = rec.chunkLog[kind]

		if missing := missingSequences(rec.chunkLog[kind]); len(missing) > 0 {
			a.logger.Warnf("assembler: session %s %s stream is missing sequences %v", sessionID, kind, missing)
		}
	}
	if closeErr != nil {
		return nil, closeErr
	}

	a.logger.Infof("assembler: finalized session %s (video=%dB audio=%dB)",
		sessionID, result.Bytes[internal_type.ChunkVideo], result.Bytes[internal_type.ChunkAudio])
	return result, nil
}

// missingSequences reports gaps in a chunk log relative to the contiguous
// range starting at 0.
func missingSequences(log []ChunkRecord) []int {
	if len(log) == 0 {
		return nil
	}
	seqs := make([]int, len(log))
	for i, c := range log {
		seqs[i] = c.Sequence
	}
	sort.Ints(seqs)

	var missing []int
	next := 0
	for _, s := range seqs {
		for next < s {
			missing = append(missing, next)
			next++
		}
		if s == next {
			next++
		}
	}
	return missing
}
