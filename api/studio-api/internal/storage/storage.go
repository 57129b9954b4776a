// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("artifact not found")

// ArtifactStore persists finalized session media. Temporary chunk sinks are
// promoted here once sealed; the pipeline additionally stores synthesized
// narration audio through Put.
type ArtifactStore interface {
	// Promote moves a sealed temporary file into permanent per-session
	// storage and returns the artifact reference plus its byte length.
	// The temporary file is deleted afterwards. Implementations must copy
	// rather than rename: temp and permanent storage may sit on different
	// volumes.
	Promote(ctx context.Context, sessionID, filename, tempPath string) (string, int64, error)

	// Put stores raw bytes as a per-session artifact and returns its
	// reference.
	Put(ctx context.Context, sessionID, filename string, data []byte) (string, error)

	// SignedURL resolves an artifact reference to something a viewer can
	// fetch. Local stores return the reference unchanged.
	SignedURL(ctx context.Context, ref string) (string, error)

	// Remove deletes an artifact.
	Remove(ctx context.Context, ref string) error
}
