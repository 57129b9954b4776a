// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_enrichment

import (
	"context"
	"errors"

	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
)

// ErrUnconfigured means no enrichment provider credentials are present.
var ErrUnconfigured = errors.New("enrichment provider not configured")

// Request carries everything the enrichment stage needs: the raw transcript,
// the captured interaction events and their speech timing.
type Request struct {
	Transcript string
	Events     []internal_type.InteractionEvent
	Utterances []internal_type.Utterance
	Metadata   internal_type.RecordingMetadata
}

// Enricher turns a raw transcript plus captured interactions into a
// narration script and a refined instruction list.
type Enricher interface {
	Enrich(ctx context.Context, req Request) (*internal_type.EnrichedNarration, error)
}
