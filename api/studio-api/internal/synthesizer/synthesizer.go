// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_synthesizer

import (
	"context"
	"errors"
)

// ErrUnconfigured means no speech synthesis provider credentials are present.
var ErrUnconfigured = errors.New("speech synthesis provider not configured")

// Synthesizer is the text-to-speech collaborator contract.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
