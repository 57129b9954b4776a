// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcriber

import (
	"context"
	"errors"

	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
)

// ErrUnconfigured means no speech-to-text provider credentials are present.
// Always non-retryable.
var ErrUnconfigured = errors.New("transcription provider not configured")

// Transcriber is the speech-to-text collaborator contract: an audio file in,
// timed transcript out.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*internal_type.TranscriptionResult, error)
}

type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable marks an error as a non-recoverable input error. The
// pipeline fails these immediately instead of spending retry attempts.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable reports whether err (or anything it wraps) was marked
// non-retryable or is ErrUnconfigured.
func IsNonRetryable(err error) bool {
	if errors.Is(err, ErrUnconfigured) {
		return true
	}
	var nr *nonRetryableError
	return errors.As(err, &nr)
}
