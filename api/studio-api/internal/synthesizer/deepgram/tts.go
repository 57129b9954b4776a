// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_synthesizer_deepgram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	internal_synthesizer "github.com/rapidaai/demostudio/api/studio-api/internal/synthesizer"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/utils"
)

const (
	speakURL     = "https://api.deepgram.com/v1/speak"
	DefaultVoice = "aura-2-odysseus-en"

	maxAttempts = 3
	retryDelay  = 2 * time.Second

	// Responses this small are error pages or truncated streams, not audio.
	minAudioBytes = 100
)

type deepgramSynthesizer struct {
	logger commons.Logger
	key    string
	voice  string
	rest   *resty.Client
}

// NewDeepgramSynthesizer builds the speak REST caller. The voice can be
// overridden through opts ("speak.voice.id").
func NewDeepgramSynthesizer(logger commons.Logger, apiKey string, opts utils.Option) internal_synthesizer.Synthesizer {
	voice := DefaultVoice
	if v, err := opts.GetString("speak.voice.id"); err == nil {
		voice = v
	}
	return &deepgramSynthesizer{
		logger: logger,
		key:    apiKey,
		voice:  voice,
		rest:   resty.New().SetTimeout(60 * time.Second),
	}
}

func (d *deepgramSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if d.key == "" {
		return nil, internal_synthesizer.ErrUnconfigured
	}
	text = utils.EnsureSentenceEnding(text)
	if utils.IsEmpty(text) {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		audio, err := d.speak(ctx, text)
		if err == nil {
			d.logger.Infof("tts: synthesized %d bytes on attempt %d", len(audio), attempt)
			return audio, nil
		}
		lastErr = err
		d.logger.Warnf("tts: attempt %d/%d failed: %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("speech synthesis failed after %d attempts: %w", maxAttempts, lastErr)
}

func (d *deepgramSynthesizer) speak(ctx context.Context, text string) ([]byte, error) {
	resp, err := d.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", "Token "+d.key).
		SetHeader("Content-Type", "application/json").
		SetQueryParams(map[string]string{
			"model":    d.voice,
			"encoding": "mp3",
			"bit_rate": "32000",
		}).
		SetBody(map[string]string{"text": text}).
		Post(speakURL)
	if err != nil {
		return nil, fmt.Errorf("deepgram speak request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("deepgram speak error %d: %s", resp.StatusCode(), resp.String())
	}

	audio := resp.Body()
	if len(audio) < minAudioBytes {
		return nil, fmt.Errorf("audio response too small: %d bytes", len(audio))
	}
	return audio, nil
}
