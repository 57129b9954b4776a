// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcriber_deepgram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	internal_transcriber "github.com/rapidaai/demostudio/api/studio-api/internal/transcriber"
	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/utils"
)

const (
	DefaultModel    = "nova-2" // default model for prerecorded recognition
	DefaultLanguage = "en-US"
)

type deepgramTranscriber struct {
	logger commons.Logger
	key    string
	opts   utils.Option
}

// NewDeepgramTranscriber builds the prerecorded speech-to-text caller.
// Model and language can be overridden through opts ("listen.model",
// "listen.language").
func NewDeepgramTranscriber(logger commons.Logger, apiKey string, opts utils.Option) internal_transcriber.Transcriber {
	return &deepgramTranscriber{logger: logger, key: apiKey, opts: opts}
}

func (d *deepgramTranscriber) Transcribe(ctx context.Context, audioPath string) (*internal_type.TranscriptionResult, error) {
	if d.key == "" {
		return nil, internal_transcriber.ErrUnconfigured
	}
	if audioPath == "" {
		return nil, internal_transcriber.NonRetryable(fmt.Errorf("no audio file to transcribe"))
	}
	remote := strings.HasPrefix(audioPath, "http://") || strings.HasPrefix(audioPath, "https://")
	if !remote {
		if _, err := os.Stat(audioPath); err != nil {
			return nil, internal_transcriber.NonRetryable(fmt.Errorf("audio file %s not readable: %w", audioPath, err))
		}
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       DefaultModel,
		Language:    DefaultLanguage,
		SmartFormat: true,
		Punctuate:   true,
		Utterances:  true,
	}
	if model, err := d.opts.GetString("listen.model"); err == nil {
		options.Model = model
	}
	if language, err := d.opts.GetString("listen.language"); err == nil {
		options.Language = language
	}

	client := listen.NewREST(d.key, &interfaces.ClientOptions{})
	dg := listenv1rest.New(client)

	mimeType := MimeTypeFor(audioPath)
	d.logger.Infof("deepgram: transcribing %s (%s, model=%s)", audioPath, mimeType, options.Model)

	call := dg.FromFile
	if remote {
		call = dg.FromURL
	}
	res, err := call(ctx, audioPath, options)
	if err != nil {
		return nil, fmt.Errorf("deepgram transcription failed: %w", err)
	}

	result := &internal_type.TranscriptionResult{
		ProviderMetadata: map[string]interface{}{
			"provider": "deepgram",
			"model":    options.Model,
			"mimetype": mimeType,
		},
	}

	if len(res.Results.Channels) > 0 && len(res.Results.Channels[0].Alternatives) > 0 {
		alt := res.Results.Channels[0].Alternatives[0]
		result.Text = alt.Transcript
		result.Confidence = alt.Confidence
	}
	for _, u := range res.Results.Utterances {
		result.Utterances = append(result.Utterances, internal_type.Utterance{
			Start: u.Start,
			End:   u.End,
			Text:  u.Transcript,
		})
	}

	d.logger.Infof("deepgram: transcript %d chars, %d utterances, confidence %.2f",
		len(result.Text), len(result.Utterances), result.Confidence)
	return result, nil
}

// MimeTypeFor negotiates the upload content type from the file extension.
// Deepgram sniffs most containers but chunked browser captures are
// consistently webm/opus, which it cannot always detect from the payload.
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
