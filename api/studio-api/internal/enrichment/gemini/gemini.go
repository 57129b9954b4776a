// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_enrichment_gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	internal_enrichment "github.com/rapidaai/demostudio/api/studio-api/internal/enrichment"
	internal_instruction "github.com/rapidaai/demostudio/api/studio-api/internal/instruction"
	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/utils"
)

const DefaultModel = "gemini-2.5-flash"

type geminiEnricher struct {
	logger commons.Logger
	apiKey string
	model  string
}

// NewGeminiEnricher builds the Gemini-backed enrichment caller.
func NewGeminiEnricher(logger commons.Logger, apiKey string, opts utils.Option) internal_enrichment.Enricher {
	model := DefaultModel
	if m, err := opts.GetString("enrich.model"); err == nil {
		model = m
	}
	return &geminiEnricher{logger: logger, apiKey: apiKey, model: model}
}

// Enrich asks the model for a synced narration script and refines the
// captured events into the delivered instruction list. The instruction
// refinement is deterministic (captured events are ground truth); only the
// narration text comes from the model.
func (g *geminiEnricher) Enrich(ctx context.Context, req internal_enrichment.Request) (*internal_type.EnrichedNarration, error) {
	if g.apiKey == "" {
		return nil, internal_enrichment.ErrUnconfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	prompt := buildPrompt(req)
	g.logger.Infof("gemini: generating narration (model=%s, transcript=%d chars, events=%d)",
		g.model, len(req.Transcript), len(req.Events))

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini narration generation failed: %w", err)
	}

	script := utils.NormalizeParagraph(resp.Text())
	if utils.IsEmpty(script) {
		return nil, fmt.Errorf("gemini returned an empty narration script")
	}

	return &internal_type.EnrichedNarration{
		Script:       script,
		Instructions: internal_instruction.FromEvents(req.Events),
	}, nil
}

func buildPrompt(req internal_enrichment.Request) string {
	var b strings.Builder

	b.WriteString("You are an AI that creates professional product demo narration synchronized with screen recordings.\n\n")

	b.WriteString("CONTEXT FROM SCREEN RECORDING (captured interactions):\n")
	summary := internal_instruction.ExtractText(req.Events)
	if summary == "" {
		summary = "No interaction text captured."
	}
	b.WriteString(summary + "\n\n")

	b.WriteString("TIMELINE OF ACTIONS:\n")
	b.WriteString(internal_instruction.Timeline(req.Events) + "\n")

	if len(req.Utterances) > 0 {
		b.WriteString("SPEECH TIMING:\n")
		for _, u := range req.Utterances {
			fmt.Fprintf(&b, "  %.1fs-%.1fs: %s\n", u.Start, u.End, u.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("RAW USER TRANSCRIPT:\n")
	b.WriteString(req.Transcript + "\n\n")

	b.WriteString(`TASK:
Generate a clean, professional product demo narration that:
1. Syncs with the actions shown in the screen recording (use the timeline above)
2. Describes what the user is doing at each step
3. Maintains the natural flow from the raw transcript
4. References specific UI elements and actions from the context

OUTPUT RULES:
- Single continuous paragraph (no line breaks)
- Use present tense to describe actions
- Keep narration concise and professional
- Maintain similar length to raw transcript
- Add proper punctuation, remove filler words

SYNCED NARRATION:
`)
	return b.String()
}
