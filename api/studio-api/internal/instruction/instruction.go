// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_instruction

import (
	"fmt"
	"strings"

	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
)

// Events separated by more than this much inactivity belong to different
// workflow steps.
const StepThresholdMillis = 2000

// FromEvent converts one captured interaction event into a viewer
// instruction. Returns nil for events that carry no visual information,
// such as scrolls with no movement.
func FromEvent(ev internal_type.InteractionEvent) *internal_type.Instruction {
	if ev.Type == "scroll" && ev.Metadata.ScrollPosition != nil {
		if ev.Metadata.ScrollPosition.X == 0 && ev.Metadata.ScrollPosition.Y == 0 {
			return nil
		}
	}

	ins := &internal_type.Instruction{
		Timestamp: ev.Timestamp,
		Action:    ev.Type,
		Value:     ev.Value,
		// Raw capture is ground truth.
		Confidence: 1.0,
	}

	if ev.Target != nil {
		ins.Selector = ev.Target.Selector
		bbox := ev.Target.BBox
		ins.BBox = &bbox
		ins.Target = map[string]interface{}{
			"tag":        ev.Target.Tag,
			"id":         ev.Target.ID,
			"classes":    ev.Target.Classes,
			"text":       ev.Target.Text,
			"type":       ev.Target.Type,
			"name":       ev.Target.Name,
			"attributes": ev.Target.Attributes,
		}
	}
	return ins
}

// FromEvents converts a full captured event list, dropping the events
// FromEvent rejects.
func FromEvents(events []internal_type.InteractionEvent) []internal_type.Instruction {
	instructions := make([]internal_type.Instruction, 0, len(events))
	for _, ev := range events {
		if ins := FromEvent(ev); ins != nil {
			instructions = append(instructions, *ins)
		}
	}
	return instructions
}

// ExtractText builds a compact textual summary of the captured interactions
// for the enrichment prompt: button labels, typed values, focused fields.
func ExtractText(events []internal_type.InteractionEvent) string {
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		switch ev.Type {
		case "click":
			if ev.Target != nil && ev.Target.Text != "" {
				parts = append(parts, "Clicked: "+ev.Target.Text)
			}
		case "type":
			if ev.Value != "" {
				parts = append(parts, "Typed: "+ev.Value)
			}
		case "focus":
			if ev.Target == nil {
				continue
			}
			if ev.Target.Text != "" {
				parts = append(parts, "Focused: "+ev.Target.Text)
			} else if tid, ok := ev.Target.Attributes["data-testid"]; ok {
				parts = append(parts, "Focused: "+tid)
			}
		}
	}
	return strings.Join(parts, " ")
}

// Step is a group of events close enough in time to read as one workflow
// stage.
type Step struct {
	StepNumber int                              `json:"stepNumber"`
	StartTime  int64                            `json:"startTime"`
	EndTime    int64                            `json:"endTime"`
	Events     []internal_type.InteractionEvent `json:"events"`
}

// GroupSteps splits events into steps wherever there is more than
// StepThresholdMillis of inactivity or an explicit step_change event.
func GroupSteps(events []internal_type.InteractionEvent) []Step {
	if len(events) == 0 {
		return nil
	}

	steps := []Step{}
	current := Step{
		StepNumber: 1,
		StartTime:  events[0].Timestamp,
		EndTime:    events[0].Timestamp,
		Events:     []internal_type.InteractionEvent{events[0]},
	}

	for _, ev := range events[1:] {
		gap := ev.Timestamp - current.EndTime
		if gap > StepThresholdMillis || ev.Type == "step_change" {
			steps = append(steps, current)
			current = Step{
				StepNumber: len(steps) + 1,
				StartTime:  ev.Timestamp,
				EndTime:    ev.Timestamp,
				Events:     []internal_type.InteractionEvent{ev},
			}
			continue
		}
		current.Events = append(current.Events, ev)
		current.EndTime = ev.Timestamp
	}

	return append(steps, current)
}

// Timeline renders a one-line-per-event action timeline for the enrichment
// prompt, in seconds relative to recording start.
func Timeline(events []internal_type.InteractionEvent) string {
	var b strings.Builder
	for _, ev := range events {
		desc := describe(ev)
		if desc == "" {
			continue
		}
		fmt.Fprintf(&b, "  %.1fs: %s\n", float64(ev.Timestamp)/1000.0, desc)
	}
	if b.Len() == 0 {
		return "No significant actions recorded."
	}
	return b.String()
}

func describe(ev internal_type.InteractionEvent) string {
	switch ev.Type {
	case "click":
		if ev.Target != nil && ev.Target.Text != "" {
			return fmt.Sprintf("clicks %q", ev.Target.Text)
		}
		if ev.Target != nil {
			return "clicks " + ev.Target.Selector
		}
		return "clicks"
	case "type":
		if ev.Value != "" {
			return fmt.Sprintf("types %q", ev.Value)
		}
	case "navigation":
		return "navigates to " + ev.Metadata.URL
	case "scroll":
		if ev.Metadata.ScrollPosition != nil {
			return fmt.Sprintf("scrolls to %.0f,%.0f", ev.Metadata.ScrollPosition.X, ev.Metadata.ScrollPosition.Y)
		}
	}
	return ""
}
