package internal_instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_type "github.com/rapidaai/demostudio/api/studio-api/internal/type"
)

func clickEvent(ts int64, text string) internal_type.InteractionEvent {
	return internal_type.InteractionEvent{
		Timestamp: ts,
		Type:      "click",
		Target: &internal_type.EventTarget{
			Tag:      "button",
			Text:     text,
			Selector: "#btn",
			BBox:     internal_type.BoundingBox{X: 1, Y: 2, Width: 10, Height: 4},
		},
	}
}

func TestFromEvent_Click(t *testing.T) {
	ins := FromEvent(clickEvent(1500, "Save"))
	require.NotNil(t, ins)
	assert.Equal(t, int64(1500), ins.Timestamp)
	assert.Equal(t, "click", ins.Action)
	assert.Equal(t, "#btn", ins.Selector)
	assert.Equal(t, 1.0, ins.Confidence)
	require.NotNil(t, ins.BBox)
	assert.Equal(t, 10.0, ins.BBox.Width)
	assert.Equal(t, "Save", ins.Target["text"])
}

func TestFromEvent_SkipsZeroMovementScroll(t *testing.T) {
	ev := internal_type.InteractionEvent{
		Timestamp: 100,
		Type:      "scroll",
		Metadata: internal_type.EventMetadata{
			ScrollPosition: &internal_type.ScrollPosition{X: 0, Y: 0},
		},
	}
	assert.Nil(t, FromEvent(ev))

	ev.Metadata.ScrollPosition.Y = 120
	assert.NotNil(t, FromEvent(ev))
}

func TestFromEvents_DropsRejected(t *testing.T) {
	events := []internal_type.InteractionEvent{
		clickEvent(0, "A"),
		{Timestamp: 50, Type: "scroll", Metadata: internal_type.EventMetadata{
			ScrollPosition: &internal_type.ScrollPosition{},
		}},
		clickEvent(100, "B"),
	}
	instructions := FromEvents(events)
	require.Len(t, instructions, 2)
	assert.Equal(t, "A", instructions[0].Target["text"])
	assert.Equal(t, "B", instructions[1].Target["text"])
}

func TestExtractText(t *testing.T) {
	events := []internal_type.InteractionEvent{
		clickEvent(0, "Save"),
		{Timestamp: 10, Type: "type", Value: "hello"},
		{Timestamp: 20, Type: "focus", Target: &internal_type.EventTarget{
			Attributes: map[string]string{"data-testid": "email-field"},
		}},
		{Timestamp: 30, Type: "blur"},
	}
	assert.Equal(t, "Clicked: Save Typed: hello Focused: email-field", ExtractText(events))
}

func TestGroupSteps_SplitsOnInactivity(t *testing.T) {
	events := []internal_type.InteractionEvent{
		clickEvent(0, "A"),
		clickEvent(500, "B"),
		clickEvent(3500, "C"), // 3s gap → new step
		clickEvent(4000, "D"),
	}
	steps := GroupSteps(events)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Len(t, steps[0].Events, 2)
	assert.Equal(t, int64(500), steps[0].EndTime)
	assert.Equal(t, 2, steps[1].StepNumber)
	assert.Equal(t, int64(3500), steps[1].StartTime)
	assert.Len(t, steps[1].Events, 2)
}

func TestGroupSteps_SplitsOnStepChange(t *testing.T) {
	events := []internal_type.InteractionEvent{
		clickEvent(0, "A"),
		{Timestamp: 100, Type: "step_change"},
		clickEvent(200, "B"),
	}
	steps := GroupSteps(events)
	require.Len(t, steps, 2)
	assert.Equal(t, "step_change", steps[1].Events[0].Type)
}

func TestGroupSteps_Empty(t *testing.T) {
	assert.Nil(t, GroupSteps(nil))
}

func TestTimeline(t *testing.T) {
	events := []internal_type.InteractionEvent{
		clickEvent(1500, "Save"),
		{Timestamp: 2500, Type: "type", Value: "demo"},
	}
	tl := Timeline(events)
	assert.Contains(t, tl, `1.5s: clicks "Save"`)
	assert.Contains(t, tl, `2.5s: types "demo"`)

	assert.Equal(t, "No significant actions recorded.", Timeline(nil))
}
