// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_type

import "time"

// ChunkKind distinguishes the two media streams a capture produces.
type ChunkKind string

const (
	ChunkVideo ChunkKind = "video"
	ChunkAudio ChunkKind = "audio"
)

// Session status transitions: capturing → finalized → enriched|fallback.
const (
	SessionCapturing = "capturing"
	SessionFinalized = "finalized"
	SessionEnriched  = "enriched"
	SessionFallback  = "fallback"
)

// Chunk is one encoded media fragment as seen by the server. Sequence
// numbers are assigned by the capture agent per kind; the assembler records
// them but appends in arrival order.
type Chunk struct {
	SessionID string
	Kind      ChunkKind
	Sequence  int
	ByteSize  int
	// CapturedAt is the agent's encode-time stamp, ArrivalTime the
	// server-side receive time.
	CapturedAt  time.Time
	ArrivalTime time.Time
}

// MediaArtifact is a finalized, persisted media file. Created once at
// finalize; immutable thereafter.
type MediaArtifact struct {
	Kind       ChunkKind `json:"kind"`
	StorageRef string    `json:"storageRef"`
	ByteLength int64     `json:"byteLength"`
}

// BoundingBox locates a UI element in page coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the captured browser viewport size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScrollPosition is the page scroll offset at event time.
type ScrollPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EventTarget describes the DOM element an interaction touched.
type EventTarget struct {
	Tag        string            `json:"tag"`
	ID         string            `json:"id,omitempty"`
	Classes    []string          `json:"classes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Selector   string            `json:"selector"`
	BBox       BoundingBox       `json:"bbox"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Type       string            `json:"type,omitempty"` // inputs: 'text', 'email', ...
	Name       string            `json:"name,omitempty"` // inputs: name attribute
}

// EventMetadata is ambient page state recorded with each event.
type EventMetadata struct {
	URL            string          `json:"url"`
	Viewport       Viewport        `json:"viewport"`
	ScrollPosition *ScrollPosition `json:"scrollPosition,omitempty"`
}

// InteractionEvent is one raw captured UI interaction. Timestamp is
// milliseconds since recording start.
type InteractionEvent struct {
	Timestamp int64         `json:"timestamp"`
	Type      string        `json:"type"` // click, type, focus, blur, scroll, navigation, step_change
	Target    *EventTarget  `json:"target,omitempty"`
	Value     string        `json:"value,omitempty"`
	Metadata  EventMetadata `json:"metadata"`
}

// Instruction is one timestamped UI-interaction record delivered to the
// viewer, either converted verbatim from a captured event (confidence 1.0)
// or returned by the enrichment stage.
type Instruction struct {
	Timestamp  int64                  `json:"timestamp"`
	Action     string                 `json:"action"`
	Target     map[string]interface{} `json:"target,omitempty"`
	Value      string                 `json:"value,omitempty"`
	BBox       *BoundingBox           `json:"bbox,omitempty"`
	Selector   string                 `json:"selector,omitempty"`
	Confidence float64                `json:"confidence"`
}

// RecordingMetadata is the finalize-time session envelope sent by the
// capture agent.
type RecordingMetadata struct {
	SessionID string   `json:"sessionId"`
	// UserID is filled server-side from identity resolution, never trusted
	// from the capture agent.
	UserID    string   `json:"userId,omitempty"`
	StartTime int64    `json:"startTime"`
	EndTime   int64    `json:"endTime"`
	URL       string   `json:"url"`
	Viewport  Viewport `json:"viewport"`
}

// Utterance is one timed span of transcribed speech.
type Utterance struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is what the speech-to-text collaborator returns.
type TranscriptionResult struct {
	Text             string                 `json:"text"`
	Utterances       []Utterance            `json:"utterances"`
	Confidence       float64                `json:"confidence"`
	ProviderMetadata map[string]interface{} `json:"providerMetadata,omitempty"`
}

// EnrichedNarration is the enrichment stage's output: a narration script,
// the refined instruction list and, when synthesis succeeded, a reference
// to the generated narration audio.
type EnrichedNarration struct {
	Script            string        `json:"scriptText"`
	Instructions      []Instruction `json:"instructions"`
	NarrationAudioRef string        `json:"narrationAudioRef,omitempty"`
}
