package capture

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/demostudio/pkg/commons"
)

type fakeSource struct {
	mu          sync.Mutex
	acquireErr  error
	encodeErr   error
	payload     []byte
	acquired    bool
	released    bool
	encodeCalls int
}

func (f *fakeSource) Acquire(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquired = true
	return nil
}

func (f *fakeSource) Encode() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.encodeCalls++
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	return f.payload, nil
}

func (f *fakeSource) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
}

type uploadedChunk struct {
	SessionID  string
	Kind       ChunkKind
	Sequence   int
	CapturedAt time.Time
	Size      int
}

type fakeUploader struct {
	mu          sync.Mutex
	chunks      []uploadedChunk
	chunkErr    error
	uploadDelay time.Duration
	finalizeRes *FinalizeResponse
	finalizeErr error
	finalized   bool
}

func (f *fakeUploader) UploadChunk(ctx context.Context, sessionID string, kind ChunkKind, sequence int, capturedAt time.Time, data []byte) error {
	if f.uploadDelay > 0 {
		time.Sleep(f.uploadDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chunkErr != nil {
		return f.chunkErr
	}
	f.chunks = append(f.chunks, uploadedChunk{SessionID: sessionID, Kind: kind, Sequence: sequence, CapturedAt: capturedAt, Size: len(data)})
	return nil
}

func (f *fakeUploader) Finalize(ctx context.Context, sessionID string, events json.RawMessage, meta Metadata) (*FinalizeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = true
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	if f.finalizeRes != nil {
		return f.finalizeRes, nil
	}
	return &FinalizeResponse{SessionID: sessionID, Status: "enriched"}, nil
}

func (f *fakeUploader) byKind(kind ChunkKind) []uploadedChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uploadedChunk
	for _, c := range f.chunks {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	// Uploads land concurrently; order by sequence for assertions.
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func newTestAgent(t *testing.T, uploader *fakeUploader, screen, mic *fakeSource, opts ...AgentOption) *Agent {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	base := []AgentOption{
		WithIntervals(10*time.Millisecond, 30*time.Millisecond),
		WithDrainTimeout(time.Second),
	}
	return NewAgent(logger, uploader, screen, mic, append(base, opts...)...)
}

func TestStart_SecondStartRejected(t *testing.T) {
	up := &fakeUploader{}
	a := newTestAgent(t, up, &fakeSource{payload: []byte("v")}, &fakeSource{payload: []byte("a")})

	require.NoError(t, a.Start(context.Background(), "s1"))
	assert.ErrorIs(t, a.Start(context.Background(), "s1"), ErrAlreadyStarted)

	_, err := a.Stop(context.Background(), nil, Metadata{})
	require.NoError(t, err)
}

func TestStart_MicDenied(t *testing.T) {
	up := &fakeUploader{}
	screen := &fakeSource{payload: []byte("v")}
	mic := &fakeSource{acquireErr: errors.New("denied by user")}
	a := newTestAgent(t, up, screen, mic)

	err := a.Start(context.Background(), "s1")
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "microphone", perm.Input)
	assert.False(t, screen.acquired)

	// The failed start holds nothing: a retry can succeed.
	mic.acquireErr = nil
	require.NoError(t, a.Start(context.Background(), "s1"))
	_, err = a.Stop(context.Background(), nil, Metadata{})
	require.NoError(t, err)
}

func TestStart_ScreenDeniedReleasesMicrophone(t *testing.T) {
	up := &fakeUploader{}
	screen := &fakeSource{acquireErr: errors.New("cancelled")}
	mic := &fakeSource{payload: []byte("a")}
	a := newTestAgent(t, up, screen, mic)

	err := a.Start(context.Background(), "s1")
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "screen", perm.Input)
	assert.True(t, mic.acquired)
	assert.True(t, mic.released)
}

func TestCapture_UploadsTimedChunksWithSequences(t *testing.T) {
	up := &fakeUploader{}
	screen := &fakeSource{payload: []byte("video-bytes")}
	mic := &fakeSource{payload: []byte("audio-bytes")}
	a := newTestAgent(t, up, screen, mic)

	require.NoError(t, a.Start(context.Background(), "s1"))
	time.Sleep(120 * time.Millisecond)
	summary, err := a.Stop(context.Background(), nil, Metadata{})
	require.NoError(t, err)

	// Video ticks 3x faster than audio, plus one final flush each.
	video := up.byKind(ChunkVideo)
	audio := up.byKind(ChunkAudio)
	assert.Greater(t, len(video), len(audio))
	require.NotEmpty(t, audio)

	// Per-kind sequences are dense from zero, each stamped at encode time.
	for i, c := range video {
		assert.Equal(t, i, c.Sequence)
		assert.Equal(t, "s1", c.SessionID)
		assert.False(t, c.CapturedAt.IsZero())
	}
	for i, c := range audio {
		assert.Equal(t, i, c.Sequence)
		assert.False(t, c.CapturedAt.IsZero())
	}

	assert.True(t, summary.Drained)
	assert.Equal(t, int64(len(up.chunks)), summary.Uploaded)
	assert.Zero(t, summary.Failed)
	assert.True(t, up.finalized)
	assert.True(t, screen.released)
	assert.True(t, mic.released)
}

func TestStop_FlushesFinalChunkPerKind(t *testing.T) {
	up := &fakeUploader{}
	screen := &fakeSource{payload: []byte("v")}
	mic := &fakeSource{payload: []byte("a")}
	// Intervals far beyond the test duration: the only chunks come from the
	// stop-time flush.
	a := newTestAgent(t, up, screen, mic, WithIntervals(time.Hour, time.Hour))

	require.NoError(t, a.Start(context.Background(), "s1"))
	summary, err := a.Stop(context.Background(), nil, Metadata{})
	require.NoError(t, err)

	assert.Len(t, up.byKind(ChunkVideo), 1)
	assert.Len(t, up.byKind(ChunkAudio), 1)
	assert.Equal(t, 1, summary.VideoChunks)
	assert.Equal(t, 1, summary.AudioChunks)
}

func TestStop_DrainTimeoutStillFinalizes(t *testing.T) {
	up := &fakeUploader{uploadDelay: 200 * time.Millisecond}
	screen := &fakeSource{payload: []byte("v")}
	mic := &fakeSource{payload: []byte("a")}
	a := newTestAgent(t, up, screen, mic,
		WithIntervals(time.Hour, time.Hour),
		WithDrainTimeout(20*time.Millisecond))

	require.NoError(t, a.Start(context.Background(), "s1"))
	summary, err := a.Stop(context.Background(), nil, Metadata{})
	require.NoError(t, err)

	assert.False(t, summary.Drained)
	assert.True(t, up.finalized)
}

func TestStop_AdoptsRecoveredSessionID(t *testing.T) {
	up := &fakeUploader{finalizeRes: &FinalizeResponse{SessionID: "recovered", Status: "fallback", Degraded: true}}
	a := newTestAgent(t, up, &fakeSource{}, &fakeSource{}, WithIntervals(time.Hour, time.Hour))

	require.NoError(t, a.Start(context.Background(), "ghost"))
	summary, err := a.Stop(context.Background(), nil, Metadata{})
	require.NoError(t, err)

	assert.Equal(t, "recovered", summary.SessionID)
	assert.True(t, summary.Finalize.Degraded)
}

func TestStop_BeforeStart(t *testing.T) {
	up := &fakeUploader{}
	a := newTestAgent(t, up, &fakeSource{}, &fakeSource{})

	_, err := a.Stop(context.Background(), nil, Metadata{})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestEncodeFailureDoesNotStopCapture(t *testing.T) {
	up := &fakeUploader{}
	screen := &fakeSource{encodeErr: errors.New("encoder hiccup")}
	mic := &fakeSource{payload: []byte("a")}
	a := newTestAgent(t, up, screen, mic)

	require.NoError(t, a.Start(context.Background(), "s1"))
	time.Sleep(100 * time.Millisecond)
	summary, err := a.Stop(context.Background(), nil, Metadata{})
	require.NoError(t, err)

	assert.Empty(t, up.byKind(ChunkVideo))
	assert.NotEmpty(t, up.byKind(ChunkAudio))
	assert.Zero(t, summary.Failed)
}

func TestUploadFailuresCounted(t *testing.T) {
	up := &fakeUploader{chunkErr: errors.New("service unavailable")}
	a := newTestAgent(t, up, &fakeSource{payload: []byte("v")}, &fakeSource{payload: []byte("a")},
		WithIntervals(time.Hour, time.Hour))

	require.NoError(t, a.Start(context.Background(), "s1"))
	summary, err := a.Stop(context.Background(), nil, Metadata{})
	require.NoError(t, err)

	assert.Zero(t, summary.Uploaded)
	assert.Equal(t, int64(2), summary.Failed)
}
