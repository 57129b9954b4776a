package internal_delivery

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/demostudio/pkg/commons"
)

type sentMessage struct {
	Kind    MessageKind
	Payload interface{}
}

type fakeSubscriber struct {
	acked    []string
	messages []sentMessage
	closed   bool
	sendErr  error
}

func (f *fakeSubscriber) Ack(sessionID string) error {
	f.acked = append(f.acked, sessionID)
	return nil
}

func (f *fakeSubscriber) Send(kind MessageKind, payload interface{}) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, sentMessage{Kind: kind, Payload: payload})
	return nil
}

func (f *fakeSubscriber) Close() error {
	f.closed = true
	return nil
}

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	return NewChannel(logger)
}

func TestPush_BuffersWithoutSubscriber(t *testing.T) {
	c := newTestChannel(t)

	require.NoError(t, c.Push("s1", MessageVideo, "v.webm"))
	require.NoError(t, c.Push("s1", MessageInstruction, "i1"))

	assert.Equal(t, 2, c.PendingCount("s1"))
	assert.False(t, c.Subscribed("s1"))
}

func TestRegister_FlushesBufferInEnqueueOrderBeforeLivePushes(t *testing.T) {
	c := newTestChannel(t)

	require.NoError(t, c.Push("s1", MessageVideo, "v.webm"))
	require.NoError(t, c.Push("s1", MessageAudio, "a.webm"))
	require.NoError(t, c.Push("s1", MessageInstruction, "i1"))

	sub := &fakeSubscriber{}
	require.NoError(t, c.Register("s1", sub))

	// Ack precedes the flush; flush preserves enqueue order.
	require.Equal(t, []string{"s1"}, sub.acked)
	require.Len(t, sub.messages, 3)
	assert.Equal(t, sentMessage{MessageVideo, "v.webm"}, sub.messages[0])
	assert.Equal(t, sentMessage{MessageAudio, "a.webm"}, sub.messages[1])
	assert.Equal(t, sentMessage{MessageInstruction, "i1"}, sub.messages[2])
	assert.Equal(t, 0, c.PendingCount("s1"))

	// A live push lands after the buffered set.
	require.NoError(t, c.Push("s1", MessageInstruction, "i2"))
	require.Len(t, sub.messages, 4)
	assert.Equal(t, sentMessage{MessageInstruction, "i2"}, sub.messages[3])
}

func TestRegister_SecondSubscriberDisconnectsFirst(t *testing.T) {
	c := newTestChannel(t)

	first := &fakeSubscriber{}
	second := &fakeSubscriber{}
	require.NoError(t, c.Register("s1", first))
	require.NoError(t, c.Register("s1", second))

	assert.True(t, first.closed, "first subscriber should be forcibly disconnected")
	assert.False(t, second.closed)

	require.NoError(t, c.Push("s1", MessageVideo, "v"))
	assert.Empty(t, first.messages)
	assert.Len(t, second.messages, 1)
}

// gatedSubscriber blocks its first Send until the gate opens, signalling
// started so the test can interleave a push while the flush is mid-buffer.
type gatedSubscriber struct {
	fakeSubscriber
	started chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedSubscriber) Send(kind MessageKind, payload interface{}) error {
	g.once.Do(func() {
		close(g.started)
		<-g.gate
	})
	return g.fakeSubscriber.Send(kind, payload)
}

func TestRegister_PushDuringFlushDoesNotOvertakeBuffer(t *testing.T) {
	c := newTestChannel(t)

	require.NoError(t, c.Push("s1", MessageVideo, "b1"))
	require.NoError(t, c.Push("s1", MessageInstruction, "b2"))
	require.NoError(t, c.Push("s1", MessageInstruction, "b3"))

	sub := &gatedSubscriber{
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	done := make(chan error, 1)
	go func() { done <- c.Register("s1", sub) }()

	<-sub.started
	// The flush is stalled inside its first Send; a pipeline push arriving
	// now must queue behind the remaining buffered entries.
	require.NoError(t, c.Push("s1", MessageInstruction, "live"))
	close(sub.gate)
	require.NoError(t, <-done)

	require.Len(t, sub.messages, 4)
	order := make([]interface{}, 0, 4)
	for _, m := range sub.messages {
		order = append(order, m.Payload)
	}
	assert.Equal(t, []interface{}{"b1", "b2", "b3", "live"}, order)
	assert.Equal(t, 0, c.PendingCount("s1"))
	assert.True(t, c.Subscribed("s1"))
}

func TestUnregister_ReplacedSubscriberCannotEvictReplacement(t *testing.T) {
	c := newTestChannel(t)

	first := &fakeSubscriber{}
	second := &fakeSubscriber{}
	require.NoError(t, c.Register("s1", first))
	require.NoError(t, c.Register("s1", second))

	// A stale socket closing must not tear the live subscriber off.
	c.Unregister("s1", first)
	assert.True(t, c.Subscribed("s1"))
	assert.False(t, second.closed)

	c.Unregister("s1", second)
	assert.False(t, c.Subscribed("s1"))
	assert.True(t, second.closed)
}

func TestRegister_AfterAllPushes_ReRegisterSendsNothing(t *testing.T) {
	c := newTestChannel(t)

	require.NoError(t, c.Push("s1", MessageVideo, "v"))
	require.NoError(t, c.Push("s1", MessageAudio, "a"))
	require.NoError(t, c.Push("s1", MessageInstruction, "i"))

	late := &fakeSubscriber{}
	require.NoError(t, c.Register("s1", late))
	require.Len(t, late.messages, 3)

	again := &fakeSubscriber{}
	require.NoError(t, c.Register("s1", again))
	assert.True(t, late.closed)
	assert.Empty(t, again.messages, "re-registering immediately after must send nothing further")
}

func TestDisconnect_KeepsBuffer(t *testing.T) {
	c := newTestChannel(t)

	sub := &fakeSubscriber{}
	require.NoError(t, c.Register("s1", sub))
	c.Disconnect("s1")
	assert.True(t, sub.closed)

	// Post-disconnect pushes buffer again and survive for the next viewer.
	require.NoError(t, c.Push("s1", MessageInstruction, "i1"))
	assert.Equal(t, 1, c.PendingCount("s1"))

	next := &fakeSubscriber{}
	require.NoError(t, c.Register("s1", next))
	assert.Len(t, next.messages, 1)
}

func TestTeardown_DropsEverything(t *testing.T) {
	c := newTestChannel(t)

	require.NoError(t, c.Push("s1", MessageVideo, "v"))
	c.Teardown("s1")
	assert.Equal(t, 0, c.PendingCount("s1"))
	assert.False(t, c.Subscribed("s1"))
}

func TestRegister_FlushErrorSurfaces(t *testing.T) {
	c := newTestChannel(t)

	require.NoError(t, c.Push("s1", MessageVideo, "v"))

	sub := &fakeSubscriber{sendErr: errors.New("broken pipe")}
	err := c.Register("s1", sub)
	assert.Error(t, err)

	// The broken viewer is not installed and the unsent entry survives for
	// the next register.
	assert.False(t, c.Subscribed("s1"))
	assert.Equal(t, 1, c.PendingCount("s1"))

	next := &fakeSubscriber{}
	require.NoError(t, c.Register("s1", next))
	assert.Len(t, next.messages, 1)
}
