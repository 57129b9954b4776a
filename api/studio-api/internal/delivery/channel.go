// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_delivery

import (
	"sync"
	"time"

	"github.com/rapidaai/demostudio/pkg/commons"
)

// MessageKind is the kind tag of one delivery message.
type MessageKind string

const (
	MessageVideo       MessageKind = "video"
	MessageAudio       MessageKind = "audio"
	MessageInstruction MessageKind = "instructions"
)

// Subscriber is one live viewer connection. Ack is sent once on
// registration, strictly before any buffered or live message.
type Subscriber interface {
	Ack(sessionID string) error
	Send(kind MessageKind, payload interface{}) error
	Close() error
}

// QueueEntry is a message buffered while no subscriber was registered.
type QueueEntry struct {
	Kind       MessageKind
	Payload    interface{}
	EnqueuedAt time.Time
}

// Channel is the per-session push registry: at most one live subscriber per
// session id, plus an ordered pending buffer for sessions whose viewer has
// not connected yet. Buffered entries are always delivered to a new
// subscriber in enqueue order, before any post-registration live push.
type Channel struct {
	logger commons.Logger

	mu          sync.Mutex
	subscribers map[string]Subscriber
	pending     map[string][]QueueEntry
}

func NewChannel(logger commons.Logger) *Channel {
	return &Channel{
		logger:      logger,
		subscribers: make(map[string]Subscriber),
		pending:     make(map[string][]QueueEntry),
	}
}

// Register installs sub as the session's viewer. A previously registered
// subscriber is forcibly disconnected first (last register wins, one viewer
// per session). The new subscriber is acked, then the pending buffer is
// drained to it in original enqueue order and dropped.
//
// The subscriber is installed in the registry only after the buffer is
// empty: a Push racing the flush lands in the buffer and is picked up by a
// further drain round, so no live message can overtake a buffered one.
func (c *Channel) Register(sessionID string, sub Subscriber) error {
	c.mu.Lock()
	prev, hadPrev := c.subscribers[sessionID]
	delete(c.subscribers, sessionID)
	c.mu.Unlock()

	if hadPrev {
		c.logger.Warnf("delivery: session %s already has a viewer, disconnecting it", sessionID)
		prev.Close()
	}

	if err := sub.Ack(sessionID); err != nil {
		return err
	}

	flushed := 0
	for {
		c.mu.Lock()
		buffered := c.pending[sessionID]
		if len(buffered) == 0 {
			c.subscribers[sessionID] = sub
			c.mu.Unlock()
			break
		}
		delete(c.pending, sessionID)
		c.mu.Unlock()

		for i, entry := range buffered {
			if err := sub.Send(entry.Kind, entry.Payload); err != nil {
				// Put the unsent tail back at the front so a re-register
				// picks up where this viewer broke off.
				c.mu.Lock()
				c.pending[sessionID] = append(buffered[i:], c.pending[sessionID]...)
				c.mu.Unlock()
				c.logger.Errorf("delivery: flush to session %s viewer failed: %v", sessionID, err)
				return err
			}
		}
		flushed += len(buffered)
	}
	if flushed > 0 {
		c.logger.Infof("delivery: flushed %d buffered messages to session %s", flushed, sessionID)
	}
	return nil
}

// Push sends one message to the session's viewer, or buffers it when no
// viewer is registered. Buffering counts as a successful send from the
// caller's perspective.
func (c *Channel) Push(sessionID string, kind MessageKind, payload interface{}) error {
	c.mu.Lock()
	sub, ok := c.subscribers[sessionID]
	if !ok {
		c.pending[sessionID] = append(c.pending[sessionID], QueueEntry{
			Kind:       kind,
			Payload:    payload,
			EnqueuedAt: time.Now(),
		})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return sub.Send(kind, payload)
}

// Disconnect removes the session's subscriber. Buffered messages and any
// per-session pipeline state are intentionally left in place; cleanup only
// happens on explicit Teardown or process restart.
func (c *Channel) Disconnect(sessionID string) {
	c.mu.Lock()
	sub, ok := c.subscribers[sessionID]
	delete(c.subscribers, sessionID)
	c.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Unregister removes sub only if it is still the session's registered
// subscriber. A viewer that was already replaced cannot evict its
// replacement on the way out.
func (c *Channel) Unregister(sessionID string, sub Subscriber) {
	c.mu.Lock()
	cur, ok := c.subscribers[sessionID]
	if ok && cur == sub {
		delete(c.subscribers, sessionID)
	} else {
		ok = false
	}
	c.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Teardown drops the subscriber and the pending buffer for a session.
func (c *Channel) Teardown(sessionID string) {
	c.mu.Lock()
	sub, ok := c.subscribers[sessionID]
	delete(c.subscribers, sessionID)
	delete(c.pending, sessionID)
	c.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// PendingCount reports how many messages are buffered for a session.
func (c *Channel) PendingCount(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending[sessionID])
}

// Subscribed reports whether a viewer is currently registered.
func (c *Channel) Subscribed(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscribers[sessionID]
	return ok
}
