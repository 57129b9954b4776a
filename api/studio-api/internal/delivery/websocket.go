// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_delivery

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/demostudio/pkg/commons"
)

// =============================================================================
// WebSocket Message Types
// =============================================================================

// WSMessageType defines the type of message and what data structure to expect
type WSMessageType string

const (
	// Control types (client -> server)
	WSTypeRegister WSMessageType = "register" // Data: sessionId

	// Control types (server -> client)
	WSTypeRegistered WSMessageType = "registered" // Data: nil

	// Data types (server -> client)
	WSTypeVideo        WSMessageType = "video"        // Data: artifact reference
	WSTypeAudio        WSMessageType = "audio"        // Data: artifact reference
	WSTypeInstructions WSMessageType = "instructions" // Data: one Instruction, never a batch
)

// WSMessage is the wire envelope in both directions.
type WSMessage struct {
	Type      WSMessageType `json:"type"`
	SessionID string        `json:"sessionId,omitempty"`
	Timestamp int64         `json:"timestamp"`
	Data      interface{}   `json:"data,omitempty"`
}

var kindToWSType = map[MessageKind]WSMessageType{
	MessageVideo:       WSTypeVideo,
	MessageAudio:       WSTypeAudio,
	MessageInstruction: WSTypeInstructions,
}

// wsSubscriber adapts a gorilla websocket connection to the Subscriber
// contract. Writes are serialized; gorilla connections do not allow
// concurrent writers.
type wsSubscriber struct {
	logger commons.Logger
	conn   *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func NewWebsocketSubscriber(logger commons.Logger, conn *websocket.Conn) Subscriber {
	return &wsSubscriber{logger: logger, conn: conn}
}

func (s *wsSubscriber) Ack(sessionID string) error {
	return s.write(WSMessage{
		Type:      WSTypeRegistered,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *wsSubscriber) Send(kind MessageKind, payload interface{}) error {
	return s.write(WSMessage{
		Type:      kindToWSType[kind],
		Timestamp: time.Now().UnixMilli(),
		Data:      payload,
	})
}

func (s *wsSubscriber) write(msg WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	return s.conn.WriteJSON(msg)
}

func (s *wsSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced"),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
