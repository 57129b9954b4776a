// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package studio_viewer_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	internal_delivery "github.com/rapidaai/demostudio/api/studio-api/internal/delivery"
	"github.com/rapidaai/demostudio/config"
	"github.com/rapidaai/demostudio/pkg/commons"
	"github.com/rapidaai/demostudio/pkg/utils"
)

var viewerUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type ViewerApi struct {
	cfg     *config.AppConfig
	logger  commons.Logger
	channel *internal_delivery.Channel
}

func NewViewerApi(cfg *config.AppConfig, logger commons.Logger, channel *internal_delivery.Channel) *ViewerApi {
	return &ViewerApi{cfg: cfg, logger: logger, channel: channel}
}

// Connect upgrades the viewer connection and waits for a register message.
// Once registered the socket becomes push-only: anything buffered for the
// session is flushed first, then live pipeline messages follow. A register
// for a session that already has a viewer replaces it.
//
// @Router /v1/recording/viewer [get]
// @Success 101 "Switching Protocols"
func (vApi *ViewerApi) Connect(c *gin.Context) {
	conn, err := viewerUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		vApi.logger.Errorf("viewer: websocket upgrade failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to upgrade to websocket"})
		return
	}

	var (
		sub       internal_delivery.Subscriber
		sessionID string
	)
	defer func() {
		if sub != nil {
			vApi.channel.Unregister(sessionID, sub)
		}
		// Unregister is a no-op for a subscriber that never made it into
		// the registry (failed flush) or was already replaced; closing the
		// raw conn again is harmless when it did.
		conn.Close()
	}()

	for {
		msg := internal_delivery.WSMessage{}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				vApi.logger.Warnf("viewer: session %s connection dropped: %v", sessionID, err)
			}
			return
		}
		if msg.Type != internal_delivery.WSTypeRegister {
			vApi.logger.Warnf("viewer: ignoring unexpected %s message", msg.Type)
			continue
		}
		if sub != nil {
			// One registration per socket; a different session needs a new
			// connection.
			vApi.logger.Warnf("viewer: session %s socket sent a second register, ignoring", sessionID)
			continue
		}

		requested := msg.SessionID
		if utils.IsEmpty(requested) {
			if s, ok := msg.Data.(string); ok {
				requested = s
			}
		}
		if utils.IsEmpty(requested) {
			vApi.logger.Warn("viewer: register without session id, ignoring")
			continue
		}

		sessionID = requested
		sub = internal_delivery.NewWebsocketSubscriber(vApi.logger, conn)
		if err := vApi.channel.Register(sessionID, sub); err != nil {
			vApi.logger.Errorf("viewer: registration flush for session %s failed: %v", sessionID, err)
			return
		}
		vApi.logger.Infof("viewer: session %s viewer registered", sessionID)
	}
}
