// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/messaging"
	"github.com/inclusivelearn/eduaccess/backend/middleware"
	"github.com/inclusivelearn/eduaccess/backend/realtime"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

// RealtimeHandler upgrades authenticated requests to a WebSocket that
// carries one mounted messaging view.
type RealtimeHandler struct {
	gateway  storage.Gateway
	bus      storage.EventBus
	upgrader websocket.Upgrader
	log      *zap.Logger

	base   context.Context
	cancel context.CancelFunc
}

// NewRealtimeHandler builds the handler. bus may be nil, in which case
// views only refresh on demand.
func NewRealtimeHandler(gateway storage.Gateway, bus storage.EventBus, allowedOrigins []string, log *zap.Logger) *RealtimeHandler {
	if log == nil {
		log = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &RealtimeHandler{
		gateway: gateway,
		bus:     bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		log:    log.Named("realtime"),
		base:   base,
		cancel: cancel,
	}
}

func (h *RealtimeHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()
	stop := context.AfterFunc(r.Context(), cancel)
	defer stop()

	client := realtime.NewClient(conn, h.log)
	view := messaging.NewView(session.UserID, h.gateway, h.bus, client, h.log)

	h.log.Debug("websocket connected", zap.String("user_id", session.UserID))
	client.Serve(ctx, view)
	h.log.Debug("websocket closed", zap.String("user_id", session.UserID))
}

// Close disconnects every open socket.
func (h *RealtimeHandler) Close() {
	h.cancel()
}
