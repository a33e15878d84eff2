// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/messaging"
	"github.com/inclusivelearn/eduaccess/backend/middleware"
	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

type MessageHandler struct {
	gateway    storage.Gateway
	dispatcher *messaging.Dispatcher
	log        *zap.Logger
}

func NewMessageHandler(gateway storage.Gateway, log *zap.Logger) *MessageHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageHandler{
		gateway:    gateway,
		dispatcher: messaging.NewDispatcher(gateway, nil, log),
		log:        log.Named("messages"),
	}
}

// Wait blocks until background activity writes of sends have finished.
func (h *MessageHandler) Wait() {
	h.dispatcher.Wait()
}

// ListConversations returns the caller's conversations, most recently
// touched first.
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversations, err := messaging.LoadConversations(r.Context(), h.gateway, userID, h.log)
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": conversations,
		"unread_total":  messaging.TotalUnread(conversations),
	})
}

// GetConversation returns the thread with one counterpart, oldest first,
// and marks the caller's unread messages in it as read.
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	counterpartID := mux.Vars(r)["userId"]
	if counterpartID == "" || counterpartID == userID {
		respondFailure(w, h.log, &messaging.ValidationError{Field: "counterpart_id", Reason: "must name another user"})
		return
	}

	thread, err := h.gateway.ListThread(r.Context(), userID, counterpartID)
	if err != nil {
		respondFailure(w, h.log, &messaging.GatewayError{Op: "list thread", Err: err})
		return
	}

	marked, err := h.dispatcher.MarkRead(r.Context(), userID, thread)
	if err != nil {
		h.log.Warn("failed to mark conversation read", zap.String("user_id", userID), zap.String("counterpart_id", counterpartID), zap.Error(err))
	} else if marked > 0 {
		for i := range thread {
			if thread[i].UnreadFor(userID) {
				thread[i].Read = true
			}
		}
	}

	var counterpart *models.Profile
	if p, err := h.gateway.GetProfile(r.Context(), counterpartID); err == nil {
		counterpart = p
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.log.Warn("profile lookup failed", zap.String("counterpart_id", counterpartID), zap.Error(err))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":     counterpart,
		"messages": thread,
		"count":    len(thread),
	})
}

// MarkConversationRead acknowledges every unread message from a counterpart.
func (h *MessageHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	counterpartID := mux.Vars(r)["userId"]

	marked, err := h.dispatcher.MarkConversationRead(r.Context(), userID, counterpartID)
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "marked_read",
		"marked": marked,
	})
}

// SendMessage stores a message from the caller.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		RecipientID string `json:"recipient_id"`
		Content     string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.dispatcher.SendMessage(r.Context(), senderID, req.RecipientID, req.Content)
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": msg,
		"status":  "sent",
	})
}
