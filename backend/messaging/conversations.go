// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

// ConversationSource is what LoadConversations reads from.
type ConversationSource interface {
	storage.MessageStore
	storage.ProfileStore
}

// LoadConversations fetches every message of userID newest first, attaches
// counterpart profiles and aggregates them. A failed profile lookup is
// logged and yields conversations without profiles.
func LoadConversations(ctx context.Context, source ConversationSource, userID string, log *zap.Logger) ([]models.Conversation, error) {
	messages, err := source.ListMessagesInvolving(ctx, userID, models.NewestFirst)
	if err != nil {
		return nil, gatewayError("list messages", err)
	}

	var profiles map[string]models.Profile
	if ids := CounterpartIDs(messages, userID); len(ids) > 0 {
		list, err := source.ListProfiles(ctx, ids)
		if err != nil && log != nil {
			log.Warn("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		profiles = ProfilesByID(list)
	}

	return Aggregate(messages, userID, profiles), nil
}
