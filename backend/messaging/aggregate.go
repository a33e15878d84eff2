// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package messaging derives conversations from a user's messages, sends and
// acknowledges messages, and keeps a per-view cache in sync with the
// realtime event bus.
package messaging

import "github.com/inclusivelearn/eduaccess/backend/models"

// Aggregate groups a user's messages into one conversation per counterpart.
//
// Conversations come out in first-encounter order, so a newest-first input
// yields most-recently-touched conversations first. Each conversation keeps
// its messages in input order. LastMessage only moves on a strictly newer
// created_at, which keeps the first-seen message on ties. A counterpart
// missing from profiles gets a nil Profile.
func Aggregate(messages []models.Message, currentUserID string, profiles map[string]models.Profile) []models.Conversation {
	index := make(map[string]int)
	conversations := make([]models.Conversation, 0)

	for _, msg := range messages {
		counterpart := msg.Counterpart(currentUserID)

		i, ok := index[counterpart]
		if !ok {
			conv := models.Conversation{
				CounterpartID: counterpart,
				LastMessage:   msg,
			}
			if p, found := profiles[counterpart]; found {
				profile := p
				conv.Profile = &profile
			}
			conversations = append(conversations, conv)
			i = len(conversations) - 1
			index[counterpart] = i
		}

		conv := &conversations[i]
		conv.Messages = append(conv.Messages, msg)
		if msg.UnreadFor(currentUserID) {
			conv.UnreadCount++
		}
		if msg.CreatedAt.After(conv.LastMessage.CreatedAt) {
			conv.LastMessage = msg
		}
	}

	return conversations
}

// CounterpartIDs lists the distinct counterparts of userID in first-encounter order.
func CounterpartIDs(messages []models.Message, userID string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, msg := range messages {
		id := msg.Counterpart(userID)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// ProfilesByID indexes profiles for Aggregate.
func ProfilesByID(profiles []models.Profile) map[string]models.Profile {
	out := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out
}

// TotalUnread sums the unread counts of all conversations.
func TotalUnread(conversations []models.Conversation) int {
	total := 0
	for _, c := range conversations {
		total += c.UnreadCount
	}
	return total
}
