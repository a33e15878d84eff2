// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

// Message is a direct message between two users.
// Content is immutable after insert; Read flips false->true once, on the
// recipient side only.
type Message struct {
	ID          string    `json:"id" db:"id"`
	SenderID    string    `json:"sender_id" db:"sender_id"`
	RecipientID string    `json:"recipient_id" db:"recipient_id"`
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Read        bool      `json:"read" db:"read"`
}

// NewMessage carries the caller-supplied fields of an insert.
// ID and CreatedAt are assigned by the gateway.
type NewMessage struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// Counterpart returns the other participant of the message relative to userID.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// UnreadFor reports whether the message is addressed to userID and still unread.
func (m Message) UnreadFor(userID string) bool {
	return m.RecipientID == userID && !m.Read
}

// Conversation is the derived, non-persisted view of all messages between
// the current user and one counterpart.
type Conversation struct {
	CounterpartID string    `json:"id"`
	Profile       *Profile  `json:"user"`
	Messages      []Message `json:"messages"`
	LastMessage   Message   `json:"last_message"`
	UnreadCount   int       `json:"unread_count"`
}

// ListOrder selects the created_at ordering of a message listing.
type ListOrder int

const (
	NewestFirst ListOrder = iota
	OldestFirst
)
