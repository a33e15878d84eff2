// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package realtime

import "github.com/inclusivelearn/eduaccess/backend/models"

// Client commands.
const (
	CommandOpen        = "open"
	CommandSend        = "send"
	CommandRefresh     = "refresh"
	CommandCloseThread = "close_thread"
)

// Server frames.
const (
	FrameConversations = "conversations"
	FrameThread        = "thread"
	FrameNotification  = "notification"
	FrameSent          = "sent"
	FrameError         = "error"
)

// Command is a frame sent by the browser.
type Command struct {
	Type          string `json:"type"`
	CounterpartID string `json:"counterpart_id,omitempty"`
	RecipientID   string `json:"recipient_id,omitempty"`
	Content       string `json:"content,omitempty"`
	TempID        string `json:"temp_id,omitempty"`
}

// Frame is a message pushed to the browser.
type Frame struct {
	Type          string                `json:"type"`
	Conversations []models.Conversation `json:"conversations,omitempty"`
	UnreadTotal   *int                  `json:"unread_total,omitempty"`
	CounterpartID string                `json:"counterpart_id,omitempty"`
	Messages      []models.Message      `json:"messages,omitempty"`
	Notification  *models.Notification  `json:"notification,omitempty"`
	Message       *models.Message       `json:"message,omitempty"`
	TempID        string                `json:"temp_id,omitempty"`
	Error         string                `json:"error,omitempty"`
}
