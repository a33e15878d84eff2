// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package messaging

import (
	"unicode/utf8"

	"github.com/inclusivelearn/eduaccess/backend/models"
)

// PreviewLength caps the content shown in a new-message notification.
const PreviewLength = 30

const ellipsis = "..."

// Preview shortens content to at most limit runes, appending an ellipsis
// when anything was cut.
func Preview(content string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return content
	}
	runes := []rune(content)
	return string(runes[:limit]) + ellipsis
}

// NewMessageNotification builds the toast for an incoming message. The
// sender is named when their profile is known.
func NewMessageNotification(sender *models.Profile, content string) models.Notification {
	title := "New message"
	if sender != nil {
		title = "New message from " + sender.DisplayName()
	}
	return models.Notification{
		Title:       title,
		Description: Preview(content, PreviewLength),
		Severity:    models.SeverityDefault,
	}
}

// ErrorNotification builds the toast for a failed user action.
func ErrorNotification(title string, err error) models.Notification {
	return models.Notification{
		Title:       title,
		Description: err.Error(),
		Severity:    models.SeverityDestructive,
	}
}
