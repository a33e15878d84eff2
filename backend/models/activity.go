// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

type ActivityType string

const (
	ActivityLogin           ActivityType = "login"
	ActivityViewContent     ActivityType = "view_content"
	ActivityCompleteContent ActivityType = "complete_content"
	ActivitySubmitQuiz      ActivityType = "submit_quiz"
	ActivityReceiveBadge    ActivityType = "receive_badge"
	ActivityMessageSent     ActivityType = "message_sent"
)

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityLogin, ActivityViewContent, ActivityCompleteContent,
		ActivitySubmitQuiz, ActivityReceiveBadge, ActivityMessageSent:
		return true
	}
	return false
}

// Activity is one entry of a user's activity log.
type Activity struct {
	ID           string       `json:"id" db:"id"`
	UserID       string       `json:"user_id" db:"user_id"`
	ActivityType ActivityType `json:"activity_type" db:"activity_type"`
	Description  string       `json:"description" db:"description"`
	PointsEarned int          `json:"points_earned" db:"points_earned"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}
