// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import (
	"strings"
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// unknownUserLabel is shown when a counterpart has no profile yet.
const unknownUserLabel = "Unknown user"

// Profile is read-only to the messaging subsystem and only used for display.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Role      string    `json:"role" db:"role"`
	AvatarURL *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	Bio       *string   `json:"bio,omitempty" db:"bio"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DisplayName joins first and last name, falling back to a fixed label.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		return unknownUserLabel
	}
	return name
}

// DisplayNameOf is DisplayName for a possibly missing profile.
func DisplayNameOf(p *Profile) string {
	if p == nil {
		return unknownUserLabel
	}
	return p.DisplayName()
}
