// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package memory

import (
	"time"

	"github.com/inclusivelearn/eduaccess/backend/models"
)

// Seed returns the demo participants used by the development driver.
func Seed() []models.Profile {
	created := time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)
	return []models.Profile{
		{ID: "teacher-sarah-williams", FirstName: "Sarah", LastName: "Williams", Role: models.RoleTeacher, CreatedAt: created},
		{ID: "teacher-james-peterson", FirstName: "James", LastName: "Peterson", Role: models.RoleTeacher, CreatedAt: created},
		{ID: "teacher-emily-chen", FirstName: "Emily", LastName: "Chen", Role: models.RoleTeacher, CreatedAt: created},
		{ID: "student-alex-morgan", FirstName: "Alex", LastName: "Morgan", Role: models.RoleStudent, CreatedAt: created},
		{ID: "student-priya-nair", FirstName: "Priya", LastName: "Nair", Role: models.RoleStudent, CreatedAt: created},
	}
}
