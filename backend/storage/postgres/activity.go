// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/inclusivelearn/eduaccess/backend/models"
)

func (s *Store) RecordActivity(ctx context.Context, activity models.Activity) error {
	if !activity.ActivityType.Valid() {
		return fmt.Errorf("unknown activity type %q", activity.ActivityType)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (user_id, activity_type, description, points_earned)
		VALUES ($1, $2, $3, $4)`,
		activity.UserID, string(activity.ActivityType), activity.Description, activity.PointsEarned)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, activity_type, description, points_earned, created_at
		FROM activity_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		var activityType string
		var points sql.NullInt64
		if err := rows.Scan(&a.ID, &a.UserID, &activityType, &a.Description, &points, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.ActivityType = models.ActivityType(activityType)
		a.PointsEarned = int(points.Int64)
		activities = append(activities, a)
	}

	return activities, rows.Err()
}
