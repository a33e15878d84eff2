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

	"github.com/lib/pq"

	"github.com/inclusivelearn/eduaccess/backend/models"
)

const messageColumns = `id, sender_id, recipient_id, content, created_at, read`

func (s *Store) ListMessagesInvolving(ctx context.Context, userID string, order models.ListOrder) ([]models.Message, error) {
	direction := "DESC"
	if order == models.OldestFirst {
		direction = "ASC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at `+direction+`, seq `+direction,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *Store) ListThread(ctx context.Context, userID, otherUserID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at ASC, seq ASC`,
		userID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list thread: %w", err)
	}
	return scanMessages(rows)
}

// InsertMessage stores an unread message with a server-assigned id and timestamp.
func (s *Store) InsertMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error) {
	created := models.Message{
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, content, read)
		VALUES ($1, $2, $3, false)
		RETURNING id, created_at`,
		msg.SenderID, msg.RecipientID, msg.Content).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	s.publish(ctx, models.ChangeEvent{EventType: models.EventInsert, New: created})
	return &created, nil
}

// UpdateMessagesReadState flips the read flag of every id in one statement.
// Rows already in the requested state are left untouched and not announced.
func (s *Store) UpdateMessagesReadState(ctx context.Context, ids []string, read bool) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := s.db.QueryContext(ctx, `
		UPDATE messages SET read = $1
		WHERE id::text = ANY($2) AND read <> $1
		RETURNING `+messageColumns,
		read, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to update read state: %w", err)
	}

	updated, err := scanMessages(rows)
	if err != nil {
		return err
	}

	for _, msg := range updated {
		old := msg
		old.Read = !read
		s.publish(ctx, models.ChangeEvent{EventType: models.EventUpdate, New: msg, Old: &old})
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID,
			&msg.Content, &msg.CreatedAt, &msg.Read); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
