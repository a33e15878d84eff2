// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package postgres

func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		// Profiles are owned by the platform; the table is created here so a
		// fresh database is usable.
		`CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR(255) PRIMARY KEY,
			first_name VARCHAR(255),
			last_name VARCHAR(255),
			role VARCHAR(32) NOT NULL DEFAULT 'student',
			avatar_url TEXT,
			bio TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// seq breaks created_at ties in insertion order
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			seq BIGSERIAL NOT NULL,
			sender_id VARCHAR(255) NOT NULL,
			recipient_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL CHECK (length(btrim(content)) > 0),
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT no_self_message CHECK (sender_id <> recipient_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_sender
		ON messages(sender_id, created_at DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_recipient
		ON messages(recipient_id, created_at DESC)`,

		// Index for unread lookups when a conversation is opened
		`CREATE INDEX IF NOT EXISTS idx_messages_unread
		ON messages(recipient_id, sender_id)
		WHERE read = FALSE`,

		`CREATE TABLE IF NOT EXISTS activity_log (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id VARCHAR(255) NOT NULL,
			activity_type VARCHAR(32) NOT NULL CHECK (activity_type IN (
				'login', 'view_content', 'complete_content',
				'submit_quiz', 'receive_badge', 'message_sent')),
			description TEXT NOT NULL,
			points_earned INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activity_user
		ON activity_log(user_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
