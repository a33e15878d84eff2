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

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
	redisStore "github.com/inclusivelearn/eduaccess/backend/storage/redis"
)

// Store is the PostgreSQL gateway. Message writes are announced on the
// event bus after they commit.
type Store struct {
	db     *sql.DB
	events storage.EventPublisher
	log    *zap.Logger
}

var _ storage.Gateway = (*Store)(nil)

// NewStore wires the gateway to a Redis event bus. A nil client disables
// change publishing.
func NewStore(db *sql.DB, rdb *redis.Client, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	var events storage.EventPublisher
	if rdb != nil {
		events = redisStore.NewBus(rdb, log)
	}
	return NewStoreWithPublisher(db, events, log)
}

// NewStoreWithPublisher lets callers supply any publisher, or nil.
func NewStoreWithPublisher(db *sql.DB, events storage.EventPublisher, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:     db,
		events: events,
		log:    log.Named("postgres"),
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// publish never fails the caller: the row is already committed.
func (s *Store) publish(ctx context.Context, event models.ChangeEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish change event",
			zap.String("event_type", string(event.EventType)),
			zap.String("message_id", event.New.ID),
			zap.Error(err))
	}
}
