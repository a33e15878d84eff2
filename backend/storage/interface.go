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

package storage

import (
	"context"
	"errors"

	"github.com/inclusivelearn/eduaccess/backend/models"
)

// ErrNotFound is returned when a single-record lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// TableMessages is the only table the event bus publishes changes for.
const TableMessages = "messages"

type MessageStore interface {
	// ListMessagesInvolving returns every message where userID is sender or recipient.
	ListMessagesInvolving(ctx context.Context, userID string, order models.ListOrder) ([]models.Message, error)
	// ListThread returns the messages between two users, oldest first.
	ListThread(ctx context.Context, userID, otherUserID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error)
	// UpdateMessagesReadState sets read on all ids in a single write.
	UpdateMessagesReadState(ctx context.Context, ids []string, read bool) error
}

type ProfileStore interface {
	ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

type ActivityStore interface {
	RecordActivity(ctx context.Context, activity models.Activity) error
	ListActivity(ctx context.Context, userID string, limit int) ([]models.Activity, error)
}

// Gateway is the persistence surface the messaging subsystem consumes.
type Gateway interface {
	MessageStore
	ProfileStore
	ActivityStore
}

// Filter scopes a subscription to the messages received by RecipientID or
// the messages sent by SenderID. Exactly one of the two is set.
type Filter struct {
	RecipientID string
	SenderID    string
}

// Valid reports whether exactly one participant is set.
func (f Filter) Valid() bool {
	return (f.RecipientID == "") != (f.SenderID == "")
}

// Matches reports whether a message falls within the filter.
func (f Filter) Matches(msg models.Message) bool {
	if f.RecipientID != "" {
		return msg.RecipientID == f.RecipientID
	}
	return f.SenderID != "" && msg.SenderID == f.SenderID
}

// Subscription is a live bus subscription handle.
type Subscription interface {
	Unsubscribe() error
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

// EventBus delivers row-change events for a table.
type EventBus interface {
	EventPublisher
	// Subscribe returns once the subscription is established. onEvent may be
	// called from another goroutine until Unsubscribe returns.
	Subscribe(ctx context.Context, table string, filter Filter, onEvent func(models.ChangeEvent)) (Subscription, error)
}
