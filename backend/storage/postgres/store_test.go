// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package postgres

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

const (
	alex  = "student-alex-morgan"
	sarah = "teacher-sarah-williams"
)

var (
	errBoom  = errors.New("boom")
	sentAt   = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	msgCols  = []string{"id", "sender_id", "recipient_id", "content", "created_at", "read"}
	profCols = []string{"id", "first_name", "last_name", "role", "avatar_url", "bio", "created_at"}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *recordingPublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := &recordingPublisher{}
	return NewStoreWithPublisher(db, events, nil), mock, events
}

func q(fragment string) string {
	return regexp.QuoteMeta(fragment)
}

func TestInsertMessagePublishesInsert(t *testing.T) {
	store, mock, events := newMockStore(t)

	mock.ExpectQuery(q("INSERT INTO messages (sender_id, recipient_id, content, read)")).
		WithArgs(alex, sarah, "Hello").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("m-1", sentAt))

	msg, err := store.InsertMessage(context.Background(), models.NewMessage{SenderID: alex, RecipientID: sarah, Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, sentAt, msg.CreatedAt)
	assert.False(t, msg.Read)

	require.Len(t, events.events, 1)
	assert.Equal(t, models.EventInsert, events.events[0].EventType)
	assert.Equal(t, *msg, events.events[0].New)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessageSurvivesPublishFailure(t *testing.T) {
	store, mock, events := newMockStore(t)
	events.err = errBoom

	mock.ExpectQuery(q("INSERT INTO messages")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("m-1", sentAt))

	_, err := store.InsertMessage(context.Background(), models.NewMessage{SenderID: alex, RecipientID: sarah, Content: "Hello"})
	require.NoError(t, err)
}

func TestInsertMessageFailureIsNotPublished(t *testing.T) {
	store, mock, events := newMockStore(t)

	mock.ExpectQuery(q("INSERT INTO messages")).WillReturnError(errBoom)

	_, err := store.InsertMessage(context.Background(), models.NewMessage{SenderID: alex, RecipientID: sarah, Content: "Hello"})
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, events.events)
}

func TestListMessagesInvolvingOrdering(t *testing.T) {
	tests := []struct {
		order   models.ListOrder
		orderBy string
	}{
		{models.NewestFirst, "ORDER BY created_at DESC, seq DESC"},
		{models.OldestFirst, "ORDER BY created_at ASC, seq ASC"},
	}

	for _, tt := range tests {
		store, mock, _ := newMockStore(t)
		mock.ExpectQuery(q("WHERE sender_id = $1 OR recipient_id = $1") + ".*" + q(tt.orderBy)).
			WithArgs(alex).
			WillReturnRows(sqlmock.NewRows(msgCols).
				AddRow("m-2", sarah, alex, "second", sentAt.Add(time.Minute), false).
				AddRow("m-1", alex, sarah, "first", sentAt, true))

		msgs, err := store.ListMessagesInvolving(context.Background(), alex, tt.order)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "m-2", msgs[0].ID)
		assert.True(t, msgs[1].Read)
		require.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestListThreadEmpty(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery(q("ORDER BY created_at ASC, seq ASC")).
		WithArgs(alex, sarah).
		WillReturnRows(sqlmock.NewRows(msgCols))

	msgs, err := store.ListThread(context.Background(), alex, sarah)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestUpdateMessagesReadStateIsOneStatement(t *testing.T) {
	store, mock, events := newMockStore(t)

	mock.ExpectQuery(q("UPDATE messages SET read = $1 WHERE id::text = ANY($2) AND read <> $1")).
		WithArgs(true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m-1", sarah, alex, "one", sentAt, true).
			AddRow("m-2", sarah, alex, "two", sentAt, true))

	require.NoError(t, store.UpdateMessagesReadState(context.Background(), []string{"m-1", "m-2", "m-3"}, true))
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, events.events, 2)
	for _, e := range events.events {
		assert.Equal(t, models.EventUpdate, e.EventType)
		assert.True(t, e.New.Read)
		require.NotNil(t, e.Old)
		assert.False(t, e.Old.Read)
	}
}

func TestUpdateMessagesReadStateNoIDs(t *testing.T) {
	store, mock, events := newMockStore(t)

	require.NoError(t, store.UpdateMessagesReadState(context.Background(), nil, true))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, events.events)
}

func TestGetProfileNotFound(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery(q("FROM profiles")).WithArgs("nobody").WillReturnRows(sqlmock.NewRows(profCols))

	_, err := store.GetProfile(context.Background(), "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListProfilesHandlesNulls(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery(q("WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(profCols).
			AddRow(sarah, "Sarah", "Williams", models.RoleTeacher, "https://cdn.example/s.png", nil, sentAt).
			AddRow(alex, nil, nil, models.RoleStudent, nil, nil, sentAt))

	profiles, err := store.ListProfiles(context.Background(), []string{sarah, alex})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	require.NotNil(t, profiles[0].AvatarURL)
	assert.Nil(t, profiles[0].Bio)
	assert.Equal(t, "Unknown user", profiles[1].DisplayName())

	empty, err := store.ListProfiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordActivity(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectExec(q("INSERT INTO activity_log")).
		WithArgs(alex, "message_sent", "Sent a message", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RecordActivity(context.Background(), models.Activity{
		UserID:       alex,
		ActivityType: models.ActivityMessageSent,
		Description:  "Sent a message",
		PointsEarned: 1,
	}))
	assert.Error(t, store.RecordActivity(context.Background(), models.Activity{UserID: alex, ActivityType: "dance"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActivity(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery(q("FROM activity_log")).
		WithArgs(alex, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "activity_type", "description", "points_earned", "created_at"}).
			AddRow("a-1", alex, "message_sent", "Sent a message", 1, sentAt).
			AddRow("a-2", alex, "login", "Logged in", nil, sentAt))

	entries, err := store.ListActivity(context.Background(), alex, 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActivityMessageSent, entries[0].ActivityType)
	assert.Equal(t, 1, entries[0].PointsEarned)
	assert.Zero(t, entries[1].PointsEarned)
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.MatchExpectationsInOrder(true)
	for _, fragment := range []string{
		"CREATE EXTENSION IF NOT EXISTS pgcrypto",
		"CREATE TABLE IF NOT EXISTS profiles",
		"CREATE TABLE IF NOT EXISTS messages",
		"CREATE INDEX IF NOT EXISTS idx_messages_sender",
		"CREATE INDEX IF NOT EXISTS idx_messages_recipient",
		"CREATE INDEX IF NOT EXISTS idx_messages_unread",
		"CREATE TABLE IF NOT EXISTS activity_log",
		"CREATE INDEX IF NOT EXISTS idx_activity_user",
	} {
		mock.ExpectExec(q(fragment)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, store.Migrate())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessagePublishesThroughRedis(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewStore(db, rdb, nil)
	pubsub := rdb.Subscribe(context.Background(), "messages:recipient:"+sarah)
	defer pubsub.Close()
	_, err = pubsub.Receive(context.Background())
	require.NoError(t, err)

	mock.ExpectQuery(q("INSERT INTO messages")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("m-1", sentAt))
	_, err = store.InsertMessage(context.Background(), models.NewMessage{SenderID: alex, RecipientID: sarah, Content: "Hello"})
	require.NoError(t, err)

	select {
	case msg := <-pubsub.Channel():
		assert.Contains(t, msg.Payload, `"eventType":"INSERT"`)
		assert.Contains(t, msg.Payload, `"id":"m-1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}
