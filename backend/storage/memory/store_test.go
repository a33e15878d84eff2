// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

const (
	alex  = "student-alex-morgan"
	priya = "student-priya-nair"
	sarah = "teacher-sarah-williams"
)

func fixedClock() func() time.Time {
	at := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func insert(t *testing.T, s *Store, from, to, content string) models.Message {
	t.Helper()
	msg, err := s.InsertMessage(context.Background(), models.NewMessage{SenderID: from, RecipientID: to, Content: content})
	require.NoError(t, err)
	return *msg
}

func TestListingOrderWithTiedTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Seed(), WithClock(fixedClock()))
	first := insert(t, s, sarah, alex, "first")
	second := insert(t, s, alex, sarah, "second")
	third := insert(t, s, sarah, alex, "third")
	insert(t, s, sarah, priya, "elsewhere")

	newest, err := s.ListMessagesInvolving(ctx, alex, models.NewestFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, messageIDs(newest))

	oldest, err := s.ListMessagesInvolving(ctx, alex, models.OldestFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, messageIDs(oldest))

	thread, err := s.ListThread(ctx, alex, sarah)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, messageIDs(thread))
}

func TestInsertMessageRejectsInvalidRows(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	_, err := s.InsertMessage(ctx, models.NewMessage{SenderID: alex, RecipientID: alex, Content: "me"})
	assert.ErrorIs(t, err, ErrSelfMessage)

	_, err = s.InsertMessage(ctx, models.NewMessage{SenderID: alex, RecipientID: sarah, Content: " "})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestInsertMessageDefaults(t *testing.T) {
	s := NewStore(nil, WithClock(fixedClock()))
	msg := insert(t, s, alex, sarah, "hello")

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Read)
	assert.Equal(t, fixedClock()(), msg.CreatedAt)
}

func TestSubscriptionReceivesOnlyOwnEvents(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Seed())

	var got []models.ChangeEvent
	sub, err := s.Subscribe(ctx, storage.TableMessages, storage.Filter{RecipientID: alex}, func(e models.ChangeEvent) {
		got = append(got, e)
	})
	require.NoError(t, err)

	msg := insert(t, s, sarah, alex, "for alex")
	insert(t, s, sarah, priya, "for priya")
	insert(t, s, alex, sarah, "from alex")
	require.NoError(t, s.UpdateMessagesReadState(ctx, []string{msg.ID}, true))

	require.Len(t, got, 2)
	assert.Equal(t, models.EventInsert, got[0].EventType)
	assert.Equal(t, msg.ID, got[0].New.ID)
	assert.Equal(t, models.EventUpdate, got[1].EventType)
	assert.True(t, got[1].New.Read)
	require.NotNil(t, got[1].Old)
	assert.False(t, got[1].Old.Read)

	require.NoError(t, sub.Unsubscribe())
	assert.Zero(t, s.Subscribers())
	insert(t, s, sarah, alex, "after unsubscribe")
	assert.Len(t, got, 2)
}

func TestSenderSubscriptionReceivesSentMessages(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Seed())

	var got []models.ChangeEvent
	_, err := s.Subscribe(ctx, storage.TableMessages, storage.Filter{SenderID: alex}, func(e models.ChangeEvent) {
		got = append(got, e)
	})
	require.NoError(t, err)

	sent := insert(t, s, alex, sarah, "from alex")
	insert(t, s, sarah, alex, "to alex")

	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].New.ID)
}

func TestSubscribeValidation(t *testing.T) {
	s := NewStore(nil)
	noop := func(models.ChangeEvent) {}

	_, err := s.Subscribe(context.Background(), "profiles", storage.Filter{RecipientID: alex}, noop)
	assert.Error(t, err)
	_, err = s.Subscribe(context.Background(), storage.TableMessages, storage.Filter{}, noop)
	assert.Error(t, err)
	_, err = s.Subscribe(context.Background(), storage.TableMessages, storage.Filter{RecipientID: alex, SenderID: alex}, noop)
	assert.Error(t, err)
	assert.Error(t, s.Publish(context.Background(), models.ChangeEvent{EventType: models.EventInsert}))
}

func TestUpdateMessagesReadStateSkipsUnchangedRows(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	msg := insert(t, s, sarah, alex, "hi")

	var updates int
	_, err := s.Subscribe(ctx, storage.TableMessages, storage.Filter{RecipientID: alex}, func(e models.ChangeEvent) {
		if e.EventType == models.EventUpdate {
			updates++
		}
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateMessagesReadState(ctx, []string{msg.ID, "missing"}, true))
	require.NoError(t, s.UpdateMessagesReadState(ctx, []string{msg.ID}, true))
	require.NoError(t, s.UpdateMessagesReadState(ctx, nil, true))
	assert.Equal(t, 1, updates)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Seed())

	profiles, err := s.ListProfiles(ctx, []string{sarah, "nobody", alex})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Sarah Williams", profiles[0].DisplayName())

	_, err = s.GetProfile(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	s.PutProfile(models.Profile{ID: "nobody", FirstName: "No", LastName: "Body"})
	p, err := s.GetProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "No Body", p.DisplayName())
}

func TestActivityNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	for _, desc := range []string{"one", "two", "three"} {
		require.NoError(t, s.RecordActivity(ctx, models.Activity{UserID: alex, ActivityType: models.ActivityMessageSent, Description: desc, PointsEarned: 1}))
	}
	require.NoError(t, s.RecordActivity(ctx, models.Activity{UserID: sarah, ActivityType: models.ActivityLogin, Description: "other"}))
	assert.Error(t, s.RecordActivity(ctx, models.Activity{UserID: alex, ActivityType: "dance"}))

	entries, err := s.ListActivity(ctx, alex, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "three", entries[0].Description)
	assert.Equal(t, "two", entries[1].Description)
	assert.NotEmpty(t, entries[0].ID)
}

func messageIDs(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
