// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package messaging_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
	"github.com/inclusivelearn/eduaccess/backend/storage/memory"
)

const (
	alex  = "student-alex-morgan"
	priya = "student-priya-nair"
	sarah = "teacher-sarah-williams"
	james = "teacher-james-peterson"
)

var errBoom = errors.New("boom")

func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// faultyGateway wraps the memory store with failure injection and call
// recording.
type faultyGateway struct {
	*memory.Store

	mu          sync.Mutex
	insertErr   error
	activityErr error
	listErr     error
	profilesErr error
	updateErr   error
	inserts     int
	batches     [][]string

	gates      map[string]chan struct{}
	entered    chan string
	threadErrs map[string]error

	listHold    chan struct{}
	listEntered chan struct{}
}

func newFaultyGateway() *faultyGateway {
	return &faultyGateway{
		Store:   memory.NewStore(memory.Seed(), memory.WithClock(tickingClock())),
		gates:       make(map[string]chan struct{}),
		entered:     make(chan string, 8),
		threadErrs:  make(map[string]error),
		listEntered: make(chan struct{}, 1),
	}
}

func (g *faultyGateway) set(fn func(g *faultyGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

// gate makes ListThread for otherUserID block until the returned channel is closed.
func (g *faultyGateway) gate(otherUserID string) chan struct{} {
	ch := make(chan struct{})
	g.set(func(g *faultyGateway) { g.gates[otherUserID] = ch })
	return ch
}

// holdNextList makes the next ListMessagesInvolving take its snapshot and
// then block until the returned channel is closed.
func (g *faultyGateway) holdNextList() chan struct{} {
	ch := make(chan struct{})
	g.set(func(g *faultyGateway) { g.listHold = ch })
	return ch
}

func (g *faultyGateway) Inserts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inserts
}

func (g *faultyGateway) Batches() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]string(nil), g.batches...)
}

func (g *faultyGateway) InsertMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error) {
	g.mu.Lock()
	g.inserts++
	err := g.insertErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return g.Store.InsertMessage(ctx, msg)
}

func (g *faultyGateway) UpdateMessagesReadState(ctx context.Context, ids []string, read bool) error {
	g.mu.Lock()
	g.batches = append(g.batches, append([]string(nil), ids...))
	err := g.updateErr
	g.mu.Unlock()
	if err != nil {
		return err
	}
	return g.Store.UpdateMessagesReadState(ctx, ids, read)
}

func (g *faultyGateway) RecordActivity(ctx context.Context, activity models.Activity) error {
	g.mu.Lock()
	err := g.activityErr
	g.mu.Unlock()
	if err != nil {
		return err
	}
	return g.Store.RecordActivity(ctx, activity)
}

func (g *faultyGateway) ListMessagesInvolving(ctx context.Context, userID string, order models.ListOrder) ([]models.Message, error) {
	g.mu.Lock()
	err := g.listErr
	hold := g.listHold
	g.listHold = nil
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	msgs, err := g.Store.ListMessagesInvolving(ctx, userID, order)
	if hold != nil {
		g.listEntered <- struct{}{}
		<-hold
	}
	return msgs, err
}

func (g *faultyGateway) ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	g.mu.Lock()
	err := g.profilesErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return g.Store.ListProfiles(ctx, ids)
}

func (g *faultyGateway) ListThread(ctx context.Context, userID, otherUserID string) ([]models.Message, error) {
	g.mu.Lock()
	gate := g.gates[otherUserID]
	g.mu.Unlock()
	if gate != nil {
		g.entered <- otherUserID
		<-gate
	}

	g.mu.Lock()
	err := g.threadErrs[otherUserID]
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return g.Store.ListThread(ctx, userID, otherUserID)
}

// seed inserts messages directly into the underlying store.
func (g *faultyGateway) seed(from, to string, contents ...string) []models.Message {
	var out []models.Message
	for _, content := range contents {
		msg, err := g.Store.InsertMessage(context.Background(), models.NewMessage{SenderID: from, RecipientID: to, Content: content})
		if err != nil {
			panic(err)
		}
		out = append(out, *msg)
	}
	return out
}

// recordingListener captures everything a view reports.
type recordingListener struct {
	mu            sync.Mutex
	conversations [][]models.Conversation
	threads       map[string][]models.Message
	notifications []models.Notification
}

func newRecordingListener() *recordingListener {
	return &recordingListener{threads: make(map[string][]models.Message)}
}

func (l *recordingListener) ConversationsChanged(conversations []models.Conversation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conversations = append(l.conversations, conversations)
}

func (l *recordingListener) ThreadChanged(counterpartID string, messages []models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.threads[counterpartID] = messages
}

func (l *recordingListener) Notify(notification models.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifications = append(l.notifications, notification)
}

func (l *recordingListener) Latest() []models.Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.conversations) == 0 {
		return nil
	}
	return l.conversations[len(l.conversations)-1]
}

func (l *recordingListener) Thread(counterpartID string) []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Message(nil), l.threads[counterpartID]...)
}

func (l *recordingListener) Notifications() []models.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Notification(nil), l.notifications...)
}

// failingBus refuses every subscription.
type failingBus struct{}

func (failingBus) Publish(context.Context, models.ChangeEvent) error { return errBoom }

func (failingBus) Subscribe(context.Context, string, storage.Filter, func(models.ChangeEvent)) (storage.Subscription, error) {
	return nil, errBoom
}

// recordingCache counts dispatcher invalidations.
type recordingCache struct {
	mu      sync.Mutex
	lists   int
	threads []string
}

func (c *recordingCache) InvalidateConversations() {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
}

func (c *recordingCache) InvalidateThread(counterpartID string) {
	c.mu.Lock()
	c.threads = append(c.threads, counterpartID)
	c.mu.Unlock()
}
