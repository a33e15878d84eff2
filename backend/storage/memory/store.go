// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

var (
	ErrSelfMessage  = errors.New("sender and recipient must differ")
	ErrEmptyContent = errors.New("content must not be empty")
)

// Store is an in-process gateway and event bus for development and tests.
// Writes are announced to subscribers synchronously, after the store lock
// is released.
type Store struct {
	mu       sync.RWMutex
	messages []models.Message // insertion order
	profiles map[string]models.Profile
	activity []models.Activity

	subMu  sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64

	now func() time.Time
}

var (
	_ storage.Gateway  = (*Store)(nil)
	_ storage.EventBus = (*Store)(nil)
)

type Option func(*Store)

// WithClock overrides the timestamp source for inserts.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store preloaded with the supplied profiles.
func NewStore(profiles []models.Profile, opts ...Option) *Store {
	s := &Store{
		profiles: make(map[string]models.Profile, len(profiles)),
		subs:     make(map[uint64]*subscriber),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutProfile inserts or replaces a profile.
func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	s.profiles[p.ID] = p
	s.mu.Unlock()
}

func (s *Store) ListMessagesInvolving(_ context.Context, userID string, order models.ListOrder) ([]models.Message, error) {
	s.mu.RLock()
	var out []models.Message
	for _, msg := range s.messages {
		if msg.SenderID == userID || msg.RecipientID == userID {
			out = append(out, msg)
		}
	}
	s.mu.RUnlock()

	sortMessages(out, order)
	return out, nil
}

func (s *Store) ListThread(_ context.Context, userID, otherUserID string) ([]models.Message, error) {
	s.mu.RLock()
	out := []models.Message{}
	for _, msg := range s.messages {
		if (msg.SenderID == userID && msg.RecipientID == otherUserID) ||
			(msg.SenderID == otherUserID && msg.RecipientID == userID) {
			out = append(out, msg)
		}
	}
	s.mu.RUnlock()

	sortMessages(out, models.OldestFirst)
	return out, nil
}

// sortMessages orders by created_at and falls back to insertion order,
// reversed for newest-first listings.
func sortMessages(msgs []models.Message, order models.ListOrder) {
	if order == models.NewestFirst {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		})
		return
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

func (s *Store) InsertMessage(_ context.Context, msg models.NewMessage) (*models.Message, error) {
	if msg.SenderID == msg.RecipientID {
		return nil, ErrSelfMessage
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyContent
	}

	created := models.Message{
		ID:          uuid.NewString(),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, created)
	s.mu.Unlock()

	s.deliver(models.ChangeEvent{EventType: models.EventInsert, New: created})
	return &created, nil
}

func (s *Store) UpdateMessagesReadState(_ context.Context, ids []string, read bool) error {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var events []models.ChangeEvent
	s.mu.Lock()
	for i := range s.messages {
		if _, ok := wanted[s.messages[i].ID]; !ok || s.messages[i].Read == read {
			continue
		}
		old := s.messages[i]
		s.messages[i].Read = read
		events = append(events, models.ChangeEvent{EventType: models.EventUpdate, New: s.messages[i], Old: &old})
	}
	s.mu.Unlock()

	for _, event := range events {
		s.deliver(event)
	}
	return nil
}

func (s *Store) ListProfiles(_ context.Context, ids []string) ([]models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Profile
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (s *Store) RecordActivity(_ context.Context, activity models.Activity) error {
	if !activity.ActivityType.Valid() {
		return fmt.Errorf("unknown activity type %q", activity.ActivityType)
	}
	activity.ID = uuid.NewString()
	activity.CreatedAt = s.now()

	s.mu.Lock()
	s.activity = append(s.activity, activity)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListActivity(_ context.Context, userID string, limit int) ([]models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Activity
	for i := len(s.activity) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.activity[i].UserID == userID {
			out = append(out, s.activity[i])
		}
	}
	return out, nil
}
