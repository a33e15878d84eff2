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
	"sync"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

type subscriber struct {
	mu      sync.RWMutex
	closed  bool
	filter  storage.Filter
	onEvent func(models.ChangeEvent)

	id    uint64
	store *Store
}

// Publish delivers an event to matching subscribers. Gateway writes call
// it implicitly.
func (s *Store) Publish(_ context.Context, event models.ChangeEvent) error {
	if event.New.RecipientID == "" {
		return errors.New("recipient id is required")
	}
	s.deliver(event)
	return nil
}

func (s *Store) Subscribe(_ context.Context, table string, filter storage.Filter, onEvent func(models.ChangeEvent)) (storage.Subscription, error) {
	if table != storage.TableMessages {
		return nil, fmt.Errorf("unsupported table %q", table)
	}
	if !filter.Valid() {
		return nil, errors.New("exactly one of recipient id and sender id is required")
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	sub := &subscriber{
		filter:  filter,
		onEvent: onEvent,
		id:      s.nextID,
		store:   s,
	}
	s.subs[sub.id] = sub
	return sub, nil
}

// Subscribers reports the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Store) deliver(event models.ChangeEvent) {
	s.subMu.Lock()
	var targets []*subscriber
	for _, sub := range s.subs {
		if sub.filter.Matches(event.New) {
			targets = append(targets, sub)
		}
	}
	s.subMu.Unlock()

	for _, sub := range targets {
		sub.mu.RLock()
		if !sub.closed {
			sub.onEvent(event)
		}
		sub.mu.RUnlock()
	}
}

// Unsubscribe waits for an in-flight delivery to finish. It must not be
// called from the subscriber's own callback.
func (sub *subscriber) Unsubscribe() error {
	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()

	sub.store.subMu.Lock()
	delete(sub.store.subs, sub.id)
	sub.store.subMu.Unlock()
	return nil
}
