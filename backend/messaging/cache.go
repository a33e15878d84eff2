// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package messaging

import (
	"sync"

	"github.com/inclusivelearn/eduaccess/backend/models"
)

// ListTicket identifies one conversation-list fetch.
type ListTicket struct {
	gen   uint64
	inval uint64
}

// ThreadTicket identifies one thread fetch for a counterpart.
type ThreadTicket struct {
	counterpartID string
	gen           uint64
	inval         uint64
}

// ConversationStore caches the aggregated conversation list and the active
// thread of one messaging view.
//
// Every fetch starts with a ticket. Only the most recent ticket for a
// resource may be applied, and a thread ticket also requires its
// counterpart to still be active, so a slow response can never overwrite a
// newer one. A ticket also records how many invalidations it has seen; a
// fetch begun before the latest invalidation is applied but leaves the
// resource stale. Server data is authoritative: applying a thread drops any
// optimistic messages.
type ConversationStore struct {
	mu sync.Mutex

	conversations []models.Conversation
	listGen       uint64
	listInval     uint64
	listStale     bool

	active      string
	thread      []models.Message
	pending     []models.Message
	threadGen   uint64
	threadInval uint64
	threadStale bool
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{}
}

func (s *ConversationStore) BeginConversations() ListTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listGen++
	return ListTicket{gen: s.listGen, inval: s.listInval}
}

func (s *ConversationStore) ApplyConversations(t ListTicket, conversations []models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.gen != s.listGen {
		return ErrStaleResponse
	}
	s.conversations = conversations
	if t.inval == s.listInval {
		s.listStale = false
	}
	return nil
}

// SetActive focuses a counterpart and returns the ticket for its thread fetch.
// Switching to another counterpart clears the cached thread.
func (s *ConversationStore) SetActive(counterpartID string) ThreadTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != counterpartID {
		s.active = counterpartID
		s.thread = nil
		s.pending = nil
	}
	s.threadGen++
	return ThreadTicket{counterpartID: counterpartID, gen: s.threadGen, inval: s.threadInval}
}

// BeginThread starts a refetch of the active thread. It reports false when
// counterpartID is not active.
func (s *ConversationStore) BeginThread(counterpartID string) (ThreadTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if counterpartID == "" || s.active != counterpartID {
		return ThreadTicket{}, false
	}
	s.threadGen++
	return ThreadTicket{counterpartID: counterpartID, gen: s.threadGen, inval: s.threadInval}, true
}

func (s *ConversationStore) ApplyThread(t ThreadTicket, messages []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.counterpartID != s.active || t.gen != s.threadGen {
		return ErrStaleResponse
	}
	s.thread = messages
	s.pending = nil
	if t.inval == s.threadInval {
		s.threadStale = false
	}
	return nil
}

// ClearActive drops focus and cancels any in-flight thread fetch.
func (s *ConversationStore) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
	s.thread = nil
	s.pending = nil
	s.threadGen++
}

func (s *ConversationStore) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *ConversationStore) InvalidateConversations() {
	s.mu.Lock()
	s.listInval++
	s.listStale = true
	s.mu.Unlock()
}

// InvalidateThread marks the thread stale if counterpartID is active.
func (s *ConversationStore) InvalidateThread(counterpartID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if counterpartID == "" || s.active != counterpartID {
		return false
	}
	s.threadInval++
	s.threadStale = true
	return true
}

// Stale reports which cached resources need a refetch, and the active
// counterpart at the time of the check.
func (s *ConversationStore) Stale() (list bool, thread bool, active string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listStale, s.threadStale && s.active != "", s.active
}

// AppendOptimistic adds a provisional message to the active thread. It
// reports false when the message does not belong to the active thread.
func (s *ConversationStore) AppendOptimistic(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" || (msg.RecipientID != s.active && msg.SenderID != s.active) {
		return false
	}
	s.pending = append(s.pending, msg)
	return true
}

// ConfirmOptimistic swaps a provisional message for the stored one.
func (s *ConversationStore) ConfirmOptimistic(tempID string, stored models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		if s.pending[i].ID == tempID {
			s.pending[i] = stored
			return
		}
	}
}

// RemoveOptimistic rolls back a provisional message after a failed send.
func (s *ConversationStore) RemoveOptimistic(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		if s.pending[i].ID == tempID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// MarkThreadReadLocal mirrors a successful server read update. The next
// authoritative fetch overwrites it.
func (s *ConversationStore) MarkThreadReadLocal(userID, counterpartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == counterpartID {
		for i := range s.thread {
			if s.thread[i].UnreadFor(userID) {
				s.thread[i].Read = true
			}
		}
	}
	for i := range s.conversations {
		conv := &s.conversations[i]
		if conv.CounterpartID != counterpartID {
			continue
		}
		for j := range conv.Messages {
			if conv.Messages[j].UnreadFor(userID) {
				conv.Messages[j].Read = true
			}
		}
		if conv.LastMessage.UnreadFor(userID) {
			conv.LastMessage.Read = true
		}
		conv.UnreadCount = 0
	}
}

// Conversations returns a copy of the cached list.
func (s *ConversationStore) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		conv.Messages = append([]models.Message(nil), conv.Messages...)
		out[i] = conv
	}
	return out
}

// Thread returns the active counterpart and a copy of its thread, including
// provisional messages.
func (s *ConversationStore) Thread() (string, []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0, len(s.thread)+len(s.pending))
	out = append(out, s.thread...)
	out = append(out, s.pending...)
	return s.active, out
}

// Profile returns the cached profile of a counterpart, if any.
func (s *ConversationStore) Profile(counterpartID string) *models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.conversations {
		if conv.CounterpartID == counterpartID && conv.Profile != nil {
			p := *conv.Profile
			return &p
		}
	}
	return nil
}
