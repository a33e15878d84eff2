// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package messaging

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

const (
	// MessagePoints is credited to the sender for every message sent.
	MessagePoints = 1

	activityTimeout = 5 * time.Second
)

// Cache is invalidated after writes. A nil Cache is allowed.
type Cache interface {
	InvalidateConversations()
	InvalidateThread(counterpartID string)
}

// DispatchStore is the part of the gateway the dispatcher writes to.
type DispatchStore interface {
	storage.MessageStore
	storage.ActivityStore
}

// Dispatcher sends messages and acknowledges reads.
type Dispatcher struct {
	store DispatchStore
	cache Cache
	log   *zap.Logger

	pending sync.WaitGroup
}

func NewDispatcher(store DispatchStore, cache Cache, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		store: store,
		cache: cache,
		log:   log.Named("dispatcher"),
	}
}

// ValidateSend checks a send request without touching the gateway.
func ValidateSend(senderID, recipientID, content string) error {
	switch {
	case senderID == "":
		return &ValidationError{Field: "sender_id", Reason: "is required"}
	case recipientID == "":
		return &ValidationError{Field: "recipient_id", Reason: "is required"}
	case senderID == recipientID:
		return &ValidationError{Field: "recipient_id", Reason: "cannot message yourself"}
	case strings.TrimSpace(content) == "":
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}

// SendMessage stores a new unread message from senderID to recipientID.
// The activity log entry is written in the background and its failure never
// fails the send.
func (d *Dispatcher) SendMessage(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	if err := ValidateSend(senderID, recipientID, content); err != nil {
		return nil, err
	}

	msg, err := d.store.InsertMessage(ctx, models.NewMessage{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     strings.TrimSpace(content),
	})
	if err != nil {
		return nil, gatewayError("insert message", err)
	}

	d.recordActivity(senderID)

	if d.cache != nil {
		d.cache.InvalidateConversations()
		d.cache.InvalidateThread(recipientID)
	}
	return msg, nil
}

func (d *Dispatcher) recordActivity(userID string) {
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), activityTimeout)
		defer cancel()

		err := d.store.RecordActivity(ctx, models.Activity{
			UserID:       userID,
			ActivityType: models.ActivityMessageSent,
			Description:  "Sent a message",
			PointsEarned: MessagePoints,
		})
		if err != nil {
			d.log.Warn("failed to record message activity", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

// Wait blocks until background activity writes have finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// MarkConversationRead marks every unread message from counterpartID to
// currentUserID as read with one batched update. It returns the number of
// messages flipped; calling it again is a no-op.
func (d *Dispatcher) MarkConversationRead(ctx context.Context, currentUserID, counterpartID string) (int, error) {
	if currentUserID == "" || counterpartID == "" {
		return 0, &ValidationError{Field: "counterpart_id", Reason: "is required"}
	}

	thread, err := d.store.ListThread(ctx, currentUserID, counterpartID)
	if err != nil {
		return 0, gatewayError("list thread", err)
	}
	return d.MarkRead(ctx, currentUserID, thread)
}

// MarkRead marks the unread messages of thread addressed to currentUserID as
// read in one batched update and returns how many were flipped.
func (d *Dispatcher) MarkRead(ctx context.Context, currentUserID string, thread []models.Message) (int, error) {
	ids := UnreadIDs(thread, currentUserID)
	if len(ids) == 0 {
		return 0, nil
	}

	if err := d.store.UpdateMessagesReadState(ctx, ids, true); err != nil {
		return 0, gatewayError("update read state", err)
	}

	if d.cache != nil {
		d.cache.InvalidateConversations()
	}
	return len(ids), nil
}

// UnreadIDs collects the ids of messages addressed to userID that are unread.
func UnreadIDs(messages []models.Message, userID string) []string {
	var ids []string
	for _, msg := range messages {
		if msg.UnreadFor(userID) {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}
