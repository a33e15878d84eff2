// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

const (
	// Redis channel prefixes
	messageChannelPrefix = "messages:recipient:" // messages:recipient:{userId} - change events for a recipient
	senderChannelPrefix  = "messages:sender:"    // messages:sender:{userId} - change events for a sender
)

var (
	errMissingRecipient = errors.New("recipient id is required")
	errInvalidFilter    = errors.New("exactly one of recipient id and sender id is required")
)

// Bus publishes message change events over Redis pub/sub, one channel per
// recipient and one per sender, so that every API instance can fan events
// out to its own views.
type Bus struct {
	rdb *redis.Client
	log *zap.Logger
}

var _ storage.EventBus = (*Bus)(nil)

func NewBus(rdb *redis.Client, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		rdb: rdb,
		log: log.Named("redis_bus"),
	}
}

// ChannelFor returns the pub/sub channel carrying events for a recipient.
func ChannelFor(recipientID string) string {
	return messageChannelPrefix + recipientID
}

// SenderChannelFor returns the pub/sub channel carrying events for a sender.
func SenderChannelFor(senderID string) string {
	return senderChannelPrefix + senderID
}

func channelForFilter(filter storage.Filter) string {
	if filter.RecipientID != "" {
		return ChannelFor(filter.RecipientID)
	}
	return SenderChannelFor(filter.SenderID)
}

// Publish sends the event to the channels of the message's recipient and
// sender.
func (b *Bus) Publish(ctx context.Context, event models.ChangeEvent) error {
	if event.New.RecipientID == "" {
		return errMissingRecipient
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.rdb.Publish(ctx, ChannelFor(event.New.RecipientID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if event.New.SenderID != "" {
		if err := b.rdb.Publish(ctx, SenderChannelFor(event.New.SenderID), data).Err(); err != nil {
			return fmt.Errorf("failed to publish event to sender: %w", err)
		}
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription.
func (b *Bus) Subscribe(ctx context.Context, table string, filter storage.Filter, onEvent func(models.ChangeEvent)) (storage.Subscription, error) {
	if table != storage.TableMessages {
		return nil, fmt.Errorf("unsupported table %q", table)
	}
	if !filter.Valid() {
		return nil, errInvalidFilter
	}

	channel := channelForFilter(filter)
	pubsub := b.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &subscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
		log:    b.log.With(zap.String("channel", channel)),
	}
	go sub.run(onEvent)
	return sub, nil
}

type subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
	err    error
	log    *zap.Logger
}

func (s *subscription) run(onEvent func(models.ChangeEvent)) {
	defer close(s.done)

	for msg := range s.pubsub.Channel() {
		var event models.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			s.log.Warn("skipping malformed event", zap.Error(err))
			continue
		}
		onEvent(event)
	}
}

// Unsubscribe closes the subscription and waits for the delivery goroutine,
// so no callback runs after it returns. It must not be called from onEvent.
func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
		<-s.done
	})
	return s.err
}
