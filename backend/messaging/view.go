// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/models"
	"github.com/inclusivelearn/eduaccess/backend/storage"
)

// Listener receives the view's state changes. Calls may come from any
// goroutine owned by the view.
type Listener interface {
	ConversationsChanged(conversations []models.Conversation)
	ThreadChanged(counterpartID string, messages []models.Message)
	Notify(notification models.Notification)
}

// View is one mounted messaging screen of one user. It owns the user's
// conversation cache, refetches whatever the dispatcher or the event bus
// invalidates, and raises notifications for incoming messages.
type View struct {
	userID     string
	gateway    storage.Gateway
	bus        storage.EventBus
	listener   Listener
	log        *zap.Logger
	store      *ConversationStore
	dispatcher *Dispatcher

	mu      sync.Mutex
	mounted bool
	subs    []storage.Subscription
	cancel  context.CancelFunc
	done    chan struct{}

	kick chan struct{}
}

// NewView builds an unmounted view. bus may be nil, in which case the view
// only refreshes on explicit calls.
func NewView(userID string, gateway storage.Gateway, bus storage.EventBus, listener Listener, log *zap.Logger) *View {
	if log == nil {
		log = zap.NewNop()
	}
	v := &View{
		userID:   userID,
		gateway:  gateway,
		bus:      bus,
		listener: listener,
		log:      log.Named("view").With(zap.String("user_id", userID)),
		store:    NewConversationStore(),
		kick:     make(chan struct{}, 1),
	}
	v.dispatcher = NewDispatcher(gateway, v, log)
	return v
}

// Mount subscribes to the user's message events and loads the conversation
// list. A failed subscription is logged and the view keeps working without
// live updates; a failed initial load is returned.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v.mounted = true
	v.cancel = cancel
	v.done = make(chan struct{})
	v.mu.Unlock()

	go v.loop(loopCtx)

	// Subscribe before the first fetch so no event between the two is lost.
	if err := v.subscribe(ctx); err != nil {
		var subErr *SubscriptionError
		if errors.As(err, &subErr) {
			v.log.Warn("realtime unavailable, falling back to fetch on focus", zap.Error(err))
		}
	}

	return v.Refresh(ctx)
}

func (v *View) subscribe(ctx context.Context) error {
	if v.bus == nil {
		return &SubscriptionError{Channel: storage.TableMessages, Err: errors.New("no event bus configured")}
	}

	// Sent messages are followed too, so a send made through another
	// connection of the same user still refreshes this view.
	var subs []storage.Subscription
	for _, filter := range []storage.Filter{{RecipientID: v.userID}, {SenderID: v.userID}} {
		sub, err := v.bus.Subscribe(ctx, storage.TableMessages, filter, v.handleEvent)
		if err != nil {
			unsubscribeAll(subs)
			return &SubscriptionError{Channel: storage.TableMessages, Err: err}
		}
		subs = append(subs, sub)
	}

	v.mu.Lock()
	v.subs = subs
	v.mu.Unlock()
	return nil
}

func unsubscribeAll(subs []storage.Subscription) error {
	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unmount tears down the subscription and the refresh loop. It waits for
// background work of the view and is safe to call more than once.
func (v *View) Unmount() error {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.mounted = false
	subs := v.subs
	v.subs = nil
	cancel, done := v.cancel, v.done
	v.mu.Unlock()

	err := unsubscribeAll(subs)
	cancel()
	<-done
	v.dispatcher.Wait()
	return err
}

// Live reports whether realtime updates are flowing.
func (v *View) Live() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs) > 0
}

func (v *View) UserID() string {
	return v.userID
}

// Conversations returns the cached conversation list.
func (v *View) Conversations() []models.Conversation {
	return v.store.Conversations()
}

// Thread returns the active counterpart and its cached messages.
func (v *View) Thread() (string, []models.Message) {
	return v.store.Thread()
}

// InvalidateConversations implements Cache.
func (v *View) InvalidateConversations() {
	v.store.InvalidateConversations()
	v.signal()
}

// InvalidateThread implements Cache.
func (v *View) InvalidateThread(counterpartID string) {
	if v.store.InvalidateThread(counterpartID) {
		v.signal()
	}
}

func (v *View) signal() {
	select {
	case v.kick <- struct{}{}:
	default:
	}
}

// loop coalesces invalidations into refetches.
func (v *View) loop(ctx context.Context) {
	defer close(v.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.kick:
			v.syncStale(ctx)
		}
	}
}

func (v *View) syncStale(ctx context.Context) {
	list, thread, active := v.store.Stale()
	if list {
		if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
			v.log.Warn("conversation refresh failed", zap.Error(err))
		}
	}
	if thread {
		if err := v.refreshThread(ctx, active); err != nil && ctx.Err() == nil {
			v.log.Warn("thread refresh failed", zap.String("counterpart_id", active), zap.Error(err))
		}
	}
}

// Refresh refetches and re-aggregates the conversation list. A missing
// profile lookup degrades to conversations without profiles.
func (v *View) Refresh(ctx context.Context) error {
	ticket := v.store.BeginConversations()

	conversations, err := LoadConversations(ctx, v.gateway, v.userID, v.log)
	if err != nil {
		return err
	}

	if err := v.store.ApplyConversations(ticket, conversations); err != nil {
		if errors.Is(err, ErrStaleResponse) {
			v.log.Debug("dropped stale conversation list")
			return nil
		}
		return err
	}

	if v.listener != nil {
		v.listener.ConversationsChanged(v.store.Conversations())
	}
	return nil
}

// Open focuses a conversation, loads its thread and marks it read once.
// When the user has switched elsewhere before the thread arrives, the
// result is dropped and ErrStaleResponse is returned.
func (v *View) Open(ctx context.Context, counterpartID string) ([]models.Message, error) {
	if counterpartID == "" || counterpartID == v.userID {
		return nil, &ValidationError{Field: "counterpart_id", Reason: "must name another user"}
	}

	ticket := v.store.SetActive(counterpartID)

	thread, err := v.gateway.ListThread(ctx, v.userID, counterpartID)
	if err != nil {
		if v.store.Active() != counterpartID {
			v.log.Debug("dropped failed fetch of inactive thread", zap.String("counterpart_id", counterpartID), zap.Error(err))
			return nil, ErrStaleResponse
		}
		return nil, gatewayError("list thread", err)
	}
	if err := v.store.ApplyThread(ticket, thread); err != nil {
		v.log.Debug("dropped stale thread", zap.String("counterpart_id", counterpartID))
		return nil, err
	}
	v.publishThread()

	marked, err := v.dispatcher.MarkRead(ctx, v.userID, thread)
	if err != nil {
		v.log.Warn("failed to mark conversation read", zap.String("counterpart_id", counterpartID), zap.Error(err))
	} else if marked > 0 {
		v.store.MarkThreadReadLocal(v.userID, counterpartID)
		v.publishThread()
		if v.listener != nil {
			v.listener.ConversationsChanged(v.store.Conversations())
		}
	}

	_, current := v.store.Thread()
	return current, nil
}

// CloseThread drops focus from the active conversation.
func (v *View) CloseThread() {
	v.store.ClearActive()
}

func (v *View) refreshThread(ctx context.Context, counterpartID string) error {
	ticket, ok := v.store.BeginThread(counterpartID)
	if !ok {
		return nil
	}

	thread, err := v.gateway.ListThread(ctx, v.userID, counterpartID)
	if err != nil {
		return gatewayError("list thread", err)
	}
	if err := v.store.ApplyThread(ticket, thread); err != nil {
		if errors.Is(err, ErrStaleResponse) {
			return nil
		}
		return err
	}

	v.publishThread()
	return nil
}

func (v *View) publishThread() {
	if v.listener == nil {
		return
	}
	active, thread := v.store.Thread()
	if active != "" {
		v.listener.ThreadChanged(active, thread)
	}
}

// Send delivers a message. When the recipient's thread is open the message
// is shown provisionally and rolled back if the write fails.
func (v *View) Send(ctx context.Context, recipientID, content string) (*models.Message, error) {
	if err := ValidateSend(v.userID, recipientID, content); err != nil {
		return nil, err
	}

	tempID := "pending-" + uuid.NewString()
	optimistic := v.store.AppendOptimistic(models.Message{
		ID:          tempID,
		SenderID:    v.userID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	})
	if optimistic {
		v.publishThread()
	}

	msg, err := v.dispatcher.SendMessage(ctx, v.userID, recipientID, content)
	if err != nil {
		if optimistic && v.store.RemoveOptimistic(tempID) {
			v.publishThread()
		}
		return nil, err
	}

	if optimistic {
		v.store.ConfirmOptimistic(tempID, *msg)
	}
	return msg, nil
}

// handleEvent runs on the bus delivery goroutine.
func (v *View) handleEvent(event models.ChangeEvent) {
	v.InvalidateConversations()

	counterpart := event.New.Counterpart(v.userID)
	v.InvalidateThread(counterpart)

	if event.EventType == models.EventInsert && event.New.SenderID != v.userID && v.listener != nil {
		v.listener.Notify(NewMessageNotification(v.store.Profile(counterpart), event.New.Content))
	}
}
