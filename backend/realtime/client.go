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

// Package realtime bridges a messaging view to a browser over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/messaging"
	"github.com/inclusivelearn/eduaccess/backend/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 32
)

// Client is one browser connection. It implements messaging.Listener.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger

	closed    chan struct{}
	closeOnce sync.Once
	commands  sync.WaitGroup
}

func NewClient(conn *websocket.Conn, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		log:    log.Named("ws"),
		closed: make(chan struct{}),
	}
}

// Serve mounts view, handles commands until the socket closes or ctx is
// cancelled, then unmounts the view.
func (c *Client) Serve(ctx context.Context, view *messaging.View) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	if err := view.Mount(ctx); err != nil {
		c.fail(ctx, "Could not load conversations", err)
	}

	c.readPump(ctx, view)

	cancel()
	c.commands.Wait()
	if err := view.Unmount(); err != nil {
		c.log.Warn("failed to unsubscribe view", zap.String("user_id", view.UserID()), zap.Error(err))
	}
	c.close()
	<-writerDone
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Client) readPump(ctx context.Context, view *messaging.View) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", zap.Error(err))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.enqueue(Frame{Type: FrameError, Error: "invalid_json"})
			continue
		}
		c.dispatch(ctx, view, cmd)
	}
}

// dispatch runs fetches concurrently so a slow thread never blocks a switch
// to another one. Sends run inline to keep their order.
func (c *Client) dispatch(ctx context.Context, view *messaging.View, cmd Command) {
	switch cmd.Type {
	case CommandOpen:
		c.async(func() {
			if _, err := view.Open(ctx, cmd.CounterpartID); err != nil {
				c.fail(ctx, "Could not load conversation", err)
			}
		})
	case CommandRefresh:
		c.async(func() {
			if err := view.Refresh(ctx); err != nil {
				c.fail(ctx, "Could not load conversations", err)
			}
		})
	case CommandSend:
		msg, err := view.Send(ctx, cmd.RecipientID, cmd.Content)
		if err != nil {
			if messaging.IsValidation(err) {
				c.enqueue(Frame{Type: FrameError, Error: err.Error(), TempID: cmd.TempID})
				return
			}
			c.fail(ctx, "Message not sent", err)
			return
		}
		c.enqueue(Frame{Type: FrameSent, Message: msg, TempID: cmd.TempID})
	case CommandCloseThread:
		view.CloseThread()
	default:
		c.enqueue(Frame{Type: FrameError, Error: "unsupported_type"})
	}
}

func (c *Client) async(fn func()) {
	c.commands.Add(1)
	go func() {
		defer c.commands.Done()
		fn()
	}()
}

// fail reports err to the browser. Stale results and errors caused by the
// connection going away are dropped.
func (c *Client) fail(ctx context.Context, title string, err error) {
	switch {
	case errors.Is(err, messaging.ErrStaleResponse), ctx.Err() != nil:
		return
	case messaging.IsValidation(err):
		c.enqueue(Frame{Type: FrameError, Error: err.Error()})
	default:
		c.log.Warn(title, zap.Error(err))
		c.Notify(messaging.ErrorNotification(title, err))
	}
}

// ConversationsChanged implements messaging.Listener.
func (c *Client) ConversationsChanged(conversations []models.Conversation) {
	total := messaging.TotalUnread(conversations)
	c.enqueue(Frame{Type: FrameConversations, Conversations: conversations, UnreadTotal: &total})
}

// ThreadChanged implements messaging.Listener.
func (c *Client) ThreadChanged(counterpartID string, messages []models.Message) {
	c.enqueue(Frame{Type: FrameThread, CounterpartID: counterpartID, Messages: messages})
}

// Notify implements messaging.Listener.
func (c *Client) Notify(notification models.Notification) {
	c.enqueue(Frame{Type: FrameNotification, Notification: &notification})
}

// enqueue never blocks: listener calls arrive on bus delivery goroutines.
func (c *Client) enqueue(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("failed to encode frame", zap.String("type", frame.Type), zap.Error(err))
		return
	}

	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.send <- data:
	case <-c.closed:
	default:
		c.log.Warn("send buffer full, dropping frame", zap.String("type", frame.Type))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.drain()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes frames queued before the client closed.
func (c *Client) drain() {
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
