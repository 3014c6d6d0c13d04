// Package realtime subscribes to the backend's WebSocket push channel and
// dispatches typed mutation events (lists and items created, updated, toggled
// or deleted by other clients/sessions) plus connection-state transitions.
// Connection failure is non-fatal: the sync engine keeps working from local
// data and on-demand fetches.
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	"github.com/pocketlist/cartsync/remote"
)

// ConnState is the channel connection state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

const pingInterval = 30 * time.Second

// Handlers is the event handler set a consumer registers. Nil handlers are
// skipped.
type Handlers struct {
	ListCreated     func(list remote.List)
	ListUpdated     func(list remote.List)
	ListDeleted     func(listID int64)
	ItemAdded       func(listID int64, item remote.Item)
	ItemUpdated     func(listID int64, item remote.Item)
	ItemToggled     func(listID int64, item remote.Item)
	ItemDeleted     func(listID, itemID int64)
	ItemsToggledAll func(listID int64, checked bool)
}

// envelope is the wire format of one push message.
type envelope struct {
	Type    string       `json:"type"`
	Entity  string       `json:"entity"`
	Action  string       `json:"action"`
	ID      int64        `json:"id,omitempty"`
	ListID  int64        `json:"listId,omitempty"`
	Checked bool         `json:"checked,omitempty"`
	List    *remote.List `json:"list,omitempty"`
	Item    *remote.Item `json:"item,omitempty"`
}

// Channel is a WebSocket subscription to the backend push endpoint.
type Channel struct {
	url    string
	logger *slog.Logger

	mu       sync.Mutex
	conn     *ws.Conn
	state    ConnState
	handlers Handlers
	subs     map[int]func(ConnState)
	nextSub  int
	cancel   context.CancelFunc
}

// NewChannel creates a channel for the given WebSocket URL.
func NewChannel(url string, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		url:    url,
		logger: logger,
		state:  StateDisconnected,
		subs:   make(map[int]func(ConnState)),
	}
}

// SetEventHandlers registers the handler set. Replaces any previous set.
func (c *Channel) SetEventHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// OnStateChange subscribes to connection-state transitions and returns an
// unsubscribe function. The current state is delivered immediately.
func (c *Channel) OnStateChange(cb func(ConnState)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = cb
	state := c.state
	c.mu.Unlock()

	cb(state)
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	cbs := make([]func(ConnState), 0, len(c.subs))
	for _, cb := range c.subs {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(s)
	}
}

// Connect dials the push endpoint and starts the read loop. A dial failure
// leaves the channel disconnected and is returned to the caller, who should
// treat it as non-fatal.
func (c *Channel) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, _, err := ws.Dial(ctx, c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	c.setState(StateConnected)
	go c.readLoop(loopCtx, conn)
	go c.pingLoop(loopCtx, conn)
	return nil
}

// Disconnect closes the connection, if any.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(ws.StatusNormalClosure, "client disconnect")
	}
	c.setState(StateDisconnected)
}

// readLoop reads push messages until the connection drops.
func (c *Channel) readLoop(ctx context.Context, conn *ws.Conn) {
	defer c.setState(StateDisconnected)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("dropping malformed push message", "error", err)
			continue
		}
		c.dispatch(env)
	}
}

// pingLoop sends periodic pings to detect stale connections.
func (c *Channel) pingLoop(ctx context.Context, conn *ws.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Channel) dispatch(env envelope) {
	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()

	switch env.Type {
	case "list_created":
		if h.ListCreated != nil && env.List != nil {
			h.ListCreated(*env.List)
		}
	case "list_updated":
		if h.ListUpdated != nil && env.List != nil {
			h.ListUpdated(*env.List)
		}
	case "list_deleted":
		if h.ListDeleted != nil {
			h.ListDeleted(env.ID)
		}
	case "item_added":
		if h.ItemAdded != nil && env.Item != nil {
			h.ItemAdded(env.ListID, *env.Item)
		}
	case "item_updated":
		if h.ItemUpdated != nil && env.Item != nil {
			h.ItemUpdated(env.ListID, *env.Item)
		}
	case "item_toggled":
		if h.ItemToggled != nil && env.Item != nil {
			h.ItemToggled(env.ListID, *env.Item)
		}
	case "item_deleted":
		if h.ItemDeleted != nil {
			h.ItemDeleted(env.ListID, env.ID)
		}
	case "items_toggled_all":
		if h.ItemsToggledAll != nil {
			h.ItemsToggledAll(env.ListID, env.Checked)
		}
	default:
		c.logger.Debug("ignoring unknown push event", "type", env.Type)
	}
}
