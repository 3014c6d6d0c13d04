// Package store is the action surface of the sync engine. Every mutation is
// applied with optimistic local-first semantics: in-memory state first, then
// the durable local store, then the outbox queue, and — when the connectivity
// probe reports online — a best-effort immediate drain against the remote
// service. Inbound server data (fetches and push events) is merged through
// the resolve package before being written back.
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pocketlist/cartsync/localstore"
	"github.com/pocketlist/cartsync/model"
	"github.com/pocketlist/cartsync/outbox"
	"github.com/pocketlist/cartsync/remote"
)

// OnlineFunc reports current connectivity. It is sampled synchronously at the
// start of each relevant action, never cached beyond the call.
type OnlineFunc func() bool

// Fallback error messages for failures without a usable message of their own.
const (
	errFetchLists = "Failed to fetch lists"
	errFetchList  = "Failed to fetch list"
)

// Store owns the in-memory list/item state and coordinates the local store,
// the outbox queue and the remote service. One Store instance is constructed
// at application start and passed to consumers; there are no package-level
// singletons.
type Store struct {
	mu     sync.Mutex
	local  *localstore.Store
	queue  *outbox.Queue
	remote remote.Service
	online OnlineFunc
	logger *slog.Logger

	lists        []model.ShoppingList
	currentList  *model.ShoppingList
	currentItems []model.ShoppingListItem

	loading     bool
	lastError   string
	offlineMode bool
}

// New creates the store. A nil online probe defaults to always-online.
func New(local *localstore.Store, queue *outbox.Queue, svc remote.Service, online OnlineFunc, logger *slog.Logger) *Store {
	if online == nil {
		online = func() bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		local:  local,
		queue:  queue,
		remote: svc,
		online: online,
		logger: logger,
	}
}

// Lists returns the in-memory list snapshot.
func (s *Store) Lists() []model.ShoppingList {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ShoppingList, len(s.lists))
	copy(out, s.lists)
	return out
}

// CurrentList returns the currently open list, or nil.
func (s *Store) CurrentList() *model.ShoppingList {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentList == nil {
		return nil
	}
	l := *s.currentList
	return &l
}

// CurrentItems returns the items of the currently open list.
func (s *Store) CurrentItems() []model.ShoppingListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ShoppingListItem, len(s.currentItems))
	copy(out, s.currentItems)
	return out
}

// ClearCurrentList drops the open-list state. In-flight fetches for that list
// are not cancelled; whichever write lands last wins.
func (s *Store) ClearCurrentList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentList = nil
	s.currentItems = nil
}

// Loading reports whether an action is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the message recorded by the most recent failing action,
// or "" if the last action succeeded.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// OfflineMode reports whether the session degraded to local data after a
// remote failure.
func (s *Store) OfflineMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offlineMode
}

// beginAction clears the previous error and flips the loading flag. Callers
// hold the mutex.
func (s *Store) beginAction() {
	s.lastError = ""
	s.loading = true
}

func (s *Store) endAction() {
	s.loading = false
}

// recordError normalizes a failure into the single visible error field.
// fallback is used when the error carries no message of its own.
func (s *Store) recordError(err error, fallback string) {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	s.lastError = msg
	s.logger.Warn("action failed", "error", msg)
}

func now() time.Time { return time.Now().UTC() }

// drainIfOnline replays the outbox when the probe reports online. Failures
// are recorded for the caller's visibility but never roll back the optimistic
// local update; the queue retries later.
func (s *Store) drainIfOnline(ctx context.Context) {
	if !s.online() {
		return
	}
	if err := s.drainLocked(ctx); err != nil {
		s.logger.Warn("outbox drain failed, will retry", "error", err)
	}
}
