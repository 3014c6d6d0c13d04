// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/pocketlist/cartsync/localstore"
	"github.com/pocketlist/cartsync/model"
	"github.com/pocketlist/cartsync/realtime"
	"github.com/pocketlist/cartsync/remote"
)

// Push-event handlers. Events are applied in arrival order with no version
// comparison; a stale event arriving after a newer local mutation overwrites
// it. That is inherited behavior, kept deliberately — see DESIGN.md.
//
// Item events are ignored unless the affected list is the one currently open.

// OnListCreated absorbs a list-created push event. If the list already exists
// locally the event is an echo of our own optimistic create and the server
// fields are merged in; otherwise the list is inserted as new and immediately
// synced, since it already exists server-side.
func (s *Store) OnListCreated(ctx context.Context, apiList remote.List) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.local.FindListByServerID(ctx, apiList.ID)
	if err != nil {
		s.logger.Warn("push list_created lookup failed", "error", err)
		return
	}

	list := listFromAPI(apiList)
	if existing != nil {
		list.LocalID = existing.LocalID
	} else {
		list.LocalID = localstore.ServerLocalID(apiList.ID)
	}
	ts := now()
	list.SyncStatus = model.SyncSynced
	list.LastSyncedAt = &ts

	if err := s.local.SaveList(ctx, &list); err != nil {
		s.logger.Warn("push list_created save failed", "error", err)
		return
	}

	if existing != nil {
		s.replaceListInMemory(&list)
	} else {
		s.lists = append([]model.ShoppingList{list}, s.lists...)
	}
}

// OnListUpdated absorbs a list-updated push event for a locally known list.
func (s *Store) OnListUpdated(ctx context.Context, apiList remote.List) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.local.FindListByServerID(ctx, apiList.ID)
	if err != nil || existing == nil {
		return
	}

	list := listFromAPI(apiList)
	list.LocalID = existing.LocalID
	ts := now()
	list.SyncStatus = model.SyncSynced
	list.LastSyncedAt = &ts

	if err := s.local.SaveList(ctx, &list); err != nil {
		s.logger.Warn("push list_updated save failed", "error", err)
		return
	}
	s.replaceListInMemory(&list)
}

// OnListDeleted removes a list deleted by another session.
func (s *Store) OnListDeleted(ctx context.Context, listID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.local.FindListByServerID(ctx, listID)
	if err != nil || existing == nil {
		return
	}

	if err := s.local.DeleteList(ctx, existing.LocalID); err != nil {
		s.logger.Warn("push list_deleted failed", "error", err)
		return
	}
	for i := range s.lists {
		if s.lists[i].LocalID == existing.LocalID {
			s.lists = append(s.lists[:i], s.lists[i+1:]...)
			break
		}
	}
	if s.currentList != nil && s.currentList.LocalID == existing.LocalID {
		s.currentList = nil
		s.currentItems = nil
	}
}

// openListID returns the server id of the currently open list, or 0.
// Callers hold the mutex.
func (s *Store) openListID() int64 {
	if s.currentList == nil {
		return 0
	}
	return s.currentList.ID
}

// OnItemAdded absorbs an item-added push event for the open list. An item
// that already exists locally (matched by server id, or by product id on a
// not-yet-synced record) is an echo of our own optimistic add and is merged
// rather than duplicated.
func (s *Store) OnItemAdded(ctx context.Context, listID int64, apiItem remote.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openListID() != listID {
		return
	}

	item := itemFromAPI(apiItem)
	item.ListLocalID = s.currentList.LocalID
	item.SyncStatus = model.SyncSynced

	if prev := s.matchItemLocked(&item); prev != nil {
		item.LocalID = prev.LocalID
		if err := s.local.SaveItem(ctx, &item); err != nil {
			s.logger.Warn("push item_added save failed", "error", err)
			return
		}
		s.replaceItemInMemory(&item)
		return
	}

	item.LocalID = localstore.ItemLocalID(item.ID)
	if err := s.local.SaveItem(ctx, &item); err != nil {
		s.logger.Warn("push item_added save failed", "error", err)
		return
	}
	s.currentItems = append(s.currentItems, item)

	s.currentList.TotalItems++
	if item.IsChecked {
		s.currentList.CheckedItems++
	}
	list := *s.currentList
	s.replaceListInMemory(&list)
	if err := s.local.SaveList(ctx, &list); err != nil {
		s.logger.Warn("push item_added list save failed", "error", err)
	}
}

// OnItemUpdated absorbs an item-updated push event for the open list.
func (s *Store) OnItemUpdated(ctx context.Context, listID int64, apiItem remote.Item) {
	s.applyItemEvent(ctx, listID, apiItem, false)
}

// OnItemToggled absorbs an item-toggled push event for the open list,
// adjusting the open list's checked counter by the resulting delta.
func (s *Store) OnItemToggled(ctx context.Context, listID int64, apiItem remote.Item) {
	s.applyItemEvent(ctx, listID, apiItem, true)
}

func (s *Store) applyItemEvent(ctx context.Context, listID int64, apiItem remote.Item, adjustCounter bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openListID() != listID {
		return
	}

	item := itemFromAPI(apiItem)
	item.ListLocalID = s.currentList.LocalID
	item.SyncStatus = model.SyncSynced

	prev := s.matchItemLocked(&item)
	if prev == nil {
		return
	}
	item.LocalID = prev.LocalID

	if adjustCounter && prev.IsChecked != item.IsChecked {
		if item.IsChecked {
			s.currentList.CheckedItems++
		} else {
			s.currentList.CheckedItems--
		}
		list := *s.currentList
		s.replaceListInMemory(&list)
		if err := s.local.SaveList(ctx, &list); err != nil {
			s.logger.Warn("push item event list save failed", "error", err)
		}
	}

	if err := s.local.SaveItem(ctx, &item); err != nil {
		s.logger.Warn("push item event save failed", "error", err)
		return
	}
	s.replaceItemInMemory(&item)
}

// OnItemDeleted absorbs an item-deleted push event for the open list.
func (s *Store) OnItemDeleted(ctx context.Context, listID, itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openListID() != listID {
		return
	}

	for i := range s.currentItems {
		if s.currentItems[i].ID != itemID {
			continue
		}
		removed := s.currentItems[i]
		if err := s.local.DeleteItem(ctx, removed.LocalID); err != nil {
			s.logger.Warn("push item_deleted failed", "error", err)
			return
		}
		s.currentItems = append(s.currentItems[:i], s.currentItems[i+1:]...)

		s.currentList.TotalItems--
		if removed.IsChecked {
			s.currentList.CheckedItems--
		}
		list := *s.currentList
		s.replaceListInMemory(&list)
		if err := s.local.SaveList(ctx, &list); err != nil {
			s.logger.Warn("push item_deleted list save failed", "error", err)
		}
		return
	}
}

// OnItemsToggledAll absorbs a toggle-all push event for the open list.
func (s *Store) OnItemsToggledAll(ctx context.Context, listID int64, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openListID() != listID {
		return
	}

	ts := now()
	for i := range s.currentItems {
		it := &s.currentItems[i]
		if it.IsChecked == checked {
			continue
		}
		it.IsChecked = checked
		if checked {
			t := ts
			it.CheckedAt = &t
		} else {
			it.CheckedAt = nil
		}
		it.SyncStatus = model.SyncSynced
		if err := s.local.SaveItem(ctx, it); err != nil {
			s.logger.Warn("push items_toggled_all save failed", "error", err)
		}
	}

	if checked {
		s.currentList.CheckedItems = s.currentList.TotalItems
	} else {
		s.currentList.CheckedItems = 0
	}
	list := *s.currentList
	s.replaceListInMemory(&list)
	if err := s.local.SaveList(ctx, &list); err != nil {
		s.logger.Warn("push items_toggled_all list save failed", "error", err)
	}
}

// matchItemLocked finds the local record a pushed item corresponds to: by
// server id first, then by product id against not-yet-synced records (the
// optimistic-create echo case). Callers hold the mutex.
func (s *Store) matchItemLocked(item *model.ShoppingListItem) *model.ShoppingListItem {
	for i := range s.currentItems {
		if s.currentItems[i].ID != 0 && s.currentItems[i].ID == item.ID {
			return &s.currentItems[i]
		}
	}
	for i := range s.currentItems {
		if s.currentItems[i].ID == 0 && s.currentItems[i].ProductID == item.ProductID {
			return &s.currentItems[i]
		}
	}
	return nil
}

// AttachChannel registers this store's push handlers on a realtime channel
// and subscribes to its connection state: a fresh connection triggers a
// best-effort outbox drain so queued offline work lands promptly. The
// returned function detaches the state subscription.
func (s *Store) AttachChannel(ctx context.Context, ch *realtime.Channel) func() {
	ch.SetEventHandlers(realtime.Handlers{
		ListCreated: func(l remote.List) { s.OnListCreated(ctx, l) },
		ListUpdated: func(l remote.List) { s.OnListUpdated(ctx, l) },
		ListDeleted: func(id int64) { s.OnListDeleted(ctx, id) },
		ItemAdded:   func(listID int64, it remote.Item) { s.OnItemAdded(ctx, listID, it) },
		ItemUpdated: func(listID int64, it remote.Item) { s.OnItemUpdated(ctx, listID, it) },
		ItemToggled: func(listID int64, it remote.Item) { s.OnItemToggled(ctx, listID, it) },
		ItemDeleted: func(listID, itemID int64) { s.OnItemDeleted(ctx, listID, itemID) },
		ItemsToggledAll: func(listID int64, checked bool) {
			s.OnItemsToggledAll(ctx, listID, checked)
		},
	})

	return ch.OnStateChange(func(state realtime.ConnState) {
		if state != realtime.StateConnected {
			return
		}
		if err := s.DrainOutbox(ctx); err != nil {
			s.logger.Warn("post-connect drain failed", "error", err)
		}
	})
}
