// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pocketlist/cartsync/localstore"
	"github.com/pocketlist/cartsync/model"
	"github.com/pocketlist/cartsync/resolve"
)

// FetchLists loads the lists. Local data is read first for immediate display;
// when online and (force or the local store was empty), the remote snapshot is
// fetched, resolved against local state and persisted. Any failure degrades to
// local data, records the error and flips offline mode.
func (s *Store) FetchLists(ctx context.Context, force bool) []model.ShoppingList {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	localLists, err := s.local.Lists(ctx)
	if err != nil {
		s.recordError(err, errFetchLists)
		s.offlineMode = true
		return s.lists
	}
	s.lists = localLists

	if !s.online() || (!force && len(localLists) > 0) {
		if !s.online() {
			s.offlineMode = true
		}
		return s.lists
	}

	serverLists, err := s.remote.GetLists(ctx)
	if err != nil {
		s.recordError(err, errFetchLists)
		s.offlineMode = true
		return s.lists
	}

	resolved := resolve.Lists(localLists, listsFromAPI(serverLists), now())
	if err := s.local.SyncListsFromServer(ctx, resolved); err != nil {
		s.recordError(err, errFetchLists)
		s.offlineMode = true
		return s.lists
	}

	s.lists = resolved
	s.offlineMode = false
	return s.lists
}

// FetchList opens a list: resolves it by local id (falling back to the server
// by numeric id when online), loads its items from local storage and — when
// online and the list is synced — fetches authoritative items from remote,
// resolves them and persists the result.
func (s *Store) FetchList(ctx context.Context, localID string) *model.ShoppingList {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	list, err := s.local.GetList(ctx, localID)
	if err != nil {
		s.recordError(err, errFetchList)
		return nil
	}

	if list == nil && s.online() {
		if id, ok := serverIDFromLocalID(localID); ok {
			list = s.fetchListFromServer(ctx, id)
		}
	}
	if list == nil {
		return nil
	}

	s.currentList = list
	items, err := s.local.ItemsForList(ctx, list.LocalID)
	if err != nil {
		s.recordError(err, errFetchList)
		s.currentItems = nil
		return list
	}
	s.currentItems = items

	if s.online() && list.Synced() {
		detail, err := s.remote.GetList(ctx, list.ID)
		if err != nil {
			s.recordError(err, errFetchList)
			s.offlineMode = true
			return list
		}

		resolved := resolve.Items(items, itemsFromAPI(detail.Items()), list.LocalID, now())
		for i := range resolved {
			if err := s.local.SaveItem(ctx, &resolved[i]); err != nil {
				s.recordError(err, errFetchList)
				return list
			}
		}
		s.currentItems = resolved
	}

	return list
}

// fetchListFromServer pulls a single list by numeric id and persists it
// locally. Returns nil on any failure (recorded, not thrown).
func (s *Store) fetchListFromServer(ctx context.Context, id int64) *model.ShoppingList {
	detail, err := s.remote.GetList(ctx, id)
	if err != nil {
		s.recordError(err, errFetchList)
		return nil
	}

	list := listFromAPI(detail.List)
	list.LocalID = localstore.ServerLocalID(list.ID)
	list.SyncStatus = model.SyncSynced
	t := now()
	list.LastSyncedAt = &t
	if err := s.local.SaveList(ctx, &list); err != nil {
		s.recordError(err, errFetchList)
		return nil
	}
	return &list
}

// serverIDFromLocalID extracts a numeric server id from a "server_<id>" local
// identifier or a bare numeric string.
func serverIDFromLocalID(localID string) (int64, bool) {
	raw := strings.TrimPrefix(localID, "server_")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CreateList creates a list optimistically: pending, empty counters, placed
// at the front of the in-memory array, persisted and enqueued before any
// network activity.
func (s *Store) CreateList(ctx context.Context, name string) (*model.ShoppingList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	ts := now()
	list := model.ShoppingList{
		LocalID:    localstore.GenerateLocalID(),
		Name:       name,
		Status:     model.ListActive,
		CreatedAt:  ts,
		UpdatedAt:  ts,
		SyncStatus: model.SyncPending,
	}

	s.lists = append([]model.ShoppingList{list}, s.lists...)

	if err := s.local.SaveList(ctx, &list); err != nil {
		s.recordError(err, "Failed to create list")
		return &list, nil
	}

	payload, _ := json.Marshal(map[string]any{"name": name})
	if err := s.queue.Enqueue(ctx, model.PendingChange{
		Type:       model.ChangeCreate,
		EntityType: model.EntityList,
		EntityID:   list.LocalID,
		Payload:    payload,
	}); err != nil {
		s.recordError(err, "Failed to create list")
		return &list, nil
	}

	s.drainIfOnline(ctx)
	if fresh, err := s.local.GetList(ctx, list.LocalID); err == nil && fresh != nil {
		s.replaceListInMemory(fresh)
		return fresh, nil
	}
	return &list, nil
}

// ListUpdate carries the mutable list fields; nil fields are left unchanged.
type ListUpdate struct {
	Name   *string
	Status *model.ListStatus
}

// UpdateList applies an update to a list by local id. A missing list is a
// no-op returning nil, not an error.
func (s *Store) UpdateList(ctx context.Context, localID string, upd ListUpdate) *model.ShoppingList {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	list, err := s.local.GetList(ctx, localID)
	if err != nil {
		s.recordError(err, "Failed to update list")
		return nil
	}
	if list == nil {
		return nil
	}

	fields := map[string]any{}
	if upd.Name != nil {
		list.Name = *upd.Name
		fields["name"] = *upd.Name
	}
	if upd.Status != nil {
		list.Status = *upd.Status
		fields["status"] = string(*upd.Status)
	}
	list.UpdatedAt = now()
	list.SyncStatus = model.SyncPending

	s.replaceListInMemory(list)
	if err := s.local.SaveList(ctx, list); err != nil {
		s.recordError(err, "Failed to update list")
		return list
	}

	payload, _ := json.Marshal(fields)
	if err := s.queue.Enqueue(ctx, model.PendingChange{
		Type:       model.ChangeUpdate,
		EntityType: model.EntityList,
		EntityID:   list.LocalID,
		Payload:    payload,
	}); err != nil {
		s.recordError(err, "Failed to update list")
		return list
	}

	s.drainIfOnline(ctx)
	return list
}

// CompleteList marks a list completed, stamping CompletedAt.
func (s *Store) CompleteList(ctx context.Context, localID string) *model.ShoppingList {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	list, err := s.local.GetList(ctx, localID)
	if err != nil {
		s.recordError(err, "Failed to complete list")
		return nil
	}
	if list == nil {
		return nil
	}

	ts := now()
	list.Status = model.ListCompleted
	list.CompletedAt = &ts
	list.UpdatedAt = ts
	list.SyncStatus = model.SyncPending

	s.replaceListInMemory(list)
	if err := s.local.SaveList(ctx, list); err != nil {
		s.recordError(err, "Failed to complete list")
		return list
	}

	payload, _ := json.Marshal(map[string]any{"status": string(model.ListCompleted)})
	if err := s.queue.Enqueue(ctx, model.PendingChange{
		Type:       model.ChangeUpdate,
		EntityType: model.EntityList,
		EntityID:   list.LocalID,
		Payload:    payload,
	}); err != nil {
		s.recordError(err, "Failed to complete list")
		return list
	}

	s.drainIfOnline(ctx)
	return list
}

// DeleteList removes a list locally and enqueues a remote delete — unless the
// list was never synced, in which case the server has no record of it and
// nothing must be enqueued. Returns false for a missing list.
func (s *Store) DeleteList(ctx context.Context, localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	list, err := s.local.GetList(ctx, localID)
	if err != nil {
		s.recordError(err, "Failed to delete list")
		return false
	}
	if list == nil {
		return false
	}

	for i := range s.lists {
		if s.lists[i].LocalID == localID {
			s.lists = append(s.lists[:i], s.lists[i+1:]...)
			break
		}
	}
	if s.currentList != nil && s.currentList.LocalID == localID {
		s.currentList = nil
		s.currentItems = nil
	}

	if err := s.local.DeleteList(ctx, localID); err != nil {
		s.recordError(err, "Failed to delete list")
		return true
	}

	if !list.Synced() {
		// Never reached the server: drop any queued creates/updates too.
		if err := s.queue.Discard(ctx, localID); err != nil {
			s.recordError(err, "Failed to delete list")
		}
		return true
	}

	payload, _ := json.Marshal(map[string]any{"id": list.ID})
	if err := s.queue.Enqueue(ctx, model.PendingChange{
		Type:       model.ChangeDelete,
		EntityType: model.EntityList,
		EntityID:   localID,
		Payload:    payload,
	}); err != nil {
		s.recordError(err, "Failed to delete list")
		return true
	}

	s.drainIfOnline(ctx)
	return true
}

// replaceListInMemory swaps the in-memory copy of a list (and currentList)
// with the given record, matching by local id.
func (s *Store) replaceListInMemory(list *model.ShoppingList) {
	for i := range s.lists {
		if s.lists[i].LocalID == list.LocalID {
			s.lists[i] = *list
			break
		}
	}
	if s.currentList != nil && s.currentList.LocalID == list.LocalID {
		l := *list
		s.currentList = &l
	}
}

// findListLocked returns a pointer into the in-memory lists slice, or nil.
func (s *Store) findListLocked(localID string) *model.ShoppingList {
	for i := range s.lists {
		if s.lists[i].LocalID == localID {
			return &s.lists[i]
		}
	}
	return nil
}
