// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pocketlist/cartsync/metrics"
	"github.com/pocketlist/cartsync/model"
	"github.com/pocketlist/cartsync/outbox"
)

const drainBatchSize = 200

// DrainOutbox replays queued changes against the remote service in enqueue
// order. A change is removed only after the remote acknowledged it; the first
// failure stops the drain and leaves the change (and everything behind it) in
// place for retry, preserving per-entity operation order.
func (s *Store) DrainOutbox(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drainLocked(ctx)
}

func (s *Store) drainLocked(ctx context.Context) error {
	entries, err := s.queue.Pending(ctx, drainBatchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := s.replayChange(ctx, entry); err != nil {
			if failErr := s.queue.Fail(ctx, entry.ID); failErr != nil {
				s.logger.Warn("failed to record replay failure", "error", failErr)
			}
			return fmt.Errorf("replay %s %s %s: %w",
				entry.Change.Type, entry.Change.EntityType, entry.Change.EntityID, err)
		}
		if err := s.queue.Ack(ctx, entry.ID); err != nil {
			return err
		}
		metrics.OutboxDrained.WithLabelValues(
			string(entry.Change.EntityType), string(entry.Change.Type)).Inc()
		if err := s.markSyncedIfSettled(ctx, entry.Change); err != nil {
			s.logger.Warn("failed to update sync status after ack", "error", err)
		}
	}
	return nil
}

func (s *Store) replayChange(ctx context.Context, entry outbox.Entry) error {
	switch entry.Change.EntityType {
	case model.EntityList:
		return s.replayListChange(ctx, entry.Change)
	case model.EntityItem:
		return s.replayItemChange(ctx, entry.Change)
	default:
		return fmt.Errorf("unknown entity type %q", entry.Change.EntityType)
	}
}

func (s *Store) replayListChange(ctx context.Context, change model.PendingChange) error {
	var payload map[string]any
	if len(change.Payload) > 0 {
		if err := json.Unmarshal(change.Payload, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}

	switch change.Type {
	case model.ChangeCreate:
		list, err := s.local.GetList(ctx, change.EntityID)
		if err != nil {
			return err
		}
		if list == nil {
			// Deleted locally before it ever synced; nothing to create.
			return nil
		}
		created, err := s.remote.CreateList(ctx, list.Name)
		if err != nil {
			metrics.RemoteErrors.WithLabelValues("createList").Inc()
			return err
		}
		list.ID = created.ID
		return s.saveListSynced(ctx, list)

	case model.ChangeUpdate:
		list, err := s.local.GetList(ctx, change.EntityID)
		if err != nil {
			return err
		}
		if list == nil {
			return nil
		}
		if !list.Synced() {
			return fmt.Errorf("list %s has no server id yet", change.EntityID)
		}
		if status, ok := payload["status"].(string); ok && status == string(model.ListCompleted) {
			if _, err := s.remote.CompleteList(ctx, list.ID); err != nil {
				metrics.RemoteErrors.WithLabelValues("completeList").Inc()
				return err
			}
			return nil
		}
		if _, err := s.remote.UpdateList(ctx, list.ID, payload); err != nil {
			metrics.RemoteErrors.WithLabelValues("updateList").Inc()
			return err
		}
		return nil

	case model.ChangeDelete:
		id := int64FromPayload(payload, "id")
		if id == 0 {
			return nil
		}
		if err := s.remote.DeleteList(ctx, id); err != nil {
			metrics.RemoteErrors.WithLabelValues("deleteList").Inc()
			return err
		}
		return nil

	default:
		return fmt.Errorf("unknown change type %q for list", change.Type)
	}
}

func (s *Store) replayItemChange(ctx context.Context, change model.PendingChange) error {
	var payload map[string]any
	if len(change.Payload) > 0 {
		if err := json.Unmarshal(change.Payload, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}

	switch change.Type {
	case model.ChangeCreate:
		item, err := s.local.GetItem(ctx, change.EntityID)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		listID, err := s.parentListID(ctx, change, item.ListLocalID)
		if err != nil {
			return err
		}
		created, err := s.remote.AddItem(ctx, listID, item.ProductID, item.Quantity)
		if err != nil {
			metrics.RemoteErrors.WithLabelValues("addItem").Inc()
			return err
		}
		item.ID = created.ID
		item.SyncStatus = model.SyncSynced
		if err := s.local.SaveItem(ctx, item); err != nil {
			return err
		}
		s.replaceItemInMemory(item)
		return nil

	case model.ChangeUpdate:
		item, listID, err := s.syncedItem(ctx, change)
		if err != nil || item == nil {
			return err
		}
		if _, err := s.remote.UpdateItem(ctx, listID, item.ID, payload); err != nil {
			metrics.RemoteErrors.WithLabelValues("updateItem").Inc()
			return err
		}
		return nil

	case model.ChangeToggle:
		item, listID, err := s.syncedItem(ctx, change)
		if err != nil || item == nil {
			return err
		}
		if _, err := s.remote.ToggleItem(ctx, listID, item.ID); err != nil {
			metrics.RemoteErrors.WithLabelValues("toggleItem").Inc()
			return err
		}
		return nil

	case model.ChangeDelete:
		id := int64FromPayload(payload, "id")
		if id == 0 {
			return nil
		}
		if err := s.remote.DeleteItem(ctx, change.ParentID, id); err != nil {
			metrics.RemoteErrors.WithLabelValues("deleteItem").Inc()
			return err
		}
		return nil

	default:
		return fmt.Errorf("unknown change type %q for item", change.Type)
	}
}

// syncedItem loads the item a change targets plus its owning list's server
// id. A vanished item yields (nil, 0, nil): the change is acked as a no-op.
func (s *Store) syncedItem(ctx context.Context, change model.PendingChange) (*model.ShoppingListItem, int64, error) {
	item, err := s.local.GetItem(ctx, change.EntityID)
	if err != nil {
		return nil, 0, err
	}
	if item == nil {
		return nil, 0, nil
	}
	if !item.Synced() {
		return nil, 0, fmt.Errorf("item %s has no server id yet", change.EntityID)
	}
	listID, err := s.parentListID(ctx, change, item.ListLocalID)
	if err != nil {
		return nil, 0, err
	}
	return item, listID, nil
}

// parentListID resolves the owning list's server id at replay time. The id
// recorded at enqueue time may predate the list's own sync; the local store
// has the authoritative value by the time the FIFO reaches this entry.
func (s *Store) parentListID(ctx context.Context, change model.PendingChange, listLocalID string) (int64, error) {
	list, err := s.local.GetList(ctx, listLocalID)
	if err != nil {
		return 0, err
	}
	if list != nil && list.Synced() {
		return list.ID, nil
	}
	if change.ParentID != 0 {
		return change.ParentID, nil
	}
	return 0, fmt.Errorf("list %s not yet synced", listLocalID)
}

// markSyncedIfSettled marks the entity synced once no further changes for it
// remain queued.
func (s *Store) markSyncedIfSettled(ctx context.Context, change model.PendingChange) error {
	remaining, err := s.queue.PendingForEntity(ctx, change.EntityID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 || change.Type == model.ChangeDelete {
		return nil
	}

	ts := now()
	switch change.EntityType {
	case model.EntityList:
		list, err := s.local.GetList(ctx, change.EntityID)
		if err != nil || list == nil {
			return err
		}
		list.SyncStatus = model.SyncSynced
		list.LastSyncedAt = &ts
		if err := s.local.SaveList(ctx, list); err != nil {
			return err
		}
		s.replaceListInMemory(list)
	case model.EntityItem:
		item, err := s.local.GetItem(ctx, change.EntityID)
		if err != nil || item == nil {
			return err
		}
		item.SyncStatus = model.SyncSynced
		if err := s.local.SaveItem(ctx, item); err != nil {
			return err
		}
		s.replaceItemInMemory(item)
	}
	return nil
}

// saveListSynced stamps a list synced and persists it both durably and in
// memory.
func (s *Store) saveListSynced(ctx context.Context, list *model.ShoppingList) error {
	ts := now()
	list.SyncStatus = model.SyncSynced
	list.LastSyncedAt = &ts
	if err := s.local.SaveList(ctx, list); err != nil {
		return err
	}
	s.replaceListInMemory(list)
	return nil
}

func int64FromPayload(payload map[string]any, key string) int64 {
	if payload == nil {
		return 0
	}
	if v, ok := payload[key].(float64); ok {
		return int64(v)
	}
	return 0
}

// RunSyncLoop drains the outbox periodically with exponential backoff on
// failure, until the context is cancelled. Offline periods just wait out the
// current backoff interval.
func (s *Store) RunSyncLoop(ctx context.Context, backoffMin, backoffMax time.Duration) {
	if backoffMin <= 0 {
		backoffMin = time.Second
	}
	if backoffMax < backoffMin {
		backoffMax = 60 * time.Second
	}

	backoff := backoffMin
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if !s.online() {
			continue
		}

		if err := s.DrainOutbox(ctx); err != nil {
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
			continue
		}
		backoff = backoffMin
	}
}
