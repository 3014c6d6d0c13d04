// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pocketlist/cartsync/localstore"
	"github.com/pocketlist/cartsync/model"
)

// AddItem adds a product to a list optimistically. Unlike the other
// mutations, a missing list fails loudly: it signals a programming error,
// not a normal absence.
func (s *Store) AddItem(ctx context.Context, listLocalID string, product model.Product, quantity *float64) (*model.ShoppingListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	item, err := s.addItemLocked(ctx, listLocalID, product, quantity)
	if err != nil {
		s.recordError(err, "Failed to add item")
		return nil, err
	}
	s.drainIfOnline(ctx)
	return item, nil
}

// addItemLocked is the shared add-item path (also used by AddFavoritesToList).
// Callers hold the mutex and decide when to drain.
func (s *Store) addItemLocked(ctx context.Context, listLocalID string, product model.Product, quantity *float64) (*model.ShoppingListItem, error) {
	list, err := s.local.GetList(ctx, listLocalID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, fmt.Errorf("cannot add item: list %s not found", listLocalID)
	}

	ts := now()
	item := model.ShoppingListItem{
		LocalID:     localstore.GenerateLocalID(),
		ListLocalID: list.LocalID,
		ProductID:   product.ID,
		Name:        product.Name,
		Emoji:       product.Emoji,
		Category:    product.Category,
		Quantity:    quantity,
		// New items start checked ("needs to be bought"). The polarity reads
		// backwards next to the toggle semantics but matches the wire contract.
		IsChecked:  true,
		CheckedAt:  &ts,
		SortOrder:  list.TotalItems,
		SyncStatus: model.SyncPending,
	}

	list.TotalItems++
	list.CheckedItems++
	list.UpdatedAt = ts
	list.SyncStatus = model.SyncPending

	if err := s.local.SaveItem(ctx, &item); err != nil {
		return nil, err
	}
	if err := s.local.SaveList(ctx, list); err != nil {
		return nil, err
	}
	s.replaceListInMemory(list)
	if s.currentList != nil && s.currentList.LocalID == list.LocalID {
		s.currentItems = append(s.currentItems, item)
	}

	payload, _ := json.Marshal(map[string]any{"productId": product.ID, "quantity": quantity})
	if err := s.queue.Enqueue(ctx, model.PendingChange{
		Type:       model.ChangeCreate,
		EntityType: model.EntityItem,
		EntityID:   item.LocalID,
		ParentID:   list.ID,
		Payload:    payload,
	}); err != nil {
		return nil, err
	}

	return &item, nil
}

// ItemUpdate carries the mutable item fields; nil fields are left unchanged.
type ItemUpdate struct {
	Name     *string
	Quantity *float64
	Category *string
}

// UpdateItem applies an update to an item by local id. A missing item is a
// no-op returning nil.
func (s *Store) UpdateItem(ctx context.Context, localID string, upd ItemUpdate) *model.ShoppingListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	item, err := s.local.GetItem(ctx, localID)
	if err != nil {
		s.recordError(err, "Failed to update item")
		return nil
	}
	if item == nil {
		return nil
	}

	fields := map[string]any{}
	if upd.Name != nil {
		item.Name = *upd.Name
		fields["name"] = *upd.Name
	}
	if upd.Quantity != nil {
		item.Quantity = upd.Quantity
		fields["quantity"] = *upd.Quantity
	}
	if upd.Category != nil {
		item.Category = *upd.Category
		fields["category"] = *upd.Category
	}
	item.SyncStatus = model.SyncPending

	if err := s.local.SaveItem(ctx, item); err != nil {
		s.recordError(err, "Failed to update item")
		return item
	}
	s.replaceItemInMemory(item)

	payload, _ := json.Marshal(fields)
	if err := s.queue.Enqueue(ctx, model.PendingChange{
		Type:       model.ChangeUpdate,
		EntityType: model.EntityItem,
		EntityID:   item.LocalID,
		Payload:    payload,
	}); err != nil {
		s.recordError(err, "Failed to update item")
		return item
	}

	s.drainIfOnline(ctx)
	return item
}

// DeleteItem removes an item locally, adjusts the owning list's counters and
// enqueues a remote delete unless the item never reached the server. Returns
// false for a missing item.
func (s *Store) DeleteItem(ctx context.Context, localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	item, err := s.local.GetItem(ctx, localID)
	if err != nil {
		s.recordError(err, "Failed to delete item")
		return false
	}
	if item == nil {
		return false
	}

	if err := s.local.DeleteItem(ctx, localID); err != nil {
		s.recordError(err, "Failed to delete item")
		return true
	}
	s.removeItemFromMemory(localID)

	list, err := s.local.GetList(ctx, item.ListLocalID)
	if err == nil && list != nil {
		list.TotalItems--
		if item.IsChecked {
			list.CheckedItems--
		}
		list.UpdatedAt = now()
		list.SyncStatus = model.SyncPending
		if err := s.local.SaveList(ctx, list); err != nil {
			s.recordError(err, "Failed to delete item")
		}
		s.replaceListInMemory(list)
	}

	if !item.Synced() {
		if err := s.queue.Discard(ctx, localID); err != nil {
			s.recordError(err, "Failed to delete item")
		}
		return true
	}

	parentID := int64(0)
	if list != nil {
		parentID = list.ID
	}
	payload, _ := json.Marshal(map[string]any{"id": item.ID})
	if err := s.queue.Enqueue(ctx, model.PendingChange{
		Type:       model.ChangeDelete,
		EntityType: model.EntityItem,
		EntityID:   localID,
		ParentID:   parentID,
		Payload:    payload,
	}); err != nil {
		s.recordError(err, "Failed to delete item")
		return true
	}

	s.drainIfOnline(ctx)
	return true
}

// ToggleItem flips an item's checked flag, stamps or clears CheckedAt, marks
// the item pending and adjusts the owning list's checked counter by the
// resulting delta. A missing item is a no-op returning nil.
func (s *Store) ToggleItem(ctx context.Context, localID string) *model.ShoppingListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	item, err := s.local.GetItem(ctx, localID)
	if err != nil {
		s.recordError(err, "Failed to toggle item")
		return nil
	}
	if item == nil {
		return nil
	}

	if err := s.toggleItemLocked(ctx, item, !item.IsChecked); err != nil {
		s.recordError(err, "Failed to toggle item")
		return item
	}

	s.drainIfOnline(ctx)
	return item
}

// toggleItemLocked sets an item to the given checked state, persisting the
// item, the owning list's counters and the toggle outbox entry.
func (s *Store) toggleItemLocked(ctx context.Context, item *model.ShoppingListItem, checked bool) error {
	delta := 0
	if checked && !item.IsChecked {
		delta = 1
	} else if !checked && item.IsChecked {
		delta = -1
	}

	item.IsChecked = checked
	if checked {
		ts := now()
		item.CheckedAt = &ts
	} else {
		item.CheckedAt = nil
	}
	item.SyncStatus = model.SyncPending

	if err := s.local.SaveItem(ctx, item); err != nil {
		return err
	}
	s.replaceItemInMemory(item)

	if delta != 0 {
		list, err := s.local.GetList(ctx, item.ListLocalID)
		if err != nil {
			return err
		}
		if list != nil {
			list.CheckedItems += delta
			list.UpdatedAt = now()
			if err := s.local.SaveList(ctx, list); err != nil {
				return err
			}
			s.replaceListInMemory(list)
		}
	}

	parentID := int64(0)
	if list := s.findListLocked(item.ListLocalID); list != nil {
		parentID = list.ID
	}
	payload := json.RawMessage(`{}`)
	return s.queue.Enqueue(ctx, model.PendingChange{
		Type:       model.ChangeToggle,
		EntityType: model.EntityItem,
		EntityID:   item.LocalID,
		ParentID:   parentID,
		Payload:    payload,
	})
}

// ToggleAllItems sets every item of a list to the desired state. Items
// already in that state are skipped — no redundant writes or outbox entries —
// but still count toward the final checked total.
func (s *Store) ToggleAllItems(ctx context.Context, listLocalID string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	items, err := s.local.ItemsForList(ctx, listLocalID)
	if err != nil {
		s.recordError(err, "Failed to toggle items")
		return
	}

	for i := range items {
		if items[i].IsChecked == checked {
			continue
		}
		if err := s.toggleItemLocked(ctx, &items[i], checked); err != nil {
			s.recordError(err, "Failed to toggle items")
			return
		}
	}

	// Counters converge to the exact total regardless of how many items were
	// already in the desired state.
	list, err := s.local.GetList(ctx, listLocalID)
	if err == nil && list != nil {
		if checked {
			list.CheckedItems = list.TotalItems
		} else {
			list.CheckedItems = 0
		}
		if err := s.local.SaveList(ctx, list); err != nil {
			s.recordError(err, "Failed to toggle items")
		}
		s.replaceListInMemory(list)
	}

	s.drainIfOnline(ctx)
}

// CategorizedItems groups the currently open list's items by category
// (falling back to "Other"), each group carrying the emoji of its first item,
// an item count, an all-unchecked flag and its items ordered by sort order.
// Groups are sorted alphabetically for stable, non-jumping ordering.
func (s *Store) CategorizedItems() []model.CategoryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string]*model.CategoryGroup)
	for _, it := range s.currentItems {
		cat := it.Category
		if cat == "" {
			cat = model.DefaultCategory
		}
		g, ok := groups[cat]
		if !ok {
			g = &model.CategoryGroup{Category: cat, Emoji: it.Emoji, AllUnchecked: true}
			groups[cat] = g
		}
		g.Items = append(g.Items, it)
		g.ItemCount++
		if it.IsChecked {
			g.AllUnchecked = false
		}
	}

	out := make([]model.CategoryGroup, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g.Items, func(i, j int) bool {
			return g.Items[i].SortOrder < g.Items[j].SortOrder
		})
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// replaceItemInMemory swaps the in-memory copy of an item in currentItems.
func (s *Store) replaceItemInMemory(item *model.ShoppingListItem) {
	for i := range s.currentItems {
		if s.currentItems[i].LocalID == item.LocalID {
			s.currentItems[i] = *item
			return
		}
	}
}

func (s *Store) removeItemFromMemory(localID string) {
	for i := range s.currentItems {
		if s.currentItems[i].LocalID == localID {
			s.currentItems = append(s.currentItems[:i], s.currentItems[i+1:]...)
			return
		}
	}
}
