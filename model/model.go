// Package model defines the shared domain types for the cartsync engine:
// shopping lists, list items, cached products and the pending-change records
// that flow through the outbox queue.
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"time"
)

// SyncStatus tracks how a local record relates to the server copy.
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncConflict SyncStatus = "conflict"
)

// ListStatus is the lifecycle state of a shopping list.
type ListStatus string

const (
	ListActive    ListStatus = "active"
	ListCompleted ListStatus = "completed"
	ListArchived  ListStatus = "archived"
)

// ShoppingList is a named collection of items. ID is the server-assigned
// identifier and stays 0 until the list has been synced at least once.
// LocalID is assigned at creation time and is the sole key for all local
// mutation operations.
type ShoppingList struct {
	ID           int64      `json:"id"`
	LocalID      string     `json:"localId"`
	Name         string     `json:"name"`
	Status       ListStatus `json:"status"`
	TotalItems   int        `json:"totalItems"`
	CheckedItems int        `json:"checkedItems"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	SyncStatus   SyncStatus `json:"syncStatus"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
}

// Synced reports whether the list is known to the server.
func (l *ShoppingList) Synced() bool { return l.ID != 0 }

// ShoppingListItem is a line item belonging to a list.
//
// IsChecked invariant: CheckedAt is set if and only if IsChecked is true.
// Note the inherited polarity quirk: a newly added item defaults to
// IsChecked=true ("needs to be bought"), while toggling it later means
// "already purchased". Kept as-is for wire compatibility.
type ShoppingListItem struct {
	ID          int64      `json:"id"`
	LocalID     string     `json:"localId"`
	ListLocalID string     `json:"listLocalId"`
	ProductID   int64      `json:"productId"`
	Name        string     `json:"name"`
	Emoji       string     `json:"emoji"`
	Category    string     `json:"category,omitempty"`
	Quantity    *float64   `json:"quantity,omitempty"`
	IsChecked   bool       `json:"isChecked"`
	CheckedAt   *time.Time `json:"checkedAt,omitempty"`
	SortOrder   int        `json:"sortOrder"`
	LastPrice   *float64   `json:"lastPrice,omitempty"`
	PriceDate   *time.Time `json:"priceDate,omitempty"`
	SyncStatus  SyncStatus `json:"syncStatus"`
}

// Synced reports whether the item is known to the server.
func (it *ShoppingListItem) Synced() bool { return it.ID != 0 }

// DefaultCategory is the grouping bucket for items without a category.
const DefaultCategory = "Other"

// CategoryGroup is a derived view grouping: the items of one category within
// the currently open list. Not persisted.
type CategoryGroup struct {
	Category     string             `json:"category"`
	Emoji        string             `json:"emoji"`
	ItemCount    int                `json:"itemCount"`
	AllUnchecked bool               `json:"allUnchecked"`
	Items        []ShoppingListItem `json:"items"`
}

// Product is a read-through cache entry produced by remote product search.
type Product struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"originalName,omitempty"`
	Emoji        string `json:"emoji,omitempty"`
	TagID        string `json:"tagId,omitempty"`
	Category     string `json:"category,omitempty"`
	NFC          bool   `json:"nfc"`
	Favorite     bool   `json:"favorite"`
}

// ChangeType classifies a pending mutation.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeToggle ChangeType = "toggle"
	ChangeDelete ChangeType = "delete"
)

// EntityType names the kind of entity a pending change targets.
type EntityType string

const (
	EntityList EntityType = "list"
	EntityItem EntityType = "item"
)

// PendingChange is one outbox entry: a mutation that must eventually reach
// the remote service. EntityID is always the local identifier; ParentID is
// the owning list's server id when it was known at enqueue time (0 otherwise;
// the drainer re-resolves it from the local store before replay).
type PendingChange struct {
	Type       ChangeType      `json:"type"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	ParentID   int64           `json:"parentId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
