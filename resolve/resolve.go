// Package resolve reconciles a local snapshot and a server snapshot of
// shopping lists or items into one authoritative local snapshot. The functions
// here perform no I/O: the server copy wins for every field it reports, local
// identifiers are preserved across the merge, and local records the server has
// never seen survive untouched. Pending local edits are not re-applied here;
// the caller's ordering contract is fetch, resolve, then outbox replay on top.
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"time"

	"github.com/pocketlist/cartsync/localstore"
	"github.com/pocketlist/cartsync/metrics"
	"github.com/pocketlist/cartsync/model"
)

// Lists merges a local and a server snapshot of shopping lists.
//
// Every server list yields a local-shaped record carrying the server's
// authoritative fields, marked synced with a fresh LastSyncedAt. If a local
// record already maps the same server id, its local identifier is kept so
// local references stay stable; otherwise the canonical "server_<id>" form is
// used. Local lists that were never synced (no server id, still pending) are
// appended unchanged — the resolver emits the union so no unsynced local work
// can be dropped by the caller. Synced local lists absent from the server
// snapshot are treated as deleted server-side and omitted.
func Lists(local, server []model.ShoppingList, now time.Time) []model.ShoppingList {
	localByServerID := make(map[int64]*model.ShoppingList, len(local))
	for i := range local {
		if local[i].ID != 0 {
			localByServerID[local[i].ID] = &local[i]
		}
	}

	resolved := make([]model.ShoppingList, 0, len(server)+len(local))
	syncedAt := now.UTC()

	for _, sv := range server {
		out := sv
		out.LocalID = localstore.ServerLocalID(sv.ID)
		if prev, ok := localByServerID[sv.ID]; ok && prev.LocalID != "" {
			out.LocalID = prev.LocalID
		}
		out.SyncStatus = model.SyncSynced
		t := syncedAt
		out.LastSyncedAt = &t
		resolved = append(resolved, out)
		metrics.ResolverMerges.WithLabelValues(string(model.EntityList)).Inc()
	}

	for i := range local {
		l := &local[i]
		if l.ID == 0 && l.SyncStatus == model.SyncPending {
			resolved = append(resolved, *l)
		}
	}

	return resolved
}

// Items merges a local and a server snapshot of the items within one list,
// with the same rules as Lists. All resolved items are attached to
// listLocalID, the local identifier of the owning list.
func Items(local, server []model.ShoppingListItem, listLocalID string, now time.Time) []model.ShoppingListItem {
	localByServerID := make(map[int64]*model.ShoppingListItem, len(local))
	for i := range local {
		if local[i].ID != 0 {
			localByServerID[local[i].ID] = &local[i]
		}
	}

	resolved := make([]model.ShoppingListItem, 0, len(server)+len(local))
	syncedAt := now.UTC()

	for _, sv := range server {
		out := sv
		out.LocalID = localstore.ItemLocalID(sv.ID)
		if prev, ok := localByServerID[sv.ID]; ok && prev.LocalID != "" {
			out.LocalID = prev.LocalID
		}
		out.ListLocalID = listLocalID
		out.SyncStatus = model.SyncSynced
		normalizeChecked(&out, syncedAt)
		resolved = append(resolved, out)
		metrics.ResolverMerges.WithLabelValues(string(model.EntityItem)).Inc()
	}

	for i := range local {
		it := &local[i]
		if it.ID == 0 && it.SyncStatus == model.SyncPending {
			resolved = append(resolved, *it)
		}
	}

	return resolved
}

// normalizeChecked enforces the CheckedAt-iff-IsChecked invariant on records
// coming off the wire.
func normalizeChecked(it *model.ShoppingListItem, now time.Time) {
	switch {
	case it.IsChecked && it.CheckedAt == nil:
		t := now
		it.CheckedAt = &t
	case !it.IsChecked && it.CheckedAt != nil:
		it.CheckedAt = nil
	}
}
