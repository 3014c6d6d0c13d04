package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pocketlist/cartsync/model"
	"github.com/pocketlist/cartsync/remote"
)

func TestCreateListDefaults(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	list, err := h.store.CreateList(ctx, "Weekly Groceries")
	require.NoError(t, err)
	require.NotNil(t, list)

	require.EqualValues(t, 0, list.ID)
	require.NotEmpty(t, list.LocalID)
	require.Equal(t, "Weekly Groceries", list.Name)
	require.Equal(t, model.ListActive, list.Status)
	require.Equal(t, 0, list.TotalItems)
	require.Equal(t, 0, list.CheckedItems)
	require.Equal(t, model.SyncPending, list.SyncStatus)
	require.Nil(t, list.CompletedAt)

	// New list is placed at the front.
	lists := h.store.Lists()
	require.Len(t, lists, 1)
	require.Equal(t, list.LocalID, lists[0].LocalID)

	// Exactly one queued create; nothing reached the fake while offline.
	require.Equal(t, 1, h.queueLen(t))
	require.Equal(t, 0, h.remote.callCount("CreateList"))
}

func TestCreateListOnlineSyncsImmediately(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	list, err := h.store.CreateList(ctx, "Weekly Groceries")
	require.NoError(t, err)
	require.NotNil(t, list)

	require.EqualValues(t, 1, list.ID)
	require.Equal(t, model.SyncSynced, list.SyncStatus)
	require.NotNil(t, list.LastSyncedAt)
	require.Equal(t, 0, h.queueLen(t))
	require.Equal(t, 1, h.remote.callCount("CreateList"))
}

func TestFetchListsOfflineSkipsRemote(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	list := model.ShoppingList{
		LocalID: "local_1_abc", Name: "Stored", Status: model.ListActive,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		SyncStatus: model.SyncPending,
	}
	require.NoError(t, h.local.SaveList(ctx, &list))

	lists := h.store.FetchLists(ctx, true)
	require.Len(t, lists, 1)
	require.Equal(t, "Stored", lists[0].Name)
	require.True(t, h.store.OfflineMode())
	require.Empty(t, h.remote.calls, "no remote call may happen while offline")
}

func TestFetchListsMergesServerState(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.remote.lists[1] = &remote.List{ID: 1, Name: "From server", Status: "active", TotalItems: 3}

	draft := model.ShoppingList{
		LocalID: "local_1_abc", Name: "Offline draft", Status: model.ListActive,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		SyncStatus: model.SyncPending,
	}
	require.NoError(t, h.local.SaveList(ctx, &draft))

	lists := h.store.FetchLists(ctx, true)
	require.Len(t, lists, 2)
	require.False(t, h.store.OfflineMode())

	byLocalID := make(map[string]model.ShoppingList, len(lists))
	for _, l := range lists {
		byLocalID[l.LocalID] = l
	}
	require.Equal(t, "From server", byLocalID["server_1"].Name)
	require.Equal(t, model.SyncSynced, byLocalID["server_1"].SyncStatus)
	require.Equal(t, "Offline draft", byLocalID["local_1_abc"].Name)
	require.Equal(t, model.SyncPending, byLocalID["local_1_abc"].SyncStatus)

	// Resolved snapshot is persisted.
	stored, err := h.local.GetList(ctx, "server_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestFetchListsRemoteFailureFallsBackToLocal(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	list := model.ShoppingList{
		LocalID: "local_1_abc", Name: "Stored", Status: model.ListActive,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		SyncStatus: model.SyncSynced, ID: 1,
	}
	require.NoError(t, h.local.SaveList(ctx, &list))
	h.remote.failWith = context.DeadlineExceeded

	lists := h.store.FetchLists(ctx, true)
	require.Len(t, lists, 1)
	require.True(t, h.store.OfflineMode())
	require.NotEmpty(t, h.store.LastError())
}

func TestFetchListLoadsItems(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	list, err := h.store.CreateList(ctx, "Groceries")
	require.NoError(t, err)
	_, err = h.store.AddItem(ctx, list.LocalID, model.Product{ID: 101, Name: "Milk"}, nil)
	require.NoError(t, err)

	got := h.store.FetchList(ctx, list.LocalID)
	require.NotNil(t, got)
	require.Equal(t, list.LocalID, got.LocalID)

	items := h.store.CurrentItems()
	require.Len(t, items, 1)
	require.Equal(t, "Milk", items[0].Name)
}

func TestFetchListMissingReturnsNil(t *testing.T) {
	h := newHarness(t, false)

	got := h.store.FetchList(context.Background(), "local_nope")
	require.Nil(t, got)
}

func TestUpdateListRename(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	list, err := h.store.CreateList(ctx, "Old")
	require.NoError(t, err)

	name := "New"
	updated := h.store.UpdateList(ctx, list.LocalID, ListUpdate{Name: &name})
	require.NotNil(t, updated)
	require.Equal(t, "New", updated.Name)
	require.Equal(t, model.SyncPending, updated.SyncStatus)

	stored, err := h.local.GetList(ctx, list.LocalID)
	require.NoError(t, err)
	require.Equal(t, "New", stored.Name)

	// create + update queued.
	require.Equal(t, 2, h.queueLen(t))
}

func TestUpdateListMissingIsNoop(t *testing.T) {
	h := newHarness(t, false)

	name := "New"
	require.Nil(t, h.store.UpdateList(context.Background(), "local_nope", ListUpdate{Name: &name}))
	require.Equal(t, 0, h.queueLen(t))
}

func TestCompleteListStampsCompletedAt(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	list, err := h.store.CreateList(ctx, "Groceries")
	require.NoError(t, err)

	done := h.store.CompleteList(ctx, list.LocalID)
	require.NotNil(t, done)
	require.Equal(t, model.ListCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Equal(t, model.SyncPending, done.SyncStatus)
}

func TestDeleteNeverSyncedListDiscardsQueuedWork(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	list, err := h.store.CreateList(ctx, "Draft")
	require.NoError(t, err)
	require.Equal(t, 1, h.queueLen(t))

	require.True(t, h.store.DeleteList(ctx, list.LocalID))

	// The queued create is discarded and no delete is enqueued: the server
	// never heard of this list.
	require.Equal(t, 0, h.queueLen(t))
	require.Empty(t, h.store.Lists())

	stored, err := h.local.GetList(ctx, list.LocalID)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestDeleteSyncedListEnqueuesExactlyOneDelete(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	list := model.ShoppingList{
		ID: 5, LocalID: "server_5", Name: "Synced", Status: model.ListActive,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		SyncStatus: model.SyncSynced,
	}
	require.NoError(t, h.local.SaveList(ctx, &list))

	require.True(t, h.store.DeleteList(ctx, "server_5"))

	entries, err := h.queue.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.ChangeDelete, entries[0].Change.Type)
	require.Equal(t, model.EntityList, entries[0].Change.EntityType)
	require.JSONEq(t, `{"id":5}`, string(entries[0].Change.Payload))
}

func TestDeleteListMissingReturnsFalse(t *testing.T) {
	h := newHarness(t, false)
	require.False(t, h.store.DeleteList(context.Background(), "local_nope"))
}
