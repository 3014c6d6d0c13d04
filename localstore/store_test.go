package localstore

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pocketlist/cartsync/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testList(localID string) *model.ShoppingList {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.ShoppingList{
		LocalID:    localID,
		Name:       "Groceries",
		Status:     model.ListActive,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: model.SyncPending,
	}
}

func TestSaveAndGetList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	list := testList("local_1_abc")
	require.NoError(t, s.SaveList(ctx, list))

	got, err := s.GetList(ctx, "local_1_abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Groceries", got.Name)
	require.Equal(t, model.ListActive, got.Status)
	require.Equal(t, model.SyncPending, got.SyncStatus)
	require.Nil(t, got.CompletedAt)
	require.Nil(t, got.LastSyncedAt)
}

func TestGetListMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetList(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFindListByServerID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	list := testList("local_1_abc")
	list.ID = 42
	require.NoError(t, s.SaveList(ctx, list))

	got, err := s.FindListByServerID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "local_1_abc", got.LocalID)

	got, err = s.FindListByServerID(ctx, 99)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSaveListUpsertsByLocalID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	list := testList("local_1_abc")
	require.NoError(t, s.SaveList(ctx, list))

	list.Name = "Renamed"
	list.ID = 7
	require.NoError(t, s.SaveList(ctx, list))

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Equal(t, "Renamed", lists[0].Name)
	require.EqualValues(t, 7, lists[0].ID)
}

func TestSyncListsFromServer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stale := testList("server_1")
	stale.ID = 1
	stale.Name = "Old name"
	require.NoError(t, s.SaveList(ctx, stale))

	syncedAt := time.Now().UTC().Truncate(time.Second)
	incoming := []model.ShoppingList{
		{LocalID: "server_1", ID: 1, Name: "New name", Status: model.ListActive,
			CreatedAt: syncedAt, UpdatedAt: syncedAt,
			SyncStatus: model.SyncSynced, LastSyncedAt: &syncedAt},
		{LocalID: "server_2", ID: 2, Name: "Another", Status: model.ListActive,
			CreatedAt: syncedAt, UpdatedAt: syncedAt,
			SyncStatus: model.SyncSynced, LastSyncedAt: &syncedAt},
	}
	require.NoError(t, s.SyncListsFromServer(ctx, incoming))

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 2)

	got, err := s.GetList(ctx, "server_1")
	require.NoError(t, err)
	require.Equal(t, "New name", got.Name)
	require.Equal(t, model.SyncSynced, got.SyncStatus)
	require.NotNil(t, got.LastSyncedAt)
}

func TestSaveListKeepsExistingItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	list := testList("local_1_abc")
	require.NoError(t, s.SaveList(ctx, list))

	ts := time.Now().UTC()
	item := &model.ShoppingListItem{
		LocalID:     "local_2_def",
		ListLocalID: list.LocalID,
		Name:        "Milk",
		IsChecked:   true,
		CheckedAt:   &ts,
		SyncStatus:  model.SyncPending,
	}
	require.NoError(t, s.SaveItem(ctx, item))

	// Updating the list row must not disturb its items.
	list.TotalItems = 1
	require.NoError(t, s.SaveList(ctx, list))

	items, err := s.ItemsForList(ctx, list.LocalID)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestDeleteListCascadesItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	list := testList("local_1_abc")
	require.NoError(t, s.SaveList(ctx, list))

	ts := time.Now().UTC()
	item := &model.ShoppingListItem{
		LocalID:     "local_2_def",
		ListLocalID: list.LocalID,
		ProductID:   101,
		Name:        "Milk",
		IsChecked:   true,
		CheckedAt:   &ts,
		SyncStatus:  model.SyncPending,
	}
	require.NoError(t, s.SaveItem(ctx, item))

	require.NoError(t, s.DeleteList(ctx, list.LocalID))

	items, err := s.ItemsForList(ctx, list.LocalID)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestItemsForListOrderedBySortOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	list := testList("local_1_abc")
	require.NoError(t, s.SaveList(ctx, list))

	ts := time.Now().UTC()
	for i, name := range []string{"third", "first", "second"} {
		order := []int{2, 0, 1}[i]
		item := &model.ShoppingListItem{
			LocalID:     GenerateLocalID(),
			ListLocalID: list.LocalID,
			Name:        name,
			IsChecked:   true,
			CheckedAt:   &ts,
			SortOrder:   order,
			SyncStatus:  model.SyncPending,
		}
		require.NoError(t, s.SaveItem(ctx, item))
	}

	items, err := s.ItemsForList(ctx, list.LocalID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "first", items[0].Name)
	require.Equal(t, "second", items[1].Name)
	require.Equal(t, "third", items[2].Name)
}

func TestGetItemRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	list := testList("local_1_abc")
	require.NoError(t, s.SaveList(ctx, list))

	qty := 2.5
	price := 3.99
	ts := time.Now().UTC().Truncate(time.Second)
	item := &model.ShoppingListItem{
		LocalID:     "local_2_def",
		ID:          7,
		ListLocalID: list.LocalID,
		ProductID:   101,
		Name:        "Milk",
		Emoji:       "🥛",
		Category:    "Dairy",
		Quantity:    &qty,
		IsChecked:   true,
		CheckedAt:   &ts,
		LastPrice:   &price,
		PriceDate:   &ts,
		SyncStatus:  model.SyncSynced,
	}
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.GetItem(ctx, "local_2_def")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.EqualValues(t, 7, got.ID)
	require.Equal(t, "Milk", got.Name)
	require.NotNil(t, got.Quantity)
	require.Equal(t, 2.5, *got.Quantity)
	require.NotNil(t, got.LastPrice)
	require.Equal(t, 3.99, *got.LastPrice)
	require.True(t, got.IsChecked)
	require.NotNil(t, got.CheckedAt)

	got, err = s.GetItem(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGenerateLocalIDFormat(t *testing.T) {
	id := GenerateLocalID()
	require.True(t, strings.HasPrefix(id, "local_"), "got %q", id)

	require.NotEqual(t, id, GenerateLocalID())

	require.Equal(t, "server_42", ServerLocalID(42))
	require.Equal(t, "item_7", ItemLocalID(7))
}
