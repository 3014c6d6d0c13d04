package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	token := func(context.Context) (string, error) { return "test-token", nil }
	return NewClient(srv.URL, token, nil)
}

func TestGetListsRequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/lists", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]List{{ID: 1, Name: "Groceries", Status: "active"}})
	})

	lists, err := c.GetLists(context.Background())
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.EqualValues(t, 1, lists[0].ID)
	require.Equal(t, "Groceries", lists[0].Name)
}

func TestCreateListSendsName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/lists", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Weekly Groceries", body["name"])

		_ = json.NewEncoder(w).Encode(List{ID: 1, Name: "Weekly Groceries", Status: "active"})
	})

	list, err := c.CreateList(context.Background(), "Weekly Groceries")
	require.NoError(t, err)
	require.EqualValues(t, 1, list.ID)
}

func TestToggleItemPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/lists/1/items/7/toggle", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Item{ID: 7, IsChecked: false})
	})

	item, err := c.ToggleItem(context.Background(), 1, 7)
	require.NoError(t, err)
	require.EqualValues(t, 7, item.ID)
	require.False(t, item.IsChecked)
}

func TestToggleAllItemsSendsChecked(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/lists/1/items/toggle-all", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, true, body["checked"])
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.ToggleAllItems(context.Background(), 1, true))
}

func TestAddItemOmitsNilQuantity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.EqualValues(t, 101, body["productId"])
		_, hasQty := body["quantity"]
		require.False(t, hasQty)
		_ = json.NewEncoder(w).Encode(Item{ID: 7, ProductID: 101})
	})

	item, err := c.AddItem(context.Background(), 1, 101, nil)
	require.NoError(t, err)
	require.EqualValues(t, 7, item.ID)
}

func TestSearchProductsEscapesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/products/search", r.URL.Path)
		require.Equal(t, "red apples", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode([]Product{{ID: 101, Nombre: "Apples"}})
	})

	products, err := c.SearchProducts(context.Background(), "red apples")
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "Apples", products[0].Nombre)
}

func TestGetFavoritesUnwrapsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/favorites", r.URL.Path)
		_ = json.NewEncoder(w).Encode(FavoritesResponse{
			Favorites: []Product{{ID: 101, Nombre: "Milk", Favorite: true}},
		})
	})

	favs, err := c.GetFavorites(context.Background())
	require.NoError(t, err)
	require.Len(t, favs, 1)
	require.True(t, favs[0].Favorite)
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.GetLists(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "server returned status 500")
	require.Contains(t, err.Error(), "boom")
}

func TestDeleteListNoBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/lists/5", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteList(context.Background(), 5))
}

func TestListDetailFlattensCategories(t *testing.T) {
	detail := ListDetail{
		List: List{ID: 1, Name: "Groceries"},
		Categories: []Category{
			{Name: "Dairy", Items: []Item{{ID: 1}, {ID: 2}}},
			{Name: "Bakery", Items: []Item{{ID: 3}}},
		},
	}

	items := detail.Items()
	require.Len(t, items, 3)
	require.EqualValues(t, 1, items[0].ID)
	require.EqualValues(t, 3, items[2].ID)
}
