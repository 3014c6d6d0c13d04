package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pocketlist/cartsync/localstore"
	"github.com/pocketlist/cartsync/outbox"
	"github.com/pocketlist/cartsync/remote"
)

// fakeService is an in-memory remote.Service. It records every call by name
// so tests can assert which remote operations ran, assigns monotonically
// increasing server ids, and can be switched to fail every call.
type fakeService struct {
	mu sync.Mutex

	lists     map[int64]*remote.List
	items     map[int64][]remote.Item // by list id
	favorites []remote.Product
	search    []remote.Product

	nextListID int64
	nextItemID int64

	failWith error
	calls    []string
}

func newFakeService() *fakeService {
	return &fakeService{
		lists:      make(map[int64]*remote.List),
		items:      make(map[int64][]remote.Item),
		nextListID: 1,
		nextItemID: 7,
	}
}

func (f *fakeService) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.failWith
}

func (f *fakeService) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeService) GetLists(ctx context.Context) ([]remote.List, error) {
	if err := f.record("GetLists"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.List, 0, len(f.lists))
	for _, l := range f.lists {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeService) GetList(ctx context.Context, id int64) (*remote.ListDetail, error) {
	if err := f.record("GetList"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lists[id]
	if !ok {
		return nil, fmt.Errorf("server returned status 404: list %d not found", id)
	}
	detail := &remote.ListDetail{List: *l}
	if items := f.items[id]; len(items) > 0 {
		detail.Categories = []remote.Category{{Name: "All", Items: items}}
	}
	return detail, nil
}

func (f *fakeService) CreateList(ctx context.Context, name string) (*remote.List, error) {
	if err := f.record("CreateList"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &remote.List{ID: f.nextListID, Name: name, Status: "active"}
	f.nextListID++
	f.lists[l.ID] = l
	return l, nil
}

func (f *fakeService) UpdateList(ctx context.Context, id int64, fields map[string]any) (*remote.List, error) {
	if err := f.record("UpdateList"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lists[id]
	if !ok {
		return nil, fmt.Errorf("server returned status 404: list %d not found", id)
	}
	if name, ok := fields["name"].(string); ok {
		l.Name = name
	}
	if status, ok := fields["status"].(string); ok {
		l.Status = status
	}
	out := *l
	return &out, nil
}

func (f *fakeService) DeleteList(ctx context.Context, id int64) error {
	if err := f.record("DeleteList"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lists, id)
	delete(f.items, id)
	return nil
}

func (f *fakeService) CompleteList(ctx context.Context, id int64) (*remote.List, error) {
	if err := f.record("CompleteList"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lists[id]
	if !ok {
		return nil, fmt.Errorf("server returned status 404: list %d not found", id)
	}
	l.Status = "completed"
	out := *l
	return &out, nil
}

func (f *fakeService) AddItem(ctx context.Context, listID, productID int64, quantity *float64) (*remote.Item, error) {
	if err := f.record("AddItem"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it := remote.Item{ID: f.nextItemID, ProductID: productID, Quantity: quantity, IsChecked: true}
	f.nextItemID++
	f.items[listID] = append(f.items[listID], it)
	out := it
	return &out, nil
}

func (f *fakeService) UpdateItem(ctx context.Context, listID, itemID int64, fields map[string]any) (*remote.Item, error) {
	if err := f.record("UpdateItem"); err != nil {
		return nil, err
	}
	return &remote.Item{ID: itemID}, nil
}

func (f *fakeService) DeleteItem(ctx context.Context, listID, itemID int64) error {
	if err := f.record("DeleteItem"); err != nil {
		return err
	}
	return nil
}

func (f *fakeService) ToggleItem(ctx context.Context, listID, itemID int64) (*remote.Item, error) {
	if err := f.record("ToggleItem"); err != nil {
		return nil, err
	}
	return &remote.Item{ID: itemID}, nil
}

func (f *fakeService) ToggleAllItems(ctx context.Context, listID int64, checked bool) error {
	return f.record("ToggleAllItems")
}

func (f *fakeService) SearchProducts(ctx context.Context, query string) ([]remote.Product, error) {
	if err := f.record("SearchProducts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.search, nil
}

func (f *fakeService) GetFavorites(ctx context.Context) ([]remote.Product, error) {
	if err := f.record("GetFavorites"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.favorites, nil
}

func (f *fakeService) AddFavorite(ctx context.Context, productID int64) error {
	return f.record("AddFavorite")
}

func (f *fakeService) RemoveFavorite(ctx context.Context, productID int64) error {
	return f.record("RemoveFavorite")
}

func (f *fakeService) IsFavorite(ctx context.Context, productID int64) (bool, error) {
	if err := f.record("IsFavorite"); err != nil {
		return false, err
	}
	return false, nil
}

func (f *fakeService) CreateProduct(ctx context.Context, name string) (*remote.Product, error) {
	if err := f.record("CreateProduct"); err != nil {
		return nil, err
	}
	return &remote.Product{ID: 999, Nombre: name}, nil
}

// harness bundles a store wired to an in-memory database and fake remote,
// with a switchable connectivity flag.
type harness struct {
	store  *Store
	local  *localstore.Store
	queue  *outbox.Queue
	remote *fakeService
	online bool
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	local, err := localstore.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	h := &harness{
		local:  local,
		queue:  outbox.New(local.DB, logger),
		remote: newFakeService(),
		online: online,
	}
	h.store = New(local, h.queue, h.remote, func() bool { return h.online }, logger)
	return h
}

func (h *harness) queueLen(t *testing.T) int {
	t.Helper()
	n, err := h.queue.Len(context.Background())
	require.NoError(t, err)
	return n
}
