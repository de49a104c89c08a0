package menuapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuseats/menuscraper/pkg/menu"
)

type fakeService struct {
	mu      sync.Mutex
	nextID  int
	menus   map[string][]map[string]any // restaurant id -> menus
	created []createMenuRequest
	failDel bool
	header  string
}

func newFakeService() *fakeService {
	return &fakeService{nextID: 100, menus: map[string][]map[string]any{
		"7": {{"id": 1, "name": "Old Soup"}, {"id": 2, "name": "Old Rice"}},
	}}
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")
	switch {
	case r.Method == http.MethodGet && path == "restaurant":
		_, _ = w.Write([]byte(`[{"id": 7, "name": "Undergraduate Cafeteria"}, {"id": "abc", "name": "Faculty Club"}]`))
	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "restaurant" && parts[2] == "menu":
		f.header = r.Header.Get("X-User-UUID")
		list, ok := f.menus[parts[1]]
		if !ok {
			http.Error(w, `{"detail":"Restaurant not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"restaurant": map[string]any{"id": parts[1]}, "menus": list, "distance": 0})
	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "menu":
		if f.failDel {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		for rid, list := range f.menus {
			kept := list[:0]
			for _, m := range list {
				if fmt.Sprint(m["id"]) != parts[1] {
					kept = append(kept, m)
				}
			}
			f.menus[rid] = kept
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "restaurant" && parts[2] == "menu":
		var body createMenuRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.created = append(f.created, body)
		f.nextID++
		f.menus[parts[1]] = append(f.menus[parts[1]], map[string]any{"id": f.nextID, "name": body.Name})
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeService) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", Options{UserUUID: "user-1"})
	require.NoError(t, err)
	return c
}

func TestResolveRestaurantID(t *testing.T) {
	c := newTestClient(t, newFakeService())
	ctx := context.Background()

	id, err := c.ResolveRestaurantID(ctx, "Undergraduate Cafeteria")
	require.NoError(t, err)
	require.Equal(t, "7", id)

	id, err = c.ResolveRestaurantID(ctx, "Faculty Club")
	require.NoError(t, err)
	require.Equal(t, "abc", id)

	_, err = c.ResolveRestaurantID(ctx, "Nowhere")
	require.ErrorIs(t, err, menu.ErrUnknownRestaurant)
}

func TestReplaceMenus(t *testing.T) {
	f := newFakeService()
	c := newTestClient(t, f)
	ctx := context.Background()

	names, err := c.MenuNames(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, []string{"Old Soup", "Old Rice"}, names)
	require.Equal(t, "user-1", f.header)

	n, err := c.DeleteMenus(ctx, "7")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	err = c.InsertMenus(ctx, "7", []menu.Item{
		{Meal: menu.Lunch, Name: "Rice Bowl", MainIngredients: []menu.Ingredient{{Name: "egg"}, {Name: "milk"}}, Price: menu.Float(5500)},
		{Meal: menu.Lunch, Name: "Soup"},
	})
	require.NoError(t, err)

	require.Len(t, f.created, 2)
	require.Equal(t, createMenuRequest{Name: "Rice Bowl", MainIngredients: []string{"egg", "milk"}, Price: menu.Float(5500)}, f.created[0])
	require.Equal(t, []string{}, f.created[1].MainIngredients)
	require.Nil(t, f.created[1].Price)

	names, err = c.MenuNames(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, []string{"Rice Bowl", "Soup"}, names)
}

func TestErrors(t *testing.T) {
	f := newFakeService()
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.MenuNames(ctx, "404")
	require.ErrorIs(t, err, ErrNotFound)

	f.failDel = true
	n, err := c.DeleteMenus(ctx, "7")
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 500")
	require.EqualValues(t, 0, n)

	_, err = New("  ", Options{})
	require.Error(t, err)
}
