package syncer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuseats/menuscraper/pkg/menu"
)

type fakeStore struct {
	menus     map[string][]menu.Item
	listErr   error
	deleteErr map[string]error
	insertErr map[string]error
	calls     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{menus: map[string][]menu.Item{}, deleteErr: map[string]error{}, insertErr: map[string]error{}}
}

func (f *fakeStore) MenuNames(_ context.Context, id string) ([]string, error) {
	f.calls = append(f.calls, "list "+id)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var names []string
	for _, it := range f.menus[id] {
		names = append(names, it.Name)
	}
	return names, nil
}

func (f *fakeStore) DeleteMenus(_ context.Context, id string) (int64, error) {
	f.calls = append(f.calls, "delete "+id)
	if err := f.deleteErr[id]; err != nil {
		return 0, err
	}
	n := int64(len(f.menus[id]))
	delete(f.menus, id)
	return n, nil
}

func (f *fakeStore) InsertMenus(_ context.Context, id string, items []menu.Item) error {
	f.calls = append(f.calls, "insert "+id)
	if err := f.insertErr[id]; err != nil {
		return err
	}
	f.menus[id] = append(f.menus[id], items...)
	return nil
}

type upperRewriter struct{ err error }

func (u upperRewriter) RewriteMenus(_ context.Context, _ string, items []menu.Item) ([]menu.Item, error) {
	if u.err != nil {
		return nil, u.err
	}
	out := make([]menu.Item, len(items))
	for i, it := range items {
		it.Name = strings.ToUpper(it.Name)
		out[i] = it
	}
	return out, nil
}

type recordingLogger struct{ warnings []string }

func (r *recordingLogger) Infof(string, ...interface{})  {}
func (r *recordingLogger) Errorf(string, ...interface{}) {}
func (r *recordingLogger) Debugf(string, ...interface{}) {}
func (r *recordingLogger) Warnf(format string, _ ...interface{}) {
	r.warnings = append(r.warnings, format)
}

func restaurant(name string, menus ...string) menu.Restaurant {
	r := menu.Restaurant{Name: &name}
	for _, m := range menus {
		r.Menus = append(r.Menus, menu.Item{Meal: menu.Lunch, Name: m})
	}
	return r
}

func TestSyncReplacesMenus(t *testing.T) {
	store := newFakeStore()
	store.menus["1"] = []menu.Item{{Name: "Old Soup"}, {Name: "Rice Bowl"}}

	s, err := New(Config{Store: store, Resolver: StaticResolver{"Undergraduate Cafeteria": "1"}})
	require.NoError(t, err)

	results := s.Sync(context.Background(), []menu.Restaurant{restaurant("Undergraduate Cafeteria", "Rice Bowl", "Grilled Chicken")})
	require.Len(t, results, 1)
	res := results[0]
	require.Equal(t, StatusSynced, res.Status)
	require.NoError(t, res.Err)
	require.Equal(t, "1", res.ID)
	require.EqualValues(t, 2, res.Deleted)
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, []string{"Grilled Chicken"}, res.Added)
	require.Equal(t, []string{"Old Soup"}, res.Removed)

	require.Equal(t, []string{"list 1", "delete 1", "insert 1"}, store.calls)
	require.Len(t, store.menus["1"], 2)
	require.False(t, Failed(results))
}

func TestSyncContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	store.deleteErr["2"] = errors.New("connection reset")
	store.insertErr["3"] = errors.New("constraint failed")
	log := &recordingLogger{}

	var done []string
	s, err := New(Config{
		Store:            store,
		Resolver:         StaticResolver{"A": "1", "B": "2", "C": "3", "E": "5"},
		Log:              log,
		OnRestaurantDone: func(r Result) { done = append(done, r.Restaurant) },
	})
	require.NoError(t, err)

	results := s.Sync(context.Background(), []menu.Restaurant{
		restaurant("A", "x"),
		restaurant("B", "y"),
		restaurant("C", "z"),
		restaurant("D", "w"),
		{Name: nil},
		restaurant("E", "v"),
	})

	var statuses []Status
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}
	require.Equal(t, []Status{StatusSynced, StatusFailed, StatusFailed, StatusSkipped, StatusSkipped, StatusSynced}, statuses)
	require.ErrorIs(t, results[3].Err, menu.ErrUnknownRestaurant)
	require.Contains(t, results[1].Err.Error(), "delete menus")
	require.Contains(t, results[2].Err.Error(), "insert menus")
	require.Equal(t, []string{"A", "B", "C", "D", "<unnamed>", "E"}, done)
	require.True(t, Failed(results))

	// A failed delete never inserts.
	require.NotContains(t, store.calls, "insert 2")
	require.Contains(t, log.warnings, "Unknown restaurant: %s, skipping...")
}

func TestSyncListFailureOnlyDropsReport(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("timeout")
	s, err := New(Config{Store: store, Resolver: StaticResolver{"A": "1"}})
	require.NoError(t, err)

	res := s.Sync(context.Background(), []menu.Restaurant{restaurant("A", "x")})[0]
	require.Equal(t, StatusSynced, res.Status)
	require.Nil(t, res.Added)
	require.Nil(t, res.Removed)
	require.Len(t, store.menus["1"], 1)
}

func TestSyncRewriter(t *testing.T) {
	t.Run("rewritten menus are inserted", func(t *testing.T) {
		store := newFakeStore()
		s, err := New(Config{Store: store, Resolver: StaticResolver{"A": "1"}, Rewriter: upperRewriter{}})
		require.NoError(t, err)
		s.Sync(context.Background(), []menu.Restaurant{restaurant("A", "soup")})
		require.Equal(t, "SOUP", store.menus["1"][0].Name)
	})

	t.Run("rewriter failure keeps originals", func(t *testing.T) {
		store := newFakeStore()
		s, err := New(Config{Store: store, Resolver: StaticResolver{"A": "1"}, Rewriter: upperRewriter{err: errors.New("quota")}})
		require.NoError(t, err)
		res := s.Sync(context.Background(), []menu.Restaurant{restaurant("A", "soup")})[0]
		require.Equal(t, StatusSynced, res.Status)
		require.Equal(t, "soup", store.menus["1"][0].Name)
	})
}

type errResolver struct{ err error }

func (e errResolver) ResolveRestaurantID(context.Context, string) (string, error) { return "", e.err }

func TestChain(t *testing.T) {
	ctx := context.Background()
	live := StaticResolver{"B": "20", "A": "99"}

	id, err := Chain{StaticResolver{"A": "1"}, live}.ResolveRestaurantID(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, "1", id)

	id, err = Chain{StaticResolver{"A": "1"}, live}.ResolveRestaurantID(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, "20", id)

	_, err = Chain{StaticResolver{}, live}.ResolveRestaurantID(ctx, "C")
	require.ErrorIs(t, err, menu.ErrUnknownRestaurant)

	boom := errors.New("service down")
	_, err = Chain{errResolver{boom}, live}.ResolveRestaurantID(ctx, "B")
	require.ErrorIs(t, err, boom)

	store := newFakeStore()
	s, err := New(Config{Store: store, Resolver: errResolver{boom}})
	require.NoError(t, err)
	res := s.Sync(ctx, []menu.Restaurant{restaurant("A", "x")})[0]
	require.Equal(t, StatusFailed, res.Status)
	require.Empty(t, store.calls)
}

func TestDiffNames(t *testing.T) {
	items := []menu.Item{{Name: "Soup"}, {Name: "Soup"}, {Name: "Rice"}}
	added, removed := diffNames([]string{"Soup", "Kimchi", "Kimchi"}, items)
	require.Equal(t, []string{"Soup", "Rice"}, added)
	require.Equal(t, []string{"Kimchi", "Kimchi"}, removed)

	added, removed = diffNames(nil, nil)
	require.Nil(t, added)
	require.Nil(t, removed)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Resolver: StaticResolver{}})
	require.Error(t, err)
	_, err = New(Config{Store: newFakeStore()})
	require.Error(t, err)
}
