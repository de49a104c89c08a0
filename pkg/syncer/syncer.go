package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campuseats/menuscraper/pkg/menu"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Store is the downstream menu storage. storage.DB and menuapi.Client both
// satisfy it.
type Store interface {
	MenuNames(ctx context.Context, restaurantID string) ([]string, error)
	DeleteMenus(ctx context.Context, restaurantID string) (int64, error)
	InsertMenus(ctx context.Context, restaurantID string, items []menu.Item) error
}

// Resolver maps a restaurant name to its id in the store. Implementations
// return an error wrapping menu.ErrUnknownRestaurant when the name is unknown.
type Resolver interface {
	ResolveRestaurantID(ctx context.Context, name string) (string, error)
}

// Rewriter optionally rewrites menu names and descriptions before insert.
// It must return one item per input item.
type Rewriter interface {
	RewriteMenus(ctx context.Context, restaurant string, items []menu.Item) ([]menu.Item, error)
}

// StaticResolver resolves names from a fixed name→id mapping.
type StaticResolver map[string]string

func (s StaticResolver) ResolveRestaurantID(_ context.Context, name string) (string, error) {
	if id := strings.TrimSpace(s[name]); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("static mapping: %q: %w", name, menu.ErrUnknownRestaurant)
}

// Chain tries each resolver in order, moving on only when a resolver reports
// the name as unknown. Any other error stops the chain.
type Chain []Resolver

func (c Chain) ResolveRestaurantID(ctx context.Context, name string) (string, error) {
	for _, r := range c {
		id, err := r.ResolveRestaurantID(ctx, name)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, menu.ErrUnknownRestaurant) {
			return "", err
		}
	}
	return "", fmt.Errorf("%q: %w", name, menu.ErrUnknownRestaurant)
}

// Status is the outcome of syncing one restaurant.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result reports what happened to one restaurant.
type Result struct {
	Restaurant string
	ID         string
	Status     Status
	Err        error

	// Added and Removed are menu names that appeared or disappeared compared
	// to the store. Both stay nil when the existing menus could not be listed.
	Added    []string
	Removed  []string
	Deleted  int64
	Inserted int
}

// Config holds the collaborators of a Syncer.
type Config struct {
	Store    Store
	Resolver Resolver
	Rewriter Rewriter // optional
	Log      Logger   // optional; nil = no logging

	// OnRestaurantDone is called after each restaurant, in order. Nil = no callback.
	OnRestaurantDone func(Result)
}

// Syncer replaces each restaurant's stored menus with freshly scraped ones.
type Syncer struct {
	store    Store
	resolver Resolver
	rewriter Rewriter
	log      Logger
	onDone   func(Result)
}

func New(cfg Config) (*Syncer, error) {
	if cfg.Store == nil {
		return nil, errors.New("syncer: store is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("syncer: resolver is required")
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Syncer{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		rewriter: cfg.Rewriter,
		log:      log,
		onDone:   cfg.OnRestaurantDone,
	}, nil
}

// Sync processes restaurants one after another. Failures are recorded per
// restaurant and never stop the batch.
func (s *Syncer) Sync(ctx context.Context, restaurants []menu.Restaurant) []Result {
	results := make([]Result, 0, len(restaurants))
	for _, r := range restaurants {
		res := s.syncOne(ctx, r)
		results = append(results, res)
		if s.onDone != nil {
			s.onDone(res)
		}
	}
	return results
}

func (s *Syncer) syncOne(ctx context.Context, r menu.Restaurant) Result {
	res := Result{Restaurant: r.DisplayName()}
	if r.Name == nil || strings.TrimSpace(*r.Name) == "" {
		s.log.Warnf("Restaurant without a name, skipping...")
		res.Status = StatusSkipped
		res.Err = fmt.Errorf("missing name: %w", menu.ErrUnknownRestaurant)
		return res
	}
	name := *r.Name

	id, err := s.resolver.ResolveRestaurantID(ctx, name)
	if err != nil {
		res.Err = err
		if errors.Is(err, menu.ErrUnknownRestaurant) {
			s.log.Warnf("Unknown restaurant: %s, skipping...", name)
			res.Status = StatusSkipped
			return res
		}
		s.log.Errorf("Could not resolve restaurant %s: %v", name, err)
		res.Status = StatusFailed
		return res
	}
	res.ID = id
	s.log.Infof("Syncing menus for %s (%s)...", name, id)

	existing, err := s.store.MenuNames(ctx, id)
	listed := err == nil
	if !listed {
		s.log.Warnf("Could not list existing menus for %s: %v", name, err)
	}

	deleted, err := s.store.DeleteMenus(ctx, id)
	res.Deleted = deleted
	if err != nil {
		s.log.Errorf("Failed to delete menus for %s: %v", name, err)
		res.Status = StatusFailed
		res.Err = fmt.Errorf("delete menus: %w", err)
		return res
	}

	items := r.Menus
	if s.rewriter != nil && len(items) > 0 {
		items = s.rewrite(ctx, name, items)
	}

	if err := s.store.InsertMenus(ctx, id, items); err != nil {
		s.log.Errorf("Failed to insert menus for %s: %v", name, err)
		res.Status = StatusFailed
		res.Err = fmt.Errorf("insert menus: %w", err)
		return res
	}

	res.Inserted = len(items)
	if listed {
		res.Added, res.Removed = diffNames(existing, items)
	}
	res.Status = StatusSynced
	s.log.Debugf("Synced %d menus for %s (%d deleted)", len(items), name, deleted)
	return res
}

func (s *Syncer) rewrite(ctx context.Context, name string, items []menu.Item) []menu.Item {
	rewritten, err := s.rewriter.RewriteMenus(ctx, name, items)
	if err != nil {
		s.log.Warnf("LLM adjustment failed for %s: %v", name, err)
		return items
	}
	if len(rewritten) != len(items) {
		s.log.Warnf("LLM adjustment for %s returned %d menus, expected %d; keeping originals", name, len(rewritten), len(items))
		return items
	}
	return rewritten
}

// diffNames compares stored menu names against the new items as multisets,
// keeping the order in which names first appear.
func diffNames(existing []string, items []menu.Item) (added, removed []string) {
	counts := make(map[string]int, len(existing))
	for _, n := range existing {
		counts[n]++
	}
	for _, it := range items {
		if counts[it.Name] > 0 {
			counts[it.Name]--
			continue
		}
		added = append(added, it.Name)
	}
	for _, n := range existing {
		if counts[n] > 0 {
			counts[n]--
			removed = append(removed, n)
		}
	}
	return added, removed
}

// Failed reports whether any result in the batch failed. Skips do not count.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFailed {
			return true
		}
	}
	return false
}
