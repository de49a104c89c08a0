package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/campuseats/menuscraper/internal/utils"
	"github.com/campuseats/menuscraper/pkg/ai"
	"github.com/campuseats/menuscraper/pkg/config"
	"github.com/campuseats/menuscraper/pkg/menu"
	"github.com/campuseats/menuscraper/pkg/menuapi"
	"github.com/campuseats/menuscraper/pkg/scraper"
	"github.com/campuseats/menuscraper/pkg/storage"
	"github.com/campuseats/menuscraper/pkg/syncer"
	"github.com/campuseats/menuscraper/pkg/whttp"
)

func loadTargets(cmd *cobra.Command) ([]menu.Target, error) {
	path, _ := cmd.Flags().GetString("targets")
	targets, err := config.LoadTargets(path)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no targets in %s", config.ErrInvalidConfig, path)
	}
	return targets, nil
}

func newScraper() *scraper.Scraper {
	fetcher := whttp.New(whttp.Options{
		Timeout: viper.GetDuration("http.timeout"),
		Retries: viper.GetInt("http.retries"),
		Logger:  utils.RetryLogger{L: utils.Log},
	})
	return scraper.New(fetcher, utils.Log)
}

// menuStore is what sync needs from either storage backend.
type menuStore interface {
	syncer.Store
	syncer.Resolver
}

// openStore opens the configured backend. The returned release func closes
// it and drops the SQLite writer lock. On SQLite the targets that carry a
// restaurant id are registered first, since menus reference restaurants(id).
func openStore(ctx context.Context, dbPathFlag string, targets []menu.Target) (menuStore, func(), error) {
	switch strings.ToLower(viper.GetString("store.type")) {
	case "", "sqlite":
		path := dbPathFlag
		if path == "" {
			path = viper.GetString("store.dbpath")
		}
		db, release, err := openLockedDB(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		seeded, err := db.SeedTargets(ctx, targets)
		if err != nil {
			utils.Log.Warnf("Some configured restaurants could not be registered: %v", err)
		}
		utils.Log.Debugf("Registered %d configured restaurants", seeded)
		return db, release, nil
	case "api":
		client, err := menuapi.New(viper.GetString("api.base_url"), menuapi.Options{
			UserUUID: viper.GetString("api.user_uuid"),
			Timeout:  viper.GetDuration("http.timeout"),
			Retries:  viper.GetInt("http.retries"),
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s (use sqlite or api)", viper.GetString("store.type"))
	}
}

// openLockedDB takes the writer lock and opens the SQLite database.
func openLockedDB(ctx context.Context, path string) (*storage.DB, func(), error) {
	absPath, err := utils.GetAbsDBPath(path)
	if err != nil {
		return nil, nil, err
	}
	lock, err := utils.NewDBLock(absPath)
	if err != nil {
		return nil, nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(absPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, fmt.Errorf("open database %s: %w", absPath, err)
	}
	utils.Log.Debugf("Using database %s", absPath)
	return db, func() {
		_ = db.Close()
		if err := lock.Unlock(); err != nil {
			utils.Log.Warnf("%v", err)
		}
	}, nil
}

// openExistingDB is openLockedDB for inspection commands: it refuses to
// create a database that is not there yet.
func openExistingDB(ctx context.Context, path string) (*storage.DB, func(), error) {
	absPath, err := utils.GetAbsDBPath(path)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("database file not found: %s", absPath)
	}
	return openLockedDB(ctx, absPath)
}

func newRewriter() (syncer.Rewriter, error) {
	if !viper.GetBool("ai.enabled") {
		return nil, nil
	}
	rw, err := ai.NewRewriter(ai.Config{
		Provider:       viper.GetString("ai.provider"),
		APIKey:         viper.GetString("ai.api_key"),
		Model:          viper.GetString("ai.model"),
		Endpoint:       viper.GetString("ai.endpoint"),
		MaxBatch:       viper.GetInt("ai.max_batch"),
		MaxConcurrency: viper.GetInt("ai.max_concurrency"),
		Log:            utils.Log,
	})
	if err != nil {
		return nil, err
	}
	return rw, nil
}
