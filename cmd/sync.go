package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campuseats/menuscraper/internal/utils"
	"github.com/campuseats/menuscraper/pkg/config"
	"github.com/campuseats/menuscraper/pkg/scraper"
	"github.com/campuseats/menuscraper/pkg/syncer"
)

// syncCmd implements: menuscraper sync
//
//	--targets string    Targets file (global flag)
//	--concurrency int   Pages fetched in parallel
//	--dbpath string     SQLite file when store.type is sqlite
//	--dry-run           Scrape and report, but do not write
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scrape all menu pages and replace the stored menus",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'menuscraper sync --help'", args[0])
		}
		ctx := cmd.Context()

		targets, err := loadTargets(cmd)
		if err != nil {
			return err
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		dbPathFlag, _ := cmd.Flags().GetString("dbpath")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		rewriter, err := newRewriter()
		if err != nil {
			return err
		}

		pages := newScraper().ScrapeAll(ctx, targets, concurrency)
		restaurants := scraper.Restaurants(pages)
		if len(restaurants) == 0 {
			return errors.New("no menu page could be scraped")
		}
		if dryRun {
			for _, r := range restaurants {
				utils.Log.Infof("Would sync %d menus for %s", len(r.Menus), r.DisplayName())
			}
			return nil
		}

		store, release, err := openStore(ctx, dbPathFlag, targets)
		if err != nil {
			return err
		}
		defer release()

		s, err := syncer.New(syncer.Config{
			Store:            store,
			Resolver:         syncer.Chain{syncer.StaticResolver(config.StaticIDs(targets)), store},
			Rewriter:         rewriter,
			Log:              utils.Log,
			OnRestaurantDone: printResult,
		})
		if err != nil {
			return err
		}

		results := s.Sync(ctx, restaurants)
		printSummary(results)

		if syncer.Failed(results) {
			return errors.New("some restaurants failed to sync")
		}
		utils.Log.Info("Scraping and sync complete.")
		return nil
	},
}

func printResult(r syncer.Result) {
	switch r.Status {
	case syncer.StatusSkipped:
		fmt.Printf("⏭️  %s  skipped\n", r.Restaurant)
		return
	case syncer.StatusFailed:
		fmt.Printf("⚠️  %s  failed: %v\n", r.Restaurant, r.Err)
		return
	}
	fmt.Printf("✅  %s  %d menus (%d replaced)\n", r.Restaurant, r.Inserted, r.Deleted)
	printChanges(r.Restaurant, r.Added, r.Removed)
}

func printChanges(restaurant string, added, removed []string) {
	for _, name := range added {
		fmt.Printf("🆕  %s  %s\n", restaurant, name)
	}
	for _, name := range removed {
		fmt.Printf("❌  %s  %s\n", restaurant, name)
	}
}

func printSummary(results []syncer.Result) {
	var synced, skipped, failed int
	for _, r := range results {
		switch r.Status {
		case syncer.StatusSynced:
			synced++
		case syncer.StatusSkipped:
			skipped++
		case syncer.StatusFailed:
			failed++
		}
	}
	utils.Log.Infof("Synced %d, skipped %d, failed %d restaurants", synced, skipped, failed)
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().IntP("concurrency", "c", 1, "Number of pages fetched in parallel")
	syncCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default from store.dbpath or ~/.config/menuscraper/menus.sqlite)")
	syncCmd.Flags().Bool("dry-run", false, "Scrape and report without writing to the store")
}
