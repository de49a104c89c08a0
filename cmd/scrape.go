package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/campuseats/menuscraper/pkg/menu"
	"github.com/campuseats/menuscraper/pkg/scraper"
)

// scrapeCmd implements: menuscraper scrape
// It fetches and parses every target without touching the store.
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the configured menu pages and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := loadTargets(cmd)
		if err != nil {
			return err
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		asJSON, _ := cmd.Flags().GetBool("json")

		pages := newScraper().ScrapeAll(cmd.Context(), targets, concurrency)
		restaurants := scraper.Restaurants(pages)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(restaurants); err != nil {
				return err
			}
		} else {
			for _, r := range restaurants {
				printMenus(r)
			}
		}

		if failed := len(pages) - len(restaurants); failed > 0 {
			return fmt.Errorf("%d of %d pages could not be scraped", failed, len(pages))
		}
		return nil
	},
}

func printMenus(r menu.Restaurant) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(r.DisplayName())
	t.AppendHeader(table.Row{"Meal", "Menu", "Description", "Allergens", "Price"})
	for _, it := range r.Menus {
		t.AppendRow(table.Row{it.Meal, it.Name, it.Description, strings.Join(it.IngredientNames(), ", "), formatPrice(it.Price)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *p)
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.Flags().IntP("concurrency", "c", 1, "Number of pages fetched in parallel")
	scrapeCmd.Flags().Bool("json", false, "Print JSON instead of tables")
}
