package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/campuseats/menuscraper/internal/utils"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the local menu database",
}

func dbPathFrom(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("dbpath")
	if path == "" {
		path = viper.GetString("store.dbpath")
	}
	return utils.GetAbsDBPath(path)
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := dbPathFrom(cmd)
		if err != nil {
			return err
		}

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints menu counts per restaurant.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := dbPathFrom(cmd)
		if err != nil {
			return err
		}
		db, release, err := openExistingDB(cmd.Context(), dbPath)
		if err != nil {
			return err
		}
		defer release()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No restaurants in the database. Run 'menuscraper db seed' first.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Restaurant", "Menus", "Unpriced", "Last sync"})

		var totalMenus, totalUnpriced int
		for _, s := range stats {
			t.AppendRow(table.Row{s.RestaurantID, s.Name, s.MenuCount, s.UnpricedCount, s.LastSyncedAt})
			totalMenus += s.MenuCount
			totalUnpriced += s.UnpricedCount
		}
		t.AppendFooter(table.Row{"", "TOTAL", totalMenus, totalUnpriced, ""})
		t.SetStyle(table.StyleRounded)
		t.Render()

		return nil
	},
}

// seedCmd registers the restaurants of the targets file so sync can
// resolve their names.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register the restaurants listed in the targets file",
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := loadTargets(cmd)
		if err != nil {
			return err
		}
		dbPath, err := dbPathFrom(cmd)
		if err != nil {
			return err
		}
		db, release, err := openLockedDB(cmd.Context(), dbPath)
		if err != nil {
			return err
		}
		defer release()

		for _, t := range targets {
			if t.RestaurantName == "" || t.RestaurantID == "" {
				utils.Log.Warnf("Skipping %s: restaurant_name and restaurant_id are both required to seed", t.URL)
			}
		}
		seeded, err := db.SeedTargets(cmd.Context(), targets)
		utils.Log.Infof("Seeded %d restaurants into %s", seeded, dbPath)
		return err
	},
}

// menusCmd prints the stored menus of one restaurant.
var menusCmd = &cobra.Command{
	Use:   "menus <restaurant name>",
	Short: "Print the stored menus of a restaurant",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		dbPath, err := dbPathFrom(cmd)
		if err != nil {
			return err
		}
		db, release, err := openExistingDB(cmd.Context(), dbPath)
		if err != nil {
			return err
		}
		defer release()

		id, err := db.ResolveRestaurantID(cmd.Context(), name)
		if err != nil {
			return err
		}
		menus, err := db.ListMenus(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(menus) == 0 {
			return errors.New("no menus stored for " + name)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle(name)
		t.AppendHeader(table.Row{"Meal", "Menu", "Description", "Allergens", "Price"})
		for _, m := range menus {
			var allergens []string
			for _, ing := range m.MainIngredients {
				allergens = append(allergens, ing.Name)
			}
			t.AppendRow(table.Row{m.Meal, m.Name, m.Description, strings.Join(allergens, ", "), formatPrice(m.Price)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

// restaurantsCmd lists the registered restaurants.
var restaurantsCmd = &cobra.Command{
	Use:   "restaurants",
	Short: "List the restaurants registered in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := dbPathFrom(cmd)
		if err != nil {
			return err
		}
		db, release, err := openExistingDB(cmd.Context(), dbPath)
		if err != nil {
			return err
		}
		defer release()

		restaurants, err := db.ListRestaurants(cmd.Context())
		if err != nil {
			return err
		}
		if len(restaurants) == 0 {
			fmt.Println("No restaurants in the database. Run 'menuscraper db seed' first.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Restaurant"})
		for _, r := range restaurants {
			t.AppendRow(table.Row{r.ID, r.Name})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(seedCmd)
	dbCmd.AddCommand(menusCmd)
	dbCmd.AddCommand(restaurantsCmd)
	dbCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default from store.dbpath or ~/.config/menuscraper/menus.sqlite)")
}
