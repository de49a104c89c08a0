package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/campuseats/menuscraper/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "menuscraper",
	Short: "Scrapes campus cafeteria menus and syncs them to the menu store.",
	Long: `menuscraper fetches the daily menu pages of the campus restaurants, parses
every meal cell into menus with prices and allergens, and replaces each
restaurant's stored menus with the fresh ones.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.menuscraper.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().StringP("targets", "t", "scraper_config.json", "JSON array of {url, restaurant_name, restaurant_id} entries")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".menuscraper")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("menuscraper")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".menuscraper.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating config file: %s\n", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func setDefaults() {
	viper.SetDefault("store.type", "sqlite")
	viper.SetDefault("store.dbpath", "")
	viper.SetDefault("api.base_url", "")
	viper.SetDefault("api.user_uuid", "")
	viper.SetDefault("http.timeout", 30*time.Second)
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.endpoint", "")
	viper.SetDefault("ai.max_batch", 25)
	viper.SetDefault("ai.max_concurrency", 4)
}
