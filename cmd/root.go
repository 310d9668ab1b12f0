/*
Copyright © 2026 finconcept contributors
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantkb/finconcept/internal/cache"
	"github.com/quantkb/finconcept/internal/config"
	"github.com/quantkb/finconcept/internal/enrich"
	"github.com/quantkb/finconcept/internal/logger"
	"github.com/quantkb/finconcept/internal/scoring"
	"github.com/quantkb/finconcept/internal/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// ErrNoCandidates is returned when an interactive selection is attempted but no candidates are available.
	ErrNoCandidates = errors.New("no candidates found for this concept")
	// version is the application version.
	version = "0.3.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "finconcept",
	Short: "finconcept enriches financial and mathematical concepts from public knowledge bases.",
	Long: `finconcept looks up financial and mathematical concepts (ratios, models,
instruments, measures) in DBpedia and Wikidata, scores the candidates against
the concept's domain, and caches accepted matches in a local SQLite store.`,
	Run: func(cmd *cobra.Command, args []string) {
		// return help if no args are provided
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}

		// otherwise, run the subcommand
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	logger.SetVersion(version)
	logger.SetCommand(strings.Join(os.Args[1:], " "))

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.finconcept.yaml or ./.finconcept.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("json", false, "output machine-readable JSON")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress progress output")

	// Bind persistent flags to Viper
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// CacheDBPath returns the full path to the cache database file.
func CacheDBPath() string {
	cfg := GetConfig()
	return filepath.Join(config.GetCacheBasePath(), cfg.Cache.File)
}

// GetStore initializes and returns the concept cache store using the unified
// types.AppConfig. The caller owns Close.
func GetStore() (cache.Store, error) {
	cfg := GetConfig()
	s, err := cache.NewSQLiteStore(config.GetCacheBasePath(), cfg.Cache, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to open concept cache at %s: %w", CacheDBPath(), err)
	}
	return s, nil
}

// newEnricher builds the enrichment manager over the store. A non-empty
// sources list overrides the configured enabled sources, with the first
// entry as the primary. The returned stop func releases the scoring tables
// watcher when one is active.
func newEnricher(st cache.Store, sources []string) (*enrich.Enricher, func()) {
	cfg := GetConfig()
	srcCfg := cfg.Sources
	if len(sources) > 0 {
		srcCfg.Enabled = sources
		srcCfg.Primary = sources[0]
	}
	tables, stop := scoringTables()
	return enrich.New(st, srcCfg, cfg.Cache.TTLHours, tables, slog.Default()), stop
}

// scoringTables resolves the scoring tables provider: a watched file when
// scoring.watch is set, otherwise a one-shot load with fallback to the
// built-in defaults. Config overrides apply in both cases.
func scoringTables() (func() *scoring.Tables, func()) {
	cfg := GetConfig()
	if cfg.Scoring.TablesFile != "" && cfg.Scoring.Watch {
		w, err := scoring.NewWatcher(cfg.Scoring.TablesFile, slog.Default())
		if err == nil {
			return func() *scoring.Tables { return config.ApplyScoringOverrides(w.Tables()) }, w.Stop
		}
		LogError("scoring tables watch failed, loading once", err)
	}
	tables := config.ApplyScoringOverrides(scoring.LoadOrDefault(afero.NewOsFs(), cfg.Scoring.TablesFile, slog.Default()))
	return func() *scoring.Tables { return tables }, func() {}
}

// telemetryAPIKey is injected at build time via -ldflags for release
// binaries. An empty key leaves the client uninitialized.
var telemetryAPIKey = ""

// trackEvent sends one telemetry event if the user has opted in. Errors are
// swallowed; telemetry must never affect command behavior.
func trackEvent(event string, properties telemetry.Properties) {
	tcfg, err := telemetry.Load()
	if err != nil || !tcfg.IsEnabled() {
		return
	}
	client, err := telemetry.NewPostHogClient(telemetry.ClientConfig{
		APIKey:  telemetryAPIKey,
		Version: GetVersion(),
		Config:  tcfg,
	})
	if err != nil {
		LogError("telemetry client init failed", err)
		return
	}
	client.Track(event, properties)
	_ = client.Close()
}
