/*
Copyright © 2026 finconcept contributors
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/quantkb/finconcept/internal/scoring"
	"github.com/quantkb/finconcept/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configShowCmd shows current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

// Telemetry subcommands
var configTelemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage telemetry settings",
	Long: `View and manage anonymous usage telemetry settings.

finconcept collects anonymous usage data to improve the product:
  - Command names and execution duration
  - Success/failure status
  - OS and architecture
  - CLI version

No concept names, cached payloads, or personal data is ever collected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTelemetryStatus()
	},
}

var configTelemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current telemetry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTelemetryStatus()
	},
}

var configTelemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTelemetryEnable()
	},
}

var configTelemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTelemetryDisable()
	},
}

// configCmd is the parent config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage finconcept configuration",
	Long: `View and manage finconcept configuration settings.

Running without a subcommand shows the current configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

func init() {
	// Add config command to root
	rootCmd.AddCommand(configCmd)

	// Add subcommands
	configCmd.AddCommand(configShowCmd)

	// Add telemetry subcommand with its subcommands
	configCmd.AddCommand(configTelemetryCmd)
	configTelemetryCmd.AddCommand(configTelemetryStatusCmd)
	configTelemetryCmd.AddCommand(configTelemetryEnableCmd)
	configTelemetryCmd.AddCommand(configTelemetryDisableCmd)
}

func runConfigShow() error {
	cfg := GetConfig()

	if isJSON() {
		return printJSON(struct {
			ConfigFile string          `json:"configFile,omitempty"`
			Project    map[string]any  `json:"project"`
			Cache      map[string]any  `json:"cache"`
			Sources    map[string]any  `json:"sources"`
			Scoring    map[string]any  `json:"scoring"`
			Telemetry  map[string]bool `json:"telemetry"`
		}{
			ConfigFile: viper.ConfigFileUsed(),
			Project: map[string]any{
				"rootDir": cfg.Project.RootDir,
			},
			Cache: map[string]any{
				"database":   CacheDBPath(),
				"ttlHours":   cfg.Cache.TTLHours,
				"maxEntries": cfg.Cache.MaxEntries,
			},
			Sources: map[string]any{
				"primary": cfg.Sources.Primary,
				"enabled": cfg.Sources.Enabled,
			},
			Scoring: map[string]any{
				"tablesFile": cfg.Scoring.TablesFile,
				"watch":      cfg.Scoring.Watch,
			},
			Telemetry: map[string]bool{
				"enabled": cfg.Telemetry.Enabled,
			},
		})
	}

	fmt.Println("finconcept Configuration")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Printf("  Config file: %s\n", used)
	} else {
		fmt.Println("  Config file: (none, using defaults)")
	}

	fmt.Println()
	fmt.Println("## Cache")
	fmt.Printf("  database:    %s\n", CacheDBPath())
	fmt.Printf("  ttl-hours:   %g\n", cfg.Cache.TTLHours)
	fmt.Printf("  max-entries: %d\n", cfg.Cache.MaxEntries)

	fmt.Println()
	fmt.Println("## Sources")
	fmt.Printf("  primary:     %s\n", cfg.Sources.Primary)
	fmt.Printf("  enabled:     %s\n", strings.Join(cfg.Sources.Enabled, ", "))

	fmt.Println()
	fmt.Println("## Scoring")
	if cfg.Scoring.TablesFile != "" {
		fmt.Printf("  tables-file: %s\n", cfg.Scoring.TablesFile)
		fmt.Printf("  watch:       %v\n", cfg.Scoring.Watch)
	} else {
		fmt.Println("  tables-file: (built-in defaults)")
	}
	tables := scoringTablesOnce()
	fmt.Printf("  threshold:   %.2f\n", tables.Threshold)
	fmt.Printf("  max-related: %d\n", tables.MaxRelated)

	fmt.Println()
	fmt.Println("## Telemetry")
	fmt.Printf("  enabled:     %v\n", cfg.Telemetry.Enabled)

	return nil
}

// scoringTablesOnce loads the effective scoring tables without a watcher,
// for display purposes.
func scoringTablesOnce() *scoring.Tables {
	tables, stop := scoringTables()
	defer stop()
	return tables()
}

// runTelemetryStatus displays the current telemetry configuration.
func runTelemetryStatus() error {
	cfg, err := telemetry.Load()
	if err != nil {
		return fmt.Errorf("load telemetry config: %w", err)
	}

	configPath, _ := telemetry.GetConfigPath()

	if isJSON() {
		return printJSON(map[string]any{
			"enabled":       cfg.IsEnabled(),
			"consent_asked": !cfg.NeedsConsent(),
			"anonymous_id":  cfg.AnonymousID,
			"config_path":   configPath,
		})
	}

	fmt.Println("Telemetry Configuration")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	status := "Disabled"
	statusIcon := "❌"
	if cfg.IsEnabled() {
		status = "Enabled"
		statusIcon = "✅"
	}

	fmt.Printf("  Status:       %s %s\n", statusIcon, status)
	fmt.Printf("  Anonymous ID: %s\n", cfg.AnonymousID)
	fmt.Printf("  Config file:  %s\n", configPath)
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  finconcept config telemetry enable   Enable telemetry")
	fmt.Println("  finconcept config telemetry disable  Disable telemetry")
	fmt.Println()

	return nil
}

// runTelemetryEnable enables telemetry and saves the config.
func runTelemetryEnable() error {
	cfg, err := telemetry.Load()
	if err != nil {
		return fmt.Errorf("load telemetry config: %w", err)
	}

	cfg.Enable()

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save telemetry config: %w", err)
	}

	if isJSON() {
		return printJSON(map[string]any{
			"enabled": true,
			"message": "Telemetry enabled",
		})
	}

	fmt.Println("✅ Telemetry enabled")
	fmt.Println()
	fmt.Println("Thank you for helping improve finconcept!")
	fmt.Println("We collect: command names, duration, success/failure, OS, CLI version")
	fmt.Println("We never collect: concept names, cached payloads, or personal data")
	return nil
}

// runTelemetryDisable disables telemetry and saves the config.
func runTelemetryDisable() error {
	cfg, err := telemetry.Load()
	if err != nil {
		return fmt.Errorf("load telemetry config: %w", err)
	}

	cfg.Disable()

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save telemetry config: %w", err)
	}

	if isJSON() {
		return printJSON(map[string]any{
			"enabled": false,
			"message": "Telemetry disabled",
		})
	}

	fmt.Println("✅ Telemetry disabled")
	fmt.Println()
	fmt.Println("You can re-enable anytime with: finconcept config telemetry enable")
	return nil
}
