/*
Copyright © 2026 finconcept contributors
*/
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/quantkb/finconcept/internal/logger"
	"github.com/quantkb/finconcept/internal/scoring"
	"github.com/quantkb/finconcept/internal/telemetry"
	"github.com/quantkb/finconcept/internal/ui"
	"github.com/quantkb/finconcept/types"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorOffline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check finconcept setup and diagnose issues",
	Long: `Validate your finconcept installation and configuration.

Checks:
  • Configuration file and validation
  • Cache database health and consistency
  • Scoring tables file
  • Knowledge source reachability
  • Telemetry consent
  • Crash logs from previous runs

Use this to troubleshoot issues or verify setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "Skip network reachability probes")
}

// DoctorCheck represents a single diagnostic check
type DoctorCheck struct {
	Name    string
	Status  string // "ok", "warn", "fail"
	Message string
	Hint    string
}

func runDoctor() error {
	fmt.Println("🩺 finconcept Doctor")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	checks := []DoctorCheck{}
	hasErrors := false

	// Check 1: Configuration
	checks = append(checks, checkConfiguration())

	// Check 2 + 3: Cache database and consistency
	cacheChecks := checkCacheDatabase()
	checks = append(checks, cacheChecks...)

	// Check 4: Scoring tables
	checks = append(checks, checkScoringTables())

	// Check 5: Knowledge sources
	checks = append(checks, checkSources()...)

	// Check 6: Telemetry consent
	checks = append(checks, checkTelemetry())

	// Check 7: Crash logs from previous runs
	checks = append(checks, checkCrashLogs())

	failures := 0
	for _, c := range checks {
		printCheck(c)
		if c.Status == "fail" {
			hasErrors = true
			failures++
		}
	}

	trackEvent(telemetry.EventDoctorRun, telemetry.Properties{
		"checks":   len(checks),
		"failures": failures,
	})

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if hasErrors {
		fmt.Println("❌ Issues found. Fix the errors above before continuing.")
	} else {
		fmt.Println("✅ Everything looks good!")
	}

	return nil
}

func printCheck(c DoctorCheck) {
	var icon string
	switch c.Status {
	case "ok":
		icon = "✅"
	case "warn":
		icon = "⚠️ "
	case "fail":
		icon = "❌"
	}

	fmt.Printf("%s %s: %s\n", icon, c.Name, c.Message)
	if c.Hint != "" && c.Status != "ok" {
		fmt.Printf("   └─ %s\n", c.Hint)
	}
}

func checkConfiguration() DoctorCheck {
	if used := viper.ConfigFileUsed(); used != "" {
		return DoctorCheck{
			Name:    "Configuration",
			Status:  "ok",
			Message: fmt.Sprintf("Using %s", used),
		}
	}
	return DoctorCheck{
		Name:    "Configuration",
		Status:  "ok",
		Message: "Defaults and environment variables (no config file)",
	}
}

func checkCacheDatabase() []DoctorCheck {
	st, err := GetStore()
	if err != nil {
		return []DoctorCheck{{
			Name:    "Cache Database",
			Status:  "fail",
			Message: fmt.Sprintf("Cannot open %s", CacheDBPath()),
			Hint:    "Check directory permissions, or set cache.path in the config",
		}}
	}
	defer func() { _ = st.Close() }()

	checks := []DoctorCheck{}

	stats, err := st.Stats()
	if err != nil {
		checks = append(checks, DoctorCheck{
			Name:    "Cache Database",
			Status:  "fail",
			Message: "Opened but stats query failed",
			Hint:    "The database file may be corrupt; try: finconcept cache clear --force",
		})
		return checks
	}

	checks = append(checks, DoctorCheck{
		Name:    "Cache Database",
		Status:  "ok",
		Message: fmt.Sprintf("%d entries (%s) at %s", stats.Entries, ui.FormatBytes(stats.TotalBytes), CacheDBPath()),
	})

	issues, err := st.Check()
	switch {
	case err != nil:
		checks = append(checks, DoctorCheck{
			Name:    "Cache Consistency",
			Status:  "warn",
			Message: "Consistency check failed",
		})
	case len(issues) > 0:
		checks = append(checks, DoctorCheck{
			Name:    "Cache Consistency",
			Status:  "warn",
			Message: fmt.Sprintf("%d issues found", len(issues)),
			Hint:    "Run: finconcept cache check --repair",
		})
	default:
		checks = append(checks, DoctorCheck{
			Name:    "Cache Consistency",
			Status:  "ok",
			Message: "No issues",
		})
	}

	return checks
}

func checkScoringTables() DoctorCheck {
	cfg := GetConfig()
	if cfg.Scoring.TablesFile == "" {
		return DoctorCheck{
			Name:    "Scoring Tables",
			Status:  "ok",
			Message: "Built-in defaults",
		}
	}

	if _, err := scoring.Load(afero.NewOsFs(), cfg.Scoring.TablesFile); err != nil {
		return DoctorCheck{
			Name:    "Scoring Tables",
			Status:  "fail",
			Message: fmt.Sprintf("%s does not load", cfg.Scoring.TablesFile),
			Hint:    fmt.Sprintf("Fix or remove the file (%v)", err),
		}
	}

	msg := fmt.Sprintf("Loaded %s", cfg.Scoring.TablesFile)
	if cfg.Scoring.Watch {
		msg += " (watching for changes)"
	}
	return DoctorCheck{
		Name:    "Scoring Tables",
		Status:  "ok",
		Message: msg,
	}
}

func checkSources() []DoctorCheck {
	cfg := GetConfig()
	checks := []DoctorCheck{}

	for _, name := range cfg.Sources.Enabled {
		endpoint := endpointFor(cfg, name)
		if doctorOffline {
			checks = append(checks, DoctorCheck{
				Name:    fmt.Sprintf("Source (%s)", name),
				Status:  "ok",
				Message: "Probe skipped (--offline)",
			})
			continue
		}
		checks = append(checks, probeSource(name, endpoint.BaseURL))
	}

	if len(checks) == 0 {
		checks = append(checks, DoctorCheck{
			Name:    "Sources",
			Status:  "fail",
			Message: "No knowledge sources enabled",
			Hint:    "Set sources.enabled in the config (dbpedia, wikidata)",
		})
	}

	return checks
}

func endpointFor(cfg *types.AppConfig, name string) types.EndpointConfig {
	switch name {
	case "wikidata":
		return cfg.Sources.Wikidata
	default:
		return cfg.Sources.DBpedia
	}
}

func probeSource(name, baseURL string) DoctorCheck {
	checkName := fmt.Sprintf("Source (%s)", name)

	if baseURL == "" {
		return DoctorCheck{
			Name:    checkName,
			Status:  "warn",
			Message: "No endpoint configured, connector will use its default",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return DoctorCheck{
			Name:    checkName,
			Status:  "fail",
			Message: "Invalid endpoint URL",
			Hint:    fmt.Sprintf("Check sources.%s.baseUrl", name),
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return DoctorCheck{
				Name:    checkName,
				Status:  "warn",
				Message: "Timeout reaching endpoint",
				Hint:    "Check your network, or run with --offline",
			}
		}
		return DoctorCheck{
			Name:    checkName,
			Status:  "warn",
			Message: fmt.Sprintf("Unreachable: %s", baseURL),
			Hint:    "Check your network, or run with --offline",
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// Any HTTP response means the endpoint is up; some servers reject HEAD.
	return DoctorCheck{
		Name:    checkName,
		Status:  "ok",
		Message: fmt.Sprintf("Reachable: %s", baseURL),
	}
}

func checkCrashLogs() DoctorCheck {
	logs, err := logger.ListCrashLogs()
	if err != nil {
		return DoctorCheck{
			Name:    "Crash Logs",
			Status:  "warn",
			Message: "Could not read crash log directory",
		}
	}

	if len(logs) > 0 {
		return DoctorCheck{
			Name:    "Crash Logs",
			Status:  "warn",
			Message: fmt.Sprintf("%d crash log(s) from previous runs", len(logs)),
			Hint:    fmt.Sprintf("Latest: %s. Please report at https://github.com/quantkb/finconcept/issues", logs[len(logs)-1]),
		}
	}

	return DoctorCheck{
		Name:    "Crash Logs",
		Status:  "ok",
		Message: "None found",
	}
}

func checkTelemetry() DoctorCheck {
	tcfg, err := telemetry.Load()
	if err != nil {
		return DoctorCheck{
			Name:    "Telemetry",
			Status:  "warn",
			Message: "Could not load telemetry config",
		}
	}

	if tcfg.NeedsConsent() {
		return DoctorCheck{
			Name:    "Telemetry",
			Status:  "warn",
			Message: "Consent not recorded",
			Hint:    "Run: finconcept config telemetry enable (or disable)",
		}
	}

	if tcfg.IsEnabled() {
		return DoctorCheck{
			Name:    "Telemetry",
			Status:  "ok",
			Message: "Enabled (anonymous)",
		}
	}
	return DoctorCheck{
		Name:    "Telemetry",
		Status:  "ok",
		Message: "Disabled",
	}
}
