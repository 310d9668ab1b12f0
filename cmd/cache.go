/*
Copyright © 2026 finconcept contributors
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/quantkb/finconcept/internal/cache"
	"github.com/quantkb/finconcept/internal/telemetry"
	"github.com/quantkb/finconcept/internal/ui"
	"github.com/quantkb/finconcept/models"
	"github.com/spf13/cobra"
)

var (
	clearForce  bool
	clearSource string
	clearBackup bool
)

var (
	checkRepair bool
	checkDryRun bool
)

// cacheCmd is the parent cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the concept cache",
	Long: `Inspect and maintain the local SQLite concept cache.

Running without a subcommand shows cache statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheStats()
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheStats()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached entries with safety options",
	Long: `Remove cached entries, either everything or one source's entries.

Safety features:
- Interactive confirmation (unless --force is used)
- Automatic backup creation (unless --no-backup)

Examples:
  finconcept cache clear                    # Clear everything (with confirmation)
  finconcept cache clear --source dbpedia   # Clear one source's entries
  finconcept cache clear --force            # Skip the confirmation prompt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheClear()
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheCleanup()
	},
}

var cacheCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check cache consistency, optionally repairing it",
	Long: `Scan the cache for integrity issues: payloads that no longer decode,
entries stored under drifted keys, and duplicate entries for one concept.

With --repair the issues are fixed: invalid payloads are deleted, drifted
keys are rewritten to their canonical form, and duplicates are collapsed.
--dry-run previews the repair without changing anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheCheck()
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheCheckCmd)

	cacheClearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Skip confirmation prompt")
	cacheClearCmd.Flags().StringVar(&clearSource, "source", "", "Clear only entries from this source (dbpedia or wikidata)")
	cacheClearCmd.Flags().BoolVar(&clearBackup, "backup", true, "Create backup before clearing (default: true)")
	cacheClearCmd.Flags().Bool("no-backup", false, "Skip backup creation")

	// Make --no-backup set backup to false
	cacheClearCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Flag("no-backup").Changed {
			clearBackup = false
		}
		return nil
	}

	cacheCheckCmd.Flags().BoolVar(&checkRepair, "repair", false, "Fix the issues found")
	cacheCheckCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Preview the repair without changing anything")
}

func runCacheStats() error {
	st, err := GetStore()
	if err != nil {
		return fmt.Errorf("open concept cache: %w", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats()
	if err != nil {
		return fmt.Errorf("read cache stats: %w", err)
	}

	if isJSON() {
		return printJSON(struct {
			*cache.Stats
			HitRate  float64 `json:"hitRate"`
			Database string  `json:"database"`
		}{stats, stats.HitRate(), CacheDBPath()})
	}

	fmt.Println("📊 Concept Cache")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("  Entries:      %d (%s)\n", stats.Entries, ui.FormatBytes(stats.TotalBytes))
	fmt.Printf("  Hit rate:     %.1f%% (%d hits, %d misses)\n", stats.HitRate()*100, stats.Hits, stats.Misses)
	fmt.Printf("  Expirations:  %d\n", stats.Expirations)
	fmt.Printf("  Evictions:    %d\n", stats.Evictions)
	if !stats.OldestEntry.IsZero() {
		fmt.Printf("  Oldest entry: %s\n", stats.OldestEntry.Local().Format("2006-01-02 15:04"))
	}
	if !stats.NewestEntry.IsZero() {
		fmt.Printf("  Newest entry: %s\n", stats.NewestEntry.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("  Database:     %s\n", CacheDBPath())

	if len(stats.BySource) > 0 {
		fmt.Println()
		fmt.Println("## By Source")
		tbl := ui.Table{
			Headers:    []string{"Source", "Entries"},
			AlignRight: map[int]bool{1: true},
		}
		for _, source := range sortedSources(stats.BySource) {
			tbl.Rows = append(tbl.Rows, []string{source, fmt.Sprintf("%d", stats.BySource[source])})
		}
		fmt.Println(tbl.Render())
	}

	return nil
}

func sortedSources(bySource map[string]int64) []string {
	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	for i := 1; i < len(sources); i++ {
		for j := i; j > 0 && sources[j] < sources[j-1]; j-- {
			sources[j], sources[j-1] = sources[j-1], sources[j]
		}
	}
	return sources
}

func runCacheClear() error {
	st, err := GetStore()
	if err != nil {
		return fmt.Errorf("open concept cache: %w", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats()
	if err != nil {
		return fmt.Errorf("read cache stats: %w", err)
	}

	source := strings.ToLower(strings.TrimSpace(clearSource))
	toClear := stats.Entries
	if source != "" {
		toClear = stats.BySource[source]
	}

	if toClear == 0 {
		if isJSON() {
			return printJSON(map[string]any{"removed": 0})
		}
		fmt.Println("No entries match the clearing criteria.")
		return nil
	}

	if !isJSON() {
		if source != "" {
			fmt.Printf("\n🗑  Entries to be cleared: %d (source: %s)\n\n", toClear, source)
		} else {
			fmt.Printf("\n🗑  Entries to be cleared: %d (all sources)\n\n", toClear)
		}
	}

	// Get confirmation unless --force is used
	if !clearForce && !isJSON() {
		if err := confirmClear(toClear); err != nil {
			fmt.Println("Clear operation cancelled.")
			return nil
		}
	}

	// Create backup unless disabled
	var backupFile string
	if clearBackup {
		backupFile, err = createClearBackup(st, source)
		if err != nil {
			fmt.Printf("Warning: Failed to create backup: %v\n", err)
			if !clearForce {
				fmt.Println("Clear operation cancelled for safety.")
				return nil
			}
		}
	}

	removed, err := st.Clear(source)
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	if isJSON() {
		return printJSON(map[string]any{"removed": removed, "backup": backupFile})
	}

	fmt.Printf("\n✅ Cleared %d entries\n", removed)
	return nil
}

func confirmClear(count int64) error {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Clear %d cached entries permanently? This action cannot be undone", count),
		IsConfirm: true,
	}

	_, err := prompt.Run()
	if err == promptui.ErrAbort {
		return fmt.Errorf("cancelled by user")
	}
	return err
}

// createClearBackup snapshots the entries about to be removed into a JSON
// file under the project backups directory and returns its path.
func createClearBackup(st cache.Store, source string) (string, error) {
	cfg := GetConfig()
	backupDir := filepath.Join(cfg.Project.RootDir, "backups")

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	entries, err := st.List(0)
	if err != nil {
		return "", fmt.Errorf("failed to list entries: %w", err)
	}
	if source != "" {
		kept := entries[:0]
		for _, e := range entries {
			if strings.EqualFold(e.Source, source) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	backupFile := filepath.Join(backupDir, fmt.Sprintf("clear_backup_%s.json", timestamp))

	backupData := models.BackupFile{
		Timestamp:  time.Now(),
		Operation:  "clear",
		EntryCount: len(entries),
		Entries:    entries,
	}

	if err := writeJSONFile(backupFile, backupData); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	if !isJSON() {
		fmt.Printf("📦 Backup created: %s\n", backupFile)
	}
	return backupFile, nil
}

func runCacheCleanup() error {
	st, err := GetStore()
	if err != nil {
		return fmt.Errorf("open concept cache: %w", err)
	}
	defer func() { _ = st.Close() }()

	removed, err := st.CleanupExpired()
	if err != nil {
		return fmt.Errorf("cleanup expired entries: %w", err)
	}

	trackEvent(telemetry.EventCacheCleanup, telemetry.Properties{
		"removed": removed,
	})

	if isJSON() {
		return printJSON(map[string]any{"removed": removed})
	}

	if removed == 0 {
		fmt.Println("✨ No expired entries.")
		return nil
	}
	fmt.Printf("✅ Removed %d expired entries\n", removed)
	return nil
}

func runCacheCheck() error {
	st, err := GetStore()
	if err != nil {
		return fmt.Errorf("open concept cache: %w", err)
	}
	defer func() { _ = st.Close() }()

	if !isJSON() && !isQuiet() {
		fmt.Println("🔍 Checking cache consistency...")
		fmt.Println()
	}

	issues, err := st.Check()
	if err != nil {
		return fmt.Errorf("check cache: %w", err)
	}

	repair := checkRepair || checkDryRun

	if isJSON() {
		var report *cache.RepairReport
		if repair && len(issues) > 0 {
			report, err = st.Repair(checkDryRun)
			if err != nil {
				return fmt.Errorf("repair cache: %w", err)
			}
		}
		return printJSON(struct {
			Issues []cache.Issue       `json:"issues"`
			Repair *cache.RepairReport `json:"repair,omitempty"`
		}{issues, report})
	}

	if len(issues) == 0 {
		fmt.Println("✅ Cache is consistent")
		return nil
	}

	fmt.Printf("⚠️  Found %d issues:\n\n", len(issues))
	hasExpired := false
	for _, issue := range issues {
		fmt.Printf("  %s %s: %s\n", issueIcon(issue.Type), issue.Type, issue.Message)
		if issue.Type == cache.IssueExpired {
			hasExpired = true
		}
	}
	fmt.Println()

	if !repair {
		fmt.Println("Run: finconcept cache check --repair")
		if hasExpired {
			fmt.Println("Expired entries are left to: finconcept cache cleanup")
		}
		return nil
	}

	if !checkDryRun && !confirmOrAbort(fmt.Sprintf("Repair %d issues? [y/N]: ", len(issues))) {
		return nil
	}

	report, err := st.Repair(checkDryRun)
	if err != nil {
		return fmt.Errorf("repair cache: %w", err)
	}

	if report.DryRun {
		fmt.Printf("🔎 Dry run: would remove %d invalid payloads, rewrite %d keys, remove %d orphan variants\n",
			report.InvalidRemoved, report.KeysRewritten, report.OrphansRemoved)
	} else {
		fmt.Printf("🔧 Repaired: %d invalid payloads removed, %d keys rewritten, %d orphan variants removed\n",
			report.InvalidRemoved, report.KeysRewritten, report.OrphansRemoved)
	}

	if hasExpired {
		fmt.Println("Expired entries are left to: finconcept cache cleanup")
	}

	return nil
}

func issueIcon(issueType string) string {
	switch issueType {
	case cache.IssueInvalidPayload:
		return "❌"
	case cache.IssueExpired:
		return "⏰"
	default:
		return "⚠️ "
	}
}

// writeJSONFile writes data as JSON to the specified file
func writeJSONFile(filename string, data interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
