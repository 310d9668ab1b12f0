/*
Copyright © 2026 finconcept contributors
*/
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantkb/finconcept/internal/ui"
	"github.com/quantkb/finconcept/models"
	"github.com/spf13/cobra"
)

var browseLimit int

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse cached concepts interactively",
	Long: `Open an interactive browser over the concept cache. Type to filter by
concept name or source, Tab to move between the filter and the list,
Enter to inspect an entry.`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().IntVar(&browseLimit, "limit", 0, "Maximum entries to load (0 = all)")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if isJSON() {
		return fmt.Errorf("interactive mode not supported with --json flag; use 'finconcept cache stats' instead")
	}
	if !ui.IsInteractive() {
		return fmt.Errorf("browse needs an interactive terminal")
	}

	st, err := GetStore()
	if err != nil {
		return fmt.Errorf("open concept cache: %w", err)
	}
	defer func() { _ = st.Close() }()

	entries, err := st.List(browseLimit)
	if err != nil {
		return fmt.Errorf("list cache entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("Cache is empty. Run 'finconcept enrich <concept>' to populate it.")
		return nil
	}

	selected, err := ui.RunCacheBrowser(entries)
	if err != nil {
		return err
	}
	if selected == nil {
		return nil
	}

	fmt.Println()
	fmt.Println(ui.RenderPanel("Cache Entry", renderEntryDetails(selected)))
	return nil
}

func renderEntryDetails(e *models.CacheEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Concept:    %s\n", e.ConceptName)
	fmt.Fprintf(&b, "Source:     %s\n", e.Source)
	fmt.Fprintf(&b, "Key:        %s\n", e.CacheKey)
	fmt.Fprintf(&b, "Size:       %s\n", ui.FormatBytes(e.SizeBytes))
	fmt.Fprintf(&b, "Created:    %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"))
	if e.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "Expires:    never\n")
	} else if e.Expired(time.Now()) {
		fmt.Fprintf(&b, "Expires:    %s (expired)\n", e.ExpiresAt.Local().Format("2006-01-02 15:04"))
	} else {
		fmt.Fprintf(&b, "Expires:    %s\n", e.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "Accessed:   %d times, last %s\n", e.AccessCount, e.LastAccessed.Local().Format("2006-01-02 15:04"))

	data, err := e.Data()
	if err != nil {
		fmt.Fprintf(&b, "Payload:    invalid (%v)", err)
		return b.String()
	}

	fmt.Fprintf(&b, "Label:      %s\n", data.Label)
	if data.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", ui.Truncate(data.Description, 200))
	}
	if len(data.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(data.Categories, ", "))
	}
	if len(data.Related) > 0 {
		fmt.Fprintf(&b, "Related:    %s\n", strings.Join(data.Related, ", "))
	}
	fmt.Fprintf(&b, "Confidence: %s", ui.FormatScore(data.Confidence))

	return b.String()
}
