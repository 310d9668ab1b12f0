/*
Copyright © 2026 finconcept contributors
*/
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantkb/finconcept/internal/enrich"
	"github.com/quantkb/finconcept/internal/ui"
	"github.com/quantkb/finconcept/models"
	"github.com/spf13/cobra"
)

var (
	lookupCategory string
	lookupSource   string
	lookupLimit    int
	lookupTimeout  int
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <concept name>",
	Short: "Search knowledge bases and show scored candidates",
	Long: `Search all enabled knowledge bases for a concept and list every
candidate with its match score, best first. Nothing is cached and the
concept store is not touched; use this to see what enrich would choose
and why.

Examples:
  finconcept lookup "Sharpe ratio"
  finconcept lookup CAPM --category model
  finconcept lookup "Black-Scholes" --source dbpedia --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringVar(&lookupCategory, "category", "", "Concept category (ratio, model, instrument, measure, theory, general)")
	lookupCmd.Flags().StringVar(&lookupSource, "source", "", "Restrict to one source (dbpedia or wikidata)")
	lookupCmd.Flags().IntVar(&lookupLimit, "limit", 20, "Maximum number of candidates")
	lookupCmd.Flags().IntVar(&lookupTimeout, "timeout", 30, "Overall timeout in seconds")
}

func runLookup(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")

	// Lookup runs without a cache store; candidate search is always live.
	var sources []string
	if lookupSource != "" {
		sources = []string{strings.ToLower(lookupSource)}
	}
	enricher, stop := newEnricher(nil, sources)
	defer stop()

	concept := models.NewConcept(name, models.ParseCategory(lookupCategory))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(lookupTimeout)*time.Second)
	defer cancel()

	if !isJSON() && !isQuiet() {
		ui.RenderPageHeader("finconcept lookup", fmt.Sprintf("Query: %q", concept.Name))
		fmt.Println("🔍 Searching...")
		fmt.Println()
	}

	candidates := enricher.Candidates(ctx, concept)
	if lookupLimit > 0 && len(candidates) > lookupLimit {
		candidates = candidates[:lookupLimit]
	}

	if isJSON() {
		return printJSON(struct {
			Query      string             `json:"query"`
			Category   models.Category    `json:"category"`
			Candidates []enrich.Candidate `json:"candidates"`
		}{concept.Name, concept.Category, candidates})
	}

	if len(candidates) == 0 {
		fmt.Println("No candidates found.")
		fmt.Println("Try a broader name, a different --category, or another --source.")
		return nil
	}

	fmt.Printf("📊 Found %d candidates:\n\n", len(candidates))
	for i, cand := range candidates {
		renderCandidate(i+1, cand)
	}

	return nil
}

func renderCandidate(rank int, cand enrich.Candidate) {
	label := cand.Data.Label
	if label == "" {
		label = cand.Data.ExternalID
	}

	fmt.Printf("%d. %s %s\n",
		rank,
		ui.StyleTitle.Render(label),
		ui.StyleSubtle.Render(fmt.Sprintf("(%s)", cand.Source)),
	)

	if cand.Data.Description != "" {
		fmt.Printf("   %s\n", ui.StyleSubtle.Render(ui.Truncate(cand.Data.Description, 120)))
	}

	fmt.Printf("   📊 %s", ui.FormatScore(cand.Score))
	if cand.Data.ExternalID != "" {
		fmt.Printf("  📍 %s", ui.StyleSubtle.Render(cand.Data.ExternalID))
	}
	fmt.Println()

	if len(cand.Data.Categories) > 0 && isVerbose() {
		fmt.Printf("   🏷  %s\n", ui.StyleSubtle.Render(strings.Join(cand.Data.Categories, ", ")))
	}

	fmt.Println()
}
