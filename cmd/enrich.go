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
	"github.com/quantkb/finconcept/internal/logger"
	"github.com/quantkb/finconcept/internal/telemetry"
	"github.com/quantkb/finconcept/internal/ui"
	"github.com/quantkb/finconcept/models"
	"github.com/spf13/cobra"
)

var (
	enrichCategory    string
	enrichSources     []string
	enrichInteractive bool
	enrichTimeout     int
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich <concept name>",
	Short: "Enrich a concept from external knowledge bases",
	Long: `Look up a financial or mathematical concept in the configured knowledge
bases, score the candidates, and apply the best acceptable match.

The primary source is tried first; later sources add metadata without
overwriting it. Accepted matches are cached, so repeated runs are fast
and work offline.

"No acceptable match" is a normal outcome, not an error. With
--interactive you can then pick from the rejected candidates by hand;
the pick is cached like an automatic match.

Examples:
  finconcept enrich "Sharpe ratio"
  finconcept enrich CAPM --category model
  finconcept enrich "value at risk" --sources wikidata
  finconcept enrich "Sortino ratio" --interactive`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	enrichCmd.Flags().StringVar(&enrichCategory, "category", "", "Concept category (ratio, model, instrument, measure, theory, general)")
	enrichCmd.Flags().StringSliceVar(&enrichSources, "sources", nil, "Override enabled sources, first is primary (comma-separated: dbpedia,wikidata)")
	enrichCmd.Flags().BoolVarP(&enrichInteractive, "interactive", "i", false, "Pick a match by hand when automatic matching rejects everything")
	enrichCmd.Flags().IntVar(&enrichTimeout, "timeout", 30, "Overall timeout in seconds")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	logger.SetLastInput(name)

	if enrichInteractive && isJSON() {
		return fmt.Errorf("interactive mode not supported with --json flag")
	}

	st, err := GetStore()
	if err != nil {
		return fmt.Errorf("open concept cache: %w", err)
	}
	defer func() { _ = st.Close() }()

	enricher, stop := newEnricher(st, enrichSources)
	defer stop()

	concept := models.NewConcept(name, models.ParseCategory(enrichCategory))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(enrichTimeout)*time.Second)
	defer cancel()

	if !isJSON() && !isQuiet() {
		ui.RenderPageHeader("finconcept enrich", fmt.Sprintf("Concept: %q (%s)", concept.Name, concept.Category))
	}

	outcome := enricher.EnrichConcept(ctx, concept)

	adopted := false
	if !outcome.Enriched() && enrichInteractive {
		picked, err := pickCandidate(ctx, enricher, concept)
		if err != nil {
			if strings.Contains(err.Error(), "cancelled") {
				fmt.Println("Selection cancelled.")
			} else {
				PrintError("No candidates available to pick from.", err)
			}
		} else {
			adopted = true
			outcome.Status = models.StatusEnriched
			outcome.Reason = ""
			outcome.Merged = picked
		}
	}

	status := string(outcome.Status)
	if adopted {
		status = "adopted"
	}
	trackEvent(telemetry.EventEnrichCompleted, telemetry.Properties{
		"status":     status,
		"sources":    len(outcome.Reports),
		"elapsed_ms": outcome.ElapsedMs,
	})

	if isJSON() {
		return printJSON(struct {
			Concept *models.Concept `json:"concept"`
			Outcome *models.Outcome `json:"outcome"`
		}{concept, outcome})
	}

	renderOutcome(concept, outcome)
	return nil
}

// pickCandidate searches all sources for scored candidates and lets the
// user adopt one. The adopted match is cached like an automatic one.
func pickCandidate(ctx context.Context, enricher *enrich.Enricher, concept *models.Concept) (*models.ExternalConceptData, error) {
	if !isQuiet() {
		fmt.Println()
		fmt.Println("🔍 Gathering candidates from all sources...")
	}

	candidates := enricher.Candidates(ctx, concept)
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	pick, err := ui.PromptMatchSelection(concept.Name, candidates)
	if err != nil {
		return nil, err
	}

	data := enricher.Adopt(concept, pick)
	fmt.Printf("✅ Adopted %q from %s (score %s)\n", data.Label, pick.Source, ui.FormatScore(pick.Score))
	return data, nil
}

func renderOutcome(c *models.Concept, o *models.Outcome) {
	switch o.Status {
	case models.StatusEnriched:
		fmt.Printf("✅ Enriched %q in %dms\n", c.Name, o.ElapsedMs)
	case models.StatusCacheHit:
		fmt.Printf("✅ Enriched %q from cache in %dms\n", c.Name, o.ElapsedMs)
	default:
		fmt.Printf("⚠️  No acceptable match for %q", c.Name)
		if o.Reason != "" {
			fmt.Printf(" (%s)", o.Reason)
		}
		fmt.Println()
	}

	if len(o.Reports) > 0 {
		fmt.Println()
		for _, r := range o.Reports {
			renderSourceReport(r)
		}
	}

	if o.Merged != nil {
		fmt.Println()
		renderConceptDetails(c, o.Merged)
	}
}

func renderSourceReport(r models.SourceReport) {
	switch {
	case r.Error != "":
		fmt.Printf("  ❌ %s: %s\n", r.Source, r.Error)
	case r.Accepted && r.FromCache:
		fmt.Printf("  💾 %s: cache hit (score %s)\n", r.Source, ui.FormatScore(r.Score))
	case r.Accepted:
		fmt.Printf("  ✅ %s: accepted at %s (%d candidates)\n", r.Source, ui.FormatScore(r.Score), r.Candidates)
	case r.Candidates > 0:
		fmt.Printf("  ⚠️  %s: best score %s too low (%d candidates)\n", r.Source, ui.FormatScore(r.Score), r.Candidates)
	default:
		fmt.Printf("  ⚠️  %s: no candidates\n", r.Source)
	}
}

func renderConceptDetails(c *models.Concept, d *models.ExternalConceptData) {
	fmt.Printf("  Name:        %s\n", ui.StyleTitle.Render(d.Label))
	fmt.Printf("  Source:      %s\n", d.Source)
	if d.ExternalID != "" {
		fmt.Printf("  External ID: %s\n", d.ExternalID)
	}
	fmt.Printf("  Confidence:  %s\n", ui.FormatScore(d.Confidence))
	if d.Description != "" {
		fmt.Printf("  Description: %s\n", ui.StyleSubtle.Render(ui.Truncate(d.Description, 160)))
	}
	if len(d.Categories) > 0 {
		fmt.Printf("  Categories:  %s\n", strings.Join(d.Categories, ", "))
	}
	if len(d.Related) > 0 {
		fmt.Printf("  Related:     %s\n", strings.Join(d.Related, ", "))
	}
	if len(c.Aliases) > 0 {
		fmt.Printf("  Aliases:     %s\n", strings.Join(c.Aliases, ", "))
	}
}
