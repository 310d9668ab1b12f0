// Package source implements connectors to external knowledge bases.
// Each connector searches one knowledge base for a concept, scores the
// candidates, and turns an accepted match into enrichment data, reading
// and writing the concept cache along the way.
//
// Connectors degrade instead of failing: a network error surfaces as a
// warning and an empty result, and a cache error is treated as a miss.
// Enrichment is best-effort; the caller's concept is never held hostage
// by an external service.
package source

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/quantkb/finconcept/internal/cache"
	"github.com/quantkb/finconcept/internal/normalize"
	"github.com/quantkb/finconcept/internal/scoring"
	"github.com/quantkb/finconcept/models"
	"github.com/quantkb/finconcept/types"
)

// Connector enriches concepts from one external knowledge base.
type Connector interface {
	// Name returns the connector's source tag (e.g. "dbpedia").
	Name() string

	// Search queries the knowledge base for candidates matching name.
	// The typeHint biases the query where the backend supports it.
	Search(ctx context.Context, name, typeHint string) ([]models.ExternalConceptData, error)

	// GetDetails fetches the full record for one external identifier.
	GetDetails(ctx context.Context, id string) (*models.ExternalConceptData, error)

	// GetRelated fetches concepts related to one external identifier.
	GetRelated(ctx context.Context, id string) ([]models.ExternalConceptData, error)

	// Enrich runs the full per-source flow for a concept: cache probe,
	// search (plus acronym-expansion search), scoring, threshold check,
	// related-concept fetch, and cache write-through. A nil result with a
	// report is the normal "no acceptable match" outcome, not an error.
	Enrich(ctx context.Context, c *models.Concept) (*models.ExternalConceptData, *models.SourceReport)
}

// api is the raw knowledge-base surface a connector wraps. Implementations
// live in dbpedia.go and wikidata.go.
type api interface {
	name() string
	search(ctx context.Context, query, typeHint string) ([]models.ExternalConceptData, error)
	details(ctx context.Context, id string) (*models.ExternalConceptData, error)
	related(ctx context.Context, id string) ([]models.ExternalConceptData, error)
}

// Deps carries the collaborators shared by every connector.
type Deps struct {
	// Store is the concept cache. nil disables caching entirely.
	Store cache.Store
	// Tables returns the current scoring tables. Must not be nil.
	Tables func() *scoring.Tables
	// TTLHours is the cache lifetime for accepted matches; <= 0 never expires.
	TTLHours float64
	Logger   *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) tables() *scoring.Tables {
	if d.Tables == nil {
		return scoring.DefaultTables()
	}
	return d.Tables()
}

// connector implements the Enrich flow generically over an api.
type connector struct {
	api  api
	deps Deps
}

func newConnector(a api, deps Deps) Connector {
	return &connector{api: a, deps: deps}
}

func (k *connector) Name() string { return k.api.name() }

func (k *connector) Search(ctx context.Context, name, typeHint string) ([]models.ExternalConceptData, error) {
	return k.api.search(ctx, name, typeHint)
}

func (k *connector) GetDetails(ctx context.Context, id string) (*models.ExternalConceptData, error) {
	return k.api.details(ctx, id)
}

func (k *connector) GetRelated(ctx context.Context, id string) ([]models.ExternalConceptData, error) {
	return k.api.related(ctx, id)
}

func (k *connector) Enrich(ctx context.Context, c *models.Concept) (*models.ExternalConceptData, *models.SourceReport) {
	report := &models.SourceReport{Source: k.Name()}
	log := k.deps.logger().With("source", k.Name(), "concept", c.Name)
	tables := k.deps.tables()

	if data := k.cacheProbe(c, log); data != nil {
		report.FromCache = true
		report.Accepted = true
		report.Score = data.Confidence
		return data, report
	}

	candidates := k.searchSafe(ctx, c.Name, string(c.Category), report, log)
	if expansion, ok := tables.Expansion(normalize.Name(c.Name)); ok {
		// Literal acronym search misses entries indexed under the long
		// form; merge both result sets, keeping the higher-scored entry
		// for duplicate identifiers.
		more := k.searchSafe(ctx, expansion, string(c.Category), report, log)
		candidates = mergeByID(candidates, more, c, tables)
	}
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		return nil, report
	}

	var best *models.ExternalConceptData
	var bestScore float64
	for i := range candidates {
		score := scoring.Score(&candidates[i], c, tables)
		if best == nil || score > bestScore {
			best, bestScore = &candidates[i], score
		}
	}
	report.Score = bestScore
	if bestScore < tables.Threshold {
		log.Debug("best candidate below threshold", "label", best.Label, "score", bestScore, "threshold", tables.Threshold)
		return nil, report
	}

	chosen := *best
	report.Accepted = true

	if details, err := k.api.details(ctx, chosen.ExternalID); err != nil {
		log.Warn("detail lookup failed", "id", chosen.ExternalID, "error", err)
	} else if details != nil {
		fillFromDetails(&chosen, details)
	}

	if related, err := k.api.related(ctx, chosen.ExternalID); err != nil {
		log.Warn("related lookup failed", "id", chosen.ExternalID, "error", err)
	} else {
		chosen.Related = relatedLabels(related, tables)
	}

	chosen.FetchedAt = time.Now().UTC()

	// Write-through happens only after a scored network response; the
	// cache never holds rows for rejected or unscored candidates.
	if k.deps.Store != nil {
		if _, err := k.deps.Store.Put(k.Name(), c.Name, &chosen, k.deps.TTLHours); err != nil {
			log.Warn("cache write failed", "error", err)
		}
	}

	return &chosen, report
}

// cacheProbe returns cached enrichment data for the concept, or nil on any
// kind of miss. Cache failures are logged and treated as misses so that a
// broken cache degrades performance, not behavior.
func (k *connector) cacheProbe(c *models.Concept, log *slog.Logger) *models.ExternalConceptData {
	if k.deps.Store == nil {
		return nil
	}
	entry, err := k.deps.Store.Get(k.Name(), c.Name)
	if err != nil {
		if !errors.Is(err, types.ErrEntryNotFound) {
			log.Warn("cache lookup failed, treating as miss", "error", err)
		}
		return nil
	}
	data, err := entry.Data()
	if err != nil {
		log.Warn("cached payload invalid, treating as miss", "error", err)
		return nil
	}
	return data
}

// searchSafe runs a search and converts errors into an empty result,
// recording the failure on the report.
func (k *connector) searchSafe(ctx context.Context, query, typeHint string, report *models.SourceReport, log *slog.Logger) []models.ExternalConceptData {
	results, err := k.api.search(ctx, query, typeHint)
	if err != nil {
		log.Warn("search failed", "query", query, "error", err)
		report.Error = err.Error()
		return nil
	}
	return results
}

// mergeByID merges two candidate sets, keeping for duplicate external IDs
// the entry that scores higher for the concept.
func mergeByID(base, extra []models.ExternalConceptData, c *models.Concept, tables *scoring.Tables) []models.ExternalConceptData {
	if len(extra) == 0 {
		return base
	}
	merged := make([]models.ExternalConceptData, len(base))
	copy(merged, base)
	index := make(map[string]int, len(merged))
	for i := range merged {
		index[merged[i].ExternalID] = i
	}
	for _, cand := range extra {
		at, seen := index[cand.ExternalID]
		if !seen {
			index[cand.ExternalID] = len(merged)
			merged = append(merged, cand)
			continue
		}
		if scoring.Score(&cand, c, tables) > scoring.Score(&merged[at], c, tables) {
			merged[at] = cand
		}
	}
	return merged
}

// fillFromDetails copies richer fields from a detail record into the
// chosen candidate without overwriting what search already established.
func fillFromDetails(chosen, details *models.ExternalConceptData) {
	if chosen.Description == "" {
		chosen.Description = details.Description
	}
	chosen.Aliases = unionFold(chosen.Aliases, details.Aliases)
	chosen.Categories = unionFold(chosen.Categories, details.Categories)
	chosen.Types = unionFold(chosen.Types, details.Types)
}

// relatedLabels filters related concepts through the deny list and caps
// them at the configured limit.
func relatedLabels(items []models.ExternalConceptData, tables *scoring.Tables) []string {
	var out []string
	seen := make(map[string]bool)
	for _, item := range items {
		label := strings.TrimSpace(item.Label)
		if label == "" || denied(label, tables) {
			continue
		}
		key := strings.ToLower(label)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, label)
		if tables.MaxRelated > 0 && len(out) >= tables.MaxRelated {
			break
		}
	}
	return out
}

// denied reports whether a related-concept label trips the deny list.
func denied(label string, tables *scoring.Tables) bool {
	if qualifier := strings.ToLower(normalize.Parenthetical(label)); qualifier != "" {
		if _, ok := tables.BadQualifiers[qualifier]; ok {
			return true
		}
	}
	text := strings.ToLower(label)
	for term := range tables.IrrelevantTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// unionFold appends items from extra that base does not already contain,
// compared case-insensitively, preserving base order.
func unionFold(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extra {
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		base = append(base, s)
	}
	return base
}
