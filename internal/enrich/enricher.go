// Package enrich orchestrates concept enrichment across knowledge sources.
// The Enricher runs connectors in priority order, merges their results into
// one record, and applies it to the caller's concept. Every attempt ends in
// an explicit Outcome; "no acceptable match" and "all sources down" are
// normal terminal states, not errors.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/quantkb/finconcept/internal/cache"
	"github.com/quantkb/finconcept/internal/scoring"
	"github.com/quantkb/finconcept/internal/source"
	"github.com/quantkb/finconcept/models"
	"github.com/quantkb/finconcept/types"
)

// Enricher coordinates the enrichment pipeline for one concept at a time.
// Concepts are processed sequentially; the Enricher itself adds no
// cross-concept concurrency.
type Enricher struct {
	store      cache.Store
	ttlHours   float64
	connectors []source.Connector
	tables     func() *scoring.Tables
	logger     *slog.Logger
}

// New builds an Enricher from configuration: one connector per enabled
// source, the primary source first, all sharing the cache store and the
// scoring tables.
func New(store cache.Store, cfg types.SourcesConfig, cacheTTLHours float64, tables func() *scoring.Tables, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	deps := source.Deps{Store: store, Tables: tables, TTLHours: cacheTTLHours, Logger: logger}

	var connectors []source.Connector
	for _, name := range orderSources(cfg.Primary, cfg.Enabled) {
		switch name {
		case source.SourceDBpedia:
			connectors = append(connectors, source.NewDBpedia(cfg.DBpedia, deps))
		case source.SourceWikidata:
			connectors = append(connectors, source.NewWikidata(cfg.Wikidata, deps))
		default:
			logger.Warn("unknown source in configuration", "source", name)
		}
	}
	return NewWithConnectors(store, cacheTTLHours, connectors, tables, logger)
}

// NewWithConnectors wires an Enricher over prebuilt connectors in the given
// priority order.
func NewWithConnectors(store cache.Store, cacheTTLHours float64, connectors []source.Connector, tables func() *scoring.Tables, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	if tables == nil {
		tables = scoring.DefaultTables
	}
	return &Enricher{
		store:      store,
		ttlHours:   cacheTTLHours,
		connectors: connectors,
		tables:     tables,
		logger:     logger,
	}
}

// Sources lists the connector names in priority order.
func (e *Enricher) Sources() []string {
	names := make([]string, 0, len(e.connectors))
	for _, conn := range e.connectors {
		names = append(names, conn.Name())
	}
	return names
}

// Connector returns the connector with the given source tag.
func (e *Enricher) Connector(name string) (source.Connector, bool) {
	for _, conn := range e.connectors {
		if strings.EqualFold(conn.Name(), name) {
			return conn, true
		}
	}
	return nil, false
}

// EnrichConcept enriches c in place from the configured sources and reports
// what happened. The first source that produces an acceptable match becomes
// the primary; later matches contribute additive metadata only. The concept
// is left untouched unless a match is applied.
func (e *Enricher) EnrichConcept(ctx context.Context, c *models.Concept) *models.Outcome {
	start := time.Now()
	outcome := &models.Outcome{Status: models.StatusNotEnriched}

	// 1. Run connectors in priority order
	var merged *models.ExternalConceptData
	var secondaries []models.ExternalConceptData
	for _, conn := range e.connectors {
		if ctx.Err() != nil {
			break
		}
		data, report := e.enrichSafe(ctx, conn, c)
		if report != nil {
			outcome.Reports = append(outcome.Reports, *report)
		}
		if data == nil {
			continue
		}
		if merged == nil {
			primary := *data
			merged = &primary
			if report.FromCache {
				outcome.Status = models.StatusCacheHit
			} else {
				outcome.Status = models.StatusEnriched
			}
			continue
		}
		mergeSecondary(merged, data)
		secondaries = append(secondaries, *data)
	}

	// 2. No source produced a match: leave the concept as it was
	if merged == nil {
		if err := ctx.Err(); err != nil {
			outcome.Reason = err.Error()
		} else {
			outcome.Reason = notEnrichedReason(outcome.Reports)
		}
		outcome.ElapsedMs = time.Since(start).Milliseconds()
		return outcome
	}

	// 3. Apply the merged record plus secondary source attribution
	Apply(c, merged)
	for _, sec := range secondaries {
		if sec.ExternalID == "" {
			continue
		}
		c.Properties[sec.Source+"_id"] = sec.ExternalID
		c.Properties[sec.Source+"_confidence"] = sec.Confidence
	}

	outcome.Merged = merged
	outcome.ElapsedMs = time.Since(start).Milliseconds()
	return outcome
}

// enrichSafe isolates connector panics so one misbehaving source cannot
// take down the whole attempt.
func (e *Enricher) enrichSafe(ctx context.Context, conn source.Connector, c *models.Concept) (data *models.ExternalConceptData, report *models.SourceReport) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("connector panicked", "source", conn.Name(), "panic", r)
			data = nil
			report = &models.SourceReport{Source: conn.Name(), Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return conn.Enrich(ctx, c)
}

func notEnrichedReason(reports []models.SourceReport) string {
	if len(reports) == 0 {
		return "no sources enabled"
	}
	var candidates, failures int
	for _, r := range reports {
		candidates += r.Candidates
		if r.Error != "" {
			failures++
		}
	}
	switch {
	case failures == len(reports):
		return "all sources failed"
	case candidates > 0:
		return "no candidate scored above the acceptance threshold"
	default:
		return "no candidates found"
	}
}

// Candidate is one scored alternative, offered when the automatic flow
// rejects everything and the user wants to pick by hand.
type Candidate struct {
	Data   models.ExternalConceptData
	Source string
	Score  float64
}

// Candidates searches every connector for the concept and returns all
// scored candidates, best first. It never touches the cache and never
// mutates the concept.
func (e *Enricher) Candidates(ctx context.Context, c *models.Concept) []Candidate {
	tables := e.tables()
	var out []Candidate
	for _, conn := range e.connectors {
		results, err := conn.Search(ctx, c.Name, string(c.Category))
		if err != nil {
			e.logger.Warn("candidate search failed", "source", conn.Name(), "error", err)
			continue
		}
		for i := range results {
			out = append(out, Candidate{
				Data:   results[i],
				Source: conn.Name(),
				Score:  scoring.Score(&results[i], c, tables),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Adopt applies a hand-picked candidate to the concept and writes it
// through to the cache so later runs hit.
func (e *Enricher) Adopt(c *models.Concept, pick Candidate) *models.ExternalConceptData {
	chosen := pick.Data
	chosen.FetchedAt = time.Now().UTC()
	Apply(c, &chosen)
	if e.store != nil {
		if _, err := e.store.Put(pick.Source, c.Name, &chosen, e.ttlHours); err != nil {
			e.logger.Warn("cache write failed", "source", pick.Source, "error", err)
		}
	}
	return &chosen
}

// orderSources returns the enabled sources with the primary hoisted to the
// front, deduplicated, lowercased.
func orderSources(primary string, enabled []string) []string {
	ordered := make([]string, 0, len(enabled))
	seen := make(map[string]bool, len(enabled))
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		ordered = append(ordered, name)
	}
	for _, name := range enabled {
		if strings.EqualFold(name, primary) {
			add(name)
			break
		}
	}
	for _, name := range enabled {
		add(name)
	}
	return ordered
}
