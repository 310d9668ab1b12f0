package enrich

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantkb/finconcept/internal/cache"
	"github.com/quantkb/finconcept/internal/source"
	"github.com/quantkb/finconcept/models"
	"github.com/quantkb/finconcept/types"
)

// stubConnector implements source.Connector for testing
type stubConnector struct {
	tag       string
	data      *models.ExternalConceptData
	report    models.SourceReport
	results   []models.ExternalConceptData
	searchErr error
	panics    bool
	calls     int
}

func (s *stubConnector) Name() string { return s.tag }

func (s *stubConnector) Search(ctx context.Context, name, typeHint string) ([]models.ExternalConceptData, error) {
	return s.results, s.searchErr
}

func (s *stubConnector) GetDetails(ctx context.Context, id string) (*models.ExternalConceptData, error) {
	return nil, nil
}

func (s *stubConnector) GetRelated(ctx context.Context, id string) ([]models.ExternalConceptData, error) {
	return nil, nil
}

func (s *stubConnector) Enrich(ctx context.Context, c *models.Concept) (*models.ExternalConceptData, *models.SourceReport) {
	s.calls++
	if s.panics {
		panic("connector exploded")
	}
	report := s.report
	report.Source = s.tag
	return s.data, &report
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dbpediaData() *models.ExternalConceptData {
	return &models.ExternalConceptData{
		ExternalID:  "http://dbpedia.org/resource/Sharpe_ratio",
		Source:      "dbpedia",
		Label:       "Sharpe ratio",
		Description: "In finance, the Sharpe ratio measures risk-adjusted return.",
		Aliases:     []string{"Sharpe index"},
		Categories:  []string{"Financial ratios"},
		Types:       []string{"Thing"},
		Related:     []string{"Treynor ratio", "Sortino ratio"},
		Confidence:  0.92,
	}
}

func wikidataData() *models.ExternalConceptData {
	return &models.ExternalConceptData{
		ExternalID:  "Q131132",
		Source:      "wikidata",
		Label:       "Sharpe ratio",
		Description: "measure of the risk-adjusted return of a portfolio",
		Aliases:     []string{"sharpe index", "reward-to-variability ratio"},
		Related:     []string{"risk measure", "Treynor ratio"},
		Confidence:  0.8,
	}
}

func TestEnrichConcept_PrimaryWinsSecondaryAdds(t *testing.T) {
	primary := &stubConnector{tag: "dbpedia", data: dbpediaData(), report: models.SourceReport{Accepted: true, Score: 1.4, Candidates: 2}}
	secondary := &stubConnector{tag: "wikidata", data: wikidataData(), report: models.SourceReport{Accepted: true, Score: 1.1, Candidates: 3}}
	e := NewWithConnectors(nil, 24, []source.Connector{primary, secondary}, nil, quietLogger())

	c := models.NewConcept("Sharpe Ratio", models.CategoryMeasure)
	outcome := e.EnrichConcept(context.Background(), c)

	require.Equal(t, models.StatusEnriched, outcome.Status)
	require.NotNil(t, outcome.Merged)
	assert.True(t, outcome.Enriched())
	assert.Len(t, outcome.Reports, 2)

	// Identity and prose come from the primary source
	assert.Equal(t, "http://dbpedia.org/resource/Sharpe_ratio", outcome.Merged.ExternalID)
	assert.Equal(t, "dbpedia", outcome.Merged.Source)
	assert.Equal(t, "In finance, the Sharpe ratio measures risk-adjusted return.", outcome.Merged.Description)

	// List fields union case-insensitively, primary order first
	assert.Equal(t, []string{"Sharpe index", "reward-to-variability ratio"}, outcome.Merged.Aliases)
	assert.Equal(t, []string{"Treynor ratio", "Sortino ratio", "risk measure"}, outcome.Merged.Related)

	// The concept picked up the merged record plus secondary attribution
	assert.Equal(t, outcome.Merged.Description, c.Description)
	assert.Equal(t, "http://dbpedia.org/resource/Sharpe_ratio", c.Properties["external_id"])
	assert.Equal(t, "dbpedia", c.Properties["external_source"])
	assert.Equal(t, "Q131132", c.Properties["wikidata_id"])
	assert.Equal(t, 0.8, c.Properties["wikidata_confidence"])
	assert.Contains(t, c.Aliases, "Sharpe index")
	assert.Equal(t, 0.92, c.Confidence)
}

func TestEnrichConcept_CacheHitStatus(t *testing.T) {
	conn := &stubConnector{tag: "dbpedia", data: dbpediaData(), report: models.SourceReport{Accepted: true, FromCache: true, Score: 0.92}}
	e := NewWithConnectors(nil, 24, []source.Connector{conn}, nil, quietLogger())

	outcome := e.EnrichConcept(context.Background(), models.NewConcept("Sharpe Ratio", models.CategoryMeasure))

	assert.Equal(t, models.StatusCacheHit, outcome.Status)
	assert.True(t, outcome.Enriched())
	require.Len(t, outcome.Reports, 1)
	assert.True(t, outcome.Reports[0].FromCache)
}

func TestEnrichConcept_NotEnrichedLeavesConceptUntouched(t *testing.T) {
	conn := &stubConnector{tag: "dbpedia", report: models.SourceReport{Candidates: 3, Score: 0.05}}
	e := NewWithConnectors(nil, 24, []source.Connector{conn}, nil, quietLogger())

	c := models.NewConcept("Smith", models.CategoryGeneral)
	outcome := e.EnrichConcept(context.Background(), c)

	assert.Equal(t, models.StatusNotEnriched, outcome.Status)
	assert.Equal(t, "no candidate scored above the acceptance threshold", outcome.Reason)
	assert.Nil(t, outcome.Merged)
	assert.False(t, outcome.Enriched())

	assert.Empty(t, c.Description)
	assert.Empty(t, c.Properties)
	assert.Empty(t, c.Aliases)
}

func TestEnrichConcept_AllSourcesFailed(t *testing.T) {
	down1 := &stubConnector{tag: "dbpedia", report: models.SourceReport{Error: "connect: connection refused"}}
	down2 := &stubConnector{tag: "wikidata", report: models.SourceReport{Error: "context deadline exceeded"}}
	e := NewWithConnectors(nil, 24, []source.Connector{down1, down2}, nil, quietLogger())

	outcome := e.EnrichConcept(context.Background(), models.NewConcept("Sharpe Ratio", models.CategoryMeasure))

	assert.Equal(t, models.StatusNotEnriched, outcome.Status)
	assert.Equal(t, "all sources failed", outcome.Reason)
	assert.Len(t, outcome.Reports, 2)
}

func TestEnrichConcept_NoCandidatesFound(t *testing.T) {
	conn := &stubConnector{tag: "dbpedia"}
	e := NewWithConnectors(nil, 24, []source.Connector{conn}, nil, quietLogger())

	outcome := e.EnrichConcept(context.Background(), models.NewConcept("xyzzy", models.CategoryGeneral))

	assert.Equal(t, models.StatusNotEnriched, outcome.Status)
	assert.Equal(t, "no candidates found", outcome.Reason)
}

func TestEnrichConcept_PanicIsolatedToOneSource(t *testing.T) {
	bad := &stubConnector{tag: "dbpedia", panics: true}
	good := &stubConnector{tag: "wikidata", data: wikidataData(), report: models.SourceReport{Accepted: true, Score: 1.1}}
	e := NewWithConnectors(nil, 24, []source.Connector{bad, good}, nil, quietLogger())

	outcome := e.EnrichConcept(context.Background(), models.NewConcept("Sharpe Ratio", models.CategoryMeasure))

	require.Equal(t, models.StatusEnriched, outcome.Status)
	assert.Equal(t, "Q131132", outcome.Merged.ExternalID)
	require.Len(t, outcome.Reports, 2)
	assert.Contains(t, outcome.Reports[0].Error, "panic")
	assert.Equal(t, "dbpedia", outcome.Reports[0].Source)
}

func TestEnrichConcept_SecondaryFillsEmptyDescription(t *testing.T) {
	sparse := dbpediaData()
	sparse.Description = ""
	primary := &stubConnector{tag: "dbpedia", data: sparse, report: models.SourceReport{Accepted: true}}
	secondary := &stubConnector{tag: "wikidata", data: wikidataData(), report: models.SourceReport{Accepted: true}}
	e := NewWithConnectors(nil, 24, []source.Connector{primary, secondary}, nil, quietLogger())

	outcome := e.EnrichConcept(context.Background(), models.NewConcept("Sharpe Ratio", models.CategoryMeasure))

	require.NotNil(t, outcome.Merged)
	assert.Equal(t, "measure of the risk-adjusted return of a portfolio", outcome.Merged.Description)
	// Identity still belongs to the primary
	assert.Equal(t, "http://dbpedia.org/resource/Sharpe_ratio", outcome.Merged.ExternalID)
}

func TestEnrichConcept_CanceledContextSkipsConnectors(t *testing.T) {
	conn := &stubConnector{tag: "dbpedia", data: dbpediaData(), report: models.SourceReport{Accepted: true}}
	e := NewWithConnectors(nil, 24, []source.Connector{conn}, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := e.EnrichConcept(ctx, models.NewConcept("Sharpe Ratio", models.CategoryMeasure))

	assert.Equal(t, models.StatusNotEnriched, outcome.Status)
	assert.Equal(t, context.Canceled.Error(), outcome.Reason)
	assert.Zero(t, conn.calls)
}

func TestNew_OrdersPrimaryFirst(t *testing.T) {
	cfg := types.SourcesConfig{
		Primary: "wikidata",
		Enabled: []string{"dbpedia", "wikidata"},
	}
	e := New(nil, cfg, 24, nil, quietLogger())

	assert.Equal(t, []string{"wikidata", "dbpedia"}, e.Sources())

	conn, ok := e.Connector("DBpedia")
	require.True(t, ok)
	assert.Equal(t, "dbpedia", conn.Name())

	_, ok = e.Connector("freebase")
	assert.False(t, ok)
}

func TestNew_SkipsUnknownSources(t *testing.T) {
	cfg := types.SourcesConfig{
		Primary: "dbpedia",
		Enabled: []string{"dbpedia", "freebase"},
	}
	e := New(nil, cfg, 24, nil, quietLogger())

	assert.Equal(t, []string{"dbpedia"}, e.Sources())
}

func TestCandidates_SortedByScore(t *testing.T) {
	conn := &stubConnector{tag: "dbpedia", results: []models.ExternalConceptData{
		{
			ExternalID:  "http://dbpedia.org/resource/Sharpe_(surname)",
			Source:      "dbpedia",
			Label:       "Sharpe (surname)",
			Description: "English surname",
			Confidence:  0.9,
		},
		{
			ExternalID:  "http://dbpedia.org/resource/Sharpe_ratio",
			Source:      "dbpedia",
			Label:       "Sharpe ratio",
			Description: "In finance, the Sharpe ratio measures the risk-adjusted performance of a portfolio",
			Confidence:  0.5,
		},
	}}
	e := NewWithConnectors(nil, 24, []source.Connector{conn}, nil, quietLogger())

	c := models.NewConcept("Sharpe Ratio", models.CategoryMeasure)
	candidates := e.Candidates(context.Background(), c)

	require.Len(t, candidates, 2)
	// The domain match outranks the raw-confidence leader
	assert.Equal(t, "http://dbpedia.org/resource/Sharpe_ratio", candidates[0].Data.ExternalID)
	assert.Greater(t, candidates[0].Score, candidates[1].Score)
	assert.Equal(t, "dbpedia", candidates[0].Source)
}

func TestAdopt_AppliesAndWritesThrough(t *testing.T) {
	store, err := cache.NewSQLiteStore(":memory:", types.CacheConfig{TTLHours: 24, MaxEntries: 50}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e := NewWithConnectors(store, 24, nil, nil, quietLogger())
	c := models.NewConcept("CAPM", models.CategoryModel)
	pick := Candidate{
		Source: "dbpedia",
		Score:  1.2,
		Data: models.ExternalConceptData{
			ExternalID:  "http://dbpedia.org/resource/Capital_asset_pricing_model",
			Source:      "dbpedia",
			Label:       "Capital asset pricing model",
			Description: "Model relating systematic risk to expected return.",
			Confidence:  0.7,
		},
	}

	data := e.Adopt(c, pick)

	require.NotNil(t, data)
	assert.False(t, data.FetchedAt.IsZero())
	assert.Equal(t, pick.Data.ExternalID, c.Properties["external_id"])
	assert.Equal(t, "Model relating systematic risk to expected return.", c.Description)

	entry, err := store.Get("dbpedia", "CAPM")
	require.NoError(t, err)
	cached, err := entry.Data()
	require.NoError(t, err)
	assert.Equal(t, pick.Data.ExternalID, cached.ExternalID)
}
