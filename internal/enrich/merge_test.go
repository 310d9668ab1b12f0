package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantkb/finconcept/models"
)

func TestApply_PreservesCallerData(t *testing.T) {
	c := models.NewConcept("Sharpe Ratio", models.CategoryMeasure)
	c.Description = "Our in-house definition."
	c.Aliases = []string{"SR"}
	c.Properties["external_id"] = "urn:internal:42"
	c.Confidence = 0.99

	Apply(c, dbpediaData())

	// Caller prose and identifiers survive
	assert.Equal(t, "Our in-house definition.", c.Description)
	assert.Equal(t, "urn:internal:42", c.Properties["external_id"])
	assert.Equal(t, 0.99, c.Confidence)

	// Enrichment still adds what was missing
	assert.Equal(t, "dbpedia", c.Properties["external_source"])
	assert.Equal(t, []string{"SR", "Sharpe index"}, c.Aliases)
	assert.Equal(t, []string{"Financial ratios"}, c.Properties["categories"])
	assert.Equal(t, []string{"Treynor ratio", "Sortino ratio"}, c.Properties["related"])
}

func TestApply_SkipsAliasesSpellingTheName(t *testing.T) {
	c := models.NewConcept("Sharpe Ratio", models.CategoryMeasure)
	d := dbpediaData()
	d.Aliases = []string{"sharpe ratio.", "  Sharpe   Ratio ", "Sharpe index"}

	Apply(c, d)

	// Spelling variants of the concept's own name add nothing
	assert.Equal(t, []string{"Sharpe index"}, c.Aliases)
}

func TestApply_Idempotent(t *testing.T) {
	c := models.NewConcept("Sharpe Ratio", models.CategoryMeasure)
	d := dbpediaData()

	Apply(c, d)
	first := append([]string(nil), c.Aliases...)
	firstDesc := c.Description

	Apply(c, d)

	assert.Equal(t, first, c.Aliases)
	assert.Equal(t, firstDesc, c.Description)
	assert.Equal(t, d.ExternalID, c.Properties["external_id"])
}

func TestApply_InitializesNilProperties(t *testing.T) {
	c := &models.Concept{ID: "c-1", Name: "Sharpe Ratio", Category: models.CategoryMeasure}

	Apply(c, dbpediaData())

	require.NotNil(t, c.Properties)
	assert.Equal(t, "http://dbpedia.org/resource/Sharpe_ratio", c.Properties["external_id"])
}

func TestMergeSecondary_OnlyAddsListData(t *testing.T) {
	merged := dbpediaData()
	extra := wikidataData()

	mergeSecondary(merged, extra)

	// Identity and prose untouched
	assert.Equal(t, "http://dbpedia.org/resource/Sharpe_ratio", merged.ExternalID)
	assert.Equal(t, "dbpedia", merged.Source)
	assert.Equal(t, "In finance, the Sharpe ratio measures risk-adjusted return.", merged.Description)

	// Lists union case-insensitively
	assert.Equal(t, []string{"Sharpe index", "reward-to-variability ratio"}, merged.Aliases)
	assert.Equal(t, []string{"Treynor ratio", "Sortino ratio", "risk measure"}, merged.Related)
}
