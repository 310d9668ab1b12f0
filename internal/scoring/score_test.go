package scoring

import (
	"testing"

	"github.com/quantkb/finconcept/models"
)

func testConcept(name, category string) *models.Concept {
	return models.NewConcept(name, models.ParseCategory(category))
}

func candidate(label, description string, categories []string, confidence float64) *models.ExternalConceptData {
	return &models.ExternalConceptData{
		ExternalID:  "http://dbpedia.org/resource/Test",
		Source:      "dbpedia",
		Label:       label,
		Description: description,
		Categories:  categories,
		Confidence:  confidence,
	}
}

func TestScore_DomainQualifierBeatsPlainLabel(t *testing.T) {
	tables := DefaultTables()
	concept := testConcept("Beta", "risk measure")

	plain := candidate("Beta", "Second letter of the Greek alphabet", nil, 0.5)
	qualified := candidate("Beta (finance)", "Second letter of the Greek alphabet", nil, 0.5)

	plainScore := Score(plain, concept, tables)
	qualifiedScore := Score(qualified, concept, tables)
	if qualifiedScore <= plainScore {
		t.Errorf("expected qualified label to score higher: qualified=%g plain=%g", qualifiedScore, plainScore)
	}
}

func TestScore_QualifierGrading(t *testing.T) {
	tables := DefaultTables()
	concept := testConcept("Beta", "risk measure")

	finance := Score(candidate("Beta (finance)", "", nil, 0.5), concept, tables)
	economics := Score(candidate("Beta (economics)", "", nil, 0.5), concept, tables)
	business := Score(candidate("Beta (business)", "", nil, 0.5), concept, tables)

	if !(finance > economics && economics > business) {
		t.Errorf("expected finance > economics > business, got %g / %g / %g", finance, economics, business)
	}
}

func TestScore_AcronymExpansionBonus(t *testing.T) {
	tables := DefaultTables()
	concept := testConcept("CAPM", "pricing model")

	expanded := candidate(
		"Capital asset pricing model",
		"Describes the relationship between systematic risk and expected return for assets",
		[]string{"Finance theories"},
		0.4,
	)
	bare := candidate("CAPM", "Disambiguation page", nil, 0.4)

	expandedScore := Score(expanded, concept, tables)
	bareScore := Score(bare, concept, tables)
	if expandedScore <= bareScore {
		t.Errorf("expected expansion match to score higher: expanded=%g bare=%g", expandedScore, bareScore)
	}
	if expandedScore < 0.4+tables.AcronymBonus {
		t.Errorf("expected at least confidence plus acronym bonus, got %g", expandedScore)
	}
}

func TestScore_SurnameLosesToDomainMatch(t *testing.T) {
	tables := DefaultTables()
	concept := testConcept("Sharpe Ratio", "performance measure")

	ratio := candidate(
		"Sharpe ratio",
		"Measure of risk-adjusted return of a financial portfolio",
		[]string{"Financial ratios"},
		0.9,
	)
	surname := candidate(
		"Sharpe (surname)",
		"Sharpe is an English surname",
		[]string{"People"},
		0.85,
	)

	ratioScore := Score(ratio, concept, tables)
	surnameScore := Score(surname, concept, tables)
	if ratioScore <= surnameScore {
		t.Errorf("expected domain match to win: ratio=%g surname=%g", ratioScore, surnameScore)
	}
	if ratioScore <= tables.Threshold {
		t.Errorf("expected winner above threshold, got %g", ratioScore)
	}
	if surnameScore != 0 {
		t.Errorf("expected surname candidate clamped to 0, got %g", surnameScore)
	}
}

func TestScore_CollisionGuardOnGenericNames(t *testing.T) {
	tables := DefaultTables()
	concept := testConcept("Beta", "risk measure")

	film := Score(candidate("Beta (film)", "1992 drama film", nil, 0.9), concept, tables)
	finance := Score(candidate("Beta (finance)", "Systematic risk of an asset", nil, 0.9), concept, tables)

	if film >= finance {
		t.Errorf("expected film qualifier to lose: film=%g finance=%g", film, finance)
	}
	if film >= tables.Threshold {
		t.Errorf("expected film candidate below threshold, got %g", film)
	}
}

func TestScore_ThresholdSeparatesWeakMatches(t *testing.T) {
	tables := DefaultTables()
	concept := testConcept("Sharpe Ratio", "performance measure")

	weak := Score(candidate("Sharpe", "A word", nil, 0.05), concept, tables)
	if weak >= tables.Threshold {
		t.Errorf("expected weak candidate below threshold, got %g", weak)
	}

	strong := Score(candidate("Sharpe ratio (finance)", "", nil, 0.05), concept, tables)
	if strong < tables.Threshold {
		t.Errorf("expected qualified candidate above threshold, got %g", strong)
	}
}

func TestScore_NeverNegative(t *testing.T) {
	tables := DefaultTables()
	concept := testConcept("Beta", "risk measure")

	awful := []*models.ExternalConceptData{
		candidate("Beta (film)", "Film starring a footballer turned actor", []string{"Films"}, 0.0),
		candidate("Beta (village)", "Village by a river near a mountain", []string{"Villages"}, 0.1),
		candidate("Sharpe (surname)", "Surname of a singer", []string{"Surnames"}, 0.0),
	}
	for _, cand := range awful {
		if score := Score(cand, concept, tables); score < 0 {
			t.Errorf("score for %q must not be negative, got %g", cand.Label, score)
		}
	}
}

func TestScore_StatisticalCategoryBonus(t *testing.T) {
	tables := DefaultTables()
	concept := testConcept("Standard Deviation", "dispersion measure")

	with := candidate("Standard deviation", "", []string{"Statistics"}, 0.3)
	without := candidate("Standard deviation", "", nil, 0.3)

	if Score(with, concept, tables) <= Score(without, concept, tables) {
		t.Error("expected statistical category metadata to raise the score")
	}
}

func TestScore_CategorySelectsDominantTable(t *testing.T) {
	tables := DefaultTables()

	// For an instrument, finance vocabulary carries full weight
	instrument := testConcept("Convertible Bond", "debt instrument")
	financeText := Score(candidate("Convertible bond", "Pays a dividend", nil, 0.2), instrument, tables)
	mathText := Score(candidate("Convertible bond", "Has low variance", nil, 0.2), instrument, tables)
	if financeText <= mathText {
		t.Errorf("expected finance vocabulary to dominate for instruments: %g vs %g", financeText, mathText)
	}

	// For a measure, the weighting flips
	measure := testConcept("Beta", "risk measure")
	financeText = Score(candidate("Beta", "Relates to a dividend", nil, 0.2), measure, tables)
	mathText = Score(candidate("Beta", "Defined by the variance", nil, 0.2), measure, tables)
	if mathText <= financeText {
		t.Errorf("expected math vocabulary to dominate for measures: %g vs %g", mathText, financeText)
	}
}

func TestTables_Expansion(t *testing.T) {
	tables := DefaultTables()

	expansion, ok := tables.Expansion("capm")
	if !ok || expansion != "capital asset pricing model" {
		t.Errorf("expected capm expansion, got %q (ok=%v)", expansion, ok)
	}
	if _, ok := tables.Expansion("sharpe ratio"); ok {
		t.Error("expected no expansion for a non-acronym")
	}
}
