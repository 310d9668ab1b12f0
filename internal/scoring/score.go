// Package scoring rates external knowledge-base candidates against the
// concept being enriched. Scores combine the raw search relevance with
// domain keyword bonuses, disambiguation qualifier bonuses and penalties,
// and an irrelevant-domain guard, so that "Sharpe ratio" beats "Sharpe
// (surname)" for a finance concept regardless of lookup ranking.
//
// All weights live in Tables and can be overridden from a YAML file; the
// scorer itself performs no I/O.
package scoring

import (
	"strings"

	"github.com/quantkb/finconcept/internal/normalize"
	"github.com/quantkb/finconcept/models"
)

// Score rates how well cand represents concept. It is deterministic and
// pure: the raw search confidence plus keyword, acronym, qualifier, and
// category adjustments, clamped at zero.
func Score(cand *models.ExternalConceptData, concept *models.Concept, t *Tables) float64 {
	score := cand.Confidence
	text := candidateText(cand)

	primary, secondary := t.FinanceTerms, t.MathTerms
	if !financeDominant(concept.Category) {
		primary, secondary = t.MathTerms, t.FinanceTerms
	}
	for term, weight := range primary {
		if strings.Contains(text, term) {
			score += weight
		}
	}
	for term, weight := range secondary {
		if strings.Contains(text, term) {
			score += weight * t.SecondaryWeight
		}
	}

	if expansion, ok := t.Expansion(normalize.Name(concept.Name)); ok {
		if strings.Contains(text, expansion) {
			score += t.AcronymBonus
		}
	}

	qualifier := strings.ToLower(normalize.Parenthetical(cand.Label))
	if qualifier != "" {
		if bonus, ok := t.QualifierBonuses[qualifier]; ok {
			score += bonus
		}
		if penalty, ok := t.BadQualifiers[qualifier]; ok {
			score -= penalty
		}
		// Generically named statistical concepts ("Beta", "Alpha") collide
		// with films, places, and people. A qualifier from outside the
		// domain outweighs whatever the rest of the text matched.
		if statisticalKind(concept.Category) && !t.qualifierRelevant(qualifier) {
			score -= t.CollisionPenalty
		}
	}

	for _, name := range t.StatCategories {
		if containsCategory(cand.Categories, name) {
			score += t.CategoryBonus
			break
		}
	}

	for term, weight := range t.IrrelevantTerms {
		if strings.Contains(text, term) {
			score -= weight
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

// candidateText flattens the fields keyword matching runs against.
func candidateText(cand *models.ExternalConceptData) string {
	parts := make([]string, 0, 3+len(cand.Categories)+len(cand.Types))
	parts = append(parts, cand.Label, cand.Description)
	parts = append(parts, cand.Categories...)
	parts = append(parts, cand.Types...)
	return strings.ToLower(strings.ReplaceAll(strings.Join(parts, " "), "_", " "))
}

// financeDominant selects the keyword table that carries full weight for a
// concept category. Measures lean statistical; everything else in this
// domain leans financial.
func financeDominant(cat models.Category) bool {
	return cat != models.CategoryMeasure
}

// statisticalKind reports whether a category names the kind of concept
// whose short generic name needs the disambiguation collision guard.
func statisticalKind(cat models.Category) bool {
	return cat == models.CategoryMeasure || cat == models.CategoryRatio
}

func (t *Tables) qualifierRelevant(qualifier string) bool {
	if _, ok := t.QualifierBonuses[qualifier]; ok {
		return true
	}
	for term := range t.FinanceTerms {
		if strings.Contains(qualifier, term) {
			return true
		}
	}
	for term := range t.MathTerms {
		if strings.Contains(qualifier, term) {
			return true
		}
	}
	return false
}

func containsCategory(categories []string, name string) bool {
	for _, c := range categories {
		if strings.Contains(strings.ToLower(strings.ReplaceAll(c, "_", " ")), name) {
			return true
		}
	}
	return false
}
