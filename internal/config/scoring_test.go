package config

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/quantkb/finconcept/internal/scoring"
)

func TestLoadScoringOverrides_Defaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	tables := scoring.DefaultTables()
	o := LoadScoringOverrides(tables)

	if o.Threshold != tables.Threshold {
		t.Errorf("Threshold = %v, want table value %v", o.Threshold, tables.Threshold)
	}
	if o.MaxRelated != tables.MaxRelated {
		t.Errorf("MaxRelated = %v, want table value %v", o.MaxRelated, tables.MaxRelated)
	}
	if o.CollisionPenalty != tables.CollisionPenalty {
		t.Errorf("CollisionPenalty = %v, want table value %v", o.CollisionPenalty, tables.CollisionPenalty)
	}
}

func TestLoadScoringOverrides_ViperWins(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("scoring.threshold", 0.25)
	viper.Set("scoring.max_related", 2)

	tables := scoring.DefaultTables()
	o := LoadScoringOverrides(tables)

	if o.Threshold != 0.25 {
		t.Errorf("Threshold = %v, want viper override 0.25", o.Threshold)
	}
	if o.MaxRelated != 2 {
		t.Errorf("MaxRelated = %v, want viper override 2", o.MaxRelated)
	}
	// Keys not set keep the table value
	if o.AcronymBonus != tables.AcronymBonus {
		t.Errorf("AcronymBonus = %v, want table value %v", o.AcronymBonus, tables.AcronymBonus)
	}
}

func TestApplyScoringOverrides_CopiesTables(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("scoring.threshold", 0.5)

	tables := scoring.DefaultTables()
	original := tables.Threshold

	out := ApplyScoringOverrides(tables)

	if out == tables {
		t.Fatal("expected a copy, got the same pointer")
	}
	if out.Threshold != 0.5 {
		t.Errorf("out.Threshold = %v, want 0.5", out.Threshold)
	}
	if tables.Threshold != original {
		t.Errorf("input tables mutated: Threshold = %v, want %v", tables.Threshold, original)
	}
	// Keyword maps carry over untouched
	if len(out.FinanceTerms) != len(tables.FinanceTerms) {
		t.Errorf("FinanceTerms lost entries: %d vs %d", len(out.FinanceTerms), len(tables.FinanceTerms))
	}
}
