package config

import (
	"github.com/spf13/viper"

	"github.com/quantkb/finconcept/internal/scoring"
)

// ScoringOverrides holds the scorer weights that can be tuned from the main
// config file without shipping a full tables file.
type ScoringOverrides struct {
	// Acceptance threshold for the best candidate
	Threshold float64 `mapstructure:"threshold"`

	// Cross-domain keyword weight (math terms for finance concepts and
	// vice versa)
	SecondaryWeight float64 `mapstructure:"secondary_weight"`

	// Bonus and penalty weights
	AcronymBonus     float64 `mapstructure:"acronym_bonus"`
	CategoryBonus    float64 `mapstructure:"category_bonus"`
	CollisionPenalty float64 `mapstructure:"collision_penalty"`

	// Cap on related concepts pulled in by an accepted match
	MaxRelated int `mapstructure:"max_related"`
}

// LoadScoringOverrides reads scorer overrides from Viper, falling back to
// the values already present in t (the tables file or built-in defaults).
func LoadScoringOverrides(t *scoring.Tables) ScoringOverrides {
	return ScoringOverrides{
		Threshold:        getFloat64WithDefault("scoring.threshold", t.Threshold),
		SecondaryWeight:  getFloat64WithDefault("scoring.secondary_weight", t.SecondaryWeight),
		AcronymBonus:     getFloat64WithDefault("scoring.acronym_bonus", t.AcronymBonus),
		CategoryBonus:    getFloat64WithDefault("scoring.category_bonus", t.CategoryBonus),
		CollisionPenalty: getFloat64WithDefault("scoring.collision_penalty", t.CollisionPenalty),
		MaxRelated:       getIntWithDefault("scoring.max_related", t.MaxRelated),
	}
}

// ApplyScoringOverrides returns a copy of t with Viper overrides applied.
// The input is never mutated; table watchers hand out shared pointers.
func ApplyScoringOverrides(t *scoring.Tables) *scoring.Tables {
	o := LoadScoringOverrides(t)

	out := *t
	out.Threshold = o.Threshold
	out.SecondaryWeight = o.SecondaryWeight
	out.AcronymBonus = o.AcronymBonus
	out.CategoryBonus = o.CategoryBonus
	out.CollisionPenalty = o.CollisionPenalty
	out.MaxRelated = o.MaxRelated
	return &out
}

// Helper functions for Viper with defaults

func getFloat64WithDefault(key string, defaultVal float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return defaultVal
}

func getIntWithDefault(key string, defaultVal int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return defaultVal
}
