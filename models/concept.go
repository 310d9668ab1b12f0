package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Category classifies a concept by its financial or mathematical kind.
type Category string

const (
	CategoryRatio      Category = "ratio"
	CategoryModel      Category = "model"
	CategoryInstrument Category = "instrument"
	CategoryMeasure    Category = "measure"
	CategoryTheory     Category = "theory"
	CategoryGeneral    Category = "general"
)

// ParseCategory maps a free-form category tag onto the closed set, e.g.
// "performance measure" -> measure. Unknown tags fall back to general.
func ParseCategory(s string) Category {
	v := strings.ToLower(strings.TrimSpace(s))
	switch Category(v) {
	case CategoryRatio, CategoryModel, CategoryInstrument, CategoryMeasure, CategoryTheory, CategoryGeneral:
		return Category(v)
	}
	switch {
	case strings.Contains(v, "ratio"):
		return CategoryRatio
	case strings.Contains(v, "model"):
		return CategoryModel
	case strings.Contains(v, "instrument"), strings.Contains(v, "security"), strings.Contains(v, "derivative"):
		return CategoryInstrument
	case strings.Contains(v, "measure"), strings.Contains(v, "metric"), strings.Contains(v, "indicator"):
		return CategoryMeasure
	case strings.Contains(v, "theory"), strings.Contains(v, "theorem"), strings.Contains(v, "hypothesis"):
		return CategoryTheory
	}
	return CategoryGeneral
}

// Concept represents a financial or mathematical concept record. The caller
// owns it; enrichment mutates it in place and never destroys caller data.
type Concept struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required,min=1,max=255"`
	Category    Category `json:"category" validate:"required,oneof=ratio model instrument measure theory general"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	// Properties carries enrichment output and caller metadata: external_id,
	// external_source, categories, types, related, and source-prefixed
	// id/confidence pairs from secondary sources.
	Properties map[string]any `json:"properties,omitempty"`
	Confidence float64        `json:"confidence" validate:"gte=0,lte=1"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// ExternalConceptData is one knowledge source's lookup result for a concept.
// Instances are immutable once returned from a connector.
type ExternalConceptData struct {
	ExternalID  string   `json:"externalId,omitempty"`
	Source      string   `json:"source" validate:"required"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Types       []string `json:"types,omitempty"`
	Related     []string `json:"related,omitempty"`
	// Confidence reflects search relevance plus scoring corrections,
	// capped into [0,1].
	Confidence float64   `json:"confidence"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// CacheEntry is a stored enrichment payload with expiry and access
// bookkeeping. A zero ExpiresAt means the entry never expires.
type CacheEntry struct {
	CacheKey      string    `json:"cacheKey"`
	ConceptName   string    `json:"conceptName"`
	Payload       string    `json:"payload"`
	Source        string    `json:"source"`
	SchemaVersion int       `json:"schemaVersion"`
	SizeBytes     int64     `json:"sizeBytes"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt,omitempty"`
	LastAccessed  time.Time `json:"lastAccessed"`
	AccessCount   int64     `json:"accessCount"`
}

// Expired reports whether the entry's TTL has elapsed at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// EnrichmentStatus is the explicit result kind of an enrichment attempt.
type EnrichmentStatus string

const (
	StatusEnriched    EnrichmentStatus = "enriched"
	StatusNotEnriched EnrichmentStatus = "not-enriched"
	StatusCacheHit    EnrichmentStatus = "cache-hit"
)

// SourceReport describes one connector's contribution to an enrichment.
type SourceReport struct {
	Source     string  `json:"source"`
	Accepted   bool    `json:"accepted"`
	FromCache  bool    `json:"fromCache"`
	Score      float64 `json:"score,omitempty"`
	Candidates int     `json:"candidates"`
	Error      string  `json:"error,omitempty"`
}

// Outcome is the explicit result of enriching one concept. "No acceptable
// match" is a normal terminal state, never an error.
type Outcome struct {
	Status    EnrichmentStatus     `json:"status"`
	Reason    string               `json:"reason,omitempty"`
	Merged    *ExternalConceptData `json:"merged,omitempty"`
	Reports   []SourceReport       `json:"reports,omitempty"`
	ElapsedMs int64                `json:"elapsedMs"`
}

// Enriched reports whether the attempt produced data, from network or cache.
func (o *Outcome) Enriched() bool {
	return o.Status == StatusEnriched || o.Status == StatusCacheHit
}

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	if validate == nil {
		validate = validator.New()
	}
	err := validate.Struct(s)
	if err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, fmt.Sprintf("validation failed on field '%s': rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(errorMessages, "; "))
	}
	return nil
}

// NewConcept creates a concept with a fresh short ID and default category.
func NewConcept(name string, category Category) *Concept {
	if category == "" {
		category = CategoryGeneral
	}
	now := time.Now()
	return &Concept{
		ID:         "c-" + uuid.New().String()[:8],
		Name:       name,
		Category:   category,
		Aliases:    []string{},
		Properties: map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
