package enrich

import (
	"strings"
	"time"

	"github.com/quantkb/finconcept/internal/normalize"
	"github.com/quantkb/finconcept/models"
)

// mergeSecondary folds one more source's data into the merged record. The
// primary source wins ExternalID, Source, Label, and Description;
// secondaries only add to the list fields.
func mergeSecondary(merged, extra *models.ExternalConceptData) {
	if merged.Description == "" {
		merged.Description = extra.Description
	}
	merged.Aliases = unionFold(merged.Aliases, extra.Aliases)
	merged.Categories = unionFold(merged.Categories, extra.Categories)
	merged.Types = unionFold(merged.Types, extra.Types)
	merged.Related = unionFold(merged.Related, extra.Related)
}

// Apply copies enrichment data onto the concept without destroying caller
// state: the description is only filled when empty, aliases are appended,
// and an external identifier already present in Properties is kept.
func Apply(c *models.Concept, d *models.ExternalConceptData) {
	if c.Properties == nil {
		c.Properties = make(map[string]any)
	}

	if c.Description == "" {
		c.Description = d.Description
	}

	canonical := normalize.Name(c.Name)
	for _, alias := range d.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" || normalize.Name(alias) == canonical {
			continue
		}
		if !containsFold(c.Aliases, alias) {
			c.Aliases = append(c.Aliases, alias)
		}
	}

	setIfAbsent(c.Properties, "external_id", d.ExternalID)
	setIfAbsent(c.Properties, "external_source", d.Source)
	if len(d.Categories) > 0 {
		c.Properties["categories"] = append([]string(nil), d.Categories...)
	}
	if len(d.Types) > 0 {
		c.Properties["types"] = append([]string(nil), d.Types...)
	}
	if len(d.Related) > 0 {
		c.Properties["related"] = append([]string(nil), d.Related...)
	}

	if d.Confidence > c.Confidence {
		c.Confidence = d.Confidence
	}
	c.UpdatedAt = time.Now()
}

func setIfAbsent(props map[string]any, key, value string) {
	if value == "" {
		return
	}
	if existing, ok := props[key]; ok && existing != "" && existing != nil {
		return
	}
	props[key] = value
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
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
