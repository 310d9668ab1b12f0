/*
Copyright © 2026 finconcept contributors
*/
package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose"`
	Config    string          `mapstructure:"config"`
	Project   ProjectConfig   `mapstructure:"project" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache" validate:"required"`
	Sources   SourcesConfig   `mapstructure:"sources" validate:"required"`
	Scoring   ScoringConfig   `mapstructure:"scoring" validate:"omitempty"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ProjectConfig holds project-related settings
type ProjectConfig struct {
	RootDir string `mapstructure:"rootDir" validate:"required"`
}

// CacheConfig holds concept cache storage settings
type CacheConfig struct {
	File string `mapstructure:"file" validate:"required"`
	// TTLHours is the default entry lifetime. Fractional values are
	// allowed; zero or negative means entries never expire.
	TTLHours   float64 `mapstructure:"ttlHours"`
	MaxEntries int     `mapstructure:"maxEntries" validate:"required,min=1"`
}

// SourcesConfig holds knowledge source selection and endpoints
type SourcesConfig struct {
	Primary  string         `mapstructure:"primary" validate:"required,oneof=dbpedia wikidata"`
	Enabled  []string       `mapstructure:"enabled" validate:"required,min=1,dive,oneof=dbpedia wikidata"`
	DBpedia  EndpointConfig `mapstructure:"dbpedia"`
	Wikidata EndpointConfig `mapstructure:"wikidata"`
}

// EndpointConfig holds per-source HTTP client settings
type EndpointConfig struct {
	BaseURL string `mapstructure:"baseUrl" validate:"omitempty,url"`
	// DataURL is the companion endpoint for detail and related-concept
	// queries (SPARQL for DBpedia). Empty means the source's default.
	DataURL string `mapstructure:"dataUrl" validate:"omitempty,url"`
	// RequestTimeoutSeconds controls the HTTP client timeout for source calls
	RequestTimeoutSeconds int `mapstructure:"requestTimeoutSeconds" validate:"omitempty,min=1,max=120"`
	// MaxRetries controls how many automatic retries on recoverable errors (429, 5xx, timeouts)
	MaxRetries int `mapstructure:"maxRetries" validate:"omitempty,min=0,max=5"`
	// MinIntervalMs is the minimum spacing between consecutive requests to this source
	MinIntervalMs int `mapstructure:"minIntervalMs" validate:"omitempty,min=0"`
	MaxResults    int `mapstructure:"maxResults" validate:"omitempty,min=1,max=50"`
}

// ScoringConfig holds match scoring table settings
type ScoringConfig struct {
	TablesFile string `mapstructure:"tablesFile" validate:"omitempty"`
	// Watch reloads the tables file on change (requires TablesFile)
	Watch bool `mapstructure:"watch"`
}

// TelemetryConfig holds anonymous usage analytics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
