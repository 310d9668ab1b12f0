// Package cache implements the persistent concept cache backing external
// enrichment lookups. Entries are keyed by (source, normalized concept name),
// carry an optional TTL, and are bounded by a configurable entry limit with
// least-recently-accessed eviction.
package cache

import (
	"time"

	"github.com/quantkb/finconcept/models"
)

// Store defines the interface for concept cache persistence.
// Lookups and writes address entries by source tag and concept name; the
// store derives the canonical cache key so that spelling variants of the
// same concept share a single entry.
type Store interface {
	// Get returns the live entry for (source, name). Missing, expired, and
	// undecodable entries all report types.ErrEntryNotFound; expired and
	// undecodable rows are deleted on the way out. A hit updates the
	// entry's access time and count.
	Get(source, name string) (*models.CacheEntry, error)

	// Put encodes data and upserts it under the canonical key for
	// (source, name). The entry expires ttlHours from now; ttlHours <= 0
	// stores it without expiry. Re-putting an existing key replaces the
	// payload and resets access bookkeeping. Put enforces the entry limit,
	// evicting least-recently-accessed entries when it is exceeded.
	Put(source, name string, data *models.ExternalConceptData, ttlHours float64) (*models.CacheEntry, error)

	// Delete removes the entry for (source, name) and reports whether a
	// row was actually removed.
	Delete(source, name string) (bool, error)

	// Clear removes all entries, or only entries from one source when
	// source is non-empty. Returns the number of rows removed.
	Clear(source string) (int64, error)

	// CleanupExpired removes every entry whose expiry has passed.
	// Returns the number of rows removed.
	CleanupExpired() (int64, error)

	// List returns entries ordered by most recent access. A limit <= 0
	// returns everything.
	List(limit int) ([]models.CacheEntry, error)

	// Stats reports entry counts, byte totals, and runtime hit/miss
	// counters.
	Stats() (*Stats, error)

	// Check scans the cache for integrity issues without modifying it.
	Check() ([]Issue, error)

	// Repair fixes the issues Check reports: undecodable payloads are
	// deleted, drifted keys are rewritten to their canonical form, and
	// duplicate entries for one concept are collapsed to the first-created
	// one. With dryRun it only reports what would change.
	Repair(dryRun bool) (*RepairReport, error)

	// Close releases the underlying database handle. Further calls on the
	// store return types.ErrCacheClosed.
	Close() error
}

// Stats summarizes cache contents and lookup counters. The counters cover
// the lifetime of the store handle, not the database file.
type Stats struct {
	Entries     int64            `json:"entries"`
	TotalBytes  int64            `json:"totalBytes"`
	Hits        int64            `json:"hits"`
	Misses      int64            `json:"misses"`
	Expirations int64            `json:"expirations"`
	Evictions   int64            `json:"evictions"`
	BySource    map[string]int64 `json:"bySource"`
	OldestEntry time.Time        `json:"oldestEntry"`
	NewestEntry time.Time        `json:"newestEntry"`
}

// HitRate returns the fraction of lookups that were hits, or 0 when no
// lookups have happened yet.
func (s *Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Issue types reported by Check.
const (
	// IssueInvalidPayload marks an entry whose payload no longer decodes.
	IssueInvalidPayload = "invalid_payload"
	// IssueKeyDrift marks an entry stored under a key that differs from
	// the one recomputed from its source and concept name.
	IssueKeyDrift = "key_drift"
	// IssueOrphanVariant marks a group of entries whose keys collapse to
	// the same canonical key, typically left behind by older key formats.
	IssueOrphanVariant = "orphan_variant"
	// IssueExpired marks an entry past its expiry that cleanup has not
	// removed yet.
	IssueExpired = "expired"
)

// Issue describes a single problem found by Check.
type Issue struct {
	Type     string `json:"type"`
	CacheKey string `json:"cacheKey,omitempty"`
	Message  string `json:"message"`
}

// RepairReport summarizes the actions a Repair pass took, or would take
// when DryRun is set.
type RepairReport struct {
	DryRun         bool `json:"dryRun"`
	InvalidRemoved int  `json:"invalidRemoved"`
	KeysRewritten  int  `json:"keysRewritten"`
	OrphansRemoved int  `json:"orphansRemoved"`
}

// Total returns the number of entries a repair touches.
func (r *RepairReport) Total() int {
	return r.InvalidRemoved + r.KeysRewritten + r.OrphansRemoved
}
