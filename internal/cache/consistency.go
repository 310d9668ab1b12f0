package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantkb/finconcept/internal/normalize"
	"github.com/quantkb/finconcept/models"
	"github.com/quantkb/finconcept/types"
)

// Check scans the cache for integrity issues: payloads that no longer
// decode, keys that drifted from the current canonical form, duplicate
// entries for one concept, and expired rows awaiting cleanup. It never
// modifies the database.
func (s *SQLiteStore) Check() ([]Issue, error) {
	if s.closed.Load() {
		return nil, types.ErrCacheClosed
	}

	entries, err := s.scanAll()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var issues []Issue
	groups := make(map[string][]string)

	for i := range entries {
		entry := &entries[i]

		if _, err := entry.Data(); err != nil {
			issues = append(issues, Issue{
				Type:     IssueInvalidPayload,
				CacheKey: entry.CacheKey,
				Message:  fmt.Sprintf("payload does not decode: %v", err),
			})
			continue
		}

		canonical := normalize.CacheKey(entry.Source, entry.ConceptName)
		if canonical != entry.CacheKey {
			issues = append(issues, Issue{
				Type:     IssueKeyDrift,
				CacheKey: entry.CacheKey,
				Message:  fmt.Sprintf("stored key differs from canonical %q", canonical),
			})
		}
		groups[canonical] = append(groups[canonical], entry.CacheKey)

		if entry.Expired(now) {
			issues = append(issues, Issue{
				Type:     IssueExpired,
				CacheKey: entry.CacheKey,
				Message:  fmt.Sprintf("expired %s ago", now.Sub(entry.ExpiresAt).Round(time.Second)),
			})
		}
	}

	var dupes []string
	for canonical, keys := range groups {
		if len(keys) > 1 {
			dupes = append(dupes, canonical)
		}
	}
	sort.Strings(dupes)
	for _, canonical := range dupes {
		keys := groups[canonical]
		issues = append(issues, Issue{
			Type:     IssueOrphanVariant,
			CacheKey: keys[0],
			Message:  fmt.Sprintf("%d entries share canonical key %q", len(keys), canonical),
		})
	}

	return issues, nil
}

// Repair fixes what Check finds, in one transaction. Undecodable entries
// are deleted. Duplicate entries for one concept are collapsed to the
// first-created one. Surviving entries stored under a drifted key are
// rewritten to the canonical key. Expired rows are left to CleanupExpired.
// With dryRun set, Repair reports the plan without touching the database.
func (s *SQLiteStore) Repair(dryRun bool) (*RepairReport, error) {
	if s.closed.Load() {
		return nil, types.ErrCacheClosed
	}

	report := &RepairReport{DryRun: dryRun}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query("SELECT " + entryColumns + " FROM concept_cache ORDER BY created_at ASC, cache_key ASC")
	if err != nil {
		return nil, fmt.Errorf("scan cache: %w", err)
	}

	var invalid []string
	var losers []string
	type rewrite struct{ from, to string }
	var rewrites []rewrite
	winners := make(map[string]bool)

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if _, err := entry.Data(); err != nil {
			invalid = append(invalid, entry.CacheKey)
			continue
		}

		canonical := normalize.CacheKey(entry.Source, entry.ConceptName)
		if winners[canonical] {
			losers = append(losers, entry.CacheKey)
			continue
		}
		winners[canonical] = true
		if entry.CacheKey != canonical {
			rewrites = append(rewrites, rewrite{from: entry.CacheKey, to: canonical})
		}
	}
	if err := checkRowsErr(rows); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	report.InvalidRemoved = len(invalid)
	report.OrphansRemoved = len(losers)
	report.KeysRewritten = len(rewrites)

	if dryRun {
		return report, nil
	}

	for _, key := range append(invalid, losers...) {
		if _, err := tx.Exec("DELETE FROM concept_cache WHERE cache_key = ?", key); err != nil {
			return nil, fmt.Errorf("delete entry %s: %w", key, err)
		}
	}

	for _, rw := range rewrites {
		_, err := tx.Exec("UPDATE concept_cache SET cache_key = ? WHERE cache_key = ?", rw.to, rw.from)
		if err != nil {
			// The canonical slot can already be taken by a row whose own
			// name no longer maps there. Treat our row as the duplicate.
			if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "constraint") {
				if _, derr := tx.Exec("DELETE FROM concept_cache WHERE cache_key = ?", rw.from); derr != nil {
					return nil, fmt.Errorf("delete conflicting entry %s: %w", rw.from, derr)
				}
				report.KeysRewritten--
				report.OrphansRemoved++
				continue
			}
			return nil, fmt.Errorf("rewrite key %s: %w", rw.from, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if report.Total() > 0 {
		s.logger.Info("repaired cache",
			"invalidRemoved", report.InvalidRemoved,
			"keysRewritten", report.KeysRewritten,
			"orphansRemoved", report.OrphansRemoved,
		)
	}
	return report, nil
}

// scanAll reads every cache row ordered by creation time, oldest first.
func (s *SQLiteStore) scanAll() ([]models.CacheEntry, error) {
	rows, err := s.db.Query("SELECT " + entryColumns + " FROM concept_cache ORDER BY created_at ASC, cache_key ASC")
	if err != nil {
		return nil, fmt.Errorf("scan cache: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return entries, nil
}
