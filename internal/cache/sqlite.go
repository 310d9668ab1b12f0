package cache

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/quantkb/finconcept/internal/normalize"
	"github.com/quantkb/finconcept/models"
	"github.com/quantkb/finconcept/types"
)

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction. Fixed width
// keeps the stored text lexicographically ordered, so expiry comparisons and
// LRU ordering can happen directly in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = "cache_key, concept_name, payload, source, schema_version, size_bytes, created_at, expires_at, last_accessed, access_count"

// SQLiteStore implements Store backed by a single SQLite database file.
type SQLiteStore struct {
	db       *sql.DB
	basePath string // Path to the cache directory, or ":memory:"
	cfg      types.CacheConfig
	logger   *slog.Logger

	closed      atomic.Bool
	hits        atomic.Int64
	misses      atomic.Int64
	expirations atomic.Int64
	evictions   atomic.Int64
}

// NewSQLiteStore opens (or creates) the concept cache under basePath.
// Pass ":memory:" as basePath for an in-memory cache.
func NewSQLiteStore(basePath string, cfg types.CacheConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		file := cfg.File
		if file == "" {
			file = "concepts.db"
		}
		dbPath = filepath.Join(basePath, file)

		// Ensure directory exists
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection to :memory: opens a separate empty
		// database. Pin the pool to one connection.
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	store := &SQLiteStore{
		db:       db,
		basePath: basePath,
		cfg:      cfg,
		logger:   logger,
	}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// initSchema creates the cache table if it doesn't exist and applies
// column migrations for databases created by older versions.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS concept_cache (
		cache_key TEXT PRIMARY KEY,
		concept_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		source TEXT NOT NULL,
		schema_version INTEGER NOT NULL DEFAULT 1,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		expires_at TEXT,
		last_accessed TEXT NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_cache_expires ON concept_cache(expires_at);
	CREATE INDEX IF NOT EXISTS idx_cache_accessed ON concept_cache(last_accessed);
	CREATE INDEX IF NOT EXISTS idx_cache_source ON concept_cache(source);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	// Migration: caches written before payload versioning lack these columns
	migrations := []struct {
		column string
		ddl    string
	}{
		{"schema_version", "ALTER TABLE concept_cache ADD COLUMN schema_version INTEGER NOT NULL DEFAULT 1"},
		{"size_bytes", "ALTER TABLE concept_cache ADD COLUMN size_bytes INTEGER NOT NULL DEFAULT 0"},
	}

	for _, m := range migrations {
		var exists bool
		rows, err := s.db.Query("PRAGMA table_info(concept_cache)")
		if err == nil {
			for rows.Next() {
				var cid int
				var name, ctype string
				var notnull, pk int
				var dflt any
				if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err == nil {
					if name == m.column {
						exists = true
						break
					}
				}
			}
			_ = rows.Close()
		}

		if !exists {
			if _, err := s.db.Exec(m.ddl); err != nil {
				errMsg := err.Error()
				if !strings.Contains(errMsg, "duplicate column") {
					return fmt.Errorf("add %s column: %w", m.column, err)
				}
			}
		}
	}

	return nil
}

// Get returns the live entry for (source, name), deleting expired or
// undecodable rows it encounters. Misses surface as types.ErrEntryNotFound.
func (s *SQLiteStore) Get(source, name string) (*models.CacheEntry, error) {
	if s.closed.Load() {
		return nil, types.ErrCacheClosed
	}

	key := normalize.CacheKey(source, name)
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow("SELECT "+entryColumns+" FROM concept_cache WHERE cache_key = ?", key)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		s.misses.Add(1)
		return nil, types.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}

	if entry.Expired(now) {
		if _, err := tx.Exec("DELETE FROM concept_cache WHERE cache_key = ?", key); err != nil {
			return nil, fmt.Errorf("delete expired entry: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		s.expirations.Add(1)
		s.misses.Add(1)
		return nil, types.ErrEntryNotFound
	}

	if _, err := entry.Data(); err != nil {
		// A payload that no longer decodes is worse than no entry at all;
		// drop it so the next enrichment repopulates the slot.
		if _, derr := tx.Exec("DELETE FROM concept_cache WHERE cache_key = ?", key); derr != nil {
			return nil, fmt.Errorf("delete undecodable entry: %w", derr)
		}
		if cerr := tx.Commit(); cerr != nil {
			return nil, fmt.Errorf("commit transaction: %w", cerr)
		}
		s.logger.Warn("dropped undecodable cache entry", "key", key, "error", err)
		s.misses.Add(1)
		return nil, types.ErrEntryNotFound
	}

	entry.LastAccessed = now
	entry.AccessCount++
	if _, err := tx.Exec(
		"UPDATE concept_cache SET last_accessed = ?, access_count = ? WHERE cache_key = ?",
		now.Format(timeLayout), entry.AccessCount, key,
	); err != nil {
		return nil, fmt.Errorf("touch entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.hits.Add(1)
	return entry, nil
}

// Put stores data under the canonical key for (source, name), replacing any
// existing entry, then enforces the configured entry limit.
func (s *SQLiteStore) Put(source, name string, data *models.ExternalConceptData, ttlHours float64) (*models.CacheEntry, error) {
	if s.closed.Load() {
		return nil, types.ErrCacheClosed
	}

	payload, err := models.EncodePayload(data)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := &models.CacheEntry{
		CacheKey:      normalize.CacheKey(source, name),
		ConceptName:   name,
		Payload:       payload,
		Source:        strings.ToLower(strings.TrimSpace(source)),
		SchemaVersion: models.PayloadSchemaVersion,
		SizeBytes:     int64(len(payload)),
		CreatedAt:     now,
		LastAccessed:  now,
	}
	if ttlHours > 0 {
		entry.ExpiresAt = now.Add(time.Duration(ttlHours * float64(time.Hour)))
	}

	expiresAt := sql.NullString{}
	if !entry.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: entry.ExpiresAt.Format(timeLayout), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO concept_cache (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(cache_key) DO UPDATE SET
			concept_name = excluded.concept_name,
			payload = excluded.payload,
			source = excluded.source,
			schema_version = excluded.schema_version,
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			last_accessed = excluded.last_accessed,
			access_count = 0`,
		entry.CacheKey, entry.ConceptName, entry.Payload, entry.Source,
		entry.SchemaVersion, entry.SizeBytes,
		entry.CreatedAt.Format(timeLayout), expiresAt, entry.LastAccessed.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert entry: %w", err)
	}

	evicted, err := s.evictTx(tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if evicted > 0 {
		s.evictions.Add(int64(evicted))
		s.logger.Debug("evicted cache entries", "count", evicted, "maxEntries", s.cfg.MaxEntries)
	}

	return entry, nil
}

// evictTx removes least-recently-accessed entries when the entry count
// exceeds the configured limit. It evicts down to a target slightly below
// the limit so back-to-back writes do not re-trigger eviction each time.
func (s *SQLiteStore) evictTx(tx *sql.Tx) (int, error) {
	maxEntries := s.cfg.MaxEntries
	if maxEntries <= 0 {
		return 0, nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM concept_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	if count <= maxEntries {
		return 0, nil
	}

	target := maxEntries - maxEntries/10
	res, err := tx.Exec(`
		DELETE FROM concept_cache WHERE cache_key IN (
			SELECT cache_key FROM concept_cache
			ORDER BY last_accessed ASC, created_at ASC
			LIMIT ?
		)`, count-target)
	if err != nil {
		return 0, fmt.Errorf("evict entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count evicted: %w", err)
	}
	return int(n), nil
}

// Delete removes the entry for (source, name).
func (s *SQLiteStore) Delete(source, name string) (bool, error) {
	if s.closed.Load() {
		return false, types.ErrCacheClosed
	}

	res, err := s.db.Exec("DELETE FROM concept_cache WHERE cache_key = ?", normalize.CacheKey(source, name))
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count deleted: %w", err)
	}
	return n > 0, nil
}

// Clear removes all entries, or only those from one source.
func (s *SQLiteStore) Clear(source string) (int64, error) {
	if s.closed.Load() {
		return 0, types.ErrCacheClosed
	}

	var (
		res sql.Result
		err error
	)
	if source == "" {
		res, err = s.db.Exec("DELETE FROM concept_cache")
	} else {
		res, err = s.db.Exec("DELETE FROM concept_cache WHERE source = ?", strings.ToLower(strings.TrimSpace(source)))
	}
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared: %w", err)
	}
	return n, nil
}

// CleanupExpired removes every entry whose expiry has passed.
func (s *SQLiteStore) CleanupExpired() (int64, error) {
	if s.closed.Load() {
		return 0, types.ErrCacheClosed
	}

	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.Exec("DELETE FROM concept_cache WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleaned: %w", err)
	}
	if n > 0 {
		s.expirations.Add(n)
	}
	return n, nil
}

// List returns entries ordered by most recent access.
func (s *SQLiteStore) List(limit int) ([]models.CacheEntry, error) {
	if s.closed.Load() {
		return nil, types.ErrCacheClosed
	}

	query := "SELECT " + entryColumns + " FROM concept_cache ORDER BY last_accessed DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
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

// Stats reports entry counts, byte totals, and lookup counters.
func (s *SQLiteStore) Stats() (*Stats, error) {
	if s.closed.Load() {
		return nil, types.ErrCacheClosed
	}

	stats := &Stats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Expirations: s.expirations.Load(),
		Evictions:   s.evictions.Load(),
		BySource:    make(map[string]int64),
	}

	var oldest, newest sql.NullString
	err := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), MIN(created_at), MAX(created_at) FROM concept_cache").
		Scan(&stats.Entries, &stats.TotalBytes, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	if oldest.Valid {
		stats.OldestEntry = parseTime(oldest.String)
	}
	if newest.Valid {
		stats.NewestEntry = parseTime(newest.String)
	}

	rows, err := s.db.Query("SELECT source, COUNT(*) FROM concept_cache GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		stats.BySource[source] = count
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return stats, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying database for maintenance commands and tests.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var createdAt, lastAccessed string
	var expiresAt sql.NullString

	err := row.Scan(
		&entry.CacheKey, &entry.ConceptName, &entry.Payload, &entry.Source,
		&entry.SchemaVersion, &entry.SizeBytes,
		&createdAt, &expiresAt, &lastAccessed, &entry.AccessCount,
	)
	if err != nil {
		return nil, err
	}

	entry.CreatedAt = parseTime(createdAt)
	if expiresAt.Valid {
		entry.ExpiresAt = parseTime(expiresAt.String)
	}
	entry.LastAccessed = parseTime(lastAccessed)
	return &entry, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, value)
	}
	return t
}
