package cmd

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantkb/finconcept/internal/cache"
	"github.com/quantkb/finconcept/models"
	"github.com/quantkb/finconcept/types"
	"github.com/spf13/pflag"
)

func resetClearCommandState(t *testing.T) {
	t.Helper()

	cacheClearCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("reset flag %s: %v", f.Name, err)
		}
		f.Changed = false
	})

	clearForce = false
	clearSource = ""
	clearBackup = true
}

func TestClearBackupDefaultsEnabled(t *testing.T) {
	resetClearCommandState(t)

	if err := cacheClearCmd.PreRunE(cacheClearCmd, nil); err != nil {
		t.Fatalf("prerun: %v", err)
	}

	if !clearBackup {
		t.Fatalf("expected clearBackup to default to true")
	}
}

func TestClearNoBackupFlagDisablesBackup(t *testing.T) {
	resetClearCommandState(t)

	if err := cacheClearCmd.Flags().Set("no-backup", "true"); err != nil {
		t.Fatalf("set no-backup: %v", err)
	}

	if err := cacheClearCmd.PreRunE(cacheClearCmd, nil); err != nil {
		t.Fatalf("prerun: %v", err)
	}

	if clearBackup {
		t.Fatalf("expected clearBackup to be false when no-backup is set")
	}
}

func newBackupTestStore(t *testing.T) cache.Store {
	t.Helper()

	cfg := types.CacheConfig{File: "concepts.db", TTLHours: 24, MaxEntries: 100}
	st, err := cache.NewSQLiteStore(t.TempDir(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func putEntry(t *testing.T, st cache.Store, source, name string) {
	t.Helper()

	data := &models.ExternalConceptData{
		Source:    source,
		Label:     name,
		FetchedAt: time.Now().UTC(),
	}
	if _, err := st.Put(source, name, data, 24); err != nil {
		t.Fatalf("put %s/%s: %v", source, name, err)
	}
}

func TestCreateClearBackup(t *testing.T) {
	st := newBackupTestStore(t)
	putEntry(t, st, "dbpedia", "Sharpe ratio")
	putEntry(t, st, "wikidata", "Sortino ratio")

	GlobalAppConfig.Project.RootDir = t.TempDir()

	path, err := createClearBackup(st, "")
	if err != nil {
		t.Fatalf("createClearBackup: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}

	var backup models.BackupFile
	if err := json.Unmarshal(raw, &backup); err != nil {
		t.Fatalf("decode backup: %v", err)
	}

	if backup.Operation != "clear" {
		t.Errorf("operation = %q, want clear", backup.Operation)
	}
	if backup.EntryCount != 2 || len(backup.Entries) != 2 {
		t.Errorf("expected 2 entries, got count=%d len=%d", backup.EntryCount, len(backup.Entries))
	}
	if filepath.Dir(path) != filepath.Join(GlobalAppConfig.Project.RootDir, "backups") {
		t.Errorf("backup written outside backups dir: %s", path)
	}
}

func TestCreateClearBackupFiltersSource(t *testing.T) {
	st := newBackupTestStore(t)
	putEntry(t, st, "dbpedia", "Sharpe ratio")
	putEntry(t, st, "dbpedia", "Beta")
	putEntry(t, st, "wikidata", "Sortino ratio")

	GlobalAppConfig.Project.RootDir = t.TempDir()

	path, err := createClearBackup(st, "dbpedia")
	if err != nil {
		t.Fatalf("createClearBackup: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}

	var backup models.BackupFile
	if err := json.Unmarshal(raw, &backup); err != nil {
		t.Fatalf("decode backup: %v", err)
	}

	if backup.EntryCount != 2 {
		t.Errorf("expected 2 dbpedia entries, got %d", backup.EntryCount)
	}
	for _, e := range backup.Entries {
		if e.Source != "dbpedia" {
			t.Errorf("entry %s has source %q, want dbpedia", e.CacheKey, e.Source)
		}
	}
}

func TestSortedSources(t *testing.T) {
	got := sortedSources(map[string]int64{"wikidata": 3, "dbpedia": 5})
	if len(got) != 2 || got[0] != "dbpedia" || got[1] != "wikidata" {
		t.Errorf("sortedSources = %v, want [dbpedia wikidata]", got)
	}

	if got := sortedSources(nil); len(got) != 0 {
		t.Errorf("sortedSources(nil) = %v, want empty", got)
	}
}

func TestIssueIcon(t *testing.T) {
	tests := []struct {
		issueType string
		want      string
	}{
		{cache.IssueInvalidPayload, "❌"},
		{cache.IssueExpired, "⏰"},
		{cache.IssueKeyDrift, "⚠️ "},
		{cache.IssueOrphanVariant, "⚠️ "},
	}

	for _, tt := range tests {
		if got := issueIcon(tt.issueType); got != tt.want {
			t.Errorf("issueIcon(%q) = %q, want %q", tt.issueType, got, tt.want)
		}
	}
}
