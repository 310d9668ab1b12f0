package scoring

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func writeTables(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte(content), 0644); err != nil {
		t.Fatalf("write tables file: %v", err)
	}
}

func TestLoad_OverridesDefaultsKeyByKey(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTables(t, fsys, "scoring.yml", `
version: 1
threshold: 0.3
financeTerms:
  blockchain: 0.4
`)

	tables, err := Load(fsys, "scoring.yml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if tables.Threshold != 0.3 {
		t.Errorf("expected threshold 0.3, got %g", tables.Threshold)
	}
	if tables.FinanceTerms["blockchain"] != 0.4 {
		t.Errorf("expected new finance term, got %g", tables.FinanceTerms["blockchain"])
	}
	if tables.FinanceTerms["finance"] != 0.30 {
		t.Errorf("expected default finance terms to survive, got %g", tables.FinanceTerms["finance"])
	}
	if tables.MaxRelated != 5 {
		t.Errorf("expected default maxRelated, got %d", tables.MaxRelated)
	}
}

func TestLoad_RejectsUnknownVersion(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTables(t, fsys, "scoring.yml", "version: 99\n")

	_, err := Load(fsys, "scoring.yml")
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestLoad_RejectsNegativeThreshold(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTables(t, fsys, "scoring.yml", "version: 1\nthreshold: -0.5\n")

	if _, err := Load(fsys, "scoring.yml"); err == nil {
		t.Fatal("expected error for negative threshold")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(afero.NewMemMapFs(), "nope.yml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefault_FallsBackToDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()

	tables := LoadOrDefault(fsys, "", nil)
	if tables.Threshold != 0.12 {
		t.Errorf("empty path: expected default threshold, got %g", tables.Threshold)
	}

	tables = LoadOrDefault(fsys, "missing.yml", nil)
	if tables.Threshold != 0.12 {
		t.Errorf("missing file: expected default threshold, got %g", tables.Threshold)
	}

	writeTables(t, fsys, "broken.yml", "version: [not a number\n")
	tables = LoadOrDefault(fsys, "broken.yml", nil)
	if tables.Threshold != 0.12 {
		t.Errorf("broken file: expected default threshold, got %g", tables.Threshold)
	}
}
