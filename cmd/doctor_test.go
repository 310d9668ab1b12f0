/*
Copyright © 2026 finconcept contributors
*/
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantkb/finconcept/internal/logger"
	"github.com/quantkb/finconcept/internal/telemetry"
	"github.com/quantkb/finconcept/types"
)

func TestDoctor_CheckScoringTables_BuiltinDefaults(t *testing.T) {
	GlobalAppConfig.Scoring = types.ScoringConfig{}

	check := checkScoringTables()

	if check.Status != "ok" {
		t.Errorf("expected status ok, got %q with message %q", check.Status, check.Message)
	}
}

func TestDoctor_CheckScoringTables_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := "version: 1\nthreshold: 0.2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	GlobalAppConfig.Scoring = types.ScoringConfig{TablesFile: path}

	check := checkScoringTables()

	if check.Status != "ok" {
		t.Errorf("expected status ok, got %q with message %q", check.Status, check.Message)
	}
}

func TestDoctor_CheckScoringTables_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	GlobalAppConfig.Scoring = types.ScoringConfig{TablesFile: path}

	check := checkScoringTables()

	if check.Status != "fail" {
		t.Errorf("expected status fail for unparseable tables, got %q", check.Status)
	}
	if check.Hint == "" {
		t.Error("expected a hint for unparseable tables")
	}
}

func TestDoctor_CheckTelemetry_NeedsConsent(t *testing.T) {
	telemetry.SetConfigDir(t.TempDir())
	defer telemetry.SetConfigDir("")

	check := checkTelemetry()

	if check.Status != "warn" {
		t.Errorf("expected status warn before consent, got %q", check.Status)
	}
}

func TestDoctor_CheckTelemetry_Disabled(t *testing.T) {
	telemetry.SetConfigDir(t.TempDir())
	defer telemetry.SetConfigDir("")

	cfg, err := telemetry.Load()
	if err != nil {
		t.Fatalf("load telemetry config: %v", err)
	}
	cfg.Disable()
	if err := cfg.Save(); err != nil {
		t.Fatalf("save telemetry config: %v", err)
	}

	check := checkTelemetry()

	if check.Status != "ok" {
		t.Errorf("expected status ok after consent, got %q with message %q", check.Status, check.Message)
	}
	if check.Message != "Disabled" {
		t.Errorf("expected Disabled message, got %q", check.Message)
	}
}

func TestDoctor_EndpointFor(t *testing.T) {
	cfg := &types.AppConfig{
		Sources: types.SourcesConfig{
			DBpedia:  types.EndpointConfig{BaseURL: "https://lookup.dbpedia.org"},
			Wikidata: types.EndpointConfig{BaseURL: "https://www.wikidata.org/w/api.php"},
		},
	}

	if got := endpointFor(cfg, "wikidata").BaseURL; got != "https://www.wikidata.org/w/api.php" {
		t.Errorf("endpointFor(wikidata) = %q", got)
	}
	if got := endpointFor(cfg, "dbpedia").BaseURL; got != "https://lookup.dbpedia.org" {
		t.Errorf("endpointFor(dbpedia) = %q", got)
	}
}

func TestDoctor_CheckCrashLogs_None(t *testing.T) {
	logger.SetBasePath(t.TempDir())

	check := checkCrashLogs()

	if check.Status != "ok" {
		t.Errorf("expected status ok, got %q with message %q", check.Status, check.Message)
	}
}

func TestDoctor_CheckCrashLogs_Found(t *testing.T) {
	base := t.TempDir()
	logger.SetBasePath(base)

	crashDir := filepath.Join(base, logger.CrashLogDir)
	if err := os.MkdirAll(crashDir, 0o755); err != nil {
		t.Fatalf("mkdir crash dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(crashDir, "crash_20250101_120000.log"), []byte("boom"), 0o644); err != nil {
		t.Fatalf("write crash log: %v", err)
	}

	check := checkCrashLogs()

	if check.Status != "warn" {
		t.Errorf("expected status warn, got %q with message %q", check.Status, check.Message)
	}
	if check.Hint == "" {
		t.Error("expected a hint pointing at the crash log")
	}
}
