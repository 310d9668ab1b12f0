package scoring

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForThreshold(t *testing.T, w *Watcher, want float64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if w.Tables().Threshold == want {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("threshold never reached %g, still %g", want, w.Tables().Threshold)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yml")
	if err := os.WriteFile(path, []byte("version: 1\nthreshold: 0.2\n"), 0644); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	w, err := NewWatcher(path, quietLogger())
	if err != nil {
		t.Fatalf("create watcher: %v", err)
	}
	defer w.Stop()

	if got := w.Tables().Threshold; got != 0.2 {
		t.Fatalf("expected initial threshold 0.2, got %g", got)
	}

	if err := os.WriteFile(path, []byte("version: 1\nthreshold: 0.5\n"), 0644); err != nil {
		t.Fatalf("rewrite tables: %v", err)
	}
	waitForThreshold(t, w, 0.5)
}

func TestWatcher_KeepsTablesOnBadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yml")
	if err := os.WriteFile(path, []byte("version: 1\nthreshold: 0.2\n"), 0644); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	w, err := NewWatcher(path, quietLogger())
	if err != nil {
		t.Fatalf("create watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("version: [broken\n"), 0644); err != nil {
		t.Fatalf("rewrite tables: %v", err)
	}

	// Give the debounced reload time to run, then confirm nothing changed
	time.Sleep(600 * time.Millisecond)
	if got := w.Tables().Threshold; got != 0.2 {
		t.Errorf("expected previous tables to survive a bad write, got threshold %g", got)
	}
}

func TestWatcher_MissingFileStartsWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoring.yml")

	w, err := NewWatcher(path, quietLogger())
	if err != nil {
		t.Fatalf("create watcher: %v", err)
	}
	defer w.Stop()

	if got := w.Tables().Threshold; got != 0.12 {
		t.Fatalf("expected default threshold before file exists, got %g", got)
	}

	if err := os.WriteFile(path, []byte("version: 1\nthreshold: 0.4\n"), 0644); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	waitForThreshold(t, w, 0.4)
}
