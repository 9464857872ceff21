package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pgfx-sync/agent/internal/config"
)

func testSettings(t *testing.T, remoteURL string) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	return &config.Settings{
		RemoteURL:            remoteURL,
		RemoteKey:            "key",
		WatchPath:            dir,
		QueueDBPath:          filepath.Join(dir, "sync_queue", "pending.db"),
		DebounceSeconds:      0.05,
		RetryDelay:           0.1,
		MaxRetries:           3,
		QueueProcessInterval: 1,
		LogLevel:             "info",
	}
}

func TestAgentStartRefusesSecondInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	settings := testSettings(t, srv.URL)

	a1, err := New(settings, nil)
	if err != nil {
		t.Fatalf("New a1: %v", err)
	}
	if err := a1.Start(context.Background()); err != nil {
		t.Fatalf("Start a1: %v", err)
	}
	defer a1.Stop()

	a2, err := New(settings, nil)
	if err != nil {
		t.Fatalf("New a2: %v", err)
	}
	if err := a2.Start(context.Background()); err == nil {
		t.Fatal("expected second agent instance to fail acquiring the lock")
	}
}

func TestAgentUploadsFileDroppedAfterStart(t *testing.T) {
	var inserted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode([]any{})
			return
		}
		inserted = true
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	settings := testSettings(t, srv.URL)
	a, err := New(settings, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop()

	path := filepath.Join(settings.WatchPath, "PGFX_live_data_export GameID=1.json")
	if err := os.WriteFile(path, []byte(`{"ID":"S1","Hands":[{}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for !inserted {
		select {
		case <-tick.C:
		case <-deadline:
			t.Fatal("file was never uploaded within timeout")
		}
	}
}
