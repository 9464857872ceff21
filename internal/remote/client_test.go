package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFindByDigestFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "file_hash=eq.abc123") {
			t.Errorf("query = %q, missing digest filter", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Row{{FileHash: "abc123"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	found, err := c.FindByDigest(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("FindByDigest: %v", err)
	}
	if !found {
		t.Error("found = false, want true")
	}
}

func TestFindByDigestNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Row{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	found, err := c.FindByDigest(context.Background(), "nope")
	if err != nil {
		t.Fatalf("FindByDigest: %v", err)
	}
	if found {
		t.Error("found = true, want false")
	}
}

func TestInsertSetsIgnoreDuplicatesPreference(t *testing.T) {
	var gotPrefer, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	err := c.Insert(context.Background(), Row{FileHash: "abc123", ID: "S1"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !strings.Contains(gotPrefer, "resolution=ignore-duplicates") {
		t.Errorf("Prefer header = %q, missing ignore-duplicates", gotPrefer)
	}
	if !strings.Contains(gotQuery, "on_conflict=file_hash") {
		t.Errorf("query = %q, missing on_conflict", gotQuery)
	}
}

func TestInsertRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	if err := c.Insert(context.Background(), Row{FileHash: "x"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestInsertNonRetryableError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	if err := c.Insert(context.Background(), Row{FileHash: "x"}); err == nil {
		t.Fatal("expected error on 400")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}
}
