package usage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "usage_test.db")
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(tempDBPath(t))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenStoreCreatesFile(t *testing.T) {
	path := tempDBPath(t)
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("database file should exist after OpenStore")
	}
}

func TestInsertAndQueryUnsynced(t *testing.T) {
	store := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	record := Record{
		RequestID:     "req-001",
		Attempt:       1,
		Source:        "groq",
		Model:         "llama3-8b-8192",
		Archetype:     "Scout",
		Status:        StatusSuccess,
		StartedAt:     now,
		CompletedAt:   now.Add(3 * time.Second),
		DurationMs:    3000,
		RequestBytes:  1024,
		ResponseBytes: 4096,
	}

	if err := store.Insert(record); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	records, err := store.QueryUnsynced(10)
	if err != nil {
		t.Fatalf("QueryUnsynced: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.RequestID != "req-001" {
		t.Errorf("RequestID = %q, want %q", r.RequestID, "req-001")
	}
	if r.Source != "groq" {
		t.Errorf("Source = %q, want %q", r.Source, "groq")
	}
	if r.Archetype != "Scout" {
		t.Errorf("Archetype = %q, want %q", r.Archetype, "Scout")
	}
	if r.DurationMs != 3000 {
		t.Errorf("DurationMs = %d, want 3000", r.DurationMs)
	}
	if r.ResponseBytes != 4096 {
		t.Errorf("ResponseBytes = %d, want 4096", r.ResponseBytes)
	}
	if !r.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", r.StartedAt, now)
	}
	if r.ID == 0 {
		t.Error("ID should be set after insert")
	}
}

func TestInsertDuplicateAttemptIgnored(t *testing.T) {
	store := openTestStore(t)

	now := time.Now().UTC()
	record := Record{
		RequestID:   "dup-req",
		Attempt:     1,
		Source:      "groq",
		Status:      StatusSuccess,
		StartedAt:   now,
		CompletedAt: now,
	}

	if err := store.Insert(record); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := store.Insert(record); err != nil {
		t.Fatalf("duplicate Insert should not error: %v", err)
	}

	// Same request, next attempt is a distinct row
	record.Attempt = 2
	if err := store.Insert(record); err != nil {
		t.Fatalf("second attempt Insert: %v", err)
	}

	records, err := store.QueryUnsynced(10)
	if err != nil {
		t.Fatalf("QueryUnsynced: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestMarkSynced(t *testing.T) {
	store := openTestStore(t)

	now := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Insert(Record{
			RequestID:   id,
			Attempt:     1,
			Source:      "groq",
			Status:      StatusSuccess,
			StartedAt:   now,
			CompletedAt: now.Add(time.Duration(i) * time.Second),
			DurationMs:  int64(i * 1000),
		}); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	records, err := store.QueryUnsynced(10)
	if err != nil {
		t.Fatalf("QueryUnsynced: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 unsynced, got %d", len(records))
	}

	if err := store.MarkSynced([]int64{records[0].ID, records[1].ID}); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	remaining, err := store.QueryUnsynced(10)
	if err != nil {
		t.Fatalf("QueryUnsynced after mark: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining unsynced, got %d", len(remaining))
	}
	if remaining[0].RequestID != "c" {
		t.Errorf("remaining RequestID = %q, want %q", remaining[0].RequestID, "c")
	}
}

func TestMarkSyncedEmpty(t *testing.T) {
	store := openTestStore(t)

	if err := store.MarkSynced(nil); err != nil {
		t.Fatalf("MarkSynced(nil): %v", err)
	}
	if err := store.MarkSynced([]int64{}); err != nil {
		t.Fatalf("MarkSynced([]): %v", err)
	}
}

func TestQueryUnsyncedLimit(t *testing.T) {
	store := openTestStore(t)

	now := time.Now().UTC()
	for i := range 5 {
		if err := store.Insert(Record{
			RequestID:   fmt.Sprintf("req-%d", i),
			Attempt:     1,
			Source:      "groq",
			Status:      StatusSuccess,
			StartedAt:   now,
			CompletedAt: now,
		}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	records, err := store.QueryUnsynced(2)
	if err != nil {
		t.Fatalf("QueryUnsynced: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records with limit=2, got %d", len(records))
	}
}

func TestTotalsCountsOnlySuccesses(t *testing.T) {
	store := openTestStore(t)

	now := time.Now().UTC()
	attempts := []Record{
		{RequestID: "r1", Attempt: 1, Source: "groq", Status: StatusFailed, ErrorMessage: "network"},
		{RequestID: "r1", Attempt: 2, Source: "ollama", Status: StatusSuccess},
		{RequestID: "r2", Attempt: 1, Source: "groq", Status: StatusSuccess},
		{RequestID: "r3", Attempt: 1, Source: "groq", Status: StatusSuccess},
	}
	for _, r := range attempts {
		r.StartedAt, r.CompletedAt = now, now
		if err := store.Insert(r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	totals, err := store.Totals()
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals["groq"] != 2 {
		t.Errorf("groq total = %d, want 2", totals["groq"])
	}
	if totals["ollama"] != 1 {
		t.Errorf("ollama total = %d, want 1", totals["ollama"])
	}
}

func TestInsertWithErrorMessage(t *testing.T) {
	store := openTestStore(t)

	now := time.Now().UTC()
	err := store.Record(Record{
		RequestID:    "fail-req",
		Attempt:      1,
		Source:       "groq",
		Status:       StatusFailed,
		StartedAt:    now,
		CompletedAt:  now,
		DurationMs:   50,
		ErrorMessage: "groq returned status 503",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	records, err := store.QueryUnsynced(10)
	if err != nil {
		t.Fatalf("QueryUnsynced: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ErrorMessage != "groq returned status 503" {
		t.Errorf("ErrorMessage = %q, want %q", records[0].ErrorMessage, "groq returned status 503")
	}
}

func TestRecordReportsWriteFailure(t *testing.T) {
	store, err := OpenStore(tempDBPath(t))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	store.Close()

	now := time.Now().UTC()
	if err := store.Record(Record{RequestID: "r", Attempt: 1, Source: "groq", Status: StatusSuccess, StartedAt: now, CompletedAt: now}); err == nil {
		t.Error("Record on a closed ledger should return the write error")
	}
}

func TestPendingRequestsPreservesTimestamps(t *testing.T) {
	store := openTestStore(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	insertAttempt(t, store, "ts", 1, "groq", StatusSuccess, started.Add(time.Second))

	requests, err := store.PendingRequests(10, started.Add(time.Hour))
	if err != nil {
		t.Fatalf("PendingRequests: %v", err)
	}
	if len(requests) != 1 || len(requests[0].Attempts) != 1 {
		t.Fatalf("PendingRequests = %+v, want one request with one attempt", requests)
	}
	r := requests[0].Attempts[0]
	if !r.CompletedAt.Equal(started.Add(time.Second)) {
		t.Errorf("CompletedAt = %v, want %v", r.CompletedAt, started.Add(time.Second))
	}
	if requests[0].Outcome() != "groq" {
		t.Errorf("Outcome = %q, want groq", requests[0].Outcome())
	}
}
