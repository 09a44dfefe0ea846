package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *Store, rec Record) {
	t.Helper()
	if err := s.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestRecordAndSummary(t *testing.T) {
	s := testStore(t)
	now := time.Now().UTC()

	record(t, s, Record{Timestamp: now, SessionID: "s1", Model: "gpt-4o", PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120})
	record(t, s, Record{Timestamp: now, SessionID: "s1", Model: "gpt-4o", PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60})
	record(t, s, Record{Timestamp: now, SessionID: "s2", Model: "gpt-4o-mini", PromptTokens: 30, CompletionTokens: 5, TotalTokens: 35})

	sum, err := s.Summary(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 3 {
		t.Errorf("records = %d, want 3", sum.TotalRecords)
	}
	if sum.TotalPromptTokens != 180 {
		t.Errorf("prompt tokens = %d, want 180", sum.TotalPromptTokens)
	}
	if sum.TotalCompletionTokens != 35 {
		t.Errorf("completion tokens = %d, want 35", sum.TotalCompletionTokens)
	}
	if sum.TotalTokens != 215 {
		t.Errorf("total tokens = %d, want 215", sum.TotalTokens)
	}
}

func TestSummaryWindow(t *testing.T) {
	s := testStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	record(t, s, Record{Timestamp: now.Add(-48 * time.Hour), Model: "m", TotalTokens: 10})
	record(t, s, Record{Timestamp: now, Model: "m", TotalTokens: 20})

	sum, err := s.Summary(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 1 {
		t.Errorf("records in window = %d, want 1", sum.TotalRecords)
	}
	if sum.TotalTokens != 20 {
		t.Errorf("total tokens = %d, want 20", sum.TotalTokens)
	}

	// End bound is exclusive.
	sum, err = s.Summary(now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 0 {
		t.Errorf("records = %d, want 0 with exclusive end", sum.TotalRecords)
	}
}

func TestSummaryEmpty(t *testing.T) {
	s := testStore(t)

	sum, err := s.Summary(time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 0 || sum.TotalTokens != 0 {
		t.Errorf("empty store summary = %+v, want zeros", sum)
	}
}

func TestSummaryByModel(t *testing.T) {
	s := testStore(t)
	now := time.Now().UTC()

	record(t, s, Record{Timestamp: now, Model: "gpt-4o", TotalTokens: 100})
	record(t, s, Record{Timestamp: now, Model: "gpt-4o", TotalTokens: 50})
	record(t, s, Record{Timestamp: now, Model: "gpt-4o-mini", TotalTokens: 10})

	byModel, err := s.SummaryByModel(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("SummaryByModel: %v", err)
	}
	if len(byModel) != 2 {
		t.Fatalf("got %d models, want 2", len(byModel))
	}
	if got := byModel["gpt-4o"]; got == nil || got.TotalRecords != 2 || got.TotalTokens != 150 {
		t.Errorf("gpt-4o summary = %+v, want 2 records / 150 tokens", got)
	}
	if got := byModel["gpt-4o-mini"]; got == nil || got.TotalTokens != 10 {
		t.Errorf("gpt-4o-mini summary = %+v, want 10 tokens", got)
	}
}

func TestSummaryBySession(t *testing.T) {
	s := testStore(t)
	now := time.Now().UTC()

	record(t, s, Record{Timestamp: now, SessionID: "s1", Model: "m", TotalTokens: 40})
	record(t, s, Record{Timestamp: now, Model: "m", TotalTokens: 7}) // no session

	bySession, err := s.SummaryBySession(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("SummaryBySession: %v", err)
	}
	if got := bySession["s1"]; got == nil || got.TotalTokens != 40 {
		t.Errorf("s1 summary = %+v, want 40 tokens", got)
	}
	if got := bySession[""]; got == nil || got.TotalTokens != 7 {
		t.Errorf("sessionless summary = %+v, want 7 tokens", got)
	}
}

func TestRecordGeneratesID(t *testing.T) {
	s := testStore(t)

	record(t, s, Record{Model: "m", TotalTokens: 1})
	record(t, s, Record{Model: "m", TotalTokens: 1})

	sum, err := s.Summary(time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	// With generated IDs neither insert conflicts.
	if sum.TotalRecords != 2 {
		t.Errorf("records = %d, want 2", sum.TotalRecords)
	}
}

func TestNewStoreBadPath(t *testing.T) {
	if _, err := NewStore(filepath.Join(t.TempDir(), "missing", "nested", "usage.db")); err == nil {
		t.Fatal("expected error for uncreatable path")
	}
}
