package main

import (
	"path/filepath"
	"testing"
)

func openTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryStore_RunLifecycle(t *testing.T) {
	h := openTestHistory(t)

	if err := h.BeginRun("analyze", "v6.5..v6.6", "all", 3); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if h.runID == 0 {
		t.Fatalf("expected run id assigned")
	}
	if err := h.EndRun(RunCounts{Total: 10, Succeeded: 9, Failed: 1, Degraded: 2}); err != nil {
		t.Fatalf("end run: %v", err)
	}

	var succeeded, degraded int
	row := h.db.QueryRow(`SELECT succeeded, degraded FROM runs WHERE id = ?`, h.runID)
	if err := row.Scan(&succeeded, &degraded); err != nil {
		t.Fatalf("read run row: %v", err)
	}
	if succeeded != 9 || degraded != 2 {
		t.Fatalf("expected counts persisted, got succeeded=%d degraded=%d", succeeded, degraded)
	}
}

func TestHistoryStore_ScoreHistory(t *testing.T) {
	h := openTestHistory(t)
	if err := h.BeginRun("analyze", "v6.5..v6.6", "all", 1); err != nil {
		t.Fatalf("begin run: %v", err)
	}

	first := AnalysisResult{CommitHash: "aaa", PrimaryCategory: "FIX-BUG", SubsystemPrefix: "mm/", ScoreTotal: 12, Flags: []string{FlagAgentError}}
	if err := h.RecordScore(first); err != nil {
		t.Fatalf("record score: %v", err)
	}

	if err := h.BeginRun("repair", "v6.5..v6.6", "all", 1); err != nil {
		t.Fatalf("begin repair run: %v", err)
	}
	second := AnalysisResult{CommitHash: "aaa", PrimaryCategory: "FIX-BUG", SubsystemPrefix: "mm/", ScoreTotal: 48, Flags: []string{}}
	if err := h.RecordScore(second); err != nil {
		t.Fatalf("record repaired score: %v", err)
	}

	totals, err := h.ScoreHistory("aaa")
	if err != nil {
		t.Fatalf("score history: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(totals))
	}
	if totals[0] != 48 || totals[1] != 12 {
		t.Fatalf("expected newest first [48 12], got %v", totals)
	}

	if totals, err := h.ScoreHistory("missing"); err != nil || len(totals) != 0 {
		t.Fatalf("expected empty history for unknown hash, got %v err=%v", totals, err)
	}
}
