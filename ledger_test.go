package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testResult(hash string, seq, score int) AnalysisResult {
	return AnalysisResult{
		CommitHash:      hash,
		ShortHash:       hash,
		Seq:             seq,
		Subject:         "subject " + hash,
		PrimaryCategory: "FIX-BUG",
		ScoreTotal:      score,
		Flags:           []string{},
	}
}

func TestLedger_AppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.jsonl")

	l, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if err := l.Append(testResult("aaa", 0, 40)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(testResult("bbb", 1, 55)); err != nil {
		t.Fatalf("append: %v", err)
	}
	l.Close()

	l2, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer l2.Close()

	if l2.Len() != 2 {
		t.Fatalf("expected 2 records after reload, got %d", l2.Len())
	}
	rec, ok := l2.Get("bbb")
	if !ok {
		t.Fatalf("expected record bbb after reload")
	}
	if rec.ScoreTotal != 55 {
		t.Fatalf("expected score 55, got %d", rec.ScoreTotal)
	}
}

func TestLedger_UpsertIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.jsonl")

	l, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if err := l.Upsert(testResult("aaa", 0, 10)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := l.Upsert(testResult("bbb", 1, 20)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Replace aaa twice, as repeated repair passes would.
	if err := l.Upsert(testResult("aaa", 0, 70)); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	if err := l.Upsert(testResult("aaa", 0, 70)); err != nil {
		t.Fatalf("upsert replace again: %v", err)
	}
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected exactly 2 lines after repeated upserts, got %d", len(lines))
	}
	if strings.Count(string(data), `"aaa"`) != 2 { // commit_hash and short_hash
		t.Fatalf("expected one record for aaa, file:\n%s", data)
	}

	l2, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer l2.Close()
	rec, _ := l2.Get("aaa")
	if rec.ScoreTotal != 70 {
		t.Fatalf("expected replaced score 70, got %d", rec.ScoreTotal)
	}
}

func TestLedger_RecordsSortedBySeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.jsonl")
	l, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer l.Close()

	l.Upsert(testResult("ccc", 2, 10))
	l.Upsert(testResult("aaa", 0, 10))
	l.Upsert(testResult("bbb", 1, 10))

	records := l.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"aaa", "bbb", "ccc"} {
		if records[i].CommitHash != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, records[i].CommitHash)
		}
	}
}

func TestVersionTag(t *testing.T) {
	cases := map[string]string{
		"v6.5..v6.6":    "v6_5_v6_6",
		"v6.10..v6.11":  "v6_10_v6_11",
		"HEAD~10..HEAD": "HEAD10_HEAD",
	}
	for in, want := range cases {
		if got := VersionTag(in); got != want {
			t.Fatalf("VersionTag(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestFailedRegister_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_commits_v6_5_v6_6.json")

	failed := []FailedCommit{
		{CommitHash: "aaa", ErrorType: KindTimeout, ErrorMsg: "deadline exceeded", Subject: "mm: fix", Timestamp: time.Now()},
		{CommitHash: "bbb", ErrorType: KindSchemaInvalid, ErrorMsg: "missing dimension", Subject: "net: fix", Timestamp: time.Now()},
	}
	if err := SaveFailedRegister(path, failed); err != nil {
		t.Fatalf("save register: %v", err)
	}

	loaded, err := LoadFailedRegister(path)
	if err != nil {
		t.Fatalf("load register: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}
	if loaded[0].CommitHash != "aaa" || loaded[0].ErrorType != KindTimeout {
		t.Fatalf("unexpected first entry: %+v", loaded[0])
	}
}

func TestFailedRegister_EmptySetRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.json")

	if err := SaveFailedRegister(path, []FailedCommit{{CommitHash: "aaa", ErrorType: KindOther}}); err != nil {
		t.Fatalf("save register: %v", err)
	}
	if err := SaveFailedRegister(path, nil); err != nil {
		t.Fatalf("save empty register: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected register file removed, stat err=%v", err)
	}

	loaded, err := LoadFailedRegister(path)
	if err != nil {
		t.Fatalf("load missing register: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for missing register, got %v", loaded)
	}
}
