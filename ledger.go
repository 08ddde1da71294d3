package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Ledger is the persisted store of finished AnalysisResults: one JSON line
// per commit, keyed by commit hash. All writes go through one mutex-guarded
// path so concurrent completions never interleave partial lines. Upsert
// replaces the line for an existing hash instead of appending a duplicate.
type Ledger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	records map[string]AnalysisResult
}

// OpenLedger opens (or creates) the ledger file and loads any existing
// records so that later upserts are keyed against them.
func OpenLedger(path string) (*Ledger, error) {
	records := make(map[string]AnalysisResult)

	if data, err := os.ReadFile(path); err == nil {
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var rec AnalysisResult
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return nil, fmt.Errorf("ledger %s line %d: %w", path, lineNo, err)
			}
			records[rec.CommitHash] = rec
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return &Ledger{path: path, file: file, records: records}, nil
}

// Append writes one record as a single indivisible line. The commit hash
// must not already be present; use Upsert when it may be.
func (l *Ledger) Append(rec AnalysisResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[rec.CommitHash]; exists {
		return l.rewriteLocked(rec)
	}
	return l.appendLocked(rec)
}

// Upsert replaces the existing line for the record's hash if present,
// otherwise appends. Running it any number of times leaves exactly one line
// per hash.
func (l *Ledger) Upsert(rec AnalysisResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[rec.CommitHash]; exists {
		return l.rewriteLocked(rec)
	}
	return l.appendLocked(rec)
}

func (l *Ledger) appendLocked(rec AnalysisResult) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ShortHash, err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("append record %s: %w", rec.ShortHash, err)
	}
	l.records[rec.CommitHash] = rec
	return nil
}

// rewriteLocked replaces the record in memory and atomically rewrites the
// whole file through a temp file and rename, so a crash mid-rewrite never
// leaves a torn ledger.
func (l *Ledger) rewriteLocked(rec AnalysisResult) error {
	l.records[rec.CommitHash] = rec

	var buf strings.Builder
	for _, r := range l.sortedLocked() {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", r.ShortHash, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("write ledger temp: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close ledger before rename: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("reopen ledger: %w", err)
	}
	l.file = file
	return nil
}

// Records returns all ledger records sorted by input sequence position.
func (l *Ledger) Records() []AnalysisResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked()
}

// Get returns the record for the commit hash, if present.
func (l *Ledger) Get(hash string) (AnalysisResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[hash]
	return rec, ok
}

// Has reports whether a record exists for the commit hash.
func (l *Ledger) Has(hash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[hash]
	return ok
}

// Len returns the number of distinct commit records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *Ledger) sortedLocked() []AnalysisResult {
	out := make([]AnalysisResult, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CommitHash < out[j].CommitHash
	})
	return out
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// VersionTag sanitizes a version range for use in file names,
// e.g. "v6.5..v6.6" -> "v6_5_v6_6".
func VersionTag(versionRange string) string {
	r := strings.NewReplacer("..", "_", ".", "_", "^", "", "~", "", "/", "_")
	return r.Replace(versionRange)
}

// LedgerPath and FailedPath name the per-range output files.
func LedgerPath(outputDir, versionRange string) string {
	return filepath.Join(outputDir, fmt.Sprintf("commit_scores_%s.jsonl", VersionTag(versionRange)))
}

func FailedPath(outputDir, versionRange string) string {
	return filepath.Join(outputDir, fmt.Sprintf("failed_commits_%s.json", VersionTag(versionRange)))
}

// SaveFailedRegister writes the active failed set. An empty set removes the
// register file entirely: no failures means nothing left to repair.
func SaveFailedRegister(path string, failed []FailedCommit) error {
	if len(failed) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove failed register: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(failed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failed register: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write failed register temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace failed register: %w", err)
	}
	return nil
}

// LoadFailedRegister reads the active failed set; a missing file is an empty
// set, not an error.
func LoadFailedRegister(path string) ([]FailedCommit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read failed register %s: %w", path, err)
	}
	var failed []FailedCommit
	if err := json.Unmarshal(data, &failed); err != nil {
		return nil, fmt.Errorf("parse failed register %s: %w", path, err)
	}
	return failed, nil
}
