package main

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// HistoryStore keeps a SQLite record of every run and every score produced,
// so repeated runs over the same range can be compared later. It is optional:
// a nil store disables tracking without touching the pipeline.
type HistoryStore struct {
	db    *sql.DB
	runID int64
}

func OpenHistory(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		mode          TEXT NOT NULL DEFAULT 'analyze',
		version_range TEXT NOT NULL,
		author_filter TEXT DEFAULT '',
		workers       INTEGER NOT NULL,
		total         INTEGER DEFAULT 0,
		succeeded     INTEGER DEFAULT 0,
		failed        INTEGER DEFAULT 0,
		degraded      INTEGER DEFAULT 0,
		started_at    DATETIME NOT NULL,
		finished_at   DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_runs_range ON runs(version_range);

	CREATE TABLE IF NOT EXISTS score_history (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id           INTEGER NOT NULL,
		commit_hash      TEXT NOT NULL,
		primary_category TEXT NOT NULL,
		subsystem_prefix TEXT DEFAULT '',
		score_total      INTEGER NOT NULL,
		flags            TEXT DEFAULT '',
		scored_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sh_hash ON score_history(commit_hash);
	CREATE INDEX IF NOT EXISTS idx_sh_run ON score_history(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &HistoryStore{db: db}, nil
}

// BeginRun opens a run row; RecordScore attaches scores to it until EndRun.
func (h *HistoryStore) BeginRun(mode, versionRange, authorFilter string, workers int) error {
	res, err := h.db.Exec(
		`INSERT INTO runs (mode, version_range, author_filter, workers, started_at) VALUES (?, ?, ?, ?, ?)`,
		mode, versionRange, authorFilter, workers, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	h.runID, err = res.LastInsertId()
	return err
}

func (h *HistoryStore) EndRun(counts RunCounts) error {
	_, err := h.db.Exec(
		`UPDATE runs SET total = ?, succeeded = ?, failed = ?, degraded = ?, finished_at = ? WHERE id = ?`,
		counts.Total, counts.Succeeded, counts.Failed, counts.Degraded, time.Now().UTC(), h.runID,
	)
	return err
}

func (h *HistoryStore) RecordScore(rec AnalysisResult) error {
	_, err := h.db.Exec(
		`INSERT INTO score_history (run_id, commit_hash, primary_category, subsystem_prefix, score_total, flags)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.runID, rec.CommitHash, rec.PrimaryCategory, rec.SubsystemPrefix, rec.ScoreTotal, strings.Join(rec.Flags, ","),
	)
	return err
}

// ScoreHistory returns past totals for a commit, newest first. Useful for
// checking whether a repair improved on a degraded record.
func (h *HistoryStore) ScoreHistory(hash string) ([]int, error) {
	rows, err := h.db.Query(
		`SELECT score_total FROM score_history WHERE commit_hash = ? ORDER BY id DESC`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []int
	for rows.Next() {
		var t int
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (h *HistoryStore) Close() error {
	return h.db.Close()
}
