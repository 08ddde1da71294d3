package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// RunCounts summarizes a dispatcher run. Degraded counts commits that
// reached the ledger through the fallback scorer; Skipped counts commits
// left unprocessed by a cancellation. Total is always
// Succeeded + Failed + Skipped.
type RunCounts struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Degraded  int
}

type progressCounter struct {
	mu      sync.Mutex
	current int
	total   int
}

func (p *progressCounter) increment() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	return p.current
}

// Dispatcher fans commits out to a fixed pool of workers. Each worker runs
// classify -> normalize -> persist for one commit at a time; any typed
// classifier failure converts that one commit to the fallback path without
// touching its siblings. All persistence funnels through the single writer
// loop in Run.
type Dispatcher struct {
	Classifier    Classifier
	Ledger        *Ledger
	Keywords      *KeywordTable
	RepoPath      string
	Workers       int
	MaxAttempts   int
	TrackDegraded bool
	History       *HistoryStore
}

type workerResult struct {
	record  AnalysisResult
	subject string
	errKind string // non-empty when the fallback scorer produced the record
	skipped bool   // cancellation hit before this commit started
}

// Run processes every commit and returns the run counts plus the entries
// for the failed-commit register. Every commit yields exactly one ledger
// record or one register entry; none is silently dropped. On context
// cancellation, in-flight records finish their atomic write and the rest of
// the input is counted as skipped.
func (d *Dispatcher) Run(ctx context.Context, commits []CommitRecord) (RunCounts, []FailedCommit) {
	counts := RunCounts{Total: len(commits)}
	if len(commits) == 0 {
		return counts, nil
	}

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	attempts := d.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	commitCh := make(chan CommitRecord, len(commits))
	resultCh := make(chan workerResult, len(commits))
	progress := &progressCounter{total: len(commits)}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for commit := range commitCh {
				if ctx.Err() != nil {
					resultCh <- workerResult{skipped: true} // drain without starting new work
					continue
				}
				resultCh <- d.processCommit(ctx, commit, attempts, progress)
			}
		}()
	}

	for _, c := range commits {
		commitCh <- c
	}
	close(commitCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Single writer: the only goroutine that touches the ledger.
	var failed []FailedCommit
	for res := range resultCh {
		if res.skipped {
			counts.Skipped++
			continue
		}
		if err := d.Ledger.Upsert(res.record); err != nil {
			log.Printf("ledger write hash=%s err=%v", res.record.ShortHash, err)
			counts.Failed++
			failed = append(failed, FailedCommit{
				CommitHash: res.record.CommitHash,
				ErrorType:  KindWriteError,
				ErrorMsg:   err.Error(),
				Subject:    truncateString(res.subject, 100),
				Timestamp:  time.Now(),
			})
			continue
		}
		counts.Succeeded++
		if res.errKind != "" {
			counts.Degraded++
			if d.TrackDegraded {
				failed = append(failed, FailedCommit{
					CommitHash: res.record.CommitHash,
					ErrorType:  res.errKind,
					ErrorMsg:   "classifier failed with " + res.errKind,
					Subject:    truncateString(res.subject, 100),
					Timestamp:  time.Now(),
				})
			}
		}
		if d.History != nil {
			if err := d.History.RecordScore(res.record); err != nil {
				log.Printf("history write hash=%s err=%v", res.record.ShortHash, err)
			}
		}
	}

	if counts.Skipped > 0 {
		log.Printf("dispatch cancelled: %d commits skipped before starting", counts.Skipped)
	}
	log.Printf("dispatch done total=%d succeeded=%d failed=%d skipped=%d degraded=%d",
		counts.Total, counts.Succeeded, counts.Failed, counts.Skipped, counts.Degraded)
	return counts, failed
}

func (d *Dispatcher) processCommit(ctx context.Context, commit CommitRecord, attempts int, progress *progressCounter) workerResult {
	current := progress.increment()
	log.Printf("[%d/%d] analyzing hash=%s subject=%q", current, progress.total, commit.ShortHash(), truncateString(commit.Subject, 60))

	EnrichCommit(ctx, d.RepoPath, &commit)

	var raw *RawAnalysis
	var errKind string
	for attempt := 1; attempt <= attempts; attempt++ {
		var err error
		raw, err = d.Classifier.Classify(ctx, commit)
		if err == nil {
			errKind = ""
			break
		}

		var cerr *ClassifyError
		if errors.As(err, &cerr) {
			errKind = cerr.Kind
		} else {
			errKind = KindOther
		}
		log.Printf("classify hash=%s attempt=%d/%d kind=%s err=%v", commit.ShortHash(), attempt, attempts, errKind, err)

		// Retry only the transient kinds; a schema-invalid response is a
		// contract violation the next call is unlikely to cure.
		if errKind != KindTimeout && errKind != KindMalformed {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if errKind != "" {
		return workerResult{
			record:  FallbackResult(commit, errKind, d.Keywords),
			subject: commit.Subject,
			errKind: errKind,
		}
	}
	return workerResult{record: BuildResult(commit, raw), subject: commit.Subject}
}
