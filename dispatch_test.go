package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeClassifier returns canned responses per hash and records call counts.
type fakeClassifier struct {
	mu        sync.Mutex
	calls     map[string]int
	responses map[string]string // hash -> response text; missing means error
	errKinds  map[string]string // hash -> ClassifyError kind to return
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{
		calls:     make(map[string]int),
		responses: make(map[string]string),
		errKinds:  make(map[string]string),
	}
}

func (f *fakeClassifier) Classify(_ context.Context, commit CommitRecord) (*RawAnalysis, error) {
	f.mu.Lock()
	f.calls[commit.Hash]++
	f.mu.Unlock()

	if kind, ok := f.errKinds[commit.Hash]; ok {
		return nil, &ClassifyError{Kind: kind, Hash: commit.Hash}
	}
	text, ok := f.responses[commit.Hash]
	if !ok {
		return nil, &ClassifyError{Kind: KindOther, Hash: commit.Hash}
	}
	return ParseRawAnalysis(commit.Hash, text)
}

func (f *fakeClassifier) callCount(hash string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[hash]
}

func testDispatcher(t *testing.T, c Classifier) (*Dispatcher, *Ledger) {
	t.Helper()
	dir := t.TempDir()
	ledger, err := OpenLedger(filepath.Join(dir, "scores.jsonl"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	return &Dispatcher{
		Classifier:  c,
		Ledger:      ledger,
		RepoPath:    dir, // not a git repo; enrichment fails soft
		Workers:     3,
		MaxAttempts: 3,
	}, ledger
}

func testCommits(n int) []CommitRecord {
	commits := make([]CommitRecord, n)
	for i := range commits {
		commits[i] = CommitRecord{
			Hash:    fmt.Sprintf("hash%04d", i),
			Subject: fmt.Sprintf("mm: fix bug %d", i),
			Files:   []string{"mm/page_alloc.c"},
			Seq:     i,
		}
	}
	return commits
}

func TestDispatcherRun_EmptyInput(t *testing.T) {
	d, _ := testDispatcher(t, newFakeClassifier())
	counts, failed := d.Run(context.Background(), nil)
	if counts.Total != 0 || counts.Succeeded != 0 {
		t.Fatalf("expected zero counts, got %+v", counts)
	}
	if failed != nil {
		t.Fatalf("expected no failed commits, got %v", failed)
	}
}

func TestDispatcherRun_AllSucceed(t *testing.T) {
	fc := newFakeClassifier()
	commits := testCommits(5)
	for _, c := range commits {
		fc.responses[c.Hash] = validResponse
	}
	d, ledger := testDispatcher(t, fc)

	counts, failed := d.Run(context.Background(), commits)

	if counts.Total != 5 || counts.Succeeded != 5 || counts.Failed != 0 || counts.Degraded != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failed commits, got %v", failed)
	}
	if ledger.Len() != 5 {
		t.Fatalf("expected 5 ledger records, got %d", ledger.Len())
	}
	records := ledger.Records()
	for i, rec := range records {
		if rec.Seq != i {
			t.Fatalf("expected records in input order, position %d has seq %d", i, rec.Seq)
		}
		if rec.HasFlag(FlagAgentError) {
			t.Fatalf("expected no fallback flags on %s", rec.CommitHash)
		}
	}
}

func TestDispatcherRun_FailureIsolation(t *testing.T) {
	fc := newFakeClassifier()
	commits := testCommits(4)
	fc.responses[commits[0].Hash] = validResponse
	fc.errKinds[commits[1].Hash] = KindSchemaInvalid
	fc.responses[commits[2].Hash] = validResponse
	fc.errKinds[commits[3].Hash] = KindOther
	d, ledger := testDispatcher(t, fc)

	counts, _ := d.Run(context.Background(), commits)

	if counts.Succeeded != 4 {
		t.Fatalf("expected all 4 commits persisted, got %d", counts.Succeeded)
	}
	if counts.Degraded != 2 {
		t.Fatalf("expected 2 degraded commits, got %d", counts.Degraded)
	}
	if ledger.Len() != 4 {
		t.Fatalf("expected every commit in the ledger, got %d", ledger.Len())
	}
	rec, _ := ledger.Get(commits[1].Hash)
	if !rec.HasFlag(FlagAgentError) {
		t.Fatalf("expected fallback record for failed commit, flags=%v", rec.Flags)
	}
	rec, _ = ledger.Get(commits[0].Hash)
	if rec.HasFlag(FlagAgentError) {
		t.Fatalf("expected clean record for succeeding sibling, flags=%v", rec.Flags)
	}
}

func TestDispatcherRun_RetriesOnlyTransientKinds(t *testing.T) {
	fc := newFakeClassifier()
	commits := testCommits(3)
	fc.errKinds[commits[0].Hash] = KindTimeout
	fc.errKinds[commits[1].Hash] = KindMalformed
	fc.errKinds[commits[2].Hash] = KindSchemaInvalid
	d, _ := testDispatcher(t, fc)

	d.Run(context.Background(), commits)

	if got := fc.callCount(commits[0].Hash); got != 3 {
		t.Fatalf("expected timeout retried to max attempts (3), got %d calls", got)
	}
	if got := fc.callCount(commits[1].Hash); got != 3 {
		t.Fatalf("expected malformed retried to max attempts (3), got %d calls", got)
	}
	if got := fc.callCount(commits[2].Hash); got != 1 {
		t.Fatalf("expected schema-invalid not retried, got %d calls", got)
	}
}

func TestDispatcherRun_TrackDegradedRegistersFailures(t *testing.T) {
	fc := newFakeClassifier()
	commits := testCommits(2)
	fc.responses[commits[0].Hash] = validResponse
	fc.errKinds[commits[1].Hash] = KindTimeout
	d, _ := testDispatcher(t, fc)
	d.TrackDegraded = true

	_, failed := d.Run(context.Background(), commits)

	if len(failed) != 1 {
		t.Fatalf("expected 1 register entry, got %d", len(failed))
	}
	if failed[0].CommitHash != commits[1].Hash {
		t.Fatalf("expected failing hash registered, got %s", failed[0].CommitHash)
	}
	if failed[0].ErrorType != KindTimeout {
		t.Fatalf("expected TIMEOUT error type, got %s", failed[0].ErrorType)
	}
}

func TestDispatcherRun_UntrackedDegradedStillCounted(t *testing.T) {
	fc := newFakeClassifier()
	commits := testCommits(2)
	fc.errKinds[commits[0].Hash] = KindOther
	fc.errKinds[commits[1].Hash] = KindOther
	d, _ := testDispatcher(t, fc)
	d.TrackDegraded = false

	counts, failed := d.Run(context.Background(), commits)

	if counts.Degraded != 2 {
		t.Fatalf("expected 2 degraded, got %d", counts.Degraded)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no register entries when tracking is off, got %d", len(failed))
	}
}

func TestDispatcherRun_CancelledContextSkipsRemaining(t *testing.T) {
	fc := newFakeClassifier()
	commits := testCommits(10)
	for _, c := range commits {
		fc.responses[c.Hash] = validResponse
	}
	d, ledger := testDispatcher(t, fc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	counts, _ := d.Run(ctx, commits)

	if counts.Succeeded != 0 {
		t.Fatalf("expected no commits processed under a cancelled context, got %d", counts.Succeeded)
	}
	if counts.Skipped != 10 {
		t.Fatalf("expected all 10 commits counted as skipped, got %d", counts.Skipped)
	}
	if counts.Total != counts.Succeeded+counts.Failed+counts.Skipped {
		t.Fatalf("counts do not add up: %+v", counts)
	}
	if ledger.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d records", ledger.Len())
	}
}

// stallingClassifier blocks one hash until released; all other hashes go to
// the wrapped classifier.
type stallingClassifier struct {
	inner   Classifier
	hash    string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stallingClassifier) Classify(ctx context.Context, commit CommitRecord) (*RawAnalysis, error) {
	if commit.Hash == s.hash {
		s.once.Do(func() { close(s.started) })
		<-s.release
		return nil, &ClassifyError{Kind: KindTimeout, Hash: commit.Hash}
	}
	return s.inner.Classify(ctx, commit)
}

func TestDispatcherRun_StalledCallDoesNotBlockSiblings(t *testing.T) {
	fc := newFakeClassifier()
	commits := testCommits(6)
	for _, c := range commits {
		fc.responses[c.Hash] = validResponse
	}
	stalled := commits[0].Hash
	sc := &stallingClassifier{
		inner:   fc,
		hash:    stalled,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	d, ledger := testDispatcher(t, sc)
	d.MaxAttempts = 1

	type runOutput struct {
		counts RunCounts
		failed []FailedCommit
	}
	done := make(chan runOutput, 1)
	go func() {
		counts, failed := d.Run(context.Background(), commits)
		done <- runOutput{counts, failed}
	}()

	<-sc.started

	// The siblings must all persist while the stalled call is still blocked.
	deadline := time.Now().Add(5 * time.Second)
	for ledger.Len() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for siblings, ledger has %d records", ledger.Len())
		}
		time.Sleep(2 * time.Millisecond)
	}
	if ledger.Has(stalled) {
		t.Fatalf("expected stalled commit absent from ledger while blocked")
	}

	close(sc.release)
	out := <-done

	if out.counts.Succeeded != 6 || out.counts.Degraded != 1 {
		t.Fatalf("unexpected counts after release: %+v", out.counts)
	}
	rec, ok := ledger.Get(stalled)
	if !ok {
		t.Fatalf("expected stalled commit persisted after release")
	}
	if !rec.HasFlag(FlagAgentError) || !rec.HasFlag("AGENT_ERROR_TIMEOUT") {
		t.Fatalf("expected fallback flags on stalled commit, got %v", rec.Flags)
	}
	for _, c := range commits[1:] {
		rec, _ := ledger.Get(c.Hash)
		if rec.HasFlag(FlagAgentError) {
			t.Fatalf("expected clean record for sibling %s, flags=%v", c.Hash, rec.Flags)
		}
	}
}

func TestDispatcherRun_UpsertReplacesExistingRecord(t *testing.T) {
	fc := newFakeClassifier()
	commits := testCommits(1)
	fc.errKinds[commits[0].Hash] = KindTimeout
	d, ledger := testDispatcher(t, fc)

	// First pass degrades to the fallback scorer.
	d.Run(context.Background(), commits)
	rec, _ := ledger.Get(commits[0].Hash)
	if !rec.HasFlag(FlagAgentError) {
		t.Fatalf("expected fallback record on first pass")
	}

	// Second pass with a working classifier replaces the record in place.
	delete(fc.errKinds, commits[0].Hash)
	fc.responses[commits[0].Hash] = validResponse
	d.Run(context.Background(), commits)

	if ledger.Len() != 1 {
		t.Fatalf("expected one record after re-run, got %d", ledger.Len())
	}
	rec, _ = ledger.Get(commits[0].Hash)
	if rec.HasFlag(FlagAgentError) {
		t.Fatalf("expected clean record after repair, flags=%v", rec.Flags)
	}
}
