package main

import (
	"context"
	"log"
	"sort"
)

// RunRepair re-dispatches only the commits in the failed register and
// upserts their records into the ledger. Commits that fail again stay in the
// register; when everything repairs, the register file is removed. Running
// repair repeatedly is safe: the keyed upsert guarantees one ledger line per
// commit no matter how many passes run.
func RunRepair(ctx context.Context, d *Dispatcher, repoPath, failedPath string) (RunCounts, error) {
	failed, err := LoadFailedRegister(failedPath)
	if err != nil {
		return RunCounts{}, err
	}
	if len(failed) == 0 {
		log.Printf("repair: no failed commits registered at %s", failedPath)
		return RunCounts{}, nil
	}

	byKind := make(map[string]int)
	for _, fc := range failed {
		byKind[fc.ErrorType]++
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	log.Printf("repair: %d failed commits to re-analyze", len(failed))
	for _, k := range kinds {
		log.Printf("repair: kind=%s count=%d", k, byKind[k])
	}

	// Deduplicate by hash; a register written by multiple passes may carry
	// more than one entry for the same commit.
	seen := make(map[string]bool)
	var commits []CommitRecord
	var unfetchable []FailedCommit
	for _, fc := range failed {
		if seen[fc.CommitHash] {
			continue
		}
		seen[fc.CommitHash] = true

		commit, ok := FetchCommit(ctx, repoPath, fc.CommitHash)
		if !ok {
			log.Printf("repair: commit %s not found in repo", fc.CommitHash)
			unfetchable = append(unfetchable, fc)
			continue
		}
		// Keep the original input position when the ledger already holds a
		// degraded record for this hash.
		if existing, ok := d.Ledger.Get(commit.Hash); ok {
			commit.Seq = existing.Seq
		} else {
			commit.Seq = d.Ledger.Len() + len(commits)
		}
		commits = append(commits, commit)
	}

	// A repair pass always registers commits that still need the real
	// classifier, regardless of the analyze-time setting.
	tracked := d.TrackDegraded
	d.TrackDegraded = true
	counts, stillFailed := d.Run(ctx, commits)
	d.TrackDegraded = tracked

	stillFailed = append(stillFailed, unfetchable...)
	if err := SaveFailedRegister(failedPath, stillFailed); err != nil {
		return counts, err
	}

	if len(stillFailed) == 0 {
		log.Printf("repair: all %d commits repaired", len(failed))
	} else {
		log.Printf("repair: %d commits still failed", len(stillFailed))
	}
	return counts, nil
}
