package main

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const gitLogFormat = "COMMIT_START%nHash: %H%nAuthorName: %an%nAuthorEmail: %ae%nAuthorDate: %aI%nCommitterName: %cn%nCommitterEmail: %ce%nCommitDate: %cI%nSubject: %s%nBody:%n%b%nCOMMIT_END"

const gitCommandTimeout = 30 * time.Second

// ListCommits returns the commits in the given range, filtered by author
// email domain and capped at maxCommits (0 = no cap). Records come back
// light: diff stats are attached per commit by EnrichCommit in the workers.
// A git failure here is fatal to the run; there is no input to process.
func ListCommits(ctx context.Context, repoPath, versionRange string, domainFilters []string, maxCommits int) ([]CommitRecord, error) {
	args := []string{"-C", repoPath, "log", "--no-merges", "--format=" + gitLogFormat, versionRange}
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("git log %s: %w", versionRange, err)
	}

	commits := parseGitLog(string(out))
	filtered := commits[:0]
	for _, c := range commits {
		if MatchesDomainFilter(c.AuthorEmail, domainFilters) {
			filtered = append(filtered, c)
		}
	}
	if maxCommits > 0 && len(filtered) > maxCommits {
		filtered = filtered[:maxCommits]
	}
	for i := range filtered {
		filtered[i].Seq = i
	}
	return filtered, nil
}

// FetchCommit loads a single commit by hash, for the repair pass.
func FetchCommit(ctx context.Context, repoPath, hash string) (CommitRecord, bool) {
	args := []string{"-C", repoPath, "log", "-1", "--format=" + gitLogFormat, hash}
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		log.Printf("fetch commit hash=%s err=%v", hash, err)
		return CommitRecord{}, false
	}
	commits := parseGitLog(string(out))
	if len(commits) == 0 {
		return CommitRecord{}, false
	}
	return commits[0], true
}

func parseGitLog(output string) []CommitRecord {
	var commits []CommitRecord
	var current CommitRecord
	var body strings.Builder
	inBody := false

	flush := func() {
		if current.Hash != "" {
			current.Body = strings.TrimSpace(body.String())
			commits = append(commits, current)
		}
		current = CommitRecord{}
		body.Reset()
		inBody = false
	}

	for _, line := range strings.Split(output, "\n") {
		switch {
		case line == "COMMIT_START":
			current = CommitRecord{}
			body.Reset()
			inBody = false
		case line == "COMMIT_END":
			flush()
		case line == "Body:":
			inBody = true
		case inBody:
			body.WriteString(line)
			body.WriteString("\n")
		default:
			key, value, found := strings.Cut(line, ": ")
			if !found {
				continue
			}
			switch key {
			case "Hash":
				current.Hash = value
			case "AuthorName":
				current.AuthorName = value
			case "AuthorEmail":
				current.AuthorEmail = value
			case "AuthorDate":
				current.AuthorDate = value
			case "CommitterName":
				current.CommitterName = value
			case "CommitterEmail":
				current.CommitterEmail = value
			case "CommitDate":
				current.CommitDate = value
			case "Subject":
				current.Subject = value
			}
		}
	}
	return commits
}

// EnrichCommit attaches diff stats, the bounded diff excerpt and the most
// relevant hunk to a commit. Diff failures are tolerated: scoring proceeds
// on zero stats rather than losing the commit.
func EnrichCommit(ctx context.Context, repoPath string, commit *CommitRecord) {
	diffCtx, cancel := context.WithTimeout(ctx, gitCommandTimeout)
	defer cancel()

	spec := commit.Hash + "^.." + commit.Hash
	numstat, err := exec.CommandContext(diffCtx, "git", "-C", repoPath, "diff", "--numstat", spec).Output()
	if err != nil {
		log.Printf("diff numstat hash=%s err=%v", commit.ShortHash(), err)
		return
	}
	for _, line := range strings.Split(strings.TrimSpace(string(numstat)), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 {
			continue
		}
		if ins, err := strconv.Atoi(parts[0]); err == nil {
			commit.Insertions += ins
		}
		if del, err := strconv.Atoi(parts[1]); err == nil {
			commit.Deletions += del
		}
		commit.Files = append(commit.Files, parts[2])
	}
	commit.FilesChanged = len(commit.Files)

	diff, err := exec.CommandContext(diffCtx, "git", "-C", repoPath, "diff", spec).Output()
	if err != nil {
		log.Printf("diff hash=%s err=%v", commit.ShortHash(), err)
		return
	}
	diffText := string(diff)
	commit.Hunks = strings.Count(diffText, "@@") / 2
	commit.DiffExcerpt = truncateString(diffText, maxDiffExcerptChars)
	commit.CodeSnippet = bestHunk(diffText)
}

// bestHunk picks the largest hunk from the leading portion of a diff,
// trimmed to 20 lines, as a representative code snippet.
func bestHunk(diff string) string {
	lines := strings.Split(diff, "\n")
	if len(lines) > 500 {
		lines = lines[:500]
	}

	var best, current []string
	flush := func() {
		if len(current) > len(best) {
			best = current
		}
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			flush()
			current = []string{line}
		} else if len(current) > 0 {
			current = append(current, line)
		}
	}
	flush()
	if len(best) > 20 {
		best = best[:20]
	}
	return strings.Join(best, "\n")
}

var cvePattern = regexp.MustCompile(`CVE-\d{4}-\d{4,7}`)

// ExtractCVEIDs returns the unique CVE identifiers mentioned in the text.
func ExtractCVEIDs(text string) []string {
	matches := cvePattern.FindAllString(strings.ToUpper(text), -1)
	seen := make(map[string]bool)
	ids := []string{}
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			ids = append(ids, m)
		}
	}
	sort.Strings(ids)
	return ids
}

// ExtractFixesTag returns the first "Fixes:" line from the body, or "".
func ExtractFixesTag(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "fixes:") {
			return line
		}
	}
	return ""
}

// HasStableTag reports whether the body carries a stable-backport marker.
func HasStableTag(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "cc: stable") || strings.Contains(lower, "stable@")
}

var reviewTagKeys = []struct {
	tag string
	key func(*ReviewChain) *[]string
}{
	{"signed-off-by:", func(c *ReviewChain) *[]string { return &c.SignedOffBy }},
	{"reviewed-by:", func(c *ReviewChain) *[]string { return &c.ReviewedBy }},
	{"tested-by:", func(c *ReviewChain) *[]string { return &c.TestedBy }},
	{"acked-by:", func(c *ReviewChain) *[]string { return &c.AckedBy }},
	{"reported-by:", func(c *ReviewChain) *[]string { return &c.ReportedBy }},
}

// ParseReviewChain collects review tags from the commit body, annotating
// each entry with the tagger's organization when an email is present.
func ParseReviewChain(body string) ReviewChain {
	chain := ReviewChain{
		SignedOffBy: []string{},
		ReviewedBy:  []string{},
		TestedBy:    []string{},
		AckedBy:     []string{},
		ReportedBy:  []string{},
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, rt := range reviewTagKeys {
			if !strings.HasPrefix(lower, rt.tag) {
				continue
			}
			content := strings.TrimSpace(line[len(rt.tag):])
			if open := strings.Index(content, "<"); open >= 0 {
				if end := strings.Index(content[open:], ">"); end > 0 {
					email := content[open+1 : open+end]
					content = fmt.Sprintf("%s (%s)", content, OrgFromEmail(email))
				}
			}
			list := rt.key(&chain)
			*list = append(*list, content)
			break
		}
	}
	return chain
}
