package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type GroupStats struct {
	Count      int     `json:"count"`
	TotalScore int     `json:"total_score"`
	AvgScore   float64 `json:"avg_score"`
}

// Summary aggregates a finished ledger: distribution buckets, per-dimension
// averages, category and subsystem breakdowns, top/bottom commits and a
// flags tally.
type Summary struct {
	VersionRange      string                `json:"version_range"`
	AuthorFilter      string                `json:"author_filter"`
	TotalCommits      int                   `json:"total_commits_analyzed"`
	TotalScore        int                   `json:"total_score"`
	AverageScore      float64               `json:"average_score"`
	ScoreDistribution map[string]int        `json:"score_distribution"`
	DimensionAverages map[string]float64    `json:"dimension_averages"`
	ByCategory        map[string]GroupStats `json:"by_category"`
	BySubsystem       map[string]GroupStats `json:"by_subsystem"`
	TopCommits        []string              `json:"top_commits"`
	BottomCommits     []string              `json:"bottom_commits"`
	FlagsSummary      map[string]int        `json:"flags_summary"`
}

var distributionBuckets = []struct {
	name string
	lo   int
	hi   int
}{
	{"90_100_exceptional", 90, math.MaxInt},
	{"70_89_high", 70, 89},
	{"50_69_medium", 50, 69},
	{"30_49_low", 30, 49},
	{"10_29_minimal", 10, 29},
	{"0_9_trivial", 0, 9},
}

func GenerateSummary(records []AnalysisResult, versionRange, authorFilter string) Summary {
	s := Summary{
		VersionRange:      versionRange,
		AuthorFilter:      authorFilter,
		TotalCommits:      len(records),
		ScoreDistribution: make(map[string]int),
		DimensionAverages: make(map[string]float64),
		ByCategory:        make(map[string]GroupStats),
		BySubsystem:       make(map[string]GroupStats),
		TopCommits:        []string{},
		BottomCommits:     []string{},
		FlagsSummary:      make(map[string]int),
	}
	for _, b := range distributionBuckets {
		s.ScoreDistribution[b.name] = 0
	}
	if len(records) == 0 {
		return s
	}

	var dimTotals [4]int
	for _, r := range records {
		s.TotalScore += r.ScoreTotal
		dimTotals[0] += r.ScoreTechnical
		dimTotals[1] += r.ScoreImpact
		dimTotals[2] += r.ScoreQuality
		dimTotals[3] += r.ScoreCommunity

		for _, b := range distributionBuckets {
			if r.ScoreTotal >= b.lo && r.ScoreTotal <= b.hi {
				s.ScoreDistribution[b.name]++
				break
			}
		}

		cat := s.ByCategory[r.PrimaryCategory]
		cat.Count++
		cat.TotalScore += r.ScoreTotal
		s.ByCategory[r.PrimaryCategory] = cat

		sub := s.BySubsystem[r.SubsystemPrefix]
		sub.Count++
		sub.TotalScore += r.ScoreTotal
		s.BySubsystem[r.SubsystemPrefix] = sub

		for _, flag := range r.Flags {
			s.FlagsSummary[flag]++
		}
	}

	n := float64(len(records))
	s.AverageScore = round2(float64(s.TotalScore) / n)
	s.DimensionAverages["technical"] = round2(float64(dimTotals[0]) / n)
	s.DimensionAverages["impact"] = round2(float64(dimTotals[1]) / n)
	s.DimensionAverages["quality"] = round2(float64(dimTotals[2]) / n)
	s.DimensionAverages["community"] = round2(float64(dimTotals[3]) / n)

	for cat, stats := range s.ByCategory {
		stats.AvgScore = round2(float64(stats.TotalScore) / float64(stats.Count))
		s.ByCategory[cat] = stats
	}
	for sub, stats := range s.BySubsystem {
		stats.AvgScore = round2(float64(stats.TotalScore) / float64(stats.Count))
		s.BySubsystem[sub] = stats
	}

	ranked := make([]AnalysisResult, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].ScoreTotal > ranked[j].ScoreTotal })

	limit := 10
	if len(ranked) < limit {
		limit = len(ranked)
	}
	for _, r := range ranked[:limit] {
		s.TopCommits = append(s.TopCommits, commitLine(r))
	}
	for _, r := range ranked[len(ranked)-limit:] {
		s.BottomCommits = append(s.BottomCommits, commitLine(r))
	}
	return s
}

func commitLine(r AnalysisResult) string {
	return fmt.Sprintf("%s: %s (score: %d)", r.ShortHash, truncateString(r.Subject, 50), r.ScoreTotal)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteSummaryFile writes the summary JSON next to the ledger.
func WriteSummaryFile(s Summary, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("commit_scores_%s_summary.json", VersionTag(s.VersionRange)))
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0644)
}

// FormatSummaryText renders a short human-readable summary for the console
// and the Slack notifier.
func FormatSummaryText(s Summary, counts RunCounts) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Scored %d commits in %s", s.TotalCommits, s.VersionRange)
	if s.AuthorFilter != "" {
		fmt.Fprintf(&out, " (filter: %s)", s.AuthorFilter)
	}
	fmt.Fprintf(&out, "\nSucceeded: %d  Failed: %d  Degraded: %d", counts.Succeeded, counts.Failed, counts.Degraded)
	if counts.Skipped > 0 {
		fmt.Fprintf(&out, "  Skipped: %d", counts.Skipped)
	}
	fmt.Fprintf(&out, "\nAverage score: %.2f", s.AverageScore)
	if len(s.TopCommits) > 0 {
		fmt.Fprintf(&out, "\nTop: %s", s.TopCommits[0])
	}
	return out.String()
}
