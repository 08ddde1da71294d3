package main

import (
	"encoding/json"
	"fmt"
)

// FlagAgentError marks records produced without a usable classifier result.
const FlagAgentError = "AGENT_ERROR"

// FallbackResult builds a minimal but structurally complete AnalysisResult
// from the commit alone: keyword matching resolves a category, the subsystem
// tier maps to a criticality score, and diff size maps to a small code-volume
// score. It is deterministic and never calls the classifier.
func FallbackResult(commit CommitRecord, errKind string, keywords *KeywordTable) AnalysisResult {
	category := ResolveCategory(commit.Subject, commit.Body, keywords)
	tier := SubsystemTier(commit.Files)
	prefix, touched := SubsystemsFromFiles(commit.Files)

	components := map[string]map[string]int{
		"technical": {
			"code_volume":           codeVolumeScore(commit.Insertions + commit.Deletions),
			"subsystem_criticality": tierCriticality[tier],
		},
		"impact":    {},
		"quality":   {},
		"community": {},
	}
	// Round-trip through the normalizer so fallback records obey the same
	// clamp, cap and subtotal invariants as classifier-backed ones.
	rawBreakdown, _ := json.Marshal(components)
	breakdown := NormalizeBreakdown(rawBreakdown, category)

	return AnalysisResult{
		CommitHash:          commit.Hash,
		ShortHash:           commit.ShortHash(),
		Seq:                 commit.Seq,
		AuthorName:          commit.AuthorName,
		AuthorEmail:         commit.AuthorEmail,
		AuthorOrg:           OrgFromEmail(commit.AuthorEmail),
		AuthorDate:          commit.AuthorDate,
		CommitterName:       commit.CommitterName,
		CommitterEmail:      commit.CommitterEmail,
		CommitterOrg:        OrgFromEmail(commit.CommitterEmail),
		CommitDate:          commit.CommitDate,
		Subject:             commit.Subject,
		PrimaryCategory:     category,
		SecondaryCategories: []string{},
		CVEIDs:              ExtractCVEIDs(commit.Subject + " " + commit.Body),
		FixesTag:            ExtractFixesTag(commit.Body),
		CCStable:            HasStableTag(commit.Body),
		SubsystemPrefix:     prefix,
		SubsystemsTouched:   emptyIfNil(touched),
		SubsystemTier:       tier,
		FilesChanged:        commit.FilesChanged,
		Insertions:          commit.Insertions,
		Deletions:           commit.Deletions,
		Hunks:               commit.Hunks,
		ReviewChain:         ParseReviewChain(commit.Body),
		ScoreTotal:          breakdown.Total(),
		ScoreTechnical:      breakdown.Technical.Subtotal,
		ScoreImpact:         breakdown.Impact.Subtotal,
		ScoreQuality:        breakdown.Quality.Subtotal,
		ScoreCommunity:      breakdown.Community.Subtotal,
		ScoreBreakdown:      breakdown,
		Reasoning:           fmt.Sprintf("classifier unavailable (%s); deterministic fallback scoring", errKind),
		Flags:               []string{FlagAgentError, FlagAgentError + "_" + errKind},
	}
}

// codeVolumeScore maps total changed lines onto a conservative code_volume
// score. Fallback records stay in the low range: without the classifier there
// is no evidence the change deserves more.
func codeVolumeScore(lines int) int {
	switch {
	case lines <= 0:
		return 0
	case lines < 10:
		return 1
	case lines < 50:
		return 2
	case lines < 200:
		return 4
	case lines < 1000:
		return 6
	default:
		return 8
	}
}
