package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// trivialCategoryPrefix marks trivial-change categories (typo fixes,
// whitespace, comment-only edits). lowMaintCategories are the two low-effort
// maintenance categories with their own cap table.
const trivialCategoryPrefix = "TRIV-"

var lowMaintCategories = map[string]bool{
	"MAINT-WARN":   true,
	"MAINT-NAMING": true,
}

var dimensionKeys = []string{"technical", "impact", "quality", "community"}

// componentRanges is the authoritative clamp table. Values outside a range
// are corrected to the nearest bound, never rejected.
var componentRanges = map[string][2]int{
	"code_volume":           {0, 20},
	"subsystem_criticality": {0, 10},
	"cross_subsystem":       {0, 10},
	"category_base":         {0, 15},
	"stable_lts":            {0, 5},
	"user_impact":           {0, 5},
	"novelty":               {0, 5},
	"review_chain":          {0, 8},
	"message_quality":       {0, 6},
	"testing":               {0, 4},
	"atomicity":             {0, 2},
	"cross_org":             {0, 4},
	"maintainer":            {0, 3},
	"response":              {0, 3},
}

// trivialCaps bounds TRIV-* commits to a maximum possible total of 5.
var trivialCaps = map[string]int{
	"code_volume": 1, "subsystem_criticality": 1, "cross_subsystem": 0,
	"category_base": 0, "stable_lts": 0, "user_impact": 0, "novelty": 0,
	"review_chain": 1, "message_quality": 1, "testing": 0, "atomicity": 1,
	"cross_org": 0, "maintainer": 0, "response": 0,
}

// lowMaintCaps bounds MAINT-WARN / MAINT-NAMING commits to a maximum
// possible total of 23.
var lowMaintCaps = map[string]int{
	"code_volume": 3, "subsystem_criticality": 4, "cross_subsystem": 0,
	"category_base": 3, "stable_lts": 0, "user_impact": 1, "novelty": 0,
	"review_chain": 3, "message_quality": 3, "testing": 0, "atomicity": 2,
	"cross_org": 2, "maintainer": 2, "response": 0,
}

// CheckBreakdownSchema verifies the four dimension keys are present and each
// is a structured object. Anything else is unusable classifier output.
func CheckBreakdownSchema(breakdown json.RawMessage) error {
	if len(breakdown) == 0 {
		return fmt.Errorf("score_breakdown missing")
	}
	if !gjson.ValidBytes(breakdown) {
		return fmt.Errorf("score_breakdown is not valid JSON")
	}
	for _, dim := range dimensionKeys {
		v := gjson.GetBytes(breakdown, dim)
		if !v.Exists() {
			return fmt.Errorf("score_breakdown missing dimension %q", dim)
		}
		if !v.IsObject() {
			return fmt.Errorf("score_breakdown dimension %q is not an object", dim)
		}
	}
	return nil
}

// NormalizeBreakdown turns an untrusted score_breakdown plus the resolved
// primary category into the canonical ScoreBreakdown. It is a pure function:
// components are read-or-zero, clamped to their ranges, capped by category,
// and every subtotal is recomputed from the clamped components. Supplied
// subtotals are discarded.
func NormalizeBreakdown(breakdown json.RawMessage, primaryCategory string) ScoreBreakdown {
	components := make(map[string]int, len(componentRanges))
	read := func(dim, name string) int {
		v := gjson.GetBytes(breakdown, dim+"."+name)
		if v.Type != gjson.Number {
			return 0
		}
		return int(v.Int())
	}

	components["code_volume"] = read("technical", "code_volume")
	components["subsystem_criticality"] = read("technical", "subsystem_criticality")
	components["cross_subsystem"] = read("technical", "cross_subsystem")
	components["category_base"] = read("impact", "category_base")
	components["stable_lts"] = read("impact", "stable_lts")
	components["user_impact"] = read("impact", "user_impact")
	components["novelty"] = read("impact", "novelty")
	components["review_chain"] = read("quality", "review_chain")
	components["message_quality"] = read("quality", "message_quality")
	components["testing"] = read("quality", "testing")
	components["atomicity"] = read("quality", "atomicity")
	components["cross_org"] = read("community", "cross_org")
	components["maintainer"] = read("community", "maintainer")
	components["response"] = read("community", "response")

	for name, bounds := range componentRanges {
		v := components[name]
		if v < bounds[0] {
			v = bounds[0]
		}
		if v > bounds[1] {
			v = bounds[1]
		}
		components[name] = v
	}

	var caps map[string]int
	switch {
	case strings.HasPrefix(primaryCategory, trivialCategoryPrefix):
		caps = trivialCaps
	case lowMaintCategories[primaryCategory]:
		caps = lowMaintCaps
	}
	for name, limit := range caps {
		if components[name] > limit {
			components[name] = limit
		}
	}

	details := func(dim string) string {
		return gjson.GetBytes(breakdown, dim+".details").String()
	}

	b := ScoreBreakdown{
		Technical: TechnicalScore{
			CodeVolume:           components["code_volume"],
			SubsystemCriticality: components["subsystem_criticality"],
			CrossSubsystem:       components["cross_subsystem"],
			Details:              details("technical"),
		},
		Impact: ImpactScore{
			CategoryBase: components["category_base"],
			StableLTS:    components["stable_lts"],
			UserImpact:   components["user_impact"],
			Novelty:      components["novelty"],
			Details:      details("impact"),
		},
		Quality: QualityScore{
			ReviewChain:    components["review_chain"],
			MessageQuality: components["message_quality"],
			Testing:        components["testing"],
			Atomicity:      components["atomicity"],
			Details:        details("quality"),
		},
		Community: CommunityScore{
			CrossOrg:   components["cross_org"],
			Maintainer: components["maintainer"],
			Response:   components["response"],
			Details:    details("community"),
		},
	}
	b.Technical.Subtotal = b.Technical.CodeVolume + b.Technical.SubsystemCriticality + b.Technical.CrossSubsystem
	b.Impact.Subtotal = b.Impact.CategoryBase + b.Impact.StableLTS + b.Impact.UserImpact + b.Impact.Novelty
	b.Quality.Subtotal = b.Quality.ReviewChain + b.Quality.MessageQuality + b.Quality.Testing + b.Quality.Atomicity
	b.Community.Subtotal = b.Community.CrossOrg + b.Community.Maintainer + b.Community.Response
	return b
}

// BuildResult assembles the persisted AnalysisResult from a commit and a
// schema-checked raw analysis.
func BuildResult(commit CommitRecord, raw *RawAnalysis) AnalysisResult {
	primary := strings.TrimSpace(raw.PrimaryCategory)
	if primary == "" {
		primary = "UNKNOWN"
	}
	breakdown := NormalizeBreakdown(raw.ScoreBreakdown, primary)

	tier := raw.SubsystemTier
	if tier < 1 || tier > 6 {
		tier = SubsystemTier(commit.Files)
	}
	prefix := raw.SubsystemPrefix
	touched := raw.SubsystemsTouched
	if prefix == "" {
		prefix, touched = SubsystemsFromFiles(commit.Files)
	}

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
		PrimaryCategory:     primary,
		SecondaryCategories: emptyIfNil(raw.SecondaryCategories),
		CVEIDs:              emptyIfNil(raw.CVEIDs),
		FixesTag:            raw.FixesTag,
		CCStable:            raw.CCStable,
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
		Reasoning:           raw.Reasoning,
		Flags:               emptyIfNil(raw.Flags),
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
