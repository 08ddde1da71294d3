package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeywordTable maps commit-message phrases to category codes. The built-in
// table below drives the fallback scorer; an optional YAML file can add
// site-specific terms, which are checked before the built-ins.
type KeywordTable struct {
	Terms []KeywordTerm `yaml:"terms"`
}

type KeywordTerm struct {
	Phrase   string `yaml:"phrase"`
	Category string `yaml:"category"`
}

// builtinKeywords is ordered: the first matching phrase wins, so more
// specific signals (security, crashes) come before generic ones ("fix").
var builtinKeywords = []KeywordTerm{
	{"cve-", "SEC-VULN"},
	{"use-after-free", "SEC-VULN"},
	{"use after free", "SEC-VULN"},
	{"out-of-bounds", "SEC-VULN"},
	{"buffer overflow", "SEC-VULN"},
	{"kasan", "SEC-VULN"},
	{"null pointer", "FIX-CRASH"},
	{"oops", "FIX-CRASH"},
	{"panic", "FIX-CRASH"},
	{"deadlock", "FIX-CRASH"},
	{"crash", "FIX-CRASH"},
	{"memory leak", "FIX-LEAK"},
	{"memleak", "FIX-LEAK"},
	{"race condition", "FIX-RACE"},
	{"revert", "MAINT-REVERT"},
	{"typo", "TRIV-TYPO"},
	{"spelling", "TRIV-TYPO"},
	{"whitespace", "TRIV-STYLE"},
	{"warning", "MAINT-WARN"},
	{"rename", "MAINT-NAMING"},
	{"documentation", "DOC-UPDATE"},
	{"docs:", "DOC-UPDATE"},
	{"refactor", "MAINT-CLEANUP"},
	{"cleanup", "MAINT-CLEANUP"},
	{"clean up", "MAINT-CLEANUP"},
	{"simplify", "MAINT-CLEANUP"},
	{"performance", "PERF-OPT"},
	{"optimize", "PERF-OPT"},
	{"fix", "FIX-BUG"},
	{"add support", "FEAT-NEW"},
	{"introduce", "FEAT-NEW"},
	{"implement", "FEAT-NEW"},
}

func LoadKeywordTable(path string) (*KeywordTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword table: %w", err)
	}
	var t KeywordTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse keyword table yaml: %w", err)
	}
	for i, term := range t.Terms {
		if strings.TrimSpace(term.Phrase) == "" || strings.TrimSpace(term.Category) == "" {
			return nil, fmt.Errorf("keyword table entry %d: phrase and category are required", i)
		}
	}
	return &t, nil
}

func normalizeTextToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ResolveCategory picks a category code for a commit without the classifier.
// The subject is checked before the body; extra terms before built-ins.
// Returns "UNKNOWN" when nothing matches.
func ResolveCategory(subject, body string, extra *KeywordTable) string {
	subject = normalizeTextToken(subject)
	body = normalizeTextToken(body)

	var tables [][]KeywordTerm
	if extra != nil {
		tables = append(tables, extra.Terms)
	}
	tables = append(tables, builtinKeywords)

	for _, text := range []string{subject, body} {
		if text == "" {
			continue
		}
		for _, terms := range tables {
			for _, term := range terms {
				if strings.Contains(text, normalizeTextToken(term.Phrase)) {
					return term.Category
				}
			}
		}
	}
	return "UNKNOWN"
}
