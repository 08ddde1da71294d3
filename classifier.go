package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const maxDiffExcerptChars = 10000

// Classifier error kinds. These are the error_type tags recorded in the
// failed-commit register.
const (
	KindTimeout       = "TIMEOUT"
	KindMalformed     = "MALFORMED_OUTPUT"
	KindSchemaInvalid = "SCHEMA_INVALID"
	KindOther         = "OTHER"
	KindWriteError    = "WRITE_ERROR"
)

// ClassifyError is a typed classifier failure. Every kind routes the commit
// to the fallback scorer; none of them aborts the batch.
type ClassifyError struct {
	Kind string
	Hash string
	Err  error
}

func (e *ClassifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classify %s: %s: %v", e.Hash, e.Kind, e.Err)
	}
	return fmt.Sprintf("classify %s: %s", e.Hash, e.Kind)
}

func (e *ClassifyError) Unwrap() error { return e.Err }

// RawAnalysis is the untrusted classifier response. ScoreBreakdown stays as
// raw JSON; the normalizer reads each component on its own and discards the
// supplied subtotals.
type RawAnalysis struct {
	PrimaryCategory     string          `json:"primary_category"`
	SecondaryCategories []string        `json:"secondary_categories"`
	CVEIDs              []string        `json:"cve_ids"`
	FixesTag            string          `json:"fixes_tag"`
	CCStable            bool            `json:"cc_stable"`
	SubsystemPrefix     string          `json:"subsystem_prefix"`
	SubsystemsTouched   []string        `json:"subsystems_touched"`
	SubsystemTier       int             `json:"subsystem_tier"`
	ScoreBreakdown      json.RawMessage `json:"score_breakdown"`
	Reasoning           string          `json:"reasoning"`
	Flags               []string        `json:"flags"`
}

// Classifier produces a raw analysis for one commit or a *ClassifyError.
type Classifier interface {
	Classify(ctx context.Context, commit CommitRecord) (*RawAnalysis, error)
}

// classifierRequest is the payload sent to the model, one commit per call.
type classifierRequest struct {
	CommitHash     string   `json:"commit_hash"`
	ShortHash      string   `json:"short_hash"`
	AuthorName     string   `json:"author_name"`
	AuthorEmail    string   `json:"author_email"`
	AuthorDate     string   `json:"author_date"`
	CommitterName  string   `json:"committer_name"`
	CommitterEmail string   `json:"committer_email"`
	CommitDate     string   `json:"commit_date"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	Files          []string `json:"files"`
	FilesChanged   int      `json:"files_changed"`
	Insertions     int      `json:"insertions"`
	Deletions      int      `json:"deletions"`
	Hunks          int      `json:"hunks"`
	DiffOutput     string   `json:"diff_output"`
	CodeSnippet    string   `json:"code_snippet"`
}

// AnthropicClassifier calls the Anthropic Messages API with a per-call
// wall-clock timeout. It performs no retries; the retry budget lives in the
// dispatcher.
type AnthropicClassifier struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewAnthropicClassifier(cfg Config) *AnthropicClassifier {
	model := cfg.ClassifierModel
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicClassifier{
		APIKey:  cfg.AnthropicAPIKey,
		Model:   model,
		Timeout: time.Duration(cfg.ClassifierTimeoutSeconds) * time.Second,
	}
}

func (a *AnthropicClassifier) Classify(ctx context.Context, commit CommitRecord) (*RawAnalysis, error) {
	systemPrompt, userPrompt := buildClassifierPrompts(commit)

	callCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	client := anthropic.NewClient(option.WithAPIKey(a.APIKey))
	message, err := client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &ClassifyError{Kind: KindTimeout, Hash: commit.Hash, Err: err}
		}
		return nil, &ClassifyError{Kind: KindOther, Hash: commit.Hash, Err: err}
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("classifier response hash=%s size=%d tokens_in=%d tokens_out=%d",
				commit.ShortHash(), len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return ParseRawAnalysis(commit.Hash, block.Text)
		}
	}
	return nil, &ClassifyError{Kind: KindMalformed, Hash: commit.Hash, Err: errors.New("no text content in response")}
}

func buildClassifierPrompts(commit CommitRecord) (string, string) {
	systemPrompt := `You classify and score version-control commits against a fixed policy.

Respond with a single JSON object and nothing else: no markdown fences, no
surrounding prose. Required top-level keys: primary_category (string code),
secondary_categories (list of string codes), cve_ids, fixes_tag, cc_stable
(boolean), subsystem_prefix, subsystems_touched, subsystem_tier (integer 1-6),
score_breakdown, reasoning (free text), flags (list of string tags).

score_breakdown must contain exactly four objects:
- technical: code_volume (0-20), subsystem_criticality (0-10), cross_subsystem (0-10), subtotal, details
- impact: category_base (0-15), stable_lts (0-5), user_impact (0-5), novelty (0-5), subtotal, details
- quality: review_chain (0-8), message_quality (0-6), testing (0-4), atomicity (0-2), subtotal, details
- community: cross_org (0-4), maintainer (0-3), response (0-3), subtotal, details`

	req := classifierRequest{
		CommitHash:     commit.Hash,
		ShortHash:      commit.ShortHash(),
		AuthorName:     commit.AuthorName,
		AuthorEmail:    commit.AuthorEmail,
		AuthorDate:     commit.AuthorDate,
		CommitterName:  commit.CommitterName,
		CommitterEmail: commit.CommitterEmail,
		CommitDate:     commit.CommitDate,
		Subject:        commit.Subject,
		Body:           commit.Body,
		Files:          commit.Files,
		FilesChanged:   commit.FilesChanged,
		Insertions:     commit.Insertions,
		Deletions:      commit.Deletions,
		Hunks:          commit.Hunks,
		DiffOutput:     truncateString(commit.DiffExcerpt, maxDiffExcerptChars),
		CodeSnippet:    commit.CodeSnippet,
	}
	payload, _ := json.MarshalIndent(req, "", "  ")

	userPrompt := "Analyze this commit and return ONLY a valid JSON object (no markdown, no explanation):\n\n" + string(payload) + "\n"
	return systemPrompt, userPrompt
}

// ParseRawAnalysis enforces the canonical response contract: the text must
// be exactly one JSON object (wrapping prose or fencing is MALFORMED_OUTPUT)
// carrying all four dimension keys as objects (else SCHEMA_INVALID).
func ParseRawAnalysis(hash, text string) (*RawAnalysis, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, &ClassifyError{Kind: KindMalformed, Hash: hash, Err: errors.New("response is not a bare JSON object")}
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var raw RawAnalysis
	if err := dec.Decode(&raw); err != nil {
		return nil, &ClassifyError{Kind: KindMalformed, Hash: hash, Err: err}
	}
	if dec.More() {
		return nil, &ClassifyError{Kind: KindMalformed, Hash: hash, Err: errors.New("trailing content after JSON object")}
	}

	if err := CheckBreakdownSchema(raw.ScoreBreakdown); err != nil {
		return nil, &ClassifyError{Kind: KindSchemaInvalid, Hash: hash, Err: err}
	}
	return &raw, nil
}

func truncateString(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
