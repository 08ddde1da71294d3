package main

import "time"

// CommitRecord is the raw commit metadata pulled from git. It is immutable
// once fetched; the scoring pipeline only reads it.
type CommitRecord struct {
	Hash           string
	AuthorName     string
	AuthorEmail    string
	AuthorDate     string
	CommitterName  string
	CommitterEmail string
	CommitDate     string
	Subject        string
	Body           string
	Files          []string
	FilesChanged   int
	Insertions     int
	Deletions      int
	Hunks          int
	DiffExcerpt    string
	CodeSnippet    string

	// Seq is the commit's position in the caller-supplied input sequence.
	// Ledger records carry it so callers can re-sort by input order.
	Seq int
}

func (c CommitRecord) ShortHash() string {
	if len(c.Hash) > 12 {
		return c.Hash[:12]
	}
	return c.Hash
}

// TechnicalScore, ImpactScore, QualityScore and CommunityScore are the four
// canonical scoring dimensions. Subtotal is always recomputed from the
// clamped components, never taken from classifier output.

type TechnicalScore struct {
	CodeVolume           int    `json:"code_volume"`
	SubsystemCriticality int    `json:"subsystem_criticality"`
	CrossSubsystem       int    `json:"cross_subsystem"`
	Subtotal             int    `json:"subtotal"`
	Details              string `json:"details"`
}

type ImpactScore struct {
	CategoryBase int    `json:"category_base"`
	StableLTS    int    `json:"stable_lts"`
	UserImpact   int    `json:"user_impact"`
	Novelty      int    `json:"novelty"`
	Subtotal     int    `json:"subtotal"`
	Details      string `json:"details"`
}

type QualityScore struct {
	ReviewChain    int    `json:"review_chain"`
	MessageQuality int    `json:"message_quality"`
	Testing        int    `json:"testing"`
	Atomicity      int    `json:"atomicity"`
	Subtotal       int    `json:"subtotal"`
	Details        string `json:"details"`
}

type CommunityScore struct {
	CrossOrg   int    `json:"cross_org"`
	Maintainer int    `json:"maintainer"`
	Response   int    `json:"response"`
	Subtotal   int    `json:"subtotal"`
	Details    string `json:"details"`
}

// ScoreBreakdown is the canonical, invariant-holding breakdown persisted in
// the ledger. Total() always equals the sum of the four subtotals.
type ScoreBreakdown struct {
	Technical TechnicalScore `json:"technical"`
	Impact    ImpactScore    `json:"impact"`
	Quality   QualityScore   `json:"quality"`
	Community CommunityScore `json:"community"`
}

func (b ScoreBreakdown) Total() int {
	return b.Technical.Subtotal + b.Impact.Subtotal + b.Quality.Subtotal + b.Community.Subtotal
}

// ReviewChain holds the parsed review tags from a commit message body.
type ReviewChain struct {
	SignedOffBy []string `json:"signed_off_by"`
	ReviewedBy  []string `json:"reviewed_by"`
	TestedBy    []string `json:"tested_by"`
	AckedBy     []string `json:"acked_by"`
	ReportedBy  []string `json:"reported_by"`
}

// AnalysisResult is the one persisted record per commit. Exactly one ledger
// line exists per commit hash; a repair pass replaces it, never duplicates it.
type AnalysisResult struct {
	CommitHash          string         `json:"commit_hash"`
	ShortHash           string         `json:"short_hash"`
	Seq                 int            `json:"seq"`
	AuthorName          string         `json:"author_name"`
	AuthorEmail         string         `json:"author_email"`
	AuthorOrg           string         `json:"author_org"`
	AuthorDate          string         `json:"author_date"`
	CommitterName       string         `json:"committer_name"`
	CommitterEmail      string         `json:"committer_email"`
	CommitterOrg        string         `json:"committer_org"`
	CommitDate          string         `json:"commit_date"`
	Subject             string         `json:"subject"`
	PrimaryCategory     string         `json:"primary_category"`
	SecondaryCategories []string       `json:"secondary_categories"`
	CVEIDs              []string       `json:"cve_ids"`
	FixesTag            string         `json:"fixes_tag"`
	CCStable            bool           `json:"cc_stable"`
	SubsystemPrefix     string         `json:"subsystem_prefix"`
	SubsystemsTouched   []string       `json:"subsystems_touched"`
	SubsystemTier       int            `json:"subsystem_tier"`
	FilesChanged        int            `json:"files_changed"`
	Insertions          int            `json:"insertions"`
	Deletions           int            `json:"deletions"`
	Hunks               int            `json:"hunks"`
	ReviewChain         ReviewChain    `json:"review_chain"`
	ScoreTotal          int            `json:"score_total"`
	ScoreTechnical      int            `json:"score_technical"`
	ScoreImpact         int            `json:"score_impact"`
	ScoreQuality        int            `json:"score_quality"`
	ScoreCommunity      int            `json:"score_community"`
	ScoreBreakdown      ScoreBreakdown `json:"score_breakdown"`
	Reasoning           string         `json:"reasoning"`
	Flags               []string       `json:"flags"`
}

// HasFlag reports whether the record carries the given flag.
func (r *AnalysisResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// FailedCommit is one entry in the failed-commit register. Entries are
// removed by omission once a repair pass succeeds for the hash.
type FailedCommit struct {
	CommitHash string    `json:"commit_hash"`
	ErrorType  string    `json:"error_type"`
	ErrorMsg   string    `json:"error_msg"`
	Subject    string    `json:"subject"`
	Timestamp  time.Time `json:"timestamp"`
}
