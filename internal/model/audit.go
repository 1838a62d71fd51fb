package model

import "time"

// AuditScores holds the four rubric axes, each 0-100.
type AuditScores struct {
	ContentClarity  int `json:"content_clarity"`
	StructuredData  int `json:"structured_data"`
	AnswerReadiness int `json:"answer_readiness"`
	TrustAuthority  int `json:"trust_authority"`
}

// AuditIssue is a single problem the oracle identified on the page.
type AuditIssue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Category    string `json:"category"`
	Suggestion  string `json:"suggestion"`
}

// AuditReport is the parsed oracle response for one page.
type AuditReport struct {
	Summary    string       `json:"summary"`
	GeoScore   int          `json:"geo_score"`
	Scores     AuditScores  `json:"scores"`
	Strengths  []string     `json:"strengths,omitempty"`
	Issues     []AuditIssue `json:"issues,omitempty"`
	Impression string       `json:"impression,omitempty"`
}

// AuditKey is the composite cache key for a stored audit. ModelTag on the
// key is a lookup requirement: empty means any tag qualifies.
type AuditKey struct {
	URLFingerprint     string `json:"url_fingerprint"`
	ContentFingerprint string `json:"content_fingerprint"`
	Language           string `json:"language"`
	ModelTag           string `json:"model_tag,omitempty"`
}

// CachedAudit is one immutable stored scoring result. Entries are never
// mutated; multiple entries per URL coexist across content versions,
// languages, and model tiers.
type CachedAudit struct {
	ID                 string       `json:"id"`
	URLFingerprint     string       `json:"url_fingerprint"`
	ContentFingerprint string       `json:"content_fingerprint"`
	Language           string       `json:"language"`
	ModelTag           string       `json:"model_tag"`
	GeoScore           int          `json:"geo_score"`
	Scores             AuditScores  `json:"scores"`
	Report             *AuditReport `json:"report,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Profile is the slice of user state the pipeline consumes: a verified
// identifier, the premium flag, and the remaining audit credits.
// Authentication itself is delegated to an external identity provider.
type Profile struct {
	UserID    string    `json:"user_id"`
	Premium   bool      `json:"premium"`
	Unlimited bool      `json:"unlimited"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}
