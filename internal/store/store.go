// Package store persists cached audits and user profiles behind a single
// interface with SQLite and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/sells-group/siteaudit/internal/model"
)

// AuditStat is one row of cache composition, per (language, model tag).
type AuditStat struct {
	Language string `json:"language"`
	ModelTag string `json:"model_tag"`
	Count    int    `json:"count"`
}

// Store defines persistence for the audit pipeline.
//
// The audit cache is append-only: StoreAudit never overwrites, concurrent
// stores for the same key are all retained, and LookupAudit resolves
// most-recent-wins by recency ordering.
type Store interface {
	// LookupAudit returns the most recent entry matching the key, or nil on
	// miss. When key.ModelTag is set, only entries with that exact tag
	// qualify; when empty, the most recent entry of any tag is returned.
	LookupAudit(ctx context.Context, key model.AuditKey) (*model.CachedAudit, error)

	// LookupLatestByURL returns the most recent entry for a URL fingerprint
	// regardless of content version, or nil when none exists. Language and
	// modelTag filter when non-empty.
	LookupLatestByURL(ctx context.Context, urlFP, language, modelTag string) (*model.CachedAudit, error)

	// StoreAudit inserts a new immutable cache entry.
	StoreAudit(ctx context.Context, entry *model.CachedAudit) error

	// PurgeAudits deletes entries created before the cutoff, returning the
	// number removed.
	PurgeAudits(ctx context.Context, before time.Time) (int, error)

	// AuditStats reports entry counts grouped by language and model tag.
	AuditStats(ctx context.Context) ([]AuditStat, error)

	// Profiles
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error

	// ConsumeCredit decrements the user's credit balance by one, atomically
	// and only while the balance is positive. Returns false when no credit
	// was available to consume.
	ConsumeCredit(ctx context.Context, userID string) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
