// Package pipeline orchestrates a single page audit: validate the URL,
// render the page, digest it, and resolve the score from cache or the
// oracle.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siteaudit/internal/extract"
	"github.com/sells-group/siteaudit/internal/fingerprint"
	"github.com/sells-group/siteaudit/internal/model"
	"github.com/sells-group/siteaudit/internal/render"
	"github.com/sells-group/siteaudit/internal/scorer"
	"github.com/sells-group/siteaudit/internal/store"
)

// URLValidator rejects URLs that must not be fetched.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) error
}

// Oracle produces an audit report for a digest.
type Oracle interface {
	Score(ctx context.Context, digest *model.PageDigest, language, modelTag string) (*model.AuditReport, error)
}

// Request describes one audit.
type Request struct {
	URL      string
	Language string

	// UserID selects the profile whose tier and credits apply. Empty skips
	// profile handling entirely (operator CLI use).
	UserID string

	// RequiredModelTag, when set, restricts both the cache lookup and the
	// scoring to that tier. When empty the tier follows the user's profile.
	RequiredModelTag string

	// Fresh skips the cache lookup and forces a new scoring run. The result
	// is still stored.
	Fresh bool
}

// Result is a completed audit.
type Result struct {
	Report    *model.AuditReport
	ModelTag  string
	Cached    bool
	Key       model.AuditKey
	CreatedAt time.Time
}

// Auditor wires the stages together. All collaborators are injected, so
// tests can swap any of them.
type Auditor struct {
	guard    URLValidator
	renderer render.Renderer
	store    store.Store
	oracle   Oracle
}

// NewAuditor creates an Auditor from its collaborators.
func NewAuditor(guard URLValidator, renderer render.Renderer, st store.Store, oracle Oracle) *Auditor {
	return &Auditor{
		guard:    guard,
		renderer: renderer,
		store:    st,
		oracle:   oracle,
	}
}

// Audit runs one page audit end to end. Cache hits return without touching
// the oracle or the user's credits. Cache infrastructure failures are
// logged and treated as misses; they never fail the audit.
func (a *Auditor) Audit(ctx context.Context, req Request) (*Result, error) {
	log := zap.L().With(zap.String("url", req.URL))

	if err := a.guard.Validate(ctx, req.URL); err != nil {
		return nil, classify(ErrInvalidInput, err)
	}

	profile, err := a.loadProfile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	modelTag := req.RequiredModelTag
	if modelTag == "" && profile != nil && profile.Premium {
		modelTag = scorer.ModelTagPro
	}
	if modelTag == "" {
		modelTag = scorer.ModelTagFree
	}

	snap, err := a.renderer.Render(ctx, req.URL)
	if err != nil {
		return nil, classify(ErrNetwork, err)
	}

	digest := extract.Extract(snap.HTML, req.URL)
	digest.Screenshot = snap.Screenshot

	key := model.AuditKey{
		URLFingerprint:     fingerprint.URL(req.URL),
		ContentFingerprint: fingerprint.Content(extract.RenderMarkdown(digest)),
		Language:           req.Language,
		ModelTag:           req.RequiredModelTag,
	}

	if !req.Fresh {
		if cached := a.lookup(ctx, log, key); cached != nil {
			return &Result{
				Report:    cached.Report,
				ModelTag:  cached.ModelTag,
				Cached:    true,
				Key:       key,
				CreatedAt: cached.CreatedAt,
			}, nil
		}
	}

	// Fresh scoring ahead: a metered user must have a credit left.
	if profile != nil && !profile.Unlimited && profile.Credits <= 0 {
		return nil, ErrNoCredits
	}

	report, err := a.oracle.Score(ctx, digest, req.Language, modelTag)
	if err != nil {
		return nil, classify(ErrOracle, err)
	}

	now := time.Now().UTC()
	entry := &model.CachedAudit{
		URLFingerprint:     key.URLFingerprint,
		ContentFingerprint: key.ContentFingerprint,
		Language:           req.Language,
		ModelTag:           modelTag,
		GeoScore:           report.GeoScore,
		Scores:             report.Scores,
		Report:             report,
		CreatedAt:          now,
	}
	if err := a.store.StoreAudit(ctx, entry); err != nil {
		log.Warn("pipeline: cache store failed", zap.Error(err))
	}

	if profile != nil && !profile.Unlimited {
		ok, err := a.store.ConsumeCredit(ctx, profile.UserID)
		if err != nil {
			log.Warn("pipeline: credit decrement failed", zap.Error(err))
		} else if !ok {
			// Credits raced to zero between the check and the decrement.
			log.Warn("pipeline: credit floor hit after scoring",
				zap.String("user_id", profile.UserID))
		}
	}

	return &Result{
		Report:    report,
		ModelTag:  modelTag,
		Key:       key,
		CreatedAt: now,
	}, nil
}

// Latest returns the most recent cached audit for a URL without rendering
// or scoring anything.
func (a *Auditor) Latest(ctx context.Context, rawURL, language, modelTag string) (*model.CachedAudit, error) {
	entries, err := a.store.LookupLatestByURL(ctx, fingerprint.URL(rawURL), language, modelTag)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: latest lookup")
	}
	return entries, nil
}

func (a *Auditor) loadProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, nil
	}
	profile, err := a.store.GetProfile(ctx, userID)
	if err != nil {
		// A failing profile store is an internal fault, not an auth failure.
		return nil, eris.Wrap(err, "pipeline: load profile")
	}
	if profile == nil {
		return nil, ErrUnknownUser
	}
	return profile, nil
}

func (a *Auditor) lookup(ctx context.Context, log *zap.Logger, key model.AuditKey) *model.CachedAudit {
	cached, err := a.store.LookupAudit(ctx, key)
	if err != nil {
		// A broken cache degrades to a miss, never to a failed audit.
		log.Warn("pipeline: cache lookup failed", zap.Error(err))
		return nil
	}
	if cached == nil {
		return nil
	}
	log.Info("pipeline: cache hit",
		zap.String("model_tag", cached.ModelTag),
		zap.Time("scored_at", cached.CreatedAt))
	return cached
}
