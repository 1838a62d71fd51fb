package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteaudit/internal/model"
	"github.com/sells-group/siteaudit/internal/render"
	"github.com/sells-group/siteaudit/internal/store"
)

// --- fakes ---

type fakeGuard struct {
	err error
}

func (f *fakeGuard) Validate(context.Context, string) error { return f.err }

type fakeRenderer struct {
	snap  *render.Snapshot
	err   error
	calls int
}

func (f *fakeRenderer) Render(context.Context, string) (*render.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

type fakeOracle struct {
	report  *model.AuditReport
	err     error
	calls   int
	lastTag string
}

func (f *fakeOracle) Score(_ context.Context, _ *model.PageDigest, _, modelTag string) (*model.AuditReport, error) {
	f.calls++
	f.lastTag = modelTag
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	entries    []*model.CachedAudit
	profiles   map[string]*model.Profile
	lookupErr  error
	storeErr   error
	profileErr error
	consumed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]*model.Profile{}}
}

func (f *fakeStore) LookupAudit(_ context.Context, key model.AuditKey) (*model.CachedAudit, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var best *model.CachedAudit
	for _, e := range f.entries {
		if e.URLFingerprint != key.URLFingerprint || e.ContentFingerprint != key.ContentFingerprint ||
			e.Language != key.Language {
			continue
		}
		if key.ModelTag != "" && e.ModelTag != key.ModelTag {
			continue
		}
		if best == nil || e.CreatedAt.After(best.CreatedAt) {
			best = e
		}
	}
	return best, nil
}

func (f *fakeStore) LookupLatestByURL(_ context.Context, urlFP, language, modelTag string) (*model.CachedAudit, error) {
	var best *model.CachedAudit
	for _, e := range f.entries {
		if e.URLFingerprint != urlFP {
			continue
		}
		if language != "" && e.Language != language {
			continue
		}
		if modelTag != "" && e.ModelTag != modelTag {
			continue
		}
		if best == nil || e.CreatedAt.After(best.CreatedAt) {
			best = e
		}
	}
	return best, nil
}

func (f *fakeStore) StoreAudit(_ context.Context, entry *model.CachedAudit) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeStore) PurgeAudits(context.Context, time.Time) (int, error) { return 0, nil }

func (f *fakeStore) AuditStats(context.Context) ([]store.AuditStat, error) { return nil, nil }

func (f *fakeStore) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profiles[userID], nil
}

func (f *fakeStore) UpsertProfile(_ context.Context, p *model.Profile) error {
	f.profiles[p.UserID] = p
	return nil
}

func (f *fakeStore) ConsumeCredit(_ context.Context, userID string) (bool, error) {
	f.consumed = append(f.consumed, userID)
	p := f.profiles[userID]
	if p == nil || p.Credits <= 0 {
		return false, nil
	}
	p.Credits--
	return true, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

// --- helpers ---

const testHTML = `<html><body><h1>Acme</h1><p>We build infrastructure monitoring for busy teams.</p></body></html>`

func testReport() *model.AuditReport {
	return &model.AuditReport{
		Summary:  "fine",
		GeoScore: 70,
		Scores:   model.AuditScores{ContentClarity: 70, StructuredData: 70, AnswerReadiness: 70, TrustAuthority: 70},
	}
}

func newTestAuditor(st store.Store, oracle Oracle) *Auditor {
	return NewAuditor(
		&fakeGuard{},
		&fakeRenderer{snap: &render.Snapshot{HTML: testHTML, Screenshot: []byte{1}}},
		st,
		oracle,
	)
}

// --- tests ---

func TestAudit_FreshScoreStoredAndReturned(t *testing.T) {
	st := newFakeStore()
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	res, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 70, res.Report.GeoScore)
	assert.Equal(t, "free", res.ModelTag)
	assert.Equal(t, 1, oracle.calls)
	require.Len(t, st.entries, 1)
	assert.Equal(t, res.Key.URLFingerprint, st.entries[0].URLFingerprint)
	assert.Equal(t, res.Key.ContentFingerprint, st.entries[0].ContentFingerprint)
}

func TestAudit_CacheHitSkipsOracle(t *testing.T) {
	st := newFakeStore()
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en"})
	require.NoError(t, err)
	require.Equal(t, 1, oracle.calls)

	res, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en"})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, oracle.calls, "cache hit must not reach the oracle")
	assert.Len(t, st.entries, 1)
}

func TestAudit_CacheHitConsumesNoCredit(t *testing.T) {
	st := newFakeStore()
	st.profiles["u1"] = &model.Profile{UserID: "u1", Credits: 5}
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 4, st.profiles["u1"].Credits)

	res, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en", UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 4, st.profiles["u1"].Credits, "cache hit must be free")
}

func TestAudit_FreshFlagBypassesCache(t *testing.T) {
	st := newFakeStore()
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en"})
	require.NoError(t, err)

	res, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en", Fresh: true})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, oracle.calls)
	assert.Len(t, st.entries, 2, "forced rescore still appends to the cache")
}

func TestAudit_LookupFailureDegradesToMiss(t *testing.T) {
	st := newFakeStore()
	st.lookupErr = eris.New("db down")
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	res, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, oracle.calls)
}

func TestAudit_StoreFailureSwallowed(t *testing.T) {
	st := newFakeStore()
	st.storeErr = eris.New("disk full")
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	res, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en"})
	require.NoError(t, err, "a broken cache never fails the audit")
	assert.Equal(t, 70, res.Report.GeoScore)
}

func TestAudit_GuardFailure(t *testing.T) {
	st := newFakeStore()
	oracle := &fakeOracle{report: testReport()}
	renderer := &fakeRenderer{snap: &render.Snapshot{HTML: testHTML}}
	a := NewAuditor(&fakeGuard{err: eris.New("blocked host")}, renderer, st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "http://169.254.169.254/"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidInput))
	assert.Zero(t, renderer.calls, "rejected URLs are never fetched")
	assert.Zero(t, oracle.calls)
}

func TestAudit_RenderFailure(t *testing.T) {
	st := newFakeStore()
	oracle := &fakeOracle{report: testReport()}
	a := NewAuditor(&fakeGuard{}, &fakeRenderer{err: render.ErrRenderTimeout}, st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://slow.test/"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNetwork))
	assert.Zero(t, oracle.calls)
}

func TestAudit_OracleFailure(t *testing.T) {
	st := newFakeStore()
	oracle := &fakeOracle{err: eris.New("api down")}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrOracle))
	assert.Empty(t, st.entries, "failed audits are not cached")
}

func TestAudit_PremiumProfileSelectsProTier(t *testing.T) {
	st := newFakeStore()
	st.profiles["u1"] = &model.Profile{UserID: "u1", Premium: true, Credits: 5}
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	res, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "pro", oracle.lastTag)
	assert.Equal(t, "pro", res.ModelTag)
}

func TestAudit_RequiredModelTagScopesLookup(t *testing.T) {
	st := newFakeStore()
	st.profiles["u1"] = &model.Profile{UserID: "u1", Premium: true, Credits: 5}
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	// Seed the cache with a free-tier audit of the same page.
	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en"})
	require.NoError(t, err)
	require.Equal(t, "free", st.entries[0].ModelTag)

	// A pro requirement must not be satisfied by the free entry.
	res, err := a.Audit(context.Background(), Request{
		URL:              "https://acme.test/",
		Language:         "en",
		UserID:           "u1",
		RequiredModelTag: "pro",
	})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "pro", res.ModelTag)
	assert.Equal(t, 2, oracle.calls)
}

func TestAudit_NoCredits(t *testing.T) {
	st := newFakeStore()
	st.profiles["u1"] = &model.Profile{UserID: "u1", Credits: 0}
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", UserID: "u1"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoCredits))
	assert.Zero(t, oracle.calls)
}

func TestAudit_UnlimitedUserKeepsCredits(t *testing.T) {
	st := newFakeStore()
	st.profiles["u1"] = &model.Profile{UserID: "u1", Unlimited: true, Credits: 0}
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, st.consumed)
}

func TestAudit_UnknownUser(t *testing.T) {
	st := newFakeStore()
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", UserID: "ghost"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownUser))
}

func TestAudit_ProfileStoreFailureIsNotUnknownUser(t *testing.T) {
	st := newFakeStore()
	st.profiles["u1"] = &model.Profile{UserID: "u1", Credits: 5}
	st.profileErr = eris.New("db down")
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", UserID: "u1"})
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrUnknownUser), "a store outage must not read as an auth failure")
	assert.Zero(t, oracle.calls)
}

func TestLatest(t *testing.T) {
	st := newFakeStore()
	oracle := &fakeOracle{report: testReport()}
	a := newTestAuditor(st, oracle)

	_, err := a.Audit(context.Background(), Request{URL: "https://acme.test/", Language: "en"})
	require.NoError(t, err)

	got, err := a.Latest(context.Background(), "https://acme.test/", "en", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 70, got.GeoScore)

	got, err = a.Latest(context.Background(), "https://other.test/", "", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
