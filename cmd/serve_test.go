package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/siteaudit/internal/model"
	"github.com/sells-group/siteaudit/internal/pipeline"
	"github.com/sells-group/siteaudit/internal/render"
	"github.com/sells-group/siteaudit/internal/store"
)

type stubGuard struct{ err error }

func (s *stubGuard) Validate(context.Context, string) error { return s.err }

type stubRenderer struct{ html string }

func (s *stubRenderer) Render(context.Context, string) (*render.Snapshot, error) {
	return &render.Snapshot{HTML: s.html}, nil
}

type stubOracle struct{ report *model.AuditReport }

func (s *stubOracle) Score(context.Context, *model.PageDigest, string, string) (*model.AuditReport, error) {
	return s.report, nil
}

func newTestEnv(t *testing.T) *auditEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	auditor := pipeline.NewAuditor(
		&stubGuard{},
		&stubRenderer{html: "<html><body><h1>Acme</h1></body></html>"},
		st,
		&stubOracle{report: &model.AuditReport{Summary: "fine", GeoScore: 70}},
	)
	return &auditEnv{Store: st, Auditor: auditor}
}

func newTestRouter(t *testing.T) http.Handler {
	return newRouter(newTestEnv(t), rate.NewLimiter(rate.Inf, 1))
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRouter_AuditRequiresURL(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audit", strings.NewReader(`{}`))
	newTestRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AuditInvalidBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audit", strings.NewReader(`{not json`))
	newTestRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AuditSuccess(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audit",
		strings.NewReader(`{"url": "https://acme.test/", "language": "en"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Cached   bool               `json:"cached"`
		ModelTag string             `json:"model_tag"`
		Report   *model.AuditReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Cached)
	assert.Equal(t, "free", body.ModelTag)
	assert.Equal(t, 70, body.Report.GeoScore)

	// Second request for the same page hits the cache.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/audit",
		strings.NewReader(`{"url": "https://acme.test/", "language": "en"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Cached)
}

func TestRouter_LatestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/audit/latest?url=https://nobody.test/", nil)
	newTestRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	router := newRouter(newTestEnv(t), rate.NewLimiter(rate.Limit(0), 0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/audit",
		strings.NewReader(`{"url": "https://acme.test/"}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMapAuditError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{eris.Wrap(pipeline.ErrInvalidInput, "blocked"), http.StatusBadRequest},
		{eris.Wrap(pipeline.ErrUnknownUser, "ghost"), http.StatusUnauthorized},
		{pipeline.ErrNoCredits, http.StatusPaymentRequired},
		{eris.Wrap(pipeline.ErrNetwork, "timeout"), http.StatusBadGateway},
		{eris.Wrap(pipeline.ErrOracle, "down"), http.StatusServiceUnavailable},
		{eris.New("surprise"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := mapAuditError(tt.err)
		assert.Equal(t, tt.status, status, "error: %v", tt.err)
	}
}
