package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siteaudit/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. Hot-path
// queries are prepared per connection by pgx's statement cache.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS audit_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url_fp     TEXT NOT NULL,
	content_fp TEXT NOT NULL,
	language   TEXT NOT NULL,
	model_tag  TEXT NOT NULL,
	geo_score  INTEGER NOT NULL,
	scores     JSONB NOT NULL,
	report     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	premium    BOOLEAN NOT NULL DEFAULT false,
	unlimited  BOOLEAN NOT NULL DEFAULT false,
	credits    INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_cache_key
	ON audit_cache(url_fp, content_fp, language, model_tag, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_cache_created_at ON audit_cache(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LookupAudit(ctx context.Context, key model.AuditKey) (*model.CachedAudit, error) {
	query := `SELECT id, url_fp, content_fp, language, model_tag, geo_score, scores, report, created_at
		FROM audit_cache WHERE url_fp = $1 AND content_fp = $2 AND language = $3`
	args := []any{key.URLFingerprint, key.ContentFingerprint, key.Language}

	if key.ModelTag != "" {
		query += ` AND model_tag = $4`
		args = append(args, key.ModelTag)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	row := s.pool.QueryRow(ctx, query, args...)
	entry, err := scanAuditPg(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup audit")
	}
	return entry, nil
}

func (s *PostgresStore) LookupLatestByURL(ctx context.Context, urlFP, language, modelTag string) (*model.CachedAudit, error) {
	query := `SELECT id, url_fp, content_fp, language, model_tag, geo_score, scores, report, created_at
		FROM audit_cache WHERE url_fp = $1`
	args := []any{urlFP}

	if language != "" {
		args = append(args, language)
		query += ` AND language = $2`
	}
	if modelTag != "" {
		args = append(args, modelTag)
		query += fmt.Sprintf(` AND model_tag = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	row := s.pool.QueryRow(ctx, query, args...)
	entry, err := scanAuditPg(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup latest")
	}
	return entry, nil
}

func (s *PostgresStore) StoreAudit(ctx context.Context, entry *model.CachedAudit) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	scoresJSON, err := json.Marshal(entry.Scores)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal scores")
	}
	var reportJSON []byte
	if entry.Report != nil {
		reportJSON, err = json.Marshal(entry.Report)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal report")
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_cache (id, url_fp, content_fp, language, model_tag, geo_score, scores, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, entry.URLFingerprint, entry.ContentFingerprint, entry.Language,
		entry.ModelTag, entry.GeoScore, scoresJSON, reportJSON, createdAt,
	)
	return eris.Wrap(err, "postgres: insert audit")
}

func (s *PostgresStore) PurgeAudits(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_cache WHERE created_at < $1`, before.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge audits")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) AuditStats(ctx context.Context) ([]AuditStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT language, model_tag, COUNT(*) FROM audit_cache
		 GROUP BY language, model_tag ORDER BY language, model_tag`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: audit stats")
	}
	defer rows.Close()

	var stats []AuditStat
	for rows.Next() {
		var st AuditStat
		if err := rows.Scan(&st.Language, &st.ModelTag, &st.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stat")
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: audit stats iterate")
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, premium, unlimited, credits, created_at FROM profiles WHERE user_id = $1`,
		userID,
	)

	var p model.Profile
	err := row.Scan(&p.UserID, &p.Premium, &p.Unlimited, &p.Credits, &p.CreatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get profile")
	}
	return &p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, premium, unlimited, credits, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET premium = EXCLUDED.premium,
			unlimited = EXCLUDED.unlimited, credits = EXCLUDED.credits`,
		p.UserID, p.Premium, p.Unlimited, p.Credits, createdAt,
	)
	return eris.Wrap(err, "postgres: upsert profile")
}

// ConsumeCredit is a single conditional UPDATE, the atomic
// decrement-with-floor that closes the read-modify-write race window.
func (s *PostgresStore) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET credits = credits - 1 WHERE user_id = $1 AND credits > 0`,
		userID,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: consume credit")
	}
	return tag.RowsAffected() > 0, nil
}

func scanAuditPg(row pgx.Row) (*model.CachedAudit, error) {
	var entry model.CachedAudit
	var scoresJSON []byte
	var reportJSON []byte

	err := row.Scan(&entry.ID, &entry.URLFingerprint, &entry.ContentFingerprint,
		&entry.Language, &entry.ModelTag, &entry.GeoScore, &scoresJSON,
		&reportJSON, &entry.CreatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scoresJSON, &entry.Scores); err != nil {
		return nil, eris.Wrap(err, "unmarshal scores")
	}
	if len(reportJSON) > 0 {
		entry.Report = &model.AuditReport{}
		if err := json.Unmarshal(reportJSON, entry.Report); err != nil {
			return nil, eris.Wrap(err, "unmarshal report")
		}
	}
	return &entry, nil
}
