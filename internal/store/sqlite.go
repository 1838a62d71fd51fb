package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/siteaudit/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS audit_cache (
	id         TEXT PRIMARY KEY,
	url_fp     TEXT NOT NULL,
	content_fp TEXT NOT NULL,
	language   TEXT NOT NULL,
	model_tag  TEXT NOT NULL,
	geo_score  INTEGER NOT NULL,
	scores     TEXT NOT NULL,
	report     TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	premium    INTEGER NOT NULL DEFAULT 0,
	unlimited  INTEGER NOT NULL DEFAULT 0,
	credits    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_cache_key
	ON audit_cache(url_fp, content_fp, language, model_tag, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_cache_created_at ON audit_cache(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LookupAudit(ctx context.Context, key model.AuditKey) (*model.CachedAudit, error) {
	query := `SELECT id, url_fp, content_fp, language, model_tag, geo_score, scores, report, created_at
		FROM audit_cache
		WHERE url_fp = ? AND content_fp = ? AND language = ?`
	args := []any{key.URLFingerprint, key.ContentFingerprint, key.Language}

	if key.ModelTag != "" {
		query += ` AND model_tag = ?`
		args = append(args, key.ModelTag)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	return scanAudit(row)
}

func (s *SQLiteStore) LookupLatestByURL(ctx context.Context, urlFP, language, modelTag string) (*model.CachedAudit, error) {
	query := `SELECT id, url_fp, content_fp, language, model_tag, geo_score, scores, report, created_at
		FROM audit_cache
		WHERE url_fp = ?`
	args := []any{urlFP}

	if language != "" {
		query += ` AND language = ?`
		args = append(args, language)
	}
	if modelTag != "" {
		query += ` AND model_tag = ?`
		args = append(args, modelTag)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	return scanAudit(row)
}

func (s *SQLiteStore) StoreAudit(ctx context.Context, entry *model.CachedAudit) error {
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
		return eris.Wrap(err, "sqlite: marshal scores")
	}
	var reportJSON []byte
	if entry.Report != nil {
		reportJSON, err = json.Marshal(entry.Report)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal report")
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_cache (id, url_fp, content_fp, language, model_tag, geo_score, scores, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, entry.URLFingerprint, entry.ContentFingerprint, entry.Language,
		entry.ModelTag, entry.GeoScore, string(scoresJSON), nullString(reportJSON), createdAt,
	)
	return eris.Wrap(err, "sqlite: insert audit")
}

func (s *SQLiteStore) PurgeAudits(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_cache WHERE created_at < ?`, before.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge audits")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) AuditStats(ctx context.Context) ([]AuditStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT language, model_tag, COUNT(*) FROM audit_cache
		 GROUP BY language, model_tag ORDER BY language, model_tag`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: audit stats")
	}
	defer rows.Close()

	var stats []AuditStat
	for rows.Next() {
		var st AuditStat
		if err := rows.Scan(&st.Language, &st.ModelTag, &st.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stat")
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: audit stats iterate")
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, premium, unlimited, credits, created_at FROM profiles WHERE user_id = ?`,
		userID,
	)

	var p model.Profile
	err := row.Scan(&p.UserID, &p.Premium, &p.Unlimited, &p.Credits, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get profile")
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, premium, unlimited, credits, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET premium = excluded.premium,
			unlimited = excluded.unlimited, credits = excluded.credits`,
		p.UserID, p.Premium, p.Unlimited, p.Credits, createdAt,
	)
	return eris.Wrap(err, "sqlite: upsert profile")
}

// ConsumeCredit is a single conditional UPDATE: decrement-if-positive in
// one statement, so concurrent consumers can never push a balance below
// zero or lose an update.
func (s *SQLiteStore) ConsumeCredit(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET credits = credits - 1 WHERE user_id = ? AND credits > 0`,
		userID,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: consume credit")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanAudit(row scannable) (*model.CachedAudit, error) {
	var entry model.CachedAudit
	var scoresJSON string
	var reportJSON sql.NullString

	err := row.Scan(&entry.ID, &entry.URLFingerprint, &entry.ContentFingerprint,
		&entry.Language, &entry.ModelTag, &entry.GeoScore, &scoresJSON,
		&reportJSON, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan audit")
	}

	if err := json.Unmarshal([]byte(scoresJSON), &entry.Scores); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal scores")
	}
	if reportJSON.Valid && reportJSON.String != "" {
		entry.Report = &model.AuditReport{}
		if err := json.Unmarshal([]byte(reportJSON.String), entry.Report); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal report")
		}
	}
	return &entry, nil
}

func nullString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
