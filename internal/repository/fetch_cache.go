package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/joseph-ayodele/listing-verifier/internal/common"
)

const fetchCacheTable = "fetch_cache"

var fetchCacheDDL = map[Dialect]string{
	DialectSQLite: `CREATE TABLE IF NOT EXISTS fetch_cache (
	url_hash   TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
)`,
	DialectPostgres: `CREATE TABLE IF NOT EXISTS fetch_cache (
	url_hash   TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	body       BYTEA NOT NULL,
	fetched_at BIGINT NOT NULL
)`,
}

// FetchCacheRepository stores raw bytes of remote references keyed by URL.
type FetchCacheRepository interface {
	Get(ctx context.Context, url string, maxAge time.Duration) ([]byte, bool, error)
	Put(ctx context.Context, url string, body []byte) error
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

type fetchCacheRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

// NewFetchCacheRepository creates the cache table when missing.
func NewFetchCacheRepository(ctx context.Context, db *DB, logger *slog.Logger) (FetchCacheRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, fetchCacheDDL[db.Dialect]); err != nil {
		return nil, common.NewAppError("DB_ERROR", "create fetch_cache table", errors.Join(common.ErrDatabase, err))
	}
	return &fetchCacheRepo{db: db, logger: logger, now: time.Now}, nil
}

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached body. A maxAge of zero ignores age.
func (r *fetchCacheRepo) Get(ctx context.Context, url string, maxAge time.Duration) ([]byte, bool, error) {
	q, args, err := r.db.Builder.
		Select("body", "fetched_at").
		From(fetchCacheTable).
		Where(sq.Eq{"url_hash": hashURL(url)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build select: %w", err)
	}

	var (
		body      []byte
		fetchedAt int64
	)
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&body, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		r.logger.Error("failed to read fetch cache", "url", url, "error", err)
		return nil, false, errors.Join(common.ErrDatabase, err)
	}
	if maxAge > 0 && r.now().Sub(time.Unix(fetchedAt, 0)) > maxAge {
		return nil, false, nil
	}
	return body, true, nil
}

func (r *fetchCacheRepo) Put(ctx context.Context, url string, body []byte) error {
	q, args, err := r.db.Builder.
		Insert(fetchCacheTable).
		Columns("url_hash", "url", "body", "fetched_at").
		Values(hashURL(url), url, body, r.now().Unix()).
		Suffix("ON CONFLICT (url_hash) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to write fetch cache", "url", url, "error", err)
		return errors.Join(common.ErrDatabase, err)
	}
	return nil
}

// Prune deletes entries older than the given age and returns how many were removed.
func (r *fetchCacheRepo) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	q, args, err := r.db.Builder.
		Delete(fetchCacheTable).
		Where(sq.Lt{"fetched_at": r.now().Add(-olderThan).Unix()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Join(common.ErrDatabase, err)
	}
	return res.RowsAffected()
}
