package credential

import (
	"context"
	"embed"
	"errors"

	"github.com/cmstar/go-errx"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	sqlSelectCredential = `SELECT secret_key, description FROM aws_credentials WHERE access_key = $1`

	sqlUpsertCredential = `INSERT INTO aws_credentials (access_key, secret_key, description)
VALUES ($1, $2, $3)
ON CONFLICT (access_key) DO UPDATE
SET secret_key = EXCLUDED.secret_key, description = EXCLUDED.description, updated_at = now()`

	sqlDeleteCredential = `DELETE FROM aws_credentials WHERE access_key = $1`
)

// dbtx 是 PostgresStore 用到的 pgxpool.Pool 的方法子集。
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore 是基于 PostgreSQL 的 Store ，凭据存放在 aws_credentials 表。
type PostgresStore struct {
	pool *pgxpool.Pool
	db   dbtx
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore 连接数据库并返回 PostgresStore 。连接池启用 OpenTelemetry 追踪。
// 若 migrate 为 true ，连接后执行内嵌的 goose 迁移脚本，创建所需的表。
func NewPostgresStore(ctx context.Context, dsn string, migrate bool) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errx.Wrap("parse postgres dsn", err)
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errx.Wrap("connect postgres", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errx.Wrap("ping postgres", err)
	}

	if migrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &PostgresStore{pool: pool, db: pool}, nil
}

// Migrate 在给定的连接池上执行内嵌的迁移脚本。
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errx.Wrap("goose dialect", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errx.Wrap("migrate credentials", err)
	}
	return nil
}

// Close 关闭连接池。
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Lookup implements Store.Lookup.
func (s *PostgresStore) Lookup(ctx context.Context, accessKey string) (Credential, bool, error) {
	c := Credential{AccessKey: accessKey}
	err := s.db.QueryRow(ctx, sqlSelectCredential, accessKey).Scan(&c.SecretKey, &c.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, errx.Wrap("lookup credential", err)
	}
	return c, true, nil
}

// Put 添加或替换一个凭据。
func (s *PostgresStore) Put(ctx context.Context, c Credential) error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("access key and secret key are required")
	}

	_, err := s.db.Exec(ctx, sqlUpsertCredential, c.AccessKey, c.SecretKey, c.Description)
	if err != nil {
		return errx.Wrap("put credential", err)
	}
	return nil
}

// Delete 删除一个凭据。返回是否确实删除了记录。
func (s *PostgresStore) Delete(ctx context.Context, accessKey string) (bool, error) {
	tag, err := s.db.Exec(ctx, sqlDeleteCredential, accessKey)
	if err != nil {
		return false, errx.Wrap("delete credential", err)
	}
	return tag.RowsAffected() > 0, nil
}
