package audio

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps artifacts in PostgreSQL so any instance can serve
// audio rendered by another.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply audio migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Put(ctx context.Context, a Artifact) error {
	if err := ValidateRef(a.Ref); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audio_artifacts (ref, call_id, mime_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.Ref, a.CallID, a.MIMEType, a.Data, a.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrArtifactExists, a.Ref)
	}
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ref string) (Artifact, error) {
	if err := ValidateRef(ref); err != nil {
		return Artifact{}, err
	}
	a := Artifact{Ref: ref}
	err := s.pool.QueryRow(ctx,
		`SELECT call_id, mime_type, payload, created_at FROM audio_artifacts WHERE ref = $1`,
		ref,
	).Scan(&a.CallID, &a.MIMEType, &a.Data, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Artifact{}, ErrArtifactNotFound
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("select artifact: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audio_artifacts WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune artifacts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
