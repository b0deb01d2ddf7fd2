package progress

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStore is a [Store] backed by a PostgreSQL connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("progress: postgres dsn must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("progress: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("progress: connect postgres: %w", err)
	}

	// goose needs a *sql.DB; borrow one backed by the same pool.
	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "postgres")
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// Record implements [Store].
func (s *PostgresStore) Record(ctx context.Context, a Attempt) (int64, error) {
	a, err := prepare(a, s.now)
	if err != nil {
		return 0, err
	}
	query, args, err := insertQuery(a, sq.Dollar).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("progress: build insert: %w", err)
	}
	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("progress: insert attempt: %w", err)
	}
	return id, nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, speakerID string) ([]Attempt, error) {
	query, args, err := listQuery(speakerID, sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("progress: build select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("progress: list attempts: %w", err)
	}
	defer rows.Close()

	out := make([]Attempt, 0)
	for rows.Next() {
		var r nullableRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("progress: scan attempt: %w", err)
		}
		out = append(out, r.attempt(speakerID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("progress: list attempts: %w", err)
	}
	return out, nil
}

// Ping implements [Store].
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("progress: ping postgres: %w", err)
	}
	return nil
}

// Close implements [Store].
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
