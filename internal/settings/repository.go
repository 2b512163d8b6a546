package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-btp/atelier-btp/internal/platform/db"
)

var ErrNotFound = errors.New("setting not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	ListByCategory(ctx context.Context, category string) ([]Setting, error)
	Get(ctx context.Context, category, key string) (*Setting, error)
	Upsert(ctx context.Context, s Setting) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) ListByCategory(ctx context.Context, category string) ([]Setting, error) {
	rows, err := r.db.Query(ctx, `
		SELECT key, value, description, category, updated_at
		FROM parametres
		WHERE category = $1
		ORDER BY key
	`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.Category, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, category, key string) (*Setting, error) {
	var s Setting
	err := r.db.QueryRow(ctx, `
		SELECT key, value, description, category, updated_at
		FROM parametres
		WHERE category = $1 AND key = $2
	`, category, key).Scan(&s.Key, &s.Value, &s.Description, &s.Category, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) Upsert(ctx context.Context, s Setting) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO parametres (category, key, value, description, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (category, key)
		DO UPDATE SET value = EXCLUDED.value,
		              description = COALESCE(EXCLUDED.description, parametres.description),
		              updated_at = NOW()
	`, s.Category, s.Key, s.Value, s.Description)
	return err
}
