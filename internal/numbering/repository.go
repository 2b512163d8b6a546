package numbering

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-btp/atelier-btp/internal/platform/db"
	"github.com/atelier-btp/atelier-btp/internal/settings"
)

// Repository owns the counter rows. The counter increment is the one
// correctness-critical write of the whole numbering core: it goes through a
// single atomic upsert so two concurrent allocations can never both read the
// same value.
type Repository interface {
	// AllocateCounter atomically consumes the next counter value and returns
	// the full configuration with Counter set to the consumed value. Missing
	// configuration rows are created with the defaults inside the same
	// transaction.
	AllocateCounter(ctx context.Context, docType DocumentType, defaults Config) (Config, error)
	// ReadConfig reads the configuration without consuming anything.
	ReadConfig(ctx context.Context, docType DocumentType, defaults Config) (Config, error)
	ResetCounter(ctx context.Context, docType DocumentType, value int64) error
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	ListHistory(ctx context.Context, docType DocumentType, limit int) ([]HistoryEntry, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) AllocateCounter(ctx context.Context, docType DocumentType, defaults Config) (Config, error) {
	cfg := defaults
	// ReadCommitted on purpose: the ON CONFLICT upsert below takes the row
	// lock and blocks a concurrent allocation until commit, without the
	// serialization aborts RepeatableRead would produce under contention.
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var consumed int64
		err := tx.QueryRow(ctx, `
			INSERT INTO parametres (category, key, value, description, updated_at)
			VALUES ($1, $2, $3, 'Prochain numero', NOW())
			ON CONFLICT (category, key)
			DO UPDATE SET value = ((parametres.value)::bigint + 1)::text, updated_at = NOW()
			RETURNING (value)::bigint - 1
		`, settings.CategoryNumbering, docType.keyCounter(), strconv.FormatInt(defaults.Counter+1, 10)).Scan(&consumed)
		if err != nil {
			return err
		}
		cfg.Counter = consumed

		if err := r.ensureDefaults(ctx, tx, docType, defaults); err != nil {
			return err
		}
		return r.readFormatting(ctx, tx, docType, &cfg)
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ensureDefaults upserts the prefix/digits/format rows on first use so later
// reads never hit the absent-configuration path again.
func (r *repository) ensureDefaults(ctx context.Context, tx pgx.Tx, docType DocumentType, defaults Config) error {
	rows := map[string]string{
		docType.keyPrefix(): defaults.Prefix,
		docType.keyDigits(): strconv.Itoa(defaults.DigitCount),
		docType.keyFormat(): defaults.Format,
	}
	for key, value := range rows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO parametres (category, key, value, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (category, key) DO NOTHING
		`, settings.CategoryNumbering, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) readFormatting(ctx context.Context, q interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}, docType DocumentType, cfg *Config) error {
	rows, err := q.Query(ctx, `
		SELECT key, value FROM parametres
		WHERE category = $1 AND key = ANY($2)
	`, settings.CategoryNumbering, []string{docType.keyPrefix(), docType.keyDigits(), docType.keyFormat()})
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		switch key {
		case docType.keyPrefix():
			cfg.Prefix = value
		case docType.keyDigits():
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				cfg.DigitCount = n
			}
		case docType.keyFormat():
			if value != "" {
				cfg.Format = value
			}
		}
	}
	return rows.Err()
}

func (r *repository) ReadConfig(ctx context.Context, docType DocumentType, defaults Config) (Config, error) {
	cfg := defaults
	var counterRaw *string
	err := r.pool.QueryRow(ctx, `
		SELECT value FROM parametres WHERE category = $1 AND key = $2
	`, settings.CategoryNumbering, docType.keyCounter()).Scan(&counterRaw)
	if err != nil && err != pgx.ErrNoRows {
		return Config{}, err
	}
	if counterRaw != nil {
		if n, perr := strconv.ParseInt(*counterRaw, 10, 64); perr == nil {
			cfg.Counter = n
		}
	}
	if err := r.readFormatting(ctx, r.pool, docType, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (r *repository) ResetCounter(ctx context.Context, docType DocumentType, value int64) error {
	// Unconditional overwrite. Reusing past numbers is the caller's call.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO parametres (category, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (category, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, settings.CategoryNumbering, docType.keyCounter(), strconv.FormatInt(value, 10))
	return err
}

func (r *repository) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO numerotation_historique (document_type, reference, user_id, created_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()))
	`, entry.DocumentType, entry.Reference, entry.UserID, entry.CreatedAt)
	return err
}

func (r *repository) ListHistory(ctx context.Context, docType DocumentType, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT document_type, reference, user_id, created_at
		FROM numerotation_historique
		WHERE document_type = $1
		ORDER BY created_at DESC, reference DESC
		LIMIT $2
	`, docType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.DocumentType, &e.Reference, &e.UserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
