package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-btp/atelier-btp/internal/platform/db"
)

var (
	ErrNotFound  = errors.New("catalog entry not found")
	ErrDuplicate = errors.New("catalog code already exists")
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	ListOuvrages(ctx context.Context, f ListFilters) ([]Ouvrage, int, error)
	GetOuvrage(ctx context.Context, id int64) (*Ouvrage, error)
	CreateOuvrage(ctx context.Context, o Ouvrage) (int64, error)
	UpdateOuvrage(ctx context.Context, id int64, o Ouvrage) error
	DeleteOuvrage(ctx context.Context, id int64) error
	ReplaceComposition(ctx context.Context, ouvrageID int64, materials []OuvrageMaterial) error

	ListMaterials(ctx context.Context, f ListFilters) ([]Material, int, error)
	GetMaterial(ctx context.Context, id int64) (*Material, error)
	CreateMaterial(ctx context.Context, m Material) (int64, error)
	UpdateMaterial(ctx context.Context, id int64, m Material) error
	DeleteMaterial(ctx context.Context, id int64) error
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

func (r *repository) ListOuvrages(ctx context.Context, f ListFilters) ([]Ouvrage, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if f.Search != "" {
		argCount++
		p := strconv.Itoa(argCount)
		where += ` AND (label ILIKE $` + p + ` OR code ILIKE $` + p + `)`
		args = append(args, "%"+f.Search+"%")
	}
	if f.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *f.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ouvrages`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, code, label, unit, unit_price, tax_rate, is_active, created_at, updated_at FROM ouvrages` + where + ` ORDER BY code ASC`
	if f.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, f.PerPage)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (f.Page - 1) * f.PerPage
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Ouvrage
	for rows.Next() {
		var o Ouvrage
		if err := rows.Scan(&o.ID, &o.Code, &o.Label, &o.Unit, &o.UnitPrice, &o.TaxRate, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *repository) GetOuvrage(ctx context.Context, id int64) (*Ouvrage, error) {
	var o Ouvrage
	err := r.db.QueryRow(ctx, `
		SELECT id, code, label, unit, unit_price, tax_rate, is_active, created_at, updated_at
		FROM ouvrages WHERE id = $1
	`, id).Scan(&o.ID, &o.Code, &o.Label, &o.Unit, &o.UnitPrice, &o.TaxRate, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, ouvrage_id, material_id, quantity
		FROM ouvrage_materiaux WHERE ouvrage_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m OuvrageMaterial
		if err := rows.Scan(&m.ID, &m.OuvrageID, &m.MaterialID, &m.Quantity); err != nil {
			return nil, err
		}
		o.Materials = append(o.Materials, m)
	}
	return &o, rows.Err()
}

func (r *repository) CreateOuvrage(ctx context.Context, o Ouvrage) (int64, error) {
	now := time.Now()
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO ouvrages (code, label, unit, unit_price, tax_rate, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`, o.Code, o.Label, o.Unit, o.UnitPrice, o.TaxRate, o.IsActive, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateOuvrage(ctx context.Context, id int64, o Ouvrage) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ouvrages
		SET code = $1, label = $2, unit = $3, unit_price = $4, tax_rate = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
	`, o.Code, o.Label, o.Unit, o.UnitPrice, o.TaxRate, o.IsActive, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteOuvrage(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ouvrages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ReplaceComposition(ctx context.Context, ouvrageID int64, materials []OuvrageMaterial) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM ouvrage_materiaux WHERE ouvrage_id = $1`, ouvrageID); err != nil {
		return err
	}
	for _, m := range materials {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO ouvrage_materiaux (ouvrage_id, material_id, quantity)
			VALUES ($1, $2, $3)
		`, ouvrageID, m.MaterialID, m.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ListMaterials(ctx context.Context, f ListFilters) ([]Material, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if f.Search != "" {
		argCount++
		p := strconv.Itoa(argCount)
		where += ` AND (label ILIKE $` + p + ` OR supplier_ref ILIKE $` + p + `)`
		args = append(args, "%"+f.Search+"%")
	}
	if f.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *f.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM materiaux`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, label, unit, purchase_price, sale_price, tax_rate, supplier_ref, is_active, created_at, updated_at FROM materiaux` + where + ` ORDER BY label ASC`
	if f.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, f.PerPage)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (f.Page - 1) * f.PerPage
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Label, &m.Unit, &m.PurchasePrice, &m.SalePrice, &m.TaxRate, &m.SupplierRef, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *repository) GetMaterial(ctx context.Context, id int64) (*Material, error) {
	var m Material
	err := r.db.QueryRow(ctx, `
		SELECT id, label, unit, purchase_price, sale_price, tax_rate, supplier_ref, is_active, created_at, updated_at
		FROM materiaux WHERE id = $1
	`, id).Scan(&m.ID, &m.Label, &m.Unit, &m.PurchasePrice, &m.SalePrice, &m.TaxRate, &m.SupplierRef, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *repository) CreateMaterial(ctx context.Context, m Material) (int64, error) {
	now := time.Now()
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO materiaux (label, unit, purchase_price, sale_price, tax_rate, supplier_ref, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`, m.Label, m.Unit, m.PurchasePrice, m.SalePrice, m.TaxRate, m.SupplierRef, m.IsActive, now).Scan(&id)
	return id, err
}

func (r *repository) UpdateMaterial(ctx context.Context, id int64, m Material) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE materiaux
		SET label = $1, unit = $2, purchase_price = $3, sale_price = $4, tax_rate = $5, supplier_ref = $6, is_active = $7, updated_at = NOW()
		WHERE id = $8
	`, m.Label, m.Unit, m.PurchasePrice, m.SalePrice, m.TaxRate, m.SupplierRef, m.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DeleteMaterial(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM materiaux WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
