package prescribers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("prescriber not found")

type Repository interface {
	List(ctx context.Context, req ListPrescribersRequest) ([]Prescriber, int, error)
	Get(ctx context.Context, id int64) (*Prescriber, error)
	Create(ctx context.Context, p Prescriber) (int64, error)
	Update(ctx context.Context, id int64, p Prescriber) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const prescriberColumns = `id, first_name, last_name, company, profession, email, phone, commission_rate, notes, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, req ListPrescribersRequest) ([]Prescriber, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if req.Search != "" {
		argCount++
		p := strconv.Itoa(argCount)
		where += ` AND (first_name ILIKE $` + p + ` OR last_name ILIKE $` + p + ` OR company ILIKE $` + p + `)`
		args = append(args, "%"+req.Search+"%")
	}
	if req.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *req.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM prescripteurs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + prescriberColumns + ` FROM prescripteurs` + where + ` ORDER BY last_name ASC, first_name ASC`
	if req.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, req.PerPage)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (req.Page - 1) * req.PerPage
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

	var out []Prescriber
	for rows.Next() {
		var p Prescriber
		if err := scanPrescriber(rows, &p); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Prescriber, error) {
	var p Prescriber
	err := scanPrescriber(r.db.QueryRow(ctx, `SELECT `+prescriberColumns+` FROM prescripteurs WHERE id = $1`, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, p Prescriber) (int64, error) {
	now := time.Now()
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO prescripteurs (first_name, last_name, company, profession, email, phone, commission_rate, notes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id
	`, p.FirstName, p.LastName, p.Company, p.Profession, p.Email, p.Phone, p.CommissionRate, p.Notes, p.IsActive, now).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, p Prescriber) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE prescripteurs
		SET first_name = $1, last_name = $2, company = $3, profession = $4, email = $5,
		    phone = $6, commission_rate = $7, notes = $8, is_active = $9, updated_at = NOW()
		WHERE id = $10
	`, p.FirstName, p.LastName, p.Company, p.Profession, p.Email, p.Phone, p.CommissionRate, p.Notes, p.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM prescripteurs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPrescriber(row pgx.Row, p *Prescriber) error {
	return row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Company, &p.Profession, &p.Email,
		&p.Phone, &p.CommissionRate, &p.Notes, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}
