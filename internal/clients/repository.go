package clients

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("client not found")

type Repository interface {
	List(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
	Get(ctx context.Context, id int64) (*Client, error)
	Create(ctx context.Context, client Client) (int64, error)
	Update(ctx context.Context, id int64, client Client) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const clientColumns = `id, name, contact_name, email, phone, address_line, postal_code, city, prescriber_id, notes, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if req.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR city ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+req.Search+"%")
	}
	if req.PrescriberID != nil {
		argCount++
		where += ` AND prescriber_id = $` + strconv.Itoa(argCount)
		args = append(args, *req.PrescriberID)
	}
	if req.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *req.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + clientColumns + ` FROM clients` + where + ` ORDER BY name ASC`
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

	var out []Client
	for rows.Next() {
		var c Client
		if err := scanClient(rows, &c); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	var c Client
	err := scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) Create(ctx context.Context, c Client) (int64, error) {
	now := time.Now()
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO clients (name, contact_name, email, phone, address_line, postal_code, city, prescriber_id, notes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id
	`, c.Name, c.ContactName, c.Email, c.Phone, c.AddressLine, c.PostalCode, c.City, c.PrescriberID, c.Notes, c.IsActive, now).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, c Client) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE clients
		SET name = $1, contact_name = $2, email = $3, phone = $4, address_line = $5,
		    postal_code = $6, city = $7, prescriber_id = $8, notes = $9, is_active = $10,
		    updated_at = NOW()
		WHERE id = $11
	`, c.Name, c.ContactName, c.Email, c.Phone, c.AddressLine, c.PostalCode, c.City, c.PrescriberID, c.Notes, c.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row, c *Client) error {
	return row.Scan(&c.ID, &c.Name, &c.ContactName, &c.Email, &c.Phone, &c.AddressLine,
		&c.PostalCode, &c.City, &c.PrescriberID, &c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
}
