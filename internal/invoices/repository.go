package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-btp/atelier-btp/internal/platform/db"
)

var ErrNotFound = errors.New("facture not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Facture, error)
	List(ctx context.Context, req ListFacturesRequest) ([]FactureWithClient, int, error)
	Create(ctx context.Context, f Facture) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	ReplaceLines(ctx context.Context, factureID int64, lines []Line) error
	UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error
	Delete(ctx context.Context, id int64) error
	ListOverdue(ctx context.Context, asOf time.Time) ([]OverdueFacture, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	OutstandingTotal(ctx context.Context) (float64, error)
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

const factureColumns = `id, reference, client_id, devis_id, status, facture_date, due_date,
       total_ht, total_tva, total_ttc, retenue_rate, retenue_amount, net_to_pay, notes,
       sent_at, paid_at, cancelled_at, created_at, updated_at`

func scanFacture(row pgx.Row) (*Facture, error) {
	var f Facture
	err := row.Scan(
		&f.ID, &f.Reference, &f.ClientID, &f.DevisID, &f.Status, &f.FactureDate, &f.DueDate,
		&f.TotalHT, &f.TotalTVA, &f.TotalTTC, &f.RetenueRate, &f.RetenueAmount, &f.NetToPay, &f.Notes,
		&f.SentAt, &f.PaidAt, &f.CancelledAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Facture, error) {
	row := r.db.QueryRow(ctx, `SELECT `+factureColumns+` FROM factures WHERE id = $1`, id)
	f, err := scanFacture(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *repository) loadLines(ctx context.Context, f *Facture) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, facture_id, parent_id, label, unit, quantity, unit_price, tax_rate, billable, position
		FROM facture_lignes
		WHERE facture_id = $1
		ORDER BY position, id
	`, f.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	parentIndex := make(map[int64]int)
	var subs []Line
	for rows.Next() {
		var l Line
		err := rows.Scan(&l.ID, &l.FactureID, &l.ParentID, &l.Label, &l.Unit,
			&l.Quantity, &l.UnitPrice, &l.TaxRate, &l.Billable, &l.Position)
		if err != nil {
			return err
		}
		if l.ParentID == nil {
			parentIndex[l.ID] = len(f.Lines)
			f.Lines = append(f.Lines, l)
		} else {
			subs = append(subs, l)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, sub := range subs {
		idx, ok := parentIndex[*sub.ParentID]
		if !ok {
			continue
		}
		f.Lines[idx].Materials = append(f.Lines[idx].Materials, sub)
	}
	return nil
}

func (r *repository) List(ctx context.Context, req ListFacturesRequest) ([]FactureWithClient, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("f.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.Overdue {
		conditions = append(conditions, fmt.Sprintf("f.status = '%s' AND f.due_date < NOW()", StatusEnvoyee))
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("f.facture_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("f.facture_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(f.reference ILIKE $%d OR c.name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	where := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		where += " AND " + conditions[i]
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM factures f JOIN clients c ON f.client_id = c.id %s", where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT f.id, f.reference, f.client_id, f.devis_id, f.status, f.facture_date, f.due_date,
		       f.total_ht, f.total_tva, f.total_ttc, f.retenue_rate, f.retenue_amount, f.net_to_pay, f.notes,
		       f.sent_at, f.paid_at, f.cancelled_at, f.created_at, f.updated_at,
		       c.name AS client_name
		FROM factures f
		JOIN clients c ON f.client_id = c.id
		%s
		ORDER BY f.facture_date DESC, f.id DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)
	args = append(args, req.PerPage, (req.Page-1)*req.PerPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []FactureWithClient
	for rows.Next() {
		var f FactureWithClient
		err := rows.Scan(
			&f.ID, &f.Reference, &f.ClientID, &f.DevisID, &f.Status, &f.FactureDate, &f.DueDate,
			&f.TotalHT, &f.TotalTVA, &f.TotalTTC, &f.RetenueRate, &f.RetenueAmount, &f.NetToPay, &f.Notes,
			&f.SentAt, &f.PaidAt, &f.CancelledAt, &f.CreatedAt, &f.UpdatedAt,
			&f.ClientName,
		)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, f)
	}
	return list, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, f Facture) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO factures (reference, client_id, devis_id, status, facture_date, due_date,
		                      total_ht, total_tva, total_ttc, retenue_rate, retenue_amount, net_to_pay,
		                      notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id
	`, f.Reference, f.ClientID, f.DevisID, f.Status, f.FactureDate, f.DueDate,
		f.TotalHT, f.TotalTVA, f.TotalTTC, f.RetenueRate, f.RetenueAmount, f.NetToPay, f.Notes).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE factures SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range []string{"client_id", "facture_date", "due_date", "notes",
		"total_ht", "total_tva", "total_ttc", "retenue_rate", "retenue_amount", "net_to_pay"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ReplaceLines(ctx context.Context, factureID int64, lines []Line) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM facture_lignes WHERE facture_id = $1`, factureID); err != nil {
		return err
	}
	for _, l := range lines {
		var lineID int64
		err := r.db.QueryRow(ctx, `
			INSERT INTO facture_lignes (facture_id, parent_id, label, unit, quantity, unit_price, tax_rate, billable, position)
			VALUES ($1, NULL, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, factureID, l.Label, l.Unit, l.Quantity, l.UnitPrice, l.TaxRate, l.Billable, l.Position).Scan(&lineID)
		if err != nil {
			return err
		}
		for _, m := range l.Materials {
			_, err := r.db.Exec(ctx, `
				INSERT INTO facture_lignes (facture_id, parent_id, label, unit, quantity, unit_price, tax_rate, billable, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, factureID, lineID, m.Label, m.Unit, m.Quantity, m.UnitPrice, m.TaxRate, m.Billable, m.Position)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	var stampCol string
	switch status {
	case StatusEnvoyee:
		stampCol = "sent_at"
	case StatusPayee:
		stampCol = "paid_at"
	case StatusAnnulee:
		stampCol = "cancelled_at"
	}

	query := `UPDATE factures SET status = $1, updated_at = NOW()`
	args := []interface{}{status}
	if stampCol != "" {
		query += fmt.Sprintf(", %s = $2 WHERE id = $3", stampCol)
		args = append(args, at, id)
	} else {
		query += ` WHERE id = $2`
		args = append(args, id)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM factures WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM factures GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// OutstandingTotal sums the net amounts still awaited on sent factures.
func (r *repository) OutstandingTotal(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(net_to_pay), 0) FROM factures WHERE status = $1
	`, StatusEnvoyee).Scan(&total)
	return total, err
}

// ListOverdue returns sent factures past their due date, with the client
// contact needed for the reminder.
func (r *repository) ListOverdue(ctx context.Context, asOf time.Time) ([]OverdueFacture, error) {
	rows, err := r.db.Query(ctx, `
		SELECT f.id, f.reference, c.name, c.email, f.due_date, f.total_ttc
		FROM factures f
		JOIN clients c ON f.client_id = c.id
		WHERE f.status = $1 AND f.due_date < $2
		ORDER BY f.due_date, f.id
	`, StatusEnvoyee, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OverdueFacture
	for rows.Next() {
		var o OverdueFacture
		if err := rows.Scan(&o.ID, &o.Reference, &o.ClientName, &o.ClientEmail, &o.DueDate, &o.TotalTTC); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
