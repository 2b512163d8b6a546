package quotes

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

var ErrNotFound = errors.New("devis not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Devis, error)
	GetByToken(ctx context.Context, token string) (*Devis, error)
	List(ctx context.Context, req ListDevisRequest) ([]DevisWithClient, int, error)
	Create(ctx context.Context, d Devis) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	ReplaceTree(ctx context.Context, devisID int64, sections []Section) error
	UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error
	Delete(ctx context.Context, id int64) error
	ListExpired(ctx context.Context, asOf time.Time) ([]int64, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
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

const devisColumns = `id, reference, client_id, prescriber_id, status, devis_date, valid_until,
       share_token, total_ht, total_tva, total_ttc, notes,
       sent_at, accepted_at, refused_at, invoiced_at, created_at, updated_at`

func scanDevis(row pgx.Row) (*Devis, error) {
	var d Devis
	err := row.Scan(
		&d.ID, &d.Reference, &d.ClientID, &d.PrescriberID, &d.Status, &d.DevisDate, &d.ValidUntil,
		&d.ShareToken, &d.TotalHT, &d.TotalTVA, &d.TotalTTC, &d.Notes,
		&d.SentAt, &d.AcceptedAt, &d.RefusedAt, &d.InvoicedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Devis, error) {
	row := r.db.QueryRow(ctx, `SELECT `+devisColumns+` FROM devis WHERE id = $1`, id)
	d, err := scanDevis(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadTree(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repository) GetByToken(ctx context.Context, token string) (*Devis, error) {
	row := r.db.QueryRow(ctx, `SELECT `+devisColumns+` FROM devis WHERE share_token = $1`, token)
	d, err := scanDevis(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadTree(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repository) loadTree(ctx context.Context, d *Devis) error {
	sectionRows, err := r.db.Query(ctx, `
		SELECT id, devis_id, title, position
		FROM devis_sections
		WHERE devis_id = $1
		ORDER BY position, id
	`, d.ID)
	if err != nil {
		return err
	}
	defer sectionRows.Close()

	sectionIndex := make(map[int64]int)
	for sectionRows.Next() {
		var s Section
		if err := sectionRows.Scan(&s.ID, &s.DevisID, &s.Title, &s.Position); err != nil {
			return err
		}
		sectionIndex[s.ID] = len(d.Sections)
		d.Sections = append(d.Sections, s)
	}
	if err := sectionRows.Err(); err != nil {
		return err
	}
	if len(d.Sections) == 0 {
		return nil
	}

	lineRows, err := r.db.Query(ctx, `
		SELECT l.id, l.section_id, l.ouvrage_id, l.description, l.unit,
		       l.quantity, l.unit_price, l.tax_rate, l.billable, l.position
		FROM devis_lignes l
		JOIN devis_sections s ON l.section_id = s.id
		WHERE s.devis_id = $1
		ORDER BY l.position, l.id
	`, d.ID)
	if err != nil {
		return err
	}
	defer lineRows.Close()

	lineIndex := make(map[int64][2]int)
	for lineRows.Next() {
		var l Line
		err := lineRows.Scan(&l.ID, &l.SectionID, &l.OuvrageID, &l.Description, &l.Unit,
			&l.Quantity, &l.UnitPrice, &l.TaxRate, &l.Billable, &l.Position)
		if err != nil {
			return err
		}
		si := sectionIndex[l.SectionID]
		lineIndex[l.ID] = [2]int{si, len(d.Sections[si].Lines)}
		d.Sections[si].Lines = append(d.Sections[si].Lines, l)
	}
	if err := lineRows.Err(); err != nil {
		return err
	}

	matRows, err := r.db.Query(ctx, `
		SELECT m.id, m.ligne_id, m.material_id, m.label, m.unit,
		       m.quantity, m.unit_price, m.tax_rate, m.billable, m.position
		FROM devis_ligne_materiaux m
		JOIN devis_lignes l ON m.ligne_id = l.id
		JOIN devis_sections s ON l.section_id = s.id
		WHERE s.devis_id = $1
		ORDER BY m.position, m.id
	`, d.ID)
	if err != nil {
		return err
	}
	defer matRows.Close()

	for matRows.Next() {
		var m LineMaterial
		err := matRows.Scan(&m.ID, &m.LineID, &m.MaterialID, &m.Label, &m.Unit,
			&m.Quantity, &m.UnitPrice, &m.TaxRate, &m.Billable, &m.Position)
		if err != nil {
			return err
		}
		idx, ok := lineIndex[m.LineID]
		if !ok {
			continue
		}
		line := &d.Sections[idx[0]].Lines[idx[1]]
		line.Materials = append(line.Materials, m)
	}
	return matRows.Err()
}

func (r *repository) List(ctx context.Context, req ListDevisRequest) ([]DevisWithClient, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	argPos := 1

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("d.client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("d.devis_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("d.devis_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(d.reference ILIKE $%d OR c.name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	where := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		where += " AND " + conditions[i]
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM devis d JOIN clients c ON d.client_id = c.id %s", where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT d.id, d.reference, d.client_id, d.prescriber_id, d.status, d.devis_date, d.valid_until,
		       d.share_token, d.total_ht, d.total_tva, d.total_ttc, d.notes,
		       d.sent_at, d.accepted_at, d.refused_at, d.invoiced_at, d.created_at, d.updated_at,
		       c.name AS client_name
		FROM devis d
		JOIN clients c ON d.client_id = c.id
		%s
		ORDER BY d.devis_date DESC, d.id DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)
	args = append(args, req.PerPage, (req.Page-1)*req.PerPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []DevisWithClient
	for rows.Next() {
		var d DevisWithClient
		err := rows.Scan(
			&d.ID, &d.Reference, &d.ClientID, &d.PrescriberID, &d.Status, &d.DevisDate, &d.ValidUntil,
			&d.ShareToken, &d.TotalHT, &d.TotalTVA, &d.TotalTTC, &d.Notes,
			&d.SentAt, &d.AcceptedAt, &d.RefusedAt, &d.InvoicedAt, &d.CreatedAt, &d.UpdatedAt,
			&d.ClientName,
		)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, d)
	}
	return list, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, d Devis) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO devis (reference, client_id, prescriber_id, status, devis_date, valid_until,
		                   share_token, total_ht, total_tva, total_ttc, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id
	`, d.Reference, d.ClientID, d.PrescriberID, d.Status, d.DevisDate, d.ValidUntil,
		d.ShareToken, d.TotalHT, d.TotalTVA, d.TotalTTC, d.Notes).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE devis SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range []string{"client_id", "prescriber_id", "devis_date", "valid_until", "notes", "total_ht", "total_tva", "total_ttc"} {
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

func (r *repository) ReplaceTree(ctx context.Context, devisID int64, sections []Section) error {
	// devis_lignes and devis_ligne_materiaux cascade on section delete.
	if _, err := r.db.Exec(ctx, `DELETE FROM devis_sections WHERE devis_id = $1`, devisID); err != nil {
		return err
	}
	for _, s := range sections {
		var sectionID int64
		err := r.db.QueryRow(ctx, `
			INSERT INTO devis_sections (devis_id, title, position)
			VALUES ($1, $2, $3)
			RETURNING id
		`, devisID, s.Title, s.Position).Scan(&sectionID)
		if err != nil {
			return err
		}
		for _, l := range s.Lines {
			var lineID int64
			err := r.db.QueryRow(ctx, `
				INSERT INTO devis_lignes (section_id, ouvrage_id, description, unit, quantity, unit_price, tax_rate, billable, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id
			`, sectionID, l.OuvrageID, l.Description, l.Unit, l.Quantity, l.UnitPrice, l.TaxRate, l.Billable, l.Position).Scan(&lineID)
			if err != nil {
				return err
			}
			for _, m := range l.Materials {
				_, err := r.db.Exec(ctx, `
					INSERT INTO devis_ligne_materiaux (ligne_id, material_id, label, unit, quantity, unit_price, tax_rate, billable, position)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				`, lineID, m.MaterialID, m.Label, m.Unit, m.Quantity, m.UnitPrice, m.TaxRate, m.Billable, m.Position)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	var stampCol string
	switch status {
	case StatusEnvoye:
		stampCol = "sent_at"
	case StatusAccepte:
		stampCol = "accepted_at"
	case StatusRefuse:
		stampCol = "refused_at"
	case StatusFacture:
		stampCol = "invoiced_at"
	}

	query := `UPDATE devis SET status = $1, updated_at = NOW()`
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
	tag, err := r.db.Exec(ctx, `DELETE FROM devis WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM devis GROUP BY status`)
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

// ListExpired returns ids of sent quotes whose validity date has passed.
func (r *repository) ListExpired(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM devis
		WHERE status = $1 AND valid_until < $2
		ORDER BY id
	`, StatusEnvoye, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
