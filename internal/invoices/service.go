package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/numbering"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
	"github.com/atelier-btp/atelier-btp/internal/shared"
	"github.com/atelier-btp/atelier-btp/internal/totals"
)

var (
	ErrInvalidStatus = errors.New("invalid status transition")
	ErrNotDraft      = errors.New("facture is not a draft")
	ErrNotAccepted   = errors.New("devis is not accepted")
)

// ReferenceAllocator hands out the next facture reference.
type ReferenceAllocator interface {
	AllocateNext(ctx context.Context, docType numbering.DocumentType) string
}

type Service struct {
	repo       Repository
	clientRepo clients.Repository
	quotesSvc  *quotes.Service
	numbering  ReferenceAllocator
	audit      *shared.AuditLogger
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, clientRepo clients.Repository, quotesSvc *quotes.Service, alloc ReferenceAllocator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		clientRepo: clientRepo,
		quotesSvc:  quotesSvc,
		numbering:  alloc,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, req CreateFactureRequest) (*Facture, error) {
	if req.DueDate.Before(req.FactureDate) {
		return nil, errors.New("due_date must be on or after facture_date")
	}
	if _, err := s.clientRepo.Get(ctx, req.ClientID); err != nil {
		return nil, fmt.Errorf("verify client: %w", err)
	}

	lines := linesFromRequests(req.Lines)
	f := Facture{
		Reference:   s.numbering.AllocateNext(ctx, numbering.TypeFacture),
		ClientID:    req.ClientID,
		Status:      StatusBrouillon,
		FactureDate: req.FactureDate,
		DueDate:     req.DueDate,
		RetenueRate: req.RetenueRate,
		Notes:       req.Notes,
	}
	applyTotals(&f, lines)

	id, err := s.persist(ctx, f, lines)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "facture.create", id, map[string]any{"reference": f.Reference})
	return s.repo.Get(ctx, id)
}

// FromDevis builds a facture from an accepted devis. Each quote line becomes
// a facture line, its materials become sub-lines, and the source devis is
// marked FACTURE in the same flow.
func (s *Service) FromDevis(ctx context.Context, devisID int64) (int64, string, error) {
	d, err := s.quotesSvc.Get(ctx, devisID)
	if err != nil {
		return 0, "", err
	}
	if d.Status != quotes.StatusAccepte {
		return 0, "", fmt.Errorf("%w: devis %s is %s", ErrNotAccepted, d.Reference, d.Status)
	}

	var lines []Line
	for _, section := range d.Sections {
		for _, ql := range section.Lines {
			line := Line{
				Label:     ql.Description,
				Unit:      ql.Unit,
				Quantity:  ql.Quantity,
				UnitPrice: ql.UnitPrice,
				TaxRate:   ql.TaxRate,
				Billable:  ql.Billable,
				Position:  len(lines) + 1,
			}
			for k, m := range ql.Materials {
				line.Materials = append(line.Materials, Line{
					Label:     m.Label,
					Unit:      m.Unit,
					Quantity:  m.Quantity,
					UnitPrice: m.UnitPrice,
					TaxRate:   m.TaxRate,
					Billable:  m.Billable,
					Position:  k + 1,
				})
			}
			lines = append(lines, line)
		}
	}

	now := s.now()
	f := Facture{
		Reference:   s.numbering.AllocateNext(ctx, numbering.TypeFacture),
		ClientID:    d.ClientID,
		DevisID:     &d.ID,
		Status:      StatusBrouillon,
		FactureDate: now,
		DueDate:     now.AddDate(0, 1, 0),
		Notes:       d.Notes,
	}
	applyTotals(&f, lines)

	id, err := s.persist(ctx, f, lines)
	if err != nil {
		return 0, "", err
	}
	if _, err := s.quotesSvc.MarkInvoiced(ctx, devisID); err != nil {
		return 0, "", fmt.Errorf("mark devis invoiced: %w", err)
	}
	s.recordAudit(ctx, "facture.from_devis", id, map[string]any{
		"reference": f.Reference,
		"devis_id":  devisID,
	})
	return id, f.Reference, nil
}

func (s *Service) persist(ctx context.Context, f Facture, lines []Line) (int64, error) {
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		created, err := repo.Create(ctx, f)
		if err != nil {
			return fmt.Errorf("create facture: %w", err)
		}
		id = created
		return repo.ReplaceLines(ctx, id, lines)
	})
	return id, err
}

func (s *Service) Get(ctx context.Context, id int64) (*Facture, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListFacturesRequest) ([]FactureWithClient, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = 20
	}
	return s.repo.List(ctx, req)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateFactureRequest) (*Facture, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusBrouillon {
		return nil, fmt.Errorf("%w: only BROUILLON factures can be updated", ErrNotDraft)
	}

	if req.ClientID != nil {
		if _, err := s.clientRepo.Get(ctx, *req.ClientID); err != nil {
			return nil, fmt.Errorf("verify client: %w", err)
		}
	}

	updates := make(map[string]interface{})
	if req.ClientID != nil {
		updates["client_id"] = *req.ClientID
	}
	if req.FactureDate != nil {
		updates["facture_date"] = *req.FactureDate
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	rate := existing.RetenueRate
	if req.RetenueRate != nil {
		rate = *req.RetenueRate
	}

	var lines []Line
	if req.Lines != nil {
		lines = linesFromRequests(*req.Lines)
	}
	if req.Lines != nil || req.RetenueRate != nil {
		recalc := existing
		recalc.RetenueRate = rate
		if req.Lines != nil {
			applyTotals(recalc, lines)
		} else {
			recalc.RetenueAmount = totals.Round2(recalc.TotalTTC * rate / 100)
			recalc.NetToPay = totals.Round2(recalc.TotalTTC - recalc.RetenueAmount)
		}
		updates["total_ht"] = recalc.TotalHT
		updates["total_tva"] = recalc.TotalTVA
		updates["total_ttc"] = recalc.TotalTTC
		updates["retenue_rate"] = recalc.RetenueRate
		updates["retenue_amount"] = recalc.RetenueAmount
		updates["net_to_pay"] = recalc.NetToPay
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				return err
			}
		}
		if req.Lines != nil {
			return repo.ReplaceLines(ctx, id, lines)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update facture: %w", err)
	}

	s.recordAudit(ctx, "facture.update", id, nil)
	return s.repo.Get(ctx, id)
}

func (s *Service) Send(ctx context.Context, id int64) (*Facture, error) {
	return s.transition(ctx, id, StatusEnvoyee, "facture.send")
}

func (s *Service) MarkPaid(ctx context.Context, id int64) (*Facture, error) {
	return s.transition(ctx, id, StatusPayee, "facture.pay")
}

func (s *Service) Cancel(ctx context.Context, id int64) (*Facture, error) {
	return s.transition(ctx, id, StatusAnnulee, "facture.cancel")
}

func (s *Service) transition(ctx context.Context, id int64, to Status, action string) (*Facture, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(existing.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, existing.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, to, s.now()); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, action, id, map[string]any{"from": existing.Status, "to": to})
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != StatusBrouillon {
		return fmt.Errorf("%w: only BROUILLON factures can be deleted", ErrNotDraft)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "facture.delete", id, map[string]any{"reference": existing.Reference})
	return nil
}

// ListOverdue feeds the daily reminder scan.
func (s *Service) ListOverdue(ctx context.Context, asOf time.Time) ([]OverdueFacture, error) {
	return s.repo.ListOverdue(ctx, asOf)
}

// CountByStatus powers the dashboard widget.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

// OutstandingTotal reports the net amount awaited on sent factures.
func (s *Service) OutstandingTotal(ctx context.Context) (float64, error) {
	return s.repo.OutstandingTotal(ctx)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{Action: action, Entity: "facture", EntityID: strconv.FormatInt(id, 10), Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

// applyTotals recomputes the facture amounts from its lines and the retenue
// de garantie rate.
func applyTotals(f *Facture, lines []Line) {
	computed := totals.Compute([]totals.Section{{Lines: totalsLines(lines)}})
	f.TotalHT = computed.TotalHT
	f.TotalTVA = computed.TotalTVA
	f.TotalTTC = computed.TotalTTC
	f.RetenueAmount = totals.Round2(f.TotalTTC * f.RetenueRate / 100)
	f.NetToPay = totals.Round2(f.TotalTTC - f.RetenueAmount)
}

func totalsLines(lines []Line) []totals.Line {
	out := make([]totals.Line, 0, len(lines))
	for _, l := range lines {
		tl := totals.Line{
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			TaxRate:   l.TaxRate,
			Billable:  l.Billable,
		}
		for _, m := range l.Materials {
			tl.Materials = append(tl.Materials, totals.Line{
				Quantity:  m.Quantity,
				UnitPrice: m.UnitPrice,
				TaxRate:   m.TaxRate,
				Billable:  m.Billable,
			})
		}
		out = append(out, tl)
	}
	return out
}

// TotalsSections exposes the aggregation input of a loaded facture, for
// renderers that need the per-rate breakdown.
func TotalsSections(f *Facture) []totals.Section {
	return []totals.Section{{Lines: totalsLines(f.Lines)}}
}

func linesFromRequests(reqs []LineRequest) []Line {
	lines := make([]Line, 0, len(reqs))
	for i, lr := range reqs {
		line := Line{
			Label:     lr.Label,
			Unit:      lr.Unit,
			Quantity:  lr.Quantity,
			UnitPrice: lr.UnitPrice,
			TaxRate:   lr.TaxRate,
			Billable:  lr.Billable,
			Position:  lr.Position,
		}
		if line.Position == 0 {
			line.Position = i + 1
		}
		for k, mr := range lr.Materials {
			mat := Line{
				Label:     mr.Label,
				Unit:      mr.Unit,
				Quantity:  mr.Quantity,
				UnitPrice: mr.UnitPrice,
				TaxRate:   mr.TaxRate,
				Billable:  mr.Billable,
				Position:  mr.Position,
			}
			if mat.Position == 0 {
				mat.Position = k + 1
			}
			line.Materials = append(line.Materials, mat)
		}
		lines = append(lines, line)
	}
	return lines
}
