package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/numbering"
	"github.com/atelier-btp/atelier-btp/internal/shared"
	"github.com/atelier-btp/atelier-btp/internal/totals"
)

var (
	ErrInvalidStatus = errors.New("invalid status transition")
	ErrNotDraft      = errors.New("devis is not a draft")
)

// ReferenceAllocator hands out the next devis reference.
type ReferenceAllocator interface {
	AllocateNext(ctx context.Context, docType numbering.DocumentType) string
}

type Service struct {
	repo       Repository
	clientRepo clients.Repository
	numbering  ReferenceAllocator
	audit      *shared.AuditLogger
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, clientRepo clients.Repository, alloc ReferenceAllocator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		clientRepo: clientRepo,
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

func (s *Service) Create(ctx context.Context, req CreateDevisRequest) (*Devis, error) {
	if req.ValidUntil.Before(req.DevisDate) {
		return nil, errors.New("valid_until must be on or after devis_date")
	}
	if _, err := s.clientRepo.Get(ctx, req.ClientID); err != nil {
		return nil, fmt.Errorf("verify client: %w", err)
	}

	sections := sectionsFromRequests(req.Sections)
	computed := totals.Compute(totalsSections(sections))

	d := Devis{
		Reference:    s.numbering.AllocateNext(ctx, numbering.TypeDevis),
		ClientID:     req.ClientID,
		PrescriberID: req.PrescriberID,
		Status:       StatusBrouillon,
		DevisDate:    req.DevisDate,
		ValidUntil:   req.ValidUntil,
		ShareToken:   uuid.NewString(),
		TotalHT:      computed.TotalHT,
		TotalTVA:     computed.TotalTVA,
		TotalTTC:     computed.TotalTTC,
		Notes:        req.Notes,
	}

	var devisID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, d)
		if err != nil {
			return fmt.Errorf("create devis: %w", err)
		}
		devisID = id
		return repo.ReplaceTree(ctx, id, sections)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "devis.create", devisID, map[string]any{"reference": d.Reference})
	return s.repo.Get(ctx, devisID)
}

func (s *Service) Get(ctx context.Context, id int64) (*Devis, error) {
	return s.repo.Get(ctx, id)
}

// GetShared resolves the public share token.
func (s *Service) GetShared(ctx context.Context, token string) (*Devis, error) {
	return s.repo.GetByToken(ctx, token)
}

func (s *Service) List(ctx context.Context, req ListDevisRequest) ([]DevisWithClient, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = 20
	}
	return s.repo.List(ctx, req)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateDevisRequest) (*Devis, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusBrouillon {
		return nil, fmt.Errorf("%w: only BROUILLON devis can be updated", ErrNotDraft)
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
	if req.PrescriberID != nil {
		updates["prescriber_id"] = *req.PrescriberID
	}
	if req.DevisDate != nil {
		updates["devis_date"] = *req.DevisDate
	}
	if req.ValidUntil != nil {
		updates["valid_until"] = *req.ValidUntil
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	var sections []Section
	if req.Sections != nil {
		sections = sectionsFromRequests(*req.Sections)
		computed := totals.Compute(totalsSections(sections))
		updates["total_ht"] = computed.TotalHT
		updates["total_tva"] = computed.TotalTVA
		updates["total_ttc"] = computed.TotalTTC
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				return err
			}
		}
		if req.Sections != nil {
			return repo.ReplaceTree(ctx, id, sections)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update devis: %w", err)
	}

	s.recordAudit(ctx, "devis.update", id, nil)
	return s.repo.Get(ctx, id)
}

func (s *Service) Send(ctx context.Context, id int64) (*Devis, error) {
	return s.transition(ctx, id, StatusEnvoye, "devis.send")
}

func (s *Service) Accept(ctx context.Context, id int64) (*Devis, error) {
	return s.transition(ctx, id, StatusAccepte, "devis.accept")
}

func (s *Service) Refuse(ctx context.Context, id int64) (*Devis, error) {
	return s.transition(ctx, id, StatusRefuse, "devis.refuse")
}

// MarkInvoiced moves an accepted devis to FACTURE. Called on conversion.
func (s *Service) MarkInvoiced(ctx context.Context, id int64) (*Devis, error) {
	return s.transition(ctx, id, StatusFacture, "devis.invoice")
}

func (s *Service) transition(ctx context.Context, id int64, to Status, action string) (*Devis, error) {
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
		return fmt.Errorf("%w: only BROUILLON devis can be deleted", ErrNotDraft)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "devis.delete", id, map[string]any{"reference": existing.Reference})
	return nil
}

// ExpireOverdue flips every sent devis past its validity date to EXPIRE.
// Used by the daily scan.
func (s *Service) ExpireOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.ListExpired(ctx, asOf)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if err := s.repo.UpdateStatus(ctx, id, StatusExpire, asOf); err != nil {
			s.logger.Warn("expire devis", slog.Int64("devis_id", id), slog.Any("error", err))
			continue
		}
		expired++
	}
	return expired, nil
}

// CountByStatus powers the dashboard widget.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{Action: action, Entity: "devis", EntityID: strconv.FormatInt(id, 10), Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func sectionsFromRequests(reqs []SectionRequest) []Section {
	sections := make([]Section, 0, len(reqs))
	for i, sr := range reqs {
		section := Section{Title: sr.Title, Position: sr.Position}
		if section.Position == 0 {
			section.Position = i + 1
		}
		for j, lr := range sr.Lines {
			line := Line{
				OuvrageID:   lr.OuvrageID,
				Description: lr.Description,
				Unit:        lr.Unit,
				Quantity:    lr.Quantity,
				UnitPrice:   lr.UnitPrice,
				TaxRate:     lr.TaxRate,
				Billable:    lr.Billable,
				Position:    lr.Position,
			}
			if line.Position == 0 {
				line.Position = j + 1
			}
			for k, mr := range lr.Materials {
				mat := LineMaterial{
					MaterialID: mr.MaterialID,
					Label:      mr.Label,
					Unit:       mr.Unit,
					Quantity:   mr.Quantity,
					UnitPrice:  mr.UnitPrice,
					TaxRate:    mr.TaxRate,
					Billable:   mr.Billable,
					Position:   mr.Position,
				}
				if mat.Position == 0 {
					mat.Position = k + 1
				}
				line.Materials = append(line.Materials, mat)
			}
			section.Lines = append(section.Lines, line)
		}
		sections = append(sections, section)
	}
	return sections
}

// totalsSections converts the persisted tree into the aggregation input.
func totalsSections(sections []Section) []totals.Section {
	out := make([]totals.Section, 0, len(sections))
	for _, s := range sections {
		var ts totals.Section
		for _, l := range s.Lines {
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
			ts.Lines = append(ts.Lines, tl)
		}
		out = append(out, ts)
	}
	return out
}

// TotalsSections exposes the aggregation input of a loaded devis, for
// renderers that need the per-rate breakdown.
func TotalsSections(d *Devis) []totals.Section {
	return totalsSections(d.Sections)
}
