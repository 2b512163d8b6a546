package clients

import (
	"context"
	"fmt"
	"strconv"

	"github.com/atelier-btp/atelier-btp/internal/shared"
)

type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) Create(ctx context.Context, req CreateClientRequest) (*Client, error) {
	client := Client{
		Name:         req.Name,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		AddressLine:  req.AddressLine,
		PostalCode:   req.PostalCode,
		City:         req.City,
		PrescriberID: req.PrescriberID,
		Notes:        req.Notes,
		IsActive:     true,
	}

	id, err := s.repo.Create(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	s.recordAudit(ctx, "client.create", id)
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateClientRequest) (*Client, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.ContactName != nil {
		existing.ContactName = req.ContactName
	}
	if req.Email != nil {
		existing.Email = req.Email
	}
	if req.Phone != nil {
		existing.Phone = req.Phone
	}
	if req.AddressLine != nil {
		existing.AddressLine = req.AddressLine
	}
	if req.PostalCode != nil {
		existing.PostalCode = req.PostalCode
	}
	if req.City != nil {
		existing.City = req.City
	}
	if req.PrescriberID != nil {
		existing.PrescriberID = req.PrescriberID
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, id, *existing); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	s.recordAudit(ctx, "client.update", id)
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "client.delete", id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "client",
		EntityID: strconv.FormatInt(id, 10),
	})
}
