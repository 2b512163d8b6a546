package prescribers

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req CreatePrescriberRequest) (*Prescriber, error) {
	id, err := s.repo.Create(ctx, Prescriber{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Company:        req.Company,
		Profession:     req.Profession,
		Email:          req.Email,
		Phone:          req.Phone,
		CommissionRate: req.CommissionRate,
		Notes:          req.Notes,
		IsActive:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("create prescriber: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdatePrescriberRequest) (*Prescriber, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		existing.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		existing.LastName = *req.LastName
	}
	if req.Company != nil {
		existing.Company = req.Company
	}
	if req.Profession != nil {
		existing.Profession = req.Profession
	}
	if req.Email != nil {
		existing.Email = req.Email
	}
	if req.Phone != nil {
		existing.Phone = req.Phone
	}
	if req.CommissionRate != nil {
		existing.CommissionRate = *req.CommissionRate
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, id, *existing); err != nil {
		return nil, fmt.Errorf("update prescriber: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Prescriber, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListPrescribersRequest) ([]Prescriber, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
