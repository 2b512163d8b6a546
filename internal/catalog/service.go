package catalog

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

func (s *Service) CreateOuvrage(ctx context.Context, req CreateOuvrageRequest) (*Ouvrage, error) {
	ouvrage := Ouvrage{
		Code:      req.Code,
		Label:     req.Label,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
		TaxRate:   req.TaxRate,
		IsActive:  true,
	}

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		created, err := repo.CreateOuvrage(ctx, ouvrage)
		if err != nil {
			return err
		}
		id = created
		if len(req.Materials) == 0 {
			return nil
		}
		return repo.ReplaceComposition(ctx, id, materialsFromReq(id, req.Materials))
	})
	if err != nil {
		return nil, fmt.Errorf("create ouvrage: %w", err)
	}
	return s.repo.GetOuvrage(ctx, id)
}

func (s *Service) UpdateOuvrage(ctx context.Context, id int64, req UpdateOuvrageRequest) (*Ouvrage, error) {
	existing, err := s.repo.GetOuvrage(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Code != nil {
		existing.Code = *req.Code
	}
	if req.Label != nil {
		existing.Label = *req.Label
	}
	if req.Unit != nil {
		existing.Unit = *req.Unit
	}
	if req.UnitPrice != nil {
		existing.UnitPrice = *req.UnitPrice
	}
	if req.TaxRate != nil {
		existing.TaxRate = *req.TaxRate
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateOuvrage(ctx, id, *existing); err != nil {
			return err
		}
		if req.Materials != nil {
			return repo.ReplaceComposition(ctx, id, materialsFromReq(id, *req.Materials))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update ouvrage: %w", err)
	}
	return s.repo.GetOuvrage(ctx, id)
}

func (s *Service) GetOuvrage(ctx context.Context, id int64) (*Ouvrage, error) {
	return s.repo.GetOuvrage(ctx, id)
}

func (s *Service) ListOuvrages(ctx context.Context, f ListFilters) ([]Ouvrage, int, error) {
	return s.repo.ListOuvrages(ctx, f)
}

func (s *Service) DeleteOuvrage(ctx context.Context, id int64) error {
	return s.repo.DeleteOuvrage(ctx, id)
}

func (s *Service) CreateMaterial(ctx context.Context, req CreateMaterialRequest) (*Material, error) {
	id, err := s.repo.CreateMaterial(ctx, Material{
		Label:         req.Label,
		Unit:          req.Unit,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		TaxRate:       req.TaxRate,
		SupplierRef:   req.SupplierRef,
		IsActive:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return s.repo.GetMaterial(ctx, id)
}

func (s *Service) UpdateMaterial(ctx context.Context, id int64, req UpdateMaterialRequest) (*Material, error) {
	existing, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Label != nil {
		existing.Label = *req.Label
	}
	if req.Unit != nil {
		existing.Unit = *req.Unit
	}
	if req.PurchasePrice != nil {
		existing.PurchasePrice = *req.PurchasePrice
	}
	if req.SalePrice != nil {
		existing.SalePrice = *req.SalePrice
	}
	if req.TaxRate != nil {
		existing.TaxRate = *req.TaxRate
	}
	if req.SupplierRef != nil {
		existing.SupplierRef = req.SupplierRef
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := s.repo.UpdateMaterial(ctx, id, *existing); err != nil {
		return nil, fmt.Errorf("update material: %w", err)
	}
	return s.repo.GetMaterial(ctx, id)
}

func (s *Service) GetMaterial(ctx context.Context, id int64) (*Material, error) {
	return s.repo.GetMaterial(ctx, id)
}

func (s *Service) ListMaterials(ctx context.Context, f ListFilters) ([]Material, int, error) {
	return s.repo.ListMaterials(ctx, f)
}

func (s *Service) DeleteMaterial(ctx context.Context, id int64) error {
	return s.repo.DeleteMaterial(ctx, id)
}

func materialsFromReq(ouvrageID int64, reqs []OuvrageMaterialReq) []OuvrageMaterial {
	out := make([]OuvrageMaterial, 0, len(reqs))
	for _, m := range reqs {
		out = append(out, OuvrageMaterial{
			OuvrageID:  ouvrageID,
			MaterialID: m.MaterialID,
			Quantity:   m.Quantity,
		})
	}
	return out
}
