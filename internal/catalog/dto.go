package catalog

type OuvrageMaterialReq struct {
	MaterialID int64   `json:"material_id" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
}

type CreateOuvrageRequest struct {
	Code      string               `json:"code" validate:"required,max=40"`
	Label     string               `json:"label" validate:"required,max=300"`
	Unit      string               `json:"unit" validate:"required,max=20"`
	UnitPrice float64              `json:"unit_price" validate:"gte=0"`
	TaxRate   float64              `json:"tax_rate" validate:"gte=0,lte=100"`
	Materials []OuvrageMaterialReq `json:"materials,omitempty" validate:"omitempty,dive"`
}

type UpdateOuvrageRequest struct {
	Code      *string               `json:"code,omitempty" validate:"omitempty,max=40"`
	Label     *string               `json:"label,omitempty" validate:"omitempty,max=300"`
	Unit      *string               `json:"unit,omitempty" validate:"omitempty,max=20"`
	UnitPrice *float64              `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	TaxRate   *float64              `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	IsActive  *bool                 `json:"is_active,omitempty"`
	Materials *[]OuvrageMaterialReq `json:"materials,omitempty" validate:"omitempty,dive"`
}

type CreateMaterialRequest struct {
	Label         string  `json:"label" validate:"required,max=300"`
	Unit          string  `json:"unit" validate:"required,max=20"`
	PurchasePrice float64 `json:"purchase_price" validate:"gte=0"`
	SalePrice     float64 `json:"sale_price" validate:"gte=0"`
	TaxRate       float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	SupplierRef   *string `json:"supplier_ref,omitempty" validate:"omitempty,max=60"`
}

type UpdateMaterialRequest struct {
	Label         *string  `json:"label,omitempty" validate:"omitempty,max=300"`
	Unit          *string  `json:"unit,omitempty" validate:"omitempty,max=20"`
	PurchasePrice *float64 `json:"purchase_price,omitempty" validate:"omitempty,gte=0"`
	SalePrice     *float64 `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	TaxRate       *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	SupplierRef   *string  `json:"supplier_ref,omitempty" validate:"omitempty,max=60"`
	IsActive      *bool    `json:"is_active,omitempty"`
}

type ListFilters struct {
	Search   string `json:"search"`
	IsActive *bool  `json:"is_active,omitempty"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
}
