package catalog

import "time"

// Ouvrage is a catalog entry for billable work: a labelled unit of service
// with its default price, TVA rate and an optional composition of materials
// copied into a devis line when the ouvrage is picked.
type Ouvrage struct {
	ID        int64             `json:"id" db:"id"`
	Code      string            `json:"code" db:"code"`
	Label     string            `json:"label" db:"label"`
	Unit      string            `json:"unit" db:"unit"`
	UnitPrice float64           `json:"unit_price" db:"unit_price"`
	TaxRate   float64           `json:"tax_rate" db:"tax_rate"`
	IsActive  bool              `json:"is_active" db:"is_active"`
	Materials []OuvrageMaterial `json:"materials,omitempty" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// OuvrageMaterial links a material into an ouvrage composition.
type OuvrageMaterial struct {
	ID         int64   `json:"id" db:"id"`
	OuvrageID  int64   `json:"ouvrage_id" db:"ouvrage_id"`
	MaterialID int64   `json:"material_id" db:"material_id"`
	Quantity   float64 `json:"quantity" db:"quantity"`
}

// Material is a catalog entry for supplies.
type Material struct {
	ID            int64     `json:"id" db:"id"`
	Label         string    `json:"label" db:"label"`
	Unit          string    `json:"unit" db:"unit"`
	PurchasePrice float64   `json:"purchase_price" db:"purchase_price"`
	SalePrice     float64   `json:"sale_price" db:"sale_price"`
	TaxRate       float64   `json:"tax_rate" db:"tax_rate"`
	SupplierRef   *string   `json:"supplier_ref,omitempty" db:"supplier_ref"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
