package quotes

import "time"

type MaterialRequest struct {
	MaterialID *int64  `json:"material_id,omitempty"`
	Label      string  `json:"label" validate:"required,max=255"`
	Unit       string  `json:"unit" validate:"omitempty,max=20"`
	Quantity   float64 `json:"quantity" validate:"gte=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	TaxRate    float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	Billable   *bool   `json:"billable,omitempty"`
	Position   int     `json:"position"`
}

type LineRequest struct {
	OuvrageID   *int64            `json:"ouvrage_id,omitempty"`
	Description string            `json:"description" validate:"required,max=500"`
	Unit        string            `json:"unit" validate:"omitempty,max=20"`
	Quantity    float64           `json:"quantity" validate:"gte=0"`
	UnitPrice   float64           `json:"unit_price" validate:"gte=0"`
	TaxRate     float64           `json:"tax_rate" validate:"gte=0,lte=100"`
	Billable    *bool             `json:"billable,omitempty"`
	Position    int               `json:"position"`
	Materials   []MaterialRequest `json:"materials,omitempty" validate:"dive"`
}

type SectionRequest struct {
	Title    string        `json:"title" validate:"required,max=255"`
	Position int           `json:"position"`
	Lines    []LineRequest `json:"lines" validate:"dive"`
}

type CreateDevisRequest struct {
	ClientID     int64            `json:"client_id" validate:"required,gt=0"`
	PrescriberID *int64           `json:"prescriber_id,omitempty"`
	DevisDate    time.Time        `json:"devis_date" validate:"required"`
	ValidUntil   time.Time        `json:"valid_until" validate:"required"`
	Notes        *string          `json:"notes,omitempty"`
	Sections     []SectionRequest `json:"sections" validate:"dive"`
}

type UpdateDevisRequest struct {
	ClientID     *int64            `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	PrescriberID *int64            `json:"prescriber_id,omitempty"`
	DevisDate    *time.Time        `json:"devis_date,omitempty"`
	ValidUntil   *time.Time        `json:"valid_until,omitempty"`
	Notes        *string           `json:"notes,omitempty"`
	Sections     *[]SectionRequest `json:"sections,omitempty" validate:"omitempty,dive"`
}

type ListDevisRequest struct {
	ClientID *int64
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Page     int
	PerPage  int
}
