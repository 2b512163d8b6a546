package invoices

import "time"

type LineRequest struct {
	Label     string        `json:"label" validate:"required,max=500"`
	Unit      string        `json:"unit" validate:"omitempty,max=20"`
	Quantity  float64       `json:"quantity" validate:"gte=0"`
	UnitPrice float64       `json:"unit_price" validate:"gte=0"`
	TaxRate   float64       `json:"tax_rate" validate:"gte=0,lte=100"`
	Billable  *bool         `json:"billable,omitempty"`
	Position  int           `json:"position"`
	Materials []LineRequest `json:"materials,omitempty" validate:"dive"`
}

type CreateFactureRequest struct {
	ClientID    int64         `json:"client_id" validate:"required,gt=0"`
	FactureDate time.Time     `json:"facture_date" validate:"required"`
	DueDate     time.Time     `json:"due_date" validate:"required"`
	RetenueRate float64       `json:"retenue_rate" validate:"gte=0,lte=100"`
	Notes       *string       `json:"notes,omitempty"`
	Lines       []LineRequest `json:"lines" validate:"dive"`
}

type UpdateFactureRequest struct {
	ClientID    *int64         `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	FactureDate *time.Time     `json:"facture_date,omitempty"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	RetenueRate *float64       `json:"retenue_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Notes       *string        `json:"notes,omitempty"`
	Lines       *[]LineRequest `json:"lines,omitempty" validate:"omitempty,dive"`
}

type ListFacturesRequest struct {
	ClientID *int64
	Status   *Status
	Overdue  bool
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Page     int
	PerPage  int
}
