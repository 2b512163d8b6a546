package quotes

import "time"

// Status is the lifecycle state of a devis.
type Status string

const (
	StatusBrouillon Status = "BROUILLON"
	StatusEnvoye    Status = "ENVOYE"
	StatusAccepte   Status = "ACCEPTE"
	StatusRefuse    Status = "REFUSE"
	StatusExpire    Status = "EXPIRE"
	StatusFacture   Status = "FACTURE"
)

// transitions lists the states reachable from each status.
var transitions = map[Status][]Status{
	StatusBrouillon: {StatusEnvoye},
	StatusEnvoye:    {StatusAccepte, StatusRefuse, StatusExpire},
	StatusAccepte:   {StatusFacture},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Devis is a quote header with its ordered section tree.
type Devis struct {
	ID           int64      `json:"id"`
	Reference    string     `json:"reference"`
	ClientID     int64      `json:"client_id"`
	PrescriberID *int64     `json:"prescriber_id,omitempty"`
	Status       Status     `json:"status"`
	DevisDate    time.Time  `json:"devis_date"`
	ValidUntil   time.Time  `json:"valid_until"`
	ShareToken   string     `json:"share_token"`
	TotalHT      float64    `json:"total_ht"`
	TotalTVA     float64    `json:"total_tva"`
	TotalTTC     float64    `json:"total_ttc"`
	Notes        *string    `json:"notes,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	RefusedAt    *time.Time `json:"refused_at,omitempty"`
	InvoicedAt   *time.Time `json:"invoiced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Sections     []Section  `json:"sections"`
}

// Section groups ordered lines under a title.
type Section struct {
	ID       int64  `json:"id"`
	DevisID  int64  `json:"devis_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Lines    []Line `json:"lines"`
}

// Line is an ouvrage line inside a section, with optional sub-materials.
type Line struct {
	ID          int64          `json:"id"`
	SectionID   int64          `json:"section_id"`
	OuvrageID   *int64         `json:"ouvrage_id,omitempty"`
	Description string         `json:"description"`
	Unit        string         `json:"unit"`
	Quantity    float64        `json:"quantity"`
	UnitPrice   float64        `json:"unit_price"`
	TaxRate     float64        `json:"tax_rate"`
	Billable    *bool          `json:"billable,omitempty"`
	Position    int            `json:"position"`
	Materials   []LineMaterial `json:"materials,omitempty"`
}

// LineMaterial is a material charged under a line.
type LineMaterial struct {
	ID         int64   `json:"id"`
	LineID     int64   `json:"line_id"`
	MaterialID *int64  `json:"material_id,omitempty"`
	Label      string  `json:"label"`
	Unit       string  `json:"unit"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TaxRate    float64 `json:"tax_rate"`
	Billable   *bool   `json:"billable,omitempty"`
	Position   int     `json:"position"`
}

// DevisWithClient is the list projection with the joined client name.
type DevisWithClient struct {
	Devis
	ClientName string `json:"client_name"`
}
