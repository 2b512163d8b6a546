package invoices

import "time"

// Status is the lifecycle state of a facture.
type Status string

const (
	StatusBrouillon Status = "BROUILLON"
	StatusEnvoyee   Status = "ENVOYEE"
	StatusPayee     Status = "PAYEE"
	StatusAnnulee   Status = "ANNULEE"
)

var transitions = map[Status][]Status{
	StatusBrouillon: {StatusEnvoyee, StatusAnnulee},
	StatusEnvoyee:   {StatusPayee, StatusAnnulee},
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

// Facture is an invoice header with its ordered lines. Materials converted
// from a devis stay attached as sub-lines of their parent.
type Facture struct {
	ID            int64      `json:"id"`
	Reference     string     `json:"reference"`
	ClientID      int64      `json:"client_id"`
	DevisID       *int64     `json:"devis_id,omitempty"`
	Status        Status     `json:"status"`
	FactureDate   time.Time  `json:"facture_date"`
	DueDate       time.Time  `json:"due_date"`
	TotalHT       float64    `json:"total_ht"`
	TotalTVA      float64    `json:"total_tva"`
	TotalTTC      float64    `json:"total_ttc"`
	RetenueRate   float64    `json:"retenue_rate"`
	RetenueAmount float64    `json:"retenue_amount"`
	NetToPay      float64    `json:"net_to_pay"`
	Notes         *string    `json:"notes,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Lines         []Line     `json:"lines"`
}

// IsOverdue reports whether a sent facture is past its due date.
func (f *Facture) IsOverdue(asOf time.Time) bool {
	return f.Status == StatusEnvoyee && f.DueDate.Before(asOf)
}

// Line is a facture line, optionally carrying material sub-lines.
type Line struct {
	ID        int64   `json:"id"`
	FactureID int64   `json:"facture_id"`
	ParentID  *int64  `json:"parent_id,omitempty"`
	Label     string  `json:"label"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	TaxRate   float64 `json:"tax_rate"`
	Billable  *bool   `json:"billable,omitempty"`
	Position  int     `json:"position"`
	Materials []Line  `json:"materials,omitempty"`
}

// FactureWithClient is the list projection with the joined client name.
type FactureWithClient struct {
	Facture
	ClientName string `json:"client_name"`
}

// OverdueFacture carries what the reminder e-mail needs.
type OverdueFacture struct {
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"`
	ClientName  string    `json:"client_name"`
	ClientEmail *string   `json:"client_email,omitempty"`
	DueDate     time.Time `json:"due_date"`
	TotalTTC    float64   `json:"total_ttc"`
}
