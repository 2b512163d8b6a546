package settings

import "time"

// Categories used across the application.
const (
	CategoryNumbering = "numerotation"
	CategoryCompany   = "entreprise"
)

// Setting is one key/value row in the parametres table, grouped by category.
type Setting struct {
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	Description *string   `json:"description,omitempty" db:"description"`
	Category    string    `json:"category" db:"category"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
