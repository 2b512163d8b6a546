package clients

import "time"

type Client struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	ContactName  *string   `json:"contact_name,omitempty" db:"contact_name"`
	Email        *string   `json:"email,omitempty" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	AddressLine  *string   `json:"address_line,omitempty" db:"address_line"`
	PostalCode   *string   `json:"postal_code,omitempty" db:"postal_code"`
	City         *string   `json:"city,omitempty" db:"city"`
	PrescriberID *int64    `json:"prescriber_id,omitempty" db:"prescriber_id"`
	Notes        *string   `json:"notes,omitempty" db:"notes"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
