package prescribers

import "time"

// Prescriber is a business referrer: an architect, a maitre d'oeuvre, an
// insurance contact. Clients may be attached to the prescriber who brought
// them in, and a commission rate can be agreed per prescriber.
type Prescriber struct {
	ID             int64     `json:"id" db:"id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Company        *string   `json:"company,omitempty" db:"company"`
	Profession     *string   `json:"profession,omitempty" db:"profession"`
	Email          *string   `json:"email,omitempty" db:"email"`
	Phone          *string   `json:"phone,omitempty" db:"phone"`
	CommissionRate float64   `json:"commission_rate" db:"commission_rate"`
	Notes          *string   `json:"notes,omitempty" db:"notes"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type CreatePrescriberRequest struct {
	FirstName      string  `json:"first_name" validate:"required,max=120"`
	LastName       string  `json:"last_name" validate:"required,max=120"`
	Company        *string `json:"company,omitempty" validate:"omitempty,max=200"`
	Profession     *string `json:"profession,omitempty" validate:"omitempty,max=120"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	CommissionRate float64 `json:"commission_rate" validate:"gte=0,lte=100"`
	Notes          *string `json:"notes,omitempty"`
}

type UpdatePrescriberRequest struct {
	FirstName      *string  `json:"first_name,omitempty" validate:"omitempty,max=120"`
	LastName       *string  `json:"last_name,omitempty" validate:"omitempty,max=120"`
	Company        *string  `json:"company,omitempty" validate:"omitempty,max=200"`
	Profession     *string  `json:"profession,omitempty" validate:"omitempty,max=120"`
	Email          *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string  `json:"phone,omitempty" validate:"omitempty,max=30"`
	CommissionRate *float64 `json:"commission_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Notes          *string  `json:"notes,omitempty"`
	IsActive       *bool    `json:"is_active,omitempty"`
}

type ListPrescribersRequest struct {
	Search   string `json:"search"`
	IsActive *bool  `json:"is_active,omitempty"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
}
