package clients

type CreateClientRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	ContactName  *string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	AddressLine  *string `json:"address_line,omitempty" validate:"omitempty,max=300"`
	PostalCode   *string `json:"postal_code,omitempty" validate:"omitempty,max=10"`
	City         *string `json:"city,omitempty" validate:"omitempty,max=120"`
	PrescriberID *int64  `json:"prescriber_id,omitempty" validate:"omitempty,gt=0"`
	Notes        *string `json:"notes,omitempty"`
}

type UpdateClientRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,max=200"`
	ContactName  *string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	AddressLine  *string `json:"address_line,omitempty" validate:"omitempty,max=300"`
	PostalCode   *string `json:"postal_code,omitempty" validate:"omitempty,max=10"`
	City         *string `json:"city,omitempty" validate:"omitempty,max=120"`
	PrescriberID *int64  `json:"prescriber_id,omitempty" validate:"omitempty,gt=0"`
	Notes        *string `json:"notes,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

type ListClientsRequest struct {
	Search       string `json:"search"`
	PrescriberID *int64 `json:"prescriber_id,omitempty"`
	IsActive     *bool  `json:"is_active,omitempty"`
	Page         int    `json:"page"`
	PerPage      int    `json:"per_page"`
}
