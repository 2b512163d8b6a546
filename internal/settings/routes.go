package settings

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{category}", h.ListCategory)
	r.Get("/{category}/{key}", h.Show)
	r.Put("/{category}/{key}", h.Upsert)
}
