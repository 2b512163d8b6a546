package numbering

import "time"

// DocumentType identifies a numbered document family. Unknown types are not
// rejected: they get the generic defaults below.
type DocumentType string

const (
	TypeDevis       DocumentType = "devis"
	TypeFacture     DocumentType = "facture"
	TypeBonCommande DocumentType = "bon_commande"
)

// Placeholders substituted once each, in this order, into the format template.
const (
	PlaceholderPrefix  = "{PREFIX}"
	PlaceholderCounter = "{COUNTER}"
)

// Config is the numbering configuration of one document type, stored as four
// rows of the parametres table (category "numerotation").
type Config struct {
	Prefix     string `json:"prefix"`
	DigitCount int    `json:"digit_count"`
	Counter    int64  `json:"counter"`
	Format     string `json:"format"`
}

// DefaultConfig is used when a document type has no stored configuration yet.
func DefaultConfig() Config {
	return Config{
		Prefix:     "",
		DigitCount: 4,
		Counter:    1,
		Format:     PlaceholderPrefix + PlaceholderCounter,
	}
}

// Override pins fields a document type does not read from configuration.
// Factures always carry the FAC prefix and the dash format regardless of what
// the settings rows say; digit count stays configurable.
type Override struct {
	Prefix *string
	Format *string
}

var overrides = map[DocumentType]Override{
	TypeFacture: {
		Prefix: strPtr("FAC"),
		Format: strPtr(PlaceholderPrefix + "-" + PlaceholderCounter),
	},
}

// OverrideFor returns the per-type override, if any.
func OverrideFor(t DocumentType) (Override, bool) {
	ov, ok := overrides[t]
	return ov, ok
}

func (o Override) apply(cfg Config) Config {
	if o.Prefix != nil {
		cfg.Prefix = *o.Prefix
	}
	if o.Format != nil {
		cfg.Format = *o.Format
	}
	return cfg
}

// Setting keys for one document type, e.g. devis_prefix, devis_counter.
func (t DocumentType) keyPrefix() string  { return string(t) + "_prefix" }
func (t DocumentType) keyDigits() string  { return string(t) + "_digits" }
func (t DocumentType) keyCounter() string { return string(t) + "_counter" }
func (t DocumentType) keyFormat() string  { return string(t) + "_format" }

// HistoryEntry is one row of numerotation_historique: an allocated reference.
type HistoryEntry struct {
	DocumentType DocumentType `json:"document_type"`
	Reference    string       `json:"reference"`
	UserID       *int64       `json:"user_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func strPtr(s string) *string { return &s }
