package pdf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/invoices"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
)

type stubClientRepo struct{}

func (stubClientRepo) List(ctx context.Context, req clients.ListClientsRequest) ([]clients.Client, int, error) {
	return nil, 0, nil
}

func (stubClientRepo) Get(ctx context.Context, id int64) (*clients.Client, error) {
	city := "Lyon"
	return &clients.Client{ID: id, Name: "Maison Dupont", City: &city}, nil
}

func (stubClientRepo) Create(ctx context.Context, c clients.Client) (int64, error)  { return 0, nil }
func (stubClientRepo) Update(ctx context.Context, id int64, c clients.Client) error { return nil }
func (stubClientRepo) Delete(ctx context.Context, id int64) error                   { return nil }

func testRenderer() *Renderer {
	return NewRenderer(CompanyInfo{
		Name:    "Atelier BTP",
		Address: "12 rue des Charpentiers, 69003 Lyon",
		SIRET:   "123 456 789 00012",
	}, stubClientRepo{})
}

func TestRenderDevisProducesPDF(t *testing.T) {
	d := &quotes.Devis{
		ID:         1,
		Reference:  "DEV-0001",
		ClientID:   1,
		Status:     quotes.StatusBrouillon,
		DevisDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Sections: []quotes.Section{
			{Title: "Gros oeuvre", Lines: []quotes.Line{
				{Description: "Ouverture mur porteur", Unit: "m2", Quantity: 10, UnitPrice: 20, TaxRate: 10,
					Materials: []quotes.LineMaterial{
						{Label: "Linteau acier", Quantity: 1, UnitPrice: 150, TaxRate: 20},
					}},
			}},
		},
	}

	out, err := testRenderer().RenderDevis(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderFactureProducesPDF(t *testing.T) {
	f := &invoices.Facture{
		ID:            1,
		Reference:     "FAC-001",
		ClientID:      1,
		Status:        invoices.StatusEnvoyee,
		FactureDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		RetenueRate:   5,
		RetenueAmount: 55,
		NetToPay:      1045,
		Lines: []invoices.Line{
			{Label: "Lot maconnerie", Quantity: 10, UnitPrice: 100, TaxRate: 10},
		},
	}

	out, err := testRenderer().RenderFacture(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}
