package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/numbering"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
)

type mockRepository struct {
	factures map[int64]*Facture
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{factures: make(map[int64]*Facture), nextID: 1}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Facture, error) {
	f, ok := m.factures[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (m *mockRepository) List(ctx context.Context, req ListFacturesRequest) ([]FactureWithClient, int, error) {
	var out []FactureWithClient
	for _, f := range m.factures {
		if req.Status != nil && f.Status != *req.Status {
			continue
		}
		out = append(out, FactureWithClient{Facture: *f})
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, f Facture) (int64, error) {
	id := m.nextID
	m.nextID++
	f.ID = id
	m.factures[id] = &f
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	f, ok := m.factures[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["due_date"]; ok {
		f.DueDate = v.(time.Time)
	}
	if v, ok := updates["total_ht"]; ok {
		f.TotalHT = v.(float64)
	}
	if v, ok := updates["total_tva"]; ok {
		f.TotalTVA = v.(float64)
	}
	if v, ok := updates["total_ttc"]; ok {
		f.TotalTTC = v.(float64)
	}
	if v, ok := updates["retenue_rate"]; ok {
		f.RetenueRate = v.(float64)
	}
	if v, ok := updates["retenue_amount"]; ok {
		f.RetenueAmount = v.(float64)
	}
	if v, ok := updates["net_to_pay"]; ok {
		f.NetToPay = v.(float64)
	}
	return nil
}

func (m *mockRepository) ReplaceLines(ctx context.Context, factureID int64, lines []Line) error {
	f, ok := m.factures[factureID]
	if !ok {
		return ErrNotFound
	}
	f.Lines = lines
	return nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	f, ok := m.factures[id]
	if !ok {
		return ErrNotFound
	}
	f.Status = status
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.factures[id]; !ok {
		return ErrNotFound
	}
	delete(m.factures, id)
	return nil
}

func (m *mockRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int)
	for _, f := range m.factures {
		counts[f.Status]++
	}
	return counts, nil
}

func (m *mockRepository) OutstandingTotal(ctx context.Context) (float64, error) {
	var total float64
	for _, f := range m.factures {
		if f.Status == StatusEnvoyee {
			total += f.NetToPay
		}
	}
	return total, nil
}

func (m *mockRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]OverdueFacture, error) {
	var out []OverdueFacture
	for _, f := range m.factures {
		if f.IsOverdue(asOf) {
			out = append(out, OverdueFacture{ID: f.ID, Reference: f.Reference, DueDate: f.DueDate, TotalTTC: f.TotalTTC})
		}
	}
	return out, nil
}

type mockClientRepo struct {
	known map[int64]bool
}

func (m *mockClientRepo) List(ctx context.Context, req clients.ListClientsRequest) ([]clients.Client, int, error) {
	return nil, 0, nil
}

func (m *mockClientRepo) Get(ctx context.Context, id int64) (*clients.Client, error) {
	if !m.known[id] {
		return nil, clients.ErrNotFound
	}
	return &clients.Client{ID: id, Name: "Maison Dupont"}, nil
}

func (m *mockClientRepo) Create(ctx context.Context, c clients.Client) (int64, error)  { return 0, nil }
func (m *mockClientRepo) Update(ctx context.Context, id int64, c clients.Client) error { return nil }
func (m *mockClientRepo) Delete(ctx context.Context, id int64) error                   { return nil }

// mockQuotesRepo is the minimal devis store the conversion path needs.
type mockQuotesRepo struct {
	devis  map[int64]*quotes.Devis
	nextID int64
}

func newMockQuotesRepo() *mockQuotesRepo {
	return &mockQuotesRepo{devis: make(map[int64]*quotes.Devis), nextID: 1}
}

func (m *mockQuotesRepo) WithTx(ctx context.Context, fn func(context.Context, quotes.Repository) error) error {
	return fn(ctx, m)
}

func (m *mockQuotesRepo) Get(ctx context.Context, id int64) (*quotes.Devis, error) {
	d, ok := m.devis[id]
	if !ok {
		return nil, quotes.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *mockQuotesRepo) GetByToken(ctx context.Context, token string) (*quotes.Devis, error) {
	return nil, quotes.ErrNotFound
}

func (m *mockQuotesRepo) List(ctx context.Context, req quotes.ListDevisRequest) ([]quotes.DevisWithClient, int, error) {
	return nil, 0, nil
}

func (m *mockQuotesRepo) Create(ctx context.Context, d quotes.Devis) (int64, error) {
	id := m.nextID
	m.nextID++
	d.ID = id
	m.devis[id] = &d
	return id, nil
}

func (m *mockQuotesRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	return nil
}

func (m *mockQuotesRepo) ReplaceTree(ctx context.Context, devisID int64, sections []quotes.Section) error {
	d, ok := m.devis[devisID]
	if !ok {
		return quotes.ErrNotFound
	}
	d.Sections = sections
	return nil
}

func (m *mockQuotesRepo) UpdateStatus(ctx context.Context, id int64, status quotes.Status, at time.Time) error {
	d, ok := m.devis[id]
	if !ok {
		return quotes.ErrNotFound
	}
	d.Status = status
	return nil
}

func (m *mockQuotesRepo) Delete(ctx context.Context, id int64) error { return nil }

func (m *mockQuotesRepo) ListExpired(ctx context.Context, asOf time.Time) ([]int64, error) {
	return nil, nil
}

func (m *mockQuotesRepo) CountByStatus(ctx context.Context) (map[quotes.Status]int, error) {
	return nil, nil
}

type stubAllocator struct {
	prefix string
	n      int
}

func (s *stubAllocator) AllocateNext(ctx context.Context, docType numbering.DocumentType) string {
	s.n++
	return fmt.Sprintf("%s-%03d", s.prefix, s.n)
}

func newTestService() (*Service, *mockRepository, *mockQuotesRepo) {
	repo := newMockRepository()
	clientRepo := &mockClientRepo{known: map[int64]bool{1: true}}
	quotesRepo := newMockQuotesRepo()
	quotesSvc := quotes.NewService(quotesRepo, clientRepo, &stubAllocator{prefix: "DEV"}, nil, slog.Default())
	svc := NewService(repo, clientRepo, quotesSvc, &stubAllocator{prefix: "FAC"}, nil, slog.Default())
	return svc, repo, quotesRepo
}

func baseCreateRequest() CreateFactureRequest {
	return CreateFactureRequest{
		ClientID:    1,
		FactureDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		RetenueRate: 5,
		Lines: []LineRequest{
			{Label: "Lot maconnerie", Quantity: 10, UnitPrice: 100, TaxRate: 10},
		},
	}
}

func TestCreateFactureComputesRetenue(t *testing.T) {
	svc, _, _ := newTestService()

	f, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, "FAC-001", f.Reference)
	assert.Equal(t, StatusBrouillon, f.Status)
	assert.InDelta(t, 1000.0, f.TotalHT, 1e-9)
	assert.InDelta(t, 100.0, f.TotalTVA, 1e-9)
	assert.InDelta(t, 1100.0, f.TotalTTC, 1e-9)
	assert.InDelta(t, 55.0, f.RetenueAmount, 1e-9)
	assert.InDelta(t, 1045.0, f.NetToPay, 1e-9)
}

func TestCreateFactureRejectsInvalidDates(t *testing.T) {
	svc, _, _ := newTestService()

	req := baseCreateRequest()
	req.DueDate = req.FactureDate.AddDate(0, 0, -1)
	_, err := svc.Create(context.Background(), req)
	assert.Error(t, err)
}

func TestFromDevisFlattensTree(t *testing.T) {
	svc, repo, quotesRepo := newTestService()

	billable := false
	quotesRepo.devis[10] = &quotes.Devis{
		ID:        10,
		Reference: "DEV-0042",
		ClientID:  1,
		Status:    quotes.StatusAccepte,
		Sections: []quotes.Section{
			{Title: "Gros oeuvre", Lines: []quotes.Line{
				{Description: "Ouverture mur", Unit: "m2", Quantity: 10, UnitPrice: 20, TaxRate: 10},
				{Description: "Etude", Quantity: 1, UnitPrice: 500, TaxRate: 20, Billable: &billable},
			}},
			{Title: "Finitions", Lines: []quotes.Line{
				{Description: "Peinture", Quantity: 4, UnitPrice: 25, TaxRate: 20,
					Materials: []quotes.LineMaterial{
						{Label: "Pot peinture", Quantity: 2, UnitPrice: 30, TaxRate: 20},
					}},
			}},
		},
	}

	id, reference, err := svc.FromDevis(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "FAC-001", reference)

	f := repo.factures[id]
	require.NotNil(t, f)
	require.Len(t, f.Lines, 3)
	assert.Equal(t, "Ouverture mur", f.Lines[0].Label)
	require.Len(t, f.Lines[2].Materials, 1)
	assert.Equal(t, "Pot peinture", f.Lines[2].Materials[0].Label)
	require.NotNil(t, f.DevisID)
	assert.Equal(t, int64(10), *f.DevisID)
	// Non-billable study line carried over but excluded from totals:
	// 200 + 100 + 60 = 360 HT.
	assert.InDelta(t, 360.0, f.TotalHT, 1e-9)

	assert.Equal(t, quotes.StatusFacture, quotesRepo.devis[10].Status)
}

func TestFromDevisRequiresAccepted(t *testing.T) {
	svc, _, quotesRepo := newTestService()

	quotesRepo.devis[10] = &quotes.Devis{ID: 10, ClientID: 1, Status: quotes.StatusEnvoye}
	_, _, err := svc.FromDevis(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotAccepted)

	_, _, err = svc.FromDevis(context.Background(), 99)
	assert.ErrorIs(t, err, quotes.ErrNotFound)
}

func TestFactureStatusTransitions(t *testing.T) {
	svc, _, _ := newTestService()

	f, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)

	// A draft cannot be paid.
	_, err = svc.MarkPaid(context.Background(), f.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	sent, err := svc.Send(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnvoyee, sent.Status)

	paid, err := svc.MarkPaid(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPayee, paid.Status)

	_, err = svc.Cancel(context.Background(), f.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateFactureRetenueOnly(t *testing.T) {
	svc, _, _ := newTestService()

	f, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)

	rate := 10.0
	updated, err := svc.Update(context.Background(), f.ID, UpdateFactureRequest{RetenueRate: &rate})
	require.NoError(t, err)
	assert.InDelta(t, 110.0, updated.RetenueAmount, 1e-9)
	assert.InDelta(t, 990.0, updated.NetToPay, 1e-9)
}

func TestUpdateFactureOnlyDraft(t *testing.T) {
	svc, _, _ := newTestService()

	f, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), f.ID)
	require.NoError(t, err)

	rate := 0.0
	_, err = svc.Update(context.Background(), f.ID, UpdateFactureRequest{RetenueRate: &rate})
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestListOverdue(t *testing.T) {
	svc, repo, _ := newTestService()

	f, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), f.ID)
	require.NoError(t, err)

	overdue, err := svc.ListOverdue(context.Background(), time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, repo.factures[f.ID].Reference, overdue[0].Reference)

	overdue, err = svc.ListOverdue(context.Background(), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, overdue)
}
