package quotes

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
)

type mockRepository struct {
	devis  map[int64]*Devis
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{devis: make(map[int64]*Devis), nextID: 1}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Devis, error) {
	d, ok := m.devis[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *mockRepository) GetByToken(ctx context.Context, token string) (*Devis, error) {
	for _, d := range m.devis {
		if d.ShareToken == token {
			copied := *d
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, req ListDevisRequest) ([]DevisWithClient, int, error) {
	var out []DevisWithClient
	for _, d := range m.devis {
		if req.Status != nil && d.Status != *req.Status {
			continue
		}
		out = append(out, DevisWithClient{Devis: *d})
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, d Devis) (int64, error) {
	id := m.nextID
	m.nextID++
	d.ID = id
	m.devis[id] = &d
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	d, ok := m.devis[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["notes"]; ok {
		notes := v.(string)
		d.Notes = &notes
	}
	if v, ok := updates["total_ht"]; ok {
		d.TotalHT = v.(float64)
	}
	if v, ok := updates["total_tva"]; ok {
		d.TotalTVA = v.(float64)
	}
	if v, ok := updates["total_ttc"]; ok {
		d.TotalTTC = v.(float64)
	}
	return nil
}

func (m *mockRepository) ReplaceTree(ctx context.Context, devisID int64, sections []Section) error {
	d, ok := m.devis[devisID]
	if !ok {
		return ErrNotFound
	}
	d.Sections = sections
	return nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	d, ok := m.devis[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.devis[id]; !ok {
		return ErrNotFound
	}
	delete(m.devis, id)
	return nil
}

func (m *mockRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int)
	for _, d := range m.devis {
		counts[d.Status]++
	}
	return counts, nil
}

func (m *mockRepository) ListExpired(ctx context.Context, asOf time.Time) ([]int64, error) {
	var ids []int64
	for id, d := range m.devis {
		if d.Status == StatusEnvoye && d.ValidUntil.Before(asOf) {
			ids = append(ids, id)
		}
	}
	return ids, nil
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

func (m *mockClientRepo) Create(ctx context.Context, c clients.Client) (int64, error) { return 0, nil }
func (m *mockClientRepo) Update(ctx context.Context, id int64, c clients.Client) error {
	return nil
}
func (m *mockClientRepo) Delete(ctx context.Context, id int64) error { return nil }

type stubAllocator struct {
	n int
}

func (s *stubAllocator) AllocateNext(ctx context.Context, docType numbering.DocumentType) string {
	s.n++
	return fmt.Sprintf("DEV-%04d", s.n)
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	clientRepo := &mockClientRepo{known: map[int64]bool{1: true}}
	svc := NewService(repo, clientRepo, &stubAllocator{}, nil, slog.Default())
	return svc, repo
}

func baseCreateRequest() CreateDevisRequest {
	return CreateDevisRequest{
		ClientID:   1,
		DevisDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Sections: []SectionRequest{
			{
				Title: "Gros oeuvre",
				Lines: []LineRequest{
					{Description: "Ouverture mur porteur", Unit: "m2", Quantity: 10, UnitPrice: 20, TaxRate: 10},
					{Description: "Reprise enduit", Unit: "m2", Quantity: 1, UnitPrice: 50, TaxRate: 10,
						Materials: []MaterialRequest{
							{Label: "Sac enduit", Quantity: 2, UnitPrice: 25, TaxRate: 20},
						}},
				},
			},
		},
	}
}

func TestCreateDevisComputesTotals(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, "DEV-0001", d.Reference)
	assert.Equal(t, StatusBrouillon, d.Status)
	assert.NotEmpty(t, d.ShareToken)
	// 10*20 + 1*50 + 2*25 = 300 HT; TVA 200*0.10 + 50*0.10 + 50*0.20 = 35
	assert.InDelta(t, 300.0, d.TotalHT, 1e-9)
	assert.InDelta(t, 35.0, d.TotalTVA, 1e-9)
	assert.InDelta(t, 335.0, d.TotalTTC, 1e-9)
}

func TestCreateDevisRejectsInvalidDates(t *testing.T) {
	svc, _ := newTestService()

	req := baseCreateRequest()
	req.ValidUntil = req.DevisDate.AddDate(0, 0, -1)
	_, err := svc.Create(context.Background(), req)
	assert.Error(t, err)
}

func TestCreateDevisRejectsUnknownClient(t *testing.T) {
	svc, _ := newTestService()

	req := baseCreateRequest()
	req.ClientID = 99
	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, clients.ErrNotFound)
}

func TestCreateDevisSkipsNonBillableLines(t *testing.T) {
	svc, _ := newTestService()

	excluded := false
	req := baseCreateRequest()
	req.Sections[0].Lines[0].Billable = &excluded

	d, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	// Only 1*50 and 2*25 remain.
	assert.InDelta(t, 100.0, d.TotalHT, 1e-9)
}

func TestUpdateDevisRecomputesTotals(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)

	newSections := []SectionRequest{
		{Title: "Finitions", Lines: []LineRequest{
			{Description: "Peinture", Quantity: 4, UnitPrice: 25, TaxRate: 20},
		}},
	}
	updated, err := svc.Update(context.Background(), d.ID, UpdateDevisRequest{Sections: &newSections})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, updated.TotalHT, 1e-9)
	assert.InDelta(t, 20.0, updated.TotalTVA, 1e-9)
}

func TestUpdateDevisOnlyDraft(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), d.ID)
	require.NoError(t, err)

	notes := "trop tard"
	_, err = svc.Update(context.Background(), d.ID, UpdateDevisRequest{Notes: &notes})
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestStatusTransitions(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)

	// BROUILLON cannot jump straight to ACCEPTE.
	_, err = svc.Accept(context.Background(), d.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	sent, err := svc.Send(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnvoye, sent.Status)

	accepted, err := svc.Accept(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepte, accepted.Status)

	invoiced, err := svc.MarkInvoiced(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFacture, invoiced.Status)

	// Terminal state.
	_, err = svc.Send(context.Background(), d.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteDevisOnlyDraft(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), d.ID)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), d.ID)
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestGetSharedResolvesToken(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)

	found, err := svc.GetShared(context.Background(), d.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, d.ID, found.ID)

	_, err = svc.GetShared(context.Background(), "unknown-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireOverdue(t *testing.T) {
	svc, repo := newTestService()

	fresh, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), fresh.ID)
	require.NoError(t, err)

	stale, err := svc.Create(context.Background(), baseCreateRequest())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), stale.ID)
	require.NoError(t, err)
	repo.devis[stale.ID].ValidUntil = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	count, err := svc.ExpireOverdue(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, StatusExpire, repo.devis[stale.ID].Status)
	assert.Equal(t, StatusEnvoye, repo.devis[fresh.ID].Status)
}
