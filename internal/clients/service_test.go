package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	clients map[int64]*Client
	nextID  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{clients: make(map[int64]*Client), nextID: 1}
}

func (m *mockRepository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	var out []Client
	for _, c := range m.clients {
		if req.IsActive != nil && c.IsActive != *req.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockRepository) Create(ctx context.Context, c Client) (int64, error) {
	id := m.nextID
	m.nextID++
	c.ID = id
	m.clients[id] = &c
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, c Client) error {
	if _, ok := m.clients[id]; !ok {
		return ErrNotFound
	}
	c.ID = id
	m.clients[id] = &c
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.clients[id]; !ok {
		return ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func strPtr(s string) *string { return &s }

func TestCreateClientDefaultsToActive(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	client, err := svc.Create(context.Background(), CreateClientRequest{
		Name: "Maison Dupont",
		City: strPtr("Lyon"),
	})
	require.NoError(t, err)
	assert.True(t, client.IsActive)
	assert.Equal(t, "Maison Dupont", client.Name)
}

func TestUpdateClientPartial(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	created, err := svc.Create(context.Background(), CreateClientRequest{Name: "SCI Horizon"})
	require.NoError(t, err)

	phone := "0612345678"
	updated, err := svc.Update(context.Background(), created.ID, UpdateClientRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "SCI Horizon", updated.Name, "unsent fields stay untouched")
	require.NotNil(t, updated.Phone)
	assert.Equal(t, phone, *updated.Phone)
}

func TestUpdateUnknownClient(t *testing.T) {
	svc := NewService(newMockRepository(), nil)

	_, err := svc.Update(context.Background(), 99, UpdateClientRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteClient(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	created, err := svc.Create(context.Background(), CreateClientRequest{Name: "A démolir"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	_, err = svc.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
