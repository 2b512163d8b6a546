package settings

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	rows      map[string][]Setting
	listCalls int
	upserted  []Setting
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepo) ListByCategory(ctx context.Context, category string) ([]Setting, error) {
	m.listCalls++
	return m.rows[category], nil
}

func (m *mockRepo) Get(ctx context.Context, category, key string) (*Setting, error) {
	for _, s := range m.rows[category] {
		if s.Key == key {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Upsert(ctx context.Context, s Setting) error {
	m.upserted = append(m.upserted, s)
	return nil
}

func newTestService(t *testing.T, repo Repository) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Hour)), mr
}

func TestListByCategoryCaches(t *testing.T) {
	repo := &mockRepo{rows: map[string][]Setting{
		CategoryNumbering: {
			{Category: CategoryNumbering, Key: "devis_prefix", Value: "DEV"},
			{Category: CategoryNumbering, Key: "devis_counter", Value: "12"},
		},
	}}
	svc, _ := newTestService(t, repo)

	first, err := svc.ListByCategory(context.Background(), CategoryNumbering)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := svc.ListByCategory(context.Background(), CategoryNumbering)
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.Equal(t, 1, repo.listCalls, "second read must be served from cache")
}

func TestUpsertInvalidatesCache(t *testing.T) {
	repo := &mockRepo{rows: map[string][]Setting{
		CategoryNumbering: {{Category: CategoryNumbering, Key: "devis_prefix", Value: "DEV"}},
	}}
	svc, _ := newTestService(t, repo)

	_, err := svc.ListByCategory(context.Background(), CategoryNumbering)
	require.NoError(t, err)

	repo.rows[CategoryNumbering][0].Value = "DVS"
	require.NoError(t, svc.Upsert(context.Background(), Setting{
		Category: CategoryNumbering, Key: "devis_prefix", Value: "DVS",
	}))

	after, err := svc.ListByCategory(context.Background(), CategoryNumbering)
	require.NoError(t, err)
	assert.Equal(t, "DVS", after[0].Value)
	assert.Equal(t, 2, repo.listCalls)
}

func TestCacheExpiresWithTTL(t *testing.T) {
	repo := &mockRepo{rows: map[string][]Setting{
		CategoryCompany: {{Category: CategoryCompany, Key: "raison_sociale", Value: "Atelier BTP"}},
	}}
	svc, mr := newTestService(t, repo)

	_, err := svc.ListByCategory(context.Background(), CategoryCompany)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = svc.ListByCategory(context.Background(), CategoryCompany)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestUpsertRejectsMissingKey(t *testing.T) {
	repo := &mockRepo{rows: map[string][]Setting{}}
	svc, _ := newTestService(t, repo)

	err := svc.Upsert(context.Background(), Setting{Category: CategoryNumbering})
	require.Error(t, err)
	assert.Empty(t, repo.upserted)
}
