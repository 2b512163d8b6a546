package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-btp/atelier-btp/internal/settings"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepo struct {
	mu      sync.Mutex
	store   map[string]string
	history []HistoryEntry

	allocateErr error
	historyErr  error
	resetErr    error
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string]string)}
}

func (m *mockRepo) AllocateCounter(ctx context.Context, docType DocumentType, defaults Config) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allocateErr != nil {
		return Config{}, m.allocateErr
	}

	cfg := defaults
	counterKey := docType.keyCounter()
	if raw, ok := m.store[counterKey]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, err
		}
		cfg.Counter = n
	}
	m.store[counterKey] = strconv.FormatInt(cfg.Counter+1, 10)

	for key, def := range map[string]string{
		docType.keyPrefix(): defaults.Prefix,
		docType.keyDigits(): strconv.Itoa(defaults.DigitCount),
		docType.keyFormat(): defaults.Format,
	} {
		if _, ok := m.store[key]; !ok {
			m.store[key] = def
		}
	}

	cfg.Prefix = m.store[docType.keyPrefix()]
	if n, err := strconv.Atoi(m.store[docType.keyDigits()]); err == nil && n > 0 {
		cfg.DigitCount = n
	}
	if f := m.store[docType.keyFormat()]; f != "" {
		cfg.Format = f
	}
	return cfg, nil
}

func (m *mockRepo) ReadConfig(ctx context.Context, docType DocumentType, defaults Config) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := defaults
	if raw, ok := m.store[docType.keyCounter()]; ok {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.Counter = n
		}
	}
	return cfg, nil
}

func (m *mockRepo) ResetCounter(ctx context.Context, docType DocumentType, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return m.resetErr
	}
	m.store[docType.keyCounter()] = strconv.FormatInt(value, 10)
	return nil
}

func (m *mockRepo) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.history = append(m.history, entry)
	return nil
}

func (m *mockRepo) ListHistory(ctx context.Context, docType DocumentType, limit int) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for _, e := range m.history {
		if e.DocumentType == docType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRepo) set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
}

func (m *mockRepo) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[key]
}

type mockSettingsRepo struct {
	mock *mockRepo
}

func (m *mockSettingsRepo) WithTx(ctx context.Context, fn func(context.Context, settings.Repository) error) error {
	return fn(ctx, m)
}

func (m *mockSettingsRepo) ListByCategory(ctx context.Context, category string) ([]settings.Setting, error) {
	m.mock.mu.Lock()
	defer m.mock.mu.Unlock()
	var out []settings.Setting
	for k, v := range m.mock.store {
		out = append(out, settings.Setting{Category: category, Key: k, Value: v})
	}
	return out, nil
}

func (m *mockSettingsRepo) Get(ctx context.Context, category, key string) (*settings.Setting, error) {
	return nil, settings.ErrNotFound
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, s settings.Setting) error {
	m.mock.set(s.Key, s.Value)
	return nil
}

func newTestService(repo *mockRepo) *Service {
	settingsSvc := settings.NewService(&mockSettingsRepo{mock: repo}, nil)
	return NewService(repo, settingsSvc, slog.Default(), nil)
}

// ============================================================================
// FORMATTING
// ============================================================================

func TestPadCounterWidth(t *testing.T) {
	for digits := 1; digits <= 6; digits++ {
		max := int64(1)
		for i := 0; i < digits; i++ {
			max *= 10
		}
		max--
		for _, counter := range []int64{1, 7, max / 2, max} {
			padded := PadCounter(counter, digits)
			assert.Len(t, padded, digits, "counter=%d digits=%d", counter, digits)
		}
	}
}

func TestPadCounterNeverTruncates(t *testing.T) {
	assert.Equal(t, "12345", PadCounter(12345, 4))
	assert.Equal(t, "100", PadCounter(100, 2))
	assert.Equal(t, "7", PadCounter(7, 0))
}

func TestFormatReference(t *testing.T) {
	ref := FormatReference(Config{Prefix: "DEV", DigitCount: 4, Counter: 7, Format: "{PREFIX}-{COUNTER}"})
	assert.Equal(t, "DEV-0007", ref)
}

func TestFormatReferenceSubstitutesPlaceholdersOnce(t *testing.T) {
	// Historical behaviour: a repeated placeholder is only substituted on its
	// first occurrence, the second stays literal.
	ref := FormatReference(Config{Prefix: "D", DigitCount: 2, Counter: 3, Format: "{COUNTER}/{COUNTER}-{PREFIX}"})
	assert.Equal(t, "03/{COUNTER}-D", ref)
}

func TestFormatReferenceWithoutPlaceholders(t *testing.T) {
	ref := FormatReference(Config{Prefix: "X", DigitCount: 4, Counter: 1, Format: "FIXED"})
	assert.Equal(t, "FIXED", ref)
}

// ============================================================================
// ALLOCATION
// ============================================================================

func TestAllocateNextScenarioDevis(t *testing.T) {
	repo := newMockRepo()
	repo.set("devis_prefix", "DEV")
	repo.set("devis_digits", "4")
	repo.set("devis_counter", "1")
	repo.set("devis_format", "{PREFIX}-{COUNTER}")

	svc := newTestService(repo)

	ref := svc.AllocateNext(context.Background(), TypeDevis)
	assert.Equal(t, "DEV-0001", ref)
	assert.Equal(t, "2", repo.get("devis_counter"), "counter must be durably advanced")
}

func TestAllocateNextSequential(t *testing.T) {
	repo := newMockRepo()
	repo.set("devis_prefix", "DEV")
	repo.set("devis_format", "{PREFIX}-{COUNTER}")
	svc := newTestService(repo)

	first := svc.AllocateNext(context.Background(), TypeDevis)
	second := svc.AllocateNext(context.Background(), TypeDevis)

	require.NotEqual(t, first, second)
	assert.Equal(t, "DEV-0001", first)
	assert.Equal(t, "DEV-0002", second)
}

func TestAllocateNextDefaultsWhenUnconfigured(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	ref := svc.AllocateNext(context.Background(), TypeBonCommande)
	assert.Equal(t, "0001", ref)

	// Default rows were created alongside the first allocation.
	assert.Equal(t, "2", repo.get("bon_commande_counter"))
	assert.Equal(t, "4", repo.get("bon_commande_digits"))
	assert.Equal(t, "{PREFIX}{COUNTER}", repo.get("bon_commande_format"))
}

func TestAllocateNextFactureOverride(t *testing.T) {
	repo := newMockRepo()
	repo.set("facture_prefix", "XXX")
	repo.set("facture_digits", "3")
	repo.set("facture_counter", "7")
	repo.set("facture_format", "{COUNTER}{COUNTER}")

	svc := newTestService(repo)

	// The facture variant ignores the stored prefix and format.
	ref := svc.AllocateNext(context.Background(), TypeFacture)
	assert.Equal(t, "FAC-007", ref)
}

func TestAllocateNextRecordsHistory(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) })

	ref := svc.AllocateNext(context.Background(), TypeDevis)

	require.Len(t, repo.history, 1)
	assert.Equal(t, ref, repo.history[0].Reference)
	assert.Equal(t, TypeDevis, repo.history[0].DocumentType)
}

func TestAllocateNextHistoryFailureIsNonFatal(t *testing.T) {
	repo := newMockRepo()
	repo.historyErr = errors.New("history table unavailable")
	svc := newTestService(repo)

	ref := svc.AllocateNext(context.Background(), TypeDevis)
	assert.Equal(t, "0001", ref)
	assert.Equal(t, "2", repo.get("devis_counter"))
}

func TestAllocateNextFallsBackToSentinel(t *testing.T) {
	repo := newMockRepo()
	repo.allocateErr = errors.New("connection refused")
	svc := newTestService(repo)

	ref := svc.AllocateNext(context.Background(), TypeDevis)
	assert.Regexp(t, regexp.MustCompile(`^ERROR-\d+$`), ref)
	assert.Empty(t, repo.history, "no history for degraded allocations")
}

func TestAllocateNextConcurrentAllocationsAreDistinct(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	const n = 100
	refs := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refs <- svc.AllocateNext(context.Background(), TypeDevis)
		}()
	}
	wg.Wait()
	close(refs)

	seen := make(map[string]struct{}, n)
	for ref := range refs {
		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
	}
	assert.Len(t, seen, n)
	assert.Equal(t, strconv.Itoa(n+1), repo.get("devis_counter"))
}

// ============================================================================
// RESET & PREVIEW
// ============================================================================

func TestResetCounter(t *testing.T) {
	repo := newMockRepo()
	repo.set("devis_counter", "42")
	svc := newTestService(repo)

	require.NoError(t, svc.ResetCounter(context.Background(), TypeDevis, 1))
	assert.Equal(t, "1", repo.get("devis_counter"))

	// No guard against lowering below previously issued numbers.
	require.NoError(t, svc.ResetCounter(context.Background(), TypeDevis, 0))
	assert.Equal(t, "1", repo.get("devis_counter"))
}

func TestPreviewDoesNotConsume(t *testing.T) {
	repo := newMockRepo()
	repo.set("devis_prefix", "DEV")
	repo.set("devis_digits", "4")
	repo.set("devis_counter", "9")
	repo.set("devis_format", "{PREFIX}-{COUNTER}")
	svc := newTestService(repo)

	ref, err := svc.Preview(context.Background(), TypeDevis)
	require.NoError(t, err)
	assert.Equal(t, "DEV-0009", ref)
	assert.Equal(t, "9", repo.get("devis_counter"))

	again, err := svc.Preview(context.Background(), TypeDevis)
	require.NoError(t, err)
	assert.Equal(t, ref, again)
}

func TestAllocateNextUnknownTypeUsesDefaults(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	ref := svc.AllocateNext(context.Background(), DocumentType("avoir"))
	assert.Equal(t, "0001", ref)
	assert.Equal(t, "2", repo.get("avoir_counter"))
}

func TestSentinelTimestampAdvances(t *testing.T) {
	repo := newMockRepo()
	repo.allocateErr = errors.New("down")
	svc := newTestService(repo)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.WithNow(func() time.Time { return base })
	first := svc.AllocateNext(context.Background(), TypeDevis)
	assert.Equal(t, fmt.Sprintf("ERROR-%d", base.Unix()), first)
}
