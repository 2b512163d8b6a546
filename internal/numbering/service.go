package numbering

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/atelier-btp/atelier-btp/internal/observability"
	"github.com/atelier-btp/atelier-btp/internal/settings"
)

// Service allocates human-readable reference numbers. It never returns an
// error from AllocateNext: numbering must not block document creation, so
// persistence failures degrade to a sentinel reference the operator can spot.
type Service struct {
	repo        Repository
	settingsSvc *settings.Service
	logger      *slog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewService(repo Repository, settingsSvc *settings.Service, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		repo:        repo,
		settingsSvc: settingsSvc,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// AllocateNext consumes the next counter for the document type and returns
// the formatted reference. The consumed counter is durably advanced in the
// same transaction; on any persistence failure the sentinel ERROR-<timestamp>
// is returned instead and nothing is consumed.
func (s *Service) AllocateNext(ctx context.Context, docType DocumentType) string {
	cfg, err := s.repo.AllocateCounter(ctx, docType, DefaultConfig())
	if err != nil {
		s.logger.Error("numbering: allocation failed, degrading to sentinel",
			slog.String("document_type", string(docType)), slog.Any("error", err))
		s.metrics.RecordFallback()
		return fmt.Sprintf("ERROR-%d", s.now().Unix())
	}

	if ov, ok := OverrideFor(docType); ok {
		cfg = ov.apply(cfg)
	}
	ref := FormatReference(cfg)

	// History is best effort. The counter is already committed; a failed
	// append must not surface to the caller.
	if err := s.repo.AppendHistory(ctx, HistoryEntry{
		DocumentType: docType,
		Reference:    ref,
		CreatedAt:    s.now(),
	}); err != nil {
		s.logger.Warn("numbering: history append failed",
			slog.String("reference", ref), slog.Any("error", err))
	}

	s.metrics.RecordAllocation(string(docType))
	return ref
}

// Preview formats the next reference without consuming it. Reads go through
// the settings cache: staleness is bounded by the TTL and harmless, since the
// allocation path re-reads the authoritative rows inside its transaction.
func (s *Service) Preview(ctx context.Context, docType DocumentType) (string, error) {
	cfg := DefaultConfig()
	values, err := s.settingsSvc.ListByCategory(ctx, settings.CategoryNumbering)
	if err != nil {
		return "", fmt.Errorf("numbering: read settings: %w", err)
	}
	for _, v := range values {
		switch v.Key {
		case docType.keyPrefix():
			cfg.Prefix = v.Value
		case docType.keyDigits():
			if n, err := strconv.Atoi(v.Value); err == nil && n > 0 {
				cfg.DigitCount = n
			}
		case docType.keyCounter():
			if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
				cfg.Counter = n
			}
		case docType.keyFormat():
			if v.Value != "" {
				cfg.Format = v.Value
			}
		}
	}
	if ov, ok := OverrideFor(docType); ok {
		cfg = ov.apply(cfg)
	}
	return FormatReference(cfg), nil
}

// ResetCounter overwrites the stored counter, for yearly or manual resets.
// Values below 1 reset to 1. No guard against reusing old numbers.
func (s *Service) ResetCounter(ctx context.Context, docType DocumentType, value int64) error {
	if value < 1 {
		value = 1
	}
	if err := s.repo.ResetCounter(ctx, docType, value); err != nil {
		return fmt.Errorf("numbering: reset counter: %w", err)
	}
	s.logger.Info("numbering: counter reset",
		slog.String("document_type", string(docType)), slog.Int64("value", value))
	return nil
}

// History lists recently allocated references for the document type.
func (s *Service) History(ctx context.Context, docType DocumentType, limit int) ([]HistoryEntry, error) {
	return s.repo.ListHistory(ctx, docType, limit)
}
