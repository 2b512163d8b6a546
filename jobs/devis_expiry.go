package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atelier-btp/atelier-btp/internal/observability"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
)

// DevisExpiryJob flips sent quotes past their validity date to EXPIRE.
type DevisExpiryJob struct {
	Quotes  *quotes.Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
	clock   func() time.Time
}

// NewDevisExpiryJob wires dependencies for the expiry handler.
func NewDevisExpiryJob(quotesSvc *quotes.Service, logger *slog.Logger, metrics *observability.Metrics) *DevisExpiryJob {
	return &DevisExpiryJob{
		Quotes:  quotesSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes the daily expiry scan.
func (j *DevisExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Quotes == nil {
		return errors.New("devis expiry: handler not configured")
	}

	asOf := j.clock()
	count, err := j.Quotes.ExpireOverdue(ctx, asOf)
	if err != nil {
		j.Logger.Error("devis expiry scan", slog.Any("error", err))
		j.Metrics.RecordJob(TaskTypeDevisExpiry, "failure")
		return err
	}

	j.Logger.Info("devis expiry scan",
		slog.Time("as_of", asOf),
		slog.Int("expired", count))
	j.Metrics.RecordJob(TaskTypeDevisExpiry, "success")
	return nil
}
