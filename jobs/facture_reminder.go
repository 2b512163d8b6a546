package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atelier-btp/atelier-btp/internal/invoices"
	"github.com/atelier-btp/atelier-btp/internal/observability"
)

// Enqueuer queues follow-up tasks produced by a scan.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// FactureReminderJob scans overdue invoices and queues a reminder e-mail
// per facture whose client has an address on file.
type FactureReminderJob struct {
	Invoices *invoices.Service
	Queue    Enqueuer
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	clock    func() time.Time
}

// NewFactureReminderJob wires dependencies for the reminder handler.
func NewFactureReminderJob(invoicesSvc *invoices.Service, queue Enqueuer, logger *slog.Logger, metrics *observability.Metrics) *FactureReminderJob {
	return &FactureReminderJob{
		Invoices: invoicesSvc,
		Queue:    queue,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes the daily reminder scan.
func (j *FactureReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil || j.Queue == nil {
		return errors.New("facture reminder: handler not configured")
	}

	asOf := j.clock()
	overdue, err := j.Invoices.ListOverdue(ctx, asOf)
	if err != nil {
		j.Logger.Error("facture reminder scan", slog.Any("error", err))
		j.Metrics.RecordJob(TaskTypeFactureReminder, "failure")
		return err
	}

	queued := 0
	for _, f := range overdue {
		if f.ClientEmail == nil || *f.ClientEmail == "" {
			j.Logger.Warn("facture reminder skipped, no client email",
				slog.String("reference", f.Reference))
			continue
		}
		payload := SendEmailPayload{
			To:      *f.ClientEmail,
			Subject: fmt.Sprintf("Relance facture %s", f.Reference),
			Body: fmt.Sprintf("Bonjour %s,\n\nLa facture %s de %.2f EUR est arrivee a echeance le %s. Merci de proceder a son reglement.\n",
				f.ClientName, f.Reference, f.TotalTTC, f.DueDate.Format("02/01/2006")),
		}
		if _, err := j.Queue.EnqueueSendEmail(ctx, payload); err != nil {
			j.Logger.Error("enqueue reminder",
				slog.String("reference", f.Reference), slog.Any("error", err))
			continue
		}
		queued++
	}

	j.Logger.Info("facture reminder scan",
		slog.Time("as_of", asOf),
		slog.Int("overdue", len(overdue)),
		slog.Int("queued", queued))
	j.Metrics.RecordJob(TaskTypeFactureReminder, "success")
	return nil
}
