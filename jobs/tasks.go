package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeDevisExpiry scans sent quotes past their validity date.
	TaskTypeDevisExpiry = "devis:expire"
	// TaskTypeFactureReminder scans overdue invoices and queues reminders.
	TaskTypeFactureReminder = "facture:relance"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: SMTP delivery lands with the Mailpit integration.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// NewDevisExpiryTask constructs the daily quote-expiry scan task.
func NewDevisExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDevisExpiry, nil)
}

// NewFactureReminderTask constructs the daily overdue-invoice scan task.
func NewFactureReminderTask() *asynq.Task {
	return asynq.NewTask(TaskTypeFactureReminder, nil)
}
