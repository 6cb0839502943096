package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMail carries outgoing quote email.
	QueueMail = "mail"
	// TaskSendQuoteEmail delivers a composed quote email.
	TaskSendQuoteEmail = "quotes:send_email"
	// TaskExpireQuotes moves quotes past their validity to expired.
	TaskExpireQuotes = "quotes:expire"
)

// SendEmailPayload is the queued form of a quote email.
type SendEmailPayload struct {
	Email quotes.Email `json:"email"`
}

// ExpireQuotesPayload optionally pins the sweep date; zero means today.
type ExpireQuotesPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(email quotes.Email) (*asynq.Task, error) {
	data, err := json.Marshal(SendEmailPayload{Email: email})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendQuoteEmail, data,
		asynq.Queue(QueueMail), asynq.MaxRetry(8), asynq.Timeout(2*time.Minute)), nil
}

// NewExpireQuotesTask constructs the expiry sweep task.
func NewExpireQuotesTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(ExpireQuotesPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpireQuotes, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// TaskPruneIdempotencyKeys removes idempotency keys past retention.
const TaskPruneIdempotencyKeys = "maintenance:prune_idempotency_keys"

// NewPruneKeysTask constructs the key retention task.
func NewPruneKeysTask() *asynq.Task {
	return asynq.NewTask(TaskPruneIdempotencyKeys, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
