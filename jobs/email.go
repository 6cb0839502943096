package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

// EmailJob delivers queued quote email through a mailer such as SMTP.
type EmailJob struct {
	Mailer  quotes.Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewEmailJob initialises the email delivery handler.
func NewEmailJob(mailer quotes.Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *EmailJob {
	return &EmailJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskSendQuoteEmail tasks.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("send email: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(payload.Email.To) == 0 {
		return fmt.Errorf("email has no recipients: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskSendQuoteEmail)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(
		slog.String("to", strings.Join(payload.Email.To, ",")),
		slog.String("subject", payload.Email.Subject),
		slog.Int("attachments", len(payload.Email.Attachments)),
	)
	err = j.Mailer.SendEmail(ctx, payload.Email)
	j.Metrics.EmailDelivered(err)
	if err != nil {
		logger.Warn("quote email delivery failed", slog.Any("error", err))
		return err
	}
	logger.Info("quote email delivered")
	return nil
}

func (j *EmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
