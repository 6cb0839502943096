package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
)

// Expirer moves quotes past their expiry date to expired.
type Expirer interface {
	ExpireDue(ctx context.Context, asOf time.Time) (int, error)
}

// ExpireJob runs the scheduled expiry sweep.
type ExpireJob struct {
	Expirer Expirer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewExpireJob initialises the expiry sweep handler.
func NewExpireJob(expirer Expirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpireJob {
	return &ExpireJob{
		Expirer: expirer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep. A partial failure is returned so Asynq retries;
// quotes already expired are skipped on the next run.
func (j *ExpireJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Expirer == nil {
		return errors.New("expire quotes: handler not configured")
	}
	var payload ExpireQuotesPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode expire payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.clock()
	}

	tracker := j.Metrics.Track(TaskExpireQuotes)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.Time("as_of", asOf))
	count, err := j.Expirer.ExpireDue(ctx, asOf)
	j.Metrics.AddExpired(count)
	if err != nil {
		logger.Error("expire quotes failed", slog.Int("expired", count), slog.Any("error", err))
		return err
	}
	logger.Info("expire quotes completed", slog.Int("expired", count))
	return nil
}

func (j *ExpireJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
