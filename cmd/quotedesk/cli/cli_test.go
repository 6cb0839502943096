package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/jobs"
)

type stubMigrator struct {
	up      int
	down    int
	version uint
}

func (s *stubMigrator) Up() error {
	s.up++
	s.version++
	return nil
}

func (s *stubMigrator) Down(steps int) error {
	s.down += steps
	s.version -= uint(steps)
	return nil
}

func (s *stubMigrator) Version() (uint, bool, error) { return s.version, false, nil }

func TestRunMigrate(t *testing.T) {
	m := &stubMigrator{version: 2}
	var out bytes.Buffer

	require.NoError(t, RunMigrate(m, []string{"up"}, &out))
	require.Equal(t, "schema version 3 (dirty=false)\n", out.String())

	out.Reset()
	require.NoError(t, RunMigrate(m, []string{"down", "2"}, &out))
	require.Equal(t, 2, m.down)
	require.Equal(t, "schema version 1 (dirty=false)\n", out.String())

	require.Error(t, RunMigrate(m, []string{"down", "zero"}, &out))
	require.Error(t, RunMigrate(m, []string{"sideways"}, &out))
	require.Error(t, RunMigrate(m, nil, &out))
}

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct {
	queues map[string]*asynq.QueueInfo
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s.queues[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func (s stubInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, errors.New("not used")
}

func (s stubInspector) Close() error { return nil }

func TestTriggerExpire(t *testing.T) {
	enq := &stubEnqueuer{}
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	c := &JobsCLI{client: enq, now: func() time.Time { return now }}

	info, err := c.Trigger(context.Background(), "expire")
	require.NoError(t, err)
	require.Equal(t, jobs.TaskExpireQuotes, info.Type)

	var payload jobs.ExpireQuotesPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.True(t, now.Equal(payload.AsOf))

	_, err = c.Trigger(context.Background(), "reindex")
	require.Error(t, err)
}

func TestInspectQueues(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{queues: map[string]*asynq.QueueInfo{
		jobs.QueueMail: {Queue: jobs.QueueMail, Pending: 3, Retry: 1},
	}}}
	stats, err := c.InspectQueues(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, 3, stats[0].Pending)
	require.Equal(t, 1, stats[0].Retry)
	require.Equal(t, QueueStats{Queue: jobs.QueueDefault}, stats[1])
}
