package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcherkasov/orders-ms/internal/domain"
)

type recordingOutboxRepo struct {
	pending []domain.OutboxMessage
	sent    []string
	failed  []string
}

func (s *recordingOutboxRepo) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}

func (s *recordingOutboxRepo) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit > 0 && limit < len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending...), nil
}

func (s *recordingOutboxRepo) Stats() (domain.OutboxStats, error) {
	stats := domain.OutboxStats{PendingCount: len(s.pending)}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *recordingOutboxRepo) MarkSent(id string) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *recordingOutboxRepo) MarkFailed(id string) error {
	s.failed = append(s.failed, id)
	return nil
}

// recordingPublisher отдаёт ошибки из results по порядку вызовов;
// после исчерпания results все вызовы успешны.
type recordingPublisher struct {
	mu        sync.Mutex
	results   []error
	published []domain.OutboxMessage
}

func (s *recordingPublisher) Publish(msg domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published = append(s.published, msg)
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func (s *recordingPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func alwaysFailing(err error, n int) []error {
	results := make([]error, n)
	for i := range results {
		results[i] = err
	}
	return results
}

func pendingMessage(id, orderID, eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       []byte(`{"order_id":"` + orderID + `"}`),
	}
}

func TestWorker_ProcessOnce(t *testing.T) {
	t.Parallel()

	t.Run("marks sent on success", func(t *testing.T) {
		t.Parallel()

		repo := &recordingOutboxRepo{pending: []domain.OutboxMessage{
			pendingMessage("msg-1", "order-1", "order.created"),
		}}
		publisher := &recordingPublisher{}

		worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))
		worker.ProcessOnce(context.Background())

		assert.Equal(t, []string{"msg-1"}, repo.sent)
		assert.Empty(t, repo.failed)
		assert.Equal(t, 1, publisher.calls())
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		t.Parallel()

		repo := &recordingOutboxRepo{pending: []domain.OutboxMessage{
			pendingMessage("msg-2", "order-2", "order.status_changed"),
		}}
		publisher := &recordingPublisher{results: alwaysFailing(errors.New("broker down"), 2)}

		worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))
		worker.ProcessOnce(context.Background())

		assert.Equal(t, 3, publisher.calls())
		assert.Equal(t, []string{"msg-2"}, repo.sent)
		assert.Empty(t, repo.failed)
	})

	t.Run("exhausted retries go to DLQ", func(t *testing.T) {
		t.Parallel()

		repo := &recordingOutboxRepo{pending: []domain.OutboxMessage{
			pendingMessage("msg-3", "order-3", "order.status_changed"),
		}}
		publisher := &recordingPublisher{results: alwaysFailing(errors.New("publish failed"), 3)}
		dlq := &recordingPublisher{}

		worker := NewWorker(repo, publisher,
			WithDLQPublisher(dlq), WithRetryBaseDelay(0), WithMaxAttempts(3))
		worker.ProcessOnce(context.Background())

		assert.Equal(t, 3, publisher.calls())
		assert.Empty(t, repo.sent)
		assert.Equal(t, []string{"msg-3"}, repo.failed)
		require.Equal(t, 1, dlq.calls())

		// DLQ-событие несёт исходный payload и текст ошибки публикации.
		var dlqPayload map[string]any
		require.NoError(t, json.Unmarshal(dlq.published[0].Payload, &dlqPayload))
		assert.Equal(t, "msg-3", dlqPayload["outbox_id"])
		assert.Contains(t, dlqPayload["publish_error"], "publish failed")
	})
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&recordingOutboxRepo{}, &recordingPublisher{},
		WithPollInterval(5*time.Millisecond), WithRetryBaseDelay(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&recordingOutboxRepo{}, &recordingPublisher{},
		WithPollInterval(0), WithBatchSize(-1), WithMaxAttempts(0))

	assert.Equal(t, defaultPollInterval, worker.pollInterval)
	assert.Equal(t, defaultBatchSize, worker.batchSize)
	assert.Equal(t, defaultMaxAttempts, worker.maxAttempts)
}

var (
	_ domain.OutboxRepository = (*recordingOutboxRepo)(nil)
	_ domain.OutboxPublisher  = (*recordingPublisher)(nil)
)
