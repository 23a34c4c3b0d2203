package fanout

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gatepass/backend/pkg/queue"
)

// Deliverer runs a delivery to completion.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery)
}

// SyncDispatcher delivers before Dispatch returns.
type SyncDispatcher struct {
	target Deliverer
}

// NewSyncDispatcher creates a synchronous dispatcher.
func NewSyncDispatcher(target Deliverer) *SyncDispatcher {
	return &SyncDispatcher{target: target}
}

// Dispatch delivers d.
func (s *SyncDispatcher) Dispatch(ctx context.Context, d Delivery) {
	s.target.Deliver(ctx, d)
}

// InlineDispatcher delivers on a background goroutine detached from the caller's cancellation.
type InlineDispatcher struct {
	target Deliverer
	wg     sync.WaitGroup
}

// NewInlineDispatcher creates an in-process asynchronous dispatcher.
func NewInlineDispatcher(target Deliverer) *InlineDispatcher {
	return &InlineDispatcher{target: target}
}

// Dispatch starts delivering d and returns immediately.
func (s *InlineDispatcher) Dispatch(ctx context.Context, d Delivery) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.target.Deliver(ctx, d)
	}()
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (s *InlineDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueuer appends a job to the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, payload any) error
}

// QueueDispatcher hands deliveries to the worker process. If the enqueue fails the delivery runs
// through fallback so an accepted action is never dropped.
type QueueDispatcher struct {
	q        Enqueuer
	fallback Dispatcher
	logger   *zap.Logger
}

// NewQueueDispatcher creates a queue-backed dispatcher.
func NewQueueDispatcher(q Enqueuer, fallback Dispatcher, logger *zap.Logger) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueDispatcher{q: q, fallback: fallback, logger: logger}
}

// Dispatch enqueues d.
func (s *QueueDispatcher) Dispatch(ctx context.Context, d Delivery) {
	err := s.q.Enqueue(context.WithoutCancel(ctx), queue.JobTypeFanOut, d)
	if err == nil {
		return
	}
	s.logger.Warn("fan-out enqueue failed, delivering inline",
		zap.String("event_id", d.EventID.String()),
		zap.Int("recipients", len(d.Recipients)),
		zap.Error(err),
	)
	s.fallback.Dispatch(ctx, d)
}
