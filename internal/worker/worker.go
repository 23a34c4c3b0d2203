package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/fanout"
	"github.com/gatepass/backend/pkg/queue"
)

// JobSource is the queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// FanOutProcessor runs queued fan-out deliveries.
type FanOutProcessor struct {
	target  fanout.Deliverer
	queue   JobSource
	logger  *zap.Logger
	backoff time.Duration
}

// NewFanOutProcessor creates a fan-out job processor.
func NewFanOutProcessor(target fanout.Deliverer, q JobSource, logger *zap.Logger) *FanOutProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOutProcessor{target: target, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one fan-out job. Channel failures are handled inside the delivery,
// so only malformed jobs return an error. A started delivery runs to completion even if ctx is cancelled.
func (p *FanOutProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeFanOut {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var d fanout.Delivery
	if err := json.Unmarshal(job.Payload, &d); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	start := time.Now()
	p.target.Deliver(context.WithoutCancel(ctx), d)
	p.logger.Info("fan-out job delivered",
		zap.String("job_id", job.ID),
		zap.String("event_id", d.EventID.String()),
		zap.Int("recipients", len(d.Recipients)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *FanOutProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("fan-out worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx, queue.QueueFanOut)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *FanOutProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
