package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gatepass/backend/internal/metrics"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/internal/push"
	"github.com/gatepass/backend/internal/realtime"
	"github.com/gatepass/backend/pkg/apperr"
)

// Realtime event names.
const (
	EventNotification        = "notification"
	EventRegistrationUpdated = "registration-updated"
)

// Deliver runs a delivery to completion. Chunks are processed in order; a failure in one chunk
// or channel is logged and never stops the rest.
func (e *Engine) Deliver(ctx context.Context, d Delivery) {
	for _, a := range d.Announcements {
		for _, room := range a.Rooms {
			e.Rooms.Emit(room, a.Event, a.Payload)
		}
	}

	for i, start := 0, 0; start < len(d.Recipients); i, start = i+1, start+e.chunkSize {
		end := min(start+e.chunkSize, len(d.Recipients))
		e.deliverChunk(ctx, d, i, d.Recipients[start:end])
	}

	if d.Audit != nil && e.Audit != nil {
		if err := e.Audit.Create(ctx, d.Audit); err != nil {
			e.logger.Warn("broadcast audit write failed",
				zap.String("event_id", d.EventID.String()),
				zap.Int("recipients", len(d.Recipients)),
				zap.Error(err),
			)
		}
	}
}

// deliverChunk writes the inbox rows first; realtime and push only start once they are durable.
func (e *Engine) deliverChunk(ctx context.Context, d Delivery, idx int, chunk []uuid.UUID) {
	now := time.Now().UTC()
	rows := make([]models.Notification, len(chunk))
	for i, uid := range chunk {
		rows[i] = models.Notification{
			ID:        uuid.New(),
			UserID:    uid,
			Title:     d.Message.Title,
			Body:      d.Message.Body,
			Type:      d.Message.Type,
			RelatedID: d.Message.RelatedID,
			CreatedAt: now,
		}
	}
	if err := e.Inbox.InsertBatch(ctx, rows); err != nil {
		e.failed(d, idx, models.ChannelInbox, len(chunk), err)
		return
	}
	metrics.ChunkDeliveries.WithLabelValues(models.ChannelInbox, models.DeliveryLogStatusSent).Inc()

	var g errgroup.Group
	g.Go(func() error {
		for _, n := range rows {
			e.Rooms.Emit(realtime.UserRoom(n.UserID), EventNotification, n)
		}
		metrics.ChunkDeliveries.WithLabelValues(models.ChannelRealtime, models.DeliveryLogStatusSent).Inc()
		return nil
	})
	g.Go(func() error {
		return e.pushChunk(ctx, d, idx, chunk)
	})
	if err := g.Wait(); err != nil {
		e.failed(d, idx, models.ChannelPush, len(chunk), err)
	}
}

// pushChunk sends the chunk's device messages in gateway requests of at most push.MaxBatch.
// One DeliveryLog covers the whole chunk.
func (e *Engine) pushChunk(ctx context.Context, d Delivery, idx int, chunk []uuid.UUID) error {
	if e.Tokens == nil || e.Gateway == nil {
		return nil
	}
	tokens, err := e.Tokens.TokensForUsers(ctx, chunk)
	if err != nil {
		return fmt.Errorf("%w: token lookup: %v", apperr.ErrDelivery, err)
	}
	var data map[string]any
	if len(d.Message.Data) > 0 {
		data = make(map[string]any, len(d.Message.Data))
		for k, v := range d.Message.Data {
			data[k] = v
		}
	}
	var msgs []push.Message
	for _, uid := range chunk {
		for _, t := range tokens[uid] {
			msgs = append(msgs, push.Message{To: t, Title: d.Message.Title, Body: d.Message.Body, Data: data})
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	entry := &models.DeliveryLog{
		EventID:        &d.EventID,
		Channel:        models.ChannelPush,
		ChunkIndex:     idx,
		RecipientCount: len(msgs),
		Status:         models.DeliveryLogStatusSent,
	}
	// A recipient may have several devices, so one chunk can exceed the gateway's request limit.
	var errs []error
	for start := 0; start < len(msgs); start += push.MaxBatch {
		batch := msgs[start:min(start+push.MaxBatch, len(msgs))]
		tickets, err := e.Gateway.SendBatch(ctx, batch)
		if err != nil {
			errs = append(errs, err)
			entry.Rejected += len(batch)
			continue
		}
		for _, t := range tickets {
			if t.OK() {
				entry.Accepted++
			} else {
				entry.Rejected++
			}
		}
	}
	err = errors.Join(errs...)
	if err != nil {
		entry.Status = models.DeliveryLogStatusFailed
		entry.ErrorMessage = err.Error()
	} else {
		metrics.ChunkDeliveries.WithLabelValues(models.ChannelPush, models.DeliveryLogStatusSent).Inc()
	}
	e.record(ctx, entry)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrDelivery, err)
	}
	if entry.Rejected > 0 {
		e.logger.Info("push tokens rejected",
			zap.String("event_id", d.EventID.String()),
			zap.Int("chunk", idx),
			zap.Int("rejected", entry.Rejected),
		)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, l *models.DeliveryLog) {
	if e.Deliveries == nil {
		return
	}
	if l.EventID != nil && *l.EventID == uuid.Nil {
		l.EventID = nil
	}
	if err := e.Deliveries.Record(ctx, l); err != nil {
		e.logger.Warn("delivery log write failed", zap.Int("chunk", l.ChunkIndex), zap.Error(err))
	}
}

func (e *Engine) failed(d Delivery, idx int, channel string, recipients int, err error) {
	if !errors.Is(err, apperr.ErrDelivery) {
		err = fmt.Errorf("%w: %v", apperr.ErrDelivery, err)
	}
	metrics.ChunkDeliveries.WithLabelValues(channel, models.DeliveryLogStatusFailed).Inc()
	e.logger.Error("fan-out chunk delivery failed",
		zap.String("event_id", d.EventID.String()),
		zap.Int("chunk", idx),
		zap.String("channel", channel),
		zap.Int("recipients", recipients),
		zap.Error(err),
	)
}
