package deliverylogs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatepass/backend/internal/models"
)

// Repository handles delivery_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a delivery logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends one chunk outcome.
func (r *Repository) Record(ctx context.Context, l *models.DeliveryLog) error {
	var errMsg *string
	if l.ErrorMessage != "" {
		errMsg = &l.ErrorMessage
	}
	const q = `INSERT INTO delivery_logs (event_id, channel, chunk_index, recipient_count, accepted, rejected, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.EventID, l.Channel, l.ChunkIndex, l.RecipientCount, l.Accepted, l.Rejected, l.Status, errMsg).
		Scan(&l.ID, &l.CreatedAt)
}

// ListByEvent returns delivery logs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]*models.DeliveryLog, error) {
	const q = `SELECT id, event_id, channel, chunk_index, recipient_count, accepted, rejected, status, error_message, created_at
		FROM delivery_logs
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.DeliveryLog
	for rows.Next() {
		var l models.DeliveryLog
		var errMsg *string
		if err := rows.Scan(&l.ID, &l.EventID, &l.Channel, &l.ChunkIndex, &l.RecipientCount, &l.Accepted, &l.Rejected, &l.Status, &errMsg, &l.CreatedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			l.ErrorMessage = *errMsg
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
