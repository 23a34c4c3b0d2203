package broadcasts

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatepass/backend/internal/models"
)

// Repository handles broadcast history persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a broadcasts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create appends a broadcast record.
func (r *Repository) Create(ctx context.Context, b *models.BroadcastRecord) error {
	const q = `INSERT INTO broadcasts (event_id, organizer_id, title, message, recipient_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sent_at`
	return r.pool.QueryRow(ctx, q, b.EventID, b.OrganizerID, b.Title, b.Message, b.RecipientCount).Scan(&b.ID, &b.SentAt)
}

// ListByEvent returns an event's broadcasts, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.BroadcastRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, organizer_id, title, message, recipient_count, sent_at
		 FROM broadcasts WHERE event_id = $1 ORDER BY sent_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.BroadcastRecord
	for rows.Next() {
		var b models.BroadcastRecord
		if err := rows.Scan(&b.ID, &b.EventID, &b.OrganizerID, &b.Title, &b.Message, &b.RecipientCount, &b.SentAt); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
