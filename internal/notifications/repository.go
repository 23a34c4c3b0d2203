package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

// Repository handles inbox persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch writes all rows in one COPY, so either every row lands or none does.
// Missing ids and timestamps are filled in before the write.
func (r *Repository) InsertBatch(ctx context.Context, list []models.Notification) error {
	if len(list) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range list {
		if list[i].ID == uuid.Nil {
			list[i].ID = uuid.New()
		}
		if list[i].CreatedAt.IsZero() {
			list[i].CreatedAt = now
		}
	}
	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"notifications"},
		[]string{"id", "user_id", "title", "body", "type", "related_id", "read", "created_at"},
		pgx.CopyFromSlice(len(list), func(i int) ([]any, error) {
			n := list[i]
			return []any{n.ID, n.UserID, n.Title, n.Body, n.Type, n.RelatedID, n.Read, n.CreatedAt}, nil
		}),
	)
	if err != nil {
		return err
	}
	if int(n) != len(list) {
		return fmt.Errorf("copied %d of %d notifications", n, len(list))
	}
	return nil
}

// ListByUser returns the newest notifications of an account.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := `SELECT id, user_id, title, body, type, related_id, read, created_at FROM notifications WHERE user_id = $1`
	if unreadOnly {
		q += ` AND NOT read`
	}
	q += ` ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &n.RelatedID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// MarkRead flags one notification read. Only the recipient may do so; anything else is NotFound.
func (r *Repository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// MarkAllRead flags every unread notification of the account and returns how many changed.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
