package push

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatepass/backend/internal/models"
)

// Repository handles push token persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a push token repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert stores a device token for an account. A token moves to the latest account that registers it.
func (r *Repository) Upsert(ctx context.Context, t *models.PushToken) error {
	const q = `INSERT INTO push_tokens (token, user_id, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, t.Token, t.UserID, t.Platform).Scan(&t.CreatedAt)
}

// Delete removes a token owned by userID.
func (r *Repository) Delete(ctx context.Context, token string, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM push_tokens WHERE token = $1 AND user_id = $2`, token, userID)
	return err
}

// TokensForUsers returns the device tokens of each account that has any.
func (r *Repository) TokensForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string)
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT user_id, token FROM push_tokens WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, err
		}
		out[id] = append(out[id], token)
	}
	return out, rows.Err()
}
