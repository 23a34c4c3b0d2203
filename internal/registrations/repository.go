package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
	"github.com/gatepass/backend/pkg/database"
)

// ErrStatusChanged is returned by UpdateStatus when the row no longer holds the expected status.
var ErrStatusChanged = errors.New("registration status changed concurrently")

// Repository handles registration and check-in persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const registrationColumns = `id, event_id, user_id, email, full_name, status, qr_code, ticket_link, form_responses, created_at, updated_at`

func scanRegistration(row pgx.Row, reg *models.Registration) error {
	return row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Email, &reg.FullName, &reg.Status,
		&reg.QRCode, &reg.TicketLink, &reg.FormResponses, &reg.CreatedAt, &reg.UpdatedAt)
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*models.Registration, error) {
	var reg models.Registration
	err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE `+where, arg), &reg)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("registration: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// Create inserts a registration. A second registration for the same event and email
// returns apperr.ErrAlreadyRegistered and writes nothing.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (event_id, user_id, email, full_name, status, qr_code, ticket_link, form_responses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id, email) DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, reg.EventID, reg.UserID, reg.Email, reg.FullName, reg.Status,
		reg.QRCode, reg.TicketLink, reg.FormResponses).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if database.IsNoRows(err) {
		return apperr.ErrAlreadyRegistered
	}
	return err
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByQRCode returns the registration holding the exact code.
func (r *Repository) GetByQRCode(ctx context.Context, code string) (*models.Registration, error) {
	return r.getOne(ctx, `qr_code = $1`, code)
}

// ListByEvent returns all registrations for an event, oldest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at`, eventID)
}

// ListByUser returns the account's registrations, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// CountByStatus returns registration counts per status for an event. Missing statuses are zero.
func (r *Repository) CountByStatus(ctx context.Context, eventID uuid.UUID) (map[models.RegistrationStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM registrations WHERE event_id = $1 GROUP BY status`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[models.RegistrationStatus]int)
	for rows.Next() {
		var s models.RegistrationStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

// UpdateStatus moves a registration from one status to another only if it still holds from.
// When rec is non-nil the check-in record is appended in the same transaction.
// A lost race returns ErrStatusChanged.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.RegistrationStatus, rec *models.CheckInRecord) (*models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var reg models.Registration
	err = scanRegistration(tx.QueryRow(ctx,
		`UPDATE registrations SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $2
		 RETURNING `+registrationColumns, id, from, to), &reg)
	if database.IsNoRows(err) {
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, err
	}
	if rec != nil {
		rec.RegistrationID = id
		err = tx.QueryRow(ctx,
			`INSERT INTO check_in_records (registration_id, verifier_id, type) VALUES ($1, $2, $3) RETURNING id, created_at`,
			id, rec.VerifierID, rec.Type).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("append check-in record: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &reg, nil
}

// ClaimGuestRegistrations assigns every ownerless registration with the email to userID.
func (r *Repository) ClaimGuestRegistrations(ctx context.Context, email string, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE registrations SET user_id = $2, updated_at = NOW() WHERE email = $1 AND user_id IS NULL`,
		email, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListCheckInsByRegistration returns the audit trail of one registration, oldest first.
func (r *Repository) ListCheckInsByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.CheckInRecord, error) {
	return r.listCheckIns(ctx,
		`SELECT c.id, c.registration_id, c.verifier_id, c.type, c.created_at, r.email
		 FROM check_in_records c JOIN registrations r ON r.id = c.registration_id
		 WHERE c.registration_id = $1 ORDER BY c.created_at`, registrationID)
}

// ListCheckInsByEvent returns every check-in record of an event with the attendee email, oldest first.
func (r *Repository) ListCheckInsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.CheckInRecord, error) {
	return r.listCheckIns(ctx,
		`SELECT c.id, c.registration_id, c.verifier_id, c.type, c.created_at, r.email
		 FROM check_in_records c JOIN registrations r ON r.id = c.registration_id
		 WHERE r.event_id = $1 ORDER BY c.created_at`, eventID)
}

func (r *Repository) listCheckIns(ctx context.Context, q string, arg any) ([]models.CheckInRecord, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CheckInRecord
	for rows.Next() {
		var c models.CheckInRecord
		if err := rows.Scan(&c.ID, &c.RegistrationID, &c.VerifierID, &c.Type, &c.CreatedAt, &c.AttendeeEmail); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
