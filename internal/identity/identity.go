// Package identity maps contact emails to accounts and reattaches guest registrations to them.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/metrics"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

// UserLookup finds accounts by normalized email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	IDsByEmails(ctx context.Context, emails []string) (map[string]uuid.UUID, error)
}

// GuestClaimer reassigns ownerless registrations with a matching email to an account.
type GuestClaimer interface {
	ClaimGuestRegistrations(ctx context.Context, email string, userID uuid.UUID) (int64, error)
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Resolver maps an email to zero or one account.
type Resolver struct {
	users UserLookup
}

// NewResolver creates an identity resolver.
func NewResolver(users UserLookup) *Resolver {
	return &Resolver{users: users}
}

// Resolve returns the account for email, or nil when none exists.
func (r *Resolver) Resolve(ctx context.Context, email string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	u, err := r.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve email: %w", err)
	}
	return u, nil
}

// ResolveMany resolves a batch of emails. Emails without an account are absent from the result.
// Keys are normalized emails.
func (r *Resolver) ResolveMany(ctx context.Context, emails []string) (map[string]uuid.UUID, error) {
	seen := make(map[string]struct{}, len(emails))
	norm := make([]string, 0, len(emails))
	for _, e := range emails {
		e = NormalizeEmail(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		norm = append(norm, e)
	}
	if len(norm) == 0 {
		return map[string]uuid.UUID{}, nil
	}
	ids, err := r.users.IDsByEmails(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("resolve emails: %w", err)
	}
	return ids, nil
}

// Healer attaches guest registrations to the account that owns their email.
type Healer struct {
	claimer GuestClaimer
	logger  *zap.Logger
}

// NewHealer creates a healing service.
func NewHealer(claimer GuestClaimer, logger *zap.Logger) *Healer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Healer{claimer: claimer, logger: logger}
}

// Heal reassigns every guest registration whose email matches to accountID.
// Only rows with no owner are touched, so repeated calls are no-ops.
func (h *Healer) Heal(ctx context.Context, email string, accountID uuid.UUID) error {
	email = NormalizeEmail(email)
	if email == "" || accountID == uuid.Nil {
		return nil
	}
	n, err := h.claimer.ClaimGuestRegistrations(ctx, email, accountID)
	if err != nil {
		return fmt.Errorf("claim guest registrations: %w", err)
	}
	if n > 0 {
		metrics.HealedRegistrations.Add(float64(n))
		h.logger.Info("guest registrations healed",
			zap.String("user_id", accountID.String()),
			zap.Int64("count", n),
		)
	}
	return nil
}
