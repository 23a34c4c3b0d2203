package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

type fakeUsers struct {
	byEmail map[string]*models.User
	err     error
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) IDsByEmails(_ context.Context, emails []string) (map[string]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]uuid.UUID)
	for _, e := range emails {
		if u, ok := f.byEmail[e]; ok {
			out[e] = u.ID
		}
	}
	return out, nil
}

// guestTable mimics the registrations table for claim purposes.
type guestTable struct {
	mu   sync.Mutex
	rows []*models.Registration
}

func (g *guestTable) ClaimGuestRegistrations(_ context.Context, email string, userID uuid.UUID) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int64
	for _, r := range g.rows {
		if r.UserID == nil && r.Email == email {
			id := userID
			r.UserID = &id
			n++
		}
	}
	return n, nil
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com \n"))
}

func TestResolver_Resolve(t *testing.T) {
	acct := &models.User{ID: uuid.New(), Email: "a@x.com"}
	r := NewResolver(&fakeUsers{byEmail: map[string]*models.User{"a@x.com": acct}})

	u, err := r.Resolve(context.Background(), " A@x.COM")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, acct.ID, u.ID)

	u, err = r.Resolve(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = r.Resolve(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestResolver_ResolvePropagatesStoreErrors(t *testing.T) {
	r := NewResolver(&fakeUsers{err: errors.New("db down")})
	_, err := r.Resolve(context.Background(), "a@x.com")
	assert.Error(t, err)
	_, err = r.ResolveMany(context.Background(), []string{"a@x.com"})
	assert.Error(t, err)
}

func TestResolver_ResolveMany(t *testing.T) {
	a := uuid.New()
	r := NewResolver(&fakeUsers{byEmail: map[string]*models.User{"a@x.com": {ID: a}}})

	got, err := r.ResolveMany(context.Background(), []string{"A@x.com", "a@x.com ", "b@x.com", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]uuid.UUID{"a@x.com": a}, got)

	got, err = r.ResolveMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHealer_Idempotent(t *testing.T) {
	acct := uuid.New()
	other := &models.Registration{ID: uuid.New(), Email: "b@x.com"}
	table := &guestTable{rows: []*models.Registration{
		{ID: uuid.New(), Email: "a@x.com"},
		{ID: uuid.New(), Email: "a@x.com"},
		other,
	}}
	h := NewHealer(table, nil)

	require.NoError(t, h.Heal(context.Background(), "A@x.com", acct))
	first := snapshot(table)

	require.NoError(t, h.Heal(context.Background(), "a@x.com", acct))
	assert.Equal(t, first, snapshot(table))

	for _, r := range table.rows[:2] {
		require.NotNil(t, r.UserID)
		assert.Equal(t, acct, *r.UserID)
	}
	assert.Nil(t, other.UserID, "different email must be untouched")
}

func TestHealer_DoesNotStealOwnedRegistrations(t *testing.T) {
	owner := uuid.New()
	owned := &models.Registration{ID: uuid.New(), Email: "a@x.com", UserID: &owner}
	table := &guestTable{rows: []*models.Registration{owned}}

	require.NoError(t, NewHealer(table, nil).Heal(context.Background(), "a@x.com", uuid.New()))
	assert.Equal(t, owner, *owned.UserID)
}

func TestHealer_ZeroMatchesIsNotAnError(t *testing.T) {
	h := NewHealer(&guestTable{}, nil)
	assert.NoError(t, h.Heal(context.Background(), "nobody@x.com", uuid.New()))
	assert.NoError(t, h.Heal(context.Background(), "", uuid.New()))
}

func snapshot(g *guestTable) map[uuid.UUID]uuid.UUID {
	out := make(map[uuid.UUID]uuid.UUID)
	for _, r := range g.rows {
		if r.UserID != nil {
			out[r.ID] = *r.UserID
		}
	}
	return out
}
