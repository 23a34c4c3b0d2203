package registrations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/backend/internal/lifecycle"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

type memStore struct {
	mu       sync.Mutex
	regs     map[uuid.UUID]*models.Registration
	checkIns []models.CheckInRecord
}

func newMemStore() *memStore {
	return &memStore{regs: make(map[uuid.UUID]*models.Registration)}
}

func (m *memStore) Create(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.EventID == reg.EventID && r.Email == reg.Email {
			return apperr.ErrAlreadyRegistered
		}
	}
	reg.ID = uuid.New()
	cp := *reg
	m.regs[reg.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.RegistrationStatus, rec *models.CheckInRecord) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok || r.Status != from {
		return nil, ErrStatusChanged
	}
	r.Status = to
	if rec != nil {
		rec.ID = uuid.New()
		m.checkIns = append(m.checkIns, *rec)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) status(id uuid.UUID) models.RegistrationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[id].Status
}

func (m *memStore) checkInCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkIns)
}

// racingStore holds the first two reads until both have seen the pre-write status,
// so both callers pass the guard before either writes.
type racingStore struct {
	*memStore
	ready *sync.WaitGroup
	mu    sync.Mutex
	reads int
}

func (r *racingStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	r.mu.Lock()
	r.reads++
	n := r.reads
	r.mu.Unlock()
	reg, err := r.memStore.GetByID(ctx, id)
	if n <= 2 {
		r.ready.Done()
		r.ready.Wait()
	}
	return reg, err
}

type eventMap map[uuid.UUID]*models.Event

func (e eventMap) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if ev, ok := e[id]; ok {
		return ev, nil
	}
	return nil, apperr.ErrNotFound
}

type change struct {
	to, prev models.RegistrationStatus
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []change
}

func (n *recordingNotifier) RegistrationChanged(_ context.Context, reg *models.Registration, _ *models.Event, prev models.RegistrationStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change{to: reg.Status, prev: prev})
}

type fixture struct {
	svc       *Service
	store     *memStore
	notifier  *recordingNotifier
	organizer uuid.UUID
	event     *models.Event
}

func newFixture(t *testing.T, requiresApproval bool) *fixture {
	t.Helper()
	organizer := uuid.New()
	ev := &models.Event{ID: uuid.New(), OrganizerID: organizer, RequiresApproval: requiresApproval}
	store := newMemStore()
	n := &recordingNotifier{}
	return &fixture{
		svc:       NewService(store, eventMap{ev.ID: ev}, n, nil),
		store:     store,
		notifier:  n,
		organizer: organizer,
		event:     ev,
	}
}

func (f *fixture) register(t *testing.T, email string) *models.Registration {
	t.Helper()
	reg, err := f.svc.Register(context.Background(), RegisterInput{EventID: f.event.ID, Email: email, FullName: "A"})
	require.NoError(t, err)
	return reg
}

func (f *fixture) setStatus(id uuid.UUID, s models.RegistrationStatus) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.regs[id].Status = s
}

func TestRegister_InitialStatusAndTokens(t *testing.T) {
	f := newFixture(t, true)
	reg := f.register(t, "  Ada@Example.COM ")
	assert.Equal(t, models.StatusPending, reg.Status)
	assert.Equal(t, "ada@example.com", reg.Email)
	assert.NotEmpty(t, reg.QRCode)
	assert.Contains(t, reg.TicketLink, "/tickets/")
	assert.True(t, reg.IsGuest())

	open := newFixture(t, false)
	assert.Equal(t, models.StatusApproved, open.register(t, "b@x.com").Status)
}

func TestRegister_DuplicateRejectedPerEvent(t *testing.T) {
	f := newFixture(t, false)
	f.register(t, "a@x.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{EventID: f.event.ID, Email: "A@x.com"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyRegistered)
	assert.Len(t, f.store.regs, 1)

	other := &models.Event{ID: uuid.New(), OrganizerID: f.organizer}
	f.svc.events = eventMap{f.event.ID: f.event, other.ID: other}
	_, err = f.svc.Register(context.Background(), RegisterInput{EventID: other.ID, Email: "a@x.com"})
	require.NoError(t, err)
	assert.Len(t, f.store.regs, 2)
}

func TestRegister_UnknownEvent(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Register(context.Background(), RegisterInput{EventID: uuid.New(), Email: "a@x.com"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTransition_ApprovalFlow(t *testing.T) {
	f := newFixture(t, true)
	reg := f.register(t, "a@x.com")

	got, err := f.svc.Transition(context.Background(), reg.ID, lifecycle.ActionApprove, f.organizer)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.Len(t, f.notifier.changes, 1)
	assert.Equal(t, change{to: models.StatusApproved, prev: models.StatusPending}, f.notifier.changes[0])
}

func TestTransition_NonOrganizerCannotDecide(t *testing.T) {
	f := newFixture(t, true)
	reg := f.register(t, "a@x.com")

	_, err := f.svc.Transition(context.Background(), reg.ID, lifecycle.ActionReject, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, models.StatusPending, f.store.status(reg.ID))
	assert.Empty(t, f.notifier.changes)
}

func TestTransition_NotFound(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.Transition(context.Background(), uuid.New(), lifecycle.ActionApprove, f.organizer)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTransition_InvalidLeavesStatus(t *testing.T) {
	for _, from := range models.Statuses {
		for _, action := range lifecycle.Actions {
			if _, err := lifecycle.Next(from, action); err == nil {
				continue
			}
			t.Run(string(from)+"/"+string(action), func(t *testing.T) {
				f := newFixture(t, true)
				reg := f.register(t, "a@x.com")
				f.setStatus(reg.ID, from)

				_, err := f.svc.Transition(context.Background(), reg.ID, action, f.organizer)
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
				assert.Equal(t, from, f.store.status(reg.ID))
				assert.Zero(t, f.store.checkInCount())
				assert.Empty(t, f.notifier.changes)
			})
		}
	}
}

func TestCheckIn_RejectedTicketWritesNoRecord(t *testing.T) {
	f := newFixture(t, true)
	reg := f.register(t, "a@x.com")
	_, err := f.svc.Transition(context.Background(), reg.ID, lifecycle.ActionReject, f.organizer)
	require.NoError(t, err)

	rec, err := f.svc.CheckIn(context.Background(), reg.ID, uuid.New())
	assert.Nil(t, rec)
	var te *lifecycle.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.StatusRejected, te.From)
	assert.Equal(t, models.StatusRejected, f.store.status(reg.ID))
	assert.Zero(t, f.store.checkInCount())
}

func TestCheckInOut_ReentryAppendsRecords(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t, "a@x.com")
	verifier := uuid.New()
	ctx := context.Background()

	rec, err := f.svc.CheckIn(ctx, reg.ID, verifier)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInTypeIn, rec.Type)
	require.NotNil(t, rec.VerifierID)
	assert.Equal(t, verifier, *rec.VerifierID)

	_, err = f.svc.CheckIn(ctx, reg.ID, verifier)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	rec, err = f.svc.CheckOut(ctx, reg.ID, verifier)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInTypeOut, rec.Type)

	_, err = f.svc.CheckIn(ctx, reg.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 3, f.store.checkInCount())
	assert.Equal(t, models.StatusCheckedIn, f.store.status(reg.ID))
}

func TestCheckIn_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t, "a@x.com")

	var ready sync.WaitGroup
	ready.Add(2)
	f.svc.store = &racingStore{memStore: f.store, ready: &ready}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CheckIn(context.Background(), reg.ID, uuid.New())
		}(i)
	}
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrInvalidTransition):
			invalid++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, invalid)
	assert.Equal(t, 1, f.store.checkInCount())
	assert.Len(t, f.notifier.changes, 1)
}

func TestBulkTransition_CountsPartialFailure(t *testing.T) {
	f := newFixture(t, true)
	a := f.register(t, "a@x.com")
	b := f.register(t, "b@x.com")
	c := f.register(t, "c@x.com")
	f.setStatus(c.ID, models.StatusRejected)

	res, err := f.svc.BulkTransition(context.Background(), []uuid.UUID{a.ID, b.ID, c.ID, uuid.New()}, models.StatusApproved, f.organizer)
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Updated: 2, Total: 4}, res)
	assert.Equal(t, models.StatusApproved, f.store.status(a.ID))
	assert.Equal(t, models.StatusRejected, f.store.status(c.ID))
}

func TestBulkTransition_RejectsCheckInTarget(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.BulkTransition(context.Background(), nil, models.StatusCheckedIn, f.organizer)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}
