package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

func TestNext_AllowedEdges(t *testing.T) {
	tests := []struct {
		from   models.RegistrationStatus
		action Action
		to     models.RegistrationStatus
	}{
		{models.StatusPending, ActionApprove, models.StatusApproved},
		{models.StatusPending, ActionReject, models.StatusRejected},
		{models.StatusApproved, ActionCheckIn, models.StatusCheckedIn},
		{models.StatusCheckedIn, ActionCheckOut, models.StatusCheckedOut},
		{models.StatusCheckedOut, ActionCheckIn, models.StatusCheckedIn},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := Next(tt.from, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.to, got)
		})
	}
}

func TestNext_EveryOtherPairIsInvalid(t *testing.T) {
	allowed := map[models.RegistrationStatus]map[Action]bool{
		models.StatusPending:    {ActionApprove: true, ActionReject: true},
		models.StatusApproved:   {ActionCheckIn: true},
		models.StatusCheckedIn:  {ActionCheckOut: true},
		models.StatusCheckedOut: {ActionCheckIn: true},
	}
	invalid := 0
	for _, from := range models.Statuses {
		for _, a := range Actions {
			if allowed[from][a] {
				continue
			}
			invalid++
			got, err := Next(from, a)
			require.Error(t, err, "%s/%s", from, a)
			assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
			assert.Equal(t, from, got, "status must be unchanged")

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, from, te.From)
			assert.Equal(t, a, te.Action)
		}
	}
	assert.Equal(t, len(models.Statuses)*len(Actions)-5, invalid)
}

func TestRejectedAdmitsNothing(t *testing.T) {
	for _, a := range Actions {
		_, err := Next(models.StatusRejected, a)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	}
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, models.StatusPending, InitialStatus(true))
	assert.Equal(t, models.StatusApproved, InitialStatus(false))
}

func TestActionFor(t *testing.T) {
	a, ok := ActionFor(models.StatusApproved)
	assert.True(t, ok)
	assert.Equal(t, ActionApprove, a)

	a, ok = ActionFor(models.StatusRejected)
	assert.True(t, ok)
	assert.Equal(t, ActionReject, a)

	_, ok = ActionFor(models.StatusCheckedIn)
	assert.False(t, ok)
}

func TestActionHelpers(t *testing.T) {
	assert.True(t, ActionApprove.RequiresOwnership())
	assert.True(t, ActionReject.RequiresOwnership())
	assert.False(t, ActionCheckIn.RequiresOwnership())
	assert.False(t, Action("delete").Valid())

	typ, ok := ActionCheckOut.CheckInType()
	assert.True(t, ok)
	assert.Equal(t, models.CheckInTypeOut, typ)
	_, ok = ActionApprove.CheckInType()
	assert.False(t, ok)

	assert.True(t, Announced(models.StatusCheckedIn))
	assert.False(t, Announced(models.StatusCheckedOut))
}
