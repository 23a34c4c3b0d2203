package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/backend/internal/middleware"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

type fakeEvents map[uuid.UUID]*models.Event

func (f fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if e, ok := f[id]; ok {
		return e, nil
	}
	return nil, apperr.ErrNotFound
}

func (f fakeEvents) Create(_ context.Context, e *models.Event) error {
	e.ID = uuid.New()
	f[e.ID] = e
	return nil
}

func (f fakeEvents) ListByOrganizer(_ context.Context, organizerID uuid.UUID) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f {
		if e.OrganizerID == organizerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fixedCounts map[models.RegistrationStatus]int

func (f fixedCounts) CountByStatus(context.Context, uuid.UUID) (map[models.RegistrationStatus]int, error) {
	return f, nil
}

func TestStats_OrganizerOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	organizer := uuid.New()
	ev := &models.Event{ID: uuid.New(), OrganizerID: organizer}
	store := fakeEvents{ev.ID: ev}
	h := NewHandler(store, fixedCounts{models.StatusApproved: 3, models.StatusCheckedIn: 2}, nil)

	var caller uuid.UUID
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, caller); c.Next() })
	r.GET("/events/:id/stats", RequireOrganizer(store), h.Stats)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	caller = organizer
	w := get("/events/" + ev.ID.String() + "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Total    int            `json:"total"`
			ByStatus map[string]int `json:"by_status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Data.Total)
	assert.Equal(t, 0, body.Data.ByStatus["pending"])
	assert.Equal(t, 2, body.Data.ByStatus["checked_in"])

	caller = uuid.New()
	assert.Equal(t, http.StatusForbidden, get("/events/"+ev.ID.String()+"/stats").Code)
	assert.Equal(t, http.StatusNotFound, get("/events/"+uuid.NewString()+"/stats").Code)
	assert.Equal(t, http.StatusBadRequest, get("/events/nope/stats").Code)
}
