package deliverylogs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/backend/internal/events"
	"github.com/gatepass/backend/internal/models"
)

type memLogs struct {
	byEvent map[uuid.UUID][]*models.DeliveryLog
	limit   int
	err     error
}

func (m *memLogs) ListByEvent(_ context.Context, eventID uuid.UUID, limit int) ([]*models.DeliveryLog, error) {
	m.limit = limit
	return m.byEvent[eventID], m.err
}

func get(h *Handler, ev *models.Event) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(events.ContextEvent, ev)
		c.Next()
	})
	r.GET("/events/:id/deliveries", h.ListByEvent)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+ev.ID.String()+"/deliveries", nil))
	return w
}

func TestListByEvent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ev := &models.Event{ID: uuid.New()}
	repo := &memLogs{byEvent: map[uuid.UUID][]*models.DeliveryLog{ev.ID: {
		{ID: uuid.New(), EventID: &ev.ID, Channel: models.ChannelPush, ChunkIndex: 1, Status: models.DeliveryLogStatusFailed, ErrorMessage: "gateway 503"},
		{ID: uuid.New(), EventID: &ev.ID, Channel: models.ChannelPush, ChunkIndex: 0, Status: models.DeliveryLogStatusSent, Accepted: 100},
	}}}

	w := get(NewHandler(repo), ev)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, listLimit, repo.limit)

	var body struct {
		Data []models.DeliveryLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "gateway 503", body.Data[0].ErrorMessage)
	assert.Equal(t, 100, body.Data[1].Accepted)
}

func TestListByEvent_EmptyAndError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ev := &models.Event{ID: uuid.New()}

	w := get(NewHandler(&memLogs{}), ev)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())

	w = get(NewHandler(&memLogs{err: errors.New("db down")}), ev)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
