package registrations

import (
	"bytes"
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
)

// signedIn stands in for the JWT middleware.
func signedIn(id uuid.UUID, email string, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
		c.Set(middleware.ContextUserEmail, email)
		c.Set(middleware.ContextUserRole, string(role))
		c.Next()
	}
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_TransitionRefusesSelfAdmission(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t, false)
	attendee := uuid.New()
	reg := f.register(t, "a@x.com")

	r := gin.New()
	r.Use(signedIn(attendee, "a@x.com", models.RoleAttendee))
	r.POST("/registrations/:id/transition", NewHandler(f.svc, nil, nil).Transition)

	path := "/registrations/" + reg.ID.String() + "/transition"
	for _, action := range []string{"check_in", "check_out"} {
		w := postJSON(t, r, path, gin.H{"action": action})
		assert.Equal(t, http.StatusBadRequest, w.Code, action)
	}
	assert.Equal(t, models.StatusApproved, f.store.status(reg.ID))
	assert.Zero(t, f.store.checkInCount())
	assert.Empty(t, f.notifier.changes)
}

func TestHandler_TransitionOrganizerDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t, true)
	reg := f.register(t, "a@x.com")

	r := gin.New()
	r.Use(signedIn(f.organizer, "org@x.com", models.RoleOrganizer))
	r.POST("/registrations/:id/transition", NewHandler(f.svc, nil, nil).Transition)

	w := postJSON(t, r, "/registrations/"+reg.ID.String()+"/transition", gin.H{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusApproved, f.store.status(reg.ID))
}

func TestHandler_RegisterLinksOnlyOwnEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t, false)
	caller := uuid.New()

	r := gin.New()
	r.Use(signedIn(caller, "me@x.com", models.RoleAttendee))
	r.POST("/events/:id/register", NewHandler(f.svc, nil, nil).Register)
	path := "/events/" + f.event.ID.String() + "/register"

	w := postJSON(t, r, path, gin.H{"email": "Me@X.com", "full_name": "Me"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = postJSON(t, r, path, gin.H{"email": "friend@x.com", "full_name": "Friend"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	require.Len(t, f.store.regs, 2)
	for _, reg := range f.store.regs {
		switch reg.Email {
		case "me@x.com":
			require.NotNil(t, reg.UserID)
			assert.Equal(t, caller, *reg.UserID)
		case "friend@x.com":
			assert.Nil(t, reg.UserID, "someone else's email stays a guest ticket")
		default:
			t.Fatalf("unexpected registration %s", reg.Email)
		}
	}
}
