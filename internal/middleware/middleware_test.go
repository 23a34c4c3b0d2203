package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/backend/internal/auth"
	"github.com/gatepass/backend/internal/models"
)

func TestTokenBucket_Allow(t *testing.T) {
	l := NewTokenBucket(2, 60)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"), "one token refilled after a second at 60/min")
	assert.False(t, l.Allow("a"))
}

func TestJWTAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := auth.NewJWTService("s", 1)
	id := uuid.New()
	verifier, err := jwtSvc.Generate(id, "v@x.com", string(models.RoleVerifier))
	require.NoError(t, err)
	attendee, err := jwtSvc.Generate(uuid.New(), "a@x.com", string(models.RoleAttendee))
	require.NoError(t, err)

	r := gin.New()
	r.GET("/scan", JWT(jwtSvc), RequireRole(models.RoleVerifier, models.RoleOrganizer), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c).String())
	})
	r.GET("/public", OptionalJWT(jwtSvc), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c).String())
	})

	do := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("/scan", verifier)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.String(), w.Body.String())

	assert.Equal(t, http.StatusForbidden, do("/scan", attendee).Code)
	assert.Equal(t, http.StatusUnauthorized, do("/scan", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/scan", "bogus").Code)

	assert.Equal(t, uuid.Nil.String(), do("/public", "").Body.String())
	assert.Equal(t, uuid.Nil.String(), do("/public", "bogus").Body.String())
	assert.Equal(t, id.String(), do("/public", verifier).Body.String())
}
