package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBatch_ReturnsTickets(t *testing.T) {
	var got []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []Ticket{
			{Status: "ok", ID: "t1"},
			{Status: "error", Message: "DeviceNotRegistered"},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	tickets, err := c.SendBatch(context.Background(), []Message{
		{To: "ExponentPushToken[a]", Title: "T", Body: "B", Data: map[string]any{"type": "broadcast"}},
		{To: "ExponentPushToken[b]", Title: "T", Body: "B"},
	})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.True(t, tickets[0].OK())
	assert.False(t, tickets[1].OK())
	require.Len(t, got, 2)
	assert.Equal(t, "ExponentPushToken[a]", got[0].To)
	assert.Equal(t, "broadcast", got[0].Data["type"])
}

func TestSendBatch_Non2xxFailsWholeBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tickets, err := NewClient(srv.URL, "", time.Second).SendBatch(context.Background(), []Message{{To: "x"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Nil(t, tickets)
}

func TestSendBatch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(srv.URL, "", 50*time.Millisecond).SendBatch(context.Background(), []Message{{To: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSendBatch_EmptyIsNoop(t *testing.T) {
	tickets, err := NewClient("http://127.0.0.1:1", "", time.Second).SendBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, tickets)
}
