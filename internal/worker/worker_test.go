package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass/backend/internal/fanout"
	"github.com/gatepass/backend/pkg/queue"
)

type recordingDeliverer struct {
	mu  sync.Mutex
	got []fanout.Delivery
}

func (r *recordingDeliverer) Deliver(_ context.Context, d fanout.Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, d)
}

func (r *recordingDeliverer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

// chanSource serves jobs from a channel and records retries.
type chanSource struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (c *chanSource) Dequeue(ctx context.Context, _ ...string) (*queue.Job, string, error) {
	select {
	case j := <-c.jobs:
		return j, queue.QueueFanOut, nil
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

func (c *chanSource) Retry(_ context.Context, job *queue.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retried = append(c.retried, job)
	return nil
}

func fanOutJob(t *testing.T, d fanout.Delivery) *queue.Job {
	t.Helper()
	body, err := json.Marshal(d)
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeFanOut, Payload: body}
}

func TestProcess_DecodesDelivery(t *testing.T) {
	target := &recordingDeliverer{}
	p := NewFanOutProcessor(target, nil, nil)
	rel := uuid.New()
	want := fanout.Delivery{
		EventID:    uuid.New(),
		Recipients: []uuid.UUID{uuid.New(), uuid.New()},
		Message:    fanout.Message{Type: "broadcast", Title: "T", Body: "B", RelatedID: &rel, Data: map[string]string{"k": "v"}},
	}

	require.NoError(t, p.Process(context.Background(), fanOutJob(t, want)))
	require.Len(t, target.got, 1)
	assert.Equal(t, want, target.got[0])
}

func TestProcess_RejectsBadJobs(t *testing.T) {
	p := NewFanOutProcessor(&recordingDeliverer{}, nil, nil)
	assert.Error(t, p.Process(context.Background(), &queue.Job{Type: "email"}))
	assert.Error(t, p.Process(context.Background(), &queue.Job{Type: queue.JobTypeFanOut, Payload: []byte("{")}))
}

func TestRun_RetriesMalformedAndStops(t *testing.T) {
	target := &recordingDeliverer{}
	src := &chanSource{jobs: make(chan *queue.Job, 2)}
	p := NewFanOutProcessor(target, src, nil)
	p.backoff = time.Millisecond

	src.jobs <- &queue.Job{ID: "bad", Type: queue.JobTypeFanOut, Payload: []byte("nope")}
	src.jobs <- fanOutJob(t, fanout.Delivery{EventID: uuid.New()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return target.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	src.mu.Lock()
	defer src.mu.Unlock()
	require.Len(t, src.retried, 1)
	assert.Equal(t, "bad", src.retried[0].ID)
}
