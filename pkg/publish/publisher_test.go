package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelins/taskwire/pkg/event"
)

// fakeLog records durable-log appends.
type fakeLog struct {
	mu     sync.Mutex
	keys   []string
	values [][]byte
	err    error
}

func (f *fakeLog) Publish(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return nil
}

func TestPublish_DispatchesToBothChannels(t *testing.T) {
	t.Parallel()

	bodies := make(chan []byte, 1)
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- b
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	log := &fakeLog{}
	pub := New(relay.URL, time.Second, log)

	rec := event.NewTaskUpdated(event.TaskSnapshot{ID: 7, Title: "t", Completed: true})
	pub.Publish(context.Background(), rec)

	var gotBody []byte
	select {
	case gotBody = <-bodies:
	case <-time.After(time.Second):
		t.Fatal("relay was never called")
	}

	var relayed event.Record
	require.NoError(t, json.Unmarshal(gotBody, &relayed))
	assert.Equal(t, rec.ID, relayed.ID)
	assert.Equal(t, event.TypeTaskUpdated, relayed.Type)
	require.NotNil(t, relayed.Task)
	assert.True(t, relayed.Task.Completed)

	require.Len(t, log.keys, 1)
	assert.Equal(t, "task-updated", log.keys[0])
	assert.Equal(t, gotBody, log.values[0], "stream and log copies must be the same serialized record")
}

func TestPublish_RelayFailureDoesNotBlockLogDispatch(t *testing.T) {
	t.Parallel()

	// Nothing listens on this address.
	log := &fakeLog{}
	pub := New("http://127.0.0.1:1/internal/task-event", 200*time.Millisecond, log)

	pub.Publish(context.Background(), event.NewTaskDeleted(9, 2))

	require.Len(t, log.keys, 1)
	assert.Equal(t, "task-deleted", log.keys[0])
}

func TestPublish_RelayRejectionIsSwallowed(t *testing.T) {
	t.Parallel()

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer relay.Close()

	log := &fakeLog{}
	pub := New(relay.URL, time.Second, log)

	pub.Publish(context.Background(), event.NewTaskDeleted(1, 1))

	require.Len(t, log.keys, 1)
}

func TestPublish_LogFailureDoesNotBlockRelay(t *testing.T) {
	t.Parallel()

	var relayed atomic.Int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		relayed.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	log := &fakeLog{err: errors.New("broker unreachable")}
	pub := New(relay.URL, time.Second, log)

	pub.Publish(context.Background(), event.NewTaskCreated(event.TaskSnapshot{ID: 1}))

	assert.Equal(t, int32(1), relayed.Load())
}

func TestPublish_NilLogProducerIsTolerated(t *testing.T) {
	t.Parallel()

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()

	pub := New(relay.URL, time.Second, nil)
	pub.Publish(context.Background(), event.NewTaskDeleted(1, 1))
}
