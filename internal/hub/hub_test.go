package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelins/taskwire/pkg/event"
)

func recv(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case payload, ok := <-sub.Events():
		require.True(t, ok, "subscriber channel closed")
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestBroadcast_AllSubscribersGetIdenticalPayload(t *testing.T) {
	t.Parallel()

	h := New(4)
	subs := make([]*Subscriber, 5)
	for i := range subs {
		subs[i] = h.Subscribe()
	}

	rec := event.NewTaskCreated(event.TaskSnapshot{ID: 7, Title: "t"})
	delivered := h.Broadcast(rec)
	assert.Equal(t, 5, delivered)

	first := recv(t, subs[0])
	for _, sub := range subs[1:] {
		assert.Equal(t, first, recv(t, sub))
	}
}

func TestUnsubscribe_StopsFurtherPushes(t *testing.T) {
	t.Parallel()

	h := New(4)
	gone := h.Subscribe()
	stay := h.Subscribe()

	h.Unsubscribe(gone)

	rec := event.NewTaskDeleted(1, 1)
	delivered := h.Broadcast(rec)

	assert.Equal(t, 1, delivered)
	assert.NotEmpty(t, recv(t, stay))

	_, ok := <-gone.Events()
	assert.False(t, ok, "unsubscribed channel should be closed and drained")
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	t.Parallel()

	h := New(1)
	sub := h.Subscribe()

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	assert.Equal(t, 0, h.Len())
}

func TestBroadcast_DropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	h := New(1)
	slow := h.Subscribe()
	fast := h.Subscribe()

	// Fill the slow subscriber's buffer; it never reads.
	h.Broadcast(event.NewTaskDeleted(1, 1))
	recv(t, fast)

	// Second broadcast overflows the slow buffer and drops it.
	h.Broadcast(event.NewTaskDeleted(2, 1))
	recv(t, fast)

	assert.Equal(t, 1, h.Len())

	// The dropped subscriber still drains its buffered payload, then sees
	// the channel close.
	assert.NotEmpty(t, recv(t, slow))
	_, open := <-slow.Events()
	assert.False(t, open)

	// The survivor keeps receiving.
	h.Broadcast(event.NewTaskDeleted(3, 1))
	assert.NotEmpty(t, recv(t, fast))
}

func TestBroadcast_ConcurrentWithMembershipChanges(t *testing.T) {
	t.Parallel()

	h := New(64)
	rec := event.NewTaskUpdated(event.TaskSnapshot{ID: 1, Title: "t"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := h.Subscribe()
				h.Unsubscribe(sub)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Broadcast(rec)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.Len())
}

func TestSubscribe_AfterCloseReturnsClosedSubscriber(t *testing.T) {
	t.Parallel()

	h := New(1)
	h.Close()

	sub := h.Subscribe()
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}
