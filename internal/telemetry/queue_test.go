package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records batches and can be told to fail or block.
type fakeSender struct {
	mu      sync.Mutex
	batches [][]Event
	fail    bool
	block   chan struct{} // when set, Send waits on it
}

func (f *fakeSender) Send(ctx context.Context, batch []Event) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("boundary unreachable")
	}
	copied := make([]Event, len(batch))
	copy(copied, batch)
	f.batches = append(f.batches, copied)
	return nil
}

func (f *fakeSender) sent() [][]Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func (f *fakeSender) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func event(session, kind string) Event {
	return Event{SessionID: session, EventType: kind}
}

func TestEnqueueStampsTimestamp(t *testing.T) {
	sender := &fakeSender{}
	q := NewQueue(sender, time.Hour, 10, nil)

	before := time.Now()
	q.Enqueue(context.Background(), event("s1", "play"))
	q.Flush(context.Background())

	batches := sender.sent()
	require.Len(t, batches, 1)
	ts := batches[0][0].Timestamp
	assert.False(t, ts.Before(before))
	assert.False(t, ts.After(time.Now()))
}

func TestEnqueueDropsUnattributedEvents(t *testing.T) {
	sender := &fakeSender{}
	q := NewQueue(sender, time.Hour, 10, nil)

	q.Enqueue(context.Background(), event("", "play"))
	assert.Zero(t, q.Len())
}

func TestSizeThresholdTriggersFlush(t *testing.T) {
	sender := &fakeSender{}
	q := NewQueue(sender, time.Hour, 3, nil)
	ctx := context.Background()

	q.Enqueue(ctx, event("s1", "play"))
	q.Enqueue(ctx, event("s1", "pause"))
	assert.Empty(t, sender.sent())

	q.Enqueue(ctx, event("s1", "play"))

	batches := sender.sent()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Zero(t, q.Len())
}

func TestFailedFlushRequeuesBatchInOrder(t *testing.T) {
	sender := &fakeSender{fail: true}
	q := NewQueue(sender, time.Hour, 50, nil)
	ctx := context.Background()

	q.Enqueue(ctx, event("s1", "play"))
	q.Enqueue(ctx, event("s1", "pause"))
	q.Flush(ctx)

	// nothing delivered, nothing dropped
	assert.Empty(t, sender.sent())
	assert.Equal(t, 2, q.Len())

	// an event recorded after the failure queues behind the failed batch
	q.Enqueue(ctx, event("s1", "switch"))

	sender.setFail(false)
	q.Flush(ctx)

	batches := sender.sent()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	assert.Equal(t, "play", batches[0][0].EventType)
	assert.Equal(t, "pause", batches[0][1].EventType)
	assert.Equal(t, "switch", batches[0][2].EventType)
	assert.Zero(t, q.Len())
}

func TestAtMostOneInFlightFlush(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	q := NewQueue(sender, time.Hour, 50, nil)
	ctx := context.Background()

	q.Enqueue(ctx, event("s1", "play"))

	done := make(chan struct{})
	go func() {
		q.Flush(ctx)
		close(done)
	}()

	// wait until the first flush detached the batch and is in Send
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)

	// a second flush while one is in flight must return without sending
	q.Enqueue(ctx, event("s1", "pause"))
	q.Flush(ctx)
	assert.Equal(t, 1, q.Len(), "overlapping flush must leave new events queued")

	close(sender.block)
	<-done

	require.Len(t, sender.sent(), 1)
	assert.Equal(t, "play", sender.sent()[0][0].EventType)

	// the event recorded during the in-flight flush goes out next cycle
	sender.block = nil
	q.Flush(ctx)
	require.Len(t, sender.sent(), 2)
	assert.Equal(t, "pause", sender.sent()[1][0].EventType)
}

func TestShutdownFlushesPending(t *testing.T) {
	sender := &fakeSender{}
	q := NewQueue(sender, time.Hour, 50, nil)

	q.Enqueue(context.Background(), event("s1", "complete"))
	q.Shutdown()

	require.Len(t, sender.sent(), 1)
	assert.Zero(t, q.Len())
}

func TestRunFlushesOnInterval(t *testing.T) {
	sender := &fakeSender{}
	q := NewQueue(sender, 10*time.Millisecond, 50, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.Run(ctx)
	q.Enqueue(ctx, event("s1", "play"))

	require.Eventually(t, func() bool { return len(sender.sent()) == 1 }, time.Second, 5*time.Millisecond)
}
