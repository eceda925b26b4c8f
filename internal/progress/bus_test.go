package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishAndSubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("run-1")
	defer unsubscribe()

	bus.Publish("run-1", Event{RunID: "run-1", State: "provisioning", Percent: 42})

	select {
	case ev := <-ch:
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, 42, ev.Percent)
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
}

func TestBus_PublishWithoutSubscribersDrops(t *testing.T) {
	bus := NewBus()

	// Must not block or panic.
	bus.Publish("run-1", Event{RunID: "run-1", Percent: 10})

	ch, unsubscribe := bus.Subscribe("run-1")
	defer unsubscribe()

	// The dropped event is not replayed.
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	a, unsubA := bus.Subscribe("run-1")
	defer unsubA()
	b, unsubB := bus.Subscribe("run-1")
	defer unsubB()

	bus.Publish("run-1", Event{RunID: "run-1", Percent: 50})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, 50, ev.Percent)
		case <-time.After(time.Second):
			t.Fatal("expected event on both subscribers")
		}
	}
}

func TestBus_RunsAreIsolated(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe("run-1")
	defer unsubscribe()

	bus.Publish("run-2", Event{RunID: "run-2", Percent: 99})

	select {
	case ev := <-ch:
		t.Fatalf("event from another run leaked: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe("run-1")

	bus.Close("run-1")

	_, open := <-ch
	assert.False(t, open, "subscriber channel must be closed")

	// Publish after close is a no-op.
	bus.Publish("run-1", Event{RunID: "run-1"})

	// Subscribe after close yields a closed channel.
	late, _ := bus.Subscribe("run-1")
	_, open = <-late
	assert.False(t, open)
}

func TestBus_ClosedRunsAreForgottenAfterRetention(t *testing.T) {
	bus := NewBus()
	bus.retention = 10 * time.Millisecond

	_, unsubscribe := bus.Subscribe("run-1")
	unsubscribe()
	bus.Close("run-1")

	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		_, ok := bus.runs["run-1"]
		return !ok
	}, time.Second, 5*time.Millisecond, "closed run must be dropped from the map")

	// A subscriber arriving after the tombstone is gone just never
	// receives events.
	ch, unsub := bus.Subscribe("run-1")
	defer unsub()
	bus.Close("run-1")
	_, open := <-ch
	assert.False(t, open)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe("run-1")

	unsubscribe()
	unsubscribe()
	bus.Close("run-1")
}

func TestBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe("run-1")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			bus.Publish("run-1", Event{RunID: "run-1", Percent: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}

func TestBus_ConcurrentPublishSubscribe(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, unsubscribe := bus.Subscribe("run-1")
			defer unsubscribe()
			select {
			case <-ch:
			case <-time.After(100 * time.Millisecond):
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bus.Publish("run-1", Event{RunID: "run-1", Percent: n})
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "goroutines did not finish")
	}
}
