package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceDaemon, 10)
	defer unsub()

	b.Publish(Event{Kind: KindStatusChanged, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindStatusChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindStatusChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceDispatch, 10)
	defer unsub()

	b.Publish(Event{Kind: KindMatchCompleted})
	b.Publish(Event{Kind: KindDispatchSpawned})

	select {
	case evt := <-ch:
		if evt.Kind != KindDispatchSpawned {
			t.Errorf("got kind %q, want %s", evt.Kind, KindDispatchSpawned)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the match event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestEmit(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceMatch, 1)
	defer unsub()

	before := time.Now()
	b.Emit(KindMatchPending, MatchPayload{Sequence: "ctrl+a"})

	evt := <-ch
	if evt.Kind != KindMatchPending {
		t.Errorf("got kind %q, want %s", evt.Kind, KindMatchPending)
	}
	if evt.Timestamp.Before(before) {
		t.Errorf("Timestamp %v before publish time %v", evt.Timestamp, before)
	}
	if p, ok := evt.Payload.(MatchPayload); !ok || p.Sequence != "ctrl+a" {
		t.Errorf("Payload = %#v", evt.Payload)
	}
}

func TestEmitNilBus(t *testing.T) {
	var b *Bus
	b.Emit(KindMatchPending, nil) // must not panic
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceDaemon, 10)
	unsub()
	unsub() // second call is a no-op

	b.Publish(Event{Kind: KindStatusChanged})

	select {
	case evt, ok := <-ch:
		if ok {
			t.Errorf("received event after unsubscribe: %v", evt)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("channel not closed by unsubscribe")
	}
}

func TestRangeEndsOnUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceMatch, 4)

	done := make(chan int)
	go func() {
		n := 0
		for range ch {
			n++
		}
		done <- n
	}()

	b.Emit(KindMatchPending, nil)
	b.Emit(KindMatchCompleted, nil)
	time.Sleep(20 * time.Millisecond)
	unsub()

	select {
	case n := <-done:
		if n != 2 {
			t.Errorf("received %d events, want 2", n)
		}
	case <-time.After(time.Second):
		t.Fatal("range did not end")
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceMatch, 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: KindMatchPending})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: KindMatchCompleted})

	evt := <-ch
	if evt.Kind != KindMatchPending {
		t.Errorf("got %q, want %s", evt.Kind, KindMatchPending)
	}
	if n := b.Dropped(); n != 1 {
		t.Errorf("Dropped() = %d, want 1", n)
	}
}
