package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishDispatchesToAllHandlers(t *testing.T) {
	b := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	var mu sync.Mutex
	var got []string

	b.Subscribe(HandlerFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
	}))

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v, want [a b]", got)
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New(1, nil)
	b.Close()
	b.Close() // idempotent

	// Should not panic or block.
	b.Publish(Event{Type: "ignored"})
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	b := New(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	var mu sync.Mutex
	secondCalled := false

	b.Subscribe(HandlerFunc(func(Event) {
		panic("boom")
	}))
	b.Subscribe(HandlerFunc(func(Event) {
		mu.Lock()
		secondCalled = true
		mu.Unlock()
	}))

	b.Publish(Event{Type: "x"})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		done := secondCalled
		mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if !secondCalled {
		t.Fatal("second handler should still run after first panics")
	}
}
