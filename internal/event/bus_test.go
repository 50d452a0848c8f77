package event

import (
	"sync"
	"testing"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe("output.tool_use", func(e Event) {
		got = append(got, e)
	})

	bus.Publish(NewToolUseEvent("builder", "Edit", "● Edit(src/app.ts)"))
	bus.Publish(NewErrorLineEvent("builder", "Error: boom"))

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	tu, ok := got[0].(ToolUseEvent)
	if !ok {
		t.Fatalf("expected ToolUseEvent, got %T", got[0])
	}
	if tu.Tool != "Edit" {
		t.Errorf("Tool = %q, want %q", tu.Tool, "Edit")
	}
	if tu.EventType() != "output.tool_use" {
		t.Errorf("EventType() = %q, want %q", tu.EventType(), "output.tool_use")
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus()

	var count int
	bus.SubscribeAll(func(Event) { count++ })

	bus.Publish(NewCycleStartedEvent("builder", 1, 5))
	bus.Publish(NewCycleCompletedEvent("builder", 1, 85))
	bus.Publish(NewGateWaitingEvent("builder", "schema"))

	if count != 3 {
		t.Errorf("expected 3 events delivered, got %d", count)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	var count int
	sub := bus.Subscribe("output.error", func(Event) { count++ })

	bus.Publish(NewErrorLineEvent("builder", "Error: first"))
	bus.Unsubscribe(sub)
	bus.Publish(NewErrorLineEvent("builder", "Error: second"))

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}

	// Unsubscribing twice is a no-op.
	bus.Unsubscribe(sub)
}

func TestBusHandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()

	var delivered bool
	bus.Subscribe("output.error", func(Event) { panic("bad handler") })
	bus.Subscribe("output.error", func(Event) { delivered = true })

	bus.Publish(NewErrorLineEvent("builder", "Error: boom"))

	if !delivered {
		t.Error("second handler not called after first panicked")
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(NewFileModifiedEvent("builder", "src/app.ts"))
			}
		}()
	}
	wg.Wait()

	if count != 500 {
		t.Errorf("expected 500 deliveries, got %d", count)
	}
}
