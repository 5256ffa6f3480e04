package weave

import "testing"

func TestEventQueueOrdering(t *testing.T) {
	q := NewEventQueue(QueueConfig{})
	q.Enqueue(Event{Type: EventKey, Priority: PriorityLow})
	q.Enqueue(Event{Type: EventKey, Priority: PriorityHigh})
	q.Enqueue(Event{Type: EventKey, Priority: PriorityNormal})

	var order []Priority
	for {
		ev, ok := q.Dequeue()
		if !ok {
			break
		}
		order = append(order, ev.Priority)
	}
	want := []Priority{PriorityHigh, PriorityNormal, PriorityLow}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestEventQueueFIFOWithinBand(t *testing.T) {
	q := NewEventQueue(QueueConfig{})
	q.Enqueue(Event{Type: EventKey, Priority: PriorityNormal, Key: KeyData{Key: "a"}})
	q.Enqueue(Event{Type: EventKey, Priority: PriorityNormal, Key: KeyData{Key: "b"}})
	first, _ := q.Dequeue()
	second, _ := q.Dequeue()
	if first.Key.Key != "a" || second.Key.Key != "b" {
		t.Fatalf("got %q then %q, want FIFO a then b", first.Key.Key, second.Key.Key)
	}
}

func TestEventQueueDropOldestOverflow(t *testing.T) {
	q := NewEventQueue(QueueConfig{MaxSize: 3, Overflow: OverflowDropOldest})
	for i := 0; i < 5; i++ {
		q.Enqueue(Event{Type: EventResize, Priority: PriorityNormal})
	}
	stats := q.Stats()
	if stats.Dropped != 2 {
		t.Fatalf("Dropped = %d, want 2", stats.Dropped)
	}
	if q.Size() != 3 {
		t.Fatalf("Size = %d, want 3", q.Size())
	}
}

func TestDispatcherPriorityOrder(t *testing.T) {
	d := NewDispatcher()
	var order []int
	d.On(EventKey, 1, false, false, func(ev *Event) bool { order = append(order, 1); return true })
	d.On(EventKey, 2, false, false, func(ev *Event) bool { order = append(order, 2); return true })
	d.On(EventKey, 0, false, false, func(ev *Event) bool { order = append(order, 0); return true })

	ev := NewKeyEvent(KeyData{Key: "a"})
	d.Dispatch(&ev)

	want := []int{2, 1, 0}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestDispatcherStopPropagation(t *testing.T) {
	d := NewDispatcher()
	var ran []int
	d.On(EventKey, 2, false, false, func(ev *Event) bool { ran = append(ran, 2); return false })
	d.On(EventKey, 1, false, false, func(ev *Event) bool { ran = append(ran, 1); return true })

	ev := NewKeyEvent(KeyData{Key: "a"})
	result := d.Dispatch(&ev)

	if len(ran) != 1 || ran[0] != 2 {
		t.Fatalf("expected only the priority-2 handler to run, got %v", ran)
	}
	if result {
		t.Fatalf("Dispatch should report false once propagation was stopped")
	}
	if !ev.PropagationStopped() {
		t.Fatalf("expected event to be marked as propagation-stopped")
	}
}

func TestDispatcherOnceRemovesHandlerAfterFiring(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	id := d.On(EventKey, 0, false, true, func(ev *Event) bool { calls++; return true })
	_ = id

	ev1 := NewKeyEvent(KeyData{Key: "a"})
	d.Dispatch(&ev1)
	ev2 := NewKeyEvent(KeyData{Key: "b"})
	d.Dispatch(&ev2)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (once handler should not fire twice)", calls)
	}
}

func TestDispatcherPanicIsolation(t *testing.T) {
	d := NewDispatcher()
	secondRan := false
	d.On(EventKey, 1, false, false, func(ev *Event) bool { panic("boom") })
	d.On(EventKey, 0, false, false, func(ev *Event) bool { secondRan = true; return true })

	ev := NewKeyEvent(KeyData{Key: "a"})
	d.Dispatch(&ev)

	if !secondRan {
		t.Fatalf("expected sibling handler to still run after a panic")
	}
}

func TestDispatcherCaptureBeforeBubble(t *testing.T) {
	d := NewDispatcher()
	var order []string
	d.On(EventKey, 0, false, false, func(ev *Event) bool { order = append(order, "bubble"); return true })
	d.On(EventKey, 0, true, false, func(ev *Event) bool { order = append(order, "capture"); return true })

	ev := NewKeyEvent(KeyData{Key: "a"})
	d.Dispatch(&ev)

	if len(order) != 2 || order[0] != "capture" || order[1] != "bubble" {
		t.Fatalf("got %v, want [capture bubble]", order)
	}
}
