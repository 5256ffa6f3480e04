package weave

import (
	"sync"

	"github.com/google/uuid"
)

// OverflowPolicy controls EventQueue behavior once MaxSize is reached.
type OverflowPolicy uint8

const (
	// OverflowReject refuses new events once the queue is full.
	OverflowReject OverflowPolicy = iota
	// OverflowDropOldest drops the oldest event from a priority band
	// strictly lower than the incoming event's band to make room.
	OverflowDropOldest
)

// QueueConfig configures an EventQueue, per SPEC_FULL.md §6.
type QueueConfig struct {
	MaxSize  int // 0 = unbounded
	Overflow OverflowPolicy
}

// QueueStats tracks lifetime queue activity.
type QueueStats struct {
	Enqueued int
	Dequeued int
	Dropped  int
}

// EventQueue is a three-band (High/Normal/Low) FIFO priority queue.
//
// Grounded on kungfusheep-glyph/app.go's render-request channel pattern,
// generalized into an explicit priority-banded structure per the spec's
// queue contract; the drop-oldest overflow policy follows the bounded
// render queue idiom in app.go's handleRenderRequests.
type EventQueue struct {
	mu    sync.Mutex
	bands [3][]Event // indexed by Priority
	cfg   QueueConfig
	stats QueueStats
}

// NewEventQueue creates an EventQueue with the given configuration.
func NewEventQueue(cfg QueueConfig) *EventQueue {
	return &EventQueue{cfg: cfg}
}

// Enqueue adds ev to its priority band, applying the overflow policy if
// the queue is at capacity. It reports whether the event was retained.
func (q *EventQueue) Enqueue(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(ev)
}

func (q *EventQueue) enqueueLocked(ev Event) bool {
	if q.cfg.MaxSize > 0 && q.totalLocked() >= q.cfg.MaxSize {
		if q.cfg.Overflow != OverflowDropOldest || !q.dropOldestBelowLocked(ev.Priority) {
			q.stats.Dropped++
			return false
		}
	}
	q.bands[ev.Priority] = append(q.bands[ev.Priority], ev)
	q.stats.Enqueued++
	return true
}

// dropOldestBelowLocked removes the oldest event from a band strictly
// lower priority than pri (Low < Normal < High numerically reversed: High=0
// is highest, so "lower priority" means a larger Priority value).
func (q *EventQueue) dropOldestBelowLocked(pri Priority) bool {
	for band := PriorityLow; band > pri; band-- {
		if len(q.bands[band]) > 0 {
			q.bands[band] = q.bands[band][1:]
			q.stats.Dropped++
			return true
		}
	}
	return false
}

func (q *EventQueue) totalLocked() int {
	return len(q.bands[PriorityHigh]) + len(q.bands[PriorityNormal]) + len(q.bands[PriorityLow])
}

// BatchEnqueue enqueues each event in order, returning how many were
// retained.
func (q *EventQueue) BatchEnqueue(events []Event) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, ev := range events {
		if q.enqueueLocked(ev) {
			n++
		}
	}
	return n
}

// Dequeue removes and returns the highest-priority, oldest event.
func (q *EventQueue) Dequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for band := PriorityHigh; band <= PriorityLow; band++ {
		if len(q.bands[band]) > 0 {
			ev := q.bands[band][0]
			q.bands[band] = q.bands[band][1:]
			q.stats.Dequeued++
			return ev, true
		}
	}
	return Event{}, false
}

// Peek returns the next event to be dequeued without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for band := PriorityHigh; band <= PriorityLow; band++ {
		if len(q.bands[band]) > 0 {
			return q.bands[band][0], true
		}
	}
	return Event{}, false
}

// RemoveWhere removes every queued event matching pred, returning the
// count removed.
func (q *EventQueue) RemoveWhere(pred func(Event) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for band := range q.bands {
		kept := q.bands[band][:0]
		for _, ev := range q.bands[band] {
			if pred(ev) {
				removed++
				continue
			}
			kept = append(kept, ev)
		}
		q.bands[band] = kept
	}
	return removed
}

// FindByType returns all currently-queued events of the given type,
// highest priority first.
func (q *EventQueue) FindByType(t EventType) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Event
	for band := range q.bands {
		for _, ev := range q.bands[band] {
			if ev.Type == t {
				out = append(out, ev)
			}
		}
	}
	return out
}

// Size reports the total number of queued events across all bands.
func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalLocked()
}

// Clear empties the queue without affecting lifetime stats.
func (q *EventQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bands = [3][]Event{}
}

// Stats returns a snapshot of lifetime queue counters.
func (q *EventQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// HandlerFunc handles an Event. Returning false is equivalent to calling
// ev.StopPropagation() before returning.
type HandlerFunc func(ev *Event) bool

type handlerEntry struct {
	id       string
	handler  HandlerFunc
	priority int
	capture  bool
	once     bool
	seq      uint64 // insertion order, for stable ties
}

// Dispatcher routes events of a given type to registered handlers in
// descending-priority, capture-then-bubble order.
//
// Grounded on kungfusheep-glyph/focusmanager.go's handler-registration
// shape (priority + id-based unregistration), reimplemented here without
// the unfetchable riffkey router dependency: chord/event matching is done
// natively rather than delegated.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[EventType][]*handlerEntry
	seq      uint64
	onPanic  func(eventType EventType, r any)
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventType][]*handlerEntry)}
}

// OnPanic installs a callback invoked whenever a handler panics, in place
// of the default behavior of swallowing the panic after logging it.
func (d *Dispatcher) OnPanic(fn func(eventType EventType, r any)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onPanic = fn
}

// On registers a handler for the given event type. Higher priority values
// run first; capture handlers run before bubble handlers.
func (d *Dispatcher) On(t EventType, priority int, capture bool, once bool, h HandlerFunc) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	entry := &handlerEntry{id: uuid.NewString(), handler: h, priority: priority, capture: capture, once: once, seq: d.seq}
	d.handlers[t] = insertSorted(d.handlers[t], entry)
	return entry.id
}

func insertSorted(list []*handlerEntry, entry *handlerEntry) []*handlerEntry {
	i := 0
	for ; i < len(list); i++ {
		if entry.priority > list[i].priority {
			break
		}
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = entry
	return list
}

// Off unregisters a handler by id.
func (d *Dispatcher) Off(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for t, list := range d.handlers {
		for i, e := range list {
			if e.id == id {
				d.handlers[t] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// Dispatch runs capture-phase then bubble-phase handlers registered for
// ev.Type, in descending priority with insertion-order ties. It returns
// true iff propagation was never stopped.
func (d *Dispatcher) Dispatch(ev *Event) bool {
	d.mu.Lock()
	list := append([]*handlerEntry(nil), d.handlers[ev.Type]...)
	onPanic := d.onPanic
	d.mu.Unlock()

	var onceIDs []string
	run := func(capture bool) bool {
		for _, e := range list {
			if e.capture != capture {
				continue
			}
			if e.once {
				onceIDs = append(onceIDs, e.id)
			}
			if d.invoke(e, ev, onPanic) {
				ev.StopPropagation()
			}
			if ev.PropagationStopped() {
				return false
			}
		}
		return true
	}

	ok := run(true)
	if ok {
		ok = run(false)
	}

	for _, id := range onceIDs {
		d.Off(id)
	}
	return !ev.PropagationStopped()
}

func (d *Dispatcher) invoke(e *handlerEntry, ev *Event, onPanic func(EventType, any)) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			if onPanic != nil {
				onPanic(ev.Type, r)
			} else {
				defaultLogger.Printf("weave: event handler panic: %v", r)
			}
		}
	}()
	return !e.handler(ev)
}
