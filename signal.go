package weave

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalHandlerConfig chooses which OS signals to translate into events.
type SignalHandlerConfig struct {
	Int   bool
	Term  bool
	Hup   bool
	Winch bool
	Quit  bool
	Tstp  bool
	Cont  bool
}

// DefaultSignalHandlerConfig enables the interactive-lifecycle set.
func DefaultSignalHandlerConfig() SignalHandlerConfig {
	return SignalHandlerConfig{Int: true, Term: true, Winch: true}
}

// SignalHandler installs process signal handlers and turns them into
// Signal/Resize events, with veto semantics on Int/Term.
//
// Grounded on kungfusheep-glyph/app.go's handleResize goroutine (SIGWINCH
// → resize channel) and Terminal.WatchResize in term.go; generalized here
// to cover the full signal set the spec requires.
type SignalHandler struct {
	mu       sync.Mutex
	cfg      SignalHandlerConfig
	term     *Terminal
	sigCh    chan os.Signal
	stopCh   chan struct{}
	running  bool
	onSignal func(Event)
	// intCallbacks/termCallbacks are consulted before the process would otherwise
	// exit; if any registered callback returns false, exit is suppressed.
	intCallbacks  []func() bool
	termCallbacks []func() bool
}

// NewSignalHandler creates a SignalHandler bound to a Terminal for resize
// size queries.
func NewSignalHandler(cfg SignalHandlerConfig, term *Terminal) *SignalHandler {
	return &SignalHandler{cfg: cfg, term: term}
}

// OnEvent installs the callback invoked for every Signal/Resize event
// produced. It should enqueue the event onto the application's EventQueue.
func (h *SignalHandler) OnEvent(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSignal = fn
}

// OnInt registers a veto callback for SIGINT; if any registered callback
// returns false, the default process exit is suppressed.
func (h *SignalHandler) OnInt(fn func() bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.intCallbacks = append(h.intCallbacks, fn)
}

// OnTerm registers a veto callback for SIGTERM.
func (h *SignalHandler) OnTerm(fn func() bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.termCallbacks = append(h.termCallbacks, fn)
}

// signalKindMap covers the signals SignalHandler registers directly with
// the OS. SIGWINCH is handled separately, through the Terminal's own
// resize watch, so it is intentionally absent here.
var signalKindMap = map[os.Signal]SignalKind{
	syscall.SIGINT:  SigInt,
	syscall.SIGTERM: SigTerm,
	syscall.SIGHUP:  SigHup,
	syscall.SIGQUIT: SigQuit,
	syscall.SIGTSTP: SigTstp,
	syscall.SIGCONT: SigCont,
}

func (h *SignalHandler) enabledSignals() []os.Signal {
	var sigs []os.Signal
	if h.cfg.Int {
		sigs = append(sigs, syscall.SIGINT)
	}
	if h.cfg.Term {
		sigs = append(sigs, syscall.SIGTERM)
	}
	if h.cfg.Hup {
		sigs = append(sigs, syscall.SIGHUP)
	}
	if h.cfg.Quit {
		sigs = append(sigs, syscall.SIGQUIT)
	}
	if h.cfg.Tstp {
		sigs = append(sigs, syscall.SIGTSTP)
	}
	if h.cfg.Cont {
		sigs = append(sigs, syscall.SIGCONT)
	}
	return sigs
}

// Start installs signal handlers and, if Winch is enabled and a Terminal
// was supplied, starts its resize watch. Idempotent: calling Start while
// already running is a no-op.
func (h *SignalHandler) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	sigs := h.enabledSignals()
	h.stopCh = make(chan struct{})
	h.running = true

	if len(sigs) > 0 {
		h.sigCh = make(chan os.Signal, 16)
		signal.Notify(h.sigCh, sigs...)
		go h.loop(h.sigCh, h.stopCh)
	}
	if h.cfg.Winch && h.term != nil {
		h.term.WatchResize()
		go h.watchResize(h.term.ResizeChan(), h.stopCh)
	}
}

// Stop removes signal handlers and restores the prior OS handlers.
// Idempotent: calling Stop while not running is a no-op.
func (h *SignalHandler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	if h.sigCh != nil {
		signal.Stop(h.sigCh)
	}
	if h.cfg.Winch && h.term != nil {
		h.term.StopWatch()
	}
	close(h.stopCh)
	h.running = false
}

func (h *SignalHandler) loop(sigCh chan os.Signal, stopCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			if kind, known := signalKindMap[sig]; known {
				h.emitSignal(kind)
			}
		}
	}
}

// watchResize coalesces a burst of resize notifications arriving within
// the same tick into a single Resize event carrying the final size,
// satisfying testable property 18.
func (h *SignalHandler) watchResize(resizeCh <-chan [2]Size, stopCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case pair, ok := <-resizeCh:
			if !ok {
				return
			}
			next, prev := pair[0], pair[1]
		drain:
			for {
				select {
				case later, ok := <-resizeCh:
					if !ok {
						break drain
					}
					next = later[0] // keep the original prev; collapse to the final size
				default:
					break drain
				}
			}
			h.emitResizeEvent(next, prev)
		}
	}
}

func (h *SignalHandler) emitSignal(kind SignalKind) {
	h.mu.Lock()
	cb := h.onSignal
	h.mu.Unlock()

	if kind == SigInt && !h.runVetoes(h.intCallbacks) {
		return
	}
	if kind == SigTerm && !h.runVetoes(h.termCallbacks) {
		return
	}
	if cb != nil {
		cb(Event{Type: EventSignal, Signal: SignalData{Kind: kind}, Priority: PriorityNormal})
	}
	if kind == SigInt || kind == SigTerm {
		os.Exit(0)
	}
}

func (h *SignalHandler) runVetoes(callbacks []func() bool) bool {
	h.mu.Lock()
	cbs := append([]func() bool(nil), callbacks...)
	h.mu.Unlock()
	for _, cb := range cbs {
		if !cb() {
			return false
		}
	}
	return true
}

// emitResizeEvent emits the Winch signal event followed by the coalesced
// Resize event carrying the final (cols, rows) of a notification burst.
func (h *SignalHandler) emitResizeEvent(next, prev Size) {
	h.mu.Lock()
	cb := h.onSignal
	h.mu.Unlock()
	if cb == nil {
		return
	}
	cb(Event{Type: EventSignal, Signal: SignalData{Kind: SigWinch}, Priority: PriorityHigh})
	cb(Event{
		Type: EventResize,
		Resize: ResizeData{
			Columns: next.Columns, Rows: next.Rows,
			PrevColumns: prev.Columns, PrevRows: prev.Rows,
		},
		Priority: PriorityHigh,
	})
}
