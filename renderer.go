package weave

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RenderMetrics is the cumulative counter set exposed by GetMetrics.
type RenderMetrics struct {
	Frames      int64
	Drops       int64
	LastFrameUs int64
	FPS         float64
}

// RendererConfig mirrors the configuration surface documented for C10.
type RendererConfig struct {
	TargetFPS         int
	FrameRateLimiting bool
	HideCursor        bool
	MaxQueueSize      int
	Strategy          RenderStrategy
}

// DefaultRendererConfig matches the spec's stated defaults.
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		TargetFPS:         60,
		FrameRateLimiting: true,
		HideCursor:        true,
		MaxQueueSize:      10,
		Strategy:          SmartStrategy{},
	}
}

// RenderFuture is resolved once its frame has been processed (or dropped for
// overflow, in which case it still resolves with a nil error).
type RenderFuture struct {
	done chan struct{}
	err  error
}

// Wait blocks until the frame this future represents has been processed.
func (f *RenderFuture) Wait() error {
	<-f.done
	return f.err
}

// Done reports whether the future has already resolved, without blocking.
func (f *RenderFuture) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

type renderRequest struct {
	src    *ScreenBuffer // nil: render whatever is already painted into Back()
	future *RenderFuture
}

// Renderer orchestrates the frame pipeline: copy into the back buffer, pace
// against target_fps, diff via the active strategy, write the patch to the
// terminal in bounded batches, swap, and update metrics.
//
// Grounded on kungfusheep-glyph/app.go's render()/RequestRender pipeline
// (coalesced render-pending channel, DebugTiming-shaped metrics) generalized
// into an explicit bounded queue with drop-oldest overflow and futures, per
// the spec's testable properties around frame pacing and queue overflow.
type Renderer struct {
	mu sync.Mutex

	term *Terminal
	enc  *Encoder

	buffers *DoubleBuffer
	cfg     RendererConfig

	queue []renderRequest
	wake  chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup

	lastFrame    time.Time
	cursorHidden bool
	cursor       Cursor
	metrics      RenderMetrics
	fpsWindow    []float64

	anim *AnimationTicker
}

// NewRenderer builds a Renderer over an already-constructed Terminal and
// Encoder, with a fresh DoubleBuffer of the given size.
func NewRenderer(term *Terminal, enc *Encoder, width, height int, cfg RendererConfig) *Renderer {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 10
	}
	if cfg.Strategy == nil {
		cfg.Strategy = SmartStrategy{}
	}
	r := &Renderer{
		term:    term,
		enc:     enc,
		buffers: NewDoubleBuffer(width, height),
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		anim:    NewAnimationTicker(cfg.TargetFPS),
		cursor:  DefaultCursor(),
	}
	return r
}

// SetCursorShape changes the terminal cursor's rendering shape for
// subsequent frames.
func (r *Renderer) SetCursorShape(shape CursorShape) error {
	r.mu.Lock()
	r.cursor.Shape = shape
	r.mu.Unlock()
	return r.term.SetCursorShape(shape)
}

// Cursor returns the Renderer's last-known cursor state.
func (r *Renderer) Cursor() Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Start launches the serial frame processor and the animation ticker.
func (r *Renderer) Start() {
	r.mu.Lock()
	if r.cfg.HideCursor && !r.cursorHidden {
		r.term.rawWrite([]byte("\x1b[?25l"))
		_ = r.term.Flush()
		r.cursorHidden = true
		r.cursor.Visible = false
	}
	r.mu.Unlock()
	r.wg.Add(1)
	go r.loop()
	r.anim.Start()
}

// Back returns the back buffer widgets should paint into ahead of Render.
func (r *Renderer) Back() *ScreenBuffer { return r.buffers.Back() }

// Animation returns the frame ticker for request/cancel of animation
// callbacks.
func (r *Renderer) Animation() *AnimationTicker { return r.anim }

// Render enqueues a frame. If src is non-nil it is copied into the back
// buffer before diffing; otherwise whatever was already painted via Back()
// is used. Returns a future resolved once the frame is processed, or
// immediately (with no error) if it was dropped due to queue overflow.
func (r *Renderer) Render(src *ScreenBuffer) *RenderFuture {
	fut := &RenderFuture{done: make(chan struct{})}
	r.mu.Lock()
	if len(r.queue) >= r.cfg.MaxQueueSize {
		dropped := r.queue[0]
		r.queue = r.queue[1:]
		r.metrics.Drops++
		close(dropped.future.done)
	}
	r.queue = append(r.queue, renderRequest{src: src, future: fut})
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return fut
}

func (r *Renderer) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case <-r.wake:
			for {
				r.mu.Lock()
				if len(r.queue) == 0 {
					r.mu.Unlock()
					break
				}
				req := r.queue[0]
				r.queue = r.queue[1:]
				r.mu.Unlock()
				r.processFrame(req)
			}
		}
	}
}

func (r *Renderer) processFrame(req renderRequest) {
	r.mu.Lock()
	if req.src != nil {
		_ = r.buffers.Back().CopyFrom(req.src)
	}
	r.mu.Unlock()

	r.pace()

	r.mu.Lock()
	start := time.Now()
	strategy := r.cfg.Strategy
	r.mu.Unlock()

	result := strategy.Compute(r.buffers.Front(), r.buffers.Back(), r.enc)
	r.writePatch(result.Patch)
	r.buffers.Swap()
	// Start the next back buffer from what is now on screen, so cells a
	// paint pass leaves untouched diff as unchanged.
	_ = r.buffers.Back().CopyFrom(r.buffers.Front())

	elapsed := time.Since(start)
	r.mu.Lock()
	r.lastFrame = time.Now()
	r.metrics.Frames++
	r.metrics.LastFrameUs = elapsed.Microseconds()
	r.recordFPSLocked(elapsed)
	r.mu.Unlock()

	if debugTiming {
		defaultLogger.Printf("weave: frame %d took %s, %d cells changed", r.metrics.Frames, elapsed, result.Stats.ChangedCells)
	}

	close(req.future.done)
}

// pace sleeps, if frame_rate_limiting is enabled, so that no more than
// target_fps frames start per second.
func (r *Renderer) pace() {
	r.mu.Lock()
	limiting := r.cfg.FrameRateLimiting
	fps := r.cfg.TargetFPS
	last := r.lastFrame
	r.mu.Unlock()
	if !limiting || fps <= 0 || last.IsZero() {
		return
	}
	interval := time.Second / time.Duration(fps)
	if since := time.Since(last); since < interval {
		time.Sleep(interval - since)
	}
}

const maxSequencesPerWrite = 100

// writePatch writes patch to the terminal in batches of at most
// maxSequencesPerWrite sequences, flushing after each batch.
func (r *Renderer) writePatch(patch [][]byte) {
	if len(patch) == 0 {
		return
	}
	for i := 0; i < len(patch); i += maxSequencesPerWrite {
		end := i + maxSequencesPerWrite
		if end > len(patch) {
			end = len(patch)
		}
		var batch []byte
		for _, seq := range patch[i:end] {
			batch = append(batch, seq...)
		}
		_, _ = r.term.Write(batch)
		_ = r.term.Flush()
	}
}

func (r *Renderer) recordFPSLocked(elapsed time.Duration) {
	inst := 0.0
	if elapsed > 0 {
		inst = float64(time.Second) / float64(elapsed)
	}
	r.fpsWindow = append(r.fpsWindow, inst)
	if len(r.fpsWindow) > 30 {
		r.fpsWindow = r.fpsWindow[len(r.fpsWindow)-30:]
	}
	sum := 0.0
	for _, v := range r.fpsWindow {
		sum += v
	}
	if len(r.fpsWindow) > 0 {
		r.metrics.FPS = sum / float64(len(r.fpsWindow))
	}
}

// Clear wipes both buffers back to empty cells without emitting anything.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers.Front().Clear(Region{})
	r.buffers.Back().Clear(Region{})
}

// Flush forces any buffered terminal output out immediately.
func (r *Renderer) Flush() error {
	return r.term.Flush()
}

// Resize grows or shrinks both buffers, preserving overlap.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers.Resize(width, height)
}

// GetDimensions returns the current buffer dimensions.
func (r *Renderer) GetDimensions() (width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers.Back().Width(), r.buffers.Back().Height()
}

// GetMetrics returns a snapshot of the cumulative render metrics.
func (r *Renderer) GetMetrics() RenderMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// SetStrategy swaps the active diff strategy.
func (r *Renderer) SetStrategy(s RenderStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Strategy = s
}

// SetTargetFPS updates the pacing target.
func (r *Renderer) SetTargetFPS(fps int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fps > 0 {
		r.cfg.TargetFPS = fps
	}
	r.anim.SetTargetFPS(fps)
}

// EnableRateLimiting toggles frame pacing.
func (r *Renderer) EnableRateLimiting(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.FrameRateLimiting = enabled
}

// Destroy drains the pending queue (resolving every future), stops the
// animation ticker, and restores the cursor if this Renderer hid it.
func (r *Renderer) Destroy() {
	close(r.stop)
	r.wg.Wait()
	r.anim.Stop()

	r.mu.Lock()
	pending := r.queue
	r.queue = nil
	hideCursor := r.cfg.HideCursor && r.cursorHidden
	r.cursorHidden = false
	r.cursor.Visible = true
	r.mu.Unlock()

	for _, req := range pending {
		close(req.future.done)
	}
	if hideCursor {
		r.term.rawWrite([]byte("\x1b[?25h"))
		_ = r.term.Flush()
	}
}

// AnimationCallback receives the elapsed time since the previous tick and
// the monotonic timestamp of the current tick. Returning false cancels the
// callback; it will not be invoked again.
type AnimationCallback func(dt time.Duration, timestamp time.Time) bool

type animationEntry struct {
	id string
	cb AnimationCallback
}

// AnimationTicker drives a separate frame ticker for UI animations,
// independent of the render queue, with pause/resume and rolling FPS/delta
// histories.
//
// Grounded on kungfusheep-glyph/app.go's render-loop ticking shape, split
// into its own ticker since the spec treats animation frames as distinct
// from paint frames.
type AnimationTicker struct {
	mu sync.Mutex

	targetFPS int
	paused    bool
	entries   map[string]animationEntry

	fpsHistory   []float64
	deltaHistory []time.Duration

	stop    chan struct{}
	started bool
}

// NewAnimationTicker builds a ticker targeting fps ticks per second.
func NewAnimationTicker(fps int) *AnimationTicker {
	if fps <= 0 {
		fps = 60
	}
	return &AnimationTicker{
		targetFPS: fps,
		entries:   make(map[string]animationEntry),
	}
}

// Request registers cb to run on every tick, returning a uuid usable with
// Cancel.
func (t *AnimationTicker) Request(cb AnimationCallback) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := uuid.NewString()
	t.entries[id] = animationEntry{id: id, cb: cb}
	return id
}

// Cancel removes a previously requested callback. Fine to call more than
// once or with an unknown id.
func (t *AnimationTicker) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Pause suspends ticking without cancelling registered callbacks.
func (t *AnimationTicker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
}

// Resume reverses Pause.
func (t *AnimationTicker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
}

// SetTargetFPS changes the ticker's target rate.
func (t *AnimationTicker) SetTargetFPS(fps int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fps > 0 {
		t.targetFPS = fps
	}
}

// Start launches the ticking goroutine.
func (t *AnimationTicker) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.stop = make(chan struct{})
	stop := t.stop
	t.mu.Unlock()
	go t.run(stop)
}

// Stop halts the ticking goroutine. Idempotent.
func (t *AnimationTicker) Stop() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.started = false
	stop := t.stop
	t.mu.Unlock()
	close(stop)
}

func (t *AnimationTicker) run(stop chan struct{}) {
	last := time.Now()
	for {
		t.mu.Lock()
		fps := t.targetFPS
		t.mu.Unlock()
		interval := time.Second / time.Duration(fps)

		select {
		case <-stop:
			return
		case <-time.After(interval):
		}

		t.mu.Lock()
		if t.paused {
			t.mu.Unlock()
			continue
		}
		now := time.Now()
		dt := now.Sub(last)
		last = now
		t.recordLocked(dt)
		active := make([]animationEntry, 0, len(t.entries))
		for _, e := range t.entries {
			active = append(active, e)
		}
		t.mu.Unlock()

		for _, e := range active {
			if !e.cb(dt, now) {
				t.Cancel(e.id)
			}
		}
	}
}

func (t *AnimationTicker) recordLocked(dt time.Duration) {
	inst := 0.0
	if dt > 0 {
		inst = float64(time.Second) / float64(dt)
	}
	t.fpsHistory = append(t.fpsHistory, inst)
	if len(t.fpsHistory) > 30 {
		t.fpsHistory = t.fpsHistory[len(t.fpsHistory)-30:]
	}
	t.deltaHistory = append(t.deltaHistory, dt)
	if len(t.deltaHistory) > 30 {
		t.deltaHistory = t.deltaHistory[len(t.deltaHistory)-30:]
	}
}

// RollingFPS returns the mean of the recent instantaneous FPS samples.
func (t *AnimationTicker) RollingFPS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.fpsHistory) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range t.fpsHistory {
		sum += v
	}
	return sum / float64(len(t.fpsHistory))
}

// RollingDeltas returns a copy of the recent per-tick delta history.
func (t *AnimationTicker) RollingDeltas() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Duration, len(t.deltaHistory))
	copy(out, t.deltaHistory)
	return out
}

// EaseLinear is the identity easing curve.
func EaseLinear(t float64) float64 { return t }

// EaseInQuad, EaseOutQuad, EaseInOutQuad are quadratic easing curves.
func EaseInQuad(t float64) float64  { return t * t }
func EaseOutQuad(t float64) float64 { return t * (2 - t) }
func EaseInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

// EaseInCubic, EaseOutCubic, EaseInOutCubic are cubic easing curves.
func EaseInCubic(t float64) float64  { return t * t * t }
func EaseOutCubic(t float64) float64 { d := t - 1; return d*d*d + 1 }
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	d := 2*t - 2
	return 0.5*d*d*d + 1
}

// EaseInElastic, EaseOutElastic, EaseInOutElastic are elastic easing curves.
func EaseInElastic(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	p := 0.3
	s := p / 4
	d := t - 1
	return -math.Pow(2, 10*d) * math.Sin((d-s)*(2*math.Pi)/p)
}

func EaseOutElastic(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	p := 0.3
	s := p / 4
	return math.Pow(2, -10*t)*math.Sin((t-s)*(2*math.Pi)/p) + 1
}

func EaseInOutElastic(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	p := 0.45
	s := p / 4
	t = t*2 - 1
	if t < 0 {
		return -0.5 * math.Pow(2, 10*t) * math.Sin((t-s)*(2*math.Pi)/p)
	}
	return math.Pow(2, -10*t)*math.Sin((t-s)*(2*math.Pi)/p)*0.5 + 1
}

// EaseInBounce, EaseOutBounce, EaseInOutBounce are bounce easing curves.
func EaseOutBounce(t float64) float64 {
	switch {
	case t < 1/2.75:
		return 7.5625 * t * t
	case t < 2/2.75:
		t -= 1.5 / 2.75
		return 7.5625*t*t + 0.75
	case t < 2.5/2.75:
		t -= 2.25 / 2.75
		return 7.5625*t*t + 0.9375
	default:
		t -= 2.625 / 2.75
		return 7.5625*t*t + 0.984375
	}
}

func EaseInBounce(t float64) float64 { return 1 - EaseOutBounce(1-t) }

func EaseInOutBounce(t float64) float64 {
	if t < 0.5 {
		return 0.5 * EaseInBounce(t*2)
	}
	return 0.5*EaseOutBounce(t*2-1) + 0.5
}
