package weave

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	xterm "golang.org/x/term"
)

// ErrOutputWriteFailure is returned by Flush after exhausting retries.
var ErrOutputWriteFailure = errors.New("weave: output write failure")

// Size is a terminal size in character cells.
type Size struct {
	Columns, Rows int
}

// TerminalConfig configures retry/flush behavior, per SPEC_FULL.md §6.
type TerminalConfig struct {
	BufferSize      int
	AutoFlush       bool
	FlushInterval   time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
}

// DefaultTerminalConfig matches the spec's stated defaults.
func DefaultTerminalConfig() TerminalConfig {
	return TerminalConfig{
		BufferSize: 4096,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	}
}

// Terminal is a buffered writer with retry/backoff, raw-mode control, and
// size tracking with resize notifications.
//
// Grounded on kungfusheep-glyph/screen.go's EnterRawMode/ExitRawMode (direct
// unix ioctl manipulation) with golang.org/x/term as the portable fallback.
type Terminal struct {
	out io.Writer
	fd  int

	cfg TerminalConfig
	buf bytes.Buffer
	mu  sync.Mutex

	bytesWritten int64

	origTermios *unix.Termios
	inRawMode   bool
	altScreen   bool

	size       Size
	resizeCh   chan [2]Size
	sigCh      chan os.Signal
	stopSignal chan struct{}
}

// NewTerminal wraps w (typically os.Stdout) for raw-mode and sized output.
// If w is nil, os.Stdout is used.
func NewTerminal(w io.Writer, cfg TerminalConfig) *Terminal {
	if w == nil {
		w = os.Stdout
	}
	t := &Terminal{out: w, cfg: cfg, resizeCh: make(chan [2]Size, 4)}
	if f, ok := w.(*os.File); ok {
		t.fd = int(f.Fd())
	} else {
		t.fd = -1
	}
	t.size = t.querySize()
	return t
}

// Size returns the last known terminal size.
func (t *Terminal) Size() Size {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// ResizeChan delivers (new, previous) pairs whenever the size actually
// changes.
func (t *Terminal) ResizeChan() <-chan [2]Size { return t.resizeCh }

// querySize consults ioctl first, then x/term, then falls back to 80x24.
func (t *Terminal) querySize() Size {
	if t.fd >= 0 {
		if ws, err := unix.IoctlGetWinsize(t.fd, unix.TIOCGWINSZ); err == nil && ws.Col > 0 && ws.Row > 0 {
			return Size{Columns: int(ws.Col), Rows: int(ws.Row)}
		}
		if cols, rows, err := xterm.GetSize(t.fd); err == nil && cols > 0 && rows > 0 {
			return Size{Columns: cols, Rows: rows}
		}
	}
	return Size{Columns: 80, Rows: 24}
}

// refreshSize re-queries the terminal size and, if it changed, publishes a
// (new, previous) pair on ResizeChan.
func (t *Terminal) refreshSize() {
	next := t.querySize()
	t.mu.Lock()
	prev := t.size
	changed := next != prev
	if changed {
		t.size = next
	}
	t.mu.Unlock()
	if changed {
		select {
		case t.resizeCh <- [2]Size{next, prev}:
		default:
		}
	}
}

// EnterRawMode enables raw mode, the alternate screen, hides the cursor,
// and enables bracketed paste. Mirrors kungfusheep-glyph/screen.go exactly.
func (t *Terminal) EnterRawMode() error {
	if t.inRawMode {
		return nil
	}
	if t.fd >= 0 {
		termios, err := unix.IoctlGetTermios(t.fd, ioctlGetTermios)
		if err != nil {
			return err
		}
		orig := *termios
		t.origTermios = &orig

		raw := *termios
		raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
		raw.Oflag &^= unix.OPOST
		raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
		raw.Cflag &^= unix.CSIZE | unix.PARENB
		raw.Cflag |= unix.CS8
		raw.Cc[unix.VMIN] = 1
		raw.Cc[unix.VTIME] = 0

		if err := unix.IoctlSetTermios(t.fd, ioctlSetTermios, &raw); err != nil {
			return err
		}
	}
	t.inRawMode = true
	t.altScreen = true
	t.rawWrite([]byte("\x1b[?1049h\x1b[2J\x1b[H\x1b[?25l\x1b[?2004h"))
	return t.Flush()
}

// ExitRawMode reverses EnterRawMode.
func (t *Terminal) ExitRawMode() error {
	if !t.inRawMode {
		return nil
	}
	t.rawWrite([]byte("\x1b[?2004l\x1b[?25h\x1b[?1049l"))
	err := t.Flush()
	if t.fd >= 0 && t.origTermios != nil {
		_ = unix.IoctlSetTermios(t.fd, ioctlSetTermios, t.origTermios)
	}
	t.inRawMode = false
	t.altScreen = false
	return err
}

// EnterInlineMode enables raw mode without taking over the alternate
// screen, for progress-bar/prompt style rendering.
func (t *Terminal) EnterInlineMode() error {
	if t.inRawMode {
		return nil
	}
	if t.fd >= 0 {
		termios, err := unix.IoctlGetTermios(t.fd, ioctlGetTermios)
		if err != nil {
			return err
		}
		orig := *termios
		t.origTermios = &orig

		raw := *termios
		raw.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG
		raw.Cc[unix.VMIN] = 1
		raw.Cc[unix.VTIME] = 0
		if err := unix.IoctlSetTermios(t.fd, ioctlSetTermios, &raw); err != nil {
			return err
		}
	}
	t.inRawMode = true
	t.rawWrite([]byte("\x1b[?25l"))
	return t.Flush()
}

// ExitInlineMode reverses EnterInlineMode. If clear is true, the previously
// rendered lines (linesUsed of them) are wiped; otherwise the cursor is
// moved below them and they remain visible.
func (t *Terminal) ExitInlineMode(linesUsed int, clear bool) error {
	if !t.inRawMode {
		return nil
	}
	if clear && linesUsed > 0 {
		for i := 0; i < linesUsed; i++ {
			t.rawWrite([]byte("\x1b[2K"))
			if i < linesUsed-1 {
				t.rawWrite([]byte("\x1b[1A"))
			}
		}
		t.rawWrite([]byte("\r"))
	} else if linesUsed > 0 {
		t.rawWrite([]byte("\n"))
	}
	t.rawWrite([]byte("\x1b[?25h"))
	err := t.Flush()
	if t.fd >= 0 && t.origTermios != nil {
		_ = unix.IoctlSetTermios(t.fd, ioctlSetTermios, t.origTermios)
	}
	t.inRawMode = false
	return err
}

// Write appends bytes to the internal buffer, auto-flushing per config.
func (t *Terminal) Write(b []byte) (int, error) {
	t.mu.Lock()
	t.buf.Write(b)
	shouldFlush := t.cfg.AutoFlush && t.buf.Len() >= t.cfg.BufferSize
	t.mu.Unlock()
	if shouldFlush {
		return len(b), t.Flush()
	}
	return len(b), nil
}

// rawWrite bypasses the auto-flush threshold check; used for control
// sequences emitted outside the normal paint/flush cycle.
func (t *Terminal) rawWrite(b []byte) {
	t.mu.Lock()
	t.buf.Write(b)
	t.mu.Unlock()
}

// BytesWritten returns the cumulative count of bytes successfully flushed.
func (t *Terminal) BytesWritten() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytesWritten
}

// Flush writes the buffered bytes to the underlying writer, retrying with a
// small backoff on partial or failed writes.
func (t *Terminal) Flush() error {
	t.mu.Lock()
	data := t.buf.Bytes()
	t.mu.Unlock()
	if len(data) == 0 {
		return nil
	}

	retries := t.cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	delay := t.cfg.RetryDelay
	if delay <= 0 {
		delay = 10 * time.Millisecond
	}

	written := 0
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		n, err := t.out.Write(data[written:])
		written += n
		t.mu.Lock()
		t.bytesWritten += int64(n)
		t.mu.Unlock()
		if written >= len(data) {
			lastErr = nil
			break
		}
		lastErr = err
		if err == nil {
			// partial acceptance: wait briefly for the stream to drain.
			time.Sleep(delay)
			continue
		}
		time.Sleep(delay)
	}

	t.mu.Lock()
	t.buf.Reset()
	t.mu.Unlock()

	if written < len(data) {
		if lastErr != nil {
			return errors.Join(ErrOutputWriteFailure, lastErr)
		}
		return ErrOutputWriteFailure
	}
	return nil
}

// Clear resets the internal buffer without writing it out.
func (t *Terminal) Clear() {
	t.mu.Lock()
	t.buf.Reset()
	t.mu.Unlock()
}

// WatchResize installs SIGWINCH handling (POSIX) that re-queries size and
// publishes changes on ResizeChan. Call StopWatch to tear down.
func (t *Terminal) WatchResize() {
	if t.sigCh != nil {
		return
	}
	t.sigCh = make(chan os.Signal, 4)
	t.stopSignal = make(chan struct{})
	signal.Notify(t.sigCh, syscall.SIGWINCH)
	go func() {
		for {
			select {
			case <-t.sigCh:
				t.refreshSize()
			case <-t.stopSignal:
				return
			}
		}
	}()
}

// StopWatch tears down SIGWINCH handling.
func (t *Terminal) StopWatch() {
	if t.sigCh == nil {
		return
	}
	signal.Stop(t.sigCh)
	close(t.stopSignal)
	t.sigCh = nil
}
