package weave

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the single YAML-tagged configuration surface for the core
// runtime, covering every option enumerated in SPEC_FULL.md §6.
//
// Grounded on regenrek-vibetunnel/linux/pkg/config/config.go's
// Config/Server/Security nesting pattern, generalized from that
// product's server settings to this runtime's component settings.
type Config struct {
	Renderer    RendererSettings    `yaml:"renderer"`
	Input       InputSettings       `yaml:"input"`
	KeyBindings KeyBindingsSettings `yaml:"key_bindings"`
	Queue       QueueSettings       `yaml:"queue"`
	Signals     SignalSettings      `yaml:"signals"`
	Output      OutputSettings      `yaml:"output"`
}

// RendererSettings mirrors RendererConfig's YAML surface.
type RendererSettings struct {
	TargetFPS         int    `yaml:"target_fps"`
	FrameRateLimiting bool   `yaml:"frame_rate_limiting"`
	HideCursor        bool   `yaml:"hide_cursor"`
	MaxQueueSize      int    `yaml:"max_queue_size"`
	Strategy          string `yaml:"strategy"` // "full" | "differential" | "smart"
}

// InputSettings mirrors the Decoder's YAML surface.
type InputSettings struct {
	EscapeTimeoutMs int  `yaml:"escape_timeout_ms"`
	MaxEscapeLength int  `yaml:"max_escape_length"`
	MouseSupport    bool `yaml:"mouse_support"`
	BracketedPaste  bool `yaml:"bracketed_paste"`
	FocusEvents     bool `yaml:"focus_events"`
}

// KeyBindingsSettings mirrors KeyBindingsConfig's YAML surface.
type KeyBindingsSettings struct {
	SequenceTimeoutMs int  `yaml:"sequence_timeout_ms"`
	CaseSensitive     bool `yaml:"case_sensitive"`
}

// QueueSettings mirrors QueueConfig's YAML surface.
type QueueSettings struct {
	MaxSize                int  `yaml:"max_size"` // 0 = unbounded
	DropLowPriorityOnFull  bool `yaml:"drop_low_priority_on_overflow"`
}

// SignalSettings lists which OS signals the SignalHandler installs for.
type SignalSettings struct {
	Int  bool `yaml:"int"`
	Term bool `yaml:"term"`
	Hup  bool `yaml:"hup"`
	Winch bool `yaml:"winch"`
	Quit bool `yaml:"quit"`
	Tstp bool `yaml:"tstp"`
	Cont bool `yaml:"cont"`
}

// OutputSettings covers the Terminal output stream's buffering/retry knobs.
type OutputSettings struct {
	BufferSize    int `yaml:"buffer_size"`
	AutoFlush     bool `yaml:"auto_flush"`
	FlushInterval int `yaml:"flush_interval"`
	MaxRetries    int `yaml:"max_retries"`
	RetryDelayMs  int `yaml:"retry_delay_ms"`
}

// DefaultConfig returns the option defaults enumerated in SPEC_FULL.md §6.
func DefaultConfig() *Config {
	return &Config{
		Renderer: RendererSettings{
			TargetFPS:         60,
			FrameRateLimiting: true,
			HideCursor:        true,
			MaxQueueSize:      10,
			Strategy:          "smart",
		},
		Input: InputSettings{
			EscapeTimeoutMs: 50,
			MaxEscapeLength: 100,
			MouseSupport:    true,
			BracketedPaste:  true,
			FocusEvents:     true,
		},
		KeyBindings: KeyBindingsSettings{
			SequenceTimeoutMs: 1000,
			CaseSensitive:     false,
		},
		Queue: QueueSettings{
			MaxSize:               0,
			DropLowPriorityOnFull: false,
		},
		Signals: SignalSettings{Int: true, Term: true, Hup: true, Winch: true, Quit: true, Tstp: true, Cont: true},
		Output: OutputSettings{
			BufferSize:    4096,
			AutoFlush:     false,
			FlushInterval: 0,
			MaxRetries:    3,
			RetryDelayMs:  10,
		},
	}
}

// LoadConfig loads configuration from filename, writing out the defaults
// if the file does not yet exist. An empty filename returns the defaults
// without touching the filesystem.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := cfg.Save(filename); werr != nil {
				return cfg, fmt.Errorf("%w: %v", ErrConfigLoad, werr)
			}
			return cfg, nil
		}
		return cfg, fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}
	return cfg, nil
}

// Save writes the configuration to filename as YAML.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// ToRendererConfig resolves the YAML strategy name into a RenderStrategy
// and returns a RendererConfig ready for NewRenderer.
func (s RendererSettings) ToRendererConfig() RendererConfig {
	var strategy RenderStrategy
	switch s.Strategy {
	case "full":
		strategy = FullStrategy{}
	case "differential":
		strategy = DifferentialStrategy{}
	default:
		strategy = SmartStrategy{}
	}
	return RendererConfig{
		TargetFPS:         s.TargetFPS,
		FrameRateLimiting: s.FrameRateLimiting,
		HideCursor:        s.HideCursor,
		MaxQueueSize:      s.MaxQueueSize,
		Strategy:          strategy,
	}
}

// ToDecoderConfig converts the millisecond-granularity YAML settings into
// a DecoderConfig ready for NewDecoder.
func (s InputSettings) ToDecoderConfig() DecoderConfig {
	return DecoderConfig{
		EscapeTimeout:   time.Duration(s.EscapeTimeoutMs) * time.Millisecond,
		MaxEscapeLength: s.MaxEscapeLength,
		MouseSupport:    s.MouseSupport,
		BracketedPaste:  s.BracketedPaste,
		FocusEvents:     s.FocusEvents,
	}
}

// ToKeyBindingsConfig converts the YAML settings into a KeyBindingsConfig
// ready for NewKeyBindings.
func (s KeyBindingsSettings) ToKeyBindingsConfig() KeyBindingsConfig {
	return KeyBindingsConfig{
		SequenceTimeout: time.Duration(s.SequenceTimeoutMs) * time.Millisecond,
		CaseSensitive:   s.CaseSensitive,
	}
}

// ToQueueConfig converts the YAML settings into a QueueConfig ready for
// NewEventQueue.
func (s QueueSettings) ToQueueConfig() QueueConfig {
	overflow := OverflowReject
	if s.DropLowPriorityOnFull {
		overflow = OverflowDropOldest
	}
	return QueueConfig{MaxSize: s.MaxSize, Overflow: overflow}
}

// ToSignalHandlerConfig converts the YAML settings into a
// SignalHandlerConfig ready for NewSignalHandler.
func (s SignalSettings) ToSignalHandlerConfig() SignalHandlerConfig {
	return SignalHandlerConfig{
		Int: s.Int, Term: s.Term, Hup: s.Hup, Winch: s.Winch,
		Quit: s.Quit, Tstp: s.Tstp, Cont: s.Cont,
	}
}

// ToTerminalConfig converts the YAML settings into a TerminalConfig ready
// for NewTerminal.
func (s OutputSettings) ToTerminalConfig() TerminalConfig {
	return TerminalConfig{
		BufferSize:    s.BufferSize,
		AutoFlush:     s.AutoFlush,
		FlushInterval: time.Duration(s.FlushInterval) * time.Millisecond,
		MaxRetries:    s.MaxRetries,
		RetryDelay:    time.Duration(s.RetryDelayMs) * time.Millisecond,
	}
}

// ConfigWatcher hot-reloads a Config file on write, handing each parsed
// Config to onReload. Parse failures are logged and the previous config
// is kept in effect.
//
// Grounded on regenrek-vibetunnel/linux/pkg/session/stdin_watcher.go's
// fsnotify watch loop shape (watcher.Events/watcher.Errors select with a
// stop channel), applied here to a config file instead of a stdin pipe.
type ConfigWatcher struct {
	filename string
	watcher  *fsnotify.Watcher
	onReload func(*Config)
	stop     chan struct{}
	stopped  chan struct{}
}

// WatchConfig starts watching filename for writes, invoking onReload with
// each successfully parsed Config. Call Stop to tear it down.
func WatchConfig(filename string, onReload func(*Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}
	if err := watcher.Add(filename); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}

	cw := &ConfigWatcher{
		filename: filename,
		watcher:  watcher,
		onReload: onReload,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *ConfigWatcher) run() {
	defer close(cw.stopped)
	for {
		select {
		case <-cw.stop:
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Write == fsnotify.Write {
				cfg, err := LoadConfig(cw.filename)
				if err != nil {
					defaultLogger.Printf("weave: config reload failed: %v", err)
					continue
				}
				cw.onReload(cfg)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			defaultLogger.Printf("weave: config watcher error: %v", err)
		}
	}
}

// Stop halts the watch loop and releases the underlying fsnotify watcher.
func (cw *ConfigWatcher) Stop() {
	close(cw.stop)
	<-cw.stopped
	cw.watcher.Close()
}
