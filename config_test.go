package weave

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Renderer.TargetFPS != 60 || !cfg.Renderer.FrameRateLimiting || !cfg.Renderer.HideCursor {
		t.Fatalf("unexpected renderer defaults: %+v", cfg.Renderer)
	}
	if cfg.Renderer.MaxQueueSize != 10 || cfg.Renderer.Strategy != "smart" {
		t.Fatalf("unexpected renderer defaults: %+v", cfg.Renderer)
	}
	if cfg.Input.EscapeTimeoutMs != 50 || cfg.Input.MaxEscapeLength != 100 {
		t.Fatalf("unexpected input defaults: %+v", cfg.Input)
	}
	if cfg.KeyBindings.SequenceTimeoutMs != 1000 || cfg.KeyBindings.CaseSensitive {
		t.Fatalf("unexpected key binding defaults: %+v", cfg.KeyBindings)
	}
	if cfg.Queue.MaxSize != 0 || cfg.Queue.DropLowPriorityOnFull {
		t.Fatalf("unexpected queue defaults: %+v", cfg.Queue)
	}
	if cfg.Output.BufferSize != 4096 || cfg.Output.MaxRetries != 3 || cfg.Output.RetryDelayMs != 10 {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}
}

func TestLoadConfigWritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weave.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Renderer.TargetFPS != 60 {
		t.Fatalf("expected defaults back, got %+v", cfg.Renderer)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
}

func TestLoadConfigRoundTripsCustomValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weave.yaml")

	cfg := DefaultConfig()
	cfg.Renderer.TargetFPS = 30
	cfg.Renderer.Strategy = "full"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Renderer.TargetFPS != 30 || loaded.Renderer.Strategy != "full" {
		t.Fatalf("expected round-tripped values, got %+v", loaded.Renderer)
	}
}

func TestRendererSettingsToRendererConfigResolvesStrategy(t *testing.T) {
	s := RendererSettings{Strategy: "full"}
	if _, ok := s.ToRendererConfig().Strategy.(FullStrategy); !ok {
		t.Fatalf("expected FullStrategy")
	}
	s.Strategy = "differential"
	if _, ok := s.ToRendererConfig().Strategy.(DifferentialStrategy); !ok {
		t.Fatalf("expected DifferentialStrategy")
	}
	s.Strategy = "anything-else"
	if _, ok := s.ToRendererConfig().Strategy.(SmartStrategy); !ok {
		t.Fatalf("expected SmartStrategy fallback")
	}
}

func TestInputSettingsToDecoderConfigConvertsMilliseconds(t *testing.T) {
	s := InputSettings{EscapeTimeoutMs: 75, MaxEscapeLength: 64}
	dc := s.ToDecoderConfig()
	if dc.EscapeTimeout != 75*time.Millisecond {
		t.Fatalf("expected 75ms, got %v", dc.EscapeTimeout)
	}
	if dc.MaxEscapeLength != 64 {
		t.Fatalf("expected max escape length to carry over")
	}
}

func TestQueueSettingsToQueueConfigMapsOverflowPolicy(t *testing.T) {
	s := QueueSettings{DropLowPriorityOnFull: true}
	if s.ToQueueConfig().Overflow != OverflowDropOldest {
		t.Fatalf("expected drop-oldest overflow policy")
	}
	s.DropLowPriorityOnFull = false
	if s.ToQueueConfig().Overflow != OverflowReject {
		t.Fatalf("expected reject overflow policy")
	}
}

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weave.yaml")
	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded := make(chan *Config, 1)
	cw, err := WatchConfig(path, func(c *Config) { reloaded <- c })
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer cw.Stop()

	cfg.Renderer.TargetFPS = 144
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	select {
	case got := <-reloaded:
		if got.Renderer.TargetFPS != 144 {
			t.Fatalf("expected reloaded config with target_fps=144, got %+v", got.Renderer)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for config reload")
	}
}
