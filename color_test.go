package weave

import (
	"bytes"
	"testing"
)

func TestDetectColorSupportReadsColortermTruecolor(t *testing.T) {
	t.Setenv("COLORTERM", "truecolor")
	t.Setenv("TERM", "xterm")
	if got := DetectColorSupport(); got != SupportTrueColor {
		t.Fatalf("got %v, want SupportTrueColor", got)
	}
}

func TestDetectColorSupportReadsTerm256(t *testing.T) {
	t.Setenv("COLORTERM", "")
	t.Setenv("TERM", "xterm-256color")
	if got := DetectColorSupport(); got != SupportExtended256 {
		t.Fatalf("got %v, want SupportExtended256", got)
	}
}

func TestDetectColorSupportFallsBackToTermenv(t *testing.T) {
	t.Setenv("COLORTERM", "")
	t.Setenv("TERM", "")
	t.Setenv("NO_COLOR", "1")
	if got := DetectColorSupport(); got != SupportNone {
		t.Fatalf("got %v, want SupportNone via termenv fallback", got)
	}
}

func TestColorDowngradeBasic16Red(t *testing.T) {
	e := NewEncoder()
	e.ForceLevel(SupportBasic16)
	got := e.FG(nil, RGB(255, 0, 0))
	want := []byte("\x1b[31m") // ANSI red fg
	if !bytes.Equal(got, want) {
		t.Fatalf("downgraded red fg = %q, want %q", got, want)
	}
}

func TestColorDowngradeExtended256NearestCube(t *testing.T) {
	e := NewEncoder()
	e.ForceLevel(SupportExtended256)
	got := e.FG(nil, RGB(215, 0, 0))
	// nearest 6x6x6 cube entry for (215,0,0) is index 16 + 4*36 + 0*6 + 0 = 160
	want := []byte("\x1b[38;5;160m")
	if !bytes.Equal(got, want) {
		t.Fatalf("downgraded fg = %q, want %q", got, want)
	}
}

func TestColorTrueColorPassthrough(t *testing.T) {
	e := NewEncoder()
	e.ForceLevel(SupportTrueColor)
	got := e.FG(nil, RGB(10, 20, 30))
	want := []byte("\x1b[38;2;10;20;30m")
	if !bytes.Equal(got, want) {
		t.Fatalf("truecolor fg = %q, want %q", got, want)
	}
}

func TestColorDefaultDistinctFromExplicit(t *testing.T) {
	d := Color{Kind: ColorDefault}
	explicit := RGB(0, 0, 0) // happens to equal "black" but is not Default
	if d == explicit {
		t.Fatalf("ColorDefault must not equal an explicit color with the same visual result")
	}
}

func TestColorNoneLevelForcesDefault(t *testing.T) {
	e := NewEncoder()
	e.ForceLevel(SupportNone)
	got := e.FG(nil, RGB(255, 0, 0))
	want := []byte("\x1b[39m")
	if !bytes.Equal(got, want) {
		t.Fatalf("SupportNone fg = %q, want default reset %q", got, want)
	}
}
