package weave

import (
	"os"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
)

// ColorKind tags the variant of a Color. ColorDefault is distinct from any
// explicit color, even one whose RGB happens to match the terminal's
// default foreground or background.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorNamed
	ColorIndexed
	ColorRGB
)

// Named colors, the 16 standard ANSI slots (8 base + 8 bright).
type NamedColor uint8

const (
	Black NamedColor = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
	BrightBlack
	BrightRed
	BrightGreen
	BrightYellow
	BrightBlue
	BrightMagenta
	BrightCyan
	BrightWhite
)

// Color is a tagged variant over Default / Named / Indexed256 / RGB.
type Color struct {
	Kind    ColorKind
	Named   NamedColor
	Index   uint8
	R, G, B uint8
}

// RGB constructs a truecolor Color.
func RGB(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }

// Indexed constructs a 256-palette Color.
func Indexed(n uint8) Color { return Color{Kind: ColorIndexed, Index: n} }

// Named constructs a 16-color Color.
func Named(n NamedColor) Color { return Color{Kind: ColorNamed, Named: n} }

func (c Color) isDefault() bool { return c.Kind == ColorDefault }

// TerminalColorSupport caps encoding fidelity.
type TerminalColorSupport uint8

const (
	SupportNone TerminalColorSupport = iota
	SupportBasic16
	SupportExtended256
	SupportTrueColor
)

// DetectColorSupport reads COLORTERM then TERM per the spec's exact rules.
// If neither env var matches a known pattern, it falls back to termenv's
// own environment sniffing (termenv.EnvColorProfile), which recognizes a
// broader set of terminal multiplexer and CI quirks than the spec's
// literal substring rules cover.
func DetectColorSupport() TerminalColorSupport {
	colorterm := strings.ToLower(os.Getenv("COLORTERM"))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		return SupportTrueColor
	}
	term := strings.ToLower(os.Getenv("TERM"))
	if strings.Contains(term, "256color") {
		return SupportExtended256
	}
	for _, frag := range []string{"xterm", "screen", "vt", "ansi"} {
		if strings.Contains(term, frag) {
			return SupportBasic16
		}
	}
	return fromTermenvProfile(termenv.EnvColorProfile())
}

func fromTermenvProfile(p termenv.Profile) TerminalColorSupport {
	switch p {
	case termenv.TrueColor:
		return SupportTrueColor
	case termenv.ANSI256:
		return SupportExtended256
	case termenv.ANSI:
		return SupportBasic16
	default:
		return SupportNone
	}
}

// palette16 are the canonical 16 ANSI colors in RGB, used for downgrade
// nearest-neighbor search. Values follow the standard xterm defaults.
var palette16 = [16][3]uint8{
	{0, 0, 0}, {205, 0, 0}, {0, 205, 0}, {205, 205, 0},
	{0, 0, 238}, {205, 0, 205}, {0, 205, 205}, {229, 229, 229},
	{127, 127, 127}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
	{92, 92, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
}

// palette256 is the 16 base colors, the 6x6x6 RGB cube, and the 24-step
// grayscale ramp, in xterm's canonical index order.
var palette256 = buildPalette256()

func buildPalette256() [256][3]uint8 {
	var p [256][3]uint8
	for i := 0; i < 16; i++ {
		p[i] = palette16[i]
	}
	idx := 16
	levels := [6]uint8{0, 95, 135, 175, 215, 255}
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				p[idx] = [3]uint8{levels[r], levels[g], levels[b]}
				idx++
			}
		}
	}
	gray := uint8(8)
	for i := 0; i < 24; i++ {
		p[idx] = [3]uint8{gray, gray, gray}
		idx++
		gray += 10
	}
	return p
}

func colorDistance(r, g, b uint8, target [3]uint8) float64 {
	a := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	t := colorful.Color{R: float64(target[0]) / 255, G: float64(target[1]) / 255, B: float64(target[2]) / 255}
	return a.DistanceRgb(t)
}

// nearest16 searches only the 8 standard ANSI slots, not their bright
// counterparts: Basic16 terminals' SGR codes distinguish the two ranges
// (30-37 vs 90-97), but the spec's downgrade target for plain RGB input
// is the standard 8 (e.g. pure red -> Named(Red), code 1, not BrightRed).
func nearest16(r, g, b uint8) NamedColor {
	best, bestDist := 0, -1.0
	for i, p := range palette16[:8] {
		d := colorDistance(r, g, b, p)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return NamedColor(best)
}

func nearest256(r, g, b uint8) uint8 {
	best, bestDist := 0, -1.0
	for i, p := range palette256 {
		d := colorDistance(r, g, b, p)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint8(best)
}

// downgrade clamps c to the given support level, performing nearest-neighbor
// lookup when an RGB or 256-index color must drop to a coarser palette.
func downgrade(c Color, level TerminalColorSupport) Color {
	if c.isDefault() {
		return c
	}
	switch level {
	case SupportTrueColor:
		return c
	case SupportExtended256:
		switch c.Kind {
		case ColorRGB:
			return Indexed(nearest256(c.R, c.G, c.B))
		default:
			return c
		}
	case SupportBasic16:
		switch c.Kind {
		case ColorRGB:
			return Named(nearest16(c.R, c.G, c.B))
		case ColorIndexed:
			p := palette256[c.Index]
			return Named(nearest16(p[0], p[1], p[2]))
		default:
			return c
		}
	default: // SupportNone
		return Color{Kind: ColorDefault}
	}
}

// Encoder emits SGR escape sequences for colors, capped at a support level.
type Encoder struct {
	level   TerminalColorSupport
	forced  bool
	support TerminalColorSupport
}

// NewEncoder builds an Encoder that auto-detects support unless ForceLevel
// is called afterward.
func NewEncoder() *Encoder {
	lvl := DetectColorSupport()
	return &Encoder{level: lvl, support: lvl}
}

// ForceLevel overrides the detected support level. Pass nil-equivalent by
// calling ResetLevel to return to auto-detection.
func (e *Encoder) ForceLevel(level TerminalColorSupport) {
	e.forced = true
	e.level = level
}

// ResetLevel returns the encoder to its auto-detected support level.
func (e *Encoder) ResetLevel() {
	e.forced = false
	e.level = e.support
}

// SupportLevel returns the active (possibly forced) support level.
func (e *Encoder) SupportLevel() TerminalColorSupport { return e.level }

func appendInt(b []byte, n int) []byte {
	return strconv.AppendInt(b, int64(n), 10)
}

// FG appends the foreground escape bytes for c to b and returns the result.
func (e *Encoder) FG(b []byte, c Color) []byte {
	return e.encode(b, c, true)
}

// BG appends the background escape bytes for c to b and returns the result.
func (e *Encoder) BG(b []byte, c Color) []byte {
	return e.encode(b, c, false)
}

func (e *Encoder) encode(b []byte, c Color, fg bool) []byte {
	c = downgrade(c, e.level)
	switch c.Kind {
	case ColorDefault:
		if fg {
			return append(b, "\x1b[39m"...)
		}
		return append(b, "\x1b[49m"...)
	case ColorRGB:
		if fg {
			b = append(b, "\x1b[38;2;"...)
		} else {
			b = append(b, "\x1b[48;2;"...)
		}
		b = appendInt(b, int(c.R))
		b = append(b, ';')
		b = appendInt(b, int(c.G))
		b = append(b, ';')
		b = appendInt(b, int(c.B))
		return append(b, 'm')
	case ColorIndexed:
		if fg {
			b = append(b, "\x1b[38;5;"...)
		} else {
			b = append(b, "\x1b[48;5;"...)
		}
		b = appendInt(b, int(c.Index))
		return append(b, 'm')
	case ColorNamed:
		n := int(c.Named)
		var code int
		if n < 8 {
			if fg {
				code = 30 + n
			} else {
				code = 40 + n
			}
		} else {
			if fg {
				code = 90 + (n - 8)
			} else {
				code = 100 + (n - 8)
			}
		}
		b = append(b, "\x1b["...)
		b = appendInt(b, code)
		return append(b, 'm')
	}
	return b
}

// Reset appends the SGR reset sequence to b.
func (e *Encoder) Reset(b []byte) []byte {
	return append(b, "\x1b[0m"...)
}
