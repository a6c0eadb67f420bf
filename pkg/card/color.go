package card

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"
)

// Property is the CSS color property a value is used for.
type Property string

const (
	PropBackground Property = "background-color"
	PropText       Property = "color"
	PropBorder     Property = "border-color"
)

// Colors substituted for values the rasterizer cannot parse.
const (
	FallbackBackground = "#1a1040"
	FallbackText       = "#ffffff"
	FallbackBorder     = "rgba(255, 255, 255, 0.1)"
)

// UnsupportedColorFuncs lists color syntaxes the rasterizers do not understand.
var UnsupportedColorFuncs = []string{"oklch(", "oklab(", "lab(", "lch(", "color(", "color-mix("}

var safeColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|rgba?\(\s*[0-9.%]+\s*,\s*[0-9.%]+\s*,\s*[0-9.%]+\s*(,\s*[0-9.%]+\s*)?\)|[a-zA-Z]+)$`)

// UsesUnsupportedColor reports whether v is expressed in a color function the
// rasterizer cannot parse.
func UsesUnsupportedColor(v string) bool {
	v = strings.ToLower(v)
	for _, fn := range UnsupportedColorFuncs {
		if strings.Contains(v, fn) {
			return true
		}
	}
	return false
}

func fallbackFor(p Property) string {
	switch p {
	case PropBackground:
		return FallbackBackground
	case PropBorder:
		return FallbackBorder
	default:
		return FallbackText
	}
}

// SanitizeColor returns v when it is a plain hex, rgb(a) or named color and
// the fallback for p otherwise.
func SanitizeColor(p Property, v string) string {
	v = strings.TrimSpace(v)
	if v == "" || UsesUnsupportedColor(v) || !safeColor.MatchString(v) {
		return fallbackFor(p)
	}
	return v
}

var named = map[string]color.NRGBA{
	"transparent": {},
	"black":       {A: 255},
	"white":       {R: 255, G: 255, B: 255, A: 255},
	"silver":      {R: 192, G: 192, B: 192, A: 255},
	"gray":        {R: 128, G: 128, B: 128, A: 255},
	"grey":        {R: 128, G: 128, B: 128, A: 255},
	"maroon":      {R: 128, A: 255},
	"red":         {R: 255, A: 255},
	"purple":      {R: 128, B: 128, A: 255},
	"fuchsia":     {R: 255, B: 255, A: 255},
	"magenta":     {R: 255, B: 255, A: 255},
	"green":       {G: 128, A: 255},
	"lime":        {G: 255, A: 255},
	"olive":       {R: 128, G: 128, A: 255},
	"yellow":      {R: 255, G: 255, A: 255},
	"navy":        {B: 128, A: 255},
	"blue":        {B: 255, A: 255},
	"teal":        {G: 128, B: 128, A: 255},
	"aqua":        {G: 255, B: 255, A: 255},
	"cyan":        {G: 255, B: 255, A: 255},
	"orange":      {R: 255, G: 165, A: 255},
	"pink":        {R: 255, G: 192, B: 203, A: 255},
	"gold":        {R: 255, G: 215, A: 255},
	"indigo":      {R: 75, B: 130, A: 255},
	"violet":      {R: 238, G: 130, B: 238, A: 255},
	"brown":       {R: 165, G: 42, B: 42, A: 255},
}

// ParseColor understands #rgb, #rrggbb, #rrggbbaa, rgb() and rgba() with
// integer or percentage channels, and the common CSS color names.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := named[s]; ok {
		return c, nil
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	var args string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		args = s[5 : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		args = s[4 : len(s)-1]
	default:
		return color.NRGBA{}, fmt.Errorf("card: unsupported color %q", s)
	}

	parts := strings.Split(args, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("card: malformed color %q", s)
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, ok := channel(parts[i], 255)
		if !ok {
			return color.NRGBA{}, fmt.Errorf("card: malformed color %q", s)
		}
		ch[i] = n
	}
	alpha := uint8(255)
	if len(parts) == 4 {
		a, ok := channel(parts[3], 1)
		if !ok {
			return color.NRGBA{}, fmt.Errorf("card: malformed alpha in %q", s)
		}
		alpha = a
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil
}

// channel parses one rgb() argument, either a number in [0,max] or a
// percentage, scaled to a byte.
func channel(v string, limit float64) (uint8, bool) {
	v = strings.TrimSpace(v)
	scale := 255 / limit
	if strings.HasSuffix(v, "%") {
		v = strings.TrimSuffix(v, "%")
		scale = 2.55
		limit = 100
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > limit {
		return 0, false
	}
	return uint8(f*scale + 0.5), true
}

func parseHex(h string) (color.NRGBA, error) {
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("card: malformed hex color #%s", h)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("card: malformed hex color #%s", h)
	}
	if len(h) == 6 {
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
