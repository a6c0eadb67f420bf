package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
)

// Fallback card geometry, in CSS pixels before scaling.
const (
	canvasWidth   = 500
	canvasHeight  = 400
	logoSize      = 80
	logoTop       = 20
	dividerY      = 140
	dividerInset  = 50
	textTop       = 180
	textInset     = 60
	lineHeight    = 24
	fontSize      = 16
	bottomPadding = 40
)

var dividerColor = color.NRGBA{R: 255, G: 255, B: 255, A: 26}

var (
	fontOnce sync.Once
	fontErr  error
	regular  *opentype.Font
)

func loadFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		regular, fontErr = opentype.Parse(goregular.TTF)
	})
	return regular, fontErr
}

// CanvasRasterizer draws an approximation of the card from primitives. It
// never goes through a browser or a style engine.
type CanvasRasterizer struct {
	Logo LogoSource
	Log  *slog.Logger
}

func NewCanvasRasterizer(logo LogoSource, log *slog.Logger) *CanvasRasterizer {
	if log == nil {
		log = slog.Default()
	}
	return &CanvasRasterizer{Logo: logo, Log: log}
}

func (r *CanvasRasterizer) Rasterize(ctx context.Context, c card.Card, opts Options) (image.Image, error) {
	opts = opts.WithDefaults()
	s := opts.Scale
	px := func(v float64) int { return int(math.Round(v * s)) }

	f, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("canvas: font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize * s,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("canvas: face: %w", err)
	}
	defer face.Close()

	width := px(canvasWidth)
	lines := wrapText(face, string(c.Fortune), px(canvasWidth-textInset))
	height := px(canvasHeight)
	if need := px(textTop+bottomPadding) + (len(lines)-1)*px(lineHeight); need > height {
		height = need
	}

	canvas := imaging.New(width, height, solid(opts.Background))

	if logo := r.loadLogo(ctx, opts); logo != nil {
		size := px(logoSize)
		logo = imaging.Resize(logo, size, size, imaging.Lanczos)
		canvas = imaging.Overlay(canvas, logo, image.Pt(width/2-size/2, px(logoTop)), 1.0)
	}

	thickness := max(1, px(1))
	y := px(dividerY)
	divider := image.Rect(px(dividerInset), y, width-px(dividerInset), y+thickness)
	draw.Draw(canvas, divider, image.NewUniform(dividerColor), image.Point{}, draw.Over)

	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(color.White), Face: face}
	baseline := px(textTop)
	for _, line := range lines {
		w := d.MeasureString(line).Round()
		d.Dot = fixed.P(width/2-w/2, baseline)
		d.DrawString(line)
		baseline += px(lineHeight)
	}
	return canvas, nil
}

// loadLogo waits at most opts.LogoTimeout for the logo. A slow or broken
// logo is skipped.
func (r *CanvasRasterizer) loadLogo(ctx context.Context, opts Options) image.Image {
	if r.Logo == nil || opts.LogoTimeout < 0 {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, opts.LogoTimeout)
	defer cancel()

	ch := make(chan image.Image, 1)
	go func() {
		img, err := r.Logo.Logo(lctx)
		if err != nil {
			r.Log.DebugContext(ctx, "fallback logo unavailable", slog.Any("error", err))
			img = nil
		}
		ch <- img
	}()

	select {
	case img := <-ch:
		return img
	case <-lctx.Done():
		r.Log.DebugContext(ctx, "fallback logo timed out", slog.Duration("timeout", opts.LogoTimeout))
		return nil
	}
}

// wrapText breaks text greedily on spaces so that no line is wider than
// maxWidth, except a single word that does not fit on its own.
func wrapText(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if font.MeasureString(face, candidate).Ceil() > maxWidth {
			lines = append(lines, line)
			line = w
			continue
		}
		line = candidate
	}
	return append(lines, line)
}
