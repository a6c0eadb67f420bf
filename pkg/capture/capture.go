// Package capture turns a fortune card into a raster image.
//
// A capture first tries the DOM path: the card markup is mounted into a
// headless browser document, sanitized and rasterized. When that path fails
// because the rasterizer does not understand a color function, the card is
// redrawn from primitives on a plain canvas instead. Any other failure is
// returned to the caller.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

// ErrUnsupportedColor is the error rasterizers return for color syntax they
// cannot parse. Errors whose message carries the same text are treated alike.
var ErrUnsupportedColor = errors.New("unsupported color function")

// ErrNoPrimary sends an invocation straight to the fallback rasterizer when
// no primary one is configured.
var ErrNoPrimary = errors.New("capture: primary rasterizer unavailable")

// IsUnsupportedColor reports whether err is the recoverable color failure.
func IsUnsupportedColor(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUnsupportedColor) || strings.Contains(err.Error(), ErrUnsupportedColor.Error())
}

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

func (f Format) Ext() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

const (
	DefaultScale       = 2.0
	DefaultQuality     = 0.95
	DefaultBackground  = "rgba(26, 16, 64, 1)"
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultLogoTimeout = time.Second

	// MaxScale bounds the pixel ratio; the fallback canvas grows with its square.
	MaxScale = 4.0
)

var ErrScaleOutOfRange = fmt.Errorf("capture: scale must be within (0, %v]", MaxScale)

type Options struct {
	Scale      float64 `json:"scale"`
	Quality    float64 `json:"quality"`
	Background string  `json:"backgroundColor"`
	Format     Format  `json:"format"`

	SettleDelay time.Duration `json:"-"`
	LogoTimeout time.Duration `json:"-"`

	// OnTransition, if set, observes every state change of the invocation.
	OnTransition func(from, to State) `json:"-"`
}

// Validate rejects options a caller supplied that cannot be honored. A zero
// scale is fine and means the default.
func (o Options) Validate() error {
	if o.Scale < 0 || o.Scale > MaxScale {
		return fmt.Errorf("%w, got %v", ErrScaleOutOfRange, o.Scale)
	}
	return nil
}

// WithDefaults fills zero values, clamps the scale and swaps a background
// the rasterizers cannot paint for the fallback. Negative delays mean "no
// wait".
func (o Options) WithDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Scale > MaxScale {
		o.Scale = MaxScale
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = DefaultQuality
	}
	if o.Background == "" {
		o.Background = DefaultBackground
	}
	o.Background = card.SanitizeColor(card.PropBackground, o.Background)
	if o.Format != FormatPNG {
		o.Format = FormatJPEG
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.LogoTimeout == 0 {
		o.LogoTimeout = DefaultLogoTimeout
	}
	return o
}

// Rasterizer paints a card onto an image.
type Rasterizer interface {
	Rasterize(ctx context.Context, c card.Card, opts Options) (image.Image, error)
}

// outcome is the result of one rasterization attempt.
type outcome interface{ isOutcome() }

type succeeded struct{ img image.Image }

type needsFallback struct{ reason error }

type failed struct{ err error }

func (succeeded) isOutcome()     {}
func (needsFallback) isOutcome() {}
func (failed) isOutcome()        {}

func classify(img image.Image, err error) outcome {
	switch {
	case err == nil && img != nil:
		return succeeded{img: img}
	case err == nil:
		return failed{err: errors.New("capture: rasterizer returned no image")}
	case IsUnsupportedColor(err) || errors.Is(err, ErrNoPrimary):
		return needsFallback{reason: err}
	default:
		return failed{err: err}
	}
}

type Pipeline struct {
	primary  Rasterizer
	fallback Rasterizer
	log      *slog.Logger
}

// NewPipeline wires the two paths. A nil primary sends every capture
// straight to the fallback.
func NewPipeline(primary, fallback Rasterizer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{primary: primary, fallback: fallback, log: log}
}

// Capture renders c and encodes it as a data URL and a blob.
func (p *Pipeline) Capture(ctx context.Context, c card.Card, opts Options) (*models.CapturedImage, error) {
	opts = opts.WithDefaults()
	inv := newInvocation(opts.OnTransition)

	if err := inv.to(StateCapturingPrimary); err != nil {
		return nil, err
	}
	out := p.runPrimary(ctx, c, opts)

	for {
		switch o := out.(type) {
		case succeeded:
			path := models.CapturePrimary
			if inv.State() == StateCapturingFallback {
				path = models.CaptureFallback
			}
			img, err := Encode(o.img, opts, path)
			if err != nil {
				out = failed{err: err}
				continue
			}
			if err := inv.to(StateSucceeded); err != nil {
				return nil, err
			}
			p.log.InfoContext(ctx, "fortune captured",
				slog.String("path", string(path)),
				slog.Int("width", img.Width),
				slog.Int("height", img.Height),
				slog.Int("bytes", len(img.Blob)))
			return img, nil

		case needsFallback:
			if inv.State() != StateCapturingPrimary {
				out = failed{err: fmt.Errorf("capture: fallback path failed: %w", o.reason)}
				continue
			}
			p.log.InfoContext(ctx, "primary capture failed, drawing fallback", slog.Any("reason", o.reason))
			if err := inv.to(StateFallingBack); err != nil {
				return nil, err
			}
			if err := inv.to(StateCapturingFallback); err != nil {
				return nil, err
			}
			if p.fallback == nil {
				out = failed{err: errors.New("capture: no fallback rasterizer configured")}
				continue
			}
			img, err := p.fallback.Rasterize(ctx, c, opts)
			if err != nil {
				out = failed{err: fmt.Errorf("capture: fallback: %w", err)}
				continue
			}
			out = classify(img, nil)

		case failed:
			if err := inv.to(StateFailed); err != nil {
				return nil, errors.Join(o.err, err)
			}
			p.log.ErrorContext(ctx, "fortune capture failed", slog.Any("error", o.err))
			return nil, o.err
		}
	}
}

func (p *Pipeline) runPrimary(ctx context.Context, c card.Card, opts Options) outcome {
	if p.primary == nil {
		return needsFallback{reason: ErrNoPrimary}
	}
	img, err := p.primary.Rasterize(ctx, c, opts)
	if err != nil && !IsUnsupportedColor(err) {
		err = fmt.Errorf("capture: primary: %w", err)
	}
	return classify(img, err)
}
