package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
)

// Surface is a live document the DOM rasterizer mounts cards into.
// Implementations are not expected to be safe for concurrent use.
type Surface interface {
	// Mount appends an off-screen container with the given id holding markup.
	Mount(ctx context.Context, id, markup string) error
	// WaitImages blocks until every <img> inside the container fired load or error.
	WaitImages(ctx context.Context, id string) error
	// Sanitize rewrites computed colors the rasterizer cannot parse.
	Sanitize(ctx context.Context, id string) error
	// Snapshot rasterizes the container at the given device scale as PNG.
	Snapshot(ctx context.Context, id string, scale float64) ([]byte, error)
	// Unmount removes the container. Removing a missing container is not an error.
	Unmount(ctx context.Context, id string) error
	// Contains reports whether a node with the id is attached.
	Contains(ctx context.Context, id string) (bool, error)
}

const containerPrefix = "fortune-capture-"

// DOMRasterizer is the primary capture path.
type DOMRasterizer struct {
	surface Surface
	logoURL string
	log     *slog.Logger
	newID   func() string
}

func NewDOMRasterizer(surface Surface, logoURL string, log *slog.Logger) *DOMRasterizer {
	if log == nil {
		log = slog.Default()
	}
	return &DOMRasterizer{
		surface: surface,
		logoURL: logoURL,
		log:     log,
		newID:   func() string { return containerPrefix + uuid.NewString() },
	}
}

func (r *DOMRasterizer) Rasterize(ctx context.Context, c card.Card, opts Options) (img image.Image, err error) {
	opts = opts.WithDefaults()
	if c.LogoURL == "" {
		c.LogoURL = r.logoURL
	}
	if c.Theme == (card.Theme{}) {
		c.Theme = card.DefaultTheme()
	}
	c.Theme = c.Theme.Sanitized()

	markup, err := card.Render(c)
	if err != nil {
		return nil, err
	}

	id := r.newID()
	if err := r.surface.Mount(ctx, id, markup); err != nil {
		return nil, fmt.Errorf("dom: mount: %w", err)
	}
	defer func() {
		// The container goes away on every exit path, even if ctx is done.
		if uerr := r.surface.Unmount(context.WithoutCancel(ctx), id); uerr != nil {
			r.log.WarnContext(ctx, "capture container not removed", slog.String("id", id), slog.Any("error", uerr))
			if err == nil {
				img, err = nil, fmt.Errorf("dom: unmount: %w", uerr)
			}
		}
	}()

	if err := r.surface.WaitImages(ctx, id); err != nil {
		return nil, fmt.Errorf("dom: wait images: %w", err)
	}
	if err := sleep(ctx, opts.SettleDelay); err != nil {
		return nil, err
	}
	if err := r.surface.Sanitize(ctx, id); err != nil {
		return nil, fmt.Errorf("dom: sanitize: %w", err)
	}

	raw, err := r.surface.Snapshot(ctx, id, opts.Scale)
	if err != nil {
		return nil, fmt.Errorf("dom: snapshot: %w", err)
	}
	decoded, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("dom: decode snapshot: %w", err)
	}
	return decoded, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
