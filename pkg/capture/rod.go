package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
)

const blankDocument = `<!DOCTYPE html><html><head><meta charset="utf-8"></head><body style="margin:0;background:transparent;"></body></html>`

const (
	viewportWidth  = 1280
	viewportHeight = 1024
)

const mountJS = `(id, markup) => {
	const node = document.createElement('div');
	node.id = id;
	node.setAttribute('style', 'position:absolute;left:-9999px;top:-9999px;width:440px;height:auto;');
	node.innerHTML = markup;
	document.body.appendChild(node);
}`

const waitImagesJS = `(id) => {
	const root = document.getElementById(id);
	if (!root) return Promise.resolve(0);
	const pending = Array.from(root.querySelectorAll('img'))
		.filter(img => !img.complete)
		.map(img => new Promise(resolve => {
			img.addEventListener('load', resolve, { once: true });
			img.addEventListener('error', resolve, { once: true });
		}));
	return Promise.all(pending).then(() => pending.length);
}`

// sanitizeJS inlines every computed color and swaps the ones written in an
// unsupported color function for the fixed fallbacks.
const sanitizeJS = `(id, funcs, bg, fg, border) => {
	const root = document.getElementById(id);
	if (!root) return 0;
	const bad = v => funcs.some(fn => (v || '').toLowerCase().includes(fn));
	let rewritten = 0;
	for (const el of [root, ...root.querySelectorAll('*')]) {
		const cs = window.getComputedStyle(el);
		const fix = (prop, value, fallback) => {
			if (bad(value)) {
				el.style.setProperty(prop, fallback);
				rewritten++;
			} else if (value) {
				el.style.setProperty(prop, value);
			}
		};
		fix('background-color', cs.backgroundColor, bg);
		fix('color', cs.color, fg);
		fix('border-color', cs.borderColor, border);
	}
	return rewritten;
}`

const placeJS = `(id) => {
	const node = document.getElementById(id);
	if (node) { node.style.left = '0px'; node.style.top = '0px'; }
}`

const unmountJS = `(id) => {
	const node = document.getElementById(id);
	if (node) node.remove();
}`

const containsJS = `(id) => document.getElementById(id) !== null`

type RodConfig struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string
	Logger    *slog.Logger
}

// RodSurface is a Surface backed by a single headless Chrome tab.
type RodSurface struct {
	log     *slog.Logger
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	scale   float64
}

func NewRodSurface(cfg RodConfig) (*RodSurface, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &RodSurface{log: log}

	wsURL := cfg.RemoteURL
	if wsURL != "" {
		log.Info("capture: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("capture: launch chrome: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Info("capture: launched local chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("capture: connect chrome: %w", err)
	}
	s.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("capture: open tab: %w", err)
	}
	if err := page.SetDocumentContent(blankDocument); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("capture: prepare tab: %w", err)
	}
	s.page = page
	return s, nil
}

func (s *RodSurface) Mount(ctx context.Context, id, markup string) error {
	_, err := s.page.Context(ctx).Eval(mountJS, id, markup)
	return err
}

func (s *RodSurface) WaitImages(ctx context.Context, id string) error {
	res, err := s.page.Context(ctx).Eval(waitImagesJS, id)
	if err != nil {
		return err
	}
	if n := res.Value.Int(); n > 0 {
		s.log.DebugContext(ctx, "capture: waited for images", slog.Int("count", n))
	}
	return nil
}

func (s *RodSurface) Sanitize(ctx context.Context, id string) error {
	res, err := s.page.Context(ctx).Eval(sanitizeJS, id, card.UnsupportedColorFuncs,
		card.FallbackBackground, card.FallbackText, card.FallbackBorder)
	if err != nil {
		return err
	}
	if n := res.Value.Int(); n > 0 {
		s.log.DebugContext(ctx, "capture: rewrote unsupported colors", slog.Int("count", n))
	}
	return nil
}

func (s *RodSurface) Snapshot(ctx context.Context, id string, scale float64) ([]byte, error) {
	page := s.page.Context(ctx)
	if scale != s.scale {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             viewportWidth,
			Height:            viewportHeight,
			DeviceScaleFactor: scale,
		})
		if err != nil {
			return nil, fmt.Errorf("set viewport: %w", err)
		}
		s.scale = scale
	}
	if _, err := page.Eval(placeJS, id); err != nil {
		return nil, err
	}
	el, err := page.Element("#" + id)
	if err != nil {
		return nil, err
	}
	return el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

func (s *RodSurface) Unmount(ctx context.Context, id string) error {
	_, err := s.page.Context(ctx).Eval(unmountJS, id)
	return err
}

func (s *RodSurface) Contains(ctx context.Context, id string) (bool, error) {
	res, err := s.page.Context(ctx).Eval(containsJS, id)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// Ping checks that the tab still answers.
func (s *RodSurface) Ping(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`() => true`)
	return err
}

func (s *RodSurface) Close() error {
	return s.cleanup()
}

func (s *RodSurface) cleanup() error {
	var err error
	if s.page != nil {
		err = s.page.Close()
	}
	if s.browser != nil {
		if cerr := s.browser.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s.lnch != nil {
		s.lnch.Kill()
		s.lnch.Cleanup()
	}
	return err
}
