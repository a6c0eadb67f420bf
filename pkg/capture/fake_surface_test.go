package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
)

// fakeSurface is an in-memory document.
type fakeSurface struct {
	mu         sync.Mutex
	nodes      map[string]string
	calls      []string
	mountErr   error
	waitErr    error
	sanErr     error
	snapErr    error
	snapshot   []byte
	lastMarkup string
	// seen records whether the container was attached at snapshot time.
	seen bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{nodes: map[string]string{}, snapshot: pngBytes(40, 30)}
}

func pngBytes(w, h int) []byte {
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (f *fakeSurface) record(op string) {
	f.calls = append(f.calls, op)
}

func (f *fakeSurface) Mount(_ context.Context, id, markup string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("mount")
	if f.mountErr != nil {
		return f.mountErr
	}
	f.nodes[id] = markup
	f.lastMarkup = markup
	return nil
}

func (f *fakeSurface) WaitImages(ctx context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wait")
	if f.waitErr != nil {
		return f.waitErr
	}
	return ctx.Err()
}

func (f *fakeSurface) Sanitize(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("sanitize")
	return f.sanErr
}

func (f *fakeSurface) Snapshot(_ context.Context, id string, _ float64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("snapshot")
	_, f.seen = f.nodes[id]
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	return f.snapshot, nil
}

func (f *fakeSurface) Unmount(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("unmount")
	delete(f.nodes, id)
	return nil
}

func (f *fakeSurface) Contains(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[id]
	return ok, nil
}

func (f *fakeSurface) attached() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

func (f *fakeSurface) markup() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMarkup
}

// stubRasterizer returns a fixed result.
type stubRasterizer struct {
	img   image.Image
	err   error
	calls int
}

func (s *stubRasterizer) Rasterize(context.Context, card.Card, Options) (image.Image, error) {
	s.calls++
	return s.img, s.err
}
