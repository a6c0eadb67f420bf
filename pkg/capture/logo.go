package capture

import (
	"context"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
)

// LogoSource supplies the decorative logo drawn on fallback cards.
type LogoSource interface {
	Logo(ctx context.Context) (image.Image, error)
}

type URLLogo struct {
	URL    string
	Client *http.Client
}

func (l URLLogo) Logo(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("logo: build request: %w", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logo: fetch %s: %w", l.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("logo: fetch %s: status %d", l.URL, resp.StatusCode)
	}
	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("logo: decode: %w", err)
	}
	return img, nil
}

type FileLogo struct {
	Path string
}

func (l FileLogo) Logo(context.Context) (image.Image, error) {
	img, err := imaging.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("logo: open %s: %w", l.Path, err)
	}
	return img, nil
}

// StaticLogo serves an already decoded image.
type StaticLogo struct {
	Image image.Image
}

func (l StaticLogo) Logo(context.Context) (image.Image, error) {
	if l.Image == nil {
		return nil, fmt.Errorf("logo: no image")
	}
	return l.Image, nil
}
