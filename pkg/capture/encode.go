package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

// Flatten paints img over a solid background so transparent pixels take the
// background color. A background that does not parse is replaced with
// card.FallbackBackground.
func Flatten(img image.Image, background string) *image.NRGBA {
	bg := solid(background)
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// solid parses background as an opaque color.
func solid(background string) color.NRGBA {
	bg, err := card.ParseColor(background)
	if err != nil {
		bg, _ = card.ParseColor(card.FallbackBackground)
	}
	bg.A = 255
	return bg
}

// Encode flattens img and encodes it in the requested format, returning both
// the data URL and the raw bytes.
func Encode(img image.Image, opts Options, path models.CapturePath) (*models.CapturedImage, error) {
	opts = opts.WithDefaults()
	flat := Flatten(img, opts.Background)

	var (
		buf bytes.Buffer
		err error
	)
	switch opts.Format {
	case FormatPNG:
		err = imaging.Encode(&buf, flat, imaging.PNG)
	default:
		err = imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(jpegQuality(opts.Quality)))
	}
	if err != nil {
		return nil, fmt.Errorf("capture: encode %s: %w", opts.Format, err)
	}

	blob := buf.Bytes()
	ct := opts.Format.ContentType()
	return &models.CapturedImage{
		DataURL:     DataURL(ct, blob),
		Blob:        blob,
		ContentType: ct,
		Width:       flat.Bounds().Dx(),
		Height:      flat.Bounds().Dy(),
		Path:        path,
	}, nil
}

func jpegQuality(q float64) int {
	n := int(math.Round(q * 100))
	if n < 1 {
		return 1
	}
	if n > 100 {
		return 100
	}
	return n
}

func DataURL(contentType string, b []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(b)
}

// DecodeDataURL is the inverse of DataURL for base64 payloads.
func DecodeDataURL(u string) (contentType string, b []byte, err error) {
	if !strings.HasPrefix(u, "data:") {
		return "", nil, fmt.Errorf("capture: not a data URL")
	}
	meta, payload, ok := strings.Cut(u[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("capture: malformed data URL")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("capture: data URL is not base64 encoded")
	}
	b, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("capture: data URL payload: %w", err)
	}
	return contentType, b, nil
}
