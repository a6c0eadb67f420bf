// Package share turns captured images into URLs that can be put in a QR code.
package share

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

const DefaultTemplate = "https://crystal-ball-fortunes.example.com/share/%s"

var ErrNotDataURL = errors.New("share: input is not a data URL")

// Generator produces the share URL for a captured image.
type Generator interface {
	Generate(ctx context.Context, dataURL string) (models.ShareURL, error)
}

// Stub produces syntactically valid links that do not resolve. Nothing is
// uploaded; it stands in for a real storage collaborator.
type Stub struct {
	Template string
	Now      func() time.Time
	Intn     func(n int) int
}

func NewStub(template string) *Stub {
	if template == "" {
		template = DefaultTemplate
	}
	return &Stub{Template: template, Now: time.Now, Intn: rand.Intn}
}

func (s *Stub) Generate(_ context.Context, dataURL string) (models.ShareURL, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", ErrNotDataURL
	}
	return models.ShareURL(fmt.Sprintf(s.Template, s.token())), nil
}

// token is "<unix millis>-<random integer below one million>".
func (s *Stub) token() string {
	now, intn := s.Now, s.Intn
	if now == nil {
		now = time.Now
	}
	if intn == nil {
		intn = rand.Intn
	}
	return fmt.Sprintf("%d-%d", now().UnixMilli(), intn(1000000))
}
