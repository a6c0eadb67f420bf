package share

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/capture"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

// ObjectStore keeps the captured image bytes and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Recorder persists share metadata.
type Recorder interface {
	CreateShare(ctx context.Context, rec *models.ShareRecord) error
	GetShare(ctx context.Context, token string) (*models.ShareRecord, error)
}

type announcedMarker interface {
	MarkAnnounced(ctx context.Context, token string) error
}

// Notifier announces freshly published shares.
type Notifier interface {
	PublishShare(ctx context.Context, rec *models.ShareRecord) error
}

// Publisher uploads the capture and hands back a link to the share page.
// Recorder and Notifier are optional.
type Publisher struct {
	store    ObjectStore
	recorder Recorder
	notifier Notifier
	template string
	log      *slog.Logger
	newToken func() string
	now      func() time.Time
}

func NewPublisher(store ObjectStore, recorder Recorder, notifier Notifier, template string, log *slog.Logger) *Publisher {
	if template == "" {
		template = DefaultTemplate
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		store:    store,
		recorder: recorder,
		notifier: notifier,
		template: template,
		log:      log,
		newToken: func() string { return uuid.Must(uuid.NewV7()).String() },
		now:      time.Now,
	}
}

func (p *Publisher) Generate(ctx context.Context, dataURL string) (models.ShareURL, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", ErrNotDataURL
	}
	contentType, blob, err := capture.DecodeDataURL(dataURL)
	if err != nil {
		return "", fmt.Errorf("share: %w", err)
	}

	token := p.newToken()
	key := token + extension(contentType)
	objectURL, err := p.store.Put(ctx, key, contentType, blob)
	if err != nil {
		return "", fmt.Errorf("share: upload: %w", err)
	}

	rec := &models.ShareRecord{
		Token:       token,
		ObjectKey:   key,
		URL:         objectURL,
		ContentType: contentType,
		Size:        int64(len(blob)),
		Status:      models.SharePublished,
		CreatedAt:   p.now().UTC(),
	}
	if p.recorder != nil {
		if err := p.recorder.CreateShare(ctx, rec); err != nil {
			p.log.WarnContext(ctx, "share record not stored", slog.String("token", token), slog.Any("error", err))
		}
	}
	if p.notifier != nil {
		p.announce(ctx, rec)
	}

	p.log.InfoContext(ctx, "fortune shared", slog.String("token", token), slog.Int64("bytes", rec.Size))
	return models.ShareURL(fmt.Sprintf(p.template, token)), nil
}

func (p *Publisher) announce(ctx context.Context, rec *models.ShareRecord) {
	if err := p.notifier.PublishShare(ctx, rec); err != nil {
		p.log.WarnContext(ctx, "share not announced", slog.String("token", rec.Token), slog.Any("error", err))
		return
	}
	rec.Status = models.ShareAnnounced
	if m, ok := p.recorder.(announcedMarker); ok {
		if err := m.MarkAnnounced(ctx, rec.Token); err != nil {
			p.log.WarnContext(ctx, "share status not updated", slog.String("token", rec.Token), slog.Any("error", err))
		}
	}
}

// Resolve finds the stored object behind a share token.
func (p *Publisher) Resolve(ctx context.Context, token string) (*models.ShareRecord, error) {
	if p.recorder == nil {
		return nil, ErrNotFound
	}
	return p.recorder.GetShare(ctx, token)
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ""
	}
}
