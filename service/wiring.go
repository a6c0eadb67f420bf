package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/capture"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/db"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/events"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/mail"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/oracle"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/share"
)

func (s *Service) build(ctx context.Context) error {
	if s.teller == nil {
		o, err := oracle.New(ctx, s.cfg.Oracle)
		if err != nil {
			return fmt.Errorf("failed to init oracle: %w", err)
		}
		if g, ok := o.(*oracle.Gemini); ok {
			s.closers = append(s.closers, g)
		}
		s.teller = oracle.NewTeller(o, s.log)
		s.log.Info("oracle ready", slog.String("provider", s.cfg.Oracle.Provider))
	}
	if s.capturer == nil {
		s.capturer = s.buildPipeline()
	}
	if s.shares == nil {
		if err := s.buildShares(ctx); err != nil {
			return err
		}
	}
	if s.mailer == nil && s.cfg.Email.Enabled() {
		s.mailer = mail.NewSender(s.cfg.Email.APIKey, s.cfg.Email.From)
		s.log.Info("email delivery enabled")
	}
	return nil
}

// buildPipeline prefers headless Chrome and degrades to drawing only when no
// browser is available.
func (s *Service) buildPipeline() *capture.Pipeline {
	c := s.cfg.Capture
	var logo capture.LogoSource
	switch {
	case c.LogoPath != "":
		logo = capture.FileLogo{Path: c.LogoPath}
	case c.LogoURL != "":
		logo = capture.URLLogo{URL: c.LogoURL}
	}
	fallback := capture.NewCanvasRasterizer(logo, s.log)

	surface, err := capture.NewRodSurface(capture.RodConfig{RemoteURL: c.BrowserURL, Logger: s.log})
	if err != nil {
		s.log.Warn("headless chrome unavailable, captures will use the fallback drawing", slog.Any("error", err))
		return capture.NewPipeline(nil, fallback, s.log)
	}
	s.closers = append(s.closers, surface)
	return capture.NewPipeline(capture.NewDOMRasterizer(surface, c.LogoURL, s.log), fallback, s.log)
}

func (s *Service) buildShares(ctx context.Context) error {
	if !s.cfg.Minio.Enabled() {
		s.shares = share.NewStub(s.cfg.Share.Template)
		s.log.Info("share links are stubs (minio not configured)")
		return nil
	}

	m := s.cfg.Minio
	store, err := share.NewMinioStore(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.Secure)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}
	s.log.Info("connected to minio", slog.String("bucket", m.Bucket))

	var recorder share.Recorder
	if s.cfg.Postgres.Enabled() {
		dB, err := sqlx.Open("postgres", s.cfg.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		s.closers = append(s.closers, dB)
		shareDB, err := db.NewShareDatabase(s.cfg.Postgres.AutoCreate, dB)
		if err != nil {
			return fmt.Errorf("failed to initialize share database: %w", err)
		}
		recorder = shareDB
		s.log.Info("connected to postgres")
	}

	var notifier share.Notifier
	if s.cfg.RabbitMQ.Enabled() {
		pub, err := events.Dial(s.cfg.RabbitMQ.URL(), s.cfg.RabbitMQ.Queue)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pub)
		notifier = pub
		s.log.Info("connected to rabbitmq", slog.String("queue", s.cfg.RabbitMQ.Queue))
	}

	pub := share.NewPublisher(store, recorder, notifier, s.cfg.Share.Template, s.log)
	s.shares = pub
	if s.resolver == nil {
		s.resolver = pub
	}
	return nil
}
