package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nedaZarei/CrystalBallFortunes/config"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/capture"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/share"
)

type FortuneTeller interface {
	Tell(ctx context.Context, answers models.UserAnswers) (models.Fortune, error)
}

type Capturer interface {
	Capture(ctx context.Context, c card.Card, opts capture.Options) (*models.CapturedImage, error)
}

type ShareResolver interface {
	Resolve(ctx context.Context, token string) (*models.ShareRecord, error)
}

type Mailer interface {
	SendShareLink(ctx context.Context, to string, url models.ShareURL, fortune models.Fortune) error
}

type Service struct {
	cfg *config.Config
	e   *echo.Echo
	log *slog.Logger

	teller   FortuneTeller
	capturer Capturer
	shares   share.Generator
	resolver ShareResolver
	mailer   Mailer

	// one capture at a time per process
	capturing atomic.Bool
	closers   []io.Closer
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }
func WithTeller(t FortuneTeller) Option { return func(s *Service) { s.teller = t } }
func WithCapturer(c Capturer) Option { return func(s *Service) { s.capturer = c } }
func WithShareGenerator(g share.Generator) Option { return func(s *Service) { s.shares = g } }
func WithShareResolver(r ShareResolver) Option { return func(s *Service) { s.resolver = r } }
func WithMailer(m Mailer) Option { return func(s *Service) { s.mailer = m } }

// NewService registers the routes. Collaborators not passed as options are
// built from cfg by StartService.
func NewService(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		e:   echo.New(),
		cfg: cfg,
		log: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Service) setupMiddleware() {
	s.e.Use(middleware.RequestID())
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			s.log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.BodyLimit("10M"))
	if origins := s.cfg.Server.AllowedOrigins; len(origins) > 0 {
		s.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
		}))
	}
}

func (s *Service) setupRoutes() {
	s.e.GET("/healthz", s.Health)
	s.e.GET("/share/:token", s.OpenShare)

	// path used by the web client
	s.e.POST("/api", s.GetFortune)

	v1 := s.e.Group("/api/v1")
	v1.POST("/fortune", s.GetFortune)
	v1.POST("/capture", s.CaptureFortune)
	v1.POST("/capture/download", s.DownloadFortune)
	v1.POST("/share/email", s.EmailShare)
	v1.POST("/share/links", s.ShareLinks)
}

// ServeHTTP lets the service be mounted or tested without a listener.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// StartService builds the missing collaborators and serves until ctx is done.
func (s *Service) StartService(ctx context.Context) error {
	if err := s.build(ctx); err != nil {
		s.close()
		return err
	}
	defer s.close()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("crystal ball listening", slog.String("addr", s.cfg.Server.Port))
		if err := s.e.Start(s.cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.log.Warn("close failed", slog.Any("error", err))
		}
	}
	s.closers = nil
}
