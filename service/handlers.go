package service

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/capture"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/delivery"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/mail"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/session"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/share"
)

const (
	msgFortuneFailed = "Something went wrong generating your fortune."
	msgCaptureFailed = "Failed to capture fortune. Please try again."
	msgCaptureBusy   = "A capture is already in progress."
	msgNoFortune     = "There is no fortune to capture."
	msgBadRequest    = "Invalid request body."
	msgBadScale      = "Scale must be greater than 0 and at most 4."
	msgForeignShare  = "Only links to fortunes from this crystal ball can be emailed."
	msgEmailDisabled = "Email delivery is not configured."
	msgEmailFailed   = "Failed to send the email. Please try again."
	msgShareNotFound = "This fortune has faded from the crystal ball."
)

type fortuneRequest struct {
	UserAnswers models.UserAnswers `json:"userAnswers"`
}

type fortuneResponse struct {
	Fortune models.Fortune `json:"fortune"`
}

type captureRequest struct {
	Fortune     models.Fortune     `json:"fortune"`
	UserAnswers models.UserAnswers `json:"userAnswers"`
	ShareURL    models.ShareURL    `json:"shareUrl"`
	Options     *capture.Options   `json:"options"`
}

type captureResponse struct {
	DataURL     string             `json:"dataUrl"`
	ShareURL    models.ShareURL    `json:"shareUrl"`
	ContentType string             `json:"contentType"`
	Path        models.CapturePath `json:"path"`
	Links       share.Links        `json:"links"`
}

type linksRequest struct {
	Fortune models.Fortune `json:"fortune"`
	PageURL string         `json:"pageUrl"`
}

type emailRequest struct {
	Email    string          `json:"email"`
	ShareURL models.ShareURL `json:"shareUrl"`
	Fortune  models.Fortune  `json:"fortune"`
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

func (s *Service) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// GetFortune asks the oracle for one fortune. An empty body means no answers.
func (s *Service) GetFortune(c echo.Context) error {
	var req fortuneRequest
	if err := c.Bind(&req); err != nil {
		s.log.WarnContext(c.Request().Context(), "bad fortune request", slog.Any("error", err))
		return errorJSON(c, http.StatusInternalServerError, msgFortuneFailed)
	}

	fortune, err := s.teller.Tell(c.Request().Context(), req.UserAnswers)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, msgFortuneFailed)
	}
	return c.JSON(http.StatusOK, fortuneResponse{Fortune: fortune})
}

// CaptureFortune renders the card, then publishes the image as a share link.
func (s *Service) CaptureFortune(c echo.Context) error {
	var req captureRequest
	img, status, msg := s.capture(c, &req, capture.FormatJPEG)
	if img == nil {
		return errorJSON(c, status, msg)
	}

	ctx := c.Request().Context()
	shareURL, err := s.shares.Generate(ctx, img.DataURL)
	if err != nil {
		s.log.WarnContext(ctx, "share link not generated", slog.Any("error", err))
		shareURL = session.ErrorShareURL
	}

	return c.JSON(http.StatusOK, captureResponse{
		DataURL:     img.DataURL,
		ShareURL:    shareURL,
		ContentType: img.ContentType,
		Path:        img.Path,
		Links:       share.Intents(req.Fortune, s.pageURL(shareURL)),
	})
}

// ShareLinks returns the social share links for a fortune without capturing it.
func (s *Service) ShareLinks(c echo.Context) error {
	var req linksRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, msgBadRequest)
	}
	if strings.TrimSpace(string(req.Fortune)) == "" {
		return errorJSON(c, http.StatusBadRequest, msgNoFortune)
	}
	page := req.PageURL
	if page == "" {
		page = s.pageURL("")
	}
	return c.JSON(http.StatusOK, share.Intents(req.Fortune, page))
}

// pageURL is the page social links point at: the share link when one was
// minted, the site otherwise.
func (s *Service) pageURL(u models.ShareURL) string {
	if u != "" && u != session.ErrorShareURL && u != session.PlaceholderShareURL {
		return string(u)
	}
	return share.Home(s.cfg.Share.Template)
}

// DownloadFortune renders the card and delivers it as a file (PNG unless the
// request asks otherwise).
func (s *Service) DownloadFortune(c echo.Context) error {
	var req captureRequest
	img, status, msg := s.capture(c, &req, capture.FormatPNG)
	if img == nil {
		return errorJSON(c, status, msg)
	}
	format := capture.FormatJPEG
	if img.ContentType == capture.FormatPNG.ContentType() {
		format = capture.FormatPNG
	}
	return delivery.Write(c.Response(), c.Request(), img, format)
}

// capture binds req and runs one guarded capture. On failure it returns a nil
// image with the status and message to send.
func (s *Service) capture(c echo.Context, req *captureRequest, defaultFormat capture.Format) (*models.CapturedImage, int, string) {
	if err := c.Bind(req); err != nil {
		return nil, http.StatusBadRequest, msgBadRequest
	}
	if strings.TrimSpace(string(req.Fortune)) == "" {
		return nil, http.StatusBadRequest, msgNoFortune
	}
	if req.Options != nil {
		if err := req.Options.Validate(); err != nil {
			return nil, http.StatusBadRequest, msgBadScale
		}
	}

	if !s.capturing.CompareAndSwap(false, true) {
		return nil, http.StatusConflict, msgCaptureBusy
	}
	defer s.capturing.Store(false)

	opts := capture.Options{Format: defaultFormat}
	if req.Options != nil {
		opts = *req.Options
		if opts.Format == "" {
			opts.Format = defaultFormat
		}
	}
	s.applyCaptureDefaults(&opts)

	ctx := c.Request().Context()
	img, err := s.capturer.Capture(ctx, card.Card{
		Fortune:  req.Fortune,
		Answers:  req.UserAnswers,
		ShareURL: req.ShareURL,
		LogoURL:  s.cfg.Capture.LogoURL,
		Theme:    card.DefaultTheme(),
	}, opts)
	if err != nil {
		s.log.ErrorContext(ctx, "capture failed", slog.Any("error", err))
		return nil, http.StatusInternalServerError, msgCaptureFailed
	}
	return img, http.StatusOK, ""
}

// applyCaptureDefaults fills options the request left empty from the config.
func (s *Service) applyCaptureDefaults(o *capture.Options) {
	cc := s.cfg.Capture
	if o.Scale == 0 {
		o.Scale = cc.Scale
	}
	if o.Quality == 0 {
		o.Quality = cc.Quality
	}
	if o.Background == "" {
		o.Background = cc.Background
	}
	o.SettleDelay = cc.SettleDelay
	o.LogoTimeout = cc.LogoTimeout
}

func (s *Service) EmailShare(c echo.Context) error {
	if s.mailer == nil {
		return errorJSON(c, http.StatusServiceUnavailable, msgEmailDisabled)
	}
	var req emailRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.ShareURL == "" {
		return errorJSON(c, http.StatusBadRequest, msgBadRequest)
	}
	if !share.Owns(s.cfg.Share.Template, req.ShareURL) {
		return errorJSON(c, http.StatusBadRequest, msgForeignShare)
	}

	ctx := c.Request().Context()
	err := s.mailer.SendShareLink(ctx, req.Email, req.ShareURL, req.Fortune)
	switch {
	case errors.Is(err, mail.ErrInvalidAddress):
		return errorJSON(c, http.StatusBadRequest, msgBadRequest)
	case err != nil:
		s.log.ErrorContext(ctx, "share email failed", slog.Any("error", err))
		return errorJSON(c, http.StatusBadGateway, msgEmailFailed)
	}
	return c.NoContent(http.StatusAccepted)
}

// OpenShare redirects a share link to the stored image.
func (s *Service) OpenShare(c echo.Context) error {
	if s.resolver == nil {
		return errorJSON(c, http.StatusNotFound, msgShareNotFound)
	}
	ctx := c.Request().Context()
	rec, err := s.resolver.Resolve(ctx, c.Param("token"))
	if errors.Is(err, share.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, msgShareNotFound)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "share lookup failed", slog.Any("error", err))
		return errorJSON(c, http.StatusInternalServerError, msgShareNotFound)
	}
	return c.Redirect(http.StatusFound, rec.URL)
}
