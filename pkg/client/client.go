// Package client calls the fortune service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/capture"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/share"
)

// Silent is shown whenever the fortune request fails for any reason.
const Silent models.Fortune = "The crystal ball is silent... Try again later."

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func New(baseURL string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, log: log}
}

type FortuneRequest struct {
	UserAnswers models.UserAnswers `json:"userAnswers"`
}

type FortuneResponse struct {
	Fortune models.Fortune `json:"fortune"`
	Error   string         `json:"error,omitempty"`
}

// RequestFortune makes exactly one attempt and never returns an error: every
// failure collapses to Silent.
func (c *Client) RequestFortune(ctx context.Context, answers models.UserAnswers) models.Fortune {
	var resp FortuneResponse
	if err := c.post(ctx, "/api", FortuneRequest{UserAnswers: answers}, &resp); err != nil {
		c.log.WarnContext(ctx, "fortune request failed", slog.Any("error", err))
		return Silent
	}
	if resp.Fortune == "" {
		c.log.WarnContext(ctx, "fortune response had no fortune")
		return Silent
	}
	return resp.Fortune
}

type CaptureRequest struct {
	Fortune     models.Fortune     `json:"fortune"`
	UserAnswers models.UserAnswers `json:"userAnswers"`
	ShareURL    models.ShareURL    `json:"shareUrl,omitempty"`
	Options     *capture.Options   `json:"options,omitempty"`
}

type CaptureResponse struct {
	DataURL     string             `json:"dataUrl"`
	ShareURL    models.ShareURL    `json:"shareUrl"`
	ContentType string             `json:"contentType"`
	Path        models.CapturePath `json:"path"`
	Links       share.Links        `json:"links"`
}

// Capture asks the service to render the card and returns the image and its share link.
func (c *Client) Capture(ctx context.Context, req CaptureRequest) (*CaptureResponse, error) {
	var resp CaptureResponse
	if err := c.post(ctx, "/api/v1/capture", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download returns the raw image bytes of the rendered card.
func (c *Client) Download(ctx context.Context, req CaptureRequest) ([]byte, string, error) {
	httpResp, err := c.do(ctx, "/api/v1/capture/download", req)
	if err != nil {
		return nil, "", err
	}
	defer httpResp.Body.Close()

	b, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("client: read download: %w", err)
	}
	return b, httpResp.Header.Get("Content-Type"), nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	resp, err := c.do(ctx, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, in any) (*http.Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("client: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return resp, nil
}

type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: %s returned %d", e.Path, e.Code)
	}
	return fmt.Sprintf("client: %s returned %d: %s", e.Path, e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func errorMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil {
		return ""
	}
	return body.Error
}
