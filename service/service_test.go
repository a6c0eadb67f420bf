package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedaZarei/CrystalBallFortunes/config"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/capture"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/card"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/logger"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/mail"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/session"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/share"
)

const clarity = `Adentus Furiosi says: "Clarity arrives."`

type fakeTeller struct {
	fortune models.Fortune
	err     error
	got     models.UserAnswers
}

func (f *fakeTeller) Tell(_ context.Context, a models.UserAnswers) (models.Fortune, error) {
	f.got = a
	return f.fortune, f.err
}

type fakeCapturer struct {
	mu      sync.Mutex
	err     error
	entered chan struct{}
	release chan struct{}
	cards   []card.Card
	opts    []capture.Options
}

func (f *fakeCapturer) Capture(_ context.Context, c card.Card, o capture.Options) (*models.CapturedImage, error) {
	f.mu.Lock()
	f.cards = append(f.cards, c)
	f.opts = append(f.opts, o)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	blob := []byte{1, 2, 3}
	ct := o.Format.ContentType()
	return &models.CapturedImage{
		DataURL:     capture.DataURL(ct, blob),
		Blob:        blob,
		ContentType: ct,
		Width:       1000,
		Height:      800,
		Path:        models.CapturePrimary,
	}, nil
}

type fakeResolver map[string]*models.ShareRecord

func (f fakeResolver) Resolve(_ context.Context, token string) (*models.ShareRecord, error) {
	rec, ok := f[token]
	if !ok {
		return nil, share.ErrNotFound
	}
	return rec, nil
}

type fakeMailer struct {
	err error
	to  string
}

func (f *fakeMailer) SendShareLink(_ context.Context, to string, _ models.ShareURL, _ models.Fortune) error {
	f.to = to
	return f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.InitConfig("")
	require.NoError(t, err)
	return cfg
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithLogger(logger.Discard()),
		WithTeller(&fakeTeller{fortune: clarity}),
		WithCapturer(&fakeCapturer{}),
		WithShareGenerator(share.NewStub("")),
	}
	return NewService(testConfig(t), append(base, opts...)...)
}

func post(t *testing.T, h http.Handler, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decode returns the string fields of a JSON object response.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	raw := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	out := map[string]string{}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func decodeLinks(t *testing.T, rec *httptest.ResponseRecorder) share.Links {
	t.Helper()
	var body struct {
		Links share.Links `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Links
}

const shareLink = "https://crystal-ball-fortunes.example.com/share/17-42"

func TestGetFortune(t *testing.T) {
	teller := &fakeTeller{fortune: clarity}
	s := newTestService(t, WithTeller(teller))

	for _, path := range []string{"/api", "/api/v1/fortune"} {
		rec := post(t, s, path, map[string]any{"userAnswers": map[string]string{"color": "teal", "mood": "", "dream": "flying"}})
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, clarity, decode(t, rec)["fortune"])
		assert.Equal(t, models.UserAnswers{Color: "teal", Dream: "flying"}, teller.got)
	}
}

func TestGetFortune_OracleFailure(t *testing.T) {
	s := newTestService(t, WithTeller(&fakeTeller{err: errors.New("provider down")}))

	rec := post(t, s, "/api", map[string]any{"userAnswers": map[string]string{}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "Something went wrong generating your fortune."}, decode(t, rec))
}

func TestCaptureFortune(t *testing.T) {
	fc := &fakeCapturer{}
	s := newTestService(t, WithCapturer(fc))

	rec := post(t, s, "/api/v1/capture", map[string]any{
		"fortune":     clarity,
		"userAnswers": map[string]string{"color": "teal"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.True(t, strings.HasPrefix(body["dataUrl"], "data:image/jpeg;base64,"))
	assert.Regexp(t, `^https://crystal-ball-fortunes\.example\.com/share/\d+-\d+$`, body["shareUrl"])
	assert.Equal(t, "primary", body["path"])

	links := decodeLinks(t, rec)
	assert.Contains(t, links.Facebook, "u="+url.QueryEscape(body["shareUrl"]))
	assert.True(t, strings.HasPrefix(links.X, "https://twitter.com/intent/tweet?text="))
	assert.Equal(t, clarity, links.Text)

	require.Len(t, fc.cards, 1)
	assert.Equal(t, models.Fortune(clarity), fc.cards[0].Fortune)
	assert.Equal(t, "teal", fc.cards[0].Answers.Color)
	assert.Equal(t, 2.0, fc.opts[0].Scale)
	assert.Equal(t, 0.95, fc.opts[0].Quality)
	assert.Equal(t, "rgba(26, 16, 64, 1)", fc.opts[0].Background)
	assert.False(t, s.capturing.Load())
}

func TestCaptureFortune_RequestOptions(t *testing.T) {
	fc := &fakeCapturer{}
	s := newTestService(t, WithCapturer(fc))

	rec := post(t, s, "/api/v1/capture", map[string]any{
		"fortune": clarity,
		"options": map[string]any{"scale": 1, "quality": 0.5, "format": "png"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, fc.opts[0].Scale)
	assert.Equal(t, 0.5, fc.opts[0].Quality)
	assert.Equal(t, capture.FormatPNG, fc.opts[0].Format)
}

func TestCaptureFortune_EmptyFortune(t *testing.T) {
	fc := &fakeCapturer{}
	s := newTestService(t, WithCapturer(fc))

	rec := post(t, s, "/api/v1/capture", map[string]any{"fortune": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fc.cards)
}

func TestCaptureFortune_Failure(t *testing.T) {
	fc := &fakeCapturer{err: errors.New("fallback: font missing")}
	s := newTestService(t, WithCapturer(fc))

	rec := post(t, s, "/api/v1/capture", map[string]any{"fortune": clarity})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "Failed to capture fortune. Please try again."}, decode(t, rec))

	fc.err = nil
	rec = post(t, s, "/api/v1/capture", map[string]any{"fortune": clarity})
	assert.Equal(t, http.StatusOK, rec.Code, "guard is released after a failure")
}

func TestCaptureFortune_OneAtATime(t *testing.T) {
	fc := &fakeCapturer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := newTestService(t, WithCapturer(fc))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- post(t, s, "/api/v1/capture", map[string]any{"fortune": clarity})
	}()

	select {
	case <-fc.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first capture never started")
	}

	rec := post(t, s, "/api/v1/capture/download", map[string]any{"fortune": clarity})
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(fc.release)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)
	assert.False(t, s.capturing.Load())
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (models.ShareURL, error) {
	return "", errors.New("upload failed")
}

func TestCaptureFortune_ShareFailureStillReturnsImage(t *testing.T) {
	s := newTestService(t, WithShareGenerator(failingGenerator{}))

	rec := post(t, s, "/api/v1/capture", map[string]any{"fortune": clarity})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(session.ErrorShareURL), decode(t, rec)["shareUrl"])
	assert.Contains(t, decodeLinks(t, rec).Facebook, "u="+url.QueryEscape("https://crystal-ball-fortunes.example.com/"))
}

func TestCaptureFortune_ScaleOutOfRange(t *testing.T) {
	fc := &fakeCapturer{}
	s := newTestService(t, WithCapturer(fc))

	for _, scale := range []float64{5000, 4.5, -1} {
		rec := post(t, s, "/api/v1/capture", map[string]any{
			"fortune": clarity,
			"options": map[string]any{"scale": scale},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "scale %v", scale)
		rec = post(t, s, "/api/v1/capture/download", map[string]any{
			"fortune": clarity,
			"options": map[string]any{"scale": scale},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "scale %v", scale)
	}
	assert.Empty(t, fc.opts)
	assert.False(t, s.capturing.Load())

	rec := post(t, s, "/api/v1/capture", map[string]any{
		"fortune": clarity,
		"options": map[string]any{"scale": 4},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, fc.opts[0].Scale)
}

func TestCaptureFortune_AnyBackgroundColor(t *testing.T) {
	log := logger.Discard()
	pipeline := capture.NewPipeline(nil, capture.NewCanvasRasterizer(nil, log), log)
	s := newTestService(t, WithCapturer(pipeline))

	for _, bg := range []string{"red", "navy", "oklch(0.2 0.1 280)", "rgb(10%, 20%, 30%)"} {
		rec := post(t, s, "/api/v1/capture", map[string]any{
			"fortune": clarity,
			"options": map[string]any{"scale": 1, "backgroundColor": bg},
		})
		require.Equal(t, http.StatusOK, rec.Code, bg)
		assert.True(t, strings.HasPrefix(decode(t, rec)["dataUrl"], "data:image/jpeg;base64,"), bg)
	}
}

func TestCaptureFortune_FallbackDrawing(t *testing.T) {
	log := logger.Discard()
	pipeline := capture.NewPipeline(nil, capture.NewCanvasRasterizer(nil, log), log)
	s := newTestService(t, WithCapturer(pipeline))

	rec := post(t, s, "/api/v1/capture", map[string]any{
		"fortune": clarity,
		"options": map[string]any{"scale": 1},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "fallback", body["path"])
	assert.Equal(t, "image/jpeg", body["contentType"])
}

func TestDownloadFortune_Attachment(t *testing.T) {
	s := newTestService(t)

	rec := post(t, s, "/api/v1/capture/download", map[string]any{"fortune": clarity},
		"User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="adentus_furiosi_fortune.png"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
}

func TestDownloadFortune_InlineOnIPhone(t *testing.T) {
	s := newTestService(t)

	rec := post(t, s, "/api/v1/capture/download", map[string]any{"fortune": clarity},
		"User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "data:image/png;base64,")
}

func TestEmailShare(t *testing.T) {
	s := newTestService(t)
	rec := post(t, s, "/api/v1/share/email", map[string]any{"email": "a@example.com", "shareUrl": shareLink})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	m := &fakeMailer{}
	s = newTestService(t, WithMailer(m))
	rec = post(t, s, "/api/v1/share/email", map[string]any{"email": "a@example.com", "shareUrl": shareLink, "fortune": clarity})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "a@example.com", m.to)

	rec = post(t, s, "/api/v1/share/email", map[string]any{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	m.err = mail.ErrInvalidAddress
	rec = post(t, s, "/api/v1/share/email", map[string]any{"email": "nope", "shareUrl": shareLink})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	m.err = errors.New("quota")
	rec = post(t, s, "/api/v1/share/email", map[string]any{"email": "a@example.com", "shareUrl": shareLink})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEmailShare_OnlyOwnShareLinks(t *testing.T) {
	m := &fakeMailer{}
	s := newTestService(t, WithMailer(m))

	for _, u := range []string{
		"https://x/share/1",
		"https://phish.example.net/crystal-ball-fortunes.example.com/share/1",
		"https://crystal-ball-fortunes.example.com/share/",
	} {
		rec := post(t, s, "/api/v1/share/email", map[string]any{"email": "a@example.com", "shareUrl": u, "fortune": "click here"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, u)
	}
	assert.Empty(t, m.to)
}

func TestShareLinks(t *testing.T) {
	s := newTestService(t)

	rec := post(t, s, "/api/v1/share/links", map[string]any{"fortune": clarity, "pageUrl": shareLink})
	require.Equal(t, http.StatusOK, rec.Code)
	var links share.Links
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &links))
	assert.Equal(t, share.Intents(clarity, shareLink), links)

	rec = post(t, s, "/api/v1/share/links", map[string]any{"fortune": clarity})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &links))
	assert.Contains(t, links.Facebook, "u="+url.QueryEscape("https://crystal-ball-fortunes.example.com/"))

	rec = post(t, s, "/api/v1/share/links", map[string]any{"fortune": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenShare(t *testing.T) {
	s := newTestService(t, WithShareResolver(fakeResolver{
		"tok": {Token: "tok", URL: "https://minio.local/fortunes/tok.jpg"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/share/tok", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://minio.local/fortunes/tok.jpg", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/share/missing", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenShare_NoResolver(t *testing.T) {
	s := newTestService(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/share/tok", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestService(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
