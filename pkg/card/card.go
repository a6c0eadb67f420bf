// Package card renders the fortune card markup that the capture pipeline
// rasterizes.
package card

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/qr"
)

const Title = "Your Crystal Ball Fortune"

const qrSize = 256

type Theme struct {
	Background string `json:"background"`
	Panel      string `json:"panel"`
	Text       string `json:"text"`
	Border     string `json:"border"`
}

func DefaultTheme() Theme {
	return Theme{
		Background: FallbackBackground,
		Panel:      "rgba(0, 0, 0, 0.2)",
		Text:       FallbackText,
		Border:     FallbackBorder,
	}
}

// Sanitized replaces every color the rasterizer cannot parse with its fallback.
func (t Theme) Sanitized() Theme {
	return Theme{
		Background: SanitizeColor(PropBackground, t.Background),
		Panel:      SanitizeColor(PropBackground, t.Panel),
		Text:       SanitizeColor(PropText, t.Text),
		Border:     SanitizeColor(PropBorder, t.Border),
	}
}

type Card struct {
	Fortune  models.Fortune
	Answers  models.UserAnswers
	ShareURL models.ShareURL
	LogoURL  string
	Theme    Theme
}

type view struct {
	Fortune    string
	Answers    models.UserAnswers
	LogoURL    string
	Title      string
	QR         template.URL
	Background template.CSS
	Panel      template.CSS
	Text       template.CSS
	Border     template.CSS
}

var cardTmpl = template.Must(template.New("card").Parse(`<div class="fortune-card" style="width:400px;padding:20px;border-radius:16px;font-family:Arial,sans-serif;background-color:{{.Background}};">
  <div class="logo-area" style="text-align:center;margin-bottom:20px;padding-bottom:15px;border-bottom:1px solid {{.Border}};">
    {{- if .LogoURL}}
    <img src="{{.LogoURL}}" width="80" height="80" alt="logo" style="margin:0 auto 10px auto;display:block;">
    {{- end}}
    <h3 style="margin:0;color:{{.Text}};">{{.Title}}</h3>
  </div>
  <div class="fortune-area" style="padding:20px;border-radius:10px;background-color:{{.Panel}};">
    <p class="fortune" style="font-size:18px;line-height:1.5;text-align:center;color:{{.Text}};">{{.Fortune}}</p>
    {{- if .Answers.Any}}
    <div class="user-answers" style="font-size:14px;color:{{.Text}};">
      <h4>Based on your answers:</h4>
      <ul>
        {{- with .Answers.Color}}<li>Favorite color: {{.}}</li>{{end}}
        {{- with .Answers.Mood}}<li>Current mood: {{.}}</li>{{end}}
        {{- with .Answers.Dream}}<li>Last dream: {{.}}</li>{{end}}
      </ul>
    </div>
    {{- end}}
  </div>
  {{- if .QR}}
  <div class="share-area" style="display:flex;align-items:center;gap:12px;margin-top:16px;">
    <img class="qr-code" src="{{.QR}}" width="100" height="100" alt="QR code">
    <div style="font-size:12px;color:{{.Text}};">
      <p>Scan this QR code with your phone</p>
      <p>to download your fortune</p>
    </div>
  </div>
  {{- end}}
</div>`))

// Render produces the card markup. Theme colors are sanitized before use and
// a QR code is embedded when the card carries a share URL.
func Render(c Card) (string, error) {
	theme := c.Theme
	if theme == (Theme{}) {
		theme = DefaultTheme()
	}
	theme = theme.Sanitized()

	v := view{
		Fortune:    string(c.Fortune),
		Answers:    c.Answers,
		LogoURL:    c.LogoURL,
		Title:      Title,
		Background: template.CSS(theme.Background),
		Panel:      template.CSS(theme.Panel),
		Text:       template.CSS(theme.Text),
		Border:     template.CSS(theme.Border),
	}
	if c.ShareURL != "" {
		u, err := qr.DataURL(string(c.ShareURL), qrSize)
		if err != nil {
			return "", fmt.Errorf("card: share qr: %w", err)
		}
		v.QR = template.URL(u)
	}

	var buf bytes.Buffer
	if err := cardTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("card: render: %w", err)
	}
	return buf.String(), nil
}
