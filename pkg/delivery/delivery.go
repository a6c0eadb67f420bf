// Package delivery hands a captured image to the user's browser.
package delivery

import (
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/capture"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

const baseName = "adentus_furiosi_fortune"

var touchMobile = regexp.MustCompile(`iPhone|iPad|iPod`)

// IsTouchMobile reports user agents that cannot save a download attachment and
// get the image opened in a new browsing context instead.
func IsTouchMobile(userAgent string) bool {
	return touchMobile.MatchString(userAgent)
}

func Filename(f capture.Format) string {
	return baseName + f.Ext()
}

func ValidDataURL(u string) bool {
	return strings.HasPrefix(u, "data:")
}

var inlinePage = template.Must(template.New("inline").Parse(`<!DOCTYPE html>
<html>
<head><meta name="viewport" content="width=device-width, initial-scale=1"><title>{{.Name}}</title></head>
<body style="margin:0;background:#1a1040;text-align:center">
<img src="{{.Src}}" alt="{{.Name}}" style="max-width:100%">
<p style="color:#ffffff;font-family:sans-serif">Press and hold the image to save it.</p>
</body>
</html>`))

// Write sends img as an attachment, or as an inline page for touch-mobile
// browsers.
func Write(w http.ResponseWriter, r *http.Request, img *models.CapturedImage, format capture.Format) error {
	if img == nil || !ValidDataURL(img.DataURL) {
		return fmt.Errorf("delivery: image has no data URL")
	}
	name := Filename(format)

	if IsTouchMobile(r.UserAgent()) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		return inlinePage.Execute(w, struct {
			Name string
			Src  template.URL
		}{name, template.URL(img.DataURL)})
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Blob)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(img.Blob)
	return err
}
