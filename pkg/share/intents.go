package share

import (
	"net/url"
	"strings"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
)

const (
	facebookSharer = "https://www.facebook.com/sharer/sharer.php"
	xIntent        = "https://twitter.com/intent/tweet"
	instagramHome  = "https://www.instagram.com"

	quotePrefix = "Check out my crystal ball fortune: "
	xTagline    = " Unlock your marketing potential: https://www.adfury.ai"

	// WebShareTitle and WebShareFile name the native share sheet payload.
	WebShareTitle = "My Crystal Ball Fortune"
	WebShareFile  = "crystal-ball-fortune.jpg"
)

// Links are the ways a fortune can leave the app besides the QR code. Text is
// what "Copy as Text" puts on the clipboard and what the native share sheet
// carries along with the image.
type Links struct {
	Facebook  string `json:"facebook"`
	X         string `json:"x"`
	Instagram string `json:"instagram"`
	Text      string `json:"text"`
	Title     string `json:"title"`
	Filename  string `json:"filename"`
}

// Intents builds the social share links for fortune on the page at pageURL.
func Intents(fortune models.Fortune, pageURL string) Links {
	f := string(fortune)
	return Links{
		Facebook:  facebookSharer + "?u=" + escape(pageURL) + "&quote=" + escape(quotePrefix+f),
		X:         xIntent + "?text=" + escape(f+xTagline),
		Instagram: instagramHome,
		Text:      f,
		Title:     WebShareTitle,
		Filename:  WebShareFile,
	}
}

// escape percent-encodes a query component with spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Prefix is the part of a share template before its token, e.g.
// "https://host/share/" for "https://host/share/%s".
func Prefix(template string) string {
	if i := strings.Index(template, "%s"); i >= 0 {
		return template[:i]
	}
	return template
}

// Owns reports whether u is a share link minted from template.
func Owns(template string, u models.ShareURL) bool {
	p := Prefix(template)
	s := string(u)
	return p != "" && strings.HasPrefix(s, p) && len(s) > len(p)
}

// Home is the scheme and host of template, used as the page to share when
// no share link is available.
func Home(template string) string {
	u, err := url.Parse(Prefix(template))
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}
