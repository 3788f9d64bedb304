// Package bootscreen draws the join instructions shown while the access point
// is up.
package bootscreen

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/leejongyoung/Cargotchi/image1bit"
	"github.com/leejongyoung/Cargotchi/internal/ap"
	"github.com/leejongyoung/Cargotchi/internal/panel"
	"github.com/leejongyoung/Cargotchi/internal/qroverlay"
)

// Title heads the boot screen.
const Title = "Cargotchi AP"

// Screen is what the boot screen shows.
type Screen struct {
	Creds ap.Credentials
	Addr  string // URL host printed under the credentials
	QRBox int    // upper bound of the QR code side, in pixels
}

// line is one text line; Y is the top of the glyph cell.
type line struct {
	X, Y int
	Text string
}

func (s Screen) lines() []line {
	return []line{
		{10, 10, Title},
		{10, 30, "SSID: " + s.Creds.SSID},
		{10, 45, "PASS: " + s.Creds.Password},
		{10, 65, "URL:"},
		{10, 80, s.Addr},
	}
}

// QRPlacement returns the top-left corner and box size of the QR code on a
// panel of the given bounds: right-aligned and vertically centred, with the
// box shrunk to leave a margin above and below.
func (s Screen) QRPlacement(bounds image.Rectangle) (image.Point, int) {
	box := min(s.QRBox, bounds.Dy()-8)
	at := image.Pt(bounds.Max.X-box, bounds.Min.Y+(bounds.Dy()-box)/2)
	return at, box
}

// Compose draws s onto fb, which is expected to be white. A nil overlay or a
// failed encode leaves only the text.
func Compose(fb *image1bit.VerticalLSB, s Screen, ov *qroverlay.Overlay) {
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  fb,
		Src:  image.NewUniform(image1bit.Black),
		Face: face,
	}
	origin := fb.Bounds().Min
	for _, l := range s.lines() {
		d.Dot = fixed.P(origin.X+l.X, origin.Y+l.Y+face.Ascent)
		d.DrawString(l.Text)
	}

	if ov != nil {
		at, box := s.QRPlacement(fb.Bounds())
		ov.Draw(fb, at, box, s.Creds.SSID, s.Creds.Password)
	}
}

// Show composes s on a fresh frame and presents it on p.
func Show(p panel.Panel, s Screen, ov *qroverlay.Overlay) error {
	fb := panel.NewFrame(p)
	Compose(fb, s, ov)
	return panel.Present(p, fb)
}
