// Package qroverlay paints a Wi-Fi join QR code into a 1-bit framebuffer.
package qroverlay

import (
	"image"
	"strings"

	"github.com/rs/zerolog"
	"rsc.io/qr"

	"github.com/leejongyoung/Cargotchi/image1bit"
)

// Matrix is a square grid of QR modules.
type Matrix interface {
	Rows() int
	Cols() int
	// On reports whether the module at (row, col) is dark.
	On(row, col int) bool
}

// Encoder turns a payload into a module matrix.
type Encoder interface {
	Encode(payload string) (Matrix, error)
}

// QREncoder is an Encoder backed by rsc.io/qr.
type QREncoder struct {
	Level qr.Level
}

// Encode implements Encoder.
func (e QREncoder) Encode(payload string) (Matrix, error) {
	code, err := qr.Encode(payload, e.Level)
	if err != nil {
		return nil, err
	}
	return codeMatrix{code}, nil
}

type codeMatrix struct {
	c *qr.Code
}

func (m codeMatrix) Rows() int            { return m.c.Size }
func (m codeMatrix) Cols() int            { return m.c.Size }
func (m codeMatrix) On(row, col int) bool { return m.c.Black(col, row) }

var payloadEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `:`, `\:`, `"`, `\"`)

// Payload returns the WIFI: URI understood by phone cameras. Characters with
// a meaning in the URI are backslash-escaped.
func Payload(ssid, password string) string {
	return "WIFI:T:WPA;S:" + payloadEscaper.Replace(ssid) + ";P:" + payloadEscaper.Replace(password) + ";;"
}

// Scale returns the largest integer module size that keeps a rows x cols
// matrix within maxBox pixels on both axes, and at least 1.
func Scale(rows, cols, maxBox int) int {
	if rows <= 0 || cols <= 0 {
		return 1
	}
	return max(1, min(maxBox/rows, maxBox/cols))
}

// Overlay draws credential QR codes.
type Overlay struct {
	enc Encoder
	log zerolog.Logger
}

// New returns an Overlay. A nil enc disables drawing.
func New(enc Encoder, log zerolog.Logger) *Overlay {
	return &Overlay{enc: enc, log: log}
}

// Draw paints the QR code for the credentials with its top-left corner at
// at, scaled to fit a maxBox square. Dark modules become black squares;
// light modules are left untouched. Pixels outside dst are clipped. Draw
// reports whether anything was drawn; encoder failures are logged.
func (o *Overlay) Draw(dst image1bit.Plotter, at image.Point, maxBox int, ssid, password string) bool {
	if o.enc == nil {
		o.log.Info().Msg("qr encoder unavailable, skipping overlay")
		return false
	}
	m, err := o.enc.Encode(Payload(ssid, password))
	if err != nil {
		o.log.Warn().Err(err).Msg("qr encode failed, skipping overlay")
		return false
	}

	rows, cols := m.Rows(), m.Cols()
	scale := Scale(rows, cols, maxBox)
	clip := dst.Bounds()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !m.On(r, c) {
				continue
			}
			square := image.Rect(0, 0, scale, scale).
				Add(at.Add(image.Pt(c*scale, r*scale))).
				Intersect(clip)
			for y := square.Min.Y; y < square.Max.Y; y++ {
				for x := square.Min.X; x < square.Max.X; x++ {
					dst.SetBit(x, y, image1bit.Black)
				}
			}
		}
	}
	o.log.Debug().Int("modules", rows).Int("scale", scale).Msg("qr overlay drawn")
	return true
}
