// Package bitmap transcodes the packed hex bitmap posted by the configuration
// page into a panel framebuffer.
//
// The source is row-major, MSB-first, one bit per pixel, with a set bit
// meaning white. Rows below the visible height are ignored.
package bitmap

import (
	"errors"
	"fmt"
	"image"

	"github.com/leejongyoung/Cargotchi/image1bit"
)

var (
	ErrOddHexLength    = errors.New("bitmap: odd hex length")
	ErrInvalidHexDigit = errors.New("bitmap: invalid hex digit")
	ErrBufferTooShort  = errors.New("bitmap: buffer too short")
)

// Geometry is the visible area painted from the source bitmap.
type Geometry struct {
	Width  int
	Height int
}

// RowBytes is the source stride, ceil(Width/8).
func (g Geometry) RowBytes() int {
	return (g.Width + 7) / 8
}

// MinBytes is the smallest decoded source that covers the visible area.
func (g Geometry) MinBytes() int {
	return g.RowBytes() * g.Height
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// Transcoder decodes and paints source bitmaps for a fixed geometry. It keeps
// one decode buffer that is reused across calls. A Transcoder is not safe for
// concurrent use.
type Transcoder struct {
	geom    Geometry
	scratch []byte
}

// NewTranscoder returns a Transcoder for g.
func NewTranscoder(g Geometry) *Transcoder {
	return &Transcoder{geom: g}
}

// Geometry returns the geometry t paints.
func (t *Transcoder) Geometry() Geometry {
	return t.geom
}

// Transcode decodes hex and paints the top Height rows into dst at its
// origin. Nothing is written to dst unless the whole string decodes and
// covers the visible area.
func (t *Transcoder) Transcode(hex string, dst image1bit.Plotter) error {
	src, err := t.decode(hex)
	if err != nil {
		return err
	}
	return Paint(t.geom, src, dst)
}

// Release zeroes the decode buffer. Its capacity is kept.
func (t *Transcoder) Release() {
	clear(t.scratch[:cap(t.scratch)])
}

// HighWater returns the capacity of the decode buffer.
func (t *Transcoder) HighWater() int {
	return cap(t.scratch)
}

func (t *Transcoder) decode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, ErrOddHexLength
	}
	n := len(s) / 2
	if cap(t.scratch) < n {
		t.scratch = make([]byte, n)
	}
	out := t.scratch[:n]
	for i := range out {
		hi, ok1 := unhex(s[2*i])
		lo, ok2 := unhex(s[2*i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w at offset %d", ErrInvalidHexDigit, 2*i)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Paint writes the top g.Height rows of the packed source into dst. Pixel
// (x, y) is taken from byte y*RowBytes+x/8, bit 0x80>>(x%8). The length check
// happens before the first write.
func Paint(g Geometry, src []byte, dst image1bit.Plotter) error {
	if len(src) < g.MinBytes() {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrBufferTooShort, len(src), g.MinBytes())
	}
	origin := dst.Bounds().Min
	stride := g.RowBytes()
	for y := 0; y < g.Height; y++ {
		row := src[y*stride : (y+1)*stride]
		for x := 0; x < g.Width; x++ {
			bit := row[x/8]&(0x80>>uint(x%8)) != 0
			dst.SetBit(origin.X+x, origin.Y+y, image1bit.Bit(bit))
		}
	}
	return nil
}

// Bounds returns the rectangle Paint covers when dst starts at the origin.
func (g Geometry) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}
