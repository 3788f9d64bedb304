// Package panel abstracts the e-paper display the server paints to.
package panel

import (
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/leejongyoung/Cargotchi/image1bit"
)

// Panel is a 1-bit display refreshed one full frame at a time.
// *epd2in13.Dev implements it.
type Panel interface {
	Bounds() image.Rectangle
	Init() error
	Display(fb *image1bit.VerticalLSB) error
	Sleep() error
}

// NewFrame returns a white framebuffer matching p.
func NewFrame(p Panel) *image1bit.VerticalLSB {
	fb := image1bit.NewVerticalLSB(p.Bounds())
	fb.Fill(image1bit.White)
	return fb
}

// Present wakes p, shows fb and puts p back to sleep. Sleep is attempted
// even when an earlier step fails, and its error is joined with theirs.
func Present(p Panel, fb *image1bit.VerticalLSB) error {
	var err error
	if err = p.Init(); err != nil {
		err = fmt.Errorf("panel init: %w", err)
	} else if err = p.Display(fb); err != nil {
		err = fmt.Errorf("panel display: %w", err)
	}
	if serr := p.Sleep(); serr != nil {
		err = errors.Join(err, fmt.Errorf("panel sleep: %w", serr))
	}
	return err
}

// Stub is a Panel without hardware. It logs each refresh and keeps the last
// frame shown.
type Stub struct {
	rect image.Rectangle
	log  zerolog.Logger
	last *image1bit.VerticalLSB
}

// NewStub returns a Stub with the given bounds.
func NewStub(rect image.Rectangle, log zerolog.Logger) *Stub {
	return &Stub{rect: rect, log: log}
}

func (s *Stub) Bounds() image.Rectangle { return s.rect }

func (s *Stub) Init() error {
	s.log.Debug().Msg("panel init")
	return nil
}

func (s *Stub) Display(fb *image1bit.VerticalLSB) error {
	if fb.Bounds() != s.rect {
		return fmt.Errorf("panel: framebuffer bounds %v, want %v", fb.Bounds(), s.rect)
	}
	s.last = &image1bit.VerticalLSB{
		Pix:    append([]byte(nil), fb.Pix...),
		Stride: fb.Stride,
		Rect:   fb.Rect,
	}
	s.log.Info().Int("bytes", len(fb.Pix)).Msg("panel display")
	return nil
}

func (s *Stub) Sleep() error {
	s.log.Debug().Msg("panel sleep")
	return nil
}

// Last returns a copy of the most recently displayed frame, or nil.
func (s *Stub) Last() *image1bit.VerticalLSB {
	return s.last
}
