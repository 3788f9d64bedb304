// Package epd2in13 controls a 2.13" V4 e-paper panel via SPI.
//
// The panel is 122x250 pixels in its native portrait orientation. This driver
// exposes it in landscape (250x122) and accepts image1bit.VerticalLSB
// framebuffers, converting them to the controller's RAM layout on Display.
//
// See the examples for how to use this package.
package epd2in13

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/leejongyoung/Cargotchi/image1bit"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Native controller geometry.
const (
	nativeWidth  = 122
	nativeHeight = 250
	nativeStride = (nativeWidth + 7) / 8 // 16 bytes, last 6 bits unused
)

// Landscape geometry exposed to callers.
const (
	Width  = nativeHeight
	Height = nativeWidth
)

var (
	errHalted      = errors.New("epd2in13: halted")
	ErrBusyTimeout = errors.New("epd2in13: busy timeout")
)

// Opts is the configuration for the panel.
type Opts struct {
	// 180° rotation of the landscape image
	Rotated bool

	// Optional pins
	RST  gpio.PinIO // Reset pin (nil if not used)
	Busy gpio.PinIn // Busy pin (nil falls back to fixed delays)

	// BusyTimeout bounds every busy wait (default: 10s)
	BusyTimeout time.Duration
}

// Dev is the device handle for the panel.
type Dev struct {
	// Communication
	c    conn.Conn   // SPI connection
	dc   gpio.PinOut // Data/Command pin
	rst  gpio.PinIO  // Reset pin (optional)
	busy gpio.PinIn  // Busy pin (optional)

	// Display geometry
	rect    image.Rectangle // Landscape bounds
	rotated bool

	// Native RAM image, nativeStride*nativeHeight bytes
	buffer []byte

	busyTimeout time.Duration

	// State
	halted bool
}

// NewSPI creates a new panel device connected via SPI.
//
// The SPI port is configured for 4MHz, Mode0, 8-bit transfers.
// The dc (Data/Command) GPIO pin must be provided and configured as an output.
//
// opts can be nil to use defaults. NewSPI runs the initialization sequence, so
// the panel is awake and ready for Display when it returns.
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if dc == nil {
		return nil, errors.New("epd2in13: dc pin is required")
	}

	c, err := p.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epd2in13: failed to connect SPI: %w", err)
	}

	if opts.Busy != nil {
		if err := opts.Busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("epd2in13: failed to configure BUSY: %w", err)
		}
	}

	d := newDev(c, dc, opts)
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

func newDev(c conn.Conn, dc gpio.PinOut, opts *Opts) *Dev {
	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dev{
		c:           c,
		dc:          dc,
		rst:         opts.RST,
		busy:        opts.Busy,
		rect:        image.Rect(0, 0, Width, Height),
		rotated:     opts.Rotated,
		buffer:      make([]byte, nativeStride*nativeHeight),
		busyTimeout: timeout,
	}
}

// Init wakes the panel and sends the initialization sequence.
//
// It must be called again after Sleep before the next Display.
func (d *Dev) Init() error {
	if d.halted {
		return errHalted
	}

	if err := d.reset(); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}
	if err := d.command(0x12); err != nil { // Software reset
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{0x01, []byte{byte((nativeHeight - 1) & 0xFF), byte((nativeHeight - 1) >> 8), 0x00}}, // Driver output control
		{0x11, []byte{0x03}}, // Data entry mode: X and Y increment
		{0x44, []byte{0x00, byte((nativeWidth - 1) >> 3)}},                                         // RAM X window
		{0x45, []byte{0x00, 0x00, byte((nativeHeight - 1) & 0xFF), byte((nativeHeight - 1) >> 8)}}, // RAM Y window
		{0x3C, []byte{0x05}},       // Border waveform
		{0x21, []byte{0x00, 0x80}}, // Display update control
		{0x18, []byte{0x80}},       // Internal temperature sensor
	}
	for _, s := range steps {
		if err := d.command(s.cmd, s.data...); err != nil {
			return err
		}
	}
	if err := d.setCursor(0, 0); err != nil {
		return err
	}
	return d.waitBusy()
}

// reset performs the hardware reset sequence, if a reset pin is wired.
func (d *Dev) reset() error {
	if d.rst == nil {
		return nil
	}
	seq := []struct {
		level gpio.Level
		hold  time.Duration
	}{
		{gpio.High, 20 * time.Millisecond},
		{gpio.Low, 2 * time.Millisecond},
		{gpio.High, 20 * time.Millisecond},
	}
	for _, s := range seq {
		if err := d.rst.Out(s.level); err != nil {
			return fmt.Errorf("epd2in13: failed to drive RST %s: %w", s.level, err)
		}
		time.Sleep(s.hold)
	}
	return nil
}

// waitBusy blocks while the controller reports busy.
func (d *Dev) waitBusy() error {
	if d.busy == nil {
		time.Sleep(10 * time.Millisecond)
		return nil
	}
	deadline := time.Now().Add(d.busyTimeout)
	for d.busy.Read() == gpio.High {
		if time.Now().After(deadline) {
			return ErrBusyTimeout
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// command sends a command byte followed by its optional data bytes.
func (d *Dev) command(cmd byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return d.sendData(data)
}

// sendData sends a slice of data bytes.
func (d *Dev) sendData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	return d.c.Tx(data, nil)
}

func (d *Dev) setCursor(x, y int) error {
	if err := d.command(0x4E, byte(x&0xFF)); err != nil {
		return err
	}
	return d.command(0x4F, byte(y&0xFF), byte(y>>8))
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the landscape bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Display converts fb to the native layout, writes it to panel RAM and runs a
// full refresh. fb must cover exactly Bounds().
func (d *Dev) Display(fb *image1bit.VerticalLSB) error {
	if d.halted {
		return errHalted
	}
	if fb == nil || fb.Rect != d.rect {
		return errors.New("epd2in13: framebuffer bounds mismatch")
	}
	d.pack(fb)
	return d.writeFullFrame(d.buffer)
}

// Write writes raw native RAM data (16 bytes per row, 250 rows, MSB-first,
// 1=white) and refreshes the panel.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, errHalted
	}
	if len(pixels) != len(d.buffer) {
		return 0, errors.New("epd2in13: invalid buffer size")
	}
	if err := d.writeFullFrame(pixels); err != nil {
		return 0, err
	}
	copy(d.buffer, pixels)
	return len(pixels), nil
}

// Clear paints the whole panel white.
func (d *Dev) Clear() error {
	if d.halted {
		return errHalted
	}
	for i := range d.buffer {
		d.buffer[i] = 0xFF
	}
	return d.writeFullFrame(d.buffer)
}

// pack renders fb into the native RAM buffer.
func (d *Dev) pack(fb *image1bit.VerticalLSB) {
	for i := range d.buffer {
		d.buffer[i] = 0xFF
	}
	for ly := 0; ly < d.rect.Dy(); ly++ {
		for lx := 0; lx < d.rect.Dx(); lx++ {
			if fb.BitAt(lx, ly) {
				continue
			}
			nx, ny := d.toNative(lx, ly)
			d.buffer[ny*nativeStride+nx/8] &^= 0x80 >> uint(nx%8)
		}
	}
}

// toNative maps a landscape coordinate to the native portrait RAM coordinate.
// Landscape x runs down the native rows from the bottom; landscape y runs
// along the native columns.
func (d *Dev) toNative(lx, ly int) (nx, ny int) {
	if d.rotated {
		return nativeWidth - 1 - ly, lx
	}
	return ly, nativeHeight - 1 - lx
}

// writeFullFrame writes pixels to RAM and triggers a full refresh.
func (d *Dev) writeFullFrame(pixels []byte) error {
	if err := d.setCursor(0, 0); err != nil {
		return err
	}
	if err := d.command(0x24, pixels...); err != nil {
		return err
	}
	if err := d.command(0x22, 0xF7); err != nil { // Full update sequence
		return err
	}
	if err := d.command(0x20); err != nil { // Master activation
		return err
	}
	return d.waitBusy()
}

// Sleep puts the panel into deep sleep. The image stays on the glass.
// Init must be called before the next Display.
func (d *Dev) Sleep() error {
	if d.halted {
		return errHalted
	}
	return d.command(0x10, 0x01)
}

// Halt puts the panel to sleep and rejects further operations.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	err := d.command(0x10, 0x01)
	d.halted = true
	return err
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("epd2in13.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}
