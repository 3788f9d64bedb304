// Package epd2in13 controls a 2.13" V4 monochrome e-paper panel via SPI.
//
// The panel is driven by an SSD1680-class controller with a 122x250 portrait
// RAM. The driver presents the panel in landscape, 250x122, which is how the
// label is mounted.
//
// # Display Characteristics
//
// - 1-bit monochrome, 1=white, 0=black
// - 122x250 native RAM, 16 bytes per row (6 padding bits)
// - Full refresh only; the image persists with power off
// - Deep sleep between updates
//
// # Hardware Connection
//
//	Panel Pin → System Pin
//	VCC       → 3.3V
//	GND       → GND
//	DIN       → SPI Data (MOSI)
//	CLK       → SPI Clock (SCLK)
//	CS        → SPI Chip Select
//	DC        → GPIO (any available pin)
//	RST       → GPIO (optional but recommended)
//	BUSY      → GPIO input (optional, fixed delays are used otherwise)
//
// # Basic Usage
//
//	host.Init()
//	spiBus, _ := spireg.Open("")
//	dev, _ := epd2in13.NewSPI(spiBus, gpioreg.ByName("GPIO25"), &epd2in13.Opts{
//		RST:  gpioreg.ByName("GPIO17"),
//		Busy: gpioreg.ByName("GPIO24"),
//	})
//	defer dev.Halt()
//
//	fb := image1bit.NewVerticalLSB(dev.Bounds())
//	fb.Fill(image1bit.White)
//	fb.SetBit(10, 10, image1bit.Black)
//	dev.Display(fb)
//	dev.Sleep()
//
// # Update Cycle
//
// e-paper keeps its image without power, so the expected cycle is
// Init, Display, Sleep. A panel left awake for long periods can be damaged.
// After Sleep the controller only responds to a hardware reset, which Init
// performs.
//
// # Raw Writes
//
// Write accepts a native RAM image (4000 bytes) for callers that already hold
// the controller layout:
//
//	pixels := make([]byte, 16*250)
//	dev.Write(pixels) // all black
package epd2in13
