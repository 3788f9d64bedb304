package main

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/leejongyoung/Cargotchi/epd2in13"
	"github.com/leejongyoung/Cargotchi/internal/config"
	"github.com/leejongyoung/Cargotchi/internal/panel"
)

// openPanel returns the e-paper panel described by s, or a Stub when
// noPanel is set. The returned func releases the hardware.
func openPanel(s config.PanelSettings, noPanel bool, logger zerolog.Logger) (panel.Panel, func(), error) {
	if noPanel {
		return panel.NewStub(image.Rect(0, 0, s.Width, s.Height), logger), func() {}, nil
	}
	if s.Width != epd2in13.Width || s.Height != epd2in13.Height {
		return nil, nil, fmt.Errorf("panel %dx%d does not match the %dx%d e-paper driver", s.Width, s.Height, epd2in13.Width, epd2in13.Height)
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("initialize periph.io: %w", err)
	}
	bus, err := spireg.Open(s.SPI)
	if err != nil {
		return nil, nil, fmt.Errorf("open SPI bus: %w", err)
	}

	dc := gpioreg.ByName(s.DC)
	if dc == nil {
		bus.Close()
		return nil, nil, fmt.Errorf("GPIO pin %q not found", s.DC)
	}
	opts := &epd2in13.Opts{Rotated: s.Rotated}
	if s.RST != "" {
		if opts.RST = gpioreg.ByName(s.RST); opts.RST == nil {
			bus.Close()
			return nil, nil, fmt.Errorf("GPIO pin %q not found", s.RST)
		}
	}
	if s.Busy != "" {
		if opts.Busy = gpioreg.ByName(s.Busy); opts.Busy == nil {
			bus.Close()
			return nil, nil, fmt.Errorf("GPIO pin %q not found", s.Busy)
		}
	}

	dev, err := epd2in13.NewSPI(bus, dc, opts)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	logger.Info().Stringer("dev", dev).Msg("panel ready")
	return dev, func() {
		if err := dev.Halt(); err != nil {
			logger.Warn().Err(err).Msg("halt panel")
		}
		bus.Close()
	}, nil
}
