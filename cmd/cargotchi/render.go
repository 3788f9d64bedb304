package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"rsc.io/qr"

	"github.com/leejongyoung/Cargotchi/image1bit"
	"github.com/leejongyoung/Cargotchi/internal/ap"
	"github.com/leejongyoung/Cargotchi/internal/bitmap"
	"github.com/leejongyoung/Cargotchi/internal/bootscreen"
	"github.com/leejongyoung/Cargotchi/internal/config"
	"github.com/leejongyoung/Cargotchi/internal/form"
	"github.com/leejongyoung/Cargotchi/internal/log"
	"github.com/leejongyoung/Cargotchi/internal/qroverlay"
)

func newRenderCmd(load settingsLoader) *cobra.Command {
	var (
		in   string
		out  string
		boot bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a posted bitmap or the boot screen to PNG",
		Long: "Render transcodes a hex bitmap, or a raw form body containing image_data=, " +
			"exactly as the server would and writes the panel frame as a PNG.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load()
			if err != nil {
				return err
			}
			fb := image1bit.NewVerticalLSB(image.Rect(0, 0, s.Panel.Width, s.Panel.Height))
			fb.Fill(image1bit.White)

			if boot {
				err = renderBoot(fb, s)
			} else {
				err = renderInput(fb, s, in, cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			return writePNG(out, fb)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "hex or form body file (- for stdin)")
	cmd.Flags().StringVarP(&out, "out", "o", "frame.png", "output PNG file")
	cmd.Flags().BoolVar(&boot, "boot", false, "render the boot screen instead of an input bitmap")
	return cmd
}

func renderInput(fb *image1bit.VerticalLSB, s config.Settings, path string, stdin io.Reader) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	text, err := form.DecodeBody(data)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if strings.Contains(text, form.ImageDataMarker) {
		if text, err = form.Extract(text, form.ImageDataMarker); err != nil {
			return err
		}
	}
	tr := bitmap.NewTranscoder(bitmap.Geometry{Width: s.Panel.Width, Height: s.Panel.Height})
	return tr.Transcode(text, fb)
}

func renderBoot(fb *image1bit.VerticalLSB, s config.Settings) error {
	creds, err := ap.NewCredentials(s.AP.SSIDPrefix, s.AP.Password)
	if err != nil {
		return err
	}
	ov := qroverlay.New(qroverlay.QREncoder{Level: qr.L}, log.WithComponent("qroverlay"))
	bootscreen.Compose(fb, bootscreen.Screen{Creds: creds, Addr: s.AP.Addr, QRBox: s.Panel.QRBox}, ov)
	return nil
}

// writePNG stores fb as a two-colour paletted PNG.
func writePNG(path string, fb *image1bit.VerticalLSB) error {
	img := image.NewPaletted(fb.Bounds(), color.Palette{color.Black, color.White})
	draw.Draw(img, img.Bounds(), fb, fb.Bounds().Min, draw.Src)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
