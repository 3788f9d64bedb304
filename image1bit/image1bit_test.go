package image1bit

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func TestBitRGBA(t *testing.T) {
	tests := []struct {
		name string
		bit  Bit
		want uint32
	}{
		{"black", Black, 0x0000},
		{"white", White, 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b, a := tt.bit.RGBA()
			if r != tt.want || g != tt.want || b != tt.want || a != 0xFFFF {
				t.Errorf("RGBA() = (%x, %x, %x, %x), want (%x, %x, %x, %x)",
					r, g, b, a, tt.want, tt.want, tt.want, uint32(0xFFFF))
			}
		})
	}
}

func TestBitModelConvert(t *testing.T) {
	tests := []struct {
		name  string
		input color.Color
		want  Bit
	}{
		{"bit passthrough", White, White},
		{"black", color.Black, Black},
		{"white", color.White, White},
		{"threshold is exclusive", color.RGBA{0x80, 0x80, 0x80, 0xFF}, Black},
		{"just above threshold", color.RGBA{0x81, 0x81, 0x81, 0xFF}, White},
		{"dark red", color.RGBA{0xFF, 0x00, 0x00, 0xFF}, Black},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BitModel.Convert(tt.input).(Bit)
			if got != tt.want {
				t.Errorf("BitModel.Convert(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewHorizontalMSB(t *testing.T) {
	tests := []struct {
		name       string
		rect       image.Rectangle
		wantStride int
		wantPixLen int
	}{
		{"250x128 canvas", image.Rect(0, 0, 250, 128), 32, 32 * 128},
		{"8x1", image.Rect(0, 0, 8, 1), 1, 1},
		{"9x2", image.Rect(0, 0, 9, 2), 2, 4},
		{"offset rect", image.Rect(10, 20, 26, 22), 2, 4},
		{"empty", image.Rect(0, 0, 0, 4), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := NewHorizontalMSB(tt.rect)
			if img.Rect != tt.rect {
				t.Errorf("Rect = %v, want %v", img.Rect, tt.rect)
			}
			if img.Stride != tt.wantStride {
				t.Errorf("Stride = %d, want %d", img.Stride, tt.wantStride)
			}
			if len(img.Pix) != tt.wantPixLen {
				t.Errorf("len(Pix) = %d, want %d", len(img.Pix), tt.wantPixLen)
			}
		})
	}
}

func TestHorizontalMSBBitPacking(t *testing.T) {
	img := NewHorizontalMSB(image.Rect(0, 0, 16, 1))

	img.SetBit(0, 0, White)
	img.SetBit(7, 0, White)
	img.SetBit(9, 0, White)

	if img.Pix[0] != 0x81 {
		t.Errorf("Pix[0] = 0x%02X, want 0x81", img.Pix[0])
	}
	if img.Pix[1] != 0x40 {
		t.Errorf("Pix[1] = 0x%02X, want 0x40", img.Pix[1])
	}

	img.SetBit(0, 0, Black)
	if img.Pix[0] != 0x01 {
		t.Errorf("after clearing x=0, Pix[0] = 0x%02X, want 0x01", img.Pix[0])
	}
}

func TestNewVerticalLSB(t *testing.T) {
	tests := []struct {
		name       string
		rect       image.Rectangle
		wantStride int
		wantPixLen int
	}{
		{"250x122 panel", image.Rect(0, 0, 250, 122), 250, 250 * 16},
		{"4x8", image.Rect(0, 0, 4, 8), 4, 4},
		{"4x9", image.Rect(0, 0, 4, 9), 4, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := NewVerticalLSB(tt.rect)
			if img.Stride != tt.wantStride {
				t.Errorf("Stride = %d, want %d", img.Stride, tt.wantStride)
			}
			if len(img.Pix) != tt.wantPixLen {
				t.Errorf("len(Pix) = %d, want %d", len(img.Pix), tt.wantPixLen)
			}
		})
	}
}

func TestVerticalLSBBitPacking(t *testing.T) {
	img := NewVerticalLSB(image.Rect(0, 0, 2, 16))

	img.SetBit(0, 0, White)
	img.SetBit(0, 7, White)
	img.SetBit(1, 8, White)

	if img.Pix[0] != 0x81 {
		t.Errorf("Pix[0] = 0x%02X, want 0x81", img.Pix[0])
	}
	// Row 8 is bit 0 of the second page, column 1.
	if img.Pix[3] != 0x01 {
		t.Errorf("Pix[3] = 0x%02X, want 0x01", img.Pix[3])
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	rect := image.Rect(0, 0, 13, 11)
	images := map[string]interface {
		draw.Image
		Plotter
		BitAt(x, y int) Bit
	}{
		"HorizontalMSB": NewHorizontalMSB(rect),
		"VerticalLSB":   NewVerticalLSB(rect),
	}

	for name, img := range images {
		t.Run(name, func(t *testing.T) {
			for y := 0; y < rect.Dy(); y++ {
				for x := 0; x < rect.Dx(); x++ {
					img.SetBit(x, y, Bit((x*7+y*3)%5 == 0))
				}
			}
			for y := 0; y < rect.Dy(); y++ {
				for x := 0; x < rect.Dx(); x++ {
					want := Bit((x*7+y*3)%5 == 0)
					if got := img.BitAt(x, y); got != want {
						t.Errorf("BitAt(%d, %d) = %v, want %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestOutOfBounds(t *testing.T) {
	img := NewVerticalLSB(image.Rect(0, 0, 4, 4))
	img.Fill(White)

	if got := img.BitAt(-1, 0); got != Black {
		t.Errorf("BitAt(-1, 0) = %v, want Black (out of bounds)", got)
	}
	if got := img.BitAt(4, 0); got != Black {
		t.Errorf("BitAt(4, 0) = %v, want Black (out of bounds)", got)
	}

	// Out of bounds writes must not touch the buffer.
	img.SetBit(-1, 0, Black)
	img.SetBit(0, 4, Black)
	for i, b := range img.Pix {
		if b != 0xFF {
			t.Errorf("Pix[%d] = 0x%02X, want 0xFF", i, b)
		}
	}
}

func TestOffsetRect(t *testing.T) {
	rect := image.Rect(100, 50, 108, 58)
	img := NewHorizontalMSB(rect)

	img.SetBit(100, 50, White)
	if img.Pix[0] != 0x80 {
		t.Errorf("Pix[0] = 0x%02X, want 0x80", img.Pix[0])
	}
	if got := img.BitAt(100, 50); got != White {
		t.Errorf("BitAt(100, 50) = %v, want White", got)
	}
}

func TestFill(t *testing.T) {
	img := NewHorizontalMSB(image.Rect(0, 0, 10, 2))
	img.Fill(White)
	for i, b := range img.Pix {
		if b != 0xFF {
			t.Errorf("Pix[%d] = 0x%02X after Fill(White), want 0xFF", i, b)
		}
	}
	img.Fill(Black)
	for i, b := range img.Pix {
		if b != 0x00 {
			t.Errorf("Pix[%d] = 0x%02X after Fill(Black), want 0x00", i, b)
		}
	}
}

func TestDrawInterop(t *testing.T) {
	img := NewVerticalLSB(image.Rect(0, 0, 8, 8))
	img.Fill(White)

	draw.Draw(img, image.Rect(2, 2, 4, 4), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := White
			if x >= 2 && x < 4 && y >= 2 && y < 4 {
				want = Black
			}
			if got := img.BitAt(x, y); got != want {
				t.Errorf("BitAt(%d, %d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestColorModel(t *testing.T) {
	if NewHorizontalMSB(image.Rect(0, 0, 8, 8)).ColorModel() != BitModel {
		t.Error("HorizontalMSB.ColorModel() did not return BitModel")
	}
	if NewVerticalLSB(image.Rect(0, 0, 8, 8)).ColorModel() != BitModel {
		t.Error("VerticalLSB.ColorModel() did not return BitModel")
	}
}
