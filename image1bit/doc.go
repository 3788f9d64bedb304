// Package image1bit provides 1-bit monochrome image formats for e-paper panels.
//
// Both layouts share the same bit semantics: a set bit is a white pixel and a
// clear bit is a black pixel. They differ only in how pixels are addressed.
//
// HorizontalMSB is the row-major layout produced by the browser canvas. Each
// row occupies ceil(width/8) bytes and the most significant bit of a byte is
// the leftmost pixel:
//
//	Pixels: 0 1 2 3 4 5 6 7 | 8 9 ...
//	Bits:   7 6 5 4 3 2 1 0 | 7 6 ...
//	Byte:   Pix[0]          | Pix[1]
//
// VerticalLSB is the landscape framebuffer layout of the panel. Rows are
// grouped into pages of 8; each byte is a vertical column of 8 pixels inside a
// page and the least significant bit is the top pixel:
//
//	Page 0: Pix[0] Pix[1] ... Pix[W-1]   (rows 0-7, bit 0 = row 0)
//	Page 1: Pix[W] ...                   (rows 8-15)
//
// Both types implement draw.Image, so standard library drawing (and font
// rendering) can target them directly:
//
//	fb := image1bit.NewVerticalLSB(image.Rect(0, 0, 250, 122))
//	fb.Fill(image1bit.White)
//	fb.SetBit(10, 20, image1bit.Black)
//	draw.Draw(fb, image.Rect(0, 0, 8, 8), image.Black, image.Point{}, draw.Src)
package image1bit
