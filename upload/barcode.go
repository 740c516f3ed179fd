package upload

import (
	"fmt"
	"image"
	"image/color"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	pdf417 "github.com/ruudk/golang-pdf417"
	"golang.org/x/image/draw"

	stamper "github.com/jungcome7/pdf-stamper"
)

// GenerateQR renders text as a size x size QR code stamp.
func GenerateQR(text string, size int) (stamper.StampDefinition, error) {
	if text == "" || size <= 0 {
		return stamper.StampDefinition{}, stamper.NewError("GenerateQR", stamper.ErrInvalidParam)
	}
	code, err := qr.Encode(text, qr.M, qr.Auto)
	if err != nil {
		return stamper.StampDefinition{}, stamper.NewError("GenerateQR", err)
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return stamper.StampDefinition{}, stamper.NewError("GenerateQR", err)
	}
	return FromImage("qr", transparentWhite(scaled))
}

// GeneratePDF417 renders text as a PDF417 stamp with the given number of
// data columns, each module drawn module x 3*module pixels.
func GeneratePDF417(text string, columns, module int) (stamper.StampDefinition, error) {
	if text == "" || columns <= 0 || module <= 0 {
		return stamper.StampDefinition{}, stamper.NewError("GeneratePDF417", stamper.ErrInvalidParam)
	}
	code := pdf417.Encode(text, columns, 2)
	b := code.Bounds()
	if b.Empty() {
		return stamper.StampDefinition{}, stamper.NewError("GeneratePDF417",
			fmt.Errorf("%w: empty barcode", stamper.ErrInvalidParam))
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*module, b.Dy()*module*3))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), code, b, draw.Src, nil)
	return FromImage("pdf417", transparentWhite(dst))
}

// transparentWhite turns white pixels transparent so the stamp does not hide
// the page underneath.
func transparentWhite(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			if c.R == 0xff && c.G == 0xff && c.B == 0xff {
				c.A = 0
			}
			dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return dst
}
