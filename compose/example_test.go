package compose_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"codeberg.org/go-pdf/fpdf"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/compose"
	"github.com/jungcome7/pdf-stamper/coords"
)

// ExampleCompositor_Export stamps the second page of a two-page document.
func ExampleCompositor_Export() {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 14)
	for i := 1; i <= 2; i++ {
		pdf.AddPage()
		pdf.Text(40, 60, fmt.Sprintf("Page %d", i))
	}
	var doc bytes.Buffer
	if err := pdf.Output(&doc); err != nil {
		fmt.Println(err)
		return
	}

	seal := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 8; y < 56; y++ {
		for x := 8; x < 56; x++ {
			seal.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var stamp bytes.Buffer
	if err := png.Encode(&stamp, seal); err != nil {
		fmt.Println(err)
		return
	}

	surface := coords.Size{W: stamper.DefaultSurfaceWidth, H: stamper.DefaultSurfaceHeight}
	res, err := compose.New().Export(context.Background(), doc.Bytes(), []stamper.StampInstance{{
		ID: "seal-1", Page: 2, X: 420, Y: 630, ScaleX: 1, ScaleY: 1, Image: stamp.Bytes(),
	}}, surface)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("pages=%d placed=%d skipped=%d\n", res.Pages, res.Placed, len(res.Skipped))
	// Output:
	// pages=2 placed=1 skipped=0
}
