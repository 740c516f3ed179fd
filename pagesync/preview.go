package pagesync

import (
	"bytes"
	"image"
	"image/png"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/surface"
)

func newInstanceID() string {
	return uuid.New().String()
}

// renderPreview composites frame and returns it as a PNG data URL, resized
// by scale.
func renderPreview(frame surface.Frame, scale float64) (string, error) {
	img, err := frame.Render()
	if err != nil {
		return "", err
	}
	if scale > 0 && scale != 1 {
		b := img.Bounds()
		w := max(1, int(float64(b.Dx())*scale))
		h := max(1, int(float64(b.Dy())*scale))
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return stamper.DataURL("image/png", buf.Bytes()), nil
}
