// Package upload validates user-supplied files and turns stamp images into
// the embeddable form the rest of the engine works with.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	stamper "github.com/jungcome7/pdf-stamper"
)

const (
	pdfMediaType = "application/pdf"
	pngMediaType = "image/png"
	pdfExt       = ".pdf"
	pngExt       = ".png"

	// maxStampPixels bounds decoded stamp images (4096x4096).
	maxStampPixels = 1 << 24
)

// File is a named upload.
type File struct {
	Name string
	Data []byte
}

// ValidateDocument accepts a PDF by extension or sniffed media type.
func ValidateDocument(name string, data []byte) error {
	if len(data) == 0 {
		return stamper.NewError("ValidateDocument", fmt.Errorf("%w: %s is empty", stamper.ErrInvalidFileType, name))
	}
	if strings.EqualFold(filepath.Ext(name), pdfExt) || sniff(data) == pdfMediaType {
		return nil
	}
	return stamper.NewError("ValidateDocument",
		fmt.Errorf("%w: %s is not a PDF", stamper.ErrInvalidFileType, name))
}

// Stamp validates a PNG upload and normalizes it into an 8-bit RGBA PNG
// definition with a fresh id.
func Stamp(name string, data []byte) (stamper.StampDefinition, error) {
	if !strings.EqualFold(filepath.Ext(name), pngExt) && sniff(data) != pngMediaType {
		return stamper.StampDefinition{}, stamper.NewError("Stamp",
			fmt.Errorf("%w: %s is not a PNG", stamper.ErrInvalidFileType, name))
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return stamper.StampDefinition{}, stamper.NewError("Stamp",
			fmt.Errorf("%w: %s: %v", stamper.ErrDecode, name, err))
	}
	return FromImage(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), img)
}

// FromImage builds a definition from an already decoded image.
func FromImage(name string, img image.Image) (stamper.StampDefinition, error) {
	b := img.Bounds()
	if b.Empty() {
		return stamper.StampDefinition{}, stamper.NewError("FromImage",
			fmt.Errorf("%w: empty image", stamper.ErrInvalidParam))
	}
	if b.Dx()*b.Dy() > maxStampPixels {
		return stamper.StampDefinition{}, stamper.NewError("FromImage",
			fmt.Errorf("%w: image %dx%d is too large", stamper.ErrInvalidParam, b.Dx(), b.Dy()))
	}
	data, err := Normalize(img)
	if err != nil {
		return stamper.StampDefinition{}, stamper.NewError("FromImage", err)
	}
	return stamper.StampDefinition{
		ID:     uuid.New().String(),
		Name:   name,
		Image:  data,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// Normalize re-encodes img as a non-interlaced 8-bit NRGBA PNG, a form every
// downstream consumer (the PDF writer included) accepts.
func Normalize(img image.Image) ([]byte, error) {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("upload: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// Stamps processes a batch of uploads when free library slots remain. Files
// beyond the free slots are rejected with ErrCapacity; invalid files are
// rejected individually while the rest are accepted.
func Stamps(files []File, free int) ([]stamper.StampDefinition, []error) {
	var (
		defs []stamper.StampDefinition
		errs []error
	)
	if free <= 0 {
		return nil, []error{stamper.NewError("Stamps", stamper.ErrCapacity)}
	}
	for i, f := range files {
		if i >= free {
			errs = append(errs, stamper.NewError("Stamps",
				fmt.Errorf("%w: %s was not added", stamper.ErrCapacity, f.Name)))
			continue
		}
		def, err := Stamp(f.Name, f.Data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, errs
}

// OutputName derives the export file name from the original document name:
// prefix + base name + timestamp, keeping the original extension.
func OutputName(original, prefix string, t time.Time) string {
	base := filepath.Base(original)
	if base == "." || base == string(filepath.Separator) || original == "" {
		base = "document" + pdfExt
	}
	ext := filepath.Ext(base)
	if ext == "" {
		ext = pdfExt
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s%s_%s%s", prefix, stem, t.Format("20060102-150405"), ext)
}

// IsRejected reports whether err is an input validation or capacity failure,
// the two kinds surfaced to the user without a state change.
func IsRejected(err error) bool {
	return errors.Is(err, stamper.ErrInvalidFileType) || errors.Is(err, stamper.ErrCapacity)
}

func sniff(data []byte) string {
	mt := http.DetectContentType(data)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}
