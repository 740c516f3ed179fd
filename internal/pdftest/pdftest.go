// Package pdftest builds small PDF and PNG fixtures for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jungcome7/pdf-stamper/coords"
)

// Letter is US Letter in points.
var Letter = coords.Size{W: 612, H: 792}

// Document returns a PDF with one page per size, each labelled with its page
// number.
func Document(t testing.TB, sizes ...coords.Size) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 14)
	for i, size := range sizes {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: size.W, Ht: size.H})
		pdf.Text(40, 60, fmt.Sprintf("Page %d of %d", i+1, len(sizes)))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("creating test PDF: %v", err)
	}
	return buf.Bytes()
}

// Pages returns a PDF of n US Letter pages.
func Pages(t testing.TB, n int) []byte {
	t.Helper()
	sizes := make([]coords.Size, n)
	for i := range sizes {
		sizes[i] = Letter
	}
	return Document(t, sizes...)
}

// Linked returns a one-page US Letter PDF with a document title and a URI
// link annotation.
func Linked(t testing.TB, title, uri string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle(title, false)
	pdf.SetFont("Helvetica", "", 14)
	pdf.AddPage()
	pdf.Text(40, 60, "Linked page")
	pdf.LinkString(40, 80, 200, 20, uri)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("creating linked test PDF: %v", err)
	}
	return buf.Bytes()
}

// Optimized rewrites doc with pdfcpu, which stores objects in compressed
// object streams behind a cross-reference stream.
func Optimized(t testing.TB, doc []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(doc), &buf, config()); err != nil {
		t.Fatalf("optimizing test PDF: %v", err)
	}
	return buf.Bytes()
}

// Rotated sets /Rotate on every page of doc to degrees clockwise.
func Rotated(t testing.TB, doc []byte, degrees int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := api.Rotate(bytes.NewReader(doc), &buf, degrees, nil, config()); err != nil {
		t.Fatalf("rotating test PDF: %v", err)
	}
	return buf.Bytes()
}

func config() *model.Configuration {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PNG returns a w x h PNG filled with c and a transparent one-pixel border.
func PNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	return buf.Bytes()
}

// Red is a convenience stamp colour.
var Red = color.NRGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}
