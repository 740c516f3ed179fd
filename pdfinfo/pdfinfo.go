// Package pdfinfo reports the page inventory of a PDF: how many pages it has
// and the native size of each one, in PDF points.
package pdfinfo

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/coords"
)

// A4 in points, used when a page reports no usable size.
var A4 = coords.Size{W: 595.28, H: 841.89}

var disableConfigDir sync.Once

// Config returns the pdfcpu configuration every package reads documents
// with: relaxed validation and no configuration directory.
func Config() *model.Configuration {
	// pdfcpu otherwise creates a configuration directory under $HOME.
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Inventory lists the native size of every page, indexed from page 1.
type Inventory struct {
	sizes []coords.Size
}

// Inspect parses data and returns its page inventory. Malformed input is
// reported as stamper.ErrCorrupted.
func Inspect(data []byte) (*Inventory, error) {
	if len(data) == 0 {
		return nil, stamper.ErrNoDocument
	}
	dims, err := api.PageDims(bytes.NewReader(data), Config())
	if err != nil {
		return nil, fmt.Errorf("pdfinfo: %w: %v", stamper.ErrCorrupted, err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("pdfinfo: %w: document has no pages", stamper.ErrCorrupted)
	}

	inv := &Inventory{sizes: make([]coords.Size, len(dims))}
	for i, d := range dims {
		size := coords.Size{W: d.Width, H: d.Height}
		if size.W <= 0 || size.H <= 0 {
			size = A4
		}
		inv.sizes[i] = size
	}
	return inv, nil
}

// PageCount returns the number of pages.
func (inv *Inventory) PageCount() int {
	return len(inv.sizes)
}

// Size returns the native size of page n (1-based).
func (inv *Inventory) Size(n int) (coords.Size, error) {
	if n < 1 || n > len(inv.sizes) {
		return coords.Size{}, fmt.Errorf("pdfinfo: %w: %d of %d", stamper.ErrInvalidPage, n, len(inv.sizes))
	}
	return inv.sizes[n-1], nil
}

// Sizes returns a copy of every page size in page order.
func (inv *Inventory) Sizes() []coords.Size {
	out := make([]coords.Size, len(inv.sizes))
	copy(out, inv.sizes)
	return out
}
