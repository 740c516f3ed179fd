// Package raster turns document pages into preview images.
//
// Real page rendering is delegated to a Rasterizer. The package ships
// Outline, which renders each page as a blank sheet of the correct size and
// is enough to position stamps on.
package raster

import (
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/pdfinfo"
)

// Rasterizer renders pages of a document. Implementations must be safe for
// concurrent use.
type Rasterizer interface {
	PageCount(doc []byte) (int, error)
	// Render draws page (1-based) at scale pixels per point.
	Render(ctx context.Context, doc []byte, page int, scale float64) (image.Image, error)
}

// Outline renders pages as blank sheets with a hairline border. The page
// inventory of the most recent document is kept, so rendering every page of
// one document parses it once.
type Outline struct {
	Paper  color.Color
	Border color.Color

	inspect func([]byte) (*pdfinfo.Inventory, error)

	mu   sync.Mutex
	last *inventory
}

type inventory struct {
	sum  [sha256.Size]byte
	once sync.Once
	inv  *pdfinfo.Inventory
	err  error
}

// NewOutline returns an Outline with white paper and a grey border.
func NewOutline() *Outline {
	return &Outline{
		Paper:   color.White,
		Border:  color.Gray{Y: 0xbd},
		inspect: pdfinfo.Inspect,
	}
}

// inventory returns the page inventory of doc. Concurrent callers with the
// same document share one parse.
func (o *Outline) inventory(doc []byte) (*pdfinfo.Inventory, error) {
	sum := sha256.Sum256(doc)
	o.mu.Lock()
	entry := o.last
	if entry == nil || entry.sum != sum {
		entry = &inventory{sum: sum}
		o.last = entry
	}
	o.mu.Unlock()

	entry.once.Do(func() {
		inspect := o.inspect
		if inspect == nil {
			inspect = pdfinfo.Inspect
		}
		entry.inv, entry.err = inspect(doc)
	})
	return entry.inv, entry.err
}

// PageCount implements Rasterizer.
func (o *Outline) PageCount(doc []byte) (int, error) {
	inv, err := o.inventory(doc)
	if err != nil {
		return 0, err
	}
	return inv.PageCount(), nil
}

// Render implements Rasterizer.
func (o *Outline) Render(ctx context.Context, doc []byte, page int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fmt.Errorf("raster: %w: scale %g", stamper.ErrInvalidParam, scale)
	}
	inv, err := o.inventory(doc)
	if err != nil {
		return nil, err
	}
	size, err := inv.Size(page)
	if err != nil {
		return nil, err
	}
	w := max(1, int(math.Round(size.W*scale)))
	h := max(1, int(math.Round(size.H*scale)))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(o.Border), image.Point{}, draw.Src)
	if w > 2 && h > 2 {
		draw.Draw(img, image.Rect(1, 1, w-1, h-1), image.NewUniform(o.Paper), image.Point{}, draw.Src)
	}
	return img, nil
}

// Result is one rasterized page delivered by Preload.
type Result struct {
	Page  int
	Image image.Image
	Err   error
}

// Preload renders every page of doc concurrently, one goroutine per page,
// and hands each result to sink as it finishes. sink may be called from
// several goroutines at once. Preload returns once all pages are done.
func Preload(ctx context.Context, r Rasterizer, doc []byte, scale float64, sink func(Result)) error {
	n, err := r.PageCount(doc)
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	for page := 1; page <= n; page++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := r.Render(ctx, doc, page, scale)
			sink(Result{Page: page, Image: img, Err: err})
		}()
	}
	wg.Wait()
	return ctx.Err()
}
