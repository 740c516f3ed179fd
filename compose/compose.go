// Package compose bakes placed stamps into a PDF.
//
// The source document is edited in place: each stamp becomes an image
// XObject registered in its page's resources and drawn by an extra content
// stream appended after the page's own content. Everything else in the
// document (annotations, metadata, outlines, form fields) is written back
// unchanged. Pages without stamps are not touched.
package compose

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/coords"
	"github.com/jungcome7/pdf-stamper/pdfinfo"
)

// Skip records an instance that could not be drawn.
type Skip struct {
	InstanceID string
	Page       int
	Err        error
}

// Result is a finished export.
type Result struct {
	Data    []byte
	Pages   int
	Placed  int
	Skipped []Skip
	// OffPage lists drawn instances whose rectangle lies entirely outside
	// their page.
	OffPage []string
}

// Compositor produces stamped documents. It holds no per-export state and
// may be shared.
type Compositor struct {
	log stamper.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithLogger sets the logger for skipped and off-page stamps.
func WithLogger(l stamper.Logger) Option {
	return func(c *Compositor) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Compositor.
func New(opts ...Option) *Compositor {
	c := &Compositor{log: stamper.NopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Export draws instances onto doc. Positions are read in surface space of
// the given size and mapped onto each page independently, as the page is
// displayed (after its /Rotate entry is applied).
//
// Failures of a single stamp are recorded in Result.Skipped and the export
// continues. A document that cannot be loaded or written fails the whole
// export and no data is returned.
func (c *Compositor) Export(ctx context.Context, doc []byte, instances []stamper.StampInstance, surface coords.Size) (res *Result, err error) {
	if len(doc) == 0 {
		return nil, stamper.NewError("Export", stamper.ErrNoDocument)
	}
	if surface.W <= 0 || surface.H <= 0 {
		return nil, stamper.NewError("Export", fmt.Errorf("%w: surface %gx%g", stamper.ErrInvalidParam, surface.W, surface.H))
	}

	// pdfcpu panics on some malformed structures.
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = stamper.NewError("Export", fmt.Errorf("%w: %v", stamper.ErrCorrupted, r))
		}
	}()

	pdf, err := api.ReadAndValidate(bytes.NewReader(doc), pdfinfo.Config())
	if err != nil {
		return nil, stamper.NewError("Export", fmt.Errorf("%w: %v", stamper.ErrCorrupted, err))
	}
	if pdf.PageCount == 0 {
		return nil, stamper.NewError("Export", fmt.Errorf("%w: document has no pages", stamper.ErrCorrupted))
	}

	byPage := make(map[int][]stamper.StampInstance)
	res = &Result{Pages: pdf.PageCount}
	for _, inst := range instances {
		if inst.Page < 1 || inst.Page > pdf.PageCount {
			res.skip(c.log, inst, fmt.Errorf("%w: %d of %d", stamper.ErrInvalidPage, inst.Page, pdf.PageCount))
			continue
		}
		byPage[inst.Page] = append(byPage[inst.Page], inst)
	}

	images := make(map[string]stampImage)
	for n := 1; n <= pdf.PageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, stamper.NewError("Export", err)
		}
		if len(byPage[n]) == 0 {
			continue
		}
		if err := c.stampPage(pdf, n, byPage[n], surface, images, res); err != nil {
			return nil, stamper.NewError("Export", fmt.Errorf("%w: page %d: %v", stamper.ErrCorrupted, n, err))
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(pdf, &buf); err != nil {
		return nil, stamper.NewError("Export", fmt.Errorf("%w: %v", stamper.ErrCorrupted, err))
	}
	res.Data = buf.Bytes()
	c.log.Info("document exported",
		stamper.Int("pages", res.Pages),
		stamper.Int("placed", res.Placed),
		stamper.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (r *Result) skip(log stamper.Logger, inst stamper.StampInstance, err error) {
	log.Warn("skipping stamp", stamper.String("instance", inst.ID), stamper.Int("page", inst.Page), stamper.Err(err))
	r.Skipped = append(r.Skipped, Skip{InstanceID: inst.ID, Page: inst.Page, Err: err})
}

// stampPage draws instances on page n. Only errors in the page structure
// itself are returned; a stamp that cannot be embedded is skipped.
func (c *Compositor) stampPage(pdf *model.Context, n int, instances []stamper.StampInstance, surface coords.Size, images map[string]stampImage, res *Result) error {
	page, _, attrs, err := pdf.PageDict(n, false)
	if err != nil {
		return err
	}
	if page == nil || attrs == nil {
		return errors.New("missing page dictionary")
	}

	box := mediaBox(attrs.MediaBox)
	displayed := coords.DisplaySize(attrs.Rotate, box)
	mapping, err := coords.NewMapping(displayed, surface)
	if err != nil {
		return err
	}
	toUser := coords.DisplayToUser(attrs.Rotate, box)

	resources, xobjects, err := pageXObjects(pdf, attrs.Resources)
	if err != nil {
		return err
	}

	var ops strings.Builder
	ops.WriteString("\nQ\n")
	drawn := 0
	for _, inst := range instances {
		img, err := embed(pdf, images, inst.Image)
		if err != nil {
			res.skip(c.log, inst, err)
			continue
		}
		rect := mapping.PageRect(coords.Point{X: inst.X, Y: inst.Y}, inst.ScaleX, inst.ScaleY, img.size)
		if !rect.Overlaps(displayed) {
			c.log.Warn("stamp lies outside its page",
				stamper.String("instance", inst.ID), stamper.Int("page", n))
			res.OffPage = append(res.OffPage, inst.ID)
		}
		name := freeName(xobjects)
		xobjects.Insert(name, *img.ref)
		writeDraw(&ops, rect.Matrix().Multiply(toUser), name)
		drawn++
	}
	if drawn == 0 {
		return nil
	}

	resources.Update("XObject", xobjects)
	page.Update("Resources", resources)
	if err := wrapContents(pdf, page, ops.String()); err != nil {
		return err
	}
	res.Placed += drawn
	return nil
}

// mediaBox converts a pdfcpu rectangle, falling back to A4 at the origin
// when the page has no usable box.
func mediaBox(r *types.Rectangle) coords.Rect {
	if r == nil || r.Width() <= 0 || r.Height() <= 0 {
		return coords.Rect{W: pdfinfo.A4.W, H: pdfinfo.A4.H}
	}
	return coords.Rect{X: r.LL.X, Y: r.LL.Y, W: r.Width(), H: r.Height()}
}

// pageXObjects returns private copies of a page's resource dictionary and
// its XObject subdictionary. Resources are often shared between pages, so
// the copies are written back to the page alone.
func pageXObjects(pdf *model.Context, inherited types.Dict) (types.Dict, types.Dict, error) {
	resources := types.NewDict()
	if inherited != nil {
		resources = inherited.Clone().(types.Dict)
	}
	xobjects := types.NewDict()
	if o, ok := resources.Find("XObject"); ok {
		d, err := pdf.DereferenceDict(o)
		if err != nil {
			return nil, nil, err
		}
		if d != nil {
			xobjects = d.Clone().(types.Dict)
		}
	}
	return resources, xobjects, nil
}

func freeName(xobjects types.Dict) string {
	for i := 0; ; i++ {
		name := "Stamp" + strconv.Itoa(i)
		if _, taken := xobjects.Find(name); !taken {
			return name
		}
	}
}

func writeDraw(b *strings.Builder, m coords.Matrix, name string) {
	b.WriteString("q ")
	for _, v := range m {
		b.WriteString(num(v))
		b.WriteByte(' ')
	}
	fmt.Fprintf(b, "cm /%s Do Q\n", name)
}

// num formats v for a content stream with at most four decimals.
func num(v float64) string {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		r = 0 // drop the sign of negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// wrapContents brackets the page's existing content in q/Q and appends ops,
// so the stamps are drawn with the default graphics state on top of the
// page. Existing content streams are referenced, never rewritten.
func wrapContents(pdf *model.Context, page types.Dict, ops string) error {
	var existing types.Array
	if o, ok := page.Find("Contents"); ok && o != nil {
		d, err := pdf.Dereference(o)
		if err != nil {
			return err
		}
		switch d := d.(type) {
		case types.Array:
			existing = d
		case types.StreamDict:
			existing = types.Array{o}
		case nil:
		default:
			return fmt.Errorf("page content is %T", d)
		}
	}

	open, err := contentStream(pdf, "q\n")
	if err != nil {
		return err
	}
	stamps, err := contentStream(pdf, ops)
	if err != nil {
		return err
	}
	contents := make(types.Array, 0, len(existing)+2)
	contents = append(contents, *open)
	contents = append(contents, existing...)
	contents = append(contents, *stamps)
	page.Update("Contents", contents)
	return nil
}

func contentStream(pdf *model.Context, s string) (*types.IndirectRef, error) {
	sd, err := pdf.NewStreamDictForBuf([]byte(s))
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return pdf.IndRefForNewObject(*sd)
}

type stampImage struct {
	ref  *types.IndirectRef
	size coords.Size
}

// embed adds stamp bytes to the document once per distinct content. The
// image is re-encoded as 8-bit NRGBA so pdfcpu sees a single PNG variant and
// keeps its transparency as a soft mask.
func embed(pdf *model.Context, cache map[string]stampImage, data []byte) (stampImage, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	if img, ok := cache[key]; ok {
		return img, nil
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return stampImage{}, fmt.Errorf("%w: %v", stamper.ErrDecode, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return stampImage{}, fmt.Errorf("%w: empty image", stamper.ErrDecode)
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return stampImage{}, fmt.Errorf("%w: %v", stamper.ErrDecode, err)
	}

	ref, _, _, err := model.CreateImageResource(pdf.XRefTable, &buf, false, false)
	if err != nil {
		return stampImage{}, fmt.Errorf("%w: %v", stamper.ErrDecode, err)
	}
	img := stampImage{
		ref:  ref,
		size: coords.Size{W: float64(b.Dx()), H: float64(b.Dy())},
	}
	cache[key] = img
	return img, nil
}
