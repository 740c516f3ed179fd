// Package coords maps between the fixed-size editing surface and the native
// coordinate space of a PDF page.
//
// Surface space has its origin at the top-left corner with y growing down.
// Page space is measured in PDF points with the origin at the bottom-left
// corner and y growing up. Each axis is scaled independently, so a surface
// whose aspect ratio differs from the page's stretches stamps accordingly.
package coords

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerate is returned for zero or negative sizes.
var ErrDegenerate = errors.New("coords: degenerate size")

// Size is a width/height pair.
type Size struct {
	W, H float64
}

func (s Size) valid() bool {
	return s.W > 0 && s.H > 0 && !math.IsInf(s.W, 0) && !math.IsInf(s.H, 0)
}

// Point is a position in either space.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in page space. X and Y are the
// lower-left corner.
type Rect struct {
	X, Y, W, H float64
}

// Matrix returns the transform that maps the unit square onto r, which is
// how an image XObject is placed with the cm operator.
func (r Rect) Matrix() Matrix {
	return Matrix{r.W, 0, 0, r.H, r.X, r.Y}
}

// Overlaps reports whether any part of r lies on a page of the given size.
func (r Rect) Overlaps(page Size) bool {
	return r.X < page.W && r.X+r.W > 0 && r.Y < page.H && r.Y+r.H > 0
}

// Matrix is an affine transform [a b c d e f] mapping (x, y) to
// (a*x + c*y + e, b*x + d*y + f).
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns a scale by (sx, sy).
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Multiply returns m followed by o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Transform applies m to p.
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Inverse returns the inverse transform.
func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-12 {
		return Matrix{}, errors.New("coords: matrix is singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// DisplaySize returns the size a viewer shows for a page whose MediaBox is
// box and whose /Rotate entry is rotate.
func DisplaySize(rotate int, box Rect) Size {
	if normRotation(rotate)%180 != 0 {
		return Size{W: box.H, H: box.W}
	}
	return Size{W: box.W, H: box.H}
}

// DisplayToUser returns the transform from displayed page space, with the
// origin at the bottom-left of the page as a viewer shows it, into the
// unrotated user space of a page whose MediaBox is box and whose /Rotate
// entry is rotate degrees clockwise.
func DisplayToUser(rotate int, box Rect) Matrix {
	var m Matrix
	switch normRotation(rotate) {
	case 90:
		m = Matrix{0, 1, -1, 0, box.W, 0}
	case 180:
		m = Matrix{-1, 0, 0, -1, box.W, box.H}
	case 270:
		m = Matrix{0, -1, 1, 0, 0, box.H}
	default:
		m = Identity()
	}
	return m.Multiply(Translate(box.X, box.Y))
}

// normRotation folds rotate into 0, 90, 180 or 270. Values that are not a
// multiple of 90 are treated as 0, as viewers do.
func normRotation(rotate int) int {
	r := ((rotate % 360) + 360) % 360
	if r%90 != 0 {
		return 0
	}
	return r
}

// Placement is where a newly added stamp lands on the surface.
type Placement struct {
	Center Point
	Scale  float64 // uniform, applied to both axes
}

// PlaceOnAdd computes the initial placement of a stamp whose image is img
// pixels large. The stamp is scaled uniformly so that it fits inside
// footprint*surface on both axes, then centered margin*min(surface.W, surface.H)
// away from the surface's bottom-right corner.
func PlaceOnAdd(surface, img Size, footprint, margin float64) (Placement, error) {
	if !surface.valid() {
		return Placement{}, fmt.Errorf("%w: surface %gx%g", ErrDegenerate, surface.W, surface.H)
	}
	if !img.valid() {
		return Placement{}, fmt.Errorf("%w: image %gx%g", ErrDegenerate, img.W, img.H)
	}
	maxW := surface.W * footprint
	maxH := surface.H * footprint
	scale := math.Min(maxW/img.W, maxH/img.H)

	pad := math.Min(surface.W, surface.H) * margin
	return Placement{
		Center: Point{
			X: surface.W - pad - img.W*scale/2,
			Y: surface.H - pad - img.H*scale/2,
		},
		Scale: scale,
	}, nil
}

// Mapping converts surface coordinates into one page's native space.
type Mapping struct {
	Page    Size
	Surface Size
}

// NewMapping returns the mapping for a page of the given native size.
func NewMapping(page, surface Size) (Mapping, error) {
	if !page.valid() {
		return Mapping{}, fmt.Errorf("%w: page %gx%g", ErrDegenerate, page.W, page.H)
	}
	if !surface.valid() {
		return Mapping{}, fmt.Errorf("%w: surface %gx%g", ErrDegenerate, surface.W, surface.H)
	}
	return Mapping{Page: page, Surface: surface}, nil
}

// Scale returns the independent axis scale factors page/surface.
func (m Mapping) Scale() (sx, sy float64) {
	return m.Page.W / m.Surface.W, m.Page.H / m.Surface.H
}

// Matrix returns the surface-to-page point transform, including the y-flip.
func (m Mapping) Matrix() Matrix {
	sx, sy := m.Scale()
	return Scale(sx, -sy).Multiply(Translate(0, m.Page.H))
}

// ToPage maps a surface point into page space.
func (m Mapping) ToPage(p Point) Point {
	return m.Matrix().Transform(p)
}

// ToSurface maps a page point back into surface space.
func (m Mapping) ToSurface(p Point) (Point, error) {
	inv, err := m.Matrix().Inverse()
	if err != nil {
		return Point{}, err
	}
	return inv.Transform(p), nil
}

// PageRect returns the page-space rectangle covered by a stamp centered at
// center (surface space), scaled by scaleX/scaleY relative to its native
// pixel size img.
func (m Mapping) PageRect(center Point, scaleX, scaleY float64, img Size) Rect {
	sx, sy := m.Scale()
	w := img.W * scaleX * sx
	h := img.H * scaleY * sy
	c := m.ToPage(center)
	return Rect{X: c.X - w/2, Y: c.Y - h/2, W: w, H: h}
}
