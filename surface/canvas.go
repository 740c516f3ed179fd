// Package surface is a headless editing surface: a fixed-size canvas holding
// stamp objects that can be added, removed, selected and transformed, with a
// notification when a transform is committed.
//
// A Canvas is not safe for concurrent use. It is owned by the session's event
// loop; work that must run elsewhere takes a Frame snapshot first.
package surface

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/coords"
)

// Object is one stamp on the surface. X and Y locate its center.
type Object struct {
	ID           string
	InstanceID   string // the store record this object projects
	DefinitionID string
	Image        image.Image
	Source       []byte // encoded bytes Image was decoded from
	X, Y         float64
	ScaleX       float64
	ScaleY       float64
}

// NativeSize returns the image size in pixels.
func (o *Object) NativeSize() coords.Size {
	b := o.Image.Bounds()
	return coords.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// Bounds returns the object's scaled footprint in surface space.
func (o *Object) Bounds() image.Rectangle {
	n := o.NativeSize()
	w := n.W * o.ScaleX
	h := n.H * o.ScaleY
	return image.Rect(
		int(math.Round(o.X-w/2)), int(math.Round(o.Y-h/2)),
		int(math.Round(o.X+w/2)), int(math.Round(o.Y+h/2)),
	)
}

// Canvas is the editing surface.
type Canvas struct {
	size       coords.Size
	objects    []*Object
	active     *Object
	background image.Image
	handlers   []func(*Object)
	disposed   bool
}

// New creates an empty canvas of the given size.
func New(width, height float64) *Canvas {
	return &Canvas{size: coords.Size{W: width, H: height}}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() coords.Size {
	return c.size
}

// Add puts obj on top of the canvas. An empty ID is filled in.
func (c *Canvas) Add(obj *Object) error {
	if c.disposed {
		return stamper.ErrDisposed
	}
	if obj == nil || obj.Image == nil {
		return fmt.Errorf("surface: %w: object without image", stamper.ErrInvalidParam)
	}
	if obj.ID == "" {
		obj.ID = uuid.New().String()
	}
	c.objects = append(c.objects, obj)
	return nil
}

// Remove takes obj off the canvas, clearing the selection if it was active.
func (c *Canvas) Remove(obj *Object) bool {
	i := slices.Index(c.objects, obj)
	if i < 0 {
		return false
	}
	c.objects = slices.Delete(c.objects, i, i+1)
	if c.active == obj {
		c.active = nil
	}
	return true
}

// Objects returns the objects in stacking order, bottom first.
func (c *Canvas) Objects() []*Object {
	return slices.Clone(c.objects)
}

// Object returns the object with the given surface id.
func (c *Canvas) Object(id string) *Object {
	for _, o := range c.objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// ByInstance returns the object projecting the given store record.
func (c *Canvas) ByInstance(instanceID string) *Object {
	for _, o := range c.objects {
		if o.InstanceID == instanceID {
			return o
		}
	}
	return nil
}

// Active returns the selected object, or nil.
func (c *Canvas) Active() *Object {
	return c.active
}

// SetActive selects obj. A nil obj clears the selection.
func (c *Canvas) SetActive(obj *Object) error {
	if obj != nil && !slices.Contains(c.objects, obj) {
		return fmt.Errorf("surface: %w: object is not on the canvas", stamper.ErrNotFound)
	}
	c.active = obj
	return nil
}

// HitTest returns the topmost object covering the surface point (x, y).
func (c *Canvas) HitTest(x, y float64) *Object {
	pt := image.Pt(int(math.Round(x)), int(math.Round(y)))
	for i := len(c.objects) - 1; i >= 0; i-- {
		if pt.In(c.objects[i].Bounds()) {
			return c.objects[i]
		}
	}
	return nil
}

// OnModified subscribes fn to committed transforms.
func (c *Canvas) OnModified(fn func(*Object)) {
	c.handlers = append(c.handlers, fn)
}

// Transform moves and scales obj, then notifies subscribers as a finished
// drag or resize would.
func (c *Canvas) Transform(obj *Object, x, y, scaleX, scaleY float64) error {
	if c.disposed {
		return stamper.ErrDisposed
	}
	if !slices.Contains(c.objects, obj) {
		return fmt.Errorf("surface: %w: object is not on the canvas", stamper.ErrNotFound)
	}
	if scaleX <= 0 || scaleY <= 0 || math.IsNaN(x) || math.IsNaN(y) {
		return fmt.Errorf("surface: %w: scale %gx%g", stamper.ErrInvalidParam, scaleX, scaleY)
	}
	obj.X, obj.Y, obj.ScaleX, obj.ScaleY = x, y, scaleX, scaleY
	for _, fn := range slices.Clone(c.handlers) {
		fn(obj)
	}
	return nil
}

// SetBackground sets the page raster drawn under the objects.
func (c *Canvas) SetBackground(img image.Image) {
	c.background = img
}

// Dispose releases the object graph. A disposed canvas rejects new objects.
func (c *Canvas) Dispose() {
	c.disposed = true
	c.objects = nil
	c.active = nil
	c.handlers = nil
	c.background = nil
}

// Disposed reports whether Dispose was called.
func (c *Canvas) Disposed() bool {
	return c.disposed
}

// Frame is an immutable snapshot of what the canvas shows.
type Frame struct {
	Size       coords.Size
	Background image.Image
	Objects    []Object
}

// Snapshot captures the current contents for rendering off the owner goroutine.
func (c *Canvas) Snapshot() Frame {
	f := Frame{Size: c.size, Background: c.background, Objects: make([]Object, len(c.objects))}
	for i, o := range c.objects {
		f.Objects[i] = *o
	}
	return f
}

// Render composites the canvas into an image.
func (c *Canvas) Render() (image.Image, error) {
	return c.Snapshot().Render()
}

// Render draws the background stretched to the surface and every object on
// top at its recorded position and scale.
func (f Frame) Render() (image.Image, error) {
	w := int(math.Ceil(f.Size.W))
	h := int(math.Ceil(f.Size.H))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("surface: %w: frame %gx%g", stamper.ErrInvalidParam, f.Size.W, f.Size.H)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if f.Background != nil {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.Background, f.Background.Bounds(), draw.Over, nil)
	}
	for i := range f.Objects {
		o := &f.Objects[i]
		if o.Image == nil {
			continue
		}
		draw.ApproxBiLinear.Scale(dst, o.Bounds(), o.Image, o.Image.Bounds(), draw.Over, nil)
	}
	return dst, nil
}
