// Package pagesync keeps the editing surface a faithful projection of the
// store's per-page stamp record.
//
// On every page or document change the engine discards the surface and
// rebuilds it from the store, replaying each instance of the current page
// exactly as recorded. Committed edits on the surface flow back into the
// store through a single modified handler.
//
// An Engine is not safe for concurrent use. All methods and all
// continuations handed to the Dispatcher must run on the same goroutine.
package pagesync

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/coords"
	"github.com/jungcome7/pdf-stamper/store"
	"github.com/jungcome7/pdf-stamper/surface"
)

// State is the lifecycle of one page visit.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Disposed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Surface is the editing surface capability the engine drives.
type Surface interface {
	Add(obj *surface.Object) error
	Remove(obj *surface.Object) bool
	Objects() []*surface.Object
	ByInstance(instanceID string) *surface.Object
	Active() *surface.Object
	SetActive(obj *surface.Object) error
	Transform(obj *surface.Object, x, y, scaleX, scaleY float64) error
	OnModified(fn func(*surface.Object))
	SetBackground(img image.Image)
	Snapshot() surface.Frame
	Dispose()
}

// SurfaceFactory creates an empty surface of the given size.
type SurfaceFactory func(size coords.Size) Surface

// Dispatcher runs work off the owner goroutine and schedules the returned
// continuation back onto it.
type Dispatcher interface {
	Go(work func() func())
}

// Decoder turns snapshotted stamp bytes into an image.
type Decoder func(data []byte) (image.Image, error)

// BackgroundFunc rasterizes a page of doc for display under the stamps.
type BackgroundFunc func(doc []byte, page int) (image.Image, error)

// Option configures an Engine.
type Option func(*Engine)

// WithSurfaceFactory replaces the default in-memory canvas.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(e *Engine) {
		if f != nil {
			e.newSurface = f
		}
	}
}

// WithDecoder replaces the default PNG decoder.
func WithDecoder(d Decoder) Option {
	return func(e *Engine) {
		if d != nil {
			e.decode = d
		}
	}
}

// WithBackground sets the page rasterizer used for surface backgrounds.
func WithBackground(f BackgroundFunc) Option {
	return func(e *Engine) {
		e.background = f
	}
}

// Engine is the page synchronization engine.
type Engine struct {
	store      *store.Store
	cfg        stamper.Config
	dispatch   Dispatcher
	newSurface SurfaceFactory
	decode     Decoder
	background BackgroundFunc
	log        stamper.Logger

	surface        Surface
	page           int
	generation     uint64
	state          State
	ready          chan struct{}
	readyClosed    bool
	previewPending bool
	previewSeq     map[int]uint64
}

// New creates an idle engine over st.
func New(st *store.Store, cfg stamper.Config, dispatch Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		cfg:        cfg,
		dispatch:   dispatch,
		newSurface: func(size coords.Size) Surface { return surface.New(size.W, size.H) },
		decode:     DecodePNG,
		log:        cfg.Logger,
		previewSeq: make(map[int]uint64),
	}
	if e.log == nil {
		e.log = stamper.NopLogger{}
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ready = make(chan struct{})
	e.markReady()
	return e
}

// DecodePNG decodes PNG stamp bytes.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stamper.ErrDecode, err)
	}
	return img, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Generation identifies the current surface. It changes on every rebuild
// and on dispose.
func (e *Engine) Generation() uint64 { return e.generation }

// Surface returns the live surface, or nil when no document is loaded.
func (e *Engine) Surface() Surface { return e.surface }

// Page returns the page the live surface projects.
func (e *Engine) Page() int { return e.page }

// Ready is closed once the current surface has finished loading. It is also
// closed when the engine goes idle or is disposed.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// Rebuild discards the current surface and projects the store's current
// page onto a new one. Instance images and the page background are decoded
// asynchronously; the surface reaches Ready once they have been added.
func (e *Engine) Rebuild() {
	e.teardown()
	e.generation++
	e.ready = make(chan struct{})
	e.readyClosed = false

	doc := e.store.Document()
	if doc == nil {
		e.state = Idle
		e.page = 0
		e.markReady()
		return
	}

	gen := e.generation
	page := e.store.CurrentPage()
	s := e.newSurface(e.cfg.Surface())
	s.OnModified(func(obj *surface.Object) { e.modified(gen, obj) })
	e.surface = s
	e.page = page
	e.state = Loading

	instances := e.store.InstancesForPage(page)
	e.log.Debug("rebuilding surface",
		stamper.Int("page", page),
		stamper.Int("instances", len(instances)),
		stamper.Uint64("generation", gen))

	decode, background := e.decode, e.background
	e.dispatch.Go(func() func() {
		images := make([]image.Image, len(instances))
		errs := make([]error, len(instances))
		for i, inst := range instances {
			images[i], errs[i] = decode(inst.Image)
		}
		var bg image.Image
		var bgErr error
		if background != nil {
			bg, bgErr = background(doc.Data, page)
		}
		return func() {
			if !e.current(gen, s) {
				e.log.Debug("dropping stale page load", stamper.Int("page", page), stamper.Uint64("generation", gen))
				return
			}
			if bgErr != nil {
				e.log.Warn("page background unavailable", stamper.Int("page", page), stamper.Err(bgErr))
			} else if bg != nil {
				s.SetBackground(bg)
			}
			for i, inst := range instances {
				if errs[i] != nil {
					e.log.Warn("skipping stamp that failed to decode",
						stamper.String("instance", inst.ID), stamper.Int("page", page), stamper.Err(errs[i]))
					continue
				}
				if err := s.Add(objectFor(inst, images[i])); err != nil {
					e.log.Warn("skipping stamp", stamper.String("instance", inst.ID), stamper.Err(err))
				}
			}
			e.state = Ready
			e.markReady()
			if e.previewPending {
				e.previewPending = false
				e.RefreshPreview()
			}
		}
	})
}

// Dispose releases the surface. Pending loads complete as no-ops.
func (e *Engine) Dispose() {
	e.teardown()
	e.generation++
	e.state = Disposed
	e.page = 0
	e.markReady()
}

// Place puts the selected stamp definition on the current page at the
// default bottom-right position, records it and makes it the active object.
// done runs on the owner goroutine once placement finishes or fails.
func (e *Engine) Place(done func(stamper.StampInstance, error)) {
	if done == nil {
		done = func(stamper.StampInstance, error) {}
	}
	if e.surface == nil || e.state == Disposed {
		done(stamper.StampInstance{}, stamper.ErrNoDocument)
		return
	}
	def, ok := e.store.SelectedDefinition()
	if !ok {
		done(stamper.StampInstance{}, stamper.ErrNoSelection)
		return
	}
	placement, err := coords.PlaceOnAdd(e.cfg.Surface(),
		coords.Size{W: float64(def.Width), H: float64(def.Height)},
		e.cfg.Footprint, e.cfg.Margin)
	if err != nil {
		done(stamper.StampInstance{}, fmt.Errorf("%w: %v", stamper.ErrInvalidParam, err))
		return
	}

	gen, s, page := e.generation, e.surface, e.page
	inst := stamper.StampInstance{
		ID:           newInstanceID(),
		DefinitionID: def.ID,
		Page:         page,
		X:            placement.Center.X,
		Y:            placement.Center.Y,
		ScaleX:       placement.Scale,
		ScaleY:       placement.Scale,
		Image:        def.Image,
	}
	decode := e.decode
	e.dispatch.Go(func() func() {
		img, err := decode(inst.Image)
		return func() {
			if err != nil {
				done(stamper.StampInstance{}, err)
				return
			}
			if !e.current(gen, s) {
				done(stamper.StampInstance{}, stamper.ErrDisposed)
				return
			}
			if err := e.store.AddStampInstance(inst); err != nil {
				done(stamper.StampInstance{}, err)
				return
			}
			obj := objectFor(inst, img)
			if err := s.Add(obj); err != nil {
				e.store.RemoveStampInstance(inst.ID)
				done(stamper.StampInstance{}, err)
				return
			}
			_ = s.SetActive(obj)
			e.log.Info("stamp placed",
				stamper.String("instance", inst.ID), stamper.String("definition", def.ID), stamper.Int("page", page))
			e.RefreshPreview()
			done(inst, nil)
		}
	})
}

// Select makes the object projecting instanceID active. An empty id clears
// the selection.
func (e *Engine) Select(instanceID string) error {
	if e.surface == nil {
		return stamper.ErrNoDocument
	}
	if instanceID == "" {
		return e.surface.SetActive(nil)
	}
	obj := e.surface.ByInstance(instanceID)
	if obj == nil {
		return fmt.Errorf("%w: stamp %q is not on page %d", stamper.ErrNotFound, instanceID, e.page)
	}
	return e.surface.SetActive(obj)
}

// Transform moves and scales the object projecting instanceID and commits
// the change as a finished drag would.
func (e *Engine) Transform(instanceID string, x, y, scaleX, scaleY float64) error {
	if e.surface == nil {
		return stamper.ErrNoDocument
	}
	obj := e.surface.ByInstance(instanceID)
	if obj == nil {
		return fmt.Errorf("%w: stamp %q is not on page %d", stamper.ErrNotFound, instanceID, e.page)
	}
	return e.surface.Transform(obj, x, y, scaleX, scaleY)
}

// DeleteActive removes the active object and its record. It reports false
// when nothing is selected.
func (e *Engine) DeleteActive() (bool, error) {
	if e.surface == nil {
		return false, nil
	}
	obj := e.surface.Active()
	if obj == nil {
		return false, nil
	}
	e.surface.Remove(obj)
	e.store.RemoveStampInstance(obj.InstanceID)
	e.log.Info("stamp deleted", stamper.String("instance", obj.InstanceID), stamper.Int("page", e.page))
	e.RefreshPreview()
	return true, nil
}

// RefreshPreview renders the current surface and stores it as the page
// preview. Only the latest request per page is applied.
func (e *Engine) RefreshPreview() {
	if e.surface == nil {
		return
	}
	if e.state == Loading {
		e.previewPending = true
		return
	}
	page := e.page
	e.previewSeq[page]++
	seq := e.previewSeq[page]
	rev := e.store.Revision()
	frame := e.surface.Snapshot()
	scale := e.cfg.PreviewScale

	e.dispatch.Go(func() func() {
		url, err := renderPreview(frame, scale)
		return func() {
			if e.previewSeq[page] != seq || e.store.Revision() != rev {
				return
			}
			if err != nil {
				e.log.Warn("preview render failed", stamper.Int("page", page), stamper.Err(err))
				return
			}
			e.store.UpdatePagePreview(page, url)
		}
	})
}

// modified is the single path by which surface edits reach the store. The
// record is replaced under the same id on the current page.
func (e *Engine) modified(gen uint64, obj *surface.Object) {
	if gen != e.generation {
		return
	}
	old, ok := e.store.Instance(obj.InstanceID)
	if !ok {
		e.log.Warn("modified object has no record", stamper.String("instance", obj.InstanceID))
		return
	}
	inst := stamper.StampInstance{
		ID:           old.ID,
		DefinitionID: obj.DefinitionID,
		Page:         e.store.CurrentPage(),
		X:            obj.X,
		Y:            obj.Y,
		ScaleX:       obj.ScaleX,
		ScaleY:       obj.ScaleY,
		Image:        obj.Source,
	}
	e.store.RemoveStampInstance(old.ID)
	if err := e.store.AddStampInstance(inst); err != nil {
		e.log.Error("recording modified stamp failed", stamper.String("instance", inst.ID), stamper.Err(err))
		// The previous record is known to be valid; keep it.
		if err := e.store.AddStampInstance(old); err != nil {
			e.log.Error("restoring stamp record failed", stamper.String("instance", old.ID), stamper.Err(err))
		}
		return
	}
	e.RefreshPreview()
}

func (e *Engine) current(gen uint64, s Surface) bool {
	return gen == e.generation && e.surface == s && e.state != Disposed
}

func (e *Engine) teardown() {
	if e.surface != nil {
		e.surface.Dispose()
		e.surface = nil
	}
	e.previewPending = false
}

func (e *Engine) markReady() {
	if !e.readyClosed {
		close(e.ready)
		e.readyClosed = true
	}
}

func objectFor(inst stamper.StampInstance, img image.Image) *surface.Object {
	return &surface.Object{
		InstanceID:   inst.ID,
		DefinitionID: inst.DefinitionID,
		Image:        img,
		Source:       inst.Image,
		X:            inst.X,
		Y:            inst.Y,
		ScaleX:       inst.ScaleX,
		ScaleY:       inst.ScaleY,
	}
}
