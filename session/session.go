// Package session is the editing session: one document, its stamps and the
// live editing surface, driven through a single event loop.
//
// Every method is safe for concurrent use. Mutations are applied on the loop
// in the order they were called; slow work (decoding, rasterizing,
// exporting) happens off the loop.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/compose"
	"github.com/jungcome7/pdf-stamper/internal/eventloop"
	"github.com/jungcome7/pdf-stamper/pagesync"
	"github.com/jungcome7/pdf-stamper/raster"
	"github.com/jungcome7/pdf-stamper/store"
	"github.com/jungcome7/pdf-stamper/surface"
	"github.com/jungcome7/pdf-stamper/upload"
)

// Session owns the store, the page synchronization engine and the
// compositor.
type Session struct {
	cfg      stamper.Config
	log      stamper.Logger
	store    *store.Store
	loop     *eventloop.Loop
	engine   *pagesync.Engine
	raster   raster.Rasterizer
	compose  *compose.Compositor
	now      func() time.Time
	runErr   chan error
	rootCtx  context.Context
	queueLen int
}

// Option configures a Session.
type Option func(*Session)

// WithRasterizer sets the page renderer used for backgrounds and previews.
func WithRasterizer(r raster.Rasterizer) Option {
	return func(s *Session) {
		if r != nil {
			s.raster = r
		}
	}
}

// WithClock overrides time.Now for output names.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithQueueSize sets how many loop tasks may be pending before callers
// block.
func WithQueueSize(n int) Option {
	return func(s *Session) {
		s.queueLen = n
	}
}

// New starts a session. The loop runs until Close is called or ctx ends.
func New(ctx context.Context, cfg stamper.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = stamper.NopLogger{}
	}
	s := &Session{
		cfg:      cfg,
		log:      cfg.Logger,
		store:    store.New(store.WithMaxStamps(cfg.MaxStamps)),
		raster:   raster.NewOutline(),
		compose:  compose.New(compose.WithLogger(cfg.Logger)),
		now:      time.Now,
		runErr:   make(chan error, 1),
		rootCtx:  ctx,
		queueLen: 64,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loop = eventloop.New(s.queueLen)
	s.engine = pagesync.New(s.store, cfg, s.loop, pagesync.WithBackground(s.background))
	go func() { s.runErr <- s.loop.Run(ctx) }()
	return s, nil
}

// Close disposes the surface and stops the loop. It waits for background
// work to finish.
func (s *Session) Close() error {
	_ = s.loop.Do(context.Background(), s.engine.Dispose)
	s.loop.Close()
	s.loop.Wait()
	err := <-s.runErr
	s.runErr <- err
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// do runs fn on the loop and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	var err error
	if doErr := s.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) background(doc []byte, page int) (image.Image, error) {
	return s.raster.Render(s.rootCtx, doc, page, s.cfg.PreviewScale)
}

// LoadDocument validates and loads a PDF, replacing any open document. The
// current page resets to 1 and stamps are kept. Rejected files leave the
// session unchanged.
func (s *Session) LoadDocument(ctx context.Context, name string, data []byte) (*stamper.Document, error) {
	if err := upload.ValidateDocument(name, data); err != nil {
		return nil, err
	}
	pages, err := s.raster.PageCount(data)
	if err != nil {
		return nil, stamper.NewError("LoadDocument", err)
	}
	doc := &stamper.Document{Name: name, Data: data, PageCount: pages}

	var rev uint64
	err = s.do(ctx, func() error {
		s.store.SetDocument(doc)
		rev = s.store.Revision()
		s.engine.Rebuild()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("document loaded", stamper.String("name", name), stamper.Int("pages", pages))
	if dormant := len(s.store.DormantInstances()); dormant > 0 {
		s.log.Warn("stamps on pages beyond the document are dormant", stamper.Int("count", dormant))
	}
	s.preload(data, rev)
	return s.store.Document(), nil
}

// preload rasterizes every page concurrently into the preview cache. A
// preview already refreshed with stamps is not overwritten.
func (s *Session) preload(data []byte, rev uint64) {
	s.loop.Go(func() func() {
		err := raster.Preload(s.rootCtx, s.raster, data, s.cfg.PreviewScale, func(r raster.Result) {
			if r.Err != nil {
				s.log.Warn("page preview failed", stamper.Int("page", r.Page), stamper.Err(r.Err))
				return
			}
			url, err := dataURL(r.Image)
			if err != nil {
				s.log.Warn("page preview failed", stamper.Int("page", r.Page), stamper.Err(err))
				return
			}
			_ = s.loop.Post(func() {
				if s.store.Revision() != rev {
					return
				}
				if _, ok := s.store.PagePreview(r.Page); !ok {
					s.store.UpdatePagePreview(r.Page, url)
				}
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("page preload failed", stamper.Err(err))
		}
		return nil
	})
}

// CloseDocument unloads the document. Stamps are kept.
func (s *Session) CloseDocument(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.store.SetDocument(nil)
		s.engine.Rebuild()
		return nil
	})
}

// GoToPage switches the editing surface to page n.
func (s *Session) GoToPage(ctx context.Context, n int) error {
	return s.do(ctx, func() error {
		if err := s.store.SetCurrentPage(n); err != nil {
			return err
		}
		s.engine.Rebuild()
		return nil
	})
}

// AddStamp validates a PNG upload and adds it as a stamp definition.
func (s *Session) AddStamp(ctx context.Context, name string, data []byte) (stamper.StampDefinition, error) {
	def, err := upload.Stamp(name, data)
	if err != nil {
		return stamper.StampDefinition{}, err
	}
	if err := s.AddDefinition(ctx, def); err != nil {
		return stamper.StampDefinition{}, err
	}
	return def, nil
}

// AddStamps adds several uploads, filling only the free definition slots.
// Errors are reported per rejected file; accepted files are still added.
func (s *Session) AddStamps(ctx context.Context, files []upload.File) ([]stamper.StampDefinition, []error) {
	used, limit := s.store.Capacity()
	defs, errs := upload.Stamps(files, limit-used)
	var added []stamper.StampDefinition
	for _, def := range defs {
		if err := s.AddDefinition(ctx, def); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", def.Name, err))
			continue
		}
		added = append(added, def)
	}
	return added, errs
}

// AddDefinition adds a ready-made definition such as a generated barcode.
func (s *Session) AddDefinition(ctx context.Context, def stamper.StampDefinition) error {
	return s.do(ctx, func() error { return s.store.AddStampDefinition(def) })
}

// RemoveStamp deletes a definition. Placed instances are not affected.
func (s *Session) RemoveStamp(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.do(ctx, func() error {
		removed = s.store.RemoveStampDefinition(id)
		return nil
	})
	return removed, err
}

// SelectStamp chooses the definition Place will use. An empty id clears it.
func (s *Session) SelectStamp(ctx context.Context, id string) error {
	return s.do(ctx, func() error { return s.store.SetSelectedDefinition(id) })
}

// ToggleStamp selects id, or clears the selection if id is already selected.
func (s *Session) ToggleStamp(ctx context.Context, id string) error {
	return s.do(ctx, func() error { return s.store.ToggleDefinition(id) })
}

// Place stamps the selected definition onto the current page and returns
// the recorded instance.
func (s *Session) Place(ctx context.Context) (stamper.StampInstance, error) {
	type placed struct {
		inst stamper.StampInstance
		err  error
	}
	result := make(chan placed, 1)
	err := s.loop.Post(func() {
		s.engine.Place(func(inst stamper.StampInstance, err error) {
			result <- placed{inst, err}
		})
	})
	if err != nil {
		return stamper.StampInstance{}, err
	}
	select {
	case r := <-result:
		return r.inst, r.err
	case <-s.loop.Done():
		return stamper.StampInstance{}, stamper.ErrClosed
	case <-ctx.Done():
		return stamper.StampInstance{}, ctx.Err()
	}
}

// SelectInstance makes a placed stamp on the current page active. An empty
// id clears the selection.
func (s *Session) SelectInstance(ctx context.Context, id string) error {
	return s.do(ctx, func() error { return s.engine.Select(id) })
}

// Transform moves and scales a stamp on the current page, in surface
// coordinates, and records the change.
func (s *Session) Transform(ctx context.Context, id string, x, y, scaleX, scaleY float64) error {
	return s.do(ctx, func() error { return s.engine.Transform(id, x, y, scaleX, scaleY) })
}

// DeleteSelected removes the active stamp. It reports false when nothing is
// selected.
func (s *Session) DeleteSelected(ctx context.Context) (bool, error) {
	var deleted bool
	err := s.do(ctx, func() error {
		var err error
		deleted, err = s.engine.DeleteActive()
		return err
	})
	return deleted, err
}

// WaitReady blocks until the current page has finished loading.
func (s *Session) WaitReady(ctx context.Context) error {
	var ready <-chan struct{}
	if err := s.do(ctx, func() error {
		ready = s.engine.Ready()
		return nil
	}); err != nil {
		return err
	}
	select {
	case <-ready:
		return nil
	case <-s.loop.Done():
		return stamper.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exported is a finished export with its suggested file name.
type Exported struct {
	Name string
	*compose.Result
}

// Export composites every recorded stamp into the loaded document. The
// store is read once; edits made while the export runs are not included.
func (s *Session) Export(ctx context.Context) (*Exported, error) {
	var doc *stamper.Document
	var instances []stamper.StampInstance
	if err := s.do(ctx, func() error {
		doc = s.store.Document()
		instances = s.store.Instances()
		return nil
	}); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, stamper.NewError("Export", stamper.ErrNoDocument)
	}
	res, err := s.compose.Export(ctx, doc.Data, instances, s.cfg.Surface())
	if err != nil {
		s.log.Error("export failed", stamper.String("name", doc.Name), stamper.Err(err))
		return nil, err
	}
	return &Exported{
		Name:   upload.OutputName(doc.Name, s.cfg.OutputPrefix, s.now()),
		Result: res,
	}, nil
}

// Preview returns the cached preview of page n.
func (s *Session) Preview(n int) (stamper.PageImage, bool) {
	return s.store.PagePreview(n)
}

// Previews returns every cached page preview.
func (s *Session) Previews() []stamper.PageImage {
	return s.store.PagePreviews()
}

// RenderSurface composites the current editing surface. The snapshot is
// taken on the loop and rendered on the caller's goroutine.
func (s *Session) RenderSurface(ctx context.Context) (image.Image, error) {
	var frame surface.Frame
	var ok bool
	if err := s.do(ctx, func() error {
		if sf := s.engine.Surface(); sf != nil {
			frame, ok = sf.Snapshot(), true
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if !ok {
		return nil, stamper.ErrNoDocument
	}
	return frame.Render()
}

// Snapshot is a consistent view of the session for display.
type Snapshot struct {
	Document    *stamper.Document // Data is nil; nil when no document is loaded
	Page        int
	State       pagesync.State
	Definitions []stamper.StampDefinition
	Selected    string
	MaxStamps   int
	Instances   []stamper.StampInstance // current page, insertion order
	Total       int
	Dormant     []stamper.StampInstance
	Active      string
}

// Snapshot captures the session state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		if doc := s.store.Document(); doc != nil {
			doc.Data = nil
			snap.Document = doc
		}
		snap.Page = s.store.CurrentPage()
		snap.State = s.engine.State()
		snap.Definitions = s.store.Definitions()
		if def, ok := s.store.SelectedDefinition(); ok {
			snap.Selected = def.ID
		}
		_, snap.MaxStamps = s.store.Capacity()
		if snap.Document != nil {
			snap.Instances = s.store.InstancesForPage(snap.Page)
		}
		snap.Total = len(s.store.Instances())
		snap.Dormant = s.store.DormantInstances()
		if sf := s.engine.Surface(); sf != nil {
			if obj := sf.Active(); obj != nil {
				snap.Active = obj.InstanceID
			}
		}
		return nil
	})
	return snap, err
}

// Config returns the session configuration.
func (s *Session) Config() stamper.Config {
	return s.cfg
}

func dataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return stamper.DataURL("image/png", buf.Bytes()), nil
}
