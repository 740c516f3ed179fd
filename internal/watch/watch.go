// Package watch reloads the document when its file changes on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	stamper "github.com/jungcome7/pdf-stamper"
)

// DefaultDebounce coalesces the burst of events an editor emits on save.
const DefaultDebounce = 200 * time.Millisecond

// Loader accepts a new document. session.Session satisfies it.
type Loader interface {
	LoadDocument(ctx context.Context, name string, data []byte) (*stamper.Document, error)
}

// Watcher reloads one file through a Loader.
type Watcher struct {
	path     string
	loader   Loader
	log      stamper.Logger
	debounce time.Duration
	onReload func(*stamper.Document, error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l stamper.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// OnReload registers fn to run after every reload attempt.
func OnReload(fn func(*stamper.Document, error)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// New returns a watcher for path.
func New(path string, loader Loader, opts ...Option) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		loader:   loader,
		log:      stamper.NopLogger{},
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. The parent directory is watched rather
// than the file so that editors which save by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch: adding %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Debug("watching document", stamper.String("path", w.path))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", stamper.Err(err))
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

// relevant reports whether ev may have changed the watched file's content.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

func (w *Watcher) reload(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	var doc *stamper.Document
	if err == nil {
		doc, err = w.loader.LoadDocument(ctx, filepath.Base(w.path), data)
	}
	if err != nil {
		w.log.Warn("document reload failed", stamper.String("path", w.path), stamper.Err(err))
	} else {
		w.log.Info("document reloaded", stamper.String("path", w.path), stamper.Int("pages", doc.PageCount))
	}
	if w.onReload != nil {
		w.onReload(doc, err)
	}
}
