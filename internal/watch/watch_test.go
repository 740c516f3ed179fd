package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stamper "github.com/jungcome7/pdf-stamper"
)

type fakeLoader struct {
	mu    sync.Mutex
	calls [][]byte
	err   error
}

func (f *fakeLoader) LoadDocument(_ context.Context, name string, data []byte) (*stamper.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, data)
	if f.err != nil {
		return nil, f.err
	}
	return &stamper.Document{Name: name, Data: data, PageCount: 1}, nil
}

func TestWatcher_Relevant(t *testing.T) {
	w := New("/docs/contract.pdf", &fakeLoader{})

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write", fsnotify.Event{Name: "/docs/contract.pdf", Op: fsnotify.Write}, true},
		{"create after rename-save", fsnotify.Event{Name: "/docs/contract.pdf", Op: fsnotify.Create}, true},
		{"write and chmod", fsnotify.Event{Name: "/docs/contract.pdf", Op: fsnotify.Write | fsnotify.Chmod}, true},
		{"chmod only", fsnotify.Event{Name: "/docs/contract.pdf", Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: "/docs/contract.pdf", Op: fsnotify.Remove}, false},
		{"sibling file", fsnotify.Event{Name: "/docs/other.pdf", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.ev))
		})
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contract.pdf")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	loader := &fakeLoader{}
	reloaded := make(chan *stamper.Document, 4)
	w := New(path, loader,
		WithDebounce(20*time.Millisecond),
		OnReload(func(doc *stamper.Document, err error) {
			if err == nil {
				reloaded <- doc
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(path, []byte("v2"), 0o644)
	}()

	select {
	case doc := <-reloaded:
		assert.Equal(t, "contract.pdf", doc.Name)
		assert.Equal(t, []byte("v2"), doc.Data)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_ReportsLoadFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contract.pdf")
	require.NoError(t, os.WriteFile(path, []byte("broken"), 0o644))

	boom := errors.New("boom")
	var got error
	w := New(path, &fakeLoader{err: boom}, OnReload(func(_ *stamper.Document, err error) { got = err }))
	w.reload(context.Background())
	assert.ErrorIs(t, got, boom)

	require.NoError(t, os.Remove(path))
	w.reload(context.Background())
	assert.ErrorIs(t, got, os.ErrNotExist)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "gone", "contract.pdf"), &fakeLoader{})
	err := w.Run(context.Background())
	assert.Error(t, err)
}
