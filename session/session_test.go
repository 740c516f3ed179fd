package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/internal/pdftest"
	"github.com/jungcome7/pdf-stamper/pagesync"
	"github.com/jungcome7/pdf-stamper/pdfinfo"
	"github.com/jungcome7/pdf-stamper/upload"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := New(context.Background(), stamper.DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func loadPages(t *testing.T, s *Session, n int) {
	t.Helper()
	ctx := context.Background()
	_, err := s.LoadDocument(ctx, "contract.pdf", pdftest.Pages(t, n))
	require.NoError(t, err)
	require.NoError(t, s.WaitReady(ctx))
}

func addAndSelect(t *testing.T, s *Session) stamper.StampDefinition {
	t.Helper()
	ctx := context.Background()
	def, err := s.AddStamp(ctx, "seal.png", pdftest.PNG(t, 60, 40, pdftest.Red))
	require.NoError(t, err)
	require.NoError(t, s.SelectStamp(ctx, def.ID))
	return def
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), stamper.NewConfig(stamper.WithMaxStamps(0)))
	assert.ErrorIs(t, err, stamper.ErrInvalidParam)
}

func TestLoadDocument(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	doc, err := s.LoadDocument(ctx, "contract.pdf", pdftest.Pages(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.PageCount)
	require.NoError(t, s.WaitReady(ctx))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Document)
	assert.Equal(t, "contract.pdf", snap.Document.Name)
	assert.Nil(t, snap.Document.Data)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, pagesync.Ready, snap.State)

	assert.Eventually(t, func() bool { return len(s.Previews()) == 3 },
		2*time.Second, 10*time.Millisecond, "every page is preloaded")
}

func TestLoadDocumentRejectsInvalidFiles(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	loadPages(t, s, 2)

	_, err := s.LoadDocument(ctx, "seal.png", pdftest.PNG(t, 10, 10, pdftest.Red))
	assert.ErrorIs(t, err, stamper.ErrInvalidFileType)

	_, err = s.LoadDocument(ctx, "broken.pdf", []byte("%PDF-1.7 truncated"))
	assert.ErrorIs(t, err, stamper.ErrCorrupted)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", snap.Document.Name, "rejected files change nothing")
	assert.Equal(t, 2, snap.Document.PageCount)
}

func TestPlaceNavigateAndExport(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	loadPages(t, s, 3)
	addAndSelect(t, s)

	first, err := s.Place(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	require.NoError(t, s.Transform(ctx, first.ID, 120, 140, 0.5, 0.5))

	require.NoError(t, s.GoToPage(ctx, 3))
	require.NoError(t, s.WaitReady(ctx))
	third, err := s.Place(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Page)

	require.NoError(t, s.GoToPage(ctx, 1))
	require.NoError(t, s.WaitReady(ctx))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Instances, 1)
	assert.Equal(t, first.ID, snap.Instances[0].ID)
	assert.Equal(t, 120.0, snap.Instances[0].X)
	assert.Equal(t, 140.0, snap.Instances[0].Y)
	assert.Equal(t, 0.5, snap.Instances[0].ScaleX)
	assert.Equal(t, 2, snap.Total)

	out, err := s.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stamped_contract_20260102-030405.pdf", out.Name)
	assert.Equal(t, 2, out.Placed)
	assert.Empty(t, out.Skipped)

	inv, err := pdfinfo.Inspect(out.Data)
	require.NoError(t, err)
	assert.Equal(t, 3, inv.PageCount())
}

func TestPlaceRequiresSelection(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	_, err := s.Place(ctx)
	assert.ErrorIs(t, err, stamper.ErrNoDocument)

	loadPages(t, s, 1)
	_, err = s.Place(ctx)
	assert.ErrorIs(t, err, stamper.ErrNoSelection)
}

func TestToggleStamp(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	def := addAndSelect(t, s)

	require.NoError(t, s.ToggleStamp(ctx, def.ID))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Selected, "toggling the selected stamp clears it")

	require.NoError(t, s.ToggleStamp(ctx, def.ID))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, def.ID, snap.Selected)
}

func TestRemoveStampKeepsInstances(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	loadPages(t, s, 1)
	def := addAndSelect(t, s)

	inst, err := s.Place(ctx)
	require.NoError(t, err)

	removed, err := s.RemoveStamp(ctx, def.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Definitions)
	assert.Empty(t, snap.Selected, "selection is cleared with its definition")
	require.Len(t, snap.Instances, 1)
	assert.Equal(t, inst.ID, snap.Instances[0].ID)
}

func TestAddStampsFillsFreeSlots(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	addAndSelect(t, s)

	files := []upload.File{{Name: "notes.txt", Data: []byte("hello")}}
	for i := 0; i < 5; i++ {
		files = append(files, upload.File{Name: fmt.Sprintf("s%d.png", i), Data: pdftest.PNG(t, 10+i, 10, pdftest.Red)})
	}

	added, errs := s.AddStamps(ctx, files)
	assert.Len(t, added, 3)
	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs[0], stamper.ErrInvalidFileType)
	assert.ErrorIs(t, errs[1], stamper.ErrCapacity)
	assert.ErrorIs(t, errs[2], stamper.ErrCapacity)

	_, err := s.AddStamp(ctx, "fifth.png", pdftest.PNG(t, 8, 8, pdftest.Red))
	require.NoError(t, err)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Definitions, 5)

	_, err = s.AddStamp(ctx, "sixth.png", pdftest.PNG(t, 9, 9, pdftest.Red))
	assert.ErrorIs(t, err, stamper.ErrCapacity)
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Definitions, 5, "a rejected sixth stamp changes nothing")
}

func TestDeleteSelected(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	loadPages(t, s, 1)
	addAndSelect(t, s)

	inst, err := s.Place(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SelectInstance(ctx, ""))

	deleted, err := s.DeleteSelected(ctx)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, s.SelectInstance(ctx, inst.ID))
	deleted, err = s.DeleteSelected(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Empty(t, snap.Active)
}

func TestDocumentSwapKeepsStampsDormant(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	loadPages(t, s, 3)
	addAndSelect(t, s)
	require.NoError(t, s.GoToPage(ctx, 3))
	_, err := s.Place(ctx)
	require.NoError(t, err)

	loadPages(t, s, 1)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 1, snap.Total)
	assert.Len(t, snap.Dormant, 1)

	out, err := s.Export(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Placed)

	loadPages(t, s, 3)
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Dormant, "a longer document brings the stamp back")
}

func TestCloseDocument(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	loadPages(t, s, 2)
	require.NoError(t, s.CloseDocument(ctx))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Document)
	assert.Equal(t, pagesync.Idle, snap.State)

	_, err = s.Export(ctx)
	assert.ErrorIs(t, err, stamper.ErrNoDocument)
	_, err = s.RenderSurface(ctx)
	assert.ErrorIs(t, err, stamper.ErrNoDocument)
}

func TestRenderSurface(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	loadPages(t, s, 1)
	img, err := s.RenderSurface(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, img.Bounds().Dx())
	assert.Equal(t, 708, img.Bounds().Dy())
}

func TestGoToInvalidPage(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	assert.ErrorIs(t, s.GoToPage(ctx, 1), stamper.ErrNoDocument)
	loadPages(t, s, 2)
	assert.ErrorIs(t, s.GoToPage(ctx, 3), stamper.ErrInvalidPage)
}

func TestClosedSession(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, stamper.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.GoToPage(ctx, 1), stamper.ErrClosed)
	_, err = s.Place(ctx)
	assert.ErrorIs(t, err, stamper.ErrClosed)
	_, err = s.Snapshot(ctx)
	assert.ErrorIs(t, err, stamper.ErrClosed)
}
