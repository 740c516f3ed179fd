package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/compose"
	"github.com/jungcome7/pdf-stamper/pagesync"
	"github.com/jungcome7/pdf-stamper/session"
)

type transformCall struct {
	id                   string
	x, y, scaleX, scaleY float64
}

type fakeSession struct {
	snap       session.Snapshot
	pages      []int
	waited     int
	toggled    []string
	placed     int
	selected   []string
	transforms []transformCall
	deleted    bool
	exported   *session.Exported
	err        error
}

func (f *fakeSession) Snapshot(context.Context) (session.Snapshot, error) { return f.snap, f.err }
func (f *fakeSession) GoToPage(_ context.Context, n int) error {
	f.pages = append(f.pages, n)
	return f.err
}
func (f *fakeSession) WaitReady(context.Context) error {
	f.waited++
	return nil
}
func (f *fakeSession) ToggleStamp(_ context.Context, id string) error {
	f.toggled = append(f.toggled, id)
	return f.err
}
func (f *fakeSession) Place(context.Context) (stamper.StampInstance, error) {
	f.placed++
	return stamper.StampInstance{ID: "0123456789abcdef", Page: f.snap.Page}, f.err
}
func (f *fakeSession) SelectInstance(_ context.Context, id string) error {
	f.selected = append(f.selected, id)
	return f.err
}
func (f *fakeSession) Transform(_ context.Context, id string, x, y, sx, sy float64) error {
	f.transforms = append(f.transforms, transformCall{id, x, y, sx, sy})
	return f.err
}
func (f *fakeSession) DeleteSelected(context.Context) (bool, error) { return f.deleted, f.err }
func (f *fakeSession) Export(context.Context) (*session.Exported, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.exported, nil
}

func newTestSession() *fakeSession {
	return &fakeSession{snap: session.Snapshot{
		Document: &stamper.Document{Name: "contract.pdf", PageCount: 3},
		Page:     2,
		State:    pagesync.Ready,
		Definitions: []stamper.StampDefinition{
			{ID: "def-seal", Name: "seal.png", Width: 120, Height: 80},
			{ID: "def-sign", Name: "sign.png", Width: 200, Height: 60},
		},
		Selected:  "def-seal",
		MaxStamps: 5,
		Instances: []stamper.StampInstance{
			{ID: "inst-a", DefinitionID: "def-seal", Page: 2, X: 100, Y: 200, ScaleX: 0.5, ScaleY: 0.5},
			{ID: "inst-b", DefinitionID: "def-sign", Page: 2, X: 300, Y: 400, ScaleX: 1, ScaleY: 1},
		},
		Total:  2,
		Active: "inst-a",
	}}
}

// newTestApp returns an app that has already received its first snapshot.
func newTestApp(t *testing.T, sess *fakeSession) *App {
	t.Helper()
	app, err := NewApp(sess, t.TempDir())
	require.NoError(t, err)
	app.Update(app.refresh()())
	return app
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command chain once.
func press(t *testing.T, app *App, msg tea.KeyMsg) tea.Msg {
	t.Helper()
	_, cmd := app.Update(msg)
	if cmd == nil {
		return nil
	}
	out := cmd()
	_, next := app.Update(out)
	if next != nil {
		app.Update(next())
	}
	return out
}

func TestNewApp_RequiresSession(t *testing.T) {
	app, err := NewApp(nil, "")
	assert.Error(t, err)
	assert.Nil(t, app)
}

func TestApp_Init(t *testing.T) {
	app, err := NewApp(newTestSession(), "")
	require.NoError(t, err)
	assert.NotNil(t, app.Init())
}

func TestApp_WindowSize(t *testing.T) {
	app := newTestApp(t, newTestSession())
	model, cmd := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
	assert.Equal(t, 100, app.help.Width)
}

func TestApp_View(t *testing.T) {
	app := newTestApp(t, newTestSession())
	view := app.View()
	assert.Contains(t, view, "contract.pdf")
	assert.Contains(t, view, "Page 2 of 3")
	assert.Contains(t, view, "Stamps 2/5")
	assert.Contains(t, view, "seal.png")
	assert.Contains(t, view, "inst-a")
	assert.Contains(t, view, "inst-b")
}

func TestApp_View_NoDocument(t *testing.T) {
	app := newTestApp(t, &fakeSession{})
	assert.Contains(t, app.View(), "No document loaded")
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t, newTestSession())
	_, cmd := app.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_PageNavigation(t *testing.T) {
	sess := newTestSession()
	app := newTestApp(t, sess)

	press(t, app, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, []int{3}, sess.pages)
	assert.Equal(t, 1, sess.waited)
	assert.Equal(t, "page 3", app.Status())

	press(t, app, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, []int{3, 1}, sess.pages)

	t.Run("stops at the last page", func(t *testing.T) {
		sess.snap.Page = 3
		app.Update(app.refresh()())
		_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRight})
		assert.Nil(t, cmd)
	})

	t.Run("stops at the first page", func(t *testing.T) {
		sess.snap.Page = 1
		app.Update(app.refresh()())
		_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyLeft})
		assert.Nil(t, cmd)
	})
}

func TestApp_ToggleUsesCursor(t *testing.T) {
	sess := newTestSession()
	app := newTestApp(t, sess)

	press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	press(t, app, tea.KeyMsg{Type: tea.KeyDown})
	press(t, app, tea.KeyMsg{Type: tea.KeyDown})
	press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	press(t, app, tea.KeyMsg{Type: tea.KeyUp})
	press(t, app, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"def-seal", "def-sign", "def-seal"}, sess.toggled)
}

func TestApp_Place(t *testing.T) {
	sess := newTestSession()
	app := newTestApp(t, sess)

	press(t, app, runes("p"))
	assert.Equal(t, 1, sess.placed)
	assert.Equal(t, "placed 01234567 on page 2", app.Status())

	sess.err = stamper.ErrNoSelection
	press(t, app, runes("p"))
	assert.ErrorIs(t, app.Err(), stamper.ErrNoSelection)
}

func TestApp_CycleActive(t *testing.T) {
	sess := newTestSession()
	app := newTestApp(t, sess)

	press(t, app, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, []string{"inst-b"}, sess.selected)

	sess.snap.Active = "inst-b"
	app.Update(app.refresh()())
	press(t, app, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, []string{"inst-b", "inst-a"}, sess.selected)
}

func TestApp_MoveAndScale(t *testing.T) {
	sess := newTestSession()
	app := newTestApp(t, sess)

	press(t, app, runes("L"))
	press(t, app, runes("K"))
	press(t, app, runes("+"))

	require.Len(t, sess.transforms, 3)
	assert.Equal(t, transformCall{"inst-a", 105, 200, 0.5, 0.5}, sess.transforms[0])
	assert.Equal(t, transformCall{"inst-a", 100, 195, 0.5, 0.5}, sess.transforms[1])
	assert.InDelta(t, 0.55, sess.transforms[2].scaleX, 1e-9)
	assert.InDelta(t, 0.55, sess.transforms[2].scaleY, 1e-9)
}

func TestApp_MoveWithoutActive(t *testing.T) {
	sess := newTestSession()
	sess.snap.Active = ""
	app := newTestApp(t, sess)

	_, cmd := app.Update(runes("H"))
	assert.Nil(t, cmd)
	assert.Empty(t, sess.transforms)
	assert.Equal(t, "no stamp selected", app.Status())
}

func TestApp_Delete(t *testing.T) {
	tests := []struct {
		name    string
		key     tea.KeyMsg
		deleted bool
		want    string
	}{
		{"delete key", tea.KeyMsg{Type: tea.KeyDelete}, true, "deleted stamp"},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, true, "deleted stamp"},
		{"nothing selected", tea.KeyMsg{Type: tea.KeyDelete}, false, "no stamp selected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newTestSession()
			sess.deleted = tt.deleted
			app := newTestApp(t, sess)

			press(t, app, tt.key)
			assert.Equal(t, tt.want, app.Status())
		})
	}
}

func TestApp_Export(t *testing.T) {
	sess := newTestSession()
	sess.exported = &session.Exported{
		Name:   "stamped_contract_20260102-030405.pdf",
		Result: &compose.Result{Data: []byte("%PDF-1.4"), Pages: 3, Placed: 2},
	}
	app := newTestApp(t, sess)

	msg := press(t, app, runes("e"))
	require.IsType(t, exportedMsg{}, msg)

	path := filepath.Join(app.outDir, "stamped_contract_20260102-030405.pdf")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
	assert.Contains(t, app.Status(), "2 placed, 0 skipped")
}

func TestApp_ExportFailure(t *testing.T) {
	sess := newTestSession()
	app := newTestApp(t, sess)
	sess.err = stamper.ErrNoDocument

	press(t, app, runes("e"))
	assert.ErrorIs(t, app.Err(), stamper.ErrNoDocument)
	assert.Empty(t, app.Status())
}

func TestApp_Reloaded(t *testing.T) {
	sess := newTestSession()
	app := newTestApp(t, sess)

	_, cmd := app.Update(ReloadedMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, "document reloaded", app.Status())
	assert.IsType(t, snapshotMsg{}, cmd())
}

func TestApp_HelpToggle(t *testing.T) {
	app := newTestApp(t, newTestSession())
	press(t, app, runes("?"))
	assert.True(t, app.help.ShowAll)
	press(t, app, runes("?"))
	assert.False(t, app.help.ShowAll)
}
