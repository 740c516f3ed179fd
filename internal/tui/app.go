// Package tui is a keyboard-driven stamp editor running on a session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/session"
)

const (
	moveStep   = 5.0 // surface units per nudge
	scaleStep  = 1.1
	shortIDLen = 8
)

// Session is the part of session.Session the editor drives.
type Session interface {
	Snapshot(ctx context.Context) (session.Snapshot, error)
	GoToPage(ctx context.Context, n int) error
	WaitReady(ctx context.Context) error
	ToggleStamp(ctx context.Context, id string) error
	Place(ctx context.Context) (stamper.StampInstance, error)
	SelectInstance(ctx context.Context, id string) error
	Transform(ctx context.Context, id string, x, y, scaleX, scaleY float64) error
	DeleteSelected(ctx context.Context) (bool, error)
	Export(ctx context.Context) (*session.Exported, error)
}

var _ Session = (*session.Session)(nil)

// App is the editor model.
type App struct {
	sess   Session
	ctx    context.Context
	keys   *KeyMap
	styles *Styles
	help   help.Model

	// outDir receives exported files.
	outDir string

	snap   session.Snapshot
	cursor int // index into snap.Definitions
	status string
	err    error

	width  int
	height int
}

var _ tea.Model = (*App)(nil)

// NewApp returns an editor bound to sess. Exports are written to outDir.
func NewApp(sess Session, outDir string) (*App, error) {
	if sess == nil {
		return nil, errors.New("creating app: session is required")
	}
	return &App{
		sess:   sess,
		ctx:    context.Background(),
		keys:   DefaultKeyMap(),
		styles: DefaultStyles(),
		help:   help.New(),
		outDir: outDir,
	}, nil
}

// WithContext sets the context passed to session calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("pdf-stamper"),
		a.refresh(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case snapshotMsg:
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.snap = msg.snap
		a.clampCursor()
		return a, nil

	case actionMsg:
		a.setResult(msg.status, msg.err)
		return a, a.refresh()

	case exportedMsg:
		status := ""
		if msg.err == nil {
			status = fmt.Sprintf("exported %s (%d placed, %d skipped)", msg.path, msg.placed, msg.skipped)
		}
		a.setResult(status, msg.err)
		return a, nil

	case ReloadedMsg:
		a.setResult("document reloaded", msg.Err)
		return a, a.refresh()

	case tea.KeyMsg:
		return a, a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return nil
	case key.Matches(msg, a.keys.PrevPage):
		return a.goToPage(a.snap.Page - 1)
	case key.Matches(msg, a.keys.NextPage):
		return a.goToPage(a.snap.Page + 1)
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return nil
	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.snap.Definitions)-1 {
			a.cursor++
		}
		return nil
	case key.Matches(msg, a.keys.Toggle):
		return a.toggle()
	case key.Matches(msg, a.keys.Place):
		return a.run(func(ctx context.Context) (string, error) {
			inst, err := a.sess.Place(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("placed %s on page %d", shortID(inst.ID), inst.Page), nil
		})
	case key.Matches(msg, a.keys.Cycle):
		return a.cycle()
	case key.Matches(msg, a.keys.MoveLeft):
		return a.nudge(-moveStep, 0, 1)
	case key.Matches(msg, a.keys.MoveRight):
		return a.nudge(moveStep, 0, 1)
	case key.Matches(msg, a.keys.MoveUp):
		return a.nudge(0, -moveStep, 1)
	case key.Matches(msg, a.keys.MoveDown):
		return a.nudge(0, moveStep, 1)
	case key.Matches(msg, a.keys.Grow):
		return a.nudge(0, 0, scaleStep)
	case key.Matches(msg, a.keys.Shrink):
		return a.nudge(0, 0, 1/scaleStep)
	case key.Matches(msg, a.keys.Delete):
		return a.run(func(ctx context.Context) (string, error) {
			deleted, err := a.sess.DeleteSelected(ctx)
			if err != nil || !deleted {
				return "no stamp selected", err
			}
			return "deleted stamp", nil
		})
	case key.Matches(msg, a.keys.Export):
		return a.export()
	}
	return nil
}

func (a *App) goToPage(n int) tea.Cmd {
	if !a.snap.Document.HasPage(n) {
		return nil
	}
	return a.run(func(ctx context.Context) (string, error) {
		if err := a.sess.GoToPage(ctx, n); err != nil {
			return "", err
		}
		if err := a.sess.WaitReady(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("page %d", n), nil
	})
}

func (a *App) toggle() tea.Cmd {
	if a.cursor >= len(a.snap.Definitions) {
		return nil
	}
	id := a.snap.Definitions[a.cursor].ID
	return a.run(func(ctx context.Context) (string, error) {
		return "", a.sess.ToggleStamp(ctx, id)
	})
}

func (a *App) cycle() tea.Cmd {
	insts := a.snap.Instances
	if len(insts) == 0 {
		return nil
	}
	next := 0
	for i, inst := range insts {
		if inst.ID == a.snap.Active {
			next = (i + 1) % len(insts)
			break
		}
	}
	id := insts[next].ID
	return a.run(func(ctx context.Context) (string, error) {
		return "", a.sess.SelectInstance(ctx, id)
	})
}

func (a *App) nudge(dx, dy, factor float64) tea.Cmd {
	inst, ok := a.active()
	if !ok {
		a.setResult("no stamp selected", nil)
		return nil
	}
	return a.run(func(ctx context.Context) (string, error) {
		return "", a.sess.Transform(ctx, inst.ID, inst.X+dx, inst.Y+dy, inst.ScaleX*factor, inst.ScaleY*factor)
	})
}

func (a *App) export() tea.Cmd {
	ctx, dir := a.ctx, a.outDir
	return func() tea.Msg {
		out, err := a.sess.Export(ctx)
		if err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, out.Name)
		if err := os.WriteFile(path, out.Data, 0o644); err != nil {
			return exportedMsg{err: fmt.Errorf("writing %s: %w", path, err)}
		}
		return exportedMsg{path: path, placed: out.Placed, skipped: len(out.Skipped)}
	}
}

func (a *App) run(fn func(ctx context.Context) (string, error)) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		status, err := fn(ctx)
		return actionMsg{status: status, err: err}
	}
}

func (a *App) refresh() tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		snap, err := a.sess.Snapshot(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (a *App) setResult(status string, err error) {
	a.err = err
	a.status = ""
	if err == nil {
		a.status = status
	}
}

func (a *App) active() (stamper.StampInstance, bool) {
	for _, inst := range a.snap.Instances {
		if inst.ID == a.snap.Active {
			return inst, true
		}
	}
	return stamper.StampInstance{}, false
}

func (a *App) clampCursor() {
	if a.cursor >= len(a.snap.Definitions) {
		a.cursor = max(len(a.snap.Definitions)-1, 0)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	s := a.styles
	var b strings.Builder

	doc := a.snap.Document
	title := "pdf-stamper"
	if doc != nil {
		title += "  " + doc.Name
	}
	b.WriteString(s.Title.Render(title))
	b.WriteString("\n")
	if doc == nil {
		b.WriteString(s.Muted.Render("No document loaded"))
	} else {
		b.WriteString(s.Normal.Render(fmt.Sprintf("Page %d of %d  %s  %d placed",
			a.snap.Page, doc.PageCount, a.snap.State, a.snap.Total)))
		if n := len(a.snap.Dormant); n > 0 {
			b.WriteString(s.Warning.Render(fmt.Sprintf("  %d beyond last page", n)))
		}
	}
	b.WriteString("\n\n")

	b.WriteString(s.Subtitle.Render(fmt.Sprintf("Stamps %d/%d", len(a.snap.Definitions), a.snap.MaxStamps)))
	b.WriteString("\n")
	if len(a.snap.Definitions) == 0 {
		b.WriteString(s.Muted.Render("  none"))
		b.WriteString("\n")
	}
	for i, def := range a.snap.Definitions {
		cursor, mark := "  ", "○"
		if i == a.cursor {
			cursor = "> "
		}
		if def.ID == a.snap.Selected {
			mark = "●"
		}
		line := fmt.Sprintf("%s%s %s  %dx%d", cursor, mark, displayName(def), def.Width, def.Height)
		if i == a.cursor {
			line = s.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(s.Subtitle.Render("On this page"))
	b.WriteString("\n")
	if len(a.snap.Instances) == 0 {
		b.WriteString(s.Muted.Render("  none"))
		b.WriteString("\n")
	}
	for _, inst := range a.snap.Instances {
		line := fmt.Sprintf("  %s  (%.1f, %.1f)  x%.2f", shortID(inst.ID), inst.X, inst.Y, inst.ScaleX)
		if inst.ID == a.snap.Active {
			line = s.Active.Render("* " + line[2:])
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case a.err != nil:
		b.WriteString(s.Error.Render(a.err.Error()))
	case a.status != "":
		b.WriteString(s.Success.Render(a.status))
	}
	b.WriteString("\n")
	b.WriteString(a.help.View(a.keys))
	return b.String()
}

// Status returns the last status line.
func (a *App) Status() string { return a.status }

// Err returns the last error.
func (a *App) Err() error { return a.err }

func displayName(def stamper.StampDefinition) string {
	if def.Name != "" {
		return def.Name
	}
	return shortID(def.ID)
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// Run starts the editor on the terminal and blocks until it exits. Values
// sent on reloads are forwarded to the editor as ReloadedMsg.
func Run(ctx context.Context, app *App, reloads <-chan error) error {
	p := tea.NewProgram(app.WithContext(ctx), tea.WithAltScreen(), tea.WithContext(ctx))
	if reloads != nil {
		go func() {
			for {
				select {
				case err, ok := <-reloads:
					if !ok {
						return
					}
					p.Send(ReloadedMsg{Err: err})
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	_, err := p.Run()
	return err
}
