package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/coords"
	"github.com/jungcome7/pdf-stamper/internal/config"
	"github.com/jungcome7/pdf-stamper/internal/pdftest"
	"github.com/jungcome7/pdf-stamper/pdfinfo"
	"github.com/jungcome7/pdf-stamper/session"
)

// execute runs the root command with args in an isolated home directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		cfgFile, verbose = "", false
		applyOutput, configForce, mcpDocument = "", false, ""
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// writeFixtures writes a two-page Letter PDF and a PNG stamp.
func writeFixtures(t *testing.T) (dir, doc, stamp string) {
	t.Helper()
	dir = t.TempDir()
	doc = filepath.Join(dir, "contract.pdf")
	stamp = filepath.Join(dir, "seal.png")
	require.NoError(t, os.WriteFile(doc, pdftest.Pages(t, 2), 0o644))
	require.NoError(t, os.WriteFile(stamp, pdftest.PNG(t, 120, 80, pdftest.Red), 0o644))
	return dir, doc, stamp
}

func TestVersionCmd(t *testing.T) {
	original := version
	SetVersion("1.2.3")
	defer func() { version = original }()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pdf-stamper version 1.2.3")
}

func TestInfoCmd(t *testing.T) {
	_, doc, stamp := writeFixtures(t)

	out, err := execute(t, "info", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "contract.pdf: 2 pages")
	assert.Contains(t, out, "page 2: 612.00 x 792.00 pt")

	_, err = execute(t, "info", stamp)
	assert.ErrorIs(t, err, stamper.ErrInvalidFileType)
}

func TestConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	_, err := execute(t, "--config", path, "config", "path")
	assert.Error(t, err, "an explicit config file must exist")

	t.Setenv("HOME", t.TempDir())
	home := os.Getenv("HOME")
	rootCmd.SetArgs([]string{"config", "init"})
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	require.NoError(t, rootCmd.Execute())
	rootCmd.SetArgs(nil)

	written := filepath.Join(home, ".pdf-stamper", "config.toml")
	assert.Contains(t, buf.String(), written)
	f, err := config.Load(written)
	require.NoError(t, err)
	assert.Equal(t, stamper.DefaultMaxStamps, f.MaxStamps)
	assert.Equal(t, stamper.DefaultOutputPrefix, f.OutputPrefix)

	rootCmd.SetArgs([]string{"config", "init"})
	assert.Error(t, rootCmd.Execute(), "init refuses to overwrite")
	rootCmd.SetArgs(nil)
}

func TestApplyCmd(t *testing.T) {
	dir, _, _ := writeFixtures(t)
	job := filepath.Join(dir, "job.toml")
	out := filepath.Join(dir, "signed.pdf")
	require.NoError(t, os.WriteFile(job, []byte(`
document = "contract.pdf"

[[stamp]]
id = "seal"
file = "seal.png"

[[stamp]]
id = "link"
qr = "https://example.com/contracts/42"
size = 64

[[place]]
stamp = "seal"
page = 1

[[place]]
stamp = "link"
page = 2
x = 60
y = 60
units = "page"
`), 0o644))

	stdout, err := execute(t, "apply", job, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 pages, 2 stamps placed")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	inv, err := pdfinfo.Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.PageCount())
}

func TestApplyJob(t *testing.T) {
	dir, doc, stamp := writeFixtures(t)
	ctx := context.Background()

	newSession := func(t *testing.T) *session.Session {
		sess, err := session.New(ctx, stamper.DefaultConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = sess.Close() })
		return sess
	}
	x, y, scale := 60.0, 60.0, 0.5

	t.Run("page units are mapped to the surface", func(t *testing.T) {
		sess := newSession(t)
		job := &config.Job{
			Document: doc,
			Stamps:   []config.Stamp{{ID: "seal", File: stamp}},
			Places:   []config.Place{{Stamp: "seal", Page: 2, X: &x, Y: &y, ScaleX: &scale, ScaleY: &scale, Units: config.UnitsPage}},
		}
		out, err := applyJob(ctx, sess, job)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Placed)
		assert.True(t, strings.HasPrefix(out.Name, "stamped_contract_"), out.Name)

		snap, err := sess.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, snap.Instances, 1)
		inst := snap.Instances[0]

		m, err := coords.NewMapping(pdftest.Letter, stamper.DefaultConfig().Surface())
		require.NoError(t, err)
		want, err := m.ToSurface(coords.Point{X: x, Y: y})
		require.NoError(t, err)
		sx, sy := m.Scale()
		assert.InDelta(t, want.X, inst.X, 1e-6)
		assert.InDelta(t, want.Y, inst.Y, 1e-6)
		assert.InDelta(t, scale/sx, inst.ScaleX, 1e-9)
		assert.InDelta(t, scale/sy, inst.ScaleY, 1e-9)
	})

	t.Run("default placement is kept without a position", func(t *testing.T) {
		sess := newSession(t)
		job := &config.Job{
			Document: doc,
			Stamps:   []config.Stamp{{ID: "code", PDF417: "INV-42"}},
			Places:   []config.Place{{Stamp: "code", Page: 1}},
		}
		out, err := applyJob(ctx, sess, job)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Placed)
		assert.Empty(t, out.Skipped)
	})

	t.Run("page beyond the document", func(t *testing.T) {
		sess := newSession(t)
		job := &config.Job{
			Document: doc,
			Stamps:   []config.Stamp{{ID: "seal", File: stamp}},
			Places:   []config.Place{{Stamp: "seal", Page: 9}},
		}
		_, err := applyJob(ctx, sess, job)
		assert.ErrorIs(t, err, stamper.ErrInvalidPage)
	})

	t.Run("missing stamp file", func(t *testing.T) {
		sess := newSession(t)
		job := &config.Job{
			Document: doc,
			Stamps:   []config.Stamp{{ID: "seal", File: filepath.Join(dir, "missing.png")}},
		}
		_, err := applyJob(ctx, sess, job)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadEditFiles(t *testing.T) {
	_, doc, stamp := writeFixtures(t)
	ctx := context.Background()

	sess, err := session.New(ctx, stamper.DefaultConfig())
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, loadEditFiles(ctx, sess, doc, []string{stamp}))
	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Document)
	assert.Equal(t, 2, snap.Document.PageCount)
	require.Len(t, snap.Definitions, 1)
	assert.Equal(t, "seal", snap.Definitions[0].Name)

	assert.Error(t, loadEditFiles(ctx, sess, doc, []string{doc}))
}
