package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/coords"
	"github.com/jungcome7/pdf-stamper/internal/config"
	"github.com/jungcome7/pdf-stamper/pdfinfo"
	"github.com/jungcome7/pdf-stamper/session"
	"github.com/jungcome7/pdf-stamper/upload"
)

// Generated stamp parameters.
const (
	defaultQRSize = 256
	pdf417Columns = 4
	pdf417Module  = 2
)

var applyOutput string

var applyCmd = &cobra.Command{
	Use:   "apply <job.toml>",
	Short: "Stamp a document from a job file",
	Long: `Apply reads a TOML job file naming a document, the stamps to use and
where to place them, and writes the stamped PDF.

Example job:

  document = "contract.pdf"

  [[stamp]]
  id   = "seal"
  file = "seal.png"

  [[stamp]]
  id = "link"
  qr = "https://example.com/contracts/42"

  [[place]]
  stamp = "seal"
  page  = 1

  [[place]]
  stamp = "link"
  page  = 3
  x     = 60
  y     = 60
  units = "page"`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "output file (default: next to the document)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	job, err := config.LoadJob(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sess, err := session.New(ctx, appConfig)
	if err != nil {
		return err
	}
	defer sess.Close()

	out, err := applyJob(ctx, sess, job)
	if err != nil {
		return err
	}

	path := applyOutput
	if path == "" {
		path = job.Output
	}
	if path == "" {
		path = filepath.Join(filepath.Dir(job.Document), out.Name)
	}
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	for _, skip := range out.Skipped {
		cmd.PrintErrf("skipped stamp %s on page %d: %v\n", skip.InstanceID, skip.Page, skip.Err)
	}
	for _, id := range out.OffPage {
		cmd.PrintErrf("stamp %s lies outside its page\n", id)
	}
	cmd.Printf("wrote %s: %d pages, %d stamps placed\n", path, out.Pages, out.Placed)
	return nil
}

// applyJob runs job against sess: it loads the document, registers every
// stamp, places them in order and exports.
func applyJob(ctx context.Context, sess *session.Session, job *config.Job) (*session.Exported, error) {
	data, err := os.ReadFile(job.Document)
	if err != nil {
		return nil, err
	}
	if _, err := sess.LoadDocument(ctx, filepath.Base(job.Document), data); err != nil {
		return nil, err
	}
	inv, err := pdfinfo.Inspect(data)
	if err != nil {
		return nil, err
	}

	defs := make(map[string]string, len(job.Stamps))
	for _, s := range job.Stamps {
		def, err := addJobStamp(ctx, sess, s)
		if err != nil {
			return nil, fmt.Errorf("stamp %q: %w", s.ID, err)
		}
		defs[s.ID] = def.ID
	}

	surface := sess.Config().Surface()
	for i, p := range job.Places {
		if err := placeJobStamp(ctx, sess, inv, surface, defs[p.Stamp], p); err != nil {
			return nil, fmt.Errorf("place %d: %w", i+1, err)
		}
	}
	return sess.Export(ctx)
}

func addJobStamp(ctx context.Context, sess *session.Session, s config.Stamp) (stamper.StampDefinition, error) {
	var (
		def stamper.StampDefinition
		err error
	)
	switch {
	case s.File != "":
		var data []byte
		if data, err = os.ReadFile(s.File); err != nil {
			return def, err
		}
		return sess.AddStamp(ctx, filepath.Base(s.File), data)
	case s.QR != "":
		size := s.Size
		if size <= 0 {
			size = defaultQRSize
		}
		def, err = upload.GenerateQR(s.QR, size)
	default:
		def, err = upload.GeneratePDF417(s.PDF417, pdf417Columns, pdf417Module)
	}
	if err != nil {
		return def, err
	}
	return def, sess.AddDefinition(ctx, def)
}

func placeJobStamp(ctx context.Context, sess *session.Session, inv *pdfinfo.Inventory, surface coords.Size, defID string, p config.Place) error {
	page, err := inv.Size(p.Page)
	if err != nil {
		return err
	}
	if err := sess.GoToPage(ctx, p.Page); err != nil {
		return err
	}
	if err := sess.WaitReady(ctx); err != nil {
		return err
	}
	if err := sess.SelectStamp(ctx, defID); err != nil {
		return err
	}
	inst, err := sess.Place(ctx)
	if err != nil {
		return err
	}

	current := coords.Placement{Center: coords.Point{X: inst.X, Y: inst.Y}, Scale: inst.ScaleX}
	center, sx, sy, err := p.Resolve(page, surface, current)
	if err != nil {
		return err
	}
	if center == current.Center && sx == inst.ScaleX && sy == inst.ScaleY {
		return nil
	}
	return sess.Transform(ctx, inst.ID, center.X, center.Y, sx, sy)
}
