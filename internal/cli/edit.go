package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/internal/tui"
	"github.com/jungcome7/pdf-stamper/internal/watch"
	"github.com/jungcome7/pdf-stamper/session"
)

var (
	editStamps []string
	editWatch  bool
	editOut    string
	editLog    string
)

var editCmd = &cobra.Command{
	Use:   "edit <document.pdf>",
	Short: "Place stamps interactively in the terminal",
	Long: `Edit opens the document in a keyboard-driven editor. Pick a stamp with
enter, place it with p, nudge the active stamp with H/J/K/L, resize it with
+/-, delete it with del and export with e. Press ? for all keys.

With --watch the document is reloaded whenever the file changes on disk.
Placed stamps are kept across reloads.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringSliceVarP(&editStamps, "stamp", "s", nil, "PNG stamp to load (repeatable)")
	editCmd.Flags().BoolVarP(&editWatch, "watch", "w", false, "reload the document when it changes")
	editCmd.Flags().StringVarP(&editOut, "out", "o", "", "export directory (default: the document's directory)")
	editCmd.Flags().StringVar(&editLog, "log", "", "write log output to this file")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The editor owns the terminal.
	var logOut io.Writer = io.Discard
	if editLog != "" {
		f, err := os.Create(editLog)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	appLog.SetOutput(logOut)

	sess, err := openEditSession(ctx, args[0], editStamps)
	if err != nil {
		return err
	}
	defer sess.Close()

	outDir := editOut
	if outDir == "" {
		outDir = filepath.Dir(args[0])
	}
	app, err := tui.NewApp(sess, outDir)
	if err != nil {
		return err
	}

	var reloads chan error
	if editWatch {
		reloads = make(chan error, 1)
		w := watch.New(args[0], sess,
			watch.WithLogger(appLog),
			watch.OnReload(func(_ *stamper.Document, err error) {
				select {
				case reloads <- err:
				default:
				}
			}),
		)
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Warn("watcher stopped", stamper.Err(err))
			}
		}()
	}
	return tui.Run(ctx, app, reloads)
}

// openEditSession starts a session with the document and stamps loaded and
// the first page ready.
func openEditSession(ctx context.Context, doc string, stamps []string) (*session.Session, error) {
	sess, err := session.New(ctx, appConfig)
	if err != nil {
		return nil, err
	}
	if err := loadEditFiles(ctx, sess, doc, stamps); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

func loadEditFiles(ctx context.Context, sess *session.Session, doc string, stamps []string) error {
	data, err := os.ReadFile(doc)
	if err != nil {
		return err
	}
	if _, err := sess.LoadDocument(ctx, filepath.Base(doc), data); err != nil {
		return err
	}
	for _, path := range stamps {
		img, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := sess.AddStamp(ctx, filepath.Base(path), img); err != nil {
			return err
		}
	}
	return sess.WaitReady(ctx)
}
