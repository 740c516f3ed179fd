package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jungcome7/pdf-stamper/pdfinfo"
	"github.com/jungcome7/pdf-stamper/upload"
)

var infoCmd = &cobra.Command{
	Use:   "info <document.pdf>",
	Short: "Show page count and page sizes",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := upload.ValidateDocument(args[0], data); err != nil {
		return err
	}
	inv, err := pdfinfo.Inspect(data)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	cmd.Printf("%s: %d pages\n", filepath.Base(args[0]), inv.PageCount())
	for i, size := range inv.Sizes() {
		cmd.Printf("  page %d: %.2f x %.2f pt\n", i+1, size.W, size.H)
	}
	return nil
}
