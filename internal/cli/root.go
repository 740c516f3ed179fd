// Package cli is the pdf-stamper command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/internal/config"
	"github.com/jungcome7/pdf-stamper/internal/logger"
)

var version = "dev"

var (
	cfgFile string
	verbose bool

	// Set by the root command before any subcommand runs.
	appConfig stamper.Config
	appLog    *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pdf-stamper",
	Short: "Place image stamps on PDF pages",
	Long: `pdf-stamper places image stamps (seals, signatures, QR codes) on the
pages of an existing PDF and writes a new PDF with the stamps baked in.

Stamps can be placed interactively (edit), from a job file (apply), or by an
AI assistant through the MCP server (mcp).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.pdf-stamper/config.toml)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	} else if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var file config.File
	if path != "" {
		f, err := config.Load(path)
		if err != nil {
			return err
		}
		file = f
	}

	appLog = logger.New(cmd.ErrOrStderr(), verbose || file.Verbose)
	appConfig = stamper.NewConfig(append(file.Options(), stamper.WithLogger(appLog))...)
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}
