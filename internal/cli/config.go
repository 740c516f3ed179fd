package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with the default values",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		cmd.Println(path)
		return nil
	},
}

var configForce bool

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	def := stamper.DefaultConfig()
	file := config.File{
		Surface:      config.Surface{Width: def.SurfaceWidth, Height: def.SurfaceHeight},
		Placement:    config.Placement{Footprint: def.Footprint, Margin: def.Margin},
		MaxStamps:    def.MaxStamps,
		PreviewScale: def.PreviewScale,
		OutputPrefix: def.OutputPrefix,
	}
	if err := config.Save(path, file); err != nil {
		return err
	}
	cmd.Printf("wrote %s\n", path)
	return nil
}
