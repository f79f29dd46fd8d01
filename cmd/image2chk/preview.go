package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"image2chk/internal/render"
	"image2chk/pkg/checkpoint"
	errs "image2chk/pkg/errors"
	"image2chk/pkg/storage"
)

var previewOutput string

// previewCmd renders the traps of an existing checkpoint
var previewCmd = &cobra.Command{
	Use:   "preview <checkpoint>",
	Short: "Render the traps of a checkpoint as an image",
	Long: `Draw the first layer of a checkpoint's traps as green points on a white
background. The output format follows the extension of --output (png, svg,
pdf, ...); by default <name>-traps.png is written next to the checkpoint.`,
	Example: `  image2chk preview sim.inp
  image2chk preview sim.inp.gz -o traps.svg`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "image to write")
}

// previewPathFor names the preview after the checkpoint, dropping .gz and
// the checkpoint extension
func previewPathFor(chkPath, name string) string {
	base := chkPath
	if storage.IsCompressed(base) {
		base = base[:len(base)-len(filepath.Ext(base))]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return storage.FormatOutput(base, name, "png")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(changedFlags(cmd))
	if err != nil {
		return err
	}

	chk, err := checkpoint.Load(args[0])
	if err != nil {
		return err
	}

	out := previewOutput
	if out == "" {
		out = previewPathFor(args[0], cfg.Preview.Name)
	}

	opts := render.OptionsFromConfig(cfg.Preview)
	opts.Title = filepath.Base(args[0])
	if err := render.SaveTraps(chk, out, opts); err != nil {
		return errs.IO("preview", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "saved: %s\n", out)
	return nil
}
