package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"image2chk/pkg/config"
	"image2chk/pkg/converter"
	errs "image2chk/pkg/errors"
	"image2chk/pkg/logger"
	"image2chk/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	noColor    bool

	// Conversion flags
	stub           string
	templatePath   string
	threshold      string
	invert         bool
	scalePotential bool
	outputDir      string
	compress       bool
	preview        bool
)

// rootCmd converts an image into a checkpoint when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "image2chk [image]",
	Short: "Convert an image into a Langmuir checkpoint",
	Long: `image2chk turns an image into a Langmuir simulation checkpoint.

Dark pixels become traps on a grid the size of the image. When the template
checkpoint exists its parameters, carriers and state seed the result;
otherwise default parameters are used. The result is written to <stub>.inp.`,
	Example: `  # Convert image.png, seeded by template.inp when present, into sim.inp
  image2chk

  # Convert a specific image into device.inp
  image2chk device.png --stub device

  # Treat bright pixels as traps and pick the cut automatically
  image2chk device.png --invert --threshold otsu`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColor(ui.DetectColor(os.Stdout, noColor))
	},
	RunE: runConvert,
}

// Execute runs the root command and exits with a status derived from the error
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(reportError(err))
	}
}

// reportError prints err to stderr and returns the exit status for it
func reportError(err error) int {
	ui.PrintError("image2chk", err)
	if errs.Is(err, errs.ErrorTypeConfig) {
		ui.PrintWarning("check the settings with: image2chk config validate")
	}
	return errs.ExitCode(err)
}

func init() {
	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .image2chk.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaults.Logging.Level, "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append JSON logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.Flags().StringVar(&stub, "stub", defaults.Convert.Stub, "output filename stem")
	rootCmd.Flags().StringVar(&templatePath, "template", defaults.Convert.Template, "template checkpoint, used when it exists")
	rootCmd.Flags().StringVar(&threshold, "threshold", defaults.Convert.Threshold, "trap cut: a number in [0,1], mean or otsu")
	rootCmd.Flags().BoolVar(&invert, "invert", false, "make bright pixels traps")
	rootCmd.Flags().BoolVar(&scalePotential, "scale-potential", false, "scale trap potential by pixel intensity")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for output files")
	rootCmd.Flags().BoolVar(&compress, "compress", false, "gzip the checkpoint (<stub>.inp.gz)")
	rootCmd.Flags().BoolVar(&preview, "preview", false, "also render <stub>-traps.png")

	rootCmd.SetVersionTemplate(`image2chk {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// changedFlags collects the flags the user set explicitly, keyed by name
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Value.Type() == "bool" {
			if b, err := strconv.ParseBool(f.Value.String()); err == nil {
				flags[f.Name] = b
			}
			return
		}
		flags[f.Name] = f.Value.String()
	})
	return flags
}

// loadConfig resolves configuration and starts logging
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeConfig, "load", configFile, err)
	}

	opts := logger.Options{NoColor: !ui.DetectColor(os.Stderr, noColor)}
	if err := logger.InitializeWithOptions(&cfg.Logging, opts); err != nil {
		return nil, errs.New(errs.ErrorTypeConfig, "logging", cfg.Logging.File, err)
	}
	return cfg, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	flags := changedFlags(cmd)
	if len(args) == 1 {
		flags["image"] = args[0]
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	req, err := converter.RequestFromConfig(cfg)
	if err != nil {
		return err
	}

	res, err := converter.New().Run(cmd.Context(), req)
	if err != nil {
		logger.LogConversion(req.Image, req.OutputPath(), 0, 0, err)
		return err
	}
	logger.LogConversion(req.Image, res.Path, len(res.CheckPoint.Traps), res.Duration, nil)
	if res.Dropped > 0 {
		ui.PrintWarning(fmt.Sprintf("%d template carriers and defects dropped", res.Dropped))
	}
	if res.PreviewPath != "" {
		logger.WithField("preview", res.PreviewPath).Info("Trap preview written")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.CheckPoint.String())
	fmt.Fprintf(out, "saved: %s\n", res.Path)
	return nil
}
