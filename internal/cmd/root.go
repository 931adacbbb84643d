package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/flyvfly/datasets"
	"github.com/Noofbiz/flyvfly/internal/config"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for flyvfly.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flyvfly",
		Short: "Prepare Fly-vs-Fly tracking movies for behavior classification",
		Long: `flyvfly turns Fly-vs-Fly tracking data and action annotations into
windowed examples, trains a small classifier on them and measures it with
precision/recall curves.

Settings come from a YAML file (--config); --scheme and --movie-dir
override it.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setColorOutput(cmd.OutOrStdout())
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "flyvfly.yaml", "path to the YAML config file")
	pf.String("scheme", "", "labeling scheme: binary or multiclass")
	pf.String("movie-dir", "", "directory holding the movieN/ folders")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	pf.AddGoFlagSet(klogFlags)

	cmd.AddCommand(NewStatsCommand())
	cmd.AddCommand(NewLoadCommand())
	cmd.AddCommand(NewTrainCommand())
	cmd.AddCommand(NewEvalCommand())

	return cmd
}

// setColorOutput disables color unless w is a terminal.
func setColorOutput(w io.Writer) {
	f, ok := w.(*os.File)
	color.NoColor = !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// loadConfig reads --config and applies the flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("scheme") {
		scheme, _ := cmd.Flags().GetString("scheme")
		switch s := datasets.Scheme(scheme); s {
		case datasets.SchemeBinary, datasets.SchemeMulticlass:
			cfg.WithScheme(s)
		default:
			return nil, fmt.Errorf("%w: unknown scheme %q", datasets.ErrInvalidConfig, scheme)
		}
	}
	if cmd.Flags().Changed("movie-dir") {
		dir, _ := cmd.Flags().GetString("movie-dir")
		cfg.Dataset.MovieDir = datasets.ExpandHome(dir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	klog.V(1).Infof("config: scheme=%s movie_dir=%s window=%d", cfg.Dataset.Scheme, cfg.Dataset.MovieDir, cfg.Dataset.WindowLength)
	return cfg, nil
}
