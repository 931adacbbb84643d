package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Noofbiz/flyvfly/datasets"
	"github.com/Noofbiz/flyvfly/internal/filelock"
)

// NewStatsCommand creates the 'flyvfly stats' command.
func NewStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute per-fly feature statistics over the training movies",
		Long: `Fit the mean and standard deviation of every feature, per fly, over
the training movies and write them as a four-row text matrix (mean fly 0,
mean fly 1, std fly 0, std fly 1). The binary scheme standardizes with this
file when loading.`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}
	cmd.Flags().StringP("out", "o", "", "output path (default: dataset.stats_path)")
	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = cfg.Dataset.StatsPath
	}
	out = datasets.ExpandHome(out)

	stats, err := datasets.ComputeStats(cfg.Dataset)
	if err != nil {
		return fmt.Errorf("compute statistics: %w", err)
	}
	if err := filelock.With(out, func() error { return stats.Write(out) }); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	green.Fprintf(w, "Wrote statistics for %d features ", stats.Features())
	fmt.Fprintf(w, "(train movies %v) to %s\n", cfg.Dataset.TrainMovies, out)
	return nil
}
