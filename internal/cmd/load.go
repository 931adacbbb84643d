package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Noofbiz/flyvfly/datasets"
)

// NewLoadCommand creates the 'flyvfly load' command.
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the training movies and report example counts",
		Long: `Read, window and label every training movie the way training does,
rebalancing each (movie, fly) unless --unfiltered is given, and print the
resulting example counts. Useful to check a movie directory before training.`,
		Args: cobra.NoArgs,
		RunE: runLoad,
	}
	cmd.Flags().Bool("unfiltered", false, "skip rebalancing")
	return cmd
}

func runLoad(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var rb *datasets.Rebalance
	if unfiltered, _ := cmd.Flags().GetBool("unfiltered"); !unfiltered {
		rb = &datasets.Rebalance{NegFrac: cfg.Dataset.NegFrac, PosFrac: cfg.Dataset.PosFrac}
	}

	parts, err := datasets.LoadData(cfg.Dataset, cfg.Dataset.TrainMovies, rb)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(w, "%s scheme, window %d\n", cfg.Dataset.Scheme, cfg.Dataset.WindowLength)
	for i, ex := range parts {
		movie := cfg.Dataset.TrainMovies[i/datasets.NumFlies]
		fly := i % datasets.NumFlies
		neg := 0
		for _, l := range ex.Labels {
			if datasets.IsNegative(l, cfg.Dataset.Scheme) {
				neg++
			}
		}
		fmt.Fprintf(w, "  movie %d fly %d: %s examples, %s with action\n",
			movie, fly, humanize.Comma(int64(ex.Len())), humanize.Comma(int64(ex.Len()-neg)))
	}
	all := datasets.Stack(parts)
	color.New(color.FgGreen).Fprintf(w, "Total: %s examples of width %d, %d label columns\n",
		humanize.Comma(int64(all.Len())), all.InputDim(), all.LabelDim())
	return nil
}
