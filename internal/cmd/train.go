package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/flyvfly/datasets"
	"github.com/Noofbiz/flyvfly/evaluate"
	"github.com/Noofbiz/flyvfly/simple"
)

// NewTrainCommand creates the 'flyvfly train' command.
func NewTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier on the training movies",
		Long: `Load the training and validation splits, train the MLP classifier on
the (rebalanced) training split, report validation precision/recall AUC and
save the model with encoding/gob.`,
		Args: cobra.NoArgs,
		RunE: runTrain,
	}
	cmd.Flags().StringP("out", "o", "", "model output path (default: model_path)")
	cmd.Flags().Int("epochs", 0, "override training.epochs")
	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = cfg.ModelPath
	}
	out = datasets.ExpandHome(out)
	if epochs, _ := cmd.Flags().GetInt("epochs"); epochs > 0 {
		cfg.Training.Epochs = epochs
	}

	ds, err := datasets.NewFly(cfg.Dataset, cfg.DatasetOptions(datasets.SplitTrain))
	if err != nil {
		return err
	}
	if err := ds.Load(); err != nil {
		return err
	}
	train, err := ds.Examples(datasets.SplitTrain)
	if err != nil {
		return err
	}
	if train.Len() == 0 {
		return fmt.Errorf("training split is empty")
	}

	tc := cfg.Training
	tc.InputDim = train.InputDim()
	tc.OutputDim = train.LabelDim()
	if tc.Seed == 0 {
		tc.Seed = cfg.Seed
	}
	model, err := simple.NewModel(tc)
	if err != nil {
		return err
	}
	klog.Infof("training on %s examples: %d -> %v -> %d",
		humanize.Comma(int64(train.Len())), tc.InputDim, model.Config.HiddenSizes, tc.OutputDim)
	loss, err := model.TrainWithDataset(ds)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Final training loss: %.5f\n", loss)

	val := ds.Inputs(datasets.SplitValidation)
	if len(val) > 0 {
		ys, ss, err := evaluate.Scores(model, val, ds.Targets(datasets.SplitValidation), cfg.Eval.NumTestSample)
		if err != nil {
			return err
		}
		curve, err := evaluate.PrecisionRecall(ys, ss)
		if err != nil {
			return err
		}
		if auc, err := curve.AUC(); err == nil {
			fmt.Fprintf(w, "Validation precision/recall AUC: %.4f (%s examples)\n", auc, humanize.Comma(int64(len(ys))))
		}
	}

	if err := model.Save(out); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(w, "Saved model %s to %s\n", model.ID(), out)
	return nil
}
