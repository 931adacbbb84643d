package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/flyvfly/datasets"
	"github.com/Noofbiz/flyvfly/evaluate"
	"github.com/Noofbiz/flyvfly/monte"
	"github.com/Noofbiz/flyvfly/simple"
)

// NewEvalCommand creates the 'flyvfly eval' command.
func NewEvalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [model-file]",
		Short: "Plot precision/recall of a trained model on the train and test splits",
		Long: `Load a model saved by 'flyvfly train' (default: model_path), score the
unfiltered test split and the training split, log the area under each
precision/recall curve and render the curves to eval.plot_path.

With eval.baseline_k > 0 (or --baseline-k) a nearest-neighbor baseline
drawn from the training split is scored on the test split as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEval,
	}
	cmd.Flags().String("plot", "", "plot output path (default: eval.plot_path)")
	cmd.Flags().Int("baseline-k", -1, "override eval.baseline_k")
	return cmd
}

type evalResult struct {
	name      string
	n         int
	positives int
	auc       float64
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	modelPath := cfg.ModelPath
	if len(args) == 1 {
		modelPath = datasets.ExpandHome(args[0])
	}
	plotPath, _ := cmd.Flags().GetString("plot")
	if plotPath == "" {
		plotPath = cfg.Eval.PlotPath
	}
	if k, _ := cmd.Flags().GetInt("baseline-k"); k >= 0 {
		cfg.Eval.BaselineK = k
	}

	model, err := simple.Load(modelPath)
	if err != nil {
		return err
	}
	klog.Infof("evaluating model %s from %s", model.ID(), modelPath)
	ds, err := datasets.NewFlyPredict(cfg.Dataset, cfg.DatasetOptions(datasets.SplitTest))
	if err != nil {
		return err
	}
	if err := ds.Load(); err != nil {
		return err
	}

	var curves []evaluate.Curve
	var results []evalResult
	score := func(name string, p evaluate.Predictor, split datasets.Split) error {
		ys, ss, err := evaluate.Scores(p, ds.Inputs(split), ds.Targets(split), cfg.Eval.NumTestSample)
		if err != nil {
			return fmt.Errorf("score %s: %w", name, err)
		}
		if len(ys) == 0 {
			klog.Warningf("%s: no examples to score", name)
			return nil
		}
		curve, err := evaluate.PrecisionRecall(ys, ss)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		curve.Name = name
		auc, err := curve.AUC()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		klog.Infof("%s: area under precision/recall curve %.4f", name, auc)

		pos := 0
		for _, y := range ys {
			if y > 0 {
				pos++
			}
		}
		curves = append(curves, curve)
		results = append(results, evalResult{name: name, n: len(ys), positives: pos, auc: auc})
		return nil
	}

	if err := score("train", model, datasets.SplitTrain); err != nil {
		return err
	}
	if err := score("test", model, datasets.SplitTest); err != nil {
		return err
	}
	if cfg.Eval.BaselineK > 0 {
		ds.SetUseSet(datasets.SplitTrain)
		baseline, err := monte.NewMonte(ds, cfg.Eval.BaselineK)
		if err != nil {
			return err
		}
		baseline.NumSims = cfg.Eval.BaselineSims
		if cfg.Seed != 0 {
			baseline.Seed(cfg.Seed)
		}
		if err := score(fmt.Sprintf("test (%d-NN baseline)", cfg.Eval.BaselineK), baseline, datasets.SplitTest); err != nil {
			return err
		}
	}

	if len(curves) > 0 {
		if err := evaluate.PlotCurves(plotPath, cfg.Eval.Title, curves...); err != nil {
			return err
		}
	}
	printEval(cmd.OutOrStdout(), results, plotPath)
	return nil
}

func printEval(w io.Writer, results []evalResult, plotPath string) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprintln(w, "Precision/recall AUC")
	for _, r := range results {
		c := green
		if r.auc < 0.5 {
			c = yellow
		}
		fmt.Fprintf(w, "  %-24s %9s examples %9s positive  AUC ", r.name,
			humanize.Comma(int64(r.n)), humanize.Comma(int64(r.positives)))
		c.Fprintf(w, "%.4f\n", r.auc)
	}
	if len(results) > 0 {
		fmt.Fprintf(w, "Plot written to %s\n", plotPath)
	}
}
