package evaluate

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var curveColors = []color.RGBA{
	{R: 20, G: 80, B: 200, A: 255},
	{R: 200, G: 30, B: 30, A: 255},
	{R: 40, G: 140, B: 40, A: 255},
	{R: 120, G: 120, B: 120, A: 255},
}

// PlotCurves writes the curves as a PNG (or any format gonum/plot infers
// from the extension) with recall on x in [0, 1] and precision on y in
// [0, 1.05]. The legend sits in the lower left.
func PlotCurves(path, title string, curves ...Curve) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Legend.Top = false
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	for i, c := range curves {
		xys := make(plotter.XYs, len(c.Recall))
		for j := range c.Recall {
			xys[j].X = c.Recall[j]
			xys[j].Y = c.Precision[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("curve %q: %w", c.Name, err)
		}
		line.Color = curveColors[i%len(curveColors)]
		line.Width = vg.Points(1.5)
		p.Add(line)
		name := c.Name
		if auc, err := c.AUC(); err == nil {
			name = fmt.Sprintf("%s (AUC %.3f)", c.Name, auc)
		}
		p.Legend.Add(name, line)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
