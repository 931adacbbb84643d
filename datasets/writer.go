package datasets

import (
	"fmt"

	"github.com/Noofbiz/flyvfly/matfile"
)

// WriteMovie stores t and b as movieN_feat.mat (movieN_track.mat with
// UseTrk) and movieN_actions.mat under cfg.MovieDir, in the layout
// ReadTracking and ReadBouts expect. The movie number is taken from t.
func WriteMovie(cfg Config, t *Tracking, b *Bouts) error {
	if b.Flies() != t.Flies {
		return fmt.Errorf("%w: bouts cover %d flies, tracking has %d", ErrBadShape, b.Flies(), t.Flies)
	}
	enc := &matfile.Encoder{Compress: true}

	varName := "feat"
	if cfg.UseTrk {
		varName = "trk"
	}
	names := t.Names
	if len(names) == 0 {
		names = make([]string, t.Features)
		for i := range names {
			names[i] = fmt.Sprintf("f%d", i)
		}
	}
	fields := []string{"names", "data"}
	values := map[string]*matfile.Array{
		"names": matfile.NewStringCell("", names),
		"data":  t.ToArray(""),
	}
	if cfg.UseTrk {
		fields = append([]string{"flagframes"}, fields...)
		values["flagframes"] = matfile.NewDouble("", []int{0, 0}, nil)
	}
	if err := enc.WriteFile(cfg.FeaturePath(t.Movie), matfile.NewStruct(varName, fields, values)); err != nil {
		return fmt.Errorf("write movie %d features: %w", t.Movie, err)
	}

	behs := b.Names
	if len(behs) == 0 {
		behs = make([]string, b.Actions())
		for i := range behs {
			behs[i] = fmt.Sprintf("action%d", i)
		}
	}
	err := enc.WriteFile(cfg.ActionsPath(t.Movie), matfile.NewStringCell("behs", behs), b.ToArray("bouts"))
	if err != nil {
		return fmt.Errorf("write movie %d actions: %w", t.Movie, err)
	}
	return nil
}
