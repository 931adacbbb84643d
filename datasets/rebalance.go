package datasets

import "k8s.io/klog/v2"

// Rebalance thins the "no action" examples and replicates the action
// examples. It is deterministic and order-dependent: the first
// floor(NegFrac·|neg|) negatives are kept, then every positive is tiled
// floor(PosFrac) times.
type Rebalance struct {
	NegFrac float64
	PosFrac float64
}

// RebalanceSummary reports what Apply did.
type RebalanceSummary struct {
	Negatives      int
	KeptNegatives  int
	Positives      int
	TiledPositives int
	// Fraction is the positive share implied by PosFrac; PrevFraction is
	// the share before rebalancing.
	Fraction     float64
	PrevFraction float64
}

// IsNegative reports whether a label row carries no action: a zero binary
// label, or a set "no action" bit for multiclass labels.
func IsNegative(label []float32, scheme Scheme) bool {
	if scheme == SchemeMulticlass {
		return label[len(label)-1] == 1
	}
	return label[0] == 0
}

// Apply returns the rebalanced examples: kept negatives first, then the
// tiled positives, both in input order.
func (r Rebalance) Apply(ex Examples, scheme Scheme) (Examples, RebalanceSummary) {
	var neg, pos []int
	for i, l := range ex.Labels {
		if IsNegative(l, scheme) {
			neg = append(neg, i)
		} else {
			pos = append(pos, i)
		}
	}

	numNeg := int(r.NegFrac * float64(len(neg)))
	if numNeg > len(neg) {
		numNeg = len(neg)
	}
	numPos := int(r.PosFrac * float64(len(pos)))
	tile := int(r.PosFrac)

	s := RebalanceSummary{
		Negatives:      len(neg),
		KeptNegatives:  numNeg,
		Positives:      len(pos),
		TiledPositives: tile * len(pos),
	}
	if total := numNeg + numPos; total > 0 {
		s.Fraction = float64(numPos) / float64(total)
	}
	if total := len(neg) + len(pos); total > 0 {
		s.PrevFraction = float64(len(pos)) / float64(total)
	}

	n := numNeg + s.TiledPositives
	out := Examples{
		Inputs: make([][]float32, 0, n),
		Labels: make([][]float32, 0, n),
	}
	for _, i := range neg[:numNeg] {
		out.Inputs = append(out.Inputs, ex.Inputs[i])
		out.Labels = append(out.Labels, ex.Labels[i])
	}
	for k := 0; k < tile; k++ {
		for _, i := range pos {
			out.Inputs = append(out.Inputs, ex.Inputs[i])
			out.Labels = append(out.Labels, ex.Labels[i])
		}
	}

	klog.Infof("Filtered out no action from %d to %d", s.Negatives, s.KeptNegatives)
	klog.Infof("Percent with action is now %f instead of %f", s.Fraction, s.PrevFraction)
	return out, s
}
