package perm

import (
	"fmt"
	"math"
	"sort"

	"goephys/domain/core"
)

// NullDistribution collects one summary statistic per permutation draw in
// insertion order. The true unpermuted statistic is always element 0, so
// the observed value's own percentile rank is well-defined and a run can
// never report an impossible significance level.
type NullDistribution struct {
	values []float64
	state  RunState
}

// NewNullDistribution starts an empty distribution in the CONFIGURED state
func NewNullDistribution() *NullDistribution {
	return &NullDistribution{state: StateConfigured}
}

// Start moves the distribution into the RUNNING state
func (n *NullDistribution) Start() error {
	next, err := n.state.Transition(StateRunning)
	if err != nil {
		return err
	}
	n.state = next
	return nil
}

// Append adds one draw's statistic. Only legal while RUNNING.
func (n *NullDistribution) Append(stat float64) error {
	if n.state != StateRunning {
		return fmt.Errorf("%w: append while %s", ErrInvalidTransition, n.state)
	}
	n.values = append(n.values, stat)
	return nil
}

// Complete freezes the distribution. At least one draw must have landed.
func (n *NullDistribution) Complete() error {
	if len(n.values) == 0 {
		return core.NewValidationError("nulls", "no permutation draws succeeded")
	}
	next, err := n.state.Transition(StateComplete)
	if err != nil {
		return err
	}
	n.state = next
	return nil
}

// State returns the current lifecycle state
func (n *NullDistribution) State() RunState { return n.state }

// Len returns the number of collected statistics
func (n *NullDistribution) Len() int { return len(n.values) }

// Observed returns the true unpermuted statistic (element 0)
func (n *NullDistribution) Observed() float64 {
	if len(n.values) == 0 {
		return math.NaN()
	}
	return n.values[0]
}

// Nulls returns the statistics in insertion order. The slice is a copy.
func (n *NullDistribution) Nulls() []float64 {
	out := make([]float64, len(n.values))
	copy(out, n.values)
	return out
}

// GetThreshold returns the significance threshold at level p percent: the
// (100-p)-th percentile of the absolute null statistics, by linear
// interpolation on the sorted values. The test is two-tailed by symmetry,
// so callers apply +threshold and -threshold to the observed map.
func (n *NullDistribution) GetThreshold(p float64) (float64, error) {
	if n.state != StateComplete {
		return 0, fmt.Errorf("%w: threshold while %s", ErrInvalidTransition, n.state)
	}
	if p <= 0 || p > 100 {
		return 0, core.NewValidationError("percentile", fmt.Sprintf("significance level must be in (0, 100], got %g", p))
	}
	return percentile(n.absSorted(), 100-p), nil
}

// Percentile returns the q-th percentile of the absolute null statistics
func (n *NullDistribution) Percentile(q float64) (float64, error) {
	if n.state != StateComplete {
		return 0, fmt.Errorf("%w: percentile while %s", ErrInvalidTransition, n.state)
	}
	if q < 0 || q > 100 {
		return 0, core.NewValidationError("percentile", fmt.Sprintf("must be in [0, 100], got %g", q))
	}
	return percentile(n.absSorted(), q), nil
}

func (n *NullDistribution) absSorted() []float64 {
	sorted := make([]float64, len(n.values))
	for i, v := range n.values {
		sorted[i] = math.Abs(v)
	}
	sort.Float64s(sorted)
	return sorted
}

// percentile computes the linearly-interpolated q-th percentile of an
// already-sorted sample
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi > len(sorted)-1 {
		hi = len(sorted) - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
