// Package outlier implements the Generalized ESD (Rosner) test for
// detecting multiple outliers in a univariate sample.
//
// Reference: B. Rosner (1983). Percentage Points for a Generalized ESD
// Many-Outlier Procedure. Technometrics 25(2), pp. 165-172.
package outlier

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Side specifies the sidedness of the test
type Side int

const (
	// SideLower flags only unusually small values
	SideLower Side = -1
	// SideBoth flags deviations in either direction (default)
	SideBoth Side = 0
	// SideUpper flags only unusually large values
	SideUpper Side = 1
)

// Validate checks the sidedness flag
func (s Side) Validate() error {
	switch s {
	case SideLower, SideBoth, SideUpper:
		return nil
	}
	return fmt.Errorf("outlier side must be -1, 0 or 1, got %d", int(s))
}

// Params configures a detection run
type Params struct {
	// Alpha is the significance level (0-1). Halved internally for the
	// two-sided test.
	Alpha float64
	// MaxFraction bounds the number of removal rounds: ceil(n * MaxFraction)
	MaxFraction float64
	// Side selects the test sidedness
	Side Side
}

// DefaultParams returns the conventional settings: alpha 0.05, at most 10%
// of the sample removed, two-sided.
func DefaultParams() Params {
	return Params{Alpha: 0.05, MaxFraction: 0.1, Side: SideBoth}
}

// Validate checks parameter ranges before any computation
func (p Params) Validate() error {
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("significance level must be between 0 and 1, got %g", p.Alpha)
	}
	if p.MaxFraction <= 0 || p.MaxFraction > 1 {
		return fmt.Errorf("max outlier fraction must be between 0 and 1, got %g", p.MaxFraction)
	}
	return p.Side.Validate()
}

// Detect runs the sequential GESD test on x and returns a boolean mask with
// true wherever a sample is an outlier, plus the input with flagged values
// removed. The input is never modified.
//
// NaN values are excluded from the search population: detection runs on the
// finite subset and flagged positions are translated back to the original
// indexing through an explicit index table. NaN positions are never flagged
// themselves, so they survive into the cleaned output.
//
// When the round count exceeds the feasible degrees of freedom the late
// rounds produce NaN statistics or critical values; those comparisons fail
// and the rounds contribute nothing. This degradation is deliberate and
// mirrors how the test behaves on very small samples.
func Detect(x []float64, params Params) ([]bool, []float64, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	alpha := params.Alpha
	if params.Side == SideBoth {
		alpha = alpha / 2
	}

	mask := make([]bool, len(x))
	if len(x) == 0 {
		return mask, []float64{}, nil
	}

	if hasNaN(x) {
		// Index-translation table: table[i] is the original position of
		// the i-th finite value.
		finite := make([]float64, 0, len(x))
		table := make([]int, 0, len(x))
		for i, v := range x {
			if !math.IsNaN(v) {
				finite = append(finite, v)
				table = append(table, i)
			}
		}
		subMask := runRounds(finite, alpha, params.MaxFraction, params.Side)
		for i, bad := range subMask {
			if bad {
				mask[table[i]] = true
			}
		}
	} else {
		mask = runRounds(x, alpha, params.MaxFraction, params.Side)
	}

	clean := make([]float64, 0, len(x))
	for i, v := range x {
		if !mask[i] {
			clean = append(clean, v)
		}
	}
	return mask, clean, nil
}

// runRounds performs the removal rounds on an all-finite sample and applies
// the Rosner stopping rule: the outliers are exactly the removals up to and
// including the LARGEST round whose statistic exceeds its critical value,
// not the first such round.
func runRounds(x []float64, alpha, maxFraction float64, side Side) []bool {
	n := len(x)
	mask := make([]bool, n)
	nOut := int(math.Ceil(float64(n) * maxFraction))
	if nOut > n {
		nOut = n
	}
	if nOut == 0 {
		return mask
	}

	removed := make([]bool, n)
	testStat := make([]float64, nOut)
	critical := make([]float64, nOut)
	rmIdx := make([]int, nOut)

	for j := 0; j < nOut; j++ {
		i := j + 1

		remaining := make([]float64, 0, n-j)
		for k, v := range x {
			if !removed[k] {
				remaining = append(remaining, v)
			}
		}
		mean, _ := stats.Mean(remaining)
		std, _ := stats.StandardDeviation(remaining)

		rm, deviation := mostExtreme(x, removed, mean, side)
		rmIdx[j] = rm
		if std > 0 {
			testStat[j] = deviation / std
		} else {
			testStat[j] = math.NaN()
		}
		removed[rm] = true

		df := float64(n - i - 1)
		if df < 1 {
			critical[j] = math.NaN()
			continue
		}
		p := 1 - alpha/float64(n-i+1)
		t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(p)
		critical[j] = (float64(n-i) * t) / math.Sqrt((df+t*t)*float64(n-i+1))
	}

	// NaN comparisons are false, so degenerate rounds never extend the prefix
	last := -1
	for j := 0; j < nOut; j++ {
		if testStat[j] > critical[j] {
			last = j
		}
	}
	for j := 0; j <= last; j++ {
		mask[rmIdx[j]] = true
	}
	return mask
}

// mostExtreme locates the single most extreme non-removed value for the
// given sidedness and returns its index and unstandardized deviation.
func mostExtreme(x []float64, removed []bool, mean float64, side Side) (int, float64) {
	idx := -1
	var best float64
	for k, v := range x {
		if removed[k] {
			continue
		}
		var score float64
		switch side {
		case SideLower:
			score = mean - v
		case SideUpper:
			score = v - mean
		default:
			score = math.Abs(v - mean)
		}
		if idx == -1 || score > best {
			idx = k
			best = score
		}
	}
	return idx, best
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
