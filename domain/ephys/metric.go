package ephys

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// ErrUnknownMetric indicates a metric keyword outside the closed set
var ErrUnknownMetric = errors.New("unknown metric")

// Metric is a reduction applied to a slice of samples to produce one scalar.
// All moments are population moments (divide by n).
type Metric string

const (
	MetricStd      Metric = "std"
	MetricVar      Metric = "var"
	MetricKurtosis Metric = "kurtosis"
)

// ParseMetric converts a keyword into a Metric, failing fast on unknown values
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate checks the metric against the closed keyword set
func (m Metric) Validate() error {
	switch m {
	case MetricStd, MetricVar, MetricKurtosis:
		return nil
	}
	return fmt.Errorf("%w: metric %s unknown", ErrUnknownMetric, string(m))
}

// Apply reduces values to a single scalar. Empty input yields NaN so callers
// can decide how missing data degrades (segment scanning zero-fills it).
func (m Metric) Apply(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	switch m {
	case MetricStd:
		v, err := stats.StandardDeviation(values)
		if err != nil {
			return math.NaN()
		}
		return v
	case MetricVar:
		v, err := stats.Variance(values)
		if err != nil {
			return math.NaN()
		}
		return v
	case MetricKurtosis:
		return excessKurtosis(values)
	}
	return math.NaN()
}

// String returns the keyword form
func (m Metric) String() string { return string(m) }

// excessKurtosis computes the population excess kurtosis m4/m2^2 - 3
func excessKurtosis(values []float64) float64 {
	n := float64(len(values))
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= n

	var m2, m4 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m4 += d * d * d * d
	}
	m2 /= n
	m4 /= n

	if m2 == 0 {
		return math.NaN()
	}
	return m4/(m2*m2) - 3
}
