// Package artefact detects bad channels, segments and epochs in
// multi-channel recordings by applying the GESD outlier test to reduced
// metrics, and converts the decisions into dataset metadata.
package artefact

import (
	"errors"
	"fmt"
	"math"

	"goephys/domain/core"
	"goephys/domain/ephys"
	"goephys/domain/outlier"
)

// ============================================================================
// SCAN CONFIGURATION
// ============================================================================

var (
	// ErrUnknownRejectMode indicates a reject mode outside the closed set
	ErrUnknownRejectMode = errors.New("unknown reject mode")
	// ErrUnknownRetMode indicates a return mode outside the closed set
	ErrUnknownRetMode = errors.New("unknown ret mode")
	// ErrAxisConflict indicates the time axis equals the channel axis
	ErrAxisConflict = errors.New("the time axis and channel axis cannot be the same")
)

// RejectMode selects what the scan treats as the unit under test
type RejectMode string

const (
	// RejectDim flags whole units along one axis (e.g. channels)
	RejectDim RejectMode = "dim"
	// RejectSegments flags fixed-length windows along the time axis
	RejectSegments RejectMode = "segments"
)

// Validate checks the mode against the closed set
func (m RejectMode) Validate() error {
	switch m {
	case RejectDim, RejectSegments:
		return nil
	}
	return fmt.Errorf("%w: reject_mode %q not recognised", ErrUnknownRejectMode, string(m))
}

// RetMode selects the scan output representation
type RetMode string

const (
	// RetBad returns the boolean bad mask (default)
	RetBad RetMode = "bad_inds"
	// RetGood returns the inverted mask
	RetGood RetMode = "good_inds"
	// RetZero returns a copy of the input with flagged positions zeroed
	RetZero RetMode = "zero_bads"
	// RetNaN returns a copy of the input with flagged positions set to NaN
	RetNaN RetMode = "nan_bads"
)

// Validate checks the mode against the closed set
func (m RetMode) Validate() error {
	switch m {
	case RetBad, RetGood, RetZero, RetNaN:
		return nil
	}
	return fmt.Errorf("%w: ret_mode %q not recognised", ErrUnknownRetMode, string(m))
}

// ChannelThreshold controls how per-channel segment decisions combine into
// one per-segment decision. Either any flagged channel marks the segment, or
// the fraction of flagged channels must reach Fraction (equality counts).
type ChannelThreshold struct {
	Any      bool    `json:"any"`
	Fraction float64 `json:"fraction,omitempty"`
}

// AnyChannel marks a segment bad when any channel flags it
func AnyChannel() ChannelThreshold { return ChannelThreshold{Any: true} }

// FractionOfChannels marks a segment bad when at least the given fraction of
// channels flag it
func FractionOfChannels(f float64) ChannelThreshold {
	return ChannelThreshold{Fraction: f}
}

// validate requires the channel count to check the minimum-one-channel rule
func (t ChannelThreshold) validate(nChannels int) error {
	if t.Any {
		return nil
	}
	if t.Fraction <= 0 || t.Fraction > 1 {
		return fmt.Errorf("channel threshold must be between 0 and 1 or any, got %g", t.Fraction)
	}
	if float64(nChannels)*t.Fraction < 1 {
		return fmt.Errorf("channel threshold %g selects less than one of %d channels", t.Fraction, nChannels)
	}
	return nil
}

// ScanOptions configures a Scan call
type ScanOptions struct {
	// Mode selects dimension or segment scanning
	Mode RejectMode
	// Axis is the unit axis in dim mode and the time axis in segments
	// mode. -1 selects the last axis.
	Axis int
	// Metric reduces a block of samples to one scalar
	Metric ephys.Metric
	// SegmentLen is the window length in samples for segment mode
	SegmentLen int
	// GESD configures the outlier detector
	GESD outlier.Params
	// Ret selects the output representation
	Ret RetMode
	// ChannelWise runs segment detection per channel
	ChannelWise bool
	// ChannelAxis is the channel axis used when ChannelWise is set
	ChannelAxis int
	// ChannelThreshold combines per-channel decisions when ChannelWise is set
	ChannelThreshold ChannelThreshold
}

// DefaultScanOptions mirrors the conventional detection settings
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Mode:             RejectDim,
		Axis:             -1,
		Metric:           ephys.MetricStd,
		SegmentLen:       100,
		GESD:             outlier.DefaultParams(),
		Ret:              RetBad,
		ChannelAxis:      0,
		ChannelThreshold: FractionOfChannels(0.05),
	}
}

// ScanResult carries the scan output. BadMask is always populated, one entry
// per unit along the scanned axis. Data is populated only for the zeroing
// and NaN ret modes and is a copy; the input is never modified.
type ScanResult struct {
	BadMask []bool
	Data    [][]float64
}

// GoodMask returns the inverted mask
func (r *ScanResult) GoodMask() []bool {
	good := make([]bool, len(r.BadMask))
	for i, bad := range r.BadMask {
		good[i] = !bad
	}
	return good
}

// NumBad returns the flagged count
func (r *ScanResult) NumBad() int {
	n := 0
	for _, bad := range r.BadMask {
		if bad {
			n++
		}
	}
	return n
}

// ============================================================================
// SCANNING
// ============================================================================

// Scan detects artefacts in a channels-by-time array. In dim mode the mask
// has one entry per unit along the axis; in segments mode it has one entry
// per time sample, with each segment's decision broadcast to its samples.
func Scan(data [][]float64, opts ScanOptions) (*ScanResult, error) {
	if err := opts.Mode.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Ret.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Metric.Validate(); err != nil {
		return nil, err
	}
	if err := opts.GESD.Validate(); err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, core.NewValidationError("data", "empty array")
	}

	axis, err := normalizeAxis(opts.Axis)
	if err != nil {
		return nil, err
	}

	var mask []bool
	switch opts.Mode {
	case RejectDim:
		mask = scanDims(data, axis, opts.Metric, opts.GESD)
	case RejectSegments:
		mask, err = scanSegments(data, axis, opts)
		if err != nil {
			return nil, err
		}
	}

	result := &ScanResult{BadMask: mask}
	switch opts.Ret {
	case RetZero:
		result.Data = maskedCopy(data, mask, axis, 0)
	case RetNaN:
		result.Data = maskedCopy(data, mask, axis, math.NaN())
	}
	return result, nil
}

// normalizeAxis maps -1 to the last axis of a 2-D array and rejects anything
// outside the two real axes
func normalizeAxis(axis int) (int, error) {
	if axis == -1 {
		return 1, nil
	}
	if axis < 0 || axis > 1 {
		return 0, fmt.Errorf("%w: %d", core.ErrBadAxis, axis)
	}
	return axis, nil
}

// scanDims reduces everything except the unit axis to one scalar per unit
// and runs the detector on the resulting vector. The detector's parameter
// validation happened upstream, so the error return is ignored here.
func scanDims(data [][]float64, axis int, metric ephys.Metric, gesd outlier.Params) []bool {
	var values []float64
	if axis == 0 {
		values = make([]float64, len(data))
		for i, row := range data {
			values[i] = metric.Apply(row)
		}
	} else {
		values = make([]float64, len(data[0]))
		col := make([]float64, len(data))
		for j := range data[0] {
			for i := range data {
				col[i] = data[i][j]
			}
			values[j] = metric.Apply(col)
		}
	}
	mask, _, _ := outlier.Detect(values, gesd)
	return mask
}

// scanSegments splits the time axis into fixed windows, reduces each window
// with the metric and flags outlier windows. The returned mask is
// per-sample.
func scanSegments(data [][]float64, timeAxis int, opts ScanOptions) ([]bool, error) {
	if opts.SegmentLen < 1 {
		return nil, core.NewValidationError("segment_len", "must be positive")
	}

	// Bring the array into channels-by-time orientation
	channels := data
	if timeAxis == 0 {
		channels = transpose(data)
	}
	nChannels := len(channels)
	nSamples := len(channels[0])

	if opts.ChannelWise {
		chAxis, err := normalizeAxis(opts.ChannelAxis)
		if err != nil {
			return nil, err
		}
		if chAxis == timeAxis {
			return nil, ErrAxisConflict
		}
		if err := opts.ChannelThreshold.validate(nChannels); err != nil {
			return nil, err
		}
	}

	starts := segmentStarts(nSamples, opts.SegmentLen)
	nSegments := len(starts)

	segBad := make([]bool, nSegments)
	if opts.ChannelWise {
		flagCount := make([]int, nSegments)
		metricRow := make([]float64, nSegments)
		for ch := 0; ch < nChannels; ch++ {
			for s, start := range starts {
				stop := segmentStop(start, opts.SegmentLen, nSamples, s == nSegments-1)
				metricRow[s] = nanToZero(opts.Metric.Apply(channels[ch][start:stop]))
			}
			chMask, _, _ := outlier.Detect(metricRow, opts.GESD)
			for s, bad := range chMask {
				if bad {
					flagCount[s]++
				}
			}
		}
		for s, count := range flagCount {
			if opts.ChannelThreshold.Any {
				segBad[s] = count > 0
			} else {
				segBad[s] = float64(count) >= opts.ChannelThreshold.Fraction*float64(nChannels)
			}
		}
	} else {
		metrics := make([]float64, nSegments)
		for s, start := range starts {
			stop := segmentStop(start, opts.SegmentLen, nSamples, s == nSegments-1)
			chunk := make([]float64, 0, nChannels*(stop-start))
			for ch := 0; ch < nChannels; ch++ {
				chunk = append(chunk, channels[ch][start:stop]...)
			}
			metrics[s] = nanToZero(opts.Metric.Apply(chunk))
		}
		segBad, _, _ = outlier.Detect(metrics, opts.GESD)
	}

	// Broadcast segment decisions to samples
	mask := make([]bool, nSamples)
	for s, start := range starts {
		stop := segmentStop(start, opts.SegmentLen, nSamples, s == nSegments-1)
		for i := start; i < stop; i++ {
			mask[i] = segBad[s]
		}
	}
	return mask, nil
}

// segmentStarts returns the window start offsets; the last window absorbs
// the remainder
func segmentStarts(nSamples, segmentLen int) []int {
	var starts []int
	for s := 0; s < nSamples; s += segmentLen {
		starts = append(starts, s)
	}
	return starts
}

func segmentStop(start, segmentLen, nSamples int, last bool) int {
	if last {
		return nSamples
	}
	return start + segmentLen
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// maskedCopy copies the input and overwrites flagged cross-sections along
// the given axis with the fill value
func maskedCopy(data [][]float64, mask []bool, axis int, fill float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = append([]float64(nil), row...)
	}
	if axis == 0 {
		for i, bad := range mask {
			if !bad {
				continue
			}
			for j := range out[i] {
				out[i][j] = fill
			}
		}
		return out
	}
	for j, bad := range mask {
		if !bad {
			continue
		}
		for i := range out {
			out[i][j] = fill
		}
	}
	return out
}

func transpose(data [][]float64) [][]float64 {
	rows := len(data)
	cols := len(data[0])
	out := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		out[j] = make([]float64, rows)
		for i := 0; i < rows; i++ {
			out[j][i] = data[i][j]
		}
	}
	return out
}
