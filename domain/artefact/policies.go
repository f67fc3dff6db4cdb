package artefact

import (
	"fmt"

	"goephys/domain/ephys"
	"goephys/domain/outlier"
)

// ============================================================================
// BAD CHANNELS
// ============================================================================

// ChannelRejectOptions configures bad-channel detection
type ChannelRejectOptions struct {
	SignificanceLevel float64
	Metric            ephys.Metric
}

// DefaultChannelRejectOptions uses the conventional settings
func DefaultChannelRejectOptions() ChannelRejectOptions {
	return ChannelRejectOptions{SignificanceLevel: 0.05, Metric: ephys.MetricStd}
}

// ChannelReport summarizes one bad-channel pass
type ChannelReport struct {
	Pick    ephys.Pick `json:"pick"`
	Total   int        `json:"total"`
	Flagged []string   `json:"flagged"`
	Added   int        `json:"added"`
}

// Summary renders the one-line rejection log entry
func (r *ChannelReport) Summary() string {
	pc := 0.0
	if r.Total > 0 {
		pc = float64(len(r.Flagged)) / float64(r.Total) * 100
	}
	return fmt.Sprintf("Modality %s - %d/%d channels rejected     (%02f%%)", r.Pick, len(r.Flagged), r.Total, pc)
}

// RejectBadChannels scans the picked channels in dimension mode along the
// channel axis and registers flagged channel names on the recording. The
// registry append is idempotent: repeating the call with the same inputs
// adds nothing, because flagged channels are excluded from later picks.
func RejectBadChannels(rec *ephys.Recording, pick ephys.Pick, opts ChannelRejectOptions) (*ChannelReport, error) {
	if err := pick.Validate(); err != nil {
		return nil, err
	}
	metric := opts.Metric
	if metric == "" {
		metric = ephys.MetricStd
	}

	indices := rec.PickIndices(pick)
	report := &ChannelReport{Pick: pick, Total: len(indices)}
	if len(indices) == 0 {
		return report, nil
	}

	gesd := outlier.DefaultParams()
	gesd.Alpha = opts.SignificanceLevel

	scanOpts := DefaultScanOptions()
	scanOpts.Mode = RejectDim
	scanOpts.Axis = 0
	scanOpts.Metric = metric
	scanOpts.GESD = gesd

	result, err := Scan(rec.DataFor(indices), scanOpts)
	if err != nil {
		return nil, err
	}

	for i, bad := range result.BadMask {
		if !bad {
			continue
		}
		name := rec.Channels[indices[i]].Name
		report.Flagged = append(report.Flagged, name)
		if rec.AddBadChannel(name) {
			report.Added++
		}
	}
	return report, nil
}

// ============================================================================
// BAD SEGMENTS
// ============================================================================

// SegmentScanMode selects preprocessing for segment detection
type SegmentScanMode string

const (
	// SegmentModeNone scans the raw time series
	SegmentModeNone SegmentScanMode = ""
	// SegmentModeDiff scans the first difference of the time series
	SegmentModeDiff SegmentScanMode = "diff"
	// SegmentModeMaxfilter only annotates blocks zeroed upstream
	SegmentModeMaxfilter SegmentScanMode = "maxfilter"
)

// Validate checks the mode against the closed set
func (m SegmentScanMode) Validate() error {
	switch m {
	case SegmentModeNone, SegmentModeDiff, SegmentModeMaxfilter:
		return nil
	}
	return fmt.Errorf("segment mode %q not recognised", string(m))
}

// SegmentRejectOptions configures bad-segment detection
type SegmentRejectOptions struct {
	SegmentLen        int
	SignificanceLevel float64
	Metric            ephys.Metric
	Mode              SegmentScanMode
	// ZeroLog carries hardware-log lines for zeroed-block annotation.
	// Nil means no log is available.
	ZeroLog []string
	// DetectZeros enables the zeroed-block annotator alongside the scan
	DetectZeros      bool
	ChannelWise      bool
	ChannelAxis      int
	ChannelThreshold ChannelThreshold
}

// DefaultSegmentRejectOptions uses the conventional settings
func DefaultSegmentRejectOptions() SegmentRejectOptions {
	return SegmentRejectOptions{
		SegmentLen:        1000,
		SignificanceLevel: 0.05,
		Metric:            ephys.MetricStd,
		DetectZeros:       true,
		ChannelAxis:       0,
		ChannelThreshold:  FractionOfChannels(0.05),
	}
}

// SegmentReport summarizes one bad-segment pass
type SegmentReport struct {
	Pick            ephys.Pick `json:"pick"`
	Found           int        `json:"found"`
	SecondsRejected float64    `json:"seconds_rejected"`
	TotalSeconds    float64    `json:"total_seconds"`
	ZeroFound       int        `json:"zero_found"`
	ZeroSeconds     float64    `json:"zero_seconds"`
	// ZeroLogErr records a failed zero-log parse; the scan still completed
	ZeroLogErr error `json:"-"`
}

// Summary renders the one-line rejection log entry for the scan detector
func (r *SegmentReport) Summary() string {
	pc := 0.0
	if r.TotalSeconds > 0 {
		pc = r.SecondsRejected / r.TotalSeconds * 100
	}
	return fmt.Sprintf("Modality %s - %02f/%g seconds rejected     (%02f%%)", r.Pick, r.SecondsRejected, r.TotalSeconds, pc)
}

// ZeroSummary renders the one-line entry for the zeroed-block annotator
func (r *SegmentReport) ZeroSummary() string {
	pc := 0.0
	if r.TotalSeconds > 0 {
		pc = r.ZeroSeconds / r.TotalSeconds * 100
	}
	return fmt.Sprintf("Modality %s (maxfilter) - %02f/%g seconds rejected     (%02f%%)", r.Pick, r.ZeroSeconds, r.TotalSeconds, pc)
}

// RejectBadSegments scans the picked channels in segment mode and appends
// one annotation per contiguous flagged run, including runs touching either
// end of the recording. When a zero log is supplied (and the mode allows it)
// zeroed blocks are annotated separately.
func RejectBadSegments(rec *ephys.Recording, pick ephys.Pick, opts SegmentRejectOptions) (*SegmentReport, error) {
	if err := pick.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Mode.Validate(); err != nil {
		return nil, err
	}

	report := &SegmentReport{Pick: pick, TotalSeconds: rec.Duration()}

	indices := rec.PickIndices(pick)
	if len(indices) == 0 {
		return report, nil
	}
	data := rec.DataFor(indices)

	// Sample offset of scan position 0 relative to the recording: the
	// difference series is one sample shorter and starts at sample 1.
	sampleOffset := 0
	if opts.Mode == SegmentModeDiff {
		data = diffRows(data)
		sampleOffset = 1
	}

	if opts.Mode != SegmentModeMaxfilter {
		gesd := outlier.DefaultParams()
		gesd.Alpha = opts.SignificanceLevel

		scanOpts := DefaultScanOptions()
		scanOpts.Mode = RejectSegments
		scanOpts.Axis = 1
		scanOpts.Metric = opts.Metric
		scanOpts.SegmentLen = opts.SegmentLen
		scanOpts.GESD = gesd
		scanOpts.ChannelWise = opts.ChannelWise
		scanOpts.ChannelAxis = opts.ChannelAxis
		scanOpts.ChannelThreshold = opts.ChannelThreshold

		result, err := Scan(data, scanOpts)
		if err != nil {
			return nil, err
		}

		runs := maskToRuns(result.BadMask)
		report.Found = len(runs)
		for _, run := range runs {
			a := annotationForRun(rec, run, sampleOffset, fmt.Sprintf("bad_segment_%s", pick))
			rec.Annotate(a)
			report.SecondsRejected += a.Duration
		}
	}

	wantZeros := opts.Mode == SegmentModeMaxfilter || (opts.Mode == SegmentModeNone && opts.DetectZeros)
	if wantZeros && opts.ZeroLog != nil {
		zeroMask, err := ParseZeroLog(opts.ZeroLog, rec.SampleRate, rec.FirstTime, rec.NSamples())
		if err != nil {
			report.ZeroLogErr = err
		} else {
			runs := maskToRuns(zeroMask)
			report.ZeroFound = len(runs)
			for _, run := range runs {
				a := annotationForRun(rec, run, 0, fmt.Sprintf("maxfilter_bad_segment_%s", pick))
				rec.Annotate(a)
				report.ZeroSeconds += a.Duration
			}
		}
	}

	return report, nil
}

// ============================================================================
// BAD EPOCHS
// ============================================================================

// EpochRejectOptions configures bad-epoch detection
type EpochRejectOptions struct {
	SignificanceLevel float64
	// MaxFraction caps the fraction of trials that can be dropped
	MaxFraction float64
	Side        outlier.Side
	Metric      ephys.Metric
	Mode        SegmentScanMode
}

// DefaultEpochRejectOptions uses the conventional settings
func DefaultEpochRejectOptions() EpochRejectOptions {
	return EpochRejectOptions{
		SignificanceLevel: 0.05,
		MaxFraction:       0.1,
		Side:              outlier.SideBoth,
		Metric:            ephys.MetricStd,
	}
}

// EpochReport summarizes one bad-epoch pass
type EpochReport struct {
	Pick    ephys.Pick `json:"pick"`
	Total   int        `json:"total"`
	Dropped int        `json:"dropped"`
}

// Summary renders the one-line rejection log entry
func (r *EpochReport) Summary() string {
	return fmt.Sprintf("Modality %s - %d/%d epochs rejected", r.Pick, r.Dropped, r.Total)
}

// DropBadEpochs reduces each trial to one scalar (metric over time, mean
// over the picked channels), runs the side-aware detector on the per-trial
// vector and drops the flagged trials.
func DropBadEpochs(ep *ephys.Epochs, pick ephys.Pick, opts EpochRejectOptions) (*EpochReport, error) {
	if err := pick.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Metric.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode != SegmentModeNone && opts.Mode != SegmentModeDiff {
		return nil, fmt.Errorf("epoch mode %q not recognised", string(opts.Mode))
	}

	report := &EpochReport{Pick: pick, Total: ep.NTrials()}

	indices := ep.PickIndices(pick)
	if len(indices) == 0 || ep.NTrials() == 0 {
		return report, nil
	}

	perTrial := make([]float64, ep.NTrials())
	for t := 0; t < ep.NTrials(); t++ {
		sum := 0.0
		for _, ch := range indices {
			row := ep.Data[t][ch]
			if opts.Mode == SegmentModeDiff {
				row = diffRow(row)
			}
			sum += opts.Metric.Apply(row)
		}
		perTrial[t] = sum / float64(len(indices))
	}

	gesd := outlier.Params{
		Alpha:       opts.SignificanceLevel,
		MaxFraction: opts.MaxFraction,
		Side:        opts.Side,
	}
	mask, _, err := outlier.Detect(perTrial, gesd)
	if err != nil {
		return nil, err
	}

	dropped, err := ep.Drop(mask)
	if err != nil {
		return nil, err
	}
	report.Dropped = dropped
	return report, nil
}

// ============================================================================
// RUN EXTRACTION
// ============================================================================

// sampleRun is a contiguous flagged run, inclusive on both ends
type sampleRun struct {
	start int
	end   int
}

// maskToRuns extracts contiguous true runs. Runs starting at position 0 or
// ending at the last position are included.
func maskToRuns(mask []bool) []sampleRun {
	var runs []sampleRun
	start := -1
	for i, bad := range mask {
		if bad && start == -1 {
			start = i
		}
		if !bad && start != -1 {
			runs = append(runs, sampleRun{start: start, end: i - 1})
			start = -1
		}
	}
	if start != -1 {
		runs = append(runs, sampleRun{start: start, end: len(mask) - 1})
	}
	return runs
}

// annotationForRun converts a flagged run into a time interval bounding it
// exactly. sampleOffset shifts scan positions back to recording samples.
func annotationForRun(rec *ephys.Recording, run sampleRun, sampleOffset int, description string) ephys.Annotation {
	onset := rec.TimeAt(run.start + sampleOffset)
	duration := float64(run.end-run.start+1) / rec.SampleRate
	return ephys.Annotation{Onset: onset, Duration: duration, Description: description}
}

// diffRows first-differences every row, shortening it by one sample
func diffRows(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = diffRow(row)
	}
	return out
}

func diffRow(row []float64) []float64 {
	if len(row) < 2 {
		return nil
	}
	out := make([]float64, len(row)-1)
	for i := 1; i < len(row); i++ {
		out[i-1] = row[i] - row[i-1]
	}
	return out
}
