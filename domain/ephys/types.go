package ephys

import (
	"fmt"

	"goephys/domain/core"
)

// ============================================================================
// CHANNELS & ANNOTATIONS
// ============================================================================

// Channel describes one sensor in a recording
type Channel struct {
	Name string      `json:"name"`
	Kind ChannelKind `json:"kind"`
}

// Annotation marks a labeled time interval on a recording.
// Onset and Duration are in seconds relative to the recording clock.
type Annotation struct {
	Onset       float64 `json:"onset"`
	Duration    float64 `json:"duration"`
	Description string  `json:"description"`
}

// End returns the offset of the annotated interval in seconds
func (a Annotation) End() float64 {
	return a.Onset + a.Duration
}

// ============================================================================
// RECORDING (continuous channels x time data)
// ============================================================================

// Recording holds continuous multi-channel data with its metadata: channel
// descriptions, a bad-channel registry and an ordered annotation list.
// Detector inputs are read-only; only the metadata mutates.
type Recording struct {
	ID          core.RecordingID `json:"id"`
	Channels    []Channel        `json:"channels"`
	Data        [][]float64      `json:"-"` // channels x time
	SampleRate  float64          `json:"sample_rate"`
	FirstTime   float64          `json:"first_time"` // clock offset of sample 0 in seconds
	Bads        []string         `json:"bads"`
	Annotations []Annotation     `json:"annotations"`
}

// NewRecording validates shape metadata and builds a Recording
func NewRecording(channels []Channel, data [][]float64, sampleRate float64) (*Recording, error) {
	if sampleRate <= 0 {
		return nil, core.NewValidationError("sample_rate", "must be positive")
	}
	if len(channels) == 0 {
		return nil, core.NewValidationError("channels", "at least one channel required")
	}
	if len(data) != len(channels) {
		return nil, core.NewShapeError(fmt.Sprintf("%d channels described but %d data rows", len(channels), len(data)))
	}
	names := make(map[string]bool, len(channels))
	for _, ch := range channels {
		if err := ValidateChannelKind(ch.Kind); err != nil {
			return nil, err
		}
		if names[ch.Name] {
			return nil, core.NewValidationError("channels", fmt.Sprintf("duplicate channel name %q", ch.Name))
		}
		names[ch.Name] = true
	}
	nSamples := len(data[0])
	for i, row := range data {
		if len(row) != nSamples {
			return nil, core.NewShapeError(fmt.Sprintf("channel %d has %d samples, expected %d", i, len(row), nSamples))
		}
	}
	return &Recording{
		ID:         core.RecordingID(core.NewID()),
		Channels:   channels,
		Data:       data,
		SampleRate: sampleRate,
	}, nil
}

// NChannels returns the channel count
func (r *Recording) NChannels() int { return len(r.Channels) }

// NSamples returns the per-channel sample count
func (r *Recording) NSamples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// TimeAt converts a sample index to seconds on the recording clock
func (r *Recording) TimeAt(sample int) float64 {
	return r.FirstTime + float64(sample)/r.SampleRate
}

// Duration returns the recording length in seconds
func (r *Recording) Duration() float64 {
	return float64(r.NSamples()) / r.SampleRate
}

// IsBadChannel reports whether a channel name is in the bad registry
func (r *Recording) IsBadChannel(name string) bool {
	for _, b := range r.Bads {
		if b == name {
			return true
		}
	}
	return false
}

// AddBadChannel appends a channel name to the bad registry. Already
// registered names are skipped; returns true only when the name was added.
func (r *Recording) AddBadChannel(name string) bool {
	if r.IsBadChannel(name) {
		return false
	}
	r.Bads = append(r.Bads, name)
	return true
}

// Annotate appends a labeled interval to the annotation list
func (r *Recording) Annotate(a Annotation) {
	r.Annotations = append(r.Annotations, a)
}

// PickIndices returns the channel indices selected by the pick, in channel
// order. Channels in the bad registry are excluded.
func (r *Recording) PickIndices(p Pick) []int {
	return pickIndices(r.Channels, p, r.IsBadChannel)
}

// DataFor returns row views of the selected channels
func (r *Recording) DataFor(indices []int) [][]float64 {
	out := make([][]float64, len(indices))
	for i, idx := range indices {
		out[i] = r.Data[idx]
	}
	return out
}

// ============================================================================
// EPOCHS (trials x channels x time data)
// ============================================================================

// Epochs holds segmented trial data. Dropping trials removes them from Data
// and records the original trial indices in DropLog.
type Epochs struct {
	ID         core.RecordingID `json:"id"`
	Channels   []Channel        `json:"channels"`
	Data       [][][]float64    `json:"-"` // trials x channels x time
	SampleRate float64          `json:"sample_rate"`
	Bads       []string         `json:"bads"`
	DropLog    []int            `json:"drop_log"`
}

// NewEpochs validates shape metadata and builds an Epochs collection
func NewEpochs(channels []Channel, data [][][]float64, sampleRate float64) (*Epochs, error) {
	if sampleRate <= 0 {
		return nil, core.NewValidationError("sample_rate", "must be positive")
	}
	if len(channels) == 0 {
		return nil, core.NewValidationError("channels", "at least one channel required")
	}
	if len(data) == 0 {
		return nil, core.NewValidationError("data", "at least one trial required")
	}
	nSamples := -1
	for t, trial := range data {
		if len(trial) != len(channels) {
			return nil, core.NewShapeError(fmt.Sprintf("trial %d has %d channels, expected %d", t, len(trial), len(channels)))
		}
		for c, row := range trial {
			if nSamples == -1 {
				nSamples = len(row)
			}
			if len(row) != nSamples {
				return nil, core.NewShapeError(fmt.Sprintf("trial %d channel %d has %d samples, expected %d", t, c, len(row), nSamples))
			}
		}
	}
	return &Epochs{
		ID:         core.RecordingID(core.NewID()),
		Channels:   channels,
		Data:       data,
		SampleRate: sampleRate,
	}, nil
}

// NTrials returns the trial count
func (e *Epochs) NTrials() int { return len(e.Data) }

// NChannels returns the channel count
func (e *Epochs) NChannels() int { return len(e.Channels) }

// NSamples returns the per-trial sample count
func (e *Epochs) NSamples() int {
	if len(e.Data) == 0 || len(e.Data[0]) == 0 {
		return 0
	}
	return len(e.Data[0][0])
}

// IsBadChannel reports whether a channel name is in the bad registry
func (e *Epochs) IsBadChannel(name string) bool {
	for _, b := range e.Bads {
		if b == name {
			return true
		}
	}
	return false
}

// PickIndices returns the channel indices selected by the pick, excluding
// registered bad channels
func (e *Epochs) PickIndices(p Pick) []int {
	return pickIndices(e.Channels, p, e.IsBadChannel)
}

// Drop removes the flagged trials. The mask must have one entry per current
// trial; dropped original indices are appended to DropLog.
func (e *Epochs) Drop(mask []bool) (int, error) {
	if len(mask) != e.NTrials() {
		return 0, core.NewShapeError(fmt.Sprintf("drop mask has %d entries for %d trials", len(mask), e.NTrials()))
	}
	kept := make([][][]float64, 0, len(e.Data))
	dropped := 0
	for i, bad := range mask {
		if bad {
			e.DropLog = append(e.DropLog, i)
			dropped++
			continue
		}
		kept = append(kept, e.Data[i])
	}
	e.Data = kept
	return dropped, nil
}

func pickIndices(channels []Channel, p Pick, isBad func(string) bool) []int {
	var indices []int
	for i, ch := range channels {
		if !p.Matches(ch.Kind) {
			continue
		}
		if isBad != nil && isBad(ch.Name) {
			continue
		}
		indices = append(indices, i)
	}
	return indices
}
