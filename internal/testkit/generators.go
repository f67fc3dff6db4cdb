package testkit

import (
	"fmt"
	"math/rand"

	"goephys/domain/ephys"
	"goephys/domain/glm"
)

// Generator produces deterministic synthetic datasets from a fixed seed
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator; the same seed always yields the same data
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Recording builds a unit-Gaussian MEG recording with the given shape.
// Channels alternate magnetometer and gradiometer kinds.
func (g *Generator) Recording(nChannels, nSamples int, sampleRate float64) (*ephys.Recording, error) {
	channels := make([]ephys.Channel, nChannels)
	data := make([][]float64, nChannels)
	for ch := 0; ch < nChannels; ch++ {
		kind := ephys.KindMag
		if ch%2 == 1 {
			kind = ephys.KindGrad
		}
		channels[ch] = ephys.Channel{Name: fmt.Sprintf("MEG%03d", ch), Kind: kind}
		row := make([]float64, nSamples)
		for i := range row {
			row[i] = g.rng.NormFloat64()
		}
		data[ch] = row
	}
	return ephys.NewRecording(channels, data, sampleRate)
}

// InjectBadChannel scales one channel's samples, making its variance stand
// out to a dimension-mode scan
func (g *Generator) InjectBadChannel(rec *ephys.Recording, channel int, gain float64) {
	for i := range rec.Data[channel] {
		rec.Data[channel][i] *= gain
	}
}

// InjectSpike scales every channel inside [start, stop) so a segment-mode
// scan flags exactly that window
func (g *Generator) InjectSpike(rec *ephys.Recording, start, stop int, gain float64) {
	for ch := range rec.Data {
		for i := start; i < stop && i < len(rec.Data[ch]); i++ {
			rec.Data[ch][i] *= gain
		}
	}
}

// ZeroWindow flattens every channel inside [start, stop), simulating blocks
// zeroed by the hardware-synchronization stage
func (g *Generator) ZeroWindow(rec *ephys.Recording, start, stop int) {
	for ch := range rec.Data {
		for i := start; i < stop && i < len(rec.Data[ch]); i++ {
			rec.Data[ch][i] = 0
		}
	}
}

// Epochs builds unit-Gaussian trial data with the listed trials scaled by
// gain so they read as outliers
func (g *Generator) Epochs(nTrials, nChannels, nSamples int, sampleRate float64, badTrials []int, gain float64) (*ephys.Epochs, error) {
	bad := make(map[int]bool, len(badTrials))
	for _, t := range badTrials {
		bad[t] = true
	}
	channels := make([]ephys.Channel, nChannels)
	for ch := 0; ch < nChannels; ch++ {
		channels[ch] = ephys.Channel{Name: fmt.Sprintf("MEG%03d", ch), Kind: ephys.KindMag}
	}
	data := make([][][]float64, nTrials)
	for t := 0; t < nTrials; t++ {
		scale := 1.0
		if bad[t] {
			scale = gain
		}
		trial := make([][]float64, nChannels)
		for ch := 0; ch < nChannels; ch++ {
			row := make([]float64, nSamples)
			for i := range row {
				row[i] = g.rng.NormFloat64() * scale
			}
			trial[ch] = row
		}
		data[t] = trial
	}
	return ephys.NewEpochs(channels, data, sampleRate)
}

// GroupSpectra builds group-level data with a planted covariate effect:
// each dataset's map is noise plus covariate[d] * effect inside the block
// [chLo,chHi) x [fqLo,fqHi). One first-level contrast.
func (g *Generator) GroupSpectra(covariate []float64, nChannels, nFreqs int,
	effect float64, chLo, chHi, fqLo, fqHi int) (*glm.GroupData, error) {

	data := make([][][][]float64, len(covariate))
	for d := range covariate {
		chmap := make([][]float64, nChannels)
		for ch := 0; ch < nChannels; ch++ {
			row := make([]float64, nFreqs)
			for fq := 0; fq < nFreqs; fq++ {
				row[fq] = g.rng.NormFloat64()
				if ch >= chLo && ch < chHi && fq >= fqLo && fq < fqHi {
					row[fq] += covariate[d] * effect
				}
			}
			chmap[ch] = row
		}
		data[d] = [][][]float64{chmap}
	}
	return glm.NewGroupData(data)
}

// Covariate draws a demeaned covariate vector for group designs
func (g *Generator) Covariate(n int) []float64 {
	out := make([]float64, n)
	mean := 0.0
	for i := range out {
		out[i] = g.rng.NormFloat64()
		mean += out[i]
	}
	mean /= float64(n)
	for i := range out {
		out[i] -= mean
	}
	return out
}

// GroupDesign builds the standard mean-plus-covariate group design with
// simple contrasts for both columns
func GroupDesign(covariate []float64) (*glm.Design, error) {
	cfg, err := glm.NewDesignConfig(len(covariate))
	if err != nil {
		return nil, err
	}
	if err := cfg.AddRegressor(glm.Regressor{Name: "Mean", Type: glm.RegressorConstant}); err != nil {
		return nil, err
	}
	if err := cfg.AddRegressor(glm.Regressor{Name: "Covariate", Type: glm.RegressorParametric, Values: covariate, Demean: true}); err != nil {
		return nil, err
	}
	cfg.AddSimpleContrasts()
	return cfg.Build()
}

// ZeroLogLines renders hardware-log lines describing zeroed blocks at the
// given times, for nBuffers total data buffers
func ZeroLogLines(nBuffers int, skipTimes []float64) []string {
	lines := []string{fmt.Sprintf("(%d data buffers)", nBuffers)}
	for _, t := range skipTimes {
		lines = append(lines, fmt.Sprintf("Time %g: cont HPI is off, data block is skipped!", t))
	}
	return lines
}
