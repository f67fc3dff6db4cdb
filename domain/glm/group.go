package glm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"goephys/domain/core"
)

// GroupData holds first-level results stacked for a group-level fit:
// one channels-by-frequency map per dataset per first-level contrast.
// Data[d][fl][ch][fq] indexes dataset d, first-level contrast fl.
type GroupData struct {
	Data        [][][][]float64
	NChannels   int
	NFreqs      int
	NFLContrast int
}

// NewGroupData validates the stacked shape
func NewGroupData(data [][][][]float64) (*GroupData, error) {
	if len(data) == 0 {
		return nil, core.NewValidationError("group_data", "at least one dataset required")
	}
	nFL := len(data[0])
	if nFL == 0 {
		return nil, core.NewValidationError("group_data", "at least one first-level contrast required")
	}
	nCh := len(data[0][0])
	if nCh == 0 {
		return nil, core.NewValidationError("group_data", "at least one channel required")
	}
	nFq := len(data[0][0][0])
	for d, ds := range data {
		if len(ds) != nFL {
			return nil, core.NewShapeError(fmt.Sprintf("dataset %d has %d first-level contrasts, expected %d", d, len(ds), nFL))
		}
		for fl, chmap := range ds {
			if len(chmap) != nCh {
				return nil, core.NewShapeError(fmt.Sprintf("dataset %d contrast %d has %d channels, expected %d", d, fl, len(chmap), nCh))
			}
			for ch, row := range chmap {
				if len(row) != nFq {
					return nil, core.NewShapeError(fmt.Sprintf("dataset %d contrast %d channel %d has %d frequencies, expected %d", d, fl, ch, len(row), nFq))
				}
			}
		}
	}
	return &GroupData{Data: data, NChannels: nCh, NFreqs: nFq, NFLContrast: nFL}, nil
}

// NDatasets returns the observation count for the group design
func (g *GroupData) NDatasets() int { return len(g.Data) }

// Flatten extracts one first-level contrast as a datasets-by-features
// matrix, features in channel-major order, ready for Fit
func (g *GroupData) Flatten(flContrast int) (*mat.Dense, error) {
	if flContrast < 0 || flContrast >= g.NFLContrast {
		return nil, core.NewValidationError("fl_contrast", fmt.Sprintf("index %d out of %d first-level contrasts", flContrast, g.NFLContrast))
	}
	out := mat.NewDense(g.NDatasets(), g.NChannels*g.NFreqs, nil)
	for d, ds := range g.Data {
		for ch := 0; ch < g.NChannels; ch++ {
			for fq := 0; fq < g.NFreqs; fq++ {
				out.Set(d, ch*g.NFreqs+fq, ds[flContrast][ch][fq])
			}
		}
	}
	return out, nil
}

// TMap holds a channels-by-frequency map of t-statistics for one
// (group contrast, first-level contrast) selection
type TMap struct {
	Values [][]float64
}

// MaxAbs returns the largest absolute t-value in the map
func (m *TMap) MaxAbs() float64 {
	best := 0.0
	for _, row := range m.Values {
		for _, v := range row {
			if a := abs(v); a > best {
				best = a
			}
		}
	}
	return best
}

// FitGroup fits the group design against one first-level contrast of the
// stacked data and reshapes the selected group contrast's t-statistics
// back into a channels-by-frequency map.
func FitGroup(design *Design, g *GroupData, groupContrast, flContrast int) (*TMap, error) {
	if groupContrast < 0 || groupContrast >= len(design.Contrasts) {
		return nil, core.NewValidationError("group_contrast", fmt.Sprintf("index %d out of %d contrasts", groupContrast, len(design.Contrasts)))
	}
	data, err := g.Flatten(flContrast)
	if err != nil {
		return nil, err
	}
	fitted, err := Fit(design, data)
	if err != nil {
		return nil, err
	}

	values := make([][]float64, g.NChannels)
	for ch := 0; ch < g.NChannels; ch++ {
		values[ch] = make([]float64, g.NFreqs)
		for fq := 0; fq < g.NFreqs; fq++ {
			values[ch][fq] = fitted.Tstats.At(groupContrast, ch*g.NFreqs+fq)
		}
	}
	return &TMap{Values: values}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
