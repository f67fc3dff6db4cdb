package perm

import (
	"errors"
	"fmt"
	"math"

	"goephys/domain/core"
	"goephys/domain/glm"
)

// ErrUnknownStatistic indicates a summary statistic outside the closed set
var ErrUnknownStatistic = errors.New("unknown permutation statistic")

// Statistic selects the per-draw summary of a t-map
type Statistic string

const (
	// StatMaxT is the maximum absolute t-value over the whole map
	StatMaxT Statistic = "max-t"
	// StatClusterMass thresholds absolute t-values and sums each
	// 4-connected suprathreshold region; the summary is the largest mass
	StatClusterMass Statistic = "cluster-mass"
)

// ParseStatistic converts a keyword into a Statistic, failing fast on
// unknown values
func ParseStatistic(s string) (Statistic, error) {
	st := Statistic(s)
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// Validate checks the statistic against the closed set
func (s Statistic) Validate() error {
	switch s {
	case StatMaxT, StatClusterMass:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownStatistic, string(s))
}

// String returns the keyword form
func (s Statistic) String() string { return string(s) }

// Summarize reduces a t-map to the draw's scalar statistic.
// clusterThreshold is the cluster-forming threshold on |t| and is only
// used by the cluster-mass statistic.
func (s Statistic) Summarize(tmap *glm.TMap, clusterThreshold float64) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	switch s {
	case StatMaxT:
		return tmap.MaxAbs(), nil
	default:
		if clusterThreshold <= 0 {
			return 0, core.NewValidationError("cluster_threshold", "must be positive")
		}
		return maxClusterMass(tmap.Values, clusterThreshold), nil
	}
}

// maxClusterMass finds 4-connected components of |t| > threshold on the
// channels-by-frequency grid and returns the largest summed mass, zero
// when nothing is suprathreshold.
func maxClusterMass(values [][]float64, threshold float64) float64 {
	rows := len(values)
	if rows == 0 {
		return 0
	}
	cols := len(values[0])

	visited := make([][]bool, rows)
	for i := range visited {
		visited[i] = make([]bool, cols)
	}
	supra := func(r, c int) bool {
		v := math.Abs(values[r][c])
		return !math.IsNaN(v) && v > threshold
	}

	best := 0.0
	var stack [][2]int
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if visited[r][c] || !supra(r, c) {
				continue
			}
			mass := 0.0
			stack = append(stack[:0], [2]int{r, c})
			visited[r][c] = true
			for len(stack) > 0 {
				cell := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				mass += math.Abs(values[cell[0]][cell[1]])
				for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nr, nc := cell[0]+d[0], cell[1]+d[1]
					if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
						continue
					}
					if visited[nr][nc] || !supra(nr, nc) {
						continue
					}
					visited[nr][nc] = true
					stack = append(stack, [2]int{nr, nc})
				}
			}
			if mass > best {
				best = mass
			}
		}
	}
	return best
}
