package perm

import (
	"errors"
	"fmt"
	"math/rand"

	"goephys/domain/glm"
)

// ErrUnknownScheme indicates a permutation scheme outside the closed set
var ErrUnknownScheme = errors.New("unknown permutation scheme")

// Scheme selects how a null design is generated from the true design
type Scheme string

const (
	// SchemeRowShuffle permutes all design rows together, breaking the
	// pairing between observations and every regressor
	SchemeRowShuffle Scheme = "row-shuffle"
	// SchemeSignFlip flips random signs on the tested regressor's column
	// only, the null for a paired or demeaned covariate effect
	SchemeSignFlip Scheme = "sign-flip"
)

// ParseScheme converts a keyword into a Scheme, failing fast on unknown
// values
func ParseScheme(s string) (Scheme, error) {
	sc := Scheme(s)
	if err := sc.Validate(); err != nil {
		return "", err
	}
	return sc, nil
}

// Validate checks the scheme against the closed set
func (s Scheme) Validate() error {
	switch s {
	case SchemeRowShuffle, SchemeSignFlip:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownScheme, string(s))
}

// String returns the keyword form
func (s Scheme) String() string { return string(s) }

// Permute returns a null design drawn from the scheme. The input design is
// cloned, never modified; column selects the tested regressor for the
// sign-flip scheme and is ignored by the row shuffle.
func (s Scheme) Permute(design *glm.Design, column int, rng *rand.Rand) (*glm.Design, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := design.Clone()
	nRows := out.NRows()

	switch s {
	case SchemeRowShuffle:
		perm := rng.Perm(nRows)
		nCols := out.NColumns()
		for i, src := range perm {
			for j := 0; j < nCols; j++ {
				out.Matrix.Set(i, j, design.Matrix.At(src, j))
			}
		}
	case SchemeSignFlip:
		if column < 0 || column >= out.NColumns() {
			return nil, fmt.Errorf("sign-flip column %d out of %d regressors", column, out.NColumns())
		}
		for i := 0; i < nRows; i++ {
			if rng.Intn(2) == 1 {
				out.Matrix.Set(i, column, -out.Matrix.At(i, column))
			}
		}
	}
	return out, nil
}
