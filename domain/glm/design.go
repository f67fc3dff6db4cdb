// Package glm implements general linear model fitting against a typed
// design matrix: named regressors, contrasts over the fitted parameters,
// and t-statistics for each contrast.
package glm

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"goephys/domain/core"
)

var (
	// ErrUnknownRegressorType indicates a regressor type outside the closed set
	ErrUnknownRegressorType = errors.New("unknown regressor type")
	// ErrSingularDesign indicates a rank-deficient design matrix
	ErrSingularDesign = errors.New("singular design matrix")
)

// RegressorType identifies how a design column is built from its values
type RegressorType string

const (
	// RegressorConstant is an all-ones intercept column
	RegressorConstant RegressorType = "Constant"
	// RegressorParametric carries a continuous covariate
	RegressorParametric RegressorType = "Parametric"
	// RegressorCategorical carries a 0/1 group-membership indicator
	RegressorCategorical RegressorType = "Categorical"
	// RegressorMeanEffects expands a label vector into one indicator column
	// per level
	RegressorMeanEffects RegressorType = "MeanEffects"
)

// Validate checks the type against the closed set
func (t RegressorType) Validate() error {
	switch t {
	case RegressorConstant, RegressorParametric, RegressorCategorical, RegressorMeanEffects:
		return nil
	}
	return fmt.Errorf("%w: rtype %q", ErrUnknownRegressorType, string(t))
}

// Regressor is one named design column before matrix assembly
type Regressor struct {
	Name   string        `json:"name"`
	Type   RegressorType `json:"type"`
	Values []float64     `json:"values,omitempty"`
	// Demean centers a parametric regressor before assembly
	Demean bool `json:"demean,omitempty"`
}

// Contrast is a named weighting over the design columns
type Contrast struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Design holds the assembled observation-by-regressor matrix with its
// column names and the contrasts to evaluate. Read-only once built;
// permutation schemes work on copies.
type Design struct {
	Matrix    *mat.Dense
	Names     []string
	Contrasts []Contrast
}

// DesignConfig accumulates regressors and contrasts before assembly,
// validating as it goes
type DesignConfig struct {
	regressors []Regressor
	contrasts  []Contrast
	nRows      int
}

// NewDesignConfig starts an empty config for the given observation count
func NewDesignConfig(nRows int) (*DesignConfig, error) {
	if nRows < 1 {
		return nil, core.NewValidationError("rows", "design needs at least one observation")
	}
	return &DesignConfig{nRows: nRows}, nil
}

// AddRegressor appends design columns. Constant regressors need no values;
// every other type needs one value per observation. A MeanEffects regressor
// expands into one 0/1 indicator column per unique level of its label
// vector, named <name>_<level>. Duplicate column names are rejected.
func (c *DesignConfig) AddRegressor(r Regressor) error {
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if r.Name == "" {
		return core.NewValidationError("regressor", "name cannot be empty")
	}
	if r.Type != RegressorConstant && len(r.Values) != c.nRows {
		return core.NewShapeError(fmt.Sprintf("regressor %q has %d values for %d observations", r.Name, len(r.Values), c.nRows))
	}
	if r.Type == RegressorMeanEffects {
		for _, level := range uniqueLevels(r.Values) {
			indicator := make([]float64, len(r.Values))
			for i, v := range r.Values {
				if v == level {
					indicator[i] = 1
				}
			}
			col := Regressor{
				Name:   fmt.Sprintf("%s_%g", r.Name, level),
				Type:   RegressorCategorical,
				Values: indicator,
			}
			if err := c.appendColumn(col); err != nil {
				return err
			}
		}
		return nil
	}
	return c.appendColumn(r)
}

func (c *DesignConfig) appendColumn(r Regressor) error {
	for _, existing := range c.regressors {
		if existing.Name == r.Name {
			return core.NewValidationError("regressor", fmt.Sprintf("duplicate column name %q", r.Name))
		}
	}
	c.regressors = append(c.regressors, r)
	return nil
}

// uniqueLevels returns the distinct label values in ascending order
func uniqueLevels(values []float64) []float64 {
	seen := make(map[float64]bool, len(values))
	var levels []float64
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			levels = append(levels, v)
		}
	}
	sort.Float64s(levels)
	return levels
}

// AddContrast appends a contrast; its length must match the current column
// count, so contrasts are added after all regressors
func (c *DesignConfig) AddContrast(name string, values []float64) error {
	if name == "" {
		return core.NewValidationError("contrast", "name cannot be empty")
	}
	if len(values) != len(c.regressors) {
		return core.NewShapeError(fmt.Sprintf("contrast %q has %d weights for %d regressors", name, len(values), len(c.regressors)))
	}
	c.contrasts = append(c.contrasts, Contrast{Name: name, Values: values})
	return nil
}

// AddSimpleContrasts appends one indicator contrast per current regressor
func (c *DesignConfig) AddSimpleContrasts() {
	for i, r := range c.regressors {
		values := make([]float64, len(c.regressors))
		values[i] = 1
		c.contrasts = append(c.contrasts, Contrast{Name: r.Name, Values: values})
	}
}

// Build assembles the design matrix. At least one regressor and one
// contrast are required.
func (c *DesignConfig) Build() (*Design, error) {
	if len(c.regressors) == 0 {
		return nil, core.NewValidationError("design", "at least one regressor required")
	}
	if len(c.contrasts) == 0 {
		return nil, core.NewValidationError("design", "at least one contrast required")
	}

	matrix := mat.NewDense(c.nRows, len(c.regressors), nil)
	names := make([]string, len(c.regressors))
	for j, r := range c.regressors {
		names[j] = r.Name
		col := c.columnFor(r)
		for i := 0; i < c.nRows; i++ {
			matrix.Set(i, j, col[i])
		}
	}

	contrasts := make([]Contrast, len(c.contrasts))
	copy(contrasts, c.contrasts)
	return &Design{Matrix: matrix, Names: names, Contrasts: contrasts}, nil
}

func (c *DesignConfig) columnFor(r Regressor) []float64 {
	col := make([]float64, c.nRows)
	switch r.Type {
	case RegressorConstant:
		for i := range col {
			col[i] = 1
		}
	default:
		copy(col, r.Values)
		if r.Demean {
			mean := 0.0
			for _, v := range col {
				mean += v
			}
			mean /= float64(len(col))
			for i := range col {
				col[i] -= mean
			}
		}
	}
	return col
}

// NRows returns the observation count
func (d *Design) NRows() int {
	r, _ := d.Matrix.Dims()
	return r
}

// NColumns returns the regressor count
func (d *Design) NColumns() int {
	_, c := d.Matrix.Dims()
	return c
}

// ColumnIndex returns the position of a named regressor column
func (d *Design) ColumnIndex(name string) (int, error) {
	for j, n := range d.Names {
		if n == name {
			return j, nil
		}
	}
	return 0, core.NewNotFoundError("regressor", name)
}

// Clone deep-copies the design so a permutation scheme can rearrange rows
// without touching the original
func (d *Design) Clone() *Design {
	matrix := mat.DenseCopyOf(d.Matrix)
	names := make([]string, len(d.Names))
	copy(names, d.Names)
	contrasts := make([]Contrast, len(d.Contrasts))
	copy(contrasts, d.Contrasts)
	return &Design{Matrix: matrix, Names: names, Contrasts: contrasts}
}
