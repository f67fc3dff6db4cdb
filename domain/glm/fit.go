package glm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"goephys/domain/core"
)

// Fitted holds the result of one least-squares fit against a design.
// Shapes: Betas is regressors x features, Copes / VarCopes / Tstats are
// contrasts x features, where a feature is one fitted data column.
type Fitted struct {
	Betas    *mat.Dense
	Copes    *mat.Dense
	VarCopes *mat.Dense
	Tstats   *mat.Dense
}

// Fit runs ordinary least squares of data against the design via an SVD
// pseudoinverse and evaluates every contrast. data is observations x
// features and is never modified. A rank-deficient design returns
// ErrSingularDesign.
func Fit(design *Design, data *mat.Dense) (*Fitted, error) {
	nRows, nFeatures := data.Dims()
	if nRows != design.NRows() {
		return nil, core.NewShapeError(fmt.Sprintf("design has %d rows but data has %d", design.NRows(), nRows))
	}
	nCols := design.NColumns()

	var svd mat.SVD
	if ok := svd.Factorize(design.Matrix, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD factorization failed", ErrSingularDesign)
	}
	values := svd.Values(nil)
	rank := 0
	tol := svdTolerance(values, nRows, nCols)
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	if rank < nCols {
		return nil, fmt.Errorf("%w: rank %d for %d columns", ErrSingularDesign, rank, nCols)
	}

	// Pseudoinverse X+ = V S^-1 U^T
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sInv := mat.NewDiagDense(len(values), nil)
	for i, s := range values {
		sInv.SetDiag(i, 1/s)
	}
	var pinv mat.Dense
	pinv.Product(&v, sInv, u.T())

	betas := mat.NewDense(nCols, nFeatures, nil)
	betas.Mul(&pinv, data)

	// Residual variance per feature at dof = rows - rank
	var fittedData mat.Dense
	fittedData.Mul(design.Matrix, betas)
	dof := float64(nRows - rank)
	residVar := make([]float64, nFeatures)
	for f := 0; f < nFeatures; f++ {
		ss := 0.0
		for i := 0; i < nRows; i++ {
			r := data.At(i, f) - fittedData.At(i, f)
			ss += r * r
		}
		if dof > 0 {
			residVar[f] = ss / dof
		} else {
			residVar[f] = math.NaN()
		}
	}

	// c (X^T X)^-1 c^T scales the residual variance into each varcope
	var xtx mat.Dense
	xtx.Mul(design.Matrix.T(), design.Matrix)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularDesign, err)
	}

	nContrasts := len(design.Contrasts)
	copes := mat.NewDense(nContrasts, nFeatures, nil)
	varcopes := mat.NewDense(nContrasts, nFeatures, nil)
	tstats := mat.NewDense(nContrasts, nFeatures, nil)
	for c, contrast := range design.Contrasts {
		cVec := mat.NewVecDense(nCols, contrast.Values)
		var tmp mat.VecDense
		tmp.MulVec(&xtxInv, cVec)
		scale := mat.Dot(cVec, &tmp)

		for f := 0; f < nFeatures; f++ {
			cope := 0.0
			for j := 0; j < nCols; j++ {
				cope += contrast.Values[j] * betas.At(j, f)
			}
			varcope := residVar[f] * scale
			copes.Set(c, f, cope)
			varcopes.Set(c, f, varcope)
			if varcope > 0 {
				tstats.Set(c, f, cope/math.Sqrt(varcope))
			} else {
				tstats.Set(c, f, math.NaN())
			}
		}
	}

	return &Fitted{Betas: betas, Copes: copes, VarCopes: varcopes, Tstats: tstats}, nil
}

// svdTolerance is the usual max(m,n) * eps * s_max rank cutoff
func svdTolerance(values []float64, rows, cols int) float64 {
	if len(values) == 0 {
		return 0
	}
	sMax := values[0]
	for _, s := range values {
		if s > sMax {
			sMax = s
		}
	}
	dim := rows
	if cols > dim {
		dim = cols
	}
	return float64(dim) * 2.220446049250313e-16 * sMax
}
