package glm

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func buildDesign(t *testing.T, covariate []float64) *Design {
	t.Helper()
	cfg, err := NewDesignConfig(len(covariate))
	if err != nil {
		t.Fatalf("NewDesignConfig failed: %v", err)
	}
	if err := cfg.AddRegressor(Regressor{Name: "Mean", Type: RegressorConstant}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	if err := cfg.AddRegressor(Regressor{Name: "Covariate", Type: RegressorParametric, Values: covariate}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	cfg.AddSimpleContrasts()
	design, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return design
}

// TestDesignConfigValidation tests the fail-fast construction checks
func TestDesignConfigValidation(t *testing.T) {
	if _, err := NewDesignConfig(0); err == nil {
		t.Error("Expected error for zero observations")
	}

	cfg, _ := NewDesignConfig(4)
	if err := cfg.AddRegressor(Regressor{Name: "X", Type: RegressorType("Spline")}); err == nil {
		t.Error("Expected error for unknown regressor type")
	}
	if err := cfg.AddRegressor(Regressor{Name: "X", Type: RegressorParametric, Values: []float64{1, 2}}); err == nil {
		t.Error("Expected error for wrong value count")
	}
	if err := cfg.AddRegressor(Regressor{Name: "X", Type: RegressorConstant}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	if err := cfg.AddRegressor(Regressor{Name: "X", Type: RegressorConstant}); err == nil {
		t.Error("Expected error for duplicate column name")
	}
	if err := cfg.AddContrast("c", []float64{1, 0}); err == nil {
		t.Error("Expected error for contrast length mismatch")
	}
	if _, err := cfg.Build(); err == nil {
		t.Error("Expected error for design without contrasts")
	}
}

// TestDesignDemean tests parametric column centering
func TestDesignDemean(t *testing.T) {
	cfg, _ := NewDesignConfig(4)
	if err := cfg.AddRegressor(Regressor{Name: "Cov", Type: RegressorParametric, Values: []float64{1, 2, 3, 4}, Demean: true}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	cfg.AddSimpleContrasts()
	design, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	sum := 0.0
	for i := 0; i < 4; i++ {
		sum += design.Matrix.At(i, 0)
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("Expected demeaned column to sum to zero, got %g", sum)
	}
}

// TestDesignMeanEffectsExpansion tests that a label vector expands into one
// indicator column per level
func TestDesignMeanEffectsExpansion(t *testing.T) {
	cfg, _ := NewDesignConfig(6)
	if err := cfg.AddRegressor(Regressor{Name: "Group", Type: RegressorMeanEffects, Values: []float64{2, 2, 1, 1, 3, 3}}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	cfg.AddSimpleContrasts()
	design, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if design.NColumns() != 3 {
		t.Fatalf("Expected 3 indicator columns, got %d", design.NColumns())
	}
	// Levels come out in ascending order regardless of appearance order
	wantNames := []string{"Group_1", "Group_2", "Group_3"}
	for j, name := range wantNames {
		if design.Names[j] != name {
			t.Errorf("Column %d: expected name %q, got %q", j, name, design.Names[j])
		}
	}
	wantCols := [][]float64{
		{0, 0, 1, 1, 0, 0},
		{1, 1, 0, 0, 0, 0},
		{0, 0, 0, 0, 1, 1},
	}
	for j, col := range wantCols {
		for i, want := range col {
			if got := design.Matrix.At(i, j); got != want {
				t.Errorf("Cell (%d, %d): expected %g, got %g", i, j, want, got)
			}
		}
	}
	if len(design.Contrasts) != 3 {
		t.Errorf("Expected one simple contrast per expanded column, got %d", len(design.Contrasts))
	}
}

// TestDesignCategoricalColumn tests that a supplied indicator survives
// assembly untouched
func TestDesignCategoricalColumn(t *testing.T) {
	indicator := []float64{1, 0, 1, 0}
	cfg, _ := NewDesignConfig(4)
	if err := cfg.AddRegressor(Regressor{Name: "GroupA", Type: RegressorCategorical, Values: indicator}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	cfg.AddSimpleContrasts()
	design, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i, want := range indicator {
		if got := design.Matrix.At(i, 0); got != want {
			t.Errorf("Row %d: expected %g, got %g", i, want, got)
		}
	}
}

// TestFitRecoversCoefficients tests OLS on noiseless data
func TestFitRecoversCoefficients(t *testing.T) {
	covariate := []float64{-3, -2, -1, 0, 1, 2, 3, 4}
	design := buildDesign(t, covariate)

	// y = 2 + 1.5 * covariate exactly
	data := mat.NewDense(len(covariate), 1, nil)
	for i, c := range covariate {
		data.Set(i, 0, 2+1.5*c)
	}

	fitted, err := Fit(design, data)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if got := fitted.Betas.At(0, 0); math.Abs(got-2) > 1e-9 {
		t.Errorf("Expected intercept 2, got %g", got)
	}
	if got := fitted.Betas.At(1, 0); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("Expected slope 1.5, got %g", got)
	}
	// Copes under simple contrasts equal the betas
	if got := fitted.Copes.At(1, 0); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("Expected cope 1.5, got %g", got)
	}
}

// TestFitTstatHandComputed tests the t-statistic against a hand-worked
// simple regression
func TestFitTstatHandComputed(t *testing.T) {
	covariate := []float64{-1.5, -0.5, 0.5, 1.5}
	design := buildDesign(t, covariate)

	// y = covariate + small perpendicular residuals
	y := []float64{-1.6, -0.3, 0.3, 1.6}
	data := mat.NewDense(4, 1, y)

	fitted, err := Fit(design, data)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Hand-worked: slope = sum(xy)/sum(x^2), resid var at dof 2,
	// var(slope) = sigma^2 / sum(x^2)
	sxx := 0.0
	sxy := 0.0
	for i, x := range covariate {
		sxx += x * x
		sxy += x * y[i]
	}
	slope := sxy / sxx
	rss := 0.0
	for i, x := range covariate {
		r := y[i] - slope*x
		rss += r * r
	}
	sigma2 := rss / 2
	wantT := slope / math.Sqrt(sigma2/sxx)

	if got := fitted.Tstats.At(1, 0); math.Abs(got-wantT) > 1e-9 {
		t.Errorf("Expected t %g, got %g", wantT, got)
	}
}

// TestFitSingularDesign tests that duplicated columns fail with the
// sentinel error
func TestFitSingularDesign(t *testing.T) {
	cfg, _ := NewDesignConfig(6)
	values := []float64{1, 2, 3, 4, 5, 6}
	if err := cfg.AddRegressor(Regressor{Name: "A", Type: RegressorParametric, Values: values}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	if err := cfg.AddRegressor(Regressor{Name: "B", Type: RegressorParametric, Values: values}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	cfg.AddSimpleContrasts()
	design, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	if _, err := Fit(design, data); !errors.Is(err, ErrSingularDesign) {
		t.Errorf("Expected ErrSingularDesign, got %v", err)
	}
}

// TestGroupDataShape tests the stacked-shape validation
func TestGroupDataShape(t *testing.T) {
	if _, err := NewGroupData(nil); err == nil {
		t.Error("Expected error for empty group data")
	}

	ragged := [][][][]float64{
		{{{1, 2}, {3, 4}}},
		{{{1, 2}}},
	}
	if _, err := NewGroupData(ragged); err == nil {
		t.Error("Expected error for ragged channel counts")
	}
}

// TestFitGroupPlantedEffect tests that a strong planted covariate effect
// shows up in the right cell of the t-map
func TestFitGroupPlantedEffect(t *testing.T) {
	covariate := []float64{-2, -1.2, -0.4, 0.4, 1.2, 2, -1.6, 1.6}
	nCh, nFq := 3, 4
	raw := make([][][][]float64, len(covariate))
	for d, c := range covariate {
		chmap := make([][]float64, nCh)
		for ch := 0; ch < nCh; ch++ {
			row := make([]float64, nFq)
			for fq := 0; fq < nFq; fq++ {
				// background varies with the dataset index only
				row[fq] = 0.1 * float64(d%3)
				if ch == 1 && fq == 2 {
					row[fq] += 5 * c
				}
			}
			chmap[ch] = row
		}
		raw[d] = [][][]float64{chmap}
	}
	gdata, err := NewGroupData(raw)
	if err != nil {
		t.Fatalf("NewGroupData failed: %v", err)
	}
	design := buildDesign(t, covariate)

	tmap, err := FitGroup(design, gdata, 1, 0)
	if err != nil {
		t.Fatalf("FitGroup failed: %v", err)
	}
	if len(tmap.Values) != nCh || len(tmap.Values[0]) != nFq {
		t.Fatalf("Expected %dx%d t-map", nCh, nFq)
	}

	target := math.Abs(tmap.Values[1][2])
	for ch := 0; ch < nCh; ch++ {
		for fq := 0; fq < nFq; fq++ {
			if ch == 1 && fq == 2 {
				continue
			}
			if v := math.Abs(tmap.Values[ch][fq]); !math.IsNaN(v) && v >= target {
				t.Errorf("Cell (%d,%d) |t|=%g should be below the planted cell's %g", ch, fq, v, target)
			}
		}
	}
	if tmap.MaxAbs() != target {
		t.Errorf("Expected MaxAbs %g, got %g", target, tmap.MaxAbs())
	}

	if _, err := FitGroup(design, gdata, 5, 0); err == nil {
		t.Error("Expected error for contrast index out of range")
	}
	if _, err := FitGroup(design, gdata, 1, 3); err == nil {
		t.Error("Expected error for first-level contrast out of range")
	}
}
