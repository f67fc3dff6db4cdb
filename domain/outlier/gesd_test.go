package outlier

import (
	"math"
	"testing"
)

// baseSample is a well-behaved near-Gaussian sample with no outliers
var baseSample = []float64{
	0.5, -0.3, 1.1, -0.8, 0.2, -1.2, 0.9, 0.1, -0.5, 1.4,
	-0.9, 0.7, -0.2, 0.3, -1.1, 0.8, -0.6, 1.0,
}

func cloneWith(extra ...float64) []float64 {
	out := make([]float64, 0, len(baseSample)+len(extra))
	out = append(out, baseSample...)
	out = append(out, extra...)
	return out
}

// TestDetectParamValidation tests fail-fast parameter checks
func TestDetectParamValidation(t *testing.T) {
	x := cloneWith()

	if _, _, err := Detect(x, Params{Alpha: 0, MaxFraction: 0.1, Side: SideBoth}); err == nil {
		t.Error("Expected error for alpha=0")
	}
	if _, _, err := Detect(x, Params{Alpha: 1.5, MaxFraction: 0.1, Side: SideBoth}); err == nil {
		t.Error("Expected error for alpha>1")
	}
	if _, _, err := Detect(x, Params{Alpha: 0.05, MaxFraction: 0, Side: SideBoth}); err == nil {
		t.Error("Expected error for max fraction 0")
	}
	if _, _, err := Detect(x, Params{Alpha: 0.05, MaxFraction: 0.1, Side: Side(3)}); err == nil {
		t.Error("Expected error for invalid side")
	}
}

// TestDetectCleanSample tests that a well-behaved sample is left alone
func TestDetectCleanSample(t *testing.T) {
	mask, clean, err := Detect(cloneWith(), DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for i, bad := range mask {
		if bad {
			t.Errorf("Sample %d flagged in clean data", i)
		}
	}
	if len(clean) != len(baseSample) {
		t.Errorf("Expected %d clean samples, got %d", len(baseSample), len(clean))
	}
}

// TestDetectTenSigmaPoint tests that a gross outlier is always flagged,
// two-sided and upper-sided
func TestDetectTenSigmaPoint(t *testing.T) {
	x := cloneWith(10.0, 0.4, -0.7)
	outlierIdx := len(baseSample)

	for _, side := range []Side{SideBoth, SideUpper} {
		params := DefaultParams()
		params.Side = side
		mask, clean, err := Detect(x, params)
		if err != nil {
			t.Fatalf("Detect failed for side %d: %v", side, err)
		}
		if !mask[outlierIdx] {
			t.Errorf("Side %d: +10 sigma point not flagged", side)
		}
		for i, bad := range mask {
			if bad && i != outlierIdx {
				t.Errorf("Side %d: sample %d wrongly flagged", side, i)
			}
		}
		if len(clean) != len(x)-1 {
			t.Errorf("Side %d: expected %d clean samples, got %d", side, len(x)-1, len(clean))
		}
	}
}

// TestDetectStoppingRule tests the Rosner prefix rule with a masking pair:
// the two close outliers inflate the first round's spread so round 0 stays
// under its critical value while round 1 exceeds it. Both points must be
// flagged because removals up to the largest exceeding round count.
func TestDetectStoppingRule(t *testing.T) {
	x := cloneWith(3.8, 3.9)

	mask, _, err := Detect(x, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !mask[18] || !mask[19] {
		t.Errorf("Masking pair not fully flagged: mask[18]=%v mask[19]=%v", mask[18], mask[19])
	}
	for i := 0; i < 18; i++ {
		if mask[i] {
			t.Errorf("Sample %d wrongly flagged", i)
		}
	}
}

// TestDetectLowerSide tests sidedness: a low outlier is only caught by the
// lower-sided test
func TestDetectLowerSide(t *testing.T) {
	x := cloneWith(-6.0, 0.4)

	params := DefaultParams()
	params.Side = SideLower
	mask, _, err := Detect(x, params)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !mask[18] {
		t.Error("Low outlier not flagged by lower-sided test")
	}

	params.Side = SideUpper
	mask, _, err = Detect(x, params)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if mask[18] {
		t.Error("Low outlier flagged by upper-sided test")
	}
}

// TestDetectNaNRemap tests that detection runs on the finite subset and that
// flagged positions are translated back to original indices
func TestDetectNaNRemap(t *testing.T) {
	x := []float64{
		0.5, math.NaN(), -0.3, 1.1, -0.8, 0.2, -1.2, 0.9, 0.1, -0.5,
		1.4, -0.9, 0.7, math.NaN(), -0.2, 0.3, -1.1, 0.8, -0.6, 1.0, 7.5,
	}

	mask, clean, err := Detect(x, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !mask[20] {
		t.Error("Outlier after NaN positions not flagged at original index")
	}
	if mask[1] || mask[13] {
		t.Error("NaN positions must not be flagged")
	}
	for i := 0; i < 20; i++ {
		if i != 1 && i != 13 && mask[i] {
			t.Errorf("Sample %d wrongly flagged", i)
		}
	}
	// Non-flagged positions survive, NaNs included
	if len(clean) != len(x)-1 {
		t.Errorf("Expected %d surviving samples, got %d", len(x)-1, len(clean))
	}
	nanCount := 0
	for _, v := range clean {
		if math.IsNaN(v) {
			nanCount++
		}
	}
	if nanCount != 2 {
		t.Errorf("Expected 2 NaN values in surviving samples, got %d", nanCount)
	}
}

// TestDetectFalsePositiveRate tests that clean Gaussian draws are flagged at
// no more than the nominal rate
func TestDetectFalsePositiveRate(t *testing.T) {
	resetRand()
	total, flagged := 0, 0
	for trial := 0; trial < 5; trial++ {
		x := make([]float64, 60)
		for i := range x {
			x[i] = randNorm()
		}
		mask, _, err := Detect(x, DefaultParams())
		if err != nil {
			t.Fatalf("Detect failed on trial %d: %v", trial, err)
		}
		for _, bad := range mask {
			total++
			if bad {
				flagged++
			}
		}
	}
	rate := float64(flagged) / float64(total)
	t.Logf("false-positive rate: %.4f (%d/%d)", rate, flagged, total)
	if rate > 0.05 {
		t.Errorf("False-positive rate %.4f exceeds nominal 0.05", rate)
	}
}

// TestDetectSmallSampleDegrades tests that round counts beyond the feasible
// degrees of freedom degrade to no-ops instead of failing
func TestDetectSmallSampleDegrades(t *testing.T) {
	x := []float64{1.0, 2.0, 3.0}
	mask, _, err := Detect(x, Params{Alpha: 0.05, MaxFraction: 1.0, Side: SideBoth})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(mask) != 3 {
		t.Fatalf("Expected mask of length 3, got %d", len(mask))
	}
}

// TestDetectEmptyInput tests the zero-length edge case
func TestDetectEmptyInput(t *testing.T) {
	mask, clean, err := Detect(nil, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(mask) != 0 || len(clean) != 0 {
		t.Errorf("Expected empty outputs, got mask=%d clean=%d", len(mask), len(clean))
	}
}

var randState = 12345.0

func resetRand() { randState = 12345.0 }

func randNorm() float64 {
	// Update state with linear congruential generator
	randState = math.Mod(randState*1103515245+12345, 2147483648)
	u1 := randState / 2147483648.0

	randState = math.Mod(randState*1103515245+12345, 2147483648)
	u2 := randState / 2147483648.0

	// Box-Muller transform
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
