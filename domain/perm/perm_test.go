package perm

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"goephys/domain/core"
	"goephys/domain/glm"
)

// TestRunStateTransitions tests the lifecycle state machine
func TestRunStateTransitions(t *testing.T) {
	if _, err := StateConfigured.Transition(StateRunning); err != nil {
		t.Errorf("CONFIGURED -> RUNNING should be legal: %v", err)
	}
	if _, err := StateRunning.Transition(StateComplete); err != nil {
		t.Errorf("RUNNING -> COMPLETE should be legal: %v", err)
	}
	if _, err := StateConfigured.Transition(StateComplete); !errors.Is(err, ErrInvalidTransition) {
		t.Error("CONFIGURED -> COMPLETE should be illegal")
	}
	if _, err := StateComplete.Transition(StateRunning); !errors.Is(err, ErrInvalidTransition) {
		t.Error("COMPLETE -> RUNNING should be illegal")
	}
}

// TestNullDistributionLifecycle tests that appends and thresholds respect
// the state machine
func TestNullDistributionLifecycle(t *testing.T) {
	n := NewNullDistribution()
	if err := n.Append(1.0); err == nil {
		t.Error("Expected append before Start to fail")
	}
	if _, err := n.GetThreshold(5); err == nil {
		t.Error("Expected threshold before Complete to fail")
	}
	if err := n.Complete(); err == nil {
		t.Error("Expected Complete on an empty distribution to fail")
	}

	if err := n.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, v := range []float64{3.0, 1.0, 2.0} {
		if err := n.Append(v); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := n.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	nulls := n.Nulls()
	if len(nulls) != 3 || nulls[0] != 3.0 || nulls[1] != 1.0 || nulls[2] != 2.0 {
		t.Errorf("Expected insertion order [3 1 2], got %v", nulls)
	}
	if n.Observed() != 3.0 {
		t.Errorf("Expected observed 3.0, got %g", n.Observed())
	}
}

// TestGetThresholdSingleDraw tests the N=1 contract: the threshold at the
// 100th level is exactly the observed statistic
func TestGetThresholdSingleDraw(t *testing.T) {
	n := NewNullDistribution()
	if err := n.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := n.Append(4.2); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := n.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if n.Len() != 1 {
		t.Fatalf("Expected 1 null, got %d", n.Len())
	}
	threshold, err := n.GetThreshold(100)
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if threshold != 4.2 {
		t.Errorf("Expected threshold 4.2, got %g", threshold)
	}
}

// TestGetThresholdInterpolation tests the linear-interpolated percentile on
// absolute values
func TestGetThresholdInterpolation(t *testing.T) {
	n := NewNullDistribution()
	if err := n.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Absolute values sort to [1 2 3 4 5]
	for _, v := range []float64{3, -1, 5, -2, 4} {
		if err := n.Append(v); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := n.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// 5% level -> 95th percentile -> position 3.8 -> 4.8
	threshold, err := n.GetThreshold(5)
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if math.Abs(threshold-4.8) > 1e-12 {
		t.Errorf("Expected threshold 4.8, got %g", threshold)
	}

	// 50th percentile is the median
	median, err := n.Percentile(50)
	if err != nil {
		t.Fatalf("Percentile failed: %v", err)
	}
	if median != 3 {
		t.Errorf("Expected median 3, got %g", median)
	}

	if _, err := n.GetThreshold(0); err == nil {
		t.Error("Expected error for level 0")
	}
	if _, err := n.GetThreshold(101); err == nil {
		t.Error("Expected error for level above 100")
	}
}

// TestSchemeValidation tests the closed keyword sets
func TestSchemeValidation(t *testing.T) {
	if _, err := ParseScheme("bootstrap"); !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("Expected ErrUnknownScheme, got %v", err)
	}
	if _, err := ParseStatistic("min-t"); !errors.Is(err, ErrUnknownStatistic) {
		t.Errorf("Expected ErrUnknownStatistic, got %v", err)
	}
	if _, err := ParseScheme("sign-flip"); err != nil {
		t.Errorf("Expected sign-flip to parse, got %v", err)
	}
	if _, err := ParseStatistic("cluster-mass"); err != nil {
		t.Errorf("Expected cluster-mass to parse, got %v", err)
	}
}

func twoColumnDesign(t *testing.T) *glm.Design {
	t.Helper()
	cfg, err := glm.NewDesignConfig(6)
	if err != nil {
		t.Fatalf("NewDesignConfig failed: %v", err)
	}
	if err := cfg.AddRegressor(glm.Regressor{Name: "Mean", Type: glm.RegressorConstant}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	if err := cfg.AddRegressor(glm.Regressor{Name: "Cov", Type: glm.RegressorParametric, Values: []float64{1, 2, 3, 4, 5, 6}}); err != nil {
		t.Fatalf("AddRegressor failed: %v", err)
	}
	cfg.AddSimpleContrasts()
	design, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return design
}

// TestSignFlipScheme tests that only the tested column changes and only by
// sign
func TestSignFlipScheme(t *testing.T) {
	design := twoColumnDesign(t)
	rng := rand.New(rand.NewSource(7))

	permuted, err := SchemeSignFlip.Permute(design, 1, rng)
	if err != nil {
		t.Fatalf("Permute failed: %v", err)
	}

	flips := 0
	for i := 0; i < 6; i++ {
		if permuted.Matrix.At(i, 0) != 1 {
			t.Errorf("Row %d: constant column modified", i)
		}
		orig := design.Matrix.At(i, 1)
		got := permuted.Matrix.At(i, 1)
		if got != orig && got != -orig {
			t.Errorf("Row %d: expected +-%g, got %g", i, orig, got)
		}
		if got == -orig {
			flips++
		}
	}
	// With seed 7 some rows flip; all-or-nothing would mean a broken rng wire
	if flips == 0 || flips == 6 {
		t.Logf("sign flips: %d of 6 (legal but uninformative draw)", flips)
	}
	if design.Matrix.At(0, 1) != 1 {
		t.Error("Expected original design untouched")
	}

	if _, err := SchemeSignFlip.Permute(design, 9, rng); err == nil {
		t.Error("Expected error for column out of range")
	}
}

// TestRowShuffleScheme tests that rows are permuted together and preserved
// as a multiset
func TestRowShuffleScheme(t *testing.T) {
	design := twoColumnDesign(t)
	rng := rand.New(rand.NewSource(11))

	permuted, err := SchemeRowShuffle.Permute(design, 0, rng)
	if err != nil {
		t.Fatalf("Permute failed: %v", err)
	}

	seen := make(map[float64]bool)
	for i := 0; i < 6; i++ {
		if permuted.Matrix.At(i, 0) != 1 {
			t.Errorf("Row %d: constant column corrupted", i)
		}
		seen[permuted.Matrix.At(i, 1)] = true
	}
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		if !seen[v] {
			t.Errorf("Covariate value %g lost in shuffle", v)
		}
	}
}

// TestStatisticMaxT tests the max-statistic summary
func TestStatisticMaxT(t *testing.T) {
	tmap := &glm.TMap{Values: [][]float64{{1, -7, 2}, {3, 0.5, -2}}}
	stat, err := StatMaxT.Summarize(tmap, 0)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if stat != 7 {
		t.Errorf("Expected max |t| 7, got %g", stat)
	}
}

// TestClusterMass tests 4-connected component extraction on a planted block
func TestClusterMass(t *testing.T) {
	values := [][]float64{
		{0, 0, 0, 0, 0},
		{0, 3, 4, 0, 0},
		{0, 5, 0, 0, -6},
		{0, 0, 0, 0, 0},
	}
	tmap := &glm.TMap{Values: values}

	// Threshold 2: the L-shaped block {3,4,5} masses 12, the lone -6 cell
	// masses 6; diagonal adjacency must not merge them
	stat, err := StatClusterMass.Summarize(tmap, 2)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if stat != 12 {
		t.Errorf("Expected max cluster mass 12, got %g", stat)
	}

	// Threshold 4.5: only 5 and -6 survive, separately
	stat, err = StatClusterMass.Summarize(tmap, 4.5)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if stat != 6 {
		t.Errorf("Expected max cluster mass 6, got %g", stat)
	}

	// Nothing suprathreshold yields zero
	stat, err = StatClusterMass.Summarize(tmap, 100)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if stat != 0 {
		t.Errorf("Expected zero mass, got %g", stat)
	}

	if _, err := StatClusterMass.Summarize(tmap, 0); err == nil {
		t.Error("Expected error for non-positive cluster threshold")
	}
}

// TestManifestFingerprint tests that equal configurations fingerprint
// equally and differing seeds do not
func TestManifestFingerprint(t *testing.T) {
	a := NewManifest(core.RunID("run-a"), 42, 100, 4, SchemeSignFlip, StatMaxT, 1, 0, 0)
	b := NewManifest(core.RunID("run-b"), 42, 100, 8, SchemeSignFlip, StatMaxT, 1, 0, 0)
	if a.Fingerprint != b.Fingerprint {
		// Workers and run ID are bookkeeping, not configuration
		t.Error("Expected fingerprints to match across worker counts and run IDs")
	}

	c := NewManifest(core.RunID("run-c"), 43, 100, 4, SchemeSignFlip, StatMaxT, 1, 0, 0)
	if a.Fingerprint == c.Fingerprint {
		t.Error("Expected differing seeds to fingerprint differently")
	}

	bad := NewManifest(core.RunID("run-d"), 42, 0, 4, SchemeSignFlip, StatMaxT, 1, 0, 0)
	if err := bad.Validate(); err == nil {
		t.Error("Expected validation error for zero permutations")
	}
	cluster := NewManifest(core.RunID("run-e"), 42, 10, 4, SchemeSignFlip, StatClusterMass, 1, 0, 0)
	if err := cluster.Validate(); err == nil {
		t.Error("Expected validation error for cluster run without threshold")
	}
}
