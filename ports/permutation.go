package ports

import (
	"context"

	"goephys/domain/glm"
	"goephys/domain/perm"
)

// PermutationRequest carries everything one permutation run needs: the
// group design, the stacked first-level data and the run manifest. The
// design and data are read-only during the run.
type PermutationRequest struct {
	Design   *glm.Design
	Data     *glm.GroupData
	Manifest perm.Manifest
}

// PermutationResult is the outcome of a completed run
type PermutationResult struct {
	Manifest perm.Manifest
	// Observed is the unpermuted t-map the thresholds apply to
	Observed *glm.TMap
	// Nulls is the completed null distribution, observed statistic first
	Nulls *perm.NullDistribution
	// Skipped counts degenerate draws that were warned about and dropped
	Skipped   int
	RuntimeMs int64
}

// PermutationEnginePort runs permutation significance tests
type PermutationEnginePort interface {
	// Run executes the full permutation loop described by the manifest.
	// It fails only when the true fit fails or no draw succeeds; single
	// degenerate draws are skipped with a warning.
	Run(ctx context.Context, req PermutationRequest) (*PermutationResult, error)
}
