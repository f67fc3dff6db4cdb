package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG sub-stream for one stage of a run.
	// Equal (runID, stage, key, baseSeed) always yields the same stream, so
	// permutation draws are reproducible regardless of worker scheduling.
	Stream(ctx context.Context, runID, stage, key string, baseSeed int64) (*rand.Rand, error)

	// ValidateSeed ensures the seed produces expected deterministic results
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
