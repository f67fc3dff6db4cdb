// Package permutation implements the permutation-engine port with a
// coarse-grained worker pool: one task per draw, message-passing results,
// no shared mutable state until the final merge.
package permutation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"goephys/domain/glm"
	"goephys/domain/perm"
	"goephys/internal"
	"goephys/ports"
)

// Engine runs permutation significance tests over a fixed worker pool
type Engine struct {
	rng    ports.RNGPort
	logger *internal.Logger
}

// NewEngine wires the engine with its RNG port
func NewEngine(rng ports.RNGPort) *Engine {
	return &Engine{rng: rng, logger: internal.DefaultLogger.With("permutation")}
}

// drawResult carries one draw's statistic back to the merge step
type drawResult struct {
	draw    int
	stat    float64
	skipped bool
	err     error
}

// Run executes the permutation loop. Draw 0 is the true unpermuted fit and
// always lands first in the null distribution; draws 1..N-1 permute the
// design per the manifest scheme, refit against the unchanged data and
// summarize. Degenerate draws are warned about and skipped; the run fails
// only when the true fit fails or every draw degenerates.
func (e *Engine) Run(ctx context.Context, req ports.PermutationRequest) (*ports.PermutationResult, error) {
	start := time.Now()
	m := req.Manifest
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if req.Design == nil || req.Data == nil {
		return nil, fmt.Errorf("permutation run needs a design and group data")
	}
	if m.GroupContrast < 0 || m.GroupContrast >= len(req.Design.Contrasts) {
		return nil, fmt.Errorf("group contrast %d out of %d contrasts", m.GroupContrast, len(req.Design.Contrasts))
	}

	// The tested regressor for sign-flipping is the column with the
	// largest weight in the selected group contrast
	column := testedColumn(req.Design.Contrasts[m.GroupContrast])

	// The true fit must succeed; without it the observed statistic and
	// its thresholds are meaningless
	observed, err := glm.FitGroup(req.Design, req.Data, m.GroupContrast, m.FLContrast)
	if err != nil {
		return nil, fmt.Errorf("unpermuted fit failed: %w", err)
	}
	trueStat, err := m.Statistic.Summarize(observed, m.ClusterThreshold)
	if err != nil {
		return nil, err
	}

	nulls := perm.NewNullDistribution()
	if err := nulls.Start(); err != nil {
		return nil, err
	}
	if err := nulls.Append(trueStat); err != nil {
		return nil, err
	}

	e.logger.Info("Run %s: %d permutations (%s, %s) over %d workers",
		m.RunID, m.NPerms, m.Scheme, m.Statistic, m.Workers)

	results := e.runDraws(ctx, req, column, m.NPerms-1)

	// Merge in draw order so the distribution is deterministic given the
	// seed, independent of worker interleaving
	skipped := 0
	for draw := 1; draw < m.NPerms; draw++ {
		r := results[draw]
		if r.err != nil {
			if !errors.Is(r.err, context.Canceled) {
				e.logger.Warn("Run %s: draw %d skipped: %v", m.RunID, draw, r.err)
			}
			skipped++
			continue
		}
		if err := nulls.Append(r.stat); err != nil {
			return nil, err
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := nulls.Complete(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		e.logger.Warn("Run %s: %d/%d draws skipped", m.RunID, skipped, m.NPerms-1)
	}

	return &ports.PermutationResult{
		Manifest:  m,
		Observed:  observed,
		Nulls:     nulls,
		Skipped:   skipped,
		RuntimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// runDraws fans the permuted draws out over the worker pool and collects
// them indexed by draw number. Draw indices start at 1; index 0 stays nil
// for the true statistic handled by the caller.
func (e *Engine) runDraws(ctx context.Context, req ports.PermutationRequest, column, nDraws int) []drawResult {
	m := req.Manifest
	results := make([]drawResult, nDraws+1)

	jobs := make(chan int)
	out := make(chan drawResult)

	var wg sync.WaitGroup
	workers := m.Workers
	if workers > nDraws && nDraws > 0 {
		workers = nDraws
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for draw := range jobs {
				out <- e.oneDraw(ctx, req, column, draw)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for draw := 1; draw <= nDraws; draw++ {
			select {
			case jobs <- draw:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	for r := range out {
		results[r.draw] = r
	}
	// Draws never scheduled because of cancellation report the context error
	for draw := 1; draw <= nDraws; draw++ {
		if results[draw].draw == 0 && results[draw].err == nil {
			results[draw] = drawResult{draw: draw, err: ctx.Err(), skipped: true}
		}
	}
	return results
}

// oneDraw is the unit of parallelism: derive the draw's sub-stream,
// permute, refit, summarize
func (e *Engine) oneDraw(ctx context.Context, req ports.PermutationRequest, column, draw int) drawResult {
	if ctx.Err() != nil {
		return drawResult{draw: draw, err: ctx.Err(), skipped: true}
	}
	m := req.Manifest

	rng, err := e.rng.Stream(ctx, m.RunID.String(), "permutation", strconv.Itoa(draw), m.Seed)
	if err != nil {
		return drawResult{draw: draw, err: err, skipped: true}
	}

	permuted, err := m.Scheme.Permute(req.Design, column, rng)
	if err != nil {
		return drawResult{draw: draw, err: err, skipped: true}
	}

	tmap, err := glm.FitGroup(permuted, req.Data, m.GroupContrast, m.FLContrast)
	if err != nil {
		return drawResult{draw: draw, err: err, skipped: true}
	}
	stat, err := m.Statistic.Summarize(tmap, m.ClusterThreshold)
	if err != nil {
		return drawResult{draw: draw, err: err, skipped: true}
	}
	return drawResult{draw: draw, stat: stat}
}

// testedColumn picks the regressor a sign-flip null applies to: the column
// with the largest absolute contrast weight
func testedColumn(contrast glm.Contrast) int {
	best := 0
	bestW := math.Inf(-1)
	for j, w := range contrast.Values {
		if a := math.Abs(w); a > bestW {
			best = j
			bestW = a
		}
	}
	return best
}
