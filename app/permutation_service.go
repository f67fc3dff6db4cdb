package app

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"goephys/domain/core"
	"goephys/domain/glm"
	"goephys/domain/perm"
	"goephys/internal"
	"goephys/internal/errors"
	"goephys/ports"
)

// PermutationService runs permutation sweeps through the engine port and
// persists the results
type PermutationService struct {
	engine     ports.PermutationEnginePort
	repository ports.RunRepositoryPort
	logger     *internal.Logger
	// sweepSem bounds how many contrast runs execute at once; each run
	// already parallelizes internally
	sweepSem *semaphore.Weighted
}

// ContrastPair selects one (group contrast, first-level contrast) run
type ContrastPair struct {
	GroupContrast int
	FLContrast    int
}

// SweepRequest defines a permutation sweep over one or more contrast pairs
type SweepRequest struct {
	Design *glm.Design
	Data   *glm.GroupData
	Pairs  []ContrastPair

	NPerms           int
	Workers          int
	Seed             int64
	Scheme           perm.Scheme
	Statistic        perm.Statistic
	ClusterThreshold float64
	// Level is the significance level in percent for the stored threshold
	Level float64

	Persist bool
}

// RunSummary is the caller-facing digest of one completed run
type RunSummary struct {
	RunID       core.RunID      `json:"run_id"`
	Pair        ContrastPair    `json:"pair"`
	Observed    float64         `json:"observed"`
	Threshold   float64         `json:"threshold"`
	Significant bool            `json:"significant"`
	NullCount   int             `json:"null_count"`
	Skipped     int             `json:"skipped"`
	Fingerprint core.ConfigHash `json:"fingerprint"`
	RuntimeMs   int64           `json:"runtime_ms"`
}

// NewPermutationService creates a permutation service. maxConcurrentSweeps
// bounds parallel contrast runs; the repository may be nil.
func NewPermutationService(engine ports.PermutationEnginePort, repository ports.RunRepositoryPort, maxConcurrentSweeps int64) *PermutationService {
	if maxConcurrentSweeps < 1 {
		maxConcurrentSweeps = 1
	}
	return &PermutationService{
		engine:     engine,
		repository: repository,
		logger:     internal.DefaultLogger.With("permutation"),
		sweepSem:   semaphore.NewWeighted(maxConcurrentSweeps),
	}
}

// RunSweep executes one permutation run per contrast pair, bounded by the
// sweep semaphore, and returns summaries in pair order. A failed pair fails
// the sweep; the remaining pairs are still awaited.
func (s *PermutationService) RunSweep(ctx context.Context, req SweepRequest) ([]RunSummary, error) {
	if req.Design == nil || req.Data == nil {
		return nil, errors.InvalidInput("sweep request needs a design and group data")
	}
	if len(req.Pairs) == 0 {
		return nil, errors.InvalidInput("sweep request needs at least one contrast pair")
	}
	if req.Level <= 0 || req.Level > 100 {
		return nil, errors.ConfigInvalid("significance level must be in (0, 100]")
	}

	summaries := make([]RunSummary, len(req.Pairs))
	errs := make([]error, len(req.Pairs))
	var wg sync.WaitGroup
	for i, pair := range req.Pairs {
		if err := s.sweepSem.Acquire(ctx, 1); err != nil {
			return nil, errors.Wrap(err, "sweep cancelled while waiting for capacity")
		}
		wg.Add(1)
		go func(i int, pair ContrastPair) {
			defer wg.Done()
			defer s.sweepSem.Release(1)
			summary, err := s.runOne(ctx, req, pair)
			if err != nil {
				errs[i] = err
				return
			}
			summaries[i] = *summary
		}(i, pair)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (s *PermutationService) runOne(ctx context.Context, req SweepRequest, pair ContrastPair) (*RunSummary, error) {
	runID := core.RunID(core.NewID())
	manifest := perm.NewManifest(runID, req.Seed, req.NPerms, req.Workers,
		req.Scheme, req.Statistic, pair.GroupContrast, pair.FLContrast, req.ClusterThreshold)

	result, err := s.engine.Run(ctx, ports.PermutationRequest{
		Design:   req.Design,
		Data:     req.Data,
		Manifest: manifest,
	})
	if err != nil {
		return nil, errors.ComputeError("permutation run failed", err)
	}

	threshold, err := result.Nulls.GetThreshold(req.Level)
	if err != nil {
		return nil, errors.ComputeError("threshold computation failed", err)
	}
	observed := result.Nulls.Observed()

	summary := &RunSummary{
		RunID:       runID,
		Pair:        pair,
		Observed:    observed,
		Threshold:   threshold,
		Significant: observed > threshold,
		NullCount:   result.Nulls.Len(),
		Skipped:     result.Skipped,
		Fingerprint: manifest.Fingerprint,
		RuntimeMs:   result.RuntimeMs,
	}
	s.logger.Info("Run %s: contrast (%d, %d) observed %.4f threshold %.4f (%.0f%%)",
		runID, pair.GroupContrast, pair.FLContrast, observed, threshold, req.Level)

	if req.Persist {
		if s.repository == nil {
			s.logger.Info("No repository configured, skipping run persistence")
			return summary, nil
		}
		record := &perm.RunRecord{
			Manifest:  manifest,
			Observed:  observed,
			Nulls:     result.Nulls.Nulls(),
			Threshold: threshold,
			Level:     req.Level,
			Skipped:   result.Skipped,
			RuntimeMs: result.RuntimeMs,
			CreatedAt: core.Now(),
		}
		if err := s.repository.SaveRun(ctx, record); err != nil {
			return nil, errors.WithCode(errors.CodeStorageError, err)
		}
	}
	return summary, nil
}
