// Package perm holds the domain model of a permutation significance test:
// the run lifecycle, the null distribution with its percentile thresholds,
// the design-resampling schemes and the summary statistics.
package perm

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition indicates a run lifecycle step out of order
var ErrInvalidTransition = errors.New("invalid run state transition")

// RunState tracks the permutation run lifecycle
type RunState string

const (
	// StateConfigured means the run is built but not started
	StateConfigured RunState = "CONFIGURED"
	// StateRunning means draws are in flight
	StateRunning RunState = "RUNNING"
	// StateComplete means the null distribution is final
	StateComplete RunState = "COMPLETE"
)

// CanTransition reports whether moving to the target state is legal.
// The only legal path is CONFIGURED -> RUNNING -> COMPLETE.
func (s RunState) CanTransition(to RunState) bool {
	switch s {
	case StateConfigured:
		return to == StateRunning
	case StateRunning:
		return to == StateComplete
	}
	return false
}

// Transition validates and returns the next state
func (s RunState) Transition(to RunState) (RunState, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}
