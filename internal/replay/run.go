package replay

import (
	"github.com/saaga0h/motion-gate/internal/diag"
	"github.com/saaga0h/motion-gate/internal/motion"
)

// Transition marks the sample at which the motion state flipped
type Transition struct {
	Index int          `json:"index"`
	State motion.State `json:"state"`
}

// Result holds every state produced by a replay
type Result struct {
	States      []motion.State
	Transitions []Transition
}

// Run feeds samples through a fresh estimator
func Run(cfg motion.Config, samples []Sample, sink diag.Sink) *Result {
	estimator := motion.NewEstimator(cfg, sink)

	result := &Result{States: make([]motion.State, 0, len(samples))}
	moving := false
	for i, s := range samples {
		state := estimator.ProcessSample(s.X, s.Y, s.Z, s.Timestamp)
		result.States = append(result.States, state)

		if state.IsMoving != moving {
			moving = state.IsMoving
			result.Transitions = append(result.Transitions, Transition{Index: i, State: state})
		}
	}

	return result
}
