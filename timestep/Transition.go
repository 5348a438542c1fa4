package timestep

import "gonum.org/v1/gonum/mat"

// Transition packages together a single environmental transition:
// taking Action in State yielded Reward and NextState. The Discount
// field holds the amount by which values of NextState are discounted
// when computing learning targets. Terminal transitions have a
// Discount of 0 so that no future value flows through them.
//
// A Transition is immutable once created.
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	Discount  float64
	NextState mat.Vector
	Terminal  bool
}

// NewTransition packages an action and the two timesteps it links into
// a Transition. The reward and discount are taken from the resulting
// timestep next.
func NewTransition(step TimeStep, action int, next TimeStep) Transition {
	discount := next.Discount
	if next.Last() {
		discount = 0.0
	}

	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    next.Reward,
		Discount:  discount,
		NextState: next.Observation,
		Terminal:  next.Last(),
	}
}
