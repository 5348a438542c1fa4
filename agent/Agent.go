// Package agent defines the interfaces satisfied by learning agents
package agent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/SaifPunjwani/Reasoning-Research/network"
	"github.com/SaifPunjwani/Reasoning-Research/timestep"
)

// Agent determines the implementation details of an agent or
// algorithm.
//
// An Agent is composed of a Learner, which learns weights, and a
// Policy which chooses actions in each state. The Policy chooses which
// actions are taken, and the Learner uses these actions to update the
// Policy.
type Agent interface {
	Learner
	Policy
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner
	Step() error

	// Observe records that an action led to some timestep
	Observe(action mat.Vector, nextStep timestep.TimeStep) error

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(timestep.TimeStep) error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode() error
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. For a given agent, the
// Policy and Learner should share weights so that any changes the
// Learner makes are reflected in the actions the Policy chooses.
type Policy interface {
	SelectAction(t timestep.TimeStep) *mat.VecDense
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// EGreedyNNPolicy implements an epsilon greedy policy using neural
// network function approximation. The network predicts one value per
// action; an external VM runs the network's graph before an action is
// selected.
type EGreedyNNPolicy interface {
	// Network returns the function approximator backing the policy
	Network() network.NeuralNet

	// SelectAction selects an action according to the action values
	// generated by the last run of the network's computational graph.
	// It returns the selected action and its approximated value.
	SelectAction() (*mat.VecDense, float64)

	SetEpsilon(float64)
	Epsilon() float64
}
