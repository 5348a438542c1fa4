// Package policy implements action-selection policies over neural
// network function approximators
package policy

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/SaifPunjwani/Reasoning-Research/agent"
	"github.com/SaifPunjwani/Reasoning-Research/network"
)

// EGreedyDueling implements an epsilon greedy policy over a dueling
// network. Given an environment with N actions, the network produces N
// outputs, each predicting the value of a distinct action.
//
// The policy does not own a VM. An external VM should run the
// network's computational graph before an action is selected:
//
//	Set up VM with the network's graph:	vm = NewTapeMachine(net.Graph())
//	Set input to the policy's network:	net.SetInput(obs)
//	Predict the action values:		vm.RunAll()
//	Select an action:			action, _ = policy.SelectAction()
type EGreedyDueling struct {
	net     network.NeuralNet
	epsilon float64

	rng  *rand.Rand
	seed int64
}

// NewEGreedyDueling creates and returns a new epsilon greedy policy
// over net. The seed determines the stream of randomness used for
// exploratory action draws.
func NewEGreedyDueling(epsilon float64, net network.NeuralNet,
	seed int64) (agent.EGreedyNNPolicy, error) {
	if net.BatchSize() != 1 {
		return nil, fmt.Errorf("newegreedydueling: action selection "+
			"requires a batch size of 1 \n\thave(%v)", net.BatchSize())
	}

	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &EGreedyDueling{
		net:     net,
		epsilon: epsilon,
		rng:     rng,
		seed:    seed,
	}, nil
}

// Network returns the neural network function approximator that the
// policy uses
func (e *EGreedyDueling) Network() network.NeuralNet {
	return e.net
}

// SetEpsilon sets the value for epsilon in the epsilon greedy policy
func (e *EGreedyDueling) SetEpsilon(epsilon float64) {
	e.epsilon = epsilon
}

// Epsilon gets the value of epsilon for the policy
func (e *EGreedyDueling) Epsilon() float64 {
	return e.epsilon
}

// SelectAction selects an action according to the action values
// generated from the last run of the computational graph. With
// probability epsilon a uniformly random action is returned; otherwise
// the first action of maximum value is returned, with its approximated
// value.
func (e *EGreedyDueling) SelectAction() (*mat.VecDense, float64) {
	output := e.net.Output()
	if output[0] == nil {
		panic("selectaction: vm must be run before selecting an action")
	}

	actionValues := output[0].Data().([]float64)

	if probability := e.rng.Float64(); probability < e.epsilon {
		action := e.rng.Intn(e.net.Outputs())
		return mat.NewVecDense(1, []float64{float64(action)}),
			actionValues[action]
	}

	action := floats.MaxIdx(actionValues)
	return mat.NewVecDense(1, []float64{float64(action)}),
		actionValues[action]
}
