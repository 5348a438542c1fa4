// Package deepq implements a prioritized, hindsight-augmented deep
// Q-learning agent with a dueling reasoning network
package deepq

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/SaifPunjwani/Reasoning-Research/agent"
	"github.com/SaifPunjwani/Reasoning-Research/agent/policy"
	env "github.com/SaifPunjwani/Reasoning-Research/environment"
	"github.com/SaifPunjwani/Reasoning-Research/expreplay"
	"github.com/SaifPunjwani/Reasoning-Research/network"
	"github.com/SaifPunjwani/Reasoning-Research/spec"
	ts "github.com/SaifPunjwani/Reasoning-Research/timestep"
)

// DeepQ implements the deep Q-learning algorithm with a dueling
// architecture, double Q-learning targets, prioritized hindsight
// experience replay, and an auxiliary next-observation prediction
// loss. The agent maintains three networks: a batch-1 behaviour
// network for action selection through an ε-greedy policy, a training
// network updated on sampled minibatches, and a target network that is
// hard-synchronized with the training network on an episodic schedule.
type DeepQ struct {
	behaviourPolicy agent.EGreedyNNPolicy
	behaviourVM     G.VM

	trainNet network.AuxPredictor
	trainVM  G.VM
	solver   G.Solver
	tdErrors *G.Value // Per-sample TD errors, read for priority updates

	targetNet network.NeuralNet
	targetVM  G.VM

	// Input nodes to the training graph, filled on each Step
	selectedActions       *G.Node
	nextStateActionValues *G.Node
	rewards               *G.Node
	discounts             *G.Node
	isWeights             *G.Node
	nextStateObs          *G.Node

	replay     *expreplay.Prioritized
	lastStep   ts.TimeStep
	batchSize  int
	numActions int

	epsilonMin   float64
	epsilonDecay float64
	eval         bool
	savedEpsilon float64

	syncInterval int
	episodes     int
}

// New creates a new DeepQ agent acting in and learning about the
// environment e.
func New(e env.Environment, config Config, seed int64) (*DeepQ, error) {
	err := config.Validate()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	actionSpec := e.ActionSpec()
	if actionSpec.Cardinality != spec.Discrete {
		return nil, fmt.Errorf("new: deepq agents can only be used with " +
			"discrete actions")
	}
	if actionSpec.LowerBound.Len() > 1 || actionSpec.LowerBound.AtVec(0) != 0 {
		return nil, fmt.Errorf("new: actions must be 1-dimensional and " +
			"enumerated from 0")
	}
	numActions := int(actionSpec.UpperBound.AtVec(0)) + 1
	features := e.ObservationSpec().Shape.Len()

	// Behaviour network for action selection, always batch size 1
	g := G.NewGraph()
	behaviourNet, err := network.NewDueling(features, 1, numActions,
		config.BlockSize, config.HeadSize, config.Blocks, g,
		config.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour network: %v",
			err)
	}
	behaviourVM := G.NewTapeMachine(g)

	behaviourPolicy, err := policy.NewEGreedyDueling(config.Epsilon,
		behaviourNet, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %v",
			err)
	}

	// Training network, updated on minibatches sampled from the replay
	// buffer
	trainClone, err := behaviourNet.CloneWithBatch(config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create training network: %v",
			err)
	}
	trainNet, ok := trainClone.(network.AuxPredictor)
	if !ok {
		return nil, fmt.Errorf("new: training network does not predict " +
			"next observations")
	}
	gTrain := trainNet.Graph()

	// Target network generating the action values used in the update
	// target
	targetClone, err := behaviourNet.CloneWithBatch(config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}
	targetNet := targetClone
	targetVM := G.NewTapeMachine(targetNet.Graph())

	// Update target inputs
	nextStateActionValues := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(config.BatchSize, numActions),
		G.WithName("nextStateActionValues"))
	rewards := G.NewVector(gTrain, tensor.Float64,
		G.WithShape(config.BatchSize), G.WithName("rewards"))
	discounts := G.NewVector(gTrain, tensor.Float64,
		G.WithShape(config.BatchSize), G.WithName("discounts"))
	selectedActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(config.BatchSize, numActions),
		G.WithName("selectedActions"))
	isWeights := G.NewVector(gTrain, tensor.Float64,
		G.WithShape(config.BatchSize), G.WithName("isWeights"))
	nextStateObs := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(config.BatchSize, features),
		G.WithName("nextStateObservations"))

	// Bootstrapped update target: r + γ · maxQ(s', a'), with γ = 0 at
	// terminal and hindsight transitions
	nextValue := G.Must(G.Max(nextStateActionValues, 1))
	updateTarget := G.Must(G.HadamardProd(nextValue, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Q(s, a) for the actions actually taken
	selectedValue := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedValue = G.Must(G.Sum(selectedValue, 1))

	// Per-sample TD errors are read out to refresh replay priorities
	td := G.Must(G.Sub(updateTarget, selectedValue))
	tdErrors := new(G.Value)
	G.Read(td, tdErrors)

	// Importance-sampling weighted MSE on the TD errors
	losses := G.Must(G.Square(td))
	losses = G.Must(G.HadamardProd(losses, isWeights))
	cost := G.Must(G.Mean(losses))

	// Auxiliary loss: predict the next observation from the current one
	auxScale := G.NewScalar(gTrain, tensor.Float64, G.WithName("auxScale"),
		G.WithValue(config.AuxScale))
	auxDiff := G.Must(G.Sub(trainNet.AuxPrediction(), nextStateObs))
	auxCost := G.Must(G.Mean(G.Must(G.Square(auxDiff))))
	cost = G.Must(G.Add(cost, G.Must(G.Mul(auxCost, auxScale))))

	_, err = G.Grad(cost, trainNet.Learnables()...)
	if err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}
	trainVM := G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))

	minCapacity := config.MinReplayCapacity
	if minCapacity < config.BatchSize {
		minCapacity = config.BatchSize
	}
	replay, err := expreplay.New(minCapacity, config.ReplayCapacity,
		features, numActions, config.BatchSize, uint64(seed))
	if err != nil {
		return nil, fmt.Errorf("new: could not create replay buffer: %v", err)
	}

	return &DeepQ{
		behaviourPolicy: behaviourPolicy,
		behaviourVM:     behaviourVM,

		trainNet: trainNet,
		trainVM:  trainVM,
		solver:   config.Solver,
		tdErrors: tdErrors,

		targetNet: targetNet,
		targetVM:  targetVM,

		selectedActions:       selectedActions,
		nextStateActionValues: nextStateActionValues,
		rewards:               rewards,
		discounts:             discounts,
		isWeights:             isWeights,
		nextStateObs:          nextStateObs,

		replay:     replay,
		batchSize:  config.BatchSize,
		numActions: numActions,

		epsilonMin:   config.EpsilonMin,
		epsilonDecay: config.EpsilonDecay,

		syncInterval: config.TargetSyncEpisodes,
	}, nil
}

// SelectAction runs the behaviour network on the observation of the
// argument timestep and returns the action selected by the ε-greedy
// behaviour policy. In evaluation mode ε is 0 and the policy is
// greedy.
func (d *DeepQ) SelectAction(t ts.TimeStep) *mat.VecDense {
	obs := make([]float64, t.Observation.Len())
	for i := range obs {
		obs[i] = t.Observation.AtVec(i)
	}

	err := d.behaviourPolicy.Network().SetInput(obs)
	if err != nil {
		panic(fmt.Sprintf("selectaction: could not set input: %v", err))
	}

	err = d.behaviourVM.RunAll()
	if err != nil {
		panic(fmt.Sprintf("selectaction: could not predict action "+
			"values: %v", err))
	}

	action, _ := d.behaviourPolicy.SelectAction()
	d.behaviourVM.Reset()
	return action
}

// ObserveFirst observes and records the first episodic timestep.
func (d *DeepQ) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		return fmt.Errorf("observefirst: timestep %v is not the first "+
			"in its episode", t.Number)
	}
	d.lastStep = t
	return nil
}

// Observe observes and records any timestep other than the first,
// storing the resulting transition in the replay buffer. Non-terminal
// transitions are additionally stored in hindsight form.
func (d *DeepQ) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if nextStep.First() {
		return fmt.Errorf("observe: cannot observe first timestep, use " +
			"ObserveFirst instead")
	}

	transition := ts.NewTransition(d.lastStep, int(action.AtVec(0)), nextStep)
	err := d.replay.Add(transition)
	d.lastStep = nextStep
	if err != nil {
		return fmt.Errorf("observe: could not add to replay buffer: %v", err)
	}
	return nil
}

// Step performs a single learning step, sampling a prioritized
// minibatch, updating the training network weights, refreshing the
// sampled priorities, and copying the new weights into the behaviour
// network.
func (d *DeepQ) Step() error {
	// Not enough experience to sample yet
	if d.replay.Capacity() < d.replay.MinCapacity() {
		return nil
	}

	states, actions, rewards, discounts, nextStates, indices,
		weights, err := d.replay.Sample()
	if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("step: could not sample: %v", err)
	}

	// Action values of next states, predicted by the target network
	err = d.targetNet.SetInput(nextStates)
	if err != nil {
		return fmt.Errorf("step: could not set target network input: %v", err)
	}
	err = d.targetVM.RunAll()
	if err != nil {
		return fmt.Errorf("step: could not run target network: %v", err)
	}

	err = G.Let(d.nextStateActionValues, d.targetNet.Output()[0])
	if err != nil {
		return fmt.Errorf("step: could not set next state action values: %v",
			err)
	}
	d.targetVM.Reset()

	rewardsTensor := tensor.NewDense(tensor.Float64,
		[]int{d.batchSize}, tensor.WithBacking(rewards))
	err = G.Let(d.rewards, rewardsTensor)
	if err != nil {
		return fmt.Errorf("step: could not set rewards: %v", err)
	}

	discountsTensor := tensor.NewDense(tensor.Float64,
		[]int{d.batchSize}, tensor.WithBacking(discounts))
	err = G.Let(d.discounts, discountsTensor)
	if err != nil {
		return fmt.Errorf("step: could not set discounts: %v", err)
	}

	actionsTensor := tensor.NewDense(tensor.Float64,
		[]int{d.batchSize, d.numActions}, tensor.WithBacking(actions))
	err = G.Let(d.selectedActions, actionsTensor)
	if err != nil {
		return fmt.Errorf("step: could not set selected actions: %v", err)
	}

	weightsTensor := tensor.NewDense(tensor.Float64,
		[]int{d.batchSize}, tensor.WithBacking(weights))
	err = G.Let(d.isWeights, weightsTensor)
	if err != nil {
		return fmt.Errorf("step: could not set importance weights: %v", err)
	}

	nextStatesTensor := tensor.NewDense(tensor.Float64,
		[]int{d.batchSize, len(nextStates) / d.batchSize},
		tensor.WithBacking(nextStates))
	err = G.Let(d.nextStateObs, nextStatesTensor)
	if err != nil {
		return fmt.Errorf("step: could not set next state observations: %v",
			err)
	}

	err = d.trainNet.SetInput(states)
	if err != nil {
		return fmt.Errorf("step: could not set training network input: %v",
			err)
	}
	err = d.trainVM.RunAll()
	if err != nil {
		return fmt.Errorf("step: could not run training network: %v", err)
	}

	err = d.solver.Step(d.trainNet.Model())
	if err != nil {
		return fmt.Errorf("step: could not update training network: %v", err)
	}

	// TD errors must be copied out before the VM is reset
	tdErrors := make([]float64, d.batchSize)
	copy(tdErrors, (*d.tdErrors).Data().([]float64))
	d.trainVM.Reset()

	err = d.replay.UpdatePriorities(indices, tdErrors)
	if err != nil {
		return fmt.Errorf("step: could not update priorities: %v", err)
	}

	// The behaviour network selects actions with the freshly updated
	// weights
	err = d.behaviourPolicy.Network().Set(d.trainNet)
	if err != nil {
		return fmt.Errorf("step: could not update behaviour network: %v", err)
	}
	return nil
}

// EndEpisode performs cleanup at the end of an episode, decaying the
// exploration rate and periodically synchronizing the target network
// with the training network.
func (d *DeepQ) EndEpisode() error {
	d.episodes++

	if d.episodes%d.syncInterval == 0 {
		err := d.targetNet.Set(d.trainNet)
		if err != nil {
			return fmt.Errorf("endepisode: could not sync target "+
				"network: %v", err)
		}
	}

	if !d.eval {
		epsilon := d.behaviourPolicy.Epsilon() * d.epsilonDecay
		if epsilon < d.epsilonMin {
			epsilon = d.epsilonMin
		}
		d.behaviourPolicy.SetEpsilon(epsilon)
	}
	return nil
}

// TdErrors returns the TD errors of the last learning step, or nil if
// no learning step has been taken yet.
func (d *DeepQ) TdErrors() []float64 {
	if *d.tdErrors == nil {
		return nil
	}
	return (*d.tdErrors).Data().([]float64)
}

// Eval sets the agent to evaluation mode, in which the behaviour
// policy is greedy and no exploration is performed
func (d *DeepQ) Eval() {
	if d.eval {
		return
	}
	d.eval = true
	d.savedEpsilon = d.behaviourPolicy.Epsilon()
	d.behaviourPolicy.SetEpsilon(0.0)
}

// Train sets the agent to training mode, restoring the exploration
// rate in effect before the last call to Eval
func (d *DeepQ) Train() {
	if !d.eval {
		return
	}
	d.eval = false
	d.behaviourPolicy.SetEpsilon(d.savedEpsilon)
}

// IsEval returns whether the agent is in evaluation mode
func (d *DeepQ) IsEval() bool { return d.eval }

// Close cleans up the resources of the agent's virtual machines.
func (d *DeepQ) Close() error {
	behaviourErr := d.behaviourVM.Close()
	trainErr := d.trainVM.Close()
	targetErr := d.targetVM.Close()

	if behaviourErr != nil {
		return fmt.Errorf("close: could not close behaviour policy VM: %v",
			behaviourErr)
	}
	if trainErr != nil {
		return fmt.Errorf("close: could not close training VM: %v", trainErr)
	}
	if targetErr != nil {
		return fmt.Errorf("close: could not close target VM: %v", targetErr)
	}
	return nil
}
