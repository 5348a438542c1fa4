// Package expreplay implements prioritized experience replay with
// hindsight augmentation
package expreplay

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/SaifPunjwani/Reasoning-Research/timestep"
	"github.com/SaifPunjwani/Reasoning-Research/utils/floatutils"
)

const (
	// DefaultAlpha is the default priority exponent
	DefaultAlpha float64 = 0.6

	// DefaultBeta is the default starting importance sampling exponent
	DefaultBeta float64 = 0.4

	// DefaultBetaIncrement is the default amount by which the
	// importance sampling exponent anneals toward 1 on each Sample
	DefaultBetaIncrement float64 = 0.001

	// PriorityFloor keeps every stored priority strictly positive so
	// that no transition is starved of sampling probability
	PriorityFloor float64 = 1e-6

	// HindsightReward is the reward given to the synthetic hindsight
	// duplicate of a non-terminal transition
	HindsightReward float64 = 1.0
)

// Prioritized implements a fixed-capacity prioritized replay buffer
// with hindsight augmentation.
//
// Transitions are stored in a ring: once the capacity is exceeded, the
// oldest entry by insertion order is dropped, and its priority is
// dropped with it at the same index. New entries receive the maximum
// priority currently stored so that they are sampled at least as often
// as the best scorer seen so far; their true error-based priority is
// set by UpdatePriorities after they are first learned from.
//
// Every non-terminal Add additionally inserts a synthetic duplicate
// whose reward is HindsightReward and which is marked terminal,
// treating the transition's own outcome as an achieved goal. The
// buffer therefore grows by two entries per non-terminal transition.
//
// Actions are stored as one-hot vectors so that sampled batches can be
// fed directly into the learner's gather-by-Hadamard-product graph.
type Prioritized struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	discountCache  []float64
	nextStateCache []float64
	priorities     []float64

	currentInUsePos int
	isFull          bool

	alpha         float64
	beta          float64
	betaIncrement float64

	minCapacity int
	maxCapacity int
	featureSize int
	actionSize  int
	batchSize   int

	rng *rand.Rand
}

// New creates and returns a new Prioritized replay buffer. The
// featureSize and actionSize parameters define the sizes of the
// observation vectors and of the discrete action set. The minCapacity
// parameter determines the number of samples required in the buffer
// before sampling is allowed, and batchSize the number of samples
// returned by Sample.
func New(minCapacity, maxCapacity, featureSize, actionSize,
	batchSize int, seed uint64) (*Prioritized, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if maxCapacity < batchSize {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}

	return &Prioritized{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]float64, maxCapacity*actionSize),
		rewardCache:    make([]float64, maxCapacity),
		discountCache:  make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),
		priorities:     make([]float64, maxCapacity),

		alpha:         DefaultAlpha,
		beta:          DefaultBeta,
		betaIncrement: DefaultBetaIncrement,

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,
		batchSize:   batchSize,

		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// BatchSize returns the number of samples returned by Sample
func (p *Prioritized) BatchSize() int {
	return p.batchSize
}

// Capacity returns the current number of elements in the buffer that
// are available for sampling
func (p *Prioritized) Capacity() int {
	if p.isFull {
		return p.maxCapacity
	}
	return p.currentInUsePos
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the buffer
func (p *Prioritized) MaxCapacity() int {
	return p.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// buffer before sampling is allowed
func (p *Prioritized) MinCapacity() int {
	return p.minCapacity
}

// Add adds a transition to the buffer at the maximum stored priority.
// Non-terminal transitions are additionally stored a second time as a
// terminal hindsight duplicate with reward HindsightReward.
func (p *Prioritized) Add(t timestep.Transition) error {
	if t.State.Len() != p.featureSize || t.NextState.Len() != p.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)"+
			"\n\thave(%v)", p.featureSize, t.State.Len())
	}
	if t.Action < 0 || t.Action >= p.actionSize {
		return fmt.Errorf("add: invalid action \n\twant(0-%v)\n\thave(%v)",
			p.actionSize-1, t.Action)
	}

	priority := p.maxPriority()

	p.insert(t, t.Reward, t.Discount, priority)
	if !t.Terminal {
		p.insert(t, HindsightReward, 0.0, priority)
	}

	return nil
}

// insert writes one entry at the current ring position, evicting
// whatever the position previously held. The priority is written at
// the same index so that transitions and priorities always evict in
// lockstep.
func (p *Prioritized) insert(t timestep.Transition, reward, discount,
	priority float64) {
	index := p.currentInUsePos

	stateInd := index * p.featureSize
	copyVector(p.stateCache[stateInd:stateInd+p.featureSize], t.State)
	copyVector(p.nextStateCache[stateInd:stateInd+p.featureSize], t.NextState)

	actionInd := index * p.actionSize
	for i := 0; i < p.actionSize; i++ {
		p.actionCache[actionInd+i] = 0.0
	}
	p.actionCache[actionInd+t.Action] = 1.0

	p.rewardCache[index] = reward
	p.discountCache[index] = discount
	p.priorities[index] = priority

	p.currentInUsePos++
	if p.currentInUsePos == p.maxCapacity {
		p.currentInUsePos = 0
		p.isFull = true
	}
}

// maxPriority returns the maximum priority currently stored, or 1.0
// for an empty buffer
func (p *Prioritized) maxPriority() float64 {
	size := p.Capacity()
	if size == 0 {
		return 1.0
	}
	return floatutils.Max(p.priorities[:size]...)
}

// Sample draws a batch of transitions with replacement, biased toward
// high-priority entries: the sampling probability of entry i is
// proportional to its priority raised to the priority exponent α.
//
// Sample returns the batched transition fields (states, one-hot
// actions, rewards, discounts, next states), the sampled indices, and
// the normalized importance sampling weights that correct the sampling
// bias. The maximum weight in a batch is always 1. The importance
// sampling exponent β anneals toward 1 by a fixed increment on every
// call.
func (p *Prioritized) Sample() ([]float64, []float64, []float64, []float64,
	[]float64, []int, []float64, error) {
	size := p.Capacity()
	if size == 0 {
		err := &ExpReplayError{Op: "sample", Err: errEmptyCache}
		return nil, nil, nil, nil, nil, nil, nil, err
	}
	if size < p.minCapacity {
		err := &ExpReplayError{Op: "sample", Err: errInsufficientSamples}
		return nil, nil, nil, nil, nil, nil, nil, err
	}

	p.beta = math.Min(1.0, p.beta+p.betaIncrement)

	// Cumulative distribution over priority^alpha
	cumulative := make([]float64, size)
	for i := 0; i < size; i++ {
		cumulative[i] = math.Pow(p.priorities[i], p.alpha)
	}
	floats.CumSum(cumulative, cumulative)
	total := cumulative[size-1]

	indices := make([]int, p.batchSize)
	isWeights := make([]float64, p.batchSize)
	for i := range indices {
		u := p.rng.Float64() * total
		index := sort.SearchFloat64s(cumulative, u)
		if index == size {
			index = size - 1
		}
		indices[i] = index

		var prob float64
		if index == 0 {
			prob = cumulative[0] / total
		} else {
			prob = (cumulative[index] - cumulative[index-1]) / total
		}
		isWeights[i] = math.Pow(float64(size)*prob, -p.beta)
	}

	// Normalize so the largest weight in the batch is exactly 1
	maxWeight := floatutils.Max(isWeights...)
	for i := range isWeights {
		isWeights[i] /= maxWeight
	}

	stateBatch := make([]float64, p.batchSize*p.featureSize)
	nextStateBatch := make([]float64, p.batchSize*p.featureSize)
	for i, index := range indices {
		batchStartInd := i * p.featureSize
		expStartInd := index * p.featureSize
		copy(stateBatch[batchStartInd:batchStartInd+p.featureSize],
			p.stateCache[expStartInd:expStartInd+p.featureSize])
		copy(nextStateBatch[batchStartInd:batchStartInd+p.featureSize],
			p.nextStateCache[expStartInd:expStartInd+p.featureSize])
	}

	actionBatch := make([]float64, p.batchSize*p.actionSize)
	for i, index := range indices {
		batchStartInd := i * p.actionSize
		expStartInd := index * p.actionSize
		copy(actionBatch[batchStartInd:batchStartInd+p.actionSize],
			p.actionCache[expStartInd:expStartInd+p.actionSize])
	}

	rewardBatch := make([]float64, p.batchSize)
	discountBatch := make([]float64, p.batchSize)
	for i, index := range indices {
		rewardBatch[i] = p.rewardCache[index]
		discountBatch[i] = p.discountCache[index]
	}

	return stateBatch, actionBatch, rewardBatch, discountBatch,
		nextStateBatch, indices, isWeights, nil
}

// UpdatePriorities sets the priority of each entry in indices to the
// magnitude of its temporal-difference error plus the priority floor
func (p *Prioritized) UpdatePriorities(indices []int,
	tdErrors []float64) error {
	if len(indices) != len(tdErrors) {
		return fmt.Errorf("updatepriorities: invalid number of td errors"+
			"\n\twant(%v)\n\thave(%v)", len(indices), len(tdErrors))
	}

	size := p.Capacity()
	for i, index := range indices {
		if index < 0 || index >= size {
			return fmt.Errorf("updatepriorities: index out of range "+
				"\n\twant(0-%v)\n\thave(%v)", size-1, index)
		}
		p.priorities[index] = math.Abs(tdErrors[i]) + PriorityFloor
	}

	return nil
}

// copyVector copies the contents of a mat.Vector into dst
func copyVector(dst []float64, src mat.Vector) {
	for i := 0; i < src.Len(); i++ {
		dst[i] = src.AtVec(i)
	}
}
