// Package navigation implements a 2-D navigation environment with a
// moving target and moving, bouncing, circular obstacles
package navigation

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	env "github.com/SaifPunjwani/Reasoning-Research/environment"
	"github.com/SaifPunjwani/Reasoning-Research/spec"
	ts "github.com/SaifPunjwani/Reasoning-Research/timestep"
	"github.com/SaifPunjwani/Reasoning-Research/utils/floatutils"
)

const (
	// World extents
	Width  float64 = 1024
	Height float64 = 768

	// Agent movement parameters
	AgentRadius float64 = 12
	AgentSpeed  float64 = 4

	// Target movement parameters
	TargetRadius float64 = 15
	TargetSpeed  float64 = 2

	// SpawnMargin keeps spawned positions away from the walls
	SpawnMargin float64 = 50

	// Rewards
	CollisionPenalty float64 = -2
	StepPenalty      float64 = 0.1
	ProgressScale    float64 = 0.5
	TerminalReward   float64 = 200

	// Discrete actions
	MinDiscreteAction int = 0
	MaxDiscreteAction int = 7
	NumActions        int = MaxDiscreteAction - MinDiscreteAction + 1

	// Attempts to place the agent outside all obstacles before Reset
	// reports a configuration error
	maxPlacementAttempts int = 100
)

// diagScale normalizes diagonal displacements so that diagonal speed
// equals cardinal speed
var diagScale = 1.0 / math.Sqrt2

// actionTable maps each discrete action code to the sign of its (dx,
// dy) displacement. The y axis points down, so "up" is a negative dy.
//
//	Action	Meaning
//	  0		Up
//	  1		Right
//	  2		Down
//	  3		Left
//	  4		Up-left
//	  5		Up-right
//	  6		Down-left
//	  7		Down-right
var actionTable = [NumActions][2]float64{
	{0, -1},
	{1, 0},
	{0, 1},
	{-1, 0},
	{-1, -1},
	{1, -1},
	{-1, 1},
	{1, 1},
}

// mover is a circle that travels at a fixed speed along a heading
// angle
type mover struct {
	x, y    float64
	heading float64
	speed   float64
	radius  float64
}

// advance moves the mover one step along its heading
func (m *mover) advance() {
	m.x += math.Cos(m.heading) * m.speed
	m.y += math.Sin(m.heading) * m.speed
}

// reflect flips the mover's heading when it has contacted a wall:
// about the vertical axis for the left/right walls and about the
// horizontal axis for the top/bottom walls
func (m *mover) reflect() {
	if m.x < m.radius || m.x > Width-m.radius {
		m.heading = math.Pi - m.heading
	}
	if m.y < m.radius || m.y > Height-m.radius {
		m.heading = -m.heading
	}
}

// clamp forces the mover back into the world, keeping its full circle
// inside the walls
func (m *mover) clamp() {
	m.x = floatutils.Clip(m.x, m.radius, Width-m.radius)
	m.y = floatutils.Clip(m.y, m.radius, Height-m.radius)
}

// Navigation implements a continuous 2-D world in which an agent must
// reach a moving target while avoiding moving circular obstacles.
//
// The target and the obstacles wall-bounce, but the agent only clamps
// at walls: it stops at the boundary with zero rebound. Obstacles also
// only clamp after reflecting, while the target is clamped as part of
// its own move. These asymmetries are part of the environment
// definition.
//
// Observations are continuous and consist of the agent and target
// positions normalized by the world extents, followed by a
// (distance, bearing, velocity-x, velocity-y) tuple per obstacle, each
// normalized to roughly unit range.
//
// Actions are discrete codes in [0, 8) selecting one of the eight
// compass directions. Diagonal displacement components are scaled by
// 1/√2 so that diagonal speed equals cardinal speed.
type Navigation struct {
	agentX, agentY float64
	target         mover
	obstacles      []mover

	lastStep ts.TimeStep
	discount float64

	starter    env.Starter
	headingRng distuv.Uniform
}

// New constructs a new Navigation environment. Position draws at reset
// time come from starter, which should sample within the spawn
// rectangle [SpawnMargin, Width-SpawnMargin] x [SpawnMargin,
// Height-SpawnMargin]. Heading draws use a stream of randomness
// determined by seed.
func New(starter env.Starter, discount float64,
	seed uint64) (*Navigation, ts.TimeStep, error) {
	headingRng := distuv.Uniform{
		Min: 0,
		Max: 2 * math.Pi,
		Src: rand.NewSource(seed),
	}

	radii := []float64{50, 40, 45, 35}
	speeds := []float64{1.5, 1.2, 1.8, 1.3}
	obstacles := make([]mover, len(radii))
	for i := range obstacles {
		obstacles[i] = mover{radius: radii[i], speed: speeds[i]}
	}

	n := &Navigation{
		target:     mover{speed: TargetSpeed, radius: TargetRadius},
		obstacles:  obstacles,
		discount:   discount,
		starter:    starter,
		headingRng: headingRng,
	}

	firstStep, err := n.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}

	return n, firstStep, nil
}

// Reset resets the environment between episodes. Obstacle and target
// positions and all movement headings are randomized, and the agent is
// placed by rejection sampling so that it overlaps no obstacle. If the
// placement budget is exhausted, the obstacle configuration leaves no
// free space and an error is returned.
func (n *Navigation) Reset() (ts.TimeStep, error) {
	for i := range n.obstacles {
		position := n.starter.Start()
		n.obstacles[i].x = position.AtVec(0)
		n.obstacles[i].y = position.AtVec(1)
		n.obstacles[i].heading = n.headingRng.Rand()
	}

	position := n.starter.Start()
	n.target.x = position.AtVec(0)
	n.target.y = position.AtVec(1)
	n.target.heading = n.headingRng.Rand()

	placed := false
	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		position = n.starter.Start()
		n.agentX = position.AtVec(0)
		n.agentY = position.AtVec(1)
		if n.collidingObstacle() < 0 {
			placed = true
			break
		}
	}
	if !placed {
		return ts.TimeStep{}, fmt.Errorf("reset: could not place agent "+
			"outside obstacles in %v attempts", maxPlacementAttempts)
	}

	startStep := ts.New(ts.First, 0, n.discount, n.observation(), 0)
	n.lastStep = startStep

	return startStep, nil
}

// Step takes one environmental step given action a and returns the
// next state as a timestep.TimeStep and a bool indicating whether or
// not the episode has ended
func (n *Navigation) Step(a mat.Vector) (ts.TimeStep, bool) {
	action := int(a.AtVec(0))
	if action < MinDiscreteAction || action > MaxDiscreteAction {
		panic(fmt.Sprintf("illegal action %v ∉ [0, 8)", action))
	}

	// Advance the target, reflecting its heading at walls
	oldTargetX, oldTargetY := n.target.x, n.target.y
	n.target.advance()
	n.target.reflect()
	n.target.clamp()

	// A target-obstacle overlap reverts the target and re-heads it
	// away from the obstacle before re-applying the move
	for i := range n.obstacles {
		o := &n.obstacles[i]
		if !circlesOverlap(n.target.x, n.target.y, n.target.radius,
			o.x, o.y, o.radius) {
			continue
		}
		bounce := math.Atan2(n.target.y-o.y, n.target.x-o.x)
		n.target.x, n.target.y = oldTargetX, oldTargetY
		n.target.heading = bounce
		n.target.advance()
	}

	// Advance the obstacles. Obstacles reflect their headings at walls
	// but their positions are clamped, never re-integrated.
	for i := range n.obstacles {
		n.obstacles[i].advance()
		n.obstacles[i].reflect()
		n.obstacles[i].clamp()
	}

	// Resolve the agent displacement from the action table. The agent
	// clamps at walls with zero rebound.
	oldAgentX, oldAgentY := n.agentX, n.agentY
	dx := actionTable[action][0] * AgentSpeed
	dy := actionTable[action][1] * AgentSpeed
	if dx != 0 && dy != 0 {
		dx *= diagScale
		dy *= diagScale
	}
	n.agentX = floatutils.Clip(n.agentX+dx, 0, Width)
	n.agentY = floatutils.Clip(n.agentY+dy, 0, Height)

	newDist := math.Hypot(n.agentX-n.target.x, n.agentY-n.target.y)
	oldDist := math.Hypot(oldAgentX-n.target.x, oldAgentY-n.target.y)

	// On contact with an obstacle (first match wins) the agent is
	// reverted and pushed one speed-step along the obstacle→agent
	// bearing, and the shaping reward is replaced by a penalty
	var reward float64
	if i := n.collidingObstacle(); i >= 0 {
		o := &n.obstacles[i]
		bounce := math.Atan2(n.agentY-o.y, n.agentX-o.x)
		n.agentX = oldAgentX + math.Cos(bounce)*AgentSpeed
		n.agentY = oldAgentY + math.Sin(bounce)*AgentSpeed
		reward = CollisionPenalty
	} else {
		reward = ProgressScale*(oldDist-newDist) - StepPenalty
	}

	// Reaching the target overrides whatever reward was computed above
	done := newDist < AgentRadius+TargetRadius
	if done {
		reward = TerminalReward
	}

	stepType := ts.Mid
	discount := n.discount
	if done {
		stepType = ts.Last
	}

	nextStep := ts.New(stepType, reward, discount, n.observation(),
		n.lastStep.Number+1)
	n.lastStep = nextStep

	return nextStep, done
}

// collidingObstacle returns the index of the first obstacle
// overlapping the agent, or -1 if the agent is free
func (n *Navigation) collidingObstacle() int {
	for i := range n.obstacles {
		o := &n.obstacles[i]
		if circlesOverlap(n.agentX, n.agentY, AgentRadius, o.x, o.y,
			o.radius) {
			return i
		}
	}
	return -1
}

// circlesOverlap reports whether two circles overlap, using a strict
// Euclidean distance comparison against the sum of the radii
func circlesOverlap(x1, y1, r1, x2, y2, r2 float64) bool {
	return math.Hypot(x1-x2, y1-y2) < r1+r2
}

// observation builds the state observation vector. Every component is
// normalized into a bounded, roughly [-1, 1] or [0, 1] range by
// construction.
func (n *Navigation) observation() mat.Vector {
	diag := math.Hypot(Width, Height)

	state := make([]float64, 0, 4+4*len(n.obstacles))
	state = append(state,
		n.agentX/Width,
		n.agentY/Height,
		n.target.x/Width,
		n.target.y/Height,
	)

	for i := range n.obstacles {
		o := &n.obstacles[i]
		dist := math.Hypot(n.agentX-o.x, n.agentY-o.y)
		bearing := math.Atan2(o.y-n.agentY, o.x-n.agentX)
		state = append(state,
			dist/diag,
			bearing/math.Pi,
			math.Cos(o.heading)*o.speed/AgentSpeed,
			math.Sin(o.heading)*o.speed/AgentSpeed,
		)
	}

	return mat.NewVecDense(len(state), state)
}

// ObservationSpec returns the observation specification of the
// environment
func (n *Navigation) ObservationSpec() spec.Environment {
	features := 4 + 4*len(n.obstacles)
	shape := mat.NewVecDense(features, nil)

	lower := make([]float64, features)
	upper := make([]float64, features)
	for i := range lower {
		lower[i] = -1.0
		upper[i] = 1.0
	}

	return spec.NewEnvironment(shape, spec.Observation,
		mat.NewVecDense(features, lower), mat.NewVecDense(features, upper),
		spec.Continuous)
}

// ActionSpec returns the action specification of the environment
func (n *Navigation) ActionSpec() spec.Environment {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{float64(MinDiscreteAction)})
	upperBound := mat.NewVecDense(1, []float64{float64(MaxDiscreteAction)})

	return spec.NewEnvironment(shape, spec.Action, lowerBound,
		upperBound, spec.Discrete)
}

// DiscountSpec returns the discounting specification of the
// environment
func (n *Navigation) DiscountSpec() spec.Environment {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{n.discount})

	return spec.NewEnvironment(shape, spec.Discount, bound, bound,
		spec.Continuous)
}

// Close releases resources held by the environment. The core world
// holds none itself; external collaborators such as renderers hook
// their teardown here.
func (n *Navigation) Close() error {
	return nil
}

func (n *Navigation) String() string {
	msg := "Navigation  |  Agent: (%.2f, %.2f)  |  Target: (%.2f, %.2f)" +
		"  |  Obstacles: %v"

	return fmt.Sprintf(msg, n.agentX, n.agentY, n.target.x, n.target.y,
		len(n.obstacles))
}
