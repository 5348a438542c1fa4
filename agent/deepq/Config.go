package deepq

import (
	"fmt"

	"github.com/SaifPunjwani/Reasoning-Research/initwfn"
	"github.com/SaifPunjwani/Reasoning-Research/solver"
)

// Config implements a configuration for a DeepQ agent
type Config struct {
	// Architecture of the dueling network
	Blocks    int // Number of residual reasoning blocks
	BlockSize int // Units per reasoning block
	HeadSize  int // Hidden units in each prediction head

	// Solver for learning weights
	Solver *solver.Solver

	// Initialization algorithm for weights
	InitWFn *initwfn.InitWFn

	// Behaviour policy epsilon schedule. Epsilon decays
	// multiplicatively by EpsilonDecay toward EpsilonMin after every
	// episode.
	Epsilon      float64
	EpsilonMin   float64
	EpsilonDecay float64

	// AuxScale weighs the auxiliary next-observation prediction loss
	// against the temporal-difference loss
	AuxScale float64

	// Experience replay parameters
	ReplayCapacity    int
	MinReplayCapacity int
	BatchSize         int

	// TargetSyncEpisodes is the number of episodes between full
	// copies of the online weights into the target network
	TargetSyncEpisodes int
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent.
func (c Config) Validate() error {
	if c.Blocks < 1 {
		return fmt.Errorf("new: must have at least one reasoning block"+
			" \n\thave(%v)", c.Blocks)
	}

	if c.BlockSize < 1 || c.HeadSize < 1 {
		return fmt.Errorf("new: block and head sizes must be positive"+
			" \n\thave(%v, %v)", c.BlockSize, c.HeadSize)
	}

	if c.Solver == nil {
		return fmt.Errorf("new: no solver specified")
	}

	if c.InitWFn == nil {
		return fmt.Errorf("new: no weight initializer specified")
	}

	if c.Epsilon < 0 || c.EpsilonMin < 0 || c.Epsilon < c.EpsilonMin {
		return fmt.Errorf("new: invalid epsilon schedule \n\thave(%v -> %v)",
			c.Epsilon, c.EpsilonMin)
	}

	if c.EpsilonDecay <= 0 || c.EpsilonDecay > 1 {
		return fmt.Errorf("new: epsilon decay must be in (0, 1]"+
			" \n\thave(%v)", c.EpsilonDecay)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("new: batch size must be positive \n\thave(%v)",
			c.BatchSize)
	}

	if c.ReplayCapacity < c.BatchSize {
		return fmt.Errorf("new: cannot have batch size (%v) > replay "+
			"capacity (%v)", c.BatchSize, c.ReplayCapacity)
	}

	if c.TargetSyncEpisodes < 1 {
		return fmt.Errorf("new: target networks must be synced at positive "+
			"episode intervals \n\twant(>0) \n\thave(%v)",
			c.TargetSyncEpisodes)
	}

	return nil
}
