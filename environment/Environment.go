// Package environment outlines the interfaces needed to implement
// concrete environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/SaifPunjwani/Reasoning-Research/spec"
	"github.com/SaifPunjwani/Reasoning-Research/timestep"
)

// Starter implements a distribution of starting positions and samples
// starting positions for environments
type Starter interface {
	Start() mat.Vector
}

// Environment implements a simulated environment. An Environment
// starts ready to use and is reset between episodes with Reset. Close
// releases any resources the Environment holds and must be called
// once the Environment is no longer needed.
type Environment interface {
	Reset() (timestep.TimeStep, error)
	Step(action mat.Vector) (timestep.TimeStep, bool)
	DiscountSpec() spec.Environment
	ObservationSpec() spec.Environment
	ActionSpec() spec.Environment
	Close() error
}
