// Package experiment implements functionality for running an
// experiment
package experiment

import (
	"context"

	"github.com/SaifPunjwani/Reasoning-Research/experiment/tracker"
	ts "github.com/SaifPunjwani/Reasoning-Research/timestep"
)

// Runner runs episodes of agent-environment interaction under a
// cancellable context
type Runner interface {
	// Run runs the experiment to completion
	Run(ctx context.Context) error

	// RunEpisode runs a single episode
	RunEpisode(ctx context.Context) error
}

// Experiment outlines structs that can run experiments. An Experiment
// drives episodes of agent-environment interaction, sending every
// environmental TimeStep to its registered tracker.Trackers, which
// cache data in RAM. After a run, Save writes all cached data to disk.
//
// Run honors its context: cancellation aborts the episode in progress,
// discards that episode's partial data, and tears the experiment down
// before returning. RunEpisode runs a single episode.
type Experiment interface {
	Runner

	// Save all tracked data to disk
	Save()

	// Register adds a tracker.Tracker to the (possibly already
	// running) experiment. Useful to track data only after a
	// specified event.
	Register(t tracker.Tracker)

	// Close releases the resources of the experiment's environment
	// and agent
	Close() error

	// track sends a timestep to every registered tracker
	track(ts.TimeStep)
}
