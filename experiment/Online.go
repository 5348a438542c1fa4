package experiment

import (
	"context"
	"fmt"

	"github.com/SaifPunjwani/Reasoning-Research/agent"
	env "github.com/SaifPunjwani/Reasoning-Research/environment"
	"github.com/SaifPunjwani/Reasoning-Research/experiment/tracker"
	ts "github.com/SaifPunjwani/Reasoning-Research/timestep"
)

// Online is an Experiment that trains an agent online for a fixed
// number of episodes. No offline evaluation is performed.
type Online struct {
	environment env.Environment
	agent       agent.Agent
	numEpisodes int
	trackers    []tracker.Tracker
}

// NewOnline creates and returns a new online experiment of an agent a
// acting in environment e. The experiment runs for episodes episodes,
// and each tracker in t determines some data recorded over the run.
func NewOnline(e env.Environment, a agent.Agent, episodes int,
	t ...tracker.Tracker) *Online {
	return &Online{
		environment: e,
		agent:       a,
		numEpisodes: episodes,
		trackers:    t,
	}
}

// Register registers a tracker.Tracker with the experiment so that
// data generated during the experiment can be recorded and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment. The context is
// polled before every environmental step; once the context is
// cancelled the episode is abandoned and the context's error is
// returned. An abandoned episode records no data.
func (o *Online) RunEpisode(ctx context.Context) error {
	step, err := o.environment.Reset()
	if err != nil {
		return fmt.Errorf("runepisode: could not reset environment: %v", err)
	}
	if err := o.agent.ObserveFirst(step); err != nil {
		return fmt.Errorf("runepisode: %v", err)
	}
	o.track(step)

	for !step.Last() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		action := o.agent.SelectAction(step)
		step, _ = o.environment.Step(action)
		o.track(step)

		if err := o.agent.Observe(action, step); err != nil {
			return fmt.Errorf("runepisode: %v", err)
		}
		if err := o.agent.Step(); err != nil {
			return fmt.Errorf("runepisode: %v", err)
		}
	}

	if err := o.agent.EndEpisode(); err != nil {
		return fmt.Errorf("runepisode: %v", err)
	}
	return nil
}

// Run runs every episode of the experiment. The experiment's
// environment and agent are closed before Run returns, whether the run
// finishes or is cancelled.
func (o *Online) Run(ctx context.Context) error {
	for i := 0; i < o.numEpisodes; i++ {
		if err := o.RunEpisode(ctx); err != nil {
			o.Close()
			return err
		}
	}
	return o.Close()
}

// Save saves all the data recorded by the experiment's trackers to
// disk
func (o *Online) Save() {
	for _, t := range o.trackers {
		t.Save()
	}
}

// Close releases the resources held by the experiment's environment
// and agent
func (o *Online) Close() error {
	envErr := o.environment.Close()

	var agentErr error
	if closer, ok := o.agent.(agent.Closer); ok {
		agentErr = closer.Close()
	}

	if envErr != nil {
		return fmt.Errorf("close: could not close environment: %v", envErr)
	}
	if agentErr != nil {
		return fmt.Errorf("close: could not close agent: %v", agentErr)
	}
	return nil
}

// track records the current timestep in each registered tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}
