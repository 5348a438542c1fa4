package tracker

import (
	"encoding/gob"
	"fmt"
	"log"
	"os"

	ts "github.com/SaifPunjwani/Reasoning-Research/timestep"
)

// Return tracks and saves the episodic return of an experiment. Each
// reward seen during an episode is accumulated, and the accumulated
// return is recorded when the episode's last timestep is tracked.
//
// An episode must finish for its return to be recorded. If the last
// episode of an experiment is cut short, for example by cancellation,
// that episode's partial return is discarded.
type Return struct {
	lastTimeStep   int
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new Return tracker which saves its
// data to the file at filename
func NewReturn(filename string) Tracker {
	return &Return{
		lastTimeStep: -1,
		filename:     filename,
	}
}

// Track accumulates the reward seen on a timestep. When the last
// timestep of an episode is tracked, the accumulated return is
// recorded and accumulation restarts for the next episode.
//
// Track panics if called on non-sequential timesteps.
func (r *Return) Track(step ts.TimeStep) {
	if r.lastTimeStep+1 != step.Number {
		panic(fmt.Sprintf("track: non-sequential timesteps tracked: "+
			"timestep %v --> timestep %v", r.lastTimeStep, step.Number))
	}

	r.currentReturn += step.Reward
	if step.Last() {
		r.episodeReturns = append(r.episodeReturns, r.currentReturn)
		r.currentReturn = 0.0
		r.lastTimeStep = -1
	} else {
		r.lastTimeStep = step.Number
	}
}

// Save saves the recorded episodic returns to disk
func (r *Return) Save() {
	file, err := os.Create(r.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(r.episodeReturns); err != nil {
		log.Fatalf("could not encode return data: %v", err)
	}
}
