package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"gonum.org/v1/gonum/spatial/r1"

	"github.com/SaifPunjwani/Reasoning-Research/agent/deepq"
	env "github.com/SaifPunjwani/Reasoning-Research/environment"
	"github.com/SaifPunjwani/Reasoning-Research/environment/navigation"
	"github.com/SaifPunjwani/Reasoning-Research/experiment"
	"github.com/SaifPunjwani/Reasoning-Research/experiment/tracker"
	"github.com/SaifPunjwani/Reasoning-Research/initwfn"
	"github.com/SaifPunjwani/Reasoning-Research/solver"
)

func main() {
	var seed = flag.Int64("seed", 192382, "seed for the run")
	var episodes = flag.Int("episodes", 1000, "number of training episodes")
	var returnsFile = flag.String("returns", "./returns.bin",
		"file to save episodic returns to")
	var lengthsFile = flag.String("lengths", "./lengths.bin",
		"file to save episode lengths to")
	flag.Parse()

	// Create the navigation environment. Agents spawn uniformly inside
	// the arena, away from the walls.
	xBounds := r1.Interval{
		Min: navigation.SpawnMargin,
		Max: navigation.Width - navigation.SpawnMargin,
	}
	yBounds := r1.Interval{
		Min: navigation.SpawnMargin,
		Max: navigation.Height - navigation.SpawnMargin,
	}
	starter := env.NewUniformStarter([]r1.Interval{xBounds, yBounds},
		uint64(*seed))

	nav, _, err := navigation.New(starter, 0.99, uint64(*seed))
	if err != nil {
		log.Fatalf("could not create environment: %v", err)
	}

	adam, err := solver.NewDefaultAdam(5e-4, 64)
	if err != nil {
		log.Fatalf("could not create solver: %v", err)
	}

	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		log.Fatalf("could not create weight initializer: %v", err)
	}

	// Create the learning agent
	config := deepq.Config{
		Blocks:    3,
		BlockSize: 256,
		HeadSize:  128,

		Solver:  adam,
		InitWFn: init,

		Epsilon:      1.0,
		EpsilonMin:   0.01,
		EpsilonDecay: 0.997,

		AuxScale: 0.1,

		ReplayCapacity:    20_000,
		MinReplayCapacity: 64,
		BatchSize:         64,

		TargetSyncEpisodes: 5,
	}
	agent, err := deepq.New(nav, config, *seed)
	if err != nil {
		log.Fatalf("could not create agent: %v", err)
	}

	// Interrupting the run cancels the experiment, which discards the
	// partial episode and tears down the environment and agent
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := experiment.NewOnline(nav, agent, *episodes,
		tracker.NewReturn(*returnsFile),
		tracker.NewEpisodeLength(*lengthsFile))
	if err := e.Run(ctx); err != nil {
		log.Printf("training interrupted: %v", err)
	}
	e.Save()

	data := tracker.LoadData(*returnsFile)
	if len(data) > 10 {
		data = data[len(data)-10:]
	}
	fmt.Println(data)
}
