package tracker

import (
	"encoding/gob"
	"log"
	"os"

	ts "github.com/SaifPunjwani/Reasoning-Research/timestep"
)

// EpisodeLength tracks and saves the lengths of the episodes in an
// experiment. Only finished episodes are recorded.
type EpisodeLength struct {
	episodeLengths []int
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength tracker which saves its
// data to the file at filename
func NewEpisodeLength(filename string) Tracker {
	return &EpisodeLength{filename: filename}
}

// Track records the length of an episode when the episode's last
// timestep is tracked. All other timesteps are ignored.
func (e *EpisodeLength) Track(t ts.TimeStep) {
	if t.Last() {
		e.episodeLengths = append(e.episodeLengths, t.Number)
	}
}

// Save saves the recorded episode lengths to disk
func (e *EpisodeLength) Save() {
	file, err := os.Create(e.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(e.episodeLengths); err != nil {
		log.Fatalf("could not encode episode length data: %v", err)
	}
}
