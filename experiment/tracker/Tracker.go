// Package tracker implements Trackers, which record and save data
// generated while an experiment runs
package tracker

import (
	"encoding/gob"
	"log"
	"os"

	ts "github.com/SaifPunjwani/Reasoning-Research/timestep"
)

// Tracker records experiment data one timestep at a time and saves the
// accumulated data once the experiment has finished
type Tracker interface {
	Track(t ts.TimeStep)
	Save()
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) []float64 {
	file, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open data file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var data []float64

	err = dec.Decode(&data)
	if err != nil {
		log.Fatalf("could not decode data: %v", err)
	}

	return data
}
