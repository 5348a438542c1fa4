package tracker

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	ts "github.com/SaifPunjwani/Reasoning-Research/timestep"
)

func trackEpisode(tr Tracker, rewards []float64) {
	obs := mat.NewVecDense(1, nil)
	tr.Track(ts.New(ts.First, 0, 1, obs, 0))

	for i, r := range rewards {
		stepType := ts.Mid
		if i == len(rewards)-1 {
			stepType = ts.Last
		}
		tr.Track(ts.New(stepType, r, 1, obs, i+1))
	}
}

func TestReturnRecordsEpisodicReturns(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.bin")
	tr := NewReturn(filename)

	trackEpisode(tr, []float64{1, 2, 3})
	trackEpisode(tr, []float64{-0.1, -0.1, 200})

	tr.Save()
	data := LoadData(filename)

	want := []float64{6, 199.8}
	if len(data) != len(want) {
		t.Fatalf("expected %v returns, got %v", len(want), len(data))
	}
	for i := range want {
		if diff := data[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("episode %v: expected return %v, got %v", i, want[i],
				data[i])
		}
	}
}

func TestReturnDiscardsUnfinishedEpisode(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.bin")
	tr := NewReturn(filename)

	trackEpisode(tr, []float64{1, 1})

	// A second episode starts but never finishes
	obs := mat.NewVecDense(1, nil)
	tr.Track(ts.New(ts.First, 0, 1, obs, 0))
	tr.Track(ts.New(ts.Mid, 50, 1, obs, 1))

	tr.Save()
	data := LoadData(filename)
	if len(data) != 1 {
		t.Fatalf("expected 1 return, got %v", len(data))
	}
	if data[0] != 2 {
		t.Errorf("expected return 2, got %v", data[0])
	}
}

func TestReturnPanicsOnNonSequentialTimesteps(t *testing.T) {
	tr := NewReturn("unused.bin")
	obs := mat.NewVecDense(1, nil)

	tr.Track(ts.New(ts.First, 0, 1, obs, 0))

	defer func() {
		if recover() == nil {
			t.Error("expected Track to panic on a skipped timestep")
		}
	}()
	tr.Track(ts.New(ts.Mid, 1, 1, obs, 2))
}

func TestEpisodeLengthRecordsFinishedEpisodes(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "lengths.bin")
	tr := NewEpisodeLength(filename)

	trackEpisode(tr, []float64{1, 1, 1})
	trackEpisode(tr, []float64{1})
	tr.Save()

	file, err := os.Open(filename)
	if err != nil {
		t.Fatalf("could not open saved lengths: %v", err)
	}
	defer file.Close()

	var lengths []int
	if err := gob.NewDecoder(file).Decode(&lengths); err != nil {
		t.Fatalf("could not decode saved lengths: %v", err)
	}

	want := []int{3, 1}
	if len(lengths) != len(want) {
		t.Fatalf("expected %v lengths, got %v", len(want), len(lengths))
	}
	for i := range want {
		if lengths[i] != want[i] {
			t.Errorf("episode %v: expected length %v, got %v", i, want[i],
				lengths[i])
		}
	}
}
