package expreplay

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/SaifPunjwani/Reasoning-Research/timestep"
)

const testFeatures int = 2
const testActions int = 3

func testTransition(base float64, action int, reward, discount float64,
	terminal bool) timestep.Transition {
	return timestep.Transition{
		State:     mat.NewVecDense(testFeatures, []float64{base, base + 1}),
		Action:    action,
		Reward:    reward,
		Discount:  discount,
		NextState: mat.NewVecDense(testFeatures, []float64{base + 2, base + 3}),
		Terminal:  terminal,
	}
}

func TestAddGrowsByTwoForNonTerminal(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 1, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	err = p.Add(testTransition(0, 1, 5.0, 0.99, false))
	if err != nil {
		t.Fatalf("could not add transition: %v", err)
	}
	if p.Capacity() != 2 {
		t.Errorf("expected a non-terminal add to insert 2 entries, got %v",
			p.Capacity())
	}

	// The hindsight duplicate carries the relabelled reward and a zero
	// discount
	if p.rewardCache[0] != 5.0 || p.rewardCache[1] != HindsightReward {
		t.Errorf("unexpected rewards: %v", p.rewardCache[:2])
	}
	if p.discountCache[0] != 0.99 || p.discountCache[1] != 0.0 {
		t.Errorf("unexpected discounts: %v", p.discountCache[:2])
	}
}

func TestAddGrowsByOneForTerminal(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 1, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	err = p.Add(testTransition(0, 1, 200.0, 0.0, true))
	if err != nil {
		t.Fatalf("could not add transition: %v", err)
	}
	if p.Capacity() != 1 {
		t.Errorf("expected a terminal add to insert 1 entry, got %v",
			p.Capacity())
	}
}

func TestRingEvictsOldestEntries(t *testing.T) {
	p, err := New(1, 4, testFeatures, testActions, 1, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	// Three non-terminal adds insert 6 entries into a 4-slot ring, so
	// the first two entries are evicted
	for i, reward := range []float64{10, 20, 30} {
		if err := p.Add(testTransition(float64(i), 0, reward, 0.99,
			false)); err != nil {
			t.Fatalf("could not add transition: %v", err)
		}
	}

	if p.Capacity() != 4 {
		t.Errorf("expected a full buffer of 4 entries, got %v", p.Capacity())
	}

	wantRewards := []float64{30, HindsightReward, 20, HindsightReward}
	for i, want := range wantRewards {
		if p.rewardCache[i] != want {
			t.Errorf("entry %v: expected reward %v, got %v", i, want,
				p.rewardCache[i])
		}
	}
}

func TestActionsStoredOneHot(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 1, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	if err := p.Add(testTransition(0, 2, 1.0, 0.99, true)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}

	want := []float64{0, 0, 1}
	for i, w := range want {
		if p.actionCache[i] != w {
			t.Errorf("expected one-hot action %v, got %v", want,
				p.actionCache[:testActions])
		}
	}
}

func TestAddValidation(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 1, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	badAction := testTransition(0, testActions, 1.0, 0.99, false)
	if err := p.Add(badAction); err == nil {
		t.Error("expected an error for an out-of-range action")
	}

	badFeatures := timestep.Transition{
		State:     mat.NewVecDense(testFeatures+1, nil),
		NextState: mat.NewVecDense(testFeatures+1, nil),
	}
	if err := p.Add(badFeatures); err == nil {
		t.Error("expected an error for an invalid observation size")
	}
}

func TestSampleErrors(t *testing.T) {
	p, err := New(4, 10, testFeatures, testActions, 2, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	_, _, _, _, _, _, _, err = p.Sample()
	if !IsEmptyBuffer(err) {
		t.Errorf("expected an empty buffer error, got %v", err)
	}

	if err := p.Add(testTransition(0, 0, 1.0, 0.0, true)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}
	_, _, _, _, _, _, _, err = p.Sample()
	if !IsInsufficientSamples(err) {
		t.Errorf("expected an insufficient samples error, got %v", err)
	}
}

func TestSampleWeightsNormalized(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 4, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := p.Add(testTransition(float64(i), i, float64(i), 0.99,
			false)); err != nil {
			t.Fatalf("could not add transition: %v", err)
		}
	}

	// Spread the priorities so the weights differ
	err = p.UpdatePriorities([]int{0, 1, 2, 3}, []float64{0.5, 2.0, 8.0, 1.0})
	if err != nil {
		t.Fatalf("could not update priorities: %v", err)
	}

	_, _, _, _, _, indices, weights, err := p.Sample()
	if err != nil {
		t.Fatalf("could not sample: %v", err)
	}

	maxWeight := 0.0
	for i, w := range weights {
		if w <= 0 || w > 1 {
			t.Errorf("weight %v out of range (0, 1]: %v", i, w)
		}
		if w > maxWeight {
			maxWeight = w
		}
	}
	if maxWeight != 1.0 {
		t.Errorf("expected the maximum weight to be exactly 1, got %v",
			maxWeight)
	}

	for _, index := range indices {
		if index < 0 || index >= p.Capacity() {
			t.Errorf("sampled index out of range: %v", index)
		}
	}
}

func TestSampleBatchesMatchSampledIndices(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 4, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := p.Add(testTransition(float64(10*i), i, float64(i), 0.99,
			false)); err != nil {
			t.Fatalf("could not add transition: %v", err)
		}
	}

	states, actions, rewards, discounts, nextStates, indices, _,
		err := p.Sample()
	if err != nil {
		t.Fatalf("could not sample: %v", err)
	}

	for i, index := range indices {
		for j := 0; j < testFeatures; j++ {
			if states[i*testFeatures+j] != p.stateCache[index*testFeatures+j] {
				t.Errorf("sampled state %v does not match entry %v", i, index)
			}
			if nextStates[i*testFeatures+j] !=
				p.nextStateCache[index*testFeatures+j] {
				t.Errorf("sampled next state %v does not match entry %v", i,
					index)
			}
		}
		for j := 0; j < testActions; j++ {
			if actions[i*testActions+j] !=
				p.actionCache[index*testActions+j] {
				t.Errorf("sampled action %v does not match entry %v", i, index)
			}
		}
		if rewards[i] != p.rewardCache[index] {
			t.Errorf("sampled reward %v does not match entry %v", i, index)
		}
		if discounts[i] != p.discountCache[index] {
			t.Errorf("sampled discount %v does not match entry %v", i, index)
		}
	}
}

func TestBetaAnnealsTowardOne(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 1, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}
	if err := p.Add(testTransition(0, 0, 1.0, 0.0, true)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}

	before := p.beta
	if _, _, _, _, _, _, _, err := p.Sample(); err != nil {
		t.Fatalf("could not sample: %v", err)
	}
	if p.beta != before+DefaultBetaIncrement {
		t.Errorf("expected beta %v, got %v", before+DefaultBetaIncrement,
			p.beta)
	}

	p.beta = 1.0 - DefaultBetaIncrement/2
	if _, _, _, _, _, _, _, err := p.Sample(); err != nil {
		t.Fatalf("could not sample: %v", err)
	}
	if p.beta != 1.0 {
		t.Errorf("expected beta to cap at 1, got %v", p.beta)
	}
}

func TestUpdatePriorities(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 1, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}
	if err := p.Add(testTransition(0, 0, 1.0, 0.99, false)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}

	err = p.UpdatePriorities([]int{0, 1}, []float64{-3.0, 0.0})
	if err != nil {
		t.Fatalf("could not update priorities: %v", err)
	}

	if got := p.priorities[0]; got != 3.0+PriorityFloor {
		t.Errorf("expected priority %v, got %v", 3.0+PriorityFloor, got)
	}
	if got := p.priorities[1]; got != PriorityFloor {
		t.Errorf("expected priority %v, got %v", PriorityFloor, got)
	}

	if err := p.UpdatePriorities([]int{5}, []float64{1.0}); err == nil {
		t.Error("expected an error for an out-of-range index")
	}
	if err := p.UpdatePriorities([]int{0}, []float64{1.0, 2.0}); err == nil {
		t.Error("expected an error for mismatched lengths")
	}
}

func TestNewEntriesGetMaxPriority(t *testing.T) {
	p, err := New(1, 10, testFeatures, testActions, 1, 92)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	if err := p.Add(testTransition(0, 0, 1.0, 0.0, true)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}
	if p.priorities[0] != 1.0 {
		t.Errorf("expected first entry at priority 1, got %v", p.priorities[0])
	}

	if err := p.UpdatePriorities([]int{0}, []float64{7.0}); err != nil {
		t.Fatalf("could not update priorities: %v", err)
	}
	if err := p.Add(testTransition(1, 0, 1.0, 0.0, true)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}

	want := 7.0 + PriorityFloor
	if math.Abs(p.priorities[1]-want) > 1e-12 {
		t.Errorf("expected new entry at max priority %v, got %v", want,
			p.priorities[1])
	}
}
