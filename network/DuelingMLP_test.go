package network

import (
	"testing"

	G "gorgonia.org/gorgonia"
)

func newTestNet(t *testing.T, batch int, init G.InitWFn) NeuralNet {
	t.Helper()
	g := G.NewGraph()
	net, err := NewDueling(20, batch, 8, 32, 16, 2, g, init)
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}
	return net
}

func TestNewDuelingValidation(t *testing.T) {
	g := G.NewGraph()
	if _, err := NewDueling(20, 1, 8, 32, 16, 0, g,
		G.GlorotU(1.0)); err == nil {
		t.Error("expected an error for zero reasoning blocks")
	}

	g = G.NewGraph()
	if _, err := NewDueling(0, 1, 8, 32, 16, 2, g,
		G.GlorotU(1.0)); err == nil {
		t.Error("expected an error for zero input features")
	}
}

func TestLearnablesDeterministicOrder(t *testing.T) {
	net := newTestNet(t, 1, G.GlorotU(1.0))
	clone, err := net.CloneWithBatch(16)
	if err != nil {
		t.Fatalf("could not clone network: %v", err)
	}

	learnables := net.Learnables()
	cloneLearnables := clone.Learnables()
	if len(learnables) != len(cloneLearnables) {
		t.Fatalf("expected %v learnables in the clone, got %v",
			len(learnables), len(cloneLearnables))
	}

	// 1 embedding + 2 blocks + 3 heads of 2 layers, a weight and a bias
	// each
	if want := 2 * (1 + 2 + 3*2); len(learnables) != want {
		t.Errorf("expected %v learnables, got %v", want, len(learnables))
	}

	for i := range learnables {
		if learnables[i].Name() != cloneLearnables[i].Name() {
			t.Errorf("learnable %v: order mismatch: %v != %v", i,
				learnables[i].Name(), cloneLearnables[i].Name())
		}
	}
}

func TestCloneWithBatchCopiesWeights(t *testing.T) {
	net := newTestNet(t, 1, G.GlorotU(1.0))
	clone, err := net.CloneWithBatch(16)
	if err != nil {
		t.Fatalf("could not clone network: %v", err)
	}

	if clone.BatchSize() != 16 {
		t.Errorf("expected clone batch size 16, got %v", clone.BatchSize())
	}
	if clone.Features() != net.Features() {
		t.Errorf("expected clone features %v, got %v", net.Features(),
			clone.Features())
	}
	if clone.Outputs() != net.Outputs() {
		t.Errorf("expected clone outputs %v, got %v", net.Outputs(),
			clone.Outputs())
	}

	sourceLearnables := net.Learnables()
	for i, learnable := range clone.Learnables() {
		want := sourceLearnables[i].Value().Data().([]float64)
		got := learnable.Value().Data().([]float64)
		for j := range want {
			if want[j] != got[j] {
				t.Fatalf("learnable %v differs from its source at %v", i, j)
			}
		}
	}
}

func TestSetCopiesWithoutAliasing(t *testing.T) {
	source := newTestNet(t, 1, G.GlorotU(1.0))
	dest := newTestNet(t, 1, G.Zeroes())

	if err := dest.Set(source); err != nil {
		t.Fatalf("could not set weights: %v", err)
	}

	sourceLearnables := source.Learnables()
	for i, learnable := range dest.Learnables() {
		want := sourceLearnables[i].Value().Data().([]float64)
		got := learnable.Value().Data().([]float64)
		for j := range want {
			if want[j] != got[j] {
				t.Fatalf("learnable %v was not copied", i)
			}
		}

		// A copy, not an alias
		if &want[0] == &got[0] {
			t.Fatalf("learnable %v aliases its source", i)
		}
	}
}

func TestForwardPassShapes(t *testing.T) {
	net := newTestNet(t, 1, G.Zeroes())
	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()

	input := make([]float64, 20)
	if err := net.SetInput(input); err != nil {
		t.Fatalf("could not set input: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run forward pass: %v", err)
	}
	defer vm.Reset()

	output := net.Output()[0]
	if shape := output.Shape(); shape[0] != 1 || shape[1] != 8 {
		t.Errorf("expected action value shape (1, 8), got %v", shape)
	}

	// Zero weights predict zero action values
	for i, v := range output.Data().([]float64) {
		if v != 0 {
			t.Errorf("expected zero action value at %v, got %v", i, v)
		}
	}

	aux, ok := net.(AuxPredictor)
	if !ok {
		t.Fatal("expected the network to predict next observations")
	}
	if shape := aux.AuxOutput().Shape(); shape[0] != 1 || shape[1] != 20 {
		t.Errorf("expected next state prediction shape (1, 20), got %v",
			shape)
	}
}
