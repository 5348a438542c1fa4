package policy

import (
	"testing"

	G "gorgonia.org/gorgonia"

	"github.com/SaifPunjwani/Reasoning-Research/network"
)

func runNet(t *testing.T, epsilon float64) (*EGreedyDueling, func()) {
	t.Helper()

	g := G.NewGraph()
	net, err := network.NewDueling(4, 1, 8, 16, 8, 1, g, G.Zeroes())
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}

	p, err := NewEGreedyDueling(epsilon, net, 17)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}

	vm := G.NewTapeMachine(g)
	if err := net.SetInput(make([]float64, 4)); err != nil {
		t.Fatalf("could not set input: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run network: %v", err)
	}

	return p.(*EGreedyDueling), func() { vm.Close() }
}

func TestGreedySelectsFirstMaximalAction(t *testing.T) {
	p, cleanup := runNet(t, 0.0)
	defer cleanup()

	// Zero weights tie all action values, and ties break toward the
	// lowest action code
	action, value := p.SelectAction()
	if got := action.AtVec(0); got != 0 {
		t.Errorf("expected action 0, got %v", got)
	}
	if value != 0 {
		t.Errorf("expected action value 0, got %v", value)
	}
}

func TestExploratoryActionsStayInRange(t *testing.T) {
	p, cleanup := runNet(t, 1.0)
	defer cleanup()

	for i := 0; i < 100; i++ {
		action, _ := p.SelectAction()
		if a := action.AtVec(0); a < 0 || a > 7 {
			t.Fatalf("selected out-of-range action %v", a)
		}
	}
}

func TestSetEpsilon(t *testing.T) {
	p, cleanup := runNet(t, 0.5)
	defer cleanup()

	if p.Epsilon() != 0.5 {
		t.Errorf("expected epsilon 0.5, got %v", p.Epsilon())
	}
	p.SetEpsilon(0.25)
	if p.Epsilon() != 0.25 {
		t.Errorf("expected epsilon 0.25, got %v", p.Epsilon())
	}
}

func TestNewEGreedyDuelingRejectsBatchedNetworks(t *testing.T) {
	g := G.NewGraph()
	net, err := network.NewDueling(4, 32, 8, 16, 8, 1, g, G.Zeroes())
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}

	if _, err := NewEGreedyDueling(0.1, net, 17); err == nil {
		t.Error("expected an error for a batched network")
	}
}
