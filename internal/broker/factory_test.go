package broker

import (
	"testing"

	"github.com/riftlabs/controlplane/internal/scope"
)

func scopeFor(brokerName string) scope.Scope {
	return scope.Scope{Env: scope.EnvPaper, Broker: brokerName, Market: "us-equity", Region: "na"}
}

func layoutFor(t *testing.T) scope.Layout {
	t.Helper()
	return scope.NewLayout(t.TempDir(), scopeFor("stub"))
}

func TestFactoryBuildsSimulatedAdapterForStub(t *testing.T) {
	a, err := New(scopeFor("stub"), layoutFor(t), 5000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Name() != "stub" {
		t.Errorf("Name() = %q, want %q", a.Name(), "stub")
	}
}

func TestFactoryBuildsSimulatedAdapterForNSESim(t *testing.T) {
	a, err := New(scopeFor("nse_simulator"), layoutFor(t), 5000)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Name() != "nsesim" {
		t.Errorf("Name() = %q, want %q", a.Name(), "nsesim")
	}
}
