package pagerank

import (
	"testing"

	"github.com/tomtom215/adgraph/internal/aggregator"
	"github.com/tomtom215/adgraph/internal/extractor"
)

func edgeSummary(pairs ...[2]string) aggregator.EdgeSummary {
	s := aggregator.EdgeSummary{Counts: make(map[aggregator.EdgeKey]int)}
	for _, p := range pairs {
		s.Counts[aggregator.EdgeKey{User: p[0], HostOrIP: p[1], EventID: extractor.EventLogonSuccess}]++
	}
	return s
}

func TestRunNormalizesToZeroOne(t *testing.T) {
	edges := edgeSummary([2]string{"alice@", "10.0.0.5"}, [2]string{"bob@", "10.0.0.5"}, [2]string{"bob@", "10.0.0.6"})
	res := Run(edges, Signals{})
	if len(res) == 0 {
		t.Fatal("expected nonempty result")
	}
	min, max := 2.0, -1.0
	for _, v := range res {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min != 0 {
		t.Errorf("expected min rank to normalize to 0, got %v", min)
	}
	if max != 1 {
		t.Errorf("expected max rank to normalize to 1, got %v", max)
	}
}

func TestRunEmptyGraph(t *testing.T) {
	res := Run(aggregator.EdgeSummary{Counts: map[aggregator.EdgeKey]int{}}, Signals{})
	if len(res) != 0 {
		t.Errorf("expected empty result for empty graph, got %v", res)
	}
}

func TestBaseDampingAdminLowerThanRegularUser(t *testing.T) {
	admins := map[string]bool{"root@": true}
	dAdmin := baseDamping("root@", Signals{Admins: admins})
	dUser := baseDamping("alice@", Signals{})
	if dAdmin >= dUser {
		t.Errorf("expected admin damping (%v) to be lower than a regular user's (%v)", dAdmin, dUser)
	}
}

func TestBaseDampingHMMAndNTLMReduceDamping(t *testing.T) {
	base := baseDamping("alice@", Signals{})
	withHMM := baseDamping("alice@", Signals{HMM: map[string]bool{"alice@": true}})
	withNTLM := baseDamping("alice@", Signals{NTLM: map[string]bool{"alice@": true}})
	if withHMM >= base {
		t.Error("expected HMM detection to reduce damping")
	}
	if withNTLM >= base {
		t.Error("expected NTLM usage to reduce damping")
	}
}

func TestIsUserVertex(t *testing.T) {
	if !isUserVertex("alice@") {
		t.Error("expected a trailing '@' to mark a user vertex")
	}
	if isUserVertex("10.0.0.5") {
		t.Error("expected an IP to not be a user vertex")
	}
}

func TestSingleVertexClassAvoidsDivideByZero(t *testing.T) {
	edges := aggregator.EdgeSummary{Counts: map[aggregator.EdgeKey]int{
		{User: "alice@", HostOrIP: "10.0.0.5", EventID: extractor.EventLogonSuccess}: 1,
	}}
	res := Run(edges, Signals{})
	for _, v := range res {
		if v != 0 && v != 1 {
			t.Errorf("2-vertex graph should normalize to exactly {0,1}, got %v", v)
		}
	}
}
