package metrics

import "testing"

func TestCountersIncrement(t *testing.T) {
	RecordsRead.WithLabelValues("xml").Inc()
	RecordsSkipped.WithLabelValues("xml_syntax").Inc()
	EventsExtracted.WithLabelValues("4624").Inc()
	ValidationFailures.WithLabelValues("username").Inc()
	GraphWrites.WithLabelValues("Username").Inc()
	PipelineDuration.WithLabelValues("ingest").Observe(0.5)

	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 6 {
		t.Errorf("expected all 6 metric families registered, got %d", len(families))
	}
}

func TestRegistryIsDedicated(t *testing.T) {
	if Registry == nil {
		t.Fatal("expected a non-nil dedicated registry")
	}
}
