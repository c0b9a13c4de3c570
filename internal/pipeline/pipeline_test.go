package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/adgraph/internal/extractor"
)

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestIngestFilePublishesOneMessagePerRecord(t *testing.T) {
	path := writeFixture(t, "dump.xml", `<Event><System><EventID>4624</EventID></System></Event><Event><System><EventID>4625</EventID></System></Event>`)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	ctx := context.Background()
	messages, err := pubSub.Subscribe(ctx, recordTopic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var count atomic.Int32
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for msg := range messages {
			count.Add(1)
			msg.Ack()
		}
	}()

	var stopped atomic.Bool
	if err := ingestFile(ctx, pubSub, path, &stopped); err != nil {
		t.Fatalf("ingestFile: %v", err)
	}
	if err := pubSub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-drained

	if got := count.Load(); got != 2 {
		t.Errorf("published %d messages, want 2", got)
	}
}

func TestIngestFileMissingInputReturnsError(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	var stopped atomic.Bool
	err := ingestFile(context.Background(), pubSub, filepath.Join(t.TempDir(), "missing.evtx"), &stopped)
	if err == nil {
		t.Fatal("expected an error for a nonexistent input file")
	}
}

func TestIngestEndToEndExtractsEvents(t *testing.T) {
	path := writeFixture(t, "dump.xml", `<Event><System><EventID>4624</EventID><TimeCreated SystemTime="2026-01-01T00:00:00Z"/></System>`+
		`<EventData><Data Name="TargetUserName">alice</Data><Data Name="TargetDomainName">EXAMPLE</Data>`+
		`<Data Name="IpAddress">10.0.0.5</Data><Data Name="LogonType">3</Data></EventData></Event>`)

	result, err := ingest(context.Background(), Config{XMLFiles: []string{path}})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Events) == 0 {
		t.Error("expected at least one extracted event")
	}
}

func TestRunHMMFallsBackToRandomModelWithoutPersistedOne(t *testing.T) {
	detected, err := runHMM(Config{Learn: false, ModelPath: ""}, []extractor.MLEvent{})
	if err != nil {
		t.Fatalf("runHMM: %v", err)
	}
	if detected == nil {
		t.Error("expected a non-nil detected map even with no events")
	}
}

func TestRunHMMLearnSavesModel(t *testing.T) {
	modelPath := filepath.Join(t.TempDir(), "model.json")
	_, err := runHMM(Config{Learn: true, ModelPath: modelPath}, []extractor.MLEvent{})
	if err != nil {
		t.Fatalf("runHMM: %v", err)
	}
	if _, err := os.Stat(modelPath); err != nil {
		t.Errorf("expected a model file to be saved at %s: %v", modelPath, err)
	}
}
