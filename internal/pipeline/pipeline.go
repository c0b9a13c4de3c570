// Package pipeline orchestrates EventSource -> Extractor -> Aggregator ->
// {ChangeFinder, HMMEngine, PageRank} -> GraphWriter, with staged
// initialization logging at each boundary.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/google/uuid"

	"github.com/tomtom215/adgraph/internal/aggregator"
	"github.com/tomtom215/adgraph/internal/changefinder"
	"github.com/tomtom215/adgraph/internal/eventsource"
	"github.com/tomtom215/adgraph/internal/extractor"
	"github.com/tomtom215/adgraph/internal/graphsink"
	"github.com/tomtom215/adgraph/internal/graphwriter"
	"github.com/tomtom215/adgraph/internal/hmm"
	"github.com/tomtom215/adgraph/internal/logging"
	"github.com/tomtom215/adgraph/internal/metrics"
	"github.com/tomtom215/adgraph/internal/pagerank"
)

const recordTopic = "adgraph.records"

// Config carries the resolved run parameters a single pipeline invocation needs.
type Config struct {
	EVTXFiles      []string
	XMLFiles       []string
	TimezoneOffset time.Duration
	From, To       time.Time
	Delete         bool
	Learn          bool
	ModelPath      string
}

// Run executes one full pass: ingest every input file, extract, aggregate,
// score, and write the resulting graph to sink.
func Run(ctx context.Context, cfg Config, sink graphsink.Sink) error {
	corrID := logging.GenerateCorrelationID()
	ctx = logging.ContextWithCorrelationID(ctx, corrID)
	log := logging.Ctx(ctx)

	if cfg.Delete {
		log.Warn().Msg("pipeline: --delete requested, wiping sink before run")
		if err := sink.Reset(ctx); err != nil {
			return fmt.Errorf("pipeline: reset sink: %w", err)
		}
	}

	start := time.Now()
	result, err := ingest(ctx, cfg)
	if err != nil {
		return err
	}
	metrics.PipelineDuration.WithLabelValues("ingest").Observe(time.Since(start).Seconds())

	aggStart := time.Now()
	tables := aggregator.Build(result.Events, result.MLEvents, result.Facts)
	metrics.PipelineDuration.WithLabelValues("aggregate").Observe(time.Since(aggStart).Seconds())

	cfStart := time.Now()
	cfResult := changefinder.Run(tables, changefinder.DefaultParams())
	metrics.PipelineDuration.WithLabelValues("changefinder").Observe(time.Since(cfStart).Seconds())

	hmmStart := time.Now()
	detected, err := runHMM(cfg, result.MLEvents)
	if err != nil {
		return err
	}
	metrics.PipelineDuration.WithLabelValues("hmm").Observe(time.Since(hmmStart).Seconds())

	prStart := time.Now()
	admins := make(map[string]bool)
	for user, uf := range result.Facts.Users {
		if uf.IsAdmin {
			admins[user] = true
		}
	}
	prResult := pagerank.Run(tables.EdgeSet, pagerank.Signals{
		Admins:   admins,
		NTLM:     tables.NTLMUsers,
		HMM:      detected,
		CFScores: cfResult.CF,
	})
	metrics.PipelineDuration.WithLabelValues("pagerank").Observe(time.Since(prStart).Seconds())

	writeStart := time.Now()
	if err := writeGraph(ctx, sink, tables, result.Facts, graphwriter.Scores{
		PageRank:     prResult,
		ChangeFinder: cfResult,
		HMMDetected:  detected,
	}); err != nil {
		return err
	}
	metrics.PipelineDuration.WithLabelValues("graphwrite").Observe(time.Since(writeStart).Seconds())

	log.Info().
		Dur("total", time.Since(start)).
		Int("events", len(result.Events)).
		Int("users", len(tables.Usernames)).
		Msg("pipeline: run complete")
	return nil
}

// writeGraph commits the graph through a circuit breaker: a flaky
// graph-sink connection trips the breaker after five consecutive failures
// instead of hammering it on every subsequent run.
var sinkBreaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
	Name:        "graph-sink",
	MaxRequests: 1,
	Interval:    30 * time.Second,
	Timeout:     10 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	},
})

func writeGraph(ctx context.Context, sink graphsink.Sink, tables *aggregator.Tables, facts *extractor.Facts, scores graphwriter.Scores) error {
	_, err := sinkBreaker.Execute(func() (struct{}, error) {
		return struct{}{}, graphwriter.Write(ctx, sink, tables, facts, scores)
	})
	if err != nil {
		return fmt.Errorf("pipeline: write graph: %w", err)
	}
	return nil
}

// ingest reads every configured EVTX/XML file through a Watermill gochannel
// pub/sub conduit, extracting each record as it arrives. The conduit is kept
// synchronous: every file's records are published and drained before the
// next file starts, so the pipeline stays single-threaded end to end.
func ingest(ctx context.Context, cfg Config) (extractor.Result, error) {
	var out extractor.Result
	ext := extractor.New(extractor.Config{
		TimezoneOffset: cfg.TimezoneOffset,
		From:           cfg.From,
		To:             cfg.To,
	})

	logger := watermill.NopLogger{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, logger)

	messages, err := pubSub.Subscribe(ctx, recordTopic)
	if err != nil {
		return out, fmt.Errorf("pipeline: subscribe: %w", err)
	}

	done := make(chan struct{})
	var stopped atomic.Bool
	go func() {
		defer close(done)
		for msg := range messages {
			outcome := ext.Feed(msg.Payload, &out)
			msg.Ack()
			if outcome == extractor.OutcomeStopFile {
				stopped.Store(true)
			}
		}
	}()

	for _, path := range cfg.EVTXFiles {
		if err := ingestFile(ctx, pubSub, path, &stopped); err != nil {
			_ = pubSub.Close()
			<-done
			return out, err
		}
		stopped.Store(false)
	}
	for _, path := range cfg.XMLFiles {
		if err := ingestFile(ctx, pubSub, path, &stopped); err != nil {
			_ = pubSub.Close()
			<-done
			return out, err
		}
		stopped.Store(false)
	}

	if err := pubSub.Close(); err != nil {
		logging.Warn().Err(err).Msg("pipeline: close conduit")
	}
	<-done

	if err := ext.Finish(&out); err != nil {
		return out, err
	}
	return out, nil
}

func ingestFile(ctx context.Context, pub message.Publisher, path string, stopped *atomic.Bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("pipeline: input %s: %w", path, err)
	}

	src, err := eventsource.Open(path)
	if err != nil {
		return fmt.Errorf("pipeline: open %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	for {
		if stopped.Load() {
			break
		}
		rec, ok, err := src.Next()
		if err != nil {
			return fmt.Errorf("pipeline: read %s: %w", path, err)
		}
		if !ok {
			break
		}
		metrics.RecordsRead.WithLabelValues(src.Format.String()).Inc()
		msg := message.NewMessage(uuid.NewString(), rec)
		if err := pub.Publish(recordTopic, msg); err != nil {
			return fmt.Errorf("pipeline: publish record: %w", err)
		}
	}
	return nil
}

// runHMM either fits a fresh model from the extracted sequences (--learn) or
// loads a previously persisted one, falling back to an untrained random
// model when none exists yet, then decodes every (user,host,day) bucket.
func runHMM(cfg Config, mlEvents []extractor.MLEvent) (map[string]bool, error) {
	var model *hmm.Model
	if cfg.Learn {
		sequences := hmm.TrainingSequences(mlEvents)
		model = hmm.Fit(sequences, hmm.DefaultParams(), nil)
		if cfg.ModelPath != "" {
			if err := hmm.Save(model, cfg.ModelPath); err != nil {
				return nil, fmt.Errorf("pipeline: save hmm model: %w", err)
			}
		}
	} else {
		loaded, err := hmm.Load(cfg.ModelPath)
		if err != nil {
			logging.Warn().Err(err).Msg("pipeline: no persisted hmm model, using fresh random model")
			model = hmm.NewRandomModel(0)
		} else {
			model = loaded
		}
	}

	_, detected := hmm.DecodeAll(model, mlEvents)
	return detected, nil
}
