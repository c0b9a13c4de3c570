// Package main is the entry point for adgraph, a command-line tool that
// turns Active Directory authentication event logs (EVTX or exported XML)
// into a scored property graph: user/host/domain nodes annotated with
// PageRank, ChangeFinder, and HMM risk signals, and logon/group/policy
// edges between them.
//
// # Application Architecture
//
// A single run initializes components in this order:
//
//  1. Configuration: layered defaults, optional YAML file, environment (Koanf v2)
//  2. Logging: zerolog, console or JSON
//  3. Graph sink: an embedded DuckDB file
//  4. Pipeline: EventSource -> Extractor -> Aggregator -> risk engines -> GraphWriter
//
// # Example usage
//
//	adgraph --evtx security.evtx --timezone 0
//	adgraph --xml export1.xml --xml export2.xml --delete
//	adgraph --learn --evtx training.evtx --model adgraph-hmm.model
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomtom215/adgraph/internal/config"
	"github.com/tomtom215/adgraph/internal/graphsink/duckdbsink"
	"github.com/tomtom215/adgraph/internal/logging"
	"github.com/tomtom215/adgraph/internal/pipeline"
)

// repeatedFlag collects the value of a flag passed more than once, for
// --evtx/--xml which each accept multiple input files.
type repeatedFlag []string

func (r *repeatedFlag) String() string { return strings.Join(*r, ",") }
func (r *repeatedFlag) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func main() {
	var (
		evtxFiles   repeatedFlag
		xmlFiles    repeatedFlag
		sinkPath    = flag.String("sink", "adgraph.duckdb", "path to the DuckDB graph sink file")
		timezone    = flag.Int("timezone", 0, "hours added to every parsed event timestamp")
		from        = flag.String("from", "", "only extract events at or after this time (RFC3339)")
		to          = flag.String("to", "", "only extract events at or before this time (RFC3339)")
		deleteFirst = flag.Bool("delete", false, "wipe the graph sink before this run")
		learn       = flag.Bool("learn", false, "fit a new HMM model from the input instead of decoding with a persisted one")
		modelPath   = flag.String("model", "", "path to the persisted HMM model (defaults to config model_path)")
		logLevel    = flag.String("log-level", "", "override the configured log level")
		logFormat   = flag.String("log-format", "", "override the configured log format (console|json)")
	)
	flag.Var(&evtxFiles, "evtx", "path to an EVTX file (repeatable)")
	flag.Var(&xmlFiles, "xml", "path to an exported XML dump (repeatable)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("adgraph: failed to load configuration")
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	if *logLevel != "" {
		logCfg.Level = *logLevel
	}
	if *logFormat != "" {
		logCfg.Format = *logFormat
	}
	logging.Init(logCfg)
	log := logging.L()

	if len(evtxFiles) == 0 && len(xmlFiles) == 0 {
		log.Fatal().Msg("adgraph: at least one --evtx or --xml input is required")
	}

	fromTime, err := parseOptionalTime(*from)
	if err != nil {
		log.Fatal().Err(err).Msg("adgraph: invalid --from")
	}
	toTime, err := parseOptionalTime(*to)
	if err != nil {
		log.Fatal().Err(err).Msg("adgraph: invalid --to")
	}

	resolvedModelPath := cfg.ModelPath
	if *modelPath != "" {
		resolvedModelPath = *modelPath
	}

	sink, err := duckdbsink.Open(*sinkPath)
	if err != nil {
		log.Fatal().Err(err).Msg("adgraph: failed to open graph sink")
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn().Err(err).Msg("adgraph: error closing graph sink")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCfg := pipeline.Config{
		EVTXFiles:      evtxFiles,
		XMLFiles:       xmlFiles,
		TimezoneOffset: time.Duration(*timezone) * time.Hour,
		From:           fromTime,
		To:             toTime,
		Delete:         *deleteFirst || cfg.Delete,
		Learn:          *learn,
		ModelPath:      resolvedModelPath,
	}

	if err := pipeline.Run(ctx, runCfg, sink); err != nil {
		log.Fatal().Err(err).Msg("adgraph: pipeline run failed")
	}
}

func parseOptionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", raw, err)
	}
	return t, nil
}
