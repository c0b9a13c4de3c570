// Package aggregator builds the per-user/host/domain side-tables and the
// grouped edge/hourly-count frames the risk engines and GraphWriter consume.
// Each table is a struct-of-slices rather than a generic dataframe.
package aggregator

import (
	"time"

	"github.com/tomtom215/adgraph/internal/extractor"
)

// EdgeKey identifies one row of EdgeSummary/EdgeSummaryByDate (the
// seven-tuple that event_set_bydate groups by, with or without the hour key).
type EdgeKey struct {
	EventID     extractor.EventID
	HostOrIP    string
	User        string
	LogonType   int8
	StatusHex   string
	AuthPackage string
}

// EdgeKeyByDate adds the hour-bucket key event_set_bydate groups on.
type EdgeKeyByDate struct {
	EdgeKey
	HourEpoch int64
}

// EdgeSummary is the deduplicated, edgeless table PageRank's graph is built
// from (event_set in step 3).
type EdgeSummary struct {
	Counts map[EdgeKey]int
}

// EdgeSummaryByDate is the hour-bucketed table GraphWriter's Event edges
// come from (event_set_bydate, step 2).
type EdgeSummaryByDate struct {
	Counts map[EdgeKeyByDate]int
}

// HourlyCountKey identifies one row of the per-user hourly count frame
// (count_set, step 4).
type HourlyCountKey struct {
	HourEpoch int64
	EventID   extractor.EventID
	User      string
}

// HourlyCounts is the frame ChangeFinder's tensor is built from.
type HourlyCounts struct {
	Counts map[HourlyCountKey]int
}

// Tables is the full output of Aggregator.Build.
type Tables struct {
	Events   []extractor.AuthEvent
	MLEvents []extractor.MLEvent

	EdgeSet       EdgeSummary
	EdgeSetByDate EdgeSummaryByDate
	HourlySet     HourlyCounts

	Usernames     []string
	Domains       []string
	DomainPairs   map[string]map[string]bool // user -> set of domains
	SIDs          map[string]string          // user -> sid
	NTLMUsers     map[string]bool
	Hosts         map[string]string // hostname -> ip, for reverse lookup in GraphWriter
	SpanHours     int
	StartTime     time.Time
	EndTime       time.Time
}

func hourBucket(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}
