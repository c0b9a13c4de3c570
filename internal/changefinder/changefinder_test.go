package changefinder

import (
	"testing"
	"time"

	"github.com/tomtom215/adgraph/internal/aggregator"
	"github.com/tomtom215/adgraph/internal/extractor"
)

func buildTables(t *testing.T, counts map[extractor.EventID][]int, start time.Time) *aggregator.Tables {
	t.Helper()
	tab := &aggregator.Tables{
		Usernames: []string{"alice@"},
		HourlySet: aggregator.HourlyCounts{Counts: make(map[aggregator.HourlyCountKey]int)},
		StartTime: start,
	}
	maxHour := 0
	for id, series := range counts {
		for hi, c := range series {
			if c == 0 {
				continue
			}
			k := aggregator.HourlyCountKey{
				HourEpoch: start.Add(time.Duration(hi) * time.Hour).Unix(),
				EventID:   id,
				User:      "alice@",
			}
			tab.HourlySet.Counts[k] = c
			if hi > maxHour {
				maxHour = hi
			}
		}
	}
	tab.SpanHours = maxHour
	return tab
}

func TestRunProducesOneTimelineGroupPerUser(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make([]int, 10)
	series[9] = 50 // a late spike
	tab := buildTables(t, map[extractor.EventID][]int{extractor.EventLogonSuccess: series}, start)

	res := Run(tab, DefaultParams())
	if len(res.Users) != 1 || res.Users[0] != "alice@" {
		t.Fatalf("expected 1 user alice@, got %v", res.Users)
	}
	if len(res.Timelines) != 6 {
		t.Fatalf("expected 6 timeline rows per user, got %d", len(res.Timelines))
	}
	if _, ok := res.Detects["alice@"]; !ok {
		t.Fatal("expected a detect series for alice@")
	}
	if res.CF["alice@"] <= 0 {
		t.Error("expected a nonzero change-point score after a spike")
	}
}

func TestRunHandlesNoUsers(t *testing.T) {
	tab := &aggregator.Tables{
		HourlySet: aggregator.HourlyCounts{Counts: map[aggregator.HourlyCountKey]int{}},
	}
	res := Run(tab, DefaultParams())
	if len(res.Users) != 0 {
		t.Errorf("expected no users, got %v", res.Users)
	}
}

func TestChannelOfKnownAndUnknown(t *testing.T) {
	if channelOf(extractor.EventLogonSuccess) < 0 {
		t.Error("expected EventLogonSuccess to map to a channel")
	}
	if channelOf(extractor.EventUserCreated) != -1 {
		t.Error("expected a non-tensor event id to map to -1")
	}
}

func TestMovingAverageSmooths(t *testing.T) {
	xs := []float64{0, 0, 0, 10, 0, 0}
	out := movingAverage(xs, 3)
	if len(out) != len(xs) {
		t.Fatalf("expected same length, got %d", len(out))
	}
	// the spike at index 3 should be spread over the following window.
	if out[3] <= out[0] {
		t.Errorf("expected smoothed value at the spike to exceed the baseline, got %v", out)
	}
}
