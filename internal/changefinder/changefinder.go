// Package changefinder builds the per-user hourly count tensor
// and scores each user's series with a two-stage SDAR-based ChangeFinder:
// stage one fits an AR(order) model to the raw series to get an outlier
// score per hour, stage two smooths that score series over a moving window
// and fits a second AR model to it to get the final change-point score.
package changefinder

import (
	"math"
	"time"

	"github.com/tomtom215/adgraph/internal/aggregator"
	"github.com/tomtom215/adgraph/internal/extractor"
)

// TensorEventIDs are the six channels of the dense count tensor: the five
// logon-like events plus 4719. All six contribute to each user's summed
// series.
var TensorEventIDs = [6]extractor.EventID{
	extractor.EventLogonSuccess, extractor.EventLogonFailure,
	extractor.EventKerberosTGT, extractor.EventKerberosService,
	extractor.EventCredentialValidate, extractor.EventAuditPolicyChange,
}

// timelineEventIDs are the five per-event-id breakdown rows GraphWriter
// exposes alongside the summed series ("counts, counts4624,
// counts4625, counts4768, counts4769, counts4776") -- 4719 feeds the sum but
// is not broken out individually, matching the original's timeline output.
var timelineEventIDs = [5]extractor.EventID{
	extractor.EventLogonSuccess, extractor.EventLogonFailure,
	extractor.EventKerberosTGT, extractor.EventKerberosService,
	extractor.EventCredentialValidate,
}

// Params configures the SDAR ChangeFinder (r=0.04, order=1, smooth=5).
type Params struct {
	R      float64
	Order  int
	Smooth int
}

// DefaultParams returns r=0.04, order=1, smooth=5.
func DefaultParams() Params {
	return Params{R: 0.04, Order: 1, Smooth: 5}
}

// Result is the per-run output of Run.
type Result struct {
	Users     []string
	Timelines [][]float64 // 6*len(Users) rows, each len(H+1)
	Detects   map[string][]float64
	CF        map[string]float64 // cf[user] = max(detects[user])
}

// Run builds the tensor from t.HourlySet and scores every user.
func Run(t *aggregator.Tables, params Params) Result {
	users := t.Usernames
	h := t.SpanHours + 1

	// tensor[channel][user][hour]
	tensor := make([][][]float64, 6)
	for c := range tensor {
		tensor[c] = make([][]float64, len(users))
		for u := range tensor[c] {
			tensor[c][u] = make([]float64, h)
		}
	}

	userIndex := make(map[string]int, len(users))
	for i, u := range users {
		userIndex[u] = i
	}

	startHour := t.StartTime.Truncate(time.Hour).Unix()

	for key, count := range t.HourlySet.Counts {
		ui, ok := userIndex[key.User]
		if !ok {
			continue
		}
		channel := channelOf(key.EventID)
		if channel < 0 {
			continue
		}
		hourIdx := int((key.HourEpoch - startHour) / 3600)
		if hourIdx < 0 || hourIdx >= h {
			continue
		}
		tensor[channel][ui][hourIdx] += float64(count)
	}

	// Summed series per user (collapse the event-id axis).
	summed := make([][]float64, len(users))
	for ui := range users {
		summed[ui] = make([]float64, h)
		for c := 0; c < 6; c++ {
			for hi := 0; hi < h; hi++ {
				summed[ui][hi] += tensor[c][ui][hi]
			}
		}
	}

	// Cross-user hourly mean of the summed series, used to warm up each
	// user's detector.
	colMean := make([]float64, h)
	if len(users) > 0 {
		for hi := 0; hi < h; hi++ {
			var sum float64
			for ui := range users {
				sum += summed[ui][hi]
			}
			colMean[hi] = sum / float64(len(users))
		}
	}

	res := Result{Users: users, Detects: make(map[string][]float64), CF: make(map[string]float64)}
	res.Timelines = make([][]float64, 0, 6*len(users))
	for ui, user := range users {
		res.Timelines = append(res.Timelines, summed[ui])
		for _, id := range timelineEventIDs {
			res.Timelines = append(res.Timelines, tensor[channelOf(id)][ui])
		}

		scores := scoreSeries(colMean, summed[ui], params)
		res.Detects[user] = scores
		max := 0.0
		for _, s := range scores {
			if s > max {
				max = s
			}
		}
		res.CF[user] = max
	}
	return res
}

func channelOf(id extractor.EventID) int {
	for i, want := range TensorEventIDs {
		if id == want {
			return i
		}
	}
	return -1
}

// scoreSeries runs the two-stage SDAR ChangeFinder over series, after
// priming stage one on warmup (the cross-user hourly mean, ).
func scoreSeries(warmup, series []float64, p Params) []float64 {
	stage1 := newSDAR(p.R, p.Order)
	for _, w := range warmup {
		stage1.prime(w)
	}

	raw := make([]float64, len(series))
	for i, x := range series {
		raw[i] = stage1.score(x)
	}

	smoothed := movingAverage(raw, p.Smooth)

	stage2 := newSDAR(p.R, p.Order)
	out := make([]float64, len(smoothed))
	for i, x := range smoothed {
		out[i] = round2(stage2.score(x))
	}
	return out
}

func movingAverage(xs []float64, window int) []float64 {
	if window <= 1 {
		return xs
	}
	out := make([]float64, len(xs))
	for i := range xs {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for j := start; j <= i; j++ {
			sum += xs[j]
		}
		out[i] = sum / float64(i-start+1)
	}
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
