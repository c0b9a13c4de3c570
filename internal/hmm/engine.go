package hmm

import (
	"sort"
	"time"

	"github.com/tomtom215/adgraph/internal/extractor"
)

// dayKey is a (user, host, calendar-day) grouping key.
type dayKey struct {
	user, host string
	day        string // "2006-01-02"
}

// groupByUserHostDay buckets MLEvents into ordered per-(user,host,day)
// sequences, keeping only sequences with length > 2. It iterates the
// distinct calendar dates actually present in the frame instead of
// stopping at the first gap.
func groupByUserHostDay(events []extractor.MLEvent) map[dayKey][]extractor.EventID {
	type bucket struct {
		ids  []extractor.EventID
		when []time.Time
	}
	buckets := make(map[dayKey]*bucket)
	for _, ev := range events {
		k := dayKey{user: ev.User, host: ev.HostOrIP, day: ev.When.Format("2006-01-02")}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.ids = append(b.ids, ev.EventID)
		b.when = append(b.when, ev.When)
	}

	out := make(map[dayKey][]extractor.EventID, len(buckets))
	for k, b := range buckets {
		idx := make([]int, len(b.ids))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(i, j int) bool { return b.when[idx[i]].Before(b.when[idx[j]]) })
		ordered := make([]extractor.EventID, len(idx))
		for i, v := range idx {
			ordered[i] = b.ids[v]
		}
		if len(ordered) > 2 {
			out[k] = ordered
		}
	}
	return out
}

// TrainingSequences returns the Baum-Welch training set: the symbol
// sequence for every (user, host, day) bucket of length > 2.
func TrainingSequences(events []extractor.MLEvent) []Sequence {
	grouped := groupByUserHostDay(events)
	seqs := make([]Sequence, 0, len(grouped))
	for _, ids := range grouped {
		seqs = append(seqs, ToSymbols(ids))
	}
	return seqs
}

// DecodeResult is one (user,host,day) decode outcome.
type DecodeResult struct {
	User, Host, Day string
	States          []int
	Anomalous       bool
}

// DecodeAll decodes every (user,host,day) bucket of length > 2 with m, and
// returns both the per-bucket results and the set of users flagged
// anomalous in any bucket ("Returns the set of detected users").
func DecodeAll(m *Model, events []extractor.MLEvent) ([]DecodeResult, map[string]bool) {
	grouped := groupByUserHostDay(events)
	results := make([]DecodeResult, 0, len(grouped))
	detected := make(map[string]bool)
	for k, ids := range grouped {
		seq := ToSymbols(ids)
		if len(seq) == 0 {
			continue
		}
		states := Decode(m, seq)
		anomalous := IsAnomalous(states)
		results = append(results, DecodeResult{User: k.user, Host: k.host, Day: k.day, States: states, Anomalous: anomalous})
		if anomalous {
			detected[k.user] = true
		}
	}
	return results, detected
}
