package aggregator

import (
	"time"

	"github.com/tomtom215/adgraph/internal/extractor"
	"github.com/tomtom215/adgraph/internal/logging"
)

// Build runs the six-step aggregation pipeline over the raw AuthEvent/
// MLEvent streams from the Extractor.
func Build(events []extractor.AuthEvent, mlEvents []extractor.MLEvent, facts *extractor.Facts) *Tables {
	t := &Tables{
		DomainPairs: make(map[string]map[string]bool),
		SIDs:        make(map[string]string),
		NTLMUsers:   make(map[string]bool),
		Hosts:       make(map[string]string),
	}

	// Step 1: build hosts map from records that carried both a hostname and
	// an IP, then substitute hostname -> ip in both tables.
	hosts := discoverHosts(facts)
	events = rewriteHosts(events, hosts)
	mlEvents = rewriteMLHosts(mlEvents, hosts)
	t.Hosts = hosts
	t.Events = events
	t.MLEvents = mlEvents

	// Step 2 + 3: grouped edge summaries.
	t.EdgeSetByDate = buildEdgeSummaryByDate(events)
	t.EdgeSet = buildEdgeSummary(t.EdgeSetByDate)

	// Step 4: per-user hourly counts.
	t.HourlySet = buildHourlyCounts(mlEvents)

	// Step 5: span.
	t.StartTime, t.EndTime, t.SpanHours = computeSpan(events)

	// Step 6: username_set, domains, sids, ntlmauth.
	seenUsers := make(map[string]bool)
	seenDomains := make(map[string]bool)
	for _, ev := range events {
		if !seenUsers[ev.User] {
			seenUsers[ev.User] = true
			t.Usernames = append(t.Usernames, ev.User)
		}
		if ev.Domain != "" {
			if !seenDomains[ev.Domain] {
				seenDomains[ev.Domain] = true
				t.Domains = append(t.Domains, ev.Domain)
			}
			if t.DomainPairs[ev.User] == nil {
				t.DomainPairs[ev.User] = make(map[string]bool)
			}
			t.DomainPairs[ev.User][ev.Domain] = true
		}
		if ev.SID != "" {
			t.SIDs[ev.User] = ev.SID
		}
	}
	for user, uf := range facts.Users {
		if uf.UsedNTLM {
			t.NTLMUsers[user] = true
		}
		if uf.SID != "" {
			t.SIDs[user] = uf.SID
		}
	}

	logging.Info().
		Int("events", len(t.Events)).
		Int("users", len(t.Usernames)).
		Int("span_hours", t.SpanHours).
		Msg("aggregator: built tables")

	return t
}

// discoverHosts returns hostname->ip for every (WorkstationName, IpAddress)
// pair the extractor recorded from a single record carrying both fields.
// The extractor collapses each event's host/IP fields down to a single
// HostOrIP column (preferring the IP), so this pairing has to be captured
// upstream, at parse time, rather than reconstructed here.
func discoverHosts(facts *extractor.Facts) map[string]string {
	hosts := make(map[string]string, len(facts.HostPairs))
	for host, ip := range facts.HostPairs {
		hosts[host] = ip
	}
	return hosts
}

func rewriteHosts(events []extractor.AuthEvent, hosts map[string]string) []extractor.AuthEvent {
	out := make([]extractor.AuthEvent, len(events))
	for i, ev := range events {
		if ip, ok := hosts[ev.HostOrIP]; ok {
			ev.HostOrIP = ip
		}
		out[i] = ev
	}
	return out
}

func rewriteMLHosts(events []extractor.MLEvent, hosts map[string]string) []extractor.MLEvent {
	out := make([]extractor.MLEvent, len(events))
	for i, ev := range events {
		if ip, ok := hosts[ev.HostOrIP]; ok {
			ev.HostOrIP = ip
		}
		out[i] = ev
	}
	return out
}

func buildEdgeSummaryByDate(events []extractor.AuthEvent) EdgeSummaryByDate {
	s := EdgeSummaryByDate{Counts: make(map[EdgeKeyByDate]int)}
	for _, ev := range events {
		k := EdgeKeyByDate{
			EdgeKey: EdgeKey{
				EventID: ev.EventID, HostOrIP: ev.HostOrIP, User: ev.User,
				LogonType: ev.LogonType, StatusHex: ev.StatusHex, AuthPackage: ev.AuthPackage,
			},
			HourEpoch: hourBucket(ev.When).Unix(),
		}
		s.Counts[k]++
	}
	return s
}

func buildEdgeSummary(byDate EdgeSummaryByDate) EdgeSummary {
	s := EdgeSummary{Counts: make(map[EdgeKey]int)}
	for k, c := range byDate.Counts {
		s.Counts[k.EdgeKey] += c
	}
	return s
}

func buildHourlyCounts(mlEvents []extractor.MLEvent) HourlyCounts {
	h := HourlyCounts{Counts: make(map[HourlyCountKey]int)}
	for _, ev := range mlEvents {
		k := HourlyCountKey{HourEpoch: hourBucket(ev.When).Unix(), EventID: ev.EventID, User: ev.User}
		h.Counts[k]++
	}
	return h
}

func computeSpan(events []extractor.AuthEvent) (start, end time.Time, spanHours int) {
	for i, ev := range events {
		if i == 0 || ev.When.Before(start) {
			start = ev.When
		}
		if i == 0 || ev.When.After(end) {
			end = ev.When
		}
	}
	if start.IsZero() {
		return start, end, 0
	}
	spanHours = int(end.Sub(start).Hours())
	return start, end, spanHours
}
