// Package graphwriter materializes the aggregated tables and risk scores
// into the property graph via a graphsink.Sink, in a single transaction.
package graphwriter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/adgraph/internal/aggregator"
	"github.com/tomtom215/adgraph/internal/changefinder"
	"github.com/tomtom215/adgraph/internal/extractor"
	"github.com/tomtom215/adgraph/internal/graphsink"
	"github.com/tomtom215/adgraph/internal/logging"
	"github.com/tomtom215/adgraph/internal/pagerank"
)

// Scores bundles the three risk engines' outputs, the inputs GraphWriter
// needs beyond the aggregated Tables.
type Scores struct {
	PageRank     pagerank.Result
	ChangeFinder changefinder.Result
	HMMDetected  map[string]bool
}

// Write creates every node and edge names inside one transaction.
func Write(ctx context.Context, sink graphsink.Sink, tables *aggregator.Tables, facts *extractor.Facts, scores Scores) error {
	tx, err := sink.Begin(ctx)
	if err != nil {
		return fmt.Errorf("graphwriter: begin: %w", err)
	}

	if err := write(ctx, tx, tables, facts, scores); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("graphwriter: commit: %w", err)
	}
	logging.Info().
		Int("users", len(tables.Usernames)).
		Int("edges", len(tables.EdgeSetByDate.Counts)).
		Msg("graphwriter: wrote graph")
	return nil
}

func write(ctx context.Context, tx graphsink.Tx, tables *aggregator.Tables, facts *extractor.Facts, scores Scores) error {
	hostsInv := make(map[string]string, len(tables.Hosts)) // ip -> hostname
	for hostname, ip := range tables.Hosts {
		hostsInv[ip] = hostname
	}

	ips := make(map[string]bool)
	for k := range tables.EdgeSet.Counts {
		ips[k.HostOrIP] = true
	}
	for ip := range ips {
		hostname := hostsInv[ip]
		if hostname == "" {
			hostname = ip
		}
		if err := tx.MergeNode(ctx, graphsink.Node{
			Label: graphsink.LabelIPAddress,
			Key:   ip,
			Props: map[string]any{
				"pagerank": scores.PageRank[ip],
				"hostname": hostname,
			},
		}); err != nil {
			return err
		}
	}

	// Iterate in the same order as scores.ChangeFinder.Users/Timelines, since
	// Timelines is indexed 6*i..6*i+6 per user in that exact order.
	users := scores.ChangeFinder.Users
	if users == nil {
		users = tables.Usernames
	}
	for i, user := range users {
		sid := tables.SIDs[user]
		if sid == "" {
			sid = extractor.Sentinel
		}
		rights := "user"
		uf := facts.Users[user]
		if uf != nil && uf.IsAdmin {
			rights = "system"
		}
		// Group mutations are recorded under the member's SID ("sid:<sid>"),
		// not under the username, so join them in by this user's SID.
		statusFacts := uf
		if bySID := facts.Users["sid:"+sid]; bySID != nil {
			merged := extractor.UserFacts{}
			if uf != nil {
				merged = *uf
			}
			merged.GroupMutations = bySID.GroupMutations
			statusFacts = &merged
		}
		status := userStatus(user, sid, statusFacts)

		props := map[string]any{
			"sid":          sid,
			"pagerank":     scores.PageRank[user],
			"is_admin":     rights == "system",
			"used_ntlm":    tables.NTLMUsers[user],
			"hmm_detected": scores.HMMDetected[user],
			"status":       status,
		}
		if 6*i+5 < len(scores.ChangeFinder.Timelines) {
			props["counts"] = joinFloats(scores.ChangeFinder.Timelines[6*i])
			props["counts4624"] = joinFloats(scores.ChangeFinder.Timelines[6*i+1])
			props["counts4625"] = joinFloats(scores.ChangeFinder.Timelines[6*i+2])
			props["counts4768"] = joinFloats(scores.ChangeFinder.Timelines[6*i+3])
			props["counts4769"] = joinFloats(scores.ChangeFinder.Timelines[6*i+4])
			props["counts4776"] = joinFloats(scores.ChangeFinder.Timelines[6*i+5])
		}
		if detect, ok := scores.ChangeFinder.Detects[user]; ok {
			props["detect"] = joinFloats(detect)
		}
		if err := tx.MergeNode(ctx, graphsink.Node{Label: graphsink.LabelUsername, Key: user, Props: props}); err != nil {
			return err
		}
	}

	domainsSorted := append([]string(nil), tables.Domains...)
	sort.Strings(domainsSorted)
	for _, domain := range domainsSorted {
		if err := tx.MergeNode(ctx, graphsink.Node{Label: graphsink.LabelDomain, Key: domain}); err != nil {
			return err
		}
	}

	dateKeys := make([]aggregator.EdgeKeyByDate, 0, len(tables.EdgeSetByDate.Counts))
	for k := range tables.EdgeSetByDate.Counts {
		dateKeys = append(dateKeys, k)
	}
	sort.Slice(dateKeys, func(i, j int) bool {
		if dateKeys[i].User != dateKeys[j].User {
			return dateKeys[i].User < dateKeys[j].User
		}
		return dateKeys[i].HourEpoch < dateKeys[j].HourEpoch
	})
	for _, k := range dateKeys {
		count := tables.EdgeSetByDate.Counts[k]
		if err := tx.CreateEdge(ctx, graphsink.Edge{
			Label:     graphsink.EdgeEvent,
			FromLabel: graphsink.LabelIPAddress,
			FromKey:   k.HostOrIP,
			ToLabel:   graphsink.LabelUsername,
			ToKey:     k.User,
			Props: map[string]any{
				"event_id":     int(k.EventID),
				"logon_type":   int(k.LogonType),
				"status_hex":   k.StatusHex,
				"auth_package": k.AuthPackage,
				"count":        count,
				"occurred_at":  time.Unix(k.HourEpoch, 0).UTC(),
			},
		}); err != nil {
			return err
		}
	}

	for user, domains := range tables.DomainPairs {
		ds := make([]string, 0, len(domains))
		for d := range domains {
			ds = append(ds, d)
		}
		sort.Strings(ds)
		for _, domain := range ds {
			if err := tx.CreateEdge(ctx, graphsink.Edge{
				Label:     graphsink.EdgeGroup,
				FromLabel: graphsink.LabelUsername,
				FromKey:   user,
				ToLabel:   graphsink.LabelDomain,
				ToKey:     domain,
				Props:     map[string]any{"group_name": domain},
			}); err != nil {
				return err
			}
		}
	}

	if !tables.StartTime.IsZero() {
		if err := tx.MergeNode(ctx, graphsink.Node{
			Label: graphsink.LabelDaterange,
			Key:   "Daterange",
			Props: map[string]any{
				"start_time": tables.StartTime.Truncate(time.Hour),
				"end_time":   tables.EndTime.Truncate(time.Hour),
				"span_hours": tables.SpanHours,
			},
		}); err != nil {
			return err
		}
	}

	if len(facts.LogDeletions) > 0 {
		first := facts.LogDeletions[0]
		if err := tx.MergeNode(ctx, graphsink.Node{
			Label: graphsink.LabelDeletetime,
			Key:   first.When.Format(time.RFC3339),
			Props: map[string]any{"user": first.User, "domain": first.Domain},
		}); err != nil {
			return err
		}
	}

	for i, policy := range facts.PolicyChanges {
		idKey := strconv.Itoa(i)
		category := extractor.ResolveCategory(policy.CategoryID)
		sub := extractor.ResolveSubcategory(policy.SubcategoryGUID)
		if err := tx.MergeNode(ctx, graphsink.Node{
			Label: graphsink.LabelID,
			Key:   idKey,
			Props: map[string]any{"category": category, "subcategory": sub},
		}); err != nil {
			return err
		}
		if err := tx.CreateEdge(ctx, graphsink.Edge{
			Label:     graphsink.EdgePolicy,
			FromLabel: graphsink.LabelUsername,
			FromKey:   policy.User,
			ToLabel:   graphsink.LabelID,
			ToKey:     idKey,
			Props: map[string]any{
				"category_id":      policy.CategoryID,
				"subcategory_guid": policy.SubcategoryGUID,
				"occurred_at":      policy.When,
			},
		}); err != nil {
			return err
		}
	}

	return nil
}

// userStatus reproduces the original's status-stanza concatenation: created/
// deleted timestamps, the most recent group add/remove, DCSync, DCShadow.
func userStatus(user, sid string, uf *extractor.UserFacts) string {
	if uf == nil {
		return extractor.Sentinel
	}
	var b strings.Builder
	if uf.CreatedAt != nil {
		fmt.Fprintf(&b, "Created(%s) ", uf.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if uf.DeletedAt != nil {
		fmt.Fprintf(&b, "Deleted(%s) ", uf.DeletedAt.Format("2006-01-02 15:04:05"))
	}
	if muts, ok := uf.GroupMutations[sid]; ok && len(muts) > 0 {
		var lastAdd, lastRemove *extractor.GroupMutation
		for i := range muts {
			m := &muts[i]
			if m.Added {
				lastAdd = m
			} else {
				lastRemove = m
			}
		}
		if lastAdd != nil {
			fmt.Fprintf(&b, "AddGroup: %s(%s) ", lastAdd.Group, lastAdd.When.Format("2006-01-02 15:04:05"))
		}
		if lastRemove != nil {
			fmt.Fprintf(&b, "RemoveGroup: %s(%s) ", lastRemove.Group, lastRemove.When.Format("2006-01-02 15:04:05"))
		}
	}
	if uf.DCSyncAt != nil {
		fmt.Fprintf(&b, "DCSync(%s) ", uf.DCSyncAt.Format("2006-01-02 15:04:05"))
	}
	if uf.DCShadowAt != nil {
		fmt.Fprintf(&b, "DCShadow(%s) ", uf.DCShadowAt.Format("2006-01-02 15:04:05"))
	}
	if b.Len() == 0 {
		return extractor.Sentinel
	}
	return strings.TrimSpace(b.String())
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
