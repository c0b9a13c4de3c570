package extractor

import (
	"strings"
	"time"

	"github.com/tomtom215/adgraph/internal/logging"
	"github.com/tomtom215/adgraph/internal/metrics"
)

const (
	timeLayoutSpace = "2006-01-02 15:04:05"
	timeLayoutISO   = "2006-01-02T15:04:05"
)

// Config bounds and timezone-shifts extraction.
type Config struct {
	TimezoneOffset time.Duration
	From, To       time.Time // zero value = unbounded
}

// Result is the full output of a run over one or more inputs.
type Result struct {
	Events   []AuthEvent
	MLEvents []MLEvent
	Facts    *Facts
}

// Extractor decodes raw per-record XML into the typed streams above.
type Extractor struct {
	cfg   Config
	facts *Facts
}

// New returns an Extractor ready to process a stream of records.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg, facts: NewFacts()}
}

// RecordOutcome signals the EventSource loop whether to keep reading.
type RecordOutcome int

const (
	OutcomeContinue RecordOutcome = iota
	OutcomeStopFile               // record's time is past cfg.To
)

// Feed decodes one record's XML, applies side effects, and appends to out.
// A malformed record is logged and skipped without propagating an error.
func (e *Extractor) Feed(recordXML []byte, out *Result) RecordOutcome {
	rec, err := parseRecord(recordXML)
	if err != nil {
		logging.Warn().Err(err).Msg("extractor: skipping malformed record")
		metrics.RecordsSkipped.WithLabelValues("xml_syntax").Inc()
		return OutcomeContinue
	}

	id := EventID(rec.System.EventID)
	if !WatchedEventIDs[id] {
		return OutcomeContinue
	}

	when, err := parseSystemTime(rec.System.TimeCreated.SystemTime, e.cfg.TimezoneOffset)
	if err != nil {
		logging.Warn().Err(err).Int("event_id", int(id)).Msg("extractor: skipping record with unparseable SystemTime")
		metrics.RecordsSkipped.WithLabelValues("time_parse").Inc()
		return OutcomeContinue
	}

	if !e.cfg.From.IsZero() && when.Before(e.cfg.From) {
		return OutcomeContinue
	}
	if !e.cfg.To.IsZero() && when.After(e.cfg.To) {
		return OutcomeStopFile
	}

	fields := rec.fields()
	metrics.EventsExtracted.WithLabelValues(idLabel(id)).Inc()

	switch id {
	case EventSpecialPrivileges:
		e.handleAdminLogon(fields)
	case EventUserCreated, EventUserDeleted:
		e.handleAccountLifecycle(id, fields, when)
	case EventGroupAddGlobal, EventGroupAddLocal, EventGroupAddUniversal:
		e.handleGroupMutation(fields, when, true)
	case EventGroupRemoveGlobal, EventGroupRemoveLocal, EventGroupRemoveUniv:
		e.handleGroupMutation(fields, when, false)
	case EventObjectOperation:
		e.handleDCSync(fields, when)
	case EventDSObjectCreated, EventDSObjectDeleted:
		e.handleDCShadow(fields, when)
	case EventLogCleared:
		e.handleLogCleared(rec, when)
	}

	if logonLikeEvents[id] {
		var policyUser string
		if id == EventAuditPolicyChange {
			policyUser = e.handleAuditPolicyChange(fields, when)
		}
		e.emitIfValid(id, fields, when, policyUser, out)
	}

	return OutcomeContinue
}

// Finish returns the accumulated Result, recording ErrNoEventsExtracted if
// nothing was ever emitted.
func (e *Extractor) Finish(out *Result) error {
	out.Facts = e.facts
	if len(out.Events) == 0 {
		return ErrNoEventsExtracted
	}
	return nil
}

func parseSystemTime(raw string, offset time.Duration) (time.Time, error) {
	// fractional seconds and a trailing UTC "Z" are dropped
	trimmed := strings.TrimSuffix(strings.SplitN(raw, ".", 2)[0], "Z")
	if t, err := time.Parse(timeLayoutSpace, trimmed); err == nil {
		return t.Add(offset), nil
	}
	if t, err := time.Parse(timeLayoutISO, trimmed); err == nil {
		return t.Add(offset), nil
	}
	return time.Time{}, ErrTimeParse
}

func (e *Extractor) handleAdminLogon(fields map[string]string) {
	user := normalizeUsername(fields["SubjectUserName"])
	if user == Sentinel {
		return
	}
	e.facts.userFacts(user).IsAdmin = true
}

func (e *Extractor) handleAccountLifecycle(id EventID, fields map[string]string, when time.Time) {
	user := normalizeUsername(fields["TargetUserName"])
	if user == Sentinel {
		return
	}
	uf := e.facts.userFacts(user)
	w := when
	if id == EventUserCreated {
		uf.CreatedAt = &w
	} else {
		uf.DeletedAt = &w
	}
}

func (e *Extractor) handleGroupMutation(fields map[string]string, when time.Time, added bool) {
	group := fields["TargetUserName"]
	sid := fields["MemberSid"]
	if group == "" || normalizeSID(sid) == "" {
		return
	}
	// group/member names do not go through normalizeUsername: the original
	// stores the raw group display name in the status stanza, not a graph
	// vertex key.
	mut := GroupMutation{Added: added, Group: group, When: when}
	// Group mutations are keyed by the acted-upon account's SID, which is
	// not necessarily a username we've seen yet; store under a synthetic
	// per-SID bucket on a dedicated facts entry keyed by "sid:<sid>" so
	// GraphWriter can later join it to a Username by SID.
	key := "sid:" + sid
	uf, ok := e.facts.Users[key]
	if !ok {
		uf = &UserFacts{GroupMutations: make(map[string][]GroupMutation)}
		e.facts.Users[key] = uf
	}
	uf.SID = sid
	uf.GroupMutations[sid] = append(uf.GroupMutations[sid], mut)
}

func (e *Extractor) handleDCSync(fields map[string]string, when time.Time) {
	user := normalizeUsername(fields["SubjectUserName"])
	if user == Sentinel {
		return
	}
	e.facts.dcsyncCounters[user]++
	if e.facts.dcsyncCounters[user] == 3 {
		w := when
		e.facts.userFacts(user).DCSyncAt = &w
		e.facts.dcsyncCounters[user] = 0
	}
}

func (e *Extractor) handleDCShadow(fields map[string]string, when time.Time) {
	user := normalizeUsername(fields["SubjectUserName"])
	if user == Sentinel {
		return
	}
	second := when.Truncate(time.Second).Format(time.RFC3339)
	if e.facts.dcshadowSeen[second] {
		w := when
		e.facts.userFacts(user).DCShadowAt = &w
		return
	}
	e.facts.dcshadowSeen[second] = true
}

func (e *Extractor) handleAuditPolicyChange(fields map[string]string, when time.Time) string {
	user := normalizeUsername(fields["SubjectUserName"])
	category := fields["CategoryId"]
	guid := strings.ToLower(fields["SubcategoryGuid"])
	e.facts.PolicyChanges = append(e.facts.PolicyChanges, PolicyChange{
		When: when, User: user, CategoryID: category, SubcategoryGUID: guid,
	})
	return user
}

func (e *Extractor) handleLogCleared(rec *rawRecord, when time.Time) {
	user := Sentinel
	if raw := rec.UserData.LogFileCleared.SubjectUserName; raw != "" {
		user = normalizeUsername(raw)
	}
	e.facts.LogDeletions = append(e.facts.LogDeletions, LogDeletion{
		When: when, User: user, Domain: rec.UserData.LogFileCleared.SubjectDomainName,
	})
}

// emitIfValid applies the common logon-event field parse and emission gate
// (valid user, valid host/IP, not loopback), appending to out on success.
func (e *Extractor) emitIfValid(id EventID, fields map[string]string, when time.Time, preParsedUser string, out *Result) {
	user := preParsedUser
	if user == "" {
		user = normalizeUsername(fields["TargetUserName"])
	}

	ipFromAddr, ipFromAddrOK := normalizeHostOrIP(fields["IpAddress"])
	host, hostOK := normalizeHostOrIP(fields["WorkstationName"])
	if ipFromAddrOK && hostOK {
		// Same record carried both fields: this is the one place the
		// hostname <-> ip pairing can still be observed, since hostOrIP
		// below collapses them into a single column.
		e.facts.HostPairs[host] = ipFromAddr
	}

	ip, ipOK := ipFromAddr, ipFromAddrOK
	if !ipOK {
		ip, ipOK = normalizeHostOrIP(fields["Workstation"])
	}

	domain := fields["TargetDomainName"]
	sid := normalizeSID(fields["TargetUserSid"])
	if sid == "" {
		sid = normalizeSID(fields["TargetSid"])
	}
	logonType := normalizeLogonType(fields["LogonType"])
	status := normalizeStatus(fields["Status"])
	authPackageRaw, authPackagePresent := fields["AuthenticationPackageName"]
	authPackage := normalizeAuthPackage(authPackageRaw, authPackagePresent)

	if user == Sentinel || user == "anonymous logon@" || user == "anonymous logon" {
		return
	}

	hostOrIP := ip
	usingIP := ipOK
	if !usingIP {
		hostOrIP = host
	}
	if (!ipOK && !hostOK) || isLoopback(hostOrIP) {
		return
	}

	uf := e.facts.userFacts(user)
	if sid != "" {
		uf.SID = sid
	}
	if isNTLM(authPackage) {
		uf.UsedNTLM = true
	}

	out.Events = append(out.Events, AuthEvent{
		EventID: id, When: when, User: user, HostOrIP: hostOrIP,
		LogonType: logonType, StatusHex: status, AuthPackage: authPackage,
		Domain: domain, SID: sid,
	})
	out.MLEvents = append(out.MLEvents, MLEvent{
		When: when, User: user, HostOrIP: hostOrIP, EventID: id,
	})
}

func idLabel(id EventID) string {
	switch id {
	case EventLogonSuccess:
		return "4624"
	case EventLogonFailure:
		return "4625"
	case EventObjectOperation:
		return "4662"
	case EventSpecialPrivileges:
		return "4672"
	case EventAuditPolicyChange:
		return "4719"
	case EventUserCreated:
		return "4720"
	case EventUserDeleted:
		return "4726"
	case EventGroupAddGlobal:
		return "4728"
	case EventGroupRemoveGlobal:
		return "4729"
	case EventGroupAddLocal:
		return "4732"
	case EventGroupRemoveLocal:
		return "4733"
	case EventGroupAddUniversal:
		return "4756"
	case EventGroupRemoveUniv:
		return "4757"
	case EventKerberosTGT:
		return "4768"
	case EventKerberosService:
		return "4769"
	case EventCredentialValidate:
		return "4776"
	case EventDSObjectCreated:
		return "5137"
	case EventDSObjectDeleted:
		return "5141"
	case EventLogCleared:
		return "1102"
	default:
		return "unknown"
	}
}
