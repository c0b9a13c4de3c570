package extractor

import (
	"errors"
	"testing"
	"time"
)

func logonRecord(eventID int, systemTime, user, ip, logonType, status, authPkg string) []byte {
	return []byte(`<Event>
<System><EventID>` + itoa(eventID) + `</EventID><TimeCreated SystemTime="` + systemTime + `"/></System>
<EventData>
<Data Name="TargetUserName">` + user + `</Data>
<Data Name="TargetDomainName">EXAMPLE</Data>
<Data Name="TargetUserSid">S-1-5-21-1-2-3-1001</Data>
<Data Name="IpAddress">` + ip + `</Data>
<Data Name="LogonType">` + logonType + `</Data>
<Data Name="Status">` + status + `</Data>
<Data Name="AuthenticationPackageName">` + authPkg + `</Data>
</EventData>
</Event>`)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestFeedEmitsLogonSuccess(t *testing.T) {
	e := New(Config{})
	var out Result
	rec := logonRecord(4624, "2026-01-02 03:04:05", "alice", "10.0.0.5", "3", "0x0", "NTLM")
	outcome := e.Feed(rec, &out)
	if outcome != OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v", outcome)
	}
	if len(out.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(out.Events))
	}
	got := out.Events[0]
	if got.User != "alice@" {
		t.Errorf("User = %q, want alice@", got.User)
	}
	if got.HostOrIP != "10.0.0.5" {
		t.Errorf("HostOrIP = %q, want 10.0.0.5", got.HostOrIP)
	}
	if got.AuthPackage != "NTLM" {
		t.Errorf("AuthPackage = %q, want NTLM", got.AuthPackage)
	}
	if !e.facts.Users["alice@"].UsedNTLM {
		t.Error("expected UsedNTLM to be recorded on Facts")
	}
}

func TestFeedSkipsUnwatchedEventID(t *testing.T) {
	e := New(Config{})
	var out Result
	rec := []byte(`<Event><System><EventID>9999</EventID><TimeCreated SystemTime="2026-01-02 03:04:05"/></System></Event>`)
	if outcome := e.Feed(rec, &out); outcome != OutcomeContinue {
		t.Fatalf("expected OutcomeContinue for unwatched id, got %v", outcome)
	}
	if len(out.Events) != 0 {
		t.Errorf("expected no events, got %d", len(out.Events))
	}
}

func TestFeedSkipsMalformedXML(t *testing.T) {
	e := New(Config{})
	var out Result
	if outcome := e.Feed([]byte("<Event><broken"), &out); outcome != OutcomeContinue {
		t.Fatalf("malformed record should not stop the file: got %v", outcome)
	}
}

func TestFeedStopsFileOnceTimePassesTo(t *testing.T) {
	to, _ := time.Parse("2006-01-02 15:04:05", "2026-01-02 00:00:00")
	e := New(Config{To: to})
	var out Result
	rec := logonRecord(4624, "2026-01-02 01:00:00", "alice", "10.0.0.5", "3", "0x0", "NTLM")
	if outcome := e.Feed(rec, &out); outcome != OutcomeStopFile {
		t.Fatalf("expected OutcomeStopFile once past --to, got %v", outcome)
	}
}

func TestFeedAppliesTimezoneOffset(t *testing.T) {
	e := New(Config{TimezoneOffset: 2 * time.Hour})
	var out Result
	rec := logonRecord(4624, "2026-01-02 03:00:00", "alice", "10.0.0.5", "3", "0x0", "NTLM")
	e.Feed(rec, &out)
	want := time.Date(2026, 1, 2, 5, 0, 0, 0, time.UTC)
	if !out.Events[0].When.Equal(want) {
		t.Errorf("When = %v, want %v", out.Events[0].When, want)
	}
}

func TestFeedRejectsAnonymousLogon(t *testing.T) {
	e := New(Config{})
	var out Result
	rec := logonRecord(4624, "2026-01-02 03:00:00", "ANONYMOUS LOGON", "10.0.0.5", "3", "0x0", "NTLM")
	e.Feed(rec, &out)
	if len(out.Events) != 0 {
		t.Errorf("expected anonymous logon to be dropped, got %d events", len(out.Events))
	}
}

func TestFeedRejectsLoopbackHost(t *testing.T) {
	e := New(Config{})
	var out Result
	rec := logonRecord(4624, "2026-01-02 03:00:00", "alice", "127.0.0.1", "3", "0x0", "NTLM")
	e.Feed(rec, &out)
	if len(out.Events) != 0 {
		t.Errorf("expected loopback-origin event to be dropped, got %d events", len(out.Events))
	}
}

func TestFeedRecordsHostPairFromSameRecord(t *testing.T) {
	e := New(Config{})
	var out Result
	rec := []byte(`<Event>
<System><EventID>4769</EventID><TimeCreated SystemTime="2026-01-02 03:04:05"/></System>
<EventData>
<Data Name="TargetUserName">alice</Data>
<Data Name="TargetDomainName">EXAMPLE</Data>
<Data Name="TargetUserSid">S-1-5-21-1-2-3-1001</Data>
<Data Name="IpAddress">10.0.0.5</Data>
<Data Name="WorkstationName">WS01</Data>
<Data Name="LogonType">3</Data>
<Data Name="Status">0x0</Data>
<Data Name="AuthenticationPackageName">Kerberos</Data>
</EventData>
</Event>`)
	e.Feed(rec, &out)
	if got := e.facts.HostPairs["ws01"]; got != "10.0.0.5" {
		t.Errorf("HostPairs[ws01] = %q, want 10.0.0.5", got)
	}
}

func TestFeedAllowsPresentEmptyAuthPackage(t *testing.T) {
	e := New(Config{})
	var out Result
	rec := logonRecord(4624, "2026-01-02 03:04:05", "alice", "10.0.0.5", "3", "0x0", "")
	e.Feed(rec, &out)
	if len(out.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(out.Events))
	}
	if got := out.Events[0].AuthPackage; got != "" {
		t.Errorf("AuthPackage = %q, want empty string for a present-but-empty field", got)
	}
}

func TestFinishReportsNoEventsExtracted(t *testing.T) {
	e := New(Config{})
	var out Result
	if err := e.Finish(&out); !errors.Is(err, ErrNoEventsExtracted) {
		t.Fatalf("expected ErrNoEventsExtracted, got %v", err)
	}
}

func TestFinishPopulatesFacts(t *testing.T) {
	e := New(Config{})
	var out Result
	rec := logonRecord(4624, "2026-01-02 03:00:00", "alice", "10.0.0.5", "3", "0x0", "NTLM")
	e.Feed(rec, &out)
	if err := e.Finish(&out); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out.Facts == nil || len(out.Facts.Users) == 0 {
		t.Error("expected Facts to be populated")
	}
}

func TestHandleAdminLogon(t *testing.T) {
	e := New(Config{})
	e.handleAdminLogon(map[string]string{"SubjectUserName": "root"})
	if !e.facts.userFacts("root@").IsAdmin {
		t.Error("expected IsAdmin to be set")
	}
}

func TestHandleGroupMutationKeepsEveryMutation(t *testing.T) {
	e := New(Config{})
	when1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	when2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	e.handleGroupMutation(map[string]string{"TargetUserName": "Domain Admins", "MemberSid": "S-1-5-21-1-2-3-1001"}, when1, true)
	e.handleGroupMutation(map[string]string{"TargetUserName": "Backup Operators", "MemberSid": "S-1-5-21-1-2-3-1001"}, when2, true)
	uf := e.facts.Users["sid:S-1-5-21-1-2-3-1001"]
	if uf == nil || len(uf.GroupMutations["S-1-5-21-1-2-3-1001"]) != 2 {
		t.Fatalf("expected 2 recorded mutations, got %+v", uf)
	}
}

func TestHandleDCSyncFiresOnThirdOccurrence(t *testing.T) {
	e := New(Config{})
	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fields := map[string]string{"SubjectUserName": "mimidc"}
	e.handleDCSync(fields, when)
	e.handleDCSync(fields, when)
	if e.facts.userFacts("mimidc@").DCSyncAt != nil {
		t.Fatal("DCSync should not fire before the third occurrence")
	}
	e.handleDCSync(fields, when)
	if e.facts.userFacts("mimidc@").DCSyncAt == nil {
		t.Fatal("DCSync should fire on the third occurrence")
	}
}
