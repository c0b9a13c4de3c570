package extractor

import "testing"

func TestNormalizeUsername(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "alice", "alice@"},
		{"already suffixed", "alice@EXAMPLE", "alice@"},
		{"machine account dropped", "WORKSTATION1$", Sentinel},
		{"empty rejected", "", Sentinel},
		{"forbidden chars rejected", "bob;rm -rf", Sentinel},
		{"mixed case lowercased", "Bob", "bob@"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := normalizeUsername(c.raw); got != c.want {
				t.Errorf("normalizeUsername(%q) = %q, want %q", c.raw, got, c.want)
			}
		})
	}
}

func TestNormalizeHostOrIP(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantOK  bool
	}{
		{"ipv4", "192.168.1.10", "192.168.1.10", true},
		{"ipv4 mapped ipv6 stripped", "::ffff:10.0.0.5", "10.0.0.5", true},
		{"hostname lowercased", "DC01.EXAMPLE.COM", "dc01.example.com", true},
		{"empty rejected", "", "", false},
		{"forbidden char rejected", `DC01|01`, "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := normalizeHostOrIP(c.raw)
			if ok != c.wantOK {
				t.Fatalf("normalizeHostOrIP(%q) ok = %v, want %v", c.raw, ok, c.wantOK)
			}
			if ok && got != c.want {
				t.Errorf("normalizeHostOrIP(%q) = %q, want %q", c.raw, got, c.want)
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	for _, addr := range []string{"127.0.0.1", "::1", ""} {
		if !isLoopback(addr) {
			t.Errorf("isLoopback(%q) = false, want true", addr)
		}
	}
	if isLoopback("10.0.0.1") {
		t.Error("isLoopback(10.0.0.1) = true, want false")
	}
}

func TestNormalizeAuthPackage(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		present bool
		want    string
	}{
		{"absent field rejected", "", false, Sentinel},
		{"present but empty is valid", "", true, ""},
		{"present valid package passes through", "NTLM", true, "NTLM"},
		{"present invalid chars rejected", "NTLM;drop", true, Sentinel},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := normalizeAuthPackage(c.raw, c.present); got != c.want {
				t.Errorf("normalizeAuthPackage(%q, %v) = %q, want %q", c.raw, c.present, got, c.want)
			}
		})
	}
}

func TestNormalizeSID(t *testing.T) {
	if got := normalizeSID("S-1-5-21-123-456-789-1001"); got == "" {
		t.Error("expected a valid SID to pass through")
	}
	if got := normalizeSID("not-a-sid"); got != "" {
		t.Errorf("expected invalid SID to be rejected, got %q", got)
	}
}

// isNTLM fixes a substring-membership typo present in the logon-tracing tool
// this extractor is modeled on ("NTML" instead of "NTLM"); isNTLMBuggy
// reproduces the original behavior so both can be compared directly.
func TestIsNTLMFixVsOriginalBug(t *testing.T) {
	if !isNTLM("NTLM") {
		t.Error("isNTLM(NTLM) should be true")
	}
	if isNTLM("Kerberos") {
		t.Error("isNTLM(Kerberos) should be false")
	}
	// The original's typo'd check is a substring test against "NTML", and
	// "NTLM" is not a substring of "NTML", so it misses real NTLM packages,
	// which is the point of the fix...
	if isNTLMBuggy("NTLM") {
		t.Error("isNTLMBuggy(NTLM) should be false: NTLM is not a substring of NTML")
	}
	// ...and, like the fix, it rejects unrelated packages.
	if isNTLMBuggy("Negotiate") != false {
		t.Error("isNTLMBuggy(Negotiate) should be false")
	}
}
