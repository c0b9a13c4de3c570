package extractor

import (
	"net"
	"regexp"
	"strings"
)

// Sentinel is substituted for any field that fails validation.
const Sentinel = "-"

var (
	// usernameReject matches characters forbidden in a SubjectUserName/
	// TargetUserName field (original UCHECK).
	usernameReject = regexp.MustCompile(`[%*+=\[\]\\/|;:"<>?,&]`)

	// hostReject matches characters forbidden in a hostname/IP field
	// (original HCHECK), overridden by an explicit IPv4/IPv6 match.
	hostReject = regexp.MustCompile(`[*\\/|:"<>?&]`)

	ipv4Pattern = regexp.MustCompile(`\A(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)(\.(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)){3}\z`)
	ipv6Pattern = regexp.MustCompile(`\A([0-9a-fA-F]{0,4}:){2,7}[0-9a-fA-F]{0,4}\z`)
	ipv4Mapped  = regexp.MustCompile(`\A::ffff:\d+\.\d+\.\d+\.\d+\z`)

	logonTypePattern = regexp.MustCompile(`\A\d{1,2}\z`)
	statusPattern    = regexp.MustCompile(`\A0x\w{8}\z`)
	sidPattern       = regexp.MustCompile(`\AS-[0-9\-]*\z`)
	authPackPattern  = regexp.MustCompile(`\A\w*\z`) // accepts ""
)

// normalizeUsername validates and lowercases a SubjectUserName/
// TargetUserName field, re-appending "@" unless it names a machine account
// (trailing "$"), which is dropped to the Sentinel.
func normalizeUsername(raw string) string {
	if raw == "" || usernameReject.MatchString(raw) {
		return Sentinel
	}
	name := strings.ToLower(strings.SplitN(raw, "@", 2)[0])
	if strings.HasSuffix(name, "$") {
		return Sentinel
	}
	return name + "@"
}

// normalizeHostOrIP validates a hostname/IP field, stripping an IPv4-mapped
// IPv6 prefix. Returns (value, true) on success.
func normalizeHostOrIP(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	ok := !hostReject.MatchString(raw) || ipv4Pattern.MatchString(raw) || ipv4Mapped.MatchString(raw) || ipv6Pattern.MatchString(raw)
	if !ok {
		return "", false
	}
	v := strings.SplitN(raw, "@", 2)[0]
	v = strings.ToLower(v)
	v = strings.ReplaceAll(v, "::ffff:", "")
	v = strings.ReplaceAll(v, `\`, "")
	return v, true
}

// isLoopback reports whether addr is the loopback sentinel that must never
// become a host vertex.
func isLoopback(addr string) bool {
	if addr == "" || addr == "::1" || addr == "127.0.0.1" {
		return true
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}

func normalizeLogonType(raw string) int8 {
	if !logonTypePattern.MatchString(raw) {
		return -1
	}
	var v int
	for _, r := range raw {
		v = v*10 + int(r-'0')
	}
	return int8(v)
}

func normalizeStatus(raw string) string {
	if !statusPattern.MatchString(raw) {
		return Sentinel
	}
	return raw
}

func normalizeSID(raw string) string {
	if raw == "" || !sidPattern.MatchString(raw) {
		return ""
	}
	return raw
}

// normalizeAuthPackage validates an AuthenticationPackageName field. A
// truly absent field returns Sentinel; a present field is validated and
// returned as-is, including "" (empty is a valid package name, e.g. on
// events where Windows never populates it).
func normalizeAuthPackage(raw string, present bool) string {
	if !present || !authPackPattern.MatchString(raw) {
		return Sentinel
	}
	return raw
}

// isNTLM reports whether an AuthenticationPackageName names NTLM.
//
// The original source checks `if authname in "NTML"` -- Python substring
// membership against the *typo'd* literal "NTML", which never matches a real
// "NTLM" package ("NTLM" is not a substring of "NTML"); only fragments such
// as "NT" or "ML" match. This version ships the exact match; isNTLMBuggy below
// reproduces the original's behavior so both are covered by tests.
func isNTLM(authPackage string) bool {
	return authPackage == "NTLM"
}

// isNTLMBuggy reproduces the original's typo'd substring check, kept only
// so the test suite can assert the fixed and the original behavior differ.
func isNTLMBuggy(authPackage string) bool {
	return strings.Contains("NTML", authPackage) && authPackage != ""
}
