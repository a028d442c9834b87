// Package safety classifies URLs as safe or unsafe for outbound fetching.
// Every network call in the pipeline goes through a Policy first, including
// feed URLs discovered mid-pipeline, to keep the service from being used as
// an SSRF relay into private networks.
package safety

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

type Reason string

const (
	ReasonInvalidFormat      Reason = "invalid-format"
	ReasonDisallowedProtocol Reason = "disallowed-protocol"
	ReasonBlockedHostname    Reason = "blocked-hostname"
	ReasonPrivateIP          Reason = "private-ip"
	ReasonCredentials        Reason = "credentials-not-allowed"
)

// Error is the user-visible validation failure for a single URL.
type Error struct {
	Input  string
	Reason Reason
}

func (e *Error) Error() string {
	return fmt.Sprintf("url validation failed (%s): %s", e.Reason, e.Input)
}

// Verdict is the immutable outcome of validating one URL. On acceptance it
// carries the parsed URL so callers do not have to re-parse.
type Verdict struct {
	Input    string
	Accepted bool
	Reason   Reason
	URL      *url.URL
}

// Err returns the verdict as an error, or nil when accepted.
func (v Verdict) Err() error {
	if v.Accepted {
		return nil
	}
	return &Error{Input: v.Input, Reason: v.Reason}
}

// Policy controls what the validator lets through. The zero value is the
// strict production policy.
type Policy struct {
	// AllowPrivateNetworks lets loopback and private-range targets through.
	// Development only; never enable this on an internet-facing deployment.
	AllowPrivateNetworks bool
}

// Hostnames that resolve to loopback or cloud metadata services. Matched
// case-insensitively; "localhost" also matches as a suffix (foo.localhost).
var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"0.0.0.0":                  {},
	"::":                       {},
	"::1":                      {},
	"metadata.google.internal": {},
	"metadata.goog":            {},
	"instance-data":            {},
}

var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),     // loopback
	netip.MustParsePrefix("10.0.0.0/8"),      // RFC1918
	netip.MustParsePrefix("172.16.0.0/12"),   // RFC1918
	netip.MustParsePrefix("192.168.0.0/16"),  // RFC1918
	netip.MustParsePrefix("169.254.0.0/16"),  // link-local
	netip.MustParsePrefix("100.64.0.0/10"),   // carrier-grade NAT
	netip.MustParsePrefix("192.0.0.0/24"),    // IETF protocol assignments
	netip.MustParsePrefix("192.0.2.0/24"),    // TEST-NET-1
	netip.MustParsePrefix("198.51.100.0/24"), // TEST-NET-2
	netip.MustParsePrefix("203.0.113.0/24"),  // TEST-NET-3
	netip.MustParsePrefix("224.0.0.0/4"),     // multicast
	netip.MustParsePrefix("240.0.0.0/4"),     // reserved, includes 255.255.255.255
	netip.MustParsePrefix("::1/128"),         // IPv6 loopback
	netip.MustParsePrefix("::/128"),          // IPv6 unspecified
	netip.MustParsePrefix("fe80::/10"),       // IPv6 link-local
	netip.MustParsePrefix("fc00::/7"),        // IPv6 unique local
	netip.MustParsePrefix("ff00::/8"),        // IPv6 multicast
}

// Validate classifies a raw URL string under the policy. Pure; no network
// access, no DNS resolution.
func (p Policy) Validate(raw string) Verdict {
	reject := func(reason Reason) Verdict {
		return Verdict{Input: raw, Reason: reason}
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return reject(ReasonInvalidFormat)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return reject(ReasonInvalidFormat)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return reject(ReasonDisallowedProtocol)
	}

	if u.User != nil {
		return reject(ReasonCredentials)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return reject(ReasonInvalidFormat)
	}

	if !p.AllowPrivateNetworks {
		if _, blocked := blockedHostnames[host]; blocked {
			return reject(ReasonBlockedHostname)
		}
		if strings.HasSuffix(host, ".localhost") {
			return reject(ReasonBlockedHostname)
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !p.AllowPrivateNetworks && isPrivateAddr(addr) {
			return reject(ReasonPrivateIP)
		}
	} else if strings.Contains(host, ":") {
		// Colon in a non-parseable host means a malformed IPv6 literal.
		return reject(ReasonInvalidFormat)
	}

	return Verdict{Input: raw, Accepted: true, URL: u}
}

// ValidateAll partitions a batch of URLs into accepted and rejected verdicts,
// preserving input order within each partition.
func (p Policy) ValidateAll(raws []string) (accepted []Verdict, rejected []Verdict) {
	for _, raw := range raws {
		v := p.Validate(raw)
		if v.Accepted {
			accepted = append(accepted, v)
		} else {
			rejected = append(rejected, v)
		}
	}
	return accepted, rejected
}

// Validate classifies a URL under the strict production policy.
func Validate(raw string) Verdict {
	return Policy{}.Validate(raw)
}

func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range privateRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
