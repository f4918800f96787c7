// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

// Package ipcheck classifies IP address literals and URL hosts for SSRF risk.
//
// Classification is a pure function of the literal string: no DNS resolution
// is ever performed. Resolving attacker-controlled hostnames and re-validating
// the resolved IPs is the outbound-request layer's responsibility.
//
// The classifier fails closed: anything that does not parse under the strict
// grammar (four decimal octets 0-255 without leading zeros for IPv4; at most
// one "::" and at most eight groups for IPv6) is reported as invalid with
// High risk and outbound disallowed.
package ipcheck

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/tomtom215/gatekeeper/internal/risk"
)

// AddressFamily identifies the parsed address family.
type AddressFamily int

const (
	// FamilyInvalid marks input that failed strict parsing.
	FamilyInvalid AddressFamily = iota
	// FamilyIPv4 is a dotted-quad address.
	FamilyIPv4
	// FamilyIPv6 is a full or ::-compressed address.
	FamilyIPv6
)

// String returns the family name.
func (f AddressFamily) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "invalid"
	}
}

// Classification is the verdict for a single address literal.
type Classification struct {
	IsValid            bool
	Family             AddressFamily
	Private            bool
	Reserved           bool
	Loopback           bool
	Multicast          bool
	LinkLocal          bool
	CloudMetadata      bool
	Risk               risk.Level
	AllowedForOutbound bool
	Reason             string
}

// Classify parses and classifies a single IP address literal.
func Classify(address string) Classification {
	addr, err := netip.ParseAddr(strings.TrimSpace(address))
	if err != nil {
		classificationsTotal.WithLabelValues("invalid").Inc()
		return Classification{
			IsValid:            false,
			Family:             FamilyInvalid,
			Risk:               risk.High,
			AllowedForOutbound: false,
			Reason:             "unparseable address",
		}
	}

	// Zoned addresses (fe80::1%eth0) are outside the accepted grammar, and
	// netip.Prefix.Contains never matches them, so they must not fall
	// through to the tables.
	if addr.Zone() != "" {
		classificationsTotal.WithLabelValues("invalid").Inc()
		return Classification{
			IsValid:            false,
			Family:             FamilyInvalid,
			Risk:               risk.High,
			AllowedForOutbound: false,
			Reason:             "zoned address",
		}
	}

	// An IPv4-mapped IPv6 literal classifies as the embedded IPv4 address,
	// otherwise ::ffff:127.0.0.1 would slip past the IPv4 tables.
	mapped := addr.Is4In6()
	addr = addr.Unmap()

	c := Classification{IsValid: true}
	if addr.Is4() {
		c.Family = FamilyIPv4
		c.CloudMetadata = inAny(addr, v4CloudMetadata)
		c.Private = inAny(addr, v4Private)
		c.Loopback = inAny(addr, v4Loopback)
		c.LinkLocal = inAny(addr, v4LinkLocal)
		c.Multicast = inAny(addr, v4Multicast)
		c.Reserved = inAny(addr, v4Reserved)
	} else {
		c.Family = FamilyIPv6
		c.CloudMetadata = inAny(addr, v6CloudMetadata)
		c.Private = inAny(addr, v6Private)
		c.Loopback = inAny(addr, v6Loopback)
		c.LinkLocal = inAny(addr, v6LinkLocal)
		c.Multicast = inAny(addr, v6Multicast)
		c.Reserved = inAny(addr, v6Reserved)
	}

	c.Risk, c.Reason = deriveRisk(&c)
	if mapped {
		c.Reason += " (IPv4-mapped IPv6 literal)"
	}
	c.AllowedForOutbound = !(c.Private || c.Reserved || c.Loopback ||
		c.Multicast || c.LinkLocal || c.CloudMetadata)

	classificationsTotal.WithLabelValues(c.Risk.String()).Inc()
	return c
}

// deriveRisk maps the classification flags to a risk level.
// Loopback and cloud metadata outrank everything; 169.254.169.254 is both
// link-local and metadata and must come out Critical.
func deriveRisk(c *Classification) (risk.Level, string) {
	switch {
	case c.CloudMetadata:
		return risk.Critical, "cloud instance metadata address"
	case c.Loopback:
		return risk.Critical, "loopback address"
	case c.Private:
		return risk.High, "private address"
	case c.LinkLocal:
		return risk.High, "link-local address"
	case c.Reserved:
		return risk.Medium, "reserved address"
	case c.Multicast:
		return risk.Medium, "multicast address"
	default:
		return risk.Low, "public address"
	}
}

// ClassifyURLHost extracts the host from a URL and classifies it when it is
// an IP literal. The second return is false when the host is a domain name;
// no DNS resolution is attempted. An unparseable URL fails closed with an
// invalid classification and true.
func ClassifyURLHost(raw string) (Classification, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return Classification{
			IsValid:            false,
			Family:             FamilyInvalid,
			Risk:               risk.High,
			AllowedForOutbound: false,
			Reason:             "unparseable URL",
		}, true
	}

	// Hostname() strips the port and IPv6 brackets.
	host := u.Hostname()
	if _, err := netip.ParseAddr(host); err != nil {
		return Classification{}, false
	}

	return Classify(host), true
}

// HostLooksInternal reports whether a domain name looks like it targets an
// internal host. Used for SSRF checks on hosts that are not IP literals.
func HostLooksInternal(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return false
	}
	if host == "localhost" || host == "ip6-localhost" || host == "ip6-loopback" {
		return true
	}
	if strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") {
		return true
	}
	// Names like 127.0.0.1.evil.example or 169.254.169.254.evil.example are
	// registered to resolve to the embedded literal; a disallowed leading
	// dotted-quad marks the whole name internal.
	if addr, ok := leadingIPv4(host); ok && !allowedV4(addr) {
		return true
	}
	// Catch localhost smuggled into a longer name, e.g. localhost.attacker.com.
	return strings.Contains(host, "localhost")
}

// leadingIPv4 parses the first four labels of a dotted name as an IPv4
// literal. The strict octet grammar of Classify applies, so 0127.0.0.1.x
// does not match.
func leadingIPv4(host string) (netip.Addr, bool) {
	labels := strings.SplitN(host, ".", 5)
	if len(labels) < 4 {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(strings.Join(labels[:4], "."))
	if err != nil || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}

// allowedV4 reports whether a dotted-quad address may be fetched outbound.
func allowedV4(addr netip.Addr) bool {
	return !(inAny(addr, v4CloudMetadata) || inAny(addr, v4Private) ||
		inAny(addr, v4Loopback) || inAny(addr, v4LinkLocal) ||
		inAny(addr, v4Multicast) || inAny(addr, v4Reserved))
}
