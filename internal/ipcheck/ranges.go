// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package ipcheck

import "net/netip"

// Classification range tables. Declarative so that new ranges can be added
// without touching classifier control flow. Cloud-metadata ranges are checked
// before link-local so that 169.254.169.254 classifies as metadata.

var v4Private = prefixes(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

var v4Loopback = prefixes(
	"127.0.0.0/8",
)

var v4LinkLocal = prefixes(
	"169.254.0.0/16",
)

var v4Multicast = prefixes(
	"224.0.0.0/4",
)

var v4Reserved = prefixes(
	"0.0.0.0/8",         // "this network"
	"100.64.0.0/10",     // carrier-grade NAT
	"192.0.0.0/24",      // IETF protocol assignments
	"192.0.2.0/24",      // TEST-NET-1
	"198.18.0.0/15",     // benchmarking
	"198.51.100.0/24",   // TEST-NET-2
	"203.0.113.0/24",    // TEST-NET-3
	"240.0.0.0/4",       // class E
	"255.255.255.255/32",
)

var v4CloudMetadata = prefixes(
	"169.254.169.254/32", // AWS/GCP/Azure/OpenStack instance metadata
	"169.254.170.2/32",   // AWS ECS task metadata
	"100.100.100.200/32", // Alibaba Cloud metadata
)

var v6Private = prefixes(
	"fc00::/7", // unique local
)

var v6Loopback = prefixes(
	"::1/128",
)

var v6LinkLocal = prefixes(
	"fe80::/10",
)

var v6Multicast = prefixes(
	"ff00::/8",
)

var v6Reserved = prefixes(
	"::/128",        // unspecified
	"64:ff9b::/96",  // NAT64
	"100::/64",      // discard-only
	"2001:db8::/32", // documentation
	"2001::/32",     // Teredo
)

var v6CloudMetadata = prefixes(
	"fd00:ec2::254/128", // AWS IMDSv2 IPv6 endpoint
)

// prefixes parses a list of CIDR literals, panicking on programmer error.
// Called only from package variable initialization with fixed inputs.
func prefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

// inAny reports whether addr is covered by any prefix in the table.
func inAny(addr netip.Addr, table []netip.Prefix) bool {
	for _, p := range table {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
