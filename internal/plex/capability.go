package plex

import (
	"slices"
	"strings"
)

// Capability is one entry of a resource's "provides" list.
type Capability string

const (
	CapabilityServer Capability = "server"
	CapabilityClient Capability = "client"
	CapabilityPlayer Capability = "player"
)

// CapabilitySet is the parsed form of a "provides" string.
type CapabilitySet map[Capability]struct{}

// ParseCapabilities splits a comma-delimited provides string. Entries are
// trimmed and lowercased; empty entries are ignored.
func ParseCapabilities(provides string) CapabilitySet {
	set := CapabilitySet{}
	for _, part := range strings.Split(provides, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		set[Capability(part)] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s CapabilitySet) String() string {
	parts := make([]string, 0, len(s))
	for c := range s {
		parts = append(parts, string(c))
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}
