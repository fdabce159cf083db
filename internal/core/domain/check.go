package domain

import "strings"

// IntervalKey is the reserved section key holding the run interval in minutes.
const IntervalKey = "minutes"

// DiscoveryMarker marks a section whose checks return discovery rows.
const DiscoveryMarker = "discover"

// Check is a single named query within a section.
type Check struct {
	Section string
	Key     string
	Query   string
}

// Section is a named group of checks sharing one scheduling interval.
type Section struct {
	Name     string
	Interval int // minutes, always > 0
	Source   string
	Checks   []Check // ordered by key
}

// IsDiscovery reports whether the section's checks produce discovery payloads.
func (s Section) IsDiscovery() bool {
	return strings.Contains(s.Name, DiscoveryMarker)
}
