// Package scheduler decides which sections run on a given tick.
package scheduler

import (
	"sort"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

// State counts completed cycles since the current session connected.
// A fresh session starts at tick 0, so every section runs on its first cycle.
type State struct {
	Tick uint64
}

// Advance returns the state for the next cycle.
func (s State) Advance() State {
	return State{Tick: s.Tick + 1}
}

// IsDue reports whether a section with the given interval runs on tick.
// Non-positive intervals never run; the registry rejects them at load time.
func IsDue(tick uint64, interval int) bool {
	if interval <= 0 {
		return false
	}
	return tick%uint64(interval) == 0
}

// Due returns the sections to run on tick, ordered by name.
func Due(tick uint64, sections []domain.Section) []domain.Section {
	due := make([]domain.Section, 0, len(sections))
	for _, s := range sections {
		if IsDue(tick, s.Interval) {
			due = append(due, s)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].Name < due[j].Name })
	return due
}
