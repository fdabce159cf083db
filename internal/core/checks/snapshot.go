package checks

import (
	"time"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

// Snapshot is one immutable generation of the check set.
type Snapshot struct {
	Generation uint64
	LoadedAt   time.Time
	Sources    []string
	Sections   []domain.Section // sorted by name

	// Discovery payloads, {"data": [...]}.
	SectionDiscovery string
	CheckDiscovery   string
}

// Section looks up a section by name.
func (s *Snapshot) Section(name string) (domain.Section, bool) {
	for _, sec := range s.Sections {
		if sec.Name == name {
			return sec, true
		}
	}
	return domain.Section{}, false
}

// CheckCount returns the number of checks across all sections.
func (s *Snapshot) CheckCount() int {
	n := 0
	for _, sec := range s.Sections {
		n += len(sec.Checks)
	}
	return n
}

func buildSnapshot(gen uint64, now time.Time, sources []string, sections []domain.Section) (*Snapshot, error) {
	sectionMacros := make([]domain.SectionMacro, 0, len(sections))
	var checkMacros []domain.CheckMacro
	for _, sec := range sections {
		sectionMacros = append(sectionMacros, domain.SectionMacro{Section: sec.Name})
		for _, c := range sec.Checks {
			checkMacros = append(checkMacros, domain.CheckMacro{Section: sec.Name, Key: c.Key})
		}
	}

	sectionJSON, err := domain.MarshalDiscovery(sectionMacros)
	if err != nil {
		return nil, err
	}
	checkJSON, err := domain.MarshalDiscovery(checkMacros)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Generation:       gen,
		LoadedAt:         now,
		Sources:          sources,
		Sections:         sections,
		SectionDiscovery: sectionJSON,
		CheckDiscovery:   checkJSON,
	}, nil
}
