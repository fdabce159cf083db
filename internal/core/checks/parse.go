package checks

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

var loadOptions = ini.LoadOptions{
	AllowPythonMultilineValues: true,
	IgnoreInlineComment:        true,
}

// Parse reads one check source. Sections are returned sorted by name and
// checks within a section sorted by key.
func Parse(source string, data []byte) ([]domain.Section, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	var sections []domain.Section
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}

		s := domain.Section{Name: sec.Name(), Source: source}
		interval := ""
		for _, k := range sec.Keys() {
			key := strings.ToLower(k.Name())
			value := strings.TrimSpace(k.Value())
			if key == domain.IntervalKey {
				interval = value
				continue
			}
			if value == "" {
				continue
			}
			s.Checks = append(s.Checks, domain.Check{Section: s.Name, Key: key, Query: value})
		}

		s.Interval, err = parseInterval(interval)
		if err != nil {
			return nil, fmt.Errorf("%s: section [%s]: %w", source, s.Name, err)
		}

		sort.SliceStable(s.Checks, func(i, j int) bool { return s.Checks[i].Key < s.Checks[j].Key })
		sections = append(sections, s)
	}

	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Name < sections[j].Name })
	return sections, nil
}

func parseInterval(v string) (int, error) {
	if v == "" {
		return 0, fmt.Errorf("%w: missing %q", domain.ErrInvalidInterval, domain.IntervalKey)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidInterval, v)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d must be positive", domain.ErrInvalidInterval, n)
	}
	return n, nil
}
