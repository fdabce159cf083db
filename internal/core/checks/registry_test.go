package checks

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

const primaryChecks = `
[perf]
minutes = 5
cpu_load = select 'host1.cpu', 0.42
    from dual
empty =

[discover_tables]
minutes = 60
tables = select table_name from user_tables
`

const siteChecks = `
[perf]
minutes = 1
other = select 1, 2

[site]
minutes = 10
b_second = select 'b', 2
a_first = select 'a', 1
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T, files map[string]string, order ...string) (*Registry, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, body := range files {
		if err := afero.WriteFile(fsys, name, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return NewRegistry(fsys, order, quietLogger()), fsys
}

func TestLoad_FirstLoadBuildsSnapshot(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"/checks/primary.16.cfg": primaryChecks}, "/checks/primary.16.cfg")

	snap, changed, err := r.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !changed {
		t.Error("first load should report changed")
	}
	if snap.Generation != 1 {
		t.Errorf("expected generation 1, got %d", snap.Generation)
	}

	if len(snap.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(snap.Sections))
	}
	if snap.Sections[0].Name != "discover_tables" || snap.Sections[1].Name != "perf" {
		t.Errorf("sections not sorted: %s, %s", snap.Sections[0].Name, snap.Sections[1].Name)
	}

	perf, ok := snap.Section("perf")
	if !ok {
		t.Fatal("perf section missing")
	}
	if perf.Interval != 5 {
		t.Errorf("expected interval 5, got %d", perf.Interval)
	}
	if len(perf.Checks) != 1 || perf.Checks[0].Key != "cpu_load" {
		t.Fatalf("expected only cpu_load (empty keys skipped), got %+v", perf.Checks)
	}
	if !strings.Contains(perf.Checks[0].Query, "from dual") {
		t.Errorf("multi-line query not joined: %q", perf.Checks[0].Query)
	}

	wantSections := `{"data":[{"{#SECTION}":"discover_tables"},{"{#SECTION}":"perf"}]}`
	if snap.SectionDiscovery != wantSections {
		t.Errorf("section discovery = %s, want %s", snap.SectionDiscovery, wantSections)
	}
	wantChecks := `{"data":[{"{#SECTION}":"discover_tables","{#KEY}":"tables"},{"{#SECTION}":"perf","{#KEY}":"cpu_load"}]}`
	if snap.CheckDiscovery != wantChecks {
		t.Errorf("check discovery = %s, want %s", snap.CheckDiscovery, wantChecks)
	}
}

func TestLoad_ReloadsOnlyWhenWatermarkMoves(t *testing.T) {
	path := "/checks/primary.16.cfg"
	r, fsys := newTestRegistry(t, map[string]string{path: primaryChecks}, path)

	first, _, err := r.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	again, changed, err := r.Load()
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if changed {
		t.Error("unchanged source reported as changed")
	}
	if again != first {
		t.Error("expected the same snapshot when nothing changed")
	}

	later := time.Now().Add(time.Minute)
	if err := afero.WriteFile(fsys, path, []byte(siteChecks), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	next, changed, err := r.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !changed {
		t.Fatal("expected reload after watermark change")
	}
	if next.Generation != first.Generation+1 {
		t.Errorf("expected generation %d, got %d", first.Generation+1, next.Generation)
	}
	if _, ok := next.Section("discover_tables"); ok {
		t.Error("old generation leaked into new snapshot")
	}
	if _, ok := first.Section("discover_tables"); !ok {
		t.Error("old snapshot was mutated")
	}
	if r.Current() != next {
		t.Error("Current does not return the new generation")
	}
}

func TestLoad_DuplicateSectionKeepsFirst(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{
		"/c/primary.cfg": primaryChecks,
		"/c/site.cfg":    siteChecks,
	}, "/c/primary.cfg", "/c/site.cfg")

	snap, _, err := r.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	perf, _ := snap.Section("perf")
	if perf.Source != "/c/primary.cfg" || perf.Interval != 5 {
		t.Errorf("expected perf from first source, got %+v", perf)
	}

	site, ok := snap.Section("site")
	if !ok {
		t.Fatal("site section missing")
	}
	if site.Checks[0].Key != "a_first" || site.Checks[1].Key != "b_second" {
		t.Errorf("keys not sorted: %+v", site.Checks)
	}
	if snap.CheckCount() != 4 {
		t.Errorf("expected 4 checks, got %d", snap.CheckCount())
	}
}

func TestLoad_MissingSourceIsConfigError(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"/c/primary.cfg": primaryChecks}, "/c/primary.cfg", "/c/site.cfg")

	if err := r.Verify(); !errors.Is(err, domain.ErrMissingSource) {
		t.Errorf("Verify: expected ErrMissingSource, got %v", err)
	}

	_, _, err := r.Load()
	if !domain.IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !errors.Is(err, domain.ErrMissingSource) {
		t.Errorf("expected ErrMissingSource, got %v", err)
	}
	if r.Current() != nil {
		t.Error("no snapshot should be published on failure")
	}
}

func TestParse_RejectsBadIntervals(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero", "[s]\nminutes = 0\nk = select 1, 2\n"},
		{"negative", "[s]\nminutes = -5\nk = select 1, 2\n"},
		{"not a number", "[s]\nminutes = often\nk = select 1, 2\n"},
		{"missing", "[s]\nk = select 1, 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.cfg", []byte(tt.body))
			if !errors.Is(err, domain.ErrInvalidInterval) {
				t.Errorf("expected ErrInvalidInterval, got %v", err)
			}
		})
	}
}

func TestLoad_InvalidIntervalIsConfigError(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]string{"/c/bad.cfg": "[s]\nminutes = 0\n"}, "/c/bad.cfg")

	_, _, err := r.Load()
	if !domain.IsConfigError(err) || !errors.Is(err, domain.ErrInvalidInterval) {
		t.Errorf("expected ConfigError wrapping ErrInvalidInterval, got %v", err)
	}
}

func TestAbbrev(t *testing.T) {
	if got := Abbrev("select *\nfrom t", 60); got != "select * from t" {
		t.Errorf("Abbrev = %q", got)
	}
	if got := Abbrev(strings.Repeat("x", 100), 60); len(got) != 60 {
		t.Errorf("expected 60 chars, got %d", len(got))
	}
}
