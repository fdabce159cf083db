// Package checks loads named check sections from one or more sources and
// publishes them as immutable, versioned snapshots.
package checks

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

// source is one check file and the modification time it was last read at.
type source struct {
	path      string
	watermark time.Time
}

// Registry tracks a fixed, ordered list of check sources.
type Registry struct {
	fs      afero.Fs
	log     *slog.Logger
	sources []source
	current atomic.Pointer[Snapshot]
	gen     uint64
	now     func() time.Time
}

// NewRegistry creates a registry over the given sources. Order matters:
// when two sources define the same section, the earlier one wins.
func NewRegistry(fsys afero.Fs, paths []string, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	srcs := make([]source, len(paths))
	for i, p := range paths {
		srcs[i] = source{path: p}
	}
	return &Registry{fs: fsys, log: log, sources: srcs, now: time.Now}
}

// Paths returns the registry's sources in load order.
func (r *Registry) Paths() []string {
	paths := make([]string, len(r.sources))
	for i, s := range r.sources {
		paths[i] = s.path
	}
	return paths
}

// Current returns the active snapshot, or nil before the first Load.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Verify checks that every source exists.
func (r *Registry) Verify() error {
	for _, s := range r.sources {
		if _, err := r.stat(s.path); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the active snapshot, rebuilding it first when any source's
// watermark moved or nothing has been loaded yet. All sources are re-read
// together so section and key listings stay coherent.
func (r *Registry) Load() (*Snapshot, bool, error) {
	marks := make([]time.Time, len(r.sources))
	changed := r.current.Load() == nil
	for i, s := range r.sources {
		info, err := r.stat(s.path)
		if err != nil {
			return nil, false, err
		}
		marks[i] = info.ModTime()
		if !marks[i].Equal(s.watermark) {
			if !s.watermark.IsZero() {
				r.log.Info("Checks changed, reloading", "source", s.path)
			}
			changed = true
		}
	}

	if !changed {
		return r.current.Load(), false, nil
	}

	snap, err := r.reload()
	if err != nil {
		return nil, false, err
	}

	for i := range r.sources {
		r.sources[i].watermark = marks[i]
	}
	r.current.Store(snap)
	return snap, true, nil
}

func (r *Registry) reload() (*Snapshot, error) {
	var merged []domain.Section
	seen := make(map[string]string)

	for _, s := range r.sources {
		r.log.Info("Loading checks", "source", s.path)
		data, err := afero.ReadFile(r.fs, s.path)
		if err != nil {
			return nil, r.missing(s.path, err)
		}

		sections, err := Parse(s.path, data)
		if err != nil {
			return nil, domain.NewConfigError("load checks", err)
		}

		for _, sec := range sections {
			if first, dup := seen[sec.Name]; dup {
				r.log.Warn("Duplicate section ignored",
					"section", sec.Name, "source", s.path, "kept", first)
				continue
			}
			seen[sec.Name] = s.path
			merged = append(merged, sec)

			r.log.Info("Section loaded", "section", sec.Name, "minutes", sec.Interval, "checks", len(sec.Checks))
			for _, c := range sec.Checks {
				r.log.Debug("Check loaded", "section", sec.Name, "key", c.Key, "query", Abbrev(c.Query, 60))
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })

	r.gen++
	snap, err := buildSnapshot(r.gen, r.now(), r.Paths(), merged)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery: %w", err)
	}
	return snap, nil
}

func (r *Registry) stat(path string) (fs.FileInfo, error) {
	info, err := r.fs.Stat(path)
	if err != nil {
		return nil, r.missing(path, err)
	}
	return info, nil
}

func (r *Registry) missing(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		err = fmt.Errorf("%w: %s", domain.ErrMissingSource, path)
	}
	return domain.NewConfigError("load checks", err)
}

// Abbrev shortens a query for log output and puts it on one line.
func Abbrev(q string, n int) string {
	q = strings.NewReplacer("\n", " ", "\r", " ").Replace(q)
	if len(q) > n {
		return q[:n]
	}
	return q
}
