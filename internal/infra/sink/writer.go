package sink

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

// Writer appends records to the output file, one line per record:
//
//	<host> <key> <unix-timestamp> <value>
//
// Lines go straight to the file without buffering so a crash never
// loses records that were already emitted.
type Writer struct {
	host  string
	path  string
	clock clockwork.Clock
	f     *os.File
	lines int
}

// OpenWriter opens path for appending, creating it if needed.
func OpenWriter(path, host string, clock clockwork.Clock) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return &Writer{host: host, path: path, clock: clock, f: f}, nil
}

// Emit writes one record stamped with the current time.
func (w *Writer) Emit(key string, value any) error {
	if w.f == nil {
		return fmt.Errorf("output file %s is closed", w.path)
	}
	line := FormatLine(w.host, key, w.clock.Now().Unix(), domain.FormatValue(value))
	if _, err := w.f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	w.lines++
	return nil
}

// Lines returns how many records were written since the file was opened.
func (w *Writer) Lines() int { return w.lines }

// Close closes the file. Safe to call multiple times.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// FormatLine renders one output line including the trailing newline.
func FormatLine(host, key string, ts int64, value string) string {
	var b strings.Builder
	b.Grow(len(host) + len(key) + len(value) + 16)
	b.WriteString(host)
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
	return b.String()
}
