package sink

import (
	"fmt"
	"io"
	"os"
	"time"
)

// freshDayWindow is how long after midnight the next day's archive is
// truncated, so each weekday file only ever holds one day.
const freshDayWindow = 10 * time.Minute

// ArchivePath returns the per-day archive for path, e.g. out.zbx.Mon.
func ArchivePath(path string, day time.Time) string {
	return path + "." + day.Format("Mon")
}

// Rotate appends the output file to today's archive and truncates it.
// Shortly after midnight it also empties tomorrow's archive, which still
// holds last week's data.
func Rotate(path string, now time.Time) error {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Sub(midnight) < freshDayWindow {
		tomorrow := ArchivePath(path, now.AddDate(0, 0, 1))
		if err := os.WriteFile(tomorrow, nil, 0o644); err != nil {
			return fmt.Errorf("failed to reset archive %s: %w", tomorrow, err)
		}
	}

	in, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer in.Close()

	archive := ArchivePath(path, now)
	out, err := os.OpenFile(archive, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to append to archive %s: %w", archive, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Truncate(path, 0)
}
