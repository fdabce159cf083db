package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Outcome is the result of handing the output file to a transport.
type Outcome int

const (
	// Skipped means nothing was sent; the file keeps accumulating.
	Skipped Outcome = iota
	// Delivered means every line was accepted.
	Delivered
	// Partial means some lines were rejected by the collector. The file
	// is archived anyway; resending would duplicate the accepted lines.
	Partial
	// Failed means the transport could not deliver. The file is kept and
	// resent with the next cycle.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Delivered:
		return "delivered"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transport delivers an output file to the monitoring collector.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, path string) (Outcome, error)
}

// NoopTransport leaves the output file for an external shipper.
type NoopTransport struct{}

func (NoopTransport) Name() string { return "none" }

func (NoopTransport) Deliver(ctx context.Context, path string) (Outcome, error) {
	return Skipped, nil
}

// CommandTransport runs an external sender such as zabbix_sender with the
// output file path appended to its arguments. Exit code 0 is success and
// 2 is partial success; anything else is a failure.
type CommandTransport struct {
	args []string
}

// NewCommandTransport parses a whitespace separated command line.
func NewCommandTransport(cmdline string) (*CommandTransport, error) {
	args := strings.Fields(cmdline)
	if len(args) == 0 {
		return nil, errors.New("transport command is empty")
	}
	return &CommandTransport{args: args}, nil
}

func (t *CommandTransport) Name() string { return t.args[0] }

// Deliver runs the command, writing its output to <path>.log.
func (t *CommandTransport) Deliver(ctx context.Context, path string) (Outcome, error) {
	logf, err := os.Create(path + ".log")
	if err != nil {
		return Failed, fmt.Errorf("failed to create transport log: %w", err)
	}
	defer logf.Close()

	args := append(append([]string{}, t.args[1:]...), path)
	cmd := exec.CommandContext(ctx, t.args[0], args...)
	cmd.Stdout = logf
	cmd.Stderr = logf

	err = cmd.Run()
	if err == nil {
		return Delivered, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 2 {
			return Partial, nil
		}
		return Failed, fmt.Errorf("%s exited with code %d", t.args[0], exitErr.ExitCode())
	}
	return Failed, fmt.Errorf("failed to run %s: %w", t.args[0], err)
}

// LinePusher appends lines to a named list.
type LinePusher interface {
	PushLines(ctx context.Context, list string, lines []string) error
}

// RedisTransport pushes every output line onto a Redis list for a
// downstream forwarder.
type RedisTransport struct {
	pusher LinePusher
	list   string
}

// NewRedisTransport creates a transport pushing onto list.
func NewRedisTransport(pusher LinePusher, list string) *RedisTransport {
	return &RedisTransport{pusher: pusher, list: list}
}

func (t *RedisTransport) Name() string { return "redis" }

func (t *RedisTransport) Deliver(ctx context.Context, path string) (Outcome, error) {
	lines, err := readLines(path)
	if err != nil {
		return Failed, err
	}
	if len(lines) == 0 {
		return Delivered, nil
	}
	if err := t.pusher.PushLines(ctx, t.list, lines); err != nil {
		return Failed, fmt.Errorf("failed to push to redis: %w", err)
	}
	return Delivered, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
