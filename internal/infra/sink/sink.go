// Package sink writes metric records to the output file and hands the
// file to a transport at every cycle boundary.
package sink

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// Sink owns the output file across cycles.
type Sink struct {
	path      string
	host      string
	transport Transport
	clock     clockwork.Clock
	log       *slog.Logger
	w         *Writer
}

// New creates a sink writing to path on behalf of host.
func New(path, host string, transport Transport, clock clockwork.Clock, log *slog.Logger) *Sink {
	if transport == nil {
		transport = NoopTransport{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sink{path: path, host: host, transport: transport, clock: clock, log: log}
}

// Path returns the output file path.
func (s *Sink) Path() string { return s.path }

// Emit writes one record, opening the output file on first use.
func (s *Sink) Emit(key string, value any) error {
	if s.w == nil {
		w, err := OpenWriter(s.path, s.host, s.clock)
		if err != nil {
			return err
		}
		s.w = w
	}
	return s.w.Emit(key, value)
}

// Close closes the output file without delivering it.
func (s *Sink) Close() error {
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	return err
}

// Handoff closes the current file and passes it to the transport. On
// success or partial success the file moves into the day's archive;
// otherwise it stays in place and is sent again next cycle.
func (s *Sink) Handoff(ctx context.Context) (Outcome, error) {
	if err := s.Close(); err != nil {
		return Failed, err
	}

	outcome, err := s.transport.Deliver(ctx, s.path)
	if err != nil {
		s.log.Error("Transport failed", "transport", s.transport.Name(), "outcome", outcome.String(), "error", err)
		return outcome, nil
	}

	switch outcome {
	case Delivered, Partial:
		if err := Rotate(s.path, s.clock.Now()); err != nil {
			return outcome, err
		}
		if outcome == Partial {
			s.log.Warn("Transport partially succeeded", "transport", s.transport.Name())
		}
	}
	return outcome, nil
}
