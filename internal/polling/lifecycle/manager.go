// Package lifecycle owns the backend connection. It connects, picks the
// check set for the backend's identity, runs due sections on an aligned
// cycle and, when the session breaks, backs off and reconnects.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/vietddude/dbwatch/internal/core/checks"
	"github.com/vietddude/dbwatch/internal/core/domain"
	"github.com/vietddude/dbwatch/internal/infra/backend"
	"github.com/vietddude/dbwatch/internal/infra/sink"
	"github.com/vietddude/dbwatch/internal/polling/backoff"
	"github.com/vietddude/dbwatch/internal/polling/classify"
	"github.com/vietddude/dbwatch/internal/polling/executor"
	"github.com/vietddude/dbwatch/internal/polling/metrics"
	"github.com/vietddude/dbwatch/internal/polling/scheduler"
)

const (
	// DefaultPeriod is the cycle length when none is configured.
	DefaultPeriod = 60 * time.Second

	flushTimeout = 30 * time.Second
)

// Sink receives records and ships them at cycle boundaries.
type Sink interface {
	executor.Emitter
	Handoff(ctx context.Context) (sink.Outcome, error)
	Close() error
}

// Options wires a Manager.
type Options struct {
	Connector  backend.Connector
	Classifier *classify.Classifier // defaults to the one registered for Connector.Kind()
	Backoff    *backoff.Controller
	Sink       Sink
	Keys       domain.Keys
	Version    string // agent version, emitted every cycle

	// Reload is called before every connect attempt.
	Reload func() (Settings, error)

	Fs         afero.Fs
	Clock      clockwork.Clock
	Usage      UsageSampler
	Period     time.Duration
	StatsEvery time.Duration
	Log        *slog.Logger
}

// Status is a point-in-time view of the manager for health reporting.
type Status struct {
	State      State           `json:"state"`
	Since      time.Time       `json:"since"`
	Reason     string          `json:"reason,omitempty"`
	Backend    string          `json:"backend"`
	SessionID  string          `json:"session_id,omitempty"`
	Identity   domain.Identity `json:"identity"`
	LastCode   int             `json:"last_code"`
	Wait       time.Duration   `json:"wait"`
	Period     time.Duration   `json:"period"`
	LastCycle  time.Time       `json:"last_cycle"`
	Generation uint64          `json:"generation"`
	Stats      Stats           `json:"stats"`
}

// Manager runs the connect, poll, back off loop.
type Manager struct {
	connector  backend.Connector
	classifier *classify.Classifier
	backoff    *backoff.Controller
	executor   *executor.Executor
	sink       Sink
	keys       domain.Keys
	version    string
	reload     func() (Settings, error)
	fs         afero.Fs
	clock      clockwork.Clock
	usage      UsageSampler
	period     time.Duration
	statsEvery time.Duration
	log        *slog.Logger

	bo        backoff.State
	started   time.Time
	lastStats time.Time

	mu     sync.RWMutex
	status Status
}

// New creates a manager.
func New(opts Options) (*Manager, error) {
	if opts.Connector == nil {
		return nil, errors.New("connector is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("sink is required")
	}
	if opts.Reload == nil {
		return nil, errors.New("settings reload function is required")
	}
	if opts.Classifier == nil {
		c, err := classify.For(opts.Connector.Kind())
		if err != nil {
			return nil, err
		}
		opts.Classifier = c
	}
	if opts.Backoff == nil {
		opts.Backoff = backoff.NewController(backoff.DefaultConfig())
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	return &Manager{
		connector:  opts.Connector,
		classifier: opts.Classifier,
		backoff:    opts.Backoff,
		executor:   executor.New(opts.Classifier, opts.Keys, opts.Clock, opts.Log),
		sink:       opts.Sink,
		keys:       opts.Keys,
		version:    opts.Version,
		reload:     opts.Reload,
		fs:         opts.Fs,
		clock:      opts.Clock,
		usage:      opts.Usage,
		period:     opts.Period,
		statsEvery: opts.StatsEvery,
		log:        opts.Log,
		status: Status{
			State:   StateDisconnected,
			Backend: opts.Connector.Kind(),
			Period:  opts.Period,
		},
	}, nil
}

// Status returns a copy of the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Run connects and polls until ctx is cancelled or a terminal condition
// occurs. It returns nil on cancellation; configuration errors and
// privileged connection requirements are returned. Open output is handed
// to the transport before returning.
func (m *Manager) Run(ctx context.Context) error {
	m.started = m.clock.Now()
	m.lastStats = m.started
	m.bo = m.backoff.Reset()
	m.update(func(s *Status) { s.Stats.Started = m.started })
	defer m.sink.Close()

	for {
		m.transition(StateConnecting, "connect attempt")
		err := m.runSession(ctx)
		if ctx.Err() != nil {
			return m.stop(nil, "shutdown")
		}

		if domain.IsConfigError(err) {
			m.log.Error("Configuration error, stopping", "error", err)
			return m.stop(err, err.Error())
		}

		v := m.verdict(err)
		m.recordFailure(ctx, v)
		if v.Privileged {
			m.log.Error("Privileged connection required, stopping", "code", v.Code, "error", v.Message)
			return m.stop(err, v.Message)
		}

		var wait time.Duration
		wait, m.bo = m.backoff.Next(m.bo, v.Code)
		metrics.BackoffSeconds.Set(wait.Seconds())
		m.update(func(s *Status) {
			s.Wait = wait
			s.LastCode = v.Code
		})
		m.log.Info("Reconnecting after backoff", "wait", wait, "code", v.Code)

		select {
		case <-ctx.Done():
			return m.stop(nil, "shutdown")
		case <-m.clock.After(wait):
		}
		m.transition(StateDisconnected, "backoff elapsed")
	}
}

func (m *Manager) stop(err error, reason string) error {
	m.transition(StateStopped, reason)
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	m.deliver(ctx)
	return err
}

// runSession connects and polls until the session breaks. It always
// returns a non-nil error.
func (m *Manager) runSession(ctx context.Context) error {
	settings, err := m.reload()
	if err != nil {
		return domain.NewConfigError("load configuration", err)
	}

	metrics.ConnectAttempts.WithLabelValues(m.connector.Kind()).Inc()
	m.update(func(s *Status) { s.Stats.Connects++ })

	conn, err := m.connector.Connect(ctx, settings.Credentials)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			m.log.Debug("Failed to close session", "error", err)
		}
		metrics.Connected.Set(0)
	}()
	metrics.Connected.Set(1)
	metrics.BackoffSeconds.Set(0)
	m.bo = m.backoff.Reset()

	id, err := conn.Identity(ctx)
	if err != nil {
		v := m.verdict(err)
		if v.Fatal {
			return err
		}
		m.log.Warn("Failed to read backend identity", "version", id.Version, "code", v.Code, "error", v.Message)
	}

	sess := newSession(conn, id, m.clock.Now())
	log := m.log.With("session", sess.ID)
	log.Info("Connected",
		"url", settings.Credentials.URL, "role", id.Role, "version", id.Version,
		"instance", id.InstanceName, "type", id.InstanceType,
		"user", id.Username, "sid", id.SessionID, "as", settings.Credentials.Role)

	sess.Registry = checks.NewRegistry(m.fs, settings.Sources(id), log)
	log.Info("Using checks", "sources", sess.Registry.Paths())
	if err := sess.Registry.Verify(); err != nil {
		return err
	}

	m.transition(StateConnected, "session "+sess.ID)
	m.update(func(s *Status) {
		s.SessionID = sess.ID
		s.Identity = id
		s.LastCode = 0
		s.Wait = 0
	})
	if err := m.sink.Emit(m.keys.Connect(), executor.CodeOK); err != nil {
		return err
	}

	m.transition(StateRunning, "polling")
	for {
		if err := m.cycle(ctx, sess, log); err != nil {
			return err
		}
		if err := m.sleepUntilNextCycle(ctx); err != nil {
			return err
		}
	}
}

// cycle runs one polling cycle: reload checks if changed, run due
// sections, emit cycle timing and resource usage, then hand off output.
func (m *Manager) cycle(ctx context.Context, sess *Session, log *slog.Logger) error {
	start := m.clock.Now()
	if err := m.sink.Emit(m.keys.Version(), m.version); err != nil {
		return err
	}

	snap, changed, err := sess.Registry.Load()
	if err != nil {
		return err
	}
	if changed {
		log.Info("Checks loaded",
			"generation", snap.Generation, "sections", len(snap.Sections), "checks", snap.CheckCount())
		if err := m.sink.Emit(m.keys.SectionLLD(), snap.SectionDiscovery); err != nil {
			return err
		}
		if err := m.sink.Emit(m.keys.QueryLLD(), snap.CheckDiscovery); err != nil {
			return err
		}
		metrics.ChecksLoaded.Set(float64(snap.CheckCount()))
		metrics.ChecksGeneration.Set(float64(snap.Generation))
		m.update(func(s *Status) { s.Generation = snap.Generation })
	}

	if err := m.sink.Emit(m.keys.Connect(), executor.CodeOK); err != nil {
		return err
	}

	for _, sec := range scheduler.Due(sess.Schedule.Tick, snap.Sections) {
		if err := m.runSection(ctx, sess, sec); err != nil {
			return err
		}
	}

	if err := m.sink.Emit(m.keys.CycleElapsed(), m.clock.Since(start)); err != nil {
		return err
	}
	if err := m.emitUsage(ctx, log); err != nil {
		return err
	}
	sess.Schedule = sess.Schedule.Advance()

	now := m.clock.Now()
	metrics.CycleDuration.Observe(now.Sub(start).Seconds())
	m.update(func(s *Status) {
		s.LastCycle = now
		s.Stats.Cycles++
	})
	m.maybeLogStats(now, sess, log)
	m.deliver(ctx)
	return nil
}

func (m *Manager) runSection(ctx context.Context, sess *Session, sec domain.Section) error {
	start := m.clock.Now()
	for _, chk := range sec.Checks {
		res, err := m.executor.Run(ctx, sess.Conn, sec, chk, m.sink)

		sess.Queries++
		if res.Failed {
			sess.QueryFailures++
		}
		metrics.QueriesTotal.WithLabelValues(sec.Name, strconv.Itoa(res.Status)).Inc()
		metrics.QueryLatency.WithLabelValues(sec.Name).Observe(res.Elapsed.Seconds())
		m.update(func(s *Status) {
			s.Stats.Queries++
			if res.Failed {
				s.Stats.QueryFailures++
			}
		})

		if err != nil {
			return err
		}
	}
	return m.sink.Emit(m.keys.SectionElapsed(sec.Name), m.clock.Since(start))
}

func (m *Manager) emitUsage(ctx context.Context, log *slog.Logger) error {
	if m.usage == nil {
		return nil
	}
	u, err := m.usage.Sample(ctx)
	if err != nil {
		log.Debug("Failed to sample resource usage", "error", err)
		return nil
	}
	if err := m.sink.Emit(m.keys.CPUUser(), u.User); err != nil {
		return err
	}
	if err := m.sink.Emit(m.keys.CPUSys(), u.System); err != nil {
		return err
	}
	return m.sink.Emit(m.keys.MemRSS(), u.RSS)
}

// nextBoundary returns the first cycle boundary after now. Boundaries
// are multiples of the period from process start so cadence never drifts.
func (m *Manager) nextBoundary(now time.Time) time.Time {
	n := now.Sub(m.started)/m.period + 1
	return m.started.Add(n * m.period)
}

func (m *Manager) sleepUntilNextCycle(ctx context.Context) error {
	now := m.clock.Now()
	wait := m.nextBoundary(now).Sub(now)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(wait):
		return nil
	}
}

func (m *Manager) maybeLogStats(now time.Time, sess *Session, log *slog.Logger) {
	if m.statsEvery <= 0 || now.Sub(m.lastStats) < m.statsEvery {
		return
	}
	m.lastStats = now
	st := m.Status().Stats
	log.Info("Agent stats",
		"connects", st.Connects, "connect_failures", st.ConnectFailures,
		"queries", st.Queries, "query_failures", st.QueryFailures, "cycles", st.Cycles,
		"session_queries", sess.Queries, "session_query_failures", sess.QueryFailures,
		"uptime", now.Sub(st.Started).Round(time.Second))
}

// verdict classifies a session-ending error.
func (m *Manager) verdict(err error) classify.Classified {
	if ce, ok := classify.AsError(err); ok {
		return ce.Classified
	}
	return m.classifier.Classify(err)
}

// recordFailure reports a broken or refused session. Codes outside the
// fatal set count as connect failures, as does a refused privileged
// login; other fatal codes mean a live session was lost.
func (m *Manager) recordFailure(ctx context.Context, v classify.Classified) {
	if !v.Fatal || v.Privileged {
		m.update(func(s *Status) { s.Stats.ConnectFailures++ })
	}
	metrics.SessionFailures.WithLabelValues(
		m.connector.Kind(), strconv.Itoa(v.Code), strconv.FormatBool(v.Fatal)).Inc()

	m.transition(StateFailed, v.Message)
	m.log.Error("Session failed", "code", v.Code, "fatal", v.Fatal, "error", v.Message)

	if err := m.sink.Emit(m.keys.Connect(), v.Code); err != nil {
		m.log.Error("Failed to write connect status", "error", err)
	}
	m.deliver(ctx)
}

func (m *Manager) deliver(ctx context.Context) {
	outcome, err := m.sink.Handoff(ctx)
	metrics.TransportTotal.WithLabelValues(outcome.String()).Inc()
	if err != nil {
		m.log.Error("Failed to archive output", "error", err)
	}
}

func (m *Manager) transition(to State, reason string) {
	m.mu.Lock()
	t := Transition{From: m.status.State, To: to, Reason: reason, Timestamp: m.clock.Now()}
	m.status.State = to
	m.status.Since = t.Timestamp
	m.status.Reason = reason
	m.mu.Unlock()

	if !t.IsValid() {
		m.log.Warn("Unexpected state transition", "from", t.From, "to", t.To)
	}
	m.log.Debug("State changed", "from", t.From, "to", t.To, "reason", reason)
}

func (m *Manager) update(fn func(*Status)) {
	m.mu.Lock()
	fn(&m.status)
	m.mu.Unlock()
}
