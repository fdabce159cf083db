package health

import (
	"github.com/jonboulle/clockwork"

	"github.com/vietddude/dbwatch/internal/polling/lifecycle"
)

// staleCycles is how many periods may pass without a completed cycle
// before a running agent is reported degraded.
const staleCycles = 3

// StatusSource reports the lifecycle status.
type StatusSource interface {
	Status() lifecycle.Status
}

// Monitor derives agent health from the lifecycle status.
type Monitor struct {
	source StatusSource
	clock  clockwork.Clock
}

// NewMonitor creates a new health monitor.
func NewMonitor(source StatusSource, clock clockwork.Clock) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{source: source, clock: clock}
}

// CheckHealth evaluates the agent's current health.
func (m *Monitor) CheckHealth() AgentHealth {
	st := m.source.Status()
	now := m.clock.Now()

	h := AgentHealth{
		Status:        StatusHealthy,
		State:         st.State,
		Description:   lifecycle.StateDescription(st.State),
		Reason:        st.Reason,
		Backend:       st.Backend,
		SessionID:     st.SessionID,
		Version:       st.Identity.Version,
		Role:          st.Identity.Role,
		LastCode:      st.LastCode,
		BackoffSecs:   st.Wait.Seconds(),
		Generation:    st.Generation,
		Queries:       st.Stats.Queries,
		QueryFailures: st.Stats.QueryFailures,
		Connects:      st.Stats.Connects,
		ConnectFails:  st.Stats.ConnectFailures,
	}
	if !st.Stats.Started.IsZero() {
		h.Uptime = now.Sub(st.Stats.Started)
	}
	if !st.LastCycle.IsZero() {
		h.LastCycleAgo = now.Sub(st.LastCycle).Seconds()
	}

	// Evaluate Status
	switch st.State {
	case lifecycle.StateStopped:
		h.Status = StatusCritical
	case lifecycle.StateRunning:
		if !st.LastCycle.IsZero() && st.Period > 0 && now.Sub(st.LastCycle) > staleCycles*st.Period {
			h.Status = StatusDegraded
		}
	default:
		h.Status = StatusDegraded
	}

	return h
}
