// Package health provides agent health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/dbwatch/internal/polling/lifecycle"
)

// SystemStatus represents the overall health state of the agent.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// AgentHealth is the detailed health report.
type AgentHealth struct {
	Status        SystemStatus    `json:"status"`
	State         lifecycle.State `json:"state"`
	Description   string          `json:"description"`
	Reason        string          `json:"reason,omitempty"`
	Backend       string          `json:"backend"`
	SessionID     string          `json:"session_id,omitempty"`
	Version       string          `json:"db_version,omitempty"`
	Role          string          `json:"db_role,omitempty"`
	LastCode      int             `json:"last_code"`
	BackoffSecs   float64         `json:"backoff_seconds"`
	LastCycleAgo  float64         `json:"last_cycle_seconds_ago"`
	Generation    uint64          `json:"checks_generation"`
	Queries       int64           `json:"queries"`
	QueryFailures int64           `json:"query_failures"`
	Connects      int64           `json:"connects"`
	ConnectFails  int64           `json:"connect_failures"`
	Uptime        time.Duration   `json:"uptime_ns"`
}
