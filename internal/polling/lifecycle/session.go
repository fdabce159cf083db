package lifecycle

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/dbwatch/internal/core/checks"
	"github.com/vietddude/dbwatch/internal/core/domain"
	"github.com/vietddude/dbwatch/internal/infra/backend"
	"github.com/vietddude/dbwatch/internal/polling/scheduler"
)

// Settings is what a connect attempt needs from the agent configuration.
// It is re-read before every attempt.
type Settings struct {
	Credentials domain.Credentials
	Backend     string // database type, names the checks subdirectory
	ChecksDir   string
	SiteChecks  []string
}

// Sources returns the check files for a backend with the given identity:
// the role and version specific file followed by the site check files.
func (s Settings) Sources(id domain.Identity) []string {
	dir := filepath.Join(s.ChecksDir, s.Backend)
	paths := []string{filepath.Join(dir, id.CheckSetName()+".cfg")}
	for _, name := range s.SiteChecks {
		paths = append(paths, filepath.Join(dir, name+".cfg"))
	}
	return paths
}

// Session is one open backend connection and everything scoped to it.
// It is discarded on disconnect.
type Session struct {
	ID       string
	Started  time.Time
	Identity domain.Identity
	Conn     backend.Conn
	Registry *checks.Registry
	Schedule scheduler.State

	Queries       int64
	QueryFailures int64
}

func newSession(conn backend.Conn, id domain.Identity, now time.Time) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Started:  now,
		Identity: id,
		Conn:     conn,
	}
}

// Stats are counters for the lifetime of the process.
type Stats struct {
	Started         time.Time `json:"started"`
	Connects        int64     `json:"connects"`
	ConnectFailures int64     `json:"connect_failures"`
	Queries         int64     `json:"queries"`
	QueryFailures   int64     `json:"query_failures"`
	Cycles          int64     `json:"cycles"`
}
