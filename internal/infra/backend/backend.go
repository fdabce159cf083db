// Package backend defines what the polling engine needs from a database.
package backend

import (
	"context"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

// Cursor is the result of one executed query.
type Cursor interface {
	// Columns returns the result column names in order.
	Columns() []string

	// FetchAll reads every remaining row and finishes the statement.
	FetchAll(ctx context.Context) ([][]any, error)

	// Close releases the cursor without reading further.
	Close() error
}

// Conn is an open backend session. It is used by one goroutine at a time.
type Conn interface {
	// Execute runs query text verbatim.
	Execute(ctx context.Context, query string) (Cursor, error)

	// Rollback abandons the statement in progress, if any.
	Rollback(ctx context.Context) error

	// Identity describes the connected backend.
	Identity(ctx context.Context) (domain.Identity, error)

	// Close ends the session.
	Close() error
}

// Connector opens sessions for one backend kind.
type Connector interface {
	// Kind is the driver kind used to look up the error classifier.
	Kind() string

	Connect(ctx context.Context, creds domain.Credentials) (Conn, error)
}
