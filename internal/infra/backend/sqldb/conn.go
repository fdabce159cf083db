package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/dbwatch/internal/core/domain"
	"github.com/vietddude/dbwatch/internal/infra/backend"
)

// Conn is a backend session pinned to a single database connection.
// Every statement runs in its own transaction so a failed check can be
// rolled back without touching the next one.
type Conn struct {
	db     *sqlx.DB
	dbType string
	tx     *sqlx.Tx
}

// Execute begins a transaction and runs query in it.
func (c *Conn) Execute(ctx context.Context, query string) (backend.Cursor, error) {
	if c.tx != nil {
		_ = c.Rollback(ctx)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.tx = tx

	rows, err := tx.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	return &cursor{conn: c, rows: rows, cols: cols}, nil
}

// Rollback rolls back the open transaction. Safe to call multiple times.
func (c *Conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (c *Conn) commit() error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Commit()
	c.tx = nil
	return err
}

// Close rolls back anything open and closes the connection.
func (c *Conn) Close() error {
	_ = c.Rollback(context.Background())
	return c.db.Close()
}

// Identity runs the type-specific identity queries.
func (c *Conn) Identity(ctx context.Context) (domain.Identity, error) {
	q := identityQueries[c.dbType]
	return q(ctx, c.db)
}

type cursor struct {
	conn *Conn
	rows *sqlx.Rows
	cols []string
}

func (cur *cursor) Columns() []string { return cur.cols }

func (cur *cursor) FetchAll(ctx context.Context) ([][]any, error) {
	defer cur.rows.Close()

	var out [][]any
	for cur.rows.Next() {
		vals, err := cur.rows.SliceScan()
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		out = append(out, vals)
	}
	if err := cur.rows.Err(); err != nil {
		return nil, err
	}
	if err := cur.rows.Close(); err != nil {
		return nil, err
	}
	return out, cur.conn.commit()
}

func (cur *cursor) Close() error {
	return cur.rows.Close()
}

// normalize turns driver byte slices into strings so values render and
// marshal as text.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
