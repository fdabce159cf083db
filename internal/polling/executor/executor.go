// Package executor runs one check's query and turns the result into
// metric and discovery records.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/dbwatch/internal/core/domain"
	"github.com/vietddude/dbwatch/internal/infra/backend"
	"github.com/vietddude/dbwatch/internal/polling/classify"
)

const (
	// CodeOK is the status of a successful check.
	CodeOK = 0

	// CodeFormatError is the status of a check whose rows are not
	// key,value pairs or cannot be encoded as discovery data.
	CodeFormatError = 2
)

// Emitter receives records as they are produced.
type Emitter interface {
	Emit(key string, value any) error
}

// Result describes one check execution.
type Result struct {
	Status  int
	Rows    int
	Elapsed time.Duration
	Fetch   time.Duration
	Failed  bool // the backend returned an error
}

// Executor runs checks on an open session.
type Executor struct {
	classifier *classify.Classifier
	keys       domain.Keys
	clock      clockwork.Clock
	log        *slog.Logger
}

// New creates an executor.
func New(classifier *classify.Classifier, keys domain.Keys, clock clockwork.Clock, log *slog.Logger) *Executor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{classifier: classifier, keys: keys, clock: clock, log: log}
}

// Run executes check on conn and emits its records. Backend errors are
// reported as the check's status; only errors classified as fatal are
// returned, as a *classify.Error. Emitter failures are returned as is.
func (e *Executor) Run(
	ctx context.Context,
	conn backend.Conn,
	section domain.Section,
	check domain.Check,
	out Emitter,
) (Result, error) {
	start := e.clock.Now()
	var res Result

	cur, err := conn.Execute(ctx, check.Query)
	if err != nil {
		res.Elapsed = e.clock.Since(start)
		return e.fail(ctx, conn, check, res, err, out)
	}

	fetchStart := e.clock.Now()
	rows, err := cur.FetchAll(ctx)
	if err != nil {
		_ = cur.Close()
		res.Fetch = e.clock.Since(fetchStart)
		res.Elapsed = e.clock.Since(start)
		return e.fail(ctx, conn, check, res, err, out)
	}
	cols := cur.Columns()
	res.Rows = len(rows)

	status, err := e.emitRows(section, check, cols, rows, out)
	if err != nil {
		return res, err
	}
	res.Status = status
	res.Fetch = e.clock.Since(fetchStart)
	res.Elapsed = e.clock.Since(start)

	if err := out.Emit(e.keys.Query(check.Section, check.Key, "status"), status); err != nil {
		return res, err
	}
	return res, e.emitTiming(check, res, out)
}

func (e *Executor) emitRows(
	section domain.Section,
	check domain.Check,
	cols []string,
	rows [][]any,
	out Emitter,
) (int, error) {
	switch {
	case section.IsDiscovery():
		payload, err := marshalRows(cols, rows)
		if err != nil {
			e.log.Warn("SQL format error: discovery rows not encodable",
				"section", check.Section, "key", check.Key,
				"code", CodeFormatError, "error", err)
			return CodeFormatError, nil
		}
		return CodeOK, out.Emit(check.Key, payload)

	case len(rows) == 0:
		return CodeOK, nil

	case len(cols) == 2:
		for _, row := range rows {
			if err := out.Emit(domain.FormatValue(row[0]), row[1]); err != nil {
				return 0, err
			}
		}
		return CodeOK, nil

	default:
		e.log.Warn("SQL format error: expect key,value pairs",
			"section", check.Section, "key", check.Key,
			"columns", len(cols), "code", CodeFormatError)
		return CodeFormatError, nil
	}
}

func (e *Executor) fail(
	ctx context.Context,
	conn backend.Conn,
	check domain.Check,
	res Result,
	cause error,
	out Emitter,
) (Result, error) {
	if err := conn.Rollback(ctx); err != nil {
		e.log.Debug("Rollback failed", "section", check.Section, "key", check.Key, "error", err)
	}

	ce := e.classifier.Wrap(cause)
	res.Status = ce.Code
	res.Failed = true

	e.log.Error("Database execution error",
		"section", check.Section, "key", check.Key,
		"code", ce.Code, "fatal", ce.Fatal, "error", ce.Message)

	if err := out.Emit(e.keys.Query(check.Section, check.Key, "status"), ce.Code); err != nil {
		return res, err
	}
	if err := e.emitTiming(check, res, out); err != nil {
		return res, err
	}

	if ce.Fatal {
		return res, ce
	}
	return res, nil
}

func (e *Executor) emitTiming(check domain.Check, res Result, out Emitter) error {
	if err := out.Emit(e.keys.Query(check.Section, check.Key, "ela"), res.Elapsed); err != nil {
		return err
	}
	return out.Emit(e.keys.Query(check.Section, check.Key, "fetch"), res.Fetch)
}
