package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/dbwatch/internal/core/domain"
	"github.com/vietddude/dbwatch/internal/infra/backend"
	"github.com/vietddude/dbwatch/internal/polling/classify"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeResult struct {
	cols     []string
	rows     [][]any
	execErr  error
	fetchErr error
}

type fakeConn struct {
	results   map[string]fakeResult
	rollbacks int
	executed  []string
}

func (c *fakeConn) Execute(ctx context.Context, query string) (backend.Cursor, error) {
	c.executed = append(c.executed, query)
	r := c.results[query]
	if r.execErr != nil {
		return nil, r.execErr
	}
	return &fakeCursor{r: r}, nil
}

func (c *fakeConn) Rollback(ctx context.Context) error {
	c.rollbacks++
	return nil
}

func (c *fakeConn) Identity(ctx context.Context) (domain.Identity, error) {
	return domain.Identity{}, nil
}

func (c *fakeConn) Close() error { return nil }

type fakeCursor struct {
	r fakeResult
}

func (c *fakeCursor) Columns() []string { return c.r.cols }

func (c *fakeCursor) FetchAll(ctx context.Context) ([][]any, error) {
	if c.r.fetchErr != nil {
		return nil, c.r.fetchErr
	}
	return c.r.rows, nil
}

func (c *fakeCursor) Close() error { return nil }

type record struct {
	key   string
	value any
}

type recorder struct {
	records []record
}

func (r *recorder) Emit(key string, value any) error {
	r.records = append(r.records, record{key, value})
	return nil
}

func (r *recorder) get(key string) (any, bool) {
	for _, rec := range r.records {
		if rec.key == key {
			return rec.value, true
		}
	}
	return nil, false
}

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	c, err := classify.For("oracle")
	if err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(c, domain.Keys{Prefix: "dbwatch"}, clockwork.NewFakeClock(), log)
}

// =============================================================================
// Tests
// =============================================================================

func TestRun_KeyValueRows(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{
		"q": {cols: []string{"KEY", "VALUE"}, rows: [][]any{{"host1.cpu", 0.42}, {"host1.mem", int64(7)}}},
	}}
	sec := domain.Section{Name: "perf", Interval: 5}
	check := domain.Check{Section: "perf", Key: "cpu_load", Query: "q"}
	out := &recorder{}

	res, err := newExecutor(t).Run(context.Background(), conn, sec, check, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != CodeOK || res.Rows != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	want := []string{
		"host1.cpu",
		"host1.mem",
		"dbwatch[query,perf,cpu_load,status]",
		"dbwatch[query,perf,cpu_load,ela]",
		"dbwatch[query,perf,cpu_load,fetch]",
	}
	if len(out.records) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(out.records), out.records)
	}
	for i, key := range want {
		if out.records[i].key != key {
			t.Errorf("record %d: key %q, want %q", i, out.records[i].key, key)
		}
	}
	if v, _ := out.get("host1.cpu"); v != 0.42 {
		t.Errorf("host1.cpu = %v, want 0.42", v)
	}
	if v, _ := out.get("dbwatch[query,perf,cpu_load,status]"); v != 0 {
		t.Errorf("status = %v, want 0", v)
	}
}

func TestRun_DiscoveryRows(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{
		"q": {cols: []string{"table_name"}, rows: [][]any{{"orders"}, {"customers"}}},
	}}
	sec := domain.Section{Name: "discover_tables", Interval: 60}
	check := domain.Check{Section: sec.Name, Key: "tables", Query: "q"}
	out := &recorder{}

	if _, err := newExecutor(t).Run(context.Background(), conn, sec, check, out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	v, ok := out.get("tables")
	if !ok {
		t.Fatal("no discovery record emitted")
	}
	want := `{"data":[{"table_name":"orders"},{"table_name":"customers"}]}`
	if v != want {
		t.Errorf("payload = %v, want %s", v, want)
	}
	if s, _ := out.get("dbwatch[query,discover_tables,tables,status]"); s != 0 {
		t.Errorf("status = %v, want 0", s)
	}
}

func TestRun_DiscoveryKeepsColumnOrder(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{
		"q": {cols: []string{"{#TS}", "{#BYTES}", "{#AUTO}"}, rows: [][]any{{"USERS", int64(1024), true}}},
	}}
	sec := domain.Section{Name: "discover_ts", Interval: 60}
	out := &recorder{}

	if _, err := newExecutor(t).Run(context.Background(), conn, sec, domain.Check{Section: sec.Name, Key: "ts", Query: "q"}, out); err != nil {
		t.Fatal(err)
	}
	v, _ := out.get("ts")
	want := `{"data":[{"{#TS}":"USERS","{#BYTES}":1024,"{#AUTO}":true}]}`
	if v != want {
		t.Errorf("payload = %v, want %s", v, want)
	}
}

func TestRun_DiscoveryNonFiniteFloats(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{
		"q": {cols: []string{"{#V}"}, rows: [][]any{{math.NaN()}, {math.Inf(1)}, {math.Inf(-1)}}},
	}}
	sec := domain.Section{Name: "discover_x", Interval: 60}
	out := &recorder{}

	res, err := newExecutor(t).Run(context.Background(), conn, sec, domain.Check{Section: sec.Name, Key: "x", Query: "q"}, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != CodeOK {
		t.Errorf("status = %d, want 0", res.Status)
	}
	want := `{"data":[{"{#V}":"NaN"},{"{#V}":"+Inf"},{"{#V}":"-Inf"}]}`
	if v, _ := out.get("x"); v != want {
		t.Errorf("payload = %v, want %s", v, want)
	}
	if len(out.records) != 4 {
		t.Errorf("expected payload, status and timings, got %+v", out.records)
	}
}

func TestRun_DiscoveryUnencodableRowReportsFormatError(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{
		"q": {cols: []string{"{#V}"}, rows: [][]any{{make(chan int)}}},
	}}
	sec := domain.Section{Name: "discover_x", Interval: 60}
	out := &recorder{}

	res, err := newExecutor(t).Run(context.Background(), conn, sec, domain.Check{Section: sec.Name, Key: "x", Query: "q"}, out)
	if err != nil {
		t.Fatalf("encoding errors must not be returned: %v", err)
	}
	if res.Status != CodeFormatError {
		t.Errorf("status = %d, want %d", res.Status, CodeFormatError)
	}
	if _, ok := out.get("x"); ok {
		t.Error("no payload expected for an unencodable result")
	}
	if v, _ := out.get("dbwatch[query,discover_x,x,status]"); v != CodeFormatError {
		t.Errorf("status record = %v, want %d", v, CodeFormatError)
	}
	for _, key := range []string{"dbwatch[query,discover_x,x,ela]", "dbwatch[query,discover_x,x,fetch]"} {
		if _, ok := out.get(key); !ok {
			t.Errorf("missing %s", key)
		}
	}
}

func TestRun_DiscoveryNoRows(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{"q": {cols: []string{"table_name"}}}}
	sec := domain.Section{Name: "discover_tables", Interval: 60}
	out := &recorder{}

	if _, err := newExecutor(t).Run(context.Background(), conn, sec, domain.Check{Section: sec.Name, Key: "tables", Query: "q"}, out); err != nil {
		t.Fatal(err)
	}
	if v, _ := out.get("tables"); v != `{"data":[]}` {
		t.Errorf("payload = %v, want empty array", v)
	}
	if len(out.records) != 4 {
		t.Errorf("expected payload, status and timings, got %+v", out.records)
	}
}

func TestRun_NoRows(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{"q": {cols: []string{"k", "v"}}}}
	sec := domain.Section{Name: "perf", Interval: 1}
	out := &recorder{}

	res, err := newExecutor(t).Run(context.Background(), conn, sec, domain.Check{Section: "perf", Key: "k", Query: "q"}, out)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != CodeOK {
		t.Errorf("status = %d, want 0", res.Status)
	}
	if out.records[0].key != "dbwatch[query,perf,k,status]" {
		t.Errorf("expected only bookkeeping records, got %+v", out.records)
	}
}

func TestRun_WrongShapeReportsFormatError(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{
		"q": {cols: []string{"a", "b", "c"}, rows: [][]any{{"x", 1, 2}}},
	}}
	sec := domain.Section{Name: "perf", Interval: 1}
	out := &recorder{}

	res, err := newExecutor(t).Run(context.Background(), conn, sec, domain.Check{Section: "perf", Key: "k", Query: "q"}, out)
	if err != nil {
		t.Fatalf("shape errors must not be returned: %v", err)
	}
	if res.Status != CodeFormatError {
		t.Errorf("status = %d, want %d", res.Status, CodeFormatError)
	}
	if _, ok := out.get("x"); ok {
		t.Error("no value records expected for a malformed result")
	}
	if v, _ := out.get("dbwatch[query,perf,k,status]"); v != CodeFormatError {
		t.Errorf("status record = %v, want %d", v, CodeFormatError)
	}
}

func TestRun_NonFatalErrorIsScopedToCheck(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{
		"q": {execErr: errors.New("ORA-00942: table or view does not exist")},
	}}
	sec := domain.Section{Name: "perf", Interval: 1}
	out := &recorder{}

	res, err := newExecutor(t).Run(context.Background(), conn, sec, domain.Check{Section: "perf", Key: "k", Query: "q"}, out)
	if err != nil {
		t.Fatalf("non-fatal error returned: %v", err)
	}
	if !res.Failed || res.Status != 942 {
		t.Errorf("unexpected result %+v", res)
	}
	if conn.rollbacks != 1 {
		t.Errorf("expected 1 rollback, got %d", conn.rollbacks)
	}
	if v, _ := out.get("dbwatch[query,perf,k,status]"); v != 942 {
		t.Errorf("status record = %v, want 942", v)
	}
	if _, ok := out.get("dbwatch[query,perf,k,ela]"); !ok {
		t.Error("timing records must be emitted on failure too")
	}
}

func TestRun_FatalErrorIsReturned(t *testing.T) {
	conn := &fakeConn{results: map[string]fakeResult{
		"q": {cols: []string{"k", "v"}, fetchErr: errors.New("ORA-03113: end-of-file on communication channel")},
	}}
	sec := domain.Section{Name: "perf", Interval: 1}
	out := &recorder{}

	_, err := newExecutor(t).Run(context.Background(), conn, sec, domain.Check{Section: "perf", Key: "k", Query: "q"}, out)
	ce, ok := classify.AsError(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	if ce.Code != 3113 || !ce.Fatal {
		t.Errorf("unexpected classification %+v", ce.Classified)
	}
	if v, _ := out.get("dbwatch[query,perf,k,status]"); v != 3113 {
		t.Errorf("status record = %v, want 3113", v)
	}
}
