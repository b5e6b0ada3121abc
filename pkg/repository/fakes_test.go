package repository_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
)

// integrityError - driver error flagged as a constraint violation.
type integrityError struct{ msg string }

func (e *integrityError) Error() string { return e.msg }

// fakeProvider - dbx.ConnectionProvider and dbx.ErrorClassifier double counting acquire/release.
type fakeProvider struct {
	conn        *fakeConn
	configured  bool
	acquireErr  error
	acquired    atomic.Int64
	released    atomic.Int64
	outstanding atomic.Int64
}

func newFakeProvider(conn *fakeConn) *fakeProvider {
	return &fakeProvider{conn: conn, configured: true}
}

func (p *fakeProvider) InitializePool(ctx context.Context, conf dbx.PoolConfig) bool {
	if p.configured || conf.DSN == "" {
		return false
	}

	p.configured = true

	return true
}

func (p *fakeProvider) Acquire(ctx context.Context) (dbx.Conn, error) {
	if !p.configured {
		return nil, errorx.NewConfigurationErrorCode(errorx.ErrorPoolNotConfigured, nil)
	}

	if p.acquireErr != nil {
		return nil, p.acquireErr
	}

	p.acquired.Add(1)
	p.outstanding.Add(1)

	return p.conn, nil
}

func (p *fakeProvider) Release(ctx context.Context, conn dbx.Conn) bool {
	if conn == nil {
		return false
	}

	p.released.Add(1)
	p.outstanding.Add(-1)

	return true
}

func (p *fakeProvider) Close(ctx context.Context, force bool) {}

func (p *fakeProvider) Outstanding() int64 {
	return p.outstanding.Load()
}

func (p *fakeProvider) IsIntegrityViolation(err error) bool {
	var ie *integrityError
	return errors.As(err, &ie)
}

// fakeConn - dbx.Conn double answering calls by function name.
type fakeConn struct {
	mu      sync.Mutex
	types   map[string]bool
	results map[string]func(call dbx.FunctionCall) (dbx.RawResult, error)
	calls   []dbx.FunctionCall
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		types:   map[string]bool{},
		results: map[string]func(call dbx.FunctionCall) (dbx.RawResult, error){},
	}
}

func (c *fakeConn) on(name string, fn func(call dbx.FunctionCall) (dbx.RawResult, error)) {
	c.results[name] = fn
}

func (c *fakeConn) LookupType(ctx context.Context, qualifiedName string) (dbx.CollectionType, error) {
	if !c.types[qualifiedName] {
		return nil, errorx.NewDatabaseError("unknown collection type '%s'", qualifiedName)
	}

	return fakeCollection{name: qualifiedName}, nil
}

func (c *fakeConn) CallFunction(ctx context.Context, call dbx.FunctionCall) (dbx.RawResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	fn, ok := c.results[call.Name]
	c.mu.Unlock()

	if !ok {
		return dbx.RawResult{}, errors.New("function " + call.Name + " does not exist")
	}

	return fn(call)
}

func (c *fakeConn) lastCall() dbx.FunctionCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[len(c.calls)-1]
}

// fakeCollection - dbx.CollectionType double.
type fakeCollection struct{ name string }

func (fc fakeCollection) Name() string { return fc.name }

func (fc fakeCollection) New(values any) (any, error) {
	return boundCollection{typeName: fc.name, values: values}, nil
}

type boundCollection struct {
	typeName string
	values   any
}

// fakeCursor - dbx.ResultCursor double over in-memory rows.
type fakeCursor struct {
	columns  []string
	rows     [][]any
	position int
	failAt   int
	closed   bool
	err      error
}

func newFakeCursor(columns []string, rows ...[]any) *fakeCursor {
	return &fakeCursor{columns: columns, rows: rows, position: -1, failAt: -1}
}

func (fc *fakeCursor) Columns() []string { return fc.columns }

func (fc *fakeCursor) Next(ctx context.Context) bool {
	if fc.closed || fc.err != nil {
		return false
	}

	if fc.position+1 == fc.failAt {
		fc.err = errors.New("fetch out of sequence")
		return false
	}

	if fc.position+1 >= len(fc.rows) {
		return false
	}

	fc.position++

	return true
}

func (fc *fakeCursor) Values() ([]any, error) {
	return append([]any(nil), fc.rows[fc.position]...), nil
}

func (fc *fakeCursor) Err() error { return fc.err }

func (fc *fakeCursor) Close(ctx context.Context) error {
	fc.closed = true
	return nil
}

// fakeLOB - dbx.LOB double.
type fakeLOB struct {
	content []byte
	read    bool
}

func (l *fakeLOB) ReadAll(ctx context.Context) ([]byte, error) {
	l.read = true
	return l.content, nil
}

func cursorResult(cursor *fakeCursor) func(call dbx.FunctionCall) (dbx.RawResult, error) {
	return func(call dbx.FunctionCall) (dbx.RawResult, error) {
		return dbx.RawResult{Type: dbx.Cursor, Cursor: cursor}, nil
	}
}

func scalarResult(value any) func(call dbx.FunctionCall) (dbx.RawResult, error) {
	return func(call dbx.FunctionCall) (dbx.RawResult, error) {
		return dbx.RawResult{Type: call.ReturnType, Scalar: value}, nil
	}
}

func failing(err error) func(call dbx.FunctionCall) (dbx.RawResult, error) {
	return func(call dbx.FunctionCall) (dbx.RawResult, error) {
		return dbx.RawResult{}, err
	}
}
