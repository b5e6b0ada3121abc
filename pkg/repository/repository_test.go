package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/ledger"
	"github.com/marcodd23/go-micro-dbfunc/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duplicateDriverMessage = "ORA-00001: unique constraint (SALES.PK_LINES) violated ::Duplicate entry for id 5:: at line 12"

type Line struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func (l *Line) FromRow(row dbx.Row) error {
	return dbx.ScanRowIntoStruct(row, l, "db")
}

// strictLine refuses rows without a name.
type strictLine struct {
	Line
}

func (l *strictLine) FromRow(row dbx.Row) error {
	if name, _ := row.Get("NAME"); name == nil {
		return errors.New("missing name")
	}

	return l.Line.FromRow(row)
}

// recordingLogger - logx.Logger keeping the error messages.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) LogInfo(ctx context.Context, msg string)                  {}
func (l *recordingLogger) LogDebug(ctx context.Context, msg string)                 {}
func (l *recordingLogger) LogWarning(ctx context.Context, msg string, errs ...error) {}
func (l *recordingLogger) LogPanic(ctx context.Context, msg string, errs ...error)   {}
func (l *recordingLogger) LogFatal(ctx context.Context, msg string, errs ...error)   {}
func (l *recordingLogger) GetLogger() interface{}                                   { return l }

func (l *recordingLogger) LogError(ctx context.Context, msg string, errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errors = append(l.errors, msg)
}

func lineCursor() *fakeCursor {
	return newFakeCursor([]string{"ID", "NAME"},
		[]any{int64(1), "A"},
		[]any{int64(2), "B"},
	)
}

func setup() (*repository.Repository, *fakeProvider, *fakeConn, *recordingLogger) {
	conn := newFakeConn()
	provider := newFakeProvider(conn)
	logger := &recordingLogger{}

	return repository.New(provider, repository.WithLogger(logger)), provider, conn, logger
}

func TestExecute_CursorWithoutModelReturnsText(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, _ := setup()

	cursor := lineCursor()
	conn.on("PKG.FN_GET_LINE", cursorResult(cursor))

	value, err := repo.Execute(ctx, repository.Call{Function: "PKG.FN_GET_LINE", ReturnType: dbx.Cursor})
	require.NoError(t, err)

	text, ok := value.(repository.TextResult)
	require.True(t, ok)
	assert.False(t, text.HasError)
	assert.JSONEq(t, `[{"ID":1,"NAME":"A"},{"ID":2,"NAME":"B"}]`, text.Data)
	assert.Equal(t, `[{"ID":1,"NAME":"A"},{"ID":2,"NAME":"B"}]`, text.Data)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Data), &rows))
	assert.Len(t, rows, 2)

	assert.True(t, cursor.closed)
	assert.Equal(t, int64(0), provider.Outstanding())
	assert.Equal(t, provider.acquired.Load(), provider.released.Load())
}

func TestExecuteInto_BuildsOneModelPerRow(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, _ := setup()

	cursor := lineCursor()
	conn.on("PKG.FN_GET_LINE", cursorResult(cursor))

	lines, err := repository.ExecuteInto[Line](ctx, repo, repository.Call{Function: "PKG.FN_GET_LINE", ReturnType: dbx.Cursor})
	require.NoError(t, err)
	assert.Equal(t, []Line{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}, lines)
	assert.True(t, cursor.closed)
	assert.Equal(t, int64(0), provider.Outstanding())

	res, err := repository.ExecInto[Line](ctx, repo, repository.Call{Function: "PKG.FN_GET_LINE", ReturnType: dbx.Cursor,
		Conn: newFakeConnWith("PKG.FN_GET_LINE", cursorResult(lineCursor()))})
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Len(t, res.Data.([]Line), 2)
}

func TestExecuteInto_RequiresCursor(t *testing.T) {
	repo, _, _, _ := setup()

	_, err := repository.ExecuteInto[Line](context.Background(), repo, repository.Call{Function: "PKG.FN", ReturnType: dbx.Number})

	var cfgErr *errorx.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, errorx.ErrorInvalidCall, cfgErr.Code)
}

func TestExecuteInto_CursorClosedWhenModelConstructionFails(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, logger := setup()

	cursor := newFakeCursor([]string{"ID", "NAME"}, []any{int64(1), "A"}, []any{int64(2), nil})
	conn.on("PKG.FN_GET_LINE", cursorResult(cursor))

	_, err := repository.ExecuteInto[strictLine](ctx, repo, repository.Call{Function: "PKG.FN_GET_LINE", ReturnType: dbx.Cursor})
	require.Error(t, err)
	assert.True(t, errorx.IsGeneralOperationError(err))
	assert.True(t, cursor.closed)
	assert.Equal(t, int64(0), provider.Outstanding())
	assert.Len(t, logger.errors, 1)
}

func TestExecute_CursorFetchFailure(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, _ := setup()

	cursor := lineCursor()
	cursor.failAt = 1
	conn.on("PKG.FN_GET_LINE", cursorResult(cursor))

	_, err := repo.Execute(ctx, repository.Call{Function: "PKG.FN_GET_LINE", ReturnType: dbx.Cursor})
	require.Error(t, err)
	assert.True(t, errorx.IsGeneralOperationError(err))
	assert.True(t, cursor.closed)
	assert.Equal(t, int64(0), provider.Outstanding())
}

func TestExecute_CursorResultWithoutCursor(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, _ := setup()

	conn.on("PKG.FN_GET_LINE", func(call dbx.FunctionCall) (dbx.RawResult, error) {
		return dbx.RawResult{Type: dbx.Cursor}, nil
	})

	_, err := repo.Execute(ctx, repository.Call{Function: "PKG.FN_GET_LINE", ReturnType: dbx.Cursor})
	require.Error(t, err)
	assert.True(t, errorx.IsGeneralOperationError(err))

	var generalErr *errorx.GeneralError
	require.ErrorAs(t, err, &generalErr)
	assert.Equal(t, "cursor result without cursor", generalErr.Error())
	assert.Equal(t, int64(0), provider.Outstanding())
}

func TestExecute_LargeObjectIsReadAndDecoded(t *testing.T) {
	ctx := context.Background()
	repo, _, conn, _ := setup()

	doc := &fakeLOB{content: []byte(`{"title":"Line A","pages":2,"tags":["x","y"]}`)}
	text := &fakeLOB{content: []byte("plain text")}
	empty := &fakeLOB{}
	conn.on("PKG.FN_GET_DOC", cursorResult(newFakeCursor([]string{"ID", "DOC", "NOTE", "EMPTY"},
		[]any{int64(1), doc, text, empty})))

	value, err := repo.Execute(ctx, repository.Call{Function: "PKG.FN_GET_DOC", ReturnType: dbx.Cursor})
	require.NoError(t, err)
	assert.True(t, doc.read)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(value.(repository.TextResult).Data), &rows))
	require.Len(t, rows, 1)

	var original map[string]any
	require.NoError(t, json.Unmarshal(doc.content, &original))
	assert.Equal(t, original, rows[0]["DOC"])
	assert.Equal(t, "plain text", rows[0]["NOTE"])
	assert.Nil(t, rows[0]["EMPTY"])
}

func TestExecute_ScalarCoercion(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		returnType dbx.ReturnType
		raw        any
		expected   any
	}{
		{"number from float", dbx.Number, 42.5, 42.5},
		{"number from numeric string", dbx.Number, "3.25", 3.25},
		{"number fallback", dbx.Number, "n/a", "n/a"},
		{"integer from int32", dbx.Integer, int32(42), int64(42)},
		{"integer from string", dbx.Integer, "42", int64(42)},
		{"integer fallback", dbx.Integer, "forty-two", "forty-two"},
		{"decimal from int", dbx.Decimal, int64(7), float64(7)},
		{"text from string", dbx.Text, "A", "A"},
		{"text from int", dbx.Text, int64(12), "12"},
		{"null", dbx.Number, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, conn, _ := setup()
			conn.on("PKG.FN", scalarResult(tt.raw))

			value, err := repo.Execute(ctx, repository.Call{Function: "PKG.FN", ReturnType: tt.returnType})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestExecute_CustomParamsAndSchema(t *testing.T) {
	ctx := context.Background()
	repo, _, conn, _ := setup()

	conn.types["sales.int_list"] = true
	conn.types["varchar_list"] = true
	conn.on("sales.fn_get_lines", scalarResult(int64(2)))

	params := map[string]any{"p_name": "A"}
	_, err := repo.Execute(ctx, repository.Call{
		Function:   "fn_get_lines",
		Schema:     "sales",
		ReturnType: dbx.Integer,
		Params:     params,
		CustomParams: []dbx.CustomParam{
			dbx.IntListParam{Key: "p_ids", TypeName: "int_list", Schema: "sales", Values: []int64{1, 2}},
			dbx.StringListParam{Key: "p_names", TypeName: "varchar_list", Values: []string{"A"}},
		},
	})
	require.NoError(t, err)

	call := conn.lastCall()
	assert.Equal(t, "sales.fn_get_lines", call.Name)
	assert.Equal(t, "A", call.Params["p_name"])
	assert.Equal(t, boundCollection{typeName: "sales.int_list", values: []int64{1, 2}}, call.Params["p_ids"])
	assert.Equal(t, boundCollection{typeName: "varchar_list", values: []string{"A"}}, call.Params["p_names"])

	// the caller map is left untouched
	assert.Equal(t, map[string]any{"p_name": "A"}, params)
}

func TestExecute_UnknownCollectionType(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, _ := setup()
	conn.on("PKG.FN", scalarResult(1))

	_, err := repo.Execute(ctx, repository.Call{
		Function:     "PKG.FN",
		ReturnType:   dbx.Number,
		CustomParams: []dbx.CustomParam{dbx.ClobListParam{Key: "p_docs", TypeName: "clob_list", Values: []string{"x"}}},
	})
	require.Error(t, err)
	assert.True(t, errorx.IsGeneralOperationError(err))
	assert.Empty(t, conn.calls)
	assert.Equal(t, int64(0), provider.Outstanding())
}

func TestExecAndExecute_IntegrityViolation(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, logger := setup()
	conn.on("PKG.FN_INSERT_LINE", failing(&integrityError{msg: duplicateDriverMessage}))

	call := repository.Call{Function: "PKG.FN_INSERT_LINE", ReturnType: dbx.Number, Params: map[string]any{"p_id": 5}}

	res, err := repo.Exec(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusError, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Duplicate entry for id 5", res.Errors[0].Message)
	assert.Equal(t, "IntegrityViolation", res.Errors[0].Kind)
	assert.Nil(t, res.Data)

	_, err = repo.Execute(ctx, call)
	require.Error(t, err)
	assert.True(t, errorx.IsIntegrityViolation(err))

	var dbErr *errorx.DbError
	require.True(t, errors.As(err, &dbErr))
	assert.Equal(t, "Duplicate entry for id 5", dbErr.Message)

	var ie *integrityError
	assert.True(t, errors.As(err, &ie))

	assert.Equal(t, int64(0), provider.Outstanding())
	assert.Equal(t, int64(2), provider.released.Load())
	assert.Len(t, logger.errors, 2)
	assert.Contains(t, logger.errors[0], "PKG.FN_INSERT_LINE")
	assert.Contains(t, logger.errors[0], "p_id:5")
}

func TestExecute_GeneralOperationError(t *testing.T) {
	ctx := context.Background()
	repo, provider, _, _ := setup()

	_, err := repo.Execute(ctx, repository.Call{Function: "PKG.FN_MISSING", ReturnType: dbx.Text})
	require.Error(t, err)
	assert.True(t, errorx.IsGeneralOperationError(err))

	var dbErr *errorx.DbError
	require.True(t, errors.As(err, &dbErr))
	assert.Equal(t, errorx.UnspecifiedErrorMessage, dbErr.Message)
	assert.Equal(t, int64(0), provider.Outstanding())
}

func TestExecute_AcquireFailureIsClassified(t *testing.T) {
	ctx := context.Background()
	repo, provider, _, _ := setup()
	provider.acquireErr = errors.New("pool exhausted")

	res, err := repo.Exec(ctx, repository.Call{Function: "PKG.FN", ReturnType: dbx.Text})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusError, res.Status)
	assert.Equal(t, "GeneralOperationError", res.Errors[0].Kind)
}

func TestExecute_PoolNeverConfigured(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, logger := setup()
	provider.configured = false

	l := ledger.New()
	repo.SetTransactionDispatcher(l)

	res, err := repo.Exec(ctx, repository.Call{Function: "PKG.FN", ReturnType: dbx.Text})
	assert.Nil(t, res)

	var cfgErr *errorx.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, errorx.ErrorPoolNotConfigured, cfgErr.Code)

	assert.Empty(t, conn.calls)
	assert.Empty(t, l.Names())
	assert.Len(t, logger.errors, 1)
	assert.Equal(t, int64(0), provider.Outstanding())
}

func TestExecute_NoProvider(t *testing.T) {
	repo := repository.New(nil)

	_, err := repo.Execute(context.Background(), repository.Call{Function: "PKG.FN"})

	var cfgErr *errorx.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, errorx.ErrorNoConnectionProvider, cfgErr.Code)
}

func TestExecute_CallerOwnedConnIsNotReleased(t *testing.T) {
	ctx := context.Background()
	repo, provider, _, _ := setup()

	own := newFakeConnWith("PKG.FN", scalarResult("ok"))

	value, err := repo.Execute(ctx, repository.Call{Function: "PKG.FN", Conn: own})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, int64(0), provider.acquired.Load())
	assert.Equal(t, int64(0), provider.released.Load())

	// a caller owned session works without provider
	value, err = repository.New(nil).Execute(ctx, repository.Call{Function: "PKG.FN", Conn: own})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestExecute_ConcurrentCallsReleaseEverySession(t *testing.T) {
	ctx := context.Background()
	repo, provider, conn, _ := setup()
	conn.on("PKG.FN_OK", scalarResult(1))
	conn.on("PKG.FN_KO", failing(&integrityError{msg: "::dup::"}))

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			name := "PKG.FN_OK"
			if i%2 == 0 {
				name = "PKG.FN_KO"
			}

			_, _ = repo.Execute(ctx, repository.Call{Function: name, ReturnType: dbx.Integer})
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int64(50), provider.acquired.Load())
	assert.Equal(t, int64(50), provider.released.Load())
	assert.Equal(t, int64(0), provider.Outstanding())
}

func newFakeConnWith(name string, fn func(call dbx.FunctionCall) (dbx.RawResult, error)) *fakeConn {
	c := newFakeConn()
	c.on(name, fn)

	return c
}

func ExampleRepository_Exec() {
	conn := newFakeConnWith("PKG.FN_GET_LINE", cursorResult(lineCursor()))
	repo := repository.New(newFakeProvider(conn))

	res, _ := repo.Exec(context.Background(), repository.Call{Function: "PKG.FN_GET_LINE", ReturnType: dbx.Cursor})
	fmt.Println(res.Status, res.Data.(repository.TextResult).Data)
	// Output: SUCCESS [{"ID":1,"NAME":"A"},{"ID":2,"NAME":"B"}]
}
