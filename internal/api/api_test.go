package api_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-micro-dbfunc/internal/api"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/ledger"
	"github.com/marcodd23/go-micro-dbfunc/pkg/repository"
	"github.com/marcodd23/go-micro-dbfunc/pkg/serverx/fibersrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uniqueViolation struct{ msg string }

func (e *uniqueViolation) Error() string { return e.msg }

type stubProvider struct{ conn *stubConn }

func (p *stubProvider) InitializePool(ctx context.Context, conf dbx.PoolConfig) bool { return false }
func (p *stubProvider) Acquire(ctx context.Context) (dbx.Conn, error)                 { return p.conn, nil }
func (p *stubProvider) Release(ctx context.Context, conn dbx.Conn) bool              { return true }
func (p *stubProvider) Close(ctx context.Context, force bool)                        {}
func (p *stubProvider) Outstanding() int64                                           { return 0 }

func (p *stubProvider) IsIntegrityViolation(err error) bool {
	var uv *uniqueViolation
	return errors.As(err, &uv)
}

type stubCollection struct{ name string }

func (sc stubCollection) Name() string                { return sc.name }
func (sc stubCollection) New(values any) (any, error) { return values, nil }

type stubConn struct {
	mu      sync.Mutex
	results map[string]func() (dbx.RawResult, error)
	calls   []dbx.FunctionCall
}

func (c *stubConn) LookupType(ctx context.Context, qualifiedName string) (dbx.CollectionType, error) {
	if qualifiedName != "sales.int_list" {
		return nil, errors.New("unknown type " + qualifiedName)
	}

	return stubCollection{name: qualifiedName}, nil
}

func (c *stubConn) CallFunction(ctx context.Context, call dbx.FunctionCall) (dbx.RawResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, call)

	fn, ok := c.results[call.Name]
	if !ok {
		return dbx.RawResult{}, errors.New("function " + call.Name + " does not exist")
	}

	return fn()
}

func setupApp() (*fiber.App, *stubConn) {
	conn := &stubConn{results: map[string]func() (dbx.RawResult, error){
		"sales.fn_line_name": func() (dbx.RawResult, error) {
			return dbx.RawResult{Type: dbx.Text, Scalar: "Line A"}, nil
		},
		"sales.fn_insert_line": func() (dbx.RawResult, error) {
			return dbx.RawResult{Type: dbx.Number, Scalar: int64(42)}, nil
		},
		"sales.fn_register_line": func() (dbx.RawResult, error) {
			return dbx.RawResult{}, &uniqueViolation{msg: "ERROR: ::Duplicate entry for id 5:: (SQLSTATE 23505)"}
		},
	}}

	repo := repository.New(&stubProvider{conn: conn}, repository.WithLedger(ledger.New()))

	app := fiber.New(fiber.Config{ErrorHandler: fibersrv.ErrorHandler})
	api.Register(app.Group("/api"), repo)

	return app, conn
}

func post(t *testing.T, app *fiber.App, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp.StatusCode, out
}

func TestExecFunction_ScalarSuccess(t *testing.T) {
	app, conn := setupApp()

	status, out := post(t, app, "/api/functions/fn_line_name", map[string]any{
		"schema":     "sales",
		"returnType": "text",
		"params":     map[string]any{"p_id": 1},
	})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "SUCCESS", out["status"])
	assert.Equal(t, "Line A", out["data"])

	require.Len(t, conn.calls, 1)
	assert.Equal(t, int64(1), conn.calls[0].Params["p_id"], "integral JSON numbers are bound as int64")
}

func TestExecFunction_CollectionParams(t *testing.T) {
	app, conn := setupApp()

	status, out := post(t, app, "/api/functions/fn_line_name", map[string]any{
		"schema": "sales",
		"intLists": []map[string]any{
			{"key": "p_ids", "type": "int_list", "schema": "sales", "values": []int64{1, 2}},
		},
	})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "SUCCESS", out["status"])
	assert.Equal(t, []int64{1, 2}, conn.calls[0].Params["p_ids"])
}

func TestExecFunction_DatabaseErrorIsAResult(t *testing.T) {
	app, _ := setupApp()

	status, out := post(t, app, "/api/functions/fn_register_line", map[string]any{
		"schema": "sales",
		"params": map[string]any{"p_id": 5},
	})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ERROR", out["status"])

	errs, ok := out["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)

	payload := errs[0].(map[string]any)
	assert.Equal(t, "IntegrityViolation", payload["kind"])
	assert.Equal(t, "Duplicate entry for id 5", payload["message"])
}

func TestExecFunction_InvalidBody(t *testing.T) {
	app, conn := setupApp()

	status, out := post(t, app, "/api/functions/fn_line_name", map[string]any{"returnType": "blob"})

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, out["error"], "ReturnType")
	assert.Empty(t, conn.calls)
}

func TestTransaction_BeginOperateCommit(t *testing.T) {
	app, _ := setupApp()

	status, out := post(t, app, "/api/transactions/order-1", nil)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "order-1", out["transaction"])

	status, out = post(t, app, "/api/transactions/order-1/operations/insert", map[string]any{
		"function":   "fn_insert_line",
		"schema":     "sales",
		"table":      "lines",
		"returnType": "integer",
		"params":     map[string]any{"p_name": "D", "p_quantity": 3},
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "SUCCESS", out["status"])
	assert.Equal(t, float64(42), out["data"])

	status, out = post(t, app, "/api/transactions/order-1/commit?pop=true", nil)
	require.Equal(t, fiber.StatusOK, status)

	entries, ok := out["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)

	entry := entries[0].(map[string]any)
	assert.Equal(t, "insert", entry["kind"])
	assert.Equal(t, "lines", entry["table"])
	assert.Equal(t, map[string]any{"id": float64(42)}, entry["data"])

	status, _ = post(t, app, "/api/transactions/order-1/commit?pop=true", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTransaction_OperationErrors(t *testing.T) {
	app, conn := setupApp()

	status, _ := post(t, app, "/api/transactions/missing/operations/insert", map[string]any{
		"function": "fn_insert_line", "schema": "sales", "table": "lines",
	})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = post(t, app, "/api/transactions/missing/operations/upsert", map[string]any{
		"function": "fn_insert_line", "table": "lines",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = post(t, app, "/api/transactions/order-2", nil)
	require.Equal(t, fiber.StatusCreated, status)

	status, out := post(t, app, "/api/transactions/order-2/operations/int_insert", map[string]any{
		"function": "fn_insert_line", "schema": "sales",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, out["error"], "Table")

	assert.Empty(t, conn.calls)
}
