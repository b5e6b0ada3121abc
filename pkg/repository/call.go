package repository

import (
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
)

// Call describes one stored function invocation.
//
// Fields:
//   - Function: The routine name, e.g. "fn_get_line" or "pkg.fn_get_line".
//   - Schema: Optional schema; when set the routine is called as "<Schema>.<Function>".
//   - ReturnType: The return type declared for the routine.
//   - Params: Named parameters, passed as keyword arguments. The map is never modified.
//   - CustomParams: Collection parameters, marshaled and bound under their binding key.
//   - Conn: Optional caller owned session. When set the repository uses it and never releases it.
type Call struct {
	Function     string
	Schema       string
	ReturnType   dbx.ReturnType
	Params       map[string]any
	CustomParams []dbx.CustomParam
	Conn         dbx.Conn
}

// QualifiedName - function name qualified with the schema, when one is set.
func (c Call) QualifiedName() string {
	if c.Schema == "" {
		return c.Function
	}

	return c.Schema + "." + c.Function
}

// Status - status of a Result.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// ErrorPayload - classified error as carried by a Result.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// Result is returned by the Exec family. Database failures never surface as errors there:
// callers check Status and read Errors.
type Result struct {
	Data   any            `json:"data"`
	Status Status         `json:"status"`
	Errors []ErrorPayload `json:"errors"`
}

// NewResult - pending result.
func NewResult() *Result {
	return &Result{Status: StatusPending, Errors: []ErrorPayload{}}
}

// Succeed - set data and SUCCESS status.
func (r *Result) Succeed(data any) {
	r.Data = data
	r.Status = StatusSuccess
}

// Fail - append the classified error and set ERROR status.
func (r *Result) Fail(err *errorx.DbError) {
	payload := ErrorPayload{
		Kind:    err.Kind.String(),
		Message: err.Message,
		Reason:  err.Reason,
	}

	if err.Err != nil {
		payload.Detail = err.Err.Error()
	}

	r.Errors = append(r.Errors, payload)
	r.Status = StatusError
}

// OK - true when Status is SUCCESS.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

// TextResult is the materialization of a cursor when no model is requested:
// the rows serialized as a JSON array of objects.
type TextResult struct {
	Data     string `json:"data"`
	HasError bool   `json:"hasError"`
}
