// Package repository is the data-access facade over stored functions.
//
// A Repository acquires a pooled session per call, invokes one stored function, materializes its
// result and releases the session, whatever the outcome. Driver errors are classified into
// errorx.DbError (IntegrityViolation or GeneralOperation) and logged with the full call context.
//
// Two call shapes are exposed:
//   - Execute (and ExecuteInto, ExecuteTxn, Insert...): return the classified error.
//   - Exec (and ExecInto, ExecTxn): wrap the classified error into a Result with ERROR status.
//
// Both shapes return configuration errors (no provider, no ledger, pool never configured...) as errors.
package repository

import (
	"context"
	"fmt"

	"github.com/marcodd23/go-micro-dbfunc/pkg/audit"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/ledger"
	"github.com/marcodd23/go-micro-dbfunc/pkg/logx"
	"github.com/pkg/errors"
)

// Repository - stored function repository facade.
type Repository struct {
	provider   dbx.ConnectionProvider
	classifier dbx.ErrorClassifier
	ledger     *ledger.Ledger
	logger     logx.Logger
	publisher  audit.Publisher
}

// Option is a functional option for configuring a Repository.
type Option func(*Repository)

// WithLogger - logger used for diagnostics. Without it the package logger of logx is used.
func WithLogger(logger logx.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithLedger - attach the transaction ledger, see SetTransactionDispatcher.
func WithLedger(l *ledger.Ledger) Option {
	return func(r *Repository) {
		r.ledger = l
	}
}

// WithErrorClassifier - classifier recognising integrity violations.
// By default the provider is used, when it implements dbx.ErrorClassifier.
func WithErrorClassifier(classifier dbx.ErrorClassifier) Option {
	return func(r *Repository) {
		r.classifier = classifier
	}
}

// WithAuditPublisher - sink receiving the entries of every popped transaction.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(r *Repository) {
		r.publisher = publisher
	}
}

// New - Repository constructor.
func New(provider dbx.ConnectionProvider, opts ...Option) *Repository {
	r := &Repository{provider: provider}

	if classifier, ok := provider.(dbx.ErrorClassifier); ok {
		r.classifier = classifier
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetTransactionDispatcher attaches the ledger required by the mutating methods.
func (r *Repository) SetTransactionDispatcher(l *ledger.Ledger) {
	r.ledger = l
}

func (r *Repository) log() logx.Logger {
	if r.logger != nil {
		return r.logger
	}

	return logx.GetLogger()
}

//###################################
//#          Call execution         #
//###################################

// Execute invokes the function and returns the materialized value:
// a TextResult for cursors, a float64, int64 or string for scalars.
// Database failures are returned as *errorx.DbError.
func (r *Repository) Execute(ctx context.Context, call Call) (any, error) {
	m, err := r.execute(ctx, call)
	if err != nil {
		return nil, err
	}

	return m.value, nil
}

// Exec is Execute with database failures wrapped into the Result.
func (r *Repository) Exec(ctx context.Context, call Call) (*Result, error) {
	return toResult(r.Execute(ctx, call))
}

// ExecuteInto invokes a cursor function and builds one T per row through FromRow.
func ExecuteInto[T any, PT interface {
	*T
	dbx.FromRow
}](ctx context.Context, r *Repository, call Call) ([]T, error) {
	if call.ReturnType != dbx.Cursor {
		return nil, errorx.NewConfigurationError(errorx.ErrorInvalidCall,
			"error typed results require a cursor function, '%s' returns %s", call.QualifiedName(), call.ReturnType)
	}

	rows, err := r.fetchRows(ctx, call)
	if err != nil {
		return nil, err
	}

	models, err := buildModels[T, PT](rows)
	if err != nil {
		return nil, r.fail(ctx, call, err)
	}

	return models, nil
}

// ExecInto is ExecuteInto with database failures wrapped into the Result, whose Data is the []T.
func ExecInto[T any, PT interface {
	*T
	dbx.FromRow
}](ctx context.Context, r *Repository, call Call) (*Result, error) {
	models, err := ExecuteInto[T, PT](ctx, r, call)
	if err != nil {
		return toResult(nil, err)
	}

	return toResult(models, nil)
}

func toResult(value any, err error) (*Result, error) {
	result := NewResult()

	if err != nil {
		var dbErr *errorx.DbError
		if errors.As(err, &dbErr) {
			result.Fail(dbErr)
			return result, nil
		}

		return nil, err
	}

	result.Succeed(value)

	return result, nil
}

func (r *Repository) execute(ctx context.Context, call Call) (materialized, error) {
	return run(ctx, r, call, materialize)
}

func (r *Repository) fetchRows(ctx context.Context, call Call) ([]dbx.Row, error) {
	return run(ctx, r, call, func(ctx context.Context, raw dbx.RawResult) ([]dbx.Row, error) {
		return readRows(ctx, raw.Cursor)
	})
}

// run is the single execution path: acquire, invoke, materialize, release, classify.
// The session is released before the error is classified; caller owned sessions are never released.
func run[T any](ctx context.Context, r *Repository, call Call,
	materializer func(context.Context, dbx.RawResult) (T, error)) (T, error) {
	var zero T

	if err := r.validate(call); err != nil {
		return zero, err
	}

	r.log().LogDebug(ctx, fmt.Sprintf("calling function %s returning %s", call.QualifiedName(), call.ReturnType))

	value, err := withConn(ctx, r, call, func(conn dbx.Conn) (T, error) {
		raw, err := invoke(ctx, conn, call)
		if err != nil {
			return zero, err
		}

		return materializer(ctx, raw)
	})
	if err != nil {
		return zero, r.fail(ctx, call, err)
	}

	return value, nil
}

func withConn[T any](ctx context.Context, r *Repository, call Call, fn func(dbx.Conn) (T, error)) (T, error) {
	if call.Conn != nil {
		return fn(call.Conn)
	}

	conn, err := r.provider.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	defer func() {
		if !r.provider.Release(ctx, conn) {
			r.log().LogWarning(ctx, fmt.Sprintf("connection not released after calling %s", call.QualifiedName()))
		}
	}()

	return fn(conn)
}

func (r *Repository) validate(call Call) error {
	if call.Conn == nil && r.provider == nil {
		return errorx.NewConfigurationErrorCode(errorx.ErrorNoConnectionProvider, nil)
	}

	if call.Function == "" {
		return errorx.NewConfigurationError(errorx.ErrorInvalidCall, "error function name is empty")
	}

	return nil
}

// fail logs the call diagnostics and classifies err.
// Configuration errors and already classified errors are returned unchanged.
func (r *Repository) fail(ctx context.Context, call Call, err error) error {
	r.log().LogError(ctx, fmt.Sprintf("error calling function %s: returnType=%s, params=%v, customParams=%s",
		call.QualifiedName(), call.ReturnType, call.Params, describeCustomParams(call.CustomParams)), err)

	var cfgErr *errorx.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}

	var dbErr *errorx.DbError
	if errors.As(err, &dbErr) {
		return err
	}

	if r.classifier != nil && r.classifier.IsIntegrityViolation(err) {
		return errorx.NewIntegrityViolation(err, "function %s", call.QualifiedName())
	}

	return errorx.NewGeneralOperationError(err, "function %s", call.QualifiedName())
}

func describeCustomParams(params []dbx.CustomParam) string {
	if len(params) == 0 {
		return "[]"
	}

	out := "["

	for i, p := range params {
		if i > 0 {
			out += ", "
		}

		out += fmt.Sprintf("%s(%s)=%v", p.BindingKey(), dbx.QualifiedTypeName(p), p.CollectionValues())
	}

	return out + "]"
}
