package dbx

import (
	"context"
)

// ConnectionProvider supplies and reclaims database sessions without leaking or double-releasing them.
//
// Responsibilities of ConnectionProvider include:
//   - Creating the pool once (InitializePool is idempotent and never panics).
//   - Handing out sessions (Acquire), lazily creating the pool from the last known configuration.
//   - Taking sessions back (Release) exactly once per Acquire, reporting misuse with false instead of an error.
//   - Draining and closing the pool at process shutdown (Close).
//
// Outstanding returns the number of sessions currently acquired and not yet released.
type ConnectionProvider interface {
	InitializePool(ctx context.Context, conf PoolConfig) bool
	Acquire(ctx context.Context) (Conn, error)
	Release(ctx context.Context, conn Conn) bool
	Close(ctx context.Context, force bool)
	Outstanding() int64
}

// Conn is an opaque handle to a live database session.
// It is owned by the caller that acquired it for the duration of one logical operation
// and must never be used by two callers concurrently.
type Conn interface {
	// LookupType resolves a named collection type (optionally schema qualified) in the session type catalog.
	LookupType(ctx context.Context, qualifiedName string) (CollectionType, error)
	// CallFunction executes exactly one stored function call and returns its unprocessed result.
	CallFunction(ctx context.Context, call FunctionCall) (RawResult, error)
}

// CollectionType is a stored collection type found in the session type catalog.
type CollectionType interface {
	Name() string
	// New builds a bound parameter of this type populated with values.
	New(values any) (any, error)
}

// ErrorClassifier is implemented by providers able to recognise data-integrity violations
// in their driver errors (uniqueness, foreign key, check constraints).
type ErrorClassifier interface {
	IsIntegrityViolation(err error) bool
}

// FunctionCall is the driver level description of a single stored function invocation.
//
// Fields:
//   - Name: The routine name, already schema qualified when needed (e.g. "sales.pkg_fn_get_line").
//   - ReturnType: The declared return type of the routine.
//   - Params: Named parameters; collection parameters are already marshaled through a CollectionType.
type FunctionCall struct {
	Name       string
	ReturnType ReturnType
	Params     map[string]any
}
