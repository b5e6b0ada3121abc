package pgxdb

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
	"github.com/pkg/errors"
)

// pgxConn - pooled session handle.
// It Implements dbx.Conn
type pgxConn struct {
	conn     *pgxpool.Conn
	provider *PostgresProvider
	released atomic.Bool
}

// collectionType - catalog collection type (typically a domain over an array).
// It Implements dbx.CollectionType
type collectionType struct {
	name string
	oid  uint32
}

func (ct *collectionType) Name() string {
	return ct.name
}

func (ct *collectionType) New(values any) (any, error) {
	return &boundCollection{typeName: ct.name, values: values}, nil
}

// LookupType loads the named type from the session catalog and registers it in the session type map,
// so that values bound to it can be encoded. Unknown type names are reported as errors.
func (c *pgxConn) LookupType(ctx context.Context, qualifiedName string) (dbx.CollectionType, error) {
	if !qualifiedNamePattern.MatchString(qualifiedName) {
		return nil, errorx.NewDatabaseError("invalid collection type name '%s'", qualifiedName)
	}

	pgConn := c.conn.Conn()

	dataType, err := pgConn.LoadType(ctx, qualifiedName)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "unknown collection type '%s'", qualifiedName)
	}

	pgConn.TypeMap().RegisterType(dataType)

	return &collectionType{name: qualifiedName, oid: dataType.OID}, nil
}

// CallFunction executes the stored function.
//
// Scalar calls run as a single auto-committed statement whose rows are closed before returning.
// Cursor calls run inside a driver transaction: the statement returning the portal name is closed,
// then the portal is fetched as the result cursor, which ends the transaction when closed.
func (c *pgxConn) CallFunction(ctx context.Context, call dbx.FunctionCall) (dbx.RawResult, error) {
	sql, args, err := buildFunctionCall(call)
	if err != nil {
		return dbx.RawResult{}, err
	}

	if call.ReturnType == dbx.Cursor {
		return c.callCursorFunction(ctx, sql, args)
	}

	var value any
	if err := c.conn.QueryRow(ctx, sql, args...).Scan(&value); err != nil {
		return dbx.RawResult{}, err
	}

	return dbx.RawResult{Type: call.ReturnType, Scalar: normalizeScalar(value)}, nil
}

func (c *pgxConn) callCursorFunction(ctx context.Context, sql string, args []any) (dbx.RawResult, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return dbx.RawResult{}, errors.Wrap(err, "error starting cursor transaction")
	}

	var portal *string
	if err := tx.QueryRow(ctx, sql, args...).Scan(&portal); err != nil {
		rollback(ctx, tx)
		return dbx.RawResult{}, err
	}

	if portal == nil {
		rollback(ctx, tx)
		return dbx.RawResult{}, errorx.NewDatabaseError("function returned a NULL cursor")
	}

	cursor, err := openRefCursor(ctx, tx, *portal, DefaultFetchSize)
	if err != nil {
		rollback(ctx, tx)
		return dbx.RawResult{}, err
	}

	return dbx.RawResult{Type: dbx.Cursor, Cursor: cursor}, nil
}

// normalizeScalar turns driver specific numeric representations into plain Go values.
func normalizeScalar(value any) any {
	switch v := value.(type) {
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}

		return f.Float64
	default:
		return value
	}
}
