package repository

import (
	"context"
	"fmt"

	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/ledger"
	"github.com/pkg/errors"
)

// idKey is the ledger data key of scalar results of the plain mutating variants.
const idKey = "id"

// BeginTxn opens the named ledger transaction. Re-beginning a name keeps its entries.
func (r *Repository) BeginTxn(name string) error {
	if r.ledger == nil {
		return errorx.NewConfigurationErrorCode(errorx.ErrorLedgerNotAttached, nil)
	}

	r.ledger.Begin(name)

	return nil
}

// CommitTxn returns the entries recorded under name, in call order. With pop the name is removed.
// An absent name returns ledger.ErrTransactionNotBegun.
//
// Popped entries are published to the audit publisher, when one is configured; a publish failure is
// logged and returned along with the entries.
func (r *Repository) CommitTxn(ctx context.Context, name string, pop bool) ([]ledger.Entry, error) {
	if r.ledger == nil {
		return nil, errorx.NewConfigurationErrorCode(errorx.ErrorLedgerNotAttached, nil)
	}

	entries, ok := r.ledger.Commit(name, pop)
	if !ok {
		return nil, errors.Wrapf(ledger.ErrTransactionNotBegun, "transaction '%s'", name)
	}

	if pop && r.publisher != nil && len(entries) > 0 {
		if err := r.publisher.Publish(ctx, name, entries); err != nil {
			r.log().LogError(ctx, fmt.Sprintf("error publishing audit entries of transaction %s", name), err)
			return entries, err
		}
	}

	return entries, nil
}

// Insert - ExecuteTxn recording an insert of the function result.
func (r *Repository) Insert(ctx context.Context, call Call, table, txn string) (any, error) {
	return r.ExecuteTxn(ctx, ledger.Insert, call, table, txn)
}

// Update - ExecuteTxn recording an update of the function result.
func (r *Repository) Update(ctx context.Context, call Call, table, txn string) (any, error) {
	return r.ExecuteTxn(ctx, ledger.Update, call, table, txn)
}

// Delete - ExecuteTxn recording a delete of the function result.
func (r *Repository) Delete(ctx context.Context, call Call, table, txn string) (any, error) {
	return r.ExecuteTxn(ctx, ledger.Delete, call, table, txn)
}

// IntInsert - ExecuteTxn recording an insert of the call parameters.
func (r *Repository) IntInsert(ctx context.Context, call Call, table, txn string) (any, error) {
	return r.ExecuteTxn(ctx, ledger.IntInsert, call, table, txn)
}

// IntUpdate - ExecuteTxn recording an update of the call parameters.
func (r *Repository) IntUpdate(ctx context.Context, call Call, table, txn string) (any, error) {
	return r.ExecuteTxn(ctx, ledger.IntUpdate, call, table, txn)
}

// IntDelete - ExecuteTxn recording a delete of the call parameters.
func (r *Repository) IntDelete(ctx context.Context, call Call, table, txn string) (any, error) {
	return r.ExecuteTxn(ctx, ledger.IntDelete, call, table, txn)
}

// ExecTxn is ExecuteTxn with database failures wrapped into the Result.
// A call executed but not recorded returns a nil Result and the recording error.
func (r *Repository) ExecTxn(ctx context.Context, kind ledger.OperationKind, call Call, table, txn string) (*Result, error) {
	return toResult(r.ExecuteTxn(ctx, kind, call, table, txn))
}

// ExecuteTxn executes the call and, when it succeeds, records it in the ledger under txn.
//
// The recorded data depends on the kind:
//   - int_* kinds record the call parameters (custom parameters under their binding key).
//   - plain kinds record the function result: {"id": value} for scalars, the row for a single row
//     cursor, {"rows": [...]} otherwise.
//
// A ledger must be attached and txn begun, otherwise a configuration error is returned before the call.
// The check and the recording are not atomic: when txn is popped while the call runs, the function has
// already been executed, so its value is returned together with an error wrapping ledger.ErrTransactionNotBegun.
func (r *Repository) ExecuteTxn(ctx context.Context, kind ledger.OperationKind, call Call, table, txn string) (any, error) {
	if r.ledger == nil {
		return nil, errorx.NewConfigurationErrorCode(errorx.ErrorLedgerNotAttached, nil)
	}

	if _, ok := ledger.ParseOperationKind(string(kind)); !ok {
		return nil, errorx.NewConfigurationError(errorx.ErrorInvalidCall, "error unknown operation kind '%s'", kind)
	}

	if r.ledger.Len(txn) < 0 {
		return nil, errorx.NewConfigurationErrorCode(errorx.ErrorTransactionNotBegun,
			errors.Wrapf(ledger.ErrTransactionNotBegun, "transaction '%s'", txn))
	}

	m, err := r.execute(ctx, call)
	if err != nil {
		return nil, err
	}

	if _, err := r.ledger.Operation(kind, table, ledgerData(kind, call, m), txn); err != nil {
		r.log().LogError(ctx, fmt.Sprintf("error recording %s on %s in transaction %s", kind, table, txn), err)
		return m.value, errors.Wrapf(err, "function %s executed but not recorded", call.QualifiedName())
	}

	return m.value, nil
}

func ledgerData(kind ledger.OperationKind, call Call, m materialized) map[string]any {
	switch kind {
	case ledger.IntInsert, ledger.IntUpdate, ledger.IntDelete:
		data := make(map[string]any, len(call.Params)+len(call.CustomParams))
		for k, v := range call.Params {
			data[k] = v
		}

		for _, p := range call.CustomParams {
			data[p.BindingKey()] = p.CollectionValues()
		}

		return data
	}

	if call.ReturnType != dbx.Cursor {
		return map[string]any{idKey: m.value}
	}

	if len(m.rows) == 1 {
		return m.rows[0].Map()
	}

	rows := make([]map[string]any, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, row.Map())
	}

	return map[string]any{"rows": rows}
}
