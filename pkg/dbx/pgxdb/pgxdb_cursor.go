package pgxdb

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/logx"
	"github.com/pkg/errors"
)

//###################################
//#       Postgres Ref Cursor       #
//###################################

// DefaultFetchSize is the number of rows fetched from a refcursor portal per round trip.
const DefaultFetchSize = 256

// refCursor - rows of a refcursor portal, fetched in batches inside the driver transaction that opened it.
// Each batch is fully read and its rows closed before being handed out, which leaves the session free to
// read large objects while the caller iterates.
// It Implements dbx.ResultCursor
type refCursor struct {
	tx         pgx.Tx
	lobs       lobReader
	portal     string
	batchSize  int
	columns    []string
	lobColumns map[int]bool
	buffer     [][]any
	position   int
	exhausted  bool
	closed     bool
	err        error
}

func openRefCursor(ctx context.Context, tx pgx.Tx, portal string, batchSize int) (*refCursor, error) {
	rc := &refCursor{
		tx:        tx,
		lobs:      txLOBReader(tx),
		portal:    portal,
		batchSize: batchSize,
		position:  -1,
	}

	if err := rc.fetchBatch(ctx); err != nil {
		return nil, err
	}

	return rc, nil
}

func (rc *refCursor) fetchBatch(ctx context.Context) error {
	query := fmt.Sprintf("FETCH FORWARD %d FROM %s", rc.batchSize, pgx.Identifier{rc.portal}.Sanitize())

	rows, err := rc.tx.Query(ctx, query)
	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error fetching cursor '%s'", rc.portal)
	}
	defer rows.Close()

	if rc.columns == nil {
		fields := rows.FieldDescriptions()
		rc.columns = make([]string, len(fields))
		rc.lobColumns = make(map[int]bool)

		for i, fd := range fields {
			rc.columns[i] = fd.Name
			// large objects are referenced by oid columns
			if fd.DataTypeOID == pgtype.OIDOID {
				rc.lobColumns[i] = true
			}
		}
	}

	batch := make([][]any, 0, rc.batchSize)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return errors.WithStack(err)
		}

		for i := range values {
			values[i] = normalizeScalar(values[i])
		}

		batch = append(batch, values)
	}

	if err := rows.Err(); err != nil {
		return errors.WithStack(err)
	}

	rc.buffer = batch
	rc.position = -1
	rc.exhausted = len(batch) < rc.batchSize

	return nil
}

func (rc *refCursor) Columns() []string {
	return rc.columns
}

// Next moves to the next row, fetching the next batch from the portal when the buffered one is consumed.
func (rc *refCursor) Next(ctx context.Context) bool {
	if rc.closed || rc.err != nil {
		return false
	}

	if rc.position+1 < len(rc.buffer) {
		rc.position++
		return true
	}

	if rc.exhausted {
		return false
	}

	if err := rc.fetchBatch(ctx); err != nil {
		rc.err = err
		return false
	}

	if len(rc.buffer) == 0 {
		return false
	}

	rc.position = 0

	return true
}

// Values returns the current row; large object columns are returned as dbx.LOB handles.
func (rc *refCursor) Values() ([]any, error) {
	if rc.position < 0 || rc.position >= len(rc.buffer) {
		return nil, errorx.NewDatabaseError("cursor '%s' is not positioned on a row", rc.portal)
	}

	values := append([]any(nil), rc.buffer[rc.position]...)

	for i := range rc.lobColumns {
		if i >= len(values) || values[i] == nil {
			continue
		}

		oid, ok := values[i].(uint32)
		if !ok {
			return nil, errorx.NewDatabaseError("unexpected large object reference %T in column %s", values[i], rc.columns[i])
		}

		values[i] = &largeObject{open: rc.lobs, oid: oid}
	}

	return values, nil
}

func (rc *refCursor) Err() error {
	return rc.err
}

// Close - release the buffered rows and end the driver transaction.
// The transaction is committed when the portal was read without errors, rolled back otherwise.
// Closing twice is a no-op.
func (rc *refCursor) Close(ctx context.Context) error {
	if rc.closed {
		return nil
	}

	rc.closed = true
	rc.buffer = nil

	if rc.err != nil {
		rollback(ctx, rc.tx)
		return rc.err
	}

	if err := rc.tx.Commit(ctx); err != nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("error during cursor transaction commit, portal %s", rc.portal), err)
		return errorx.NewDatabaseErrorWrapper(err, "error during cursor transaction commit")
	}

	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logx.GetLogger().LogError(ctx, "error Rolling Back cursor transaction", err)
	}
}

//###################################
//#       Postgres Large Object     #
//###################################

// lobReader opens a large object for reading.
type lobReader func(ctx context.Context, oid uint32) (io.ReadCloser, error)

// txLOBReader opens large objects through the large object API of tx.
func txLOBReader(tx pgx.Tx) lobReader {
	return func(ctx context.Context, oid uint32) (io.ReadCloser, error) {
		lobs := tx.LargeObjects()

		obj, err := lobs.Open(ctx, oid, pgx.LargeObjectModeRead)
		if err != nil {
			return nil, err
		}

		return obj, nil
	}
}

// largeObject - handle on a large object, valid while the cursor transaction is open.
// It Implements dbx.LOB
type largeObject struct {
	open lobReader
	oid  uint32
}

func (lo *largeObject) ReadAll(ctx context.Context) ([]byte, error) {
	obj, err := lo.open(ctx, lo.oid)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error opening large object %d", lo.oid)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error reading large object %d", lo.oid)
	}

	return data, nil
}
