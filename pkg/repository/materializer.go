package repository

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// materialized - outcome of a materialization, the rows are kept for ledger recording.
type materialized struct {
	value any
	rows  []dbx.Row
}

// materialize turns the raw result into the caller value: a TextResult for cursors,
// a coerced scalar otherwise.
func materialize(ctx context.Context, raw dbx.RawResult) (materialized, error) {
	if raw.Type != dbx.Cursor {
		return materialized{value: coerceScalar(raw.Type, raw.Scalar)}, nil
	}

	rows, err := readRows(ctx, raw.Cursor)
	if err != nil {
		return materialized{}, err
	}

	text, err := rowsToText(rows)
	if err != nil {
		return materialized{}, err
	}

	return materialized{value: text, rows: rows}, nil
}

// readRows drains the cursor into ordered rows and closes it right after the loop.
// Large object values are read and JSON decoded, so no live handle outlives the call.
func readRows(ctx context.Context, cursor dbx.ResultCursor) ([]dbx.Row, error) {
	if cursor == nil {
		return nil, errorx.NewGeneralError("cursor result without cursor")
	}

	rows, err := drain(ctx, cursor)

	closeErr := cursor.Close(ctx)

	if err != nil {
		return nil, err
	}

	if closeErr != nil {
		return nil, closeErr
	}

	return rows, nil
}

func drain(ctx context.Context, cursor dbx.ResultCursor) ([]dbx.Row, error) {
	columns := cursor.Columns()
	rows := make([]dbx.Row, 0)

	for cursor.Next(ctx) {
		values, err := cursor.Values()
		if err != nil {
			return nil, err
		}

		for i, v := range values {
			lob, ok := v.(dbx.LOB)
			if !ok {
				continue
			}

			decoded, err := readLOB(ctx, lob)
			if err != nil {
				return nil, errors.Wrapf(err, "error reading large object in column %d", i)
			}

			values[i] = decoded
		}

		rows = append(rows, dbx.NewRow(columns, values))
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}

// readLOB reads the large object and decodes it as JSON.
// Content that is not valid JSON is returned as text; an empty object is returned as nil.
func readLOB(ctx context.Context, lob dbx.LOB) (any, error) {
	content, err := lob.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	if len(content) == 0 {
		return nil, nil
	}

	var decoded any
	if err := json.Unmarshal(content, &decoded); err != nil {
		return string(content), nil
	}

	return decoded, nil
}

func rowsToText(rows []dbx.Row) (TextResult, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return TextResult{}, errors.Wrap(err, "error serializing cursor rows")
	}

	return TextResult{Data: string(data), HasError: false}, nil
}

// buildModels constructs one model per row through FromRow.
func buildModels[T any, PT interface {
	*T
	dbx.FromRow
}](rows []dbx.Row) ([]T, error) {
	models := make([]T, 0, len(rows))

	for i, row := range rows {
		var model T
		if err := PT(&model).FromRow(row); err != nil {
			return nil, errors.Wrapf(err, "error building %T from row %d", model, i)
		}

		models = append(models, model)
	}

	return models, nil
}

// coerceScalar coerces a scalar to the declared return type.
// Values that cannot be coerced are returned unchanged; NULL stays nil.
func coerceScalar(rt dbx.ReturnType, value any) any {
	if value == nil {
		return nil
	}

	switch rt {
	case dbx.Number, dbx.Decimal:
		if f, err := cast.ToFloat64E(value); err == nil {
			return f
		}
	case dbx.Integer:
		if i, err := cast.ToInt64E(value); err == nil {
			return i
		}
	default:
		if s, err := cast.ToStringE(value); err == nil {
			return s
		}

		return fmt.Sprint(value)
	}

	return value
}
