package dbx

import (
	"context"
	"fmt"
	"strings"
)

// ReturnType is the return type declared by the caller for a stored function call.
// At the driver boundary the contract is 3-way (cursor, number, text): Integer and Decimal
// are number-shaped and only change how the scalar is coerced.
type ReturnType int

const (
	Text ReturnType = iota
	Cursor
	Number
	Integer
	Decimal
)

var returnTypeNames = map[ReturnType]string{
	Text:    "text",
	Cursor:  "cursor",
	Number:  "number",
	Integer: "integer",
	Decimal: "decimal",
}

func (rt ReturnType) String() string {
	if name, ok := returnTypeNames[rt]; ok {
		return name
	}

	return fmt.Sprintf("ReturnType(%d)", int(rt))
}

// IsNumeric reports whether the return type is number-shaped.
func (rt ReturnType) IsNumeric() bool {
	return rt == Number || rt == Integer || rt == Decimal
}

// ParseReturnType parses the textual name of a return type ("cursor", "number", "integer", "decimal", "text").
// An empty name defaults to Text.
func ParseReturnType(name string) (ReturnType, error) {
	if name == "" {
		return Text, nil
	}

	for rt, n := range returnTypeNames {
		if strings.EqualFold(n, name) {
			return rt, nil
		}
	}

	return Text, fmt.Errorf("unknown return type %q", name)
}

// RawResult is the unprocessed result of a stored function call:
// a Cursor for cursor-shaped calls, a Scalar otherwise.
type RawResult struct {
	Type   ReturnType
	Cursor ResultCursor
	Scalar any
}

// ResultCursor iterates the rows of a cursor-shaped result.
// It must be fully drained and closed before the owning connection is released.
type ResultCursor interface {
	Columns() []string
	Next(ctx context.Context) bool
	Values() ([]any, error)
	Err() error
	Close(ctx context.Context) error
}

// LOB is a handle on a large object column value.
// It is only valid while the cursor that produced it is open.
type LOB interface {
	ReadAll(ctx context.Context) ([]byte, error)
}
