package pgxdb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
)

var (
	// up to catalog.schema.function
	qualifiedNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)
	paramNamePattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
)

// boundCollection is a collection parameter marshaled through a catalog collection type.
// It is rendered as a cast placeholder ($n::type) so that the server resolves the declared type.
type boundCollection struct {
	typeName string
	values   any
}

// buildFunctionCall renders the single SELECT statement invoking the stored function.
//
// Named parameters use the PostgreSQL named notation (key => $n) in sorted key order, so that the
// same call always produces the same statement. Cursor-shaped calls cast the refcursor to text to
// obtain the portal name.
//
// Example:
//
//	SELECT pkg.fn_get_line(p_ids => $1::int_list, p_name => $2)
func buildFunctionCall(call dbx.FunctionCall) (string, []any, error) {
	if !qualifiedNamePattern.MatchString(call.Name) {
		return "", nil, errorx.NewGeneralError("invalid function name '%s'", call.Name)
	}

	keys := make([]string, 0, len(call.Params))
	for key := range call.Params {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	args := make([]any, 0, len(keys))
	placeholders := make([]string, 0, len(keys))

	for _, key := range keys {
		if !paramNamePattern.MatchString(key) {
			return "", nil, errorx.NewGeneralError("invalid parameter name '%s' for function '%s'", key, call.Name)
		}

		value := call.Params[key]
		position := len(args) + 1

		if bc, ok := value.(*boundCollection); ok {
			placeholders = append(placeholders, fmt.Sprintf("%s => $%d::%s", key, position, bc.typeName))
			args = append(args, bc.values)

			continue
		}

		placeholders = append(placeholders, fmt.Sprintf("%s => $%d", key, position))
		args = append(args, value)
	}

	sql := fmt.Sprintf("SELECT %s(%s)", call.Name, strings.Join(placeholders, ", "))
	if call.ReturnType == dbx.Cursor {
		sql += "::text"
	}

	return sql, args, nil
}
