package repository

import (
	"context"

	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
)

// invoke executes exactly one stored function call on conn and returns its unprocessed result.
// Custom parameters are marshaled before the call, into a copy of the named parameters.
// Driver errors are returned as they are, classification happens in the repository.
func invoke(ctx context.Context, conn dbx.Conn, call Call) (dbx.RawResult, error) {
	params := make(map[string]any, len(call.Params)+len(call.CustomParams))
	for k, v := range call.Params {
		params[k] = v
	}

	for _, param := range call.CustomParams {
		bound, err := marshal(ctx, conn, param)
		if err != nil {
			return dbx.RawResult{}, err
		}

		params[param.BindingKey()] = bound
	}

	return conn.CallFunction(ctx, dbx.FunctionCall{
		Name:       call.QualifiedName(),
		ReturnType: call.ReturnType,
		Params:     params,
	})
}
