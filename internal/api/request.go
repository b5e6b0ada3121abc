package api

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/repository"
	"github.com/spf13/cast"
)

// CollectionRequest - a collection parameter of a function request.
type CollectionRequest struct {
	Key    string `json:"key" validate:"required"`
	Type   string `json:"type" validate:"required"`
	Schema string `json:"schema"`
}

// IntListRequest - collection of integers, bound as dbx.IntListParam.
type IntListRequest struct {
	CollectionRequest
	Values []int64 `json:"values"`
}

// StringListRequest - collection of strings, bound as dbx.StringListParam (or dbx.ClobListParam).
type StringListRequest struct {
	CollectionRequest
	Values []string `json:"values"`
}

// FunctionRequest - body of POST /functions/:name.
type FunctionRequest struct {
	Schema      string              `json:"schema"`
	ReturnType  string              `json:"returnType" validate:"omitempty,oneof=text cursor number integer decimal"`
	Params      map[string]any      `json:"params"`
	IntLists    []IntListRequest    `json:"intLists" validate:"dive"`
	StringLists []StringListRequest `json:"stringLists" validate:"dive"`
	ClobLists   []StringListRequest `json:"clobLists" validate:"dive"`
}

// OperationRequest - body of POST /transactions/:name/operations/:kind.
type OperationRequest struct {
	FunctionRequest
	Function string `json:"function" validate:"required"`
	Table    string `json:"table" validate:"required"`
}

// decodeBody decodes a JSON body keeping numbers exact: integral values become int64, others float64.
func decodeBody(body []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if err := dec.Decode(dest); err != nil {
		return err
	}

	return nil
}

func (fr FunctionRequest) toCall(function string) (repository.Call, error) {
	rt, err := dbx.ParseReturnType(fr.ReturnType)
	if err != nil {
		return repository.Call{}, err
	}

	call := repository.Call{
		Function:   function,
		Schema:     fr.Schema,
		ReturnType: rt,
		Params:     normalizeParams(fr.Params),
	}

	for _, l := range fr.IntLists {
		call.CustomParams = append(call.CustomParams, dbx.IntListParam{
			Key: l.Key, TypeName: l.Type, Schema: l.Schema, Values: l.Values,
		})
	}

	for _, l := range fr.StringLists {
		call.CustomParams = append(call.CustomParams, dbx.StringListParam{
			Key: l.Key, TypeName: l.Type, Schema: l.Schema, Values: l.Values,
		})
	}

	for _, l := range fr.ClobLists {
		call.CustomParams = append(call.CustomParams, dbx.ClobListParam{
			Key: l.Key, TypeName: l.Type, Schema: l.Schema, Values: l.Values,
		})
	}

	return call, nil
}

func normalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = normalizeValue(v)
	}

	return out
}

func normalizeValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}

	if i, err := cast.ToInt64E(n.String()); err == nil {
		return i
	}

	if f, err := cast.ToFloat64E(n.String()); err == nil {
		return f
	}

	return n.String()
}
