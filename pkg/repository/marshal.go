package repository

import (
	"context"

	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/pkg/errors"
)

// marshal binds a custom parameter to the collection type found in the session catalog.
// An unknown type name is a caller configuration error and is never retried.
func marshal(ctx context.Context, conn dbx.Conn, param dbx.CustomParam) (any, error) {
	typeName := dbx.QualifiedTypeName(param)

	collection, err := conn.LookupType(ctx, typeName)
	if err != nil {
		return nil, errors.Wrapf(err, "error marshaling parameter '%s'", param.BindingKey())
	}

	bound, err := collection.New(param.CollectionValues())
	if err != nil {
		return nil, errors.Wrapf(err, "error building collection '%s' for parameter '%s'", typeName, param.BindingKey())
	}

	return bound, nil
}
