package dbx

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// ScanRowIntoStruct copies the values of row into the tagged fields of dest, which must be a pointer to a struct.
//
// Columns are matched to the `tagKey` tag values case-insensitively, since databases commonly
// report column names upper-cased. Columns without a matching field are ignored, fields without a
// matching column keep their value.
//
// Conversion rules, for each matched field:
//   - nil values set the zero value of the field.
//   - values convertible to the field type (e.g. int64 -> int, float64 -> float32) are converted.
//   - pointer fields receive a newly allocated converted value.
//   - anything else (e.g. a JSON-decoded LOB map into a struct field) goes through a JSON round trip.
func ScanRowIntoStruct(row Row, dest any, tagKey string) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.New("destination not a pointer")
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.New("expected a struct type")
	}

	byColumn := make(map[string]any, row.Len())
	for _, col := range row.Columns() {
		val, _ := row.Get(col)
		byColumn[strings.ToLower(col)] = val
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		column, ok := taggedColumn(t.Field(i), tagKey)
		if !ok {
			continue
		}

		val, found := byColumn[strings.ToLower(column)]
		if !found {
			continue
		}

		if err := assignValue(v.Field(i), val); err != nil {
			return errors.Wrapf(err, "column %s", column)
		}
	}

	return nil
}

func taggedColumn(field reflect.StructField, tagKey string) (string, bool) {
	tag := field.Tag.Get(tagKey)
	if tag == "" || tag == "-" {
		return "", false
	}

	// Skip unexported fields
	if field.PkgPath != "" {
		return "", false
	}

	return strings.Split(tag, ",")[0], true
}

func assignValue(dest reflect.Value, value any) error {
	if value == nil {
		dest.Set(reflect.Zero(dest.Type()))
		return nil
	}

	val := reflect.ValueOf(value)

	if dest.Kind() == reflect.Ptr {
		elem := reflect.New(dest.Type().Elem())
		if err := assignValue(elem.Elem(), value); err != nil {
			return err
		}

		dest.Set(elem)

		return nil
	}

	if val.Type().AssignableTo(dest.Type()) {
		dest.Set(val)
		return nil
	}

	if isScalarKind(val.Kind()) && isScalarKind(dest.Kind()) && val.Type().ConvertibleTo(dest.Type()) {
		dest.Set(val.Convert(dest.Type()))
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cannot convert %v to %v: %w", val.Type(), dest.Type(), err)
	}

	if err := json.Unmarshal(data, dest.Addr().Interface()); err != nil {
		return fmt.Errorf("cannot convert %v to %v: %w", val.Type(), dest.Type(), err)
	}

	return nil
}

// isScalarKind excludes string<->number conversions, which reflect allows but which
// would turn 65 into "A".
func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return true
	default:
		return false
	}
}
