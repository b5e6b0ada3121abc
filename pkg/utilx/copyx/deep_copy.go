// Package copyx provides functionality to perform deep copies of complex data structures.
package copyx

import (
	"reflect"
)

// DeepCopy performs a deep copy from the source (src) to the destination (dst).
// Nested maps, slices and pointers, also when held in interface values, are duplicated rather than
// referenced. Structs with unexported fields (time.Time, big.Int...) are copied by value.
// dst and src must be pointers to the same type.
func DeepCopy(dst, src interface{}) {
	dstValue := reflect.ValueOf(dst).Elem()
	srcValue := reflect.ValueOf(src).Elem()

	deepCopyValue(dstValue, srcValue)
}

// Clone returns a deep copy of src.
func Clone[T any](src T) T {
	var dst T

	DeepCopy(&dst, &src)

	return dst
}

// CloneMap returns a deep copy of a row shaped map. A nil map is returned as nil.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	return Clone(src)
}

func deepCopyValue(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Ptr:
		if !src.IsNil() {
			dst.Set(reflect.New(src.Elem().Type()))
			deepCopyValue(dst.Elem(), src.Elem())
		}
	case reflect.Interface:
		if !src.IsNil() {
			elem := reflect.New(src.Elem().Type()).Elem()
			deepCopyValue(elem, src.Elem())
			dst.Set(elem)
		}
	case reflect.Struct:
		// copy by value first, then replace the exported fields with their deep copies
		dst.Set(src)

		for i := 0; i < src.NumField(); i++ {
			if dst.Field(i).CanSet() {
				deepCopyValue(dst.Field(i), src.Field(i))
			}
		}
	case reflect.Slice:
		if !src.IsNil() {
			dst.Set(reflect.MakeSlice(src.Type(), src.Len(), src.Cap()))
			for i := 0; i < src.Len(); i++ {
				deepCopyValue(dst.Index(i), src.Index(i))
			}
		}
	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			deepCopyValue(dst.Index(i), src.Index(i))
		}
	case reflect.Map:
		if !src.IsNil() {
			dst.Set(reflect.MakeMapWithSize(src.Type(), src.Len()))

			iter := src.MapRange()
			for iter.Next() {
				dstValue := reflect.New(src.Type().Elem()).Elem()
				deepCopyValue(dstValue, iter.Value())
				dst.SetMapIndex(iter.Key(), dstValue)
			}
		}
	default:
		dst.Set(src)
	}
}
