package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator delimits segments of a derived cache key.
const KeySeparator = "::"

// Key derives a deterministic cache key from an operation name and its
// arguments. The same arguments always yield the same key; maps are walked in
// sorted key order so iteration order never leaks into the key.
func Key(operation string, args ...any) string {
	if len(args) == 0 {
		return operation
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, operation)
	for _, arg := range args {
		parts = append(parts, serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

// serializeValue renders a single argument deterministically.
func serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return serializeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "slice:nil"
		}
		parts := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts[i] = serializeValue(rv.Index(i).Interface())
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ","))
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return serializeMap(rv)
	case reflect.Struct:
		return serializeStruct(rv)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprintf("%v", v)
	default:
		return jsonFallback(v)
	}
}

// serializeMap renders map entries in sorted key order for determinism.
func serializeMap(rv reflect.Value) string {
	keys := rv.MapKeys()
	rendered := make([]string, len(keys))
	for i, k := range keys {
		rendered[i] = fmt.Sprintf("%s=%s", serializeValue(k.Interface()), serializeValue(rv.MapIndex(k).Interface()))
	}
	sort.Strings(rendered)
	return fmt.Sprintf("{%s}", strings.Join(rendered, ","))
}

// serializeStruct renders exported fields in declaration order.
func serializeStruct(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", field.Name, serializeValue(rv.Field(i).Interface())))
	}
	return fmt.Sprintf("%s{%s}", rt.Name(), strings.Join(parts, ","))
}

func jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(data)
}
