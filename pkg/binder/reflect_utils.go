package binder

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

func tagName(sf reflect.StructField, tag string) (string, bool) {
	raw, ok := sf.Tag.Lookup(tag)
	if !ok || raw == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(raw, ",")
	if name == "" {
		name = strings.ToLower(sf.Name)
	}
	return name, true
}

func fieldError(bindErr error, name string, err error) error {
	return fmt.Errorf("%w: %s: %v", bindErr, name, err)
}

// setField assigns values to a field of a basic kind, a pointer to one, or a
// slice of one.
func setField(field reflect.Value, values []string) error {
	switch field.Kind() {
	case reflect.Pointer:
		elem := reflect.New(field.Type().Elem())
		if err := setField(elem.Elem(), values); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	case reflect.Slice:
		out := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, val := range values {
			if err := setScalar(out.Index(i), val); err != nil {
				return err
			}
		}
		field.Set(out)
		return nil
	default:
		return setScalar(field, values[0])
	}
}

func setScalar(field reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
