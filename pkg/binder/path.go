package binder

import (
	"net/http"
	"reflect"
)

// Path binds fields tagged `path:"name"` using extractor, typically chi.URLParam.
// Untagged fields are left alone.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindTagged(v, "path", ErrFailedToParsePath, func(name string) []string {
			if val := extractor(r, name); val != "" {
				return []string{val}
			}
			return nil
		})
	}
}

// Query binds fields tagged `query:"name"` from the URL query string.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		q := r.URL.Query()
		return bindTagged(v, "query", ErrFailedToParseQuery, func(name string) []string {
			return q[name]
		})
	}
}

func bindTagged(v any, tag string, bindErr error, lookup func(name string) []string) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrInvalidTarget
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := range rt.NumField() {
		sf := rt.Field(i)
		name, ok := tagName(sf, tag)
		if !ok || !rv.Field(i).CanSet() {
			continue
		}
		values := lookup(name)
		if len(values) == 0 {
			continue
		}
		if err := setField(rv.Field(i), values); err != nil {
			return fieldError(bindErr, name, err)
		}
	}
	return nil
}
