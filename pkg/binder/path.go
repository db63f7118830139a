package binder

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// Path binds URL path parameters into string fields tagged `path:"name"`,
// reading them through extractor (chi.URLParam with chi).
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor is nil", ErrFailedToParsePath)
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a pointer to struct", ErrFailedToParsePath)
		}
		rv = rv.Elem()
		rt := rv.Type()

		for i := range rv.NumField() {
			field := rv.Field(i)
			tag := rt.Field(i).Tag.Get("path")
			if tag == "" || tag == "-" || !field.CanSet() {
				continue
			}
			name, _, _ := strings.Cut(tag, ",")
			if field.Kind() != reflect.String {
				return fmt.Errorf("%w: field %s must be a string", ErrFailedToParsePath, rt.Field(i).Name)
			}
			if value := extractor(r, name); value != "" {
				field.SetString(value)
			}
		}
		return nil
	}
}
