package util

import (
	"fmt"
	"reflect"
)

// IsStructInitialized reports an error naming the first nil pointer/interface field of s
// that is not tagged `wire:"-"`.
func IsStructInitialized(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", v.Kind())
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("wire") == "-" {
			continue
		}

		f := v.Field(i)
		switch f.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if f.IsNil() {
				return fmt.Errorf("struct field %q is not initialized", field.Name)
			}
		default:
		}
	}

	return nil
}
