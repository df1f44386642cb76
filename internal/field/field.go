// Package field is for analysing Go struct fields for use as GraphQL resolvers
package field

// field.go extracts resolver info from a Go struct field

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// Info is returned by Get() with info extracted from a struct field to be used as a GraphQL resolver.
// The info is obtained from the field's name, type and "egg" (metadata) tag.
type Info struct {
	Name       string       // GraphQL field name - from the tag or the Go field name with 1st letter lower-cased
	ResultType reflect.Type // field type or, for a func, the type of its 1st return value

	// The following are for function resolvers only
	IsFunc     bool     // the field is a func which must be called to get the value
	Params     []string // names of the GraphQL arguments passed to the func (in order)
	HasContext bool     // 1st function parameter is a context.Context (not a query argument)
	HasError   bool     // has 2 return values the 2nd of which is a Go error

	// Description is the text after a # in the tag
	Description string
}

// contextType is used to check if a resolver function takes a context.Context (1st) parameter
var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// errorType is used to check if a resolver function returns a (2nd) error return value
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Get checks if a field in a Go struct is exported and, if so, returns the GraphQL field info.
// If the field is not exported or the tag is a dash (-) then nil is returned, but no error.
// An error is returned for malformed metadata or a resolver func with the wrong signature.
func Get(f *reflect.StructField) (*Info, error) {
	if f.PkgPath != "" {
		return nil, nil // unexported field
	}

	fieldInfo, err := GetTagInfo(f.Tag.Get("egg"))
	if err != nil {
		return nil, fmt.Errorf("%w getting tag info from field %q", err, f.Name)
	}
	if fieldInfo == nil {
		return nil, nil // explicitly omitted field
	}

	if fieldInfo.Name == "" {
		first, n := utf8.DecodeRuneInString(f.Name)
		fieldInfo.Name = string(unicode.ToLower(first)) + f.Name[n:]
	}

	t := f.Type
	if t.Kind() != reflect.Func {
		if fieldInfo.Params != nil {
			return nil, errors.New("arguments cannot be supplied for non-function resolver " + f.Name)
		}
		fieldInfo.ResultType = t
		return fieldInfo, nil
	}

	fieldInfo.IsFunc = true
	firstIndex := 0
	if t.NumIn() > 0 && t.In(0).Kind() == reflect.Interface && t.In(0).Implements(contextType) {
		fieldInfo.HasContext = true
		firstIndex++
	}
	if t.NumIn()-firstIndex != len(fieldInfo.Params) {
		if len(fieldInfo.Params) == 0 {
			return nil, fmt.Errorf("no args found in egg tag for %q but %d required", f.Name, t.NumIn()-firstIndex)
		}
		return nil, fmt.Errorf("function %q argument count should be %d but is %d",
			f.Name, len(fieldInfo.Params), t.NumIn()-firstIndex)
	}

	switch t.NumOut() {
	case 0:
		return nil, errors.New("resolver " + f.Name + " must return a value (or 2)")
	case 1:
	case 2:
		if t2 := t.Out(1); t2.Kind() != reflect.Interface || !t2.Implements(errorType) {
			return nil, errors.New("resolver " + f.Name + " 2nd return must be error type")
		}
		fieldInfo.HasError = true
	default:
		return nil, errors.New("resolver " + f.Name + " returns too many values")
	}
	fieldInfo.ResultType = t.Out(0)
	return fieldInfo, nil
}

// BaseType strips pointers, lists, channels and funcs to get the underlying Go type that a GraphQL
// named type is resolved from, eg: func(context.Context) (<-chan *Book, error) => Book
func BaseType(t reflect.Type) reflect.Type {
	for {
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Array, reflect.Chan:
			t = t.Elem()
		case reflect.Func:
			if t.NumOut() == 0 {
				return t
			}
			t = t.Out(0)
		default:
			return t
		}
	}
}
