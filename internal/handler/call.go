package handler

// call.go uses reflection to call a Go function that implements a GraphQL resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/andrewwphillips/libraryql/internal/field"
	"github.com/vektah/gqlparser/v2/ast"
)

// fromFunc calls a Go function resolver and returns the value it returns
// Parameters:
//
//	ctx - is a context.Context that may be cancelled at any time
//	astField - is the GraphQL query object field (with the supplied arguments)
//	v - the reflection "value" of the Go function
//	fieldInfo - contains the parameter names obtained from the Go field metadata
func (op *gqlOperation) fromFunc(ctx context.Context, astField *ast.Field, v reflect.Value, fieldInfo *field.Info,
) (reflect.Value, error) {
	t := v.Type()
	args := make([]reflect.Value, t.NumIn()) // list of arguments for the function call
	baseArg := 0                             // index of 1st query resolver argument (== 1 if function call needs ctx, else == 0)

	if fieldInfo.HasContext {
		args[0] = reflect.ValueOf(ctx)
		baseArg++
	}

	// GraphQL arguments are supplied by name (not position) and may be omitted if nullable or defaulted
	for n, param := range fieldInfo.Params {
		// rawValue stores the value of an argument the same way the JSON decoder does. Eg: a GraphQL list
		// is stored in a []interface{}; null (or an omitted argument) is nil.
		var rawValue interface{}
		var err error
		if argument := astField.Arguments.ForName(param); argument != nil {
			rawValue, err = argument.Value.Value(op.variables)
		} else if def := astField.Definition.Arguments.ForName(param); def != nil && def.DefaultValue != nil {
			rawValue, err = def.DefaultValue.Value(op.variables)
		}
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w getting argument %q", err, param)
		}

		// Now convert the "raw" value into the expected Go parameter type
		if args[baseArg+n], err = op.getValue(t.In(baseArg+n), param, rawValue); err != nil {
			return reflect.Value{}, err
		}
	}

	out := v.Call(args) // === the actual function call (using reflection) ===

	// Extract the error return value (if any)
	if fieldInfo.HasError {
		if iface := out[1].Interface(); iface != nil {
			return reflect.Value{}, iface.(error)
		}
	}
	return out[0], nil
}

// getValue converts a raw argument value (as decoded from the query or JSON variables) into the
// Go type the resolver function expects
func (op *gqlOperation) getValue(t reflect.Type, name string, value interface{}) (reflect.Value, error) {
	if value == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("argument %q may not be null", name)
	}
	if t.Kind() == reflect.Ptr {
		elem, err := op.getValue(t.Elem(), name, value)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	}
	if t.Kind() == reflect.Interface {
		return reflect.ValueOf(value), nil
	}

	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return op.getInt(t, name, i)
		}
		f, err := v.Float64()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w decoding number for argument %q", err, name)
		}
		return op.getFloat(t, name, f)
	case string:
		return op.getString(t, name, v)
	case bool:
		if t.Kind() != reflect.Bool {
			return reflect.Value{}, fmt.Errorf("argument %q: cannot use boolean as %v", name, t)
		}
		return reflect.ValueOf(v).Convert(t), nil
	case int:
		return op.getInt(t, name, int64(v))
	case int32:
		return op.getInt(t, name, int64(v))
	case int64:
		return op.getInt(t, name, v)
	case float64:
		return op.getFloat(t, name, v)
	case []interface{}:
		return op.getList(t, name, v)
	}
	return reflect.Value{}, fmt.Errorf("argument %q: unsupported value type %T", name, value)
}

func (op *gqlOperation) getList(t reflect.Type, name string, list []interface{}) (reflect.Value, error) {
	if t.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("argument %q: cannot use a list as %v", name, t)
	}
	r := reflect.MakeSlice(t, len(list), len(list))
	for i, elt := range list {
		v, err := op.getValue(t.Elem(), name, elt)
		if err != nil {
			return reflect.Value{}, err
		}
		r.Index(i).Set(v)
	}
	return r, nil
}

func (op *gqlOperation) getInt(t reflect.Type, name string, i int64) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		r := reflect.New(t).Elem()
		if r.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("argument %q: %d is out of range for %v", name, i, t)
		}
		r.SetInt(i)
		return r, nil
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(float64(i)).Convert(t), nil
	case reflect.String:
		return reflect.ValueOf(strconv.FormatInt(i, 10)).Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("argument %q: cannot use integer as %v", name, t)
}

func (op *gqlOperation) getFloat(t reflect.Type, name string, f float64) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f != float64(int64(f)) {
			return reflect.Value{}, fmt.Errorf("argument %q: %v is not an integer", name, f)
		}
		return op.getInt(t, name, int64(f))
	}
	return reflect.Value{}, fmt.Errorf("argument %q: cannot use number as %v", name, t)
}

// getString handles string values which may also come from JSON variables sent as text
func (op *gqlOperation) getString(t reflect.Type, name string, s string) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(s).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("argument %q: %q is not a valid integer", name, s)
		}
		return reflect.ValueOf(i).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("argument %q: %q is not a valid number", name, s)
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("argument %q: %q is not a valid boolean", name, s)
		}
		return reflect.ValueOf(b).Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("argument %q: cannot use string as %v", name, t)
}
