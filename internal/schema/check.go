package schema

// check.go verifies that resolver structs cover every field of the schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/andrewwphillips/libraryql/internal/field"
	"github.com/vektah/gqlparser/v2/ast"
)

// Check compares the query, mutation and subscription resolvers (in that order, nil if
// not used) against the schema.  Every field of every object type reachable from the
// entry points must have a resolver with the same arguments and a compatible Go type.
// Subscription resolvers must return a channel.
func Check(s *ast.Schema, qms ...interface{}) error {
	entries := []*ast.Definition{s.Query, s.Mutation, s.Subscription}
	if len(qms) > len(entries) {
		return fmt.Errorf("too many resolver structs (%d)", len(qms))
	}
	c := checker{schema: s, seen: make(map[string]reflect.Type)}
	for i, entry := range entries {
		var v interface{}
		if i < len(qms) {
			v = qms[i]
		}
		switch {
		case entry == nil && v == nil:
			continue
		case entry == nil:
			return fmt.Errorf("resolvers supplied for entry point %d which is not in the schema", i)
		case v == nil:
			return fmt.Errorf("no resolvers supplied for %s", entry.Name)
		}
		if err := c.object(entry, reflect.TypeOf(v), i == 2); err != nil {
			return err
		}
	}
	return nil
}

type checker struct {
	schema *ast.Schema
	seen   map[string]reflect.Type // object types already checked and the Go type used
}

func (c checker) object(def *ast.Definition, t reflect.Type, isSubscription bool) error {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("type %s must be resolved from a struct not %v", def.Name, t)
	}
	if prev, ok := c.seen[def.Name]; ok {
		if prev != t {
			return fmt.Errorf("type %s is resolved from both %v and %v", def.Name, prev, t)
		}
		return nil
	}
	c.seen[def.Name] = t

	resolvers := make(map[string]*field.Info, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		info, err := field.Get(&f)
		if err != nil {
			return fmt.Errorf("%w in %v", err, t)
		}
		if info != nil {
			resolvers[info.Name] = info
		}
	}

	for _, fd := range def.Fields {
		if strings.HasPrefix(fd.Name, "__") {
			continue
		}
		info, ok := resolvers[fd.Name]
		if !ok {
			return fmt.Errorf("field %s.%s has no resolver in %v", def.Name, fd.Name, t)
		}
		if len(info.Params) != len(fd.Arguments) {
			return fmt.Errorf("field %s.%s has %d arguments but resolver has %d",
				def.Name, fd.Name, len(fd.Arguments), len(info.Params))
		}
		for _, p := range info.Params {
			if fd.Arguments.ForName(p) == nil {
				return fmt.Errorf("resolver for %s.%s has unknown argument %q", def.Name, fd.Name, p)
			}
		}
		rt := info.ResultType
		if isSubscription {
			if rt.Kind() != reflect.Chan {
				return fmt.Errorf("subscription %s must return a channel not %v", fd.Name, rt)
			}
			rt = rt.Elem()
		}
		if err := c.typ(fd.Type, rt); err != nil {
			return fmt.Errorf("%w for field %s.%s", err, def.Name, fd.Name)
		}
	}
	return nil
}

func (c checker) typ(typ *ast.Type, t reflect.Type) error {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if typ.Elem != nil {
		if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
			return fmt.Errorf("list type %s needs a Go slice not %v", typ, t)
		}
		return c.typ(typ.Elem, t.Elem())
	}
	def := c.schema.Types[typ.NamedType]
	if def == nil {
		return errors.New("unknown type " + typ.NamedType)
	}
	switch def.Kind {
	case ast.Object:
		return c.object(def, t, false)
	case ast.Scalar, ast.Enum:
		switch t.Kind() {
		case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Chan, reflect.Func:
			return fmt.Errorf("scalar %s cannot be resolved from %v", typ.NamedType, t)
		}
	}
	return nil
}
