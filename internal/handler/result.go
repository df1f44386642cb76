package handler

// result.go is used to generate the query output (an ordered JSON object)

import (
	"context"
	"reflect"
	"strings"

	"github.com/andrewwphillips/libraryql/internal/field"
	"github.com/dolmen-go/jsonmap"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

type (
	// gqlOperation controls an operation (query/mutation/subscription) of a GraphQL request
	gqlOperation struct {
		*Handler // required for resolver lookups, options etc

		isMutation bool
		variables  map[string]interface{} // variables for this op (extracted from the request)
	}

	// gqlValue contains the result of a query or queries, or an error, plus the name
	gqlValue struct {
		name  string      // name/alias of the entry/resolver
		value interface{} // scalar, nested result (jsonmap.Ordered), list ([]interface{})
		err   error       // non-nil if something went wrong whence the contents of value should be ignored
	}
)

// GetSelections resolves the selections in a query by finding and evaluating the corresponding resolver(s)
// Returns a jsonmap.Ordered (a map of values and a slice that remembers the order they were added) that contains an
// entry for each selection, where the map "key" is the alias of the field and the value is:
//
//	a) scalar value (stored in an interface{})
//	b) a nested jsonmap.Ordered if the resolver is a nested struct
//	c) a slice (ie []interface{}) if the resolver is a slice or array.
//
// Parameters:
//
//	ctx = a Go context that could expire at any time
//	set = list of selections from a GraphQL query to be resolved
//	v = the Go struct with the resolvers
//	typeName = the GraphQL type of the object (for fragment type conditions and __typename)
//	path = location of the object in the result (for error messages)
func (op *gqlOperation) GetSelections(ctx context.Context, set ast.SelectionSet, v reflect.Value, typeName string,
	path ast.Path,
) (jsonmap.Ordered, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem() // follow indirection
	}

	fields := op.collectFields(set, typeName)
	resultChans := make([]<-chan gqlValue, 0, len(fields))
	for _, astField := range fields {
		resultChans = append(resultChans, op.FindSelection(ctx, astField, v, typeName, appendPath(path, ast.PathName(alias(astField)))))
	}

	// Now extract the values (blocks until every resolver has finished)
	r := jsonmap.Ordered{
		Data:  make(map[string]interface{}, len(fields)),
		Order: make([]string, 0, len(fields)),
	}
	for _, ch := range resultChans {
		select {
		case value := <-ch:
			if value.err != nil {
				return jsonmap.Ordered{}, value.err
			}
			r.Data[value.name] = value.value
			r.Order = append(r.Order, value.name)
		case <-ctx.Done():
			return jsonmap.Ordered{}, ctx.Err()
		}
	}
	return r, nil
}

// collectFields flattens a selection set (expanding fragments that apply to typeName and skipping
// anything excluded by @skip/@include) into the list of fields to resolve, in document order.
// Repeated requests for the same alias are merged.
func (op *gqlOperation) collectFields(set ast.SelectionSet, typeName string) []*ast.Field {
	var fields []*ast.Field
	index := make(map[string]int)

	var walk func(ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, s := range set {
			switch sel := s.(type) {
			case *ast.Field:
				if op.directiveBypass(sel.Directives) {
					continue
				}
				name := alias(sel)
				if i, ok := index[name]; ok {
					merged := *fields[i]
					merged.SelectionSet = append(append(ast.SelectionSet{}, merged.SelectionSet...), sel.SelectionSet...)
					fields[i] = &merged
					continue
				}
				index[name] = len(fields)
				fields = append(fields, sel)

			case *ast.InlineFragment:
				if op.directiveBypass(sel.Directives) || sel.TypeCondition != "" && sel.TypeCondition != typeName {
					continue
				}
				walk(sel.SelectionSet)

			case *ast.FragmentSpread:
				if op.directiveBypass(sel.Directives) || sel.Definition == nil || sel.Definition.TypeCondition != typeName {
					continue
				}
				walk(sel.Definition.SelectionSet)
			}
		}
	}
	walk(set)
	return fields
}

// FindSelection returns the resolved value of a field in a chan (buffered so the sender never blocks)
// Parameters:
//   - ctx: context that indicates if the request has been cancelled
//   - astField: contains the query name, arguments etc to be resolved
//   - v: struct which contains the field required to resolve astField
func (op *gqlOperation) FindSelection(ctx context.Context, astField *ast.Field, v reflect.Value, typeName string,
	path ast.Path,
) <-chan gqlValue {
	ch := make(chan gqlValue, 1)
	name := alias(astField)

	switch astField.Name {
	case "__typename": // __typename is a special introspection field (see GraphQL spec)
		ch <- gqlValue{name: name, value: typeName}
		return ch
	case "__schema", "__type":
		if op.introspection == nil {
			ch <- gqlValue{err: gqlerror.ErrorPathf(path, "introspection is disabled")}
			return ch
		}
		v = reflect.ValueOf(op.introspection).Elem()
	}

	if v.Kind() != reflect.Struct {
		ch <- gqlValue{err: gqlerror.ErrorPathf(path, "cannot resolve field %q of %s from %v", astField.Name, typeName, v.Type())}
		return ch
	}
	resolver, ok := op.lookup(v.Type(), astField.Name)
	if !ok {
		ch <- gqlValue{err: gqlerror.ErrorPathf(path, "no resolver found for field %q of %s", astField.Name, typeName)}
		return ch
	}

	if op.isMutation || op.noConcurrency { // Mutations are run sequentially
		op.wrapResolve(ctx, astField, v.Field(resolver.index), resolver.info, path, ch)
	} else {
		// Calling wrapResolve as a go routine allows resolvers to run in parallel
		go op.wrapResolve(ctx, astField, v.Field(resolver.index), resolver.info, path, ch)
	}
	return ch
}

// wrapResolve calls resolve putting the return value on a chan and converting any panic to an error
func (op *gqlOperation) wrapResolve(ctx context.Context, astField *ast.Field, v reflect.Value, info *field.Info,
	path ast.Path, ch chan<- gqlValue,
) {
	defer func() {
		// Convert any panics in resolvers into an (internal) error
		if recoverValue := recover(); recoverValue != nil {
			op.log.Error("resolver panic", zap.String("field", astField.Name), zap.Any("panic", recoverValue))
			ch <- gqlValue{err: gqlerror.ErrorPathf(path, "internal error: panic %v", recoverValue)}
		}
	}()
	value, err := op.resolve(ctx, astField, v, info, path)
	ch <- gqlValue{name: alias(astField), value: value, err: err}
}

// resolve calls a resolver given a query to obtain the results of the query (incl. listed and nested queries)
// Resolvers are often dynamic (where the resolver is a Go function) in which case the function is called to get the value.
func (op *gqlOperation) resolve(ctx context.Context, astField *ast.Field, v reflect.Value, info *field.Info,
	path ast.Path,
) (interface{}, error) {
	if info.IsFunc {
		if v.IsNil() {
			// introspection types only have the func resolvers that apply to their kind
			if op.nilResolver || strings.HasPrefix(astField.ObjectDefinition.Name, "__") {
				v = reflect.Value{}
			} else {
				return nil, gqlerror.ErrorPathf(path, "resolver for field %q is nil", astField.Name)
			}
		} else {
			var err error
			if v, err = op.fromFunc(ctx, astField, v, info); err != nil {
				return nil, toGQLError(err, path)
			}
		}
	}
	return op.resolveValue(ctx, astField, astField.Definition.Type, v, path)
}

// resolveValue converts the value returned from a resolver to what is returned in the JSON result, guided
// by the GraphQL type of the field: nested objects are resolved using the field's selection set and
// lists are resolved element by element.
func (op *gqlOperation) resolveValue(ctx context.Context, astField *ast.Field, typ *ast.Type, v reflect.Value,
	path ast.Path,
) (interface{}, error) {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			v = reflect.Value{}
			break
		}
		v = v.Elem() // follow indirection
	}

	if typ.Elem != nil && v.IsValid() && v.Kind() == reflect.Slice && v.IsNil() {
		return []interface{}{}, nil // a nil slice is an empty list
	}
	if !v.IsValid() {
		if typ.NonNull {
			return nil, gqlerror.ErrorPathf(path, "null returned for non-nullable field %q", astField.Name)
		}
		return nil, nil
	}

	if typ.Elem != nil {
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, gqlerror.ErrorPathf(path, "resolver for list field %q returned %v", astField.Name, v.Type())
		}
		list := make([]interface{}, v.Len())
		for i := range list {
			var err error
			if list[i], err = op.resolveValue(ctx, astField, typ.Elem, v.Index(i), appendPath(path, ast.PathIndex(i))); err != nil {
				return nil, err
			}
		}
		return list, nil
	}

	if v.Kind() == reflect.Struct {
		if len(astField.SelectionSet) == 0 {
			return nil, gqlerror.ErrorPathf(path, "no fields selected for object field %q", astField.Name)
		}
		r, err := op.GetSelections(ctx, astField.SelectionSet, v, typ.NamedType, path)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	if v.CanInterface() {
		return v.Interface(), nil
	}
	return nil, gqlerror.ErrorPathf(path, "cannot get value of field %q", astField.Name)
}

// directiveBypass checks for @skip and @include directives and returns true if the selection is excluded
func (op *gqlOperation) directiveBypass(directives ast.DirectiveList) bool {
	for _, directive := range directives {
		arg := directive.Arguments.ForName("if")
		if arg == nil {
			continue
		}
		value, err := arg.Value.Value(op.variables)
		if err != nil {
			continue
		}
		b, _ := value.(bool)
		switch directive.Name {
		case "skip":
			if b {
				return true
			}
		case "include":
			if !b {
				return true
			}
		}
	}
	return false
}

// alias returns the name used for a field in the results
func alias(astField *ast.Field) string {
	if astField.Alias != "" {
		return astField.Alias
	}
	return astField.Name
}

// appendPath returns a new path (the underlying array of path may be shared by sibling fields)
func appendPath(path ast.Path, elt ast.PathElement) ast.Path {
	r := make(ast.Path, len(path), len(path)+1)
	copy(r, path)
	return append(r, elt)
}

