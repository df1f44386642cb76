package handler

// introspection.go implements the introspection type which handles the GraphQL __schema and __type queries

import (
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
)

type (
	introspection struct {
		astSchema *ast.Schema

		Schema  gqlSchema             `egg:"__schema"`
		GetType func(string) *gqlType `egg:"__type(name)"`
	}

	gqlSchema struct {
		Description      *string
		Types            []*gqlType
		QueryType        *gqlType
		MutationType     *gqlType
		SubscriptionType *gqlType
		Directives       []gqlDirective
	}

	gqlType struct {
		Kind           string // __TypeKind enum value
		Name           *string
		Description    *string
		SpecifiedByURL *string `egg:"specifiedByURL"`
		Fields         func(*bool) []gqlField      `egg:"fields(includeDeprecated)"`
		Interfaces     []*gqlType
		PossibleTypes  []*gqlType
		EnumValues     func(*bool) []gqlEnumValue  `egg:"enumValues(includeDeprecated)"`
		InputFields    func(*bool) []gqlInputValue `egg:"inputFields(includeDeprecated)"`
		OfType         *gqlType
		IsOneOf        *bool
	}

	gqlField struct {
		Name              string
		Description       *string
		Args              func(*bool) []gqlInputValue `egg:"args(includeDeprecated)"`
		Type              *gqlType
		IsDeprecated      bool
		DeprecationReason *string
	}

	gqlInputValue struct {
		Name              string
		Description       *string
		Type              *gqlType
		DefaultValue      *string
		IsDeprecated      bool
		DeprecationReason *string
	}

	gqlEnumValue struct {
		Name              string
		Description       *string
		IsDeprecated      bool
		DeprecationReason *string
	}

	gqlDirective struct {
		Name         string
		Description  *string
		Locations    []string // __DirectiveLocation enum values
		Args         func(*bool) []gqlInputValue `egg:"args(includeDeprecated)"`
		IsRepeatable bool
	}
)

// newIntrospection makes the data used to resolve introspection queries from the (parsed) schema.
// Object fields are generated lazily (when queried) as types refer to each other recursively.
func newIntrospection(astSchema *ast.Schema) *introspection {
	i := &introspection{astSchema: astSchema}
	names := make([]string, 0, len(astSchema.Types))
	for name := range astSchema.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		i.Schema.Types = append(i.Schema.Types, i.named(name))
	}
	if astSchema.Query != nil {
		i.Schema.QueryType = i.named(astSchema.Query.Name)
	}
	if astSchema.Mutation != nil {
		i.Schema.MutationType = i.named(astSchema.Mutation.Name)
	}
	if astSchema.Subscription != nil {
		i.Schema.SubscriptionType = i.named(astSchema.Subscription.Name)
	}
	directives := make([]string, 0, len(astSchema.Directives))
	for name := range astSchema.Directives {
		directives = append(directives, name)
	}
	sort.Strings(directives)
	for _, name := range directives {
		i.Schema.Directives = append(i.Schema.Directives, i.directive(astSchema.Directives[name]))
	}
	i.GetType = i.getType
	return i
}

func (i *introspection) getType(name string) *gqlType {
	if i.astSchema.Types[name] == nil {
		return nil
	}
	return i.named(name)
}

// named returns the introspection type for a named (not list or non-null) type
func (i *introspection) named(name string) *gqlType {
	defn := i.astSchema.Types[name]
	if defn == nil {
		return nil
	}
	r := &gqlType{
		Kind:        string(defn.Kind), // ast.DefinitionKind values are the __TypeKind enum names
		Name:        optional(defn.Name),
		Description: optional(defn.Description),
	}
	switch defn.Kind {
	case ast.Object, ast.Interface:
		r.Fields = func(includeDeprecated *bool) []gqlField { return i.fields(defn.Fields, includeDeprecated) }
		r.Interfaces = i.namedList(defn.Interfaces)
		if defn.Kind == ast.Interface {
			r.PossibleTypes = i.possibleTypes(defn)
		}
	case ast.Union:
		r.PossibleTypes = i.possibleTypes(defn)
	case ast.Enum:
		r.EnumValues = func(includeDeprecated *bool) []gqlEnumValue { return i.enumValues(defn.EnumValues, includeDeprecated) }
	case ast.InputObject:
		r.InputFields = func(includeDeprecated *bool) []gqlInputValue { return i.inputFields(defn.Fields, includeDeprecated) }
		isOneOf := defn.Directives.ForName("oneOf") != nil
		r.IsOneOf = &isOneOf
	case ast.Scalar:
		if d := defn.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				r.SpecifiedByURL = optional(arg.Value.Raw)
			}
		}
	}
	return r
}

// typeRef returns the introspection type for a field or argument type, wrapping lists and non-null types
func (i *introspection) typeRef(t *ast.Type) *gqlType {
	var r *gqlType
	if t.Elem != nil {
		r = &gqlType{Kind: "LIST", OfType: i.typeRef(t.Elem)}
	} else {
		r = i.named(t.NamedType)
	}
	if t.NonNull {
		r = &gqlType{Kind: "NON_NULL", OfType: r}
	}
	return r
}

func (i *introspection) namedList(names []string) []*gqlType {
	r := make([]*gqlType, 0, len(names))
	for _, name := range names {
		r = append(r, i.named(name))
	}
	return r
}

func (i *introspection) possibleTypes(defn *ast.Definition) []*gqlType {
	var r []*gqlType
	for _, t := range i.astSchema.GetPossibleTypes(defn) {
		r = append(r, i.named(t.Name))
	}
	return r
}

func (i *introspection) fields(list ast.FieldList, includeDeprecated *bool) []gqlField {
	r := make([]gqlField, 0, len(list))
	for _, f := range list {
		if len(f.Name) > 1 && f.Name[:2] == "__" {
			continue
		}
		deprecated, reason := deprecation(f.Directives)
		if deprecated && !isTrue(includeDeprecated) {
			continue
		}
		args := f.Arguments
		r = append(r, gqlField{
			Name:              f.Name,
			Description:       optional(f.Description),
			Args:              func(includeDeprecated *bool) []gqlInputValue { return i.args(args, includeDeprecated) },
			Type:              i.typeRef(f.Type),
			IsDeprecated:      deprecated,
			DeprecationReason: reason,
		})
	}
	return r
}

func (i *introspection) args(list ast.ArgumentDefinitionList, includeDeprecated *bool) []gqlInputValue {
	r := make([]gqlInputValue, 0, len(list))
	for _, arg := range list {
		deprecated, reason := deprecation(arg.Directives)
		if deprecated && !isTrue(includeDeprecated) {
			continue
		}
		v := gqlInputValue{
			Name:              arg.Name,
			Description:       optional(arg.Description),
			Type:              i.typeRef(arg.Type),
			IsDeprecated:      deprecated,
			DeprecationReason: reason,
		}
		if arg.DefaultValue != nil {
			v.DefaultValue = optional(arg.DefaultValue.String())
		}
		r = append(r, v)
	}
	return r
}

func (i *introspection) inputFields(list ast.FieldList, includeDeprecated *bool) []gqlInputValue {
	r := make([]gqlInputValue, 0, len(list))
	for _, f := range list {
		deprecated, reason := deprecation(f.Directives)
		if deprecated && !isTrue(includeDeprecated) {
			continue
		}
		v := gqlInputValue{
			Name:              f.Name,
			Description:       optional(f.Description),
			Type:              i.typeRef(f.Type),
			IsDeprecated:      deprecated,
			DeprecationReason: reason,
		}
		if f.DefaultValue != nil {
			v.DefaultValue = optional(f.DefaultValue.String())
		}
		r = append(r, v)
	}
	return r
}

func (i *introspection) enumValues(list ast.EnumValueList, includeDeprecated *bool) []gqlEnumValue {
	r := make([]gqlEnumValue, 0, len(list))
	for _, v := range list {
		deprecated, reason := deprecation(v.Directives)
		if deprecated && !isTrue(includeDeprecated) {
			continue
		}
		r = append(r, gqlEnumValue{
			Name:              v.Name,
			Description:       optional(v.Description),
			IsDeprecated:      deprecated,
			DeprecationReason: reason,
		})
	}
	return r
}

func (i *introspection) directive(d *ast.DirectiveDefinition) gqlDirective {
	locations := make([]string, len(d.Locations))
	for n, loc := range d.Locations {
		locations[n] = string(loc)
	}
	args := d.Arguments
	return gqlDirective{
		Name:         d.Name,
		Description:  optional(d.Description),
		Locations:    locations,
		Args:         func(includeDeprecated *bool) []gqlInputValue { return i.args(args, includeDeprecated) },
		IsRepeatable: d.IsRepeatable,
	}
}

// deprecation checks for the @deprecated directive returning the reason (if any)
func deprecation(directives ast.DirectiveList) (bool, *string) {
	d := directives.ForName("deprecated")
	if d == nil {
		return false, nil
	}
	reason := "No longer supported"
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = arg.Value.Raw
	}
	return true, &reason
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isTrue(b *bool) bool { return b != nil && *b }
