package handler

// lookup.go is used to build lookup tables for quick lookup of resolvers

import (
	"reflect"

	"github.com/andrewwphillips/libraryql/internal/field"
)

type (
	// resolverData is what we need to know to call a resolver: the index of the field in its struct and its info
	resolverData struct {
		index int
		info  *field.Info
	}

	// lookupTables is indexed by struct type then resolver (GraphQL field) name
	lookupTables map[reflect.Type]map[string]resolverData
)

// makeResolverTables builds lookup tables for all query/mutation/subscription structs of a schema.
// This allows us to quickly find the index of a field (resolver) given the struct type and resolver name.
// The tables are built once and afterwards only read (concurrently) when executing operations.
func (h *Handler) makeResolverTables() {
	h.resolverLookup = make(lookupTables)
	for _, v := range []interface{}{h.qData, h.mData, h.subscriptionData} {
		if v != nil {
			h.addLookup(reflect.TypeOf(v))
		}
	}
	if h.introspection != nil {
		h.addLookup(reflect.TypeOf(h.introspection))
	}
}

// addLookup gets info on all resolvers (public fields) in the parameter t.
// If t is not (or does not lead to) a struct it does nothing.
func (h *Handler) addLookup(t reflect.Type) {
	t = field.BaseType(t)
	if t.Kind() != reflect.Struct {
		return
	}
	if _, ok := h.resolverLookup[t]; ok {
		return // already done (or in progress for recursive types)
	}
	r := make(map[string]resolverData, t.NumField())
	h.resolverLookup[t] = r
	for i := 0; i < t.NumField(); i++ {
		tField := t.Field(i)
		info, err := field.Get(&tField)
		if err != nil {
			panic(err) // resolver structs are checked against the schema before we get here
		}
		if info == nil {
			continue
		}
		r[info.Name] = resolverData{index: i, info: info}
		h.addLookup(tField.Type)
	}
}

// lookup finds the resolver for a field of a struct
func (h *Handler) lookup(t reflect.Type, name string) (resolverData, bool) {
	r, ok := h.resolverLookup[t][name]
	return r, ok
}
