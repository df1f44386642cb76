// Package schema holds the GraphQL schema (SDL) of the catalog and checks that Go
// resolver structs are consistent with it.  This goes hand-in-hand with the "handler"
// which uses instantiations of those same structs to fulfill queries.
package schema

// schema.go contains the exported functions - Load, MustLoad and String

import (
	_ "embed"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var sdl string

// String returns the catalog schema as GraphQL SDL text
func String() string { return sdl }

// Load parses and validates the catalog schema (or the SDL given, if any)
func Load(text ...string) (*ast.Schema, error) {
	if len(text) == 0 {
		text = []string{sdl}
	}
	sources := make([]*ast.Source, len(text))
	for i, s := range text {
		sources[i] = &ast.Source{Name: fmt.Sprintf("schema%d", i+1), Input: s}
	}
	r, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("%w loading schema", err)
	}
	return r, nil
}

// MustLoad is the same as Load but panics on error
func MustLoad(text ...string) *ast.Schema {
	r, err := Load(text...)
	if err != nil {
		panic(err)
	}
	return r
}
