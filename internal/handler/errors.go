package handler

// errors.go converts errors returned from resolvers into GraphQL errors

import (
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// extender is implemented by errors that want to add "extensions" (eg an error code) to the GraphQL error
type extender interface {
	Extensions() map[string]interface{}
}

// toGQLError wraps an error in a gqlerror.Error (unless it already is one) recording the path of the field
func toGQLError(err error, path ast.Path) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		if gqlErr.Path == nil && path != nil {
			gqlErr.Path = path
		}
		return gqlErr
	}
	r := &gqlerror.Error{Err: err, Message: err.Error(), Path: path}
	var ext extender
	if errors.As(err, &ext) {
		r.Extensions = ext.Extensions()
	}
	return r
}
