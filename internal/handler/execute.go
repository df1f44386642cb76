package handler

// execute.go handles the execution of a GraphQL request

import (
	"context"
	"reflect"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
)

type (
	// gqlRequest decodes and handles each GraphQL request
	gqlRequest struct {
		h        *Handler
		readOnly bool // GET requests may not run mutations

		// These are decoded from the http request body (JSON) or websocket message payload
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	// gqlResult contains the result (or errors) of the request to be encoded in JSON
	gqlResult struct {
		Data   interface{}   `json:"data,omitempty"`
		Errors gqlerror.List `json:"errors,omitempty"`
	}
)

// Execute parses and runs the request and returns the result
func (g *gqlRequest) Execute(ctx context.Context) gqlResult {
	op, operation, errs := g.prepare()
	if errs != nil {
		return gqlResult{Errors: errs}
	}
	if operation.Operation == ast.Subscription {
		return gqlResult{Errors: gqlerror.List{gqlerror.Errorf("subscriptions must be made over a websocket")}}
	}
	if operation.Operation == ast.Mutation && g.readOnly {
		return gqlResult{Errors: gqlerror.List{gqlerror.Errorf("mutations cannot be sent using GET")}}
	}
	return op.execute(ctx, operation)
}

// prepare parses and validates the query, picks the operation to run and coerces its variables
func (g *gqlRequest) prepare() (*gqlOperation, *ast.OperationDefinition, gqlerror.List) {
	query, errs := gqlparser.LoadQuery(g.h.schema, g.Query)
	if len(errs) > 0 {
		return nil, nil, errs
	}
	operation, err := selectOperation(query, g.OperationName)
	if err != nil {
		return nil, nil, gqlerror.List{err}
	}
	op := &gqlOperation{Handler: g.h}
	if len(operation.VariableDefinitions) > 0 {
		vars, err := validator.VariableValues(g.h.schema, operation, g.Variables)
		if err != nil {
			return nil, nil, gqlerror.List{toGQLError(err, nil)}
		}
		op.variables = vars
	}
	return op, operation, nil
}

// selectOperation finds the operation to execute in a query document
func selectOperation(query *ast.QueryDocument, name string) (*ast.OperationDefinition, *gqlerror.Error) {
	if name == "" {
		if len(query.Operations) != 1 {
			return nil, gqlerror.Errorf("operationName is required for a document with %d operations", len(query.Operations))
		}
		return query.Operations[0], nil
	}
	for _, operation := range query.Operations {
		if operation.Name == name {
			return operation, nil
		}
	}
	return nil, gqlerror.Errorf("operation %q not found", name)
}

// execute runs a query or mutation against the corresponding resolver struct
func (op *gqlOperation) execute(ctx context.Context, operation *ast.OperationDefinition) (r gqlResult) {
	var data interface{}
	var def *ast.Definition
	switch operation.Operation {
	case ast.Query:
		data, def = op.qData, op.schema.Query
	case ast.Mutation:
		op.isMutation = true
		data, def = op.mData, op.schema.Mutation
	}
	if data == nil || def == nil {
		r.Errors = gqlerror.List{gqlerror.Errorf("%s operations are not supported", operation.Operation)}
		return
	}

	result, err := op.GetSelections(op.opContext(ctx), operation.SelectionSet, reflect.ValueOf(data), def.Name, nil)
	if err != nil {
		r.Errors = gqlerror.List{toGQLError(err, nil)}
		return
	}
	r.Data = result
	return
}
