// Package handler implements an HTTP handler to process GraphQL queries (and
// mutations/subscriptions) given instances of query, mutation and subscription structs
// and the corresponding GraphQL schema.
package handler

// handler.go implements the handler and its ServeHTTP method

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

type (
	// Handler stores the invariants (schema and structs) used in the GraphQL requests
	Handler struct {
		schema           *ast.Schema
		qData            interface{}
		mData            interface{}
		subscriptionData interface{}
		introspection    *introspection
		resolverLookup   lookupTables

		authenticate     func(context.Context, string) (context.Context, error)
		operationContext func(context.Context) context.Context
		log              *zap.Logger

		// options
		noIntrospection bool
		noConcurrency   bool
		nilResolver     bool
		initialTimeout  time.Duration
		pingFrequency   time.Duration
		pongTimeout     time.Duration
	}
)

// New returns an HTTP handler given a schema PLUS corresponding instances of query and
// optionally mutation and subscription structs (nil if not used).
// Handler options (closures) may be supplied to change the default behaviour.
func New(schema *ast.Schema, qms [3]interface{}, options ...func(*Handler)) *Handler {
	h := &Handler{
		schema:           schema,
		qData:            qms[0],
		mData:            qms[1],
		subscriptionData: qms[2],
		log:              zap.NewNop(),
	}
	h.SetOptions(options...)
	if !h.noIntrospection {
		h.introspection = newIntrospection(schema)
	}
	h.makeResolverTables()
	return h
}

// ServeHTTP receives a GraphQL query as an HTTP request, executes the
// query (or mutation) and generates an HTTP response or error message.
// Websocket upgrade requests are handed on to the subscription transport.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.serveWS(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	g := gqlRequest{h: h}
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		g.Query, g.OperationName, g.readOnly = q.Get("query"), q.Get("operationName"), true
		if vars := q.Get("variables"); vars != "" {
			decoder := json.NewDecoder(strings.NewReader(vars))
			decoder.UseNumber()
			if err := decoder.Decode(&g.Variables); err != nil {
				h.writeError(w, http.StatusBadRequest, gqlerror.Errorf("error decoding variables: %v", err))
				return
			}
		}
	case http.MethodPost:
		decoder := json.NewDecoder(r.Body)
		decoder.UseNumber() // allows us to distinguish ints from floats (see FixNumberVariables() below)
		if err := decoder.Decode(&g); err != nil {
			h.writeError(w, http.StatusBadRequest, gqlerror.Errorf("error decoding JSON request: %v", err))
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Since variables are sent as JSON (which does not distinguish int/float) we need to decide
	FixNumberVariables(g.Variables)

	ctx, err := h.requestContext(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, toGQLError(err, nil))
		return
	}
	h.writeResult(w, http.StatusOK, g.Execute(ctx))
}

// requestContext runs the authentication callback (if any) on the Authorization header value
func (h *Handler) requestContext(ctx context.Context, authorization string) (context.Context, error) {
	if h.authenticate == nil {
		return ctx, nil
	}
	return h.authenticate(ctx, authorization)
}

// opContext gives the caller a chance to add per-operation values (eg loaders) to the context
func (h *Handler) opContext(ctx context.Context) context.Context {
	if h.operationContext == nil {
		return ctx
	}
	return h.operationContext(ctx)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err *gqlerror.Error) {
	h.writeResult(w, status, gqlResult{Errors: gqlerror.List{err}})
}

func (h *Handler) writeResult(w http.ResponseWriter, status int, result gqlResult) {
	buf, err := json.Marshal(result)
	if err != nil {
		h.log.Error("encoding GraphQL response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors": [{"message": "error encoding JSON response"}]}`))
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(buf); err != nil {
		h.log.Debug("writing GraphQL response", zap.Error(err))
	}
}

// FixNumberVariables goes through the structure created by the JSON decoder, converting any json.Number values to
// either an int64 or a float64.  This assumes that all the JSON numbers were decoded into a json.Number type, rather
// than int/float, by use of the json.Decode.UseNumber() method.
func FixNumberVariables(m map[string]interface{}) {
	for key, val := range m {
		m[key] = fixNumber(val)
	}
}

func fixNumber(val interface{}) interface{} {
	switch v := val.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String() // out of range - let validation report it
	case map[string]interface{}:
		FixNumberVariables(v)
	case []interface{}:
		for i := range v {
			v[i] = fixNumber(v[i])
		}
	}
	return val
}
