package handler

// options.go handles setting of handler options

// The use of closures for options makes it simple for the caller to add any desired options.  The
// handler.New() function takes as its last (variadic) parameter a slice of closures each with the
// signature func(*Handler).  The option functions below (NoConcurrency, etc) return such a closure
// which captures any parameters passed to the option function, eg:
//
//   handler.New(schema, [3]interface{}{query, mutation, nil}, handler.NoConcurrency(true))
//
// A pitfall is that if the same option function is used more than once then only the last use has any effect.

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultInitialTimeout = 10 * time.Second // how long to wait for connection_init after the WS is opened
	defaultPingFrequency  = 20 * time.Second // how often to send a ping (ka in old protocol) message to the client
	defaultPongTimeout    = 5 * time.Second  // how long to wait for a pong after sending a ping
)

// SetOptions takes a slice of handler options (closures) and executes them
func (h *Handler) SetOptions(options ...func(*Handler)) {
	for _, option := range options {
		option(h)
	}

	// Set any options that still have their unset (zero) value
	if h.initialTimeout == 0 {
		h.initialTimeout = defaultInitialTimeout
	}
	if h.pingFrequency == 0 {
		h.pingFrequency = defaultPingFrequency
	}
	if h.pongTimeout == 0 {
		h.pongTimeout = defaultPongTimeout
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
}

// Authenticate sets a function that is given the Authorization header (or the equivalent
// value from a websocket connection_init payload) before an operation is executed.  It
// returns the context to use for the operation or an error, whence the request fails with
// HTTP status 401 (or the websocket connection is refused).
func Authenticate(f func(ctx context.Context, authorization string) (context.Context, error)) func(*Handler) {
	return func(h *Handler) {
		h.authenticate = f
	}
}

// OperationContext sets a function that decorates the context of every operation (and
// every subscription event) - eg to add a per-operation data loader
func OperationContext(f func(context.Context) context.Context) func(*Handler) {
	return func(h *Handler) {
		h.operationContext = f
	}
}

// Logger sets the logger used for websocket connection problems and resolver panics
func Logger(log *zap.Logger) func(*Handler) {
	return func(h *Handler) {
		h.log = log
	}
}

// NoIntrospection turns off all introspection queries
func NoIntrospection(on bool) func(*Handler) {
	return func(h *Handler) {
		h.noIntrospection = on
	}
}

// NoConcurrency turns off concurrent execution of queries
func NoConcurrency(on bool) func(*Handler) {
	return func(h *Handler) {
		h.noConcurrency = on
	}
}

// NilResolverAllowed allows func resolvers to be nil, whence they return a null value (rather than return an error)
func NilResolverAllowed(on bool) func(*Handler) {
	return func(h *Handler) {
		h.nilResolver = on
	}
}

// InitialTimeout sets the length time to wait from when the websocket is opened until the
// "connection_init" message is received. If the message is not received from the client
// within the time limit then the WS is closed.
func InitialTimeout(timeout time.Duration) func(*Handler) {
	return func(h *Handler) {
		h.initialTimeout = timeout // timeout value is "captured" and returned as part of the func
	}
}

// PingFrequency says how often to send a "ping" message (if the client connects with new
// protocol) or a "ka" (keep alive) message (old protocol)
func PingFrequency(freq time.Duration) func(*Handler) {
	return func(h *Handler) {
		h.pingFrequency = freq
	}
}

// PongTimeout set the length time to wait for a "pong" message from the client after
// a "ping" message is sent. If the message is not received from the client
// within the time limit then the WS is closed.
func PongTimeout(timeout time.Duration) func(*Handler) {
	return func(h *Handler) {
		h.pongTimeout = timeout
	}
}
