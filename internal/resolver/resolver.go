// Package resolver has the Go structs that resolve the catalog's GraphQL queries, mutations
// and subscriptions.  The structs are passed to the handler which calls the resolver funcs
// as required by each operation.
package resolver

import (
	"context"
	"errors"

	"github.com/andrewwphillips/libraryql/internal/auth"
	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/andrewwphillips/libraryql/internal/store"
	"go.uber.org/zap"
)

// DefaultPassword is the initial password of users created without one
const DefaultPassword = "secret"

type (
	// Publisher is told about each book that is added
	Publisher interface {
		Publish(ctx context.Context, book model.Book) error
	}

	// Feed provides the stream of added books to subscribers
	Feed interface {
		Subscribe(ctx context.Context) <-chan model.Book
	}

	// Resolver holds what the resolvers need to do their work
	Resolver struct {
		store           store.Store
		signer          *auth.Signer
		hasher          auth.Hasher
		events          Publisher
		feed            Feed
		defaultPassword string
		log             *zap.Logger
	}
)

// New creates the resolvers that use the store and signer.  Options can be used to add the
// event channel and change other defaults.
func New(s store.Store, signer *auth.Signer, options ...func(*Resolver)) *Resolver {
	r := &Resolver{store: s, signer: signer, defaultPassword: DefaultPassword}
	for _, option := range options {
		option(r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Events sets where added books are published and where subscribers get them from
func Events(p Publisher, f Feed) func(*Resolver) {
	return func(r *Resolver) {
		r.events, r.feed = p, f
	}
}

// Hasher sets how passwords are hashed
func Hasher(h auth.Hasher) func(*Resolver) {
	return func(r *Resolver) {
		r.hasher = h
	}
}

// InitialPassword sets the password given to users created without one (empty for the default)
func InitialPassword(password string) func(*Resolver) {
	return func(r *Resolver) {
		if password != "" {
			r.defaultPassword = password
		}
	}
}

// Logger sets the logger
func Logger(log *zap.Logger) func(*Resolver) {
	return func(r *Resolver) {
		r.log = log
	}
}

// Roots returns the query, mutation and subscription structs for the handler
func (r *Resolver) Roots() [3]interface{} {
	return [3]interface{}{r.Query(), r.Mutation(), r.Subscription()}
}

// Store returns the store the resolvers use
func (r *Resolver) Store() store.Store { return r.store }

// isNotFound is for store errors where a missing record is not a failure
func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
