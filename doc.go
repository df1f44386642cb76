// Package libraryql is a GraphQL server for a catalog of books and their authors.
//
// The schema is fixed (see internal/schema/schema.graphql).  Queries and mutations are
// sent to the GraphQL path (default /graphql) using HTTP POST (or GET for queries) and
// the bookAdded subscription uses a websocket on the same path with either of the common
// sub-protocols (graphql-transport-ws or graphql-ws).
//
// Mutations that change the catalog need a bearer token obtained from the login mutation:
//
//	mutation { createUser(username: "mluukkai", favoriteGenre: "refactoring") { id } }
//	mutation { login(username: "mluukkai", password: "secret") { value } }
//
// then send the token in the Authorization header (or, for a websocket, in the
// connection_init payload):
//
//	Authorization: Bearer <value>
//
// A server is normally run using the libraryql command (see cmd/libraryql) but can be
// embedded in another program:
//
//	cfg := config.Default()
//	cfg.Store, cfg.Auth.Secret = config.StoreMemory, "my secret"
//	srv, err := libraryql.New(ctx, cfg)
//	...
//	http.Handle("/", srv)
package libraryql
