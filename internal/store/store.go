// Package store defines how the catalog is persisted.  Implementations are in the
// mongostore (MongoDB) and memstore (in-process) sub-packages.
package store

import (
	"context"
	"errors"

	"github.com/andrewwphillips/libraryql/internal/model"
)

var (
	// ErrNotFound is returned when a record to be read or updated does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a record would duplicate the unique key (author name,
	// book title or username) of an existing record
	ErrDuplicate = errors.New("duplicate key")
)

type (
	// Authors accesses the author collection
	Authors interface {
		AuthorCount(ctx context.Context) (int, error)
		Authors(ctx context.Context) ([]model.Author, error)

		// EnsureAuthor returns the author with the name, creating it atomically if not present
		EnsureAuthor(ctx context.Context, name string) (*model.Author, error)

		// SetAuthorBorn sets the year of birth returning the updated author (or ErrNotFound)
		SetAuthorBorn(ctx context.Context, name string, born int) (*model.Author, error)
	}

	// Books accesses the book collection.  Books are returned with their author populated.
	Books interface {
		BookCount(ctx context.Context) (int, error)
		Books(ctx context.Context) ([]model.Book, error)
		Book(ctx context.Context, id string) (*model.Book, error)

		// BookCounts returns the number of books of each author (keyed by author ID) in one pass
		BookCounts(ctx context.Context) (map[string]int, error)

		// AddBook inserts a book returning it with its new ID (but without its author populated)
		AddBook(ctx context.Context, book model.Book) (*model.Book, error)
	}

	// Users accesses the user collection
	Users interface {
		AddUser(ctx context.Context, user model.User) (*model.User, error)
		UserByID(ctx context.Context, id string) (*model.User, error)
		UserByName(ctx context.Context, username string) (*model.User, error)
	}

	// Store is all of the collections of the catalog
	Store interface {
		Authors
		Books
		Users

		Ping(ctx context.Context) error
		Close(ctx context.Context) error
	}
)
