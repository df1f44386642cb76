package resolver

import (
	"context"

	"github.com/andrewwphillips/libraryql/internal/auth"
	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/samber/lo"
)

// Query is the root query type
type Query struct {
	AuthorCount func(context.Context) (int, error)
	BookCount   func(context.Context) (int, error)
	AllBooks    func(context.Context, *string, *string) ([]*Book, error) `egg:"allBooks(author,genre)"`
	AllAuthors  func(context.Context) ([]Author, error)
	Me          func(context.Context) *User
}

func (r *Resolver) Query() Query {
	return Query{
		AuthorCount: r.store.AuthorCount,
		BookCount:   r.store.BookCount,
		AllBooks:    r.allBooks,
		AllAuthors:  r.allAuthors,
		Me: func(ctx context.Context) *User {
			return user(auth.CurrentUser(ctx))
		},
	}
}

// allBooks returns all books, or those by an author (which takes precedence) or in a genre
func (r *Resolver) allBooks(ctx context.Context, author, genre *string) ([]*Book, error) {
	books, err := r.store.Books(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case author != nil && *author != "":
		books = lo.Filter(books, func(b model.Book, _ int) bool {
			return b.Author != nil && b.Author.Name == *author
		})
	case genre != nil && *genre != "":
		books = lo.Filter(books, func(b model.Book, _ int) bool { return b.HasGenre(*genre) })
	}
	return lo.Map(books, func(b model.Book, _ int) *Book {
		book := r.book(b)
		return &book
	}), nil
}

func (r *Resolver) allAuthors(ctx context.Context) ([]Author, error) {
	authors, err := r.store.Authors(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(authors, func(a model.Author, _ int) Author { return r.author(a) }), nil
}
