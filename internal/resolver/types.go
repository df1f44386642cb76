package resolver

import (
	"context"

	"github.com/andrewwphillips/libraryql/internal/model"
)

// The GraphQL object types.  Field names (and tags) must match the schema.
type (
	Author struct {
		Name      string
		Born      *int
		BookCount func(context.Context) (int, error)
		ID        string `egg:"id"`
	}

	Book struct {
		Title     string
		Author    Author
		Published *int
		Genres    []string
		ID        string `egg:"id"`
	}

	User struct {
		Username      string
		FavoriteGenre string
		ID            string `egg:"id"`
	}

	Token struct {
		Value string
	}
)

func (r *Resolver) author(a model.Author) Author {
	return Author{
		Name:      a.Name,
		Born:      a.Born,
		BookCount: func(ctx context.Context) (int, error) { return r.bookCount(ctx, a.ID) },
		ID:        a.ID,
	}
}

func (r *Resolver) book(b model.Book) Book {
	author := model.Author{ID: b.AuthorID}
	if b.Author != nil {
		author = *b.Author
	}
	genres := b.Genres
	if genres == nil {
		genres = []string{}
	}
	return Book{
		Title:     b.Title,
		Author:    r.author(author),
		Published: b.Published,
		Genres:    genres,
		ID:        b.ID,
	}
}

func user(u *model.User) *User {
	if u == nil {
		return nil
	}
	return &User{Username: u.Username, FavoriteGenre: u.FavoriteGenre, ID: u.ID}
}
