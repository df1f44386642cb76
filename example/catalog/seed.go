package main

import (
	"context"

	"github.com/andrewwphillips/libraryql/internal/auth"
	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/andrewwphillips/libraryql/internal/store"
)

type seedBook struct {
	title     string
	author    string
	published int
	genres    []string
}

var (
	born = map[string]int{
		"Robert Martin":     1952,
		"Martin Fowler":     1963,
		"Fyodor Dostoevsky": 1821,
		"Joshua Kerievsky":  0, // unknown
		"Sandi Metz":        0,
	}

	books = []seedBook{
		{"Clean Code", "Robert Martin", 2008, []string{"refactoring"}},
		{"Agile software development", "Robert Martin", 2002, []string{"agile", "patterns", "design"}},
		{"Refactoring, edition 2", "Martin Fowler", 2018, []string{"refactoring"}},
		{"Refactoring to patterns", "Joshua Kerievsky", 2008, []string{"refactoring", "patterns"}},
		{"Practical Object-Oriented Design, An Agile Primer Using Ruby", "Sandi Metz", 2012, []string{"refactoring", "design"}},
		{"Crime and punishment", "Fyodor Dostoevsky", 1866, []string{"classic", "crime"}},
		{"Demons", "Fyodor Dostoevsky", 1872, []string{"classic", "revolution"}},
	}
)

// seed adds the example books (and their authors) and a user to an empty store
func seed(ctx context.Context, st store.Store, hasher auth.Hasher) error {
	for _, b := range books {
		author, err := st.EnsureAuthor(ctx, b.author)
		if err != nil {
			return err
		}
		if year := born[b.author]; year != 0 && author.Born == nil {
			if _, err = st.SetAuthorBorn(ctx, b.author, year); err != nil {
				return err
			}
		}
		published := b.published
		book := model.Book{Title: b.title, AuthorID: author.ID, Published: &published, Genres: b.genres}
		if _, err = st.AddBook(ctx, book); err != nil {
			return err
		}
	}

	hash, err := hasher.Hash("secret")
	if err != nil {
		return err
	}
	_, err = st.AddUser(ctx, model.User{Username: "mluukkai", FavoriteGenre: "refactoring", PasswordHash: hash})
	return err
}
