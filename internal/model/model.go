// Package model contains the records of the catalog - authors, books and users - and the
// constraints their fields must satisfy before they are stored.
package model

import (
	"strings"
	"unicode/utf8"
)

// Minimum lengths (in characters) of the business keys
const (
	MinAuthorName = 4
	MinBookTitle  = 2
	MinUsername   = 3
)

type (
	// Author is a person who has written one or more books.  The number of books is not stored
	// but is calculated from the books that refer to the author.
	Author struct {
		ID   string
		Name string
		Born *int // year of birth (if known)
	}

	// Book refers to its author by ID.  Author is only set when the book has been read
	// with its author populated.
	Book struct {
		ID        string
		Title     string
		AuthorID  string
		Author    *Author
		Published *int
		Genres    []string
	}

	// User can add books and edit authors once logged in
	User struct {
		ID            string
		Username      string
		FavoriteGenre string
		PasswordHash  string
	}
)

// Validate checks the author's fields
func (a Author) Validate() error {
	var v ValidationError
	v.minLength("name", a.Name, MinAuthorName)
	return v.err()
}

// Validate checks the book's fields (not including the author which is checked separately)
func (b Book) Validate() error {
	var v ValidationError
	v.minLength("title", b.Title, MinBookTitle)
	if b.AuthorID == "" {
		v.add("author", "is required")
	}
	for _, g := range b.Genres {
		if strings.TrimSpace(g) == "" {
			v.add("genres", "must not contain an empty genre")
			break
		}
	}
	return v.err()
}

// Validate checks the user's fields
func (u User) Validate() error {
	var v ValidationError
	v.minLength("username", u.Username, MinUsername)
	if u.FavoriteGenre == "" {
		v.add("favoriteGenre", "is required")
	}
	return v.err()
}

// HasGenre returns true if genre is one of the book's genres
func (b Book) HasGenre(genre string) bool {
	for _, g := range b.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

func (v *ValidationError) minLength(field, value string, min int) {
	if n := utf8.RuneCountInString(value); n < min {
		if n == 0 {
			v.add(field, "is required")
			return
		}
		v.add(field, "must be at least "+itoa(min)+" characters")
	}
}
