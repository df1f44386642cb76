package resolver

import (
	"context"
	"errors"

	"github.com/andrewwphillips/libraryql/internal/auth"
	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/andrewwphillips/libraryql/internal/store"
	"go.uber.org/zap"
)

// Mutation is the root mutation type
type Mutation struct {
	AddBook    func(context.Context, string, string, *int, []string) (*Book, error) `egg:"addBook(title,author,published,genres)"`
	EditAuthor func(context.Context, string, int) (*Author, error)                  `egg:"editAuthor(name,setBornTo)"`
	CreateUser func(context.Context, string, string, *string) (*User, error)        `egg:"createUser(username,favoriteGenre,password)"`
	Login      func(context.Context, string, string) (*Token, error)                `egg:"login(username,password)"`
}

func (r *Resolver) Mutation() Mutation {
	return Mutation{
		AddBook:    r.addBook,
		EditAuthor: r.editAuthor,
		CreateUser: r.createUser,
		Login:      r.login,
	}
}

// addBook adds a book, and its author if the author is new, then tells subscribers about it.
// If the book cannot be added after a new author was created the author remains.
func (r *Resolver) addBook(ctx context.Context, title, authorName string, published *int, genres []string) (*Book, error) {
	if auth.CurrentUser(ctx) == nil {
		return nil, errNotAuthenticated()
	}
	args := map[string]interface{}{"title": title, "author": authorName, "published": published, "genres": genres}
	if title == "" || authorName == "" {
		return nil, errInput("Book title and author must be added", nil, args)
	}

	author, err := r.store.EnsureAuthor(ctx, authorName)
	if err != nil {
		var v *model.ValidationError
		if errors.As(err, &v) {
			return nil, errInput("Author name too short", err, args)
		}
		return nil, errInput(err.Error(), err, args)
	}

	added, err := r.store.AddBook(ctx, model.Book{
		Title:     title,
		AuthorID:  author.ID,
		Published: published,
		Genres:    genres,
	})
	if err != nil {
		var v *model.ValidationError
		switch {
		case errors.As(err, &v) && v.Has("title"):
			return nil, errInput("Book title too short", err, args)
		case errors.Is(err, store.ErrDuplicate):
			return nil, errInput("Book title must be unique", err, args)
		}
		return nil, errInput(err.Error(), err, args)
	}
	invalidateLoader(ctx)

	book, err := r.store.Book(ctx, added.ID)
	if err != nil {
		return nil, err
	}
	if r.events != nil {
		if err := r.events.Publish(ctx, *book); err != nil {
			r.log.Warn("publishing added book", zap.String("title", book.Title), zap.Error(err))
		}
	}
	result := r.book(*book)
	return &result, nil
}

func (r *Resolver) editAuthor(ctx context.Context, name string, born int) (*Author, error) {
	if auth.CurrentUser(ctx) == nil {
		return nil, errNotAuthenticated()
	}
	args := map[string]interface{}{"name": name, "setBornTo": born}
	if name == "" {
		return nil, errInput("Author and birthyear must be added", nil, args)
	}
	author, err := r.store.SetAuthorBorn(ctx, name, born)
	if isNotFound(err) {
		return nil, &Error{Kind: NotFound, Message: "Author not found", InvalidArgs: args, Err: err}
	}
	if err != nil {
		return nil, errInput(err.Error(), err, args)
	}
	invalidateLoader(ctx)
	result := r.author(*author)
	return &result, nil
}

func (r *Resolver) createUser(ctx context.Context, username, favoriteGenre string, password *string) (*User, error) {
	args := map[string]interface{}{"username": username, "favoriteGenre": favoriteGenre}
	p := r.defaultPassword
	if password != nil {
		p = *password
	}
	hash, err := r.hasher.Hash(p)
	if err != nil {
		return nil, err
	}
	u, err := r.store.AddUser(ctx, model.User{Username: username, FavoriteGenre: favoriteGenre, PasswordHash: hash})
	if err != nil {
		return nil, errInput(err.Error(), err, args)
	}
	return user(u), nil
}

func (r *Resolver) login(ctx context.Context, username, password string) (*Token, error) {
	u, err := r.store.UserByName(ctx, username)
	if err != nil {
		if !isNotFound(err) {
			r.log.Warn("finding user for login", zap.String("username", username), zap.Error(err))
		}
		return nil, errInput("Wrong credentials", nil, nil)
	}
	if err := r.hasher.Check(u.PasswordHash, password); err != nil {
		return nil, errInput("Wrong credentials", nil, nil)
	}
	token, err := r.signer.Sign(*u)
	if err != nil {
		return nil, err
	}
	return &Token{Value: token}, nil
}
