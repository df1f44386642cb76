// Package memstore is an in-process catalog store used for tests, demos and when no
// database is configured.  Records are kept in insertion order.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/andrewwphillips/libraryql/internal/store"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Store implements store.Store in memory.  All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	authors []*model.Author
	books   []*model.Book
	users   []*model.User

	authorByName map[string]*model.Author
	authorByID   map[string]*model.Author
	bookByTitle  map[string]*model.Book
	bookByID     map[string]*model.Book
	userByName   map[string]*model.User
	userByID     map[string]*model.User
	newID        func() string
}

var _ store.Store = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{
		authorByName: make(map[string]*model.Author),
		authorByID:   make(map[string]*model.Author),
		bookByTitle:  make(map[string]*model.Book),
		bookByID:     make(map[string]*model.Book),
		userByName:   make(map[string]*model.User),
		userByID:     make(map[string]*model.User),
		newID:        uuid.NewString,
	}
}

func (s *Store) AuthorCount(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.authors), nil
}

func (s *Store) BookCount(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books), nil
}

func (s *Store) Authors(context.Context) ([]model.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.authors, func(a *model.Author, _ int) model.Author { return copyAuthor(a) }), nil
}

func (s *Store) Books(context.Context) ([]model.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.books, func(b *model.Book, _ int) model.Book { return s.populate(b) }), nil
}

func (s *Store) Book(_ context.Context, id string) (*model.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: book %q", store.ErrNotFound, id)
	}
	r := s.populate(b)
	return &r, nil
}

func (s *Store) BookCounts(context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.CountValuesBy(s.books, func(b *model.Book) string { return b.AuthorID }), nil
}

func (s *Store) EnsureAuthor(_ context.Context, name string) (*model.Author, error) {
	if err := (model.Author{Name: name}).Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.authorByName[name]
	if !ok {
		a = &model.Author{ID: s.newID(), Name: name}
		s.authors = append(s.authors, a)
		s.authorByName[name] = a
		s.authorByID[a.ID] = a
	}
	r := copyAuthor(a)
	return &r, nil
}

func (s *Store) SetAuthorBorn(_ context.Context, name string, born int) (*model.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.authorByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: author %q", store.ErrNotFound, name)
	}
	a.Born = &born
	r := copyAuthor(a)
	return &r, nil
}

func (s *Store) AddBook(_ context.Context, book model.Book) (*model.Book, error) {
	if err := book.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authorByID[book.AuthorID]; !ok {
		return nil, fmt.Errorf("%w: author %q", store.ErrNotFound, book.AuthorID)
	}
	if _, ok := s.bookByTitle[book.Title]; ok {
		return nil, fmt.Errorf("%w: book title %q", store.ErrDuplicate, book.Title)
	}
	b := &model.Book{
		ID:        s.newID(),
		Title:     book.Title,
		AuthorID:  book.AuthorID,
		Published: copyInt(book.Published),
		Genres:    append([]string{}, book.Genres...),
	}
	s.books = append(s.books, b)
	s.bookByTitle[b.Title] = b
	s.bookByID[b.ID] = b

	r := *b
	r.Genres = append([]string{}, b.Genres...)
	return &r, nil
}

func (s *Store) AddUser(_ context.Context, user model.User) (*model.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.userByName[user.Username]; ok {
		return nil, fmt.Errorf("%w: username %q", store.ErrDuplicate, user.Username)
	}
	u := user
	u.ID = s.newID()
	s.users = append(s.users, &u)
	s.userByName[u.Username] = &u
	s.userByID[u.ID] = &u
	r := u
	return &r, nil
}

func (s *Store) UserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.userByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", store.ErrNotFound, id)
	}
	r := *u
	return &r, nil
}

func (s *Store) UserByName(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.userByName[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", store.ErrNotFound, username)
	}
	r := *u
	return &r, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

// populate returns a copy of the book with its author (must be called with the lock held)
func (s *Store) populate(b *model.Book) model.Book {
	r := *b
	r.Published = copyInt(b.Published)
	r.Genres = append([]string{}, b.Genres...)
	if a, ok := s.authorByID[b.AuthorID]; ok {
		author := copyAuthor(a)
		r.Author = &author
	}
	return r
}

func copyAuthor(a *model.Author) model.Author {
	r := *a
	r.Born = copyInt(a.Born)
	return r
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	i := *p
	return &i
}
