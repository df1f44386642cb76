package memstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/andrewwphillips/libraryql/internal/store"
	"github.com/andrewwphillips/libraryql/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAuthor(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	a1, err := s.EnsureAuthor(ctx, "Robert Martin")
	require.NoError(t, err)
	a2, err := s.EnsureAuthor(ctx, "Robert Martin")
	require.NoError(t, err)
	assert.Equal(t, a1.ID, a2.ID)

	n, err := s.AuthorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.EnsureAuthor(ctx, "Bob")
	var v *model.ValidationError
	assert.ErrorAs(t, err, &v)
}

func TestEnsureAuthorConcurrent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := s.EnsureAuthor(ctx, "Martin Fowler")
			if assert.NoError(t, err) {
				ids[i] = a.ID
			}
		}(i)
	}
	wg.Wait()

	n, _ := s.AuthorCount(ctx)
	assert.Equal(t, 1, n)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestBooks(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	martin, err := s.EnsureAuthor(ctx, "Robert Martin")
	require.NoError(t, err)
	fowler, err := s.EnsureAuthor(ctx, "Martin Fowler")
	require.NoError(t, err)

	year := 2008
	clean, err := s.AddBook(ctx, model.Book{Title: "Clean Code", AuthorID: martin.ID, Published: &year, Genres: []string{"refactoring"}})
	require.NoError(t, err)
	assert.NotEmpty(t, clean.ID)
	_, err = s.AddBook(ctx, model.Book{Title: "Agile software development", AuthorID: martin.ID, Genres: []string{"agile"}})
	require.NoError(t, err)
	_, err = s.AddBook(ctx, model.Book{Title: "Refactoring", AuthorID: fowler.ID})
	require.NoError(t, err)

	_, err = s.AddBook(ctx, model.Book{Title: "Clean Code", AuthorID: fowler.ID})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	_, err = s.AddBook(ctx, model.Book{Title: "Unknown", AuthorID: "nobody"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	books, err := s.Books(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "Clean Code", books[0].Title) // insertion order
	require.NotNil(t, books[0].Author)
	assert.Equal(t, "Robert Martin", books[0].Author.Name)
	assert.Equal(t, 2008, *books[0].Published)
	assert.Equal(t, []string{}, books[2].Genres)

	got, err := s.Book(ctx, clean.ID)
	require.NoError(t, err)
	assert.Equal(t, "Robert Martin", got.Author.Name)
	_, err = s.Book(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	counts, err := s.BookCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{martin.ID: 2, fowler.ID: 1}, counts)

	n, err := s.BookCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSetAuthorBorn(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	_, err := s.EnsureAuthor(ctx, "Fyodor Dostoevsky")
	require.NoError(t, err)

	a, err := s.SetAuthorBorn(ctx, "Fyodor Dostoevsky", 1820)
	require.NoError(t, err)
	assert.Equal(t, 1820, *a.Born)
	a, err = s.SetAuthorBorn(ctx, "Fyodor Dostoevsky", 1821)
	require.NoError(t, err)
	assert.Equal(t, 1821, *a.Born)

	// returned records are copies
	*a.Born = 0
	authors, err := s.Authors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1821, *authors[0].Born)

	_, err = s.SetAuthorBorn(ctx, "Nobody Known", 1900)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	u, err := s.AddUser(ctx, model.User{Username: "mluukkai", FavoriteGenre: "refactoring", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = s.AddUser(ctx, model.User{Username: "mluukkai", FavoriteGenre: "agile"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	_, err = s.AddUser(ctx, model.User{Username: "ml", FavoriteGenre: "agile"})
	var v *model.ValidationError
	assert.ErrorAs(t, err, &v)

	byID, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "mluukkai", byID.Username)
	byName, err := s.UserByName(ctx, "mluukkai")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.Equal(t, "hash", byName.PasswordHash)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UserByName(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
