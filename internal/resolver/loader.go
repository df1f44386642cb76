package resolver

// loader.go counts the books of every author with a single store call per operation

import (
	"context"
	"sync"

	"github.com/andrewwphillips/libraryql/internal/store"
)

type countLoader struct {
	books store.Books

	mu     sync.Mutex
	loaded bool
	counts map[string]int
}

type loaderKey struct{}

// WithLoader returns a context for an operation with a new book count loader.  Use it
// with the handler's OperationContext option.
func (r *Resolver) WithLoader(ctx context.Context) context.Context {
	return context.WithValue(ctx, loaderKey{}, &countLoader{books: r.store})
}

// bookCount gets the author's count from the operation's loader, or directly if there is none
func (r *Resolver) bookCount(ctx context.Context, authorID string) (int, error) {
	l, ok := ctx.Value(loaderKey{}).(*countLoader)
	if !ok {
		counts, err := r.store.BookCounts(ctx)
		if err != nil {
			return 0, err
		}
		return counts[authorID], nil
	}
	return l.count(ctx, authorID)
}

func (l *countLoader) count(ctx context.Context, authorID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		counts, err := l.books.BookCounts(ctx)
		if err != nil {
			return 0, err
		}
		l.counts, l.loaded = counts, true
	}
	return l.counts[authorID], nil
}

// invalidateLoader makes the operation's loader reload after a write
func invalidateLoader(ctx context.Context) {
	if l, ok := ctx.Value(loaderKey{}).(*countLoader); ok {
		l.mu.Lock()
		l.counts, l.loaded = nil, false
		l.mu.Unlock()
	}
}
