package resolver

import (
	"context"
	"errors"
)

// Subscription is the root subscription type
type Subscription struct {
	BookAdded func(context.Context) (<-chan Book, error)
}

func (r *Resolver) Subscription() Subscription {
	return Subscription{BookAdded: r.bookAdded}
}

// bookAdded sends each book added (from now on) until ctx is cancelled
func (r *Resolver) bookAdded(ctx context.Context) (<-chan Book, error) {
	if r.feed == nil {
		return nil, errors.New("book events are not available")
	}
	in := r.feed.Subscribe(ctx)
	out := make(chan Book)
	go func() {
		defer close(out)
		for b := range in {
			select {
			case out <- r.book(b):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
