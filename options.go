package libraryql

// options.go has options that change how New builds the server.  (Like the handler's
// options they are closures that are run on an options struct.)

import (
	"github.com/andrewwphillips/libraryql/internal/store"
	"go.uber.org/zap"
)

type options struct {
	store         store.Store
	log           *zap.Logger
	noConcurrency bool
}

// WithStore uses the store instead of the one in the configuration.  The server takes
// ownership of it (it is closed by Server.Close).
func WithStore(s store.Store) func(*options) {
	return func(opt *options) {
		opt.store = s
	}
}

// WithLogger uses the logger instead of creating one from the log configuration
func WithLogger(log *zap.Logger) func(*options) {
	return func(opt *options) {
		opt.log = log
	}
}

// NoConcurrency resolves each query's fields one at a time rather than concurrently
func NoConcurrency(on bool) func(*options) {
	return func(opt *options) {
		opt.noConcurrency = on
	}
}
