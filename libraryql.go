package libraryql

// libraryql.go builds a server from the configuration - store, events, auth, resolvers and
// the GraphQL handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/andrewwphillips/libraryql/internal/auth"
	"github.com/andrewwphillips/libraryql/internal/config"
	"github.com/andrewwphillips/libraryql/internal/handler"
	"github.com/andrewwphillips/libraryql/internal/logging"
	"github.com/andrewwphillips/libraryql/internal/model"
	"github.com/andrewwphillips/libraryql/internal/pubsub"
	"github.com/andrewwphillips/libraryql/internal/resolver"
	"github.com/andrewwphillips/libraryql/internal/schema"
	"github.com/andrewwphillips/libraryql/internal/store"
	"github.com/andrewwphillips/libraryql/internal/store/memstore"
	"github.com/andrewwphillips/libraryql/internal/store/mongostore"
	"github.com/andrewwphillips/libraryql/internal/telemetry"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server is an http.Handler for the GraphQL path and the health check
type Server struct {
	cfg     *config.Config
	log     *zap.Logger
	store   store.Store
	events  *pubsub.Broadcaster[model.Book]
	redis   *redis.Client // nil unless events are relayed through Redis
	relay   *pubsub.RedisRelay[model.Book]
	tracing *telemetry.Tracing
	mux     *http.ServeMux

	// lifetime is cancelled when the server is closed, which ends subscriptions
	lifetime  context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// New creates a server.  The context is only used while connecting to the store and Redis.
func New(ctx context.Context, cfg *config.Config, opts ...func(*options)) (_ *Server, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{cfg: cfg, log: o.log, store: o.store}
	s.lifetime, s.cancel = context.WithCancel(context.Background())
	defer func() {
		if err != nil {
			_ = s.Close(ctx)
		}
	}()

	if s.log == nil {
		if s.log, err = logging.New(cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		if s.store, err = openStore(ctx, cfg, s.log.Named("store")); err != nil {
			return nil, err
		}
	}

	// Added books are published to the local broadcaster or, if Redis is configured, to
	// Redis which relays them to the broadcasters of all servers
	s.events = pubsub.NewBroadcaster[model.Book](cfg.Events.Buffer, s.log.Named("events"))
	var publisher resolver.Publisher = s.events
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		s.relay = pubsub.NewRedisRelay(s.redis, cfg.Redis.Channel, s.events, s.log.Named("relay"))
		if err = s.relay.Start(s.lifetime); err != nil {
			return nil, err
		}
		publisher = s.relay
	}

	signer := auth.NewSigner(cfg.Auth.Secret, cfg.Auth.TokenLifetime)
	r := resolver.New(s.store, signer,
		resolver.Events(publisher, s.events),
		resolver.Hasher(auth.Hasher{Cost: cfg.Auth.HashCost}),
		resolver.InitialPassword(cfg.Auth.DefaultPassword),
		resolver.Logger(s.log.Named("resolver")),
	)
	sch, err := schema.Load()
	if err != nil {
		return nil, err
	}
	roots := r.Roots()
	if err = schema.Check(sch, roots[:]...); err != nil {
		return nil, fmt.Errorf("%w checking resolvers", err)
	}
	gate := auth.NewGate(signer, s.store, s.log.Named("auth"))
	h := handler.New(sch, roots,
		handler.Authenticate(gate.Context),
		handler.OperationContext(r.WithLoader),
		handler.Logger(s.log.Named("handler")),
		handler.NoIntrospection(!cfg.Introspection),
		handler.NoConcurrency(o.noConcurrency),
		handler.InitialTimeout(cfg.WebSocket.InitialTimeout),
		handler.PingFrequency(cfg.WebSocket.PingFrequency),
		handler.PongTimeout(cfg.WebSocket.PongTimeout),
	)

	s.tracing, err = telemetry.Setup(ctx, telemetry.Settings{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, err
	}

	s.mux = http.NewServeMux()
	s.mux.Handle(cfg.Path, s.tracing.Wrap(withTimeout(h, cfg.HTTP.RequestTimeout), "graphql"))
	s.mux.HandleFunc("/healthz", s.health)
	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		log.Info("using in-memory store")
		return memstore.New(), nil
	case config.StoreMongo:
		return mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout, log)
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// withTimeout limits the time taken by HTTP requests (but not websockets which cannot be
// hijacked through http.TimeoutHandler)
func withTimeout(h http.Handler, d time.Duration) http.Handler {
	if d <= 0 {
		return h
	}
	th := http.TimeoutHandler(h, d, `{"errors":[{"message":"request timed out"}]}`)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			h.ServeHTTP(w, r)
			return
		}
		th.ServeHTTP(w, r)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// health reports whether the store can be reached
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// Close ends all subscriptions and releases the store, Redis and tracing resources
func (s *Server) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		var errs []error
		if s.relay != nil {
			errs = append(errs, s.relay.Close())
		}
		if s.events != nil {
			s.events.Close()
		}
		if s.redis != nil {
			errs = append(errs, s.redis.Close())
		}
		if s.store != nil {
			errs = append(errs, s.store.Close(ctx))
		}
		if s.tracing != nil {
			errs = append(errs, s.tracing.Shutdown(ctx))
		}
		s.closeErr = errors.Join(errs...)
		if s.log != nil {
			_ = s.log.Sync()
		}
	})
	return s.closeErr
}
