package libraryql

// run.go runs the server until it is interrupted (SIGINT or SIGTERM)

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrewwphillips/libraryql/internal/config"
	"go.uber.org/zap"
)

// Run creates a server from the configuration and serves it on the configured address
// until ctx is cancelled or the process receives SIGINT/SIGTERM
func Run(ctx context.Context, cfg *config.Config, opts ...func(*options)) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, os.Interrupt)
	defer stop()

	s, err := New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = s.Close(context.Background())
		return fmt.Errorf("%w listening on %s", err, cfg.Addr)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on the listener until ctx is cancelled, then shuts down
// gracefully and closes the server
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.HTTP.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return s.lifetime },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	s.log.Info("server ready", zap.String("url", "http://"+l.Addr().String()+s.cfg.Path))

	select {
	case err := <-errCh:
		_ = s.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	s.cancel() // ends websocket subscriptions
	err := srv.Shutdown(shutdownCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("graceful shutdown timed out")
	}
	return errors.Join(err, s.Close(shutdownCtx))
}
