package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rhuss/pubgate/pkg/observability"
	"github.com/rhuss/pubgate/pkg/publisher"
	"github.com/rhuss/pubgate/pkg/transport"
)

// Server wraps an http.Server with the publishing App and manages the full
// lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	app        *App
	config     ServerConfig
	logger     *slog.Logger
	health     transport.HealthChecker
	metrics    string
	httpMW     []func(http.Handler) http.Handler
	extraMW    []transport.Middleware
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithTimeouts sets the read, write and idle timeouts of the http.Server.
func WithTimeouts(read, write, idle time.Duration) ServerOption {
	return func(s *Server) {
		s.config.ReadTimeout = read
		s.config.WriteTimeout = write
		s.config.IdleTimeout = idle
	}
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithHealthChecker makes /readyz report the health of hc.
func WithHealthChecker(hc transport.HealthChecker) ServerOption {
	return func(s *Server) { s.health = hc }
}

// WithMetricsPath serves Prometheus metrics at path. An empty path
// disables the endpoint.
func WithMetricsPath(path string) ServerOption {
	return func(s *Server) { s.metrics = path }
}

// WithHTTPMiddleware adds net/http middleware, such as authentication,
// around the routes. The first middleware is the outermost.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.httpMW = append(s.httpMW, mw...) }
}

// WithMiddleware adds transport middleware inside the defaults.
func WithMiddleware(mw ...transport.Middleware) ServerOption {
	return func(s *Server) { s.extraMW = append(s.extraMW, mw...) }
}

// NewServer creates a new transport server publishing through p using pub.
// Default middleware (recovery, request ID, logging) is applied automatically.
func NewServer(pub publisher.Publication, p transport.Publisher, opts ...ServerOption) *Server {
	s := &Server{
		config:  DefaultServerConfig(),
		logger:  slog.Default(),
		metrics: "/metrics",
	}

	for _, opt := range opts {
		opt(s)
	}

	mw := append([]transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	}, s.extraMW...)

	s.app = NewApp(pub, p, Config{
		MaxBodySize: s.config.MaxBodySize,
		Logger:      s.logger,
	}, mw...)

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	return s
}

// App returns the publishing application behind the server.
func (s *Server) App() *App { return s.app }

// Handler returns the complete http.Handler: operational endpoints plus
// the App for every other path, wrapped in request ID propagation, metrics,
// and the configured HTTP middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != "" {
		mux.Handle("GET "+s.metrics, observability.Handler())
	}
	mux.Handle("/", s.app)

	var h http.Handler = mux
	for i := len(s.httpMW) - 1; i >= 0; i-- {
		h = s.httpMW[i](h)
	}
	h = observability.MetricsMiddleware(h, classifyKind)
	return httpRequestIDMiddleware(h)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready"))
			return
		}
	}
	w.Write([]byte("ready"))
}

func classifyKind(r *http.Request) string {
	return publisher.SelectKindFor(r).String()
}

// httpRequestIDMiddleware propagates X-Request-ID. A missing header gets a
// fresh ID; either way the ID is echoed on the response and stored in the
// request context.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := transport.ContextWithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	err := s.httpServer.Shutdown(shutdownCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		n := s.app.InFlight().CancelAll()
		s.logger.Warn("shutdown deadline exceeded, cancelled publications", slog.Int("count", n))
		if cerr := s.httpServer.Close(); cerr != nil {
			s.logger.Error("closing server", slog.String("error", cerr.Error()))
		}
		return err
	}
	if err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
